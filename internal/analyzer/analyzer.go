// Package analyzer combines the independent search operations into a single
// verdict on whether a new symbol should be written.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codeguard-mcp/internal/incident"
	"github.com/dshills/codeguard-mcp/internal/logging"
	"github.com/dshills/codeguard-mcp/internal/query"
	"github.com/dshills/codeguard-mcp/pkg/types"
)

// Operation is the name analyses are logged and captured under
const Operation = "performMandatoryAnalysis"

// Searcher is the subset of search operations the analysis runs
type Searcher interface {
	FindDuplicates(ctx context.Context, codeType, name string) (*types.DuplicateFinding, error)
	CheckSymbolExists(ctx context.Context, name, codeType string) (*types.SymbolExistence, error)
	FindSimilarImplementations(ctx context.Context, signature string) (*types.SimilarImplementations, error)
	FindPatterns(ctx context.Context, pattern, fileFilter string) (*types.PatternFindings, error)
}

// Policy holds the thresholds the verdict is derived from. They are tuned by
// hand and expected to be adjusted per codebase.
type Policy struct {
	// MaxDuplicateLocations blocks creation when more distinct files already
	// declare the name.
	MaxDuplicateLocations int
	// MaxSymbolLocations blocks creation when the symbol is found in more places.
	MaxSymbolLocations int
	// SimilarReviewThreshold triggers a review recommendation above this many
	// similar implementations. It never blocks.
	SimilarReviewThreshold int
}

// DefaultPolicy returns the stock thresholds
func DefaultPolicy() Policy {
	return Policy{
		MaxDuplicateLocations:  3,
		MaxSymbolLocations:     3,
		SimilarReviewThreshold: 5,
	}
}

// Options configures an Analyzer
type Options struct {
	// Policy is used as given, zero thresholds included. Nil means DefaultPolicy.
	Policy   *Policy
	Logger   *zap.Logger
	Reporter incident.Reporter
}

// Analyzer runs the mandatory pre-authoring analysis
type Analyzer struct {
	searcher Searcher
	policy   Policy
	logger   *zap.Logger
	reporter incident.Reporter
	now      func() time.Time
}

// New creates an Analyzer
func New(s Searcher, opts Options) *Analyzer {
	policy := DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	if opts.Reporter == nil {
		opts.Reporter = incident.Nop{}
	}
	return &Analyzer{
		searcher: s,
		policy:   policy,
		logger:   logging.Component(opts.Logger, "analyzer"),
		reporter: opts.Reporter,
		now:      time.Now,
	}
}

// Policy returns the thresholds in effect
func (a *Analyzer) Policy() Policy {
	return a.policy
}

// Analyze checks codeName of kind codeType against the indexed code. The four
// checks run concurrently and all of them must succeed: one failure fails the
// analysis without a partial report. A failing check does not cancel its
// siblings.
func (a *Analyzer) Analyze(ctx context.Context, codeType, codeName string) (*types.AnalysisReport, error) {
	ctx, correlationID := logging.EnsureCorrelationID(ctx)
	logger := a.logger.With(logging.Fields(correlationID, Operation)...)
	start := time.Now()

	if strings.TrimSpace(codeName) == "" {
		return nil, a.fail(ctx, logger, correlationID, codeType, codeName, start, types.ErrEmptyName)
	}

	var checks types.AnalysisChecks
	var g errgroup.Group
	g.Go(func() (err error) {
		checks.Duplicates, err = a.searcher.FindDuplicates(ctx, codeType, codeName)
		return err
	})
	g.Go(func() (err error) {
		checks.SymbolExists, err = a.searcher.CheckSymbolExists(ctx, codeName, codeType)
		return err
	})
	g.Go(func() (err error) {
		checks.SimilarImplementations, err = a.searcher.FindSimilarImplementations(ctx, codeName)
		return err
	})
	g.Go(func() (err error) {
		checks.Patterns, err = a.searcher.FindPatterns(ctx, query.NamePattern(codeName), "")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, a.fail(ctx, logger, correlationID, codeType, codeName, start, err)
	}

	report := a.decide(codeType, codeName, checks)
	report.CorrelationID = correlationID
	report.Timestamp = a.now()

	logger.Info("mandatory analysis complete",
		zap.String("codeType", codeType),
		zap.String("codeName", codeName),
		zap.Bool("canProceed", report.CanProceed),
		zap.Int("warnings", len(report.Warnings)),
		zap.Duration("duration", time.Since(start)),
		zap.Any("report", report),
	)
	return report, nil
}

// decide applies the policy to the check results, in order
func (a *Analyzer) decide(codeType, codeName string, checks types.AnalysisChecks) *types.AnalysisReport {
	report := &types.AnalysisReport{
		CodeType:        codeType,
		CodeName:        codeName,
		Checks:          checks,
		Warnings:        []string{},
		Recommendations: []string{},
	}

	dup := checks.Duplicates
	if dup.IsDuplicate {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%s %q is already declared in %d locations", describe(codeType), codeName, dup.DuplicateCount))
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("Reuse or extend an existing %s instead of creating another one", codeName))
	}

	exists := checks.SymbolExists
	if exists.Exists {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Symbol %q already exists (%d locations)", codeName, exists.LocationCount))
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("Choose a different name for %s or import the existing symbol", codeName))
	}

	if similar := checks.SimilarImplementations; similar.Count > a.policy.SimilarReviewThreshold {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("Review %d similar implementations of %s for established patterns", similar.Count, similar.FunctionName))
	}

	report.CanProceed = dup.DuplicateCount <= a.policy.MaxDuplicateLocations &&
		exists.LocationCount <= a.policy.MaxSymbolLocations
	return report
}

func describe(codeType string) string {
	if codeType == "" {
		return "Symbol"
	}
	r, size := utf8.DecodeRuneInString(codeType)
	return string(unicode.ToUpper(r)) + codeType[size:]
}

func (a *Analyzer) fail(ctx context.Context, logger *zap.Logger, correlationID, codeType, codeName string, start time.Time, err error) error {
	elapsed := time.Since(start)
	logger.Error("mandatory analysis failed",
		zap.String("codeType", codeType),
		zap.String("codeName", codeName),
		zap.Duration("duration", elapsed),
		zap.Error(err),
	)
	a.reporter.Capture(ctx, incident.Event{
		Component:     "analyzer",
		Operation:     Operation,
		CorrelationID: correlationID,
		Err:           err,
		Extra: map[string]any{
			"codeType":  codeType,
			"codeName":  codeName,
			"elapsedMs": elapsed.Milliseconds(),
		},
		Time: time.Now(),
	})
	return fmt.Errorf("%s: %w", Operation, err)
}
