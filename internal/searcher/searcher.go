package searcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codeguard-mcp/internal/cache"
	"github.com/dshills/codeguard-mcp/internal/incident"
	"github.com/dshills/codeguard-mcp/internal/logging"
	"github.com/dshills/codeguard-mcp/internal/query"
	"github.com/dshills/codeguard-mcp/internal/transport"
	"github.com/dshills/codeguard-mcp/pkg/types"
)

// Defaults
const (
	DefaultCount          = 50
	DefaultSymbolPageSize = 20
	DefaultTimeout        = 10 * time.Second
	structureCount        = 500
)

// Operation names, used for cache keys, logs and captured errors
const (
	OpSearchCode       = "searchCode"
	OpFindDuplicates   = "findDuplicates"
	OpCheckSymbol      = "checkSymbolExists"
	OpFindSimilar      = "findSimilarImplementations"
	OpFindPatterns     = "findPatterns"
	OpFindImports      = "findImports"
	OpAnalyzeStructure = "analyzeCodeStructure"
	OpGetFileContent   = "getFileContent"
)

// Streamer is the transport surface the searcher depends on
type Streamer interface {
	Stream(ctx context.Context, req transport.StreamRequest) (*transport.StreamResult, error)
	Raw(ctx context.Context, repo, path, rev string, timeout time.Duration) (string, error)
}

// Options configures a Searcher
type Options struct {
	DefaultCount   int
	SymbolPageSize int
	Timeout        time.Duration
	Logger         *zap.Logger
	Reporter       incident.Reporter
}

// SearchOptions tunes a single SearchCode call
type SearchOptions struct {
	Count       int
	PatternType transport.PatternType
	Timeout     time.Duration
}

// Searcher runs the search operations on top of the cache and transport
type Searcher struct {
	transport Streamer
	cache     *cache.Cache
	opts      Options
	logger    *zap.Logger
	reporter  incident.Reporter
	now       func() time.Time
}

// New creates a Searcher
func New(t Streamer, c *cache.Cache, opts Options) *Searcher {
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = DefaultCount
	}
	if opts.SymbolPageSize <= 0 {
		opts.SymbolPageSize = DefaultSymbolPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Reporter == nil {
		opts.Reporter = incident.Nop{}
	}
	return &Searcher{
		transport: t,
		cache:     c,
		opts:      opts,
		logger:    logging.Component(opts.Logger, "searcher"),
		reporter:  opts.Reporter,
		now:       time.Now,
	}
}

// run wraps an operation with the cache check, cache population, logging and
// error capture. The cache check always happens before compute, and compute's
// result is stored only after it succeeds.
func run[T any](ctx context.Context, s *Searcher, operation string, params map[string]any, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	ctx, correlationID := logging.EnsureCorrelationID(ctx)
	logger := s.logger.With(logging.Fields(correlationID, operation)...)
	key := cache.Key(operation, params)

	if v, ok := cache.Lookup[T](s.cache, key); ok {
		logger.Debug("served from cache", zap.String("key", key))
		return v, nil
	}

	start := time.Now()
	v, err := compute(ctx)
	if err != nil {
		return zero, s.fail(ctx, logger, operation, correlationID, params, start, err)
	}

	s.cache.Set(key, v)
	logger.Debug("operation complete", zap.Duration("duration", time.Since(start)))
	return v, nil
}

// fail logs and captures err, then returns it wrapped with the operation name
func (s *Searcher) fail(ctx context.Context, logger *zap.Logger, operation, correlationID string, params map[string]any, start time.Time, err error) error {
	elapsed := time.Since(start)
	logger.Error("operation failed", zap.Duration("duration", elapsed), zap.Error(err))

	extra := make(map[string]any, len(params)+1)
	for k, v := range params {
		extra[k] = v
	}
	extra["elapsedMs"] = elapsed.Milliseconds()
	s.reporter.Capture(ctx, incident.Event{
		Component:     "searcher",
		Operation:     operation,
		CorrelationID: correlationID,
		Err:           err,
		Extra:         extra,
		Time:          time.Now(),
	})
	return fmt.Errorf("%s: %w", operation, err)
}

// SearchCode runs a free-text or regular expression search
func (s *Searcher) SearchCode(ctx context.Context, q string, opts SearchOptions) (*types.SearchResult, error) {
	opts = s.searchDefaults(opts)
	params := searchParams(q, opts)
	return run(ctx, s, OpSearchCode, params, func(ctx context.Context) (*types.SearchResult, error) {
		return s.stream(ctx, q, opts)
	})
}

// searchCode is SearchCode for use inside other operations: it shares the
// SearchCode cache entries but leaves error capture to the caller. The lookup
// is a Peek so an operation counts as a single hit or miss.
func (s *Searcher) searchCode(ctx context.Context, q string, opts SearchOptions) (*types.SearchResult, error) {
	opts = s.searchDefaults(opts)
	key := cache.Key(OpSearchCode, searchParams(q, opts))
	if v, ok := s.cache.Peek(key); ok {
		if res, ok := v.(*types.SearchResult); ok {
			return res, nil
		}
	}
	res, err := s.stream(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, res)
	return res, nil
}

func (s *Searcher) stream(ctx context.Context, q string, opts SearchOptions) (*types.SearchResult, error) {
	q = query.Search(q)
	if q == "" {
		return nil, types.ErrEmptyQuery
	}

	res, err := s.transport.Stream(ctx, transport.StreamRequest{
		Query:       q,
		PatternType: opts.PatternType,
		Count:       opts.Count,
		Timeout:     opts.Timeout,
		Operation:   OpSearchCode,
	})
	if err != nil {
		return nil, err
	}

	if res.Skipped > 0 {
		s.logger.Debug("skipped malformed stream lines",
			zap.String(logging.FieldCorrelationID, res.CorrelationID),
			zap.String(logging.FieldOperation, OpSearchCode),
			zap.Int("skipped", res.Skipped),
		)
	}

	return &types.SearchResult{
		Query:       q,
		Results:     res.Matches,
		ResultCount: len(res.Matches),
		Timestamp:   s.now(),
	}, nil
}

func (s *Searcher) searchDefaults(opts SearchOptions) SearchOptions {
	if opts.Count <= 0 {
		opts.Count = s.opts.DefaultCount
	}
	if opts.PatternType == "" {
		opts.PatternType = transport.PatternLiteral
	}
	if opts.Timeout <= 0 {
		opts.Timeout = s.opts.Timeout
	}
	return opts
}

func searchParams(q string, opts SearchOptions) map[string]any {
	return map[string]any{
		"query":       q,
		"count":       opts.Count,
		"patternType": string(opts.PatternType),
		"timeout":     opts.Timeout.String(),
	}
}

// symbolSearch runs a canonical query and drops matches of the wrong kind
func (s *Searcher) symbolSearch(ctx context.Context, c query.Canonical, count int) ([]types.Match, error) {
	patternType := transport.PatternLiteral
	if c.Regexp {
		patternType = transport.PatternRegexp
	}
	res, err := s.searchCode(ctx, c.Query, SearchOptions{Count: count, PatternType: patternType})
	if err != nil {
		return nil, err
	}

	matches := make([]types.Match, 0, len(res.Results))
	for _, m := range res.Results {
		if query.MatchesKinds(m, c.Kinds) {
			matches = append(matches, m)
		}
	}
	return matches, nil
}

// FindDuplicates reports existing declarations of name with a kind implied by
// codeType, one location per distinct repository:file.
func (s *Searcher) FindDuplicates(ctx context.Context, codeType, name string) (*types.DuplicateFinding, error) {
	params := map[string]any{"type": codeType, "name": name}
	return run(ctx, s, OpFindDuplicates, params, func(ctx context.Context) (*types.DuplicateFinding, error) {
		if strings.TrimSpace(name) == "" {
			return nil, types.ErrEmptyName
		}

		matches, err := s.symbolSearch(ctx, query.Duplicates(types.ParseCodeType(codeType), name), s.opts.DefaultCount)
		if err != nil {
			return nil, err
		}

		locations := make([]types.Location, 0)
		seen := make(map[string]bool)
		for _, m := range matches {
			key := m.LocationKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			locations = append(locations, types.Location{Repository: m.Repository, File: m.Path, Line: m.LineNumber})
		}

		return &types.DuplicateFinding{
			Type:           codeType,
			Name:           name,
			IsDuplicate:    len(locations) > 1,
			DuplicateCount: len(locations),
			Locations:      locations,
		}, nil
	})
}

// CheckSymbolExists reports whether name is already declared, with the first
// page of locations. An empty codeType matches any symbol kind.
func (s *Searcher) CheckSymbolExists(ctx context.Context, name, codeType string) (*types.SymbolExistence, error) {
	params := map[string]any{"name": name, "type": codeType}
	return run(ctx, s, OpCheckSymbol, params, func(ctx context.Context) (*types.SymbolExistence, error) {
		if strings.TrimSpace(name) == "" {
			return nil, types.ErrEmptyName
		}

		matches, err := s.symbolSearch(ctx, query.SymbolExists(name, types.ParseCodeType(codeType)), s.opts.SymbolPageSize)
		if err != nil {
			return nil, err
		}

		locations := make([]types.Location, 0, len(matches))
		for _, m := range matches {
			locations = append(locations, types.Location{Repository: m.Repository, File: m.Path, Line: m.LineNumber})
		}

		return &types.SymbolExistence{
			SymbolName:    name,
			Exists:        len(locations) > 0,
			LocationCount: len(locations),
			Locations:     locations,
		}, nil
	})
}

// FindSimilarImplementations searches for symbols sharing the name of signature
func (s *Searcher) FindSimilarImplementations(ctx context.Context, signature string) (*types.SimilarImplementations, error) {
	params := map[string]any{"signature": signature}
	return run(ctx, s, OpFindSimilar, params, func(ctx context.Context) (*types.SimilarImplementations, error) {
		name := query.FunctionName(signature)
		if name == "" {
			return nil, types.ErrEmptySignature
		}

		matches, err := s.symbolSearch(ctx, query.Similar(name), s.opts.DefaultCount)
		if err != nil {
			return nil, err
		}

		impls := make([]types.Implementation, 0, len(matches))
		for _, m := range matches {
			impl := types.Implementation{Repository: m.Repository, File: m.Path, Name: name}
			if m.Symbol != nil {
				impl.Name = m.Symbol.Name
				impl.Kind = m.Symbol.Kind
				impl.Container = m.Symbol.ContainerName
			}
			impls = append(impls, impl)
		}

		return &types.SimilarImplementations{
			Signature:       signature,
			FunctionName:    name,
			Count:           len(impls),
			Implementations: impls,
		}, nil
	})
}

// FindPatterns returns every line matching the regular expression pattern,
// optionally limited to files matching fileFilter.
func (s *Searcher) FindPatterns(ctx context.Context, pattern, fileFilter string) (*types.PatternFindings, error) {
	params := map[string]any{"pattern": pattern, "fileFilter": fileFilter}
	return run(ctx, s, OpFindPatterns, params, func(ctx context.Context) (*types.PatternFindings, error) {
		if strings.TrimSpace(pattern) == "" {
			return nil, types.ErrEmptyQuery
		}

		matches, err := s.symbolSearch(ctx, query.Pattern(pattern, fileFilter), s.opts.DefaultCount)
		if err != nil {
			return nil, err
		}

		found := make([]types.PatternMatch, 0, len(matches))
		for _, m := range matches {
			found = append(found, types.PatternMatch{
				Repository: m.Repository,
				File:       m.Path,
				Line:       m.LineNumber,
				Preview:    m.Preview,
				Offsets:    m.OffsetAndLengths,
			})
		}

		return &types.PatternFindings{
			Pattern:    pattern,
			FileFilter: fileFilter,
			Count:      len(found),
			Matches:    found,
		}, nil
	})
}

// FindImports finds imports of library across ecosystems, grouped by file
func (s *Searcher) FindImports(ctx context.Context, library string) (*types.ImportUsage, error) {
	params := map[string]any{"library": library}
	return run(ctx, s, OpFindImports, params, func(ctx context.Context) (*types.ImportUsage, error) {
		if strings.TrimSpace(library) == "" {
			return nil, types.ErrEmptyLibrary
		}

		matches, err := s.symbolSearch(ctx, query.Imports(library), s.opts.DefaultCount)
		if err != nil {
			return nil, err
		}

		files := make([]types.ImportFile, 0)
		index := make(map[string]int)
		for _, m := range matches {
			key := m.LocationKey()
			i, ok := index[key]
			if !ok {
				i = len(files)
				index[key] = i
				files = append(files, types.ImportFile{Repository: m.Repository, File: m.Path})
			}
			files[i].Lines = append(files[i].Lines, types.ImportLine{Line: m.LineNumber, Preview: m.Preview})
		}

		return &types.ImportUsage{
			Library:      library,
			TotalMatches: len(matches),
			Files:        files,
		}, nil
	})
}

// AnalyzeCodeStructure lists the classes, functions, interfaces and files of
// repo. The four queries run concurrently; any failure fails the analysis.
func (s *Searcher) AnalyzeCodeStructure(ctx context.Context, repo string) (*types.CodeStructure, error) {
	params := map[string]any{"repo": repo}
	return run(ctx, s, OpAnalyzeStructure, params, func(ctx context.Context) (*types.CodeStructure, error) {
		if strings.TrimSpace(repo) == "" {
			return nil, types.ErrEmptyRepo
		}

		var classes, functions, interfaces, files []types.Match
		var g errgroup.Group
		g.Go(func() (err error) {
			classes, err = s.symbolSearch(ctx, query.RepoSymbols(repo, types.KindClass, types.KindStruct), structureCount)
			return err
		})
		g.Go(func() (err error) {
			functions, err = s.symbolSearch(ctx, query.RepoSymbols(repo, types.KindFunction, types.KindMethod), structureCount)
			return err
		})
		g.Go(func() (err error) {
			interfaces, err = s.symbolSearch(ctx, query.RepoSymbols(repo, types.KindInterface), structureCount)
			return err
		})
		g.Go(func() (err error) {
			files, err = s.symbolSearch(ctx, query.RepoFiles(repo), structureCount)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		structure := &types.CodeStructure{
			Repository: repo,
			Classes:    summarize(classes),
			Functions:  summarize(functions),
			Interfaces: summarize(interfaces),
			Files:      make([]types.FileSummary, 0, len(files)),
		}

		seenFiles := make(map[string]bool)
		languages := make(map[string]bool)
		for _, m := range files {
			if seenFiles[m.Path] {
				continue
			}
			seenFiles[m.Path] = true
			lang := m.Language
			if lang == "" {
				lang = query.LanguageForPath(m.Path)
			}
			if lang != "" {
				languages[lang] = true
			}
			structure.Files = append(structure.Files, types.FileSummary{Path: m.Path, Language: lang})
		}

		structure.Languages = make([]string, 0, len(languages))
		for lang := range languages {
			structure.Languages = append(structure.Languages, lang)
		}
		sort.Strings(structure.Languages)

		structure.Counts = types.StructureCounts{
			Classes:    len(structure.Classes),
			Functions:  len(structure.Functions),
			Interfaces: len(structure.Interfaces),
			Files:      len(structure.Files),
		}
		return structure, nil
	})
}

func summarize(matches []types.Match) []types.SymbolSummary {
	out := make([]types.SymbolSummary, 0, len(matches))
	for _, m := range matches {
		if m.Symbol == nil {
			continue
		}
		out = append(out, types.SymbolSummary{
			Name:      m.Symbol.Name,
			Kind:      m.Symbol.Kind,
			File:      m.Path,
			Container: m.Symbol.ContainerName,
		})
	}
	return out
}

// GetFileContent fetches the raw content of a file, caching it like any other result
func (s *Searcher) GetFileContent(ctx context.Context, repo, path, rev string) (*types.FileContent, error) {
	params := map[string]any{"repo": repo, "path": path, "rev": rev}
	return run(ctx, s, OpGetFileContent, params, func(ctx context.Context) (*types.FileContent, error) {
		if strings.TrimSpace(repo) == "" {
			return nil, types.ErrEmptyRepo
		}
		if strings.TrimSpace(path) == "" {
			return nil, types.ErrEmptyPath
		}

		content, err := s.transport.Raw(ctx, repo, path, rev, s.opts.Timeout)
		if err != nil {
			return nil, err
		}
		return &types.FileContent{Repository: repo, Path: path, Revision: rev, Content: content}, nil
	})
}
