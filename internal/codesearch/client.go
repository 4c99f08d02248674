// Package codesearch is the lifecycle owner for the search stack. A Client
// owns one transport, one result cache with its sweep goroutine, the search
// operations and the composite analyzer. Create it once, share it, and Close
// it on shutdown.
package codesearch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/codeguard-mcp/internal/analyzer"
	"github.com/dshills/codeguard-mcp/internal/cache"
	"github.com/dshills/codeguard-mcp/internal/config"
	"github.com/dshills/codeguard-mcp/internal/incident"
	"github.com/dshills/codeguard-mcp/internal/logging"
	"github.com/dshills/codeguard-mcp/internal/searcher"
	"github.com/dshills/codeguard-mcp/internal/transport"
	"github.com/dshills/codeguard-mcp/pkg/types"
)

// Option customizes a Client
type Option func(*options)

type options struct {
	reporter   incident.Reporter
	httpClient *http.Client
	now        func() time.Time
	version    string
}

// WithReporter sets the error-tracking sink. Defaults to logging captured errors.
func WithReporter(r incident.Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// WithHTTPClient sets the HTTP client used by the transport
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithClock sets the cache clock
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithVersion is reported in the User-Agent header
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// Client is the entry point for search operations and mandatory analysis
type Client struct {
	transport *transport.Client
	cache     *cache.Cache
	searcher  *searcher.Searcher
	analyzer  *analyzer.Analyzer
	logger    *zap.Logger

	closeOnce sync.Once
}

// New validates cfg and builds the client. The cache sweep starts immediately.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := options{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.reporter == nil {
		o.reporter = incident.NewLogReporter(logger)
	}

	tr, err := transport.New(transport.Options{
		BaseURL:    cfg.Endpoint,
		Token:      cfg.Token,
		HTTPClient: o.httpClient,
		Retry: transport.RetryConfig{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
			MaxDelay:   cfg.Retry.MaxDelay,
			Multiplier: transport.BackoffMultiplier,
		},
		UserAgent: "codeguard-mcp/" + o.version,
		Logger:    logger,
		Reporter:  o.reporter,
	})
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	c := cache.New(cache.Options{
		TTL:             cfg.Cache.TTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
		MaxEntries:      cfg.Cache.MaxEntries,
		Now:             o.now,
		Logger:          logger,
		Reporter:        o.reporter,
	})

	s := searcher.New(tr, c, searcher.Options{
		DefaultCount:   cfg.Search.DefaultCount,
		SymbolPageSize: cfg.Search.SymbolPageSize,
		Timeout:        cfg.Search.Timeout,
		Logger:         logger,
		Reporter:       o.reporter,
	})

	a := analyzer.New(s, analyzer.Options{
		Policy: &analyzer.Policy{
			MaxDuplicateLocations:  cfg.Policy.MaxDuplicateLocations,
			MaxSymbolLocations:     cfg.Policy.MaxSymbolLocations,
			SimilarReviewThreshold: cfg.Policy.SimilarReviewThreshold,
		},
		Logger:   logger,
		Reporter: o.reporter,
	})

	c.Start()

	client := &Client{
		transport: tr,
		cache:     c,
		searcher:  s,
		analyzer:  a,
		logger:    logging.Component(logger, "codesearch"),
	}
	client.logger.Info("client ready",
		zap.String("endpoint", tr.Endpoint()),
		zap.Duration("cacheTTL", c.TTL()),
		zap.Duration("cleanupInterval", cfg.Cache.CleanupInterval),
	)
	return client, nil
}

// Endpoint returns the search service base URL
func (c *Client) Endpoint() string {
	return c.transport.Endpoint()
}

// Policy returns the analysis thresholds in effect
func (c *Client) Policy() analyzer.Policy {
	return c.analyzer.Policy()
}

func (c *Client) SearchCode(ctx context.Context, query string, opts searcher.SearchOptions) (*types.SearchResult, error) {
	return c.searcher.SearchCode(ctx, query, opts)
}

func (c *Client) FindDuplicates(ctx context.Context, codeType, name string) (*types.DuplicateFinding, error) {
	return c.searcher.FindDuplicates(ctx, codeType, name)
}

func (c *Client) CheckSymbolExists(ctx context.Context, name, codeType string) (*types.SymbolExistence, error) {
	return c.searcher.CheckSymbolExists(ctx, name, codeType)
}

func (c *Client) FindSimilarImplementations(ctx context.Context, signature string) (*types.SimilarImplementations, error) {
	return c.searcher.FindSimilarImplementations(ctx, signature)
}

func (c *Client) FindPatterns(ctx context.Context, pattern, fileFilter string) (*types.PatternFindings, error) {
	return c.searcher.FindPatterns(ctx, pattern, fileFilter)
}

func (c *Client) FindImports(ctx context.Context, library string) (*types.ImportUsage, error) {
	return c.searcher.FindImports(ctx, library)
}

func (c *Client) AnalyzeCodeStructure(ctx context.Context, repo string) (*types.CodeStructure, error) {
	return c.searcher.AnalyzeCodeStructure(ctx, repo)
}

func (c *Client) GetFileContent(ctx context.Context, repo, path, rev string) (*types.FileContent, error) {
	return c.searcher.GetFileContent(ctx, repo, path, rev)
}

// PerformMandatoryAnalysis decides whether codeName of kind codeType may be created
func (c *Client) PerformMandatoryAnalysis(ctx context.Context, codeType, codeName string) (*types.AnalysisReport, error) {
	return c.analyzer.Analyze(ctx, codeType, codeName)
}

// CacheStats returns the cache counters
func (c *Client) CacheStats() cache.Stats {
	return c.cache.Stats()
}

// ClearCache drops every cached result and returns how many were removed
func (c *Client) ClearCache() int {
	n := c.cache.Clear()
	c.logger.Info("cache cleared", zap.Int("removed", n))
	return n
}

// Close stops the cache sweep and releases cached results. In-flight
// requests are not interrupted. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cache.Close()
		c.logger.Info("client closed")
	})
	return nil
}
