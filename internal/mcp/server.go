package mcp

import (
	"context"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/codeguard-mcp/internal/cache"
	"github.com/dshills/codeguard-mcp/internal/logging"
	"github.com/dshills/codeguard-mcp/internal/searcher"
	"github.com/dshills/codeguard-mcp/internal/storage"
	"github.com/dshills/codeguard-mcp/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "codeguard-mcp"
)

// Service is the client surface exposed as tools
type Service interface {
	SearchCode(ctx context.Context, query string, opts searcher.SearchOptions) (*types.SearchResult, error)
	FindDuplicates(ctx context.Context, codeType, name string) (*types.DuplicateFinding, error)
	CheckSymbolExists(ctx context.Context, name, codeType string) (*types.SymbolExistence, error)
	FindSimilarImplementations(ctx context.Context, signature string) (*types.SimilarImplementations, error)
	FindPatterns(ctx context.Context, pattern, fileFilter string) (*types.PatternFindings, error)
	FindImports(ctx context.Context, library string) (*types.ImportUsage, error)
	AnalyzeCodeStructure(ctx context.Context, repo string) (*types.CodeStructure, error)
	GetFileContent(ctx context.Context, repo, path, rev string) (*types.FileContent, error)
	PerformMandatoryAnalysis(ctx context.Context, codeType, codeName string) (*types.AnalysisReport, error)
	CacheStats() cache.Stats
	ClearCache() int
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	client    Service
	incidents storage.Incidents // nil when the incident store is disabled
	logger    *zap.Logger
}

// NewServer creates a new MCP server instance. incidents may be nil.
func NewServer(client Service, incidents storage.Incidents, logger *zap.Logger, version string) *Server {
	mcpServer := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcp:       mcpServer,
		client:    client,
		incidents: incidents,
		logger:    logging.Component(logger, "mcp"),
	}

	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	return s.ServeIO(ctx, os.Stdin, os.Stdout)
}

// ServeIO runs the MCP server over the given streams
func (s *Server) ServeIO(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	s.logger.Info("serving MCP on stdio")
	return stdio.Listen(ctx, in, out)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	// Search operations
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(findDuplicatesTool(), s.handleFindDuplicates)
	s.mcp.AddTool(checkSymbolExistsTool(), s.handleCheckSymbolExists)
	s.mcp.AddTool(findSimilarImplementationsTool(), s.handleFindSimilarImplementations)
	s.mcp.AddTool(findPatternsTool(), s.handleFindPatterns)
	s.mcp.AddTool(findImportsTool(), s.handleFindImports)
	s.mcp.AddTool(analyzeCodeStructureTool(), s.handleAnalyzeCodeStructure)
	s.mcp.AddTool(getFileContentTool(), s.handleGetFileContent)

	// Composite verdict
	s.mcp.AddTool(performMandatoryAnalysisTool(), s.handlePerformMandatoryAnalysis)

	// Administration
	s.mcp.AddTool(cacheStatsTool(), s.handleCacheStats)
	s.mcp.AddTool(clearCacheTool(), s.handleClearCache)
	if s.incidents != nil {
		s.mcp.AddTool(recentIncidentsTool(), s.handleRecentIncidents)
	}
}
