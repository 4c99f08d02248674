package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeguard-mcp/internal/cache"
	"github.com/dshills/codeguard-mcp/internal/searcher"
	"github.com/dshills/codeguard-mcp/internal/storage"
	"github.com/dshills/codeguard-mcp/internal/transport"
	"github.com/dshills/codeguard-mcp/pkg/types"
)

// fakeService records calls and returns canned results
type fakeService struct {
	err        error
	lastArgs   []string
	searchOpts searcher.SearchOptions
	cleared    int
}

func (f *fakeService) SearchCode(_ context.Context, query string, opts searcher.SearchOptions) (*types.SearchResult, error) {
	f.lastArgs = []string{query}
	f.searchOpts = opts
	return &types.SearchResult{Query: query}, f.err
}

func (f *fakeService) FindDuplicates(_ context.Context, codeType, name string) (*types.DuplicateFinding, error) {
	f.lastArgs = []string{codeType, name}
	return &types.DuplicateFinding{Type: codeType, Name: name}, f.err
}

func (f *fakeService) CheckSymbolExists(_ context.Context, name, codeType string) (*types.SymbolExistence, error) {
	f.lastArgs = []string{name, codeType}
	return &types.SymbolExistence{SymbolName: name, Exists: true, LocationCount: 1}, f.err
}

func (f *fakeService) FindSimilarImplementations(_ context.Context, signature string) (*types.SimilarImplementations, error) {
	f.lastArgs = []string{signature}
	return &types.SimilarImplementations{Signature: signature}, f.err
}

func (f *fakeService) FindPatterns(_ context.Context, pattern, fileFilter string) (*types.PatternFindings, error) {
	f.lastArgs = []string{pattern, fileFilter}
	return &types.PatternFindings{Pattern: pattern, FileFilter: fileFilter}, f.err
}

func (f *fakeService) FindImports(_ context.Context, library string) (*types.ImportUsage, error) {
	f.lastArgs = []string{library}
	return &types.ImportUsage{Library: library}, f.err
}

func (f *fakeService) AnalyzeCodeStructure(_ context.Context, repo string) (*types.CodeStructure, error) {
	f.lastArgs = []string{repo}
	return &types.CodeStructure{Repository: repo}, f.err
}

func (f *fakeService) GetFileContent(_ context.Context, repo, path, rev string) (*types.FileContent, error) {
	f.lastArgs = []string{repo, path, rev}
	if f.err != nil {
		return nil, f.err
	}
	return &types.FileContent{Repository: repo, Path: path, Content: "package main\n"}, nil
}

func (f *fakeService) PerformMandatoryAnalysis(_ context.Context, codeType, codeName string) (*types.AnalysisReport, error) {
	f.lastArgs = []string{codeType, codeName}
	if f.err != nil {
		return nil, f.err
	}
	return &types.AnalysisReport{CodeType: codeType, CodeName: codeName, CanProceed: true}, nil
}

func (f *fakeService) CacheStats() cache.Stats {
	return cache.Stats{Hits: 3, Misses: 1, Entries: 2}
}

func (f *fakeService) ClearCache() int {
	f.cleared++
	return 2
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func TestHandlePerformMandatoryAnalysis(t *testing.T) {
	svc := &fakeService{}
	s := NewServer(svc, nil, nil, "test")
	ctx := context.Background()

	t.Run("returns the report", func(t *testing.T) {
		result, err := s.handlePerformMandatoryAnalysis(ctx, callRequest("perform_mandatory_analysis", map[string]interface{}{
			"type": "function",
			"name": "createLogger",
		}))
		require.NoError(t, err)

		out := resultJSON(t, result)
		assert.Equal(t, true, out["canProceed"])
		assert.Equal(t, "createLogger", out["codeName"])
		assert.Equal(t, []string{"function", "createLogger"}, svc.lastArgs)
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := s.handlePerformMandatoryAnalysis(ctx, callRequest("perform_mandatory_analysis", map[string]interface{}{
			"type": "function",
		}))
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := s.handlePerformMandatoryAnalysis(ctx, callRequest("perform_mandatory_analysis", map[string]interface{}{
			"type": "widget",
			"name": "x",
		}))
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		_, err := s.handlePerformMandatoryAnalysis(ctx, callRequest("perform_mandatory_analysis", nil))
		assert.Error(t, err)
	})
}

func TestHandleSearchCode(t *testing.T) {
	svc := &fakeService{}
	s := NewServer(svc, nil, nil, "test")
	ctx := context.Background()

	_, err := s.handleSearchCode(ctx, callRequest("search_code", map[string]interface{}{
		"query":        "createLogger",
		"pattern_type": "regexp",
		"count":        float64(25),
	}))
	require.NoError(t, err)
	assert.Equal(t, searcher.SearchOptions{Count: 25, PatternType: transport.PatternRegexp}, svc.searchOpts)

	_, err = s.handleSearchCode(ctx, callRequest("search_code", map[string]interface{}{"query": "  "}))
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeEmptyQuery, mcpErr.Code)

	_, err = s.handleSearchCode(ctx, callRequest("search_code", map[string]interface{}{"query": "x", "pattern_type": "structural"}))
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)

	_, err = s.handleSearchCode(ctx, callRequest("search_code", map[string]interface{}{"query": "x", "count": float64(0)}))
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHandlersPassArguments(t *testing.T) {
	svc := &fakeService{}
	s := NewServer(svc, nil, nil, "test")
	ctx := context.Background()

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]interface{}
		want    []string
	}{
		{"find_duplicates", s.handleFindDuplicates, map[string]interface{}{"type": "class", "name": "Widget"}, []string{"class", "Widget"}},
		{"check_symbol_exists", s.handleCheckSymbolExists, map[string]interface{}{"name": "parse"}, []string{"parse", ""}},
		{"find_similar_implementations", s.handleFindSimilarImplementations, map[string]interface{}{"signature": "func Parse(b []byte)"}, []string{"func Parse(b []byte)"}},
		{"find_patterns", s.handleFindPatterns, map[string]interface{}{"pattern": `log\.`, "file_filter": "*.go"}, []string{`log\.`, "*.go"}},
		{"find_imports", s.handleFindImports, map[string]interface{}{"library": "lodash"}, []string{"lodash"}},
		{"analyze_code_structure", s.handleAnalyzeCodeStructure, map[string]interface{}{"repo": "github.com/acme/api"}, []string{"github.com/acme/api"}},
		{"get_file_content", s.handleGetFileContent, map[string]interface{}{"repo": "r", "path": "main.go"}, []string{"r", "main.go", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.handler(ctx, callRequest(tt.name, tt.args))
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, tt.want, svc.lastArgs)
		})
	}
}

func TestOperationErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unauthorized carries the hint", func(t *testing.T) {
		svc := &fakeService{err: &transport.StatusError{Method: http.MethodGet, Path: transport.StreamPath, StatusCode: http.StatusUnauthorized}}
		s := NewServer(svc, nil, nil, "test")

		_, err := s.handleFindImports(ctx, callRequest("find_imports", map[string]interface{}{"library": "lodash"}))
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrorCodeUnauthorized, mcpErr.Code)
		data := mcpErr.Data.(map[string]interface{})
		assert.NotEmpty(t, data["hint"])
	})

	t.Run("validation error", func(t *testing.T) {
		s := NewServer(&fakeService{err: types.ErrEmptySignature}, nil, nil, "test")
		_, err := s.handleFindSimilarImplementations(ctx, callRequest("find_similar_implementations", map[string]interface{}{"signature": "()"}))
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
	})

	t.Run("service failure", func(t *testing.T) {
		s := NewServer(&fakeService{err: errors.New("connection reset")}, nil, nil, "test")
		_, err := s.handleAnalyzeCodeStructure(ctx, callRequest("analyze_code_structure", map[string]interface{}{"repo": "r"}))
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrorCodeSearchFailed, mcpErr.Code)
	})
}

func TestCacheTools(t *testing.T) {
	svc := &fakeService{}
	s := NewServer(svc, nil, nil, "test")
	ctx := context.Background()

	result, err := s.handleCacheStats(ctx, callRequest("cache_stats", nil))
	require.NoError(t, err)
	out := resultJSON(t, result)
	assert.Equal(t, float64(3), out["hits"])
	assert.Equal(t, 0.75, out["hit_ratio"])

	result, err = s.handleClearCache(ctx, callRequest("clear_cache", nil))
	require.NoError(t, err)
	assert.Equal(t, float64(2), resultJSON(t, result)["cleared"])
	assert.Equal(t, 1, svc.cleared)
}

func TestRecentIncidents(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for _, c := range []string{"transport", "searcher"} {
		require.NoError(t, store.RecordIncident(ctx, &storage.Incident{Component: c, Operation: "op", Message: "failed"}))
	}

	s := NewServer(&fakeService{}, store, nil, "test")

	result, err := s.handleRecentIncidents(ctx, callRequest("recent_incidents", map[string]interface{}{"component": "transport"}))
	require.NoError(t, err)
	out := resultJSON(t, result)
	assert.Equal(t, float64(1), out["count"])

	result, err = s.handleRecentIncidents(ctx, callRequest("recent_incidents", nil))
	require.NoError(t, err)
	assert.Equal(t, float64(2), resultJSON(t, result)["count"])
}

func TestToolRegistration(t *testing.T) {
	listTools := func(s *Server) string {
		msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
		resp := s.mcp.HandleMessage(context.Background(), msg)
		data, err := json.Marshal(resp)
		require.NoError(t, err)
		return string(data)
	}

	without := listTools(NewServer(&fakeService{}, nil, nil, "test"))
	assert.Contains(t, without, "perform_mandatory_analysis")
	assert.Contains(t, without, "find_imports")
	assert.NotContains(t, without, "recent_incidents")

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()

	with := listTools(NewServer(&fakeService{}, store, nil, "test"))
	assert.Contains(t, with, "recent_incidents")
}
