package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/codeguard-mcp/internal/searcher"
	"github.com/dshills/codeguard-mcp/internal/storage"
	"github.com/dshills/codeguard-mcp/internal/transport"
	"github.com/dshills/codeguard-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeSearchFailed  = -32001 // The search service call failed
	ErrorCodeUnauthorized  = -32002 // The search service rejected the access token
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

const defaultIncidentLimit = 20

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query := strings.TrimSpace(getStringDefault(args, "query", ""))
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	patternType := transport.PatternType(getStringDefault(args, "pattern_type", string(transport.PatternLiteral)))
	if patternType != transport.PatternLiteral && patternType != transport.PatternRegexp {
		return nil, newMCPError(ErrorCodeInvalidParams, "pattern_type must be literal or regexp", map[string]interface{}{
			"param": "pattern_type",
			"value": string(patternType),
		})
	}

	count := getIntDefault(args, "count", searcher.DefaultCount)
	if count < 1 || count > 1000 {
		return nil, newMCPError(ErrorCodeInvalidParams, "count must be between 1 and 1000", map[string]interface{}{
			"param": "count",
			"value": count,
		})
	}

	result, err := s.client.SearchCode(ctx, query, searcher.SearchOptions{Count: count, PatternType: patternType})
	if err != nil {
		return nil, s.operationError("search_code", err)
	}
	return respond(result)
}

// handleFindDuplicates handles the find_duplicates tool invocation
func (s *Server) handleFindDuplicates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	codeType, err := requireCodeType(args, "type")
	if err != nil {
		return nil, err
	}
	name, err := requireString(args, "name")
	if err != nil {
		return nil, err
	}

	result, err := s.client.FindDuplicates(ctx, codeType, name)
	if err != nil {
		return nil, s.operationError("find_duplicates", err)
	}
	return respond(result)
}

// handleCheckSymbolExists handles the check_symbol_exists tool invocation
func (s *Server) handleCheckSymbolExists(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, err := requireString(args, "name")
	if err != nil {
		return nil, err
	}
	codeType := getStringDefault(args, "type", "")
	if codeType != "" && !knownCodeType(codeType) {
		return nil, invalidCodeType("type", codeType)
	}

	result, err := s.client.CheckSymbolExists(ctx, name, codeType)
	if err != nil {
		return nil, s.operationError("check_symbol_exists", err)
	}
	return respond(result)
}

// handleFindSimilarImplementations handles the find_similar_implementations tool invocation
func (s *Server) handleFindSimilarImplementations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	signature, err := requireString(args, "signature")
	if err != nil {
		return nil, err
	}

	result, err := s.client.FindSimilarImplementations(ctx, signature)
	if err != nil {
		return nil, s.operationError("find_similar_implementations", err)
	}
	return respond(result)
}

// handleFindPatterns handles the find_patterns tool invocation
func (s *Server) handleFindPatterns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	pattern, err := requireString(args, "pattern")
	if err != nil {
		return nil, err
	}

	result, err := s.client.FindPatterns(ctx, pattern, getStringDefault(args, "file_filter", ""))
	if err != nil {
		return nil, s.operationError("find_patterns", err)
	}
	return respond(result)
}

// handleFindImports handles the find_imports tool invocation
func (s *Server) handleFindImports(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	library, err := requireString(args, "library")
	if err != nil {
		return nil, err
	}

	result, err := s.client.FindImports(ctx, library)
	if err != nil {
		return nil, s.operationError("find_imports", err)
	}
	return respond(result)
}

// handleAnalyzeCodeStructure handles the analyze_code_structure tool invocation
func (s *Server) handleAnalyzeCodeStructure(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repo, err := requireString(args, "repo")
	if err != nil {
		return nil, err
	}

	result, err := s.client.AnalyzeCodeStructure(ctx, repo)
	if err != nil {
		return nil, s.operationError("analyze_code_structure", err)
	}
	return respond(result)
}

// handleGetFileContent handles the get_file_content tool invocation
func (s *Server) handleGetFileContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repo, err := requireString(args, "repo")
	if err != nil {
		return nil, err
	}
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}

	result, err := s.client.GetFileContent(ctx, repo, path, getStringDefault(args, "rev", ""))
	if err != nil {
		return nil, s.operationError("get_file_content", err)
	}
	return mcp.NewToolResultText(result.Content), nil
}

// handlePerformMandatoryAnalysis handles the perform_mandatory_analysis tool invocation
func (s *Server) handlePerformMandatoryAnalysis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	codeType, err := requireCodeType(args, "type")
	if err != nil {
		return nil, err
	}
	name, err := requireString(args, "name")
	if err != nil {
		return nil, err
	}

	report, err := s.client.PerformMandatoryAnalysis(ctx, codeType, name)
	if err != nil {
		return nil, s.operationError("perform_mandatory_analysis", err)
	}
	return respond(report)
}

// handleCacheStats handles the cache_stats tool invocation
func (s *Server) handleCacheStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := s.client.CacheStats()
	return respond(map[string]interface{}{
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"evictions": stats.Evictions,
		"entries":   stats.Entries,
		"hit_ratio": stats.HitRatio(),
	})
}

// handleClearCache handles the clear_cache tool invocation
func (s *Server) handleClearCache(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(map[string]interface{}{
		"cleared": s.client.ClearCache(),
	})
}

// handleRecentIncidents handles the recent_incidents tool invocation
func (s *Server) handleRecentIncidents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		// No arguments at all is a valid call
		args = map[string]interface{}{}
	}

	limit := getIntDefault(args, "limit", defaultIncidentLimit)
	if limit < 1 || limit > 200 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 200", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	incidents, err := s.incidents.ListIncidents(ctx, storage.IncidentFilter{
		Component:     getStringDefault(args, "component", ""),
		CorrelationID: getStringDefault(args, "correlation_id", ""),
		Limit:         limit,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list incidents", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return respond(map[string]interface{}{
		"count":     len(incidents),
		"incidents": incidents,
	})
}

// operationError maps a client error to an MCP error carrying the remediation hint
func (s *Server) operationError(tool string, err error) error {
	s.logger.Warn("tool call failed", zap.String("tool", tool), zap.Error(err))

	data := map[string]interface{}{
		"error": err.Error(),
	}
	if hint := transport.Hint(err); hint != "" {
		data["hint"] = hint
	}

	switch {
	case errors.Is(err, types.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, tool+": query is empty", data)
	case errors.Is(err, types.ErrEmptyName), errors.Is(err, types.ErrEmptySignature),
		errors.Is(err, types.ErrEmptyRepo), errors.Is(err, types.ErrEmptyPath),
		errors.Is(err, types.ErrEmptyLibrary):
		return newMCPError(ErrorCodeInvalidParams, tool+": invalid parameters", data)
	}

	var statusErr *transport.StatusError
	if errors.As(err, &statusErr) && (statusErr.StatusCode == 401 || statusErr.StatusCode == 403) {
		return newMCPError(ErrorCodeUnauthorized, tool+": search service rejected the request", data)
	}
	return newMCPError(ErrorCodeSearchFailed, tool+" failed", data)
}

func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requireString extracts a non-empty string parameter
func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || strings.TrimSpace(val) == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

// requireCodeType extracts a required code type parameter
func requireCodeType(args map[string]interface{}, key string) (string, error) {
	val, err := requireString(args, key)
	if err != nil {
		return "", err
	}
	if !knownCodeType(val) {
		return "", invalidCodeType(key, val)
	}
	return val, nil
}

func knownCodeType(val string) bool {
	return len(types.ParseCodeType(val).SymbolKinds()) > 0
}

func invalidCodeType(key, val string) error {
	return newMCPError(ErrorCodeInvalidParams, "unknown code type", map[string]interface{}{
		"param":   key,
		"value":   val,
		"allowed": codeTypes,
	})
}

// respond encodes v as an indented JSON text result
func respond(v interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatJSON(v)), nil
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
