package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// readOnlyAnnotation marks tools that only query the index
var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(true),
}

var codeTypes = []string{"class", "interface", "function", "method", "variable", "constant"}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func codeTypeProp() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Kind of code being written; selects which symbol kinds count as a match",
		"enum":        codeTypes,
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Run a raw code search against the remote index (literal or regular expression)",
		Annotations: readOnlyAnnotation,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": stringProp("Search query in the service's query syntax"),
				"pattern_type": map[string]interface{}{
					"type":        "string",
					"description": "How the query pattern is interpreted",
					"enum":        []string{"literal", "regexp"},
					"default":     "literal",
				},
				"count": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of matches to return",
					"default":     50,
					"minimum":     1,
					"maximum":     1000,
				},
			},
			Required: []string{"query"},
		},
	}
}

// findDuplicatesTool returns the tool definition for find_duplicates
func findDuplicatesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_duplicates",
		Description: "Find existing declarations of a name, grouped by repository and file",
		Annotations: readOnlyAnnotation,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"type": codeTypeProp(),
				"name": stringProp("Name of the class, function or variable"),
			},
			Required: []string{"type", "name"},
		},
	}
}

// checkSymbolExistsTool returns the tool definition for check_symbol_exists
func checkSymbolExistsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "check_symbol_exists",
		Description: "Check whether a symbol is already declared and list where",
		Annotations: readOnlyAnnotation,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": stringProp("Exact symbol name"),
				"type": codeTypeProp(),
			},
			Required: []string{"name"},
		},
	}
}

// findSimilarImplementationsTool returns the tool definition for find_similar_implementations
func findSimilarImplementationsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_similar_implementations",
		Description: "Find implementations sharing the name of a function signature",
		Annotations: readOnlyAnnotation,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"signature": stringProp("Function or method signature, e.g. \"func Parse(data []byte) error\""),
			},
			Required: []string{"signature"},
		},
	}
}

// findPatternsTool returns the tool definition for find_patterns
func findPatternsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_patterns",
		Description: "Find every line matching a regular expression, optionally limited to a file glob",
		Annotations: readOnlyAnnotation,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"pattern":     stringProp("Regular expression"),
				"file_filter": stringProp("File glob such as \"*.go\" or \"src/**/*.ts\""),
			},
			Required: []string{"pattern"},
		},
	}
}

// findImportsTool returns the tool definition for find_imports
func findImportsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_imports",
		Description: "Find where a library is imported, across Go, JavaScript, TypeScript, Python, Java, C, Rust, Ruby and PHP",
		Annotations: readOnlyAnnotation,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"library": stringProp("Library or module name"),
			},
			Required: []string{"library"},
		},
	}
}

// analyzeCodeStructureTool returns the tool definition for analyze_code_structure
func analyzeCodeStructureTool() mcp.Tool {
	return mcp.Tool{
		Name:        "analyze_code_structure",
		Description: "List the classes, functions, interfaces, files and languages of a repository",
		Annotations: readOnlyAnnotation,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repo": stringProp("Repository name, e.g. github.com/acme/api"),
			},
			Required: []string{"repo"},
		},
	}
}

// getFileContentTool returns the tool definition for get_file_content
func getFileContentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_file_content",
		Description: "Fetch the raw content of a file from the index",
		Annotations: readOnlyAnnotation,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repo": stringProp("Repository name"),
				"path": stringProp("File path within the repository"),
				"rev":  stringProp("Revision; defaults to the default branch"),
			},
			Required: []string{"repo", "path"},
		},
	}
}

const mandatoryAnalysisDescription = "Run duplicate, existence, similarity and pattern checks for a new symbol " +
	"and decide whether it may be created. Call before writing any new class, function or variable."

// performMandatoryAnalysisTool returns the tool definition for perform_mandatory_analysis
func performMandatoryAnalysisTool() mcp.Tool {
	return mcp.Tool{
		Name:        "perform_mandatory_analysis",
		Description: mandatoryAnalysisDescription,
		Annotations: readOnlyAnnotation,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"type": codeTypeProp(),
				"name": stringProp("Name of the symbol about to be created"),
			},
			Required: []string{"type", "name"},
		},
	}
}

// cacheStatsTool returns the tool definition for cache_stats
func cacheStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cache_stats",
		Description: "Report result cache hits, misses, evictions and size",
		Annotations: readOnlyAnnotation,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// clearCacheTool returns the tool definition for clear_cache
func clearCacheTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_cache",
		Description: "Drop every cached search result",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// recentIncidentsTool returns the tool definition for recent_incidents
func recentIncidentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "recent_incidents",
		Description: "List recently captured errors, newest first, with remediation hints",
		Annotations: readOnlyAnnotation,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"component":      stringProp("Only incidents from this component (transport, cache, searcher, analyzer)"),
				"correlation_id": stringProp("Only incidents for this correlation ID"),
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of incidents to return",
					"default":     20,
					"minimum":     1,
					"maximum":     200,
				},
			},
		},
	}
}
