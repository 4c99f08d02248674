// Package types provides shared type definitions for the codeguard client.
//
// These are the values that flow between the search operations, the cache and
// the composite analyzer, and that are handed back to callers.
//
// # Matches
//
// Match is one located occurrence returned by the remote search service. A
// match may be line-scoped (LineNumber and Preview are set) or symbol-scoped
// (Symbol is set):
//
//	m := types.Match{
//	    Repository: "github.com/acme/api",
//	    Path:       "internal/log/logger.go",
//	    Symbol:     &types.SymbolInfo{Name: "createLogger", Kind: "function"},
//	}
//
// # Operation Results
//
// Each search operation shapes raw matches into its own result type:
//
//	SearchResult            // SearchCode
//	DuplicateFinding        // FindDuplicates
//	SymbolExistence         // CheckSymbolExists
//	SimilarImplementations  // FindSimilarImplementations
//	PatternFindings         // FindPatterns
//	ImportUsage             // FindImports
//	CodeStructure           // AnalyzeCodeStructure
//	FileContent             // GetFileContent
//
// Results are shared with the cache once returned and must be treated as
// read-only by callers.
//
// # Analysis Reports
//
// AnalysisReport aggregates four of the results above into a single verdict
// for a candidate symbol. CanProceed is false when the symbol already exists in
// too many places.
package types
