// Package mcp exposes the code search client as Model Context Protocol tools.
//
// Agents call perform_mandatory_analysis before writing a new class, function
// or variable, and the individual search tools when they need the underlying
// evidence. Every tool returns machine-readable JSON.
//
// # Tools
//
//   - search_code: raw literal or regexp search
//   - find_duplicates: existing declarations of a name, grouped by file
//   - check_symbol_exists: whether a symbol is declared, and where
//   - find_similar_implementations: symbols sharing a signature's name
//   - find_patterns: line matches for a regexp, optionally by file glob
//   - find_imports: import sites of a library across ecosystems
//   - analyze_code_structure: classes, functions, interfaces and files of a repository
//   - get_file_content: raw file content
//   - perform_mandatory_analysis: the combined verdict with warnings and recommendations
//   - cache_stats, clear_cache: result cache administration
//   - recent_incidents: captured errors, when the incident store is enabled
//
// # Errors
//
// Failures are returned as MCPError values. Search service failures use
// ErrorCodeSearchFailed, or ErrorCodeUnauthorized for 401/403 responses, and
// carry the remediation hint in their data:
//
//	{"error": "search.stream failed after 1 attempt(s): ...", "hint": "check SRC_ACCESS_TOKEN"}
package mcp
