package types

import "time"

// Match represents one hit from the remote search service
type Match struct {
	Repository       string      `json:"repository"`
	Path             string      `json:"path"`
	LineNumber       int         `json:"lineNumber,omitempty"` // 1-based, 0 when not line-scoped
	Preview          string      `json:"preview,omitempty"`
	OffsetAndLengths [][2]int    `json:"offsetAndLengths,omitempty"`
	Language         string      `json:"language,omitempty"`
	Symbol           *SymbolInfo `json:"symbol,omitempty"`
}

// LocationKey identifies the file a match belongs to
func (m Match) LocationKey() string {
	return m.Repository + ":" + m.Path
}

// SearchResult is the shaped output of a raw code search
type SearchResult struct {
	Query       string    `json:"query"`
	Results     []Match   `json:"results"`
	ResultCount int       `json:"resultCount"`
	Timestamp   time.Time `json:"timestamp"`
}

// Location is a single repository/file/line position
type Location struct {
	Repository string `json:"repository"`
	File       string `json:"file"`
	Line       int    `json:"line,omitempty"`
}

// DuplicateFinding reports existing declarations of a name
type DuplicateFinding struct {
	Type           string     `json:"type"`
	Name           string     `json:"name"`
	IsDuplicate    bool       `json:"isDuplicate"`
	DuplicateCount int        `json:"duplicateCount"`
	Locations      []Location `json:"locations"`
}

// SymbolExistence reports whether a symbol is already defined
type SymbolExistence struct {
	SymbolName    string     `json:"symbolName"`
	Exists        bool       `json:"exists"`
	LocationCount int        `json:"locationCount"`
	Locations     []Location `json:"locations"`
}

// Implementation is a symbol that shares a name with a candidate signature
type Implementation struct {
	Repository string `json:"repository"`
	File       string `json:"file"`
	Name       string `json:"name"`
	Kind       string `json:"kind,omitempty"`
	Container  string `json:"container,omitempty"`
}

// SimilarImplementations lists symbols matching a signature's name
type SimilarImplementations struct {
	Signature       string           `json:"signature"`
	FunctionName    string           `json:"functionName"`
	Count           int              `json:"count"`
	Implementations []Implementation `json:"implementations"`
}

// PatternMatch is one line-level regular expression hit
type PatternMatch struct {
	Repository string   `json:"repository"`
	File       string   `json:"file"`
	Line       int      `json:"line,omitempty"`
	Preview    string   `json:"preview,omitempty"`
	Offsets    [][2]int `json:"offsets,omitempty"`
}

// PatternFindings lists every line matching a pattern
type PatternFindings struct {
	Pattern    string         `json:"pattern"`
	FileFilter string         `json:"fileFilter,omitempty"`
	Count      int            `json:"count"`
	Matches    []PatternMatch `json:"matches"`
}

// ImportLine is a single import statement within a file
type ImportLine struct {
	Line    int    `json:"line,omitempty"`
	Preview string `json:"preview,omitempty"`
}

// ImportFile groups the import statements found in one file
type ImportFile struct {
	Repository string       `json:"repository"`
	File       string       `json:"file"`
	Lines      []ImportLine `json:"lines"`
}

// ImportUsage reports where a library is imported, grouped by file
type ImportUsage struct {
	Library      string       `json:"library"`
	TotalMatches int          `json:"totalMatches"`
	Files        []ImportFile `json:"files"`
}

// SymbolSummary is a declared symbol inside a repository
type SymbolSummary struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	File      string `json:"file"`
	Container string `json:"container,omitempty"`
}

// FileSummary is a file inside a repository
type FileSummary struct {
	Path     string `json:"path"`
	Language string `json:"language,omitempty"`
}

// StructureCounts holds per-kind totals for a repository
type StructureCounts struct {
	Classes    int `json:"classes"`
	Functions  int `json:"functions"`
	Interfaces int `json:"interfaces"`
	Files      int `json:"files"`
}

// CodeStructure summarizes the declarations of a repository
type CodeStructure struct {
	Repository string          `json:"repository"`
	Classes    []SymbolSummary `json:"classes"`
	Functions  []SymbolSummary `json:"functions"`
	Interfaces []SymbolSummary `json:"interfaces"`
	Files      []FileSummary   `json:"files"`
	Counts     StructureCounts `json:"counts"`
	Languages  []string        `json:"languages"`
}

// FileContent is the raw content of a file at a revision
type FileContent struct {
	Repository string `json:"repository"`
	Path       string `json:"path"`
	Revision   string `json:"revision,omitempty"`
	Content    string `json:"content"`
}
