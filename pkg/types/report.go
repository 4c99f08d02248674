package types

import "time"

// AnalysisChecks holds the sub-results a report was derived from
type AnalysisChecks struct {
	Duplicates             *DuplicateFinding       `json:"duplicates"`
	SymbolExists           *SymbolExistence        `json:"symbolExists"`
	SimilarImplementations *SimilarImplementations `json:"similarImplementations"`
	Patterns               *PatternFindings        `json:"patterns"`
}

// AnalysisReport is the verdict on introducing a new symbol
type AnalysisReport struct {
	CodeType        string         `json:"codeType"`
	CodeName        string         `json:"codeName"`
	Checks          AnalysisChecks `json:"checks"`
	Warnings        []string       `json:"warnings"`
	Recommendations []string       `json:"recommendations"`
	CanProceed      bool           `json:"canProceed"`
	CorrelationID   string         `json:"correlationId"`
	Timestamp       time.Time      `json:"timestamp"`
}
