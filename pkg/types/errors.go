package types

import "errors"

// Domain errors for request validation
var (
	ErrEmptyQuery     = errors.New("query cannot be empty")
	ErrEmptyName      = errors.New("symbol name cannot be empty")
	ErrEmptySignature = errors.New("signature cannot be empty")
	ErrEmptyRepo      = errors.New("repository cannot be empty")
	ErrEmptyPath      = errors.New("file path cannot be empty")
	ErrEmptyLibrary   = errors.New("library name cannot be empty")
)

// ErrMissingToken is returned wherever a search service access token is
// required but not configured
var ErrMissingToken = errors.New("search service access token is required")
