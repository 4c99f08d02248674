package types

import "strings"

// SymbolKind is the symbol kind reported by the search service
type SymbolKind string

const (
	KindClass     SymbolKind = "class"
	KindInterface SymbolKind = "interface"
	KindStruct    SymbolKind = "struct"
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindVariable  SymbolKind = "variable"
	KindConstant  SymbolKind = "constant"
	KindField     SymbolKind = "field"
	KindFile      SymbolKind = "file"
)

// CodeType is the caller-facing category of code about to be written
type CodeType string

const (
	CodeTypeClass     CodeType = "class"
	CodeTypeInterface CodeType = "interface"
	CodeTypeFunction  CodeType = "function"
	CodeTypeMethod    CodeType = "method"
	CodeTypeVariable  CodeType = "variable"
	CodeTypeConstant  CodeType = "constant"
)

// ParseCodeType normalizes a free-form code type. Unknown values are returned
// as-is so callers can still run an unscoped symbol query.
func ParseCodeType(s string) CodeType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "class", "struct", "type":
		return CodeTypeClass
	case "interface", "trait", "protocol":
		return CodeTypeInterface
	case "function", "func":
		return CodeTypeFunction
	case "method":
		return CodeTypeMethod
	case "variable", "var", "let", "field", "property":
		return CodeTypeVariable
	case "constant", "const":
		return CodeTypeConstant
	default:
		return CodeType(strings.ToLower(strings.TrimSpace(s)))
	}
}

// SymbolKinds returns the symbol kinds a declaration of this code type may
// appear as. Class-like and function-like types cover their sibling kinds so a
// struct named Foo counts as a duplicate of a class named Foo.
func (c CodeType) SymbolKinds() []SymbolKind {
	switch c {
	case CodeTypeClass, CodeTypeInterface:
		return []SymbolKind{KindClass, KindInterface, KindStruct}
	case CodeTypeFunction, CodeTypeMethod:
		return []SymbolKind{KindFunction, KindMethod}
	case CodeTypeVariable, CodeTypeConstant:
		return []SymbolKind{KindVariable, KindConstant, KindField}
	default:
		return nil
	}
}

// SymbolInfo is the symbol metadata attached to a symbol-scoped match
type SymbolInfo struct {
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	ContainerName string `json:"containerName,omitempty"`
}
