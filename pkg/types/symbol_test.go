package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCodeType(t *testing.T) {
	tests := map[string]CodeType{
		"class":    CodeTypeClass,
		" Struct ": CodeTypeClass,
		"trait":    CodeTypeInterface,
		"func":     CodeTypeFunction,
		"METHOD":   CodeTypeMethod,
		"let":      CodeTypeVariable,
		"const":    CodeTypeConstant,
		"widget":   CodeType("widget"),
		"":         CodeType(""),
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseCodeType(in), "input %q", in)
	}
}

func TestSymbolKinds(t *testing.T) {
	assert.Equal(t, []SymbolKind{KindClass, KindInterface, KindStruct}, CodeTypeClass.SymbolKinds())
	assert.Equal(t, CodeTypeClass.SymbolKinds(), CodeTypeInterface.SymbolKinds())
	assert.Equal(t, []SymbolKind{KindFunction, KindMethod}, CodeTypeMethod.SymbolKinds())
	assert.Equal(t, []SymbolKind{KindVariable, KindConstant, KindField}, CodeTypeConstant.SymbolKinds())
	assert.Nil(t, CodeType("").SymbolKinds())
	assert.Nil(t, ParseCodeType("widget").SymbolKinds())
}

func TestLocationKey(t *testing.T) {
	a := Match{Repository: "github.com/acme/api", Path: "log.go", LineNumber: 1}
	b := Match{Repository: "github.com/acme/api", Path: "log.go", LineNumber: 40}
	c := Match{Repository: "github.com/acme/web", Path: "log.go"}

	assert.Equal(t, a.LocationKey(), b.LocationKey())
	assert.NotEqual(t, a.LocationKey(), c.LocationKey())
}
