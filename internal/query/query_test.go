package query

import (
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/dshills/codeguard-mcp/pkg/types"
)

func TestSymbol(t *testing.T) {
	tests := []struct {
		name     string
		codeType types.CodeType
		symbol   string
		want     Canonical
	}{
		{
			name:     "function covers methods",
			codeType: types.CodeTypeFunction,
			symbol:   "createLogger",
			want: Canonical{
				Query:  "type:symbol ^createLogger$",
				Regexp: true,
				Kinds:  []types.SymbolKind{types.KindFunction, types.KindMethod},
			},
		},
		{
			name:     "unknown type is unscoped",
			codeType: types.CodeType("widget"),
			symbol:   "Foo",
			want:     Canonical{Query: "type:symbol ^Foo$", Regexp: true},
		},
		{
			name:     "name is escaped",
			codeType: "",
			symbol:   "$scope.apply",
			want:     Canonical{Query: `type:symbol ^\$scope\.apply$`, Regexp: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Duplicates(tt.codeType, tt.symbol)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Duplicates() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSymbolSingleKindUsesSelect(t *testing.T) {
	got := Symbol("Foo", []types.SymbolKind{types.KindInterface})
	assert.Equal(t, "type:symbol select:symbol.interface ^Foo$", got.Query)
}

func TestPattern(t *testing.T) {
	assert.Equal(t, Canonical{Query: `TODO\(\w+\)`, Regexp: true}, Pattern(`TODO\(\w+\)`, ""))
	assert.Equal(t, `file:[^/]*\.go$ log\.`, Pattern(`log\.`, "*.go").Query)
	assert.Equal(t, `file:src/(.*/)?[^/]*\.ts$ x`, Pattern("x", "src/**/*.ts").Query)
	assert.Equal(t, `file:\.py$ x`, Pattern("x", `\.py$`).Query, "regexp filters pass through")
}

func TestFileFilterMatches(t *testing.T) {
	re := regexp.MustCompile(FileFilter("internal/**/*_test.go"))
	assert.True(t, re.MatchString("internal/cache/cache_test.go"))
	assert.True(t, re.MatchString("internal/a/b/c_test.go"))
	assert.False(t, re.MatchString("internal/cache/cache.go"))
}

func TestImports(t *testing.T) {
	q := Imports("lodash")
	re := regexp.MustCompile(q.Query)

	hits := []string{
		`import _ from "lodash"`,
		`import { map } from 'lodash/fp'`,
		`const _ = require('lodash')`,
		`import lodash`,
		`from lodash import chunk`,
		`#include <lodash/core.h>`,
		`use lodash::prelude;`,
		`require "lodash"`,
		`	"github.com/x/lodash"`,
	}
	for _, line := range hits {
		assert.True(t, re.MatchString(line), "expected import match: %s", line)
	}

	misses := []string{
		`const lodashy = 1`,
		`// we used to depend on lodash`,
	}
	for _, line := range misses {
		assert.False(t, re.MatchString(line), "unexpected import match: %s", line)
	}

	assert.Len(t, ImportPatterns("x"), len(importSyntaxes))
}

func TestRepoQueries(t *testing.T) {
	assert.Equal(t,
		`repo:^github\.com/acme/api$ type:symbol select:symbol.class .*`,
		RepoSymbols("github.com/acme/api", types.KindClass).Query)
	assert.Equal(t,
		`repo:^github\.com/acme/api$ type:symbol .*`,
		RepoSymbols("/github.com/acme/api/", types.KindFunction, types.KindMethod).Query)
	assert.Equal(t, `repo:^github\.com/acme/api$ type:path .`, RepoFiles("github.com/acme/api").Query)
}

func TestMatchesKinds(t *testing.T) {
	fn := types.Match{Symbol: &types.SymbolInfo{Name: "a", Kind: "FUNCTION"}}
	class := types.Match{Symbol: &types.SymbolInfo{Name: "a", Kind: "class"}}
	plain := types.Match{Path: "a.go"}
	kinds := []types.SymbolKind{types.KindFunction, types.KindMethod}

	assert.True(t, MatchesKinds(fn, kinds))
	assert.False(t, MatchesKinds(class, kinds))
	assert.True(t, MatchesKinds(plain, kinds))
	assert.True(t, MatchesKinds(class, nil))
}

func TestFunctionName(t *testing.T) {
	tests := map[string]string{
		"createLogger(name string)":                "createLogger",
		"func (r *Repo) Save(ctx context.Context)": "Save",
		"func Parse(input []byte) error":           "Parse",
		"def process_data(self, rows):":            "process_data",
		"public static <T> List<T> wrap(T item)":   "wrap",
		"async function fetchUser(id)":             "fetchUser",
		"obj.method(a, b)":                         "method",
		"  bareName  ":                             "bareName",
		"":                                         "",
	}
	for sig, want := range tests {
		assert.Equal(t, want, FunctionName(sig), "signature %q", sig)
	}
}

func TestNamePattern(t *testing.T) {
	re := regexp.MustCompile(NamePattern("Foo"))
	assert.True(t, re.MatchString("x := Foo()"))
	assert.False(t, re.MatchString("FooBar"))
}

func TestLanguageForPath(t *testing.T) {
	assert.Equal(t, "Go", LanguageForPath("cmd/main.go"))
	assert.Equal(t, "TypeScript", LanguageForPath("src/App.TSX"))
	assert.Equal(t, "", LanguageForPath("Makefile"))
}
