// Package query translates logical search requests into the search service's
// query syntax.
//
// Symbol queries anchor the name and, when a single symbol kind is wanted,
// narrow the results with select:symbol.<kind>. Queries spanning several kinds
// leave the select out; callers filter those matches with MatchesKinds.
package query

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/dshills/codeguard-mcp/pkg/types"
)

// Canonical is a service query string and the kinds its results must have
type Canonical struct {
	Query  string
	Regexp bool
	Kinds  []types.SymbolKind
}

// Search returns a free-text or regular expression query unchanged, trimmed
func Search(pattern string) string {
	return strings.TrimSpace(pattern)
}

// Symbol builds an anchored symbol query for name restricted to kinds
func Symbol(name string, kinds []types.SymbolKind) Canonical {
	parts := []string{"type:symbol"}
	if len(kinds) == 1 {
		parts = append(parts, "select:symbol."+string(kinds[0]))
	}
	parts = append(parts, "^"+regexp.QuoteMeta(name)+"$")
	return Canonical{Query: strings.Join(parts, " "), Regexp: true, Kinds: kinds}
}

// Duplicates builds the declaration query behind duplicate detection
func Duplicates(codeType types.CodeType, name string) Canonical {
	return Symbol(name, codeType.SymbolKinds())
}

// SymbolExists builds the existence probe for name; an empty code type
// matches any kind.
func SymbolExists(name string, codeType types.CodeType) Canonical {
	return Symbol(name, codeType.SymbolKinds())
}

// Similar builds a symbol query matching any symbol whose name contains name
func Similar(name string) Canonical {
	return Canonical{
		Query:  "type:symbol " + regexp.QuoteMeta(name),
		Regexp: true,
	}
}

// Pattern builds a line-level regular expression query, optionally scoped to
// files matching fileFilter. A glob filter is converted to a path regexp.
func Pattern(pattern, fileFilter string) Canonical {
	q := strings.TrimSpace(pattern)
	if filter := strings.TrimSpace(fileFilter); filter != "" {
		q = "file:" + FileFilter(filter) + " " + q
	}
	return Canonical{Query: q, Regexp: true}
}

// NamePattern matches name as a whole word
func NamePattern(name string) string {
	return `\b` + regexp.QuoteMeta(name) + `\b`
}

// FileFilter converts a glob such as "*.go" or "src/**/*.ts" to a path
// regexp. Values that already look like regular expressions are returned as-is.
func FileFilter(glob string) string {
	if strings.ContainsAny(glob, `\^$()|+`) {
		return glob
	}

	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch c {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' {
				i++
				if i+1 < len(glob) && glob[i+1] == '/' {
					i++
					b.WriteString("(.*/)?")
				} else {
					b.WriteString(".*")
				}
				continue
			}
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		case '.', '[', ']', '{', '}':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('$')
	return b.String()
}

// importSyntax is one ecosystem's import idiom; %s is the quoted library name
type importSyntax struct {
	Language string
	Template string
}

var importSyntaxes = []importSyntax{
	{"Go", `^\s*(import\s+)?(\w+\s+)?"[^"]*%s[^"]*"`},
	{"JavaScript", `import\s.*from\s+['"]%s['"/]`},
	{"JavaScript", `require\(\s*['"]%s['"/]`},
	{"Python", `^\s*(from\s+%[1]s(\.\w+)*\s+import|import\s+%[1]s\b)`},
	{"Java", `^\s*import\s+(static\s+)?%s\.`},
	{"C", `#include\s*[<"]%s`},
	{"Rust", `^\s*(use|extern\s+crate)\s+%s\b`},
	{"Ruby", `require(_relative)?\s*\(?\s*['"]%s`},
	{"PHP", `^\s*use\s+%s\\`},
}

// ImportPatterns returns the per-ecosystem import expressions for library
func ImportPatterns(library string) []string {
	quoted := regexp.QuoteMeta(strings.TrimSpace(library))
	patterns := make([]string, 0, len(importSyntaxes))
	for _, s := range importSyntaxes {
		patterns = append(patterns, fmt.Sprintf(s.Template, quoted))
	}
	return patterns
}

// Imports builds one combined regexp covering every ecosystem's import idiom
func Imports(library string) Canonical {
	return Canonical{
		Query:  "(" + strings.Join(ImportPatterns(library), "|") + ")",
		Regexp: true,
	}
}

// RepoSymbols lists the symbols of kinds declared in repo
func RepoSymbols(repo string, kinds ...types.SymbolKind) Canonical {
	parts := []string{repoFilter(repo), "type:symbol"}
	if len(kinds) == 1 {
		parts = append(parts, "select:symbol."+string(kinds[0]))
	}
	parts = append(parts, ".*")
	return Canonical{Query: strings.Join(parts, " "), Regexp: true, Kinds: kinds}
}

// RepoFiles lists the files of repo
func RepoFiles(repo string) Canonical {
	return Canonical{Query: repoFilter(repo) + " type:path .", Regexp: true}
}

func repoFilter(repo string) string {
	return "repo:^" + regexp.QuoteMeta(strings.Trim(repo, "/")) + "$"
}

// MatchesKinds reports whether m is a symbol of one of kinds. Matches are
// accepted when kinds is empty or the match carries no kind.
func MatchesKinds(m types.Match, kinds []types.SymbolKind) bool {
	if len(kinds) == 0 || m.Symbol == nil || m.Symbol.Kind == "" {
		return true
	}
	for _, k := range kinds {
		if strings.EqualFold(m.Symbol.Kind, string(k)) {
			return true
		}
	}
	return false
}

var keywords = map[string]bool{
	"func": true, "function": true, "def": true, "fn": true, "fun": true,
	"async": true, "sub": true, "proc": true,
}

var callName = regexp.MustCompile(`([A-Za-z_$][\w$]*)\s*(?:<[^<>()]*>)?\s*\(`)

// FunctionName extracts the bare function or method name from a signature:
// the identifier in front of the first parameter list. Language keywords and
// Go receivers are skipped, so "func (r *Repo) Save(x int)" yields "Save".
func FunctionName(signature string) string {
	sig := strings.TrimSpace(signature)
	for _, m := range callName.FindAllStringSubmatch(sig, -1) {
		if !keywords[m[1]] {
			return m[1]
		}
	}

	// no parameter list: use the last word
	fields := strings.Fields(sig)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimFunc(fields[len(fields)-1], func(r rune) bool {
		return !(r == '_' || r == '$' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z')
	})
}

var extensionLanguages = map[string]string{
	".go": "Go", ".js": "JavaScript", ".jsx": "JavaScript", ".mjs": "JavaScript", ".cjs": "JavaScript",
	".ts": "TypeScript", ".tsx": "TypeScript", ".py": "Python", ".java": "Java", ".kt": "Kotlin",
	".scala": "Scala", ".rb": "Ruby", ".php": "PHP", ".rs": "Rust", ".c": "C", ".h": "C",
	".cc": "C++", ".cpp": "C++", ".hpp": "C++", ".cs": "C#", ".swift": "Swift", ".m": "Objective-C",
	".sh": "Shell", ".sql": "SQL", ".md": "Markdown", ".yaml": "YAML", ".yml": "YAML", ".json": "JSON",
}

// LanguageForPath guesses a file's language from its extension
func LanguageForPath(p string) string {
	return extensionLanguages[strings.ToLower(path.Ext(p))]
}
