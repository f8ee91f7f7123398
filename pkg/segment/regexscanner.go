package segment

import (
	"regexp"

	"github.com/opencode-ai/opencode-core/pkg/policy"
)

// defaultDeclarationPattern matches declaration lines (Go/JS/TS/Python
// function-ish syntax) whose name suggests cryptographic or
// authentication-sensitive logic — the §4.4 example: "function names
// matching encrypt|decrypt|sign|verify".
var defaultDeclarationPattern = regexp.MustCompile(
	`(?im)^\s*(?:func|function|def|export function|async function)\s+\w*(encrypt|decrypt|sign|verify|authenticate)\w*\s*\(`,
)

// RegexScanner is the default PatternScanner backend: a fixed regex over
// declaration lines, with no parsing of the surrounding language. A matched
// declaration's span runs from the match start to the end of its balanced
// brace body; with no brace body it ends before the next func/function/def
// line, or at end of file (see declarationEnd).
type RegexScanner struct {
	pattern *regexp.Regexp
	denied  []policy.Operation
	allowed []string
}

// NewRegexScanner builds a scanner using the built-in encrypt/decrypt/sign/
// verify pattern. deniedOperations and allowedRoles configure what each
// matched span denies, mirroring a marker segment's shape.
func NewRegexScanner(deniedOperations []policy.Operation, allowedRoles []string) *RegexScanner {
	return &RegexScanner{pattern: defaultDeclarationPattern, denied: deniedOperations, allowed: allowedRoles}
}

func (s *RegexScanner) Scan(content []byte) ([]Range, error) {
	matches := s.pattern.FindAllIndex(content, -1)
	ranges := make([]Range, 0, len(matches))
	for _, m := range matches {
		ranges = append(ranges, Range{
			Start:            m[0],
			End:              declarationEnd(content, m[1]),
			DeniedOperations: s.denied,
			AllowedRoles:     s.allowed,
		})
	}
	return ranges, nil
}

// declarationEnd walks forward from the opening paren of a matched
// declaration to the end of its balanced brace body, or to end of file if
// no brace body is found within the content (e.g. a one-line arrow
// function).
func declarationEnd(content []byte, from int) int {
	depth := 0
	seenBrace := false
	for i := from; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
			seenBrace = true
		case '}':
			depth--
			if seenBrace && depth <= 0 {
				return i + 1
			}
		case '\n':
			if !seenBrace && i > from && looksLikeNextDeclaration(content, i+1) {
				return i
			}
		}
	}
	return len(content)
}

func looksLikeNextDeclaration(content []byte, at int) bool {
	rest := content[at:]
	for _, kw := range [][]byte{[]byte("func "), []byte("function "), []byte("def ")} {
		if len(rest) >= len(kw) && string(rest[:len(kw)]) == string(kw) {
			return true
		}
	}
	return false
}
