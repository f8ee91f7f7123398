// AST pattern scanner backend, grounded on the tree-sitter parsing pattern
// used for code-entity extraction elsewhere in the corpus: walk the parse
// tree, find declaration nodes, read their name via byte offsets, and test
// the name against the configured pattern.
package segment

import (
	"context"
	"regexp"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/opencode-ai/opencode-core/pkg/policy"
)

// Language selects which tree-sitter grammar an ASTScanner parses with.
type Language string

const (
	LangGo         Language = "go"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangPython     Language = "python"
)

// declNodeTypes lists the tree-sitter node types that name a function-like
// declaration, per grammar.
var declNodeTypes = map[Language][]string{
	LangGo:         {"function_declaration", "method_declaration"},
	LangJavaScript: {"function_declaration", "method_definition"},
	LangTypeScript: {"function_declaration", "method_definition"},
	LangPython:     {"function_definition"},
}

// ASTScanner is the opt-in PatternScanner backend enabled by
// OPENCODE_EXPERIMENTAL_AST_GREP: it parses content with tree-sitter and
// matches declaration names against pattern, producing a span for the whole
// declaration node rather than the regex backend's brace-counting guess.
type ASTScanner struct {
	lang    Language
	pattern *regexp.Regexp
	denied  []policy.Operation
	allowed []string
}

// NewASTScanner builds a scanner for lang using pattern to match
// declaration names. A nil pattern defaults to the same encrypt/decrypt/
// sign/verify pattern as the regex backend.
func NewASTScanner(lang Language, pattern *regexp.Regexp, deniedOperations []policy.Operation, allowedRoles []string) *ASTScanner {
	if pattern == nil {
		pattern = regexp.MustCompile(`(?i)(encrypt|decrypt|sign|verify|authenticate)`)
	}
	return &ASTScanner{lang: lang, pattern: pattern, denied: deniedOperations, allowed: allowedRoles}
}

func (s *ASTScanner) grammar() *sitter.Language {
	switch s.lang {
	case LangJavaScript:
		return javascript.GetLanguage()
	case LangTypeScript:
		return typescript.GetLanguage()
	case LangPython:
		return python.GetLanguage()
	default:
		return golang.GetLanguage()
	}
}

func (s *ASTScanner) Scan(content []byte) ([]Range, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(s.grammar())

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}

	var ranges []Range
	declTypes := declNodeTypes[s.lang]
	walk(tree.RootNode(), func(n *sitter.Node) {
		if !isDeclType(n.Type(), declTypes) {
			return
		}
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		name := string(content[nameNode.StartByte():nameNode.EndByte()])
		if !s.pattern.MatchString(name) {
			return
		}
		ranges = append(ranges, Range{
			Start:            int(n.StartByte()),
			End:              int(n.EndByte()),
			DeniedOperations: s.denied,
			AllowedRoles:     s.allowed,
		})
	})
	return ranges, nil
}

func isDeclType(t string, types []string) bool {
	for _, dt := range types {
		if dt == t {
			return true
		}
	}
	return false
}

func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}
