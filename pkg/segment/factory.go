package segment

import (
	"os"

	"github.com/opencode-ai/opencode-core/pkg/policy"
)

// ExperimentalASTGrepEnv is the opt-in flag gating the AST pattern-scanner
// backend; any non-empty value enables it.
const ExperimentalASTGrepEnv = "OPENCODE_EXPERIMENTAL_AST_GREP"

// BuildPatternScanner returns nil (pattern scanning disabled, the default
// for minimal configs) unless enabled is true. When a CEL predicate is
// configured it takes precedence; otherwise, when
// OPENCODE_EXPERIMENTAL_AST_GREP is set, it returns the tree-sitter backend
// for lang; otherwise the fixed-regex backend.
func BuildPatternScanner(enabled bool, lang Language, cfg policy.Segments, deniedOperations []policy.Operation, allowedRoles []string) PatternScanner {
	if !enabled {
		return nil
	}
	if cfg.CELPredicate != "" {
		scanner, err := NewCELScanner(cfg.CELPredicate, deniedOperations, allowedRoles)
		if err == nil {
			return scanner
		}
		// Falls through to the regex backend on a malformed predicate —
		// pattern scanning is best-effort, markers remain the guaranteed path.
	}
	if os.Getenv(ExperimentalASTGrepEnv) != "" {
		return NewASTScanner(lang, nil, deniedOperations, allowedRoles)
	}
	return NewRegexScanner(deniedOperations, allowedRoles)
}
