// CEL predicate pattern-scanner backend, grounded on the CEL-environment
// construction pattern in pkg/governance/policy_evaluator_cel.go. Layered
// over the fixed marker/regex scanners: a project can express a protected-line
// predicate as a CEL boolean expression over {line, lineNumber} instead of a
// literal function-name pattern, for cases the fixed rule tables don't name.
package segment

import (
	"bytes"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/opencode-ai/opencode-core/pkg/policy"
)

// CELScanner finds protected lines by evaluating a fixed CEL boolean
// expression against each line of content. Disabled unless a project
// explicitly configures one — the regex/AST scanners remain the default
// pattern-scanner backend.
type CELScanner struct {
	program          cel.Program
	deniedOperations []policy.Operation
	allowedRoles     []string
}

// NewCELScanner compiles expr once. expr must evaluate to a bool given the
// variables `line` (string, the line's text) and `lineNumber` (int, 0-based).
func NewCELScanner(expr string, deniedOperations []policy.Operation, allowedRoles []string) (*CELScanner, error) {
	env, err := cel.NewEnv(
		cel.Variable("line", cel.StringType),
		cel.Variable("lineNumber", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("segment: cel environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("segment: cel compile %q: %w", expr, issues.Err())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("segment: cel program: %w", err)
	}

	return &CELScanner{program: program, deniedOperations: deniedOperations, allowedRoles: allowedRoles}, nil
}

// Scan implements PatternScanner: every line for which expr evaluates true
// becomes a protected Range spanning that line (including its trailing
// newline, to match the marker scanner's inclusive-span convention).
func (s *CELScanner) Scan(content []byte) ([]Range, error) {
	var ranges []Range
	offset := 0
	for lineNum, line := range bytes.Split(content, []byte("\n")) {
		lineLen := len(line) + 1 // account for the split-away newline
		out, _, err := s.program.Eval(map[string]any{
			"line":       string(line),
			"lineNumber": int64(lineNum),
		})
		if err != nil {
			offset += lineLen
			continue
		}
		if matched, ok := out.Value().(bool); ok && matched {
			end := offset + len(line)
			if end < len(content) {
				end++ // include the newline, matching scanMarkers' span convention
			}
			ranges = append(ranges, Range{
				Start:            offset,
				End:              end,
				DeniedOperations: s.deniedOperations,
				AllowedRoles:     s.allowedRoles,
			})
		}
		offset += lineLen
	}
	return ranges, nil
}
