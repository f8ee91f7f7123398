package segment

import (
	"testing"

	"github.com/opencode-ai/opencode-core/pkg/policy"
)

func TestCELScanner_MatchesConfiguredPredicate(t *testing.T) {
	scanner, err := NewCELScanner(`line.contains("TOP_SECRET")`, []policy.Operation{policy.OpLLM}, []string{"admin"})
	if err != nil {
		t.Fatalf("NewCELScanner: %v", err)
	}

	content := []byte("line one\nTOP_SECRET value here\nline three")
	ranges, err := scanner.Scan(content)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(ranges) != 1 {
		t.Fatalf("expected 1 matched range, got %d", len(ranges))
	}
	got := string(content[ranges[0].Start:ranges[0].End])
	if got != "TOP_SECRET value here\n" {
		t.Fatalf("unexpected range text: %q", got)
	}
}

func TestCELScanner_NoMatchReturnsNoRanges(t *testing.T) {
	scanner, err := NewCELScanner(`line.contains("NOPE")`, nil, nil)
	if err != nil {
		t.Fatalf("NewCELScanner: %v", err)
	}
	ranges, err := scanner.Scan([]byte("hello\nworld"))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(ranges) != 0 {
		t.Fatalf("expected no ranges, got %v", ranges)
	}
}

func TestNewCELScanner_RejectsMalformedExpression(t *testing.T) {
	if _, err := NewCELScanner(`line.contains(`, nil, nil); err == nil {
		t.Fatalf("expected a compile error for malformed expression")
	}
}

func TestBuildPatternScanner_PrefersCELPredicateWhenConfigured(t *testing.T) {
	scanner := BuildPatternScanner(true, LangGo, policy.Segments{CELPredicate: `line.contains("X")`}, nil, nil)
	if _, ok := scanner.(*CELScanner); !ok {
		t.Fatalf("expected a *CELScanner, got %T", scanner)
	}
}

func TestBuildPatternScanner_FallsBackToRegexWithoutCELPredicate(t *testing.T) {
	scanner := BuildPatternScanner(true, LangGo, policy.Segments{}, nil, nil)
	if _, ok := scanner.(*RegexScanner); !ok {
		t.Fatalf("expected a *RegexScanner, got %T", scanner)
	}
}
