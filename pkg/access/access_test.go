package access

import (
	"path/filepath"
	"testing"

	"github.com/opencode-ai/opencode-core/pkg/audit"
	"github.com/opencode-ai/opencode-core/pkg/policy"
)

type recordingLogger struct {
	events []audit.Event
}

func (r *recordingLogger) Record(e audit.Event) {
	r.events = append(r.events, e)
}

func TestCheck_ConfigFileAlwaysDeniesWrite(t *testing.T) {
	root := t.TempDir()
	c := NewChecker(root, policy.Empty(), nil)

	d := c.Check(filepath.Join(root, policy.DefaultConfigFileName), policy.OpWrite, "admin")
	if d.Allowed {
		t.Fatalf("expected config file write to be denied even for admin")
	}
}

func TestCheck_ConfigFileReadAllowed(t *testing.T) {
	root := t.TempDir()
	c := NewChecker(root, policy.Empty(), nil)

	d := c.Check(filepath.Join(root, policy.DefaultConfigFileName), policy.OpRead, "viewer")
	if !d.Allowed {
		t.Fatalf("expected config file read to be allowed")
	}
}

func TestCheck_EmptyConfigAllowsEverythingElse(t *testing.T) {
	root := t.TempDir()
	c := NewChecker(root, policy.Empty(), nil)

	d := c.Check(filepath.Join(root, "src/main.go"), policy.OpWrite, "viewer")
	if !d.Allowed {
		t.Fatalf("expected empty config to allow unrelated paths")
	}
}

func TestCheck_DirectoryRuleDeniesDescendants(t *testing.T) {
	root := t.TempDir()
	cfg := policy.Config{
		Version: "1.0",
		Roles:   []policy.Role{{Name: "viewer", Level: 0}, {Name: "admin", Level: 10}},
		Rules: []policy.Rule{
			{Pattern: "secrets", Type: policy.RuleDirectory, DeniedOperations: []policy.Operation{policy.OpRead}, AllowedRoles: []string{"admin"}},
		},
	}
	c := NewChecker(root, cfg, nil)

	d := c.Check(filepath.Join(root, "secrets/key.pem"), policy.OpRead, "viewer")
	if d.Allowed {
		t.Fatalf("expected viewer to be denied read under secrets/")
	}

	d = c.Check(filepath.Join(root, "secrets/key.pem"), policy.OpRead, "admin")
	if !d.Allowed {
		t.Fatalf("expected admin to be allowed read under secrets/")
	}
}

func TestCheck_GlobFileRule(t *testing.T) {
	root := t.TempDir()
	cfg := policy.Config{
		Version: "1.0",
		Roles:   []policy.Role{{Name: "viewer", Level: 0}},
		Rules: []policy.Rule{
			{Pattern: filepath.Join(root, "**", "*.env"), Type: policy.RuleFile, DeniedOperations: []policy.Operation{policy.OpRead}, AllowedRoles: nil},
		},
	}
	c := NewChecker(root, cfg, nil)

	d := c.Check(filepath.Join(root, "config", ".env"), policy.OpRead, "viewer")
	if d.Allowed {
		t.Fatalf("expected glob rule to deny .env read")
	}
}

func TestCheck_MostSpecificRuleWins(t *testing.T) {
	root := t.TempDir()
	cfg := policy.Config{
		Version: "1.0",
		Roles:   []policy.Role{{Name: "viewer", Level: 0}, {Name: "admin", Level: 10}},
		Rules: []policy.Rule{
			{Pattern: "src", Type: policy.RuleDirectory, DeniedOperations: []policy.Operation{policy.OpRead}, AllowedRoles: []string{"admin"}},
			{Pattern: filepath.Join("src", "public"), Type: policy.RuleDirectory, DeniedOperations: nil, AllowedRoles: nil},
		},
	}
	c := NewChecker(root, cfg, nil)

	d := c.Check(filepath.Join(root, "src/public/index.html"), policy.OpRead, "viewer")
	if !d.Allowed {
		t.Fatalf("expected the more specific src/public rule (no denial) to win over src")
	}
}

// TestCheck_EqualSpecificityTieEvaluatesPerOperation covers two rules tied
// for specificity on the same path, each denying a different operation.
// Per §4.3 the tie-break must be evaluated against the actual (op, role)
// being checked, not by picking a single winning rule up front: checking
// op=write must hit rule A's denial even though rule B (which only denies
// read) happens to be registered first.
func TestCheck_EqualSpecificityTieEvaluatesPerOperation(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "secrets.env")
	cfg := policy.Config{
		Version: "1.0",
		Roles:   []policy.Role{{Name: "viewer", Level: 0}},
		Rules: []policy.Rule{
			{Pattern: "secrets.env", Type: policy.RuleFile, DeniedOperations: []policy.Operation{policy.OpRead}, AllowedRoles: nil},
			{Pattern: "secrets.env", Type: policy.RuleFile, DeniedOperations: []policy.Operation{policy.OpWrite}, AllowedRoles: nil},
		},
	}
	c := NewChecker(root, cfg, nil)

	d := c.Check(path, policy.OpWrite, "viewer")
	if d.Allowed {
		t.Fatalf("expected op=write to be denied by the equally-specific rule denying write, got allowed")
	}

	d = c.Check(path, policy.OpRead, "viewer")
	if d.Allowed {
		t.Fatalf("expected op=read to be denied by the equally-specific rule denying read, got allowed")
	}
}

func TestCheck_NFCNormalizedPathMatchesNFDPattern(t *testing.T) {
	root := t.TempDir()
	// "é" as a precomposed NFC codepoint (U+00E9) vs. "e" + combining acute
	// (U+0065 U+0301), the NFD decomposition. Both must resolve to the same
	// rule match.
	nfc := "caf\u00e9"
	nfd := "cafe\u0301"

	cfg := policy.Config{
		Version: "1.0",
		Roles:   []policy.Role{{Name: "viewer", Level: 0}},
		Rules: []policy.Rule{
			{Pattern: nfd, Type: policy.RuleFile, DeniedOperations: []policy.Operation{policy.OpRead}, AllowedRoles: nil},
		},
	}
	c := NewChecker(root, cfg, nil)

	d := c.Check(filepath.Join(root, nfc), policy.OpRead, "viewer")
	if d.Allowed {
		t.Fatalf("expected NFC-form candidate path to match an NFD-form rule pattern")
	}
}

func TestCheck_EmitsAuditEvent(t *testing.T) {
	root := t.TempDir()
	logger := &recordingLogger{}
	c := NewChecker(root, policy.Empty(), logger)

	c.Check(filepath.Join(root, "a.txt"), policy.OpRead, "viewer")
	if len(logger.events) != 1 {
		t.Fatalf("expected exactly one audit event, got %d", len(logger.events))
	}
	if logger.events[0].Result != audit.ResultAllowed {
		t.Fatalf("expected allowed result recorded")
	}
}
