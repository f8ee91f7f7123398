// Package access evaluates path-based security rules against a candidate
// file path, operation, and role, and records every decision to the audit
// log. It is the component every tool call and context-injection hook goes
// through before touching a file.
package access

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/unicode/norm"

	"github.com/opencode-ai/opencode-core/pkg/audit"
	"github.com/opencode-ai/opencode-core/pkg/policy"
)

// Decision is the outcome of a single checkAccess call.
type Decision struct {
	Allowed     bool
	Reason      string
	RulePattern string
}

// Checker evaluates access decisions against a loaded configuration and
// writes an audit event for every call.
type Checker struct {
	projectRoot string
	cfg         policy.Config
	logger      audit.Logger
}

// NewChecker builds a Checker bound to a single project root and its active
// configuration.
func NewChecker(projectRoot string, cfg policy.Config, logger audit.Logger) *Checker {
	return &Checker{projectRoot: projectRoot, cfg: cfg, logger: logger}
}

// Check implements §4.3: the two hardcoded implicit protections, then rule
// matching with longest-literal-prefix specificity and deny-wins-on-tie. It
// always emits an audit event before returning, regardless of outcome.
func (c *Checker) Check(path string, op policy.Operation, role string) Decision {
	decision := c.evaluate(path, op, role)
	c.audit(path, op, role, decision)
	return decision
}

func (c *Checker) evaluate(path string, op policy.Operation, role string) Decision {
	abs := c.resolve(path)

	if op == policy.OpWrite && c.isImplicitlyProtected(abs) {
		return Decision{Allowed: false, Reason: "implicit protection: security config and audit log are never writable"}
	}

	tied := c.mostSpecificRules(abs)
	if len(tied) == 0 {
		return Decision{Allowed: true}
	}

	// Per §4.3, if equally specific, deny wins: any tied rule denying op to
	// role settles the decision regardless of what the other tied rules say.
	for _, rule := range tied {
		if containsOp(rule.DeniedOperations, op) && !containsRole(rule.AllowedRoles, role) {
			return Decision{
				Allowed:     false,
				Reason:      "denied by rule " + rule.Pattern,
				RulePattern: rule.Pattern,
			}
		}
	}

	for _, rule := range tied {
		if containsOp(rule.DeniedOperations, op) && containsRole(rule.AllowedRoles, role) {
			return Decision{Allowed: true, RulePattern: rule.Pattern}
		}
	}

	return Decision{Allowed: true}
}

// resolve normalizes path to NFC before cleaning, so that byte-distinct but
// visually identical Unicode forms (e.g. a precomposed vs. combining accent)
// can't be used to slip past a rule pattern written in the other form.
func (c *Checker) resolve(path string) string {
	path = norm.NFC.String(path)
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(c.projectRoot, path))
}

func (c *Checker) isImplicitlyProtected(abs string) bool {
	return abs == policy.ConfigPath(c.projectRoot) || abs == policy.AuditLogPath(c.projectRoot, c.cfg)
}

// mostSpecificRules returns every rule tied for the longest literal prefix
// among all rules matching path. When more than one rule ties, evaluate
// must consult all of them against the actual (op, role) being checked —
// per §4.3 "if equally specific, deny wins over allow" — rather than
// picking a single winner up front by some op-agnostic heuristic.
func (c *Checker) mostSpecificRules(abs string) []policy.Rule {
	var tied []policy.Rule
	bestSpecificity := -1

	for _, rule := range c.cfg.Rules {
		if !ruleMatches(c.resolvePattern(rule.Pattern), rule.Type, abs) {
			continue
		}
		spec := specificity(rule.Pattern)
		switch {
		case spec > bestSpecificity:
			tied = []policy.Rule{rule}
			bestSpecificity = spec
		case spec == bestSpecificity:
			tied = append(tied, rule)
		}
	}
	return tied
}

// resolvePattern joins a relative pattern against the project root, same as
// resolve does for candidate paths, so config authors can write project-
// relative patterns ("secrets", "src/**/*.env") as well as absolute ones.
func (c *Checker) resolvePattern(pattern string) string {
	pattern = norm.NFC.String(pattern)
	if filepath.IsAbs(pattern) {
		return filepath.Clean(pattern)
	}
	return filepath.Clean(filepath.Join(c.projectRoot, pattern))
}

func ruleMatches(pattern string, ruleType policy.RuleType, abs string) bool {
	switch ruleType {
	case policy.RuleDirectory:
		return directoryMatches(pattern, abs)
	default:
		return fileMatches(pattern, abs)
	}
}

func fileMatches(pattern, abs string) bool {
	if pattern == abs {
		return true
	}
	if !strings.ContainsAny(pattern, "*?[") {
		return false
	}
	matched, err := doublestar.Match(pattern, abs)
	return err == nil && matched
}

func directoryMatches(pattern, abs string) bool {
	base := strings.TrimSuffix(pattern, "/**")
	base = strings.TrimSuffix(base, "/")
	if base == abs {
		return true
	}
	if strings.HasPrefix(abs, base+string(filepath.Separator)) {
		return true
	}
	full := strings.TrimSuffix(pattern, "/") + "/**"
	matched, err := doublestar.Match(full, abs)
	return err == nil && matched
}

// specificity is the longest literal (non-wildcard) prefix of pattern, with
// "**" counting as zero specificity contribution wherever it appears.
func specificity(pattern string) int {
	idx := strings.IndexAny(pattern, "*?[")
	if idx == -1 {
		return len(pattern)
	}
	return idx
}

func containsOp(ops []policy.Operation, op policy.Operation) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func (c *Checker) audit(path string, op policy.Operation, role string, d Decision) {
	if c.logger == nil {
		return
	}
	result := audit.ResultAllowed
	if !d.Allowed {
		result = audit.ResultDenied
	}
	c.logger.Record(audit.Event{
		Role:          role,
		Operation:     string(op),
		Path:          path,
		Result:        result,
		Reason:        d.Reason,
		RuleTriggered: d.RulePattern,
	})
}
