// Package pluginaudit performs an offline static scan of a candidate plugin
// source tree for dangerous API patterns, classifying every finding into a
// fixed critical/high/medium/low severity table.
package pluginaudit

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Severity is one of the four fixed levels the rule table assigns.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

var severityOrder = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// Finding is a single matched pattern in a single file.
type Finding struct {
	File     string
	Line     int
	Severity Severity
	Rule     string
	Excerpt  string
}

// Report is the result of auditing a plugin tree.
type Report struct {
	Findings    []Finding
	BySeverity  map[Severity]int
	HasCritical bool
}

type rule struct {
	name     string
	severity Severity
	pattern  *regexp.Regexp
}

// ruleTable is fixed per §4.6: it is not configurable by a plugin manifest
// or project config.
var ruleTable = []rule{
	{"eval-call", SeverityCritical, regexp.MustCompile(`\beval\s*\(`)},
	{"new-function", SeverityCritical, regexp.MustCompile(`\bnew\s+Function\s*\(`)},
	{"function-return-this", SeverityCritical, regexp.MustCompile(`Function\s*\(\s*["']return this["']\s*\)`)},
	{"globalthis-constructor-escape", SeverityCritical, regexp.MustCompile(`globalThis\.constructor\.constructor`)},

	{"hardcoded-etc-path", SeverityHigh, regexp.MustCompile(`/etc/[\w./-]+`)},
	{"hardcoded-ssh-path", SeverityHigh, regexp.MustCompile(`~/\.ssh/[\w./-]*`)},
	{"hardcoded-env-file", SeverityHigh, regexp.MustCompile(`[\w./-]*\.env\b`)},
	{"dynamic-import", SeverityHigh, regexp.MustCompile(`\bimport\s*\(\s*[^'"\s)][^)]*\)`)},
	{"dynamic-require", SeverityHigh, regexp.MustCompile(`\brequire\s*\(\s*[^'"\s)][^)]*\)`)},

	{"filesystem-api", SeverityMedium, regexp.MustCompile(`\b(?:fs|node:fs)\.(?:readFile|writeFile|unlink|rm|readdir|createReadStream|createWriteStream)\w*\s*\(`)},
	{"process-spawn", SeverityMedium, regexp.MustCompile(`\b(?:child_process|node:child_process)\.(?:spawn|exec|execFile|fork)\w*\s*\(`)},
	{"network-module", SeverityMedium, regexp.MustCompile(`require\s*\(\s*["'](?:net|http|https|dgram|tls)["']\s*\)|from\s+["'](?:net|http|https|dgram|tls)["']`)},
}

// Auditor scans a plugin source tree.
type Auditor struct{}

// NewAuditor builds an Auditor. It is stateless.
func NewAuditor() *Auditor {
	return &Auditor{}
}

// pluginSourceExt are the file extensions scanned; everything else (assets,
// lockfiles, binaries) is skipped.
var pluginSourceExt = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".mjs": true, ".cjs": true,
}

// Audit walks root (an fs.FS so tests can use fstest.MapFS), scanning every
// source file not under node_modules.
func (a *Auditor) Audit(root fs.FS) (Report, error) {
	var findings []Finding

	err := fs.WalkDir(root, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "node_modules" {
				return fs.SkipDir
			}
			return nil
		}
		if !pluginSourceExt[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		content, err := fs.ReadFile(root, path)
		if err != nil {
			return nil
		}
		findings = append(findings, scanFile(path, content)...)
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	return buildReport(findings), nil
}

func scanFile(path string, content []byte) []Finding {
	var findings []Finding
	lines := strings.Split(string(content), "\n")
	for lineNum, line := range lines {
		for _, r := range ruleTable {
			if loc := r.pattern.FindStringIndex(line); loc != nil {
				findings = append(findings, Finding{
					File:     path,
					Line:     lineNum + 1,
					Severity: r.severity,
					Rule:     r.name,
					Excerpt:  strings.TrimSpace(line),
				})
			}
		}
	}
	return findings
}

func buildReport(findings []Finding) Report {
	sort.SliceStable(findings, func(i, j int) bool {
		return severityOrder[findings[i].Severity] < severityOrder[findings[j].Severity]
	})

	bySeverity := map[Severity]int{}
	hasCritical := false
	for _, f := range findings {
		bySeverity[f.Severity]++
		if f.Severity == SeverityCritical {
			hasCritical = true
		}
	}

	return Report{Findings: findings, BySeverity: bySeverity, HasCritical: hasCritical}
}

// Format renders a report grouped by severity, descending from critical.
func Format(r Report) string {
	var b strings.Builder
	order := []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

	for _, sev := range order {
		count := r.BySeverity[sev]
		if count == 0 {
			continue
		}
		b.WriteString(strings.ToUpper(string(sev)))
		b.WriteString(" (")
		b.WriteString(strconv.Itoa(count))
		b.WriteString(")\n")
		for _, f := range r.Findings {
			if f.Severity != sev {
				continue
			}
			b.WriteString("  ")
			b.WriteString(f.File)
			b.WriteString(":")
			b.WriteString(strconv.Itoa(f.Line))
			b.WriteString(" [")
			b.WriteString(f.Rule)
			b.WriteString("] ")
			b.WriteString(f.Excerpt)
			b.WriteString("\n")
		}
	}
	return b.String()
}
