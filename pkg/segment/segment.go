// Package segment finds protected byte ranges inside file content — either
// bracketed by explicit marker pairs, or (optionally) matched by a pattern
// scanner — and produces redacted copies with those ranges blanked out.
package segment

import (
	"sort"
	"strings"

	"github.com/opencode-ai/opencode-core/pkg/policy"
)

// RedactedMarker is the literal substitution text for every redacted range.
const RedactedMarker = "[REDACTED: Security Protected]"

// Range is a byte span in the original content, carrying the access rule
// that produced it.
type Range struct {
	Start            int
	End              int
	DeniedOperations []policy.Operation
	AllowedRoles     []string
}

// PatternScanner is the optional backend that finds declaration spans by
// name pattern (e.g. function names matching encrypt|decrypt|sign|verify).
// Disabled by default; see pkg/segment/regexscanner and
// pkg/segment/astscanner for the two implementations.
type PatternScanner interface {
	Scan(content []byte) ([]Range, error)
}

// Scanner finds every protected range in content.
type Scanner struct {
	pattern PatternScanner
}

// NewScanner builds a Scanner. pattern may be nil, which disables the
// pattern scanner and leaves only marker scanning — the default for minimal
// configs per §4.4.
func NewScanner(pattern PatternScanner) *Scanner {
	return &Scanner{pattern: pattern}
}

// Scan runs the marker scanner, and the pattern scanner if configured, and
// merges their results. It never errors: a pattern scanner failure is
// swallowed and only the marker-scanned ranges are returned, since markers
// are the spec-guaranteed mechanism and pattern scanning is best-effort.
func (s *Scanner) Scan(content []byte, cfg policy.Segments) []Range {
	ranges := scanMarkers(content, cfg.Markers)
	if s.pattern != nil {
		if extra, err := s.pattern.Scan(content); err == nil {
			ranges = append(ranges, extra...)
		}
	}
	return ranges
}

// scanMarkers implements §4.4(a): every occurrence of start is paired with
// the next occurrence of end; an unpaired start extends to end of file.
func scanMarkers(content []byte, markers []policy.Segment) []Range {
	text := string(content)
	var ranges []Range

	for _, m := range markers {
		if m.Start == "" {
			continue
		}
		pos := 0
		for {
			startIdx := strings.Index(text[pos:], m.Start)
			if startIdx == -1 {
				break
			}
			start := pos + startIdx
			searchFrom := start + len(m.Start)

			end := len(text)
			if m.End != "" {
				if endIdx := strings.Index(text[searchFrom:], m.End); endIdx != -1 {
					end = searchFrom + endIdx + len(m.End)
				}
			}

			ranges = append(ranges, Range{
				Start:            start,
				End:              end,
				DeniedOperations: m.DeniedOperations,
				AllowedRoles:     m.AllowedRoles,
			})

			pos = end
			if pos <= start {
				pos = start + len(m.Start)
			}
			if pos >= len(text) {
				break
			}
		}
	}

	return ranges
}

// Redactor produces byte-faithful redacted copies of content.
type Redactor struct{}

// NewRedactor builds a Redactor. It is stateless.
func NewRedactor() *Redactor {
	return &Redactor{}
}

// Redact replaces every range (after merging overlaps) with RedactedMarker.
// Byte offsets of untouched regions before the first redaction are
// preserved; offsets after that point shift with each substitution, per
// §4.4's "downstream consumers must not rely on exact post-redaction
// offsets beyond that" caveat.
func (r *Redactor) Redact(content []byte, ranges []Range) []byte {
	merged := mergeRanges(ranges)
	if len(merged) == 0 {
		return content
	}

	var out []byte
	cursor := 0
	for _, rg := range merged {
		if rg.Start > len(content) {
			continue
		}
		end := rg.End
		if end > len(content) {
			end = len(content)
		}
		if rg.Start < cursor {
			continue
		}
		out = append(out, content[cursor:rg.Start]...)
		out = append(out, []byte(RedactedMarker)...)
		cursor = end
	}
	out = append(out, content[cursor:]...)
	return out
}

// ForRole returns only the ranges that deny op to role — the set the
// Redactor should apply when, e.g., sending file content to an LLM.
func ForRole(ranges []Range, op policy.Operation, role string) []Range {
	var out []Range
	for _, rg := range ranges {
		if !opDenied(rg.DeniedOperations, op) {
			continue
		}
		if roleAllowed(rg.AllowedRoles, role) {
			continue
		}
		out = append(out, rg)
	}
	return out
}

func opDenied(ops []policy.Operation, op policy.Operation) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

func roleAllowed(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// mergeRanges sorts by Start and merges overlapping or adjacent ranges.
func mergeRanges(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []Range{sorted[0]}
	for _, rg := range sorted[1:] {
		last := &merged[len(merged)-1]
		if rg.Start <= last.End {
			if rg.End > last.End {
				last.End = rg.End
			}
			continue
		}
		merged = append(merged, rg)
	}
	return merged
}
