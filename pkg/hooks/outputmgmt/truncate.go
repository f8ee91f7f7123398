// Package outputmgmt implements the post-tool output-shaping hooks and the
// pre-llm context-window monitor/preemptive-compaction pair.
package outputmgmt

import (
	"context"
	"fmt"
	"strings"

	"github.com/opencode-ai/opencode-core/pkg/hooks"
	"github.com/opencode-ai/opencode-core/pkg/segment"
)

const (
	headBudget      = 50 * 1024
	streamThreshold = 10 * 1024 * 1024
)

// ToolOutputTruncator keeps at most the first headBudget bytes of any tool
// output, preserving every redaction marker beyond the cut and appending a
// byte-count footer. A no-op when output already fits the budget.
func ToolOutputTruncator() hooks.Hook {
	return hooks.Hook{
		Name:     "tool-output-truncator",
		Chain:    hooks.ChainPostTool,
		Priority: 50,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			pt := c.(*hooks.PostToolContext)
			pt.Result.Output = truncateOutput(pt.Result.Output)
			return nil
		},
	}
}

func truncateOutput(output string) string {
	if len(output) <= headBudget {
		return output
	}

	head := output[:headBudget]
	tail := output[headBudget:]
	markerCount := strings.Count(tail, segment.RedactedMarker)

	var b strings.Builder
	b.WriteString(head)
	for i := 0; i < markerCount; i++ {
		b.WriteString(segment.RedactedMarker)
	}

	if len(output) >= streamThreshold {
		fmt.Fprintf(&b, "\n[stream: %d bytes total, showing first %d]", len(output), headBudget)
	} else {
		fmt.Fprintf(&b, "\n[truncated: %d bytes total, showing first %d]", len(output), headBudget)
	}
	return b.String()
}

// GrepOutputTruncator caps grep/ripgrep output at 50 non-empty lines,
// appending a "[showing 50 of N matches]" footer when more were found.
func GrepOutputTruncator() hooks.Hook {
	return hooks.Hook{
		Name:     "grep-output-truncator",
		Chain:    hooks.ChainPostTool,
		Priority: 60,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			pt := c.(*hooks.PostToolContext)
			if pt.ToolName != "grep" && pt.ToolName != "ripgrep" {
				return nil
			}

			var nonEmpty []string
			for _, line := range strings.Split(pt.Result.Output, "\n") {
				if strings.TrimSpace(line) != "" {
					nonEmpty = append(nonEmpty, line)
				}
			}
			if len(nonEmpty) <= 50 {
				return nil
			}

			kept := append([]string{}, nonEmpty[:50]...)
			kept = append(kept, fmt.Sprintf("[showing 50 of %d matches]", len(nonEmpty)))
			pt.Result.Output = strings.Join(kept, "\n")
			return nil
		},
	}
}

const titleBudget = 200

// QuestionLabelTruncator caps result.Title at 200 characters plus an
// ellipsis.
func QuestionLabelTruncator() hooks.Hook {
	return hooks.Hook{
		Name:     "question-label-truncator",
		Chain:    hooks.ChainPostTool,
		Priority: 70,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			pt := c.(*hooks.PostToolContext)
			if len(pt.Result.Title) > titleBudget {
				pt.Result.Title = pt.Result.Title[:titleBudget] + "…"
			}
			return nil
		},
	}
}
