package lifecycle

import (
	"context"

	"github.com/opencode-ai/opencode-core/pkg/hooks"
)

// SubagentQuestionBlocker sets args._blocked on a "question" tool call made
// by a subagent — the tool implementation must short-circuit on this flag,
// since only the top-level agent may prompt the user directly.
func SubagentQuestionBlocker(isSubagent func(sessionID, agent string) bool) hooks.Hook {
	return hooks.Hook{
		Name:     "subagent-question-blocker",
		Chain:    hooks.ChainPreTool,
		Priority: 100,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			pt := c.(*hooks.PreToolContext)
			if pt.ToolName != "question" {
				return nil
			}
			if !isSubagent(pt.SessionID, pt.Agent) {
				return nil
			}
			if pt.Args == nil {
				pt.Args = map[string]any{}
			}
			pt.Args["_blocked"] = true
			pt.Args["_blockedReason"] = "subagents cannot prompt the user directly; delegate the question to the top-level agent"
			return nil
		},
	}
}
