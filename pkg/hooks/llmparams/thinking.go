package llmparams

import (
	"context"
	"strings"

	"github.com/opencode-ai/opencode-core/pkg/hooks"
)

func isClaude(model string) bool {
	return strings.Contains(strings.ToLower(model), "claude")
}

var thinkingBudgets = map[string]int{
	"max":     32_000,
	"default": 16_000,
	"quick":   0,
}

// applyThinkMode maps pc.Variant to a Claude thinking-budget provider
// option. Shared by the ThinkMode hook and the post-keyword remapping pass,
// since a keyword detected later in the same chain can change pc.Variant
// after ThinkMode has already run once.
func applyThinkMode(pc *hooks.PreLLMContext) {
	if !isClaude(pc.Model) {
		return
	}
	budget, ok := thinkingBudgets[pc.Variant]
	if !ok {
		return
	}

	if pc.ProviderOptions == nil {
		pc.ProviderOptions = map[string]any{}
	}
	if budget == 0 {
		pc.ProviderOptions["thinking"] = map[string]any{"type": "disabled"}
	} else {
		pc.ProviderOptions["thinking"] = map[string]any{"type": "enabled", "budgetTokens": budget}
	}
}

// ThinkMode sets provider thinking-budget options for Claude models based
// on ctx.Variant: 32000 tokens for "max", 16000 for "default", disabled for
// "quick". Other variants (or non-Claude models) are left untouched.
func ThinkMode() hooks.Hook {
	return hooks.Hook{
		Name:     "think-mode",
		Chain:    hooks.ChainPreLLM,
		Priority: 50,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			applyThinkMode(c.(*hooks.PreLLMContext))
			return nil
		},
	}
}

var anthropicEffort = map[string]string{
	"max":     "high",
	"default": "medium",
	"quick":   "low",
}

// applyAnthropicEffort maps pc.Variant to an Anthropic effort provider
// option. Shared by the AnthropicEffort hook and the post-keyword
// remapping pass, for the same reason as applyThinkMode.
func applyAnthropicEffort(pc *hooks.PreLLMContext) {
	if !isClaude(pc.Model) {
		return
	}
	effort, ok := anthropicEffort[pc.Variant]
	if !ok {
		return
	}

	if pc.ProviderOptions == nil {
		pc.ProviderOptions = map[string]any{}
	}
	pc.ProviderOptions["effort"] = effort
}

// AnthropicEffort sets the Anthropic "effort" provider option for Claude
// models based on ctx.Variant, mirroring ThinkMode's variant mapping.
func AnthropicEffort() hooks.Hook {
	return hooks.Hook{
		Name:     "anthropic-effort",
		Chain:    hooks.ChainPreLLM,
		Priority: 60,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			applyAnthropicEffort(c.(*hooks.PreLLMContext))
			return nil
		},
	}
}
