// Package llmparams implements the pre-llm hooks that detect trigger
// keywords in the user's last message and translate the resulting variant
// into provider-specific request options.
package llmparams

import (
	"context"
	"strings"

	"github.com/opencode-ai/opencode-core/pkg/hooks"
)

func lastUserMessage(messages []hooks.Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content, true
		}
	}
	return "", false
}

// KeywordDetector scans the last user message for fixed trigger keywords
// and sets ctx.Variant accordingly: [ultrawork]/ulw -> "max",
// [analyze-mode] -> "analyze", [review-mode] -> "review".
func KeywordDetector() hooks.Hook {
	return hooks.Hook{
		Name:     "keyword-detector",
		Chain:    hooks.ChainPreLLM,
		Priority: 200,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			pc := c.(*hooks.PreLLMContext)
			content, ok := lastUserMessage(pc.Messages)
			if !ok {
				return nil
			}
			lower := strings.ToLower(content)

			switch {
			case strings.Contains(lower, "[ultrawork]") || strings.Contains(lower, "ulw"):
				pc.Variant = "max"
			case strings.Contains(lower, "[analyze-mode]"):
				pc.Variant = "analyze"
			case strings.Contains(lower, "[review-mode]"):
				pc.Variant = "review"
			}
			return nil
		},
	}
}

// VariantRemap re-applies the Claude provider-option mappings (thinking
// budget, effort) after keyword detection. ThinkMode and AnthropicEffort run
// early in the pre-llm chain and no-op when ctx.Variant is still unset; if
// KeywordDetector goes on to set a variant from a message keyword, those
// mappings would otherwise never be written for this pass. Priority is set
// higher than KeywordDetector's so it always runs after it.
func VariantRemap() hooks.Hook {
	return hooks.Hook{
		Name:     "variant-remap",
		Chain:    hooks.ChainPreLLM,
		Priority: 210,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			pc := c.(*hooks.PreLLMContext)
			applyThinkMode(pc)
			applyAnthropicEffort(pc)
			return nil
		},
	}
}
