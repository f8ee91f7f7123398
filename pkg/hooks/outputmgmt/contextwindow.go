package outputmgmt

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/opencode-ai/opencode-core/pkg/hooks"
)

const (
	warningThreshold    = 0.8
	compactionThreshold = 0.9
)

// contextWindowFor returns the known context window for model, or a 128k
// default for anything unrecognized.
func contextWindowFor(model string) int {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "claude"):
		return 200_000
	case strings.Contains(m, "gpt-4"):
		return 128_000
	case strings.Contains(m, "gemini"):
		return 1_000_000
	default:
		return 128_000
	}
}

// estimateTokens approximates token count as ceil(byteLen/4) over the
// system prompt lines and the JSON-serialized message history.
func estimateTokens(pc *hooks.PreLLMContext) int {
	total := 0
	for _, line := range pc.System {
		total += len(line)
	}
	if msgBytes, err := json.Marshal(pc.Messages); err == nil {
		total += len(msgBytes)
	}
	return int(math.Ceil(float64(total) / 4.0))
}

func usageRatio(pc *hooks.PreLLMContext) float64 {
	window := contextWindowFor(pc.Model)
	if window == 0 {
		return 0
	}
	return float64(estimateTokens(pc)) / float64(window)
}

// ContextWindowMonitor warns (pushes a system line) once usage crosses the
// warning threshold but before the compaction threshold.
func ContextWindowMonitor() hooks.Hook {
	return hooks.Hook{
		Name:     "context-window-monitor",
		Chain:    hooks.ChainPreLLM,
		Priority: 900,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			pc := c.(*hooks.PreLLMContext)
			ratio := usageRatio(pc)
			if ratio >= warningThreshold && ratio < compactionThreshold {
				pc.System = append(pc.System, "Warning: context window usage is high; consider wrapping up or compacting soon.")
			}
			return nil
		},
	}
}

// PreemptiveCompaction forces variant "compact" and a CRITICAL system line
// once usage reaches the compaction threshold.
func PreemptiveCompaction() hooks.Hook {
	return hooks.Hook{
		Name:     "preemptive-compaction",
		Chain:    hooks.ChainPreLLM,
		Priority: 910,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			pc := c.(*hooks.PreLLMContext)
			if usageRatio(pc) >= compactionThreshold {
				pc.Variant = "compact"
				pc.System = append(pc.System, "CRITICAL: context window nearly exhausted, compacting now.")
			}
			return nil
		},
	}
}
