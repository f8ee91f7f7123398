// Package errorrecovery implements the post-tool and session-lifecycle
// hooks that detect tool failures, synthesize recovery guidance, and break
// repetition loops.
package errorrecovery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/opencode-ai/opencode-core/pkg/hooks"
)

// editFailureSignatures maps a fixed edit-tool failure substring to the
// recovery guidance appended when it's seen.
var editFailureSignatures = []struct {
	signature string
	guidance  string
}{
	{"oldString not found", "The oldString did not match any text in the file. Re-read the file to get its exact current content before retrying the edit."},
	{"Found multiple matches", "oldString matched more than one location. Add more surrounding context to oldString so the match is unique."},
	{"oldString and newString must be different", "oldString and newString were identical, so there was nothing to change. Use a newString that differs from oldString."},
}

// EditErrorRecovery appends recovery guidance to an edit tool's output when
// it hit one of the fixed, recognized failure signatures.
func EditErrorRecovery() hooks.Hook {
	return hooks.Hook{
		Name:     "edit-error-recovery",
		Chain:    hooks.ChainPostTool,
		Priority: 100,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			pt := c.(*hooks.PostToolContext)
			if pt.ToolName != "edit" {
				return nil
			}
			for _, sig := range editFailureSignatures {
				if strings.Contains(pt.Result.Output, sig.signature) {
					pt.Result.Output += "\n\n" + sig.guidance
					return nil
				}
			}
			return nil
		},
	}
}

// ContextWindowLimitRecovery annotates ctx.Data["recovery"] = "compact" when
// a session.error event reports an APIError whose message names
// context_window_exceeded.
func ContextWindowLimitRecovery() hooks.Hook {
	return hooks.Hook{
		Name:     "context-window-limit-recovery",
		Chain:    hooks.ChainSessionLifecycle,
		Priority: 10,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			lc := c.(*hooks.SessionLifecycleContext)
			if lc.Event != hooks.EventSessionError || lc.Data == nil {
				return nil
			}
			name, _ := lc.Data["errorName"].(string)
			message, _ := lc.Data["message"].(string)
			if name == "APIError" && strings.Contains(message, "context_window_exceeded") {
				lc.Data["recovery"] = "compact"
			}
			return nil
		},
	}
}

// delegateFailureLexicon are substrings, case-insensitive, that mark a
// delegate_task/task tool output as a failure.
var delegateFailureLexicon = []string{"error", "failed", "failure", "exception", "timeout"}

func looksLikeFailure(output string) bool {
	lower := strings.ToLower(output)
	for _, term := range delegateFailureLexicon {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// RetryState tracks per-(session,tool) retry counts across post-tool
// invocations of delegate_task/task, since the chain context carries no
// persistent task identifier of its own.
type RetryState struct {
	mu      sync.Mutex
	retries map[string]int
}

// NewRetryState builds an empty RetryState.
func NewRetryState() *RetryState {
	return &RetryState{retries: make(map[string]int)}
}

func (s *RetryState) next(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries[key]++
	return s.retries[key]
}

// DelegateTaskRetry appends exponential-backoff retry guidance to a failed
// delegate_task/task invocation, switching to an exhaustion note after the
// second failure.
func DelegateTaskRetry(state *RetryState) hooks.Hook {
	return hooks.Hook{
		Name:     "delegate-task-retry",
		Chain:    hooks.ChainPostTool,
		Priority: 200,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			pt := c.(*hooks.PostToolContext)
			if pt.ToolName != "delegate_task" && pt.ToolName != "task" {
				return nil
			}
			if !looksLikeFailure(pt.Result.Output) {
				return nil
			}

			key := pt.SessionID + ":" + pt.ToolName
			count := state.next(key)

			if pt.Result.Metadata == nil {
				pt.Result.Metadata = map[string]any{}
			}
			pt.Result.Metadata["retryCount"] = count

			if count >= 2 {
				pt.Result.Output += "\n\nRetry budget exhausted after 2 attempts; stop retrying this task and report the failure instead."
				return nil
			}

			delayMS := 1000 * (1 << count)
			pt.Result.Output += fmt.Sprintf("\n\nTask failed; retry after %dms (attempt %d).", delayMS, count)
			return nil
		},
	}
}

// normalizeSignature is the first line of msg, trimmed and capped at 200
// characters, used to group repeated errors.
func normalizeSignature(msg string) string {
	line := msg
	if idx := strings.IndexByte(msg, '\n'); idx != -1 {
		line = msg[:idx]
	}
	line = strings.TrimSpace(line)
	if len(line) > 200 {
		line = line[:200]
	}
	return line
}

// LoopState tracks per-session, per-error-signature repetition counts.
type LoopState struct {
	mu     sync.Mutex
	counts map[string]map[string]int
}

// NewLoopState builds an empty LoopState.
func NewLoopState() *LoopState {
	return &LoopState{counts: make(map[string]map[string]int)}
}

func (s *LoopState) increment(sessionID, signature string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	bySession, ok := s.counts[sessionID]
	if !ok {
		bySession = make(map[string]int)
		s.counts[sessionID] = bySession
	}
	bySession[signature]++
	return bySession[signature]
}

// IterativeErrorRecovery counts repeated error signatures per session and,
// once the same signature has recurred 3 or more times, appends a
// loop-break warning instructing the agent to re-read and change strategy.
func IterativeErrorRecovery(state *LoopState) hooks.Hook {
	return hooks.Hook{
		Name:     "iterative-error-recovery",
		Chain:    hooks.ChainPostTool,
		Priority: 300,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			pt := c.(*hooks.PostToolContext)
			if !looksLikeFailure(pt.Result.Output) {
				return nil
			}

			signature := normalizeSignature(pt.Result.Output)
			count := state.increment(pt.SessionID, signature)
			if count >= 3 {
				pt.Result.Output += "\n\nThis error has now recurred 3+ times with the same signature. Stop repeating the same approach: re-read the relevant file or output in full and change strategy before trying again."
			}
			return nil
		},
	}
}
