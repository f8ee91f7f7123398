package lifecycle

import (
	"context"
	"sync"

	"github.com/opencode-ai/opencode-core/pkg/hooks"
)

// FailureTracker counts agent.error events per (sessionID, agent),
// independent per agent within a session, reset to 0 on agent.stopped.
type FailureTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewFailureTracker builds an empty FailureTracker.
func NewFailureTracker() *FailureTracker {
	return &FailureTracker{counts: make(map[string]int)}
}

func key(sessionID, agent string) string { return sessionID + "\x00" + agent }

// UnstableAgentBabysitter appends diagnostic guidance once a single agent
// within a session has errored 3 or more times, and resets that agent's
// counter whenever it stops cleanly.
func UnstableAgentBabysitter(tracker *FailureTracker) hooks.Hook {
	return hooks.Hook{
		Name:     "unstable-agent-babysitter",
		Chain:    hooks.ChainSessionLifecycle,
		Priority: 250,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			lc := c.(*hooks.SessionLifecycleContext)
			k := key(lc.SessionID, lc.Agent)

			switch lc.Event {
			case hooks.EventAgentStopped:
				tracker.mu.Lock()
				tracker.counts[k] = 0
				tracker.mu.Unlock()

			case hooks.EventAgentError:
				tracker.mu.Lock()
				tracker.counts[k]++
				count := tracker.counts[k]
				tracker.mu.Unlock()

				if count >= 3 {
					if lc.Data == nil {
						lc.Data = map[string]any{}
					}
					lc.Data["diagnostic"] = "This agent has errored 3 or more times in this session. Consider stopping it and investigating the root cause rather than letting it keep retrying."
				}
			}
			return nil
		},
	}
}
