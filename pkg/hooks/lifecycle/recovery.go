package lifecycle

import (
	"context"
	"fmt"

	"github.com/opencode-ai/opencode-core/pkg/hooks"
)

// SessionRecovery attaches the list of other sessions still busy, and an
// advisory message, to a newly created session's context.
func SessionRecovery(statuses *StatusRegistry) hooks.Hook {
	return hooks.Hook{
		Name:     "session-recovery",
		Chain:    hooks.ChainSessionLifecycle,
		Priority: 10,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			lc := c.(*hooks.SessionLifecycleContext)
			if lc.Event != hooks.EventSessionCreated {
				return nil
			}

			busy := statuses.BusySiblings(lc.SessionID)
			if len(busy) == 0 {
				return nil
			}

			if lc.Data == nil {
				lc.Data = map[string]any{}
			}
			lc.Data["busySessions"] = busy
			lc.Data["busyAdvisory"] = fmt.Sprintf("%d other session(s) are currently busy: %v. Avoid conflicting file edits.", len(busy), busy)
			return nil
		},
	}
}
