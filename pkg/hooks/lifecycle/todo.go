package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/opencode-ai/opencode-core/pkg/hooks"
)

// TodoStatus is the completion state of a single todo item.
type TodoStatus string

const (
	TodoCompleted TodoStatus = "completed"
	TodoCancelled TodoStatus = "cancelled"
)

// Todo is one tracked work item for a session.
type Todo struct {
	ID     string
	Text   string
	Status TodoStatus
}

// TodoLister looks up a session's current todo list.
type TodoLister interface {
	ListTodos(sessionID string) []Todo
}

func incomplete(todos []Todo) []Todo {
	var out []Todo
	for _, t := range todos {
		if t.Status != TodoCompleted && t.Status != TodoCancelled {
			out = append(out, t)
		}
	}
	return out
}

// StopSignals records, per session, whether a user-initiated stop was seen
// — set by StopContinuationGuard, read by TodoContinuationEnforcer.
type StopSignals struct {
	mu      sync.Mutex
	stopped map[string]bool
}

// NewStopSignals builds an empty StopSignals.
func NewStopSignals() *StopSignals {
	return &StopSignals{stopped: make(map[string]bool)}
}

// StopContinuationGuard records a userStop flag for the session so
// TodoContinuationEnforcer (which runs at a higher priority number, later
// in the chain) can see it and skip its continuation prompt.
func StopContinuationGuard(signals *StopSignals) hooks.Hook {
	return hooks.Hook{
		Name:     "stop-continuation-guard",
		Chain:    hooks.ChainSessionLifecycle,
		Priority: 190,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			lc := c.(*hooks.SessionLifecycleContext)
			if lc.Event != hooks.EventAgentStopped {
				return nil
			}
			if lc.Data != nil {
				if stop, _ := lc.Data["userStop"].(bool); stop {
					signals.mu.Lock()
					signals.stopped[lc.SessionID] = true
					signals.mu.Unlock()
				}
			}
			return nil
		},
	}
}

// TodoContinuationEnforcer attaches a continuation prompt listing a
// session's incomplete todos when its agent stops, unless a user stop
// signal was recorded for that session.
func TodoContinuationEnforcer(lister TodoLister, signals *StopSignals) hooks.Hook {
	return hooks.Hook{
		Name:     "todo-continuation-enforcer",
		Chain:    hooks.ChainSessionLifecycle,
		Priority: 200,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			lc := c.(*hooks.SessionLifecycleContext)
			if lc.Event != hooks.EventAgentStopped {
				return nil
			}

			signals.mu.Lock()
			stopped := signals.stopped[lc.SessionID]
			signals.mu.Unlock()
			if stopped {
				return nil
			}

			open := incomplete(lister.ListTodos(lc.SessionID))
			if len(open) == 0 {
				return nil
			}

			items := make([]string, 0, len(open))
			for _, t := range open {
				items = append(items, "- "+t.Text)
			}

			if lc.Data == nil {
				lc.Data = map[string]any{}
			}
			lc.Data["continuationPrompt"] = fmt.Sprintf(
				"You stopped with %d incomplete todo(s) remaining:\n%s\nContinue working on them.",
				len(open), strings.Join(items, "\n"),
			)
			return nil
		},
	}
}
