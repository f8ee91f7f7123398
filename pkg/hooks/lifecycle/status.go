// Package lifecycle implements the session-lifecycle and pre-tool hooks
// that coordinate multiple concurrent sessions: cross-session busy
// advisories, completion notifications, per-agent failure tracking, and
// todo-continuation enforcement.
package lifecycle

import "sync"

// Status is a session's coarse activity state.
type Status string

const (
	StatusIdle Status = "idle"
	StatusBusy Status = "busy"
)

// StatusRegistry tracks the current Status of every known session, so
// session-recovery can advise a newly created session about siblings still
// busy.
type StatusRegistry struct {
	mu     sync.Mutex
	status map[string]Status
}

// NewStatusRegistry builds an empty StatusRegistry.
func NewStatusRegistry() *StatusRegistry {
	return &StatusRegistry{status: make(map[string]Status)}
}

// Set records sessionID's current status.
func (r *StatusRegistry) Set(sessionID string, s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[sessionID] = s
}

// BusySiblings returns every other session currently busy, excluding
// exclude.
func (r *StatusRegistry) BusySiblings(exclude string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for sid, s := range r.status {
		if sid != exclude && s == StatusBusy {
			out = append(out, sid)
		}
	}
	return out
}
