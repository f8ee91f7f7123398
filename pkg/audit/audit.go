// Package audit records every access decision as an append-only,
// hash-chained JSON-lines log. Recording is fire-and-forget: a logging
// failure never blocks or fails the decision it is recording.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opencode-ai/opencode-core/pkg/canonicalize"
)

// Result is the outcome of an access decision.
type Result string

const (
	ResultAllowed Result = "allowed"
	ResultDenied  Result = "denied"
)

// Event is a single audit record, matching the Audit Record data model:
// timestamp, role, operation, path, result, and optional reason, triggering
// rule, and content hash. PrevHash chains each record to the one before it.
type Event struct {
	DecisionID    string    `json:"decisionID,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Role          string    `json:"role"`
	Operation     string    `json:"operation"`
	Path          string    `json:"path"`
	Result        Result    `json:"result"`
	Reason        string    `json:"reason,omitempty"`
	RuleTriggered string    `json:"ruleTriggered,omitempty"`
	ContentHash   string    `json:"contentHash,omitempty"`
	PrevHash      string    `json:"prevHash,omitempty"`
}

// Level controls which decisions get written.
type Level string

const (
	LevelVerbose Level = "verbose"
	LevelNormal  Level = "normal"
)

// Logger is what every other component calls to record a decision. It never
// returns an error: callers that want to know about sink failures should
// read Logger implementations' own metrics/logs, not block on Record.
type Logger interface {
	Record(e Event)
}

// ChainLogger wraps a Store, filters by Level, stamps each event's
// timestamp, and threads the hash chain (§3.5): PrevHash is the SHA-256 of
// the JCS-canonicalized previous event.
type ChainLogger struct {
	mu       sync.Mutex
	store    Store
	level    Level
	prevHash string
}

// NewChainLogger creates a logger writing through store, filtered per level.
// If store is nil, Record is a no-op (useful for tests and dry runs).
func NewChainLogger(store Store, level Level) *ChainLogger {
	if level == "" {
		level = LevelNormal
	}
	return &ChainLogger{store: store, level: level}
}

func (l *ChainLogger) Record(e Event) {
	if l.store == nil {
		return
	}
	if l.level != LevelVerbose && e.Result == ResultAllowed {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e.Timestamp = time.Now().UTC()
	e.PrevHash = l.prevHash
	if e.DecisionID == "" {
		e.DecisionID = uuid.NewString()
	}

	hash, err := canonicalize.CanonicalHash(e)
	if err == nil {
		l.prevHash = hash
	}

	// Append errors are swallowed: audit logging is fire-and-forget and must
	// never block the operation it is recording.
	_ = l.store.Append(e)
}
