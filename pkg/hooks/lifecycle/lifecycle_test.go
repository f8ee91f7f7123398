package lifecycle

import (
	"context"
	"testing"

	"github.com/opencode-ai/opencode-core/pkg/hooks"
)

func TestSessionRecovery_AttachesBusySiblings(t *testing.T) {
	statuses := NewStatusRegistry()
	statuses.Set("s1", StatusBusy)
	statuses.Set("s2", StatusBusy)

	h := SessionRecovery(statuses)
	lc := &hooks.SessionLifecycleContext{SessionID: "s3", Event: hooks.EventSessionCreated}
	if err := h.Handler(context.Background(), lc); err != nil {
		t.Fatalf("handler: %v", err)
	}
	busy, _ := lc.Data["busySessions"].([]string)
	if len(busy) != 2 {
		t.Fatalf("expected 2 busy siblings, got %v", busy)
	}
}

func TestSessionRecovery_NoOpWhenNobodyBusy(t *testing.T) {
	h := SessionRecovery(NewStatusRegistry())
	lc := &hooks.SessionLifecycleContext{SessionID: "s1", Event: hooks.EventSessionCreated}
	if err := h.Handler(context.Background(), lc); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if lc.Data != nil {
		t.Fatalf("expected no data attached, got %v", lc.Data)
	}
}

func TestSessionNotification_RecordsEveryAttempt(t *testing.T) {
	n := NewNotifier(NotificationConfig{Enabled: true}, func(title, body string, sound bool) error {
		return nil
	})
	h := SessionNotification(n)
	lc := &hooks.SessionLifecycleContext{SessionID: "s1", Event: hooks.EventAgentStopped, Agent: "coder"}
	if err := h.Handler(context.Background(), lc); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(n.Log) != 1 || !n.Log[0].Delivered {
		t.Fatalf("expected 1 delivered notification logged, got %+v", n.Log)
	}
}

func TestSessionNotification_RateLimitedButStillLogged(t *testing.T) {
	n := NewNotifier(NotificationConfig{Enabled: true}, func(title, body string, sound bool) error {
		return nil
	})
	h := SessionNotification(n)
	for i := 0; i < 2; i++ {
		lc := &hooks.SessionLifecycleContext{SessionID: "s1", Event: hooks.EventAgentStopped, Agent: "coder"}
		h.Handler(context.Background(), lc)
	}
	if len(n.Log) != 2 {
		t.Fatalf("expected both attempts logged, got %d", len(n.Log))
	}
	if n.Log[1].Delivered {
		t.Fatalf("expected second rapid notification to be rate-limited (not delivered)")
	}
}

func TestSessionNotification_DisabledNeverDelivers(t *testing.T) {
	n := NewNotifier(NotificationConfig{Enabled: false}, func(title, body string, sound bool) error {
		return nil
	})
	h := SessionNotification(n)
	lc := &hooks.SessionLifecycleContext{SessionID: "s1", Event: hooks.EventAgentStopped}
	h.Handler(context.Background(), lc)
	if n.Log[0].Delivered {
		t.Fatalf("expected disabled notifier not to deliver")
	}
}

func TestUnstableAgentBabysitter_WarnsAtThirdErrorAndResetsOnStop(t *testing.T) {
	tracker := NewFailureTracker()
	h := UnstableAgentBabysitter(tracker)

	var last *hooks.SessionLifecycleContext
	for i := 0; i < 3; i++ {
		last = &hooks.SessionLifecycleContext{SessionID: "s1", Agent: "coder", Event: hooks.EventAgentError}
		h.Handler(context.Background(), last)
	}
	if last.Data["diagnostic"] == nil {
		t.Fatalf("expected diagnostic guidance at third error")
	}

	stop := &hooks.SessionLifecycleContext{SessionID: "s1", Agent: "coder", Event: hooks.EventAgentStopped}
	h.Handler(context.Background(), stop)

	again := &hooks.SessionLifecycleContext{SessionID: "s1", Agent: "coder", Event: hooks.EventAgentError}
	h.Handler(context.Background(), again)
	if again.Data != nil {
		t.Fatalf("expected counter reset after stop, got %v", again.Data)
	}
}

func TestUnstableAgentBabysitter_IndependentPerAgent(t *testing.T) {
	tracker := NewFailureTracker()
	h := UnstableAgentBabysitter(tracker)

	for i := 0; i < 3; i++ {
		lc := &hooks.SessionLifecycleContext{SessionID: "s1", Agent: "coder", Event: hooks.EventAgentError}
		h.Handler(context.Background(), lc)
	}
	other := &hooks.SessionLifecycleContext{SessionID: "s1", Agent: "reviewer", Event: hooks.EventAgentError}
	h.Handler(context.Background(), other)
	if other.Data != nil {
		t.Fatalf("expected a different agent's counter to start fresh, got %v", other.Data)
	}
}

type staticTodoLister struct{ todos []Todo }

func (s staticTodoLister) ListTodos(string) []Todo { return s.todos }

func TestTodoContinuationEnforcer_AttachesPromptForIncomplete(t *testing.T) {
	lister := staticTodoLister{todos: []Todo{
		{ID: "1", Text: "write tests", Status: ""},
		{ID: "2", Text: "ship it", Status: TodoCompleted},
	}}
	h := TodoContinuationEnforcer(lister, NewStopSignals())
	lc := &hooks.SessionLifecycleContext{SessionID: "s1", Event: hooks.EventAgentStopped}
	if err := h.Handler(context.Background(), lc); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if lc.Data["continuationPrompt"] == nil {
		t.Fatalf("expected continuation prompt for incomplete todo")
	}
}

func TestStopContinuationGuard_SuppressesEnforcer(t *testing.T) {
	lister := staticTodoLister{todos: []Todo{{ID: "1", Text: "write tests"}}}
	signals := NewStopSignals()
	guard := StopContinuationGuard(signals)
	enforcer := TodoContinuationEnforcer(lister, signals)

	lc := &hooks.SessionLifecycleContext{
		SessionID: "s1", Event: hooks.EventAgentStopped,
		Data: map[string]any{"userStop": true},
	}
	guard.Handler(context.Background(), lc)
	enforcer.Handler(context.Background(), lc)

	if lc.Data["continuationPrompt"] != nil {
		t.Fatalf("expected guard to suppress the continuation prompt")
	}
}

func TestSubagentQuestionBlocker_BlocksSubagentQuestion(t *testing.T) {
	h := SubagentQuestionBlocker(func(sessionID, agent string) bool { return agent == "sub" })
	pt := &hooks.PreToolContext{SessionID: "s1", Agent: "sub", ToolName: "question"}
	if err := h.Handler(context.Background(), pt); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if pt.Args["_blocked"] != true {
		t.Fatalf("expected _blocked=true, got %v", pt.Args)
	}
}

func TestSubagentQuestionBlocker_AllowsTopLevelAgent(t *testing.T) {
	h := SubagentQuestionBlocker(func(sessionID, agent string) bool { return false })
	pt := &hooks.PreToolContext{SessionID: "s1", Agent: "main", ToolName: "question"}
	if err := h.Handler(context.Background(), pt); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if pt.Args != nil {
		t.Fatalf("expected no blocking for top-level agent, got %v", pt.Args)
	}
}
