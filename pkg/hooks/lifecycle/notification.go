package lifecycle

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/opencode-ai/opencode-core/pkg/hooks"
)

// NotificationRecord is one entry in the internal notification log kept for
// test inspection.
type NotificationRecord struct {
	SessionID string
	Title     string
	Body      string
	Delivered bool
}

// NotificationConfig toggles delivery and sound, resolved once at runtime.
type NotificationConfig struct {
	Enabled bool
	Sound   bool
}

// Notifier dispatches platform-native notifications and rate-limits them
// per session with a token bucket, so a thrashing agent cannot spam the
// desktop. Every attempt, delivered or not, is recorded in Log for tests.
type Notifier struct {
	mu       sync.Mutex
	cfg      NotificationConfig
	limiters map[string]*rate.Limiter
	Log      []NotificationRecord
	dispatch func(title, body string, sound bool) error
}

// NewNotifier builds a Notifier. dispatch may be nil, in which case the
// platform-native command is used (macOS: osascript, Linux: notify-send,
// elsewhere: no-op).
func NewNotifier(cfg NotificationConfig, dispatch func(title, body string, sound bool) error) *Notifier {
	if dispatch == nil {
		dispatch = platformDispatch
	}
	return &Notifier{cfg: cfg, limiters: make(map[string]*rate.Limiter), dispatch: dispatch}
}

func (n *Notifier) limiterFor(sessionID string) *rate.Limiter {
	n.mu.Lock()
	defer n.mu.Unlock()
	l, ok := n.limiters[sessionID]
	if !ok {
		// One notification per 10 seconds, burst of 1, per session.
		l = rate.NewLimiter(rate.Every(10*time.Second), 1)
		n.limiters[sessionID] = l
	}
	return l
}

func platformDispatch(title, body string, sound bool) error {
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		if sound {
			script += ` sound name "default"`
		}
		return exec.Command("osascript", "-e", script).Run()
	case "linux":
		return exec.Command("notify-send", title, body).Run()
	default:
		return nil
	}
}

// SessionNotification emits a platform-native notification on agent.stopped
// and always records the attempt, rate-limited to one per session per
// window.
func SessionNotification(n *Notifier) hooks.Hook {
	return hooks.Hook{
		Name:     "session-notification",
		Chain:    hooks.ChainSessionLifecycle,
		Priority: 300,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			lc := c.(*hooks.SessionLifecycleContext)
			if lc.Event != hooks.EventAgentStopped {
				return nil
			}

			body := fmt.Sprintf("Agent `%s` has completed its task", lc.Agent)
			record := NotificationRecord{SessionID: lc.SessionID, Title: "OpenCode", Body: body}

			if !n.cfg.Enabled || !n.limiterFor(lc.SessionID).Allow() {
				n.mu.Lock()
				n.Log = append(n.Log, record)
				n.mu.Unlock()
				return nil
			}

			err := n.dispatch(record.Title, body, n.cfg.Sound)
			record.Delivered = err == nil

			n.mu.Lock()
			n.Log = append(n.Log, record)
			n.mu.Unlock()
			return err
		},
	}
}
