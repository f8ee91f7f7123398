package contextinject

import (
	"context"
	"regexp"
	"strings"

	"github.com/opencode-ai/opencode-core/pkg/hooks"
)

var fileReferencePattern = regexp.MustCompile(
	`(?i)\b(?:working on|editing|modified|created|changed)\b[^\n]*?([\w./-]+\.[A-Za-z0-9]+)\b`,
)

var decisionPattern = regexp.MustCompile(`(?im)^\s*decision:\s*(.+)$`)

// messagesOf extracts the message history a session-lifecycle context
// carries in its Data map under "messages", if any.
func messagesOf(ctx *hooks.SessionLifecycleContext) []hooks.Message {
	if ctx.Data == nil {
		return nil
	}
	msgs, _ := ctx.Data["messages"].([]hooks.Message)
	return msgs
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

func extractContextRefs(messages []hooks.Message) []string {
	var refs []string
	for _, m := range messages {
		for _, match := range fileReferencePattern.FindAllStringSubmatch(m.Content, -1) {
			refs = append(refs, match[1])
		}
		for _, match := range decisionPattern.FindAllStringSubmatch(m.Content, -1) {
			refs = append(refs, "decision: "+strings.TrimSpace(match[1]))
		}
	}
	return dedupe(refs)
}

// CompactionContextInjector runs on session.compacting (scanning the
// message history for file references and "decision:" lines, preserving
// the deduplicated list) and on session.created (re-injecting the
// previously preserved list).
func CompactionContextInjector(caches *Caches) hooks.Hook {
	return hooks.Hook{
		Name:     "compaction-context-injector",
		Chain:    hooks.ChainSessionLifecycle,
		Priority: 100,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			lc := c.(*hooks.SessionLifecycleContext)

			switch lc.Event {
			case hooks.EventSessionCompacting:
				refs := extractContextRefs(messagesOf(lc))
				caches.mu.Lock()
				caches.preserved[lc.SessionID] = refs
				caches.mu.Unlock()
				if lc.Data == nil {
					lc.Data = map[string]any{}
				}
				lc.Data["context"] = refs

			case hooks.EventSessionCreated:
				caches.mu.Lock()
				preserved := caches.preserved[lc.SessionID]
				caches.mu.Unlock()
				if len(preserved) > 0 {
					if lc.Data == nil {
						lc.Data = map[string]any{}
					}
					lc.Data["preservedContext"] = preserved
				}
			}
			return nil
		},
	}
}

var todoItemPattern = regexp.MustCompile(`(?m)^\s*-\s*\[\s*\]\s*(.+)$`)
var todoLabelPattern = regexp.MustCompile(`(?im)^\s*(?:TODO|FIXME):\s*(.+)$`)
var todoProsePattern = regexp.MustCompile(`(?im)(?:still need to|remaining|incomplete|pending):\s*(.+)$`)

func extractIncompleteTodos(messages []hooks.Message) []string {
	var items []string
	for _, m := range messages {
		for _, match := range todoItemPattern.FindAllStringSubmatch(m.Content, -1) {
			items = append(items, strings.TrimSpace(match[1]))
		}
		for _, match := range todoLabelPattern.FindAllStringSubmatch(m.Content, -1) {
			items = append(items, strings.TrimSpace(match[1]))
		}
		for _, match := range todoProsePattern.FindAllStringSubmatch(m.Content, -1) {
			items = append(items, strings.TrimSpace(match[1]))
		}
	}
	return dedupe(items)
}

// CompactionTodoPreserver extracts incomplete todo items from the message
// history on session.compacting and re-injects them on session.created,
// the same way CompactionContextInjector handles file references.
func CompactionTodoPreserver(caches *Caches) hooks.Hook {
	return hooks.Hook{
		Name:     "compaction-todo-preserver",
		Chain:    hooks.ChainSessionLifecycle,
		Priority: 110,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			lc := c.(*hooks.SessionLifecycleContext)

			switch lc.Event {
			case hooks.EventSessionCompacting:
				todos := extractIncompleteTodos(messagesOf(lc))
				caches.mu.Lock()
				caches.todos[lc.SessionID] = todos
				caches.mu.Unlock()
				if lc.Data == nil {
					lc.Data = map[string]any{}
				}
				lc.Data["todos"] = todos

			case hooks.EventSessionCreated:
				caches.mu.Lock()
				preserved := caches.todos[lc.SessionID]
				caches.mu.Unlock()
				if len(preserved) > 0 {
					if lc.Data == nil {
						lc.Data = map[string]any{}
					}
					lc.Data["preservedTodos"] = preserved
				}
			}
			return nil
		},
	}
}
