package contextinject

import (
	"context"
	"io/fs"
	"sort"

	"github.com/opencode-ai/opencode-core/pkg/hooks"
)

var rulesGlobs = []string{".opencode/rules/*.md", ".claude/rules/*.md"}

// RulesInjector injects the union of .opencode/rules/*.md and
// .claude/rules/*.md, access-gated and redacted like AGENTS.md, caching the
// resulting list per session.
func RulesInjector(deps Deps, caches *Caches) hooks.Hook {
	return hooks.Hook{
		Name:     "rules-injector",
		Chain:    hooks.ChainPreLLM,
		Priority: 120,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			pc := c.(*hooks.PreLLMContext)

			caches.mu.Lock()
			cached, seen := caches.rules[pc.SessionID]
			caches.mu.Unlock()
			if seen {
				pc.System = append(pc.System, cached...)
				return nil
			}

			var paths []string
			for _, pattern := range rulesGlobs {
				matches, err := fs.Glob(deps.fsys(), pattern)
				if err != nil {
					continue
				}
				paths = append(paths, matches...)
			}
			sort.Strings(paths)

			var injections []string
			for _, p := range paths {
				content, ok := deps.readGated(p)
				if !ok {
					continue
				}
				injections = append(injections, "Rule ("+p+"):\n"+content)
			}

			caches.mu.Lock()
			caches.rules[pc.SessionID] = injections
			caches.mu.Unlock()

			pc.System = append(pc.System, injections...)
			return nil
		},
	}
}
