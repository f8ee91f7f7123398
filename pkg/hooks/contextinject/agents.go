package contextinject

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/opencode-ai/opencode-core/pkg/hooks"
)

var agentsCandidates = []string{"AGENTS.md", filepath.Join(".opencode", "AGENTS.md")}

// DirectoryAgentsInjector reads the first of AGENTS.md or
// .opencode/AGENTS.md found at the project root and injects it into
// ctx.System, caching the result (or its absence) per session.
func DirectoryAgentsInjector(deps Deps, caches *Caches) hooks.Hook {
	return hooks.Hook{
		Name:     "directory-agents-injector",
		Chain:    hooks.ChainPreLLM,
		Priority: 100,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			pc := c.(*hooks.PreLLMContext)

			caches.mu.Lock()
			cached, seen := caches.agents[pc.SessionID]
			caches.mu.Unlock()
			if seen {
				if cached != nil {
					pc.System = append(pc.System, *cached)
				}
				return nil
			}

			var injection *string
			for _, candidate := range agentsCandidates {
				content, ok := deps.readGated(candidate)
				if !ok {
					continue
				}
				s := fmt.Sprintf("Instructions from AGENTS.md (%s):\n%s", candidate, content)
				injection = &s
				break
			}

			caches.mu.Lock()
			caches.agents[pc.SessionID] = injection
			caches.mu.Unlock()

			if injection != nil {
				pc.System = append(pc.System, *injection)
			}
			return nil
		},
	}
}
