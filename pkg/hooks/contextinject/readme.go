package contextinject

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/opencode-ai/opencode-core/pkg/hooks"
)

// DirectoryReadmeInjector is like DirectoryAgentsInjector but for
// README.md, and only re-reads when the session's current working
// directory has moved since the last call.
func DirectoryReadmeInjector(deps Deps, caches *Caches) hooks.Hook {
	return hooks.Hook{
		Name:     "directory-readme-injector",
		Chain:    hooks.ChainPreLLM,
		Priority: 110,
		Enabled:  true,
		Handler: func(_ context.Context, c any) error {
			pc := c.(*hooks.PreLLMContext)
			dir := deps.cwd()

			caches.mu.Lock()
			cached, seen := caches.readme[pc.SessionID]
			caches.mu.Unlock()
			if seen && cached.dir == dir {
				if cached.content != "" {
					pc.System = append(pc.System, cached.content)
				}
				return nil
			}

			content, ok := deps.readGated(filepath.Join(dir, "README.md"))
			injection := ""
			if ok {
				injection = fmt.Sprintf("Instructions from README.md (%s):\n%s", filepath.Join(dir, "README.md"), content)
			}

			caches.mu.Lock()
			caches.readme[pc.SessionID] = readmeCacheEntry{dir: dir, content: injection}
			caches.mu.Unlock()

			if injection != "" {
				pc.System = append(pc.System, injection)
			}
			return nil
		},
	}
}
