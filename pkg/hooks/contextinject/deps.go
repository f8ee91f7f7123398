// Package contextinject implements the pre-llm and session-lifecycle hooks
// that inject project context — AGENTS.md, README.md, rule files, and
// compaction-preserved state — into a model request, honoring access
// control and segment redaction on every file it reads.
package contextinject

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/opencode-ai/opencode-core/pkg/access"
	"github.com/opencode-ai/opencode-core/pkg/policy"
	"github.com/opencode-ai/opencode-core/pkg/segment"
)

// Deps are the dependencies every context-injection hook needs to read a
// file under access control and redact it before it reaches ctx.System.
type Deps struct {
	ProjectRoot string
	FS          fs.FS // defaults to os.DirFS(ProjectRoot) when nil
	Checker     *access.Checker
	Config      policy.Config
	Role        string
	Scanner     *segment.Scanner // nil disables pattern scanning, markers only
	CWD         func() string    // defaults to returning ProjectRoot
}

func (d Deps) fsys() fs.FS {
	if d.FS != nil {
		return d.FS
	}
	return os.DirFS(d.ProjectRoot)
}

func (d Deps) cwd() string {
	if d.CWD != nil {
		return d.CWD()
	}
	return d.ProjectRoot
}

// resolvePath turns rel (absolute or project-root-relative) into the
// absolute path access.Checker expects and the fs.FS-relative slash path
// fs.ReadFile expects.
func (d Deps) resolvePath(rel string) (abs string, fsRel string) {
	if filepath.IsAbs(rel) {
		abs = filepath.Clean(rel)
	} else {
		abs = filepath.Clean(filepath.Join(d.ProjectRoot, rel))
	}
	r, err := filepath.Rel(d.ProjectRoot, abs)
	if err != nil {
		r = rel
	}
	return abs, filepath.ToSlash(r)
}

// readGated reads rel if both read and llm access are allowed for the
// configured role, returning the segment-redacted content. ok is false when
// the file is absent or either operation is denied.
func (d Deps) readGated(rel string) (content string, ok bool) {
	abs, fsRel := d.resolvePath(rel)

	if d.Checker != nil {
		if !d.Checker.Check(abs, policy.OpRead, d.Role).Allowed {
			return "", false
		}
		if !d.Checker.Check(abs, policy.OpLLM, d.Role).Allowed {
			return "", false
		}
	}

	raw, err := fs.ReadFile(d.fsys(), fsRel)
	if err != nil {
		return "", false
	}

	scanner := d.Scanner
	if scanner == nil {
		scanner = segment.NewScanner(nil)
	}
	ranges := scanner.Scan(raw, d.Config.Segments)
	protected := segment.ForRole(ranges, policy.OpLLM, d.Role)
	redacted := segment.NewRedactor().Redact(raw, protected)
	return string(redacted), true
}

// readmeCacheEntry pairs the directory a README was read from with its
// (possibly redacted) content, so the injector can tell whether cwd moved.
type readmeCacheEntry struct {
	dir     string
	content string
}

// Caches holds every per-session cache this package's hooks maintain.
// resetCaches (§4.8) clears all of them at once.
type Caches struct {
	mu        sync.Mutex
	agents    map[string]*string
	readme    map[string]readmeCacheEntry
	rules     map[string][]string
	preserved map[string][]string
	todos     map[string][]string
}

// NewCaches builds an empty Caches.
func NewCaches() *Caches {
	c := &Caches{}
	c.clear()
	return c
}

func (c *Caches) clear() {
	c.agents = make(map[string]*string)
	c.readme = make(map[string]readmeCacheEntry)
	c.rules = make(map[string][]string)
	c.preserved = make(map[string][]string)
	c.todos = make(map[string][]string)
}

// ResetCaches clears every per-session cache. Test-only in practice, though
// nothing prevents a config-reload path from calling it too.
func (c *Caches) ResetCaches() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clear()
}
