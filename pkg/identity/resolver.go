package identity

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/opencode-ai/opencode-core/pkg/policy"
)

const (
	projectTokenFileName = ".opencode-role.token"
	userTokenRelPath     = ".config/opencode/role.token"
)

// RoleResolver resolves the active role for the running process and caches
// it for the session. A project never changes its effective role mid-session
// even if the underlying token file is rewritten; call Reset to force a
// re-resolution (tests, or an explicit role-reload command).
type RoleResolver struct {
	mu       sync.Mutex
	resolved bool
	role     string
	logger   *slog.Logger
}

// NewRoleResolver creates an unresolved resolver.
func NewRoleResolver(logger *slog.Logger) *RoleResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleResolver{logger: logger}
}

// CurrentRole implements the §4.2 lookup order, caching the result for the
// lifetime of the resolver. It never errors: every failure mode falls back
// to the lowest-level configured role, or "viewer" if none is configured.
func (r *RoleResolver) CurrentRole(projectRoot string, cfg policy.Config) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		return r.role
	}

	role := r.resolve(projectRoot, cfg)
	r.role = role
	r.resolved = true
	return role
}

// AdminOverride re-resolves the role to "admin" for the remainder of the
// session if passphrase matches the security config's AdminOverrideHash.
// Used by recovery tooling when the role-token public key is unavailable.
func (r *RoleResolver) AdminOverride(cfg policy.Config, passphrase string) error {
	if cfg.Authentication == nil {
		return ErrNoOverrideConfigured
	}
	if err := VerifyAdminOverride(cfg.Authentication.AdminOverrideHash, passphrase); err != nil {
		return err
	}
	if !cfg.HasRole("admin") {
		return errors.New("identity: config defines no admin role")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.role = "admin"
	r.resolved = true
	return nil
}

func (r *RoleResolver) resolve(projectRoot string, cfg policy.Config) string {
	if cfg.Authentication == nil || cfg.Authentication.PublicKey == "" {
		return cfg.DefaultRole()
	}

	keySet, err := LoadSingleKeySet(cfg.Authentication.PublicKey)
	if err != nil {
		r.logger.Warn("identity: configured public key is invalid, falling back to default role", "err", err)
		return cfg.DefaultRole()
	}

	candidates := []string{
		filepath.Join(projectRoot, projectTokenFileName),
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, userTokenRelPath))
	}

	for _, path := range candidates {
		result := Verify(path, keySet.PublicKey(), cfg.Authentication.RevokedTokens)
		if !result.Valid {
			continue
		}
		if !cfg.HasRole(result.Role) {
			r.logger.Warn("identity: role token names an unknown role, ignoring", "role", result.Role, "path", path)
			continue
		}
		return result.Role
	}

	return cfg.DefaultRole()
}

// Reset clears the cached role so the next CurrentRole call re-resolves.
func (r *RoleResolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = false
	r.role = ""
}
