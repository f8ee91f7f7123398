// Package policy loads, validates, and caches the project security
// configuration (`.opencode-security.json`). It never propagates I/O or
// schema errors to the caller — a missing or malformed config degrades to
// an empty configuration and is logged once, matching the rest of the core's
// fail-open-but-logged posture for non-authoritative layers.
package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Operation is one of the three things a caller can intend to do with a
// path or its contents.
type Operation string

const (
	OpRead Operation = "read"
	OpWrite Operation = "write"
	OpLLM   Operation = "llm"
)

// RuleType distinguishes a single-file rule from a directory rule.
type RuleType string

const (
	RuleFile      RuleType = "file"
	RuleDirectory RuleType = "directory"
)

// Role is a named authority level; higher Level grants more privilege.
type Role struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

// Rule is a declarative path-access record.
type Rule struct {
	Pattern          string      `json:"pattern"`
	Type             RuleType    `json:"type"`
	DeniedOperations []Operation `json:"deniedOperations"`
	AllowedRoles     []string    `json:"allowedRoles"`
}

// Segment is a marker pair bracketing a protected region inside file content.
type Segment struct {
	Start            string      `json:"start"`
	End              string      `json:"end"`
	DeniedOperations []Operation `json:"deniedOperations"`
	AllowedRoles     []string    `json:"allowedRoles"`
}

// Segments groups the marker pairs and the optional pattern-scan rules.
type Segments struct {
	Markers []Segment `json:"markers"`
	// CELPredicate is an optional CEL boolean expression over {line,
	// lineNumber}, evaluated by the CEL pattern-scanner backend in place of
	// the fixed regex/AST declaration pattern. Empty means "not configured".
	CELPredicate string `json:"celPredicate,omitempty"`
}

// Authentication enables role-token verification. Its absence means every
// caller is treated as the default (lowest-level) role.
type Authentication struct {
	PublicKey     string          `json:"publicKey"`
	RevokedTokens map[string]bool `json:"revokedTokens"`
	// AdminOverrideHash is a bcrypt hash of a local recovery passphrase.
	// When set, it lets `doctor`-style recovery tooling assume the admin
	// role without a signed token, e.g. when the public key is lost.
	AdminOverrideHash string `json:"adminOverrideHash,omitempty"`
}

// MCPPolicyMode is the guarding level applied when invoking an MCP server.
type MCPPolicyMode string

const (
	MCPEnforced MCPPolicyMode = "enforced"
	MCPTrusted  MCPPolicyMode = "trusted"
	MCPBlocked  MCPPolicyMode = "blocked"
)

// MCPConfig configures per-server and default MCP guarding.
type MCPConfig struct {
	DefaultPolicy MCPPolicyMode            `json:"defaultPolicy"`
	Servers       map[string]MCPPolicyMode `json:"servers"`
}

// LogLevel controls audit log verbosity.
type LogLevel string

const (
	LogVerbose LogLevel = "verbose"
	LogNormal  LogLevel = "normal"
)

// LoggingConfig configures the audit log sink.
type LoggingConfig struct {
	Path  string   `json:"path"`
	Level LogLevel `json:"level"`
}

// Config is the full, validated security configuration for a project.
type Config struct {
	Version        string          `json:"version"`
	Roles          []Role          `json:"roles"`
	Authentication *Authentication `json:"authentication,omitempty"`
	Rules          []Rule          `json:"rules"`
	Segments       Segments        `json:"segments"`
	MCP            *MCPConfig      `json:"mcp,omitempty"`
	Logging        LoggingConfig   `json:"logging"`
}

// Empty returns the zero-value configuration: it denies nothing except the
// two hardcoded implicit protections enforced by pkg/access regardless of
// config content.
func Empty() Config {
	return Config{}
}

// DefaultRole returns the minimum-level role, or "viewer" if no roles are
// configured.
func (c Config) DefaultRole() string {
	if len(c.Roles) == 0 {
		return "viewer"
	}
	min := c.Roles[0]
	for _, r := range c.Roles[1:] {
		if r.Level < min.Level {
			min = r
		}
	}
	return min.Name
}

// HasRole reports whether name is a known role.
func (c Config) HasRole(name string) bool {
	for _, r := range c.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// MCPPolicy resolves the guarding mode for a named MCP server per §4.1:
// explicit server policy, else defaultPolicy, else "trusted" iff no mcp
// block exists at all; if an mcp block exists but names neither, "enforced".
func (c Config) MCPPolicy(serverName string) MCPPolicyMode {
	if c.MCP == nil {
		return MCPTrusted
	}
	if mode, ok := c.MCP.Servers[serverName]; ok && mode != "" {
		return mode
	}
	if c.MCP.DefaultPolicy != "" {
		return c.MCP.DefaultPolicy
	}
	return MCPEnforced
}

// DefaultConfigFileName is the well-known config file name at project root.
const DefaultConfigFileName = ".opencode-security.json"

// DefaultAuditLogFileName is the well-known audit log path, used when
// Logging.Path is unset.
const DefaultAuditLogFileName = ".opencode-security-audit.log"

const schemaURL = "https://opencode.sh/schemas/security-config.schema.json"

func compileConfigSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(configSchemaSource)); err != nil {
		panic(fmt.Sprintf("policy: embedded schema invalid: %v", err))
	}
	return c.MustCompile(schemaURL)
}

var configSchema = compileConfigSchema()

const configSchemaSource = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["version"],
	"properties": {
		"version": {"type": "string"},
		"roles": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "level"],
				"properties": {
					"name": {"type": "string"},
					"level": {"type": "integer"}
				}
			}
		},
		"rules": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["pattern", "type"],
				"properties": {
					"pattern": {"type": "string"},
					"type": {"enum": ["file", "directory"]},
					"deniedOperations": {
						"type": "array",
						"items": {"enum": ["read", "write", "llm"]}
					},
					"allowedRoles": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`

// Store loads, validates, and caches the active configuration for a single
// process instance. It is created at bootstrap and, outside of tests, never
// mutated except via Reset (test-only) or an explicit reload.
type Store struct {
	mu      sync.RWMutex
	loaded  bool
	config  Config
	logger  *slog.Logger
	warnedOnce map[string]bool
}

// NewStore creates an empty, unloaded Store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger, warnedOnce: make(map[string]bool)}
}

// Validate parses and schema-checks raw config bytes without activating
// them. Exported separately from Load so tests can assert schema failures
// without touching the filesystem.
func Validate(raw []byte) (Config, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Config{}, fmt.Errorf("policy: malformed json: %w", err)
	}
	if err := configSchema.Validate(generic); err != nil {
		return Config{}, fmt.Errorf("policy: schema validation failed: %w", err)
	}
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("policy: decode failed: %w", err)
	}
	return cfg, nil
}

// Load reads the config file at <projectRoot>/.opencode-security.json. If
// absent, unparsable, or schema-invalid, it activates an empty configuration
// and logs a warning exactly once per reason; it never returns an error.
func (s *Store) Load(projectRoot string) {
	s.LoadFS(os.DirFS(projectRoot), DefaultConfigFileName)
}

// LoadFS is Load parameterized over an fs.FS, so tests and the plugin
// auditor can load from an in-memory filesystem.
func (s *Store) LoadFS(fsys fs.FS, name string) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		s.activate(Empty())
		s.warnOnce("missing-config", "security config not found, running with empty policy", "err", err)
		return
	}

	cfg, err := Validate(raw)
	if err != nil {
		s.activate(Empty())
		s.warnOnce("invalid-config", "security config invalid, falling back to empty policy", "err", err)
		return
	}

	s.activate(cfg)
}

func (s *Store) activate(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
	s.loaded = true
}

func (s *Store) warnOnce(key, msg string, args ...any) {
	s.mu.Lock()
	already := s.warnedOnce[key]
	s.warnedOnce[key] = true
	s.mu.Unlock()
	if !already {
		s.logger.Warn(msg, args...)
	}
}

// Get returns the active configuration. If Load has never run, it returns
// an empty configuration and logs a warning once.
func (s *Store) Get() Config {
	s.mu.RLock()
	loaded := s.loaded
	cfg := s.config
	s.mu.RUnlock()
	if !loaded {
		s.warnOnce("not-loaded", "policy store read before Load; using empty policy")
		return Empty()
	}
	return cfg
}

// Reset drops the cached configuration. Test-only, and also used by a
// config-reload path (which unfreezes the hook registry — see pkg/hooks).
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = Config{}
	s.loaded = false
}

// ConfigPath resolves the absolute config file path for a project root,
// matching the implicit-protection check in pkg/access.
func ConfigPath(projectRoot string) string {
	return filepath.Join(projectRoot, DefaultConfigFileName)
}

// AuditLogPath resolves the audit log path for a project, honoring an
// explicit Logging.Path override.
func AuditLogPath(projectRoot string, cfg Config) string {
	if cfg.Logging.Path != "" {
		if filepath.IsAbs(cfg.Logging.Path) {
			return cfg.Logging.Path
		}
		return filepath.Join(projectRoot, cfg.Logging.Path)
	}
	return filepath.Join(projectRoot, DefaultAuditLogFileName)
}
