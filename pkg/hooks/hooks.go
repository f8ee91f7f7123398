// Package hooks implements the prioritized interceptor chains that every
// LLM call and every tool call flows through: pre-llm, pre-tool, post-tool,
// and session-lifecycle. Handlers run in priority order with per-handler
// error isolation — a failing handler never stops the chain.
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ChainType names one of the four hook chains.
type ChainType string

const (
	ChainPreLLM           ChainType = "pre-llm"
	ChainPreTool          ChainType = "pre-tool"
	ChainPostTool         ChainType = "post-tool"
	ChainSessionLifecycle ChainType = "session-lifecycle"
)

// Handler mutates chainCtx in place and may return an error; a returned
// error is caught, logged, and swallowed by the executor — the chain always
// continues to the next handler.
type Handler func(ctx context.Context, chainCtx any) error

// Hook is a single registered interceptor.
type Hook struct {
	Name     string
	Chain    ChainType
	Priority int
	Enabled  bool
	Handler  Handler
}

// chainState is the per-chain compile state machine: EMPTY -> REGISTERED,
// then REGISTERED <-> COMPILED via Execute (forward) and Register/ReloadConfig
// (back). Reset returns every chain to EMPTY.
type chainState int

const (
	stateEmpty chainState = iota
	stateRegistered
	stateCompiled
)

type chainSlot struct {
	state      chainState
	registered []Hook
	compiled   []Hook
}

// Registry holds every registered hook, grouped by chain, plus the
// name->enabled overrides applied at compile time.
type Registry struct {
	mu      sync.Mutex
	chains  map[ChainType]*chainSlot
	enabled map[string]bool
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		chains:  make(map[ChainType]*chainSlot),
		enabled: make(map[string]bool),
	}
}

func (r *Registry) slot(chain ChainType) *chainSlot {
	s, ok := r.chains[chain]
	if !ok {
		s = &chainSlot{state: stateEmpty}
		r.chains[chain] = s
	}
	return s
}

// Register appends h to its chain and invalidates that chain's compiled
// array, moving it back to REGISTERED.
func (r *Registry) Register(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.slot(h.Chain)
	s.registered = append(s.registered, h)
	s.compiled = nil
	s.state = stateRegistered
}

// Init merges a name->enabled config, invalidating every chain's compiled
// array. A name absent from config defaults to enabled.
func (r *Registry) Init(config map[string]bool) {
	r.ReloadConfig(config)
}

// ReloadConfig merges config into the enabled-overrides map and invalidates
// every compiled chain, moving REGISTERED chains back from COMPILED.
func (r *Registry) ReloadConfig(config map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, en := range config {
		r.enabled[name] = en
	}
	for _, s := range r.chains {
		if s.state == stateCompiled {
			s.state = stateRegistered
		}
		s.compiled = nil
	}
}

// isEnabled resolves the final enabled flag for a hook: an explicit config
// override wins over the hook's own Enabled field.
func (r *Registry) isEnabled(h Hook) bool {
	if en, ok := r.enabled[h.Name]; ok {
		return en
	}
	return h.Enabled
}

// compile filters by enabled, sorts ascending by priority (registration
// order breaks ties via SliceStable), and freezes the chain. Must be called
// with r.mu held.
func (r *Registry) compile(chain ChainType) []Hook {
	s := r.slot(chain)
	if s.state == stateCompiled {
		return s.compiled
	}

	filtered := make([]Hook, 0, len(s.registered))
	for _, h := range s.registered {
		if r.isEnabled(h) {
			filtered = append(filtered, h)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Priority < filtered[j].Priority
	})

	s.compiled = filtered
	s.state = stateCompiled
	return s.compiled
}

// ListRegistered introspects every registered hook for chain, or every
// chain if chain is "".
func (r *Registry) ListRegistered(chain ChainType) []Hook {
	r.mu.Lock()
	defer r.mu.Unlock()
	if chain != "" {
		s, ok := r.chains[chain]
		if !ok {
			return nil
		}
		out := make([]Hook, len(s.registered))
		copy(out, s.registered)
		return out
	}
	var all []Hook
	for _, s := range r.chains {
		all = append(all, s.registered...)
	}
	return all
}

// Reset drops every chain back to EMPTY. Test-only.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains = make(map[ChainType]*chainSlot)
	r.enabled = make(map[string]bool)
}

// PluginHooks is the narrow interface an external plugin layer implements to
// contribute hooks run "outer before inner" around the internal chain.
type PluginHooks interface {
	Handlers(chain ChainType) []Handler
}

// Executor runs a compiled chain against a chain context, isolating each
// handler's error so the chain always completes.
type Executor struct {
	registry *Registry
	plugins  PluginHooks
	logger   *slog.Logger
	tracer   trace.Tracer
	errCount metric.Int64Counter
}

// NewExecutor builds an Executor bound to registry. plugins may be nil
// (no external plugin hooks contribute to any chain).
func NewExecutor(registry *Registry, plugins PluginHooks, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	meter := otel.Meter("opencode.hooks")
	counter, err := meter.Int64Counter("opencode.hooks.errors",
		metric.WithDescription("hook handler errors caught and swallowed by the executor"),
	)
	if err != nil {
		counter = nil
	}
	return &Executor{
		registry: registry,
		plugins:  plugins,
		logger:   logger,
		tracer:   otel.Tracer("opencode.hooks"),
		errCount: counter,
	}
}

// Execute lazily compiles chain, runs any external plugin handlers for it,
// then the internal chain, then runs the plugin handlers a second time —
// the "outer before inner" composition contract (outer plugin synchronizes
// its view of ctx both before and after the internal chain runs). Every
// handler's error or panic is caught, logged by hook name, and swallowed;
// the chain always continues.
func (e *Executor) Execute(ctx context.Context, chain ChainType, chainCtx any) {
	ctx, span := e.tracer.Start(ctx, "hook.chain.execute", trace.WithAttributes(
		attribute.String("hook.chain", string(chain)),
	))
	defer span.End()

	if e.plugins != nil {
		e.runHandlers(ctx, chain, "plugin", e.plugins.Handlers(chain), chainCtx)
	}

	e.registry.mu.Lock()
	compiled := e.registry.compile(chain)
	e.registry.mu.Unlock()

	for _, h := range compiled {
		e.runOne(ctx, chain, h.Name, h.Handler, chainCtx)
	}

	if e.plugins != nil {
		e.runHandlers(ctx, chain, "plugin", e.plugins.Handlers(chain), chainCtx)
	}
}

func (e *Executor) runHandlers(ctx context.Context, chain ChainType, label string, handlers []Handler, chainCtx any) {
	for i, h := range handlers {
		e.runOne(ctx, chain, fmt.Sprintf("%s[%d]", label, i), h, chainCtx)
	}
}

func (e *Executor) runOne(ctx context.Context, chain ChainType, name string, handler Handler, chainCtx any) {
	hctx, hspan := e.tracer.Start(ctx, "hook.handler", trace.WithAttributes(
		attribute.String("hook.chain", string(chain)),
		attribute.String("hook.name", name),
	))
	defer hspan.End()

	defer func() {
		if rec := recover(); rec != nil {
			e.logger.ErrorContext(ctx, "hook handler panicked, swallowed", "hook", name, "chain", chain, "panic", rec)
			hspan.RecordError(fmt.Errorf("panic: %v", rec))
			e.countError(ctx, name, chain)
		}
	}()

	if err := handler(hctx, chainCtx); err != nil {
		e.logger.ErrorContext(ctx, "hook handler error, swallowed", "hook", name, "chain", chain, "err", err)
		hspan.RecordError(err)
		e.countError(ctx, name, chain)
	}
}

func (e *Executor) countError(ctx context.Context, name string, chain ChainType) {
	if e.errCount == nil {
		return
	}
	e.errCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("hook.name", name), attribute.String("hook.chain", string(chain)),
	))
}
