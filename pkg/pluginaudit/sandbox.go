package pluginaudit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// QueryPlugin runs a compiled WASM module exposing a single `scan(text) ->
// findings` contract, letting a plugin author ship custom detection rules
// without the auditor loading arbitrary native code. The sandbox is
// deny-by-default: no filesystem mounts, no network, no env passthrough.
type QueryPlugin struct {
	runtime wazero.Runtime
	module  wazero.CompiledModule
	timeout time.Duration
}

// NewQueryPlugin compiles wasmBytes inside a fresh deny-by-default wazero
// runtime. Closing the returned QueryPlugin releases the runtime.
func NewQueryPlugin(ctx context.Context, wasmBytes []byte, timeout time.Duration) (*QueryPlugin, error) {
	r := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("pluginaudit: instantiate wasi: %w", err)
	}

	mod, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("pluginaudit: compile wasm module: %w", err)
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &QueryPlugin{runtime: r, module: mod, timeout: timeout}, nil
}

// queryFinding mirrors Finding but without the File field, which the caller
// fills in since a query plugin only ever sees one file's text.
type queryFinding struct {
	Line     int      `json:"line"`
	Severity Severity `json:"severity"`
	Rule     string   `json:"rule"`
	Excerpt  string   `json:"excerpt"`
}

// Scan runs the module against text, feeding it on stdin and reading a JSON
// array of findings from stdout. The module has no filesystem, network, or
// clock access — only the bytes it is given and the bytes it returns.
func (q *QueryPlugin) Scan(ctx context.Context, file string, text []byte) ([]Finding, error) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithName("opencode-plugin-query").
		WithStdin(bytes.NewReader(text)).
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithStartFunctions("_start")

	instance, err := q.runtime.InstantiateModule(ctx, q.module, cfg)
	if err != nil {
		return nil, fmt.Errorf("pluginaudit: run query plugin: %w (stderr: %s)", err, stderr.String())
	}
	defer instance.Close(ctx)

	var raw []queryFinding
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return nil, fmt.Errorf("pluginaudit: parse query plugin output: %w", err)
	}

	findings := make([]Finding, 0, len(raw))
	for _, f := range raw {
		findings = append(findings, Finding{
			File:     file,
			Line:     f.Line,
			Severity: f.Severity,
			Rule:     f.Rule,
			Excerpt:  f.Excerpt,
		})
	}
	return findings, nil
}

// Close releases the wazero runtime.
func (q *QueryPlugin) Close(ctx context.Context) error {
	return q.runtime.Close(ctx)
}
