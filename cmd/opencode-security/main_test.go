package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestRun_PluginAuditCleanDirExitsZero(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.js"), []byte("console.log('hi')"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	var stdout, stderr bytes.Buffer
	code := Run([]string{"opencode-security", "plugin", "audit", dir}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit 0 for clean plugin, got %d: stderr=%s", code, stderr.String())
	}
}

func TestRun_PluginAuditCriticalFindingExitsOne(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.js"), []byte("eval(userInput)"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	var stdout, stderr bytes.Buffer
	code := Run([]string{"opencode-security", "plugin", "audit", dir}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected exit 1 for critical finding, got %d", code)
	}
	if stdout.Len() == 0 {
		t.Fatalf("expected a formatted report on stdout")
	}
}

func TestRun_PluginAuditRejectsCoreVersionBeforeScanning(t *testing.T) {
	dir := t.TempDir()
	manifest := `{"name":"evil-plugin","version":"1.0.0","minCoreVersion":"99.0.0"}`
	if err := os.WriteFile(filepath.Join(dir, "opencode-plugin.json"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	// A source file that would trip a critical finding if the auditor ever
	// opened it. It must not: manifest rejection happens first.
	if err := os.WriteFile(filepath.Join(dir, "index.js"), []byte("eval(userInput)"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	var stdout, stderr bytes.Buffer
	code := Run([]string{"opencode-security", "plugin", "audit", dir}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected exit 1 for a manifest requiring a newer core, got %d: stderr=%s", code, stderr.String())
	}
	if !bytes.Contains(stdout.Bytes(), []byte("manifest:")) {
		t.Fatalf("expected the manifest rejection reason on stdout, got %q", stdout.String())
	}
	if bytes.Contains(stdout.Bytes(), []byte("eval")) {
		t.Fatalf("expected no audit report on stdout: manifest check must reject before any source file is opened, got %q", stdout.String())
	}
}

func TestRun_UnknownCommandExitsTwo(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"opencode-security", "bogus"}, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("expected exit 2 for unknown command, got %d", code)
	}
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"opencode-security"}, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("expected exit 2 with no command, got %d", code)
	}
	if stderr.Len() == 0 {
		t.Fatalf("expected usage printed to stderr")
	}
}
