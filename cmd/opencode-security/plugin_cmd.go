package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/opencode-ai/opencode-core/pkg/pluginaudit"
)

// runPluginCmd implements `opencode-security plugin audit <target>`.
//
// Scans target for sandbox-escape risk patterns (eval/Function
// construction, hardcoded absolute paths, raw filesystem APIs) and checks
// its manifest's declared minCoreVersion against the running core version.
//
// Exit codes:
//
//	0 = scan completed, no critical findings
//	1 = scan completed, at least one critical finding (or manifest rejects this core)
//	2 = usage or runtime error
func runPluginCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 || args[0] != "audit" {
		_, _ = fmt.Fprintln(stderr, "Usage: opencode-security plugin audit <target>")
		return 2
	}

	cmd := flag.NewFlagSet("plugin audit", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var coreVersion string
	cmd.StringVar(&coreVersion, "core-version", coreVersionDefault, "Running core version, checked against the plugin's manifest")

	if err := cmd.Parse(args[1:]); err != nil {
		return 2
	}
	rest := cmd.Args()
	if len(rest) != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: opencode-security plugin audit <target>")
		return 2
	}
	target := rest[0]

	root := os.DirFS(target)

	manifest, err := pluginaudit.LoadManifest(root)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: manifest: %v\n", err)
		return 2
	}
	if err := pluginaudit.CheckCoreVersion(manifest, coreVersion); err != nil {
		_, _ = fmt.Fprintf(stdout, "manifest: %v\n", err)
		return 1
	}

	report, err := pluginaudit.NewAuditor().Audit(root)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: audit failed: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintln(stdout, pluginaudit.Format(report))

	if report.HasCritical {
		return 1
	}
	return 0
}

// coreVersionDefault is the running core's version string, compared
// against a plugin manifest's minCoreVersion requirement.
const coreVersionDefault = "0.1.0"
