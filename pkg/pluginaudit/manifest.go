package pluginaudit

import (
	"encoding/json"
	"fmt"
	"io/fs"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Manifest is the optional `{name, version, minCoreVersion}` descriptor a
// plugin may ship. Its absence is not an error — the auditor proceeds
// straight to the source scan.
type Manifest struct {
	Name           string `json:"name" yaml:"name"`
	Version        string `json:"version" yaml:"version"`
	MinCoreVersion string `json:"minCoreVersion" yaml:"minCoreVersion"`
}

const manifestFileName = "opencode-plugin.json"
const yamlManifestFileName = "opencode-plugin.yaml"

// LoadManifest reads and parses the manifest from root, if present. The
// JSON form is tried first, then the YAML form. Absence of both returns
// (nil, nil): best-effort, not a failure.
func LoadManifest(root fs.FS) (*Manifest, error) {
	if data, err := fs.ReadFile(root, manifestFileName); err == nil {
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("pluginaudit: malformed manifest: %w", err)
		}
		return &m, nil
	}

	data, err := fs.ReadFile(root, yamlManifestFileName)
	if err != nil {
		return nil, nil
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("pluginaudit: malformed manifest: %w", err)
	}
	return &m, nil
}

// CheckCoreVersion rejects a manifest that requires a core newer than
// coreVersion, before any source file is opened.
func CheckCoreVersion(m *Manifest, coreVersion string) error {
	if m == nil || m.MinCoreVersion == "" {
		return nil
	}

	required, err := semver.NewVersion(m.MinCoreVersion)
	if err != nil {
		return fmt.Errorf("pluginaudit: invalid minCoreVersion %q: %w", m.MinCoreVersion, err)
	}
	current, err := semver.NewVersion(coreVersion)
	if err != nil {
		return fmt.Errorf("pluginaudit: invalid core version %q: %w", coreVersion, err)
	}

	if current.LessThan(required) {
		return fmt.Errorf("pluginaudit: plugin %s requires core >= %s, have %s", m.Name, required, current)
	}
	return nil
}
