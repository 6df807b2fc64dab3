// Package manifest reads and writes the skylift.yml site manifest that lives
// in a website's root directory.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the manifest's fixed name inside the site root.
const FileName = "skylift.yml"

var guidRegex = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)

// Manifest is the local YAML descriptor for a website.
type Manifest struct {
	ID     string         `yaml:"id,omitempty"`
	Deploy DeploySettings `yaml:"deploy"`
}

// DeploySettings is the deploy section of the manifest.
type DeploySettings struct {
	// Directory is the sub-path of the site root to package. Empty means
	// the root itself.
	Directory string `yaml:"directory,omitempty"`

	// Ignore lists extra glob patterns excluded from the deploy, on top of
	// the built-in defaults.
	Ignore []string `yaml:"ignore,omitempty"`

	// Build lists shell commands run before packaging.
	Build []string `yaml:"build,omitempty"`
}

// ErrNotFound is returned by Load when the directory has no manifest.
var ErrNotFound = errors.New("no " + FileName + " file in this directory")

// Load reads and validates the manifest in dir.
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("the %s file is not valid yaml: %w", FileName, err)
	}

	if m.ID != "" {
		id, err := fixGuid(m.ID)
		if err != nil {
			return nil, err
		}
		m.ID = id
	}
	return &m, nil
}

// Save writes the manifest to dir.
func Save(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", FileName, err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", FileName, err)
	}
	return nil
}

// EnsureNotExists fails when dir already has a manifest, so `create` never
// silently clobbers an existing site.
func EnsureNotExists(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
		return fmt.Errorf("there is already a %s file in this directory", FileName)
	}
	return nil
}

// fixGuid normalizes an app ID pasted into the manifest: smart-dash
// characters become plain dashes and missing dashes are re-inserted at the
// canonical positions.
func fixGuid(id string) (string, error) {
	stripped := strings.ToLower(id)
	stripped = regexp.MustCompile(`[^a-f0-9]`).ReplaceAllString(stripped, "")
	if len(stripped) != 32 {
		return "", fmt.Errorf("the id value in %s is not a valid app id", FileName)
	}
	fixed := stripped[0:8] + "-" + stripped[8:12] + "-" + stripped[12:16] + "-" + stripped[16:20] + "-" + stripped[20:32]
	if !guidRegex.MatchString(fixed) {
		return "", fmt.Errorf("the id value in %s is not a valid app id", FileName)
	}
	return fixed, nil
}
