package module

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
)

const (
	// ManifestName is the per-module manifest file
	ManifestName = "mod.json"

	// LibDirName holds a module's jar artifacts
	LibDirName = "lib"
)

// manifest is the raw mod.json shape
type manifest struct {
	Main         string `json:"main"`
	Worker       bool   `json:"worker"`
	PreserveCwd  bool   `json:"preserve-cwd"`
	AutoRedeploy bool   `json:"auto-redeploy"`
	Includes     string `json:"includes"`
}

// Config is the typed view over a module's manifest. A module without a
// main entry point is a library: it can be included but not run.
type Config struct {
	name string
	dir  string
	m    manifest
}

// LoadConfig reads <modRoot>/<name>/mod.json
func LoadConfig(modRoot, name string) (*Config, error) {
	dir := filepath.Join(modRoot, name)
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("failed to read module manifest for %q: %w", name, err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s of module %q: %w", ManifestName, name, err)
	}

	return &Config{name: name, dir: dir, m: m}, nil
}

// Name returns the module name
func (c *Config) Name() string {
	return c.name
}

// Dir returns the module directory
func (c *Config) Dir() string {
	return c.dir
}

// LibDir returns the directory holding the module's jars
func (c *Config) LibDir() string {
	return filepath.Join(c.dir, LibDirName)
}

// Main returns the entry point, empty for a library module
func (c *Config) Main() string {
	return c.m.Main
}

// Runnable reports whether the module has an entry point
func (c *Config) Runnable() bool {
	return c.m.Main != ""
}

// Worker reports whether instances run on worker goroutines and share one
// factory context
func (c *Config) Worker() bool {
	return c.m.Worker
}

// PreserveCwd reports whether the module keeps the deploying module's
// working directory instead of its own
func (c *Config) PreserveCwd() bool {
	return c.m.PreserveCwd
}

// AutoRedeploy reports whether the module directory is watched for changes
func (c *Config) AutoRedeploy() bool {
	return c.m.AutoRedeploy
}

// Includes returns the ordered module names this module pulls onto its
// classpath
func (c *Config) Includes() []string {
	return SplitList(c.m.Includes)
}

// SplitList parses a comma-separated list, trimming whitespace and
// dropping empty entries.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
