package module

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeModule creates a module directory with a manifest and optional jar
// basenames under lib/
func writeModule(t *testing.T, modRoot, name, manifest string, jars ...string) {
	t.Helper()
	dir := filepath.Join(modRoot, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestName), []byte(manifest), 0o644))
	if len(jars) > 0 {
		lib := filepath.Join(dir, LibDirName)
		require.NoError(t, os.MkdirAll(lib, 0o755))
		for _, jar := range jars {
			require.NoError(t, os.WriteFile(filepath.Join(lib, jar), []byte("jar"), 0o644))
		}
	}
}

// TestLoadConfig tests the typed accessors
func TestLoadConfig(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "app-mod", `{
		"main": "app.js",
		"worker": true,
		"preserve-cwd": true,
		"auto-redeploy": true,
		"includes": "mod-a, mod-b,,mod-c"
	}`)

	cfg, err := LoadConfig(root, "app-mod")
	require.NoError(t, err)

	assert.Equal(t, "app-mod", cfg.Name())
	assert.Equal(t, filepath.Join(root, "app-mod"), cfg.Dir())
	assert.Equal(t, "app.js", cfg.Main())
	assert.True(t, cfg.Runnable())
	assert.True(t, cfg.Worker())
	assert.True(t, cfg.PreserveCwd())
	assert.True(t, cfg.AutoRedeploy())
	assert.Equal(t, []string{"mod-a", "mod-b", "mod-c"}, cfg.Includes())
}

// TestLoadConfigDefaults tests that absent fields default to off
func TestLoadConfigDefaults(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "lib-mod", `{}`)

	cfg, err := LoadConfig(root, "lib-mod")
	require.NoError(t, err)

	// No main: a library module, not runnable
	assert.False(t, cfg.Runnable())
	assert.False(t, cfg.Worker())
	assert.False(t, cfg.PreserveCwd())
	assert.False(t, cfg.AutoRedeploy())
	assert.Empty(t, cfg.Includes())
}

// TestLoadConfigMissing tests the not-installed case
func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(t.TempDir(), "ghost")
	assert.Error(t, err)
}

// TestLoadConfigMalformed tests an unparseable manifest
func TestLoadConfigMalformed(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "broken", `{not json`)

	_, err := LoadConfig(root, "broken")
	assert.Error(t, err)
}

// TestSplitList tests comma-list parsing
func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ", []string{"a", "b"}},
		{",,a,,", []string{"a"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitList(tt.in), "input %q", tt.in)
	}
}
