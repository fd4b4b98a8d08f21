package module

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadLangs tests loading a properties mapping file
func TestLoadLangs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "langs.properties")
	content := "js=jsFactory\npy=pyFactory\ndefault=goFactory\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	langs, err := LoadLangs(path)
	require.NoError(t, err)

	name, err := langs.FactoryName("app.js")
	require.NoError(t, err)
	assert.Equal(t, "jsFactory", name)

	name, err = langs.FactoryName("worker.py")
	require.NoError(t, err)
	assert.Equal(t, "pyFactory", name)
}

// TestLangsDefaultFallback tests the default key for unknown extensions
func TestLangsDefaultFallback(t *testing.T) {
	langs := NewLangs(map[string]string{"js": "jsFactory", "default": "goFactory"})

	name, err := langs.FactoryName("main.rb")
	require.NoError(t, err)
	assert.Equal(t, "goFactory", name)

	// No extension at all also falls through to default
	name, err = langs.FactoryName("Main")
	require.NoError(t, err)
	assert.Equal(t, "goFactory", name)
}

// TestLangsNoMapping tests the configuration error
func TestLangsNoMapping(t *testing.T) {
	langs := NewLangs(map[string]string{"js": "jsFactory"})

	_, err := langs.FactoryName("main.rb")
	assert.Error(t, err)
}

// TestLoadLangsMissingFile tests the error path
func TestLoadLangsMissingFile(t *testing.T) {
	_, err := LoadLangs(filepath.Join(t.TempDir(), "none.properties"))
	assert.Error(t, err)
}
