package module

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burrowhq/burrow/pkg/async"
)

// zipArchive builds an in-memory zip from path -> content
func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// TestHTTPRepositoryInstall tests a successful download and unpack
func TestHTTPRepositoryInstall(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		"mod.json":    `{"main": "app.js"}`,
		"app.js":      "// main",
		"lib/dep.jar": "jar bytes",
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/mymod/mod.zip" {
			w.Write(archive)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	root := t.TempDir()
	repo := NewHTTPRepository(srv.URL, root)

	outcome, dir, err := repo.Install("mymod").WaitTimeout(5 * time.Second)
	require.Equal(t, async.OK, outcome)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "mymod"), dir)

	assert.FileExists(t, filepath.Join(root, "mymod", "mod.json"))
	assert.FileExists(t, filepath.Join(root, "mymod", "app.js"))
	assert.FileExists(t, filepath.Join(root, "mymod", "lib", "dep.jar"))
}

// TestHTTPRepositoryNotFound tests the transport-failure signal
func TestHTTPRepositoryNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	repo := NewHTTPRepository(srv.URL, t.TempDir())

	outcome, _, err := repo.Install("ghost").WaitTimeout(5 * time.Second)
	assert.Equal(t, async.Failed, outcome)
	assert.Error(t, err)
}

// TestHTTPRepositoryMalformedArchive tests a corrupt download
func TestHTTPRepositoryMalformedArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a zip")
	}))
	defer srv.Close()

	repo := NewHTTPRepository(srv.URL, t.TempDir())

	outcome, _, err := repo.Install("bad").WaitTimeout(5 * time.Second)
	assert.Equal(t, async.Failed, outcome)
	assert.Error(t, err)
}

// TestHTTPRepositoryArchiveWithoutManifest tests that an archive missing
// mod.json is rejected and cleaned up
func TestHTTPRepositoryArchiveWithoutManifest(t *testing.T) {
	archive := zipArchive(t, map[string]string{"readme.txt": "no manifest"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	root := t.TempDir()
	repo := NewHTTPRepository(srv.URL, root)

	outcome, _, err := repo.Install("incomplete").WaitTimeout(5 * time.Second)
	assert.Equal(t, async.Failed, outcome)
	assert.Error(t, err)
	assert.NoDirExists(t, filepath.Join(root, "incomplete"))
}

// TestUnzipRejectsEscape tests the path-traversal guard
func TestUnzipRejectsEscape(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("../escape.txt")
	require.NoError(t, err)
	w.Write([]byte("outside"))
	require.NoError(t, zw.Close())

	tmp := filepath.Join(t.TempDir(), "evil.zip")
	require.NoError(t, os.WriteFile(tmp, buf.Bytes(), 0o644))

	err = Unzip(tmp, filepath.Join(t.TempDir(), "dest"))
	assert.Error(t, err)
}
