package module

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/burrowhq/burrow/pkg/async"
	"github.com/burrowhq/burrow/pkg/log"
)

// Repository downloads and unpacks a missing module. A successful install
// leaves <modRoot>/<name>/mod.json in place. Installation failures —
// timeouts, transport errors, malformed archives — are non-fatal signals;
// the caller iterates to the next configured repository.
type Repository interface {
	// Install fetches the module into the repository's module root. The
	// future resolves to the installed module directory.
	Install(name string) *async.Future[string]

	// String identifies the repository in logs
	String() string
}

// HTTPRepository fetches module archives over HTTP from
// <base>/<name>/mod.zip.
type HTTPRepository struct {
	base    string
	modRoot string
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPRepository creates a repository backed by an HTTP archive host
func NewHTTPRepository(base, modRoot string) *HTTPRepository {
	return &HTTPRepository{
		base:    strings.TrimRight(base, "/"),
		modRoot: modRoot,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  log.WithComponent("repository"),
	}
}

func (r *HTTPRepository) String() string {
	return r.base
}

// Install downloads <base>/<name>/mod.zip and unpacks it into
// <modRoot>/<name>. Runs in the background; the returned future latches
// the outcome.
func (r *HTTPRepository) Install(name string) *async.Future[string] {
	f := async.NewFuture[string]()
	go func() {
		dir, err := r.install(name)
		f.Complete(dir, err)
	}()
	return f
}

func (r *HTTPRepository) install(name string) (string, error) {
	url := fmt.Sprintf("%s/%s/mod.zip", r.base, name)
	r.logger.Debug().Str("module", name).Str("url", url).Msg("Downloading module archive")

	resp, err := r.client.Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: status %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "burrow-mod-*.zip")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return "", fmt.Errorf("failed to save module archive: %w", err)
	}

	modDir := filepath.Join(r.modRoot, name)
	if err := Unzip(tmp.Name(), modDir); err != nil {
		return "", fmt.Errorf("failed to unpack module %q: %w", name, err)
	}

	// A usable install must contain a manifest
	if _, err := os.Stat(filepath.Join(modDir, ManifestName)); err != nil {
		os.RemoveAll(modDir)
		return "", fmt.Errorf("module archive for %q has no %s", name, ManifestName)
	}

	return modDir, nil
}

// Unzip extracts an archive into dest, rejecting entries that would
// escape it.
func Unzip(archive, dest string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	for _, file := range zr.File {
		target := filepath.Join(dest, file.Name)
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes destination: %s", file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractFile(file, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(file *zip.File, target string) error {
	in, err := file.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, file.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
