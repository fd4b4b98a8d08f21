package module

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/burrowhq/burrow/pkg/async"
	"github.com/burrowhq/burrow/pkg/config"
	"github.com/burrowhq/burrow/pkg/log"
	"github.com/burrowhq/burrow/pkg/metrics"
)

// Manager installs modules from configured repositories and resolves a
// module's transitive dependency graph into a classpath.
type Manager struct {
	modRoot string

	// Tried in order; not thread-safe, mutate only at start-up
	repos []Repository

	repoTimeout time.Duration

	logger zerolog.Logger
}

// NewManager creates a module manager rooted at modRoot, creating the
// directory if needed.
func NewManager(modRoot string, repos ...Repository) (*Manager, error) {
	info, err := os.Stat(modRoot)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(modRoot, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create module root %q: %w", modRoot, err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat module root %q: %w", modRoot, err)
	case !info.IsDir():
		return nil, fmt.Errorf("module root exists but is not a directory: %q", modRoot)
	}

	return &Manager{
		modRoot:     modRoot,
		repos:       repos,
		repoTimeout: config.DefaultRepoTimeout,
		logger:      log.WithComponent("modules"),
	}, nil
}

// ModRoot returns the module root directory
func (m *Manager) ModRoot() string {
	return m.modRoot
}

// Repositories returns the configured repositories
func (m *Manager) Repositories() []Repository {
	return m.repos
}

// ModDir returns the directory a module lives in
func (m *Manager) ModDir(name string) string {
	return filepath.Join(m.modRoot, name)
}

// Installed reports whether a module's manifest is present on disk
func (m *Manager) Installed(name string) bool {
	_, err := os.Stat(filepath.Join(m.modRoot, name, ManifestName))
	return err == nil
}

// Install fetches a missing module, trying each repository in order and
// stopping at the first success. Already installed modules are left
// untouched.
func (m *Manager) Install(name string) error {
	if m.Installed(name) {
		return nil
	}

	for _, repo := range m.repos {
		outcome, dir, err := repo.Install(name).WaitTimeout(m.repoTimeout)
		switch outcome {
		case async.TimedOut:
			m.logger.Error().Str("module", name).Str("repository", repo.String()).
				Msg("Timeout while downloading module")
		case async.Failed:
			m.logger.Error().Err(err).Str("module", name).Str("repository", repo.String()).
				Msg("Failed to install module")
		case async.OK:
			m.logger.Info().Str("module", name).Str("repository", repo.String()).
				Str("dir", dir).Msg("Module installed")
			metrics.ModuleInstallsTotal.WithLabelValues("ok").Inc()
			return nil
		}
	}

	metrics.ModuleInstallsTotal.WithLabelValues("failed").Inc()
	return fmt.Errorf("install failed: module %q not available from any repository", name)
}

// Uninstall deletes a module's directory
func (m *Manager) Uninstall(name string) error {
	modDir := m.ModDir(name)
	if _, err := os.Stat(modDir); err != nil {
		return fmt.Errorf("cannot find module directory to delete: %q", modDir)
	}
	if err := os.RemoveAll(modDir); err != nil {
		return fmt.Errorf("failed to delete module directory %q: %w", modDir, err)
	}
	m.logger.Info().Str("module", name).Msg("Module uninstalled")
	return nil
}

// resolveVisitor builds a Dependencies while the walker descends the
// include graph.
type resolveVisitor struct {
	mgr  *Manager
	deps *Dependencies
}

func (v *resolveVisitor) Visit(cfg *Config) VisitResult {
	deps := v.deps
	name := cfg.Name()

	// The module's own directory precedes its jars, which precede any
	// include's contributions: the outer module wins on the classpath.
	deps.AddURL(cfg.Dir())

	entries, err := os.ReadDir(cfg.LibDir())
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				// Only file children of lib/ are jar candidates
				continue
			}
			base := entry.Name()
			if prev := deps.AddJar(base, name); len(prev) > 0 {
				metrics.JarCollisionsTotal.Inc()
				warning := fmt.Sprintf(
					"jar file %s is contained in module %s and also in module %s, "+
						"which are both included (perhaps indirectly) by module %s",
					base, prev[len(prev)-1], name, deps.RunModule)
				deps.Warn(warning)
				v.mgr.logger.Warn().Msg(warning)
			}
			deps.AddURL(filepath.Join(cfg.LibDir(), base))
		}
	}

	deps.MarkIncluded(name)
	return Continue
}

func (v *resolveVisitor) Missing(name string) bool {
	if err := v.mgr.Install(name); err != nil {
		v.deps.Fail(fmt.Sprintf("module %q is not installed and could not be: %v", name, err))
		return false
	}
	return true
}

// Resolve walks the include graph seeded with name and returns the
// accumulated classpath. Resolution is idempotent against an unchanged
// module tree. A failed install of any include fails the whole
// resolution.
func (m *Manager) Resolve(name string) *Dependencies {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ModuleResolutionDuration)

	deps := NewDependencies(name)
	v := &resolveVisitor{mgr: m, deps: deps}
	NewWalker(m.modRoot).Walk(name, v)
	return deps
}

// ResolveIncludes resolves a comma-separated include list onto a preset
// classpath — the ad-hoc verticle deployment case.
func (m *Manager) ResolveIncludes(includes string, urls []string) *Dependencies {
	deps := NewDependencies("", urls...)
	v := &resolveVisitor{mgr: m, deps: deps}
	walker := NewWalker(m.modRoot)
	for _, name := range SplitList(includes) {
		walker.Walk(name, v)
		if deps.Failed() {
			break
		}
	}
	return deps
}
