package redeploy

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burrowhq/burrow/pkg/deploy"
	"github.com/burrowhq/burrow/pkg/timer"
)

// batchReloader records every reload batch it receives
type batchReloader struct {
	mu      sync.Mutex
	batches [][]*deploy.Deployment
}

func (r *batchReloader) Reload(deps []*deploy.Deployment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch := make([]*deploy.Deployment, len(deps))
	copy(batch, deps)
	r.batches = append(r.batches, batch)
}

func (r *batchReloader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *batchReloader) names(batch int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, d := range r.batches[batch] {
		out = append(out, d.Name)
	}
	return out
}

const testPeriod = 60 * time.Millisecond

// engine abstracts the two implementations for shared test bodies
type engineFactory func(t *testing.T, modRoot string, r Reloader) deploy.Redeployer

func newTestScheduler(t *testing.T) timer.Scheduler {
	t.Helper()
	sched, err := timer.NewTimer(5*time.Millisecond, 64)
	require.NoError(t, err)
	t.Cleanup(func() { sched.Stop() })
	return sched
}

func watcherFactory(t *testing.T, modRoot string, r Reloader) deploy.Redeployer {
	w, err := NewWatcher(modRoot, r, newTestScheduler(t), testPeriod)
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return w
}

func pollerFactory(t *testing.T, modRoot string, r Reloader) deploy.Redeployer {
	p := NewPoller(modRoot, r, newTestScheduler(t), testPeriod)
	t.Cleanup(p.Close)
	return p
}

func engines() map[string]engineFactory {
	return map[string]engineFactory{
		"watcher": watcherFactory,
		"polling": pollerFactory,
	}
}

func writeModuleDir(t *testing.T, modRoot, name string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(modRoot, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func deployment(name, moduleName string) *deploy.Deployment {
	return &deploy.Deployment{Name: name, ModuleName: moduleName, Instances: 1, AutoRedeploy: true}
}

// TestFileCreateTriggersReload tests the S4 scenario: a file created
// under a watched module reloads its deployment within two check periods
func TestFileCreateTriggersReload(t *testing.T) {
	for name, factory := range engines() {
		t.Run(name, func(t *testing.T) {
			modRoot := t.TempDir()
			writeModuleDir(t, modRoot, "my-mod", map[string]string{"foo.js": "// code"})

			reloader := &batchReloader{}
			engine := factory(t, modRoot, reloader)

			dep1 := deployment("dep1", "my-mod")
			engine.ModuleDeployed(dep1)

			// Let one full check period pass quietly
			time.Sleep(testPeriod + testPeriod/2)

			payload := make([]byte, 1000)
			require.NoError(t, os.WriteFile(
				filepath.Join(modRoot, "my-mod", "blah.txt"), payload, 0o644))

			assert.Eventually(t, func() bool { return reloader.count() == 1 },
				4*testPeriod, 5*time.Millisecond, "expected exactly one reload")
			assert.Equal(t, []string{"dep1"}, reloader.names(0))
		})
	}
}

// TestBurstCoalesces tests invariant: k > 1 writes inside one check
// period produce exactly one reload
func TestBurstCoalesces(t *testing.T) {
	for name, factory := range engines() {
		t.Run(name, func(t *testing.T) {
			modRoot := t.TempDir()
			writeModuleDir(t, modRoot, "my-mod", map[string]string{"foo.js": "// code"})

			reloader := &batchReloader{}
			engine := factory(t, modRoot, reloader)
			engine.ModuleDeployed(deployment("dep1", "my-mod"))

			time.Sleep(testPeriod + testPeriod/2)

			// A write burst
			for i := 0; i < 5; i++ {
				require.NoError(t, os.WriteFile(
					filepath.Join(modRoot, "my-mod", "burst.txt"),
					[]byte{byte(i)}, 0o644))
				time.Sleep(2 * time.Millisecond)
			}

			assert.Eventually(t, func() bool { return reloader.count() >= 1 },
				6*testPeriod, 5*time.Millisecond)

			// No further reloads arrive once the burst is over
			time.Sleep(3 * testPeriod)
			assert.Equal(t, 1, reloader.count(), "burst was not coalesced")
		})
	}
}

// TestMultiDeploymentReloadSet tests the S5 scenario: a change under
// my-mod reloads dep1 and dep2 as one set, never dep3
func TestMultiDeploymentReloadSet(t *testing.T) {
	for name, factory := range engines() {
		t.Run(name, func(t *testing.T) {
			modRoot := t.TempDir()
			writeModuleDir(t, modRoot, "my-mod", map[string]string{"foo.js": "a"})
			writeModuleDir(t, modRoot, "other-mod", map[string]string{"bar.js": "b"})

			reloader := &batchReloader{}
			engine := factory(t, modRoot, reloader)
			engine.ModuleDeployed(deployment("dep1", "my-mod"))
			engine.ModuleDeployed(deployment("dep2", "my-mod"))
			engine.ModuleDeployed(deployment("dep3", "other-mod"))

			time.Sleep(testPeriod + testPeriod/2)

			require.NoError(t, os.WriteFile(
				filepath.Join(modRoot, "my-mod", "change.txt"), []byte("x"), 0o644))

			assert.Eventually(t, func() bool { return reloader.count() == 1 },
				6*testPeriod, 5*time.Millisecond)

			names := reloader.names(0)
			assert.ElementsMatch(t, []string{"dep1", "dep2"}, names)
			assert.NotContains(t, names, "dep3")
		})
	}
}

// TestChangeInSubdirectory tests that events at depth are detected
func TestChangeInSubdirectory(t *testing.T) {
	for name, factory := range engines() {
		t.Run(name, func(t *testing.T) {
			modRoot := t.TempDir()
			writeModuleDir(t, modRoot, "my-mod", map[string]string{
				"lib/inner/deep.js": "// nested",
			})

			reloader := &batchReloader{}
			engine := factory(t, modRoot, reloader)
			engine.ModuleDeployed(deployment("dep1", "my-mod"))

			time.Sleep(testPeriod + testPeriod/2)

			require.NoError(t, os.WriteFile(
				filepath.Join(modRoot, "my-mod", "lib", "inner", "deep.js"),
				[]byte("// changed"), 0o644))

			assert.Eventually(t, func() bool { return reloader.count() == 1 },
				6*testPeriod, 5*time.Millisecond)
		})
	}
}

// TestUnregisteredModuleIgnored tests that changes after undeploy no
// longer reload
func TestUnregisteredModuleIgnored(t *testing.T) {
	for name, factory := range engines() {
		t.Run(name, func(t *testing.T) {
			modRoot := t.TempDir()
			writeModuleDir(t, modRoot, "my-mod", map[string]string{"foo.js": "a"})

			reloader := &batchReloader{}
			engine := factory(t, modRoot, reloader)

			dep1 := deployment("dep1", "my-mod")
			engine.ModuleDeployed(dep1)
			engine.ModuleUndeployed(dep1)

			time.Sleep(testPeriod)
			require.NoError(t, os.WriteFile(
				filepath.Join(modRoot, "my-mod", "change.txt"), []byte("x"), 0o644))

			time.Sleep(3 * testPeriod)
			assert.Zero(t, reloader.count())
		})
	}
}

// TestCloseIdempotent tests that Close can be called repeatedly and
// post-close changes are dropped
func TestCloseIdempotent(t *testing.T) {
	for name, factory := range engines() {
		t.Run(name, func(t *testing.T) {
			modRoot := t.TempDir()
			writeModuleDir(t, modRoot, "my-mod", map[string]string{"foo.js": "a"})

			reloader := &batchReloader{}
			engine := factory(t, modRoot, reloader)
			engine.ModuleDeployed(deployment("dep1", "my-mod"))

			engine.Close()
			engine.Close()

			require.NoError(t, os.WriteFile(
				filepath.Join(modRoot, "my-mod", "change.txt"), []byte("x"), 0o644))
			time.Sleep(3 * testPeriod)
			assert.Zero(t, reloader.count())
		})
	}
}

// TestAdHocDeploymentIgnored tests that deployments without a module name
// never register
func TestAdHocDeploymentIgnored(t *testing.T) {
	modRoot := t.TempDir()
	reloader := &batchReloader{}
	engine := pollerFactory(t, modRoot, reloader)

	engine.ModuleDeployed(&deploy.Deployment{Name: "adhoc"})
	engine.ModuleUndeployed(&deploy.Deployment{Name: "adhoc"})

	time.Sleep(2 * testPeriod)
	assert.Zero(t, reloader.count())
}
