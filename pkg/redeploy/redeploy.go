package redeploy

import (
	"path/filepath"
	"sync"

	"github.com/burrowhq/burrow/pkg/deploy"
	"github.com/burrowhq/burrow/pkg/metrics"
)

// Reloader receives the batched set of deployments bound to a module
// whose directory tree changed and then went quiet. The verticle runtime
// implements it with undeploy-then-redeploy.
type Reloader interface {
	Reload(deps []*deploy.Deployment)
}

// binding ties one watched module directory to the deployments running it
type binding struct {
	module      string
	dir         string
	deployments map[string]*deploy.Deployment
}

// registry is the bookkeeping shared by both redeploy engines: which
// module directories are watched and which deployments each one feeds.
type registry struct {
	mu       sync.Mutex
	byModule map[string]*binding
}

func newRegistry() *registry {
	return &registry{byModule: make(map[string]*binding)}
}

// add registers a deployment under its module. Returns the module
// directory and true when this is the module's first deployment — the
// engine then starts watching the directory.
func (r *registry) add(modRoot string, d *deploy.Deployment) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.byModule[d.ModuleName]
	if !ok {
		b = &binding{
			module:      d.ModuleName,
			dir:         filepath.Join(modRoot, d.ModuleName),
			deployments: make(map[string]*deploy.Deployment),
		}
		r.byModule[d.ModuleName] = b
	}
	b.deployments[d.Name] = d
	metrics.WatchedModules.Set(float64(len(r.byModule)))
	return b.dir, !ok
}

// remove unregisters a deployment. Returns the module directory and true
// when the module has no deployments left and should stop being watched.
func (r *registry) remove(d *deploy.Deployment) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.byModule[d.ModuleName]
	if !ok {
		return "", false
	}
	delete(b.deployments, d.Name)
	if len(b.deployments) > 0 {
		return b.dir, false
	}
	delete(r.byModule, d.ModuleName)
	metrics.WatchedModules.Set(float64(len(r.byModule)))
	return b.dir, true
}

// deploymentsFor snapshots the deployments bound to a module directory
func (r *registry) deploymentsFor(dir string) []*deploy.Deployment {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.byModule {
		if b.dir == dir {
			out := make([]*deploy.Deployment, 0, len(b.deployments))
			for _, d := range b.deployments {
				out = append(out, d)
			}
			return out
		}
	}
	return nil
}

// dirs snapshots the watched directories
func (r *registry) dirs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.byModule))
	for _, b := range r.byModule {
		out = append(out, b.dir)
	}
	return out
}
