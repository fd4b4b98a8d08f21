package redeploy

import (
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/burrowhq/burrow/pkg/deploy"
	"github.com/burrowhq/burrow/pkg/log"
	"github.com/burrowhq/burrow/pkg/timer"
)

// Poller is the scanning redeploy engine for platforms where native file
// notification is flaky. A periodic timer walks each registered module
// tree comparing file modification times against the previous scan. A
// tree that changed during the last scan window is dirty; once a
// subsequent scan sees no further change the module has quiesced and its
// deployments are emitted.
type Poller struct {
	modRoot  string
	reloader Reloader

	registry *registry

	mu        sync.Mutex
	dirty     map[string]bool // module dir -> changed during last scan
	lastCheck time.Time
	closed    bool
	closeOnce sync.Once

	tick *timer.Timeout

	logger zerolog.Logger
}

// NewPoller creates and starts the engine with the given scan period
func NewPoller(modRoot string, reloader Reloader, sched timer.Scheduler, period time.Duration) *Poller {
	p := &Poller{
		modRoot:   modRoot,
		reloader:  reloader,
		registry:  newRegistry(),
		dirty:     make(map[string]bool),
		lastCheck: time.Now(),
		logger:    log.WithComponent("redeployer"),
	}
	p.tick = sched.NewTimeout(func(*timer.Timeout) { p.scan() }, period, true)
	return p
}

// ModuleDeployed registers the deployment's module directory for scanning
func (p *Poller) ModuleDeployed(d *deploy.Deployment) {
	if d.ModuleName == "" {
		return
	}
	dir, first := p.registry.add(p.modRoot, d)
	if first {
		p.logger.Info().Str("module", d.ModuleName).Str("dir", dir).
			Msg("Polling module for redeploy")
	}
}

// ModuleUndeployed drops the binding; the directory stops being scanned
// once its last deployment is gone.
func (p *Poller) ModuleUndeployed(d *deploy.Deployment) {
	if d.ModuleName == "" {
		return
	}
	if dir, last := p.registry.remove(d); last {
		p.mu.Lock()
		delete(p.dirty, dir)
		p.mu.Unlock()
	}
}

// Close stops the engine. Idempotent; a scan tick firing after close is
// a no-op.
func (p *Poller) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.tick.Cancel()
	})
}

// scan runs one polling cycle from the periodic timer
func (p *Poller) scan() {
	p.mu.Lock()
	if p.closed {
		// Timer shutdown is asynchronous and may not have completed yet
		p.mu.Unlock()
		return
	}
	lastCheck := p.lastCheck
	// Remember when this scan started: a slide overlap with the previous
	// window is fine, a gap is not.
	newLastCheck := time.Now()
	p.mu.Unlock()

	var due []string
	for _, dir := range p.registry.dirs() {
		changed := p.treeChangedSince(dir, lastCheck)

		p.mu.Lock()
		wasDirty := p.dirty[dir]
		p.dirty[dir] = changed
		p.mu.Unlock()

		// Changed previously but quiet this cycle: the burst is over
		if wasDirty && !changed {
			due = append(due, dir)
		}
	}

	p.mu.Lock()
	p.lastCheck = newLastCheck
	p.mu.Unlock()

	for _, dir := range due {
		p.emit(dir)
	}
}

// treeChangedSince walks a module tree looking for any entry modified
// after the given instant. A walk error — a subtree deleted mid-scan —
// counts as a change.
func (p *Poller) treeChangedSince(dir string, since time.Time) bool {
	changed := false
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			changed = true
			return filepath.SkipAll
		}
		info, err := entry.Info()
		if err != nil {
			changed = true
			return filepath.SkipAll
		}
		if info.ModTime().After(since) {
			changed = true
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		changed = true
	}
	return changed
}

func (p *Poller) emit(dir string) {
	deps := p.registry.deploymentsFor(dir)
	if len(deps) == 0 {
		return
	}
	p.logger.Info().Str("dir", dir).Int("deployments", len(deps)).
		Msg("Module changed, reloading deployments")
	p.reloader.Reload(deps)
}
