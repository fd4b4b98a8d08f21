package redeploy

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/burrowhq/burrow/pkg/deploy"
	"github.com/burrowhq/burrow/pkg/log"
	"github.com/burrowhq/burrow/pkg/timer"
)

// Watcher is the native-notification redeploy engine. Every registered
// module directory is subscribed recursively via the OS file-change
// facility; create/modify/delete events at any depth mark the module
// dirty, and a periodic grace check emits the module's deployments once
// its tree has been silent for one check period.
type Watcher struct {
	modRoot  string
	reloader Reloader
	period   time.Duration

	registry *registry
	fsw      *fsnotify.Watcher

	mu        sync.Mutex
	dirty     map[string]time.Time // module dir -> time of last event
	closed    bool
	closeOnce sync.Once

	graceTick *timer.Timeout
	done      chan struct{}

	logger zerolog.Logger
}

// NewWatcher creates and starts the engine. The grace check runs as a
// periodic task on the platform timer.
func NewWatcher(modRoot string, reloader Reloader, sched timer.Scheduler, period time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		modRoot:  modRoot,
		reloader: reloader,
		period:   period,
		registry: newRegistry(),
		fsw:      fsw,
		dirty:    make(map[string]time.Time),
		done:     make(chan struct{}),
		logger:   log.WithComponent("redeployer"),
	}

	w.graceTick = sched.NewTimeout(func(*timer.Timeout) { w.checkQuiesced() }, period, true)
	go w.run()
	return w, nil
}

// ModuleDeployed starts watching the deployment's module directory
func (w *Watcher) ModuleDeployed(d *deploy.Deployment) {
	if d.ModuleName == "" {
		return
	}
	dir, first := w.registry.add(w.modRoot, d)
	if !first {
		return
	}
	if err := w.watchTree(dir); err != nil {
		w.logger.Error().Err(err).Str("dir", dir).Msg("Failed to watch module directory")
		return
	}
	w.logger.Info().Str("module", d.ModuleName).Str("dir", dir).Msg("Watching module for redeploy")
}

// ModuleUndeployed stops watching once the module's last deployment is gone
func (w *Watcher) ModuleUndeployed(d *deploy.Deployment) {
	if d.ModuleName == "" {
		return
	}
	dir, last := w.registry.remove(d)
	if !last {
		return
	}
	w.unwatchTree(dir)

	w.mu.Lock()
	delete(w.dirty, dir)
	w.mu.Unlock()
}

// Close shuts the engine down. Idempotent; a grace tick firing after
// close is a no-op.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()

		w.graceTick.Cancel()
		close(w.done)
		w.fsw.Close()
	})
}

// watchTree subscribes dir and every subdirectory
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) unwatchTree(dir string) {
	for _, watched := range w.fsw.WatchList() {
		if watched == dir || strings.HasPrefix(watched, dir+string(filepath.Separator)) {
			w.fsw.Remove(watched)
		}
	}
}

// run consumes file-change notifications
func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.onEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("File watcher error")
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) onEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	dir := w.owningModuleDir(event.Name)
	if dir == "" {
		return
	}

	// A directory created mid-burst needs its own subscription
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.watchTree(event.Name)
		}
	}

	w.mu.Lock()
	w.dirty[dir] = time.Now()
	w.mu.Unlock()
}

// owningModuleDir maps an event path to the registered module directory
// containing it
func (w *Watcher) owningModuleDir(path string) string {
	for _, dir := range w.registry.dirs() {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return dir
		}
	}
	return ""
}

// checkQuiesced fires from the periodic grace timer: a module whose last
// event is at least one period old has quiesced, so its deployments are
// emitted as one batch.
func (w *Watcher) checkQuiesced() {
	w.mu.Lock()
	if w.closed {
		// Timer shutdown is asynchronous and may not have completed yet
		w.mu.Unlock()
		return
	}
	var due []string
	now := time.Now()
	for dir, last := range w.dirty {
		if now.Sub(last) >= w.period {
			due = append(due, dir)
			delete(w.dirty, dir)
		}
	}
	w.mu.Unlock()

	for _, dir := range due {
		w.emit(dir)
	}
}

func (w *Watcher) emit(dir string) {
	deps := w.registry.deploymentsFor(dir)
	if len(deps) == 0 {
		return
	}
	w.logger.Info().Str("dir", dir).Int("deployments", len(deps)).
		Msg("Module changed, reloading deployments")
	w.reloader.Reload(deps)
}
