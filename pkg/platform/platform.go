package platform

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/burrowhq/burrow/pkg/async"
	"github.com/burrowhq/burrow/pkg/config"
	"github.com/burrowhq/burrow/pkg/deploy"
	"github.com/burrowhq/burrow/pkg/eventloop"
	"github.com/burrowhq/burrow/pkg/events"
	"github.com/burrowhq/burrow/pkg/log"
	"github.com/burrowhq/burrow/pkg/metrics"
	"github.com/burrowhq/burrow/pkg/module"
	"github.com/burrowhq/burrow/pkg/redeploy"
	"github.com/burrowhq/burrow/pkg/timer"
)

// Platform wires the runtime machinery together: the hashed-wheel timer,
// the event loop, the blocking-action pool, module management, the
// verticle runtime and the redeploy engine. There are no package-level
// singletons; verticle factories receive the Platform handle explicitly
// when they are registered.
type Platform struct {
	cfg *config.Config

	timer   *timer.Timer
	loop    *eventloop.Loop
	pool    *async.Pool
	modules *module.Manager
	runtime *deploy.Runtime
	broker  *events.Broker

	factories *deploy.FactoryRegistry

	timersMu sync.Mutex
	timers   map[int64]*timer.Timeout
	timerSeq int64

	stopOnce sync.Once

	logger zerolog.Logger
}

// New builds and starts a platform from the given configuration
func New(cfg *config.Config) (*Platform, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tm, err := timer.NewTimer(cfg.TickDuration, cfg.WheelSize)
	if err != nil {
		return nil, err
	}

	loop, err := eventloop.NewLoop(cfg.TickDuration, cfg.WheelSize)
	if err != nil {
		tm.Stop()
		return nil, err
	}

	pool := async.NewPool(cfg.PoolSize)

	repos := make([]module.Repository, 0, len(cfg.Repositories))
	for _, base := range cfg.Repositories {
		repos = append(repos, module.NewHTTPRepository(base, cfg.ModRoot))
	}

	modules, err := module.NewManager(cfg.ModRoot, repos...)
	if err != nil {
		tm.Stop()
		loop.Stop()
		pool.Stop()
		return nil, err
	}

	var langs *module.Langs
	if cfg.LangsFile != "" {
		if langs, err = module.LoadLangs(cfg.LangsFile); err != nil {
			tm.Stop()
			loop.Stop()
			pool.Stop()
			return nil, err
		}
	} else {
		langs = module.NewLangs(map[string]string{module.DefaultFactoryKey: module.DefaultFactoryKey})
	}

	factories := deploy.NewFactoryRegistry()
	runtime := deploy.NewRuntime(modules, langs, factories, pool, func(fn func()) { loop.Execute(fn) })

	broker := events.NewBroker()
	broker.Start()
	runtime.SetBroker(broker)

	p := &Platform{
		cfg:       cfg,
		timer:     tm,
		loop:      loop,
		pool:      pool,
		modules:   modules,
		runtime:   runtime,
		broker:    broker,
		factories: factories,
		timers:    make(map[int64]*timer.Timeout),
		logger:    log.WithComponent("platform"),
	}

	var engine deploy.Redeployer
	switch cfg.RedeployEngine {
	case config.EnginePolling:
		engine = redeploy.NewPoller(cfg.ModRoot, runtime, tm, cfg.CheckPeriod)
	default:
		if engine, err = redeploy.NewWatcher(cfg.ModRoot, runtime, tm, cfg.CheckPeriod); err != nil {
			p.logger.Error().Err(err).Msg("Native watcher unavailable, falling back to polling")
			engine = redeploy.NewPoller(cfg.ModRoot, runtime, tm, cfg.CheckPeriod)
		}
	}
	runtime.SetRedeployer(engine)

	return p, nil
}

// Runtime returns the verticle runtime
func (p *Platform) Runtime() *deploy.Runtime {
	return p.runtime
}

// Modules returns the module manager
func (p *Platform) Modules() *module.Manager {
	return p.modules
}

// Factories returns the verticle factory registry. Factory constructors
// typically capture the Platform handle so created verticles can deploy
// further modules.
func (p *Platform) Factories() *deploy.FactoryRegistry {
	return p.factories
}

// Events returns the platform event broker
func (p *Platform) Events() *events.Broker {
	return p.broker
}

// Tree returns the live deployment tree
func (p *Platform) Tree() *deploy.Tree {
	return p.runtime.Tree()
}

// SetTimer schedules handler to run once after delay and returns the
// timer id.
func (p *Platform) SetTimer(delay time.Duration, handler func(id int64)) int64 {
	return p.setTimer(delay, false, handler)
}

// SetPeriodic schedules handler to run every interval until cancelled
func (p *Platform) SetPeriodic(interval time.Duration, handler func(id int64)) int64 {
	return p.setTimer(interval, true, handler)
}

func (p *Platform) setTimer(delay time.Duration, periodic bool, handler func(id int64)) int64 {
	p.timersMu.Lock()
	p.timerSeq++
	id := p.timerSeq
	p.timersMu.Unlock()

	timeout := p.timer.NewTimeout(func(*timer.Timeout) {
		if !periodic {
			p.timersMu.Lock()
			delete(p.timers, id)
			p.timersMu.Unlock()
		}
		handler(id)
	}, delay, periodic)

	p.timersMu.Lock()
	p.timers[id] = timeout
	p.timersMu.Unlock()
	return id
}

// CancelTimer cancels a timer by its id. Returns false if the id is
// unknown or already fired.
func (p *Platform) CancelTimer(id int64) bool {
	p.timersMu.Lock()
	timeout, ok := p.timers[id]
	delete(p.timers, id)
	p.timersMu.Unlock()
	if !ok {
		return false
	}
	timeout.Cancel()
	return true
}

// RunOnLoop posts a function onto the event loop
func (p *Platform) RunOnLoop(fn func()) {
	p.loop.Execute(fn)
}

// RunBlocking submits a blocking action to the worker pool
func (p *Platform) RunBlocking(fn func()) error {
	return p.pool.Submit(fn)
}

// DeployModule deploys a module as a root deployment
func (p *Platform) DeployModule(opts deploy.Options, done deploy.DoneHandler) {
	p.runtime.DeployModule(opts, done)
}

// DeployVerticle deploys an ad-hoc verticle main
func (p *Platform) DeployVerticle(opts deploy.VerticleOptions, done deploy.DoneHandler) {
	p.runtime.DeployVerticle(opts, done)
}

// Undeploy removes a deployment and its descendants
func (p *Platform) Undeploy(name string, done func(error)) {
	p.runtime.Undeploy(name, done)
}

// ServeMetrics exposes Prometheus metrics on addr in the background
func (p *Platform) ServeMetrics(addr string) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			p.logger.Error().Err(err).Str("addr", addr).Msg("Metrics endpoint failed")
		}
	}()
}

// Container is the deployment-scoped handle a verticle uses to interact
// with the platform: deploys issued through it are parented under the
// verticle's own deployment.
type Container struct {
	platform       *Platform
	deploymentName string
}

// NewContainer creates a container scoped to a deployment
func (p *Platform) NewContainer(deploymentName string) *Container {
	return &Container{platform: p, deploymentName: deploymentName}
}

// Platform returns the underlying platform handle
func (c *Container) Platform() *Platform {
	return c.platform
}

// DeployModule deploys a module as a child of this container's deployment
func (c *Container) DeployModule(opts deploy.Options, done deploy.DoneHandler) {
	opts.Parent = c.deploymentName
	c.platform.DeployModule(opts, done)
}

// DeployVerticle deploys a verticle as a child of this container's
// deployment
func (c *Container) DeployVerticle(opts deploy.VerticleOptions, done deploy.DoneHandler) {
	opts.Parent = c.deploymentName
	c.platform.DeployVerticle(opts, done)
}

// Undeploy removes a deployment
func (c *Container) Undeploy(name string, done func(error)) {
	c.platform.Undeploy(name, done)
}

// Stop shuts the platform down: undeploy everything, close the redeploy
// engine, stop the timers, drain the pool.
func (p *Platform) Stop() {
	p.stopOnce.Do(func() {
		done := make(chan struct{})
		p.runtime.UndeployAll(func() { close(done) })
		select {
		case <-done:
		case <-time.After(30 * time.Second):
			p.logger.Error().Msg("Timed out waiting for undeploy during shutdown")
		}

		p.runtime.Stop()

		if unprocessed := p.timer.Stop(); len(unprocessed) > 0 {
			p.logger.Debug().Int("count", len(unprocessed)).Msg("Timer stopped with pending timeouts")
		}
		p.loop.Stop()
		p.pool.Stop()
		p.broker.Stop()
	})
}

// ConfigFromFile loads a deployment config JSON file into a raw message
func ConfigFromFile(path string) (json.RawMessage, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("config file %q is not valid JSON", path)
	}
	return json.RawMessage(data), nil
}
