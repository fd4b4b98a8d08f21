package deploy

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/burrowhq/burrow/pkg/async"
	"github.com/burrowhq/burrow/pkg/events"
	"github.com/burrowhq/burrow/pkg/log"
	"github.com/burrowhq/burrow/pkg/metrics"
	"github.com/burrowhq/burrow/pkg/module"
)

// Redeployer watches module directories and reports quiesced changes.
// The runtime registers a deployment's module directory on deploy (when
// the module opts in) and unregisters it on undeploy.
type Redeployer interface {
	ModuleDeployed(d *Deployment)
	ModuleUndeployed(d *Deployment)
	Close()
}

// DoneHandler reports the outcome of an asynchronous deploy. On failure
// the deployment id is empty.
type DoneHandler func(deploymentID string, err error)

// Options describes a module deployment
type Options struct {
	// Redeploy marks an automatic redeploy rather than a user deploy
	Redeploy bool

	// Name pins the deployment name; generated when empty
	Name string

	// Module to deploy
	Module string

	Config    json.RawMessage
	Instances int

	// CurrentDir is the deploying module's directory, used when the
	// target module sets preserve-cwd
	CurrentDir string

	// Parent is the deployment issuing this deploy, empty for roots
	Parent string
}

// VerticleOptions describes an ad-hoc verticle deployment with a preset
// classpath.
type VerticleOptions struct {
	Worker    bool
	Main      string
	Config    json.RawMessage
	Classpath []string
	Instances int

	CurrentDir string

	// Includes optionally names modules to resolve onto the classpath
	Includes string

	Parent string
}

// deployParams is the common shape both deploy paths feed into doDeploy
type deployParams struct {
	name         string
	module       string
	main         string
	worker       bool
	autoRedeploy bool
	config       json.RawMessage
	classpath    []string
	instances    int
	dir          string
	parent       string
}

// Runtime creates per-instance execution units from resolved modules and
// drives their lifecycle. All deploy, undeploy and reload work executes
// on the blocking-action worker pool; the exported methods only submit.
type Runtime struct {
	modules   *module.Manager
	langs     *module.Langs
	factories *FactoryRegistry
	pool      *async.Pool
	tree      *Tree

	// runOnLoop posts non-worker instance starts onto the event loop
	runOnLoop func(func())

	redeployer Redeployer
	broker     *events.Broker

	logger zerolog.Logger
}

// NewRuntime creates a runtime. runOnLoop may be nil; instance starts
// then run on the worker pool.
func NewRuntime(modules *module.Manager, langs *module.Langs, factories *FactoryRegistry, pool *async.Pool, runOnLoop func(func())) *Runtime {
	rt := &Runtime{
		modules:   modules,
		langs:     langs,
		factories: factories,
		pool:      pool,
		tree:      NewTree(),
		runOnLoop: runOnLoop,
		logger:    log.WithComponent("runtime"),
	}
	if rt.runOnLoop == nil {
		rt.runOnLoop = func(fn func()) { pool.Submit(fn) }
	}
	return rt
}

// SetRedeployer wires the redeploy engine. Call at start-up only.
func (rt *Runtime) SetRedeployer(r Redeployer) {
	rt.redeployer = r
}

// SetBroker wires the event broker. Call at start-up only.
func (rt *Runtime) SetBroker(b *events.Broker) {
	rt.broker = b
}

// Tree returns the live deployment tree
func (rt *Runtime) Tree() *Tree {
	return rt.tree
}

// Modules returns the module manager
func (rt *Runtime) Modules() *module.Manager {
	return rt.modules
}

func (rt *Runtime) publish(typ events.EventType, msg string, meta map[string]string) {
	if rt.broker != nil {
		rt.broker.Publish(events.New(typ, msg, meta))
	}
}

// DeployModule resolves a module and launches its instances. done is
// invoked exactly once, from a pool worker, with the deployment name or
// an error.
func (rt *Runtime) DeployModule(opts Options, done DoneHandler) {
	if err := rt.pool.Submit(func() { rt.doDeployModule(opts, done) }); err != nil {
		rt.callDone(done, "", err)
	}
}

// DeployVerticle launches instances of an ad-hoc main with a preset
// classpath. No module name is recorded on the deployment.
func (rt *Runtime) DeployVerticle(opts VerticleOptions, done DoneHandler) {
	if err := rt.pool.Submit(func() { rt.doDeployVerticle(opts, done) }); err != nil {
		rt.callDone(done, "", err)
	}
}

func (rt *Runtime) callDone(done DoneHandler, id string, err error) {
	if done != nil {
		done(id, err)
	}
	if err != nil {
		metrics.DeploymentsTotal.WithLabelValues("failed").Inc()
		rt.logger.Error().Err(err).Msg("Deployment failed")
	} else {
		metrics.DeploymentsTotal.WithLabelValues("ok").Inc()
	}
}

// doDeployModule executes on a pool worker
func (rt *Runtime) doDeployModule(opts Options, done DoneHandler) {
	if opts.Module == "" {
		rt.callDone(done, "", fmt.Errorf("module name must not be empty"))
		return
	}
	if opts.Instances < 1 {
		rt.callDone(done, "", fmt.Errorf("instance count must be >= 1: %d", opts.Instances))
		return
	}

	if err := rt.modules.Install(opts.Module); err != nil {
		rt.callDone(done, "", err)
		return
	}

	deps := rt.modules.Resolve(opts.Module)
	if deps.Failed() {
		rt.callDone(done, "", fmt.Errorf("failed to resolve module %q: %v", opts.Module, deps.Warnings))
		return
	}

	cfg, err := module.LoadConfig(rt.modules.ModRoot(), opts.Module)
	if err != nil {
		rt.callDone(done, "", err)
		return
	}
	if !cfg.Runnable() {
		rt.callDone(done, "", fmt.Errorf("module %q is a library: %s has no main field", opts.Module, module.ManifestName))
		return
	}

	dir := cfg.Dir()
	if cfg.PreserveCwd() && opts.CurrentDir != "" {
		dir = opts.CurrentDir
	}

	rt.doDeploy(deployParams{
		name:         opts.Name,
		module:       opts.Module,
		main:         cfg.Main(),
		worker:       cfg.Worker(),
		autoRedeploy: cfg.AutoRedeploy(),
		config:       opts.Config,
		classpath:    deps.URLs,
		instances:    opts.Instances,
		dir:          dir,
		parent:       opts.Parent,
	}, done)
}

// doDeployVerticle executes on a pool worker
func (rt *Runtime) doDeployVerticle(opts VerticleOptions, done DoneHandler) {
	if opts.Main == "" {
		rt.callDone(done, "", fmt.Errorf("main must not be empty"))
		return
	}
	if opts.Instances < 1 {
		rt.callDone(done, "", fmt.Errorf("instance count must be >= 1: %d", opts.Instances))
		return
	}

	classpath := opts.Classpath
	if opts.Includes != "" {
		deps := rt.modules.ResolveIncludes(opts.Includes, classpath)
		if deps.Failed() {
			rt.callDone(done, "", fmt.Errorf("failed to resolve includes %q: %v", opts.Includes, deps.Warnings))
			return
		}
		classpath = deps.URLs
	}

	rt.doDeploy(deployParams{
		name:      "",
		main:      opts.Main,
		worker:    opts.Worker,
		config:    opts.Config,
		classpath: classpath,
		instances: opts.Instances,
		dir:       opts.CurrentDir,
		parent:    opts.Parent,
	}, done)
}

// doDeploy builds the deployment, inserts it into the tree and launches
// the instances. The done handler fires once after the last instance
// reported, with success only if every instance started.
func (rt *Runtime) doDeploy(p deployParams, done DoneHandler) {
	deployTimer := metrics.NewTimer()

	name := p.name
	if name == "" {
		name = "deployment-" + uuid.New().String()
	}

	rt.logger.Debug().Str("deployment", name).Str("main", p.main).
		Int("instances", p.instances).Msg("Deploying")

	factoryName, err := rt.langs.FactoryName(p.main)
	if err != nil {
		rt.callDone(done, "", err)
		return
	}

	// A worker deployment shares one factory so instances share state;
	// non-workers get an isolated factory per instance.
	var shared Factory
	if p.worker {
		if shared, err = rt.factories.New(factoryName); err != nil {
			rt.callDone(done, "", err)
			return
		}
	}

	deployment := &Deployment{
		Name:         name,
		ModuleName:   p.module,
		Instances:    p.instances,
		Config:       p.config,
		Classpath:    p.classpath,
		ModDir:       p.dir,
		ParentName:   p.parent,
		AutoRedeploy: p.autoRedeploy,
	}
	if err := rt.tree.Insert(p.parent, deployment); err != nil {
		rt.callDone(done, "", err)
		return
	}
	metrics.DeploymentsActive.Set(float64(rt.tree.Size()))

	completion := async.NewCompletion(func(failed bool) {
		deployTimer.ObserveDuration(metrics.DeployDuration)
		if failed {
			rt.publish(events.EventDeployFailed, name, map[string]string{"module": p.module})
			rt.callDone(done, "", fmt.Errorf("failed to start all %d instance(s) of %q", p.instances, name))
			return
		}
		if p.module != "" && p.autoRedeploy && rt.redeployer != nil {
			rt.redeployer.ModuleDeployed(deployment)
		}
		rt.publish(events.EventDeployed, name, map[string]string{"module": p.module})
		rt.callDone(done, name, nil)
	})

	for i := 0; i < p.instances; i++ {
		completion.Add()
	}

	// Launches happen in index order; completions arrive in any order
	for i := 0; i < p.instances; i++ {
		factory := shared
		if factory == nil {
			if factory, err = rt.factories.New(factoryName); err != nil {
				rt.logger.Error().Err(err).Str("deployment", name).Msg("Failed to instantiate verticle factory")
				rt.failInstance(name, nil, completion)
				continue
			}
		}

		verticle, err := factory.CreateVerticle(p.main, p.classpath)
		if err != nil {
			rt.logger.Error().Err(err).Str("deployment", name).Str("main", p.main).
				Msg("Failed to create verticle")
			rt.failInstance(name, nil, completion)
			continue
		}

		loggerName := fmt.Sprintf("burrow.deployments.%s-%d", name, i)
		instanceLogger := log.Instance(loggerName, name, i)
		holder := &VerticleHolder{
			Deployment: deployment,
			Verticle:   verticle,
			LoggerName: loggerName,
			Config:     p.config,
			state:      InstanceCreating,
		}
		holder.Context = NewContext(name, p.config, p.dir, instanceLogger, rt.lane(p.worker))
		deployment.verticles = append(deployment.verticles, holder)
		metrics.VerticlesActive.Inc()

		holder.Context.Execute(func() {
			if err := rt.startVerticle(holder); err != nil {
				rt.logger.Error().Err(err).Str("deployment", name).Msg("Verticle start failed")
				rt.failInstance(name, holder, completion)
				return
			}
			holder.state = InstanceReady
			completion.Done()
		})
	}
}

// lane selects the goroutine lane instances of a deployment run on
func (rt *Runtime) lane(worker bool) func(func()) {
	if worker {
		return func(fn func()) { rt.pool.Submit(fn) }
	}
	return rt.runOnLoop
}

func (rt *Runtime) startVerticle(holder *VerticleHolder) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("verticle start panicked: %v", r)
		}
	}()
	return holder.Verticle.Start(holder.Context)
}

// failInstance tears the partially created deployment down and reports
// the failed instance. The error-path undeploy runs on a pool worker;
// only the first failure finds the deployment still in the tree.
func (rt *Runtime) failInstance(name string, holder *VerticleHolder, completion *async.Completion) {
	if holder != nil {
		holder.state = InstanceStopped
	}
	rt.pool.Submit(func() {
		if rt.tree.Get(name) != nil {
			rt.doUndeploy(name, async.NewCompletion(nil))
		}
		completion.Fail()
	})
}

// Undeploy removes a deployment and all its descendants, children first.
// done is invoked after every instance stopped.
func (rt *Runtime) Undeploy(name string, done func(error)) {
	err := rt.pool.Submit(func() {
		dep := rt.tree.Get(name)
		if dep == nil {
			rt.logger.Error().Str("deployment", name).Msg("Cannot undeploy: no such deployment")
			if done != nil {
				done(fmt.Errorf("no deployment with name %q", name))
			}
			return
		}

		completion := async.NewCompletion(func(bool) {
			if dep.ModuleName != "" && dep.AutoRedeploy && rt.redeployer != nil {
				rt.redeployer.ModuleUndeployed(dep)
			}
			rt.publish(events.EventUndeployed, name, map[string]string{"module": dep.ModuleName})
			metrics.UndeploymentsTotal.Inc()
			if done != nil {
				done(nil)
			}
		})

		// Sentinel entry covers deployments with zero started instances
		completion.Add()
		rt.doUndeploy(name, completion)
		completion.Done()
	})
	if err != nil && done != nil {
		done(err)
	}
}

// doUndeploy removes the deployment depth-first: every descendant leaves
// the tree, and its stops are posted, before the parent leaves the tree
// and posts its own. The posted stops run concurrently on their lanes.
// Executes on a pool worker.
func (rt *Runtime) doUndeploy(name string, completion *async.Completion) {
	dep := rt.tree.Get(name)
	if dep == nil {
		rt.logger.Error().Str("deployment", name).Msg("Deployment not found, already undeployed?")
		return
	}

	// Depth first: children before this deployment's own tree entry and
	// instances
	for _, child := range dep.Children() {
		rt.doUndeploy(child, completion)
	}

	if rt.tree.Remove(name) == nil {
		return
	}
	rt.logger.Info().Str("deployment", name).Msg("Undeploying")
	metrics.DeploymentsActive.Set(float64(rt.tree.Size()))

	for _, holder := range dep.verticles {
		holder.state = InstanceStopping
		h := holder
		completion.Add()
		h.Context.Execute(func() {
			rt.stopVerticle(h)
			// Close hooks run before the instance logger is dropped
			h.Context.RunCloseHooks()
			log.Drop(h.LoggerName)
			h.state = InstanceStopped
			metrics.VerticlesActive.Dec()
			completion.Done()
		})
	}
}

func (rt *Runtime) stopVerticle(holder *VerticleHolder) {
	defer func() {
		if r := recover(); r != nil {
			rt.logger.Error().Interface("panic", r).
				Str("deployment", holder.Deployment.Name).Msg("Verticle stop panicked")
		}
	}()
	if err := holder.Verticle.Stop(); err != nil {
		rt.logger.Error().Err(err).Str("deployment", holder.Deployment.Name).
			Msg("Verticle stop failed")
	}
}

// UndeployAll tears the whole tree down. Each pass undeploys one
// remaining deployment, picked from the name snapshot in no particular
// order, together with its descendants, until the tree is empty.
func (rt *Runtime) UndeployAll(done func()) {
	err := rt.pool.Submit(func() {
		completion := async.NewCompletion(func(bool) {
			if done != nil {
				done()
			}
		})
		completion.Add()
		for !rt.tree.Empty() {
			names := rt.tree.Names()
			if len(names) == 0 {
				break
			}
			completion.Add()
			rt.doUndeploy(names[0], completion)
			completion.Done()
		}
		completion.Done()
	})
	if err != nil && done != nil {
		done()
	}
}

// Reload undeploys and redeploys the given deployments. A deployment no
// longer present (a previously failed deploy) is redeployed directly.
// This is the reloader callback the redeploy engines invoke.
func (rt *Runtime) Reload(deps []*Deployment) {
	rt.pool.Submit(func() {
		for _, dep := range deps {
			d := dep
			if rt.tree.Get(d.Name) != nil {
				completion := async.NewCompletion(func(bool) {
					rt.redeploy(d)
				})
				completion.Add()
				rt.doUndeploy(d.Name, completion)
				completion.Done()
			} else {
				// The previous deploy failed, e.g. a code error in the
				// user verticle
				rt.redeploy(d)
			}
		}
		metrics.RedeploysTotal.Inc()
	})
}

func (rt *Runtime) redeploy(dep *Deployment) {
	rt.publish(events.EventReloaded, dep.Name, map[string]string{"module": dep.ModuleName})
	// Redeploys come back as roots: the old parent may itself be mid-reload
	rt.DeployModule(Options{
		Redeploy:  true,
		Name:      dep.Name,
		Module:    dep.ModuleName,
		Config:    dep.Config,
		Instances: dep.Instances,
	}, func(id string, err error) {
		if err != nil {
			rt.logger.Error().Err(err).Str("deployment", dep.Name).Msg("Redeploy failed")
		}
	})
}

// Stop closes the redeploy engine. Pending pool work is the caller's to
// drain (the platform owns the pool).
func (rt *Runtime) Stop() {
	if rt.redeployer != nil {
		rt.redeployer.Close()
	}
}
