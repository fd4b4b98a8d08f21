package deploy

import (
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Context is the execution context of one verticle instance: its
// deployment identity, config snapshot, effective working directory,
// instance logger and close hooks. Tasks posted via Execute run on the
// goroutine lane the instance was assigned at deploy time (worker pool
// for worker verticles, the event loop otherwise).
type Context struct {
	deploymentName string
	config         json.RawMessage
	workDir        string
	logger         zerolog.Logger
	exec           func(func())

	closeHooks []func()
}

// NewContext creates a context. exec may be nil, in which case posted
// tasks run inline.
func NewContext(deploymentName string, config json.RawMessage, workDir string, logger zerolog.Logger, exec func(func())) *Context {
	if exec == nil {
		exec = func(fn func()) { fn() }
	}
	return &Context{
		deploymentName: deploymentName,
		config:         config,
		workDir:        workDir,
		logger:         logger,
		exec:           exec,
	}
}

// DeploymentName returns the owning deployment's name
func (c *Context) DeploymentName() string {
	return c.deploymentName
}

// Config returns the instance's config snapshot
func (c *Context) Config() json.RawMessage {
	return c.config
}

// WorkDir returns the effective working directory: the module's own
// directory, or the deploying module's when preserve-cwd is set.
func (c *Context) WorkDir() string {
	return c.workDir
}

// Logger returns the per-instance logger
func (c *Context) Logger() zerolog.Logger {
	return c.logger
}

// Execute posts a task onto the instance's goroutine lane
func (c *Context) Execute(fn func()) {
	c.exec(fn)
}

// AddCloseHook registers a function to run when the instance is
// undeployed. Hooks run before the instance logger is dropped.
func (c *Context) AddCloseHook(fn func()) {
	c.closeHooks = append(c.closeHooks, fn)
}

// RunCloseHooks runs and clears the registered hooks
func (c *Context) RunCloseHooks() {
	for _, fn := range c.closeHooks {
		fn()
	}
	c.closeHooks = nil
}
