package deploy

import (
	"github.com/goccy/go-json"
)

// InstanceState tracks one verticle instance through its lifecycle
type InstanceState int32

const (
	InstanceCreating InstanceState = iota
	InstanceReady
	InstanceStopping
	InstanceStopped
)

func (s InstanceState) String() string {
	switch s {
	case InstanceCreating:
		return "creating"
	case InstanceReady:
		return "ready"
	case InstanceStopping:
		return "stopping"
	case InstanceStopped:
		return "stopped"
	}
	return "unknown"
}

// Deployment is a live, named instantiation of a module or an ad-hoc
// verticle main. Deployments form a tree: a verticle deploying another
// module becomes its parent, and undeploy walks children first.
type Deployment struct {
	// Name is unique across the tree, uuid-derived unless supplied
	Name string

	// ModuleName is empty for ad-hoc verticle deployments
	ModuleName string

	Instances int

	Config json.RawMessage

	// Classpath entries resolved at deploy time
	Classpath []string

	// ModDir is the effective working directory for the instances
	ModDir string

	// ParentName is empty for root deployments
	ParentName string

	AutoRedeploy bool

	// verticles holds one entry per started instance. Mutated only by
	// the deploy worker.
	verticles []*VerticleHolder

	// children lists child deployment names. Mutated only by the deploy
	// worker; never iterated concurrently with mutation.
	children []string
}

// Verticles returns the instance holders
func (d *Deployment) Verticles() []*VerticleHolder {
	return d.verticles
}

// Children returns a snapshot of the child deployment names
func (d *Deployment) Children() []string {
	out := make([]string, len(d.children))
	copy(out, d.children)
	return out
}

// VerticleHolder binds a running verticle instance to its deployment,
// execution context and logger.
type VerticleHolder struct {
	Deployment *Deployment
	Context    *Context
	Verticle   Verticle
	LoggerName string
	Config     json.RawMessage

	state InstanceState
}

// State returns the instance lifecycle state
func (h *VerticleHolder) State() InstanceState {
	return h.state
}
