package deploy

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/burrowhq/burrow/pkg/log"
)

// Tree maintains the deployment hierarchy, keyed by unique deployment
// name. Lookups are safe from any goroutine; structural mutations happen
// on the deploy worker only, serialized by the worker pool.
type Tree struct {
	mu          sync.RWMutex
	deployments map[string]*Deployment
	logger      zerolog.Logger
}

// NewTree creates an empty deployment tree
func NewTree() *Tree {
	return &Tree{
		deployments: make(map[string]*Deployment),
		logger:      log.WithComponent("deployments"),
	}
}

// Insert records a deployment under its name and links it into its
// parent's child list. A missing parent is an error; a duplicate child
// entry is warned about and kept single.
func (t *Tree) Insert(parent string, d *Deployment) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if parent == "" {
		t.deployments[d.Name] = d
		return nil
	}

	p, ok := t.deployments[parent]
	if !ok {
		t.logger.Error().Str("deployment", d.Name).Str("parent", parent).
			Msg("Parent deployment not found")
		return fmt.Errorf("parent deployment not found: %q", parent)
	}
	t.deployments[d.Name] = d
	for _, child := range p.children {
		if child == d.Name {
			t.logger.Warn().Str("deployment", d.Name).Str("parent", parent).
				Msg("Parent already lists a child with this name")
			return nil
		}
	}
	p.children = append(p.children, d.Name)
	return nil
}

// Get looks a deployment up by name
func (t *Tree) Get(name string) *Deployment {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.deployments[name]
}

// Remove drops a deployment and detaches it from its parent's child list
// if the parent still exists.
func (t *Tree) Remove(name string) *Deployment {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.deployments[name]
	if !ok {
		return nil
	}
	delete(t.deployments, name)

	if d.ParentName != "" {
		if p, ok := t.deployments[d.ParentName]; ok {
			for i, child := range p.children {
				if child == name {
					p.children = append(p.children[:i], p.children[i+1:]...)
					break
				}
			}
		}
	}
	return d
}

// Names returns a snapshot of all deployment names
func (t *Tree) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.deployments))
	for name := range t.deployments {
		names = append(names, name)
	}
	return names
}

// Size returns the number of live deployments
func (t *Tree) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.deployments)
}

// Empty reports whether the tree holds no deployments
func (t *Tree) Empty() bool {
	return t.Size() == 0
}

// Print writes the hierarchy roots-first with indented children
func (t *Tree) Print(out io.Writer) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for name, d := range t.deployments {
		if d.ParentName == "" {
			t.print(name, 0, out)
		}
	}
}

func (t *Tree) print(name string, depth int, out io.Writer) {
	d, ok := t.deployments[name]
	if !ok {
		return
	}
	fmt.Fprintf(out, "%s- %s (module: %s; verticles: %d)\n",
		strings.Repeat("--", depth), name, d.ModuleName, len(d.verticles))
	for _, child := range d.children {
		t.print(child, depth+1, out)
	}
}
