package module

// VisitResult steers the include-graph walk
type VisitResult int

const (
	// Continue descends into the module's includes
	Continue VisitResult = iota

	// SkipSubtree visits the module but not its includes
	SkipSubtree

	// SkipSiblings stops descending here and visits no further includes
	// at the parent's level
	SkipSiblings

	// Terminate stops the whole walk
	Terminate
)

// Visitor receives include-graph walk callbacks
type Visitor interface {
	// Visit is called once per reachable module, parents before includes
	Visit(cfg *Config) VisitResult

	// Missing is called when a module's manifest cannot be loaded. Return
	// true to retry (after installing it), false to treat the module as
	// skipped.
	Missing(name string) bool
}

// Walker performs a depth-first walk over a module include graph. Every
// module is visited at most once, which also makes include cycles
// harmless.
type Walker struct {
	modRoot string
	visited map[string]bool
}

// NewWalker creates a walker over the given module root
func NewWalker(modRoot string) *Walker {
	return &Walker{
		modRoot: modRoot,
		visited: make(map[string]bool),
	}
}

// Walk visits name and its transitive includes depth-first
func (w *Walker) Walk(name string, v Visitor) {
	w.walk(name, v)
}

// walk returns the control signal to propagate to the parent level
func (w *Walker) walk(name string, v Visitor) VisitResult {
	if w.visited[name] {
		return Continue
	}
	w.visited[name] = true

	var cfg *Config
	for {
		var err error
		cfg, err = LoadConfig(w.modRoot, name)
		if err == nil {
			break
		}
		if !v.Missing(name) {
			return Continue
		}
	}

	switch v.Visit(cfg) {
	case Terminate:
		return Terminate
	case SkipSubtree:
		return Continue
	case SkipSiblings:
		return SkipSiblings
	}

	for _, include := range cfg.Includes() {
		switch w.walk(include, v) {
		case Terminate:
			return Terminate
		case SkipSiblings:
			return Continue
		}
	}
	return Continue
}
