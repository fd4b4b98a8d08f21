package module

// Dependencies accumulates the result of one resolution walk: the ordered
// classpath, which module contributed which jar, and any warnings. It is
// handed to the caller when resolution completes and never mutated after.
type Dependencies struct {
	// RunModule is the root module the walk started from
	RunModule string

	// URLs is the module's classpath: module directories and jars, outer
	// module first
	URLs []string

	// IncludedJars maps a jar basename to every module that contributed a
	// file of that name
	IncludedJars map[string][]string

	// IncludedModules lists the resolved modules in visit order
	IncludedModules []string

	// Warnings collected during the walk (jar collisions, failed installs)
	Warnings []string

	included map[string]bool
	urlSeen  map[string]bool
	failed   bool
}

// NewDependencies creates an accumulator, optionally pre-seeded with
// classpath entries (the ad-hoc verticle case).
func NewDependencies(runModule string, urls ...string) *Dependencies {
	d := &Dependencies{
		RunModule:    runModule,
		IncludedJars: make(map[string][]string),
		included:     make(map[string]bool),
		urlSeen:      make(map[string]bool),
	}
	for _, u := range urls {
		d.AddURL(u)
	}
	return d
}

// AddURL appends a classpath entry, keeping the list ordered and unique
func (d *Dependencies) AddURL(url string) {
	if d.urlSeen[url] {
		return
	}
	d.urlSeen[url] = true
	d.URLs = append(d.URLs, url)
}

// AddJar records that module contributed a jar with the given basename.
// Returns the modules that contributed the same basename before.
func (d *Dependencies) AddJar(basename, module string) []string {
	prev := d.IncludedJars[basename]
	d.IncludedJars[basename] = append(prev, module)
	return prev
}

// MarkIncluded records a module as resolved
func (d *Dependencies) MarkIncluded(name string) {
	if !d.included[name] {
		d.included[name] = true
		d.IncludedModules = append(d.IncludedModules, name)
	}
}

// Included reports whether a module was already resolved
func (d *Dependencies) Included(name string) bool {
	return d.included[name]
}

// Warn records a warning
func (d *Dependencies) Warn(msg string) {
	d.Warnings = append(d.Warnings, msg)
}

// Fail records a warning and marks the resolution failed
func (d *Dependencies) Fail(msg string) *Dependencies {
	d.Warnings = append(d.Warnings, msg)
	d.failed = true
	return d
}

// Failed reports whether the resolution failed
func (d *Dependencies) Failed() bool {
	return d.failed
}
