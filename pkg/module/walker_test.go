package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// recordingVisitor collects visit order and applies per-module results
type recordingVisitor struct {
	order   []string
	results map[string]VisitResult
	missing []string
	retry   func(name string) bool
}

func (v *recordingVisitor) Visit(cfg *Config) VisitResult {
	v.order = append(v.order, cfg.Name())
	if r, ok := v.results[cfg.Name()]; ok {
		return r
	}
	return Continue
}

func (v *recordingVisitor) Missing(name string) bool {
	v.missing = append(v.missing, name)
	if v.retry != nil {
		return v.retry(name)
	}
	return false
}

// TestWalkerDepthFirstOrder tests the S3 scenario: the chain
// testmod8-1 -> testmod8-2 -> testmod8-3 is visited in exactly that order
func TestWalkerDepthFirstOrder(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "testmod8-1", `{"main": "one.js", "includes": "testmod8-2"}`)
	writeModule(t, root, "testmod8-2", `{"includes": "testmod8-3"}`)
	writeModule(t, root, "testmod8-3", `{}`)

	v := &recordingVisitor{}
	NewWalker(root).Walk("testmod8-1", v)

	assert.Equal(t, []string{"testmod8-1", "testmod8-2", "testmod8-3"}, v.order)
}

// TestWalkerVisitsOnce tests that a diamond include graph visits shared
// modules a single time, which also makes cycles harmless
func TestWalkerVisitsOnce(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "top", `{"includes": "left,right"}`)
	writeModule(t, root, "left", `{"includes": "shared"}`)
	writeModule(t, root, "right", `{"includes": "shared"}`)
	writeModule(t, root, "shared", `{"includes": "top"}`) // cycle back

	v := &recordingVisitor{}
	NewWalker(root).Walk("top", v)

	assert.Equal(t, []string{"top", "left", "shared", "right"}, v.order)
}

// TestWalkerSkipSubtree tests that SkipSubtree prunes includes
func TestWalkerSkipSubtree(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "top", `{"includes": "pruned,kept"}`)
	writeModule(t, root, "pruned", `{"includes": "hidden"}`)
	writeModule(t, root, "hidden", `{}`)
	writeModule(t, root, "kept", `{}`)

	v := &recordingVisitor{results: map[string]VisitResult{"pruned": SkipSubtree}}
	NewWalker(root).Walk("top", v)

	assert.Equal(t, []string{"top", "pruned", "kept"}, v.order)
}

// TestWalkerTerminate tests that Terminate stops the whole walk
func TestWalkerTerminate(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "top", `{"includes": "stop,never"}`)
	writeModule(t, root, "stop", `{}`)
	writeModule(t, root, "never", `{}`)

	v := &recordingVisitor{results: map[string]VisitResult{"stop": Terminate}}
	NewWalker(root).Walk("top", v)

	assert.Equal(t, []string{"top", "stop"}, v.order)
}

// TestWalkerSkipSiblings tests that SkipSiblings stops the parent's
// remaining includes
func TestWalkerSkipSiblings(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "top", `{"includes": "first,second,third"}`)
	writeModule(t, root, "first", `{}`)
	writeModule(t, root, "second", `{}`)
	writeModule(t, root, "third", `{}`)

	v := &recordingVisitor{results: map[string]VisitResult{"first": SkipSiblings}}
	NewWalker(root).Walk("top", v)

	assert.Equal(t, []string{"top", "first"}, v.order)
}

// TestWalkerMissingSkip tests that a missing module with a false-returning
// callback is skipped, not fatal
func TestWalkerMissingSkip(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "top", `{"includes": "ghost,real"}`)
	writeModule(t, root, "real", `{}`)

	v := &recordingVisitor{}
	NewWalker(root).Walk("top", v)

	assert.Equal(t, []string{"ghost"}, v.missing)
	assert.Equal(t, []string{"top", "real"}, v.order)
}

// TestWalkerMissingRetry tests the retry path: the callback installs the
// module and asks for another attempt
func TestWalkerMissingRetry(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "top", `{"includes": "late"}`)

	v := &recordingVisitor{}
	v.retry = func(name string) bool {
		// Simulate an install appearing mid-walk
		writeModule(t, root, name, `{}`)
		return true
	}
	NewWalker(root).Walk("top", v)

	assert.Equal(t, []string{"late"}, v.missing)
	assert.Equal(t, []string{"top", "late"}, v.order)
}
