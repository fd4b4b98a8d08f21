package async

import "sync"

// Completion counts pending sub-operations and invokes a callback exactly
// once when the last one reports. The first failure sets a sticky failed
// bit; the callback still runs only after every sub-operation arrived.
type Completion struct {
	mu        sync.Mutex
	required  int
	completed int
	failed    bool
	invoked   bool
	done      func(failed bool)
}

// NewCompletion creates a completion handler. The done callback may be nil.
func NewCompletion(done func(failed bool)) *Completion {
	return &Completion{done: done}
}

// Add registers one more required sub-operation
func (c *Completion) Add() {
	c.mu.Lock()
	c.required++
	c.mu.Unlock()
}

// Done reports one sub-operation as completed successfully
func (c *Completion) Done() {
	c.complete(false)
}

// Fail reports one sub-operation as failed. The failure is sticky.
func (c *Completion) Fail() {
	c.complete(true)
}

// Failed reports whether any sub-operation has failed so far
func (c *Completion) Failed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

func (c *Completion) complete(failed bool) {
	c.mu.Lock()
	if failed {
		c.failed = true
	}
	c.completed++
	fire := c.completed >= c.required && !c.invoked
	if fire {
		c.invoked = true
	}
	state := c.failed
	cb := c.done
	c.mu.Unlock()

	if fire && cb != nil {
		cb(state)
	}
}
