package async

import (
	"errors"
	"sync"

	"github.com/burrowhq/burrow/pkg/log"
)

// ErrPoolClosed is returned when submitting to a stopped pool
var ErrPoolClosed = errors.New("worker pool is closed")

// Pool is a fixed-size pool of worker goroutines for blocking operations:
// file system walks, module downloads, deploy and undeploy. Event-loop
// code must never block; it submits here instead.
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewPool creates and starts a pool with the given number of workers
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{tasks: make(chan func(), 64)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	defer p.wg.Done()
	logger := log.WithComponent("worker-pool")
	for task := range p.tasks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().Interface("panic", r).Msg("Worker task panicked")
				}
			}()
			task()
		}()
	}
}

// Submit enqueues a task for execution on a worker goroutine. Blocks when
// the queue is full.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	// Held across the send so Stop cannot close the channel underneath us.
	// Workers keep draining while we wait, so a full queue cannot deadlock.
	p.tasks <- task
	return nil
}

// Stop drains queued tasks and waits for the workers to exit
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	close(p.tasks)
	p.wg.Wait()
}

// Run submits a blocking action to the pool and returns a future for its
// result. The future fails immediately if the pool is closed.
func Run[T any](p *Pool, action func() (T, error)) *Future[T] {
	f := NewFuture[T]()
	err := p.Submit(func() {
		v, err := action()
		f.Complete(v, err)
	})
	if err != nil {
		var zero T
		f.Complete(zero, err)
	}
	return f
}
