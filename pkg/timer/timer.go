package timer

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/burrowhq/burrow/pkg/log"
	"github.com/burrowhq/burrow/pkg/metrics"
)

// Scheduler is the user-visible timer surface. Both deployment modes —
// the dedicated-goroutine Timer here and the event-loop-owned timer in
// pkg/eventloop — satisfy it; callers never see which one is in use.
type Scheduler interface {
	// NewTimeout schedules task to run once (or repeatedly, if periodic)
	// after delay
	NewTimeout(task TimerTask, delay time.Duration, periodic bool) *Timeout

	// CancelByID cancels a timeout located by its wheel id
	CancelByID(id int64, periodic bool) bool

	// Stop shuts the timer down and returns the unprocessed timeouts
	Stop() []*Timeout
}

// eventKind tags a worker queue event
type eventKind int

const (
	evShutdown eventKind = iota
	evSchedule
	evCancel
	evCancelID
)

// timerEvent is the only information passed from producer goroutines to
// the worker goroutine.
type timerEvent struct {
	kind     eventKind
	timeout  *Timeout
	id       int64
	periodic bool
}

// Timer drives a Worker from a dedicated goroutine. Producers hand
// schedule/cancel events over a small bounded queue: queues are either
// empty or full in practice, so the queue stays small and producers block
// rather than pile up.
type Timer struct {
	worker *Worker

	events chan timerEvent

	// closed by the goroutine after it drained; unprocessed is set before
	done        chan struct{}
	unprocessed []*Timeout

	logger zerolog.Logger
}

// queueCapacity is the bounded event queue size
const queueCapacity = 16

// NewTimer creates and starts a dedicated-goroutine timer
func NewTimer(tickDuration time.Duration, wheelSize int) (*Timer, error) {
	return newTimerWithClock(tickDuration, wheelSize, nil)
}

func newTimerWithClock(tickDuration time.Duration, wheelSize int, now func() int64) (*Timer, error) {
	worker, err := NewWorker(tickDuration, wheelSize, now)
	if err != nil {
		return nil, err
	}
	t := &Timer{
		worker: worker,
		events: make(chan timerEvent, queueCapacity),
		done:   make(chan struct{}),
		logger: log.WithComponent("timer"),
	}
	go t.run()
	return t, nil
}

// NewTimeout schedules a task. May be called from any goroutine; the
// timeout is handed to the worker goroutine for wheel placement. After
// Stop the call is a no-op and the returned timeout never fires.
func (t *Timer) NewTimeout(task TimerTask, delay time.Duration, periodic bool) *Timeout {
	timeout := newTimeout(t, task, t.worker.now(), delay.Milliseconds(), periodic)
	t.send(timerEvent{kind: evSchedule, timeout: timeout})
	metrics.TimeoutsScheduled.Inc()
	return timeout
}

// CancelByID cancels a timeout by its wheel id. Returns false after Stop.
func (t *Timer) CancelByID(id int64, periodic bool) bool {
	return t.send(timerEvent{kind: evCancelID, id: id, periodic: periodic})
}

// RemoveTimeout implements the Canceller used by Timeout.Cancel
func (t *Timer) RemoveTimeout(timeout *Timeout) {
	t.send(timerEvent{kind: evCancel, timeout: timeout})
}

// send blocks while the queue is full. Returns false when the timer has
// shut down; the event is silently dropped then.
func (t *Timer) send(ev timerEvent) bool {
	select {
	case <-t.done:
		return false
	default:
	}
	select {
	case t.events <- ev:
		return true
	case <-t.done:
		return false
	}
}

// Stop shuts the worker goroutine down and returns the timeouts that were
// still scheduled. No task is dispatched after Stop returns. Stop must
// not be called from inside a firing task: the worker goroutine cannot
// join itself.
func (t *Timer) Stop() []*Timeout {
	select {
	case <-t.done:
		// Already stopped
		return nil
	default:
	}
	t.send(timerEvent{kind: evShutdown})
	<-t.done
	return t.unprocessed
}

// run is the worker goroutine: wait for the next tick deadline, process
// queued events in between, dispatch expirations.
func (t *Timer) run() {
	for {
		sleep := t.worker.SleepTime()
		if sleep < 0 {
			sleep = 0
		}
		wait := time.NewTimer(time.Duration(sleep) * time.Millisecond)

		select {
		case <-wait.C:
			t.dispatch(t.worker.NextTick())

		case ev := <-t.events:
			wait.Stop()
			// Drain the queue before sleeping again
			drained := false
			for !drained {
				if ev.kind == evShutdown {
					t.unprocessed = t.worker.Unprocessed()
					close(t.done)
					return
				}
				t.handle(ev)
				select {
				case ev = <-t.events:
				default:
					drained = true
				}
			}
		}
	}
}

func (t *Timer) handle(ev timerEvent) {
	switch ev.kind {
	case evSchedule:
		t.worker.Schedule(ev.timeout)
	case evCancel:
		t.worker.Remove(ev.timeout)
		metrics.TimeoutsCancelled.Inc()
	case evCancelID:
		if t.worker.RemoveByID(ev.id, ev.periodic) != nil {
			metrics.TimeoutsCancelled.Inc()
		}
	}
}

// dispatch runs the user tasks of one expiration round. A panicking task
// is logged and never kills the timer; a periodic task stays scheduled
// even if one iteration panics.
func (t *Timer) dispatch(expired []*Timeout) {
	for _, timeout := range expired {
		if !timeout.IsExpired() {
			// Cancelled between collection and dispatch
			continue
		}
		metrics.TimeoutsFired.Inc()
		t.runTask(timeout)
	}
}

func (t *Timer) runTask(timeout *Timeout) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Interface("panic", r).Int64("id", timeout.ID()).
				Msg("Timer task panicked")
		}
	}()
	timeout.Run()
}
