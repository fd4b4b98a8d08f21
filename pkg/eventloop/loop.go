package eventloop

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/burrowhq/burrow/pkg/log"
	"github.com/burrowhq/burrow/pkg/metrics"
	"github.com/burrowhq/burrow/pkg/timer"
)

// DefaultWaitTimeout is the loop's blocking wait when no timer deadline is
// nearer.
const DefaultWaitTimeout = 500 * time.Millisecond

// Loop is a minimal event loop that owns a hashed-wheel timer worker on
// its own goroutine. Instead of running a second thread for the timer,
// the loop's blocking wait is clamped to the time of the next tick; after
// every wake-up the worker's expirations are dispatched on the loop
// goroutine. This is the event-loop deployment mode of the timer — the
// dedicated-goroutine mode lives in pkg/timer.
type Loop struct {
	worker *timer.Worker

	tasks chan func()

	waitTimeout time.Duration

	done        chan struct{}
	shutdown    chan struct{}
	unprocessed []*timer.Timeout

	logger zerolog.Logger
}

// NewLoop creates and starts an event loop with an attached timer wheel
func NewLoop(tickDuration time.Duration, wheelSize int) (*Loop, error) {
	worker, err := timer.NewWorker(tickDuration, wheelSize, nil)
	if err != nil {
		return nil, err
	}
	l := &Loop{
		worker:      worker,
		tasks:       make(chan func(), 128),
		waitTimeout: DefaultWaitTimeout,
		done:        make(chan struct{}),
		shutdown:    make(chan struct{}),
		logger:      log.WithComponent("eventloop"),
	}
	go l.run()
	return l, nil
}

// Execute posts a function to run on the loop goroutine. Safe from any
// goroutine; a post after Stop is dropped.
func (l *Loop) Execute(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// NewTimeout schedules a task on the loop-owned wheel. Part of the
// timer.Scheduler surface.
func (l *Loop) NewTimeout(task timer.TimerTask, delay time.Duration, periodic bool) *timer.Timeout {
	timeout := timer.NewUnscheduled(l, task, delay, periodic)
	l.Execute(func() {
		l.worker.Schedule(timeout)
	})
	metrics.TimeoutsScheduled.Inc()
	return timeout
}

// CancelByID cancels a timeout located by its wheel id
func (l *Loop) CancelByID(id int64, periodic bool) bool {
	return l.Execute(func() {
		if l.worker.RemoveByID(id, periodic) != nil {
			metrics.TimeoutsCancelled.Inc()
		}
	})
}

// RemoveTimeout implements the cancellation callback used by
// timer.Timeout.Cancel: the actual wheel removal happens on the loop.
func (l *Loop) RemoveTimeout(timeout *timer.Timeout) {
	l.Execute(func() {
		l.worker.Remove(timeout)
		metrics.TimeoutsCancelled.Inc()
	})
}

// Stop shuts the loop down and returns the timeouts still scheduled.
// Must not be called from a task running on the loop.
func (l *Loop) Stop() []*timer.Timeout {
	select {
	case <-l.done:
		return nil
	default:
	}
	select {
	case l.shutdown <- struct{}{}:
		<-l.done
	case <-l.done:
	}
	return l.unprocessed
}

// run is the loop goroutine: select over posted tasks with the wait
// clamped to the next tick deadline, then dispatch expirations.
func (l *Loop) run() {
	for {
		// The post-select work below may have taken longer than a tick
		sleep := l.worker.SleepTime()
		if sleep < 0 {
			sleep = 0
		}
		wait := time.Duration(sleep) * time.Millisecond
		if wait > l.waitTimeout {
			wait = l.waitTimeout
		}
		waitTimer := time.NewTimer(wait)

		select {
		case fn := <-l.tasks:
			waitTimer.Stop()
			fn()
			// Drain without blocking before the timer sweep
			for {
				select {
				case fn := <-l.tasks:
					fn()
					continue
				default:
				}
				break
			}

		case <-waitTimer.C:

		case <-l.shutdown:
			waitTimer.Stop()
			l.unprocessed = l.worker.Unprocessed()
			close(l.done)
			return
		}

		l.dispatch(l.worker.NextTick())
	}
}

func (l *Loop) dispatch(expired []*timer.Timeout) {
	for _, timeout := range expired {
		if !timeout.IsExpired() {
			continue
		}
		metrics.TimeoutsFired.Inc()
		l.runTask(timeout)
	}
}

func (l *Loop) runTask(timeout *timer.Timeout) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Int64("id", timeout.ID()).
				Msg("Timer task panicked")
		}
	}()
	timeout.Run()
}
