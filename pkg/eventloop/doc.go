/*
Package eventloop provides a minimal event loop whose blocking wait is
driven by an attached hashed-wheel timer worker.

The loop goroutine owns the wheel: schedule and cancel requests from
other goroutines are posted as loop tasks, and the wait for the next
posted task is clamped to min(DefaultWaitTimeout, time-to-next-tick).
After every wake-up the loop sweeps expirations and dispatches timer
tasks on its own goroutine. This mirrors plugging the timer into an I/O
selector loop instead of running a dedicated timer thread.
*/
package eventloop
