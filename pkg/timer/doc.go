/*
Package timer implements an approximate, O(1)-amortized hashed-wheel
timer. It drives every time-based event in the platform: read/idle
deadlines, user timers, periodic tasks and redeploy scanning.

The wheel is a fixed ring of N buckets; a timeout with deadline d lands in
slot (tick + (d-lastDeadline)/tickDuration) mod N. On each tick the worker
sweeps one bucket, fires entries whose deadline has passed, re-arms
periodic entries at deadline+delay (last planned plus delay — processing
drift is intentionally not absorbed), and leaves far-future entries for a
later revolution. Firing is approximate: a task runs within one tick of
its deadline.

Every timeout carries a 64-bit id: high bits are a monotonic counter, low
⌈log2 N⌉ bits are the current slot. A holder of the id finds the timeout
by scanning one bucket; periodic timeouts, whose slot advances, are found
by comparing only the counter bits.

All wheel mutations happen on a single owner goroutine, which removes
locking from the hot path. Two ownership modes exist:

  - Timer (this package): a dedicated goroutine polls a bounded event
    queue with the time-to-next-tick as the poll timeout.
  - eventloop.Loop: the wheel is owned by an event-loop goroutine and the
    loop's blocking wait is clamped to the worker's sleep time.

Both expose the same Scheduler interface.
*/
package timer
