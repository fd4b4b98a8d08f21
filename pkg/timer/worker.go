package timer

import (
	"fmt"
	"math"
	"math/bits"
	"time"
)

const (
	// DefaultTickDuration is the tick quantum used when none is given
	DefaultTickDuration = 100 * time.Millisecond

	// DefaultWheelSize is the number of wheel slots used when none is given
	DefaultWheelSize = 1024

	// maxWheelSize bounds the slot count so the id slot bits stay sane
	maxWheelSize = 0x4000_0000
)

// Worker is the hashed-wheel tick engine. It computes expirations,
// reschedules periodic timeouts and maintains the id encoding. A Worker
// is owned by exactly one goroutine — the dedicated timer goroutine or
// the event loop it is attached to — and is not safe for concurrent use.
// External callers reach it through the owning facade's event queue.
//
// Invariant: lastDeadline + k*tickDuration is the deadline of the slot
// processed k ticks from now.
type Worker struct {
	// Duration between ticks in milliseconds
	tickDuration int64

	wheel *Wheel[*Bucket[*Timeout]]

	// Index of the last bucket visited
	tick int

	// == start + tick*tickDuration
	lastDeadline int64

	// Every timeout gets an id assigned
	idCounter int64

	// Number of low id bits holding the slot index
	maskBits uint

	now func() int64
}

// NewWorker creates a tick engine. now is the millisecond clock; pass nil
// for wall time. tickDuration*size must fit in a signed 64-bit millisecond
// count.
func NewWorker(tickDuration time.Duration, size int, now func() int64) (*Worker, error) {
	if tickDuration <= 0 {
		return nil, fmt.Errorf("tick duration must be > 0: %v", tickDuration)
	}
	if size < 1 || size > maxWheelSize {
		return nil, fmt.Errorf("wheel size out of range [1, %d]: %d", maxWheelSize, size)
	}

	tickMillis := tickDuration.Milliseconds()
	if tickMillis < 1 {
		tickMillis = 1
	}
	if tickMillis >= math.MaxInt64/int64(size) {
		return nil, fmt.Errorf("tick duration too long: %v with %d slots overflows", tickDuration, size)
	}

	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}

	w := &Worker{
		tickDuration: tickMillis,
		wheel:        NewWheel[*Bucket[*Timeout]](size),
		maskBits:     uint(bits.Len(uint(size - 1))),
		now:          now,
	}
	for i := 0; i < size; i++ {
		w.wheel.Set(i, NewBucket[*Timeout]())
	}
	w.lastDeadline = w.now()
	return w, nil
}

// TickDuration returns the tick quantum in milliseconds
func (w *Worker) TickDuration() int64 {
	return w.tickDuration
}

// SleepTime returns the milliseconds until the next tick deadline. May be
// negative when the worker is behind; callers clamp to zero.
func (w *Worker) SleepTime() int64 {
	return w.lastDeadline + w.tickDuration - w.now()
}

// Schedule places a timeout into the wheel and assigns or refreshes its
// id. Must be called from the owning goroutine.
func (w *Worker) Schedule(t *Timeout) {
	diff := t.deadline - w.lastDeadline
	if diff < 0 {
		// Already due; land in the current slot so the next sweep fires it
		diff = 0
	}
	slot := int((int64(w.tick) + diff/w.tickDuration) % int64(w.wheel.Size()))
	t.slot = slot

	w.idCounter++
	if w.idCounter < 0 {
		w.idCounter = 0
	}
	if t.id == 0 {
		t.id = w.idCounter<<w.maskBits | int64(slot)
	} else {
		// Rescheduled periodic entry: refresh the slot bits, keep the counter
		t.id = t.id&^w.slotMask() | int64(slot)
	}

	w.wheel.Get(slot).Add(t)
}

func (w *Worker) slotMask() int64 {
	return int64(1)<<w.maskBits - 1
}

// Remove drops a timeout from the wheel without firing it. If the timeout
// is not in its recorded slot it has already been fired or dequeued; the
// call is a no-op then.
func (w *Worker) Remove(t *Timeout) {
	if t == nil {
		return
	}
	w.wheel.Get(t.slot).Remove(t)
}

// RemoveByID locates a timeout by id, drops it from the wheel and marks
// it cancelled. For a non-periodic timeout the slot is encoded in the low
// id bits. A periodic timeout may have advanced to another slot, so every
// bucket is scanned comparing only the counter bits.
func (w *Worker) RemoveByID(id int64, periodic bool) *Timeout {
	if !periodic {
		if t := w.findAndRemove(id); t != nil {
			t.markCancelled()
			return t
		}
		return nil
	}

	counter := id &^ w.slotMask()
	var found *Timeout
	w.wheel.Each(func(_ int, b *Bucket[*Timeout]) bool {
		iter := b.Iterator()
		for {
			entry, ok := iter.Next()
			if !ok {
				return true
			}
			if entry.id&^w.slotMask() == counter {
				iter.Remove()
				entry.markCancelled()
				found = entry
				return false
			}
		}
	})
	return found
}

func (w *Worker) findAndRemove(id int64) *Timeout {
	slot := int(id & w.slotMask())
	iter := w.wheel.Get(slot).Iterator()
	for {
		entry, ok := iter.Next()
		if !ok {
			return nil
		}
		if entry.id == id {
			iter.Remove()
			return entry
		}
	}
}

// Expired advances the wheel past every tick deadline that is due and
// collects the timeouts that expired. Periodic timeouts are rescheduled
// in place at deadline+delay; the returned element is a pre-reschedule
// snapshot so the caller sees the deadline of the firing that occurred.
// Entries already cancelled (or snapshot leftovers) found in passing are
// tombstoned.
func (w *Worker) Expired() []*Timeout {
	var expired []*Timeout

	current := w.now()
	for w.lastDeadline <= current {
		expired = w.fetchExpired(w.tick, current, expired)

		next := w.lastDeadline + w.tickDuration
		if next > current {
			break
		}
		w.lastDeadline = next
		w.tick++
	}

	return expired
}

func (w *Worker) fetchExpired(tick int, deadline int64, expired []*Timeout) []*Timeout {
	iter := w.wheel.Get(tick).Iterator()
	for {
		t, ok := iter.Next()
		if !ok {
			return expired
		}
		if State(t.state.Load()) != StateInit {
			// Cleanup: drop cancelled or already expired entries
			iter.Remove()
		} else if t.deadline <= deadline {
			iter.Remove()
			if t.IsPeriodic() {
				expired = append(expired, t.snapshot())
				w.reschedulePeriodic(t)
			} else {
				expired = append(expired, t)
			}
		}
	}
}

// One can re-arm with the same delay after the task executed, before it
// executed, or at exactly "last planned + delay". The latter is what we
// do, ignoring any processing delays.
func (w *Worker) reschedulePeriodic(t *Timeout) {
	t.deadline += t.delay
	w.Schedule(t)
}

// Notify marks each returned timeout expired. A timeout cancelled in the
// meantime keeps its cancelled state and is skipped.
func (w *Worker) Notify(expired []*Timeout) {
	for _, t := range expired {
		if t.cancelledUpstream() {
			continue
		}
		t.expire()
	}
}

// NextTick collects and marks one round of expirations. The caller
// dispatches the returned tasks.
func (w *Worker) NextTick() []*Timeout {
	expired := w.Expired()
	w.Notify(expired)
	return expired
}

// Unprocessed returns every timeout still sitting in the wheel
func (w *Worker) Unprocessed() []*Timeout {
	var all []*Timeout
	w.wheel.Each(func(_ int, b *Bucket[*Timeout]) bool {
		all = append(all, b.All()...)
		return true
	})
	return all
}

func (w *Worker) String() string {
	return fmt.Sprintf("lastDeadline: %d; tick: %d; tickDuration: %d", w.lastDeadline, w.tick, w.tickDuration)
}
