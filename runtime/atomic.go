package runtime

import "sync/atomic"

// AtomicInt is the runtime cell behind @atomic bindings. Mutation goes
// through compare-and-swap so concurrent loop bodies never lose updates.
type AtomicInt struct {
	v int64
}

// NewAtomicInt returns a cell holding v.
func NewAtomicInt(v int64) *AtomicInt {
	return &AtomicInt{v: v}
}

// Load returns the current value.
func (a *AtomicInt) Load() int64 {
	return atomic.LoadInt64(&a.v)
}

// Store replaces the value.
func (a *AtomicInt) Store(v int64) {
	for {
		old := atomic.LoadInt64(&a.v)
		if atomic.CompareAndSwapInt64(&a.v, old, v) {
			return
		}
	}
}

// Add applies a signed delta and returns the new value.
func (a *AtomicInt) Add(delta int64) int64 {
	for {
		old := atomic.LoadInt64(&a.v)
		if atomic.CompareAndSwapInt64(&a.v, old, old+delta) {
			return old + delta
		}
	}
}

// FetchAdd applies a signed delta and returns the value the cell held
// before the update.
func (a *AtomicInt) FetchAdd(delta int64) int64 {
	for {
		old := atomic.LoadInt64(&a.v)
		if atomic.CompareAndSwapInt64(&a.v, old, old+delta) {
			return old
		}
	}
}

// CompareAndSwap installs new only if the cell still holds old.
func (a *AtomicInt) CompareAndSwap(old, new int64) bool {
	return atomic.CompareAndSwapInt64(&a.v, old, new)
}
