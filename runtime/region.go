package runtime

import (
	"sync/atomic"
	"unsafe"
)

// ---------------------------------------------------------------------------
// Region allocation
// ---------------------------------------------------------------------------

// slabSize is the granularity the arena grows by. Allocations larger than a
// slab get a dedicated slab of their own.
const slabSize = 64 * 1024

// Handle names an arena allocation by position instead of by pointer, so
// releasing a scope never leaves dangling references to walk.
type Handle struct {
	slab   int32
	off    int32
	size   int32
	pinned bool
}

// Size returns the allocation size in bytes.
func (h Handle) Size() int { return int(h.size) }

// Pinned reports whether the allocation survives scope pops.
func (h Handle) Pinned() bool { return h.pinned }

type mark struct {
	slab int
	off  int
}

// Arena is a stack of byte slabs with scope marks. Pop truncates back to the
// matching mark in O(1); pinned allocations live in a separate slab list and
// are promoted at allocation time, never by copying later.
type Arena struct {
	slabs  [][]byte
	off    int // offset into the last slab
	marks  []mark
	pinned [][]byte
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Push opens an allocation scope.
func (a *Arena) Push() {
	a.marks = append(a.marks, mark{slab: len(a.slabs), off: a.off})
}

// Pop closes the innermost scope, releasing everything allocated since the
// matching Push. Pinned allocations are untouched.
func (a *Arena) Pop() {
	if len(a.marks) == 0 {
		return
	}
	m := a.marks[len(a.marks)-1]
	a.marks = a.marks[:len(a.marks)-1]
	a.slabs = a.slabs[:m.slab]
	a.off = m.off
}

// Alloc reserves n bytes in the current scope.
func (a *Arena) Alloc(n int) Handle {
	if n > slabSize {
		a.slabs = append(a.slabs, make([]byte, n))
		a.off = n
		return Handle{slab: int32(len(a.slabs) - 1), off: 0, size: int32(n)}
	}
	if len(a.slabs) == 0 || a.off+n > len(a.slabs[len(a.slabs)-1]) {
		a.slabs = append(a.slabs, make([]byte, slabSize))
		a.off = 0
	}
	h := Handle{slab: int32(len(a.slabs) - 1), off: int32(a.off), size: int32(n)}
	a.off += n
	return h
}

// AllocPinned reserves n bytes that survive every Pop. Promotion happens
// here, at allocation time; there is no later migration.
func (a *Arena) AllocPinned(n int) Handle {
	a.pinned = append(a.pinned, make([]byte, n))
	return Handle{slab: int32(len(a.pinned) - 1), size: int32(n), pinned: true}
}

// Bytes returns the backing storage of an allocation.
func (a *Arena) Bytes(h Handle) []byte {
	if h.pinned {
		return a.pinned[h.slab][:h.size]
	}
	return a.slabs[h.slab][h.off : h.off+h.size]
}

// Depth returns the number of open scopes.
func (a *Arena) Depth() int { return len(a.marks) }

// InUse returns the bytes currently reserved in open scopes.
func (a *Arena) InUse() int {
	total := 0
	for i, s := range a.slabs {
		if i == len(a.slabs)-1 {
			total += a.off
		} else {
			total += len(s)
		}
	}
	return total
}

// PinnedBytes returns the bytes held by pinned allocations.
func (a *Arena) PinnedBytes() int {
	total := 0
	for _, s := range a.pinned {
		total += len(s)
	}
	return total
}

// ---------------------------------------------------------------------------
// Generated-code surface
// ---------------------------------------------------------------------------

// Region is the per-function allocation scope generated code opens on entry
// and releases on every exit path. Each region owns one arena scope; the
// compiler proves frees safe before emitting them, so release never walks
// live objects. Values themselves are Go-managed; the arena mirrors their
// footprint so release cost and memory attribution stay O(1) per region.
type Region struct {
	arena    *Arena
	live     int64
	released int64
}

// NewRegion opens a region.
func NewRegion() *Region {
	r := &Region{arena: NewArena()}
	r.arena.Push()
	return r
}

// Release closes the region. All live allocations end here at once; pinned
// allocations survive in the arena's pinned list.
func (r *Region) Release() {
	r.arena.Pop()
	atomic.StoreInt64(&r.live, 0)
	atomic.StoreInt64(&r.released, 1)
}

// Drop ends one allocation early, ahead of Release.
func (r *Region) Drop() {
	atomic.AddInt64(&r.live, -1)
}

// Live returns the number of allocations not yet dropped.
func (r *Region) Live() int64 {
	return atomic.LoadInt64(&r.live)
}

// Released reports whether Release has run.
func (r *Region) Released() bool {
	return atomic.LoadInt64(&r.released) != 0
}

// Footprint returns the scoped bytes the region currently holds.
func (r *Region) Footprint() int {
	return r.arena.InUse()
}

// PinnedBytes returns the bytes that will outlive Release.
func (r *Region) PinnedBytes() int {
	return r.arena.PinnedBytes()
}

// Alloc records a single-value allocation in the region.
func Alloc[T any](r *Region, v *T) *T {
	r.arena.Alloc(int(unsafe.Sizeof(*v)))
	atomic.AddInt64(&r.live, 1)
	return v
}

// AllocSlice records a slice allocation in the region.
func AllocSlice[T any](r *Region, xs ...T) []T {
	var zero T
	if n := len(xs) * int(unsafe.Sizeof(zero)); n > 0 {
		r.arena.Alloc(n)
	}
	atomic.AddInt64(&r.live, 1)
	if xs == nil {
		xs = []T{}
	}
	return xs
}

// AllocPinned records a single-value allocation that survives Release.
func AllocPinned[T any](r *Region, v *T) *T {
	r.arena.AllocPinned(int(unsafe.Sizeof(*v)))
	return v
}

// AllocPinnedSlice records a slice allocation that survives Release.
func AllocPinnedSlice[T any](r *Region, xs ...T) []T {
	var zero T
	r.arena.AllocPinned(len(xs) * int(unsafe.Sizeof(zero)))
	if xs == nil {
		xs = []T{}
	}
	return xs
}
