package runtime

import "testing"

func TestArenaScopes(t *testing.T) {
	a := NewArena()
	a.Push()
	h1 := a.Alloc(16)
	if h1.Size() != 16 {
		t.Fatalf("size = %d, want 16", h1.Size())
	}
	buf := a.Bytes(h1)
	if len(buf) != 16 {
		t.Fatalf("len(bytes) = %d, want 16", len(buf))
	}
	buf[0] = 0xAB

	a.Push()
	a.Alloc(32)
	a.Alloc(slabSize) // forces a fresh slab
	if a.Depth() != 2 {
		t.Fatalf("depth = %d, want 2", a.Depth())
	}
	a.Pop()

	// The outer allocation survives the inner pop.
	if got := a.Bytes(h1)[0]; got != 0xAB {
		t.Fatalf("bytes[0] = %#x after pop, want 0xab", got)
	}
	a.Pop()
	if a.Depth() != 0 {
		t.Fatalf("depth = %d after final pop, want 0", a.Depth())
	}
}

func TestArenaLargeAllocation(t *testing.T) {
	a := NewArena()
	a.Push()
	h := a.Alloc(3 * slabSize)
	if h.Size() != 3*slabSize {
		t.Fatalf("size = %d, want %d", h.Size(), 3*slabSize)
	}
	if len(a.Bytes(h)) != 3*slabSize {
		t.Fatalf("len(bytes) = %d, want %d", len(a.Bytes(h)), 3*slabSize)
	}
}

func TestArenaPinnedSurvivesPop(t *testing.T) {
	a := NewArena()
	a.Push()
	h := a.AllocPinned(8)
	if !h.Pinned() {
		t.Fatal("handle not pinned")
	}
	a.Bytes(h)[3] = 0x7F
	a.Pop()
	if got := a.Bytes(h)[3]; got != 0x7F {
		t.Fatalf("pinned bytes[3] = %#x after pop, want 0x7f", got)
	}
}

func TestRegionAccounting(t *testing.T) {
	r := NewRegion()
	xs := AllocSlice(r, int64(1), 2, 3)
	if len(xs) != 3 {
		t.Fatalf("len = %d, want 3", len(xs))
	}
	type point struct{ x, y int64 }
	p := Alloc(r, &point{x: 1, y: 2})
	if p.y != 2 {
		t.Fatalf("p.y = %d, want 2", p.y)
	}
	if r.Live() != 2 {
		t.Fatalf("live = %d, want 2", r.Live())
	}
	r.Drop()
	if r.Live() != 1 {
		t.Fatalf("live = %d after drop, want 1", r.Live())
	}
	r.Release()
	if !r.Released() || r.Live() != 0 {
		t.Fatalf("released = %t live = %d, want true and 0", r.Released(), r.Live())
	}
}

func TestRegionFootprint(t *testing.T) {
	r := NewRegion()
	AllocSlice(r, int64(1), 2, 3, 4)
	if got := r.Footprint(); got != 32 {
		t.Fatalf("footprint = %d after 4 int64s, want 32", got)
	}
	type point struct{ x, y int64 }
	Alloc(r, &point{})
	if got := r.Footprint(); got != 48 {
		t.Fatalf("footprint = %d, want 48", got)
	}
	r.Release()
	if got := r.Footprint(); got != 0 {
		t.Fatalf("footprint = %d after release, want 0", got)
	}
}

func TestRegionPinnedSurvivesRelease(t *testing.T) {
	r := NewRegion()
	AllocSlice(r, int64(1), 2)
	xs := AllocPinnedSlice(r, int64(7), 8, 9)
	r.Release()
	if got := r.Footprint(); got != 0 {
		t.Fatalf("scoped footprint = %d after release, want 0", got)
	}
	if got := r.PinnedBytes(); got != 24 {
		t.Fatalf("pinned bytes = %d after release, want 24", got)
	}
	if xs[0] != 7 || xs[2] != 9 {
		t.Fatalf("pinned slice = %v, want [7 8 9]", xs)
	}
}

func TestAllocSliceEmpty(t *testing.T) {
	r := NewRegion()
	xs := AllocSlice[int64](r)
	if xs == nil || len(xs) != 0 {
		t.Fatalf("empty alloc = %#v, want non-nil empty slice", xs)
	}
}
