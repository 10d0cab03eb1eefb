package runtime

import (
	"sort"
	"sync"
	"testing"
)

func TestForVisitsEveryElement(t *testing.T) {
	for _, w := range []int{1, 2, 8} {
		SetWorkers(w)
		xs := make([]int64, 1000)
		for i := range xs {
			xs[i] = int64(i)
		}
		var mu sync.Mutex
		seen := make([]int64, 0, len(xs))
		For(xs, func(x int64) {
			mu.Lock()
			seen = append(seen, x)
			mu.Unlock()
		})
		if len(seen) != len(xs) {
			t.Fatalf("workers=%d: visited %d elements, want %d", w, len(seen), len(xs))
		}
		sort.Slice(seen, func(i, j int) bool { return seen[i] < seen[j] })
		for i, x := range seen {
			if x != int64(i) {
				t.Fatalf("workers=%d: element %d visited %d times", w, i, 0)
			}
		}
	}
}

func TestForAtomicCounterExact(t *testing.T) {
	SetWorkers(8)
	xs := make([]int64, 1000)
	c := NewAtomicInt(0)
	For(xs, func(int64) { c.Add(1) })
	if got := c.Load(); got != 1000 {
		t.Fatalf("counter = %d, want 1000", got)
	}
}

func TestForRangeCounterExact(t *testing.T) {
	for _, w := range []int{1, 2, 8} {
		SetWorkers(w)
		c := NewAtomicInt(0)
		ForRange(0, 1000, func(int64) { c.FetchAdd(1) })
		if got := c.Load(); got != 1000 {
			t.Fatalf("workers=%d: counter = %d, want 1000", w, got)
		}
	}
}

func TestForRangeVisitsEveryIndex(t *testing.T) {
	SetWorkers(4)
	const lo, hi = 10, 523
	seen := make([]AtomicInt, hi)
	ForRange(lo, hi, func(i int64) { seen[i].Add(1) })
	for i := range seen {
		want := int64(0)
		if i >= lo {
			want = 1
		}
		if got := seen[i].Load(); got != want {
			t.Fatalf("index %d visited %d times, want %d", i, got, want)
		}
	}
}

func TestForRangeEmptyAndInverted(t *testing.T) {
	SetWorkers(4)
	calls := NewAtomicInt(0)
	ForRange(5, 5, func(int64) { calls.Add(1) })
	ForRange(9, 3, func(int64) { calls.Add(1) })
	if calls.Load() != 0 {
		t.Fatalf("body ran %d times for empty ranges", calls.Load())
	}
}

func TestNestedDispatchCompletes(t *testing.T) {
	SetWorkers(4)
	total := NewAtomicInt(0)
	ForRange(0, 8, func(int64) {
		ForRange(0, 100, func(int64) { total.Add(1) })
	})
	if got := total.Load(); got != 800 {
		t.Fatalf("total = %d, want 800", got)
	}
}

func TestMapPreservesOrder(t *testing.T) {
	SetWorkers(4)
	xs := make([]int64, 257) // deliberately not a multiple of the chunk count
	for i := range xs {
		xs[i] = int64(i)
	}
	got := Map(xs, func(x int64) int64 { return x * x })
	for i, v := range got {
		if v != int64(i)*int64(i) {
			t.Fatalf("got[%d] = %d, want %d", i, v, i*i)
		}
	}
}

func TestReduceMatchesSequentialFold(t *testing.T) {
	add := func(a, b int64) int64 { return a + b }
	tests := []struct {
		name    string
		n       int
		workers int
		init    int64
	}{
		{"empty", 0, 4, 7},
		{"single", 1, 4, 0},
		{"small", 10, 4, 0},
		{"large", 5000, 8, 100},
		{"one worker", 5000, 1, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetWorkers(tt.workers)
			xs := make([]int64, tt.n)
			want := tt.init
			for i := range xs {
				xs[i] = int64(i + 1)
				want += xs[i]
			}
			if got := Reduce(xs, tt.init, add); got != want {
				t.Fatalf("reduce = %d, want %d", got, want)
			}
		})
	}
}

func TestSetWorkersClamps(t *testing.T) {
	SetWorkers(-3)
	if Workers() != 1 {
		t.Fatalf("workers = %d, want 1", Workers())
	}
	SetWorkers(4)
}

func TestDispatchMoreWorkersThanElements(t *testing.T) {
	SetWorkers(16)
	xs := []int64{1, 2, 3}
	sum := NewAtomicInt(0)
	For(xs, func(x int64) { sum.Add(x) })
	if sum.Load() != 6 {
		t.Fatalf("sum = %d, want 6", sum.Load())
	}
}
