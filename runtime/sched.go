package runtime

import (
	"runtime"
	"sync"
)

// ---------------------------------------------------------------------------
// Parallel scheduler: fixed worker pool with one deque per worker
// ---------------------------------------------------------------------------

// chunk is a half-open index range of the input.
type chunk struct {
	lo, hi int
}

// deque holds one worker's chunks. The owner pops from the head; thieves
// take from the tail, which keeps contention off the hot end.
type deque struct {
	mu    sync.Mutex
	items []chunk
}

func (d *deque) popHead() (chunk, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return chunk{}, false
	}
	c := d.items[0]
	d.items = d.items[1:]
	return c, true
}

func (d *deque) stealTail() (chunk, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return chunk{}, false
	}
	c := d.items[len(d.items)-1]
	d.items = d.items[:len(d.items)-1]
	return c, true
}

var (
	workerMu sync.Mutex
	workers  = runtime.NumCPU()
)

// SetWorkers fixes the pool size for subsequent dispatches. Values below 1
// are clamped to 1.
func SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	workerMu.Lock()
	workers = n
	workerMu.Unlock()
}

// Workers returns the current pool size.
func Workers() int {
	workerMu.Lock()
	defer workerMu.Unlock()
	return workers
}

// chunksPerWorker oversplits the input so stealing has something to take
// when chunk costs are uneven.
const chunksPerWorker = 4

// Executor goroutines are started once, on the first parallel dispatch, and
// live for the rest of the process. Tasks that cannot be handed to an idle
// executor run on a fresh goroutine so nested dispatches never deadlock.
var (
	poolOnce sync.Once
	poolRun  chan func()
)

func submit(task func()) {
	poolOnce.Do(func() {
		poolRun = make(chan func())
		for i := 0; i < runtime.NumCPU(); i++ {
			go func() {
				for t := range poolRun {
					t()
				}
			}()
		}
	})
	select {
	case poolRun <- task:
	default:
		go task()
	}
}

// dispatch splits [0,n) across w lanes and runs body(worker, lo, hi) until
// every chunk is done. Lane 0 runs on the caller; the rest go to the pool.
// It returns only when all work has finished.
func dispatch(n, w int, body func(worker, lo, hi int)) {
	if n <= 0 {
		return
	}
	if w > n {
		w = n
	}
	if w <= 1 {
		body(0, 0, n)
		return
	}

	total := w * chunksPerWorker
	if total > n {
		total = n
	}
	size := n / total
	rem := n % total
	deques := make([]*deque, w)
	for i := range deques {
		deques[i] = &deque{}
	}
	lo := 0
	for i := 0; i < total; i++ {
		hi := lo + size
		if i < rem {
			hi++
		}
		d := deques[i%w]
		d.items = append(d.items, chunk{lo, hi})
		lo = hi
	}

	run := func(id int) {
		for {
			c, ok := deques[id].popHead()
			if !ok {
				c, ok = steal(deques, id)
			}
			if !ok {
				return
			}
			body(id, c.lo, c.hi)
		}
	}

	var wg sync.WaitGroup
	wg.Add(w - 1)
	for id := 1; id < w; id++ {
		id := id
		submit(func() {
			defer wg.Done()
			run(id)
		})
	}
	run(0)
	wg.Wait()
}

func steal(deques []*deque, self int) (chunk, bool) {
	for i := 1; i < len(deques); i++ {
		victim := (self + i) % len(deques)
		if c, ok := deques[victim].stealTail(); ok {
			return c, true
		}
	}
	return chunk{}, false
}

// For applies f to every element. Synchronous: it returns after the last
// element is processed.
func For[T any](xs []T, f func(T)) {
	dispatch(len(xs), Workers(), func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			f(xs[i])
		}
	})
}

// ForRange applies f to every index in the half-open range [start, end).
// Synchronous, like For. An empty or inverted range is a no-op.
func ForRange(start, end int64, f func(int64)) {
	n := end - start
	if n <= 0 {
		return
	}
	dispatch(int(n), Workers(), func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			f(start + int64(i))
		}
	})
}

// Map applies f to every element and returns the results in input order.
func Map[T, U any](xs []T, f func(T) U) []U {
	out := make([]U, len(xs))
	dispatch(len(xs), Workers(), func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = f(xs[i])
		}
	})
	return out
}

// Reduce folds the input with f, seeded by init. f must be associative and
// commutative: combination order follows the steal pattern, not input order.
func Reduce[T any](xs []T, init T, f func(T, T) T) T {
	w := Workers()
	accs := make([]T, w)
	filled := make([]bool, w)
	dispatch(len(xs), w, func(id, lo, hi int) {
		acc := accs[id]
		has := filled[id]
		for i := lo; i < hi; i++ {
			if !has {
				acc = xs[i]
				has = true
				continue
			}
			acc = f(acc, xs[i])
		}
		accs[id] = acc
		filled[id] = has
	})
	out := init
	for id := 0; id < w; id++ {
		if filled[id] {
			out = f(out, accs[id])
		}
	}
	return out
}
