package runtime

import (
	"sync"
	"testing"
)

func TestAtomicIntConcurrentAdd(t *testing.T) {
	a := NewAtomicInt(0)
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				a.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := a.Load(); got != 4000 {
		t.Fatalf("value = %d, want 4000", got)
	}
}

func TestAtomicIntStoreLoad(t *testing.T) {
	a := NewAtomicInt(5)
	if a.Load() != 5 {
		t.Fatalf("load = %d, want 5", a.Load())
	}
	a.Store(-9)
	if a.Load() != -9 {
		t.Fatalf("load = %d after store, want -9", a.Load())
	}
}

func TestAtomicIntFetchAdd(t *testing.T) {
	a := NewAtomicInt(10)
	if got := a.FetchAdd(5); got != 10 {
		t.Fatalf("fetch_add returned %d, want the prior value 10", got)
	}
	if got := a.Load(); got != 15 {
		t.Fatalf("value = %d after fetch_add, want 15", got)
	}
	if got := a.Add(5); got != 20 {
		t.Fatalf("add returned %d, want the new value 20", got)
	}
}

func TestAtomicIntCompareAndSwap(t *testing.T) {
	a := NewAtomicInt(1)
	if !a.CompareAndSwap(1, 2) {
		t.Fatal("cas(1,2) failed on matching value")
	}
	if a.CompareAndSwap(1, 3) {
		t.Fatal("cas(1,3) succeeded on stale value")
	}
	if a.Load() != 2 {
		t.Fatalf("value = %d, want 2", a.Load())
	}
}

func TestStringFormatting(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{int64(42), "42"},
		{float64(2), "2.0"},
		{float64(2.5), "2.5"},
		{true, "true"},
		{"plain", "plain"},
		{int32('é'), "é"},
		{nil, "null"},
		{[]int64{1, 2, 3}, "[1, 2, 3]"},
		{[]float64{1}, "[1.0]"},
	}
	for _, tt := range tests {
		if got := String(tt.in); got != tt.want {
			t.Errorf("String(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStrHelpers(t *testing.T) {
	if got := StrLen("héllo"); got != 5 {
		t.Fatalf("StrLen = %d, want 5", got)
	}
	if got := StrIndex("héllo", 1); got != int32('é') {
		t.Fatalf("StrIndex = %q, want %q", got, 'é')
	}
}

func TestExternRegistry(t *testing.T) {
	RegisterExtern("host_add", func(args ...any) any {
		return args[0].(int64) + args[1].(int64)
	})
	if got := ExternCall("host_add", int64(2), int64(3)).(int64); got != 5 {
		t.Fatalf("extern call = %d, want 5", got)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("calling an unregistered symbol did not panic")
		}
	}()
	ExternCall("missing_symbol")
}
