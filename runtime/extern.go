package runtime

import (
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// External symbols
// ---------------------------------------------------------------------------

// The checker restricts external signatures to C-representable scalars, so
// the registry only ever carries int64, float64, bool, int32, and void
// shapes. Host programs register implementations before the generated main
// runs, typically from an init function in a linked package.

var (
	externMu sync.RWMutex
	externs  = make(map[string]func(args ...any) any)
)

// RegisterExtern binds an external symbol name to its implementation.
// Re-registering replaces the previous binding.
func RegisterExtern(name string, fn func(args ...any) any) {
	externMu.Lock()
	externs[name] = fn
	externMu.Unlock()
}

// ExternCall invokes a registered external symbol. Calling an unregistered
// symbol is a link failure surfaced at the call site.
func ExternCall(name string, args ...any) any {
	externMu.RLock()
	fn := externs[name]
	externMu.RUnlock()
	if fn == nil {
		panic(fmt.Sprintf("unresolved external symbol %q", name))
	}
	return fn(args...)
}
