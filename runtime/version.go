// Package runtime is the support library linked into every generated
// program: region allocation, the parallel scheduler, atomics, and the
// formatting helpers behind print. The call surface here is versioned;
// generated code pins the ABI revision it was compiled against and
// MustABI verifies the pair at startup.
package runtime

import "fmt"

// Version is the human-readable runtime release.
const Version = "0.3.0"

// ABI is the call-signature revision. Bump it whenever a signature in the
// generated-code surface changes shape.
const ABI = 1

// MustABI panics when a generated program was compiled against a different
// call-signature revision than the linked runtime.
func MustABI(compiled int) {
	if compiled != ABI {
		panic(fmt.Sprintf(
			"z runtime %s speaks ABI %d but this program was compiled for ABI %d; recompile it",
			Version, ABI, compiled))
	}
}
