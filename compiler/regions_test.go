package compiler

import (
	"testing"
)

func ownershipErrors(t *testing.T, src string) []Diagnostic {
	t.Helper()
	_, diags := checkSource("test.z", src)
	var out []Diagnostic
	for _, d := range diags.Errors() {
		if d.Category == CategoryOwnership {
			out = append(out, d)
		}
	}
	return out
}

func TestRegionsUseAfterFree(t *testing.T) {
	errs := ownershipErrors(t, `
fn main() {
    let xs = [1, 2, 3];
    @free xs;
    print(len(xs));
}
`)
	if len(errs) != 1 {
		t.Fatalf("got %d ownership errors, want 1", len(errs))
	}
	if errs[0].Code != CodeUseAfterRegionEnd {
		t.Errorf("code = %v, want UseAfterRegionEnd", errs[0].Code)
	}
}

func TestRegionsDoubleFree(t *testing.T) {
	errs := ownershipErrors(t, `
fn main() {
    let xs = [1, 2, 3];
    print(len(xs));
    @free xs;
    @free xs;
}
`)
	if len(errs) != 1 {
		t.Fatalf("got %d ownership errors, want 1", len(errs))
	}
	if errs[0].Code != CodeDoubleFree {
		t.Errorf("code = %v, want DoubleFree", errs[0].Code)
	}
}

func TestRegionsFreeThenRedeclare(t *testing.T) {
	// Freeing one binding says nothing about a different binding with the
	// same spelling in a nested block.
	errs := ownershipErrors(t, `
fn main() {
    let xs = [1];
    @free xs;
    while true {
        let xs = [2];
        print(len(xs));
        break;
    }
}
`)
	if len(errs) != 0 {
		t.Fatalf("unexpected ownership errors: %v", errs)
	}
}

func TestRegionsParallelSharedMutable(t *testing.T) {
	errs := ownershipErrors(t, `
fn main() {
    let total = 0;
    @parallel for x in [1, 2, 3] {
        total = total + x;
    }
    print(total);
}
`)
	if len(errs) != 1 {
		t.Fatalf("got %d ownership errors, want 1", len(errs))
	}
	if errs[0].Code != CodeSharedMutable {
		t.Errorf("code = %v, want SharedMutableCapture", errs[0].Code)
	}
}

func TestRegionsParallelAtomicAllowed(t *testing.T) {
	errs := ownershipErrors(t, `
fn main() {
    let total = @atomic 0;
    @parallel for x in [1, 2, 3] {
        total = total + x;
    }
    print(total);
}
`)
	if len(errs) != 0 {
		t.Fatalf("unexpected ownership errors: %v", errs)
	}
}

func TestRegionsParallelLoopLocalAllowed(t *testing.T) {
	errs := ownershipErrors(t, `
fn main() {
    @parallel for x in [1, 2, 3] {
        let y = x * 2;
        y = y + 1;
        print(y);
    }
}
`)
	if len(errs) != 0 {
		t.Fatalf("unexpected ownership errors: %v", errs)
	}
}

func TestRegionsParallelPinnedElementWrite(t *testing.T) {
	// Workers may fill disjoint slots of a pinned buffer.
	errs := ownershipErrors(t, `
fn main() {
    let buf = @pinned [0, 0, 0];
    @parallel for i in [0, 1, 2] {
        buf[i] = i * 2;
    }
    print(len(buf));
}
`)
	if len(errs) != 0 {
		t.Fatalf("unexpected ownership errors: %v", errs)
	}
}

func TestRegionsParallelPinnedRebindRejected(t *testing.T) {
	errs := ownershipErrors(t, `
fn main() {
    let buf = @pinned [1, 2];
    @parallel for x in [1, 2] {
        buf = [x];
    }
    print(len(buf));
}
`)
	if len(errs) != 1 {
		t.Fatalf("got %d ownership errors, want 1", len(errs))
	}
	if errs[0].Code != CodeSharedMutable {
		t.Errorf("code = %v, want SharedMutableCapture", errs[0].Code)
	}
}

func TestRegionsParallelNestedCapture(t *testing.T) {
	// The outer binding stays shared even when the write is buried in an
	// inner sequential loop.
	errs := ownershipErrors(t, `
fn main() {
    let hits = 0;
    @parallel for x in [1, 2, 3] {
        for y in [4, 5] {
            hits = hits + x * y;
        }
    }
    print(hits);
}
`)
	if len(errs) != 1 {
		t.Fatalf("got %d ownership errors, want 1", len(errs))
	}
	if errs[0].Code != CodeSharedMutable {
		t.Errorf("code = %v, want SharedMutableCapture", errs[0].Code)
	}
}
