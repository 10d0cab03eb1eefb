package compiler

import (
	"strings"
	"testing"
)

func emitSource(t *testing.T, src string) string {
	t.Helper()
	u := CompileSource("test.z", src)
	if u.Diags.HasErrors() {
		t.Fatalf("compile errors:\n%s", u.Diags.String())
	}
	if u.GoSource == "" {
		t.Fatal("no Go source produced")
	}
	return u.GoSource
}

func wantContains(t *testing.T, src, sub string) {
	t.Helper()
	if !strings.Contains(src, sub) {
		t.Errorf("generated source missing %q:\n%s", sub, src)
	}
}

func TestEmitHelloWorld(t *testing.T) {
	src := emitSource(t, `fn main() { print("hi"); }`)
	wantContains(t, src, "// Code generated by zc. DO NOT EDIT.")
	wantContains(t, src, "package main")
	wantContains(t, src, "const zABI = 1")
	wantContains(t, src, "func z_main()")
	wantContains(t, src, "runtime.MustABI(zABI)")
	wantContains(t, src, "runtime.Print")
	wantContains(t, src, "runtime.NewRegion()")
	wantContains(t, src, ".Release()")
}

func TestEmitRequiresMain(t *testing.T) {
	_, err := EmitProgram(&Program{Name: "t"}, "")
	if err == nil {
		t.Fatal("expected an error for a program with no main")
	}
	if !strings.Contains(err.Error(), "no main function") {
		t.Errorf("error = %v", err)
	}
}

func TestEmitAtomicOps(t *testing.T) {
	src := emitSource(t, `
fn main() {
    let c = @atomic 0;
    c = c + 1;
    print(c);
}
`)
	wantContains(t, src, "runtime.NewAtomicInt")
	wantContains(t, src, ".Add(")
	wantContains(t, src, ".Load()")
}

func TestEmitStructAllocation(t *testing.T) {
	src := emitSource(t, `
struct Point { x: int, y: int }

fn main() {
    let p = Point { x: 1, y: 2 };
    print(p.x + p.y);
}
`)
	wantContains(t, src, "type zt_Point struct")
	wantContains(t, src, "runtime.Alloc(")
	wantContains(t, src, "&zt_Point{")
}

func TestEmitArrayAllocation(t *testing.T) {
	src := emitSource(t, `
fn main() {
    let xs = [1, 2, 3];
    print(len(xs));
}
`)
	wantContains(t, src, "runtime.AllocSlice[int64]")
}

func TestEmitParallelFor(t *testing.T) {
	src := emitSource(t, `
fn main() {
    @parallel for x in [1, 2, 3] {
        print(x);
    }
}
`)
	wantContains(t, src, "runtime.For(")
	wantContains(t, src, "func z_main_body0")
}

func TestEmitPinnedAllocations(t *testing.T) {
	src := emitSource(t, `
struct Point { x: int, y: int }

fn main() {
    let buf = @pinned [1, 2, 3];
    let p = @pinned Point { x: 1, y: 2 };
    print(len(buf) + p.x);
}
`)
	wantContains(t, src, "runtime.AllocPinnedSlice[int64]")
	wantContains(t, src, "runtime.AllocPinned(")
}

func TestEmitParallelForRange(t *testing.T) {
	src := emitSource(t, `
fn main() {
    let counter = @atomic 0;
    parallel.for(0, 1000, |_| counter.fetch_add(1));
    print(counter.load());
}
`)
	wantContains(t, src, "runtime.ForRange(")
	wantContains(t, src, "func z_main_closure0")
	wantContains(t, src, ".FetchAdd(")
}

func TestEmitControlFlowUsesGotos(t *testing.T) {
	src := emitSource(t, `
fn main() {
    let i = 0;
    while i < 3 {
        print(i);
        i = i + 1;
    }
}
`)
	wantContains(t, src, "goto L")
	// Every emitted label must be the target of some jump; Go rejects
	// unused labels outright.
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "L") || !strings.HasSuffix(line, ":") {
			continue
		}
		label := strings.TrimSuffix(line, ":")
		if !strings.Contains(src, "goto "+label) {
			t.Errorf("label %s has no corresponding goto", label)
		}
	}
}

func TestEmitGenericInstances(t *testing.T) {
	src := emitSource(t, `
fn id<T>(x: T) -> T { return x; }
fn main() {
    print(id(42));
    print(id("s"));
}
`)
	wantContains(t, src, "func z_id_int")
	wantContains(t, src, "func z_id_string")
}

func TestEmitEnumRepresentation(t *testing.T) {
	src := emitSource(t, `
enum Option<T> {
    Some(T),
    None,
}

fn main() {
    let o = Some(3);
    let v = match o {
        Some(x) => x,
        None => 0,
    };
    print(v);
}
`)
	wantContains(t, src, "type zt_Option struct")
	wantContains(t, src, "tag")
}
