package compiler

import (
	"testing"
)

func TestCheckErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		category Category
		code     string
	}{
		{
			name:     "let type mismatch",
			src:      `fn main() { let x: int = "s"; print(x); }`,
			category: CategoryType,
			code:     CodeMismatch,
		},
		{
			name:     "undefined name",
			src:      `fn main() { print(nope); }`,
			category: CategoryName,
			code:     CodeUndefined,
		},
		{
			name: "arity mismatch",
			src: `
fn f(a: int) -> int { return a; }
fn main() { print(f(1, 2)); }
`,
			category: CategoryType,
			code:     CodeArityMismatch,
		},
		{
			name:     "condition must be bool",
			src:      `fn main() { if 1 { print("a"); } }`,
			category: CategoryType,
			code:     CodeMismatch,
		},
		{
			name:     "len of a non-collection",
			src:      `fn main() { print(len(5)); }`,
			category: CategoryType,
			code:     CodeMismatch,
		},
		{
			name: "unresolved generic return",
			src: `
fn none<T>() -> [T] { return []; }
fn main() { let xs = none(); print(len(xs)); }
`,
			category: CategoryType,
			code:     CodeUnresolvedGeneric,
		},
		{
			name: "duplicate definition",
			src: `
fn f() -> int { return 1; }
fn f() -> int { return 2; }
fn main() { print(f()); }
`,
			category: CategoryName,
			code:     CodeDuplicateDefinition,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, diags := checkSource("test.z", tc.src)
			errs := diags.Errors()
			if len(errs) == 0 {
				t.Fatalf("expected an error, got none")
			}
			d := errs[0]
			if d.Category != tc.category {
				t.Errorf("category = %v, want %v", d.Category, tc.category)
			}
			if d.Code != tc.code {
				t.Errorf("code = %v, want %v", d.Code, tc.code)
			}
		})
	}
}

func TestCheckMismatchReportedOnce(t *testing.T) {
	// A bad initializer poisons the binding but must not cascade: the later
	// use of x stays silent.
	_, diags := checkSource("test.z", `fn main() { let x: int = "s"; print(x + 1); }`)
	errs := diags.Errors()
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1:\n%s", len(errs), diags.String())
	}
	if errs[0].Code != CodeMismatch {
		t.Errorf("code = %v, want Mismatch", errs[0].Code)
	}
}

func TestCheckUnusedBindingWarning(t *testing.T) {
	_, diags := checkSource("test.z", `fn main() { let x = 1; }`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.String())
	}
	var warn *Diagnostic
	for _, d := range diags.All() {
		if d.Code == CodeUnusedBinding {
			warn = &d
			break
		}
	}
	if warn == nil {
		t.Fatal("expected an UnusedBinding warning")
	}
	if warn.Severity != SeverityWarning {
		t.Errorf("severity = %v, want warning", warn.Severity)
	}
}

func TestCheckUnreachableCodeWarning(t *testing.T) {
	_, diags := checkSource("test.z", `
fn main() {
    return;
    print("never");
}
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.String())
	}
	found := false
	for _, d := range diags.All() {
		if d.Code == CodeUnreachableCode {
			found = true
		}
	}
	if !found {
		t.Error("expected an UnreachableCode warning")
	}
}

func TestCheckGenericInference(t *testing.T) {
	// One generic function instantiated at two types, both inferred from the
	// argument alone.
	_, diags := checkSource("test.z", `
fn id<T>(x: T) -> T { return x; }
fn main() {
    let a = id(42);
    let b = id("s");
    print(a);
    print(b);
}
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.String())
	}
}

func TestCheckGenericInferenceFromAnnotation(t *testing.T) {
	// When the arguments say nothing, the annotation on the binding does.
	_, diags := checkSource("test.z", `
fn none<T>() -> [T] { return []; }
fn main() {
    let xs: [int] = none();
    print(len(xs));
}
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.String())
	}
}

func TestCheckExportSignatureFFI(t *testing.T) {
	tests := []struct {
		name string
		src  string
		bad  bool
	}{
		{
			name: "closure parameter rejected",
			src: `
export fn apply(f: fn(int) -> int) -> int { return f(1); }
fn main() { print(apply(|x| x + 1)); }
`,
			bad: true,
		},
		{
			name: "array return rejected",
			src: `
export fn table() -> [int] { return [1, 2]; }
fn main() { print(len(table())); }
`,
			bad: true,
		},
		{
			name: "scalar signature accepted",
			src: `
export fn twice(x: int) -> int { return x * 2; }
fn main() { print(twice(2)); }
`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, diags := checkSource("test.z", tc.src)
			var ffi []Diagnostic
			for _, d := range diags.Errors() {
				if d.Category == CategoryFFI {
					ffi = append(ffi, d)
				}
			}
			if tc.bad {
				if len(ffi) == 0 {
					t.Fatal("expected an FFI error for the exported signature")
				}
				if ffi[0].Code != CodeUnsupportedType {
					t.Errorf("code = %v, want UnsupportedType", ffi[0].Code)
				}
			} else if len(ffi) != 0 {
				t.Fatalf("unexpected FFI errors: %v", ffi)
			}
		})
	}
}

func TestCheckParallelForRange(t *testing.T) {
	_, diags := checkSource("test.z", `
fn main() {
    let counter = @atomic 0;
    parallel.for(0, 1000, |_| counter.fetch_add(1));
    print(counter.load());
}
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.String())
	}
}

func TestCheckParallelForArity(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "one argument",
			src:  `fn main() { parallel.for(|x| print(x)); }`,
		},
		{
			name: "four arguments",
			src:  `fn main() { parallel.for(0, 1, 2, |i| print(i)); }`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, diags := checkSource("test.z", tc.src)
			errs := diags.Errors()
			if len(errs) == 0 {
				t.Fatal("expected an error, got none")
			}
			if errs[0].Code != CodeArityMismatch {
				t.Errorf("code = %v, want ArityMismatch", errs[0].Code)
			}
		})
	}
}

func TestCheckAtomicMethods(t *testing.T) {
	_, diags := checkSource("test.z", `
fn main() {
    let c = @atomic 5;
    c.store(10);
    let prev = c.fetch_add(3);
    print(prev + c.load());
}
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.String())
	}
}

func TestCheckAtomicMethodErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{
			name: "fetch_add needs a delta",
			src:  `fn main() { let c = @atomic 0; print(c.fetch_add()); }`,
			code: CodeArityMismatch,
		},
		{
			name: "store takes exactly one value",
			src:  `fn main() { let c = @atomic 0; c.store(1, 2); print(c.load()); }`,
			code: CodeArityMismatch,
		},
		{
			name: "methods require an atomic binding",
			src:  `fn main() { let c = 0; print(c.fetch_add(1)); }`,
			code: CodeMismatch,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, diags := checkSource("test.z", tc.src)
			errs := diags.Errors()
			if len(errs) == 0 {
				t.Fatal("expected an error, got none")
			}
			if errs[0].Code != tc.code {
				t.Errorf("code = %v, want %v", errs[0].Code, tc.code)
			}
		})
	}
}

func TestCheckMethodCall(t *testing.T) {
	_, diags := checkSource("test.z", `
struct Point { x: float, y: float }

impl Point {
    fn norm2(self: Point) -> float {
        return self.x * self.x + self.y * self.y;
    }
}

fn main() {
    let p = Point { x: 3.0, y: 4.0 };
    print(p.norm2());
}
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.String())
	}
}

func TestCheckMatchEnum(t *testing.T) {
	_, diags := checkSource("test.z", `
enum Option<T> {
    Some(T),
    None,
}

fn unwrap_or(o: Option<int>, d: int) -> int {
    return match o {
        Some(v) => v,
        None => d,
    };
}

fn main() {
    print(unwrap_or(Some(3), 0));
    print(unwrap_or(None, 7));
}
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.String())
	}
}
