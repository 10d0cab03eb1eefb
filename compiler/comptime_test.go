package compiler

import (
	"testing"
)

const factSrc = `
fn fact(n: int) -> int {
    if n <= 1 { return 1; }
    return n * fact(n - 1);
}
`

func TestComptimeConstInitializer(t *testing.T) {
	c, diags := checkSource("test.z", factSrc+`
const FACT: int = fact(5);

fn main() { print(FACT); }
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.String())
	}
	v, ok := c.ConstVals["FACT"]
	if !ok {
		t.Fatal("FACT was not evaluated")
	}
	if v.Kind != ValInt || v.Int != 120 {
		t.Errorf("FACT = %v, want 120", v)
	}
}

func TestComptimeCallEvaluated(t *testing.T) {
	c, diags := checkSource("test.z", factSrc+`
fn main() {
    let x = @comptime fact(5);
    print(x);
}
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.String())
	}
	if len(c.Comptime) != 1 {
		t.Fatalf("got %d evaluated calls, want 1", len(c.Comptime))
	}
	for _, v := range c.Comptime {
		if v.Kind != ValInt || v.Int != 120 {
			t.Errorf("value = %v, want 120", v)
		}
	}
}

func TestComptimeConstDependsOnConst(t *testing.T) {
	c, diags := checkSource("test.z", `
const BASE: int = 7;
const SQUARE: int = BASE * BASE;

fn main() { print(SQUARE); }
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.String())
	}
	if v := c.ConstVals["SQUARE"]; v.Kind != ValInt || v.Int != 49 {
		t.Errorf("SQUARE = %v, want 49", v)
	}
}

func TestComptimeRecursionLimit(t *testing.T) {
	_, diags := checkSource("test.z", `
fn spin(n: int) -> int { return spin(n + 1); }

const X: int = spin(0);

fn main() { print(X); }
`)
	errs := diags.Errors()
	if len(errs) == 0 {
		t.Fatal("expected an error")
	}
	d := errs[0]
	if d.Category != CategoryComptime {
		t.Errorf("category = %v, want ComptimeError", d.Category)
	}
	if d.Code != CodeRecursionLimitExceeded {
		t.Errorf("code = %v, want RecursionLimitExceeded", d.Code)
	}
}

func TestComptimeNotConstant(t *testing.T) {
	_, diags := checkSource("test.z", factSrc+`
fn main() {
    let v = 2;
    let w = @comptime fact(v);
    print(w);
}
`)
	errs := diags.Errors()
	if len(errs) == 0 {
		t.Fatal("expected an error")
	}
	d := errs[0]
	if d.Category != CategoryComptime {
		t.Errorf("category = %v, want ComptimeError", d.Category)
	}
	if d.Code != CodeNotConstant {
		t.Errorf("code = %v, want NotConstant", d.Code)
	}
}

func TestComptimeSideEffectsRejected(t *testing.T) {
	_, diags := checkSource("test.z", `
fn shout() -> int {
    print("hi");
    return 1;
}

fn main() {
    let x = @comptime shout();
    print(x);
}
`)
	errs := diags.Errors()
	if len(errs) == 0 {
		t.Fatal("expected an error")
	}
	d := errs[0]
	if d.Category != CategoryComptime {
		t.Errorf("category = %v, want ComptimeError", d.Category)
	}
	if d.Code != CodeUnsupportedOperation {
		t.Errorf("code = %v, want UnsupportedOperation", d.Code)
	}
}

func TestComptimeStringAndArray(t *testing.T) {
	c, diags := checkSource("test.z", `
fn join(parts: [string]) -> string {
    let out = "";
    for p in parts {
        out = out + p;
    }
    return out;
}

const GREETING: string = join(["he", "llo"]);

fn main() { print(GREETING); }
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.String())
	}
	if v := c.ConstVals["GREETING"]; v.Kind != ValString || v.Str != "hello" {
		t.Errorf("GREETING = %v, want hello", v)
	}
}
