package compiler

import (
	"strings"
	"testing"
)

func TestCompileSourcePipeline(t *testing.T) {
	u := CompileSource("hello.z", `
fn greet(name: string) -> string {
    return "hello, " + name;
}

fn main() {
    print(greet("world"));
}
`)
	if u.Diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", u.Diags.String())
	}
	if u.File == nil || u.Checker == nil || u.Program == nil {
		t.Fatal("a pipeline stage was skipped")
	}
	if !strings.Contains(u.GoSource, "package main") {
		t.Error("no Go source produced")
	}
}

func TestCompileStopsAfterParseErrors(t *testing.T) {
	u := CompileSource("bad.z", `fn main( { print("x"); }`)
	if !u.Diags.HasErrors() {
		t.Fatal("expected parse errors")
	}
	if u.Checker != nil {
		t.Error("checker ran despite parse errors")
	}
	if u.Program != nil || u.GoSource != "" {
		t.Error("later stages ran despite parse errors")
	}
}

func TestCompileStopsAfterCheckErrors(t *testing.T) {
	u := CompileSource("bad.z", `fn main() { let x: int = "s"; print(x); }`)
	if !u.Diags.HasErrors() {
		t.Fatal("expected type errors")
	}
	if u.Checker == nil {
		t.Error("checker result missing")
	}
	if u.Program != nil || u.GoSource != "" {
		t.Error("later stages ran despite check errors")
	}
}

func TestCompileDiagnosticRendering(t *testing.T) {
	u := CompileSource("bad.z", `fn main() { print(nope); }`)
	errs := u.Diags.Errors()
	if len(errs) == 0 {
		t.Fatal("expected an error")
	}
	msg := errs[0].Error()
	if !strings.Contains(msg, "NameError::Undefined") {
		t.Errorf("diagnostic %q does not carry category and code", msg)
	}
	if !strings.Contains(msg, "1:") {
		t.Errorf("diagnostic %q does not carry a position", msg)
	}
}

func TestCompileWarningsDoNotStopPipeline(t *testing.T) {
	u := CompileSource("warn.z", `
fn main() {
    let unused = 1;
    print("ok");
}
`)
	if u.Diags.HasErrors() {
		t.Fatalf("warnings were treated as errors:\n%s", u.Diags.String())
	}
	if u.GoSource == "" {
		t.Error("pipeline stopped on a warning")
	}
	if u.Diags.Len() == 0 {
		t.Error("expected an unused-binding warning")
	}
}

func TestCompileConfigWorkers(t *testing.T) {
	src := `fn main() { print("hi"); }`
	u := CompileSourceWith("w.z", src, Config{Workers: 4})
	if u.Diags.HasErrors() {
		t.Fatalf("compile errors:\n%s", u.Diags.String())
	}
	if !strings.Contains(u.GoSource, "runtime.SetWorkers(4)") {
		t.Errorf("entry point does not fix the pool size:\n%s", u.GoSource)
	}
	if d := CompileSource("w.z", src); strings.Contains(d.GoSource, "SetWorkers") {
		t.Error("default build should leave the pool sized by the host")
	}
}

func TestCompileConfigComptimeDepth(t *testing.T) {
	src := `
fn down(n: int) -> int {
    if n == 0 { return 0; }
    return down(n - 1);
}

const ZERO = down(20);

fn main() { print(ZERO); }
`
	u := CompileSourceWith("d.z", src, Config{ComptimeDepth: 5})
	errs := u.Diags.Errors()
	if len(errs) == 0 {
		t.Fatal("expected the lowered depth limit to fire")
	}
	if errs[0].Code != CodeRecursionLimitExceeded {
		t.Errorf("code = %v, want RecursionLimitExceeded", errs[0].Code)
	}
	if u = CompileSourceWith("d.z", src, Config{ComptimeDepth: 64}); u.Diags.HasErrors() {
		t.Fatalf("depth 64 should evaluate down(20):\n%s", u.Diags.String())
	}
}
