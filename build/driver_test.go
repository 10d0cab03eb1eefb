package build

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOptionsFillDefaults(t *testing.T) {
	var o Options
	o.fill(filepath.Join("proj", "main.z"))

	if o.Toolchain != "go" {
		t.Errorf("toolchain = %q, want go", o.Toolchain)
	}
	if want := filepath.Join("proj", "main"); o.Output != want {
		t.Errorf("output = %q, want %q", o.Output, want)
	}
	if want := filepath.Join("proj", ".z", "cache.db"); o.CachePath != want {
		t.Errorf("cache path = %q, want %q", o.CachePath, want)
	}
	if o.RuntimeDir == "" {
		t.Error("runtime dir not derived")
	}
}

func TestOptionsFillKeepsExplicitValues(t *testing.T) {
	o := Options{
		Output:    "bin/app",
		Toolchain: "go1.25",
		CachePath: "/tmp/cache.db",
	}
	o.fill("main.z")

	if o.Output != "bin/app" || o.Toolchain != "go1.25" || o.CachePath != "/tmp/cache.db" {
		t.Errorf("explicit options were overwritten: %+v", o)
	}
}

func TestModuleRootHonorsEnv(t *testing.T) {
	t.Setenv("ZC_HOME", "/opt/zc")
	if got := moduleRoot(); got != "/opt/zc" {
		t.Errorf("moduleRoot() = %q, want /opt/zc", got)
	}
}

func TestCompileReportsDiagnosticsWithoutError(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.z")
	if err := os.WriteFile(src, []byte(`fn main() { print(nope); }`), 0o644); err != nil {
		t.Fatal(err)
	}

	exe, diags, err := Compile(src, Options{NoCache: true})
	if err != nil {
		t.Fatalf("infrastructure error: %v", err)
	}
	if exe != "" {
		t.Errorf("exe = %q, want empty on compile errors", exe)
	}
	if diags == nil || !diags.HasErrors() {
		t.Error("expected diagnostics")
	}
}

func TestCompileMissingFile(t *testing.T) {
	_, _, err := Compile(filepath.Join(t.TempDir(), "nope.z"), Options{NoCache: true})
	if err == nil {
		t.Fatal("expected an error for a missing source file")
	}
}
