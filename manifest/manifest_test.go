package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "demo"
version = "0.1.0"
entry = "app.z"

[build]
output = "demo-bin"
toolchain = "/usr/local/go/bin/go"
no-cache = true
comptime-depth = 64

[runtime]
workers = 4
`
	if err := os.WriteFile(filepath.Join(dir, "z.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "demo" {
		t.Errorf("project name = %q, want demo", m.Project.Name)
	}
	if m.Project.Entry != "app.z" {
		t.Errorf("entry = %q, want app.z", m.Project.Entry)
	}
	if m.Build.Output != "demo-bin" {
		t.Errorf("output = %q, want demo-bin", m.Build.Output)
	}
	if m.Build.Toolchain != "/usr/local/go/bin/go" {
		t.Errorf("toolchain = %q, want /usr/local/go/bin/go", m.Build.Toolchain)
	}
	if !m.Build.NoCache {
		t.Error("no-cache = false, want true")
	}
	if m.Build.ComptimeDepth != 64 {
		t.Errorf("comptime-depth = %d, want 64", m.Build.ComptimeDepth)
	}
	if m.Runtime.Workers != 4 {
		t.Errorf("workers = %d, want 4", m.Runtime.Workers)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "minimal"
`
	if err := os.WriteFile(filepath.Join(dir, "z.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Entry != "main.z" {
		t.Errorf("default entry = %q, want main.z", m.Project.Entry)
	}
	if m.Build.Toolchain != "go" {
		t.Errorf("default toolchain = %q, want go", m.Build.Toolchain)
	}
	if got, want := m.CachePath(), filepath.Join(m.Dir, ".z", "cache.db"); got != want {
		t.Errorf("cache path = %q, want %q", got, want)
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	tomlContent := `[project]
name = "found-project"
`
	if err := os.WriteFile(filepath.Join(dir, "z.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	// Should find the manifest when starting from a deep subdirectory.
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no z.toml exists")
	}
}

func TestEntryPath(t *testing.T) {
	m := &Manifest{
		Dir:     "/app",
		Project: Project{Entry: "src/main.z"},
	}
	if got := m.EntryPath(); got != "/app/src/main.z" {
		t.Errorf("entry path = %q, want /app/src/main.z", got)
	}
}
