package build

import (
	"path/filepath"
	"testing"

	"github.com/z-lang/zc/compiler"
)

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	c, err := OpenCache(path)
	if err != nil {
		t.Fatalf("OpenCache failed: %v", err)
	}
	defer c.Close()

	hash := SourceHash("fn main() {}", 1, compiler.Config{})
	unit := &CachedUnit{
		Name:     "main",
		GoSource: "package main",
		Exe:      []byte{0x7F, 'E', 'L', 'F'},
		BuildID:  "b-1",
		Created:  1234,
	}
	if err := c.Put(hash, unit); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := c.Get(hash)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for stored hash")
	}
	if got.Name != "main" || got.GoSource != "package main" || got.BuildID != "b-1" {
		t.Errorf("round trip = %+v, want original record", got)
	}
	if len(got.Exe) != 4 || got.Exe[0] != 0x7F {
		t.Errorf("exe bytes = %v, want ELF header prefix", got.Exe)
	}
}

func TestCacheMiss(t *testing.T) {
	c, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenCache failed: %v", err)
	}
	defer c.Close()

	got, err := c.Get(SourceHash("unseen", 1, compiler.Config{}))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get = %+v for unseen hash, want nil", got)
	}
}

func TestCacheReplace(t *testing.T) {
	c, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenCache failed: %v", err)
	}
	defer c.Close()

	hash := SourceHash("fn main() {}", 1, compiler.Config{})
	if err := c.Put(hash, &CachedUnit{BuildID: "first"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(hash, &CachedUnit{BuildID: "second"}); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get(hash)
	if err != nil {
		t.Fatal(err)
	}
	if got.BuildID != "second" {
		t.Errorf("build id = %q after replace, want second", got.BuildID)
	}
}

func TestSourceHashSensitivity(t *testing.T) {
	a := SourceHash("fn main() {}", 1, compiler.Config{})
	if b := SourceHash("fn main() { }", 1, compiler.Config{}); b == a {
		t.Error("different sources hash alike")
	}
	if b := SourceHash("fn main() {}", 2, compiler.Config{}); b == a {
		t.Error("different ABI revisions hash alike")
	}
	if b := SourceHash("fn main() {}", 1, compiler.Config{}); b != a {
		t.Error("identical inputs hash differently")
	}
	if b := SourceHash("fn main() {}", 1, compiler.Config{Workers: 4}); b == a {
		t.Error("different worker settings hash alike")
	}
	if b := SourceHash("fn main() {}", 1, compiler.Config{ComptimeDepth: 64}); b == a {
		t.Error("different comptime depth settings hash alike")
	}
}
