// Package build drives the pipeline end to end: compiler front end, Go
// source emission, the external native toolchain, and the build cache.
package build

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/z-lang/zc/compiler"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("zc.build")

// Options adjusts a build. The zero value picks sane defaults.
type Options struct {
	// Output is the executable path; empty derives it from the source name.
	Output string
	// Toolchain is the external compiler binary, "go" by default.
	Toolchain string
	// CachePath locates the cache database; empty puts it under .z next to
	// the source.
	CachePath string
	// NoCache bypasses the cache entirely.
	NoCache bool
	// RuntimeDir overrides the zc module root the generated program links
	// against.
	RuntimeDir string
	// ComptimeDepth caps compile-time call depth; 0 keeps the compiler
	// default. Usually sourced from the manifest's [build] table.
	ComptimeDepth int
	// Workers fixes the compiled program's scheduler pool size; 0 sizes it
	// from the host. Usually sourced from the manifest's [runtime] table.
	Workers int
}

func (o *Options) fill(srcPath string) {
	if o.Toolchain == "" {
		o.Toolchain = "go"
	}
	if o.Output == "" {
		base := strings.TrimSuffix(filepath.Base(srcPath), ".z")
		o.Output = filepath.Join(filepath.Dir(srcPath), base)
	}
	if o.CachePath == "" {
		o.CachePath = filepath.Join(filepath.Dir(srcPath), ".z", "cache.db")
	}
	if o.RuntimeDir == "" {
		o.RuntimeDir = moduleRoot()
	}
}

// moduleRoot locates the zc source tree the generated program's replace
// directive points at: ZC_HOME when set, otherwise the tree this package
// was compiled from.
func moduleRoot() string {
	if home := os.Getenv("ZC_HOME"); home != "" {
		return home
	}
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	return filepath.Dir(filepath.Dir(thisFile))
}

// Compile builds one .z file into a native executable. Compiler errors come
// back as diagnostics with an empty path; infrastructure failures come back
// as err.
func Compile(path string, opts Options) (string, *compiler.Diagnostics, error) {
	opts.fill(path)

	source, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), ".z")
	buildID := uuid.NewString()
	cfg := compiler.Config{ComptimeDepth: opts.ComptimeDepth, Workers: opts.Workers}
	hash := SourceHash(string(source), compiler.RuntimeABI, cfg)
	log.Infof("build %s: %s (%s)", buildID, path, hash[:12])

	var cache *Cache
	if !opts.NoCache {
		cache, err = OpenCache(opts.CachePath)
		if err != nil {
			// A broken cache never blocks a build.
			log.Warningf("build %s: cache unavailable: %v", buildID, err)
		} else {
			defer cache.Close()
		}
	}
	if cache != nil {
		hit, err := cache.Get(hash)
		if err != nil {
			log.Warningf("build %s: cache read failed: %v", buildID, err)
		} else if hit != nil && len(hit.Exe) > 0 {
			log.Infof("build %s: cache hit from build %s", buildID, hit.BuildID)
			if err := os.WriteFile(opts.Output, hit.Exe, 0755); err != nil {
				return "", nil, fmt.Errorf("writing cached executable: %w", err)
			}
			return opts.Output, &compiler.Diagnostics{}, nil
		}
	}

	unit := compiler.CompileSourceWith(name, string(source), cfg)
	if unit.Diags.HasErrors() {
		return "", unit.Diags, nil
	}

	exe, err := runToolchain(unit.GoSource, opts)
	if err != nil {
		return "", unit.Diags, err
	}

	if cache != nil {
		record := &CachedUnit{
			Name:     name,
			GoSource: unit.GoSource,
			Exe:      exe,
			BuildID:  buildID,
			Created:  time.Now().Unix(),
		}
		if err := cache.Put(hash, record); err != nil {
			log.Warningf("build %s: cache write failed: %v", buildID, err)
		}
	}
	log.Infof("build %s: wrote %s", buildID, opts.Output)
	return opts.Output, unit.Diags, nil
}

// runToolchain compiles generated Go source in a throwaway module wired to
// the runtime by a replace directive, then returns the executable bytes.
func runToolchain(goSource string, opts Options) ([]byte, error) {
	dir, err := os.MkdirTemp("", "zc-build-*")
	if err != nil {
		return nil, fmt.Errorf("creating build directory: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte(goSource), 0644); err != nil {
		return nil, fmt.Errorf("writing generated source: %w", err)
	}
	rtDir, err := filepath.Abs(opts.RuntimeDir)
	if err != nil {
		return nil, fmt.Errorf("resolving runtime directory: %w", err)
	}
	gomod := fmt.Sprintf(`module zprog

go 1.25

require github.com/z-lang/zc v0.0.0

replace github.com/z-lang/zc => %s
`, rtDir)
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte(gomod), 0644); err != nil {
		return nil, fmt.Errorf("writing module file: %w", err)
	}

	out, err := filepath.Abs(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("resolving output path: %w", err)
	}
	cmd := exec.Command(opts.Toolchain, "build", "-o", out, ".")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GOFLAGS=-mod=mod")
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("toolchain failed: %w\n%s", err, output)
	}
	exe, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("reading executable: %w", err)
	}
	return exe, nil
}

// Run compiles a .z file and executes it, passing the program's exit code
// through.
func Run(path string, opts Options) (int, *compiler.Diagnostics, error) {
	exe, diags, err := Compile(path, opts)
	if err != nil || (diags != nil && diags.HasErrors()) {
		return 1, diags, err
	}
	abs, err := filepath.Abs(exe)
	if err != nil {
		return 1, diags, fmt.Errorf("resolving executable: %w", err)
	}

	cmd := exec.Command(abs)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), diags, nil
		}
		return 1, diags, fmt.Errorf("running %s: %w", abs, err)
	}
	return 0, diags, nil
}
