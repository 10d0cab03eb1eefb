// Package manifest handles z.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a z.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Build   BuildConfig `toml:"build"`
	Runtime Runtime     `toml:"runtime"`

	// Dir is the directory containing the z.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Entry   string `toml:"entry"`
}

// BuildConfig configures the pipeline.
type BuildConfig struct {
	Output        string `toml:"output"`
	Toolchain     string `toml:"toolchain"`
	CacheDir      string `toml:"cache-dir"`
	NoCache       bool   `toml:"no-cache"`
	ComptimeDepth int    `toml:"comptime-depth"`
}

// Runtime configures the linked support library.
type Runtime struct {
	Workers int `toml:"workers"`
}

// Load parses a z.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "z.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Project.Entry == "" {
		m.Project.Entry = "main.z"
	}
	if m.Build.Toolchain == "" {
		m.Build.Toolchain = "go"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a z.toml file, then loads and
// returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "z.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// EntryPath returns the absolute path of the entry source file.
func (m *Manifest) EntryPath() string {
	return filepath.Join(m.Dir, m.Project.Entry)
}

// CachePath returns the build cache location, defaulting to .z/cache.db
// beside the manifest.
func (m *Manifest) CachePath() string {
	if m.Build.CacheDir != "" {
		return filepath.Join(m.Dir, m.Build.CacheDir, "cache.db")
	}
	return filepath.Join(m.Dir, ".z", "cache.db")
}
