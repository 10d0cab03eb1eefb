package build

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	_ "modernc.org/sqlite"

	"github.com/z-lang/zc/compiler"
)

// ---------------------------------------------------------------------------
// Build cache
// ---------------------------------------------------------------------------

// cborEncMode is canonical so identical records encode to identical bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("build: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// CachedUnit is one compiled source file, keyed by its content hash.
type CachedUnit struct {
	Name     string `cbor:"name"`
	GoSource string `cbor:"go-source"`
	Exe      []byte `cbor:"exe"`
	BuildID  string `cbor:"build-id"`
	Created  int64  `cbor:"created"`
}

// Cache stores compiled units so unchanged sources skip the front end and
// the external toolchain.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (or creates) a cache database at path.
func OpenCache(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS units (
		hash TEXT PRIMARY KEY,
		data BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating units table: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns the cached unit for a source hash, or nil when absent.
func (c *Cache) Get(hash string) (*CachedUnit, error) {
	var data []byte
	err := c.db.QueryRow("SELECT data FROM units WHERE hash = ?", hash).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache row: %w", err)
	}
	var u CachedUnit
	if err := cbor.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decoding cache row: %w", err)
	}
	return &u, nil
}

// Put stores a compiled unit under its source hash, replacing any previous
// record.
func (c *Cache) Put(hash string, u *CachedUnit) error {
	data, err := cborEncMode.Marshal(u)
	if err != nil {
		return fmt.Errorf("encoding cache row: %w", err)
	}
	if _, err := c.db.Exec(
		"INSERT OR REPLACE INTO units (hash, data) VALUES (?, ?)", hash, data); err != nil {
		return fmt.Errorf("writing cache row: %w", err)
	}
	return nil
}

// SourceHash fingerprints a source text together with the compiler ABI and
// the pipeline config, so a runtime surface or manifest change invalidates
// old rows.
func SourceHash(source string, abi int, cfg compiler.Config) string {
	h := sha256.New()
	fmt.Fprintf(h, "zc-abi-%d-d%d-w%d\n", abi, cfg.ComptimeDepth, cfg.Workers)
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))
}
