// Package storage implements the on-disk layout and the binary chunk I/O
// that back every table: database/table directories, the per-table JSON
// metadata sidecar, framed row append/read via the codec package, and the
// single-pass batch rewriter that fuses update/delete/filter over chunk
// files. See internal/table for the layer that turns this into schema-
// aware operations.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	metadataDirName = "metadata"
	tablesDirName   = "tables"
	chunkDigits     = 6
)

// Layout resolves the filesystem paths for a base directory rooted store.
// It owns no state beyond the root path: every method is a pure path
// computation, matching the Storage Manager's role as the sole owner of
// the filesystem subtree.
type Layout struct {
	BaseDir string
}

func NewLayout(baseDir string) Layout {
	return Layout{BaseDir: baseDir}
}

func (l Layout) DatabaseDir(db string) string {
	return filepath.Join(l.BaseDir, db)
}

func (l Layout) MetadataDir(db string) string {
	return filepath.Join(l.DatabaseDir(db), metadataDirName)
}

func (l Layout) TablesDir(db string) string {
	return filepath.Join(l.DatabaseDir(db), tablesDirName)
}

func (l Layout) MetaPath(db, table string) string {
	return filepath.Join(l.MetadataDir(db), table+"_meta.json")
}

// ChunkPath returns the path of chunk index idx for table, without regard
// to whether it's stored plain or zstd-compressed on disk.
func (l Layout) ChunkPath(db, table string, idx int64) string {
	return filepath.Join(l.TablesDir(db), fmt.Sprintf("%s_data_%0*d.bin", table, chunkDigits, idx))
}

// ChunkGlob returns the doublestar pattern matching every chunk file
// belonging to table (plain or .zst), used by ListTables-adjacent
// bookkeeping and by DropTable to find every file to remove.
func (l Layout) ChunkGlob(db, table string) string {
	return filepath.Join(l.TablesDir(db), fmt.Sprintf("%s_data_*.bin*", table))
}

// EnsureDatabaseDirs creates the metadata/ and tables/ subdirectories for
// db if they don't already exist.
func (l Layout) EnsureDatabaseDirs(db string) error {
	if err := os.MkdirAll(l.MetadataDir(db), 0o755); err != nil {
		return err
	}
	return os.MkdirAll(l.TablesDir(db), 0o755)
}

// ListDatabases derives the set of databases from subdirectories of the
// base directory. The default database is not special-cased here; the
// engine is responsible for ensuring it exists at boot.
func (l Layout) ListDatabases() ([]string, error) {
	entries, err := os.ReadDir(l.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// ListTables derives the set of tables in db from the stems of its
// metadata files.
func (l Layout) ListTables(db string) ([]string, error) {
	entries, err := os.ReadDir(l.MetadataDir(db))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, "_meta.json") {
			out = append(out, strings.TrimSuffix(name, "_meta.json"))
		}
	}
	sort.Strings(out)
	return out, nil
}

// ChunkFiles returns every on-disk file (plain or compressed) belonging to
// table, matched via a doublestar glob over the tables directory.
func (l Layout) ChunkFiles(db, table string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(l.ChunkGlob(db, table))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// ChunkIndices returns the sorted, deduplicated set of chunk indices that
// currently have on-disk files for table.
func (l Layout) ChunkIndices(db, table string) ([]int64, error) {
	files, err := l.ChunkFiles(db, table)
	if err != nil {
		return nil, err
	}
	seen := map[int64]bool{}
	var out []int64
	prefix := table + "_data_"
	for _, f := range files {
		base := filepath.Base(f)
		base = strings.TrimPrefix(base, prefix)
		base = strings.TrimSuffix(base, ".zst")
		base = strings.TrimSuffix(base, ".bin")
		n, err := strconv.ParseInt(base, 10, 64)
		if err != nil {
			continue
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// CreateDatabase creates the directory subtree for a new database.
func (l Layout) CreateDatabase(db string) error {
	return l.EnsureDatabaseDirs(db)
}

// DeleteDatabase removes a database's entire directory subtree.
func (l Layout) DeleteDatabase(db string) error {
	return os.RemoveAll(l.DatabaseDir(db))
}

// DropTable removes a table's metadata file and every chunk file matching
// its prefix.
func (l Layout) DropTable(db, table string) error {
	if err := os.Remove(l.MetaPath(db, table)); err != nil && !os.IsNotExist(err) {
		return err
	}
	files, err := l.ChunkFiles(db, table)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
