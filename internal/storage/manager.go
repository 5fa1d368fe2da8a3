package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"ledgerdb/internal/codec"
	"ledgerdb/internal/logging"
	"ledgerdb/internal/value"
)

// ErrChunkNotFound is returned when a requested chunk has no on-disk file,
// plain or compressed.
var ErrChunkNotFound = errors.New("storage: chunk file not found")

// Manager owns chunk file I/O and directory lifecycle, but holds no
// metadata state of its own: the table engine is the sole owner of
// TableMetadata between flushes, and calls back into Manager/MetaStore
// to persist it.
type Manager struct {
	Layout Layout
	Meta   *MetaStore
	log    *slog.Logger
}

func NewManager(baseDir string, logger *slog.Logger) *Manager {
	logger = logging.Default(logger)
	layout := NewLayout(baseDir)
	return &Manager{
		Layout: layout,
		Meta:   NewMetaStore(layout),
		log:    logger,
	}
}

func (m *Manager) CreateDatabase(db string) error         { return m.Layout.CreateDatabase(db) }
func (m *Manager) DeleteDatabase(db string) error         { return m.Layout.DeleteDatabase(db) }
func (m *Manager) ListDatabases() ([]string, error)       { return m.Layout.ListDatabases() }
func (m *Manager) ListTables(db string) ([]string, error) { return m.Layout.ListTables(db) }
func (m *Manager) DropTable(db, table string) error {
	m.log.Info("dropping table", "database", db, "table", table)
	return m.Layout.DropTable(db, table)
}

// openChunkForRead opens a chunk file for reading, transparently
// decompressing it if it was sealed with zstd. Returns ErrChunkNotFound
// if neither the plain nor compressed form exists.
func (m *Manager) openChunkForRead(db, table string, idx int64) (io.ReadCloser, error) {
	plain := m.Layout.ChunkPath(db, table, idx)
	if f, err := os.Open(plain); err == nil {
		return f, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	compressed := plain + ".zst"
	f, err := os.Open(compressed)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrChunkNotFound
		}
		return nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &zstdReadCloser{dec: dec, f: f}, nil
}

type zstdReadCloser struct {
	dec *zstd.Decoder
	f   *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.dec.Read(p) }
func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.f.Close()
}

// AppendRow encodes and appends one row to the chunk selected by ordinal
// (the table's TotalRows value before this append), opening the chunk
// file in append mode and flushing before returning so the row is durable
// once AppendRow returns successfully. It returns the number of bytes the
// framed row occupies on disk, for the caller's size accounting.
func (m *Manager) AppendRow(db, table string, chunkSize int64, ordinal int64, fields []codec.Field, row map[string]value.Value) (int64, error) {
	if err := m.Layout.EnsureDatabaseDirs(db); err != nil {
		return 0, err
	}
	idx := TableMetadata{ChunkSize: chunkSize}.ChunkIndexForRow(ordinal)
	path := m.Layout.ChunkPath(db, table, idx)
	if _, err := os.Stat(path); err != nil && os.IsNotExist(err) {
		if _, zerr := os.Stat(path + ".zst"); zerr == nil {
			return 0, fmt.Errorf("storage: active chunk %s is sealed (compressed); cannot append", path)
		}
	}
	enc, err := codec.EncodeRow(fields, row)
	if err != nil {
		return 0, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if _, err := f.Write(enc); err != nil {
		return 0, err
	}
	if err := f.Sync(); err != nil {
		return 0, err
	}
	return int64(len(enc)), nil
}

// Cursor streams decoded rows across every chunk of a table, in chunk
// order then insertion order within each chunk — i.e. append order, which
// is the table's natural row order.
type Cursor struct {
	m          *Manager
	db         string
	table      string
	fields     []codec.Field
	indices    []int64
	pos        int
	skipInNext int64
	cur        io.ReadCloser
	rr         *codec.RowReader
	corrupt    int
}

// OpenCursor returns a Cursor over every existing chunk of table, in
// ascending chunk-index order.
func (m *Manager) OpenCursor(db, table string, fields []codec.Field) (*Cursor, error) {
	return m.OpenCursorAt(db, table, fields, 0, 0)
}

// OpenCursorAt returns a Cursor positioned skip rows into the table.
// When chunkSize is positive, the first relevant chunk index is computed
// as skip/chunkSize and earlier chunks are never opened; the remaining
// skip%chunkSize rows are discarded while decoding the first chunk. The
// arithmetic assumes chunks still hold their append-time row counts, so
// callers stream from the start after deletes have contracted chunks.
func (m *Manager) OpenCursorAt(db, table string, fields []codec.Field, chunkSize, skip int64) (*Cursor, error) {
	indices, err := m.Layout.ChunkIndices(db, table)
	if err != nil {
		return nil, err
	}
	c := &Cursor{m: m, db: db, table: table, fields: fields, indices: indices}
	if skip > 0 && chunkSize > 0 {
		first := skip / chunkSize
		c.skipInNext = skip % chunkSize
		for c.pos < len(c.indices) && c.indices[c.pos] < first {
			c.pos++
		}
	} else if skip > 0 {
		c.skipInNext = skip
	}
	return c, nil
}

// Next returns the next row, or io.EOF once every chunk is exhausted.
func (c *Cursor) Next() (map[string]value.Value, error) {
	for {
		if c.rr == nil {
			if c.pos >= len(c.indices) {
				return nil, io.EOF
			}
			idx := c.indices[c.pos]
			rc, err := c.m.openChunkForRead(c.db, c.table, idx)
			if err != nil {
				if errors.Is(err, ErrChunkNotFound) {
					c.pos++
					continue
				}
				return nil, err
			}
			c.cur = rc
			c.rr = codec.NewRowReader(rc, c.fields)
		}
		row, err := c.rr.Next()
		if err == nil {
			if c.skipInNext > 0 {
				c.skipInNext--
				continue
			}
			return row, nil
		}
		if errors.Is(err, io.EOF) {
			c.corrupt += c.rr.Corrupted()
			c.cur.Close()
			c.cur = nil
			c.rr = nil
			c.pos++
			continue
		}
		return nil, err
	}
}

// Corrupted returns the total number of rows skipped via resync across
// every chunk visited so far.
func (c *Cursor) Corrupted() int { return c.corrupt }

// Close releases the currently open chunk file handle, if any. A fully
// drained cursor (Next returned io.EOF) has already released it.
func (c *Cursor) Close() error {
	if c.cur != nil {
		err := c.cur.Close()
		c.cur = nil
		return err
	}
	return nil
}

// RewriteFunc decides the fate of one row during a batch rewrite: return
// (nil, false) to drop the row, or (replacement, true) to keep it — either
// unchanged or transformed. It is called exactly once per row, in order.
type RewriteFunc func(row map[string]value.Value) (replacement map[string]value.Value, keep bool)

// RewriteResult reports what a batch rewrite did, so the table engine can
// update its in-memory metadata (TotalRows, size estimate) without
// rescanning.
type RewriteResult struct {
	RowsKept    int64
	RowsDropped int64
	BytesKept   int64
	Corrupted   int
}

// ProcessBatch performs the single-pass batch rewriter: each existing
// chunk, in order, is read, each row is passed through fn, and the kept
// rows are written to the chunk's own temp file; the chunk is never merged with or split across its
// neighbors. A chunk with at least one kept row is atomically replaced by
// its rewritten temp file; a chunk with none is deleted outright. A crash
// mid-rewrite leaves either the pre-rewrite or post-rewrite chunk at each
// path, and rows already finalized in one chunk are never duplicated into
// another, since chunk membership never moves.
func (m *Manager) ProcessBatch(db, table string, chunkSize int64, fields []codec.Field, fn RewriteFunc) (RewriteResult, error) {
	var result RewriteResult

	tablesDir := m.Layout.TablesDir(db)
	if err := os.MkdirAll(tablesDir, 0o755); err != nil {
		return result, err
	}

	indices, err := m.Layout.ChunkIndices(db, table)
	if err != nil {
		return result, err
	}

	for _, idx := range indices {
		rc, err := m.openChunkForRead(db, table, idx)
		if err != nil {
			if errors.Is(err, ErrChunkNotFound) {
				continue
			}
			return result, err
		}
		rr := codec.NewRowReader(rc, fields)

		tmpPath := filepath.Join(tablesDir, fmt.Sprintf(".tmp-%s", uuid.NewString()))
		tmpFile, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			rc.Close()
			return result, err
		}
		w := bufio.NewWriterSize(tmpFile, 1<<20)

		var keptInChunk int64
		for {
			row, err := rr.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rc.Close()
				tmpFile.Close()
				os.Remove(tmpPath)
				return result, err
			}
			replacement, keep := fn(row)
			if !keep {
				result.RowsDropped++
				continue
			}
			enc, err := codec.EncodeRow(fields, replacement)
			if err != nil {
				rc.Close()
				tmpFile.Close()
				os.Remove(tmpPath)
				return result, err
			}
			if _, err := w.Write(enc); err != nil {
				rc.Close()
				tmpFile.Close()
				os.Remove(tmpPath)
				return result, err
			}
			keptInChunk++
			result.RowsKept++
			result.BytesKept += int64(len(enc))
		}
		result.Corrupted += rr.Corrupted()
		rc.Close()

		finalPath := m.Layout.ChunkPath(db, table, idx)
		if keptInChunk == 0 {
			tmpFile.Close()
			os.Remove(tmpPath)
			os.Remove(finalPath)
			os.Remove(finalPath + ".zst")
			continue
		}
		if err := w.Flush(); err != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
			return result, err
		}
		if err := tmpFile.Sync(); err != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
			return result, err
		}
		if err := tmpFile.Close(); err != nil {
			os.Remove(tmpPath)
			return result, err
		}
		if err := os.Rename(tmpPath, finalPath); err != nil {
			os.Remove(tmpPath)
			return result, err
		}
		// The rewrite always produces a plain chunk; drop any stale
		// compressed sibling from before the rewrite.
		os.Remove(finalPath + ".zst")
	}
	return result, nil
}

// CompactChunk compresses a sealed chunk (one strictly below the table's
// current active chunk index, i.e. one that will never be appended to
// again) with zstd, replacing the plain .bin file with a .bin.zst sibling.
// Reads transparently decompress it afterwards; writers only ever target
// the active chunk, so this never races an append.
func (m *Manager) CompactChunk(db, table string, idx, activeChunkIdx int64) error {
	if idx >= activeChunkIdx {
		return fmt.Errorf("storage: chunk %d is not sealed (active chunk is %d)", idx, activeChunkIdx)
	}
	plain := m.Layout.ChunkPath(db, table, idx)
	src, err := os.Open(plain)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // already compacted, or never written
		}
		return err
	}
	defer src.Close()

	tmpPath := plain + ".zst.tmp"
	dst, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(dst)
	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return err
	}
	if _, err := io.Copy(enc, src); err != nil {
		enc.Close()
		dst.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := enc.Close(); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	finalPath := plain + ".zst"
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Remove(plain)
}
