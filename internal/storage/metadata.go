package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"ledgerdb/internal/codec"
)

// ColumnDef is the persisted shape of one column: its wire type plus the
// schema invariants the table engine enforces (nullability, primary-key
// and auto-increment status).
type ColumnDef struct {
	Name          string           `json:"name"`
	Type          codec.ColumnType `json:"type"`
	Nullable      bool             `json:"nullable"`
	PrimaryKey    bool             `json:"primaryKey"`
	AutoIncrement bool             `json:"autoIncrement"`
}

// TableMetadata is the JSON sidecar persisted per table: its schema plus
// the bookkeeping the table engine needs to append new rows and assign
// identifiers without rescanning the chunk files.
type TableMetadata struct {
	TableName          string           `json:"tableName"`
	Columns            []ColumnDef      `json:"columns"`
	TotalRows          int64            `json:"totalRows"`
	NextRowID          int64            `json:"nextRowId"`
	HasPrimaryKey      bool             `json:"hasPrimaryKey"`
	PrimaryKeyName     string           `json:"primaryKeyColumn,omitempty"`
	AutoIncrement      map[string]int64 `json:"autoIncrement,omitempty"`
	ChunkSize          int64            `json:"chunkSize"`
	CreatedAt          time.Time        `json:"createdAt"`
	LastModifiedAt     time.Time        `json:"lastModifiedAt"`
	EstimatedSizeBytes int64            `json:"estimatedSizeBytes"`
}

// HasRowIDColumn reports whether rows of this table carry the hidden
// __row_id field: exactly the tables declared without a primary key.
func (m TableMetadata) HasRowIDColumn() bool { return !m.HasPrimaryKey }

// NextAutoIncrement returns the next value for auto-increment column col,
// treating an absent entry as the initial counter value 1.
func (m TableMetadata) NextAutoIncrement(col string) int64 {
	if n, ok := m.AutoIncrement[col]; ok {
		return n
	}
	return 1
}

// Fields projects the column defs into the codec's declared-order field
// list used to encode/decode rows. When the table has no declared primary
// key, the hidden __row_id column is appended so every row frame carries
// its synthetic identifier.
func (m TableMetadata) Fields() []codec.Field {
	fs := make([]codec.Field, 0, len(m.Columns)+1)
	for _, c := range m.Columns {
		fs = append(fs, codec.Field{Name: c.Name, Type: c.Type})
	}
	if m.HasRowIDColumn() {
		fs = append(fs, codec.Field{Name: RowIDColumn, Type: codec.TypeLong})
	}
	return fs
}

// RowIDColumn is the hidden synthetic key assigned to tables declared
// without an explicit primary key.
const RowIDColumn = "__row_id"

// PrimaryKeyColumn returns the declared primary key column name, or
// RowIDColumn when the table has none.
func (m TableMetadata) PrimaryKeyColumn() string {
	if m.HasPrimaryKey {
		return m.PrimaryKeyName
	}
	return RowIDColumn
}

// ChunkIndexForRow returns which chunk a row at the given zero-based
// ordinal position (i.e. the current TotalRows before the row is
// appended) belongs in.
func (m TableMetadata) ChunkIndexForRow(ordinal int64) int64 {
	if m.ChunkSize <= 0 {
		return 0
	}
	return ordinal / m.ChunkSize
}

// MetaStore persists TableMetadata as indented JSON sidecars, written
// atomically via a temp file in the same directory followed by rename, so
// a crash mid-write never leaves a half-written sidecar in place.
type MetaStore struct {
	layout Layout
}

func NewMetaStore(layout Layout) *MetaStore {
	return &MetaStore{layout: layout}
}

// Load reads a table's metadata sidecar.
func (s *MetaStore) Load(db, table string) (*TableMetadata, error) {
	path := s.layout.MetaPath(db, table)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m TableMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("metadata %s: %w", path, err)
	}
	return &m, nil
}

// Save writes a table's metadata sidecar atomically.
func (s *MetaStore) Save(db string, m *TableMetadata) error {
	if err := s.layout.EnsureDatabaseDirs(db); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	path := s.layout.MetaPath(db, m.TableName)
	return atomicWriteFile(filepath.Dir(path), path, data)
}

// atomicWriteFile writes data to a uuid-named temp file inside dir, then
// renames it into place at finalPath, so readers never observe a partial
// write.
func atomicWriteFile(dir, finalPath string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmpPath := filepath.Join(dir, fmt.Sprintf(".tmp-%s", uuid.NewString()))
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// equalSchema reports whether two column slices describe the same schema,
// column by column and in order.
func equalSchema(a, b []ColumnDef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
