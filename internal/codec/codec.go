// Package codec implements the self-describing binary row grammar: a row is
// a concatenation of typed fields in declared column order, terminated by a
// single 0xFF separator byte. See the storage package for how rows are
// framed into chunk files; this package only knows about the byte grammar
// itself, not about chunks, directories, or metadata.
package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"ledgerdb/internal/value"
)

// Marker identifies the wire type of an encoded field.
type Marker byte

const (
	MarkerNull     Marker = 0x00
	MarkerText     Marker = 0x01
	MarkerInteger  Marker = 0x02
	MarkerLong     Marker = 0x03
	MarkerReal     Marker = 0x04
	MarkerDateTime Marker = 0x05
	MarkerDecimal  Marker = 0x06

	// Separator terminates every encoded row.
	Separator byte = 0xFF
)

// ColumnType is the declared wire type of a column, independent of
// nullability or key-ness (those live in the table package's schema).
type ColumnType int

const (
	TypeInteger ColumnType = iota
	TypeLong
	TypeText
	TypeReal
	TypeDateTime
	TypeDecimal
)

func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeLong:
		return "LONG"
	case TypeText:
		return "TEXT"
	case TypeReal:
		return "REAL"
	case TypeDateTime:
		return "DATETIME"
	case TypeDecimal:
		return "DECIMAL"
	default:
		return "UNKNOWN"
	}
}

// marker returns the wire marker a non-null value of this column type must
// carry.
func (t ColumnType) marker() Marker {
	switch t {
	case TypeInteger:
		return MarkerInteger
	case TypeLong:
		return MarkerLong
	case TypeText:
		return MarkerText
	case TypeReal:
		return MarkerReal
	case TypeDateTime:
		return MarkerDateTime
	case TypeDecimal:
		return MarkerDecimal
	}
	return MarkerNull
}

// Field describes one column's position in the row grammar: its name (for
// building the returned row map) and its declared wire type.
type Field struct {
	Name string
	Type ColumnType
}

var (
	// ErrTypeMismatch is returned when a decoded marker disagrees with the
	// field's declared column type.
	ErrTypeMismatch = errors.New("codec: marker does not match declared column type")
	// ErrCorrupt signals that row framing broke down (unrecognized marker,
	// or a missing/garbled row separator) at a position where bytes were
	// actually available — i.e. not a clean end-of-chunk EOF. Callers
	// should resynchronize before continuing.
	ErrCorrupt = errors.New("codec: row framing corrupt")
)

// EncodeRow serializes one row, given in declared column order, into its
// framed byte form (fields followed by the 0xFF separator).
func EncodeRow(fields []Field, row map[string]value.Value) ([]byte, error) {
	var buf []byte
	for _, f := range fields {
		v := row[f.Name]
		enc, err := EncodeField(f.Type, v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", f.Name, err)
		}
		buf = append(buf, enc...)
	}
	buf = append(buf, Separator)
	return buf, nil
}

// EncodeField serializes a single value per the column's declared type. A
// null value always encodes as the one-byte NULL marker regardless of the
// declared type.
func EncodeField(t ColumnType, v value.Value) ([]byte, error) {
	if v.IsNull() {
		return []byte{byte(MarkerNull)}, nil
	}
	switch t {
	case TypeInteger:
		buf := make([]byte, 5)
		buf[0] = byte(MarkerInteger)
		binary.LittleEndian.PutUint32(buf[1:], uint32(v.Integer))
		return buf, nil
	case TypeLong:
		buf := make([]byte, 9)
		buf[0] = byte(MarkerLong)
		binary.LittleEndian.PutUint64(buf[1:], uint64(v.Long))
		return buf, nil
	case TypeText:
		text := v.Text
		if len(text) > math.MaxUint32 {
			return nil, fmt.Errorf("text field too large: %d bytes", len(text))
		}
		buf := make([]byte, 5+len(text))
		buf[0] = byte(MarkerText)
		binary.LittleEndian.PutUint32(buf[1:5], uint32(len(text)))
		copy(buf[5:], text)
		return buf, nil
	case TypeReal:
		buf := make([]byte, 9)
		buf[0] = byte(MarkerReal)
		binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(v.Real))
		return buf, nil
	case TypeDateTime:
		buf := make([]byte, 9)
		buf[0] = byte(MarkerDateTime)
		binary.LittleEndian.PutUint64(buf[1:], uint64(v.DateTime))
		return buf, nil
	case TypeDecimal:
		enc, err := v.Decimal.Encode()
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 17)
		buf[0] = byte(MarkerDecimal)
		copy(buf[1:], enc[:])
		return buf, nil
	default:
		return nil, fmt.Errorf("unknown column type %v", t)
	}
}

// byteReader is the minimal interface RowReader needs; bufio.Reader
// satisfies it.
type byteReader interface {
	io.Reader
	ReadByte() (byte, error)
}

// RowReader decodes a stream of framed rows from a chunk file, in the
// order described in the grammar, tolerating trailing partial rows at EOF
// and resynchronizing past corrupted rows.
type RowReader struct {
	r         *bufio.Reader
	fields    []Field
	corrupted int
}

// NewRowReader wraps r with buffered decoding for the given declared
// column order.
func NewRowReader(r io.Reader, fields []Field) *RowReader {
	return &RowReader{r: bufio.NewReaderSize(r, 64*1024), fields: fields}
}

// Corrupted returns the number of rows skipped so far due to resync.
func (rr *RowReader) Corrupted() int { return rr.corrupted }

// Next decodes the next row. It returns io.EOF (with no row) once the
// stream cleanly ends, including when the last row is truncated mid-field
// by a short file — that is tolerated, not an error. Structural corruption
// (an unrecognized marker, or a separator byte that isn't 0xFF) is
// resynchronized past automatically: Next will keep scanning forward for
// the next 0xFF and retry, only returning io.EOF when the underlying
// reader is actually exhausted. A recognized marker that disagrees with
// the field's declared column type is returned as ErrTypeMismatch.
func (rr *RowReader) Next() (map[string]value.Value, error) {
	for {
		row, err := rr.decodeOnce()
		switch {
		case err == nil:
			return row, nil
		case errors.Is(err, io.EOF):
			return nil, io.EOF
		case errors.Is(err, ErrCorrupt):
			rr.corrupted++
			if resyncErr := rr.resync(); resyncErr != nil {
				return nil, resyncErr
			}
			continue
		default:
			return nil, err
		}
	}
}

// decodeOnce attempts to decode exactly one row starting at the reader's
// current position. Any shortage of bytes is reported as io.EOF (clean
// stream end); any well-formed-but-wrong-shaped byte is ErrCorrupt.
func (rr *RowReader) decodeOnce() (map[string]value.Value, error) {
	row := make(map[string]value.Value, len(rr.fields))
	for _, f := range rr.fields {
		v, err := rr.decodeField(f)
		if err != nil {
			return nil, err
		}
		row[f.Name] = v
	}
	term, err := rr.r.ReadByte()
	if err != nil {
		// A short read of the separator itself is a truncated trailing
		// row: tolerate it silently.
		return nil, io.EOF
	}
	if term != Separator {
		return nil, ErrCorrupt
	}
	return row, nil
}

func (rr *RowReader) decodeField(f Field) (value.Value, error) {
	markerByte, err := rr.r.ReadByte()
	if err != nil {
		return value.Value{}, io.EOF
	}
	marker := Marker(markerByte)
	if marker == MarkerNull {
		return value.Null, nil
	}
	if marker != f.Type.marker() {
		// An unrecognized marker is structural corruption (bytes exist,
		// since ReadByte above succeeded); a recognized marker that
		// disagrees with the declared column type is a type mismatch.
		if !validMarker(marker) {
			return value.Value{}, ErrCorrupt
		}
		return value.Value{}, fmt.Errorf("%w: column type %v got marker 0x%02x", ErrTypeMismatch, f.Type, marker)
	}
	switch marker {
	case MarkerInteger:
		buf, err := readFull(rr.r, 4)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewInteger(int32(binary.LittleEndian.Uint32(buf))), nil
	case MarkerLong:
		buf, err := readFull(rr.r, 8)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewLong(int64(binary.LittleEndian.Uint64(buf))), nil
	case MarkerText:
		lenBuf, err := readFull(rr.r, 4)
		if err != nil {
			return value.Value{}, err
		}
		l := binary.LittleEndian.Uint32(lenBuf)
		if l > 64*1024*1024 {
			// Implausible length: almost certainly corruption, not a
			// genuine multi-hundred-megabyte text field.
			return value.Value{}, ErrCorrupt
		}
		text, err := readFull(rr.r, int(l))
		if err != nil {
			return value.Value{}, err
		}
		return value.NewText(string(text)), nil
	case MarkerReal:
		buf, err := readFull(rr.r, 8)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewReal(math.Float64frombits(binary.LittleEndian.Uint64(buf))), nil
	case MarkerDateTime:
		buf, err := readFull(rr.r, 8)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewDateTime(value.Ticks(int64(binary.LittleEndian.Uint64(buf)))), nil
	case MarkerDecimal:
		buf, err := readFull(rr.r, 16)
		if err != nil {
			return value.Value{}, err
		}
		var arr [16]byte
		copy(arr[:], buf)
		return value.NewDecimal(value.DecodeDecimal(arr)), nil
	default:
		return value.Value{}, ErrCorrupt
	}
}

func validMarker(m Marker) bool {
	switch m {
	case MarkerNull, MarkerText, MarkerInteger, MarkerLong, MarkerReal, MarkerDateTime, MarkerDecimal:
		return true
	default:
		return false
	}
}

// readFull reads exactly n bytes, translating any shortage (EOF or
// unexpected EOF) into io.EOF so callers treat it as a clean truncated
// trailing row rather than as corruption.
func readFull(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, io.EOF
	}
	return buf, nil
}

// resync scans forward byte-by-byte until it consumes a 0xFF separator (or
// the stream ends), so the next decodeOnce call starts at a row boundary.
func (rr *RowReader) resync() error {
	for {
		b, err := rr.r.ReadByte()
		if err != nil {
			return io.EOF
		}
		if b == Separator {
			return nil
		}
	}
}
