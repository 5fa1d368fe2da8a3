package sqlexec

import (
	"errors"
	"fmt"

	"ledgerdb/internal/sqlparse"
	"ledgerdb/internal/storage"
	"ledgerdb/internal/table"
)

// ErrorKind is the closed taxonomy of surfaced error categories; the
// executor is the single place that converts internal sentinel errors
// into one of these before populating SqlResult.ErrorMessage.
type ErrorKind string

const (
	KindParseError          ErrorKind = "ParseError"
	KindSchemaError         ErrorKind = "SchemaError"
	KindConstraintViolation ErrorKind = "ConstraintViolation"
	KindTypeMismatch        ErrorKind = "TypeMismatch"
	KindStorageError        ErrorKind = "StorageError"
	KindArgumentError       ErrorKind = "ArgumentError"
	KindNotSupported        ErrorKind = "NotSupported"
)

func formatError(kind ErrorKind, err error) string {
	return fmt.Sprintf("%s: %v", kind, err)
}

// classify maps an internal error to the error kind the executor should
// surface it as. Errors that don't match a known sentinel fall back to
// StorageError, since by this point in the pipeline a raw error almost
// always originated from the filesystem layer.
func classify(err error) ErrorKind {
	var parseErr *sqlparse.ParseError
	switch {
	case errors.As(err, &parseErr):
		return KindParseError
	case errors.Is(err, table.ErrTableExists),
		errors.Is(err, table.ErrTableNotFound),
		errors.Is(err, table.ErrInvalidSchema),
		errors.Is(err, table.ErrUnknownColumn):
		return KindSchemaError
	case errors.Is(err, table.ErrNullPrimaryKey):
		return KindConstraintViolation
	case errors.Is(err, table.ErrNotNullViolation):
		return KindConstraintViolation
	case errors.Is(err, table.ErrTypeMismatch):
		return KindTypeMismatch
	case errors.Is(err, storage.ErrChunkNotFound):
		return KindStorageError
	default:
		return KindStorageError
	}
}
