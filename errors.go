package indexedcoll

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStoreUnavailable is the kind of every backend or I/O failure.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidValueEncoding is returned when a value cannot be classified
	// into a TypedValue. Nothing has been written when it is returned.
	ErrInvalidValueEncoding = errors.New("invalid value encoding")

	// ErrPartialBatchFailure means a batch commit failed after some of its
	// mutations were applied. The index may hold stale entries until the next
	// successful write of the same item attribute.
	ErrPartialBatchFailure = errors.New("partial batch failure")

	// ErrDecode is the kind of *DataError: corrupt or unexpected bytes read
	// back from the store.
	ErrDecode = errors.New("decode error")

	ErrEmptyKey     = errors.New("empty key")
	ErrInvalidQuery = errors.New("invalid query")
	ErrNilValue     = errors.New("nil value is not indexable")
	ErrClosed       = errors.New("store closed")
)

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Is(target error) bool {
	return target == ErrDecode
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

// StoreError describes a failed store operation. It matches both its Kind
// (ErrStoreUnavailable, ErrPartialBatchFailure, ErrClosed) and the underlying
// cause with errors.Is.
type StoreError struct {
	Op    string
	Table string
	Row   string
	Kind  error
	Err   error
}

func storeErrf(op, table, row string, kind, err error) error {
	return &StoreError{Op: op, Table: table, Row: row, Kind: kind, Err: err}
}

func (e *StoreError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *StoreError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Op)
	if e.Table != "" {
		buf.WriteByte(' ')
		buf.WriteString(e.Table)
		if e.Row != "" {
			buf.WriteByte('/')
			buf.WriteString(e.Row)
		}
	}
	if e.Kind != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// storeFailure wraps a backend error as ErrStoreUnavailable unless it
// already carries a kind.
func storeFailure(op, table, row string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return storeErrf(op, table, row, ErrStoreUnavailable, err)
}
