package indexedcoll

import (
	"context"
	"fmt"
	"log/slog"
)

// Store is a sorted wide-column store: tables hold rows, rows hold columns
// sorted bytewise by name. Every cell remembers the timestamp it was written
// at, and a put or delete older than the stored cell is ignored.
//
// Implementations must be safe for concurrent use. Batches are not
// transactions: a failed Commit may have applied part of the batch, in which
// case the error matches ErrPartialBatchFailure.
type Store interface {
	Put(ctx context.Context, table, row string, column, value []byte, ts int64) error
	Delete(ctx context.Context, table, row string, column []byte, ts int64) error
	NewBatch() Batch

	// Scan returns up to limit columns of the row within rang, in rang's
	// direction. limit <= 0 means no limit.
	Scan(ctx context.Context, table, row string, rang ColumnRange, limit int) ([]Column, error)

	Close() error
}

// Batch collects mutations to apply together.
//
// Delete leaves a tombstone so that a delayed older put cannot bring the
// column back. Purge removes the column outright; it is for columns whose name
// is never written twice, such as names carrying a version stamp ID. Both are
// ignored when the stored cell is newer than the commit timestamp.
type Batch interface {
	Put(table, row string, column, value []byte)
	Delete(table, row string, column []byte)
	Purge(table, row string, column []byte)
	Len() int
	// Commit applies every collected mutation at timestamp ts.
	Commit(ctx context.Context, ts int64) error
}

// Column is one cell returned by Store.Scan.
type Column struct {
	Name  []byte
	Value []byte
	Time  int64
}

type mutationOp byte

const (
	opPut    mutationOp = 'P'
	opDelete mutationOp = 'D'
	opPurge  mutationOp = 'X'
)

type mutation struct {
	Op     mutationOp
	Table  string
	Row    string
	Column []byte
	Value  []byte
}

func (m mutation) String() string {
	switch m.Op {
	case opPut:
		return fmt.Sprintf("PUT %s/%s %s = %s", m.Table, m.Row, hexstr(m.Column), hexstr(m.Value))
	case opPurge:
		return fmt.Sprintf("PURGE %s/%s %s", m.Table, m.Row, hexstr(m.Column))
	default:
		return fmt.Sprintf("DELETE %s/%s %s", m.Table, m.Row, hexstr(m.Column))
	}
}

// opBatch is the Batch of every built-in backend; commit does the actual
// work.
type opBatch struct {
	ops    []mutation
	commit func(ctx context.Context, ops []mutation, ts int64) error
}

func (b *opBatch) Put(table, row string, column, value []byte) {
	if value == nil {
		value = []byte{}
	}
	b.ops = append(b.ops, mutation{opPut, table, row, column, value})
}

func (b *opBatch) Delete(table, row string, column []byte) {
	b.ops = append(b.ops, mutation{opDelete, table, row, column, nil})
}

func (b *opBatch) Purge(table, row string, column []byte) {
	b.ops = append(b.ops, mutation{opPurge, table, row, column, nil})
}

func (b *opBatch) Len() int {
	return len(b.ops)
}

func (b *opBatch) Commit(ctx context.Context, ts int64) error {
	if len(b.ops) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return storeErrf("commit", "", "", ErrStoreUnavailable, err)
	}
	return b.commit(ctx, b.ops, ts)
}

func putOne(ctx context.Context, s Store, table, row string, column, value []byte, ts int64) error {
	b := s.NewBatch()
	b.Put(table, row, column, value)
	return b.Commit(ctx, ts)
}

func deleteOne(ctx context.Context, s Store, table, row string, column []byte, ts int64) error {
	b := s.NewBatch()
	b.Delete(table, row, column)
	return b.Commit(ctx, ts)
}

// scanCursor collects columns from a row cursor, decoding cells.
func scanCursor(rang ColumnRange, bcur storageCursor, limit int, copyOut bool, table, row string) ([]Column, error) {
	var result []Column
	cur := rang.newCursor(bcur, slog.Default())
	for cur.Next() {
		c, err := decodeCell(cur.Value())
		if err != nil {
			return nil, fmt.Errorf("%s/%s %s: %w", table, row, hexstr(cur.Key()), err)
		}
		if c.IsTombstone() {
			continue
		}
		name, payload := cur.Key(), c.Payload
		if copyOut {
			name = append([]byte(nil), name...)
			payload = append([]byte(nil), payload...)
		}
		result = append(result, Column{Name: name, Value: payload, Time: c.Time})
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}
