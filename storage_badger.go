package indexedcoll

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	InMemory   bool
	SyncWrites bool

	// Logger receives Badger's own log output. Nil disables it.
	Logger *slog.Logger
}

// BadgerStore maps (table, row, column) to the Badger key
// component(table) component(row) column, so a row is a contiguous key range
// and Badger's key order is column order within it.
//
// Large batches are split into several Badger transactions; if a later one
// fails, Commit returns ErrPartialBatchFailure.
type BadgerStore struct {
	db *badger.DB

	// Serializes commits so the last-write-wins check and the write happen
	// atomically.
	mu     sync.Mutex
	closed bool
}

var _ Store = (*BadgerStore)(nil)

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, storeErrf("open", "", "", ErrStoreUnavailable, errors.New("path is required for persistent database"))
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, storeErrf("open", "", "", ErrStoreUnavailable, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1).WithDetectConflicts(false)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, storeErrf("open", "", "", ErrStoreUnavailable, err)
	}
	return &BadgerStore{db: db}, nil
}

func badgerRowPrefix(table, row string) []byte {
	buf := appendComponent(nil, unsafeBytesFromString(table), EOCEqual)
	return appendComponent(buf, unsafeBytesFromString(row), EOCEqual)
}

func (s *BadgerStore) Put(ctx context.Context, table, row string, column, value []byte, ts int64) error {
	return putOne(ctx, s, table, row, column, value, ts)
}

func (s *BadgerStore) Delete(ctx context.Context, table, row string, column []byte, ts int64) error {
	return deleteOne(ctx, s, table, row, column, ts)
}

func (s *BadgerStore) NewBatch() Batch {
	return &opBatch{commit: s.commit}
}

func (s *BadgerStore) commit(ctx context.Context, ops []mutation, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storeErrf("commit", "", "", ErrClosed, nil)
	}

	txn := s.db.NewTransaction(true)
	defer func() {
		txn.Discard()
	}()

	var committed int
	fail := func(op *mutation, err error) error {
		if committed > 0 {
			return storeErrf("commit", op.Table, op.Row, ErrPartialBatchFailure, fmt.Errorf("%d of %d mutations applied: %w", committed, len(ops), err))
		}
		return storeFailure("commit", op.Table, op.Row, err)
	}

	var pending int
	for i := range ops {
		op := &ops[i]
		if err := ctx.Err(); err != nil {
			return fail(op, err)
		}
		err := s.apply(txn, op, ts)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return fail(op, err)
			}
			committed += pending
			pending = 0
			txn = s.db.NewTransaction(true)
			err = s.apply(txn, op, ts)
		}
		if err != nil {
			return fail(op, err)
		}
		pending++
	}
	if err := txn.Commit(); err != nil {
		return fail(&ops[len(ops)-1], err)
	}
	return nil
}

func (s *BadgerStore) apply(txn *badger.Txn, op *mutation, ts int64) error {
	key := append(badgerRowPrefix(op.Table, op.Row), op.Column...)
	item, err := txn.Get(key)
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	if item != nil {
		existing, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if !supersedes(existing, ts) {
			return nil
		}
	}
	if op.Op == opPurge {
		if item == nil {
			return nil
		}
		return txn.Delete(key)
	}
	return txn.Set(key, encodeMutation(op, ts))
}

func (s *BadgerStore) Scan(ctx context.Context, table, row string, rang ColumnRange, limit int) ([]Column, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErrf("scan", table, row, ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, storeErrf("scan", table, row, ErrClosed, nil)
	}

	prefix := badgerRowPrefix(table, row)
	logger := slog.Default()
	var result []Column
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Reverse: rang.Reverse})
		defer it.Close()

		var seek []byte
		switch {
		case !rang.Reverse && rang.Lower != nil:
			seek = append(bytes.Clone(prefix), rang.Lower...)
		case !rang.Reverse:
			seek = prefix
		case rang.Upper != nil:
			seek = append(bytes.Clone(prefix), rang.Upper...)
		default:
			seek = prefixEnd(prefix)
		}

		first := true
		for it.Seek(seek); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().Key()
			if !bytes.HasPrefix(key, prefix) {
				if first && rang.Reverse && bytes.Compare(key, prefix) > 0 {
					// reverse seek landed on the first key past the row
					first = false
					continue
				}
				break
			}
			col := key[len(prefix):]
			if first {
				first = false
				if rang.Reverse && !rang.belowUpper(col) {
					continue
				}
				if !rang.Reverse && !rang.aboveLower(col) {
					continue
				}
			}
			if !rang.match(col, logger) {
				break
			}
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			c, err := decodeCell(raw)
			if err != nil {
				return fmt.Errorf("%s/%s %s: %w", table, row, hexstr(col), err)
			}
			if c.IsTombstone() {
				continue
			}
			result = append(result, Column{Name: bytes.Clone(col), Value: c.Payload, Time: c.Time})
			if limit > 0 && len(result) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		var de *DataError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, storeFailure("scan", table, row, err)
	}
	return result, nil
}

func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return storeFailure("close", "", "", s.db.Close())
}
