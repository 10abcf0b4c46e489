package indexedcoll

import (
	"context"
	"errors"
	"time"
	"unsafe"

	"go.etcd.io/bbolt"
)

type BoltOptions struct {
	// IsTesting skips fsync.
	IsTesting bool

	// Timeout bounds waiting for the file lock. Zero waits forever.
	Timeout time.Duration
}

// BoltStore keeps each table in a root bucket and each row in a nested
// bucket keyed by row name. Every commit is a single Bolt transaction, so
// Bolt batches never fail partially.
type BoltStore struct {
	bdb *bbolt.DB
}

var _ Store = (*BoltStore)(nil)

func OpenBolt(path string, opt BoltOptions) (*BoltStore, error) {
	bdb, err := bbolt.Open(path, 0o666, &bbolt.Options{
		Timeout: opt.Timeout,
		NoSync:  opt.IsTesting,
	})
	if err != nil {
		return nil, storeErrf("open", "", "", ErrStoreUnavailable, err)
	}
	return &BoltStore{bdb: bdb}, nil
}

// BoltDB exposes the underlying database, e.g. for backups.
func (s *BoltStore) BoltDB() *bbolt.DB {
	return s.bdb
}

func (s *BoltStore) Put(ctx context.Context, table, row string, column, value []byte, ts int64) error {
	return putOne(ctx, s, table, row, column, value, ts)
}

func (s *BoltStore) Delete(ctx context.Context, table, row string, column []byte, ts int64) error {
	return deleteOne(ctx, s, table, row, column, ts)
}

func (s *BoltStore) NewBatch() Batch {
	return &opBatch{commit: s.commit}
}

func (s *BoltStore) commit(ctx context.Context, ops []mutation, ts int64) error {
	err := s.bdb.Update(func(btx *bbolt.Tx) error {
		for i := range ops {
			op := &ops[i]
			if op.Op == opPurge {
				if err := boltPurge(btx, op, ts); err != nil {
					return err
				}
				continue
			}
			root, err := btx.CreateBucketIfNotExists(unsafeBytesFromString(op.Table))
			if err != nil {
				return storeFailure("put", op.Table, "", err)
			}
			b, err := root.CreateBucketIfNotExists(unsafeBytesFromString(op.Row))
			if err != nil {
				return storeFailure("put", op.Table, op.Row, err)
			}
			if !supersedes(b.Get(op.Column), ts) {
				continue
			}
			if err := b.Put(op.Column, encodeMutation(op, ts)); err != nil {
				return storeFailure("put", op.Table, op.Row, err)
			}
		}
		return nil
	})
	return boltFailure("commit", "", "", err)
}

func boltPurge(btx *bbolt.Tx, op *mutation, ts int64) error {
	root := btx.Bucket(unsafeBytesFromString(op.Table))
	if root == nil {
		return nil
	}
	b := root.Bucket(unsafeBytesFromString(op.Row))
	if b == nil {
		return nil
	}
	existing := b.Get(op.Column)
	if existing == nil || !supersedes(existing, ts) {
		return nil
	}
	if err := b.Delete(op.Column); err != nil {
		return storeFailure("purge", op.Table, op.Row, err)
	}
	return nil
}

func (s *BoltStore) Scan(ctx context.Context, table, row string, rang ColumnRange, limit int) ([]Column, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErrf("scan", table, row, ErrStoreUnavailable, err)
	}
	var result []Column
	err := s.bdb.View(func(btx *bbolt.Tx) error {
		root := btx.Bucket(unsafeBytesFromString(table))
		if root == nil {
			return nil
		}
		b := root.Bucket(unsafeBytesFromString(row))
		if b == nil {
			return nil
		}
		var err error
		result, err = scanCursor(rang, b.Cursor(), limit, true, table, row)
		return err
	})
	if err != nil {
		var de *DataError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, boltFailure("scan", table, row, err)
	}
	return result, nil
}

func (s *BoltStore) Close() error {
	return boltFailure("close", "", "", s.bdb.Close())
}

func boltFailure(op, table, row string, err error) error {
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return storeErrf(op, table, row, ErrClosed, err)
	}
	return storeFailure(op, table, row, err)
}

func unsafeBytesFromString(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
