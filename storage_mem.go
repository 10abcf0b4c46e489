package indexedcoll

import (
	"bytes"
	"context"
	"slices"
	"sort"
	"sync"
)

const memRowSep = "\x00"

// MemStore is an in-memory Store. It is fully functional and is what the
// tests run against, but keeps nothing across restarts.
type MemStore struct {
	mu     sync.RWMutex
	rows   map[string]*memRow
	closed bool
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{rows: make(map[string]*memRow)}
}

func memRowKey(table, row string) string {
	return table + memRowSep + row
}

func (s *MemStore) Put(ctx context.Context, table, row string, column, value []byte, ts int64) error {
	return putOne(ctx, s, table, row, column, value, ts)
}

func (s *MemStore) Delete(ctx context.Context, table, row string, column []byte, ts int64) error {
	return deleteOne(ctx, s, table, row, column, ts)
}

func (s *MemStore) NewBatch() Batch {
	return &opBatch{commit: s.commit}
}

func (s *MemStore) commit(ctx context.Context, ops []mutation, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storeErrf("commit", "", "", ErrClosed, nil)
	}
	for i := range ops {
		op := &ops[i]
		key := memRowKey(op.Table, op.Row)
		r := s.rows[key]
		if op.Op == opPurge {
			if r != nil {
				r.purge(op.Column, ts)
			}
			continue
		}
		if r == nil {
			r = &memRow{}
			s.rows[key] = r
		}
		r.apply(op.Column, encodeMutation(op, ts), ts)
	}
	return nil
}

func (s *MemStore) Scan(ctx context.Context, table, row string, rang ColumnRange, limit int) ([]Column, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErrf("scan", table, row, ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storeErrf("scan", table, row, ErrClosed, nil)
	}
	r := s.rows[memRowKey(table, row)]
	if r == nil {
		return nil, nil
	}
	return scanCursor(rang, &memCursor{items: r.items, pos: -1}, limit, true, table, row)
}

func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.rows = nil
	return nil
}

type memRow struct {
	items []memKV // sorted by key
}

type memKV struct {
	key   []byte
	value []byte
}

func (r *memRow) find(key []byte) (idx int, ok bool) {
	items := r.items
	i := sort.Search(len(items), func(i int) bool {
		return bytes.Compare(items[i].key, key) >= 0
	})
	if i < len(items) && bytes.Equal(items[i].key, key) {
		return i, true
	}
	return i, false
}

func (r *memRow) apply(key, value []byte, ts int64) {
	i, ok := r.find(key)
	if ok {
		if supersedes(r.items[i].value, ts) {
			r.items[i].value = value
		}
		return
	}
	r.items = slices.Insert(r.items, i, memKV{key: slices.Clone(key), value: value})
}

func (r *memRow) purge(key []byte, ts int64) {
	i, ok := r.find(key)
	if ok && supersedes(r.items[i].value, ts) {
		r.items = slices.Delete(r.items, i, i+1)
	}
}

type memCursor struct {
	items []memKV
	pos   int
}

func (c *memCursor) at() ([]byte, []byte) {
	if c.pos < 0 || c.pos >= len(c.items) {
		return nil, nil
	}
	kv := c.items[c.pos]
	return kv.key, kv.value
}

func (c *memCursor) First() ([]byte, []byte) {
	c.pos = 0
	return c.at()
}

func (c *memCursor) Last() ([]byte, []byte) {
	c.pos = len(c.items) - 1
	return c.at()
}

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	c.pos = sort.Search(len(c.items), func(i int) bool {
		return bytes.Compare(c.items[i].key, seek) >= 0
	})
	return c.at()
}

func (c *memCursor) Next() ([]byte, []byte) {
	if c.pos < 0 {
		return c.First()
	}
	if c.pos < len(c.items) {
		c.pos++
	}
	return c.at()
}

func (c *memCursor) Prev() ([]byte, []byte) {
	if c.pos < 0 {
		return nil, nil
	}
	c.pos--
	return c.at()
}
