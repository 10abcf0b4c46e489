package indexedcoll

import (
	"context"
	"encoding/binary"
	"fmt"
)

// AddItemToCollection records itemKey as a member of container. Membership
// is independent of indexing: SetItemColumn never consults it.
func (db *DB) AddItemToCollection(ctx context.Context, container Container, itemKey string) error {
	if err := container.validate(); err != nil {
		return err
	}
	if itemKey == "" {
		return ErrEmptyKey
	}
	stamp, err := db.clock.Stamp()
	if err != nil {
		return err
	}
	return db.store.Put(ctx, db.tables.Membership, container.Key(), []byte(itemKey), appendUint64(nil, uint64(stamp.Time)), stamp.Time)
}

// RemoveItemFromCollection removes itemKey from container. Its index entries
// are not touched.
func (db *DB) RemoveItemFromCollection(ctx context.Context, container Container, itemKey string) error {
	if err := container.validate(); err != nil {
		return err
	}
	if itemKey == "" {
		return ErrEmptyKey
	}
	stamp, err := db.clock.Stamp()
	if err != nil {
		return err
	}
	return db.store.Delete(ctx, db.tables.Membership, container.Key(), []byte(itemKey), stamp.Time)
}

// GetItemsInCollection returns the members of container in item key order,
// at most FetchAllLimit of them.
func (db *DB) GetItemsInCollection(ctx context.Context, container Container) ([]string, error) {
	if err := container.validate(); err != nil {
		return nil, err
	}
	cols, err := db.store.Scan(ctx, db.tables.Membership, container.Key(), RangeOO(), db.fetchAllLimit)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(cols))
	for _, col := range cols {
		if len(col.Value) != 8 {
			return nil, dataErrf(col.Value, 0, nil, "membership %s/%s: invalid timestamp", container.Key(), col.Name)
		}
		keys = append(keys, string(col.Name))
	}
	return keys, nil
}

// MemberSince returns when itemKey was added to container, in microseconds,
// or false if it is not a member.
func (db *DB) MemberSince(ctx context.Context, container Container, itemKey string) (int64, bool, error) {
	if err := container.validate(); err != nil {
		return 0, false, err
	}
	col := []byte(itemKey)
	cols, err := db.store.Scan(ctx, db.tables.Membership, container.Key(), RangeII(col, col), 1)
	if err != nil {
		return 0, false, err
	}
	if len(cols) == 0 {
		return 0, false, nil
	}
	if len(cols[0].Value) != 8 {
		return 0, false, fmt.Errorf("membership %s/%s: %w", container.Key(), itemKey, dataErrf(cols[0].Value, 0, nil, "invalid timestamp"))
	}
	return int64(binary.BigEndian.Uint64(cols[0].Value)), true, nil
}
