package indexedcoll

import (
	"context"
	"fmt"
)

// GetItemColumn decodes the current value of an item attribute into dest,
// which must be a pointer. It reports false if the attribute is not set.
//
// Values come back the way msgpack decodes them: integers set as Go ints
// decode into any as int8..int64 or uint8..uint64, UUIDs as []byte.
func (db *DB) GetItemColumn(ctx context.Context, itemKey, attr string, dest any) (bool, error) {
	if itemKey == "" || attr == "" {
		return false, ErrEmptyKey
	}
	col := []byte(attr)
	cols, err := db.store.Scan(ctx, db.tables.Items, itemKey, RangeII(col, col), 1)
	if err != nil {
		return false, err
	}
	if len(cols) == 0 {
		return false, nil
	}
	if err := decodeValue(cols[0].Value, dest); err != nil {
		return false, fmt.Errorf("item %s.%s: %w", itemKey, attr, err)
	}
	return true, nil
}

// ItemColumns returns every attribute of an item.
func (db *DB) ItemColumns(ctx context.Context, itemKey string) (map[string]any, error) {
	if itemKey == "" {
		return nil, ErrEmptyKey
	}
	cols, err := db.store.Scan(ctx, db.tables.Items, itemKey, RangeOO(), db.fetchAllLimit)
	if err != nil {
		return nil, err
	}
	result := make(map[string]any, len(cols))
	for _, col := range cols {
		var v any
		if err := decodeValue(col.Value, &v); err != nil {
			return nil, fmt.Errorf("item %s.%s: %w", itemKey, col.Name, err)
		}
		result[string(col.Name)] = v
	}
	return result, nil
}
