package indexedcoll

import (
	"context"
	"fmt"
	"io"
	"strings"
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

// DumpItem writes a human-readable listing of an item's attributes and
// ledger.
func (db *DB) DumpItem(ctx context.Context, w io.Writer, itemKey string) error {
	fmt.Fprintln(w, dumpSep1)
	fmt.Fprintf(w, "%s/%s\n", db.tables.Items, itemKey)
	cols, err := db.store.Scan(ctx, db.tables.Items, itemKey, RangeOO(), db.fetchAllLimit)
	if err != nil {
		return err
	}
	for i, col := range cols {
		var v any
		if err := decodeValue(col.Value, &v); err != nil {
			fmt.Fprintf(w, "%s.%d: %s ** ERROR: %v\n", itemKey, i+1, col.Name, err)
			continue
		}
		fmt.Fprintf(w, "%s.%d: %s = %v (t%d)\n", itemKey, i+1, col.Name, v, col.Time)
	}

	fmt.Fprintln(w, dumpSep2)
	fmt.Fprintf(w, "%s/%s\n", db.tables.Ledger, itemKey)
	cols, err = db.store.Scan(ctx, db.tables.Ledger, itemKey, RangeOO(), db.fetchAllLimit)
	if err != nil {
		return err
	}
	for i, col := range cols {
		attr, id, err := decodeLedgerColumn(col.Name)
		if err != nil {
			fmt.Fprintf(w, "%s.%d: %s ** ERROR: %v\n", itemKey, i+1, hexstr(col.Name), err)
			continue
		}
		tv, err := decodeLedgerValue(col.Value)
		if err != nil {
			fmt.Fprintf(w, "%s.%d: %s @ %s ** ERROR: %v\n", itemKey, i+1, attr, id, err)
			continue
		}
		fmt.Fprintf(w, "%s.%d: %s @ %s = %v (t%d)\n", itemKey, i+1, attr, id, tv, col.Time)
	}
	return nil
}

// DumpIndex writes a human-readable listing of one index partition.
func (db *DB) DumpIndex(ctx context.Context, w io.Writer, container Container, attr string) error {
	partition := IndexPartitionKey(container, attr)
	fmt.Fprintln(w, dumpSep1)
	fmt.Fprintf(w, "%s/%s\n", db.tables.Index, partition)
	cols, err := db.store.Scan(ctx, db.tables.Index, partition, RangeOO(), db.fetchAllLimit)
	if err != nil {
		return err
	}
	for i, col := range cols {
		e, err := decodeIndexColumn(col.Name)
		if err != nil {
			fmt.Fprintf(w, "%s.%d: %s ** ERROR: %v\n", partition, i+1, hexstr(col.Name), err)
			continue
		}
		fmt.Fprintf(w, "%s.%d: %v => %s @ %s (t%d)\n", partition, i+1, e.Value, e.ItemKey, e.StampID, col.Time)
	}
	return nil
}
