package indexedcoll

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// LedgerEntry records that an item attribute was indexed under Value by the
// write identified by Stamp. Stamp.Time is the time the entry was written.
type LedgerEntry struct {
	Stamp VersionStamp
	Value TypedValue
}

func (e LedgerEntry) String() string {
	return fmt.Sprintf("%v = %v", e.Stamp, e.Value)
}

// ledgerColumn is composite(attr, stampID).
func ledgerColumn(attr string, id uuid.UUID) []byte {
	return Composite{}.AddString(attr).Add(id[:]).Bytes()
}

// ledgerRange covers every ledger column of attr and nothing else: the lower
// bound is the bare attr prefix, which sorts before its extensions, and the
// upper bound is the same prefix marked to sort after them.
func ledgerRange(attr string) ColumnRange {
	prefix := Composite{}.AddString(attr)
	return RangeII(prefix.Bytes(), prefix.Mark(EOCGreater).Bytes())
}

func decodeLedgerColumn(raw []byte) (attr string, id uuid.UUID, err error) {
	c, err := DecodeComposite(raw)
	if err != nil {
		return "", uuid.Nil, err
	}
	if len(c) != 2 || len(c[1].Data) != 16 {
		return "", uuid.Nil, dataErrf(raw, 0, nil, "invalid ledger column: got %d components", len(c))
	}
	return string(c[0].Data), uuid.UUID(c[1].Data), nil
}

func (db *DB) readLedger(ctx context.Context, itemKey, attr string) ([]LedgerEntry, error) {
	cols, err := db.store.Scan(ctx, db.tables.Ledger, itemKey, ledgerRange(attr), db.fetchAllLimit)
	if err != nil {
		return nil, err
	}
	entries := make([]LedgerEntry, 0, len(cols))
	for _, col := range cols {
		colAttr, id, err := decodeLedgerColumn(col.Name)
		if err != nil {
			return nil, fmt.Errorf("ledger %s: %w", itemKey, err)
		}
		if colAttr != attr {
			return nil, dataErrf(col.Name, 0, nil, "ledger %s: column of %q in range of %q", itemKey, colAttr, attr)
		}
		tv, err := decodeLedgerValue(col.Value)
		if err != nil {
			return nil, fmt.Errorf("ledger %s %s: %w", itemKey, id, err)
		}
		entries = append(entries, LedgerEntry{
			Stamp: VersionStamp{ID: id, Time: col.Time},
			Value: tv,
		})
	}
	return entries, nil
}

// LedgerEntries returns the live ledger entries of an item attribute,
// oldest stamp first. After a successful SetItemColumn there is exactly one
// (or none after a removal); concurrent or partially failed writes can leave
// more until the next write.
func (db *DB) LedgerEntries(ctx context.Context, itemKey, attr string) ([]LedgerEntry, error) {
	if itemKey == "" || attr == "" {
		return nil, ErrEmptyKey
	}
	return db.readLedger(ctx, itemKey, attr)
}
