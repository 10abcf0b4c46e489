package indexedcoll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// SetItemColumn sets attribute attr of item itemKey to value and re-indexes
// it in every listed container. A nil value removes the attribute and its
// index entries.
//
// All mutations go into a single batch committed at the call's version stamp
// time. Every entry the ledger holds for (itemKey, attr) is retracted, even
// when the value did not change, so entries left behind by concurrent or
// partially failed writes are cleaned up here.
//
// The containers must be the same ones the attribute was indexed in before;
// entries in containers not listed are not retracted.
func (db *DB) SetItemColumn(ctx context.Context, itemKey, attr string, value any, containers []Container) (err error) {
	ctx, span := startSpan(ctx, "indexedcoll.SetItemColumn",
		attribute.String("indexedcoll.item", itemKey),
		attribute.String("indexedcoll.attr", attr),
		attribute.Int("indexedcoll.containers", len(containers)))
	start := time.Now()
	var stale, mutations int
	var removed bool
	defer func() {
		db.WriteCount.Add(1)
		outcome := "set"
		if err != nil {
			db.ErrorCount.Add(1)
			outcome = "error"
		} else if removed {
			outcome = "removed"
		}
		db.metrics.recordWrite(outcome, stale, mutations, time.Since(start), errors.Is(err, ErrPartialBatchFailure))
		endSpan(span, err)
	}()

	if itemKey == "" || attr == "" {
		return fmt.Errorf("%w: item %q attribute %q", ErrEmptyKey, itemKey, attr)
	}
	for _, c := range containers {
		if err := c.validate(); err != nil {
			return err
		}
	}
	containers = uniqueContainers(containers)

	tv, err := Classify(value)
	if errors.Is(err, ErrNilValue) {
		removed = true
	} else if err != nil {
		return err
	}
	var payload []byte
	if !removed {
		payload, err = encodeValue(nil, itemValue(value))
		if err != nil {
			return err
		}
	}

	stamp, err := db.clock.Stamp()
	if err != nil {
		return err
	}

	old, err := db.readLedger(ctx, itemKey, attr)
	if err != nil {
		return err
	}
	stale = len(old)

	var b Batch = db.store.NewBatch()
	if db.verbose {
		b = &loggedBatch{Batch: b, ctx: ctx, logger: db.logger}
	}

	// Every prefix of this batch must leave each index entry covered by a
	// ledger entry, so that a partially applied batch is still cleaned up by
	// the next write: new ledger entry first, old ledger entries last.
	if !removed {
		b.Put(db.tables.Ledger, itemKey, ledgerColumn(attr, stamp.ID), encodeLedgerValue(tv))
		for _, c := range containers {
			b.Put(db.tables.Index, IndexPartitionKey(c, attr), indexColumn(tv, itemKey, stamp.ID), nil)
		}
	}
	// Ledger and index columns embed the stamp ID and are never rewritten, so
	// they are purged rather than tombstoned.
	for _, e := range old {
		for _, c := range containers {
			b.Purge(db.tables.Index, IndexPartitionKey(c, attr), indexColumn(e.Value, itemKey, e.Stamp.ID))
		}
	}
	for _, e := range old {
		b.Purge(db.tables.Ledger, itemKey, ledgerColumn(attr, e.Stamp.ID))
	}
	if removed {
		b.Delete(db.tables.Items, itemKey, []byte(attr))
	} else {
		b.Put(db.tables.Items, itemKey, []byte(attr), payload)
	}
	mutations = b.Len()

	if db.verbose {
		db.logger.LogAttrs(ctx, slog.LevelDebug, "indexedcoll: SET",
			slog.String("item", itemKey),
			slog.String("attr", attr),
			slog.String("value", tvString(tv, removed)),
			slog.String("stamp", stamp.String()),
			slog.Int("stale", stale),
			slog.Int("mutations", mutations))
	}

	err = b.Commit(ctx, stamp.Time)
	if err != nil {
		if errors.Is(err, ErrPartialBatchFailure) {
			db.logger.LogAttrs(ctx, slog.LevelWarn, "indexedcoll: partially applied write, index may hold stale entries until the next write",
				slog.String("item", itemKey),
				slog.String("attr", attr),
				slog.Any("err", err))
		}
		return err
	}
	return nil
}

func tvString(tv TypedValue, removed bool) string {
	if removed {
		return "<nil>"
	}
	return tv.String()
}

// loggedBatch logs every mutation at debug level.
type loggedBatch struct {
	Batch
	ctx    context.Context
	logger *slog.Logger
}

func (b *loggedBatch) Put(table, row string, column, value []byte) {
	b.logger.LogAttrs(b.ctx, slog.LevelDebug, "indexedcoll: PUT", slog.String("table", table), slog.String("row", row), hexAttr("column", column), hexAttr("value", value))
	b.Batch.Put(table, row, column, value)
}

func (b *loggedBatch) Purge(table, row string, column []byte) {
	b.logger.LogAttrs(b.ctx, slog.LevelDebug, "indexedcoll: PURGE", slog.String("table", table), slog.String("row", row), hexAttr("column", column))
	b.Batch.Purge(table, row, column)
}

func (b *loggedBatch) Delete(table, row string, column []byte) {
	b.logger.LogAttrs(b.ctx, slog.LevelDebug, "indexedcoll: DELETE", slog.String("table", table), slog.String("row", row), hexAttr("column", column))
	b.Batch.Delete(table, row, column)
}
