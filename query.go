package indexedcoll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultLimit = 100

	// FetchAll as a limit means "everything", capped at FetchAllLimit.
	FetchAll      = -1
	FetchAllLimit = 100000
)

// SearchQuery selects the items of Container whose Attribute lies between
// Start and End.
//
// The range always runs from Start to End in value order; Reverse only
// changes the order results come back in. A nil Start begins at the smallest
// possible value, a nil End is unbounded. Start is always inclusive.
//
// Start and End are classified like stored values, so they only match values
// of the same type: IntValue(5) never matches the string "5".
type SearchQuery struct {
	Container Container
	Attribute string

	Start        any
	End          any
	EndInclusive bool

	// StartItemKey resumes a previous search after that item. Ascending
	// searches resume at Start, so set Start to the value of the last item
	// returned; descending searches resume at End and require it.
	StartItemKey *string

	// Limit is the maximum number of results: 0 means DefaultLimit, FetchAll
	// means FetchAllLimit.
	Limit int

	Reverse bool
}

func (db *DB) effectiveLimit(limit int) int {
	switch {
	case limit == 0:
		return db.defaultLimit
	case limit < 0 || limit > db.fetchAllLimit:
		return db.fetchAllLimit
	default:
		return limit
	}
}

func classifyBound(name string, v any) (TypedValue, error) {
	tv, err := Classify(v)
	if err != nil {
		return TypedValue{}, fmt.Errorf("%w: %s: %w", ErrInvalidQuery, name, err)
	}
	return tv, nil
}

// columnRange builds the index column range of the query.
func (q *SearchQuery) columnRange() (ColumnRange, error) {
	var lower, upper Composite
	if q.Start != nil {
		tv, err := classifyBound("start", q.Start)
		if err != nil {
			return ColumnRange{}, err
		}
		lower = Composite{}.AddValue(tv)
	} else {
		lower = Composite{}.AddValue(BytesValue(nil))
	}

	var end TypedValue
	if q.End != nil {
		var err error
		end, err = classifyBound("end", q.End)
		if err != nil {
			return ColumnRange{}, err
		}
		upper = Composite{}.AddValue(end)
		if q.EndInclusive {
			upper = upper.Mark(EOCGreater)
		}
	}

	if q.StartItemKey != nil {
		if q.Reverse {
			if q.End == nil {
				return ColumnRange{}, fmt.Errorf("%w: descending search with StartItemKey requires End", ErrInvalidQuery)
			}
			upper = Composite{}.AddValue(end).AddString(*q.StartItemKey).Mark(EOCLess)
		} else {
			lower = lower.AddString(*q.StartItemKey).Mark(EOCGreater)
		}
	}

	rang := ColumnRange{Lower: lower.Bytes(), LowerInc: true, Reverse: q.Reverse}
	if upper != nil {
		rang.Upper = upper.Bytes()
	}
	return rang, nil
}

// SearchContainer returns the keys of items in q.Container whose q.Attribute
// falls within the query range, in value order (descending when q.Reverse),
// ties ordered by item key. Items indexed more than once (possible after
// concurrent writes) can appear more than once.
func (db *DB) SearchContainer(ctx context.Context, q SearchQuery) (keys []string, err error) {
	ctx, span := startSpan(ctx, "indexedcoll.SearchContainer",
		attribute.String("indexedcoll.container", q.Container.Key()),
		attribute.String("indexedcoll.attr", q.Attribute),
		attribute.Bool("indexedcoll.reverse", q.Reverse))
	start := time.Now()
	defer func() {
		db.SearchCount.Add(1)
		if err != nil {
			db.ErrorCount.Add(1)
		}
		span.SetAttributes(attribute.Int("indexedcoll.results", len(keys)))
		db.metrics.recordSearch(err, len(keys), time.Since(start))
		endSpan(span, err)
	}()

	if q.Attribute == "" {
		return nil, fmt.Errorf("%w: empty attribute", ErrInvalidQuery)
	}
	if err := q.Container.validate(); err != nil {
		if errors.Is(err, ErrInvalidQuery) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	rang, err := q.columnRange()
	if err != nil {
		return nil, err
	}
	if rang.Empty() {
		return nil, nil
	}

	partition := IndexPartitionKey(q.Container, q.Attribute)
	cols, err := db.store.Scan(ctx, db.tables.Index, partition, rang, db.effectiveLimit(q.Limit))
	if err != nil {
		return nil, err
	}
	keys = make([]string, 0, len(cols))
	for _, col := range cols {
		e, err := decodeIndexColumn(col.Name)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", partition, err)
		}
		keys = append(keys, e.ItemKey)
	}
	return keys, nil
}

// SearchExact returns the items of container whose attr equals value.
func (db *DB) SearchExact(ctx context.Context, container Container, attr string, value any, startItemKey *string, limit int, reverse bool) ([]string, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: nil value", ErrInvalidQuery)
	}
	return db.SearchContainer(ctx, SearchQuery{
		Container:    container,
		Attribute:    attr,
		Start:        value,
		End:          value,
		EndInclusive: true,
		StartItemKey: startItemKey,
		Limit:        limit,
		Reverse:      reverse,
	})
}
