package indexedcoll

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func setupScores(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= 10; i++ {
		ensure(db.SetItemColumn(ctx, fmt.Sprintf("i%02d", i), "score", i, []Container{org1Members}))
	}
}

func keys(from, to int) []string {
	var result []string
	step := 1
	if from > to {
		step = -1
	}
	for i := from; ; i += step {
		result = append(result, fmt.Sprintf("i%02d", i))
		if i == to {
			break
		}
	}
	return result
}

func TestSearchContainer_Ranges(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		db := setupStore(t, s, Options{})
		setupScores(t, db)
		q := func(start, end any, inc, rev bool) []string {
			return search(t, db, SearchQuery{Container: org1Members, Attribute: "score", Start: start, End: end, EndInclusive: inc, Reverse: rev})
		}

		deepEqual(t, q(3, 7, false, false), keys(3, 6))
		deepEqual(t, q(3, 7, true, false), keys(3, 7))
		deepEqual(t, q(3, 7, false, true), keys(6, 3))
		deepEqual(t, q(3, 7, true, true), keys(7, 3))
		deepEqual(t, q(nil, 3, true, false), keys(1, 3))
		deepEqual(t, q(nil, 3, false, true), keys(2, 1))
		deepEqual(t, q(8, nil, false, false), keys(8, 10))
		deepEqual(t, q(8, nil, false, true), keys(10, 8))
		deepEqual(t, q(nil, nil, false, false), keys(1, 10))
		deepEqual(t, q(5, 5, true, false), keys(5, 5))
		isempty(t, q(5, 5, false, false))
		isempty(t, q(7, 3, true, false))
		isempty(t, q(11, 20, true, false))
		isempty(t, q(-5, 1, false, false))
		isempty(t, q("3", "7", true, false))
	})
}

func TestSearchContainer_NamedNumericTypes(t *testing.T) {
	ctx := context.Background()
	db := setup(t)
	in := []Container{org1Members}
	ensure(db.SetItemColumn(ctx, "u1", "ttl", 5*time.Second, in))
	ensure(db.SetItemColumn(ctx, "u2", "ttl", 30*time.Second, in))
	ensure(db.SetItemColumn(ctx, "u3", "level", testLevel(2), in))

	deepEqual(t, search(t, db, SearchQuery{Container: org1Members, Attribute: "ttl", Start: 0, End: int64(10 * time.Second), EndInclusive: true}), []string{"u1"})
	deepEqual(t, search(t, db, SearchQuery{Container: org1Members, Attribute: "ttl", Start: time.Second, End: time.Minute}), []string{"u1", "u2"})
	deepEqual(t, must(db.SearchExact(ctx, org1Members, "level", 2, nil, 0, false)), []string{"u3"})

	var ttl time.Duration
	must(db.GetItemColumn(ctx, "u1", "ttl", &ttl))
	deepEqual(t, ttl, 5*time.Second)
}

func TestSearchContainer_Pagination(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		db := setupStore(t, s, Options{})
		setupScores(t, db)

		var all []string
		var start any
		var cursor *string
		for page := 0; page < 10; page++ {
			got := search(t, db, SearchQuery{Container: org1Members, Attribute: "score", Start: start, End: 10, EndInclusive: true, StartItemKey: cursor, Limit: 3})
			if len(got) == 0 {
				break
			}
			all = append(all, got...)
			last := got[len(got)-1]
			score := itemScore(t, db, last)
			start, cursor = score, strptr(last)
		}
		deepEqual(t, all, keys(1, 10))

		all = nil
		var end any = 10
		cursor = nil
		for page := 0; page < 10; page++ {
			got := search(t, db, SearchQuery{Container: org1Members, Attribute: "score", End: end, EndInclusive: true, StartItemKey: cursor, Limit: 4, Reverse: true})
			if len(got) == 0 {
				break
			}
			all = append(all, got...)
			last := got[len(got)-1]
			score := itemScore(t, db, last)
			end, cursor = score, strptr(last)
		}
		deepEqual(t, all, keys(10, 1))
	})
}

func itemScore(t testing.TB, db *DB, itemKey string) int {
	t.Helper()
	var score int
	if !must(db.GetItemColumn(context.Background(), itemKey, "score", &score)) {
		t.Fatalf("%s has no score", itemKey)
	}
	return score
}

func TestSearchContainer_PaginationWithTies(t *testing.T) {
	ctx := context.Background()
	db := setup(t)
	for _, k := range []string{"c", "a", "e", "b", "d"} {
		ensure(db.SetItemColumn(ctx, k, "status", "active", []Container{org1Members}))
	}
	ensure(db.SetItemColumn(ctx, "z", "status", "blocked", []Container{org1Members}))

	deepEqual(t, must(db.SearchExact(ctx, org1Members, "status", "active", nil, 2, false)), []string{"a", "b"})
	deepEqual(t, must(db.SearchExact(ctx, org1Members, "status", "active", strptr("b"), 2, false)), []string{"c", "d"})
	deepEqual(t, must(db.SearchExact(ctx, org1Members, "status", "active", strptr("d"), 2, false)), []string{"e"})
	deepEqual(t, must(db.SearchExact(ctx, org1Members, "status", "active", nil, 2, true)), []string{"e", "d"})
	deepEqual(t, must(db.SearchExact(ctx, org1Members, "status", "active", strptr("d"), 2, true)), []string{"c", "b"})
	deepEqual(t, must(db.SearchExact(ctx, org1Members, "status", "active", strptr("b"), 2, true)), []string{"a"})

	// a cursor item that no longer matches still positions the scan
	deepEqual(t, must(db.SearchExact(ctx, org1Members, "status", "active", strptr("bb"), 0, false)), []string{"c", "d", "e"})
}

func TestSearchContainer_Limits(t *testing.T) {
	ctx := context.Background()
	db := setupStore(t, NewMemStore(), Options{FetchAllLimit: 120})
	for i := 0; i < 150; i++ {
		ensure(db.SetItemColumn(ctx, fmt.Sprintf("u%03d", i), "kind", "user", []Container{org1Members}))
	}
	q := SearchQuery{Container: org1Members, Attribute: "kind", Start: "user", End: "user", EndInclusive: true}

	deepEqual(t, len(search(t, db, q)), DefaultLimit)
	q.Limit = FetchAll
	deepEqual(t, len(search(t, db, q)), 120)
	q.Limit = 1000
	deepEqual(t, len(search(t, db, q)), 120)
	q.Limit = 7
	deepEqual(t, len(search(t, db, q)), 7)
}

func TestSearchContainer_Invalid(t *testing.T) {
	ctx := context.Background()
	db := setup(t)

	tests := []SearchQuery{
		{Container: org1Members},
		{Container: Container{}, Attribute: "a"},
		{Container: Container{Owner: "o", Collection: "a:b"}, Attribute: "a"},
		{Container: org1Members, Attribute: "a", StartItemKey: strptr("k"), Reverse: true},
		{Container: org1Members, Attribute: "a", Start: make(chan int)},
		{Container: org1Members, Attribute: "a", End: 1.0 / zero()},
	}
	for _, q := range tests {
		_, err := db.SearchContainer(ctx, q)
		if !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("SearchContainer(%+v) err = %v, wanted ErrInvalidQuery", q, err)
		}
	}
	if _, err := db.SearchExact(ctx, org1Members, "a", nil, nil, 0, false); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("SearchExact(nil) err = %v, wanted ErrInvalidQuery", err)
	}
	deepEqual(t, db.ErrorCount.Load(), uint64(len(tests)))
}

func zero() float64 {
	return 0
}

func TestSearchQuery_ColumnRange(t *testing.T) {
	q := SearchQuery{Start: 3, End: 7, EndInclusive: true}
	rang := must(q.columnRange())
	deepEqual(t, rang.Lower, Composite{}.AddValue(IntValue(3)).Bytes())
	deepEqual(t, rang.Upper, Composite{}.AddValue(IntValue(7)).Mark(EOCGreater).Bytes())

	q = SearchQuery{StartItemKey: strptr("k")}
	rang = must(q.columnRange())
	deepEqual(t, rang.Lower, Composite{}.AddValue(BytesValue(nil)).AddString("k").Mark(EOCGreater).Bytes())
	if rang.Upper != nil {
		t.Errorf("Upper = %x, wanted nil", rang.Upper)
	}

	q = SearchQuery{Start: "a", End: "z", StartItemKey: strptr("k"), Reverse: true}
	rang = must(q.columnRange())
	deepEqual(t, rang.Lower, Composite{}.AddValue(StringValue("a")).Bytes())
	deepEqual(t, rang.Upper, Composite{}.AddValue(StringValue("z")).AddString("k").Mark(EOCLess).Bytes())
	deepEqual(t, rang.Reverse, true)
}
