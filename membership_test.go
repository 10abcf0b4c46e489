package indexedcoll

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func fixedClock(start int64) Clock {
	ts := start
	return ClockFunc(func() (VersionStamp, error) {
		ts++
		return VersionStamp{ID: uuid.Must(uuid.NewV7()), Time: ts}, nil
	})
}

func TestMembership(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		db := setupStore(t, s, Options{Clock: fixedClock(1000)})

		ensure(db.AddItemToCollection(ctx, org1Members, "u2"))
		ensure(db.AddItemToCollection(ctx, org1Members, "u1"))
		ensure(db.AddItemToCollection(ctx, org1Members, "u3"))
		ensure(db.AddItemToCollection(ctx, org2Members, "u9"))
		deepEqual(t, must(db.GetItemsInCollection(ctx, org1Members)), []string{"u1", "u2", "u3"})
		deepEqual(t, must(db.GetItemsInCollection(ctx, org2Members)), []string{"u9"})

		ts, ok, err := db.MemberSince(ctx, org1Members, "u1")
		ensure(err)
		deepEqual(t, ok, true)
		deepEqual(t, ts, int64(1002))

		ensure(db.RemoveItemFromCollection(ctx, org1Members, "u2"))
		deepEqual(t, must(db.GetItemsInCollection(ctx, org1Members)), []string{"u1", "u3"})
		_, ok, err = db.MemberSince(ctx, org1Members, "u2")
		ensure(err)
		deepEqual(t, ok, false)

		// re-adding refreshes the timestamp
		ensure(db.AddItemToCollection(ctx, org1Members, "u2"))
		ts, ok, _ = db.MemberSince(ctx, org1Members, "u2")
		deepEqual(t, ok, true)
		deepEqual(t, ts, int64(1006))

		isempty(t, must(db.GetItemsInCollection(ctx, Container{Owner: "org3", Collection: "members"})))
	})
}

func TestMembership_IndependentOfIndex(t *testing.T) {
	ctx := context.Background()
	db := setup(t)

	ensure(db.SetItemColumn(ctx, "u1", "status", "active", []Container{org1Members}))
	isempty(t, must(db.GetItemsInCollection(ctx, org1Members)))

	ensure(db.AddItemToCollection(ctx, org1Members, "u1"))
	ensure(db.RemoveItemFromCollection(ctx, org1Members, "u1"))
	deepEqual(t, search(t, db, SearchQuery{Container: org1Members, Attribute: "status"}), []string{"u1"})
}

func TestMembership_InvalidKeys(t *testing.T) {
	ctx := context.Background()
	db := setup(t)

	if err := db.AddItemToCollection(ctx, org1Members, ""); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("AddItemToCollection(\"\") err = %v, wanted ErrEmptyKey", err)
	}
	if err := db.AddItemToCollection(ctx, Container{Owner: "org1"}, "u1"); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("AddItemToCollection(no collection) err = %v, wanted ErrEmptyKey", err)
	}
	if err := db.RemoveItemFromCollection(ctx, org1Members, ""); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("RemoveItemFromCollection(\"\") err = %v, wanted ErrEmptyKey", err)
	}
	if _, err := db.GetItemsInCollection(ctx, Container{Owner: "o", Collection: "a:b"}); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("GetItemsInCollection(a:b) err = %v, wanted ErrInvalidQuery", err)
	}
}

func TestMembership_CorruptTimestamp(t *testing.T) {
	ctx := context.Background()
	db := setup(t)
	ensure(db.Store().Put(ctx, db.tables.Membership, org1Members.Key(), []byte("u1"), []byte{1, 2, 3}, 1))

	if _, err := db.GetItemsInCollection(ctx, org1Members); !errors.Is(err, ErrDecode) {
		t.Errorf("GetItemsInCollection err = %v, wanted ErrDecode", err)
	}
	if _, _, err := db.MemberSince(ctx, org1Members, "u1"); !errors.Is(err, ErrDecode) {
		t.Errorf("MemberSince err = %v, wanted ErrDecode", err)
	}
}

func TestContainer(t *testing.T) {
	deepEqual(t, org1Members.Key(), "org1:members")
	deepEqual(t, must(ParseContainer("org1:members")), org1Members)
	deepEqual(t, must(ParseContainer("tenant:42:members")), Container{Owner: "tenant:42", Collection: "members"})
	for _, s := range []string{"", "org1", ":members", "org1:"} {
		if _, err := ParseContainer(s); err == nil {
			t.Errorf("ParseContainer(%q) succeeded, wanted error", s)
		}
	}

	deepEqual(t, uniqueContainers([]Container{org1Members, org2Members, org1Members}), []Container{org1Members, org2Members})
	deepEqual(t, uniqueContainers(nil), []Container(nil))

	if err := (Container{Owner: "a:b", Collection: "c"}).validate(); err != nil {
		t.Errorf("validate with colon in owner: %v", err)
	}
}
