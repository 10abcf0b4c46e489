package indexedcoll

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// DB maintains attribute indexes for items scoped by containers on top of a
// Store. It is safe for concurrent use and holds no locks of its own; every
// SetItemColumn is one ledger scan plus one batch commit.
type DB struct {
	store         Store
	tables        Tables
	clock         Clock
	logger        *slog.Logger
	verbose       bool
	metrics       *Metrics
	defaultLimit  int
	fetchAllLimit int

	WriteCount  atomic.Uint64
	SearchCount atomic.Uint64
	ErrorCount  atomic.Uint64
}

type Options struct {
	// Tables defaults to DefaultTables() when zero.
	Tables Tables

	// Clock defaults to NewClock().
	Clock Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Verbose logs every mutation at debug level.
	Verbose bool

	// Metrics may be nil.
	Metrics *Metrics

	// DefaultLimit and FetchAllLimit override the package defaults when
	// positive.
	DefaultLimit  int
	FetchAllLimit int
}

func New(store Store, opt Options) (*DB, error) {
	if store == nil {
		return nil, errors.New("indexedcoll: nil store")
	}
	tables := opt.Tables
	if tables == (Tables{}) {
		tables = DefaultTables()
	}
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("indexedcoll: %w", err)
	}
	db := &DB{
		store:         store,
		tables:        tables,
		clock:         opt.Clock,
		logger:        opt.Logger,
		verbose:       opt.Verbose,
		metrics:       opt.Metrics,
		defaultLimit:  DefaultLimit,
		fetchAllLimit: FetchAllLimit,
	}
	if db.clock == nil {
		db.clock = NewClock()
	}
	if db.logger == nil {
		db.logger = slog.Default()
	}
	if opt.FetchAllLimit > 0 {
		db.fetchAllLimit = opt.FetchAllLimit
	}
	if opt.DefaultLimit > 0 {
		db.defaultLimit = min(opt.DefaultLimit, db.fetchAllLimit)
	}
	return db, nil
}

func (db *DB) Store() Store {
	return db.store
}

func (db *DB) Tables() Tables {
	return db.tables
}

// Close closes the underlying store.
func (db *DB) Close() error {
	return db.store.Close()
}
