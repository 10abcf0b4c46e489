package indexedcoll

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// VersionStamp identifies one SetItemColumn call. ID is a UUIDv7, so stamps
// issued later sort later bytewise; Time is the write timestamp of the call's
// batch in microseconds.
type VersionStamp struct {
	ID   uuid.UUID
	Time int64
}

func (vs VersionStamp) IsZero() bool {
	return vs.ID == uuid.Nil && vs.Time == 0
}

func (vs VersionStamp) String() string {
	return fmt.Sprintf("%s@%d", vs.ID, vs.Time)
}

// Clock issues version stamps.
type Clock interface {
	Stamp() (VersionStamp, error)
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() (VersionStamp, error)

func (f ClockFunc) Stamp() (VersionStamp, error) {
	return f()
}

// NewClock returns the default clock: UUIDv7 IDs and wall-clock microsecond
// timestamps that strictly increase within the process.
func NewClock() Clock {
	return &systemClock{now: time.Now}
}

type systemClock struct {
	now  func() time.Time
	last atomic.Int64
}

func (c *systemClock) Stamp() (VersionStamp, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return VersionStamp{}, fmt.Errorf("version stamp: %w", err)
	}
	return VersionStamp{ID: id, Time: c.next()}, nil
}

func (c *systemClock) next() int64 {
	ts := c.now().UnixMicro()
	for {
		last := c.last.Load()
		if ts <= last {
			ts = last + 1
		}
		if c.last.CompareAndSwap(last, ts) {
			return ts
		}
	}
}
