package indexedcoll

import (
	"bytes"
	"context"
	"log/slog"
)

const (
	debugLogRawScans = false
)

// ColumnRange defines a range of column keys within one row. The
// constructors use mnemonics: O means open, I means inclusive, E means
// exclusive; the first letter is for the lower bound, the second for the upper
// bound. Bounds compare bytewise; Reverse only changes the scan direction.
type ColumnRange struct {
	Lower    []byte
	Upper    []byte
	LowerInc bool
	UpperInc bool
	Reverse  bool
}

func RangeOO() ColumnRange            { return ColumnRange{} }
func RangeIO(l []byte) ColumnRange    { return ColumnRange{Lower: l, LowerInc: true} }
func RangeEO(l []byte) ColumnRange    { return ColumnRange{Lower: l, LowerInc: false} }
func RangeOI(u []byte) ColumnRange    { return ColumnRange{Upper: u, UpperInc: true} }
func RangeOE(u []byte) ColumnRange    { return ColumnRange{Upper: u, UpperInc: false} }
func RangeII(l, u []byte) ColumnRange { return ColumnRange{Lower: l, Upper: u, LowerInc: true, UpperInc: true} }
func RangeIE(l, u []byte) ColumnRange {
	return ColumnRange{Lower: l, Upper: u, LowerInc: true, UpperInc: false}
}
func (rang ColumnRange) Reversed() ColumnRange { rang.Reverse = true; return rang }

func (r *ColumnRange) aboveLower(k []byte) bool {
	if r.Lower == nil {
		return true
	}
	cmp := bytes.Compare(k, r.Lower)
	return cmp > 0 || (cmp == 0 && r.LowerInc)
}

func (r *ColumnRange) belowUpper(k []byte) bool {
	if r.Upper == nil {
		return true
	}
	cmp := bytes.Compare(k, r.Upper)
	return cmp < 0 || (cmp == 0 && r.UpperInc)
}

func (r *ColumnRange) Contains(k []byte) bool {
	return r.aboveLower(k) && r.belowUpper(k)
}

// Empty reports whether no key can possibly fall into the range.
func (r *ColumnRange) Empty() bool {
	if r.Lower == nil || r.Upper == nil {
		return false
	}
	cmp := bytes.Compare(r.Lower, r.Upper)
	return cmp > 0 || (cmp == 0 && !(r.LowerInc && r.UpperInc))
}

// storageCursor iterates over the sorted columns of one row.
type storageCursor interface {
	First() (key, value []byte)
	Last() (key, value []byte)
	// Seek moves to the first key >= seek.
	Seek(seek []byte) (key, value []byte)
	Next() (key, value []byte)
	Prev() (key, value []byte)
}

func (r *ColumnRange) start(bcur storageCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	if r.Reverse {
		if r.Upper != nil {
			k, v = bcur.Seek(r.Upper)
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "SEEK to upper", hexAttr("upper", r.Upper), hexAttr("key", k))
			}
			if k == nil {
				k, v = bcur.Last()
			} else if !r.belowUpper(k) {
				k, v = bcur.Prev()
			}
		} else {
			k, v = bcur.Last()
		}
	} else {
		if r.Lower != nil {
			k, v = bcur.Seek(r.Lower)
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "SEEK to lower", hexAttr("lower", r.Lower), hexAttr("key", k))
			}
			if k != nil && !r.aboveLower(k) {
				k, v = bcur.Next()
			}
		} else {
			k, v = bcur.First()
		}
	}
	if k != nil && r.match(k, logger) {
		return k, v
	}
	return nil, nil
}

func (r *ColumnRange) next(bcur storageCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	if r.Reverse {
		k, v = bcur.Prev()
	} else {
		k, v = bcur.Next()
	}
	if k != nil && r.match(k, logger) {
		return k, v
	}
	return nil, nil
}

// match checks the bound the scan is moving towards.
func (r *ColumnRange) match(k []byte, logger *slog.Logger) bool {
	var ok bool
	if r.Reverse {
		ok = r.aboveLower(k)
	} else {
		ok = r.belowUpper(k)
	}
	if debugLogRawScans {
		logger.LogAttrs(context.Background(), slog.LevelDebug, "MATCH", hexAttr("key", k), slog.Bool("ok", ok))
	}
	return ok
}

func (rang *ColumnRange) newCursor(bcur storageCursor, logger *slog.Logger) *rangeCursor {
	if logger == nil {
		logger = slog.Default()
	}
	return &rangeCursor{rang: *rang, bcur: bcur, logger: logger}
}

type rangeCursor struct {
	rang   ColumnRange
	bcur   storageCursor
	logger *slog.Logger
	k, v   []byte
	init   bool
}

func (c *rangeCursor) Next() bool {
	if c.init {
		c.k, c.v = c.rang.next(c.bcur, c.logger)
	} else {
		c.init = true
		c.k, c.v = c.rang.start(c.bcur, c.logger)
	}
	return c.k != nil
}

func (c *rangeCursor) Key() []byte   { return c.k }
func (c *rangeCursor) Value() []byte { return c.v }
