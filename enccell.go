package indexedcoll

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

type cellFlags uint64

const (
	cfVerBit0 = cellFlags(1 << iota)
	cfVerBit1
	cfVerBit2
	cfVerBit3

	cfTombstone

	cfVerMask       = (cfVerBit0 | cfVerBit1 | cfVerBit2 | cfVerBit3)
	cfVer1          = cfVerBit0
	cfSupportedMask = cfVerMask | cfTombstone
	cfDefault       = cfVer1

	cellHeaderSize    = 8 + 8 // timestamp + checksum, after flags
	maxCellHeaderSize = binary.MaxVarintLen64 + cellHeaderSize
)

func (cf cellFlags) ver() cellFlags {
	return cf & cfVerMask
}

// cell is what every backend stores under a column key:
//
//	flags:uvarint timestamp:64 checksum:64 payload*
//
// The timestamp is the write timestamp of the mutation that produced the cell
// and drives last-write-wins resolution; the checksum is xxhash64 of the
// payload. Deletes leave a tombstone cell (cfTombstone, empty payload) so that
// a delayed older put cannot resurrect the column.
type cell struct {
	Flags   cellFlags
	Time    int64
	Payload []byte
}

func appendCell(buf []byte, flags cellFlags, ts int64, payload []byte) []byte {
	if (flags &^ cfSupportedMask) != 0 {
		panic(fmt.Errorf("invalid cell flags %x", flags))
	}
	buf = ensureCapacity(buf, len(buf)+maxCellHeaderSize+len(payload))
	buf = appendUvarint(buf, uint64(flags))
	buf = appendUint64(buf, uint64(ts))
	buf = appendUint64(buf, xxhash.Sum64(payload))
	return appendRaw(buf, payload)
}

func encodeCell(ts int64, payload []byte) []byte {
	return appendCell(nil, cfDefault, ts, payload)
}

func encodeTombstone(ts int64) []byte {
	return appendCell(nil, cfDefault|cfTombstone, ts, nil)
}

func (c *cell) IsTombstone() bool {
	return c.Flags&cfTombstone != 0
}

// encodeMutation returns the cell a put or delete stores at ts. Purges store
// nothing.
func encodeMutation(m *mutation, ts int64) []byte {
	if m.Op == opDelete {
		return encodeTombstone(ts)
	}
	return encodeCell(ts, m.Value)
}

func (c *cell) decode(data []byte) error {
	d := makeByteDecoder(data)
	v, err := d.Uvarint()
	if err != nil {
		return err
	}
	if (v & ^uint64(cfSupportedMask)) != 0 {
		return dataErrf(data, 0, nil, "invalid cell: unsupported flags %x", v)
	}
	c.Flags = cellFlags(v)
	if c.Flags.ver() != cfVer1 {
		return dataErrf(data, 0, nil, "invalid cell: unsupported version %d", c.Flags.ver())
	}
	hdr, err := d.Raw(cellHeaderSize)
	if err != nil {
		return err
	}
	c.Time = int64(binary.BigEndian.Uint64(hdr[:8]))
	sum := binary.BigEndian.Uint64(hdr[8:])
	c.Payload = d.Buf
	if actual := xxhash.Sum64(c.Payload); actual != sum {
		return dataErrf(data, d.Off(), nil, "invalid cell: checksum %016x, wanted %016x", actual, sum)
	}
	return nil
}

func decodeCell(data []byte) (cell, error) {
	var c cell
	err := c.decode(data)
	return c, err
}

// supersedes reports whether a mutation at ts wins over the stored cell.
// Equal timestamps go to the newer mutation; cells that fail to decode are
// overwritten.
func supersedes(existing []byte, ts int64) bool {
	if existing == nil {
		return true
	}
	c, err := decodeCell(existing)
	if err != nil {
		return true
	}
	return ts >= c.Time
}
