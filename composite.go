package indexedcoll

import (
	"bytes"
	"encoding/hex"
	"strings"
)

// EOC is the end-of-component marker of a composite component. Stored keys
// always use EOCEqual; bounds use the other two to sort just before or just
// after every key that shares their prefix.
type EOC byte

const (
	EOCLess    EOC = 0x00
	EOCEqual   EOC = 0x01
	EOCGreater EOC = 0x02
)

const (
	compSep    = 0x00
	compEscape = 0xFF
)

type Component struct {
	Data []byte
	EOC  EOC
}

// Composite is an ordered tuple of byte components that encodes into a single
// sortable key.
//
// Encoding: for each component, its bytes with 0x00 escaped as 0x00 0xFF,
// then 0x00 and the EOC byte. Since EOC < 0xFF, a component sorts before any
// longer component it is a prefix of, and byte order of encoded composites
// equals component-wise order of the tuples.
type Composite []Component

func (c Composite) Add(data []byte) Composite {
	return append(c, Component{Data: data, EOC: EOCEqual})
}

func (c Composite) AddString(s string) Composite {
	return c.Add([]byte(s))
}

// AddValue appends two components: the value's type code and its encoding.
func (c Composite) AddValue(v TypedValue) Composite {
	return c.Add([]byte{byte(v.code)}).Add(v.data)
}

// Mark sets the EOC of the last component. This is the only way to make a
// bound inclusive (EOCGreater on an upper bound) or exclusive of a prefix
// (EOCGreater on a lower bound, EOCLess on an upper bound).
func (c Composite) Mark(eoc EOC) Composite {
	if len(c) == 0 {
		panic("Mark on empty composite")
	}
	r := make(Composite, len(c))
	copy(r, c)
	r[len(r)-1].EOC = eoc
	return r
}

func (c Composite) Encode(buf []byte) []byte {
	for _, comp := range c {
		buf = appendComponent(buf, comp.Data, comp.EOC)
	}
	return buf
}

func (c Composite) Bytes() []byte {
	return c.Encode(nil)
}

func (c Composite) String() string {
	var buf strings.Builder
	for i, comp := range c {
		if i > 0 {
			buf.WriteByte('|')
		}
		buf.WriteString(hex.EncodeToString(comp.Data))
		switch comp.EOC {
		case EOCLess:
			buf.WriteByte('<')
		case EOCGreater:
			buf.WriteByte('>')
		}
	}
	return buf.String()
}

func (c Composite) Equal(another Composite) bool {
	if len(c) != len(another) {
		return false
	}
	for i, comp := range c {
		if comp.EOC != another[i].EOC || !bytes.Equal(comp.Data, another[i].Data) {
			return false
		}
	}
	return true
}

func appendComponent(buf []byte, data []byte, eoc EOC) []byte {
	buf = ensureCapacity(buf, len(buf)+len(data)+2)
	for _, b := range data {
		if b == compSep {
			buf = append(buf, compSep, compEscape)
		} else {
			buf = append(buf, b)
		}
	}
	return append(buf, compSep, byte(eoc))
}

// DecodeComposite splits an encoded key back into components. Component data
// aliases raw unless it contained escaped zero bytes.
func DecodeComposite(raw []byte) (Composite, error) {
	var c Composite
	rest := raw
	for len(rest) > 0 {
		i := bytes.IndexByte(rest, compSep)
		if i < 0 || i+1 >= len(rest) {
			return nil, dataErrf(raw, len(raw)-len(rest), nil, "invalid composite: unterminated component %d", len(c))
		}
		if rest[i+1] != compEscape {
			// fast path, no escapes
			eoc := EOC(rest[i+1])
			if eoc > EOCGreater {
				return nil, dataErrf(raw, len(raw)-len(rest)+i+1, nil, "invalid composite: bad end-of-component byte %x", byte(eoc))
			}
			c = append(c, Component{Data: rest[:i], EOC: eoc})
			rest = rest[i+2:]
			continue
		}

		var data []byte
		for {
			i := bytes.IndexByte(rest, compSep)
			if i < 0 || i+1 >= len(rest) {
				return nil, dataErrf(raw, len(raw)-len(rest), nil, "invalid composite: unterminated component %d", len(c))
			}
			data = append(data, rest[:i]...)
			if rest[i+1] == compEscape {
				data = append(data, compSep)
				rest = rest[i+2:]
				continue
			}
			eoc := EOC(rest[i+1])
			if eoc > EOCGreater {
				return nil, dataErrf(raw, len(raw)-len(rest)+i+1, nil, "invalid composite: bad end-of-component byte %x", byte(eoc))
			}
			c = append(c, Component{Data: data, EOC: eoc})
			rest = rest[i+2:]
			break
		}
	}
	return c, nil
}
