package indexedcoll

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"reflect"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// ValueCode is the type tag of a TypedValue. It is the leading component of
// every composite key that carries a value, so values of different types are
// ordered by code and never compared to each other.
type ValueCode byte

const (
	CodeBytes   ValueCode = 0
	CodeUTF8    ValueCode = 1
	CodeUUID    ValueCode = 2
	CodeInteger ValueCode = 3
	CodeMax     ValueCode = 127
)

func (c ValueCode) String() string {
	switch c {
	case CodeBytes:
		return "bytes"
	case CodeUTF8:
		return "utf8"
	case CodeUUID:
		return "uuid"
	case CodeInteger:
		return "int"
	default:
		return fmt.Sprintf("code%d", byte(c))
	}
}

// integer encoding headers; see appendInteger
const (
	intNegative = 0x00
	intZero     = 0x01
	intPositive = 0x02
)

// TypedValue is an indexable value: one of Bytes, UTF-8 string, UUID or
// arbitrary-precision integer. The zero TypedValue is empty Bytes, which is
// also the smallest value of all.
type TypedValue struct {
	code ValueCode
	data []byte // order-preserving encoding
}

func BytesValue(b []byte) TypedValue {
	return TypedValue{CodeBytes, b}
}

func StringValue(s string) TypedValue {
	return TypedValue{CodeUTF8, []byte(s)}
}

func UUIDValue(u uuid.UUID) TypedValue {
	return TypedValue{CodeUUID, u[:]}
}

func IntValue(v int64) TypedValue {
	return BigIntValue(big.NewInt(v))
}

func BigIntValue(v *big.Int) TypedValue {
	return TypedValue{CodeInteger, appendInteger(nil, v)}
}

// Classify turns an arbitrary Go value into a TypedValue:
//
//   - string, uuid.UUID and *big.Int keep their type;
//   - every other numeric kind becomes an Integer (floats are truncated toward
//     zero, NaN and infinities are rejected);
//   - []byte is taken verbatim as Bytes;
//   - anything else becomes Bytes holding its msgpack encoding.
//
// Named types classify by their underlying kind, so time.Duration is an
// Integer and `type Status string` is a UTF-8 string.
func Classify(value any) (TypedValue, error) {
	switch v := value.(type) {
	case nil:
		return TypedValue{}, ErrNilValue
	case TypedValue:
		return v, nil
	case string:
		return StringValue(v), nil
	case uuid.UUID:
		return UUIDValue(v), nil
	case *big.Int:
		if v == nil {
			return TypedValue{}, ErrNilValue
		}
		return BigIntValue(v), nil
	case big.Int:
		return BigIntValue(&v), nil
	case []byte:
		return BytesValue(v), nil
	case int:
		return IntValue(int64(v)), nil
	case int8:
		return IntValue(int64(v)), nil
	case int16:
		return IntValue(int64(v)), nil
	case int32:
		return IntValue(int64(v)), nil
	case int64:
		return IntValue(v), nil
	case uint:
		return uintValue(uint64(v)), nil
	case uint8:
		return uintValue(uint64(v)), nil
	case uint16:
		return uintValue(uint64(v)), nil
	case uint32:
		return uintValue(uint64(v)), nil
	case uint64:
		return uintValue(v), nil
	case uintptr:
		return uintValue(uint64(v)), nil
	case float32:
		return floatValue(float64(v))
	case float64:
		return floatValue(v)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return StringValue(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntValue(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return uintValue(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return floatValue(rv.Float())
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return BytesValue(rv.Bytes()), nil
		}
	}

	raw, err := msgpack.Marshal(value)
	if err != nil {
		return TypedValue{}, fmt.Errorf("%w: %T: %v", ErrInvalidValueEncoding, value, err)
	}
	return BytesValue(raw), nil
}

// CodeOf returns the type code Classify would assign to value.
func CodeOf(value any) (ValueCode, error) {
	tv, err := Classify(value)
	if err != nil {
		return 0, err
	}
	return tv.code, nil
}

func uintValue(v uint64) TypedValue {
	return BigIntValue(new(big.Int).SetUint64(v))
}

func floatValue(f float64) (TypedValue, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return TypedValue{}, fmt.Errorf("%w: %v is not an integer", ErrInvalidValueEncoding, f)
	}
	f = math.Trunc(f)
	if f >= math.MinInt64 && f < math.MaxInt64 {
		return IntValue(int64(f)), nil
	}
	n, _ := big.NewFloat(f).Int(nil)
	return BigIntValue(n), nil
}

func (v TypedValue) Code() ValueCode {
	return v.code
}

// Encoded returns the order-preserving encoding of the value (without the
// type code).
func (v TypedValue) Encoded() []byte {
	return v.data
}

// Value returns the Go form of the value: []byte, string, uuid.UUID or
// *big.Int.
func (v TypedValue) Value() any {
	switch v.code {
	case CodeUTF8:
		return string(v.data)
	case CodeUUID:
		return uuid.UUID(v.data)
	case CodeInteger:
		return must(decodeInteger(v.data))
	default:
		return v.data
	}
}

func (v TypedValue) Compare(another TypedValue) int {
	if v.code != another.code {
		if v.code < another.code {
			return -1
		}
		return 1
	}
	return bytes.Compare(v.data, another.data)
}

func (v TypedValue) Equal(another TypedValue) bool {
	return v.Compare(another) == 0
}

func (v TypedValue) String() string {
	switch v.code {
	case CodeUTF8:
		return fmt.Sprintf("utf8:%q", v.data)
	case CodeUUID:
		return "uuid:" + uuid.UUID(v.data).String()
	case CodeInteger:
		n, err := decodeInteger(v.data)
		if err != nil {
			return "int:<invalid " + hex.EncodeToString(v.data) + ">"
		}
		return "int:" + n.String()
	default:
		return "bytes:" + hexstr(v.data)
	}
}

// decodeTypedValue validates data read back from the store.
func decodeTypedValue(code ValueCode, data []byte) (TypedValue, error) {
	switch code {
	case CodeBytes, CodeUTF8:
	case CodeUUID:
		if len(data) != 16 {
			return TypedValue{}, dataErrf(data, 0, nil, "invalid uuid value: got %d bytes, wanted 16", len(data))
		}
	case CodeInteger:
		if _, err := decodeInteger(data); err != nil {
			return TypedValue{}, err
		}
	default:
		return TypedValue{}, dataErrf([]byte{byte(code)}, 0, nil, "unknown value code %d", code)
	}
	return TypedValue{code, data}, nil
}

// appendInteger writes an order-preserving encoding of n:
//
//	zero:     0x01
//	positive: 0x02 len:32 magnitude
//	negative: 0x00 ^len:32 ^magnitude
func appendInteger(buf []byte, n *big.Int) []byte {
	switch n.Sign() {
	case 0:
		return append(buf, intZero)
	case 1:
		mag := n.Bytes()
		buf = append(buf, intPositive)
		buf = appendUint32(buf, uint32(len(mag)))
		return appendRaw(buf, mag)
	default:
		mag := n.Bytes()
		buf = append(buf, intNegative)
		buf = appendUint32(buf, ^uint32(len(mag)))
		var off int
		off, buf = grow(buf, len(mag))
		for i, b := range mag {
			buf[off+i] = ^b
		}
		return buf
	}
}

func decodeInteger(data []byte) (*big.Int, error) {
	if len(data) == 0 {
		return nil, dataErrf(data, 0, nil, "invalid integer: empty")
	}
	switch data[0] {
	case intZero:
		if len(data) != 1 {
			return nil, dataErrf(data, 1, nil, "invalid integer: trailing bytes after zero")
		}
		return new(big.Int), nil
	case intPositive, intNegative:
		if len(data) < 5 {
			return nil, dataErrf(data, 1, nil, "invalid integer: missing length")
		}
		n := binary.BigEndian.Uint32(data[1:5])
		neg := data[0] == intNegative
		if neg {
			n = ^n
		}
		mag := data[5:]
		if uint64(len(mag)) != uint64(n) || n == 0 {
			return nil, dataErrf(data, 5, nil, "invalid integer: got %d magnitude bytes, wanted %d", len(mag), n)
		}
		if neg {
			inv := make([]byte, len(mag))
			for i, b := range mag {
				inv[i] = ^b
			}
			mag = inv
		}
		if mag[0] == 0 {
			return nil, dataErrf(data, 5, nil, "invalid integer: non-canonical magnitude")
		}
		v := new(big.Int).SetBytes(mag)
		if neg {
			v.Neg(v)
		}
		return v, nil
	default:
		return nil, dataErrf(data, 0, nil, "invalid integer header %x", data[0])
	}
}
