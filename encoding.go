package indexedcoll

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeValue appends the msgpack encoding of v. Map keys are sorted so that
// equal values always encode to equal bytes.
func encodeValue(buf []byte, v any) ([]byte, error) {
	bb := bytesBuilder{buf}
	enc := msgpack.GetEncoder()
	enc.ResetDict(&bb, nil)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, fmt.Errorf("%w: %T: %v", ErrInvalidValueEncoding, v, err)
	}
	return bb.Buf, nil
}

func decodeValue(buf []byte, dest any) error {
	var r bytes.Reader
	r.Reset(buf)
	dec := msgpack.GetDecoder()
	dec.ResetDict(&r, nil)
	err := dec.Decode(dest)
	msgpack.PutDecoder(dec)
	if err != nil {
		return dataErrf(buf, 0, err, "failed to decode msgpack into %T", dest)
	}
	return nil
}

// ledgerRecord is the ledger cell payload: the classified value the entry
// was indexed under.
type ledgerRecord struct {
	Code ValueCode `msgpack:"c"`
	Data []byte    `msgpack:"d"`
}

func encodeLedgerValue(tv TypedValue) []byte {
	return must(encodeValue(nil, &ledgerRecord{Code: tv.code, Data: tv.data}))
}

func decodeLedgerValue(buf []byte) (TypedValue, error) {
	var rec ledgerRecord
	if err := decodeValue(buf, &rec); err != nil {
		return TypedValue{}, err
	}
	return decodeTypedValue(rec.Code, rec.Data)
}

// itemValue is what the item record stores for an attribute: the caller's
// original value, or the Go form of a TypedValue. Big integers are stored as
// int64 when they fit and as decimal strings otherwise.
func itemValue(value any) any {
	if tv, ok := value.(TypedValue); ok {
		value = tv.Value()
	}
	switch v := value.(type) {
	case *big.Int:
		if v.IsInt64() {
			return v.Int64()
		}
		return v.String()
	case big.Int:
		return itemValue(&v)
	}
	return value
}
