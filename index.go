package indexedcoll

import (
	"github.com/google/uuid"
)

// IndexPartitionKey is the index row holding every entry of attr within
// container.
func IndexPartitionKey(c Container, attr string) string {
	return c.Key() + ":" + attr
}

// indexColumn is composite(code, value, itemKey, stampID). Entries sort by
// value, ties broken by item key, then by stamp.
func indexColumn(tv TypedValue, itemKey string, id uuid.UUID) []byte {
	return Composite{}.AddValue(tv).AddString(itemKey).Add(id[:]).Bytes()
}

type indexEntry struct {
	Value   TypedValue
	ItemKey string
	StampID uuid.UUID
}

func decodeIndexColumn(raw []byte) (indexEntry, error) {
	c, err := DecodeComposite(raw)
	if err != nil {
		return indexEntry{}, err
	}
	if len(c) != 4 || len(c[0].Data) != 1 || len(c[3].Data) != 16 {
		return indexEntry{}, dataErrf(raw, 0, nil, "invalid index column")
	}
	tv, err := decodeTypedValue(ValueCode(c[0].Data[0]), c[1].Data)
	if err != nil {
		return indexEntry{}, err
	}
	return indexEntry{
		Value:   tv,
		ItemKey: string(c[2].Data),
		StampID: uuid.UUID(c[3].Data),
	}, nil
}
