/*
Package indexedcoll maintains attribute indexes for items stored in a sorted
wide-column store (Bolt, Badger or in-memory), scoped by containers.

We implement:

1. Item records: one row per item, one column per attribute.

2. Containers (owner:collection) with a flat membership list.

3. Per-container, per-attribute indexes that answer range queries over
attribute values, with pagination and reverse scans.

4. A per-item ledger of what each attribute is currently indexed under, so that
a write retracts exactly the stale index entries.

# Technical Details

**Store.**
A store holds tables, tables hold rows, rows hold columns sorted bytewise.
Bolt maps tables to root buckets and rows to nested buckets; Badger prefixes
every key with the encoded table and row names.

**Cells.**
Every column value is a cell: flags (uvarint), write timestamp (8 bytes),
xxhash64 of the payload (8 bytes), payload. A mutation older than the stored
cell is ignored (last write wins). Deletes store tombstone cells, except for
ledger and index columns: their names carry a version stamp ID and are never
written twice, so they are purged outright.

**Typed values.**
Indexed values are classified into Bytes, UTF-8, UUID or Integer. Every key
carrying a value starts with the type code, so values of different types never
compare by value.

**Composite keys**.
A composite is a tuple of byte components. Each component is written with
0x00 escaped as 0x00 0xFF, then 0x00 and an end-of-component byte: 0x01 in
stored keys, 0x00 or 0x02 in scan bounds to sort before or after every key
sharing the prefix. This is the only mechanism for inclusive and exclusive
bounds.

**Tables** (default names):

	Item                row itemKey, column attr, value msgpack(value)
	Item_Index_Entries  row itemKey, column (attr, stampID), value msgpack{code, data}
	Collection_Index    row owner:collection:attr, column (code, value, itemKey, stampID)
	Collection          row owner:collection, column itemKey, value timestamp

**Writes.**
SetItemColumn scans the ledger of (item, attr), deletes every entry it finds
from the ledger and from the index of each listed container, inserts the new
entry everywhere, updates the item record, and commits it all as one batch at
the version stamp's timestamp.
*/
package indexedcoll
