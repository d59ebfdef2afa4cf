package statedb

import (
	"encoding/binary"
)

// IndexKey names one index entry of an object. Keys compare bytewise, so
// numeric components must be encoded big-endian.
type IndexKey struct {
	Index string
	Key   []byte
}

// Object is a row of a registered table. The first element of IndexKeys is
// the primary index; it must be unique and immutable for the lifetime of the
// object. Further entries are secondary indexes, made unique by construction
// (logically non-unique indexes append the object id to their key).
//
// Objects handed out by the store are copies; mutations only take effect
// through Modify.
type Object interface {
	// TableName identifies the table the object belongs to. It must be
	// callable on a zero value.
	TableName() string

	ID() uint64
	SetID(id uint64)

	IndexKeys() []IndexKey

	Bytes() ([]byte, error)
	FromBytes(data []byte) error

	Clone() Object
}

// ObjectPtr constrains T to a pointer to a concrete object type, so generic
// lookups can allocate fresh instances.
type ObjectPtr[U any] interface {
	*U
	Object
}

// CompositeKey concatenates key components into a single index key.
func CompositeKey(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	key := make([]byte, 0, size)
	for _, p := range parts {
		key = append(key, p...)
	}

	return key
}

// Uint64Key encodes v big-endian so that memcmp order equals numeric order.
func Uint64Key(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)

	return b
}

// PrefixEnd returns the smallest key greater than every key starting with
// prefix, or nil when no such key exists.
func PrefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xff {
			end[i]++

			return end[:i+1]
		}
	}

	return nil
}
