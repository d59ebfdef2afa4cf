package statedb

import (
	"github.com/iotaledger/hive.go/ierrors"
)

var (
	// ErrNotFound is returned when a lookup by key or id matches nothing.
	ErrNotFound = ierrors.New("object not found")

	// ErrDuplicateKey is returned when an insert would collide with an
	// existing key on any index.
	ErrDuplicateKey = ierrors.New("duplicate key")

	// ErrInvalidModification is returned when a modification changes the
	// primary key of an object or collides on a secondary index.
	ErrInvalidModification = ierrors.New("invalid modification")

	// ErrTableNotRegistered is returned when an operation references a table
	// that was never registered with the store.
	ErrTableNotRegistered = ierrors.New("table not registered")

	// ErrSessionClosed is returned when a session is undone, squashed or
	// pushed after it already ended.
	ErrSessionClosed = ierrors.New("session already closed")
)
