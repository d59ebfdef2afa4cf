package contracttable

import (
	"github.com/iotaledger/hive.go/ierrors"
)

var (
	// ErrInvalidTablePayer is returned when a row mutation names no payer.
	ErrInvalidTablePayer = ierrors.New("invalid table payer")

	// ErrTransaction is returned for access violations and constraint
	// failures inside cursor operations.
	ErrTransaction = ierrors.New("transaction error")

	// ErrInvalidIterator is returned for stale, deleted, or out of range
	// iterator handles.
	ErrInvalidIterator = ierrors.New("invalid iterator")

	// ErrTableQuery is returned for malformed scan requests: unparsable
	// bounds, unknown index positions, or unsupported key types.
	ErrTableQuery = ierrors.New("table query error")
)
