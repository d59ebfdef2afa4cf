package resource

import (
	"github.com/iotaledger/hive.go/ierrors"
)

var (
	// ErrTxCPUUsageExceeded is returned when an authorizing account lacks
	// CPU capacity for a transaction.
	ErrTxCPUUsageExceeded = ierrors.New("transaction cpu usage exceeded")

	// ErrTxNetUsageExceeded is returned when an authorizing account lacks
	// NET capacity for a transaction.
	ErrTxNetUsageExceeded = ierrors.New("transaction net usage exceeded")

	// ErrBlockResourceExhausted is returned when accepting a transaction
	// would push the pending block past its resource limits.
	ErrBlockResourceExhausted = ierrors.New("block resource exhausted")

	// ErrRAMUsageExceeded is returned when an account holds more RAM than
	// its quota allows.
	ErrRAMUsageExceeded = ierrors.New("ram usage exceeded")

	// ErrStateInconsistent reports arithmetic that the accounting state
	// guarantees impossible; hitting it means the state is corrupt.
	ErrStateInconsistent = ierrors.New("rate limiting state inconsistent")

	// ErrTransaction is returned for transaction-level violations such as
	// releasing more RAM than an account holds.
	ErrTransaction = ierrors.New("transaction exception")
)
