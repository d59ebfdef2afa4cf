package resource

import (
	"math"

	"github.com/iotaledger/hive.go/ierrors"

	"github.com/iotaledger/chainstate/pkg/types"
)

// UsageAccumulator tracks an exponentially decaying average of consumed
// units over a sliding window of block intervals. ValueEx carries the
// average scaled by Precision so integer decay keeps fractional remainders.
type UsageAccumulator struct {
	LastOrdinal types.BlockTimestamp
	ValueEx     uint64
	Consumed    uint64
}

// Average returns the current average in natural units, rounded up.
func (a *UsageAccumulator) Average() uint64 {
	return ceilDiv(a.ValueEx, Precision)
}

// Add decays the accumulator to ordinal and charges units against it.
// Ordinals must never move backwards.
func (a *UsageAccumulator) Add(units uint64, ordinal types.BlockTimestamp, windowSize uint32) error {
	if units > math.MaxUint64/Precision {
		return ierrors.Wrap(ErrStateInconsistent, "usage exceeds maximum value representable after extending for precision")
	}

	if a.LastOrdinal != ordinal {
		if ordinal < a.LastOrdinal {
			return ierrors.Wrap(ErrStateInconsistent, "new ordinal cannot be less than the previous ordinal")
		}

		if a.LastOrdinal+types.BlockTimestamp(windowSize) > ordinal {
			delta := uint64(ordinal - a.LastOrdinal)
			decayed, err := types.Mul64(a.ValueEx, uint64(windowSize)-delta).DivUint64(uint64(windowSize))
			if err != nil {
				return ierrors.Wrap(ErrStateInconsistent, err.Error())
			}
			a.ValueEx, err = decayed.Uint64()
			if err != nil {
				return ierrors.Wrap(ErrStateInconsistent, "decayed value overflows")
			}
		} else {
			a.ValueEx = 0
		}

		a.LastOrdinal = ordinal
		a.Consumed = a.Average()
	}

	if a.Consumed > math.MaxUint64-units {
		return ierrors.Wrap(ErrStateInconsistent, "overflow in tracked usage when adding usage")
	}
	a.Consumed += units

	contribution, err := ceilDivWide(types.Mul64(units, Precision), uint64(windowSize))
	if err != nil {
		return ierrors.Wrap(ErrStateInconsistent, err.Error())
	}
	if a.ValueEx > math.MaxUint64-contribution {
		return ierrors.Wrap(ErrStateInconsistent, "overflow in accumulated value when adding usage")
	}
	a.ValueEx += contribution

	return nil
}

func ceilDiv(value, divisor uint64) uint64 {
	if value == 0 {
		return 0
	}

	return (value-1)/divisor + 1
}

func ceilDivWide(value types.Uint128, divisor uint64) (uint64, error) {
	quotient, err := value.DivUint64(divisor)
	if err != nil {
		return 0, err
	}
	q, err := quotient.Uint64()
	if err != nil {
		return 0, err
	}
	remainderCheck, err := types.NewUint128(q).MulUint64(divisor)
	if err != nil {
		return 0, err
	}
	if remainderCheck.Cmp(value) < 0 {
		q++
	}

	return q, nil
}
