package resource

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/chainstate/pkg/types"
)

func TestAccumulatorFirstUse(t *testing.T) {
	var a UsageAccumulator
	require.NoError(t, a.Add(100, 1, 10))
	require.EqualValues(t, 100, a.Consumed)
	require.EqualValues(t, 100*Precision/10, a.ValueEx)
	require.EqualValues(t, 10, a.Average())
}

func TestAccumulatorDecay(t *testing.T) {
	var a UsageAccumulator
	require.NoError(t, a.Add(100, 1, 10))
	valueBefore := a.ValueEx

	// half the window elapses, half the value decays
	require.NoError(t, a.Add(0, 6, 10))
	require.EqualValues(t, valueBefore/2, a.ValueEx)

	// a full window elapses, everything decays
	require.NoError(t, a.Add(0, 16, 10))
	require.EqualValues(t, 0, a.ValueEx)
	require.EqualValues(t, 0, a.Consumed)
}

func TestAccumulatorOrdinalMonotonicity(t *testing.T) {
	var a UsageAccumulator
	require.NoError(t, a.Add(1, 10, 10))
	require.ErrorIs(t, a.Add(1, 9, 10), ErrStateInconsistent)
}

func TestAccumulatorOverflowGuards(t *testing.T) {
	var a UsageAccumulator
	require.ErrorIs(t, a.Add(math.MaxUint64/Precision+1, 1, 10), ErrStateInconsistent)

	a = UsageAccumulator{Consumed: math.MaxUint64, LastOrdinal: 1}
	require.ErrorIs(t, a.Add(1, 1, 10), ErrStateInconsistent)
}

func TestAccumulatorSameOrdinalAccumulates(t *testing.T) {
	var a UsageAccumulator
	require.NoError(t, a.Add(10, 1, 10))
	require.NoError(t, a.Add(10, 1, 10))
	require.EqualValues(t, 20, a.Consumed)
	require.EqualValues(t, 2*Precision, a.ValueEx)
}

func TestAccumulatorCeilAverage(t *testing.T) {
	a := UsageAccumulator{ValueEx: 1}
	require.EqualValues(t, 1, a.Average())
	a.ValueEx = Precision
	require.EqualValues(t, 1, a.Average())
	a.ValueEx = Precision + 1
	require.EqualValues(t, 2, a.Average())
}

func TestUpdateElasticLimit(t *testing.T) {
	params := ElasticLimitParameters{
		Target:        1000,
		Max:           10000,
		Periods:       120,
		MaxMultiplier: 10,
		ContractRate:  Ratio{Numerator: 99, Denominator: 100},
		ExpandRate:    Ratio{Numerator: 1000, Denominator: 999},
	}

	// congested: contracts toward max
	require.EqualValues(t, 19800, UpdateElasticLimit(20000, 2000, params))
	// idle: expands, clamped at max*multiplier
	require.EqualValues(t, 20020, UpdateElasticLimit(20000, 10, params))
	require.EqualValues(t, 100000, UpdateElasticLimit(100000, 10, params))
	// never contracts below max
	require.EqualValues(t, 10000, UpdateElasticLimit(10000, 2000, params))
}

func TestElasticParametersValidate(t *testing.T) {
	valid := DefaultCPULimitParameters()
	require.NoError(t, valid.Validate())

	broken := valid
	broken.Periods = 0
	require.Error(t, broken.Validate())

	broken = valid
	broken.ExpandRate.Denominator = 0
	require.Error(t, broken.Validate())
}

func TestAccumulatorTimeTypes(t *testing.T) {
	var a UsageAccumulator
	slot := types.BlockTimestampFromTimePoint(types.TimePointFromTime(types.BlockTimestamp(100).TimePoint().Time()))
	require.EqualValues(t, 100, slot)
	require.NoError(t, a.Add(1, slot, AccountUsageAverageWindow))
	require.Equal(t, slot, a.LastOrdinal)
}
