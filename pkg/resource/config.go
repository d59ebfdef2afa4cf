package resource

import (
	"github.com/iotaledger/hive.go/ierrors"

	"github.com/iotaledger/chainstate/pkg/types"
)

// Accounting constants. Windows are measured in block intervals.
const (
	// Precision scales average usage values so that integer decay keeps
	// sub-unit remainders.
	Precision = 1_000_000

	// AccountUsageAverageWindow smooths per-account usage over one day.
	AccountUsageAverageWindow = 24 * 60 * 60 * 1000 / types.BlockIntervalMs

	// BlockUsageAverageWindow smooths block usage over one minute.
	BlockUsageAverageWindow = 60 * 1000 / types.BlockIntervalMs

	// MaxElasticResourceMultiplier caps how far an uncongested chain may
	// stretch its virtual limits above the guaranteed minimum.
	MaxElasticResourceMultiplier = 1000

	DefaultMaxBlockNetUsage      = 1024 * 1024
	DefaultTargetBlockNetUsage   = DefaultMaxBlockNetUsage / 10
	DefaultMaxBlockCPUUsage      = 200_000
	DefaultTargetBlockCPUUsage   = DefaultMaxBlockCPUUsage / 10
	DefaultMaxTransactionNet     = DefaultMaxBlockNetUsage / 2
	DefaultMaxTransactionCPU     = DefaultMaxBlockCPUUsage / 2
)

// Ratio is a rational scaling factor applied with 128-bit intermediates.
type Ratio struct {
	Numerator   uint64
	Denominator uint64
}

func (r Ratio) Apply(value uint64) uint64 {
	wide, err := types.Mul64(value, r.Numerator).DivUint64(r.Denominator)
	if err != nil {
		panic(ierrors.Wrap(ErrStateInconsistent, "ratio with zero denominator"))
	}
	result, err := wide.Uint64()
	if err != nil {
		panic(ierrors.Wrap(ErrStateInconsistent, "ratio application overflows"))
	}

	return result
}

// ElasticLimitParameters drive the congestion pricing of one resource: when
// average usage sits above Target, the virtual limit contracts toward Max;
// below it, the limit expands toward Max*MaxMultiplier.
type ElasticLimitParameters struct {
	Target        uint64
	Max           uint64
	Periods       uint32
	MaxMultiplier uint32
	ContractRate  Ratio
	ExpandRate    Ratio
}

func (p ElasticLimitParameters) Validate() error {
	if p.Periods == 0 {
		return ierrors.New("elastic limit periods cannot be zero")
	}
	if p.ContractRate.Denominator == 0 {
		return ierrors.New("elastic limit contract rate denominator cannot be zero")
	}
	if p.ExpandRate.Denominator == 0 {
		return ierrors.New("elastic limit expand rate denominator cannot be zero")
	}

	return nil
}

func DefaultCPULimitParameters() ElasticLimitParameters {
	return ElasticLimitParameters{
		Target:        DefaultTargetBlockCPUUsage,
		Max:           DefaultMaxBlockCPUUsage,
		Periods:       BlockUsageAverageWindow,
		MaxMultiplier: MaxElasticResourceMultiplier,
		ContractRate:  Ratio{Numerator: 99, Denominator: 100},
		ExpandRate:    Ratio{Numerator: 1000, Denominator: 999},
	}
}

func DefaultNetLimitParameters() ElasticLimitParameters {
	return ElasticLimitParameters{
		Target:        DefaultTargetBlockNetUsage,
		Max:           DefaultMaxBlockNetUsage,
		Periods:       BlockUsageAverageWindow,
		MaxMultiplier: MaxElasticResourceMultiplier,
		ContractRate:  Ratio{Numerator: 99, Denominator: 100},
		ExpandRate:    Ratio{Numerator: 1000, Denominator: 999},
	}
}

// UpdateElasticLimit moves a virtual limit one step along the congestion
// curve and clamps it to [Max, Max*MaxMultiplier].
func UpdateElasticLimit(currentLimit, averageUsage uint64, params ElasticLimitParameters) uint64 {
	result := currentLimit
	if averageUsage > params.Target {
		result = params.ContractRate.Apply(result)
	} else {
		result = params.ExpandRate.Apply(result)
	}

	ceiling := params.Max * uint64(params.MaxMultiplier)
	if result > ceiling {
		result = ceiling
	}
	if result < params.Max {
		result = params.Max
	}

	return result
}
