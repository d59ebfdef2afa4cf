package types

import (
	"time"
)

// TimePoint is a microsecond-resolution point in time.
type TimePoint int64

func TimePointFromTime(t time.Time) TimePoint {
	return TimePoint(t.UnixMicro())
}

func (t TimePoint) Time() time.Time {
	return time.UnixMicro(int64(t)).UTC()
}

func (t TimePoint) String() string {
	return t.Time().Format("2006-01-02T15:04:05.000")
}

const (
	// BlockIntervalMs is the block production cadence.
	BlockIntervalMs = 500

	// BlockTimestampEpochMs is 2000-01-01T00:00:00Z in unix milliseconds.
	BlockTimestampEpochMs = 946684800000
)

// BlockTimestamp counts block intervals since the block timestamp epoch.
type BlockTimestamp uint32

func BlockTimestampFromTimePoint(t TimePoint) BlockTimestamp {
	ms := int64(t) / 1000

	return BlockTimestamp((ms - BlockTimestampEpochMs) / BlockIntervalMs)
}

func (b BlockTimestamp) TimePoint() TimePoint {
	ms := int64(b)*BlockIntervalMs + BlockTimestampEpochMs

	return TimePoint(ms * 1000)
}

func (b BlockTimestamp) Next() BlockTimestamp {
	return b + 1
}
