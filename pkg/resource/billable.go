package resource

// RAM billing constants shared by every billable object.
const (
	// BillableAlignment rounds billable sizes up to allocator granularity.
	BillableAlignment = 16

	// FixedOverheadSharedVector is the bookkeeping cost of one dynamically
	// sized field inside a billed object.
	FixedOverheadSharedVector = 32

	// OverheadPerRowPerIndex covers the index bookkeeping of one row.
	OverheadPerRowPerIndex = 32

	// OverheadPerAccount is billed once at account creation.
	OverheadPerAccount = 2 * 1024

	// SetCodeRAMBytesMultiplier scales contract code size into RAM cost.
	SetCodeRAMBytesMultiplier = 10
)

// AlignBillable rounds a raw byte count up to the billable alignment.
func AlignBillable(size uint64) uint64 {
	return (size + BillableAlignment - 1) / BillableAlignment * BillableAlignment
}
