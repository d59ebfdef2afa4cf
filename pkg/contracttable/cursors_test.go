package contracttable_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/kvstore/mapdb"

	"github.com/iotaledger/chainstate/pkg/contracttable"
	"github.com/iotaledger/chainstate/pkg/statedb"
	"github.com/iotaledger/chainstate/pkg/types"
)

var (
	code     = types.MustNameFromString("mycontract")
	scope    = types.MustNameFromString("myscope")
	table    = types.MustNameFromString("mytable")
	alice    = types.MustNameFromString("alice")
	bob      = types.MustNameFromString("bob")
	noOwner  = types.Name(0)
	rowFixed = int64(contracttable.KeyValueFixedBillable())
)

func newTestStore(t *testing.T) *statedb.Store {
	store, err := statedb.New(mapdb.NewMapDB())
	require.NoError(t, err)
	require.NoError(t, contracttable.RegisterTables(store))

	return store
}

func TestStoreAndFind(t *testing.T) {
	store := newTestStore(t)
	c := contracttable.NewCursors(store, code)

	itr, deltas, err := c.StoreI64(scope, table, alice, 1, []byte("abcd"))
	require.NoError(t, err)
	require.EqualValues(t, 0, itr)
	require.Equal(t, []contracttable.RAMDelta{
		{Payer: alice, Bytes: int64(contracttable.TableBillable())},
		{Payer: alice, Bytes: 4 + rowFixed},
	}, deltas)

	row, err := c.GetI64(itr)
	require.NoError(t, err)
	require.Equal(t, []byte("abcd"), row.Value)
	require.Equal(t, alice, row.Payer)
	require.EqualValues(t, 1, row.Primary)

	// a second row in the same table does not bill the table again
	_, deltas, err = c.StoreI64(scope, table, bob, 2, []byte("xy"))
	require.NoError(t, err)
	require.Equal(t, []contracttable.RAMDelta{{Payer: bob, Bytes: 2 + rowFixed}}, deltas)

	found, err := c.FindI64(code, scope, table, 1)
	require.NoError(t, err)
	require.Equal(t, itr, found)

	end, err := c.FindI64(code, scope, table, 99)
	require.NoError(t, err)
	require.EqualValues(t, -2, end)

	missing, err := c.FindI64(code, scope, types.MustNameFromString("notable"), 1)
	require.NoError(t, err)
	require.EqualValues(t, -1, missing)

	_, _, err = c.StoreI64(scope, table, noOwner, 3, nil)
	require.ErrorIs(t, err, contracttable.ErrInvalidTablePayer)
}

func TestPrimaryIteration(t *testing.T) {
	store := newTestStore(t)
	c := contracttable.NewCursors(store, code)

	for primary := uint64(1); primary <= 3; primary++ {
		_, _, err := c.StoreI64(scope, table, alice, primary, []byte{byte(primary)})
		require.NoError(t, err)
	}

	itr, err := c.FindI64(code, scope, table, 1)
	require.NoError(t, err)

	itr, primary, err := c.NextI64(itr)
	require.NoError(t, err)
	require.EqualValues(t, 2, primary)

	itr, primary, err = c.NextI64(itr)
	require.NoError(t, err)
	require.EqualValues(t, 3, primary)

	end, _, err := c.NextI64(itr)
	require.NoError(t, err)
	require.EqualValues(t, -2, end)

	// incrementing past the end is absorbed
	itr, _, err = c.NextI64(end)
	require.NoError(t, err)
	require.EqualValues(t, -1, itr)

	// stepping back from the end iterator lands on the last row
	itr, primary, err = c.PreviousI64(end)
	require.NoError(t, err)
	require.EqualValues(t, 3, primary)

	first, err := c.FindI64(code, scope, table, 1)
	require.NoError(t, err)
	itr, _, err = c.PreviousI64(first)
	require.NoError(t, err)
	require.EqualValues(t, -1, itr)

	lower, err := c.LowerboundI64(code, scope, table, 2)
	require.NoError(t, err)
	row, err := c.GetI64(lower)
	require.NoError(t, err)
	require.EqualValues(t, 2, row.Primary)

	upper, err := c.UpperboundI64(code, scope, table, 2)
	require.NoError(t, err)
	row, err = c.GetI64(upper)
	require.NoError(t, err)
	require.EqualValues(t, 3, row.Primary)

	upper, err = c.UpperboundI64(code, scope, table, 3)
	require.NoError(t, err)
	require.EqualValues(t, -2, upper)

	end, err = c.EndI64(code, scope, table)
	require.NoError(t, err)
	require.EqualValues(t, -2, end)

	end, err = c.EndI64(code, scope, types.MustNameFromString("notable"))
	require.NoError(t, err)
	require.EqualValues(t, -1, end)
}

func TestUpdateBilling(t *testing.T) {
	store := newTestStore(t)
	c := contracttable.NewCursors(store, code)

	itr, _, err := c.StoreI64(scope, table, alice, 1, make([]byte, 8))
	require.NoError(t, err)

	// an empty payer keeps the existing one and bills the size delta
	deltas, err := c.UpdateI64(itr, noOwner, make([]byte, 20))
	require.NoError(t, err)
	require.Equal(t, []contracttable.RAMDelta{{Payer: alice, Bytes: 12}}, deltas)

	row, err := c.GetI64(itr)
	require.NoError(t, err)
	require.Equal(t, alice, row.Payer)
	require.Len(t, row.Value, 20)

	// a payer change moves the full row billing
	deltas, err = c.UpdateI64(itr, bob, make([]byte, 10))
	require.NoError(t, err)
	require.Equal(t, []contracttable.RAMDelta{
		{Payer: alice, Bytes: -(20 + rowFixed)},
		{Payer: bob, Bytes: 10 + rowFixed},
	}, deltas)

	deltas, err = c.UpdateI64(itr, bob, make([]byte, 10))
	require.NoError(t, err)
	require.Empty(t, deltas)

	// another contract may read the table but not write it
	foreign := contracttable.NewCursors(store, types.MustNameFromString("othercode"))
	foreignItr, err := foreign.FindI64(code, scope, table, 1)
	require.NoError(t, err)
	require.GreaterOrEqual(t, foreignItr, int32(0))

	_, err = foreign.UpdateI64(foreignItr, noOwner, nil)
	require.ErrorIs(t, err, contracttable.ErrTransaction)
	require.ErrorContains(t, err, "db access violation")

	_, err = foreign.RemoveI64(foreignItr)
	require.ErrorContains(t, err, "db access violation")
}

func TestRemoveLifecycle(t *testing.T) {
	store := newTestStore(t)
	c := contracttable.NewCursors(store, code)

	itr1, _, err := c.StoreI64(scope, table, alice, 1, make([]byte, 3))
	require.NoError(t, err)
	itr2, _, err := c.StoreI64(scope, table, bob, 2, make([]byte, 5))
	require.NoError(t, err)

	deltas, err := c.RemoveI64(itr2)
	require.NoError(t, err)
	require.Equal(t, []contracttable.RAMDelta{{Payer: bob, Bytes: -(5 + rowFixed)}}, deltas)

	_, err = c.GetI64(itr2)
	require.ErrorIs(t, err, contracttable.ErrInvalidIterator)

	// removing the last row drops the table and refunds its payer
	deltas, err = c.RemoveI64(itr1)
	require.NoError(t, err)
	require.Equal(t, []contracttable.RAMDelta{
		{Payer: alice, Bytes: -(3 + rowFixed)},
		{Payer: alice, Bytes: -int64(contracttable.TableBillable())},
	}, deltas)

	itr, err := c.FindI64(code, scope, table, 1)
	require.NoError(t, err)
	require.EqualValues(t, -1, itr)
}

func TestSecondaryI64(t *testing.T) {
	store := newTestStore(t)
	c := contracttable.NewCursors(store, code)
	idx := c.IdxI64

	itr1, deltas, err := idx.Store(scope, table, alice, 1, 300)
	require.NoError(t, err)
	require.Equal(t, []contracttable.RAMDelta{
		{Payer: alice, Bytes: int64(contracttable.TableBillable())},
		{Payer: alice, Bytes: int64(contracttable.IndexI64Billable())},
	}, deltas)
	itr2, _, err := idx.Store(scope, table, alice, 2, 100)
	require.NoError(t, err)
	_, _, err = idx.Store(scope, table, alice, 3, 200)
	require.NoError(t, err)

	itr, primary, err := idx.FindSecondary(code, scope, table, 200)
	require.NoError(t, err)
	require.GreaterOrEqual(t, itr, int32(0))
	require.EqualValues(t, 3, primary)

	end, _, err := idx.FindSecondary(code, scope, table, 250)
	require.NoError(t, err)
	require.EqualValues(t, -2, end)

	itr, secondary, err := idx.FindPrimary(code, scope, table, 2)
	require.NoError(t, err)
	require.EqualValues(t, 100, secondary)

	itr, secondary, primary, err = idx.LowerboundSecondary(code, scope, table, 150)
	require.NoError(t, err)
	require.EqualValues(t, 200, secondary)
	require.EqualValues(t, 3, primary)

	itr, secondary, primary, err = idx.UpperboundSecondary(code, scope, table, 200)
	require.NoError(t, err)
	require.EqualValues(t, 300, secondary)
	require.EqualValues(t, 1, primary)

	// secondary ordering: 100(2) < 200(3) < 300(1)
	itr, _, _, err = idx.LowerboundSecondary(code, scope, table, 0)
	require.NoError(t, err)
	itr, primary, err = idx.NextSecondary(itr)
	require.NoError(t, err)
	require.EqualValues(t, 3, primary)
	itr, primary, err = idx.NextSecondary(itr)
	require.NoError(t, err)
	require.EqualValues(t, 1, primary)
	end, _, err = idx.NextSecondary(itr)
	require.NoError(t, err)
	require.EqualValues(t, -2, end)

	itr, primary, err = idx.PreviousSecondary(end)
	require.NoError(t, err)
	require.EqualValues(t, 1, primary)

	// primary ordering is independent of the secondary keys
	itr, primary, err = idx.NextPrimary(itr1)
	require.NoError(t, err)
	require.EqualValues(t, 2, primary)
	itr, primary, err = idx.NextPrimary(itr)
	require.NoError(t, err)
	require.EqualValues(t, 3, primary)
	itr, _, err = idx.PreviousPrimary(itr1)
	require.NoError(t, err)
	require.EqualValues(t, -1, itr)

	deltas, err = idx.Update(itr2, bob, 400)
	require.NoError(t, err)
	require.Equal(t, []contracttable.RAMDelta{
		{Payer: alice, Bytes: -int64(contracttable.IndexI64Billable())},
		{Payer: bob, Bytes: int64(contracttable.IndexI64Billable())},
	}, deltas)

	_, primary, err = idx.FindSecondary(code, scope, table, 400)
	require.NoError(t, err)
	require.EqualValues(t, 2, primary)
	end, _, err = idx.FindSecondary(code, scope, table, 100)
	require.NoError(t, err)
	require.EqualValues(t, -2, end)
}

func TestSecondaryRemoveLifecycle(t *testing.T) {
	store := newTestStore(t)
	c := contracttable.NewCursors(store, code)
	idx := c.IdxI64

	itr1, _, err := idx.Store(scope, table, alice, 1, 10)
	require.NoError(t, err)
	itr2, _, err := idx.Store(scope, table, bob, 2, 20)
	require.NoError(t, err)

	deltas, err := idx.Remove(itr2)
	require.NoError(t, err)
	require.Equal(t, []contracttable.RAMDelta{{Payer: bob, Bytes: -int64(contracttable.IndexI64Billable())}}, deltas)

	deltas, err = idx.Remove(itr1)
	require.NoError(t, err)
	require.Equal(t, []contracttable.RAMDelta{
		{Payer: alice, Bytes: -int64(contracttable.IndexI64Billable())},
		{Payer: alice, Bytes: -int64(contracttable.TableBillable())},
	}, deltas)

	end, err := idx.EndSecondary(code, scope, table)
	require.NoError(t, err)
	require.EqualValues(t, -1, end)
}

func TestSecondaryFloat64Ordering(t *testing.T) {
	store := newTestStore(t)
	c := contracttable.NewCursors(store, code)
	idx := c.IdxFloat64

	_, _, err := idx.Store(scope, table, alice, 1, 2.5)
	require.NoError(t, err)
	_, _, err = idx.Store(scope, table, alice, 2, -1.5)
	require.NoError(t, err)
	_, _, err = idx.Store(scope, table, alice, 3, 0)
	require.NoError(t, err)

	// negative keys sort before zero and positive ones
	itr, secondary, primary, err := idx.LowerboundSecondary(code, scope, table, -100)
	require.NoError(t, err)
	require.EqualValues(t, -1.5, secondary)
	require.EqualValues(t, 2, primary)

	itr, primary, err = idx.NextSecondary(itr)
	require.NoError(t, err)
	require.EqualValues(t, 3, primary)
	itr, primary, err = idx.NextSecondary(itr)
	require.NoError(t, err)
	require.EqualValues(t, 1, primary)
	end, _, err := idx.NextSecondary(itr)
	require.NoError(t, err)
	require.EqualValues(t, -2, end)
}

func TestCursorsCrossTableIsolation(t *testing.T) {
	store := newTestStore(t)
	c := contracttable.NewCursors(store, code)

	other := types.MustNameFromString("othertable")
	_, _, err := c.StoreI64(scope, table, alice, 1, []byte("a"))
	require.NoError(t, err)
	_, _, err = c.StoreI64(scope, other, alice, 1, []byte("b"))
	require.NoError(t, err)

	itr, err := c.FindI64(code, scope, table, 1)
	require.NoError(t, err)

	// advancing past the last row of a table must not leak into the next
	// table in key order
	end, _, err := c.NextI64(itr)
	require.NoError(t, err)
	require.EqualValues(t, -2, end)

	itr, err = c.FindI64(code, scope, other, 1)
	require.NoError(t, err)
	otherEnd, _, err := c.NextI64(itr)
	require.NoError(t, err)
	require.EqualValues(t, -3, otherEnd)
}
