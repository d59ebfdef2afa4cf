package contracttable

import (
	"bytes"
	"math"

	"github.com/iotaledger/hive.go/ierrors"

	"github.com/iotaledger/chainstate/pkg/statedb"
	"github.com/iotaledger/chainstate/pkg/types"
)

// RAMDelta is one RAM billing consequence of a table mutation. The engine
// only reports deltas; charging them against the resource engine is the
// caller's responsibility, like every other metered mutation.
type RAMDelta struct {
	Payer types.Name
	Bytes int64
}

// Cursors is the per transaction cursor surface over the contract tables of
// one executing contract. Mutations are restricted to tables owned by code;
// reads may cross into other contracts' tables.
type Cursors struct {
	store     *statedb.Store
	code      types.Name
	keyValues *iteratorCache[KeyValue, *KeyValue]

	IdxI64      *SecondaryCursors[IndexI64, *IndexI64, uint64]
	IdxI128     *SecondaryCursors[IndexI128, *IndexI128, types.Uint128]
	IdxI256     *SecondaryCursors[IndexI256, *IndexI256, types.Uint256]
	IdxFloat64  *SecondaryCursors[IndexFloat64, *IndexFloat64, float64]
	IdxFloat128 *SecondaryCursors[IndexFloat128, *IndexFloat128, types.Uint128]
}

// NewCursors opens a cursor surface for the given executing contract.
func NewCursors(store *statedb.Store, code types.Name) *Cursors {
	c := &Cursors{
		store:     store,
		code:      code,
		keyValues: newIteratorCache[KeyValue, *KeyValue](),
	}

	c.IdxI64 = newSecondaryCursors(c, IndexI64Billable(), familyOps[IndexI64, *IndexI64, uint64]{
		construct: func(tableID, primary uint64, payer types.Name, secondary uint64) *IndexI64 {
			return &IndexI64{TableID: tableID, Primary: primary, Payer: payer, Secondary: secondary}
		},
		set:       func(row *IndexI64, secondary uint64) { row.Secondary = secondary },
		secondary: func(row *IndexI64) uint64 { return row.Secondary },
		encode:    func(secondary uint64) []byte { return statedb.Uint64Key(secondary) },
	})
	c.IdxI128 = newSecondaryCursors(c, IndexI128Billable(), familyOps[IndexI128, *IndexI128, types.Uint128]{
		construct: func(tableID, primary uint64, payer types.Name, secondary types.Uint128) *IndexI128 {
			return &IndexI128{TableID: tableID, Primary: primary, Payer: payer, Secondary: secondary}
		},
		set:       func(row *IndexI128, secondary types.Uint128) { row.Secondary = secondary },
		secondary: func(row *IndexI128) types.Uint128 { return row.Secondary },
		encode:    func(secondary types.Uint128) []byte { return secondary.BigEndian() },
	})
	c.IdxI256 = newSecondaryCursors(c, IndexI256Billable(), familyOps[IndexI256, *IndexI256, types.Uint256]{
		construct: func(tableID, primary uint64, payer types.Name, secondary types.Uint256) *IndexI256 {
			return &IndexI256{TableID: tableID, Primary: primary, Payer: payer, Secondary: secondary}
		},
		set:       func(row *IndexI256, secondary types.Uint256) { row.Secondary = secondary },
		secondary: func(row *IndexI256) types.Uint256 { return row.Secondary },
		encode:    func(secondary types.Uint256) []byte { return secondary.BigEndian() },
	})
	c.IdxFloat64 = newSecondaryCursors(c, IndexFloat64Billable(), familyOps[IndexFloat64, *IndexFloat64, float64]{
		construct: func(tableID, primary uint64, payer types.Name, secondary float64) *IndexFloat64 {
			return &IndexFloat64{TableID: tableID, Primary: primary, Payer: payer, Secondary: secondary}
		},
		set:       func(row *IndexFloat64, secondary float64) { row.Secondary = secondary },
		secondary: func(row *IndexFloat64) float64 { return row.Secondary },
		encode:    float64Key,
	})
	c.IdxFloat128 = newSecondaryCursors(c, IndexFloat128Billable(), familyOps[IndexFloat128, *IndexFloat128, types.Uint128]{
		construct: func(tableID, primary uint64, payer types.Name, secondary types.Uint128) *IndexFloat128 {
			return &IndexFloat128{TableID: tableID, Primary: primary, Payer: payer, Secondary: secondary}
		},
		set:       func(row *IndexFloat128, secondary types.Uint128) { row.Secondary = secondary },
		secondary: func(row *IndexFloat128) types.Uint128 { return row.Secondary },
		encode:    float128Key,
	})

	return c
}

// FindTable looks up a table row by its (code, scope, name) address.
func (c *Cursors) FindTable(code, scope, table types.Name) (*Table, bool) {
	return statedb.Find[Table](c.store, tableKey(code, scope, table))
}

// findOrCreateTable resolves the table under the executing contract,
// creating it lazily. A created table bills its payer.
func (c *Cursors) findOrCreateTable(scope, table, payer types.Name) (*Table, bool, error) {
	if tab, exists := c.FindTable(c.code, scope, table); exists {
		return tab, false, nil
	}

	tab := &Table{Code: c.code, Scope: scope, Name: table, Payer: payer}
	if err := c.store.Insert(tab); err != nil {
		return nil, false, err
	}

	return tab.Clone().(*Table), true, nil
}

// removeTableIfEmpty drops the table row once its last row is deleted and
// refunds its payer. Row deletion is the only caller.
func (c *Cursors) removeTableIfEmpty(tableID uint64) (*Table, error) {
	tab, err := statedb.GetByID[Table](c.store, tableID)
	if err != nil {
		return nil, err
	}
	if tab.Count != 0 {
		return nil, nil
	}

	if err := c.store.Remove(tab); err != nil {
		return nil, err
	}

	return tab, nil
}

func (c *Cursors) bumpTableCount(tableID uint64, delta int32) error {
	tab, err := statedb.GetByID[Table](c.store, tableID)
	if err != nil {
		return err
	}

	return statedb.Modify(c.store, tab, func(t *Table) error {
		next := int64(t.Count) + int64(delta)
		if next < 0 {
			return ierrors.Wrapf(ErrTransaction, "row count of table %d underflows", tableID)
		}
		t.Count = uint32(next)

		return nil
	})
}

// StoreI64 inserts a primary key row. The payer is billed the value size
// plus the fixed row overhead, and the table overhead when the row creates
// the table.
func (c *Cursors) StoreI64(scope, table, payer types.Name, primary uint64, value []byte) (int32, []RAMDelta, error) {
	if payer.Empty() {
		return -1, nil, ierrors.Wrap(ErrInvalidTablePayer, "must specify a valid account to pay for new record")
	}

	tab, created, err := c.findOrCreateTable(scope, table, payer)
	if err != nil {
		return -1, nil, err
	}
	var deltas []RAMDelta
	if created {
		deltas = append(deltas, RAMDelta{Payer: payer, Bytes: int64(TableBillable())})
	}

	obj := &KeyValue{TableID: tab.ID(), Primary: primary, Payer: payer, Value: append([]byte(nil), value...)}
	if err := c.store.Insert(obj); err != nil {
		return -1, deltas, err
	}
	if err := c.bumpTableCount(tab.ID(), 1); err != nil {
		return -1, deltas, err
	}

	c.keyValues.cacheTable(tab)
	deltas = append(deltas, RAMDelta{Payer: payer, Bytes: int64(len(value)) + int64(KeyValueFixedBillable())})

	return c.keyValues.add(obj.Clone().(*KeyValue)), deltas, nil
}

// GetI64 returns a copy of the row behind the iterator.
func (c *Cursors) GetI64(iterator int32) (*KeyValue, error) {
	obj, err := c.keyValues.get(iterator)
	if err != nil {
		return nil, err
	}

	return obj.Clone().(*KeyValue), nil
}

// UpdateI64 replaces the payload and payer of a row in place. An empty payer
// keeps the existing one; a payer change moves the whole billing.
func (c *Cursors) UpdateI64(iterator int32, payer types.Name, value []byte) ([]RAMDelta, error) {
	obj, err := c.keyValues.get(iterator)
	if err != nil {
		return nil, err
	}
	tab, err := c.keyValues.getTable(obj.TableID)
	if err != nil {
		return nil, err
	}
	if tab.Code != c.code {
		return nil, ierrors.Wrap(ErrTransaction, "db access violation")
	}

	existingPayer := obj.Payer
	if payer.Empty() {
		payer = existingPayer
	}

	overhead := int64(KeyValueFixedBillable())
	oldSize := int64(len(obj.Value)) + overhead
	newSize := int64(len(value)) + overhead

	if err := statedb.Modify(c.store, obj, func(o *KeyValue) error {
		o.Value = append([]byte(nil), value...)
		o.Payer = payer

		return nil
	}); err != nil {
		return nil, err
	}

	updated := obj.Clone().(*KeyValue)
	updated.Value = append([]byte(nil), value...)
	updated.Payer = payer
	c.keyValues.refresh(iterator, updated)

	switch {
	case existingPayer != payer:
		return []RAMDelta{
			{Payer: existingPayer, Bytes: -oldSize},
			{Payer: payer, Bytes: newSize},
		}, nil
	case oldSize != newSize:
		return []RAMDelta{{Payer: existingPayer, Bytes: newSize - oldSize}}, nil
	default:
		return nil, nil
	}
}

// RemoveI64 deletes the row behind the iterator, refunds its payer, and
// drops the table once the last row is gone.
func (c *Cursors) RemoveI64(iterator int32) ([]RAMDelta, error) {
	obj, err := c.keyValues.get(iterator)
	if err != nil {
		return nil, err
	}
	tab, err := c.keyValues.getTable(obj.TableID)
	if err != nil {
		return nil, err
	}
	if tab.Code != c.code {
		return nil, ierrors.Wrap(ErrTransaction, "db access violation")
	}

	deltas := []RAMDelta{{Payer: obj.Payer, Bytes: -(int64(len(obj.Value)) + int64(KeyValueFixedBillable()))}}

	if err := c.bumpTableCount(obj.TableID, -1); err != nil {
		return nil, err
	}
	if err := c.store.Remove(obj); err != nil {
		return nil, err
	}
	removed, err := c.removeTableIfEmpty(obj.TableID)
	if err != nil {
		return nil, err
	}
	if removed != nil {
		deltas = append(deltas, RAMDelta{Payer: removed.Payer, Bytes: -int64(TableBillable())})
	}

	return deltas, c.keyValues.remove(iterator)
}

// FindI64 resolves (code, scope, table, primary) to an iterator, returning
// the table's end iterator when the row does not exist and -1 when the table
// itself does not exist.
func (c *Cursors) FindI64(code, scope, table types.Name, primary uint64) (int32, error) {
	tab, exists := c.FindTable(code, scope, table)
	if !exists {
		return -1, nil
	}
	end := c.keyValues.cacheTable(tab)

	obj, exists := statedb.Find[KeyValue](c.store, primaryKey(tab.ID(), primary))
	if !exists {
		return end, nil
	}

	return c.keyValues.add(obj), nil
}

// NextI64 advances the cursor in primary key order, refusing to cross into
// the next table: the end of the owning table is reported via its cached end
// iterator.
func (c *Cursors) NextI64(iterator int32) (int32, uint64, error) {
	if iterator < -1 {
		// cannot increment past the end iterator
		return -1, 0, nil
	}

	obj, err := c.keyValues.get(iterator)
	if err != nil {
		return -1, 0, err
	}

	it := statedb.UpperBound[KeyValue](c.store, keyValueByScopePrimaryIndex, primaryKey(obj.TableID, obj.Primary))
	if !it.Valid() {
		return c.endOfKeyValueTable(obj.TableID)
	}
	row := it.Value()
	if row.TableID != obj.TableID {
		return c.endOfKeyValueTable(obj.TableID)
	}

	return c.keyValues.add(row), row.Primary, nil
}

func (c *Cursors) endOfKeyValueTable(tableID uint64) (int32, uint64, error) {
	end, err := c.keyValues.endIteratorByTableID(tableID)

	return end, 0, err
}

// PreviousI64 steps the cursor back one row. Stepping back from a table's
// end iterator lands on its last row.
func (c *Cursors) PreviousI64(iterator int32) (int32, uint64, error) {
	if iterator < -1 {
		tab, err := c.keyValues.tableByEndIterator(iterator)
		if err != nil {
			return -1, 0, err
		}

		it := iteratorBefore[KeyValue, *KeyValue](c.store, keyValueByScopePrimaryIndex, statedb.Uint64Key(tab.ID()))
		if !it.Valid() {
			return -1, 0, nil
		}
		row := it.Value()
		if row.TableID != tab.ID() {
			return -1, 0, nil
		}

		return c.keyValues.add(row), row.Primary, nil
	}

	obj, err := c.keyValues.get(iterator)
	if err != nil {
		return -1, 0, err
	}

	it := statedb.LowerBound[KeyValue](c.store, keyValueByScopePrimaryIndex, primaryKey(obj.TableID, obj.Primary))
	it.Prev()
	if !it.Valid() {
		return -1, 0, nil
	}
	row := it.Value()
	if row.TableID != obj.TableID {
		return -1, 0, nil
	}

	return c.keyValues.add(row), row.Primary, nil
}

// LowerboundI64 positions on the first row with primary >= primary.
func (c *Cursors) LowerboundI64(code, scope, table types.Name, primary uint64) (int32, error) {
	tab, exists := c.FindTable(code, scope, table)
	if !exists {
		return -1, nil
	}
	end := c.keyValues.cacheTable(tab)

	it := statedb.LowerBound[KeyValue](c.store, keyValueByScopePrimaryIndex, primaryKey(tab.ID(), primary))
	if !it.Valid() {
		return end, nil
	}
	row := it.Value()
	if row.TableID != tab.ID() {
		return end, nil
	}

	return c.keyValues.add(row), nil
}

// UpperboundI64 positions on the first row with primary > primary.
func (c *Cursors) UpperboundI64(code, scope, table types.Name, primary uint64) (int32, error) {
	tab, exists := c.FindTable(code, scope, table)
	if !exists {
		return -1, nil
	}
	end := c.keyValues.cacheTable(tab)

	it := statedb.UpperBound[KeyValue](c.store, keyValueByScopePrimaryIndex, primaryKey(tab.ID(), primary))
	if !it.Valid() {
		return end, nil
	}
	row := it.Value()
	if row.TableID != tab.ID() {
		return end, nil
	}

	return c.keyValues.add(row), nil
}

// EndI64 returns the end iterator of a table, or -1 when it does not exist.
func (c *Cursors) EndI64(code, scope, table types.Name) (int32, error) {
	tab, exists := c.FindTable(code, scope, table)
	if !exists {
		return -1, nil
	}

	return c.keyValues.cacheTable(tab), nil
}

// iteratorBefore positions on the last entry whose key starts with prefix or
// precedes it, which is the predecessor of the first entry past the prefix.
func iteratorBefore[U any, T statedb.ObjectPtr[U]](s *statedb.Store, index string, prefix []byte) *statedb.Iterator[U, T] {
	end := statedb.PrefixEnd(prefix)
	if end == nil {
		return statedb.Last[U, T](s, index)
	}

	it := statedb.LowerBound[U, T](s, index, end)
	if !it.Valid() {
		return statedb.Last[U, T](s, index)
	}
	it.Prev()

	return it
}

// familyOps is the typed glue of one secondary index family: constructing
// rows, mutating their secondary, and encoding the key ordering.
type familyOps[U any, T indexRowPtr[U], K any] struct {
	construct func(tableID, primary uint64, payer types.Name, secondary K) T
	set       func(row T, secondary K)
	secondary func(row T) K
	encode    func(secondary K) []byte
}

// SecondaryCursors is the cursor surface of one secondary index family. All
// families share one implementation; only the key type differs.
type SecondaryCursors[U any, T indexRowPtr[U], K any] struct {
	c        *Cursors
	cache    *iteratorCache[U, T]
	billable uint64
	ops      familyOps[U, T, K]
}

func newSecondaryCursors[U any, T indexRowPtr[U], K any](c *Cursors, billable uint64, ops familyOps[U, T, K]) *SecondaryCursors[U, T, K] {
	return &SecondaryCursors[U, T, K]{
		c:        c,
		cache:    newIteratorCache[U, T](),
		billable: billable,
		ops:      ops,
	}
}

// Store inserts an index row keyed (primary, secondary). The table name
// carries the index position in its low bits, so each index family of a
// contract table is its own table row.
func (s *SecondaryCursors[U, T, K]) Store(scope, table, payer types.Name, primary uint64, secondary K) (int32, []RAMDelta, error) {
	if payer.Empty() {
		return -1, nil, ierrors.Wrap(ErrInvalidTablePayer, "must specify a valid account to pay for new record")
	}

	tab, created, err := s.c.findOrCreateTable(scope, table, payer)
	if err != nil {
		return -1, nil, err
	}
	var deltas []RAMDelta
	if created {
		deltas = append(deltas, RAMDelta{Payer: payer, Bytes: int64(TableBillable())})
	}

	obj := s.ops.construct(tab.ID(), primary, payer, secondary)
	if err := s.c.store.Insert(obj); err != nil {
		return -1, deltas, err
	}
	if err := s.c.bumpTableCount(tab.ID(), 1); err != nil {
		return -1, deltas, err
	}

	s.cache.cacheTable(tab)
	deltas = append(deltas, RAMDelta{Payer: payer, Bytes: int64(s.billable)})

	return s.cache.add(obj.Clone().(T)), deltas, nil
}

// Update replaces the secondary key and payer of an index row.
func (s *SecondaryCursors[U, T, K]) Update(iterator int32, payer types.Name, secondary K) ([]RAMDelta, error) {
	obj, err := s.cache.get(iterator)
	if err != nil {
		return nil, err
	}
	tab, err := s.cache.getTable(obj.table())
	if err != nil {
		return nil, err
	}
	if tab.Code != s.c.code {
		return nil, ierrors.Wrap(ErrTransaction, "db access violation")
	}

	existingPayer := obj.rowPayer()
	if payer.Empty() {
		payer = existingPayer
	}

	if err := statedb.Modify(s.c.store, obj, func(row T) error {
		s.ops.set(row, secondary)
		row.setPayer(payer)

		return nil
	}); err != nil {
		return nil, err
	}

	updated := obj.Clone().(T)
	s.ops.set(updated, secondary)
	updated.setPayer(payer)
	s.cache.refresh(iterator, updated)

	if existingPayer != payer {
		return []RAMDelta{
			{Payer: existingPayer, Bytes: -int64(s.billable)},
			{Payer: payer, Bytes: int64(s.billable)},
		}, nil
	}

	return nil, nil
}

// Remove deletes an index row and refunds its payer.
func (s *SecondaryCursors[U, T, K]) Remove(iterator int32) ([]RAMDelta, error) {
	obj, err := s.cache.get(iterator)
	if err != nil {
		return nil, err
	}
	tab, err := s.cache.getTable(obj.table())
	if err != nil {
		return nil, err
	}
	if tab.Code != s.c.code {
		return nil, ierrors.Wrap(ErrTransaction, "db access violation")
	}

	deltas := []RAMDelta{{Payer: obj.rowPayer(), Bytes: -int64(s.billable)}}

	if err := s.c.bumpTableCount(obj.table(), -1); err != nil {
		return nil, err
	}
	if err := s.c.store.Remove(obj); err != nil {
		return nil, err
	}
	removed, err := s.c.removeTableIfEmpty(obj.table())
	if err != nil {
		return nil, err
	}
	if removed != nil {
		deltas = append(deltas, RAMDelta{Payer: removed.Payer, Bytes: -int64(TableBillable())})
	}

	return deltas, s.cache.remove(iterator)
}

// FindSecondary resolves the first row with exactly the given secondary key.
func (s *SecondaryCursors[U, T, K]) FindSecondary(code, scope, table types.Name, secondary K) (int32, uint64, error) {
	tab, exists := s.c.FindTable(code, scope, table)
	if !exists {
		return -1, 0, nil
	}
	end := s.cache.cacheTable(tab)

	key := s.ops.encode(secondary)
	it := statedb.LowerBound[U, T](s.c.store, indexByTableIDSecondaryIndex, indexSecondaryKey(tab.ID(), key, 0))
	if !it.Valid() {
		return end, 0, nil
	}
	row := it.Value()
	if row.table() != tab.ID() || !bytes.Equal(row.secondaryKey(), key) {
		return end, 0, nil
	}

	return s.cache.add(row), row.primaryID(), nil
}

// FindPrimary resolves a row by its primary key and reports its secondary.
func (s *SecondaryCursors[U, T, K]) FindPrimary(code, scope, table types.Name, primary uint64) (int32, K, error) {
	var zero K
	tab, exists := s.c.FindTable(code, scope, table)
	if !exists {
		return -1, zero, nil
	}
	end := s.cache.cacheTable(tab)

	obj, exists := statedb.Find[U, T](s.c.store, indexPrimaryKey(tab.ID(), primary))
	if !exists {
		return end, zero, nil
	}

	return s.cache.add(obj), s.ops.secondary(obj), nil
}

// LowerboundSecondary positions on the first row with secondary >= secondary
// and reports the row's keys.
func (s *SecondaryCursors[U, T, K]) LowerboundSecondary(code, scope, table types.Name, secondary K) (int32, K, uint64, error) {
	return s.boundSecondary(code, scope, table, secondaryWithPrimary(s.ops.encode(secondary), 0), false)
}

// UpperboundSecondary positions on the first row with secondary > secondary.
func (s *SecondaryCursors[U, T, K]) UpperboundSecondary(code, scope, table types.Name, secondary K) (int32, K, uint64, error) {
	return s.boundSecondary(code, scope, table, secondaryWithPrimary(s.ops.encode(secondary), math.MaxUint64), true)
}

func (s *SecondaryCursors[U, T, K]) boundSecondary(code, scope, table types.Name, suffix []byte, upper bool) (int32, K, uint64, error) {
	var zero K
	tab, exists := s.c.FindTable(code, scope, table)
	if !exists {
		return -1, zero, 0, nil
	}
	end := s.cache.cacheTable(tab)

	key := statedb.CompositeKey(statedb.Uint64Key(tab.ID()), suffix)
	var it *statedb.Iterator[U, T]
	if upper {
		it = statedb.UpperBound[U, T](s.c.store, indexByTableIDSecondaryIndex, key)
	} else {
		it = statedb.LowerBound[U, T](s.c.store, indexByTableIDSecondaryIndex, key)
	}
	if !it.Valid() {
		return end, zero, 0, nil
	}
	row := it.Value()
	if row.table() != tab.ID() {
		return end, zero, 0, nil
	}

	return s.cache.add(row), s.ops.secondary(row), row.primaryID(), nil
}

// EndSecondary returns the table's end iterator, or -1 when it is missing.
func (s *SecondaryCursors[U, T, K]) EndSecondary(code, scope, table types.Name) (int32, error) {
	tab, exists := s.c.FindTable(code, scope, table)
	if !exists {
		return -1, nil
	}

	return s.cache.cacheTable(tab), nil
}

// NextSecondary advances the cursor in secondary key order within its table.
func (s *SecondaryCursors[U, T, K]) NextSecondary(iterator int32) (int32, uint64, error) {
	if iterator < -1 {
		return -1, 0, nil
	}

	obj, err := s.cache.get(iterator)
	if err != nil {
		return -1, 0, err
	}

	it := statedb.UpperBound[U, T](s.c.store, indexByTableIDSecondaryIndex, indexSecondaryKey(obj.table(), obj.secondaryKey(), obj.primaryID()))
	if !it.Valid() {
		return s.endOf(obj.table())
	}
	row := it.Value()
	if row.table() != obj.table() {
		return s.endOf(obj.table())
	}

	return s.cache.add(row), row.primaryID(), nil
}

// PreviousSecondary steps back one row in secondary key order.
func (s *SecondaryCursors[U, T, K]) PreviousSecondary(iterator int32) (int32, uint64, error) {
	if iterator < -1 {
		tab, err := s.cache.tableByEndIterator(iterator)
		if err != nil {
			return -1, 0, err
		}

		it := iteratorBefore[U, T](s.c.store, indexByTableIDSecondaryIndex, statedb.Uint64Key(tab.ID()))
		if !it.Valid() {
			return -1, 0, nil
		}
		row := it.Value()
		if row.table() != tab.ID() {
			return -1, 0, nil
		}

		return s.cache.add(row), row.primaryID(), nil
	}

	obj, err := s.cache.get(iterator)
	if err != nil {
		return -1, 0, err
	}

	it := statedb.LowerBound[U, T](s.c.store, indexByTableIDSecondaryIndex, indexSecondaryKey(obj.table(), obj.secondaryKey(), obj.primaryID()))
	it.Prev()
	if !it.Valid() {
		return -1, 0, nil
	}
	row := it.Value()
	if row.table() != obj.table() {
		return -1, 0, nil
	}

	return s.cache.add(row), row.primaryID(), nil
}

// NextPrimary advances the cursor in primary key order within its table.
func (s *SecondaryCursors[U, T, K]) NextPrimary(iterator int32) (int32, uint64, error) {
	if iterator < -1 {
		return -1, 0, nil
	}

	obj, err := s.cache.get(iterator)
	if err != nil {
		return -1, 0, err
	}

	it := statedb.UpperBound[U, T](s.c.store, indexByTableIDPrimaryIndex, indexPrimaryKey(obj.table(), obj.primaryID()))
	if !it.Valid() {
		return s.endOf(obj.table())
	}
	row := it.Value()
	if row.table() != obj.table() {
		return s.endOf(obj.table())
	}

	return s.cache.add(row), row.primaryID(), nil
}

// PreviousPrimary steps back one row in primary key order.
func (s *SecondaryCursors[U, T, K]) PreviousPrimary(iterator int32) (int32, uint64, error) {
	if iterator < -1 {
		tab, err := s.cache.tableByEndIterator(iterator)
		if err != nil {
			return -1, 0, err
		}

		it := iteratorBefore[U, T](s.c.store, indexByTableIDPrimaryIndex, statedb.Uint64Key(tab.ID()))
		if !it.Valid() {
			return -1, 0, nil
		}
		row := it.Value()
		if row.table() != tab.ID() {
			return -1, 0, nil
		}

		return s.cache.add(row), row.primaryID(), nil
	}

	obj, err := s.cache.get(iterator)
	if err != nil {
		return -1, 0, err
	}

	it := statedb.LowerBound[U, T](s.c.store, indexByTableIDPrimaryIndex, indexPrimaryKey(obj.table(), obj.primaryID()))
	it.Prev()
	if !it.Valid() {
		return -1, 0, nil
	}
	row := it.Value()
	if row.table() != obj.table() {
		return -1, 0, nil
	}

	return s.cache.add(row), row.primaryID(), nil
}

func (s *SecondaryCursors[U, T, K]) endOf(tableID uint64) (int32, uint64, error) {
	end, err := s.cache.endIteratorByTableID(tableID)

	return end, 0, err
}

func secondaryWithPrimary(secondary []byte, primary uint64) []byte {
	return statedb.CompositeKey(secondary, statedb.Uint64Key(primary))
}
