package contracttable

import (
	"github.com/iotaledger/hive.go/ierrors"

	"github.com/iotaledger/chainstate/pkg/statedb"
)

// iteratorCache hands out the small integer handles of the cursor API.
// Non-negative handles reference live rows, -1 means "no such element", and
// every cached table gets a distinguished end handle -(index+2) so a cursor
// can detect the end of that specific table.
type iteratorCache[U any, T indexCacheEntry[U]] struct {
	tables    map[uint64]*Table
	tableEnds map[uint64]int32
	endTables []*Table
	objects   []T
	iterators map[uint64]int32
}

// indexCacheEntry only needs identity; both KeyValue and the secondary index
// rows qualify.
type indexCacheEntry[U any] interface {
	*U
	statedb.Object
}

func newIteratorCache[U any, T indexCacheEntry[U]]() *iteratorCache[U, T] {
	return &iteratorCache[U, T]{
		tables:    make(map[uint64]*Table),
		tableEnds: make(map[uint64]int32),
		iterators: make(map[uint64]int32),
	}
}

// cacheTable registers the table and returns its end iterator handle.
func (c *iteratorCache[U, T]) cacheTable(tab *Table) int32 {
	if end, exists := c.tableEnds[tab.ID()]; exists {
		return end
	}

	end := indexToEndIterator(len(c.endTables))
	c.endTables = append(c.endTables, tab)
	c.tables[tab.ID()] = tab
	c.tableEnds[tab.ID()] = end

	return end
}

func (c *iteratorCache[U, T]) getTable(tableID uint64) (*Table, error) {
	tab, exists := c.tables[tableID]
	if !exists {
		return nil, ierrors.Wrap(ErrInvalidIterator, "table not cached")
	}

	return tab, nil
}

func (c *iteratorCache[U, T]) endIteratorByTableID(tableID uint64) (int32, error) {
	end, exists := c.tableEnds[tableID]
	if !exists {
		return -1, ierrors.Wrap(ErrInvalidIterator, "table not cached")
	}

	return end, nil
}

func (c *iteratorCache[U, T]) tableByEndIterator(iterator int32) (*Table, error) {
	if iterator >= -1 {
		return nil, ierrors.Wrap(ErrInvalidIterator, "not an end iterator")
	}

	index := endIteratorToIndex(iterator)
	if index >= len(c.endTables) {
		return nil, ierrors.Wrap(ErrInvalidIterator, "not a valid end iterator")
	}

	return c.endTables[index], nil
}

func (c *iteratorCache[U, T]) get(iterator int32) (T, error) {
	var zero T
	switch {
	case iterator == -1:
		return zero, ierrors.Wrap(ErrInvalidIterator, "invalid iterator")
	case iterator < 0:
		return zero, ierrors.Wrap(ErrInvalidIterator, "dereference of end iterator")
	case int(iterator) >= len(c.objects):
		return zero, ierrors.Wrap(ErrInvalidIterator, "iterator out of range")
	}

	obj := c.objects[iterator]
	if obj == zero {
		return zero, ierrors.Wrap(ErrInvalidIterator, "dereference of deleted object")
	}

	return obj, nil
}

// add returns the existing handle when the row is already cached.
func (c *iteratorCache[U, T]) add(obj T) int32 {
	if iterator, exists := c.iterators[obj.ID()]; exists {
		c.objects[iterator] = obj

		return iterator
	}

	c.objects = append(c.objects, obj)
	iterator := int32(len(c.objects) - 1)
	c.iterators[obj.ID()] = iterator

	return iterator
}

// refresh replaces the cached row behind a live handle after a mutation.
func (c *iteratorCache[U, T]) refresh(iterator int32, obj T) {
	c.objects[iterator] = obj
}

func (c *iteratorCache[U, T]) remove(iterator int32) error {
	switch {
	case iterator == -1:
		return ierrors.Wrap(ErrInvalidIterator, "invalid iterator")
	case iterator < 0:
		return ierrors.Wrap(ErrInvalidIterator, "cannot remove end iterators")
	case int(iterator) >= len(c.objects):
		return ierrors.Wrap(ErrInvalidIterator, "iterator out of range")
	}

	var zero T
	if obj := c.objects[iterator]; obj != zero {
		delete(c.iterators, obj.ID())
		c.objects[iterator] = zero
	}

	return nil
}

func endIteratorToIndex(iterator int32) int {
	return int(-iterator - 2)
}

func indexToEndIterator(index int) int32 {
	return -(int32(index) + 2)
}
