package statedb

// Iterator walks one index of one table in key order. It is a point-in-time
// cursor: any mutation of the store invalidates it, so callers that mutate
// while walking must collect ids first and operate on those.
type Iterator[U any, T ObjectPtr[U]] struct {
	tbl  *table
	node *treeNode
}

func newIterator[U any, T ObjectPtr[U]](s *Store, index string, position func(*indexTree) *treeNode) *Iterator[U, T] {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tbl := s.mustTable(T(new(U)).TableName())

	return &Iterator[U, T]{tbl: tbl, node: position(tbl.index(index))}
}

// LowerBound positions on the first entry with key >= key.
func LowerBound[U any, T ObjectPtr[U]](s *Store, index string, key []byte) *Iterator[U, T] {
	return newIterator[U, T](s, index, func(t *indexTree) *treeNode { return t.seek(key) })
}

// UpperBound positions on the first entry with key > key.
func UpperBound[U any, T ObjectPtr[U]](s *Store, index string, key []byte) *Iterator[U, T] {
	return newIterator[U, T](s, index, func(t *indexTree) *treeNode { return t.seekAfter(key) })
}

// First positions on the smallest key of the index.
func First[U any, T ObjectPtr[U]](s *Store, index string) *Iterator[U, T] {
	return newIterator[U, T](s, index, func(t *indexTree) *treeNode { return t.first() })
}

// Last positions on the largest key of the index.
func Last[U any, T ObjectPtr[U]](s *Store, index string) *Iterator[U, T] {
	return newIterator[U, T](s, index, func(t *indexTree) *treeNode { return t.last() })
}

func (it *Iterator[U, T]) Valid() bool {
	return it.node != nil
}

func (it *Iterator[U, T]) Next() {
	if it.node != nil {
		it.node = it.node.next()
	}
}

func (it *Iterator[U, T]) Prev() {
	if it.node != nil {
		it.node = it.node.prev()
	}
}

// Key returns the index key at the cursor.
func (it *Iterator[U, T]) Key() []byte {
	return append([]byte(nil), it.node.key...)
}

// ID returns the object id at the cursor.
func (it *Iterator[U, T]) ID() uint64 {
	return it.node.id
}

// Value returns a copy of the object at the cursor.
func (it *Iterator[U, T]) Value() T {
	return cloneAs[U, T](it.tbl, it.node.id)
}
