package statedb

import (
	"github.com/iotaledger/hive.go/ierrors"
)

// mustTable resolves a table that the caller assumes to be registered.
// Hitting an unregistered table is a wiring bug, not a runtime condition.
func (s *Store) mustTable(name string) *table {
	tbl, err := s.table(name)
	if err != nil {
		panic(err)
	}

	return tbl
}

// Insert adds obj to its table, assigning the next id. Ids are monotonic and
// never reused, even across undo. All index keys must be free.
func (s *Store) Insert(obj Object) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	tbl := s.mustTable(obj.TableName())
	if tbl.nextID > maxObjectID {
		panic(ierrors.Errorf("id space of table %s exhausted", tbl.name))
	}
	obj.SetID(tbl.nextID)

	if err := s.attach(tbl, obj); err != nil {
		return err
	}
	tbl.nextID++

	s.record(undoRecord{tableName: tbl.name, op: opInsert, id: obj.ID()})
	s.markDirty(tbl.name, obj.ID())

	return nil
}

// Modify applies mutate to a copy of the live object identified by obj and
// swaps it in. The primary key must not change; secondary keys may, as long
// as they do not collide.
func Modify[U any, T ObjectPtr[U]](s *Store, obj T, mutate func(T) error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	tbl := s.mustTable(obj.TableName())
	live, exists := tbl.objects.Get(obj.ID())
	if !exists {
		return ierrors.Wrapf(ErrNotFound, "table %s id %d", tbl.name, obj.ID())
	}

	before, err := live.Bytes()
	if err != nil {
		return ierrors.Wrapf(err, "failed to serialize object %d of table %s", obj.ID(), tbl.name)
	}

	mutated, ok := live.Clone().(T)
	if !ok {
		return ierrors.Errorf("object %d of table %s has unexpected type", obj.ID(), tbl.name)
	}
	if err := mutate(mutated); err != nil {
		return err
	}

	if err := s.swap(tbl, live, mutated); err != nil {
		return err
	}

	s.record(undoRecord{tableName: tbl.name, op: opModify, id: obj.ID(), before: before})
	s.markDirty(tbl.name, obj.ID())

	return nil
}

func (s *Store) swap(tbl *table, live, mutated Object) error {
	oldPrimary := live.IndexKeys()[0]
	newPrimary := mutated.IndexKeys()[0]
	if string(oldPrimary.Key) != string(newPrimary.Key) {
		return ierrors.Wrapf(ErrInvalidModification, "primary key of table %s object %d changed", tbl.name, live.ID())
	}

	s.detach(tbl, live)
	if err := s.attach(tbl, mutated); err != nil {
		if restoreErr := s.attach(tbl, live); restoreErr != nil {
			panic(ierrors.Wrapf(restoreErr, "failed to restore object %d of table %s after rejected modification", live.ID(), tbl.name))
		}

		return ierrors.Wrapf(ErrInvalidModification, "table %s object %d: %s", tbl.name, live.ID(), err.Error())
	}

	return nil
}

// Remove deletes the live object identified by obj.
func (s *Store) Remove(obj Object) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	tbl := s.mustTable(obj.TableName())
	live, exists := tbl.objects.Get(obj.ID())
	if !exists {
		return ierrors.Wrapf(ErrNotFound, "table %s id %d", tbl.name, obj.ID())
	}

	before, err := live.Bytes()
	if err != nil {
		return ierrors.Wrapf(err, "failed to serialize object %d of table %s", obj.ID(), tbl.name)
	}

	s.detach(tbl, live)

	s.record(undoRecord{tableName: tbl.name, op: opRemove, id: live.ID(), before: before})
	s.markDirty(tbl.name, live.ID())

	return nil
}

// undoRecords reverses records newest first. Failures here mean the store
// can no longer be trusted.
func (s *Store) undoRecords(records []undoRecord) {
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		tbl := s.mustTable(r.tableName)

		switch r.op {
		case opInsert:
			live, exists := tbl.objects.Get(r.id)
			if !exists {
				panic(ierrors.Errorf("undo: inserted object %d of table %s is missing", r.id, r.tableName))
			}
			s.detach(tbl, live)
		case opModify, opRemove:
			obj := tbl.factory()
			if err := obj.FromBytes(r.before); err != nil {
				panic(ierrors.Wrapf(err, "undo: before image of object %d of table %s is corrupt", r.id, r.tableName))
			}
			if r.op == opModify {
				live, exists := tbl.objects.Get(r.id)
				if !exists {
					panic(ierrors.Errorf("undo: modified object %d of table %s is missing", r.id, r.tableName))
				}
				s.detach(tbl, live)
			}
			if err := s.attach(tbl, obj); err != nil {
				panic(ierrors.Wrapf(err, "undo: failed to restore object %d of table %s", r.id, r.tableName))
			}
		}
	}
}

func primaryIndex[U any, T ObjectPtr[U]]() string {
	return T(new(U)).IndexKeys()[0].Index
}

// Find returns a copy of the object with the given primary key.
func Find[U any, T ObjectPtr[U]](s *Store, key []byte) (T, bool) {
	return FindBySecondary[U, T](s, primaryIndex[U, T](), key)
}

// Get is Find with ErrNotFound on a miss.
func Get[U any, T ObjectPtr[U]](s *Store, key []byte) (T, error) {
	return GetBySecondary[U, T](s, primaryIndex[U, T](), key)
}

// FindBySecondary returns a copy of the object with the given key on the
// named index.
func FindBySecondary[U any, T ObjectPtr[U]](s *Store, index string, key []byte) (T, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tbl := s.mustTable(T(new(U)).TableName())
	id, exists := tbl.index(index).get(key)
	if !exists {
		var zero T

		return zero, false
	}

	return cloneAs[U, T](tbl, id), true
}

// GetBySecondary is FindBySecondary with ErrNotFound on a miss.
func GetBySecondary[U any, T ObjectPtr[U]](s *Store, index string, key []byte) (T, error) {
	obj, exists := FindBySecondary[U, T](s, index, key)
	if !exists {
		var zero T

		return zero, ierrors.Wrapf(ErrNotFound, "table %s index %s", T(new(U)).TableName(), index)
	}

	return obj, nil
}

// FindByID returns a copy of the object with the given id.
func FindByID[U any, T ObjectPtr[U]](s *Store, id uint64) (T, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tbl := s.mustTable(T(new(U)).TableName())
	if _, exists := tbl.objects.Get(id); !exists {
		var zero T

		return zero, false
	}

	return cloneAs[U, T](tbl, id), true
}

// GetByID is FindByID with ErrNotFound on a miss.
func GetByID[U any, T ObjectPtr[U]](s *Store, id uint64) (T, error) {
	obj, exists := FindByID[U, T](s, id)
	if !exists {
		var zero T

		return zero, ierrors.Wrapf(ErrNotFound, "table %s id %d", T(new(U)).TableName(), id)
	}

	return obj, nil
}

func cloneAs[U any, T ObjectPtr[U]](tbl *table, id uint64) T {
	live, exists := tbl.objects.Get(id)
	if !exists {
		panic(ierrors.Errorf("index of table %s references missing object %d", tbl.name, id))
	}
	clone, ok := live.Clone().(T)
	if !ok {
		panic(ierrors.Errorf("object %d of table %s has unexpected type", id, tbl.name))
	}

	return clone
}

// NextKey returns the object with the smallest primary key greater than key.
func NextKey[U any, T ObjectPtr[U]](s *Store, key []byte) (T, bool) {
	it := UpperBound[U, T](s, primaryIndex[U, T](), key)
	if !it.Valid() {
		var zero T

		return zero, false
	}

	return it.Value(), true
}

// PreviousKey returns the object with the largest primary key smaller than
// key.
func PreviousKey[U any, T ObjectPtr[U]](s *Store, key []byte) (T, bool) {
	it := LowerBound[U, T](s, primaryIndex[U, T](), key)
	if it.Valid() {
		it.Prev()
	} else {
		it = Last[U, T](s, primaryIndex[U, T]())
	}
	if !it.Valid() {
		var zero T

		return zero, false
	}

	return it.Value(), true
}
