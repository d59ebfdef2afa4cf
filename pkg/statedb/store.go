package statedb

import (
	"github.com/iotaledger/hive.go/ds/shrinkingmap"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/hive.go/runtime/syncutils"
	"github.com/iotaledger/hive.go/core/marshalutil"
)

const maxObjectID = 1<<63 - 1

var (
	realmObjects = kvstore.Realm{'o'}
	realmMeta    = kvstore.Realm{'m'}

	metaKeyRevision = []byte("revision")
	metaKeyNextID   = []byte("nextid/")
)

// table is the in-memory state of one registered table: the object arena,
// one ordered index per index name, and the monotonic id counter.
type table struct {
	name       string
	factory    func() Object
	objects    *shrinkingmap.ShrinkingMap[uint64, Object]
	indexes    map[string]*indexTree
	indexOrder []string
	nextID     uint64
}

func (t *table) index(name string) *indexTree {
	idx, exists := t.indexes[name]
	if !exists {
		idx = newIndexTree()
		t.indexes[name] = idx
		t.indexOrder = append(t.indexOrder, name)
	}

	return idx
}

// Store is a versioned multi-index object store. All reads copy objects out;
// all writes go through Insert/Modify/Remove and are recorded against the
// innermost open undo session. Committed state is flushed to the backing
// kvstore and survives restarts, uncommitted state does not.
type Store struct {
	backing    kvstore.KVStore
	tables     map[string]*table
	tableOrder []string

	sessions []*Session
	revision int64
	dirty    map[dirtyKey]struct{}

	mutex syncutils.RWMutex
}

type dirtyKey struct {
	table string
	id    uint64
}

// New opens a store over the given backing. Tables must be registered before
// use; registration hydrates committed objects from the backing.
func New(backing kvstore.KVStore, opts ...options.Option[Store]) (*Store, error) {
	s := options.Apply(&Store{
		backing: backing,
		tables:  make(map[string]*table),
		dirty:   make(map[dirtyKey]struct{}),
	}, opts)

	metaStore := lo.PanicOnErr(backing.WithExtendedRealm(realmMeta))
	revisionBytes, err := metaStore.Get(metaKeyRevision)
	switch {
	case err == nil:
		revision, err := marshalutil.New(revisionBytes).ReadUint64()
		if err != nil {
			return nil, ierrors.Wrap(err, "failed to parse store revision")
		}
		s.revision = int64(revision)
	case ierrors.Is(err, kvstore.ErrKeyNotFound):
		s.revision = 0
	default:
		return nil, ierrors.Wrap(err, "failed to read store revision")
	}

	return s, nil
}

// RegisterTable declares a table and hydrates its committed rows and id
// counter from the backing.
func (s *Store) RegisterTable(name string, factory func() Object) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.tables[name]; exists {
		return ierrors.Errorf("table %s registered twice", name)
	}

	tbl := &table{
		name:    name,
		factory: factory,
		objects: shrinkingmap.New[uint64, Object](),
		indexes: make(map[string]*indexTree),
	}
	s.tables[name] = tbl
	s.tableOrder = append(s.tableOrder, name)

	metaStore := lo.PanicOnErr(s.backing.WithExtendedRealm(realmMeta))
	nextIDBytes, err := metaStore.Get(append(append([]byte(nil), metaKeyNextID...), name...))
	switch {
	case err == nil:
		tbl.nextID, err = marshalutil.New(nextIDBytes).ReadUint64()
		if err != nil {
			return ierrors.Wrapf(err, "failed to parse id counter of table %s", name)
		}
	case ierrors.Is(err, kvstore.ErrKeyNotFound):
		// fresh table
	default:
		return ierrors.Wrapf(err, "failed to read id counter of table %s", name)
	}

	objectStore := lo.PanicOnErr(s.backing.WithExtendedRealm(append(append(kvstore.Realm{}, realmObjects...), name...)))
	var innerErr error
	if err := objectStore.Iterate(kvstore.EmptyPrefix, func(key kvstore.Key, value kvstore.Value) bool {
		obj := factory()
		if innerErr = obj.FromBytes(value); innerErr != nil {
			innerErr = ierrors.Wrapf(innerErr, "failed to decode object of table %s", name)

			return false
		}
		if innerErr = s.attach(tbl, obj); innerErr != nil {
			return false
		}

		return true
	}); err != nil {
		return ierrors.Wrapf(err, "failed to hydrate table %s", name)
	}

	return innerErr
}

// attach places an already-identified object into the arena and all indexes.
func (s *Store) attach(tbl *table, obj Object) error {
	keys := obj.IndexKeys()
	for i, indexKey := range keys {
		if _, taken := tbl.index(indexKey.Index).get(indexKey.Key); taken {
			for _, prev := range keys[:i] {
				tbl.index(prev.Index).remove(prev.Key)
			}

			return ierrors.Wrapf(ErrDuplicateKey, "table %s index %s", tbl.name, indexKey.Index)
		}
		tbl.index(indexKey.Index).insert(indexKey.Key, obj.ID())
	}
	tbl.objects.Set(obj.ID(), obj)

	return nil
}

// detach removes an object from the arena and all indexes.
func (s *Store) detach(tbl *table, obj Object) {
	for _, indexKey := range obj.IndexKeys() {
		tbl.index(indexKey.Index).remove(indexKey.Key)
	}
	tbl.objects.Delete(obj.ID())
}

func (s *Store) table(name string) (*table, error) {
	tbl, exists := s.tables[name]
	if !exists {
		return nil, ierrors.Wrapf(ErrTableNotRegistered, "%s", name)
	}

	return tbl, nil
}

func (s *Store) markDirty(tableName string, id uint64) {
	if len(s.sessions) == 0 {
		s.dirty[dirtyKey{table: tableName, id: id}] = struct{}{}
	}
}

func (s *Store) record(r undoRecord) {
	if len(s.sessions) > 0 {
		top := s.sessions[len(s.sessions)-1]
		top.records = append(top.records, r)
	}
}

// Revision returns the store revision: the committed revision plus one per
// open undo session.
func (s *Store) Revision() int64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.revision + int64(len(s.sessions))
}

// StartUndoSession opens a new undo session on top of the current state.
// Every mutation until the session ends is reversible through it.
func (s *Store) StartUndoSession() *Session {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	session := &Session{
		store:    s,
		revision: s.revision + int64(len(s.sessions)) + 1,
	}
	s.sessions = append(s.sessions, session)

	return session
}

// Commit makes every change up to revision permanent: the corresponding undo
// sessions are discarded and the committed images are flushed to the backing
// kvstore.
func (s *Store) Commit(revision int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if revision <= s.revision {
		return nil
	}
	if revision > s.revision+int64(len(s.sessions)) {
		return ierrors.Errorf("cannot commit revision %d, store is at revision %d", revision, s.revision+int64(len(s.sessions)))
	}

	committed := 0
	touched := make(map[dirtyKey]struct{}, len(s.dirty))
	for key := range s.dirty {
		touched[key] = struct{}{}
	}
	for _, session := range s.sessions {
		if session.revision > revision {
			break
		}
		committed++
		for _, r := range session.records {
			touched[dirtyKey{table: r.tableName, id: r.id}] = struct{}{}
		}
	}

	remaining := s.sessions[committed:]
	for key := range touched {
		if err := s.flushObject(key, remaining); err != nil {
			return err
		}
	}

	for _, session := range s.sessions[:committed] {
		session.state = sessionCommitted
	}
	s.sessions = remaining
	s.revision = revision
	s.dirty = make(map[dirtyKey]struct{})

	if err := s.flushMeta(); err != nil {
		return err
	}

	return s.backing.Flush()
}

// flushObject writes the committed image of one object. If a still-open
// session recorded the object after the commit point, its oldest before
// image is the committed state, otherwise the live arena object is.
func (s *Store) flushObject(key dirtyKey, openSessions []*Session) error {
	tbl, err := s.table(key.table)
	if err != nil {
		return err
	}
	objectStore := lo.PanicOnErr(s.backing.WithExtendedRealm(append(append(kvstore.Realm{}, realmObjects...), key.table...)))
	storeKey := Uint64Key(key.id)

	for _, session := range openSessions {
		for _, r := range session.records {
			if r.tableName != key.table || r.id != key.id {
				continue
			}
			if r.op == opInsert {
				// created after the commit point, so absent in it
				return objectStore.Delete(storeKey)
			}

			return objectStore.Set(storeKey, r.before)
		}
	}

	obj, exists := tbl.objects.Get(key.id)
	if !exists {
		return objectStore.Delete(storeKey)
	}
	data, err := obj.Bytes()
	if err != nil {
		return ierrors.Wrapf(err, "failed to serialize object %d of table %s", key.id, key.table)
	}

	return objectStore.Set(storeKey, data)
}

func (s *Store) flushMeta() error {
	metaStore := lo.PanicOnErr(s.backing.WithExtendedRealm(realmMeta))

	m := marshalutil.New(8)
	m.WriteUint64(uint64(s.revision))
	if err := metaStore.Set(metaKeyRevision, m.Bytes()); err != nil {
		return ierrors.Wrap(err, "failed to persist store revision")
	}

	for _, name := range s.tableOrder {
		m := marshalutil.New(8)
		m.WriteUint64(s.tables[name].nextID)
		if err := metaStore.Set(append(append([]byte(nil), metaKeyNextID...), name...), m.Bytes()); err != nil {
			return ierrors.Wrapf(err, "failed to persist id counter of table %s", name)
		}
	}

	return nil
}
