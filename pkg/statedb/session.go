package statedb

import (
	"github.com/iotaledger/hive.go/ierrors"
)

type undoOp uint8

const (
	opInsert undoOp = iota
	opModify
	opRemove
)

type sessionState uint8

const (
	sessionActive sessionState = iota
	sessionCommitted
	sessionSquashed
	sessionUndone
)

// undoRecord captures what it takes to reverse one mutation. For modify and
// remove, before holds the serialized image from just before the change.
type undoRecord struct {
	tableName string
	op        undoOp
	id        uint64
	before    []byte
}

// Session is one level of the undo stack. Only the innermost session may be
// undone or squashed. Sessions end in exactly one of three ways: Undo,
// Squash, or being covered by Store.Commit.
type Session struct {
	store    *Store
	revision int64
	records  []undoRecord
	state    sessionState
}

// Revision is the store revision this session raised the stack to.
func (s *Session) Revision() int64 {
	return s.revision
}

// Undo reverses every change recorded by the session, newest first, and
// closes it.
func (s *Session) Undo() error {
	s.store.mutex.Lock()
	defer s.store.mutex.Unlock()

	return s.undo()
}

func (s *Session) undo() error {
	if err := s.requireTop(); err != nil {
		return err
	}

	s.store.undoRecords(s.records)
	s.state = sessionUndone
	s.store.sessions = s.store.sessions[:len(s.store.sessions)-1]

	return nil
}

// Squash folds the session into the one beneath it, preserving record order:
// undoing the combined session later is identical to undoing both in turn.
// Squashing the bottom session makes its changes permanent in memory (they
// remain uncommitted until Store.Commit).
func (s *Session) Squash() error {
	s.store.mutex.Lock()
	defer s.store.mutex.Unlock()

	if err := s.requireTop(); err != nil {
		return err
	}

	if len(s.store.sessions) == 1 {
		for _, r := range s.records {
			s.store.dirty[dirtyKey{table: r.tableName, id: r.id}] = struct{}{}
		}
	} else {
		parent := s.store.sessions[len(s.store.sessions)-2]
		parent.records = append(parent.records, s.records...)
	}

	s.state = sessionSquashed
	s.store.sessions = s.store.sessions[:len(s.store.sessions)-1]

	return nil
}

// Done undoes the session unless it already ended. Deferring it right after
// StartUndoSession gives transaction semantics: fall through on error and
// the changes vanish.
func (s *Session) Done() {
	s.store.mutex.Lock()
	defer s.store.mutex.Unlock()

	if s.state == sessionActive {
		_ = s.undo()
	}
}

func (s *Session) requireTop() error {
	if s.state != sessionActive {
		return ierrors.Wrapf(ErrSessionClosed, "session at revision %d", s.revision)
	}
	if len(s.store.sessions) == 0 || s.store.sessions[len(s.store.sessions)-1] != s {
		return ierrors.Errorf("session at revision %d is not the innermost session", s.revision)
	}

	return nil
}
