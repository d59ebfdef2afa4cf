package accounts_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/kvstore/mapdb"

	"github.com/iotaledger/chainstate/pkg/accounts"
	"github.com/iotaledger/chainstate/pkg/statedb"
	"github.com/iotaledger/chainstate/pkg/types"
)

var (
	alice = types.MustNameFromString("alice")
	bob   = types.MustNameFromString("bob")
)

func newTestManager(t *testing.T) (*accounts.Manager, *statedb.Store) {
	store, err := statedb.New(mapdb.NewMapDB())
	require.NoError(t, err)
	require.NoError(t, accounts.RegisterTables(store))

	return accounts.NewManager(store), store
}

func TestCreateAccount(t *testing.T) {
	manager, _ := newTestManager(t)

	created, err := manager.CreateAccount(alice, 42)
	require.NoError(t, err)
	require.Equal(t, alice, created.Name)
	require.EqualValues(t, 42, created.CreationDate)
	require.True(t, manager.AccountExists(alice))
	require.False(t, manager.AccountExists(bob))

	_, err = manager.CreateAccount(alice, 43)
	require.ErrorIs(t, err, statedb.ErrDuplicateKey)

	metadata, err := manager.GetAccountMetadata(alice)
	require.NoError(t, err)
	require.EqualValues(t, 0, metadata.RecvSequence)
	require.False(t, metadata.Privileged)
}

func TestSequences(t *testing.T) {
	manager, _ := newTestManager(t)
	_, err := manager.CreateAccount(alice, 1)
	require.NoError(t, err)

	for expected := uint64(1); expected <= 3; expected++ {
		seq, err := manager.NextRecvSequence(alice)
		require.NoError(t, err)
		require.Equal(t, expected, seq)
	}

	seq, err := manager.NextAuthSequence(alice)
	require.NoError(t, err)
	require.EqualValues(t, 1, seq)

	_, err = manager.NextRecvSequence(bob)
	require.ErrorIs(t, err, statedb.ErrNotFound)
}

func TestSetCodeRefCounting(t *testing.T) {
	manager, _ := newTestManager(t)
	_, err := manager.CreateAccount(alice, 1)
	require.NoError(t, err)
	_, err = manager.CreateAccount(bob, 1)
	require.NoError(t, err)

	code := []byte("contract v1")
	hash := types.HashBytes(code)

	delta, err := manager.SetCode(alice, 0, 0, code, 10, 1000)
	require.NoError(t, err)
	require.EqualValues(t, len(code)*10, delta)

	metadata, err := manager.GetAccountMetadata(alice)
	require.NoError(t, err)
	require.Equal(t, hash, metadata.CodeHash)
	require.EqualValues(t, 1, metadata.CodeSequence)
	require.EqualValues(t, 1000, metadata.LastCodeUpdate)

	// identical redeploy is rejected
	_, err = manager.SetCode(alice, 0, 0, code, 11, 1001)
	require.ErrorIs(t, err, accounts.ErrActionValidate)

	// a second account running the same code shares the object
	_, err = manager.SetCode(bob, 0, 0, code, 11, 1001)
	require.NoError(t, err)
	shared, exists := manager.FindCode(hash, 0, 0)
	require.True(t, exists)
	require.EqualValues(t, 2, shared.CodeRefCount)
	require.EqualValues(t, 10, shared.FirstBlockUsed)

	// clearing one account keeps the shared object alive
	delta, err = manager.SetCode(alice, 0, 0, nil, 12, 1002)
	require.NoError(t, err)
	require.EqualValues(t, -len(code)*10, delta)
	shared, exists = manager.FindCode(hash, 0, 0)
	require.True(t, exists)
	require.EqualValues(t, 1, shared.CodeRefCount)

	// clearing the last reference removes it
	_, err = manager.SetCode(bob, 0, 0, nil, 13, 1003)
	require.NoError(t, err)
	_, exists = manager.FindCode(hash, 0, 0)
	require.False(t, exists)

	// clearing an already clear contract is invalid
	_, err = manager.SetCode(bob, 0, 0, nil, 14, 1004)
	require.ErrorIs(t, err, accounts.ErrActionValidate)
}

func TestSetCodeSwap(t *testing.T) {
	manager, _ := newTestManager(t)
	_, err := manager.CreateAccount(alice, 1)
	require.NoError(t, err)

	v1 := []byte("contract v1")
	v2 := []byte("contract v2 with more bytes")

	_, err = manager.SetCode(alice, 0, 0, v1, 10, 1000)
	require.NoError(t, err)
	delta, err := manager.SetCode(alice, 0, 0, v2, 11, 1001)
	require.NoError(t, err)
	require.EqualValues(t, (len(v2)-len(v1))*10, delta)

	_, exists := manager.FindCode(types.HashBytes(v1), 0, 0)
	require.False(t, exists)

	metadata, err := manager.GetAccountMetadata(alice)
	require.NoError(t, err)
	require.EqualValues(t, 2, metadata.CodeSequence)
}

func TestSetABI(t *testing.T) {
	manager, _ := newTestManager(t)
	_, err := manager.CreateAccount(alice, 1)
	require.NoError(t, err)

	abi := []byte(`{"version":"pulse::abi/1.0"}`)
	delta, err := manager.SetABI(alice, abi)
	require.NoError(t, err)
	require.EqualValues(t, len(abi), delta)

	account, err := manager.GetAccount(alice)
	require.NoError(t, err)
	require.Equal(t, abi, account.ABI)

	metadata, err := manager.GetAccountMetadata(alice)
	require.NoError(t, err)
	require.EqualValues(t, 1, metadata.ABISequence)

	delta, err = manager.SetABI(alice, nil)
	require.NoError(t, err)
	require.EqualValues(t, -len(abi), delta)
}

func TestPrivileged(t *testing.T) {
	manager, _ := newTestManager(t)
	_, err := manager.CreateAccount(alice, 1)
	require.NoError(t, err)

	privileged, err := manager.IsPrivileged(alice)
	require.NoError(t, err)
	require.False(t, privileged)

	require.NoError(t, manager.SetPrivileged(alice, true))
	privileged, err = manager.IsPrivileged(alice)
	require.NoError(t, err)
	require.True(t, privileged)
}

func TestCodeSurvivesRestart(t *testing.T) {
	backing := mapdb.NewMapDB()
	store, err := statedb.New(backing)
	require.NoError(t, err)
	require.NoError(t, accounts.RegisterTables(store))
	manager := accounts.NewManager(store)

	session := store.StartUndoSession()
	_, err = manager.CreateAccount(alice, 1)
	require.NoError(t, err)
	code := []byte("durable contract")
	_, err = manager.SetCode(alice, 0, 0, code, 10, 1000)
	require.NoError(t, err)
	require.NoError(t, store.Commit(session.Revision()))

	reopenedStore, err := statedb.New(backing)
	require.NoError(t, err)
	require.NoError(t, accounts.RegisterTables(reopenedStore))
	reopened := accounts.NewManager(reopenedStore)

	restored, exists := reopened.FindCode(types.HashBytes(code), 0, 0)
	require.True(t, exists)
	require.Equal(t, code, restored.Code)
	require.EqualValues(t, 1, restored.CodeRefCount)
}
