package authority_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/kvstore/mapdb"

	"github.com/iotaledger/chainstate/pkg/authority"
	"github.com/iotaledger/chainstate/pkg/statedb"
	"github.com/iotaledger/chainstate/pkg/types"
)

var (
	alice    = types.MustNameFromString("alice")
	bob      = types.MustNameFromString("bob")
	token    = types.MustNameFromString("mytoken")
	transfer = types.MustNameFromString("transfer")
	custom   = types.MustNameFromString("trading")
)

func testKey(keyType uint8, seed byte) types.PublicKey {
	key := make(types.PublicKey, 34)
	key[0] = keyType
	key[1] = seed

	return key
}

func testAuthority(seed byte) authority.Authority {
	return authority.NewAuthority(1, authority.KeyWeight{Key: testKey(0, seed), Weight: 1})
}

type testEnv struct {
	store   *statedb.Store
	manager *authority.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	store, err := statedb.New(mapdb.NewMapDB())
	require.NoError(t, err)
	require.NoError(t, authority.RegisterTables(store))

	known := map[types.Name]bool{alice: true, bob: true, token: true}
	manager := authority.NewManager(store, authority.AccountSourceFunc(func(name types.Name) bool {
		return known[name]
	}))
	require.NoError(t, manager.ReserveFirstPermissionID())

	return &testEnv{store: store, manager: manager}
}

// createHierarchy gives alice the usual owner -> active chain plus a custom
// permission below active.
func (env *testEnv) createHierarchy(t *testing.T) (owner, active, trading *authority.Permission) {
	t.Helper()

	owner, _, err := env.manager.CreatePermission(alice, types.OwnerPermissionName, 0, testAuthority(1), 100)
	require.NoError(t, err)
	active, _, err = env.manager.CreatePermission(alice, types.ActivePermissionName, owner.ID(), testAuthority(2), 100)
	require.NoError(t, err)
	trading, _, err = env.manager.CreatePermission(alice, custom, active.ID(), testAuthority(3), 100)
	require.NoError(t, err)

	return owner, active, trading
}

func TestAuthorityValidate(t *testing.T) {
	valid := authority.Authority{
		Threshold: 2,
		Keys: []authority.KeyWeight{
			{Key: testKey(0, 1), Weight: 1},
			{Key: testKey(0, 2), Weight: 1},
		},
	}
	require.NoError(t, valid.Validate())

	zeroThreshold := valid
	zeroThreshold.Threshold = 0
	require.ErrorIs(t, zeroThreshold.Validate(), authority.ErrInvalidAuthority)

	unreachable := valid
	unreachable.Threshold = 3
	require.ErrorIs(t, unreachable.Validate(), authority.ErrInvalidAuthority)

	unsorted := authority.Authority{
		Threshold: 1,
		Keys: []authority.KeyWeight{
			{Key: testKey(0, 2), Weight: 1},
			{Key: testKey(0, 1), Weight: 1},
		},
	}
	require.ErrorIs(t, unsorted.Validate(), authority.ErrInvalidAuthority)

	zeroWait := authority.Authority{
		Threshold: 1,
		Keys:      []authority.KeyWeight{{Key: testKey(0, 1), Weight: 1}},
		Waits:     []authority.WaitWeight{{WaitSec: 0, Weight: 1}},
	}
	require.ErrorIs(t, zeroWait.Validate(), authority.ErrInvalidAuthority)
}

func TestCreateAndGetPermission(t *testing.T) {
	env := newTestEnv(t)
	_, active, _ := env.createHierarchy(t)

	found, err := env.manager.GetPermission(authority.PermissionLevel{Actor: alice, Permission: types.ActivePermissionName})
	require.NoError(t, err)
	require.Equal(t, active.ID(), found.ID())
	require.EqualValues(t, 100, found.LastUpdated)

	_, err = env.manager.GetPermission(authority.PermissionLevel{Actor: alice})
	require.ErrorIs(t, err, authority.ErrPermissionQuery)

	_, err = env.manager.GetPermission(authority.PermissionLevel{Actor: bob, Permission: types.ActivePermissionName})
	require.ErrorIs(t, err, authority.ErrPermissionQuery)
}

func TestUnactivatedKeyType(t *testing.T) {
	env := newTestEnv(t)

	exotic := authority.NewAuthority(1, authority.KeyWeight{Key: testKey(7, 1), Weight: 1})
	_, _, err := env.manager.CreatePermission(alice, types.OwnerPermissionName, 0, exotic, 100)
	require.ErrorIs(t, err, authority.ErrUnactivatedKeyType)
}

func TestModifyPermissionRAMDelta(t *testing.T) {
	env := newTestEnv(t)
	_, active, _ := env.createHierarchy(t)

	bigger := authority.Authority{
		Threshold: 1,
		Keys: []authority.KeyWeight{
			{Key: testKey(0, 4), Weight: 1},
			{Key: testKey(0, 5), Weight: 1},
		},
	}
	delta, err := env.manager.ModifyPermission(active, bigger, 200)
	require.NoError(t, err)
	require.Positive(t, delta)

	updated, err := env.manager.GetPermission(authority.PermissionLevel{Actor: alice, Permission: types.ActivePermissionName})
	require.NoError(t, err)
	require.Len(t, updated.Auth.Keys, 2)
	require.EqualValues(t, 200, updated.LastUpdated)

	smaller, err := env.manager.ModifyPermission(updated, testAuthority(6), 300)
	require.NoError(t, err)
	require.Equal(t, -delta, smaller)
}

func TestRemovePermissionRequiresLeaf(t *testing.T) {
	env := newTestEnv(t)
	owner, active, trading := env.createHierarchy(t)

	require.ErrorIs(t, env.manager.RemovePermission(owner), authority.ErrActionValidate)
	require.ErrorIs(t, env.manager.RemovePermission(active), authority.ErrActionValidate)

	require.NoError(t, env.manager.RemovePermission(trading))
	require.NoError(t, env.manager.RemovePermission(active))
	require.NoError(t, env.manager.RemovePermission(owner))
}

func TestLinkAuthority(t *testing.T) {
	env := newTestEnv(t)
	env.createHierarchy(t)

	delta, err := env.manager.LinkAuthority(alice, token, transfer, custom)
	require.NoError(t, err)
	require.Positive(t, delta)

	// same link again is rejected
	_, err = env.manager.LinkAuthority(alice, token, transfer, custom)
	require.ErrorIs(t, err, authority.ErrActionValidate)

	// updating to a different requirement is free
	delta, err = env.manager.LinkAuthority(alice, token, transfer, types.ActivePermissionName)
	require.NoError(t, err)
	require.Zero(t, delta)

	// unknown accounts and permissions are rejected
	_, err = env.manager.LinkAuthority(types.MustNameFromString("ghost"), token, transfer, custom)
	require.ErrorIs(t, err, authority.ErrActionValidate)
	_, err = env.manager.LinkAuthority(alice, token, transfer, types.MustNameFromString("nosuchperm"))
	require.ErrorIs(t, err, authority.ErrPermissionQuery)

	// native authority management cannot be linked
	_, err = env.manager.LinkAuthority(alice, types.SystemAccountName, types.UpdateAuthActionName, custom)
	require.ErrorIs(t, err, authority.ErrActionValidate)
}

func TestUnlinkAuthority(t *testing.T) {
	env := newTestEnv(t)
	env.createHierarchy(t)

	linked, err := env.manager.LinkAuthority(alice, token, transfer, custom)
	require.NoError(t, err)

	unlinked, err := env.manager.UnlinkAuthority(alice, token, transfer)
	require.NoError(t, err)
	require.Equal(t, -linked, unlinked)

	_, err = env.manager.UnlinkAuthority(alice, token, transfer)
	require.ErrorIs(t, err, authority.ErrActionValidate)
}

func TestDeleteAuthority(t *testing.T) {
	env := newTestEnv(t)
	_, _, trading := env.createHierarchy(t)

	_, err := env.manager.LinkAuthority(alice, token, transfer, custom)
	require.NoError(t, err)

	// linked permissions cannot be deleted
	_, err = env.manager.DeleteAuthority(alice, custom)
	require.ErrorIs(t, err, authority.ErrActionValidate)

	_, err = env.manager.UnlinkAuthority(alice, token, transfer)
	require.NoError(t, err)

	freed, err := env.manager.DeleteAuthority(alice, custom)
	require.NoError(t, err)
	require.EqualValues(t, -int64(trading.BillableSize()), freed)

	_, exists := env.manager.FindPermission(authority.PermissionLevel{Actor: alice, Permission: custom})
	require.False(t, exists)
}

func TestLookupLinkedPermission(t *testing.T) {
	env := newTestEnv(t)
	env.createHierarchy(t)

	_, exists := env.manager.LookupLinkedPermission(alice, token, transfer)
	require.False(t, exists)

	// wildcard link covers all actions of the contract
	_, err := env.manager.LinkAuthority(alice, token, 0, custom)
	require.NoError(t, err)
	linked, exists := env.manager.LookupLinkedPermission(alice, token, transfer)
	require.True(t, exists)
	require.Equal(t, custom, linked)

	// an exact link shadows the wildcard
	_, err = env.manager.LinkAuthority(alice, token, transfer, types.ActivePermissionName)
	require.NoError(t, err)
	linked, _ = env.manager.LookupLinkedPermission(alice, token, transfer)
	require.Equal(t, types.ActivePermissionName, linked)
}

func TestLookupMinimumPermission(t *testing.T) {
	env := newTestEnv(t)
	env.createHierarchy(t)

	// no link: active is the default
	minimum, required := env.manager.LookupMinimumPermission(alice, token, transfer)
	require.True(t, required)
	require.Equal(t, types.ActivePermissionName, minimum)

	_, err := env.manager.LinkAuthority(alice, token, transfer, custom)
	require.NoError(t, err)
	minimum, required = env.manager.LookupMinimumPermission(alice, token, transfer)
	require.True(t, required)
	require.Equal(t, custom, minimum)

	// native authority management always demands active
	minimum, required = env.manager.LookupMinimumPermission(alice, types.SystemAccountName, types.UpdateAuthActionName)
	require.True(t, required)
	require.Equal(t, types.ActivePermissionName, minimum)
}

func TestPermissionSatisfaction(t *testing.T) {
	env := newTestEnv(t)
	owner, active, trading := env.createHierarchy(t)

	require.True(t, env.manager.PermissionSatisfies(owner, active))
	require.True(t, env.manager.PermissionSatisfies(owner, trading))
	require.True(t, env.manager.PermissionSatisfies(active, trading))
	require.True(t, env.manager.PermissionSatisfies(active, active))
	require.False(t, env.manager.PermissionSatisfies(trading, active))

	satisfied, err := env.manager.SatisfiesPermissionLevel(
		authority.PermissionLevel{Actor: alice, Permission: types.OwnerPermissionName},
		authority.PermissionLevel{Actor: alice, Permission: custom})
	require.NoError(t, err)
	require.True(t, satisfied)
}

func TestPermissionUsageTracking(t *testing.T) {
	env := newTestEnv(t)
	_, active, _ := env.createHierarchy(t)

	lastUsed, err := env.manager.GetPermissionLastUsed(active)
	require.NoError(t, err)
	require.EqualValues(t, 100, lastUsed)

	require.NoError(t, env.manager.UpdatePermissionUsage(active, 500))
	lastUsed, err = env.manager.GetPermissionLastUsed(active)
	require.NoError(t, err)
	require.EqualValues(t, 500, lastUsed)
}

func TestPermissionGraphSurvivesUndo(t *testing.T) {
	env := newTestEnv(t)
	env.createHierarchy(t)

	session := env.store.StartUndoSession()
	_, _, err := env.manager.CreatePermission(alice, types.MustNameFromString("ephemeral"), 0, testAuthority(9), 100)
	require.NoError(t, err)
	_, err = env.manager.LinkAuthority(alice, token, transfer, custom)
	require.NoError(t, err)
	require.NoError(t, session.Undo())

	_, exists := env.manager.FindPermission(authority.PermissionLevel{Actor: alice, Permission: types.MustNameFromString("ephemeral")})
	require.False(t, exists)
	_, exists = env.manager.LookupLinkedPermission(alice, token, transfer)
	require.False(t, exists)
}
