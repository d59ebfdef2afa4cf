package chainstate

import (
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/options"

	"github.com/iotaledger/chainstate/pkg/accounts"
	"github.com/iotaledger/chainstate/pkg/authority"
	"github.com/iotaledger/chainstate/pkg/contracttable"
	"github.com/iotaledger/chainstate/pkg/resource"
	"github.com/iotaledger/chainstate/pkg/statedb"
	"github.com/iotaledger/chainstate/pkg/types"
)

// GenesisNumSupportedKeyTypes is the number of key types activated at
// genesis before any protocol upgrade.
const GenesisNumSupportedKeyTypes = 2

// ChainState wires the state store and its managers into one chain core.
// All managers share a single store, so one undo session covers every
// mutation made through any of them.
type ChainState struct {
	store  *statedb.Store
	logger log.Logger

	Accounts  *accounts.Manager
	Authority *authority.Manager
	Resources *resource.Manager
	Scanner   *contracttable.Scanner

	genesisTimestamp     types.TimePoint
	numSupportedKeyTypes uint8
}

func New(backing kvstore.KVStore, opts ...options.Option[ChainState]) (*ChainState, error) {
	store, err := statedb.New(backing)
	if err != nil {
		return nil, err
	}

	c := options.Apply(&ChainState{
		store:                store,
		logger:               log.NewLogger(),
		numSupportedKeyTypes: GenesisNumSupportedKeyTypes,
	}, opts)

	for _, register := range []func(*statedb.Store) error{
		RegisterTables,
		resource.RegisterTables,
		authority.RegisterTables,
		accounts.RegisterTables,
		contracttable.RegisterTables,
	} {
		if err := register(store); err != nil {
			return nil, err
		}
	}

	c.Accounts = accounts.NewManager(store)
	c.Authority = authority.NewManager(store, c.Accounts,
		authority.WithNumSupportedKeyTypes(c.NumSupportedKeyTypes))
	c.Resources = resource.NewManager(store)
	c.Scanner = contracttable.NewScanner(store,
		contracttable.WithLogger(c.logger.NewChildLogger("scanner")),
		contracttable.WithABIProvider(func(code types.Name) ([]byte, error) {
			account, err := c.Accounts.GetAccount(code)
			if err != nil {
				return nil, err
			}

			return account.ABI, nil
		}),
	)

	return c, nil
}

func WithLogger(logger log.Logger) options.Option[ChainState] {
	return func(c *ChainState) {
		c.logger = logger
	}
}

func WithGenesisTimestamp(timestamp types.TimePoint) options.Option[ChainState] {
	return func(c *ChainState) {
		c.genesisTimestamp = timestamp
	}
}

func WithNumSupportedKeyTypes(num uint8) options.Option[ChainState] {
	return func(c *ChainState) {
		c.numSupportedKeyTypes = num
	}
}

// Store exposes the underlying state store for direct queries.
func (c *ChainState) Store() *statedb.Store {
	return c.store
}

// NumSupportedKeyTypes reads the activated key type count. Before the
// database is initialized it falls back to the configured genesis value.
func (c *ChainState) NumSupportedKeyTypes() uint8 {
	if state, exists := statedb.Find[ProtocolState](c.store, statedb.Uint64Key(0)); exists {
		return state.NumSupportedKeyTypes
	}

	return c.numSupportedKeyTypes
}

// ChainID returns the chain identifier set at genesis.
func (c *ChainState) ChainID() (types.Digest, error) {
	properties, err := statedb.Get[GlobalProperty](c.store, statedb.Uint64Key(0))
	if err != nil {
		return types.Digest{}, err
	}

	return properties.ChainID, nil
}

// NextGlobalSequence increments and returns the global action sequence.
func (c *ChainState) NextGlobalSequence() (uint64, error) {
	properties, err := statedb.Get[DynamicGlobalProperty](c.store, statedb.Uint64Key(0))
	if err != nil {
		return 0, err
	}
	if err := statedb.Modify(c.store, properties, func(d *DynamicGlobalProperty) error {
		d.GlobalActionSequence++

		return nil
	}); err != nil {
		return 0, err
	}

	return properties.GlobalActionSequence + 1, nil
}

// InitializeDatabase seeds a fresh store: the singleton property rows, the
// reserved permission id 0, the resource accounting state, and the native
// accounts with their permission chains.
func (c *ChainState) InitializeDatabase(chainID types.Digest, initialKey types.PublicKey) error {
	if err := c.store.Insert(&GlobalProperty{ChainID: chainID}); err != nil {
		return err
	}
	if err := c.store.Insert(&DynamicGlobalProperty{}); err != nil {
		return err
	}
	if err := c.store.Insert(&ProtocolState{NumSupportedKeyTypes: c.numSupportedKeyTypes}); err != nil {
		return err
	}

	if err := c.Authority.ReserveFirstPermissionID(); err != nil {
		return err
	}
	if err := c.Resources.InitializeDatabase(); err != nil {
		return err
	}

	systemAuth := authority.NewAuthority(1, authority.KeyWeight{Key: initialKey, Weight: 1})
	if err := c.createNativeAccount(types.SystemAccountName, systemAuth, systemAuth, true); err != nil {
		return err
	}

	emptyAuth := authority.Authority{Threshold: 1}
	producersAuth := authority.Authority{
		Threshold: 1,
		Accounts: []authority.PermissionLevelWeight{{
			Permission: authority.PermissionLevel{
				Actor:      types.SystemAccountName,
				Permission: types.ActivePermissionName,
			},
			Weight: 1,
		}},
	}
	if err := c.createNativeAccount(types.NullAccountName, emptyAuth, emptyAuth, false); err != nil {
		return err
	}
	if err := c.createNativeAccount(types.ProducersAccountName, emptyAuth, producersAuth, false); err != nil {
		return err
	}

	// the producer permission chain hangs off the active permission:
	// active <- prod.major <- prod.minor
	active, err := c.Authority.GetPermission(authority.PermissionLevel{
		Actor:      types.ProducersAccountName,
		Permission: types.ActivePermissionName,
	})
	if err != nil {
		return err
	}
	majority, _, err := c.Authority.CreatePermission(
		types.ProducersAccountName, types.MajorityPermissionName, active.ID(), producersAuth, c.genesisTimestamp)
	if err != nil {
		return err
	}
	if _, _, err := c.Authority.CreatePermission(
		types.ProducersAccountName, types.MinorityPermissionName, majority.ID(), producersAuth, c.genesisTimestamp); err != nil {
		return err
	}

	c.logger.LogInfof("initialized chain database, chainID: %s", chainID)

	return nil
}

func (c *ChainState) createNativeAccount(name types.Name, owner, active authority.Authority, privileged bool) error {
	if _, err := c.Accounts.CreateAccount(name, types.BlockTimestampFromTimePoint(c.genesisTimestamp)); err != nil {
		return err
	}
	if privileged {
		if err := c.Accounts.SetPrivileged(name, true); err != nil {
			return err
		}
	}

	ownerPermission, ownerRAM, err := c.Authority.CreatePermission(
		name, types.OwnerPermissionName, 0, owner, c.genesisTimestamp)
	if err != nil {
		return err
	}
	_, activeRAM, err := c.Authority.CreatePermission(
		name, types.ActivePermissionName, ownerPermission.ID(), active, c.genesisTimestamp)
	if err != nil {
		return err
	}

	if err := c.Resources.InitializeAccount(name); err != nil {
		return err
	}

	ramDelta := int64(resource.OverheadPerAccount) + ownerRAM + activeRAM
	if err := c.Resources.AddPendingRAMUsage(name, ramDelta); err != nil {
		return err
	}

	return c.Resources.VerifyAccountRAMUsage(name)
}

// StartUndoSession opens a new undo boundary covering all managers.
func (c *ChainState) StartUndoSession() *statedb.Session {
	return c.store.StartUndoSession()
}

// Commit persists every session up to revision and flushes to the backing
// store.
func (c *ChainState) Commit(revision int64) error {
	return c.store.Commit(revision)
}

func (c *ChainState) Revision() int64 {
	return c.store.Revision()
}

// OpenCursors returns the table cursor surface of one executing contract.
func (c *ChainState) OpenCursors(code types.Name) *contracttable.Cursors {
	return contracttable.NewCursors(c.store, code)
}

// ApplyRAMDeltas charges table mutation billing to the payers. Positive
// deltas are verified against the payer's quota immediately; refunds are
// never rejected.
func (c *ChainState) ApplyRAMDeltas(deltas []contracttable.RAMDelta) error {
	for _, delta := range deltas {
		if delta.Bytes == 0 {
			continue
		}
		if err := c.BillRAM(delta.Payer, delta.Bytes); err != nil {
			return err
		}
	}

	return nil
}

// BillRAM charges a single RAM delta, as reported by the authority and
// account managers, to an account.
func (c *ChainState) BillRAM(payer types.Name, delta int64) error {
	if err := c.Resources.AddPendingRAMUsage(payer, delta); err != nil {
		return err
	}
	if delta > 0 {
		return c.Resources.VerifyAccountRAMUsage(payer)
	}

	return nil
}
