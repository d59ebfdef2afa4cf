package resource

import (
	"math"

	"github.com/iotaledger/hive.go/ierrors"

	"github.com/iotaledger/chainstate/pkg/statedb"
	"github.com/iotaledger/chainstate/pkg/types"
)

// AccountResourceLimit describes one resource of one account as seen from
// the outside. Negative values mean unlimited.
type AccountResourceLimit struct {
	Used                int64
	Available           int64
	Max                 int64
	LastUsageUpdateTime types.BlockTimestamp
	CurrentUsed         int64
}

func unlimitedResource(lastUpdate types.BlockTimestamp) AccountResourceLimit {
	return AccountResourceLimit{Used: -1, Available: -1, Max: -1, LastUsageUpdateTime: lastUpdate, CurrentUsed: -1}
}

// Manager meters CPU, NET and RAM against elastic per-account quotas. All
// mutations run through the underlying store and are therefore covered by
// whatever undo session is open.
type Manager struct {
	store *statedb.Store
}

func NewManager(store *statedb.Store) *Manager {
	return &Manager{store: store}
}

// InitializeDatabase seeds the singleton config and state rows. Virtual
// limits start at the guaranteed maximum, treating a fresh chain as fully
// congested so limits relax only as blocks prove uncontended.
func (m *Manager) InitializeDatabase() error {
	config := DefaultConfig()
	if err := m.store.Insert(config); err != nil {
		return ierrors.Wrap(err, "failed to initialize resource config")
	}

	state := &State{
		VirtualCPULimit: config.CPULimitParameters.Max,
		VirtualNetLimit: config.NetLimitParameters.Max,
	}

	return ierrors.Wrap(m.store.Insert(state), "failed to initialize resource state")
}

// InitializeAccount creates the unlimited quota row and the zeroed usage row
// of a fresh account.
func (m *Manager) InitializeAccount(account types.Name) error {
	if err := m.store.Insert(&Limits{Owner: account, NetWeight: -1, CPUWeight: -1, RAMBytes: -1}); err != nil {
		return ierrors.Wrapf(err, "failed to initialize limits of account %s", account)
	}

	return ierrors.Wrapf(m.store.Insert(&Usage{Owner: account}), "failed to initialize usage of account %s", account)
}

func (m *Manager) config() (*Config, error) {
	return statedb.Get[Config](m.store, statedb.Uint64Key(0))
}

func (m *Manager) state() (*State, error) {
	return statedb.Get[State](m.store, statedb.Uint64Key(0))
}

func (m *Manager) usage(account types.Name) (*Usage, error) {
	return statedb.GetBySecondary[Usage](m.store, usageByOwnerIndex, account.Bytes())
}

// AddTransactionUsage charges cpuUsage and netUsage to every authorizing
// account at timeSlot and accumulates the pending block totals. Accounts
// with limited weight are checked against their elastic capacity in the
// averaging window.
func (m *Manager) AddTransactionUsage(accounts []types.Name, cpuUsage, netUsage uint64, timeSlot types.BlockTimestamp) error {
	state, err := m.state()
	if err != nil {
		return err
	}
	config, err := m.config()
	if err != nil {
		return err
	}

	for _, account := range accounts {
		usage, err := m.usage(account)
		if err != nil {
			return err
		}
		_, netWeight, cpuWeight, err := m.GetAccountLimits(account)
		if err != nil {
			return err
		}

		if err := statedb.Modify(m.store, usage, func(u *Usage) error {
			if err := u.NetUsage.Add(netUsage, timeSlot, config.AccountNetUsageAverageWindow); err != nil {
				return err
			}

			return u.CPUUsage.Add(cpuUsage, timeSlot, config.AccountCPUUsageAverageWindow)
		}); err != nil {
			return err
		}
		usage, err = m.usage(account)
		if err != nil {
			return err
		}

		if cpuWeight >= 0 && state.TotalCPUWeight > 0 {
			used, capacity, err := usedAndCapacityInWindow(usage.CPUUsage.ValueEx, state.VirtualCPULimit,
				config.AccountCPUUsageAverageWindow, uint64(cpuWeight), state.TotalCPUWeight)
			if err != nil {
				return err
			}
			if used.Cmp(capacity) > 0 {
				return ierrors.Wrapf(ErrTxCPUUsageExceeded,
					"authorizing account %s has insufficient cpu resources for this transaction", account)
			}
		}

		if netWeight >= 0 && state.TotalNetWeight > 0 {
			used, capacity, err := usedAndCapacityInWindow(usage.NetUsage.ValueEx, state.VirtualNetLimit,
				config.AccountNetUsageAverageWindow, uint64(netWeight), state.TotalNetWeight)
			if err != nil {
				return err
			}
			if used.Cmp(capacity) > 0 {
				return ierrors.Wrapf(ErrTxNetUsageExceeded,
					"authorizing account %s has insufficient net resources for this transaction", account)
			}
		}
	}

	if err := statedb.Modify(m.store, state, func(s *State) error {
		s.PendingCPUUsage += cpuUsage
		s.PendingNetUsage += netUsage

		return nil
	}); err != nil {
		return err
	}
	state, err = m.state()
	if err != nil {
		return err
	}

	if state.PendingCPUUsage > config.CPULimitParameters.Max {
		return ierrors.Wrap(ErrBlockResourceExhausted, "block has insufficient cpu resources")
	}
	if state.PendingNetUsage > config.NetLimitParameters.Max {
		return ierrors.Wrap(ErrBlockResourceExhausted, "block has insufficient net resources")
	}

	return nil
}

// usedAndCapacityInWindow computes an account's usage and elastic capacity
// over the averaging window, both scaled by the window size. The capacity is
// the account's weight-share of the virtual limit sustained over the whole
// window.
func usedAndCapacityInWindow(valueEx, virtualLimit uint64, window uint32, weight, totalWeight uint64) (used, capacity types.Uint128, err error) {
	used, err = types.Mul64(valueEx, uint64(window)).DivUint64(Precision)
	if err != nil {
		return used, capacity, ierrors.Wrap(ErrStateInconsistent, err.Error())
	}

	virtualCapacity := types.Mul64(virtualLimit, uint64(window))
	capacity, err = virtualCapacity.MulUint64(weight)
	if err != nil {
		return used, capacity, ierrors.Wrap(ErrStateInconsistent, err.Error())
	}
	capacity, err = capacity.DivUint64(totalWeight)
	if err != nil {
		return used, capacity, ierrors.Wrap(ErrStateInconsistent, err.Error())
	}

	return used, capacity, nil
}

// AddPendingRAMUsage applies a RAM delta to an account. Quota enforcement is
// deferred to VerifyAccountRAMUsage so that intra-transaction spikes are
// tolerated.
func (m *Manager) AddPendingRAMUsage(account types.Name, delta int64) error {
	if delta == 0 {
		return nil
	}

	usage, err := m.usage(account)
	if err != nil {
		return err
	}

	return statedb.Modify(m.store, usage, func(u *Usage) error {
		if delta < 0 && u.RAMUsage < uint64(-delta) {
			return ierrors.Wrapf(ErrTransaction, "account %s has insufficient ram to release %d bytes", account, -delta)
		}
		if delta > 0 && u.RAMUsage > math.MaxUint64-uint64(delta) {
			return ierrors.Wrapf(ErrTransaction, "ram usage of account %s would overflow", account)
		}

		if delta < 0 {
			u.RAMUsage -= uint64(-delta)
		} else {
			u.RAMUsage += uint64(delta)
		}

		return nil
	})
}

// VerifyAccountRAMUsage fails when an account with a finite quota holds more
// RAM than it bought.
func (m *Manager) VerifyAccountRAMUsage(account types.Name) error {
	ramBytes, _, _, err := m.GetAccountLimits(account)
	if err != nil {
		return err
	}
	if ramBytes < 0 {
		return nil
	}

	usage, err := m.usage(account)
	if err != nil {
		return err
	}
	if usage.RAMUsage > uint64(ramBytes) {
		return ierrors.Wrapf(ErrRAMUsageExceeded,
			"account %s has insufficient ram; needs %d bytes has %d bytes", account, usage.RAMUsage, ramBytes)
	}

	return nil
}

// GetAccountRAMUsage returns the bytes an account currently occupies.
func (m *Manager) GetAccountRAMUsage(account types.Name) (uint64, error) {
	usage, err := m.usage(account)
	if err != nil {
		return 0, err
	}

	return usage.RAMUsage, nil
}

// SetAccountLimits stages new quotas on the account's pending row; they take
// effect when ProcessAccountLimitUpdates folds them in. The return reports
// whether any limit decreased, which callers use to force an immediate
// usage check.
func (m *Manager) SetAccountLimits(account types.Name, ramBytes, netWeight, cpuWeight int64) (decreasedLimit bool, err error) {
	pending, exists := statedb.FindBySecondary[Limits](m.store, limitsByOwnerIndex, limitsKey(true, account))
	if !exists {
		actual, err := statedb.GetBySecondary[Limits](m.store, limitsByOwnerIndex, limitsKey(false, account))
		if err != nil {
			return false, err
		}
		pending = &Limits{
			Owner:     account,
			Pending:   true,
			NetWeight: actual.NetWeight,
			CPUWeight: actual.CPUWeight,
			RAMBytes:  actual.RAMBytes,
		}
		if err := m.store.Insert(pending); err != nil {
			return false, err
		}
	}

	if ramBytes >= 0 && (pending.RAMBytes < 0 || ramBytes < pending.RAMBytes) {
		decreasedLimit = true
	}

	return decreasedLimit, statedb.Modify(m.store, pending, func(l *Limits) error {
		l.RAMBytes = ramBytes
		l.NetWeight = netWeight
		l.CPUWeight = cpuWeight

		return nil
	})
}

// GetAccountLimits returns the account's quotas, preferring a staged pending
// row over the active one.
func (m *Manager) GetAccountLimits(account types.Name) (ramBytes, netWeight, cpuWeight int64, err error) {
	limits, exists := statedb.FindBySecondary[Limits](m.store, limitsByOwnerIndex, limitsKey(true, account))
	if !exists {
		limits, err = statedb.GetBySecondary[Limits](m.store, limitsByOwnerIndex, limitsKey(false, account))
		if err != nil {
			return 0, 0, 0, err
		}
	}

	return limits.RAMBytes, limits.NetWeight, limits.CPUWeight, nil
}

// ProcessAccountLimitUpdates folds every pending limits row into its active
// counterpart and maintains the chain-wide weight totals.
func (m *Manager) ProcessAccountLimitUpdates() error {
	var pendingIDs []uint64
	for it := statedb.LowerBound[Limits](m.store, limitsByOwnerIndex, limitsKey(true, 0)); it.Valid(); it.Next() {
		pendingIDs = append(pendingIDs, it.ID())
	}
	if len(pendingIDs) == 0 {
		return nil
	}

	state, err := m.state()
	if err != nil {
		return err
	}

	totalRAM := state.TotalRAMBytes
	totalNet := state.TotalNetWeight
	totalCPU := state.TotalCPUWeight

	for _, id := range pendingIDs {
		pending, err := statedb.GetByID[Limits](m.store, id)
		if err != nil {
			return err
		}
		actual, err := statedb.GetBySecondary[Limits](m.store, limitsByOwnerIndex, limitsKey(false, pending.Owner))
		if err != nil {
			return ierrors.Wrapf(ErrStateInconsistent, "pending limits of %s have no active row", pending.Owner)
		}

		if err := statedb.Modify(m.store, actual, func(l *Limits) error {
			if err := updateStateAndValue(&totalRAM, &l.RAMBytes, pending.RAMBytes, "ram_bytes"); err != nil {
				return err
			}
			if err := updateStateAndValue(&totalNet, &l.NetWeight, pending.NetWeight, "net_weight"); err != nil {
				return err
			}

			return updateStateAndValue(&totalCPU, &l.CPUWeight, pending.CPUWeight, "cpu_weight")
		}); err != nil {
			return err
		}

		if err := m.store.Remove(pending); err != nil {
			return err
		}
	}

	return statedb.Modify(m.store, state, func(s *State) error {
		s.TotalRAMBytes = totalRAM
		s.TotalNetWeight = totalNet
		s.TotalCPUWeight = totalCPU

		return nil
	})
}

// updateStateAndValue retires value's contribution to the total and adds the
// pending contribution in its place.
func updateStateAndValue(total *uint64, value *int64, pendingValue int64, which string) error {
	if *value > 0 {
		if *total < uint64(*value) {
			return ierrors.Wrapf(ErrStateInconsistent, "underflow when reverting old value to %s", which)
		}
		*total -= uint64(*value)
	}
	if pendingValue > 0 {
		if *total > math.MaxUint64-uint64(pendingValue) {
			return ierrors.Wrapf(ErrStateInconsistent, "overflow when applying new value to %s", which)
		}
		*total += uint64(pendingValue)
	}
	*value = pendingValue

	return nil
}

// ProcessBlockUsage rolls the finished block's totals into the averages and
// walks the virtual limits one elastic step.
func (m *Manager) ProcessBlockUsage(blockTime types.BlockTimestamp) error {
	config, err := m.config()
	if err != nil {
		return err
	}
	state, err := m.state()
	if err != nil {
		return err
	}

	return statedb.Modify(m.store, state, func(s *State) error {
		if err := s.AverageBlockCPUUsage.Add(s.PendingCPUUsage, blockTime, config.CPULimitParameters.Periods); err != nil {
			return err
		}
		s.VirtualCPULimit = UpdateElasticLimit(s.VirtualCPULimit, s.AverageBlockCPUUsage.Average(), config.CPULimitParameters)

		if err := s.AverageBlockNetUsage.Add(s.PendingNetUsage, blockTime, config.NetLimitParameters.Periods); err != nil {
			return err
		}
		s.VirtualNetLimit = UpdateElasticLimit(s.VirtualNetLimit, s.AverageBlockNetUsage.Average(), config.NetLimitParameters)

		s.PendingCPUUsage = 0
		s.PendingNetUsage = 0

		return nil
	})
}

// SetBlockParameters replaces the elastic parameters; a no-op when nothing
// changed, so regular reconfiguration proposals do not dirty the config row.
func (m *Manager) SetBlockParameters(cpuLimitParameters, netLimitParameters ElasticLimitParameters) error {
	if err := cpuLimitParameters.Validate(); err != nil {
		return err
	}
	if err := netLimitParameters.Validate(); err != nil {
		return err
	}

	config, err := m.config()
	if err != nil {
		return err
	}
	if config.CPULimitParameters == cpuLimitParameters && config.NetLimitParameters == netLimitParameters {
		return nil
	}

	return statedb.Modify(m.store, config, func(c *Config) error {
		c.CPULimitParameters = cpuLimitParameters
		c.NetLimitParameters = netLimitParameters

		return nil
	})
}

// GetVirtualBlockCPULimit returns the current elastic chain-wide CPU limit.
func (m *Manager) GetVirtualBlockCPULimit() (uint64, error) {
	state, err := m.state()
	if err != nil {
		return 0, err
	}

	return state.VirtualCPULimit, nil
}

// GetVirtualBlockNetLimit returns the current elastic chain-wide NET limit.
func (m *Manager) GetVirtualBlockNetLimit() (uint64, error) {
	state, err := m.state()
	if err != nil {
		return 0, err
	}

	return state.VirtualNetLimit, nil
}

// GetBlockCPULimit returns the CPU budget still available in the pending
// block.
func (m *Manager) GetBlockCPULimit() (uint64, error) {
	state, err := m.state()
	if err != nil {
		return 0, err
	}
	config, err := m.config()
	if err != nil {
		return 0, err
	}

	return config.CPULimitParameters.Max - state.PendingCPUUsage, nil
}

// GetBlockNetLimit returns the NET budget still available in the pending
// block.
func (m *Manager) GetBlockNetLimit() (uint64, error) {
	state, err := m.state()
	if err != nil {
		return 0, err
	}
	config, err := m.config()
	if err != nil {
		return 0, err
	}

	return config.NetLimitParameters.Max - state.PendingNetUsage, nil
}

// GetAccountCPULimit returns the account's CPU window viewed with an
// optional greylist cap.
func (m *Manager) GetAccountCPULimit(account types.Name, greylistLimit uint32, currentTime types.BlockTimestamp) (AccountResourceLimit, bool, error) {
	state, err := m.state()
	if err != nil {
		return AccountResourceLimit{}, false, err
	}
	config, err := m.config()
	if err != nil {
		return AccountResourceLimit{}, false, err
	}
	usage, err := m.usage(account)
	if err != nil {
		return AccountResourceLimit{}, false, err
	}
	_, _, cpuWeight, err := m.GetAccountLimits(account)
	if err != nil {
		return AccountResourceLimit{}, false, err
	}

	return accountResourceWindow(&usage.CPUUsage, cpuWeight, state.TotalCPUWeight, state.VirtualCPULimit,
		config.CPULimitParameters.Max, config.AccountCPUUsageAverageWindow, greylistLimit, currentTime)
}

// GetAccountNetLimit returns the account's NET window viewed with an
// optional greylist cap.
func (m *Manager) GetAccountNetLimit(account types.Name, greylistLimit uint32, currentTime types.BlockTimestamp) (AccountResourceLimit, bool, error) {
	state, err := m.state()
	if err != nil {
		return AccountResourceLimit{}, false, err
	}
	config, err := m.config()
	if err != nil {
		return AccountResourceLimit{}, false, err
	}
	usage, err := m.usage(account)
	if err != nil {
		return AccountResourceLimit{}, false, err
	}
	_, netWeight, _, err := m.GetAccountLimits(account)
	if err != nil {
		return AccountResourceLimit{}, false, err
	}

	return accountResourceWindow(&usage.NetUsage, netWeight, state.TotalNetWeight, state.VirtualNetLimit,
		config.NetLimitParameters.Max, config.AccountNetUsageAverageWindow, greylistLimit, currentTime)
}

// accountResourceWindow projects one accumulator into an external view. A
// greylist limit below the elastic multiplier caps the virtual limit at
// greylistLimit times the guaranteed maximum; when that cap bites, the
// account is reported greylisted.
func accountResourceWindow(accumulator *UsageAccumulator, weight int64, totalWeight, virtualLimit, maxLimit uint64,
	window uint32, greylistLimit uint32, currentTime types.BlockTimestamp) (AccountResourceLimit, bool, error) {
	if weight < 0 || totalWeight == 0 {
		return unlimitedResource(accumulator.LastOrdinal), false, nil
	}

	greylisted := false
	effectiveLimit := virtualLimit
	if greylistLimit < MaxElasticResourceMultiplier {
		capped := maxLimit * uint64(greylistLimit)
		if capped < effectiveLimit {
			effectiveLimit = capped
			greylisted = true
		}
	}

	used, capacity, err := usedAndCapacityInWindow(accumulator.ValueEx, effectiveLimit, window, uint64(weight), totalWeight)
	if err != nil {
		return AccountResourceLimit{}, false, err
	}

	decayed := *accumulator
	if err := decayed.Add(0, currentTime, window); err != nil {
		return AccountResourceLimit{}, false, err
	}
	currentUsed, err := types.Mul64(decayed.ValueEx, uint64(window)).DivUint64(Precision)
	if err != nil {
		return AccountResourceLimit{}, false, ierrors.Wrap(ErrStateInconsistent, err.Error())
	}

	result := AccountResourceLimit{
		Used:                downgrade(used),
		Max:                 downgrade(capacity),
		LastUsageUpdateTime: accumulator.LastOrdinal,
		CurrentUsed:         downgrade(currentUsed),
	}
	if capacity.Cmp(used) <= 0 {
		result.Available = 0
	} else {
		available, err := capacity.Sub(used)
		if err != nil {
			return AccountResourceLimit{}, false, ierrors.Wrap(ErrStateInconsistent, err.Error())
		}
		result.Available = downgrade(available)
	}

	return result, greylisted, nil
}

// downgrade clamps a window quantity into the int64 range of the external
// view.
func downgrade(v types.Uint128) int64 {
	if v.Hi != 0 || v.Lo > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(v.Lo)
}
