package resource

import (
	"github.com/iotaledger/hive.go/core/marshalutil"

	"github.com/iotaledger/chainstate/pkg/statedb"
	"github.com/iotaledger/chainstate/pkg/types"
)

const (
	LimitsTable = "resource_limits"
	UsageTable  = "resource_usage"
	ConfigTable = "resource_limits_config"
	StateTable  = "resource_limits_state"

	limitsByOwnerIndex = "byOwner"
	usageByOwnerIndex  = "byOwner"
	singletonIndex     = "byID"
)

// RegisterTables declares the resource accounting tables on the store.
func RegisterTables(store *statedb.Store) error {
	for _, registration := range []struct {
		name    string
		factory func() statedb.Object
	}{
		{LimitsTable, func() statedb.Object { return new(Limits) }},
		{UsageTable, func() statedb.Object { return new(Usage) }},
		{ConfigTable, func() statedb.Object { return new(Config) }},
		{StateTable, func() statedb.Object { return new(State) }},
	} {
		if err := store.RegisterTable(registration.name, registration.factory); err != nil {
			return err
		}
	}

	return nil
}

// Limits is the per-account resource quota row. Pending rows shadow the
// active row until the end-of-block fold. Negative weights and quotas mean
// unlimited.
type Limits struct {
	id        uint64
	Owner     types.Name
	Pending   bool
	NetWeight int64
	CPUWeight int64
	RAMBytes  int64
}

func limitsKey(pending bool, owner types.Name) []byte {
	flag := byte(0)
	if pending {
		flag = 1
	}

	return statedb.CompositeKey([]byte{flag}, owner.Bytes())
}

func (l *Limits) TableName() string { return LimitsTable }
func (l *Limits) ID() uint64        { return l.id }
func (l *Limits) SetID(id uint64)   { l.id = id }

func (l *Limits) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: limitsByOwnerIndex, Key: limitsKey(l.Pending, l.Owner)},
	}
}

func (l *Limits) Bytes() ([]byte, error) {
	m := marshalutil.New()
	m.WriteUint64(l.id)
	m.WriteUint64(uint64(l.Owner))
	m.WriteBool(l.Pending)
	m.WriteInt64(l.NetWeight)
	m.WriteInt64(l.CPUWeight)
	m.WriteInt64(l.RAMBytes)

	return m.Bytes(), nil
}

func (l *Limits) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if l.id, err = m.ReadUint64(); err != nil {
		return err
	}
	owner, err := m.ReadUint64()
	if err != nil {
		return err
	}
	l.Owner = types.Name(owner)
	if l.Pending, err = m.ReadBool(); err != nil {
		return err
	}
	if l.NetWeight, err = m.ReadInt64(); err != nil {
		return err
	}
	if l.CPUWeight, err = m.ReadInt64(); err != nil {
		return err
	}
	l.RAMBytes, err = m.ReadInt64()

	return err
}

func (l *Limits) Clone() statedb.Object {
	cloned := *l

	return &cloned
}

// IsUnlimited reports whether the row still carries the defaults every
// account starts with.
func (l *Limits) IsUnlimited() bool {
	return l.NetWeight == -1 && l.CPUWeight == -1 && l.RAMBytes == -1
}

// Usage is the per-account consumption row.
type Usage struct {
	id       uint64
	Owner    types.Name
	NetUsage UsageAccumulator
	CPUUsage UsageAccumulator
	RAMUsage uint64
}

func (u *Usage) TableName() string { return UsageTable }
func (u *Usage) ID() uint64        { return u.id }
func (u *Usage) SetID(id uint64)   { u.id = id }

func (u *Usage) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: usageByOwnerIndex, Key: u.Owner.Bytes()},
	}
}

func writeAccumulator(m *marshalutil.MarshalUtil, a *UsageAccumulator) {
	m.WriteUint32(uint32(a.LastOrdinal))
	m.WriteUint64(a.ValueEx)
	m.WriteUint64(a.Consumed)
}

func readAccumulator(m *marshalutil.MarshalUtil, a *UsageAccumulator) error {
	ordinal, err := m.ReadUint32()
	if err != nil {
		return err
	}
	a.LastOrdinal = types.BlockTimestamp(ordinal)
	if a.ValueEx, err = m.ReadUint64(); err != nil {
		return err
	}
	a.Consumed, err = m.ReadUint64()

	return err
}

func (u *Usage) Bytes() ([]byte, error) {
	m := marshalutil.New()
	m.WriteUint64(u.id)
	m.WriteUint64(uint64(u.Owner))
	writeAccumulator(m, &u.NetUsage)
	writeAccumulator(m, &u.CPUUsage)
	m.WriteUint64(u.RAMUsage)

	return m.Bytes(), nil
}

func (u *Usage) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if u.id, err = m.ReadUint64(); err != nil {
		return err
	}
	owner, err := m.ReadUint64()
	if err != nil {
		return err
	}
	u.Owner = types.Name(owner)
	if err = readAccumulator(m, &u.NetUsage); err != nil {
		return err
	}
	if err = readAccumulator(m, &u.CPUUsage); err != nil {
		return err
	}
	u.RAMUsage, err = m.ReadUint64()

	return err
}

func (u *Usage) Clone() statedb.Object {
	cloned := *u

	return &cloned
}

// Config is the singleton elastic parameter row.
type Config struct {
	id                           uint64
	CPULimitParameters           ElasticLimitParameters
	NetLimitParameters           ElasticLimitParameters
	AccountCPUUsageAverageWindow uint32
	AccountNetUsageAverageWindow uint32
}

func DefaultConfig() *Config {
	return &Config{
		CPULimitParameters:           DefaultCPULimitParameters(),
		NetLimitParameters:           DefaultNetLimitParameters(),
		AccountCPUUsageAverageWindow: AccountUsageAverageWindow,
		AccountNetUsageAverageWindow: AccountUsageAverageWindow,
	}
}

func (c *Config) TableName() string { return ConfigTable }
func (c *Config) ID() uint64        { return c.id }
func (c *Config) SetID(id uint64)   { c.id = id }

func (c *Config) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: singletonIndex, Key: statedb.Uint64Key(0)},
	}
}

func writeElasticParams(m *marshalutil.MarshalUtil, p *ElasticLimitParameters) {
	m.WriteUint64(p.Target)
	m.WriteUint64(p.Max)
	m.WriteUint32(p.Periods)
	m.WriteUint32(p.MaxMultiplier)
	m.WriteUint64(p.ContractRate.Numerator)
	m.WriteUint64(p.ContractRate.Denominator)
	m.WriteUint64(p.ExpandRate.Numerator)
	m.WriteUint64(p.ExpandRate.Denominator)
}

func readElasticParams(m *marshalutil.MarshalUtil, p *ElasticLimitParameters) (err error) {
	if p.Target, err = m.ReadUint64(); err != nil {
		return err
	}
	if p.Max, err = m.ReadUint64(); err != nil {
		return err
	}
	if p.Periods, err = m.ReadUint32(); err != nil {
		return err
	}
	if p.MaxMultiplier, err = m.ReadUint32(); err != nil {
		return err
	}
	if p.ContractRate.Numerator, err = m.ReadUint64(); err != nil {
		return err
	}
	if p.ContractRate.Denominator, err = m.ReadUint64(); err != nil {
		return err
	}
	if p.ExpandRate.Numerator, err = m.ReadUint64(); err != nil {
		return err
	}
	p.ExpandRate.Denominator, err = m.ReadUint64()

	return err
}

func (c *Config) Bytes() ([]byte, error) {
	m := marshalutil.New()
	m.WriteUint64(c.id)
	writeElasticParams(m, &c.CPULimitParameters)
	writeElasticParams(m, &c.NetLimitParameters)
	m.WriteUint32(c.AccountCPUUsageAverageWindow)
	m.WriteUint32(c.AccountNetUsageAverageWindow)

	return m.Bytes(), nil
}

func (c *Config) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if c.id, err = m.ReadUint64(); err != nil {
		return err
	}
	if err = readElasticParams(m, &c.CPULimitParameters); err != nil {
		return err
	}
	if err = readElasticParams(m, &c.NetLimitParameters); err != nil {
		return err
	}
	if c.AccountCPUUsageAverageWindow, err = m.ReadUint32(); err != nil {
		return err
	}
	c.AccountNetUsageAverageWindow, err = m.ReadUint32()

	return err
}

func (c *Config) Clone() statedb.Object {
	cloned := *c

	return &cloned
}

// State is the singleton chain-wide accounting row.
type State struct {
	id                   uint64
	AverageBlockNetUsage UsageAccumulator
	AverageBlockCPUUsage UsageAccumulator
	PendingNetUsage      uint64
	PendingCPUUsage      uint64
	TotalNetWeight       uint64
	TotalCPUWeight       uint64
	TotalRAMBytes        uint64
	VirtualNetLimit      uint64
	VirtualCPULimit      uint64
}

func (s *State) TableName() string { return StateTable }
func (s *State) ID() uint64        { return s.id }
func (s *State) SetID(id uint64)   { s.id = id }

func (s *State) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: singletonIndex, Key: statedb.Uint64Key(0)},
	}
}

func (s *State) Bytes() ([]byte, error) {
	m := marshalutil.New()
	m.WriteUint64(s.id)
	writeAccumulator(m, &s.AverageBlockNetUsage)
	writeAccumulator(m, &s.AverageBlockCPUUsage)
	m.WriteUint64(s.PendingNetUsage)
	m.WriteUint64(s.PendingCPUUsage)
	m.WriteUint64(s.TotalNetWeight)
	m.WriteUint64(s.TotalCPUWeight)
	m.WriteUint64(s.TotalRAMBytes)
	m.WriteUint64(s.VirtualNetLimit)
	m.WriteUint64(s.VirtualCPULimit)

	return m.Bytes(), nil
}

func (s *State) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if s.id, err = m.ReadUint64(); err != nil {
		return err
	}
	if err = readAccumulator(m, &s.AverageBlockNetUsage); err != nil {
		return err
	}
	if err = readAccumulator(m, &s.AverageBlockCPUUsage); err != nil {
		return err
	}
	if s.PendingNetUsage, err = m.ReadUint64(); err != nil {
		return err
	}
	if s.PendingCPUUsage, err = m.ReadUint64(); err != nil {
		return err
	}
	if s.TotalNetWeight, err = m.ReadUint64(); err != nil {
		return err
	}
	if s.TotalCPUWeight, err = m.ReadUint64(); err != nil {
		return err
	}
	if s.TotalRAMBytes, err = m.ReadUint64(); err != nil {
		return err
	}
	if s.VirtualNetLimit, err = m.ReadUint64(); err != nil {
		return err
	}
	s.VirtualCPULimit, err = m.ReadUint64()

	return err
}

func (s *State) Clone() statedb.Object {
	cloned := *s

	return &cloned
}
