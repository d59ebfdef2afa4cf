package chainstate

import (
	"github.com/iotaledger/hive.go/core/marshalutil"
	"github.com/iotaledger/hive.go/stringify"

	"github.com/iotaledger/chainstate/pkg/statedb"
	"github.com/iotaledger/chainstate/pkg/types"
)

const (
	GlobalPropertyTable        = "global_property"
	DynamicGlobalPropertyTable = "dynamic_global_property"
	ProtocolStateTable         = "protocol_state"

	singletonIndex = "byID"
)

// RegisterTables declares the chain-wide singleton tables on the store.
func RegisterTables(store *statedb.Store) error {
	for _, registration := range []struct {
		name    string
		factory func() statedb.Object
	}{
		{GlobalPropertyTable, func() statedb.Object { return new(GlobalProperty) }},
		{DynamicGlobalPropertyTable, func() statedb.Object { return new(DynamicGlobalProperty) }},
		{ProtocolStateTable, func() statedb.Object { return new(ProtocolState) }},
	} {
		if err := store.RegisterTable(registration.name, registration.factory); err != nil {
			return err
		}
	}

	return nil
}

// GlobalProperty is the singleton chain configuration row.
type GlobalProperty struct {
	id      uint64
	ChainID types.Digest
}

func (g *GlobalProperty) TableName() string { return GlobalPropertyTable }
func (g *GlobalProperty) ID() uint64        { return g.id }
func (g *GlobalProperty) SetID(id uint64)   { g.id = id }

func (g *GlobalProperty) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: singletonIndex, Key: statedb.Uint64Key(0)},
	}
}

func (g *GlobalProperty) Bytes() ([]byte, error) {
	m := marshalutil.New()
	m.WriteUint64(g.id)
	m.WriteBytes(g.ChainID.Bytes())

	return m.Bytes(), nil
}

func (g *GlobalProperty) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if g.id, err = m.ReadUint64(); err != nil {
		return err
	}
	g.ChainID, err = types.DigestFromMarshalUtil(m)

	return err
}

func (g *GlobalProperty) Clone() statedb.Object {
	cloned := *g

	return &cloned
}

func (g *GlobalProperty) String() string {
	return stringify.Struct("GlobalProperty",
		stringify.NewStructField("chainID", g.ChainID),
	)
}

// DynamicGlobalProperty is the singleton row of counters that advance with
// every action.
type DynamicGlobalProperty struct {
	id                   uint64
	GlobalActionSequence uint64
}

func (d *DynamicGlobalProperty) TableName() string { return DynamicGlobalPropertyTable }
func (d *DynamicGlobalProperty) ID() uint64        { return d.id }
func (d *DynamicGlobalProperty) SetID(id uint64)   { d.id = id }

func (d *DynamicGlobalProperty) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: singletonIndex, Key: statedb.Uint64Key(0)},
	}
}

func (d *DynamicGlobalProperty) Bytes() ([]byte, error) {
	m := marshalutil.New()
	m.WriteUint64(d.id)
	m.WriteUint64(d.GlobalActionSequence)

	return m.Bytes(), nil
}

func (d *DynamicGlobalProperty) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if d.id, err = m.ReadUint64(); err != nil {
		return err
	}
	d.GlobalActionSequence, err = m.ReadUint64()

	return err
}

func (d *DynamicGlobalProperty) Clone() statedb.Object {
	cloned := *d

	return &cloned
}

func (d *DynamicGlobalProperty) String() string {
	return stringify.Struct("DynamicGlobalProperty",
		stringify.NewStructField("globalActionSequence", d.GlobalActionSequence),
	)
}

// ProtocolState is the singleton row of activated protocol rules.
type ProtocolState struct {
	id                   uint64
	NumSupportedKeyTypes uint8
}

func (p *ProtocolState) TableName() string { return ProtocolStateTable }
func (p *ProtocolState) ID() uint64        { return p.id }
func (p *ProtocolState) SetID(id uint64)   { p.id = id }

func (p *ProtocolState) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: singletonIndex, Key: statedb.Uint64Key(0)},
	}
}

func (p *ProtocolState) Bytes() ([]byte, error) {
	m := marshalutil.New()
	m.WriteUint64(p.id)
	m.WriteUint8(p.NumSupportedKeyTypes)

	return m.Bytes(), nil
}

func (p *ProtocolState) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if p.id, err = m.ReadUint64(); err != nil {
		return err
	}
	p.NumSupportedKeyTypes, err = m.ReadUint8()

	return err
}

func (p *ProtocolState) Clone() statedb.Object {
	cloned := *p

	return &cloned
}

func (p *ProtocolState) String() string {
	return stringify.Struct("ProtocolState",
		stringify.NewStructField("numSupportedKeyTypes", p.NumSupportedKeyTypes),
	)
}
