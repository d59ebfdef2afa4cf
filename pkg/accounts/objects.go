package accounts

import (
	"github.com/iotaledger/hive.go/core/marshalutil"

	"github.com/iotaledger/chainstate/pkg/statedb"
	"github.com/iotaledger/chainstate/pkg/types"
)

const (
	AccountTable         = "account"
	AccountMetadataTable = "account_metadata"
	CodeTable            = "code"

	accountByNameIndex  = "byName"
	metadataByNameIndex = "byName"
	codeByHashIndex     = "byCodeHash"
)

// RegisterTables declares the account tables on the store.
func RegisterTables(store *statedb.Store) error {
	for _, registration := range []struct {
		name    string
		factory func() statedb.Object
	}{
		{AccountTable, func() statedb.Object { return new(Account) }},
		{AccountMetadataTable, func() statedb.Object { return new(AccountMetadata) }},
		{CodeTable, func() statedb.Object { return new(Code) }},
	} {
		if err := store.RegisterTable(registration.name, registration.factory); err != nil {
			return err
		}
	}

	return nil
}

// Account is the authoritative account row: name, creation time and the
// contract ABI blob.
type Account struct {
	id           uint64
	Name         types.Name
	CreationDate types.BlockTimestamp
	ABI          []byte
}

func (a *Account) TableName() string { return AccountTable }
func (a *Account) ID() uint64        { return a.id }
func (a *Account) SetID(id uint64)   { a.id = id }

func (a *Account) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: accountByNameIndex, Key: a.Name.Bytes()},
	}
}

func (a *Account) Bytes() ([]byte, error) {
	m := marshalutil.New()
	m.WriteUint64(a.id)
	m.WriteUint64(uint64(a.Name))
	m.WriteUint32(uint32(a.CreationDate))
	m.WriteUint32(uint32(len(a.ABI)))
	m.WriteBytes(a.ABI)

	return m.Bytes(), nil
}

func (a *Account) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if a.id, err = m.ReadUint64(); err != nil {
		return err
	}
	name, err := m.ReadUint64()
	if err != nil {
		return err
	}
	a.Name = types.Name(name)
	creationDate, err := m.ReadUint32()
	if err != nil {
		return err
	}
	a.CreationDate = types.BlockTimestamp(creationDate)
	abiLen, err := m.ReadUint32()
	if err != nil {
		return err
	}
	abi, err := m.ReadBytes(int(abiLen))
	if err != nil {
		return err
	}
	a.ABI = append([]byte(nil), abi...)

	return nil
}

func (a *Account) Clone() statedb.Object {
	cloned := *a
	cloned.ABI = append([]byte(nil), a.ABI...)

	return &cloned
}

// AccountMetadata carries the mutable bookkeeping of an account: protocol
// sequence counters and the deployed-code reference.
type AccountMetadata struct {
	id             uint64
	Name           types.Name
	RecvSequence   uint64
	AuthSequence   uint64
	CodeSequence   uint64
	ABISequence    uint64
	CodeHash       types.Digest
	LastCodeUpdate types.TimePoint
	VMType         uint8
	VMVersion      uint8
	Privileged     bool
}

func (a *AccountMetadata) TableName() string { return AccountMetadataTable }
func (a *AccountMetadata) ID() uint64        { return a.id }
func (a *AccountMetadata) SetID(id uint64)   { a.id = id }

func (a *AccountMetadata) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: metadataByNameIndex, Key: a.Name.Bytes()},
	}
}

func (a *AccountMetadata) Bytes() ([]byte, error) {
	m := marshalutil.New()
	m.WriteUint64(a.id)
	m.WriteUint64(uint64(a.Name))
	m.WriteUint64(a.RecvSequence)
	m.WriteUint64(a.AuthSequence)
	m.WriteUint64(a.CodeSequence)
	m.WriteUint64(a.ABISequence)
	m.WriteBytes(a.CodeHash[:])
	m.WriteInt64(int64(a.LastCodeUpdate))
	m.WriteUint8(a.VMType)
	m.WriteUint8(a.VMVersion)
	m.WriteBool(a.Privileged)

	return m.Bytes(), nil
}

func (a *AccountMetadata) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if a.id, err = m.ReadUint64(); err != nil {
		return err
	}
	name, err := m.ReadUint64()
	if err != nil {
		return err
	}
	a.Name = types.Name(name)
	if a.RecvSequence, err = m.ReadUint64(); err != nil {
		return err
	}
	if a.AuthSequence, err = m.ReadUint64(); err != nil {
		return err
	}
	if a.CodeSequence, err = m.ReadUint64(); err != nil {
		return err
	}
	if a.ABISequence, err = m.ReadUint64(); err != nil {
		return err
	}
	if a.CodeHash, err = types.DigestFromMarshalUtil(m); err != nil {
		return err
	}
	lastCodeUpdate, err := m.ReadInt64()
	if err != nil {
		return err
	}
	a.LastCodeUpdate = types.TimePoint(lastCodeUpdate)
	if a.VMType, err = m.ReadUint8(); err != nil {
		return err
	}
	if a.VMVersion, err = m.ReadUint8(); err != nil {
		return err
	}
	a.Privileged, err = m.ReadBool()

	return err
}

func (a *AccountMetadata) Clone() statedb.Object {
	cloned := *a

	return &cloned
}

// Code is a deployed contract binary, shared by reference counting across
// accounts running identical code.
type Code struct {
	id             uint64
	CodeHash       types.Digest
	VMType         uint8
	VMVersion      uint8
	CodeRefCount   uint64
	FirstBlockUsed types.BlockTimestamp
	Code           []byte
}

func codeKey(hash types.Digest, vmType, vmVersion uint8) []byte {
	return statedb.CompositeKey(hash[:], []byte{vmType, vmVersion})
}

func (c *Code) TableName() string { return CodeTable }
func (c *Code) ID() uint64        { return c.id }
func (c *Code) SetID(id uint64)   { c.id = id }

func (c *Code) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: codeByHashIndex, Key: codeKey(c.CodeHash, c.VMType, c.VMVersion)},
	}
}

func (c *Code) Bytes() ([]byte, error) {
	m := marshalutil.New()
	m.WriteUint64(c.id)
	m.WriteBytes(c.CodeHash[:])
	m.WriteUint8(c.VMType)
	m.WriteUint8(c.VMVersion)
	m.WriteUint64(c.CodeRefCount)
	m.WriteUint32(uint32(c.FirstBlockUsed))
	m.WriteUint32(uint32(len(c.Code)))
	m.WriteBytes(c.Code)

	return m.Bytes(), nil
}

func (c *Code) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if c.id, err = m.ReadUint64(); err != nil {
		return err
	}
	if c.CodeHash, err = types.DigestFromMarshalUtil(m); err != nil {
		return err
	}
	if c.VMType, err = m.ReadUint8(); err != nil {
		return err
	}
	if c.VMVersion, err = m.ReadUint8(); err != nil {
		return err
	}
	if c.CodeRefCount, err = m.ReadUint64(); err != nil {
		return err
	}
	firstBlockUsed, err := m.ReadUint32()
	if err != nil {
		return err
	}
	c.FirstBlockUsed = types.BlockTimestamp(firstBlockUsed)
	codeLen, err := m.ReadUint32()
	if err != nil {
		return err
	}
	code, err := m.ReadBytes(int(codeLen))
	if err != nil {
		return err
	}
	c.Code = append([]byte(nil), code...)

	return nil
}

func (c *Code) Clone() statedb.Object {
	cloned := *c
	cloned.Code = append([]byte(nil), c.Code...)

	return &cloned
}
