package authority

import (
	"github.com/iotaledger/hive.go/core/marshalutil"

	"github.com/iotaledger/chainstate/pkg/resource"
	"github.com/iotaledger/chainstate/pkg/statedb"
	"github.com/iotaledger/chainstate/pkg/types"
)

const (
	PermissionTable      = "permission"
	PermissionUsageTable = "permission_usage"
	PermissionLinkTable  = "permission_link"

	permissionByIDIndex     = "byID"
	permissionByParentIndex = "byParent"
	permissionByOwnerIndex  = "byOwner"

	usageByIDIndex = "byID"

	linkByIDIndex             = "byID"
	linkByActionNameIndex     = "byActionName"
	linkByPermissionNameIndex = "byPermissionName"
)

// RegisterTables declares the permission graph tables on the store.
func RegisterTables(store *statedb.Store) error {
	for _, registration := range []struct {
		name    string
		factory func() statedb.Object
	}{
		{PermissionTable, func() statedb.Object { return new(Permission) }},
		{PermissionUsageTable, func() statedb.Object { return new(PermissionUsage) }},
		{PermissionLinkTable, func() statedb.Object { return new(PermissionLink) }},
	} {
		if err := store.RegisterTable(registration.name, registration.factory); err != nil {
			return err
		}
	}

	return nil
}

// Permission is one node of an account's permission graph. Parent links
// form the hierarchy; a permission with parent 0 is a root (owner).
type Permission struct {
	id          uint64
	UsageID     uint64
	Parent      uint64
	Owner       types.Name
	Name        types.Name
	LastUpdated types.TimePoint
	Auth        Authority
}

func (p *Permission) TableName() string { return PermissionTable }
func (p *Permission) ID() uint64        { return p.id }
func (p *Permission) SetID(id uint64)   { p.id = id }

func (p *Permission) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: permissionByIDIndex, Key: statedb.Uint64Key(p.id)},
		{Index: permissionByParentIndex, Key: statedb.CompositeKey(statedb.Uint64Key(p.Parent), statedb.Uint64Key(p.id))},
		{Index: permissionByOwnerIndex, Key: ownerKey(p.Owner, p.Name)},
	}
}

func ownerKey(owner, name types.Name) []byte {
	return statedb.CompositeKey(owner.Bytes(), name.Bytes())
}

func (p *Permission) Bytes() ([]byte, error) {
	m := marshalutil.New()
	m.WriteUint64(p.id)
	m.WriteUint64(p.UsageID)
	m.WriteUint64(p.Parent)
	m.WriteUint64(uint64(p.Owner))
	m.WriteUint64(uint64(p.Name))
	m.WriteInt64(int64(p.LastUpdated))
	p.Auth.write(m)

	return m.Bytes(), nil
}

func (p *Permission) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if p.id, err = m.ReadUint64(); err != nil {
		return err
	}
	if p.UsageID, err = m.ReadUint64(); err != nil {
		return err
	}
	if p.Parent, err = m.ReadUint64(); err != nil {
		return err
	}
	owner, err := m.ReadUint64()
	if err != nil {
		return err
	}
	p.Owner = types.Name(owner)
	name, err := m.ReadUint64()
	if err != nil {
		return err
	}
	p.Name = types.Name(name)
	lastUpdated, err := m.ReadInt64()
	if err != nil {
		return err
	}
	p.LastUpdated = types.TimePoint(lastUpdated)

	return p.Auth.read(m)
}

func (p *Permission) Clone() statedb.Object {
	cloned := *p
	cloned.Auth = p.Auth.clone()

	return &cloned
}

// BillableSize is the RAM cost of the permission row including its
// authority.
func (p *Permission) BillableSize() uint64 {
	return PermissionFixedBillable() + p.Auth.BillableSize()
}

// PermissionFixedBillable is the RAM cost of a permission row with an empty
// authority: five index entries plus the fixed row body.
func PermissionFixedBillable() uint64 {
	return resource.AlignBillable(5*resource.OverheadPerRowPerIndex + 64)
}

// PermissionLinkBillable is the RAM cost of one link row.
func PermissionLinkBillable() uint64 {
	return resource.AlignBillable(40 + 3*resource.OverheadPerRowPerIndex)
}

// PermissionUsage tracks when a permission last authorized an action,
// split from Permission so the hot timestamp update does not rewrite the
// authority.
type PermissionUsage struct {
	id       uint64
	LastUsed types.TimePoint
}

func (u *PermissionUsage) TableName() string { return PermissionUsageTable }
func (u *PermissionUsage) ID() uint64        { return u.id }
func (u *PermissionUsage) SetID(id uint64)   { u.id = id }

func (u *PermissionUsage) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: usageByIDIndex, Key: statedb.Uint64Key(u.id)},
	}
}

func (u *PermissionUsage) Bytes() ([]byte, error) {
	m := marshalutil.New()
	m.WriteUint64(u.id)
	m.WriteInt64(int64(u.LastUsed))

	return m.Bytes(), nil
}

func (u *PermissionUsage) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if u.id, err = m.ReadUint64(); err != nil {
		return err
	}
	lastUsed, err := m.ReadInt64()
	if err != nil {
		return err
	}
	u.LastUsed = types.TimePoint(lastUsed)

	return nil
}

func (u *PermissionUsage) Clone() statedb.Object {
	cloned := *u

	return &cloned
}

// PermissionLink maps (account, code, action) to the permission required to
// authorize that action. An empty MessageType is the wildcard for every
// action of the contract.
type PermissionLink struct {
	id                 uint64
	Account            types.Name
	Code               types.Name
	MessageType        types.Name
	RequiredPermission types.Name
}

func (l *PermissionLink) TableName() string { return PermissionLinkTable }
func (l *PermissionLink) ID() uint64        { return l.id }
func (l *PermissionLink) SetID(id uint64)   { l.id = id }

func (l *PermissionLink) IndexKeys() []statedb.IndexKey {
	return []statedb.IndexKey{
		{Index: linkByIDIndex, Key: statedb.Uint64Key(l.id)},
		{Index: linkByActionNameIndex, Key: actionLinkKey(l.Account, l.Code, l.MessageType)},
		{Index: linkByPermissionNameIndex, Key: statedb.CompositeKey(l.Account.Bytes(), l.RequiredPermission.Bytes(), statedb.Uint64Key(l.id))},
	}
}

func actionLinkKey(account, code, messageType types.Name) []byte {
	return statedb.CompositeKey(account.Bytes(), code.Bytes(), messageType.Bytes())
}

func (l *PermissionLink) Bytes() ([]byte, error) {
	m := marshalutil.New()
	m.WriteUint64(l.id)
	m.WriteUint64(uint64(l.Account))
	m.WriteUint64(uint64(l.Code))
	m.WriteUint64(uint64(l.MessageType))
	m.WriteUint64(uint64(l.RequiredPermission))

	return m.Bytes(), nil
}

func (l *PermissionLink) FromBytes(data []byte) (err error) {
	m := marshalutil.New(data)
	if l.id, err = m.ReadUint64(); err != nil {
		return err
	}
	account, err := m.ReadUint64()
	if err != nil {
		return err
	}
	code, err := m.ReadUint64()
	if err != nil {
		return err
	}
	messageType, err := m.ReadUint64()
	if err != nil {
		return err
	}
	required, err := m.ReadUint64()
	if err != nil {
		return err
	}
	l.Account = types.Name(account)
	l.Code = types.Name(code)
	l.MessageType = types.Name(messageType)
	l.RequiredPermission = types.Name(required)

	return nil
}

func (l *PermissionLink) Clone() statedb.Object {
	cloned := *l

	return &cloned
}
