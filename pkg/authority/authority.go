package authority

import (
	"bytes"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/core/marshalutil"

	"github.com/iotaledger/chainstate/pkg/resource"
	"github.com/iotaledger/chainstate/pkg/types"
)

// PermissionLevel names one permission of one account.
type PermissionLevel struct {
	Actor      types.Name
	Permission types.Name
}

func (p PermissionLevel) Empty() bool {
	return p.Actor.Empty() || p.Permission.Empty()
}

func (p PermissionLevel) String() string {
	return p.Actor.String() + "@" + p.Permission.String()
}

// KeyWeight contributes a key's weight toward an authority threshold.
type KeyWeight struct {
	Key    types.PublicKey
	Weight uint16
}

// PermissionLevelWeight contributes another account's permission.
type PermissionLevelWeight struct {
	Permission PermissionLevel
	Weight     uint16
}

// WaitWeight contributes a time delay.
type WaitWeight struct {
	WaitSec uint32
	Weight  uint16
}

// Authority is the weighted multi-factor requirement guarding a permission.
// Keys, accounts and waits must each be sorted and duplicate free.
type Authority struct {
	Threshold uint32
	Keys      []KeyWeight
	Accounts  []PermissionLevelWeight
	Waits     []WaitWeight
}

func NewAuthority(threshold uint32, keys ...KeyWeight) Authority {
	return Authority{Threshold: threshold, Keys: keys}
}

// Validate checks that the threshold is nonzero and reachable and that all
// component lists are strictly ordered.
func (a *Authority) Validate() error {
	if a.Threshold == 0 {
		return ierrors.Wrap(ErrInvalidAuthority, "authority threshold cannot be zero")
	}

	var totalWeight uint64
	for i, key := range a.Keys {
		if i > 0 && bytes.Compare(a.Keys[i-1].Key, key.Key) >= 0 {
			return ierrors.Wrap(ErrInvalidAuthority, "authority keys must be unique and sorted")
		}
		totalWeight += uint64(key.Weight)
	}
	for i, account := range a.Accounts {
		if i > 0 && !permissionLevelLess(a.Accounts[i-1].Permission, account.Permission) {
			return ierrors.Wrap(ErrInvalidAuthority, "authority accounts must be unique and sorted")
		}
		totalWeight += uint64(account.Weight)
	}
	for i, wait := range a.Waits {
		if wait.WaitSec == 0 {
			return ierrors.Wrap(ErrInvalidAuthority, "authority waits must be positive")
		}
		if i > 0 && a.Waits[i-1].WaitSec >= wait.WaitSec {
			return ierrors.Wrap(ErrInvalidAuthority, "authority waits must be unique and sorted")
		}
		totalWeight += uint64(wait.Weight)
	}

	if totalWeight < uint64(a.Threshold) {
		return ierrors.Wrap(ErrInvalidAuthority, "authority threshold is unreachable")
	}

	return nil
}

func permissionLevelLess(a, b PermissionLevel) bool {
	if a.Actor != b.Actor {
		return a.Actor < b.Actor
	}

	return a.Permission < b.Permission
}

// validateKeyTypes checks every key against the number of activated key
// types.
func (a *Authority) validateKeyTypes(numSupportedKeyTypes uint8) error {
	for _, key := range a.Keys {
		if key.Key.KeyType() >= numSupportedKeyTypes {
			return ierrors.Wrapf(ErrUnactivatedKeyType, "key type %d used in authority", key.Key.KeyType())
		}
	}

	return nil
}

// Billable size components. The per-entry constants mirror the bookkeeping
// cost of the corresponding rows; the dynamic part of each key is its
// serialized length.
const (
	keyWeightBillable             = 8
	permissionLevelWeightBillable = 24
	waitWeightBillable            = 16

	authorityFixedBillable = 3*resource.FixedOverheadSharedVector + 4
)

// BillableSize is the RAM cost of the variable part of an authority.
func (a *Authority) BillableSize() uint64 {
	size := uint64(authorityFixedBillable)
	for _, key := range a.Keys {
		size += keyWeightBillable + uint64(len(key.Key))
	}
	size += uint64(len(a.Accounts)) * permissionLevelWeightBillable
	size += uint64(len(a.Waits)) * waitWeightBillable

	return size
}

func (a *Authority) write(m *marshalutil.MarshalUtil) {
	m.WriteUint32(a.Threshold)
	m.WriteUint32(uint32(len(a.Keys)))
	for _, key := range a.Keys {
		m.WriteUint32(uint32(len(key.Key)))
		m.WriteBytes(key.Key)
		m.WriteUint16(key.Weight)
	}
	m.WriteUint32(uint32(len(a.Accounts)))
	for _, account := range a.Accounts {
		m.WriteUint64(uint64(account.Permission.Actor))
		m.WriteUint64(uint64(account.Permission.Permission))
		m.WriteUint16(account.Weight)
	}
	m.WriteUint32(uint32(len(a.Waits)))
	for _, wait := range a.Waits {
		m.WriteUint32(wait.WaitSec)
		m.WriteUint16(wait.Weight)
	}
}

func (a *Authority) read(m *marshalutil.MarshalUtil) error {
	threshold, err := m.ReadUint32()
	if err != nil {
		return err
	}
	a.Threshold = threshold

	keyCount, err := m.ReadUint32()
	if err != nil {
		return err
	}
	a.Keys = make([]KeyWeight, keyCount)
	for i := range a.Keys {
		keyLen, err := m.ReadUint32()
		if err != nil {
			return err
		}
		keyBytes, err := m.ReadBytes(int(keyLen))
		if err != nil {
			return err
		}
		a.Keys[i].Key = types.PublicKey(append([]byte(nil), keyBytes...))
		if a.Keys[i].Weight, err = m.ReadUint16(); err != nil {
			return err
		}
	}

	accountCount, err := m.ReadUint32()
	if err != nil {
		return err
	}
	a.Accounts = make([]PermissionLevelWeight, accountCount)
	for i := range a.Accounts {
		actor, err := m.ReadUint64()
		if err != nil {
			return err
		}
		permission, err := m.ReadUint64()
		if err != nil {
			return err
		}
		a.Accounts[i].Permission = PermissionLevel{Actor: types.Name(actor), Permission: types.Name(permission)}
		if a.Accounts[i].Weight, err = m.ReadUint16(); err != nil {
			return err
		}
	}

	waitCount, err := m.ReadUint32()
	if err != nil {
		return err
	}
	a.Waits = make([]WaitWeight, waitCount)
	for i := range a.Waits {
		if a.Waits[i].WaitSec, err = m.ReadUint32(); err != nil {
			return err
		}
		if a.Waits[i].Weight, err = m.ReadUint16(); err != nil {
			return err
		}
	}

	return nil
}

func (a *Authority) clone() Authority {
	cloned := Authority{Threshold: a.Threshold}
	if a.Keys != nil {
		cloned.Keys = make([]KeyWeight, len(a.Keys))
		for i, key := range a.Keys {
			cloned.Keys[i] = KeyWeight{Key: append(types.PublicKey(nil), key.Key...), Weight: key.Weight}
		}
	}
	if a.Accounts != nil {
		cloned.Accounts = append([]PermissionLevelWeight(nil), a.Accounts...)
	}
	if a.Waits != nil {
		cloned.Waits = append([]WaitWeight(nil), a.Waits...)
	}

	return cloned
}
