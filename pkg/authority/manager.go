package authority

import (
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/runtime/options"

	"github.com/iotaledger/chainstate/pkg/statedb"
	"github.com/iotaledger/chainstate/pkg/types"
)

// AccountSource answers account existence queries. The permission graph
// references accounts but does not own them.
type AccountSource interface {
	AccountExists(name types.Name) bool
}

// AccountSourceFunc adapts a plain function to an AccountSource.
type AccountSourceFunc func(name types.Name) bool

func (f AccountSourceFunc) AccountExists(name types.Name) bool {
	return f(name)
}

// Manager maintains the permission graph: hierarchical permissions per
// account, last-used bookkeeping, and action links. RAM deltas are returned
// to the caller, which bills them against the paying account.
type Manager struct {
	store    *statedb.Store
	accounts AccountSource

	optsNumSupportedKeyTypes func() uint8
}

func NewManager(store *statedb.Store, accounts AccountSource, opts ...options.Option[Manager]) *Manager {
	return options.Apply(&Manager{
		store:                    store,
		accounts:                 accounts,
		optsNumSupportedKeyTypes: func() uint8 { return 2 },
	}, opts)
}

// WithNumSupportedKeyTypes supplies the count of activated key types, looked
// up per call so protocol upgrades take effect immediately.
func WithNumSupportedKeyTypes(provider func() uint8) options.Option[Manager] {
	return func(m *Manager) {
		m.optsNumSupportedKeyTypes = provider
	}
}

// ReserveFirstPermissionID burns permission id 0 so that a zero parent
// always means "no parent". Called once when the database is initialized.
func (m *Manager) ReserveFirstPermissionID() error {
	usage := &PermissionUsage{}
	if err := m.store.Insert(usage); err != nil {
		return err
	}

	return m.store.Insert(&Permission{UsageID: usage.ID()})
}

// CreatePermission adds a permission node under parent and returns it with
// the RAM bytes to bill.
func (m *Manager) CreatePermission(account, name types.Name, parent uint64, auth Authority, creationTime types.TimePoint) (*Permission, int64, error) {
	if err := auth.validateKeyTypes(m.optsNumSupportedKeyTypes()); err != nil {
		return nil, 0, err
	}

	usage := &PermissionUsage{LastUsed: creationTime}
	if err := m.store.Insert(usage); err != nil {
		return nil, 0, err
	}

	permission := &Permission{
		UsageID:     usage.ID(),
		Parent:      parent,
		Owner:       account,
		Name:        name,
		LastUpdated: creationTime,
		Auth:        auth.clone(),
	}
	if err := m.store.Insert(permission); err != nil {
		return nil, 0, err
	}

	return permission, int64(permission.BillableSize()), nil
}

// ModifyPermission replaces a permission's authority and returns the RAM
// delta against its previous size.
func (m *Manager) ModifyPermission(permission *Permission, auth Authority, currentTime types.TimePoint) (int64, error) {
	if err := auth.validateKeyTypes(m.optsNumSupportedKeyTypes()); err != nil {
		return 0, err
	}

	oldSize := int64(permission.BillableSize())
	if err := statedb.Modify(m.store, permission, func(p *Permission) error {
		p.Auth = auth.clone()
		p.LastUpdated = currentTime

		return nil
	}); err != nil {
		return 0, err
	}

	updated, err := statedb.GetByID[Permission](m.store, permission.ID())
	if err != nil {
		return 0, err
	}

	return int64(updated.BillableSize()) - oldSize, nil
}

// FindPermission returns the named permission of an account, or false.
func (m *Manager) FindPermission(level PermissionLevel) (*Permission, bool) {
	if level.Empty() {
		return nil, false
	}

	return statedb.FindBySecondary[Permission](m.store, permissionByOwnerIndex, ownerKey(level.Actor, level.Permission))
}

// GetPermission is FindPermission with query-grade errors: an empty level is
// rejected and a miss is reported as a permission query failure.
func (m *Manager) GetPermission(level PermissionLevel) (*Permission, error) {
	if level.Empty() {
		return nil, ierrors.Wrap(ErrPermissionQuery, "invalid permission")
	}

	permission, exists := m.FindPermission(level)
	if !exists {
		return nil, ierrors.Wrapf(ErrPermissionQuery, "failed to retrieve permission %s", level)
	}

	return permission, nil
}

// RemovePermission deletes a leaf permission and its usage row. Permissions
// with children cannot be removed.
func (m *Manager) RemovePermission(permission *Permission) error {
	childRange := statedb.LowerBound[Permission](m.store, permissionByParentIndex, statedb.Uint64Key(permission.ID()))
	if childRange.Valid() && childRange.Value().Parent == permission.ID() {
		return ierrors.Wrap(ErrActionValidate, "cannot remove a permission which has children, remove the children first")
	}

	usage, err := statedb.GetByID[PermissionUsage](m.store, permission.UsageID)
	if err != nil {
		return err
	}
	if err := m.store.Remove(usage); err != nil {
		return err
	}

	return m.store.Remove(permission)
}

// UpdatePermissionUsage stamps the permission's usage row with currentTime.
func (m *Manager) UpdatePermissionUsage(permission *Permission, currentTime types.TimePoint) error {
	usage, err := statedb.GetByID[PermissionUsage](m.store, permission.UsageID)
	if err != nil {
		return err
	}

	return statedb.Modify(m.store, usage, func(u *PermissionUsage) error {
		u.LastUsed = currentTime

		return nil
	})
}

// GetPermissionLastUsed returns when the permission last authorized an
// action.
func (m *Manager) GetPermissionLastUsed(permission *Permission) (types.TimePoint, error) {
	usage, err := statedb.GetByID[PermissionUsage](m.store, permission.UsageID)
	if err != nil {
		return 0, err
	}

	return usage.LastUsed, nil
}

func isNativeAuthAction(action types.Name) bool {
	switch action {
	case types.UpdateAuthActionName, types.DeleteAuthActionName,
		types.LinkAuthActionName, types.UnlinkAuthActionName, types.CancelDelayActionName:
		return true
	default:
		return false
	}
}

// LinkAuthority requires `requirement` for (account, code, messageType) and
// returns the RAM delta: positive for a new link, zero for an update.
func (m *Manager) LinkAuthority(account, code, messageType, requirement types.Name) (int64, error) {
	if requirement.Empty() {
		return 0, ierrors.Wrap(ErrActionValidate, "required permission cannot be empty")
	}
	if code == types.SystemAccountName && isNativeAuthAction(messageType) {
		return 0, ierrors.Wrapf(ErrActionValidate, "cannot link a minimum permission to %s", messageType)
	}
	if !m.accounts.AccountExists(account) {
		return 0, ierrors.Wrapf(ErrActionValidate, "failed to retrieve account %s", account)
	}
	if !m.accounts.AccountExists(code) {
		return 0, ierrors.Wrapf(ErrActionValidate, "failed to retrieve code account %s", code)
	}
	if requirement != types.AnyPermissionName {
		if _, exists := m.FindPermission(PermissionLevel{Actor: account, Permission: requirement}); !exists {
			return 0, ierrors.Wrapf(ErrPermissionQuery, "failed to retrieve permission %s of %s", requirement, account)
		}
	}

	existing, exists := statedb.FindBySecondary[PermissionLink](m.store, linkByActionNameIndex, actionLinkKey(account, code, messageType))
	if exists {
		if existing.RequiredPermission == requirement {
			return 0, ierrors.Wrap(ErrActionValidate, "attempting to update required authority, but new requirement is same as old")
		}

		return 0, statedb.Modify(m.store, existing, func(l *PermissionLink) error {
			l.RequiredPermission = requirement

			return nil
		})
	}

	link := &PermissionLink{
		Account:            account,
		Code:               code,
		MessageType:        messageType,
		RequiredPermission: requirement,
	}
	if err := m.store.Insert(link); err != nil {
		return 0, err
	}

	return int64(PermissionLinkBillable()), nil
}

// UnlinkAuthority removes the link for (account, code, messageType) and
// returns the freed RAM as a negative delta.
func (m *Manager) UnlinkAuthority(account, code, messageType types.Name) (int64, error) {
	link, exists := statedb.FindBySecondary[PermissionLink](m.store, linkByActionNameIndex, actionLinkKey(account, code, messageType))
	if !exists {
		return 0, ierrors.Wrap(ErrActionValidate, "attempting to unlink authority, but no link found")
	}

	if err := m.store.Remove(link); err != nil {
		return 0, err
	}

	return -int64(PermissionLinkBillable()), nil
}

// DeleteAuthority removes an account's named permission, rejecting the
// deletion while links still reference it, and returns the freed RAM as a
// negative delta.
func (m *Manager) DeleteAuthority(account, name types.Name) (int64, error) {
	permission, err := m.GetPermission(PermissionLevel{Actor: account, Permission: name})
	if err != nil {
		return 0, err
	}

	linkPrefix := statedb.CompositeKey(account.Bytes(), name.Bytes())
	links := statedb.LowerBound[PermissionLink](m.store, linkByPermissionNameIndex, linkPrefix)
	if links.Valid() {
		link := links.Value()
		if link.Account == account && link.RequiredPermission == name {
			return 0, ierrors.Wrap(ErrActionValidate, "cannot delete a linked authority, unlink the authority first")
		}
	}

	freed := int64(permission.BillableSize())
	if err := m.RemovePermission(permission); err != nil {
		return 0, err
	}

	return -freed, nil
}

// LookupLinkedPermission resolves the permission linked to (account, scope,
// actName), falling back to the contract-wide wildcard link.
func (m *Manager) LookupLinkedPermission(account, scope, actName types.Name) (types.Name, bool) {
	if link, exists := statedb.FindBySecondary[PermissionLink](m.store, linkByActionNameIndex, actionLinkKey(account, scope, actName)); exists {
		return link.RequiredPermission, true
	}
	if link, exists := statedb.FindBySecondary[PermissionLink](m.store, linkByActionNameIndex, actionLinkKey(account, scope, 0)); exists {
		return link.RequiredPermission, true
	}

	return 0, false
}

// LookupMinimumPermission returns the weakest permission of authorizer that
// may authorize actName on scope. Native authority management actions always
// demand active authority; a link to the "any" permission waives the
// requirement entirely, reported as no minimum.
func (m *Manager) LookupMinimumPermission(authorizer, scope, actName types.Name) (types.Name, bool) {
	if scope == types.SystemAccountName && isNativeAuthAction(actName) {
		return types.ActivePermissionName, true
	}

	linked, exists := m.LookupLinkedPermission(authorizer, scope, actName)
	if !exists {
		return types.ActivePermissionName, true
	}
	if linked == types.AnyPermissionName {
		return 0, false
	}

	return linked, true
}

// PermissionSatisfies reports whether holding candidate satisfies a
// requirement of required: they match exactly, or candidate is an ancestor
// of required in the same account's graph.
func (m *Manager) PermissionSatisfies(candidate, required *Permission) bool {
	if candidate.Owner != required.Owner {
		return false
	}

	current := required
	for {
		if current.ID() == candidate.ID() {
			return true
		}
		if current.Parent == 0 {
			return false
		}
		parent, err := statedb.GetByID[Permission](m.store, current.Parent)
		if err != nil {
			return false
		}
		current = parent
	}
}

// SatisfiesPermissionLevel resolves both levels and checks satisfaction.
func (m *Manager) SatisfiesPermissionLevel(candidate, required PermissionLevel) (bool, error) {
	candidatePermission, err := m.GetPermission(candidate)
	if err != nil {
		return false, err
	}
	requiredPermission, err := m.GetPermission(required)
	if err != nil {
		return false, err
	}

	return m.PermissionSatisfies(candidatePermission, requiredPermission), nil
}
