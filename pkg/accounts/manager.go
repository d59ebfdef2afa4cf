package accounts

import (
	"github.com/iotaledger/hive.go/ierrors"

	"github.com/iotaledger/chainstate/pkg/resource"
	"github.com/iotaledger/chainstate/pkg/statedb"
	"github.com/iotaledger/chainstate/pkg/types"
)

var (
	// ErrActionValidate is returned for semantically invalid account
	// operations, such as re-deploying identical code.
	ErrActionValidate = ierrors.New("action validate exception")
)

// Manager owns the account, metadata and code tables.
type Manager struct {
	store *statedb.Store
}

func NewManager(store *statedb.Store) *Manager {
	return &Manager{store: store}
}

// CreateAccount adds the account and metadata rows of a new account.
func (m *Manager) CreateAccount(name types.Name, creationDate types.BlockTimestamp) (*Account, error) {
	account := &Account{Name: name, CreationDate: creationDate}
	if err := m.store.Insert(account); err != nil {
		return nil, ierrors.Wrapf(err, "failed to create account %s", name)
	}
	if err := m.store.Insert(&AccountMetadata{Name: name}); err != nil {
		return nil, ierrors.Wrapf(err, "failed to create metadata of account %s", name)
	}

	return account, nil
}

// AccountExists reports whether the named account exists. Satisfies
// authority.AccountSource.
func (m *Manager) AccountExists(name types.Name) bool {
	_, exists := statedb.Find[Account](m.store, name.Bytes())

	return exists
}

// GetAccount returns the named account row.
func (m *Manager) GetAccount(name types.Name) (*Account, error) {
	return statedb.Get[Account](m.store, name.Bytes())
}

// GetAccountMetadata returns the named account's metadata row.
func (m *Manager) GetAccountMetadata(name types.Name) (*AccountMetadata, error) {
	return statedb.Get[AccountMetadata](m.store, name.Bytes())
}

// FindCode returns the code object for a hash and VM version.
func (m *Manager) FindCode(hash types.Digest, vmType, vmVersion uint8) (*Code, bool) {
	return statedb.Find[Code](m.store, codeKey(hash, vmType, vmVersion))
}

// SetCode deploys code bytes to an account, maintaining the shared code
// objects by reference count, and returns the RAM delta to bill. Empty code
// clears the contract.
func (m *Manager) SetCode(account types.Name, vmType, vmVersion uint8, code []byte, currentBlock types.BlockTimestamp, currentTime types.TimePoint) (int64, error) {
	metadata, err := m.GetAccountMetadata(account)
	if err != nil {
		return 0, err
	}

	var codeHash types.Digest
	if len(code) > 0 {
		codeHash = types.HashBytes(code)
	}

	if metadata.CodeHash == codeHash && metadata.VMType == vmType && metadata.VMVersion == vmVersion {
		if codeHash.Empty() {
			return 0, ierrors.Wrapf(ErrActionValidate, "contract is already cleared on account %s", account)
		}

		return 0, ierrors.Wrapf(ErrActionValidate, "account %s is already running this version of code", account)
	}

	oldSize := int64(0)
	if !metadata.CodeHash.Empty() {
		oldCode, exists := m.FindCode(metadata.CodeHash, metadata.VMType, metadata.VMVersion)
		if !exists {
			return 0, ierrors.Errorf("code object of account %s is missing", account)
		}
		oldSize = int64(len(oldCode.Code)) * resource.SetCodeRAMBytesMultiplier
		if err := m.releaseCode(oldCode); err != nil {
			return 0, err
		}
	}

	newSize := int64(0)
	if !codeHash.Empty() {
		newSize = int64(len(code)) * resource.SetCodeRAMBytesMultiplier
		if err := m.retainCode(codeHash, vmType, vmVersion, code, currentBlock); err != nil {
			return 0, err
		}
	}

	if err := statedb.Modify(m.store, metadata, func(a *AccountMetadata) error {
		a.CodeSequence++
		a.CodeHash = codeHash
		a.VMType = vmType
		a.VMVersion = vmVersion
		a.LastCodeUpdate = currentTime

		return nil
	}); err != nil {
		return 0, err
	}

	return newSize - oldSize, nil
}

func (m *Manager) retainCode(hash types.Digest, vmType, vmVersion uint8, code []byte, currentBlock types.BlockTimestamp) error {
	if existing, exists := m.FindCode(hash, vmType, vmVersion); exists {
		return statedb.Modify(m.store, existing, func(c *Code) error {
			c.CodeRefCount++

			return nil
		})
	}

	return m.store.Insert(&Code{
		CodeHash:       hash,
		VMType:         vmType,
		VMVersion:      vmVersion,
		CodeRefCount:   1,
		FirstBlockUsed: currentBlock,
		Code:           append([]byte(nil), code...),
	})
}

func (m *Manager) releaseCode(code *Code) error {
	if code.CodeRefCount == 1 {
		return m.store.Remove(code)
	}

	return statedb.Modify(m.store, code, func(c *Code) error {
		c.CodeRefCount--

		return nil
	})
}

// SetABI replaces an account's ABI blob and returns the RAM delta to bill.
func (m *Manager) SetABI(account types.Name, abi []byte) (int64, error) {
	accountRow, err := m.GetAccount(account)
	if err != nil {
		return 0, err
	}

	oldSize := int64(len(accountRow.ABI))
	if err := statedb.Modify(m.store, accountRow, func(a *Account) error {
		a.ABI = append([]byte(nil), abi...)

		return nil
	}); err != nil {
		return 0, err
	}

	metadata, err := m.GetAccountMetadata(account)
	if err != nil {
		return 0, err
	}
	if err := statedb.Modify(m.store, metadata, func(a *AccountMetadata) error {
		a.ABISequence++

		return nil
	}); err != nil {
		return 0, err
	}

	return int64(len(abi)) - oldSize, nil
}

// NextRecvSequence increments and returns the account's action receive
// counter.
func (m *Manager) NextRecvSequence(account types.Name) (uint64, error) {
	return m.bumpSequence(account, func(a *AccountMetadata) *uint64 { return &a.RecvSequence })
}

// NextAuthSequence increments and returns the account's authorization
// counter.
func (m *Manager) NextAuthSequence(account types.Name) (uint64, error) {
	return m.bumpSequence(account, func(a *AccountMetadata) *uint64 { return &a.AuthSequence })
}

func (m *Manager) bumpSequence(account types.Name, field func(*AccountMetadata) *uint64) (uint64, error) {
	metadata, err := m.GetAccountMetadata(account)
	if err != nil {
		return 0, err
	}

	var next uint64
	if err := statedb.Modify(m.store, metadata, func(a *AccountMetadata) error {
		counter := field(a)
		*counter++
		next = *counter

		return nil
	}); err != nil {
		return 0, err
	}

	return next, nil
}

// IsPrivileged reports whether the account may bypass authorization and
// resource checks.
func (m *Manager) IsPrivileged(account types.Name) (bool, error) {
	metadata, err := m.GetAccountMetadata(account)
	if err != nil {
		return false, err
	}

	return metadata.Privileged, nil
}

// SetPrivileged flips the privileged flag of an account.
func (m *Manager) SetPrivileged(account types.Name, privileged bool) error {
	metadata, err := m.GetAccountMetadata(account)
	if err != nil {
		return err
	}

	return statedb.Modify(m.store, metadata, func(a *AccountMetadata) error {
		a.Privileged = privileged

		return nil
	})
}
