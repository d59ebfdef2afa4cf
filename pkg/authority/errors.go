package authority

import (
	"github.com/iotaledger/hive.go/ierrors"
)

var (
	// ErrActionValidate is returned when an authority-changing operation is
	// semantically invalid, such as deleting a permission that still has
	// children.
	ErrActionValidate = ierrors.New("action validate exception")

	// ErrPermissionQuery is returned when a referenced permission cannot be
	// resolved.
	ErrPermissionQuery = ierrors.New("permission query exception")

	// ErrUnactivatedKeyType is returned when an authority uses a key type
	// the chain has not activated yet.
	ErrUnactivatedKeyType = ierrors.New("unactivated key type")

	// ErrInvalidAuthority is returned when an authority fails structural
	// validation.
	ErrInvalidAuthority = ierrors.New("invalid authority")
)
