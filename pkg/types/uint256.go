package types

import (
	"bytes"
	"encoding/hex"
	"math/big"

	"github.com/iotaledger/hive.go/ierrors"
)

// Uint256 is an unsigned 256-bit value stored big-endian. It only needs
// ordering and parsing; no arithmetic happens on it.
type Uint256 [32]byte

func Uint256FromString(s string) (Uint256, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 || v.BitLen() > 256 {
		return Uint256{}, ierrors.Errorf("%q is not a valid unsigned 256-bit decimal", s)
	}
	var u Uint256
	v.FillBytes(u[:])

	return u, nil
}

func Uint256FromHexString(s string) (Uint256, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) > 32 {
		return Uint256{}, ierrors.Errorf("%q is not a valid 256-bit hex value", s)
	}
	var u Uint256
	copy(u[32-len(b):], b)

	return u, nil
}

func Uint256FromBigEndian(b []byte) Uint256 {
	var u Uint256
	copy(u[:], b)

	return u
}

func (u Uint256) BigEndian() []byte {
	return append([]byte(nil), u[:]...)
}

func (u Uint256) Cmp(other Uint256) int {
	return bytes.Compare(u[:], other[:])
}

func (u Uint256) String() string {
	return new(big.Int).SetBytes(u[:]).String()
}
