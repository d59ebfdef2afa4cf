package types

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"math/bits"

	"github.com/iotaledger/hive.go/ierrors"
)

// Uint128 is an unsigned 128-bit integer with explicit overflow reporting.
// The resource capacity math multiplies 64-bit quantities past the uint64
// range, so every wide step is spelled out here.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

var ErrUint128Overflow = ierrors.New("uint128 overflow")

func NewUint128(v uint64) Uint128 {
	return Uint128{Lo: v}
}

func Uint128FromString(s string) (Uint128, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 || v.BitLen() > 128 {
		return Uint128{}, ierrors.Errorf("%q is not a valid unsigned 128-bit decimal", s)
	}

	return Uint128{Hi: new(big.Int).Rsh(v, 64).Uint64(), Lo: v.Uint64()}, nil
}

func Uint128FromHexString(s string) (Uint128, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) > 16 {
		return Uint128{}, ierrors.Errorf("%q is not a valid 128-bit hex value", s)
	}
	padded := make([]byte, 16)
	copy(padded[16-len(b):], b)

	return Uint128FromBigEndian(padded), nil
}

func Uint128FromBigEndian(b []byte) Uint128 {
	return Uint128{
		Hi: binary.BigEndian.Uint64(b[0:8]),
		Lo: binary.BigEndian.Uint64(b[8:16]),
	}
}

// BigEndian returns the 16-byte encoding whose memcmp order equals the
// numeric order.
func (u Uint128) BigEndian() []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], u.Hi)
	binary.BigEndian.PutUint64(b[8:16], u.Lo)

	return b
}

func (u Uint128) IsZero() bool {
	return u.Hi == 0 && u.Lo == 0
}

func (u Uint128) Cmp(other Uint128) int {
	switch {
	case u.Hi != other.Hi:
		if u.Hi < other.Hi {
			return -1
		}

		return 1
	case u.Lo != other.Lo:
		if u.Lo < other.Lo {
			return -1
		}

		return 1
	default:
		return 0
	}
}

func (u Uint128) Add(other Uint128) (Uint128, error) {
	lo, carry := bits.Add64(u.Lo, other.Lo, 0)
	hi, carry := bits.Add64(u.Hi, other.Hi, carry)
	if carry != 0 {
		return Uint128{}, ierrors.Wrap(ErrUint128Overflow, "addition wrapped")
	}

	return Uint128{Hi: hi, Lo: lo}, nil
}

// Sub subtracts other from u, reporting underflow.
func (u Uint128) Sub(other Uint128) (Uint128, error) {
	lo, borrow := bits.Sub64(u.Lo, other.Lo, 0)
	hi, borrow := bits.Sub64(u.Hi, other.Hi, borrow)
	if borrow != 0 {
		return Uint128{}, ierrors.Wrap(ErrUint128Overflow, "subtraction wrapped")
	}

	return Uint128{Hi: hi, Lo: lo}, nil
}

// Mul64 multiplies two 64-bit values into a full 128-bit result. It cannot
// overflow.
func Mul64(a, b uint64) Uint128 {
	hi, lo := bits.Mul64(a, b)

	return Uint128{Hi: hi, Lo: lo}
}

// MulUint64 widens u by v, reporting overflow past 128 bits.
func (u Uint128) MulUint64(v uint64) (Uint128, error) {
	hiLo := Mul64(u.Lo, v)
	hiHi, lo2 := bits.Mul64(u.Hi, v)
	if hiHi != 0 {
		return Uint128{}, ierrors.Wrap(ErrUint128Overflow, "multiplication exceeds 128 bits")
	}
	hi, carry := bits.Add64(hiLo.Hi, lo2, 0)
	if carry != 0 {
		return Uint128{}, ierrors.Wrap(ErrUint128Overflow, "multiplication exceeds 128 bits")
	}

	return Uint128{Hi: hi, Lo: hiLo.Lo}, nil
}

// DivUint64 divides u by v, returning the quotient.
func (u Uint128) DivUint64(v uint64) (Uint128, error) {
	if v == 0 {
		return Uint128{}, ierrors.New("division by zero")
	}
	hiQ := u.Hi / v
	hiR := u.Hi % v
	loQ, _ := bits.Div64(hiR, u.Lo, v)

	return Uint128{Hi: hiQ, Lo: loQ}, nil
}

// Uint64 truncates to 64 bits, reporting loss.
func (u Uint128) Uint64() (uint64, error) {
	if u.Hi != 0 {
		return 0, ierrors.Wrap(ErrUint128Overflow, "value does not fit in 64 bits")
	}

	return u.Lo, nil
}

func (u Uint128) String() string {
	v := new(big.Int).Lsh(new(big.Int).SetUint64(u.Hi), 64)
	v.Or(v, new(big.Int).SetUint64(u.Lo))

	return v.String()
}
