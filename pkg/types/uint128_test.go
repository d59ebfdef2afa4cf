package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUint128Arithmetic(t *testing.T) {
	u := Mul64(math.MaxUint64, 2)
	require.Equal(t, Uint128{Hi: 1, Lo: math.MaxUint64 - 1}, u)

	q, err := u.DivUint64(2)
	require.NoError(t, err)
	require.Equal(t, Uint128{Lo: math.MaxUint64}, q)

	_, err = Uint128{Hi: math.MaxUint64}.MulUint64(3)
	require.ErrorIs(t, err, ErrUint128Overflow)

	_, err = Uint128{Hi: 1}.Uint64()
	require.ErrorIs(t, err, ErrUint128Overflow)
}

func TestUint128Parsing(t *testing.T) {
	u, err := Uint128FromString("340282366920938463463374607431768211455")
	require.NoError(t, err)
	require.Equal(t, Uint128{Hi: math.MaxUint64, Lo: math.MaxUint64}, u)

	h, err := Uint128FromHexString("ff")
	require.NoError(t, err)
	require.Equal(t, NewUint128(255), h)

	_, err = Uint128FromString("-1")
	require.Error(t, err)
}

func TestUint128Ordering(t *testing.T) {
	a := NewUint128(7)
	b := Uint128{Hi: 1}
	require.Equal(t, -1, a.Cmp(b))
	require.Equal(t, -1, compareBytes(a.BigEndian(), b.BigEndian()))
}
