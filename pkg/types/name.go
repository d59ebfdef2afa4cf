package types

import (
	"encoding/binary"
	"strings"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/core/marshalutil"
)

// Name is a 64-bit account, permission, table or action identifier encoded
// as up to 13 base32 characters from the charset ".12345a-z". The 13th
// character is restricted to the first 16 symbols of the charset.
type Name uint64

const nameCharset = ".12345abcdefghijklmnopqrstuvwxyz"

var ErrInvalidName = ierrors.New("invalid name")

func charToSymbol(c byte) (uint64, bool) {
	switch {
	case c >= 'a' && c <= 'z':
		return uint64(c-'a') + 6, true
	case c >= '1' && c <= '5':
		return uint64(c-'1') + 1, true
	case c == '.':
		return 0, true
	default:
		return 0, false
	}
}

// NameFromString parses s into a Name. Strings longer than 13 characters or
// containing characters outside the charset are rejected, as is a 13th
// character beyond the 16-symbol subset.
func NameFromString(s string) (Name, error) {
	if len(s) > 13 {
		return 0, ierrors.Wrapf(ErrInvalidName, "%q is longer than 13 characters", s)
	}

	var value uint64
	for i := 0; i < len(s) && i < 12; i++ {
		sym, ok := charToSymbol(s[i])
		if !ok {
			return 0, ierrors.Wrapf(ErrInvalidName, "%q contains invalid character %q", s, s[i])
		}
		value |= (sym & 0x1f) << uint(64-5*(i+1))
	}
	if len(s) == 13 {
		sym, ok := charToSymbol(s[12])
		if !ok || sym > 0x0f {
			return 0, ierrors.Wrapf(ErrInvalidName, "%q has an invalid 13th character", s)
		}
		value |= sym & 0x0f
	}

	return Name(value), nil
}

// MustNameFromString is NameFromString for string literals known to be valid.
func MustNameFromString(s string) Name {
	n, err := NameFromString(s)
	if err != nil {
		panic(err)
	}

	return n
}

func (n Name) String() string {
	str := make([]byte, 13)
	tmp := uint64(n)
	for i := 0; i <= 12; i++ {
		var c byte
		if i == 0 {
			c = nameCharset[tmp&0x0f]
		} else {
			c = nameCharset[tmp&0x1f]
		}
		str[12-i] = c
		if i == 0 {
			tmp >>= 4
		} else {
			tmp >>= 5
		}
	}

	return strings.TrimRight(string(str), ".")
}

// Suffix returns the portion after the last dot, or the whole name when it
// contains no dot. Used for code account fee attribution.
func (n Name) Suffix() Name {
	remainingBitsAfterLastActualDot := uint32(0)
	tmp := uint32(0)
	for remainingBits := int32(59); remainingBits >= 4; remainingBits -= 5 {
		c := (uint64(n) >> uint(remainingBits)) & 0x1f
		if c == 0 {
			tmp = uint32(remainingBits)
		} else {
			remainingBitsAfterLastActualDot = tmp
		}
	}

	thirteenthCharacter := uint64(n) & 0x0f
	if thirteenthCharacter != 0 {
		remainingBitsAfterLastActualDot = tmp
	}
	if remainingBitsAfterLastActualDot == 0 {
		return n
	}

	mask := uint64(1)<<remainingBitsAfterLastActualDot - 16
	shift := uint(64 - remainingBitsAfterLastActualDot)

	return Name((uint64(n)&mask)<<shift + thirteenthCharacter<<(shift-1))
}

func (n Name) Empty() bool {
	return n == 0
}

// Bytes returns the big-endian encoding, which sorts under memcmp the same
// way the numeric value does.
func (n Name) Bytes() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(n))

	return b
}

func NameFromMarshalUtil(m *marshalutil.MarshalUtil) (Name, error) {
	v, err := m.ReadUint64()
	if err != nil {
		return 0, ierrors.Wrap(err, "failed to parse name")
	}

	return Name(v), nil
}
