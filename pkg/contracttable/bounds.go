package contracttable

import (
	"encoding/hex"
	"math"
	"math/bits"
	"strconv"
	"strings"

	"github.com/iotaledger/hive.go/ierrors"

	"github.com/iotaledger/chainstate/pkg/types"
)

// Key and encode type selectors accepted by the scan surface.
const (
	KeyTypeI64       = "i64"
	KeyTypeI128      = "i128"
	KeyTypeI256      = "i256"
	KeyTypeFloat64   = "float64"
	KeyTypeFloat128  = "float128"
	KeyTypeName      = "name"
	KeyTypeSHA256    = "sha256"
	KeyTypeRIPEMD160 = "ripemd160"

	EncodeTypeDec = "dec"
	EncodeTypeHex = "hex"
)

// resolveIndexTable maps an index position selector onto the name of the
// table that stores the selected index family. The low nibble of a table
// name is reserved for the index position, so a queryable table name must
// have it clear. Returns the resolved table name and whether the selector
// refers to the primary index.
func resolveIndexTable(table types.Name, position string) (types.Name, bool, error) {
	raw := uint64(table)
	base := raw &^ 0xF
	if base != raw {
		return 0, false, ierrors.Wrapf(ErrTableQuery, "unsupported table name %s", table)
	}

	var pos uint64
	switch {
	case position == "" || position == "first" || position == "primary" || position == "one":
		return table, true, nil
	case strings.HasPrefix(position, "sec") || position == "two":
		pos = 0
	case strings.HasPrefix(position, "ter") || strings.HasPrefix(position, "th"):
		pos = 1
	case strings.HasPrefix(position, "fou"):
		pos = 2
	case strings.HasPrefix(position, "fi"):
		pos = 3
	case strings.HasPrefix(position, "six"):
		pos = 4
	case strings.HasPrefix(position, "sev"):
		pos = 5
	case strings.HasPrefix(position, "eig"):
		pos = 6
	case strings.HasPrefix(position, "nin"):
		pos = 7
	case strings.HasPrefix(position, "ten"):
		pos = 8
	default:
		parsed, err := strconv.ParseUint(position, 10, 64)
		if err != nil {
			return 0, false, ierrors.Wrapf(ErrTableQuery, "invalid index position %q", position)
		}
		if parsed < 2 {
			return table, true, nil
		}
		pos = parsed - 2
	}

	return types.Name(base | (pos & 0xF)), false, nil
}

// parseUint64Value accepts a raw integer, an account name, a symbol with
// precision ("4,EOS") or a bare symbol code, in that order.
func parseUint64Value(value, desc string) (uint64, error) {
	if v, err := strconv.ParseUint(value, 10, 64); err == nil {
		return v, nil
	}
	if n, err := types.NameFromString(strings.TrimSpace(value)); err == nil {
		return uint64(n), nil
	}
	if strings.Contains(value, ",") {
		if sym, err := types.SymbolFromString(value); err == nil {
			return uint64(sym), nil
		}
	}
	if code, err := types.SymbolCodeFromString(strings.TrimSpace(value)); err == nil {
		return uint64(code), nil
	}

	return 0, ierrors.Wrapf(ErrTableQuery,
		"could not convert %s string '%s' to any of the following: uint64, valid name, or valid symbol (with or without the precision)",
		desc, value)
}

func parseNameValue(value, desc string) (uint64, error) {
	n, err := types.NameFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, ierrors.Wrapf(ErrTableQuery, "invalid %s name %q", desc, value)
	}

	return uint64(n), nil
}

func parseUint128Value(value, encodeType string) (types.Uint128, error) {
	if encodeType == EncodeTypeHex || strings.HasPrefix(value, "0x") {
		u, err := types.Uint128FromHexString(strings.TrimPrefix(value, "0x"))
		if err != nil {
			return types.Uint128{}, ierrors.Wrap(ErrTableQuery, err.Error())
		}

		return u, nil
	}
	u, err := types.Uint128FromString(value)
	if err != nil {
		return types.Uint128{}, ierrors.Wrap(ErrTableQuery, err.Error())
	}

	return u, nil
}

func parseUint256Value(value, encodeType string) (types.Uint256, error) {
	if encodeType == EncodeTypeHex || strings.HasPrefix(value, "0x") {
		u, err := types.Uint256FromHexString(strings.TrimPrefix(value, "0x"))
		if err != nil {
			return types.Uint256{}, ierrors.Wrap(ErrTableQuery, err.Error())
		}

		return u, nil
	}
	u, err := types.Uint256FromString(value)
	if err != nil {
		return types.Uint256{}, ierrors.Wrap(ErrTableQuery, err.Error())
	}

	return u, nil
}

// parseChecksumValue decodes a hex digest of the given byte length into a
// 32-byte key, left aligned with trailing zero padding.
func parseChecksumValue(value string, size int) (types.Uint256, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(value, "0x"))
	if err != nil || len(b) != size {
		return types.Uint256{}, ierrors.Wrapf(ErrTableQuery, "invalid %d-byte hex checksum %q", size, value)
	}
	var u types.Uint256
	copy(u[:], b)

	return u, nil
}

func parseFloat64Value(value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, ierrors.Wrapf(ErrTableQuery, "invalid float64 value %q", value)
	}

	return f, nil
}

// parseFloat128Value reads either the raw 16-byte binary128 image as hex or
// a decimal literal widened from float64.
func parseFloat128Value(value, encodeType string) (types.Uint128, error) {
	if encodeType == EncodeTypeHex || strings.HasPrefix(value, "0x") {
		u, err := types.Uint128FromHexString(strings.TrimPrefix(value, "0x"))
		if err != nil {
			return types.Uint128{}, ierrors.Wrap(ErrTableQuery, err.Error())
		}

		return u, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return types.Uint128{}, ierrors.Wrapf(ErrTableQuery, "invalid float128 value %q", value)
	}

	return float128FromFloat64(f), nil
}

// float128FromFloat64 widens an IEEE 754 double to the binary128 bit image.
// The widened value is exact, so round tripping through the scan bounds
// never shifts a key.
func float128FromFloat64(f float64) types.Uint128 {
	raw := math.Float64bits(f)
	sign := raw >> 63
	exp := (raw >> 52) & 0x7FF
	frac := raw & (1<<52 - 1)

	switch {
	case exp == 0 && frac == 0:
		return types.Uint128{Hi: sign << 63}
	case exp == 0x7FF:
		// Infinity and NaN keep an all-ones exponent.
		return types.Uint128{Hi: sign<<63 | 0x7FFF<<48 | frac>>4, Lo: frac << 60}
	case exp == 0:
		// Subnormal doubles are normal in binary128.
		shift := uint(53 - bits.Len64(frac))
		frac = frac << shift &^ (1 << 52)
		bexp := uint64(int64(16383) - 1022 - int64(shift))

		return types.Uint128{Hi: sign<<63 | bexp<<48 | frac>>4, Lo: frac << 60}
	default:
		bexp := exp - 1023 + 16383

		return types.Uint128{Hi: sign<<63 | bexp<<48 | frac>>4, Lo: frac << 60}
	}
}

func formatUint64Key(v uint64, encodeType string) string {
	if encodeType == EncodeTypeHex {
		return strconv.FormatUint(v, 16)
	}

	return strconv.FormatUint(v, 10)
}

func formatUint128Key(u types.Uint128, encodeType string) string {
	if encodeType == EncodeTypeHex {
		return hex.EncodeToString(u.BigEndian())
	}

	return u.String()
}

func formatUint256Key(u types.Uint256, encodeType string) string {
	if encodeType == EncodeTypeHex {
		return hex.EncodeToString(u.BigEndian())
	}

	return u.String()
}

func formatFloat64Key(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatFloat128Key(u types.Uint128) string {
	return hex.EncodeToString(u.BigEndian())
}
