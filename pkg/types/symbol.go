package types

import (
	"strconv"
	"strings"

	"github.com/iotaledger/hive.go/ierrors"
)

var ErrInvalidSymbol = ierrors.New("invalid symbol")

// SymbolCode packs up to 7 uppercase A-Z characters into a uint64, first
// character in the lowest byte.
type SymbolCode uint64

func SymbolCodeFromString(s string) (SymbolCode, error) {
	if len(s) == 0 || len(s) > 7 {
		return 0, ierrors.Wrapf(ErrInvalidSymbol, "symbol code %q must be 1 to 7 characters", s)
	}

	var value uint64
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c < 'A' || c > 'Z' {
			return 0, ierrors.Wrapf(ErrInvalidSymbol, "symbol code %q contains invalid character %q", s, c)
		}
		value <<= 8
		value |= uint64(c)
	}

	return SymbolCode(value), nil
}

func (s SymbolCode) String() string {
	var b strings.Builder
	for v := uint64(s); v != 0; v >>= 8 {
		b.WriteByte(byte(v & 0xff))
	}

	return b.String()
}

// Symbol is a precision plus a symbol code, e.g. "4,EOS".
type Symbol uint64

func SymbolFromString(s string) (Symbol, error) {
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return 0, ierrors.Wrapf(ErrInvalidSymbol, "symbol %q is missing the precision separator", s)
	}

	precision, err := strconv.ParseUint(s[:comma], 10, 8)
	if err != nil {
		return 0, ierrors.Wrapf(ErrInvalidSymbol, "symbol %q has an invalid precision", s)
	}

	code, err := SymbolCodeFromString(s[comma+1:])
	if err != nil {
		return 0, err
	}

	return Symbol(uint64(code)<<8 | precision), nil
}

func (s Symbol) Code() SymbolCode {
	return SymbolCode(uint64(s) >> 8)
}

func (s Symbol) Precision() uint8 {
	return uint8(s)
}

func (s Symbol) String() string {
	return strconv.FormatUint(uint64(s.Precision()), 10) + "," + s.Code().String()
}

var ErrInvalidAsset = ierrors.New("invalid asset")

// Asset is a signed token amount expressed in the smallest unit of its
// symbol's precision.
type Asset struct {
	Amount int64
	Symbol Symbol
}

// AssetFromString parses the canonical asset notation, e.g. "1.0000 EOS".
// The number of fraction digits fixes the symbol precision.
func AssetFromString(s string) (Asset, error) {
	space := strings.IndexByte(s, ' ')
	if space < 0 {
		return Asset{}, ierrors.Wrapf(ErrInvalidAsset, "asset %q is missing the symbol separator", s)
	}

	amountPart, codePart := s[:space], s[space+1:]
	var precision uint64
	if dot := strings.IndexByte(amountPart, '.'); dot >= 0 {
		precision = uint64(len(amountPart) - dot - 1)
		if precision == 0 {
			return Asset{}, ierrors.Wrapf(ErrInvalidAsset, "asset %q ends with the decimal separator", s)
		}
		amountPart = amountPart[:dot] + amountPart[dot+1:]
	}
	if precision > 18 {
		return Asset{}, ierrors.Wrapf(ErrInvalidAsset, "asset %q has more than 18 fraction digits", s)
	}

	amount, err := strconv.ParseInt(amountPart, 10, 64)
	if err != nil {
		return Asset{}, ierrors.Wrapf(ErrInvalidAsset, "asset %q has an invalid amount", s)
	}
	code, err := SymbolCodeFromString(codePart)
	if err != nil {
		return Asset{}, err
	}

	return Asset{
		Amount: amount,
		Symbol: Symbol(uint64(code)<<8 | precision),
	}, nil
}

func (a Asset) String() string {
	sign := ""
	amount := a.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	digits := strconv.FormatUint(uint64(amount), 10)
	precision := int(a.Symbol.Precision())
	for len(digits) <= precision {
		digits = "0" + digits
	}
	if precision > 0 {
		digits = digits[:len(digits)-precision] + "." + digits[len(digits)-precision:]
	}

	return sign + digits + " " + a.Symbol.Code().String()
}
