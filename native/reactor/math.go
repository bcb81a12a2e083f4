package reactor

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	errDivisionByZero  = errors.New("reactor: division by zero")
	errNegativeInput   = errors.New("reactor: negative input")
	errValueOutOfRange = errors.New("reactor: value exceeds 256 bits")
	errExponentRange   = errors.New("reactor: decimal exponent out of range")
)

var (
	wad    = mustBigInt("1000000000000000000") // 1e18 fixed point scale
	bigTen = big.NewInt(10)
)

// maxDecimalExponent bounds ScaleByDecimalExponent so 10^|expo| stays well
// inside the 256-bit range.
const maxDecimalExponent = 38

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// Wad returns the 1e18 fixed point unit.
func Wad() *big.Int { return new(big.Int).Set(wad) }

// MulDiv computes a*b/denom with full-width intermediates, truncating toward
// zero. Inputs must be non-negative; the result must fit in 256 bits.
func MulDiv(a, b, denom *big.Int) (*big.Int, error) {
	if a == nil || b == nil || denom == nil {
		return nil, errNegativeInput
	}
	if a.Sign() < 0 || b.Sign() < 0 || denom.Sign() < 0 {
		return nil, errNegativeInput
	}
	if denom.Sign() == 0 {
		return nil, errDivisionByZero
	}
	product := new(big.Int).Mul(a, b)
	result := product.Quo(product, denom)
	if _, overflow := uint256.FromBig(result); overflow {
		return nil, errValueOutOfRange
	}
	return result, nil
}

// MulWad computes a*b/1e18.
func MulWad(a, b *big.Int) (*big.Int, error) {
	return MulDiv(a, b, wad)
}

// DivWad computes a*1e18/b.
func DivWad(a, b *big.Int) (*big.Int, error) {
	return MulDiv(a, wad, b)
}

// PowWad raises a wad-scaled base to a non-negative integer exponent by
// squaring, rescaling at every step so intermediates stay wad-scaled.
func PowWad(base *big.Int, exponent uint64) (*big.Int, error) {
	if base == nil || base.Sign() < 0 {
		return nil, errNegativeInput
	}
	result := Wad()
	factor := new(big.Int).Set(base)
	for exponent > 0 {
		if exponent&1 == 1 {
			scaled, err := MulWad(result, factor)
			if err != nil {
				return nil, err
			}
			result = scaled
		}
		exponent >>= 1
		if exponent == 0 {
			break
		}
		squared, err := MulWad(factor, factor)
		if err != nil {
			return nil, err
		}
		factor = squared
	}
	return result, nil
}

// ScaleByDecimalExponent multiplies value by 10^expo, dividing when the
// exponent is negative. Exponents beyond +-38 are rejected.
func ScaleByDecimalExponent(value *big.Int, expo int32) (*big.Int, error) {
	if value == nil || value.Sign() < 0 {
		return nil, errNegativeInput
	}
	magnitude := expo
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if magnitude > maxDecimalExponent {
		return nil, errExponentRange
	}
	scale := new(big.Int).Exp(bigTen, big.NewInt(int64(magnitude)), nil)
	if expo >= 0 {
		return MulDiv(value, scale, big.NewInt(1))
	}
	return MulDiv(value, big.NewInt(1), scale)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
