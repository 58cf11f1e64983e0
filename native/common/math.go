package common

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"

	ledgererrors "excelsior/core/errors"
)

// BasisPoints is the denominator for every bps ratio.
const BasisPoints = 10_000

// AddUint64 returns a+b or ErrArithmeticOverflow.
func AddUint64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, fmt.Errorf("%d + %d: %w", a, b, ledgererrors.ErrArithmeticOverflow)
	}
	return a + b, nil
}

// SubUint64 returns a-b or ErrArithmeticUnderflow.
func SubUint64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("%d - %d: %w", a, b, ledgererrors.ErrArithmeticUnderflow)
	}
	return a - b, nil
}

// MulUint64 returns a*b or ErrArithmeticOverflow.
func MulUint64(a, b uint64) (uint64, error) {
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !product.IsUint64() {
		return 0, fmt.Errorf("%d * %d: %w", a, b, ledgererrors.ErrArithmeticOverflow)
	}
	return product.Uint64(), nil
}

// ApplyBps returns floor(amount*bps/10000). The intermediate product is held in
// 256 bits, so only a bps above 10000 can overflow the result.
func ApplyBps(amount uint64, bps uint32) (uint64, error) {
	product := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(bps)))
	product.Div(product, uint256.NewInt(BasisPoints))
	if !product.IsUint64() {
		return 0, fmt.Errorf("%d * %d bps: %w", amount, bps, ledgererrors.ErrArithmeticOverflow)
	}
	return product.Uint64(), nil
}
