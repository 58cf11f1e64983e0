package staking

import (
	"fmt"

	"github.com/holiman/uint256"

	ledgererrors "excelsior/core/errors"
)

// AccPrecision scales acc_reward_per_share so fractional rewards per staked
// unit survive integer division.
const AccPrecision uint64 = 1_000_000_000_000

var (
	accPrecision = uint256.NewInt(AccPrecision)
	maxU128      = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

	// ErrNoStake is returned by AccDelta when nothing is staked; callers apply
	// the zero-stake policy instead.
	ErrNoStake = fmt.Errorf("staking: nothing staked: %w", ledgererrors.ErrInvalidArgument)
)

func checkU128(label string, v *uint256.Int) error {
	if v.Gt(maxU128) {
		return fmt.Errorf("staking: %s exceeds 128 bits: %w", label, ledgererrors.ErrArithmeticOverflow)
	}
	return nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

// RewardDebt returns floor(staked * acc / AccPrecision). The product must fit
// in 128 bits.
func RewardDebt(staked uint64, acc *uint256.Int) (*uint256.Int, error) {
	acc = orZero(acc)
	if err := checkU128("accumulator", acc); err != nil {
		return nil, err
	}
	// A 64-bit by 128-bit product cannot exceed 256 bits.
	product := new(uint256.Int).Mul(uint256.NewInt(staked), acc)
	if err := checkU128("staked * accumulator", product); err != nil {
		return nil, err
	}
	return product.Div(product, accPrecision), nil
}

// Pending returns floor(staked * acc / AccPrecision) - debt. A debt above the
// accrued value means the ledger is inconsistent and yields
// ErrArithmeticUnderflow.
func Pending(staked uint64, acc, debt *uint256.Int) (uint64, error) {
	accrued, err := RewardDebt(staked, acc)
	if err != nil {
		return 0, err
	}
	debt = orZero(debt)
	if accrued.Lt(debt) {
		return 0, fmt.Errorf("staking: accrued %s below debt %s: %w", accrued.Dec(), debt.Dec(), ledgererrors.ErrArithmeticUnderflow)
	}
	diff := new(uint256.Int).Sub(accrued, debt)
	if !diff.IsUint64() {
		return 0, fmt.Errorf("staking: pending %s exceeds 64 bits: %w", diff.Dec(), ledgererrors.ErrArithmeticOverflow)
	}
	return diff.Uint64(), nil
}

// AccDelta returns reward * AccPrecision / totalStaked, the accumulator
// increase for distributing reward across totalStaked units.
func AccDelta(reward, totalStaked uint64) (*uint256.Int, error) {
	if totalStaked == 0 {
		return nil, ErrNoStake
	}
	delta := new(uint256.Int).Mul(uint256.NewInt(reward), accPrecision)
	return delta.Div(delta, uint256.NewInt(totalStaked)), nil
}

// AddAcc returns acc + delta, rejecting results above 128 bits.
func AddAcc(acc, delta *uint256.Int) (*uint256.Int, error) {
	sum := new(uint256.Int).Add(orZero(acc), orZero(delta))
	if err := checkU128("accumulator", sum); err != nil {
		return nil, err
	}
	return sum, nil
}
