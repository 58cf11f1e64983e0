package params

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Basis points denominator shared by every ratio below.
const BasisPoints = 10_000

// MaxInflationIntervalSecs bounds the inflation interval at one hundred years.
const MaxInflationIntervalSecs int64 = 100 * 365 * 24 * 60 * 60

// ZeroStakePolicy decides what happens to the staker share of income that
// arrives while nothing is staked.
type ZeroStakePolicy string

const (
	// ZeroStakeCarry keeps the share in the reward vault and credits it to
	// stakers on the next distribution that finds stake.
	ZeroStakeCarry ZeroStakePolicy = "carry"
	// ZeroStakeReserve routes the share to the reserve vault instead.
	ZeroStakeReserve ZeroStakePolicy = "reserve"
)

// Economics holds the named constants of the token economy. Ranges:
//
//	ReserveShareBps       0..10000   share of income kept by the reserve (rest to stakers)
//	FounderShareBps       0..10000   share of harvested fees paid to the founder wallet
//	MaxFeeBps             0..10000   cap for the transfer fee stored on the ledger
//	InflationBps          0..1000    supply fraction minted per scheduled mint
//	InflationIntervalSecs 1..100y    seconds between scheduled mints
//	BuyPrice              >= 1       reward-token units charged per stake token bought
//	BuyBurnBps            0..10000   share of the buy cost that is burned
//	RedeemRate            >= 1       reward-token units paid per stake token redeemed
//
// RedeemRate may not exceed the part of BuyPrice that reaches the reserve, so
// a buy followed by a redeem never drains it.
type Economics struct {
	ReserveShareBps       uint32          `toml:"ReserveShareBps" yaml:"reserveShareBps"`
	FounderShareBps       uint32          `toml:"FounderShareBps" yaml:"founderShareBps"`
	MaxFeeBps             uint16          `toml:"MaxFeeBps" yaml:"maxFeeBps"`
	InflationBps          uint32          `toml:"InflationBps" yaml:"inflationBps"`
	InflationIntervalSecs int64           `toml:"InflationIntervalSecs" yaml:"inflationIntervalSecs"`
	BuyPrice              uint64          `toml:"BuyPrice" yaml:"buyPrice"`
	BuyBurnBps            uint32          `toml:"BuyBurnBps" yaml:"buyBurnBps"`
	RedeemRate            uint64          `toml:"RedeemRate" yaml:"redeemRate"`
	ZeroStakePolicy       ZeroStakePolicy `toml:"ZeroStakePolicy" yaml:"zeroStakePolicy"`
}

// DefaultEconomics returns the production parameters: a 60/40 reserve/staker
// split, a 50% founder fee share, a 3% fee cap, 2.5% inflation every five
// years and a 1:1,000,000 buy price with 30% burned.
func DefaultEconomics() Economics {
	return Economics{
		ReserveShareBps:       6_000,
		FounderShareBps:       5_000,
		MaxFeeBps:             300,
		InflationBps:          250,
		InflationIntervalSecs: 157_680_000,
		BuyPrice:              1_000_000,
		BuyBurnBps:            3_000,
		RedeemRate:            700_000,
		ZeroStakePolicy:       ZeroStakeCarry,
	}
}

// Normalize fills unset fields with defaults where zero is not a meaningful
// value.
func (e Economics) Normalize() Economics {
	defaults := DefaultEconomics()
	if e.InflationIntervalSecs == 0 {
		e.InflationIntervalSecs = defaults.InflationIntervalSecs
	}
	if e.BuyPrice == 0 {
		e.BuyPrice = defaults.BuyPrice
	}
	if e.RedeemRate == 0 {
		e.RedeemRate = defaults.RedeemRate
	}
	if strings.TrimSpace(string(e.ZeroStakePolicy)) == "" {
		e.ZeroStakePolicy = defaults.ZeroStakePolicy
	}
	e.ZeroStakePolicy = ZeroStakePolicy(strings.ToLower(strings.TrimSpace(string(e.ZeroStakePolicy))))
	return e
}

// Validate checks every parameter against its documented range.
func (e Economics) Validate() error {
	var errs []error
	if e.ReserveShareBps > BasisPoints {
		errs = append(errs, fmt.Errorf("ReserveShareBps %d exceeds %d", e.ReserveShareBps, BasisPoints))
	}
	if e.FounderShareBps > BasisPoints {
		errs = append(errs, fmt.Errorf("FounderShareBps %d exceeds %d", e.FounderShareBps, BasisPoints))
	}
	if e.MaxFeeBps > BasisPoints {
		errs = append(errs, fmt.Errorf("MaxFeeBps %d exceeds %d", e.MaxFeeBps, BasisPoints))
	}
	if e.InflationBps > 1_000 {
		errs = append(errs, fmt.Errorf("InflationBps %d exceeds 1000", e.InflationBps))
	}
	if e.InflationIntervalSecs < 1 {
		errs = append(errs, fmt.Errorf("InflationIntervalSecs must be positive"))
	} else if e.InflationIntervalSecs > MaxInflationIntervalSecs {
		errs = append(errs, fmt.Errorf("InflationIntervalSecs %d exceeds %d", e.InflationIntervalSecs, MaxInflationIntervalSecs))
	}
	if e.BuyPrice == 0 {
		errs = append(errs, fmt.Errorf("BuyPrice must be positive"))
	}
	if e.BuyBurnBps > BasisPoints {
		errs = append(errs, fmt.Errorf("BuyBurnBps %d exceeds %d", e.BuyBurnBps, BasisPoints))
	}
	if e.RedeemRate == 0 {
		errs = append(errs, fmt.Errorf("RedeemRate must be positive"))
	}
	if e.BuyBurnBps <= BasisPoints && e.BuyPrice > 0 {
		reserved := new(uint256.Int).Mul(uint256.NewInt(e.BuyPrice), uint256.NewInt(uint64(BasisPoints-e.BuyBurnBps)))
		reserved.Div(reserved, uint256.NewInt(BasisPoints))
		if uint256.NewInt(e.RedeemRate).Gt(reserved) {
			errs = append(errs, fmt.Errorf("RedeemRate %d exceeds reserve-backed price %s", e.RedeemRate, reserved.Dec()))
		}
	}
	switch e.ZeroStakePolicy {
	case ZeroStakeCarry, ZeroStakeReserve:
	default:
		errs = append(errs, fmt.Errorf("ZeroStakePolicy %q must be %q or %q", e.ZeroStakePolicy, ZeroStakeCarry, ZeroStakeReserve))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("params: invalid economics: %w", errors.Join(errs...))
}
