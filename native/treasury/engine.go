package treasury

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/holiman/uint256"

	ledgererrors "excelsior/core/errors"
	"excelsior/core/events"
	"excelsior/core/types"
	"excelsior/crypto"
	"excelsior/native/bank"
	"excelsior/native/common"
	"excelsior/native/params"
	"excelsior/native/staking"
)

var (
	errNilState  = errors.New("treasury: state not configured")
	errNilTokens = errors.New("treasury: token program not configured")

	ErrZeroIncome = fmt.Errorf("treasury: income amount must be positive: %w", ledgererrors.ErrInvalidArgument)
	ErrNotReady   = fmt.Errorf("treasury: inflation interval has not elapsed: %w", ledgererrors.ErrNotReady)
)

type engineState interface {
	common.LedgerState
}

type tokenProgram interface {
	Mint(symbol string) (*types.Mint, error)
	Account(id crypto.Address) (*types.TokenAccount, error)
	OpenAccount(id, owner crypto.Address, symbol string) (*types.TokenAccount, error)
	EnsureAssociated(owner crypto.Address, symbol string) (*types.TokenAccount, error)
	Transfer(from, to crypto.Address, symbol string, amount uint64, authority bank.Authority) error
	MintTo(symbol string, to crypto.Address, amount uint64, authority bank.Authority) error
}

// IncomeResult describes where a distributed deposit went.
type IncomeResult struct {
	Reserve           uint64
	Reward            uint64
	Routing           string
	AccDelta          *uint256.Int
	AccRewardPerShare *uint256.Int
	Undistributed     uint64
}

// FeeHarvest reports a fee vault sweep.
type FeeHarvest struct {
	Total   uint64
	Founder uint64
	Reserve uint64
}

// InflationResult reports a scheduled mint.
type InflationResult struct {
	Amount    uint64
	Supply    uint64
	Timestamp int64
}

// Engine splits protocol income between the reserve and stakers and runs the
// ledger's administrative flows.
type Engine struct {
	state     engineState
	tokens    tokenProgram
	economics params.Economics
	emitter   events.Emitter
	now       func() time.Time
}

// NewEngine constructs a treasury engine using the default economics.
func NewEngine() *Engine {
	return &Engine{
		economics: params.DefaultEconomics(),
		emitter:   events.NoopEmitter{},
		now:       time.Now,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokens configures the token program that moves vault funds.
func (e *Engine) SetTokens(tokens tokenProgram) { e.tokens = tokens }

// SetEconomics replaces the economic parameters. Callers validate them first.
func (e *Engine) SetEconomics(economics params.Economics) { e.economics = economics.Normalize() }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetClock overrides the engine clock, primarily for deterministic testing.
func (e *Engine) SetClock(clock func() time.Time) {
	if e == nil || clock == nil {
		return
	}
	e.now = clock
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.tokens == nil {
		return errNilTokens
	}
	return nil
}

func (e *Engine) timestamp() int64 {
	return e.now().UTC().Unix()
}

// DistributeIncome deposits amount of the reward mint from the admin's
// associated account. The reserve share goes to the reserve vault and the
// reward share is credited to stakers through the accumulator. With nothing
// staked the reward share is carried or sent to the reserve according to the
// zero-stake policy.
func (e *Engine) DistributeIncome(admin crypto.Address, amount uint64) (*IncomeResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ledger, err := common.LoadLedger(e.state)
	if err != nil {
		return nil, err
	}
	if err := common.RequireAdmin(ledger, admin); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrZeroIncome
	}
	reserve, reward, err := Split(amount, e.economics.ReserveShareBps)
	if err != nil {
		return nil, err
	}
	src, err := e.tokens.EnsureAssociated(admin, ledger.RewardMint)
	if err != nil {
		return nil, err
	}
	payer := bank.Signer(admin)
	if err := e.tokens.Transfer(src.ID, ledger.ReserveVault, ledger.RewardMint, reserve, payer); err != nil {
		return nil, err
	}

	result := &IncomeResult{Reserve: reserve, Reward: reward, AccDelta: new(uint256.Int)}
	switch {
	case ledger.TotalStaked > 0:
		if err := e.tokens.Transfer(src.ID, ledger.RewardVault, ledger.RewardMint, reward, payer); err != nil {
			return nil, err
		}
		credit, err := common.AddUint64(reward, ledger.UndistributedRewards)
		if err != nil {
			return nil, err
		}
		delta, err := staking.AccDelta(credit, ledger.TotalStaked)
		if err != nil {
			return nil, err
		}
		acc, err := staking.AddAcc(ledger.Acc(), delta)
		if err != nil {
			return nil, err
		}
		ledger.AccRewardPerShare = acc
		ledger.UndistributedRewards = 0
		result.Routing = events.IncomeRoutingAccrued
		result.AccDelta = delta
	case e.economics.ZeroStakePolicy == params.ZeroStakeReserve:
		if err := e.tokens.Transfer(src.ID, ledger.ReserveVault, ledger.RewardMint, reward, payer); err != nil {
			return nil, err
		}
		result.Routing = events.IncomeRoutingReserve
	default:
		if err := e.tokens.Transfer(src.ID, ledger.RewardVault, ledger.RewardMint, reward, payer); err != nil {
			return nil, err
		}
		carried, err := common.AddUint64(ledger.UndistributedRewards, reward)
		if err != nil {
			return nil, err
		}
		ledger.UndistributedRewards = carried
		result.Routing = events.IncomeRoutingCarried
	}
	if err := e.state.LedgerPut(ledger); err != nil {
		return nil, err
	}
	result.AccRewardPerShare = ledger.Acc()
	result.Undistributed = ledger.UndistributedRewards
	e.emit(events.IncomeDistributed{
		Amount:            amount,
		Reserve:           reserve,
		Reward:            reward,
		Routing:           result.Routing,
		TotalStaked:       ledger.TotalStaked,
		AccDelta:          result.AccDelta,
		AccRewardPerShare: result.AccRewardPerShare,
		Undistributed:     result.Undistributed,
	})
	return result, nil
}

// HarvestFees sweeps the fee vault. The founder share goes to the founder
// wallet and the remainder to the reserve vault. An empty vault is a no-op.
func (e *Engine) HarvestFees(admin crypto.Address) (*FeeHarvest, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ledger, err := common.LoadLedger(e.state)
	if err != nil {
		return nil, err
	}
	if err := common.RequireAdmin(ledger, admin); err != nil {
		return nil, err
	}
	vault, err := e.tokens.Account(ledger.FeeVault)
	if err != nil {
		return nil, err
	}
	out := &FeeHarvest{Total: vault.Balance}
	if vault.Balance == 0 {
		return out, nil
	}
	founder, err := common.ApplyBps(vault.Balance, e.economics.FounderShareBps)
	if err != nil {
		return nil, err
	}
	out.Founder = founder
	out.Reserve = vault.Balance - founder

	authority := bank.LedgerAuthority()
	if founder > 0 {
		dst, err := e.tokens.EnsureAssociated(ledger.FounderWallet, vault.Mint)
		if err != nil {
			return nil, err
		}
		if err := e.tokens.Transfer(vault.ID, dst.ID, vault.Mint, founder, authority); err != nil {
			return nil, err
		}
	}
	if err := e.tokens.Transfer(vault.ID, ledger.ReserveVault, vault.Mint, out.Reserve, authority); err != nil {
		return nil, err
	}
	e.emit(events.FeesHarvested{Total: out.Total, Founder: out.Founder, Reserve: out.Reserve})
	return out, nil
}

// TriggerScheduledMint mints InflationBps of the reward supply into the
// reserve vault once per inflation interval. The admin must be the reward
// mint authority.
func (e *Engine) TriggerScheduledMint(admin crypto.Address) (*InflationResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ledger, err := common.LoadLedger(e.state)
	if err != nil {
		return nil, err
	}
	if err := common.RequireAdmin(ledger, admin); err != nil {
		return nil, err
	}
	now := e.timestamp()
	interval := e.economics.InflationIntervalSecs
	if ledger.LastInflationTime > 0 && interval > math.MaxInt64-ledger.LastInflationTime {
		return nil, fmt.Errorf("treasury: next mint after %d + %d: %w", ledger.LastInflationTime, interval, ledgererrors.ErrArithmeticOverflow)
	}
	if next := ledger.LastInflationTime + interval; now < next {
		return nil, fmt.Errorf("%w: next mint at %d", ErrNotReady, next)
	}
	mint, err := e.tokens.Mint(ledger.RewardMint)
	if err != nil {
		return nil, err
	}
	amount, err := common.ApplyBps(mint.Supply, e.economics.InflationBps)
	if err != nil {
		return nil, err
	}
	if err := e.tokens.MintTo(ledger.RewardMint, ledger.ReserveVault, amount, bank.Signer(admin)); err != nil {
		return nil, err
	}
	ledger.LastInflationTime = now
	if err := e.state.LedgerPut(ledger); err != nil {
		return nil, err
	}
	supply := mint.Supply + amount
	e.emit(events.InflationMinted{Mint: ledger.RewardMint, Amount: amount, Supply: supply, Timestamp: now})
	return &InflationResult{Amount: amount, Supply: supply, Timestamp: now}, nil
}
