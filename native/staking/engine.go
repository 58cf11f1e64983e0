package staking

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	ledgererrors "excelsior/core/errors"
	"excelsior/core/events"
	"excelsior/core/types"
	"excelsior/crypto"
	"excelsior/native/bank"
	"excelsior/native/common"
)

var (
	errNilState  = errors.New("staking engine: state not configured")
	errNilTokens = errors.New("staking engine: token program not configured")

	ErrPositionExists    = fmt.Errorf("staking engine: position exists: %w", ledgererrors.ErrAlreadyExists)
	ErrPositionNotFound  = fmt.Errorf("staking engine: position not found: %w", ledgererrors.ErrNotFound)
	ErrInsufficientFunds = fmt.Errorf("staking engine: unstake exceeds stake: %w", ledgererrors.ErrInsufficientFunds)
)

type engineState interface {
	common.LedgerState
	PositionGet(owner crypto.Address) (*types.Position, bool, error)
	PositionPut(pos *types.Position) error
}

type tokenProgram interface {
	EnsureAssociated(owner crypto.Address, mint string) (*types.TokenAccount, error)
	Transfer(from, to crypto.Address, mint string, amount uint64, authority bank.Authority) error
}

// Settlement reports the outcome of a stake, unstake or harvest.
type Settlement struct {
	Paid              uint64
	Staked            uint64
	TotalStaked       uint64
	RewardDebt        *uint256.Int
	AccRewardPerShare *uint256.Int
}

// Engine keeps per-staker positions in step with the global reward
// accumulator. Pending rewards are settled lazily whenever a position changes.
type Engine struct {
	state   engineState
	tokens  tokenProgram
	emitter events.Emitter
}

// NewEngine constructs a staking engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokens configures the token program that executes payouts.
func (e *Engine) SetTokens(tokens tokenProgram) { e.tokens = tokens }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
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

// OpenPosition creates an empty position for owner.
func (e *Engine) OpenPosition(owner crypto.Address) (*types.Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if owner.IsZero() {
		return nil, fmt.Errorf("staking engine: owner required: %w", ledgererrors.ErrInvalidArgument)
	}
	if _, err := common.LoadLedger(e.state); err != nil {
		return nil, err
	}
	_, exists, err := e.state.PositionGet(owner)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrPositionExists
	}
	pos := &types.Position{
		Version:    types.PositionLayoutVersion,
		Owner:      owner,
		RewardDebt: new(uint256.Int),
	}
	if err := e.state.PositionPut(pos); err != nil {
		return nil, err
	}
	e.emit(events.StakeOpened{Owner: owner})
	return pos, nil
}

// Position returns the position owned by owner.
func (e *Engine) Position(owner crypto.Address) (*types.Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pos, ok, err := e.state.PositionGet(owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPositionNotFound
	}
	return pos, nil
}

// PendingReward returns what a settlement would pay owner right now.
func (e *Engine) PendingReward(owner crypto.Address) (uint64, error) {
	ledger, err := common.LoadLedger(e.state)
	if err != nil {
		return 0, err
	}
	pos, err := e.Position(owner)
	if err != nil {
		return 0, err
	}
	return Pending(pos.Staked, ledger.Acc(), pos.Debt())
}

// Stake settles pending rewards against the current stake, then locks amount
// into the stake vault. A zero amount only settles.
func (e *Engine) Stake(owner crypto.Address, amount uint64) (*Settlement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ledger, pos, err := e.load(owner)
	if err != nil {
		return nil, err
	}
	paid, err := e.settle(ledger, pos)
	if err != nil {
		return nil, err
	}
	if amount > 0 {
		src, err := e.tokens.EnsureAssociated(owner, ledger.StakeMint)
		if err != nil {
			return nil, err
		}
		if err := e.tokens.Transfer(src.ID, ledger.StakeVault, ledger.StakeMint, amount, bank.Signer(owner)); err != nil {
			return nil, err
		}
		if pos.Staked, err = common.AddUint64(pos.Staked, amount); err != nil {
			return nil, err
		}
		if ledger.TotalStaked, err = common.AddUint64(ledger.TotalStaked, amount); err != nil {
			return nil, err
		}
	}
	result, err := e.commit(ledger, pos, paid)
	if err != nil {
		return nil, err
	}
	if amount > 0 {
		e.emit(events.StakeDeposited{Owner: owner, Amount: amount, Staked: pos.Staked, TotalStaked: ledger.TotalStaked})
	}
	return result, nil
}

// Unstake settles pending rewards and releases amount from the stake vault.
// Asking for more than the position holds fails before any effect.
func (e *Engine) Unstake(owner crypto.Address, amount uint64) (*Settlement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ledger, pos, err := e.load(owner)
	if err != nil {
		return nil, err
	}
	if amount > pos.Staked {
		return nil, fmt.Errorf("%w: staked %d, requested %d", ErrInsufficientFunds, pos.Staked, amount)
	}
	paid, err := e.settle(ledger, pos)
	if err != nil {
		return nil, err
	}
	if amount > 0 {
		dst, err := e.tokens.EnsureAssociated(owner, ledger.StakeMint)
		if err != nil {
			return nil, err
		}
		if err := e.tokens.Transfer(ledger.StakeVault, dst.ID, ledger.StakeMint, amount, bank.LedgerAuthority()); err != nil {
			return nil, err
		}
		pos.Staked -= amount
		if ledger.TotalStaked, err = common.SubUint64(ledger.TotalStaked, amount); err != nil {
			return nil, err
		}
	}
	result, err := e.commit(ledger, pos, paid)
	if err != nil {
		return nil, err
	}
	if amount > 0 {
		e.emit(events.StakeWithdrawn{Owner: owner, Amount: amount, Staked: pos.Staked, TotalStaked: ledger.TotalStaked})
	}
	return result, nil
}

// Harvest settles pending rewards without changing the stake.
func (e *Engine) Harvest(owner crypto.Address) (*Settlement, error) {
	return e.Stake(owner, 0)
}

func (e *Engine) load(owner crypto.Address) (*types.GlobalLedger, *types.Position, error) {
	ledger, err := common.LoadLedger(e.state)
	if err != nil {
		return nil, nil, err
	}
	pos, err := e.Position(owner)
	if err != nil {
		return nil, nil, err
	}
	return ledger, pos, nil
}

// settle pays the rewards accrued on the current stake out of the reward
// vault.
func (e *Engine) settle(ledger *types.GlobalLedger, pos *types.Position) (uint64, error) {
	pending, err := Pending(pos.Staked, ledger.Acc(), pos.Debt())
	if err != nil {
		return 0, err
	}
	if pending == 0 {
		return 0, nil
	}
	dst, err := e.tokens.EnsureAssociated(pos.Owner, ledger.RewardMint)
	if err != nil {
		return 0, err
	}
	if err := e.tokens.Transfer(ledger.RewardVault, dst.ID, ledger.RewardMint, pending, bank.LedgerAuthority()); err != nil {
		return 0, err
	}
	e.emit(events.StakeRewardPaid{Owner: pos.Owner, Amount: pending, AccRewardPerShare: ledger.Acc()})
	return pending, nil
}

// commit recomputes the reward debt for the new stake and persists both
// records.
func (e *Engine) commit(ledger *types.GlobalLedger, pos *types.Position, paid uint64) (*Settlement, error) {
	acc := ledger.Acc()
	debt, err := RewardDebt(pos.Staked, acc)
	if err != nil {
		return nil, err
	}
	pos.RewardDebt = debt
	if err := e.state.PositionPut(pos); err != nil {
		return nil, err
	}
	if err := e.state.LedgerPut(ledger); err != nil {
		return nil, err
	}
	return &Settlement{
		Paid:              paid,
		Staked:            pos.Staked,
		TotalStaked:       ledger.TotalStaked,
		RewardDebt:        new(uint256.Int).Set(debt),
		AccRewardPerShare: acc,
	}, nil
}
