package swap

import (
	"errors"
	"fmt"

	ledgererrors "excelsior/core/errors"
	"excelsior/core/events"
	"excelsior/core/types"
	"excelsior/crypto"
	"excelsior/native/bank"
	"excelsior/native/common"
	"excelsior/native/params"
)

var (
	errNilState  = errors.New("swap: state not configured")
	errNilTokens = errors.New("swap: token program not configured")

	// ErrZeroAmount indicates a buy or redeem of nothing.
	ErrZeroAmount = fmt.Errorf("swap: amount must be positive: %w", ledgererrors.ErrInvalidArgument)
)

type engineState interface {
	common.LedgerState
}

type tokenProgram interface {
	EnsureAssociated(owner crypto.Address, symbol string) (*types.TokenAccount, error)
	Transfer(from, to crypto.Address, symbol string, amount uint64, authority bank.Authority) error
	Burn(symbol string, from crypto.Address, amount uint64, authority bank.Authority) error
}

// Quote reports the reward-token side of an exchange.
type Quote struct {
	Amount uint64
	Cost   uint64
	Burned uint64
	Payout uint64
}

// Engine exchanges stake tokens against reward tokens at the fixed ratios
// configured in the economics.
type Engine struct {
	state     engineState
	tokens    tokenProgram
	economics params.Economics
	emitter   events.Emitter
}

// NewEngine constructs a swap engine using the default economics.
func NewEngine() *Engine {
	return &Engine{economics: params.DefaultEconomics(), emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokens configures the token program used for settlement.
func (e *Engine) SetTokens(tokens tokenProgram) { e.tokens = tokens }

// SetEconomics replaces the exchange ratios.
func (e *Engine) SetEconomics(economics params.Economics) { e.economics = economics.Normalize() }

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

// QuoteBuy prices a purchase of amount stake tokens.
func (e *Engine) QuoteBuy(amount uint64) (*Quote, error) {
	cost, err := common.MulUint64(amount, e.economics.BuyPrice)
	if err != nil {
		return nil, err
	}
	burned, err := common.ApplyBps(cost, e.economics.BuyBurnBps)
	if err != nil {
		return nil, err
	}
	return &Quote{Amount: amount, Cost: cost, Burned: burned}, nil
}

// Buy sells amount stake tokens from the supply vault to buyer. The buyer pays
// amount*BuyPrice reward tokens; BuyBurnBps of that is burned and the rest
// goes to the reserve vault.
func (e *Engine) Buy(buyer crypto.Address, amount uint64) (*Quote, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrZeroAmount
	}
	ledger, err := common.LoadLedger(e.state)
	if err != nil {
		return nil, err
	}
	quote, err := e.QuoteBuy(amount)
	if err != nil {
		return nil, err
	}
	payer, err := e.tokens.EnsureAssociated(buyer, ledger.RewardMint)
	if err != nil {
		return nil, err
	}
	signer := bank.Signer(buyer)
	if err := e.tokens.Burn(ledger.RewardMint, payer.ID, quote.Burned, signer); err != nil {
		return nil, err
	}
	if err := e.tokens.Transfer(payer.ID, ledger.ReserveVault, ledger.RewardMint, quote.Cost-quote.Burned, signer); err != nil {
		return nil, err
	}
	dst, err := e.tokens.EnsureAssociated(buyer, ledger.StakeMint)
	if err != nil {
		return nil, err
	}
	if err := e.tokens.Transfer(ledger.SupplyVault, dst.ID, ledger.StakeMint, amount, bank.LedgerAuthority()); err != nil {
		return nil, err
	}
	if ledger.TotalBurned, err = common.AddUint64(ledger.TotalBurned, quote.Burned); err != nil {
		return nil, err
	}
	if err := e.state.LedgerPut(ledger); err != nil {
		return nil, err
	}
	e.emit(events.SwapBought{Buyer: buyer, Amount: amount, Cost: quote.Cost, Burned: quote.Burned})
	return quote, nil
}

// Redeem burns amount stake tokens held by holder and pays amount*RedeemRate
// reward tokens out of the reserve vault. The burn lowers the stake mint
// supply and is not added to the ledger's TotalBurned.
func (e *Engine) Redeem(holder crypto.Address, amount uint64) (*Quote, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrZeroAmount
	}
	ledger, err := common.LoadLedger(e.state)
	if err != nil {
		return nil, err
	}
	payout, err := common.MulUint64(amount, e.economics.RedeemRate)
	if err != nil {
		return nil, err
	}
	src, err := e.tokens.EnsureAssociated(holder, ledger.StakeMint)
	if err != nil {
		return nil, err
	}
	if err := e.tokens.Burn(ledger.StakeMint, src.ID, amount, bank.Signer(holder)); err != nil {
		return nil, err
	}
	dst, err := e.tokens.EnsureAssociated(holder, ledger.RewardMint)
	if err != nil {
		return nil, err
	}
	if err := e.tokens.Transfer(ledger.ReserveVault, dst.ID, ledger.RewardMint, payout, bank.LedgerAuthority()); err != nil {
		return nil, err
	}
	e.emit(events.SwapRedeemed{Holder: holder, Amount: amount, Payout: payout})
	return &Quote{Amount: amount, Payout: payout}, nil
}
