package bank

import (
	"errors"
	"fmt"
	"math"
	"strings"

	ledgererrors "excelsior/core/errors"
	"excelsior/core/events"
	"excelsior/core/types"
	"excelsior/crypto"
)

var (
	errNilState = errors.New("bank: state not configured")

	ErrAccountNotFound   = fmt.Errorf("bank: token account not found: %w", ledgererrors.ErrNotFound)
	ErrMintNotFound      = fmt.Errorf("bank: mint not found: %w", ledgererrors.ErrNotFound)
	ErrAccountExists     = fmt.Errorf("bank: token account exists: %w", ledgererrors.ErrAlreadyExists)
	ErrMintExists        = fmt.Errorf("bank: mint exists: %w", ledgererrors.ErrAlreadyExists)
	ErrMintMismatch      = fmt.Errorf("bank: account holds a different mint: %w", ledgererrors.ErrInvalidArgument)
	ErrInvalidSymbol     = fmt.Errorf("bank: invalid mint symbol: %w", ledgererrors.ErrInvalidArgument)
	ErrInsufficientFunds = fmt.Errorf("bank: balance too low: %w", ledgererrors.ErrInsufficientFunds)
	ErrUnauthorized      = fmt.Errorf("bank: authority mismatch: %w", ledgererrors.ErrUnauthorized)
	ErrOverflow          = fmt.Errorf("bank: amount overflow: %w", ledgererrors.ErrArithmeticOverflow)
)

const maxSymbolLength = 12

type programState interface {
	MintGet(symbol string) (*types.Mint, bool, error)
	MintPut(mint *types.Mint) error
	TokenAccountGet(id crypto.Address) (*types.TokenAccount, bool, error)
	TokenAccountPut(acct *types.TokenAccount) error
}

// Program moves, mints and burns tokens between accounts held in the ledger
// store. Every call runs inside the caller's atomic unit.
type Program struct {
	state   programState
	emitter events.Emitter
}

// NewProgram constructs a token program with default dependencies.
func NewProgram() *Program {
	return &Program{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the program.
func (p *Program) SetState(state programState) { p.state = state }

// SetEmitter configures the event emitter used by the program.
func (p *Program) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		p.emitter = events.NoopEmitter{}
		return
	}
	p.emitter = emitter
}

func (p *Program) emit(evt events.Event) {
	if p == nil || p.emitter == nil || evt == nil {
		return
	}
	p.emitter.Emit(evt)
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func validSymbol(symbol string) bool {
	if symbol == "" || len(symbol) > maxSymbolLength {
		return false
	}
	for _, r := range symbol {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// CreateMint registers a new mint whose issuance is controlled by authority.
func (p *Program) CreateMint(symbol string, decimals uint8, authority Authority) (*types.Mint, error) {
	if p.state == nil {
		return nil, errNilState
	}
	symbol = normalizeSymbol(symbol)
	if !validSymbol(symbol) {
		return nil, ErrInvalidSymbol
	}
	if authority.IsZero() {
		return nil, ErrUnauthorized
	}
	_, exists, err := p.state.MintGet(symbol)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrMintExists
	}
	mint := &types.Mint{Symbol: symbol, Decimals: decimals, Authority: authority.Address()}
	if err := p.state.MintPut(mint); err != nil {
		return nil, err
	}
	return mint, nil
}

// Mint loads mint metadata.
func (p *Program) Mint(symbol string) (*types.Mint, error) {
	if p.state == nil {
		return nil, errNilState
	}
	mint, ok, err := p.state.MintGet(normalizeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMintNotFound, symbol)
	}
	return mint, nil
}

// OpenAccount creates the token account id for owner. The mint must exist.
func (p *Program) OpenAccount(id, owner crypto.Address, symbol string) (*types.TokenAccount, error) {
	if p.state == nil {
		return nil, errNilState
	}
	mint, err := p.Mint(symbol)
	if err != nil {
		return nil, err
	}
	_, exists, err := p.state.TokenAccountGet(id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAccountExists
	}
	acct := &types.TokenAccount{ID: id, Owner: owner, Mint: mint.Symbol}
	if err := p.state.TokenAccountPut(acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// EnsureAssociated returns the associated account of owner for symbol,
// creating it when missing.
func (p *Program) EnsureAssociated(owner crypto.Address, symbol string) (*types.TokenAccount, error) {
	if p.state == nil {
		return nil, errNilState
	}
	id := AssociatedAccount(owner, symbol)
	acct, ok, err := p.state.TokenAccountGet(id)
	if err != nil {
		return nil, err
	}
	if ok {
		return acct, nil
	}
	return p.OpenAccount(id, owner, symbol)
}

// Account loads a token account.
func (p *Program) Account(id crypto.Address) (*types.TokenAccount, error) {
	if p.state == nil {
		return nil, errNilState
	}
	acct, ok, err := p.state.TokenAccountGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return acct, nil
}

func (p *Program) accountFor(id crypto.Address, symbol string) (*types.TokenAccount, error) {
	acct, err := p.Account(id)
	if err != nil {
		return nil, err
	}
	if acct.Mint != normalizeSymbol(symbol) {
		return nil, fmt.Errorf("%w: %s holds %s", ErrMintMismatch, id, acct.Mint)
	}
	return acct, nil
}

// Transfer moves amount of symbol from one account to another. The authority
// must own the source account. A zero amount is a no-op.
func (p *Program) Transfer(from, to crypto.Address, symbol string, amount uint64, authority Authority) error {
	if p.state == nil {
		return errNilState
	}
	src, err := p.accountFor(from, symbol)
	if err != nil {
		return err
	}
	if src.Owner != authority.Address() {
		return ErrUnauthorized
	}
	dst, err := p.accountFor(to, symbol)
	if err != nil {
		return err
	}
	if amount == 0 || from == to {
		return nil
	}
	if src.Balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, src.Balance, amount)
	}
	if dst.Balance > math.MaxUint64-amount {
		return ErrOverflow
	}
	src.Balance -= amount
	dst.Balance += amount
	if err := p.state.TokenAccountPut(src); err != nil {
		return err
	}
	if err := p.state.TokenAccountPut(dst); err != nil {
		return err
	}
	p.emit(events.TokenTransfer{Mint: src.Mint, From: from, To: to, Amount: amount})
	return nil
}

// MintTo issues new supply into an account. The authority must be the mint
// authority.
func (p *Program) MintTo(symbol string, to crypto.Address, amount uint64, authority Authority) error {
	if p.state == nil {
		return errNilState
	}
	mint, err := p.Mint(symbol)
	if err != nil {
		return err
	}
	if mint.Authority != authority.Address() {
		return ErrUnauthorized
	}
	dst, err := p.accountFor(to, symbol)
	if err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	if mint.Supply > math.MaxUint64-amount || dst.Balance > math.MaxUint64-amount {
		return ErrOverflow
	}
	mint.Supply += amount
	dst.Balance += amount
	if err := p.state.MintPut(mint); err != nil {
		return err
	}
	if err := p.state.TokenAccountPut(dst); err != nil {
		return err
	}
	p.emit(events.TokenSupply{Mint: mint.Symbol, Account: to, Total: mint.Supply, Delta: amount, Reason: events.SupplyReasonMint})
	return nil
}

// Burn destroys amount from an account. The authority must own the account.
func (p *Program) Burn(symbol string, from crypto.Address, amount uint64, authority Authority) error {
	if p.state == nil {
		return errNilState
	}
	mint, err := p.Mint(symbol)
	if err != nil {
		return err
	}
	src, err := p.accountFor(from, symbol)
	if err != nil {
		return err
	}
	if src.Owner != authority.Address() {
		return ErrUnauthorized
	}
	if amount == 0 {
		return nil
	}
	if src.Balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, src.Balance, amount)
	}
	if mint.Supply < amount {
		return fmt.Errorf("bank: burn exceeds supply: %w", ledgererrors.ErrArithmeticUnderflow)
	}
	src.Balance -= amount
	mint.Supply -= amount
	if err := p.state.TokenAccountPut(src); err != nil {
		return err
	}
	if err := p.state.MintPut(mint); err != nil {
		return err
	}
	p.emit(events.TokenSupply{Mint: mint.Symbol, Account: from, Total: mint.Supply, Delta: amount, Reason: events.SupplyReasonBurn})
	return nil
}
