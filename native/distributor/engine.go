package distributor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	ledgererrors "excelsior/core/errors"
	"excelsior/core/events"
	"excelsior/core/types"
	"excelsior/crypto"
	"excelsior/crypto/merkle"
	"excelsior/native/bank"
	"excelsior/native/common"
)

var (
	errNilState  = errors.New("distributor: state not configured")
	errNilTokens = errors.New("distributor: token program not configured")

	ErrDistributorExists   = fmt.Errorf("distributor: round already seeded: %w", ledgererrors.ErrAlreadyExists)
	ErrDistributorNotFound = fmt.Errorf("distributor: round not found: %w", ledgererrors.ErrNotFound)
	ErrInvalidProof        = fmt.Errorf("distributor: proof does not match root: %w", ledgererrors.ErrInvalidProof)
	ErrEmptyRoot           = fmt.Errorf("distributor: root required: %w", ledgererrors.ErrInvalidArgument)
)

type engineState interface {
	common.LedgerState
	DistributorGet(round uint64) (*types.Distributor, bool, error)
	DistributorPut(d *types.Distributor) error
	ClaimRecordGet(round, index uint64) (*types.ClaimRecord, bool, error)
	ClaimRecordCreate(rec *types.ClaimRecord) error
}

type tokenProgram interface {
	EnsureAssociated(owner crypto.Address, symbol string) (*types.TokenAccount, error)
	Transfer(from, to crypto.Address, symbol string, amount uint64, authority bank.Authority) error
}

// LeafHash returns keccak256(index u64 LE || recipient || amount u64 LE), the
// leaf committed to by a distribution root.
func LeafHash(index uint64, recipient crypto.Address, amount uint64) merkle.Hash {
	var buf [8 + crypto.AddressLength + 8]byte
	binary.LittleEndian.PutUint64(buf[:8], index)
	copy(buf[8:8+crypto.AddressLength], recipient[:])
	binary.LittleEndian.PutUint64(buf[8+crypto.AddressLength:], amount)
	return crypto.Keccak256(buf[:])
}

// Engine seeds Merkle distribution rounds and pays verified claims out of
// each round's vault.
type Engine struct {
	state   engineState
	tokens  tokenProgram
	emitter events.Emitter
	now     func() time.Time
}

// NewEngine constructs a distributor engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}, now: time.Now}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokens configures the token program used for payouts.
func (e *Engine) SetTokens(tokens tokenProgram) { e.tokens = tokens }

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

// Seed creates a distribution round with the supplied root. The round's vault
// is the associated account of the round's derived authority and must be
// funded separately. A round can be seeded once.
func (e *Engine) Seed(admin crypto.Address, round uint64, root merkle.Hash, mint string) (*types.Distributor, error) {
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
	if root == (merkle.Hash{}) {
		return nil, ErrEmptyRoot
	}
	_, exists, err := e.state.DistributorGet(round)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: round %d", ErrDistributorExists, round)
	}
	if mint == "" {
		mint = ledger.RewardMint
	}
	vault, err := e.tokens.EnsureAssociated(bank.DistributorAuthority(round).Address(), mint)
	if err != nil {
		return nil, err
	}
	d := &types.Distributor{
		Version:   types.DistributorLayoutVersion,
		Round:     round,
		Root:      root,
		Mint:      vault.Mint,
		Vault:     vault.ID,
		CreatedAt: e.now().UTC().Unix(),
	}
	if err := e.state.DistributorPut(d); err != nil {
		return nil, err
	}
	e.emit(events.DistributorSeeded{Round: round, Root: root, Mint: d.Mint, Vault: d.Vault})
	return d, nil
}

// Distributor returns the distribution round.
func (e *Engine) Distributor(round uint64) (*types.Distributor, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	d, ok, err := e.state.DistributorGet(round)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: round %d", ErrDistributorNotFound, round)
	}
	return d, nil
}

// ClaimStatus returns the claim record for (round, index), or nil when the
// index has not been claimed.
func (e *Engine) ClaimStatus(round, index uint64) (*types.ClaimRecord, error) {
	if _, err := e.Distributor(round); err != nil {
		return nil, err
	}
	rec, ok, err := e.state.ClaimRecordGet(round, index)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return rec, nil
}

// Claim verifies that (index, recipient, amount) is committed to by the
// round's root and pays amount to the recipient's associated account. The
// claim record written here is the replay guard: a second claim for the same
// index fails with ErrAlreadyClaimed.
func (e *Engine) Claim(round, index uint64, recipient crypto.Address, amount uint64, proof []merkle.Hash) (*types.ClaimRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if recipient.IsZero() {
		return nil, fmt.Errorf("distributor: recipient required: %w", ledgererrors.ErrInvalidArgument)
	}
	d, err := e.Distributor(round)
	if err != nil {
		return nil, err
	}
	if !merkle.Verify(proof, d.Root, LeafHash(index, recipient, amount)) {
		return nil, ErrInvalidProof
	}
	rec := &types.ClaimRecord{
		Round:     round,
		Index:     index,
		Claimed:   true,
		Amount:    amount,
		Claimant:  recipient,
		ClaimedAt: e.now().UTC().Unix(),
	}
	if err := e.state.ClaimRecordCreate(rec); err != nil {
		return nil, err
	}
	if d.TotalClaimed, err = common.AddUint64(d.TotalClaimed, amount); err != nil {
		return nil, err
	}
	if err := e.state.DistributorPut(d); err != nil {
		return nil, err
	}
	dst, err := e.tokens.EnsureAssociated(recipient, d.Mint)
	if err != nil {
		return nil, err
	}
	if err := e.tokens.Transfer(d.Vault, dst.ID, d.Mint, amount, bank.DistributorAuthority(round)); err != nil {
		return nil, err
	}
	e.emit(events.DistributorClaimed{
		Round:        round,
		Index:        index,
		Recipient:    recipient,
		Amount:       amount,
		TotalClaimed: d.TotalClaimed,
	})
	return rec, nil
}
