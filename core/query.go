package core

import (
	"context"
	"errors"

	ledgererrors "excelsior/core/errors"
	"excelsior/core/types"
	"excelsior/crypto"
	"excelsior/native/bank"
)

// Ledger returns the global ledger record in whatever layout it is stored.
func (n *Node) Ledger(ctx context.Context) (*types.GlobalLedger, error) {
	var out *types.GlobalLedger
	err := n.view(ctx, func(u *unit) error {
		ledger, ok, err := u.state.LedgerGet()
		if err != nil {
			return err
		}
		if !ok {
			return ledgererrors.ErrNotInitialized
		}
		out = ledger
		return nil
	})
	return out, err
}

// Position returns owner's staking position.
func (n *Node) Position(ctx context.Context, owner crypto.Address) (*types.Position, error) {
	var out *types.Position
	err := n.view(ctx, func(u *unit) error {
		pos, err := u.staking.Position(owner)
		out = pos
		return err
	})
	return out, err
}

// PendingReward returns what owner's next settlement would pay.
func (n *Node) PendingReward(ctx context.Context, owner crypto.Address) (uint64, error) {
	var out uint64
	err := n.view(ctx, func(u *unit) error {
		pending, err := u.staking.PendingReward(owner)
		out = pending
		return err
	})
	return out, err
}

// Distributor returns distribution round.
func (n *Node) Distributor(ctx context.Context, round uint64) (*types.Distributor, error) {
	var out *types.Distributor
	err := n.view(ctx, func(u *unit) error {
		d, err := u.distributor.Distributor(round)
		out = d
		return err
	})
	return out, err
}

// ClaimStatus returns the claim record of (round, index), or nil when the
// index is unclaimed.
func (n *Node) ClaimStatus(ctx context.Context, round, index uint64) (*types.ClaimRecord, error) {
	var out *types.ClaimRecord
	err := n.view(ctx, func(u *unit) error {
		rec, err := u.distributor.ClaimStatus(round, index)
		out = rec
		return err
	})
	return out, err
}

// Balance returns the balance of owner's associated account for symbol. A
// missing account holds nothing.
func (n *Node) Balance(ctx context.Context, owner crypto.Address, symbol string) (uint64, error) {
	var out uint64
	err := n.view(ctx, func(u *unit) error {
		acct, err := u.bank.Account(bank.AssociatedAccount(owner, symbol))
		if errors.Is(err, bank.ErrAccountNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out = acct.Balance
		return nil
	})
	return out, err
}

// AccountBalance returns the balance of token account id, such as a vault.
func (n *Node) AccountBalance(ctx context.Context, id crypto.Address) (uint64, error) {
	var out uint64
	err := n.view(ctx, func(u *unit) error {
		acct, err := u.bank.Account(id)
		if err != nil {
			return err
		}
		out = acct.Balance
		return nil
	})
	return out, err
}

// Mint returns the mint registered under symbol.
func (n *Node) Mint(ctx context.Context, symbol string) (*types.Mint, error) {
	var out *types.Mint
	err := n.view(ctx, func(u *unit) error {
		mint, err := u.bank.Mint(symbol)
		out = mint
		return err
	})
	return out, err
}
