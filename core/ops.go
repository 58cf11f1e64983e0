package core

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"excelsior/core/types"
	"excelsior/crypto"
	"excelsior/crypto/merkle"
	"excelsior/native/bank"
	"excelsior/native/staking"
	"excelsior/native/swap"
	"excelsior/native/treasury"
)

func callerAttr(addr crypto.Address) attribute.KeyValue {
	return attribute.String("ledger.caller", addr.String())
}

func amountAttr(amount uint64) attribute.KeyValue {
	return attribute.Int64("ledger.amount", int64(amount))
}

// Initialize creates the global ledger with admin as administrator.
func (n *Node) Initialize(ctx context.Context, admin crypto.Address, p treasury.InitParams) (*types.GlobalLedger, error) {
	var out *types.GlobalLedger
	err := n.update(ctx, "initialize", []attribute.KeyValue{callerAttr(admin)}, func(u *unit) error {
		ledger, err := u.treasury.Initialize(admin, p)
		out = ledger
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpgradeConfig migrates the ledger to the current layout and optionally
// replaces vault references.
func (n *Node) UpgradeConfig(ctx context.Context, admin crypto.Address, v treasury.Vaults) (*types.GlobalLedger, error) {
	var out *types.GlobalLedger
	err := n.update(ctx, "upgrade_config", []attribute.KeyValue{callerAttr(admin)}, func(u *unit) error {
		ledger, err := u.treasury.UpgradeConfig(admin, v)
		out = ledger
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetFee updates the transfer fee stored on the ledger.
func (n *Node) SetFee(ctx context.Context, admin crypto.Address, bps uint16) error {
	attrs := []attribute.KeyValue{callerAttr(admin), attribute.Int("ledger.fee_bps", int(bps))}
	return n.update(ctx, "set_fee", attrs, func(u *unit) error {
		return u.treasury.SetFee(admin, bps)
	})
}

// OpenPosition creates owner's staking position.
func (n *Node) OpenPosition(ctx context.Context, owner crypto.Address) (*types.Position, error) {
	var out *types.Position
	err := n.update(ctx, "open_position", []attribute.KeyValue{callerAttr(owner)}, func(u *unit) error {
		pos, err := u.staking.OpenPosition(owner)
		out = pos
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stake settles owner's pending reward and locks amount more stake tokens.
func (n *Node) Stake(ctx context.Context, owner crypto.Address, amount uint64) (*staking.Settlement, error) {
	return n.settle(ctx, "stake", owner, amount, func(u *unit) (*staking.Settlement, error) {
		return u.staking.Stake(owner, amount)
	})
}

// Unstake settles owner's pending reward and releases amount stake tokens.
func (n *Node) Unstake(ctx context.Context, owner crypto.Address, amount uint64) (*staking.Settlement, error) {
	return n.settle(ctx, "unstake", owner, amount, func(u *unit) (*staking.Settlement, error) {
		return u.staking.Unstake(owner, amount)
	})
}

// Harvest pays owner's pending reward without changing the stake.
func (n *Node) Harvest(ctx context.Context, owner crypto.Address) (*staking.Settlement, error) {
	return n.settle(ctx, "harvest", owner, 0, func(u *unit) (*staking.Settlement, error) {
		return u.staking.Harvest(owner)
	})
}

func (n *Node) settle(ctx context.Context, op string, owner crypto.Address, amount uint64, fn func(*unit) (*staking.Settlement, error)) (*staking.Settlement, error) {
	var out *staking.Settlement
	err := n.update(ctx, op, []attribute.KeyValue{callerAttr(owner), amountAttr(amount)}, func(u *unit) error {
		settlement, err := fn(u)
		out = settlement
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DistributeIncome splits amount between the reserve and stakers.
func (n *Node) DistributeIncome(ctx context.Context, admin crypto.Address, amount uint64) (*treasury.IncomeResult, error) {
	var out *treasury.IncomeResult
	err := n.update(ctx, "distribute_income", []attribute.KeyValue{callerAttr(admin), amountAttr(amount)}, func(u *unit) error {
		res, err := u.treasury.DistributeIncome(admin, amount)
		out = res
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HarvestFees sweeps the fee vault to the founder and the reserve.
func (n *Node) HarvestFees(ctx context.Context, admin crypto.Address) (*treasury.FeeHarvest, error) {
	var out *treasury.FeeHarvest
	err := n.update(ctx, "harvest_fees", []attribute.KeyValue{callerAttr(admin)}, func(u *unit) error {
		res, err := u.treasury.HarvestFees(admin)
		out = res
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FundVault moves amount from the admin's associated account into the named
// protocol vault and returns the vault balance.
func (n *Node) FundVault(ctx context.Context, admin crypto.Address, vault string, amount uint64) (uint64, error) {
	attrs := []attribute.KeyValue{callerAttr(admin), amountAttr(amount), attribute.String("treasury.vault", vault)}
	var balance uint64
	err := n.update(ctx, "fund_vault", attrs, func(u *unit) error {
		var err error
		balance, err = u.treasury.FundVault(admin, vault, amount)
		return err
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// TriggerScheduledMint mints the periodic inflation into the reserve once the
// interval has elapsed.
func (n *Node) TriggerScheduledMint(ctx context.Context, admin crypto.Address) (*treasury.InflationResult, error) {
	var out *treasury.InflationResult
	err := n.update(ctx, "trigger_scheduled_mint", []attribute.KeyValue{callerAttr(admin)}, func(u *unit) error {
		res, err := u.treasury.TriggerScheduledMint(admin)
		out = res
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SeedDistributor creates distribution round with root. An empty mint
// defaults to the ledger's reward mint.
func (n *Node) SeedDistributor(ctx context.Context, admin crypto.Address, round uint64, root merkle.Hash, mint string) (*types.Distributor, error) {
	attrs := []attribute.KeyValue{callerAttr(admin), attribute.Int64("distributor.round", int64(round))}
	var out *types.Distributor
	err := n.update(ctx, "seed_distributor", attrs, func(u *unit) error {
		d, err := u.distributor.Seed(admin, round, root, mint)
		out = d
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Claim pays a proven distribution leaf to its recipient.
func (n *Node) Claim(ctx context.Context, round, index uint64, recipient crypto.Address, amount uint64, proof []merkle.Hash) (*types.ClaimRecord, error) {
	attrs := []attribute.KeyValue{
		callerAttr(recipient),
		amountAttr(amount),
		attribute.Int64("distributor.round", int64(round)),
		attribute.Int64("distributor.index", int64(index)),
	}
	var out *types.ClaimRecord
	err := n.update(ctx, "claim", attrs, func(u *unit) error {
		rec, err := u.distributor.Claim(round, index, recipient, amount, proof)
		out = rec
		return err
	})
	if err != nil {
		return nil, err
	}
	n.metrics.AddClaimed(out.Amount)
	return out, nil
}

// Buy exchanges reward tokens for amount stake tokens.
func (n *Node) Buy(ctx context.Context, buyer crypto.Address, amount uint64) (*swap.Quote, error) {
	var out *swap.Quote
	err := n.update(ctx, "buy", []attribute.KeyValue{callerAttr(buyer), amountAttr(amount)}, func(u *unit) error {
		q, err := u.swap.Buy(buyer, amount)
		out = q
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Redeem burns amount stake tokens for reward tokens from the reserve.
func (n *Node) Redeem(ctx context.Context, holder crypto.Address, amount uint64) (*swap.Quote, error) {
	var out *swap.Quote
	err := n.update(ctx, "redeem", []attribute.KeyValue{callerAttr(holder), amountAttr(amount)}, func(u *unit) error {
		q, err := u.swap.Redeem(holder, amount)
		out = q
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateMint registers a token with caller as its mint authority.
func (n *Node) CreateMint(ctx context.Context, caller crypto.Address, symbol string, decimals uint8) (*types.Mint, error) {
	attrs := []attribute.KeyValue{callerAttr(caller), attribute.String("token.mint", symbol)}
	var out *types.Mint
	err := n.update(ctx, "create_mint", attrs, func(u *unit) error {
		mint, err := u.bank.CreateMint(symbol, decimals, bank.Signer(caller))
		out = mint
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OpenTokenAccount ensures owner's associated account for symbol exists.
func (n *Node) OpenTokenAccount(ctx context.Context, owner crypto.Address, symbol string) (*types.TokenAccount, error) {
	attrs := []attribute.KeyValue{callerAttr(owner), attribute.String("token.mint", symbol)}
	var out *types.TokenAccount
	err := n.update(ctx, "open_token_account", attrs, func(u *unit) error {
		acct, err := u.bank.EnsureAssociated(owner, symbol)
		out = acct
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MintTo issues amount of symbol into to's associated account. The caller
// must be the mint authority.
func (n *Node) MintTo(ctx context.Context, caller, to crypto.Address, symbol string, amount uint64) error {
	attrs := []attribute.KeyValue{callerAttr(caller), amountAttr(amount), attribute.String("token.mint", symbol)}
	return n.update(ctx, "mint_to", attrs, func(u *unit) error {
		dst, err := u.bank.EnsureAssociated(to, symbol)
		if err != nil {
			return err
		}
		return u.bank.MintTo(symbol, dst.ID, amount, bank.Signer(caller))
	})
}

// Transfer moves amount of symbol between the associated accounts of caller
// and to. Reward mint transfers withhold the ledger fee in the fee vault.
func (n *Node) Transfer(ctx context.Context, caller, to crypto.Address, symbol string, amount uint64) (*treasury.TransferReceipt, error) {
	attrs := []attribute.KeyValue{callerAttr(caller), amountAttr(amount), attribute.String("token.mint", symbol)}
	var out *treasury.TransferReceipt
	err := n.update(ctx, "transfer", attrs, func(u *unit) error {
		res, err := u.treasury.Transfer(caller, to, symbol, amount)
		out = res
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
