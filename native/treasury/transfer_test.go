package treasury

import (
	"errors"
	"testing"

	ledgererrors "excelsior/core/errors"
	"excelsior/core/events"
	"excelsior/native/bank"
	"excelsior/native/params"
)

func TestTransferWithholdsRewardMintFee(t *testing.T) {
	f := newFixture(t, params.DefaultEconomics())
	alice, bob := addr(1), addr(2)
	if err := f.engine.SetFee(admin, 300); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	src, err := f.tokens.EnsureAssociated(alice, DefaultRewardMint)
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	if err := f.tokens.MintTo(DefaultRewardMint, src.ID, 1_000_000, bank.Signer(admin)); err != nil {
		t.Fatalf("fund alice: %v", err)
	}

	receipt, err := f.engine.Transfer(alice, bob, "lxr", 1_000_000)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if receipt.Fee != 30_000 || receipt.Received != 970_000 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if got := f.state.balance(bank.AssociatedAccount(bob, DefaultRewardMint)); got != 970_000 {
		t.Fatalf("bob balance = %d, want 970000", got)
	}
	if got := f.state.balance(f.state.ledger.FeeVault); got != 30_000 {
		t.Fatalf("fee vault = %d, want 30000", got)
	}
	var withheld bool
	for _, evt := range f.emitted.Events() {
		if fw, ok := evt.(events.FeeWithheld); ok && fw.Fee == 30_000 && fw.To == bob {
			withheld = true
		}
	}
	if !withheld {
		t.Fatalf("fee hold-back not emitted")
	}

	res, err := f.engine.HarvestFees(admin)
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if res.Total != 30_000 || res.Founder != 15_000 || res.Reserve != 15_000 {
		t.Fatalf("unexpected harvest %+v", res)
	}
}

func TestTransferChargesOnlyTheRewardMint(t *testing.T) {
	f := newFixture(t, params.DefaultEconomics())
	alice, bob := addr(1), addr(2)
	src, err := f.tokens.EnsureAssociated(alice, DefaultStakeMint)
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	if err := f.tokens.MintTo(DefaultStakeMint, src.ID, 500, bank.Signer(admin)); err != nil {
		t.Fatalf("fund alice: %v", err)
	}
	receipt, err := f.engine.Transfer(alice, bob, DefaultStakeMint, 500)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if receipt.Fee != 0 || f.state.balance(bank.AssociatedAccount(bob, DefaultStakeMint)) != 500 {
		t.Fatalf("stake mint transfer must move in full, got %+v", receipt)
	}
}

func TestTransferShortBalanceMovesNothing(t *testing.T) {
	f := newFixture(t, params.DefaultEconomics())
	alice, bob := addr(1), addr(2)
	src, err := f.tokens.EnsureAssociated(alice, DefaultRewardMint)
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	if err := f.tokens.MintTo(DefaultRewardMint, src.ID, 999, bank.Signer(admin)); err != nil {
		t.Fatalf("fund alice: %v", err)
	}
	if _, err := f.engine.Transfer(alice, bob, DefaultRewardMint, 1_000); !errors.Is(err, ledgererrors.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if f.state.balance(src.ID) != 999 || f.state.balance(f.state.ledger.FeeVault) != 0 {
		t.Fatalf("failed transfer moved funds")
	}
}

func TestFundVault(t *testing.T) {
	f := newFixture(t, params.DefaultEconomics())
	acct, err := f.tokens.EnsureAssociated(admin, DefaultStakeMint)
	if err != nil {
		t.Fatalf("open admin account: %v", err)
	}
	if err := f.tokens.MintTo(DefaultStakeMint, acct.ID, 10, bank.Signer(admin)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := f.engine.FundVault(addr(1), VaultSupply, 10); !errors.Is(err, ledgererrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	for _, name := range []string{VaultStake, VaultFee, "treasury"} {
		if _, err := f.engine.FundVault(admin, name, 1); !errors.Is(err, ErrUnknownVault) {
			t.Fatalf("vault %q: expected ErrUnknownVault, got %v", name, err)
		}
	}
	if _, err := f.engine.FundVault(admin, VaultSupply, 0); !errors.Is(err, ledgererrors.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	balance, err := f.engine.FundVault(admin, VaultSupply, 10)
	if err != nil {
		t.Fatalf("fund vault: %v", err)
	}
	if balance != 10 || f.state.balance(f.state.ledger.SupplyVault) != 10 || f.state.balance(acct.ID) != 0 {
		t.Fatalf("supply vault not funded, balance %d", balance)
	}
	if _, err := f.engine.FundVault(admin, VaultSupply, 1); !errors.Is(err, ledgererrors.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}
