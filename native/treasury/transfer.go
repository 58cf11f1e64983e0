package treasury

import (
	"fmt"

	ledgererrors "excelsior/core/errors"
	"excelsior/core/events"
	"excelsior/core/types"
	"excelsior/crypto"
	"excelsior/native/bank"
	"excelsior/native/common"
)

var (
	ErrUnknownVault = fmt.Errorf("treasury: vault cannot be funded: %w", ledgererrors.ErrInvalidArgument)
	ErrZeroFunding  = fmt.Errorf("treasury: funding amount must be positive: %w", ledgererrors.ErrInvalidArgument)
)

// TransferReceipt reports how a transfer was settled.
type TransferReceipt struct {
	Amount   uint64
	Fee      uint64
	Received uint64
}

// Transfer moves amount of symbol from the sender's associated account to the
// recipient's. Reward mint transfers withhold FeeBps of the amount in the fee
// vault; every other transfer, and any transfer made before the ledger holds a
// fee vault, moves in full.
func (e *Engine) Transfer(sender, recipient crypto.Address, symbol string, amount uint64) (*TransferReceipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	mint, err := e.tokens.Mint(symbol)
	if err != nil {
		return nil, err
	}
	dst, err := e.tokens.EnsureAssociated(recipient, mint.Symbol)
	if err != nil {
		return nil, err
	}
	src := bank.AssociatedAccount(sender, mint.Symbol)
	signer := bank.Signer(sender)

	fee, feeVault, err := e.transferFee(mint.Symbol, amount)
	if err != nil {
		return nil, err
	}
	if sender == recipient {
		fee = 0
	}
	receipt := &TransferReceipt{Amount: amount, Fee: fee, Received: amount - fee}
	if fee == 0 {
		if err := e.tokens.Transfer(src, dst.ID, mint.Symbol, amount, signer); err != nil {
			return nil, err
		}
		return receipt, nil
	}

	// The full amount must be present before either leg moves.
	from, err := e.tokens.Account(src)
	if err != nil {
		return nil, err
	}
	if from.Balance < amount {
		return nil, fmt.Errorf("%w: have %d, need %d", bank.ErrInsufficientFunds, from.Balance, amount)
	}
	if err := e.tokens.Transfer(src, dst.ID, mint.Symbol, receipt.Received, signer); err != nil {
		return nil, err
	}
	if err := e.tokens.Transfer(src, feeVault, mint.Symbol, fee, signer); err != nil {
		return nil, err
	}
	e.emit(events.FeeWithheld{Mint: mint.Symbol, From: sender, To: recipient, Amount: amount, Fee: fee})
	return receipt, nil
}

// transferFee returns the hold-back for amount of symbol and the vault that
// receives it. Only the reward mint of a current-layout ledger is charged.
func (e *Engine) transferFee(symbol string, amount uint64) (uint64, crypto.Address, error) {
	ledger, ok, err := e.state.LedgerGet()
	if err != nil || !ok {
		return 0, crypto.Address{}, err
	}
	if ledger.Version < types.LedgerLayoutVersion || ledger.FeeVault.IsZero() || ledger.FeeBps == 0 || symbol != ledger.RewardMint {
		return 0, crypto.Address{}, nil
	}
	fee, err := common.ApplyBps(amount, uint32(ledger.FeeBps))
	if err != nil {
		return 0, crypto.Address{}, err
	}
	return fee, ledger.FeeVault, nil
}

// FundVault moves amount from the admin's associated account into a named
// protocol vault. Only the reserve, reward and supply vaults accept funding:
// the stake vault mirrors staked principal and the fee vault is filled by
// transfers alone.
func (e *Engine) FundVault(admin crypto.Address, name string, amount uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	ledger, err := common.LoadLedger(e.state)
	if err != nil {
		return 0, err
	}
	if err := common.RequireAdmin(ledger, admin); err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, ErrZeroFunding
	}
	var vault crypto.Address
	var symbol string
	switch name {
	case VaultReserve:
		vault, symbol = ledger.ReserveVault, ledger.RewardMint
	case VaultReward:
		vault, symbol = ledger.RewardVault, ledger.RewardMint
	case VaultSupply:
		vault, symbol = ledger.SupplyVault, ledger.StakeMint
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownVault, name)
	}
	src, err := e.tokens.EnsureAssociated(admin, symbol)
	if err != nil {
		return 0, err
	}
	if err := e.tokens.Transfer(src.ID, vault, symbol, amount, bank.Signer(admin)); err != nil {
		return 0, err
	}
	acct, err := e.tokens.Account(vault)
	if err != nil {
		return 0, err
	}
	e.emit(events.VaultFunded{Vault: name, Account: vault, Mint: symbol, Amount: amount, Balance: acct.Balance})
	return acct.Balance, nil
}
