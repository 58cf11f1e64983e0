package treasury

import (
	"errors"
	"fmt"

	ledgererrors "excelsior/core/errors"
	"excelsior/core/events"
	"excelsior/core/types"
	"excelsior/crypto"
	"excelsior/native/bank"
	"excelsior/native/common"
)

const (
	DefaultStakeMint  = "XLS"
	DefaultRewardMint = "LXR"

	VaultReserve = "reserve"
	VaultReward  = "reward"
	VaultSupply  = "supply"
	VaultStake   = "stake"
	VaultFee     = "fee"
)

var (
	ErrLedgerExists  = fmt.Errorf("treasury: ledger already initialized: %w", ledgererrors.ErrAlreadyExists)
	ErrFeeTooHigh    = fmt.Errorf("treasury: fee exceeds cap: %w", ledgererrors.ErrInvalidArgument)
	ErrVaultMismatch = fmt.Errorf("treasury: vault not usable by the ledger: %w", ledgererrors.ErrInvalidArgument)
)

// InitParams configures a fresh ledger.
type InitParams struct {
	FeeBps        uint16
	FounderWallet crypto.Address
	StakeMint     string
	RewardMint    string
}

// Vaults lists replacement vault accounts for UpgradeConfig. Zero entries keep
// the current reference.
type Vaults struct {
	Reserve crypto.Address
	Reward  crypto.Address
	Supply  crypto.Address
}

// VaultID returns the token account id of a named protocol vault. Vault
// accounts are owned by the ledger authority.
func VaultID(name string) crypto.Address {
	return bank.DeriveAddress(bank.TagLedger, []byte("vault"), []byte(name))
}

// Initialize creates the global ledger with admin as its administrator and
// opens the protocol vaults. Both mints must already exist.
func (e *Engine) Initialize(admin crypto.Address, p InitParams) (*types.GlobalLedger, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if admin.IsZero() {
		return nil, fmt.Errorf("treasury: admin required: %w", ledgererrors.ErrInvalidArgument)
	}
	_, exists, err := e.state.LedgerGet()
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrLedgerExists
	}
	if p.FeeBps > e.economics.MaxFeeBps {
		return nil, fmt.Errorf("%w: %d > %d", ErrFeeTooHigh, p.FeeBps, e.economics.MaxFeeBps)
	}
	stakeMint, rewardMint := p.StakeMint, p.RewardMint
	if stakeMint == "" {
		stakeMint = DefaultStakeMint
	}
	if rewardMint == "" {
		rewardMint = DefaultRewardMint
	}
	stake, err := e.tokens.Mint(stakeMint)
	if err != nil {
		return nil, err
	}
	reward, err := e.tokens.Mint(rewardMint)
	if err != nil {
		return nil, err
	}
	founder := p.FounderWallet
	if founder.IsZero() {
		founder = admin
	}

	vaults := []struct{ name, symbol string }{
		{VaultReserve, reward.Symbol},
		{VaultReward, reward.Symbol},
		{VaultFee, reward.Symbol},
		{VaultSupply, stake.Symbol},
		{VaultStake, stake.Symbol},
	}
	authority := bank.LedgerAuthority().Address()
	for _, v := range vaults {
		if _, err := e.tokens.OpenAccount(VaultID(v.name), authority, v.symbol); err != nil {
			return nil, fmt.Errorf("treasury: open %s vault: %w", v.name, err)
		}
	}

	ledger := &types.GlobalLedger{
		Version:       types.LedgerLayoutVersion,
		Admin:         admin,
		FounderWallet: founder,
		StakeMint:     stake.Symbol,
		RewardMint:    reward.Symbol,
		ReserveVault:  VaultID(VaultReserve),
		RewardVault:   VaultID(VaultReward),
		SupplyVault:   VaultID(VaultSupply),
		StakeVault:    VaultID(VaultStake),
		FeeVault:      VaultID(VaultFee),
		FeeBps:        p.FeeBps,
		MaxFeeBps:     e.economics.MaxFeeBps,

		LastInflationTime: e.timestamp(),
	}
	if err := e.state.LedgerPut(ledger); err != nil {
		return nil, err
	}
	e.emit(events.LedgerInitialized{
		Admin:      admin,
		Authority:  authority,
		StakeMint:  ledger.StakeMint,
		RewardMint: ledger.RewardMint,
		FeeBps:     ledger.FeeBps,
	})
	return ledger.Clone(), nil
}

// UpgradeConfig replaces vault references, migrates the ledger to the current
// layout and restarts the inflation schedule. It is the only operation that
// accepts an outdated layout.
func (e *Engine) UpgradeConfig(admin crypto.Address, v Vaults) (*types.GlobalLedger, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ledger, ok, err := e.state.LedgerGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ledgererrors.ErrNotInitialized
	}
	if err := common.RequireAdmin(ledger, admin); err != nil {
		return nil, err
	}
	replacements := []struct {
		id     crypto.Address
		symbol string
		target *crypto.Address
	}{
		{v.Reserve, ledger.RewardMint, &ledger.ReserveVault},
		{v.Reward, ledger.RewardMint, &ledger.RewardVault},
		{v.Supply, ledger.StakeMint, &ledger.SupplyVault},
	}
	for _, r := range replacements {
		if r.id.IsZero() {
			continue
		}
		if err := e.checkVault(r.id, r.symbol); err != nil {
			return nil, err
		}
		*r.target = r.id
	}
	if ledger.FeeVault.IsZero() {
		feeVault := VaultID(VaultFee)
		if err := e.checkVault(feeVault, ledger.RewardMint); err != nil {
			if !errors.Is(err, bank.ErrAccountNotFound) {
				return nil, err
			}
			if _, err := e.tokens.OpenAccount(feeVault, bank.LedgerAuthority().Address(), ledger.RewardMint); err != nil {
				return nil, fmt.Errorf("treasury: open fee vault: %w", err)
			}
		}
		ledger.FeeVault = feeVault
	}
	ledger.Version = types.LedgerLayoutVersion
	if now := e.timestamp(); now > ledger.LastInflationTime {
		ledger.LastInflationTime = now
	}
	if err := e.state.LedgerPut(ledger); err != nil {
		return nil, err
	}
	e.emit(events.LedgerUpgraded{
		Version:      ledger.Version,
		ReserveVault: ledger.ReserveVault,
		RewardVault:  ledger.RewardVault,
		SupplyVault:  ledger.SupplyVault,
		Timestamp:    ledger.LastInflationTime,
	})
	return ledger.Clone(), nil
}

func (e *Engine) checkVault(id crypto.Address, symbol string) error {
	acct, err := e.tokens.Account(id)
	if err != nil {
		return err
	}
	if acct.Mint != symbol {
		return fmt.Errorf("%w: %s holds %s, want %s", ErrVaultMismatch, id, acct.Mint, symbol)
	}
	if acct.Owner != bank.LedgerAuthority().Address() {
		return fmt.Errorf("%w: %s is not owned by the ledger authority", ErrVaultMismatch, id)
	}
	return nil
}

// SetFee updates the transfer fee, bounded by the ledger's fee cap.
func (e *Engine) SetFee(admin crypto.Address, bps uint16) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	ledger, err := common.LoadLedger(e.state)
	if err != nil {
		return err
	}
	if err := common.RequireAdmin(ledger, admin); err != nil {
		return err
	}
	if bps > ledger.MaxFeeBps {
		return fmt.Errorf("%w: %d > %d", ErrFeeTooHigh, bps, ledger.MaxFeeBps)
	}
	previous := ledger.FeeBps
	ledger.FeeBps = bps
	if err := e.state.LedgerPut(ledger); err != nil {
		return err
	}
	e.emit(events.FeeUpdated{Previous: previous, Current: bps})
	return nil
}
