package events

import (
	"strconv"

	"github.com/holiman/uint256"

	"excelsior/core/types"
	"excelsior/crypto"
)

const (
	TypeLedgerInitialized = "treasury.ledger.initialized"
	TypeLedgerUpgraded    = "treasury.ledger.upgraded"
	TypeFeeUpdated        = "treasury.fee.updated"
	TypeIncomeDistributed = "treasury.income.distributed"
	TypeFeesHarvested     = "treasury.fees.harvested"
	TypeFeeWithheld       = "treasury.fee.withheld"
	TypeVaultFunded       = "treasury.vault.funded"
	TypeInflationMinted   = "treasury.inflation.minted"
	TypeSwapBought        = "swap.bought"
	TypeSwapRedeemed      = "swap.redeemed"

	// IncomeRoutingAccrued marks a reward share credited to stakers.
	IncomeRoutingAccrued = "accrued"
	// IncomeRoutingCarried marks a reward share held for the next distribution.
	IncomeRoutingCarried = "carried"
	// IncomeRoutingReserve marks a reward share diverted to the reserve vault.
	IncomeRoutingReserve = "reserve"
)

type LedgerInitialized struct {
	Admin      crypto.Address
	Authority  crypto.Address
	StakeMint  string
	RewardMint string
	FeeBps     uint16
}

func (LedgerInitialized) EventType() string { return TypeLedgerInitialized }

func (e LedgerInitialized) Event() *types.Event {
	return &types.Event{Type: TypeLedgerInitialized, Attributes: map[string]string{
		"admin":      formatAddress(e.Admin),
		"authority":  formatAddress(e.Authority),
		"stakeMint":  normalizeAsset(e.StakeMint),
		"rewardMint": normalizeAsset(e.RewardMint),
		"feeBps":     strconv.FormatUint(uint64(e.FeeBps), 10),
	}}
}

type LedgerUpgraded struct {
	Version      uint8
	ReserveVault crypto.Address
	RewardVault  crypto.Address
	SupplyVault  crypto.Address
	Timestamp    int64
}

func (LedgerUpgraded) EventType() string { return TypeLedgerUpgraded }

func (e LedgerUpgraded) Event() *types.Event {
	return &types.Event{Type: TypeLedgerUpgraded, Attributes: map[string]string{
		"version":      strconv.FormatUint(uint64(e.Version), 10),
		"reserveVault": formatAddress(e.ReserveVault),
		"rewardVault":  formatAddress(e.RewardVault),
		"supplyVault":  formatAddress(e.SupplyVault),
		"timestamp":    strconv.FormatInt(e.Timestamp, 10),
	}}
}

type FeeUpdated struct {
	Previous uint16
	Current  uint16
}

func (FeeUpdated) EventType() string { return TypeFeeUpdated }

func (e FeeUpdated) Event() *types.Event {
	return &types.Event{Type: TypeFeeUpdated, Attributes: map[string]string{
		"previousBps": strconv.FormatUint(uint64(e.Previous), 10),
		"feeBps":      strconv.FormatUint(uint64(e.Current), 10),
	}}
}

// IncomeDistributed records how a deposit was split and where the reward share
// went. Routing is one of the IncomeRouting constants.
type IncomeDistributed struct {
	Amount            uint64
	Reserve           uint64
	Reward            uint64
	Routing           string
	TotalStaked       uint64
	AccDelta          *uint256.Int
	AccRewardPerShare *uint256.Int
	Undistributed     uint64
}

func (IncomeDistributed) EventType() string { return TypeIncomeDistributed }

func (e IncomeDistributed) Event() *types.Event {
	return &types.Event{Type: TypeIncomeDistributed, Attributes: map[string]string{
		"amount":            formatAmount(e.Amount),
		"reserve":           formatAmount(e.Reserve),
		"reward":            formatAmount(e.Reward),
		"routing":           e.Routing,
		"totalStaked":       formatAmount(e.TotalStaked),
		"accDelta":          formatUint256(e.AccDelta),
		"accRewardPerShare": formatUint256(e.AccRewardPerShare),
		"undistributed":     formatAmount(e.Undistributed),
	}}
}

type FeesHarvested struct {
	Total   uint64
	Founder uint64
	Reserve uint64
}

func (FeesHarvested) EventType() string { return TypeFeesHarvested }

func (e FeesHarvested) Event() *types.Event {
	return &types.Event{Type: TypeFeesHarvested, Attributes: map[string]string{
		"total":   formatAmount(e.Total),
		"founder": formatAmount(e.Founder),
		"reserve": formatAmount(e.Reserve),
	}}
}

// FeeWithheld records the part of a reward mint transfer held back in the fee
// vault.
type FeeWithheld struct {
	Mint   string
	From   crypto.Address
	To     crypto.Address
	Amount uint64
	Fee    uint64
}

func (FeeWithheld) EventType() string { return TypeFeeWithheld }

func (e FeeWithheld) Event() *types.Event {
	return &types.Event{Type: TypeFeeWithheld, Attributes: map[string]string{
		"mint":   normalizeAsset(e.Mint),
		"from":   formatAddress(e.From),
		"to":     formatAddress(e.To),
		"amount": formatAmount(e.Amount),
		"fee":    formatAmount(e.Fee),
	}}
}

type VaultFunded struct {
	Vault   string
	Account crypto.Address
	Mint    string
	Amount  uint64
	Balance uint64
}

func (VaultFunded) EventType() string { return TypeVaultFunded }

func (e VaultFunded) Event() *types.Event {
	return &types.Event{Type: TypeVaultFunded, Attributes: map[string]string{
		"vault":   e.Vault,
		"account": formatAddress(e.Account),
		"mint":    normalizeAsset(e.Mint),
		"amount":  formatAmount(e.Amount),
		"balance": formatAmount(e.Balance),
	}}
}

type InflationMinted struct {
	Mint      string
	Amount    uint64
	Supply    uint64
	Timestamp int64
}

func (InflationMinted) EventType() string { return TypeInflationMinted }

func (e InflationMinted) Event() *types.Event {
	return &types.Event{Type: TypeInflationMinted, Attributes: map[string]string{
		"mint":      normalizeAsset(e.Mint),
		"amount":    formatAmount(e.Amount),
		"supply":    formatAmount(e.Supply),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}}
}

type SwapBought struct {
	Buyer  crypto.Address
	Amount uint64
	Cost   uint64
	Burned uint64
}

func (SwapBought) EventType() string { return TypeSwapBought }

func (e SwapBought) Event() *types.Event {
	return &types.Event{Type: TypeSwapBought, Attributes: map[string]string{
		"buyer":  formatAddress(e.Buyer),
		"amount": formatAmount(e.Amount),
		"cost":   formatAmount(e.Cost),
		"burned": formatAmount(e.Burned),
	}}
}

type SwapRedeemed struct {
	Holder crypto.Address
	Amount uint64
	Payout uint64
}

func (SwapRedeemed) EventType() string { return TypeSwapRedeemed }

func (e SwapRedeemed) Event() *types.Event {
	return &types.Event{Type: TypeSwapRedeemed, Attributes: map[string]string{
		"holder": formatAddress(e.Holder),
		"amount": formatAmount(e.Amount),
		"payout": formatAmount(e.Payout),
	}}
}
