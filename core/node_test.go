package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ledgererrors "excelsior/core/errors"
	"excelsior/core/events"
	"excelsior/core/state"
	"excelsior/core/types"
	"excelsior/crypto"
	"excelsior/crypto/merkle"
	"excelsior/native/bank"
	"excelsior/native/distributor"
	"excelsior/native/params"
	"excelsior/native/treasury"
	"excelsior/storage"
)

var genesis = time.Unix(1_700_000_000, 0).UTC()

func addr(last byte) crypto.Address {
	var a crypto.Address
	a[0] = 0x5A
	a[crypto.AddressLength-1] = last
	return a
}

var (
	admin = addr(0xAD)
	alice = addr(0xA1)
	bob   = addr(0xB0)
)

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Publish(_ context.Context, evts []events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evts...)
	return nil
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, evt := range s.events {
		out = append(out, evt.EventType())
	}
	return out
}

type harness struct {
	db    storage.Database
	node  *Node
	sink  *recordingSink
	clock time.Time
}

func newHarness(t *testing.T, economics params.Economics) *harness {
	t.Helper()
	h := &harness{db: storage.NewMemDB(), sink: &recordingSink{}, clock: genesis}
	t.Cleanup(func() { _ = h.db.Close() })

	node, err := NewNode(h.db,
		WithEconomics(economics),
		WithEventSink(h.sink),
		WithClock(func() time.Time { return h.clock }))
	require.NoError(t, err)
	h.node = node

	ctx := context.Background()
	_, err = node.CreateMint(ctx, admin, treasury.DefaultStakeMint, 6)
	require.NoError(t, err)
	_, err = node.CreateMint(ctx, admin, treasury.DefaultRewardMint, 6)
	require.NoError(t, err)
	_, err = node.Initialize(ctx, admin, treasury.InitParams{FeeBps: 100})
	require.NoError(t, err)
	return h
}

func (h *harness) fund(t *testing.T, owner crypto.Address, symbol string, amount uint64) {
	t.Helper()
	require.NoError(t, h.node.MintTo(context.Background(), admin, owner, symbol, amount))
}

func (h *harness) ledgerFounder(t *testing.T) crypto.Address {
	t.Helper()
	ledger, err := h.node.Ledger(context.Background())
	require.NoError(t, err)
	return ledger.FounderWallet
}

func (h *harness) balance(t *testing.T, owner crypto.Address, symbol string) uint64 {
	t.Helper()
	bal, err := h.node.Balance(context.Background(), owner, symbol)
	require.NoError(t, err)
	return bal
}

func TestIncomeScenarioCreditsStakersProRata(t *testing.T) {
	h := newHarness(t, params.DefaultEconomics())
	ctx := context.Background()

	h.fund(t, alice, "XLS", 10_000)
	h.fund(t, bob, "XLS", 990_000)
	for owner, amount := range map[crypto.Address]uint64{alice: 10_000, bob: 990_000} {
		_, err := h.node.OpenPosition(ctx, owner)
		require.NoError(t, err)
		_, err = h.node.Stake(ctx, owner, amount)
		require.NoError(t, err)
	}

	h.fund(t, admin, "LXR", 100_000)
	res, err := h.node.DistributeIncome(ctx, admin, 100_000)
	require.NoError(t, err)
	require.Equal(t, uint64(60_000), res.Reserve)
	require.Equal(t, uint64(40_000), res.Reward)
	require.Equal(t, uint64(40_000_000_000), res.AccDelta.Uint64())

	pending, err := h.node.PendingReward(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(400), pending)

	settlement, err := h.node.Harvest(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(400), settlement.Paid)
	require.Equal(t, uint64(400), h.balance(t, alice, "LXR"))

	pending, err = h.node.PendingReward(ctx, alice)
	require.NoError(t, err)
	require.Zero(t, pending)

	ledger, err := h.node.Ledger(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), ledger.TotalStaked)
	reserve, err := h.node.AccountBalance(ctx, ledger.ReserveVault)
	require.NoError(t, err)
	require.Equal(t, uint64(60_000), reserve)
	reward, err := h.node.AccountBalance(ctx, ledger.RewardVault)
	require.NoError(t, err)
	require.Equal(t, uint64(39_600), reward)

	require.Contains(t, h.sink.types(), events.TypeIncomeDistributed)
	require.Contains(t, h.sink.types(), events.TypeStakeRewardPaid)
}

func TestStakeConservationAcrossOperations(t *testing.T) {
	h := newHarness(t, params.DefaultEconomics())
	ctx := context.Background()

	h.fund(t, alice, "XLS", 500)
	h.fund(t, bob, "XLS", 300)
	for _, owner := range []crypto.Address{alice, bob} {
		_, err := h.node.OpenPosition(ctx, owner)
		require.NoError(t, err)
	}
	_, err := h.node.Stake(ctx, alice, 500)
	require.NoError(t, err)
	_, err = h.node.Stake(ctx, bob, 300)
	require.NoError(t, err)
	_, err = h.node.Unstake(ctx, alice, 200)
	require.NoError(t, err)

	_, err = h.node.Unstake(ctx, bob, 301)
	require.ErrorIs(t, err, ledgererrors.ErrInsufficientFunds)

	ledger, err := h.node.Ledger(ctx)
	require.NoError(t, err)
	var sum uint64
	for _, owner := range []crypto.Address{alice, bob} {
		pos, err := h.node.Position(ctx, owner)
		require.NoError(t, err)
		sum += pos.Staked
	}
	require.Equal(t, ledger.TotalStaked, sum)
	require.Equal(t, uint64(600), sum)
	require.Equal(t, uint64(200), h.balance(t, alice, "XLS"))
	require.Zero(t, h.balance(t, bob, "XLS"))
}

func buildRound(t *testing.T, allocations []uint64, recipients []crypto.Address) (*merkle.Tree, uint64) {
	t.Helper()
	leaves := make([]merkle.Hash, len(allocations))
	var total uint64
	for i, amount := range allocations {
		leaves[i] = distributor.LeafHash(uint64(i), recipients[i], amount)
		total += amount
	}
	tree, err := merkle.NewTree(leaves)
	require.NoError(t, err)
	return tree, total
}

func TestConcurrentClaimsHaveSingleWinner(t *testing.T) {
	h := newHarness(t, params.DefaultEconomics())
	ctx := context.Background()

	recipients := []crypto.Address{alice, bob, addr(3)}
	tree, total := buildRound(t, []uint64{100, 250, 75}, recipients)
	_, err := h.node.SeedDistributor(ctx, admin, 1, tree.Root(), "")
	require.NoError(t, err)
	h.fund(t, bank.DistributorAuthority(1).Address(), "LXR", total)

	proof, err := tree.Proof(1)
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		replays   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.node.Claim(ctx, 1, 1, bob, 250, proof)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ledgererrors.ErrAlreadyClaimed):
				replays++
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, workers-1, replays)
	require.Equal(t, uint64(250), h.balance(t, bob, "LXR"))

	d, err := h.node.Distributor(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(250), d.TotalClaimed)

	rec, err := h.node.ClaimStatus(ctx, 1, 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, bob, rec.Claimant)

	rec, err = h.node.ClaimStatus(ctx, 1, 0)
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestUnderfundedClaimRollsBackReplayGuard(t *testing.T) {
	h := newHarness(t, params.DefaultEconomics())
	ctx := context.Background()

	tree, _ := buildRound(t, []uint64{500, 20}, []crypto.Address{alice, bob})
	_, err := h.node.SeedDistributor(ctx, admin, 7, tree.Root(), "")
	require.NoError(t, err)
	h.fund(t, bank.DistributorAuthority(7).Address(), "LXR", 100)

	proof, err := tree.Proof(0)
	require.NoError(t, err)
	_, err = h.node.Claim(ctx, 7, 0, alice, 500, proof)
	require.ErrorIs(t, err, ledgererrors.ErrInsufficientFunds)

	rec, err := h.node.ClaimStatus(ctx, 7, 0)
	require.NoError(t, err)
	require.Nil(t, rec)
	d, err := h.node.Distributor(ctx, 7)
	require.NoError(t, err)
	require.Zero(t, d.TotalClaimed)
	require.NotContains(t, h.sink.types(), events.TypeDistributorClaimed)

	h.fund(t, bank.DistributorAuthority(7).Address(), "LXR", 400)
	_, err = h.node.Claim(ctx, 7, 0, alice, 500, proof)
	require.NoError(t, err)
	require.Equal(t, uint64(500), h.balance(t, alice, "LXR"))
}

func TestClaimRejectsTamperedLeaf(t *testing.T) {
	h := newHarness(t, params.DefaultEconomics())
	ctx := context.Background()

	tree, total := buildRound(t, []uint64{10, 20, 30}, []crypto.Address{alice, bob, addr(3)})
	_, err := h.node.SeedDistributor(ctx, admin, 2, tree.Root(), "")
	require.NoError(t, err)
	h.fund(t, bank.DistributorAuthority(2).Address(), "LXR", total)

	proof, err := tree.Proof(2)
	require.NoError(t, err)
	_, err = h.node.Claim(ctx, 2, 2, addr(3), 31, proof)
	require.ErrorIs(t, err, ledgererrors.ErrInvalidProof)
	_, err = h.node.Claim(ctx, 2, 2, alice, 30, proof)
	require.ErrorIs(t, err, ledgererrors.ErrInvalidProof)

	rec, err := h.node.ClaimStatus(ctx, 2, 2)
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestZeroStakeIncomeFollowsPolicy(t *testing.T) {
	ctx := context.Background()

	carry := newHarness(t, params.DefaultEconomics())
	carry.fund(t, admin, "LXR", 1_000)
	res, err := carry.node.DistributeIncome(ctx, admin, 1_000)
	require.NoError(t, err)
	require.Equal(t, events.IncomeRoutingCarried, res.Routing)
	ledger, err := carry.node.Ledger(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(400), ledger.UndistributedRewards)
	require.True(t, ledger.Acc().IsZero())

	economics := params.DefaultEconomics()
	economics.ZeroStakePolicy = params.ZeroStakeReserve
	reserve := newHarness(t, economics)
	reserve.fund(t, admin, "LXR", 1_000)
	res, err = reserve.node.DistributeIncome(ctx, admin, 1_000)
	require.NoError(t, err)
	require.Equal(t, events.IncomeRoutingReserve, res.Routing)
	ledger, err = reserve.node.Ledger(ctx)
	require.NoError(t, err)
	require.Zero(t, ledger.UndistributedRewards)
	vault, err := reserve.node.AccountBalance(ctx, ledger.ReserveVault)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), vault)
}

func TestLegacyLedgerRequiresUpgrade(t *testing.T) {
	h := newHarness(t, params.DefaultEconomics())
	ctx := context.Background()

	require.NoError(t, h.db.Update(func(tx storage.Tx) error {
		m := state.NewManager(tx)
		ledger, _, err := m.LedgerGet()
		if err != nil {
			return err
		}
		ledger.Version = types.LedgerLayoutV1
		return m.LedgerPut(ledger)
	}))

	_, err := h.node.OpenPosition(ctx, alice)
	require.ErrorIs(t, err, ledgererrors.ErrLayoutOutdated)
	require.ErrorIs(t, h.node.SetFee(ctx, admin, 50), ledgererrors.ErrLayoutOutdated)

	_, err = h.node.UpgradeConfig(ctx, alice, treasury.Vaults{})
	require.ErrorIs(t, err, ledgererrors.ErrUnauthorized)

	h.clock = genesis.Add(time.Hour)
	upgraded, err := h.node.UpgradeConfig(ctx, admin, treasury.Vaults{})
	require.NoError(t, err)
	require.Equal(t, types.LedgerLayoutVersion, upgraded.Version)
	require.Equal(t, treasury.VaultID(treasury.VaultFee), upgraded.FeeVault)
	require.Equal(t, h.clock.Unix(), upgraded.LastInflationTime)

	require.NoError(t, h.node.SetFee(ctx, admin, 50))
	_, err = h.node.OpenPosition(ctx, alice)
	require.NoError(t, err)
}

func TestAdminOperationsRejectOtherCallers(t *testing.T) {
	h := newHarness(t, params.DefaultEconomics())
	ctx := context.Background()

	_, err := h.node.DistributeIncome(ctx, alice, 10)
	require.ErrorIs(t, err, ledgererrors.ErrUnauthorized)
	_, err = h.node.HarvestFees(ctx, alice)
	require.ErrorIs(t, err, ledgererrors.ErrUnauthorized)
	_, err = h.node.TriggerScheduledMint(ctx, alice)
	require.ErrorIs(t, err, ledgererrors.ErrUnauthorized)
	_, err = h.node.SeedDistributor(ctx, alice, 1, merkle.Hash{1}, "")
	require.ErrorIs(t, err, ledgererrors.ErrUnauthorized)
	require.ErrorIs(t, h.node.SetFee(ctx, alice, 10), ledgererrors.ErrUnauthorized)
	require.ErrorIs(t, h.node.MintTo(ctx, alice, alice, "LXR", 1), ledgererrors.ErrUnauthorized)

	_, err = h.node.Initialize(ctx, admin, treasury.InitParams{})
	require.ErrorIs(t, err, ledgererrors.ErrAlreadyExists)
}

func TestScheduledMintAndSwap(t *testing.T) {
	h := newHarness(t, params.DefaultEconomics())
	ctx := context.Background()

	h.fund(t, admin, "LXR", 1_000_000)
	_, err := h.node.TriggerScheduledMint(ctx, admin)
	require.ErrorIs(t, err, ledgererrors.ErrNotReady)

	h.clock = genesis.Add(time.Duration(h.node.Economics().InflationIntervalSecs) * time.Second)
	minted, err := h.node.TriggerScheduledMint(ctx, admin)
	require.NoError(t, err)
	require.Equal(t, uint64(25_000), minted.Amount)

	h.fund(t, alice, "LXR", 2_000_000)
	_, err = h.node.Buy(ctx, alice, 2)
	require.ErrorIs(t, err, ledgererrors.ErrInsufficientFunds)

	h.fund(t, admin, "XLS", 10)
	_, err = h.node.FundVault(ctx, alice, treasury.VaultSupply, 10)
	require.ErrorIs(t, err, ledgererrors.ErrUnauthorized)
	supply, err := h.node.FundVault(ctx, admin, treasury.VaultSupply, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(10), supply)
	require.Equal(t, uint64(0), h.balance(t, admin, "XLS"))

	quote, err := h.node.Buy(ctx, alice, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(2_000_000), quote.Cost)
	require.Equal(t, uint64(600_000), quote.Burned)
	require.Equal(t, uint64(2), h.balance(t, alice, "XLS"))

	quote, err = h.node.Redeem(ctx, alice, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(700_000), quote.Payout)
	require.Equal(t, uint64(700_000), h.balance(t, alice, "LXR"))

	ledger, err := h.node.Ledger(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(600_000), ledger.TotalBurned)
	require.Contains(t, h.sink.types(), events.TypeVaultFunded)
}

func TestRewardTransferFeeIsHarvested(t *testing.T) {
	h := newHarness(t, params.DefaultEconomics())
	ctx := context.Background()
	founder := h.ledgerFounder(t)

	require.NoError(t, h.node.SetFee(ctx, admin, 300))
	h.fund(t, alice, "LXR", 1_000_000)
	receipt, err := h.node.Transfer(ctx, alice, bob, "LXR", 1_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(30_000), receipt.Fee)
	require.Equal(t, uint64(970_000), h.balance(t, bob, "LXR"))
	require.Equal(t, uint64(0), h.balance(t, alice, "LXR"))

	_, err = h.node.Transfer(ctx, bob, alice, "LXR", 970_001)
	require.ErrorIs(t, err, ledgererrors.ErrInsufficientFunds)

	ledger, err := h.node.Ledger(ctx)
	require.NoError(t, err)
	vault, err := h.node.AccountBalance(ctx, ledger.FeeVault)
	require.NoError(t, err)
	require.Equal(t, uint64(30_000), vault)

	founderBefore := h.balance(t, founder, "LXR")
	harvest, err := h.node.HarvestFees(ctx, admin)
	require.NoError(t, err)
	require.Equal(t, uint64(30_000), harvest.Total)
	require.Equal(t, uint64(15_000), harvest.Founder)
	require.Equal(t, uint64(15_000), harvest.Reserve)
	require.Equal(t, founderBefore+15_000, h.balance(t, founder, "LXR"))
	reserve, err := h.node.AccountBalance(ctx, ledger.ReserveVault)
	require.NoError(t, err)
	require.Equal(t, uint64(15_000), reserve)

	// Stake mint transfers are not charged.
	h.fund(t, alice, "XLS", 500)
	receipt, err = h.node.Transfer(ctx, alice, bob, "XLS", 500)
	require.NoError(t, err)
	require.Zero(t, receipt.Fee)
	require.Equal(t, uint64(500), h.balance(t, bob, "XLS"))
	require.Contains(t, h.sink.types(), events.TypeFeeWithheld)
}

func TestCancelledContextSkipsUnit(t *testing.T) {
	h := newHarness(t, params.DefaultEconomics())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.node.OpenPosition(ctx, alice)
	require.ErrorIs(t, err, context.Canceled)
	_, err = h.node.Position(context.Background(), alice)
	require.ErrorIs(t, err, ledgererrors.ErrNotFound)
}

func TestNewNodeValidatesEconomics(t *testing.T) {
	economics := params.DefaultEconomics()
	economics.ReserveShareBps = 10_001
	_, err := NewNode(storage.NewMemDB(), WithEconomics(economics))
	require.Error(t, err)

	_, err = NewNode(nil)
	require.Error(t, err)
}
