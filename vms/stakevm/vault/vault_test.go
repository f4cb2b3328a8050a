// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/stakevm/utils/timer/mockable"
	"github.com/luxfi/stakevm/vms/stakevm/config"
	"github.com/luxfi/stakevm/vms/stakevm/custody"
	"github.com/luxfi/stakevm/vms/stakevm/custody/custodymock"
	"github.com/luxfi/stakevm/vms/stakevm/events"
	"github.com/luxfi/stakevm/vms/stakevm/ledger"
	"github.com/luxfi/stakevm/vms/stakevm/rate"
	"github.com/luxfi/stakevm/vms/stakevm/state"
	"github.com/luxfi/stakevm/vms/stakevm/validators"
	"github.com/luxfi/stakevm/vms/stakevm/withdrawal"
)

const week = 7 * 24 * time.Hour

var (
	owner    = ids.ShortID{0x01}
	treasury = ids.ShortID{0x02}
	alice    = ids.ShortID{0x0a}
	bob      = ids.ShortID{0x0b}
)

type environment struct {
	vault   *Vault
	state   *state.State
	clock   *mockable.Clock
	journal *custody.Journal
}

func testConfig() config.Config {
	cfg := config.Default
	cfg.MinDeposit = 10
	cfg.UnbondingPeriod = week
	return cfg
}

func newEnvironment(t *testing.T, cfg config.Config, c custody.Custody) *environment {
	s := state.New(memdb.New())
	clock := &mockable.Clock{}
	clock.Set(time.Unix(1_700_000_000, 0))
	journal := custody.NewJournal(s.Custody, clock)
	if c == nil {
		c = journal
	}
	v := New(cfg, s, c, clock, log.NoLog{})
	require.NoError(t, v.Initialize(owner, treasury))
	return &environment{
		vault:   v,
		state:   s,
		clock:   clock,
		journal: journal,
	}
}

func amount(n uint64) *uint256.Int {
	return uint256.NewInt(n)
}

func requireAmount(t *testing.T, expected uint64, f func() (*uint256.Int, error)) {
	t.Helper()
	got, err := f()
	require.NoError(t, err)
	require.Equal(t, expected, got.Uint64())
}

func TestInitialize(t *testing.T) {
	require := require.New(t)

	s := state.New(memdb.New())
	v := New(testConfig(), s, custody.NewJournal(s.Custody, &mockable.Clock{}), &mockable.Clock{}, log.NoLog{})

	_, err := v.Deposit(alice, amount(100))
	require.ErrorIs(err, ErrNotInitialized)
	require.ErrorIs(v.Transfer(alice, bob, amount(1)), ErrNotInitialized)

	require.ErrorIs(v.Initialize(owner, ids.ShortEmpty), ErrInvalidTreasury)
	require.NoError(v.Initialize(owner, treasury))
	require.ErrorIs(v.Initialize(alice, treasury), ErrAlreadyInitialized)

	initialized, err := v.IsInitialized()
	require.NoError(err)
	require.True(initialized)

	got, err := v.Owner()
	require.NoError(err)
	require.Equal(owner, got)

	fees, err := v.FeeConfig()
	require.NoError(err)
	require.Equal(&FeeConfig{
		PerformanceFeeBps: 500,
		Treasury:          treasury,
	}, fees)

	info := v.TokenInfo()
	require.Equal("stCSPR", info.Symbol)
	require.Equal(uint8(9), info.Decimals)

	evs, err := v.Events(0, 10)
	require.NoError(err)
	require.Len(evs, 1)
	require.Equal(events.TypeInitialized, evs[0].Type)
}

// Deposit 100, compound 10 of yield, withdraw everything after the
// unbonding period.
func TestDepositCompoundWithdraw(t *testing.T) {
	require := require.New(t)

	env := newEnvironment(t, testConfig(), nil)
	v := env.vault

	minted, err := v.Deposit(alice, amount(100))
	require.NoError(err)
	require.Equal(uint64(100), minted.Uint64())
	requireAmount(t, 100, v.TotalSupply)
	requireAmount(t, 100, v.TVL)
	requireAmount(t, rate.Scale, v.ExchangeRate)

	// 5% of 10 rounds down to no fee.
	c, err := v.CompoundRewards(owner, amount(10))
	require.NoError(err)
	require.True(c.RateUpdated)
	require.True(c.Fee.IsZero())
	requireAmount(t, 1_100_000_000, v.ExchangeRate)
	requireAmount(t, 110, v.TVL)
	requireAmount(t, 110, func() (*uint256.Int, error) {
		return v.UserValue(alice)
	})

	r, err := v.RequestWithdrawal(alice, amount(100))
	require.NoError(err)
	require.Equal(uint64(110), r.BaseAmount.Uint64())
	require.Equal(env.clock.Unix()+uint64(week/time.Second), r.UnlockTime)
	requireAmount(t, 0, func() (*uint256.Int, error) {
		return v.BalanceOf(alice)
	})
	requireAmount(t, 0, v.TotalSupply)
	requireAmount(t, 110, v.PendingWithdrawals)

	_, err = v.ClaimWithdrawal(alice, r.ID)
	require.ErrorIs(err, withdrawal.ErrStillLocked)

	env.clock.Advance(week)
	claimable, err := v.ClaimableWithdrawals(alice)
	require.NoError(err)
	require.Len(claimable, 1)

	_, err = v.ClaimWithdrawal(bob, r.ID)
	require.ErrorIs(err, withdrawal.ErrNotOwner)

	claimed, err := v.ClaimWithdrawal(alice, r.ID)
	require.NoError(err)
	require.True(claimed.Claimed)
	requireAmount(t, 0, v.TVL)
	requireAmount(t, 0, v.PendingWithdrawals)

	_, err = v.ClaimWithdrawal(alice, r.ID)
	require.ErrorIs(err, withdrawal.ErrAlreadyClaimed)

	// 100 collected from alice, 10 of yield from the owner, 110 paid out.
	n, err := env.journal.Len()
	require.NoError(err)
	require.Equal(uint64(3), n)
	deposit, err := env.journal.Get(0)
	require.NoError(err)
	require.Equal(custody.Inflow, deposit.Direction)
	require.Equal(alice, deposit.Account)
	require.Equal(uint64(100), deposit.Amount.Uint64())
	payout, err := env.journal.Get(2)
	require.NoError(err)
	require.Equal(custody.Outflow, payout.Direction)
	require.Equal(alice, payout.Account)
	require.Equal(uint64(110), payout.Amount.Uint64())
	requireAmount(t, 0, env.journal.Balance)

	require.NoError(v.CheckInvariants())
}

func TestDepositBelowMinimum(t *testing.T) {
	require := require.New(t)

	env := newEnvironment(t, testConfig(), nil)
	_, err := env.vault.Deposit(alice, amount(9))
	require.ErrorIs(err, ErrBelowMinimum)

	minted, err := env.vault.Deposit(alice, amount(10))
	require.NoError(err)
	require.Equal(uint64(10), minted.Uint64())

	// 95 of user yield on a supply of 10 puts the rate at 10.5, where the
	// minimum deposit no longer buys a whole claim token.
	_, err = env.vault.CompoundRewards(owner, amount(100))
	require.NoError(err)
	requireAmount(t, 10_500_000_000, env.vault.ExchangeRate)

	_, err = env.vault.Deposit(bob, amount(10))
	require.ErrorIs(err, ErrBelowMinimum)
	minted, err = env.vault.Deposit(bob, amount(11))
	require.NoError(err)
	require.Equal(uint64(1), minted.Uint64())
	require.NoError(env.vault.CheckInvariants())
}

func TestDepositAfterRateIncrease(t *testing.T) {
	require := require.New(t)

	env := newEnvironment(t, testConfig(), nil)
	v := env.vault

	_, err := v.Deposit(alice, amount(100))
	require.NoError(err)
	_, err = v.CompoundRewards(owner, amount(10))
	require.NoError(err)

	// 11 base at 1.1 is 10 claim tokens; 12 rounds down to 10 as well.
	minted, err := v.Deposit(bob, amount(11))
	require.NoError(err)
	require.Equal(uint64(10), minted.Uint64())
	minted, err = v.Deposit(bob, amount(12))
	require.NoError(err)
	require.Equal(uint64(10), minted.Uint64())

	// Rounding dust stays in custody, so the backing never falls short.
	requireAmount(t, 133, v.TVL)
	requireAmount(t, 120, v.TotalSupply)
	require.NoError(v.CheckInvariants())
}

func TestCompoundPaysFeeToTreasury(t *testing.T) {
	require := require.New(t)

	env := newEnvironment(t, testConfig(), nil)
	v := env.vault

	_, err := v.Deposit(alice, amount(10_000))
	require.NoError(err)

	_, err = v.CompoundRewards(alice, amount(1_000))
	require.ErrorIs(err, ErrUnauthorized)
	_, err = v.CompoundRewards(owner, amount(0))
	require.ErrorIs(err, rate.ErrZeroYield)

	c, err := v.CompoundRewards(owner, amount(1_000))
	require.NoError(err)
	require.Equal(uint64(50), c.Fee.Uint64())
	require.Equal(uint64(950), c.UserYield.Uint64())
	requireAmount(t, 10_950, v.TVL)
	requireAmount(t, 1_095_000_000, v.ExchangeRate)

	yield, err := env.journal.Get(1)
	require.NoError(err)
	require.Equal(custody.Inflow, yield.Direction)
	require.Equal(owner, yield.Account)
	require.Equal(uint64(1_000), yield.Amount.Uint64())
	fee, err := env.journal.Get(2)
	require.NoError(err)
	require.Equal(custody.Outflow, fee.Direction)
	require.Equal(treasury, fee.Account)
	require.Equal(uint64(50), fee.Amount.Uint64())
	requireAmount(t, 10_950, env.journal.Balance)
}

func TestCompoundWithoutSupply(t *testing.T) {
	require := require.New(t)

	env := newEnvironment(t, testConfig(), nil)
	v := env.vault

	c, err := v.CompoundRewards(owner, amount(100))
	require.NoError(err)
	require.False(c.RateUpdated)
	requireAmount(t, rate.Scale, v.ExchangeRate)
	requireAmount(t, 95, v.TVL)

	// The first depositor still mints at the initial rate.
	minted, err := v.Deposit(alice, amount(100))
	require.NoError(err)
	require.Equal(uint64(100), minted.Uint64())
}

func TestPendingWithdrawalsDoNotEarnYield(t *testing.T) {
	require := require.New(t)

	env := newEnvironment(t, testConfig(), nil)
	v := env.vault

	_, err := v.Deposit(alice, amount(100))
	require.NoError(err)
	_, err = v.Deposit(bob, amount(100))
	require.NoError(err)

	r, err := v.RequestWithdrawal(alice, amount(100))
	require.NoError(err)
	require.Equal(uint64(100), r.BaseAmount.Uint64())

	require.NoError(v.SetPerformanceFee(owner, 0))
	_, err = v.CompoundRewards(owner, amount(10))
	require.NoError(err)

	// Custody is 210, but 100 of it is owed to alice's request. Only bob's
	// 100 claim tokens share the yield: (210 - 100) / 100 = 1.1, not 2.1.
	requireAmount(t, 210, v.TVL)
	requireAmount(t, 100, v.PendingWithdrawals)
	requireAmount(t, 100, v.TotalSupply)
	requireAmount(t, 1_100_000_000, v.ExchangeRate)
	requireAmount(t, 110, func() (*uint256.Int, error) {
		return v.UserValue(bob)
	})
	stored, err := v.WithdrawalRequest(r.ID)
	require.NoError(err)
	require.Equal(uint64(100), stored.BaseAmount.Uint64())

	env.clock.Advance(week)
	_, err = v.ClaimWithdrawal(alice, r.ID)
	require.NoError(err)

	// Bob can redeem everything that is left.
	r, err = v.RequestWithdrawal(bob, amount(100))
	require.NoError(err)
	require.Equal(uint64(110), r.BaseAmount.Uint64())
	requireAmount(t, 110, v.TVL)
	require.NoError(v.CheckInvariants())
}

func TestRequestWithdrawalErrors(t *testing.T) {
	require := require.New(t)

	env := newEnvironment(t, testConfig(), nil)
	v := env.vault

	_, err := v.Deposit(alice, amount(100))
	require.NoError(err)

	_, err = v.RequestWithdrawal(alice, amount(0))
	require.ErrorIs(err, ledger.ErrInvalidAmount)
	_, err = v.RequestWithdrawal(alice, amount(101))
	require.ErrorIs(err, ledger.ErrInsufficientBalance)
	_, err = v.ClaimWithdrawal(alice, 0)
	require.ErrorIs(err, withdrawal.ErrNotFound)
}

func TestPause(t *testing.T) {
	require := require.New(t)

	env := newEnvironment(t, testConfig(), nil)
	v := env.vault

	_, err := v.Deposit(alice, amount(100))
	require.NoError(err)
	r, err := v.RequestWithdrawal(alice, amount(50))
	require.NoError(err)

	require.ErrorIs(v.Pause(alice), ErrUnauthorized)
	require.NoError(v.Pause(owner))
	require.NoError(v.Pause(owner))
	paused, err := v.IsPaused()
	require.NoError(err)
	require.True(paused)

	_, err = v.Deposit(alice, amount(100))
	require.ErrorIs(err, ErrPaused)
	_, err = v.RequestWithdrawal(alice, amount(10))
	require.ErrorIs(err, ErrPaused)

	// Claims and transfers are not stopped by a pause.
	require.NoError(v.Transfer(alice, bob, amount(10)))
	env.clock.Advance(week)
	_, err = v.ClaimWithdrawal(alice, r.ID)
	require.NoError(err)

	// Compounding is an owner action and is allowed while paused.
	_, err = v.CompoundRewards(owner, amount(10))
	require.NoError(err)

	require.ErrorIs(v.Unpause(bob), ErrUnauthorized)
	require.NoError(v.Unpause(owner))
	_, err = v.Deposit(alice, amount(100))
	require.NoError(err)

	evs, err := v.Events(0, 100)
	require.NoError(err)
	var toggles []string
	for _, e := range evs {
		if e.Type == events.TypePaused || e.Type == events.TypeUnpaused {
			toggles = append(toggles, e.Type)
		}
	}
	require.Equal([]string{events.TypePaused, events.TypeUnpaused}, toggles)
}

func TestSetPerformanceFee(t *testing.T) {
	require := require.New(t)

	env := newEnvironment(t, testConfig(), nil)
	v := env.vault

	apy, err := v.APY()
	require.NoError(err)
	require.Equal(uint32(902), apy) // 950 * 0.95

	require.ErrorIs(v.SetPerformanceFee(alice, 100), ErrUnauthorized)
	require.ErrorIs(v.SetPerformanceFee(owner, config.MaxPerformanceFeeBps+1), ErrFeeTooHigh)
	require.NoError(v.SetPerformanceFee(owner, config.MaxPerformanceFeeBps))

	fee, err := v.PerformanceFee()
	require.NoError(err)
	require.Equal(uint32(config.MaxPerformanceFeeBps), fee)

	apy, err = v.APY()
	require.NoError(err)
	require.Equal(uint32(855), apy)

	require.NoError(v.SetPerformanceFee(owner, 0))
	_, err = v.Deposit(alice, amount(100))
	require.NoError(err)
	c, err := v.CompoundRewards(owner, amount(100))
	require.NoError(err)
	require.True(c.Fee.IsZero())

	// The deposit and the yield came in; nothing went to the treasury.
	n, err := env.journal.Len()
	require.NoError(err)
	require.Equal(uint64(2), n)
	for seq := range n {
		e, err := env.journal.Get(seq)
		require.NoError(err)
		require.Equal(custody.Inflow, e.Direction)
	}
}

func TestSetTreasury(t *testing.T) {
	require := require.New(t)

	env := newEnvironment(t, testConfig(), nil)
	v := env.vault

	require.ErrorIs(v.SetTreasury(alice, bob), ErrUnauthorized)
	require.ErrorIs(v.SetTreasury(owner, ids.ShortEmpty), ErrInvalidTreasury)
	require.NoError(v.SetTreasury(owner, bob))

	got, err := v.Treasury()
	require.NoError(err)
	require.Equal(bob, got)
}

func TestStaking(t *testing.T) {
	require := require.New(t)

	env := newEnvironment(t, testConfig(), nil)
	v := env.vault

	_, err := v.Deposit(alice, amount(100))
	require.NoError(err)

	_, err = v.Stake(owner, amount(50))
	require.ErrorIs(err, validators.ErrNoValidators)

	validatorA := ids.ShortID{0xa0}
	validatorB := ids.ShortID{0xb0}
	_, err = v.AddValidator(alice, validatorA, 90)
	require.ErrorIs(err, ErrUnauthorized)
	_, err = v.AddValidator(owner, validatorA, 90)
	require.NoError(err)
	_, err = v.AddValidator(owner, validatorB, 80)
	require.NoError(err)

	_, err = v.Stake(owner, amount(0))
	require.ErrorIs(err, ledger.ErrInvalidAmount)
	_, err = v.Stake(owner, amount(101))
	require.ErrorIs(err, withdrawal.ErrInsufficientLiquidity)

	delegated, err := v.Stake(owner, amount(81))
	require.NoError(err)
	require.Len(delegated, 2)
	require.Equal(validatorA, delegated[0].Address)
	require.Equal(uint64(41), delegated[0].Stake.Uint64())
	require.Equal(uint64(40), delegated[1].Stake.Uint64())
	requireAmount(t, 81, v.TotalStaked)
	requireAmount(t, 19, v.AvailableLiquidity)
	require.NoError(v.CheckInvariants())

	// Staked custody cannot pay out a withdrawal.
	r, err := v.RequestWithdrawal(alice, amount(50))
	require.NoError(err)
	env.clock.Advance(week)
	_, err = v.ClaimWithdrawal(alice, r.ID)
	require.ErrorIs(err, withdrawal.ErrInsufficientLiquidity)

	require.ErrorIs(v.Unstake(owner, amount(82)), ErrInsufficientStaked)
	require.NoError(v.Unstake(owner, amount(31)))
	requireAmount(t, 50, v.TotalStaked)
	require.NoError(v.CheckInvariants())

	_, err = v.ClaimWithdrawal(alice, r.ID)
	require.NoError(err)
	requireAmount(t, 50, v.TVL)
	requireAmount(t, 0, v.AvailableLiquidity)

	_, err = v.UpdateValidator(owner, validatorB, 95, 99)
	require.NoError(err)
	vals, err := v.Validators()
	require.NoError(err)
	require.Equal(validatorB, vals[0].Address)
	require.NoError(v.CheckInvariants())
}

func TestTransferAndAllowance(t *testing.T) {
	require := require.New(t)

	env := newEnvironment(t, testConfig(), nil)
	v := env.vault

	_, err := v.Deposit(alice, amount(100))
	require.NoError(err)

	require.NoError(v.Approve(alice, bob, amount(30)))
	requireAmount(t, 30, func() (*uint256.Int, error) {
		return v.Allowance(alice, bob)
	})
	require.NoError(v.TransferFrom(bob, alice, bob, amount(30)))
	require.ErrorIs(v.TransferFrom(bob, alice, bob, amount(1)), ledger.ErrInsufficientAllowance)
	require.ErrorIs(v.Transfer(alice, alice, amount(1)), ledger.ErrSelfTransfer)

	// Tokens received by transfer can be redeemed.
	r, err := v.RequestWithdrawal(bob, amount(30))
	require.NoError(err)
	require.Equal(bob, r.Requester)

	requestIDs, err := v.UserWithdrawals(bob)
	require.NoError(err)
	require.Equal([]uint64{r.ID}, requestIDs)
	require.NoError(v.CheckInvariants())
}

func TestClaimFailsWhenReleaseFails(t *testing.T) {
	require := require.New(t)

	ctrl := gomock.NewController(t)
	c := custodymock.NewCustody(ctrl)
	env := newEnvironment(t, testConfig(), c)
	v := env.vault

	c.EXPECT().Collect(alice, amount(100)).Return(nil)
	_, err := v.Deposit(alice, amount(100))
	require.NoError(err)
	r, err := v.RequestWithdrawal(alice, amount(100))
	require.NoError(err)
	require.NoError(env.state.Commit())
	env.clock.Advance(week)

	errRelease := errors.New("transfer rejected")
	c.EXPECT().Release(alice, amount(100)).Return(errRelease)

	_, err = v.ClaimWithdrawal(alice, r.ID)
	require.ErrorIs(err, errRelease)

	// The caller is expected to abort the call, which discards the claim.
	env.state.Abort()
	stored, err := v.WithdrawalRequest(r.ID)
	require.NoError(err)
	require.False(stored.Claimed)
	requireAmount(t, 100, v.PendingWithdrawals)
}

func TestDepositFailsWhenCollectFails(t *testing.T) {
	require := require.New(t)

	ctrl := gomock.NewController(t)
	c := custodymock.NewCustody(ctrl)
	env := newEnvironment(t, testConfig(), c)
	v := env.vault
	require.NoError(env.state.Commit())

	errCollect := errors.New("insufficient funds")
	c.EXPECT().Collect(alice, amount(1_000_000)).Return(errCollect)

	_, err := v.Deposit(alice, amount(1_000_000))
	require.ErrorIs(err, errCollect)

	env.state.Abort()
	requireAmount(t, 0, v.TVL)
	requireAmount(t, 0, v.TotalSupply)
	requireAmount(t, 0, func() (*uint256.Int, error) {
		return v.BalanceOf(alice)
	})
}

func TestCompoundMovesCustodyLast(t *testing.T) {
	require := require.New(t)

	ctrl := gomock.NewController(t)
	c := custodymock.NewCustody(ctrl)
	env := newEnvironment(t, testConfig(), c)
	v := env.vault

	c.EXPECT().Collect(alice, amount(10_000)).Return(nil)
	_, err := v.Deposit(alice, amount(10_000))
	require.NoError(err)
	require.NoError(env.state.Commit())

	// Every state change of the call, its change record included, is
	// written before any base asset moves.
	requireRecorded := func(ids.ShortID, *uint256.Int) {
		evs, err := v.Events(0, 100)
		require.NoError(err)
		require.Equal(events.TypeRewardsCompounded, evs[len(evs)-1].Type)
		requireAmount(t, 10_950, v.TVL)
	}
	errRelease := errors.New("treasury rejected")
	gomock.InOrder(
		c.EXPECT().Collect(owner, amount(1_000)).Do(requireRecorded).Return(nil),
		c.EXPECT().Release(treasury, amount(50)).Do(requireRecorded).Return(errRelease),
	)

	_, err = v.CompoundRewards(owner, amount(1_000))
	require.ErrorIs(err, errRelease)

	env.state.Abort()
	requireAmount(t, 10_000, v.TVL)
	requireAmount(t, rate.Scale, v.ExchangeRate)
}
