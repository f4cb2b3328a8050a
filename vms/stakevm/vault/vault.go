// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vault is the entry point of the staking engine. It owns the
// custody counters and the owner's authority and sequences every call into
// the ledger, the rate accountant and the withdrawal queue.
package vault

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/stakevm/utils/timer/mockable"
	"github.com/luxfi/stakevm/vms/stakevm/config"
	"github.com/luxfi/stakevm/vms/stakevm/custody"
	"github.com/luxfi/stakevm/vms/stakevm/events"
	"github.com/luxfi/stakevm/vms/stakevm/ledger"
	"github.com/luxfi/stakevm/vms/stakevm/rate"
	"github.com/luxfi/stakevm/vms/stakevm/state"
	"github.com/luxfi/stakevm/vms/stakevm/validators"
	"github.com/luxfi/stakevm/vms/stakevm/vmerrs"
	"github.com/luxfi/stakevm/vms/stakevm/withdrawal"

	safemath "github.com/luxfi/stakevm/utils/math"
)

var (
	ErrNotInitialized     = vmerrs.New(vmerrs.State, "NotInitialized", "vault is not initialized")
	ErrAlreadyInitialized = vmerrs.New(vmerrs.State, "AlreadyInitialized", "vault is already initialized")
	ErrUnauthorized       = vmerrs.New(vmerrs.Authorization, "Unauthorized", "caller is not the owner")
	ErrPaused             = vmerrs.New(vmerrs.State, "Paused", "vault is paused")
	ErrBelowMinimum       = vmerrs.New(vmerrs.Validation, "BelowMinimum", "deposit is below the minimum")
	ErrFeeTooHigh         = vmerrs.New(vmerrs.Validation, "FeeTooHigh", "performance fee exceeds maximum")
	ErrInvalidTreasury    = vmerrs.New(vmerrs.Validation, "InvalidTreasury", "treasury address is empty")
	ErrInsufficientStaked = vmerrs.New(vmerrs.Resource, "InsufficientStaked", "amount exceeds staked custody")

	custodyKey     = []byte("custody")
	stakedKey      = []byte("staked")
	ownerKey       = []byte("owner")
	treasuryKey    = []byte("treasury")
	feeKey         = []byte("fee")
	pausedKey      = []byte("paused")
	initializedKey = []byte("initialized")
)

// Vault orchestrates the engine's components. It keeps no state outside of
// the database it was built on, so aborting the database aborts the call.
type Vault struct {
	config config.Config
	clock  *mockable.Clock
	log    log.Logger

	db         database.Database
	ledger     *ledger.Ledger
	minter     *ledger.Minter
	rate       *rate.Accountant
	queue      *withdrawal.Queue
	validators *validators.Registry
	events     *events.Log
	custody    custody.Custody
}

func New(
	cfg config.Config,
	s *state.State,
	c custody.Custody,
	clock *mockable.Clock,
	logger log.Logger,
) *Vault {
	eventLog := events.NewLog(s.Events, clock)
	l, minter := ledger.New(ledger.Tables{
		Balances:   s.Balances,
		Allowances: s.Allowances,
		Meta:       s.Ledger,
	}, eventLog)
	return &Vault{
		config: cfg,
		clock:  clock,
		log:    logger,
		db:     s.Vault,
		ledger: l,
		minter: minter,
		rate:   rate.New(s.Rate, eventLog),
		queue: withdrawal.New(withdrawal.Tables{
			Requests:     s.Requests,
			UserRequests: s.UserRequests,
			Meta:         s.Queue,
		}, cfg.UnbondingPeriod, eventLog),
		validators: validators.New(s.Validators, eventLog),
		events:     eventLog,
		custody:    c,
	}
}

// Initialize sets caller as the owner and records the fee configuration.
// It can only be called once.
func (v *Vault) Initialize(caller, treasury ids.ShortID) error {
	initialized, err := state.GetBool(v.db, initializedKey)
	if err != nil {
		return err
	}
	if initialized {
		return ErrAlreadyInitialized
	}
	if treasury == ids.ShortEmpty {
		return ErrInvalidTreasury
	}
	if err := v.config.Verify(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := state.PutShortID(v.db, ownerKey, caller); err != nil {
		return err
	}
	if err := state.PutShortID(v.db, treasuryKey, treasury); err != nil {
		return err
	}
	if err := database.PutUInt64(v.db, feeKey, uint64(v.config.PerformanceFeeBps)); err != nil {
		return err
	}
	if err := state.PutBool(v.db, initializedKey, true); err != nil {
		return err
	}

	err = v.events.Emit(events.NewEvent(
		events.TypeInitialized,
		events.Address(events.AttributeKeyOwner, caller),
		events.Address(events.AttributeKeyTreasury, treasury),
		events.NewAttribute(events.AttributeKeyFeeBps, fmt.Sprint(v.config.PerformanceFeeBps)),
		events.NewAttribute(events.AttributeKeyUnbonding, v.config.UnbondingPeriod.String()),
	))
	if err != nil {
		return err
	}

	v.log.Info("vault initialized",
		log.Stringer("owner", caller),
		log.Stringer("treasury", treasury),
		log.Uint32("feeBps", v.config.PerformanceFeeBps),
		log.Duration("unbondingPeriod", v.config.UnbondingPeriod),
	)
	return nil
}

// Deposit collects amount of the base asset from caller and mints the
// equivalent claim tokens. The collection is the last step, so a rejected
// collection leaves nothing to undo outside the call.
func (v *Vault) Deposit(caller ids.ShortID, amount *uint256.Int) (*uint256.Int, error) {
	if err := v.requireActive(); err != nil {
		return nil, err
	}
	if amount.Lt(uint256.NewInt(v.config.MinDeposit)) {
		return nil, fmt.Errorf("%w: %s < %d", ErrBelowMinimum, amount.Dec(), v.config.MinDeposit)
	}

	claim, err := v.rate.ToClaimTokens(amount)
	if err != nil {
		return nil, err
	}
	if claim.IsZero() {
		return nil, fmt.Errorf("%w: %s is worth no claim tokens", ErrBelowMinimum, amount.Dec())
	}
	custodyAmount, err := v.TVL()
	if err != nil {
		return nil, err
	}
	newCustody, err := safemath.Add256(custodyAmount, amount)
	if err != nil {
		return nil, fmt.Errorf("custody after deposit: %w", err)
	}
	if err := state.PutAmount(v.db, custodyKey, newCustody); err != nil {
		return nil, err
	}
	if err := v.minter.Mint(caller, claim); err != nil {
		return nil, err
	}

	currentRate, err := v.rate.Rate()
	if err != nil {
		return nil, err
	}
	err = v.events.Emit(events.NewEvent(
		events.TypeDeposit,
		events.Address(events.AttributeKeyUser, caller),
		events.Amount(events.AttributeKeyBaseAmount, amount),
		events.Amount(events.AttributeKeyClaimAmount, claim),
		events.Amount(events.AttributeKeyRate, currentRate),
	))
	if err != nil {
		return nil, err
	}
	if err := v.custody.Collect(caller, amount); err != nil {
		return nil, fmt.Errorf("failed to collect deposit: %w", err)
	}

	v.log.Debug("deposit",
		log.Stringer("user", caller),
		log.String("amount", amount.Dec()),
		log.String("minted", claim.Dec()),
	)
	return claim, nil
}

// RequestWithdrawal burns claimAmount of caller's claim tokens and escrows
// their value at the current rate until the unbonding period has passed.
func (v *Vault) RequestWithdrawal(caller ids.ShortID, claimAmount *uint256.Int) (*withdrawal.Request, error) {
	if err := v.requireActive(); err != nil {
		return nil, err
	}
	if claimAmount.IsZero() {
		return nil, ledger.ErrInvalidAmount
	}

	baseAmount, err := v.rate.ToBaseAsset(claimAmount)
	if err != nil {
		return nil, err
	}
	if err := v.minter.Burn(caller, claimAmount); err != nil {
		return nil, err
	}
	r, err := v.queue.Request(caller, claimAmount, baseAmount, v.clock.Unix())
	if err != nil {
		return nil, err
	}

	v.log.Debug("withdrawal requested",
		log.Uint64("requestID", r.ID),
		log.Stringer("user", caller),
		log.String("claimAmount", claimAmount.Dec()),
		log.String("baseAmount", baseAmount.Dec()),
		log.Uint64("unlockTime", r.UnlockTime),
	)
	return r, nil
}

// ClaimWithdrawal pays out request id to its requester. Claims are accepted
// while the vault is paused.
func (v *Vault) ClaimWithdrawal(caller ids.ShortID, id uint64) (*withdrawal.Request, error) {
	if err := v.requireInitialized(); err != nil {
		return nil, err
	}
	available, err := v.AvailableLiquidity()
	if err != nil {
		return nil, err
	}
	r, err := v.queue.Claim(id, caller, v.clock.Unix(), available)
	if err != nil {
		return nil, err
	}

	custodyAmount, err := v.TVL()
	if err != nil {
		return nil, err
	}
	newCustody, err := safemath.Sub256(custodyAmount, r.BaseAmount)
	if err != nil {
		return nil, fmt.Errorf("custody after claim: %w", err)
	}
	if err := state.PutAmount(v.db, custodyKey, newCustody); err != nil {
		return nil, err
	}
	if err := v.custody.Release(caller, r.BaseAmount); err != nil {
		return nil, fmt.Errorf("failed to release withdrawal %d: %w", id, err)
	}

	v.log.Debug("withdrawal claimed",
		log.Uint64("requestID", id),
		log.Stringer("user", caller),
		log.String("baseAmount", r.BaseAmount.Dec()),
	)
	return r, nil
}

// CompoundRewards collects yield earned by the staked custody from the
// owner. The protocol fee is released to the treasury and the remainder
// raises the exchange rate of the claim tokens still outstanding.
func (v *Vault) CompoundRewards(caller ids.ShortID, yield *uint256.Int) (*rate.Compounding, error) {
	if err := v.authorize(caller); err != nil {
		return nil, err
	}
	feeBps, err := v.PerformanceFee()
	if err != nil {
		return nil, err
	}
	custodyAmount, err := v.TVL()
	if err != nil {
		return nil, err
	}
	pending, err := v.queue.Pending()
	if err != nil {
		return nil, err
	}
	backing, err := safemath.Sub256(custodyAmount, pending)
	if err != nil {
		return nil, fmt.Errorf("%w: pending withdrawals exceed custody", state.ErrCorrupted)
	}
	supply, err := v.ledger.TotalSupply()
	if err != nil {
		return nil, err
	}

	c, err := v.rate.Compound(yield, feeBps, backing, supply)
	if err != nil {
		return nil, err
	}
	newCustody, err := safemath.Add256(custodyAmount, c.UserYield)
	if err != nil {
		return nil, fmt.Errorf("custody after yield: %w", err)
	}
	if err := state.PutAmount(v.db, custodyKey, newCustody); err != nil {
		return nil, err
	}

	treasury, err := v.Treasury()
	if err != nil {
		return nil, err
	}
	err = v.events.Emit(events.NewEvent(
		events.TypeRewardsCompounded,
		events.Amount(events.AttributeKeyYield, c.Yield),
		events.Amount(events.AttributeKeyFee, c.Fee),
		events.Amount(events.AttributeKeyUserYield, c.UserYield),
		events.Amount(events.AttributeKeyCustody, newCustody),
		events.Address(events.AttributeKeyTreasury, treasury),
	))
	if err != nil {
		return nil, err
	}

	// The owner delivers the yield; the fee leaves with it in the same call.
	if err := v.custody.Collect(caller, c.Yield); err != nil {
		return nil, fmt.Errorf("failed to collect yield: %w", err)
	}
	if !c.Fee.IsZero() {
		if err := v.custody.Release(treasury, c.Fee); err != nil {
			return nil, fmt.Errorf("failed to release protocol fee: %w", err)
		}
	}

	v.log.Info("rewards compounded",
		log.String("yield", c.Yield.Dec()),
		log.String("fee", c.Fee.Dec()),
		log.String("oldRate", c.OldRate.Dec()),
		log.String("newRate", c.NewRate.Dec()),
		log.Bool("rateUpdated", c.RateUpdated),
	)
	return c, nil
}

// Transfer moves claim tokens from caller to to.
func (v *Vault) Transfer(caller, to ids.ShortID, amount *uint256.Int) error {
	if err := v.requireInitialized(); err != nil {
		return err
	}
	return v.ledger.Transfer(caller, to, amount)
}

// Approve sets the amount spender may move out of caller's balance.
func (v *Vault) Approve(caller, spender ids.ShortID, amount *uint256.Int) error {
	if err := v.requireInitialized(); err != nil {
		return err
	}
	return v.ledger.Approve(caller, spender, amount)
}

// TransferFrom moves claim tokens from owner to to out of caller's allowance.
func (v *Vault) TransferFrom(caller, owner, to ids.ShortID, amount *uint256.Int) error {
	if err := v.requireInitialized(); err != nil {
		return err
	}
	return v.ledger.TransferFrom(caller, owner, to, amount)
}

func (v *Vault) requireInitialized() error {
	initialized, err := state.GetBool(v.db, initializedKey)
	if err != nil {
		return err
	}
	if !initialized {
		return ErrNotInitialized
	}
	return nil
}

func (v *Vault) requireActive() error {
	if err := v.requireInitialized(); err != nil {
		return err
	}
	paused, err := v.IsPaused()
	if err != nil {
		return err
	}
	if paused {
		return ErrPaused
	}
	return nil
}

func (v *Vault) authorize(caller ids.ShortID) error {
	if err := v.requireInitialized(); err != nil {
		return err
	}
	owner, err := v.Owner()
	if err != nil {
		return err
	}
	if caller != owner {
		return ErrUnauthorized
	}
	return nil
}
