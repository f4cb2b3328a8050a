// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rate maintains the exchange rate between the base asset and the
// claim token.
//
// The rate is a fixed-point number with Scale as its unit: a rate of Scale
// means one claim token is worth one base unit. Conversions only read the
// rate; Compound is the only operation that moves it.
package rate

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/luxfi/database"

	"github.com/luxfi/stakevm/vms/stakevm/events"
	"github.com/luxfi/stakevm/vms/stakevm/state"
	"github.com/luxfi/stakevm/vms/stakevm/vmerrs"

	safemath "github.com/luxfi/stakevm/utils/math"
)

const (
	// Scale is the fixed-point unit of the exchange rate.
	Scale = 1_000_000_000
	// BpsDenominator is 100% in basis points.
	BpsDenominator = 10_000
)

var (
	ErrZeroYield = vmerrs.New(vmerrs.Validation, "ZeroYield", "yield must be greater than zero")

	scale          = uint256.NewInt(Scale)
	bpsDenominator = uint256.NewInt(BpsDenominator)

	rateKey = []byte("rate")
)

// Compounding describes the effect of one Compound call.
type Compounding struct {
	Yield     *uint256.Int
	Fee       *uint256.Int
	UserYield *uint256.Int
	// Backing is the base asset standing behind the claim supply after the
	// user yield is added.
	Backing *uint256.Int
	OldRate *uint256.Int
	NewRate *uint256.Int
	// RateUpdated is false when there was no supply to spread the yield over.
	RateUpdated bool
}

// Accountant owns the exchange rate.
type Accountant struct {
	db      database.Database
	emitter events.Emitter
}

func New(db database.Database, emitter events.Emitter) *Accountant {
	return &Accountant{
		db:      db,
		emitter: emitter,
	}
}

// Rate returns the current exchange rate, base units per claim token scaled
// by Scale.
func (a *Accountant) Rate() (*uint256.Int, error) {
	rate, err := state.GetAmount(a.db, rateKey)
	if err != nil {
		return nil, err
	}
	if rate.IsZero() {
		return new(uint256.Int).Set(scale), nil
	}
	return rate, nil
}

// ToClaimTokens converts a base amount to claim tokens at the current rate,
// rounding down.
func (a *Accountant) ToClaimTokens(baseAmount *uint256.Int) (*uint256.Int, error) {
	rate, err := a.Rate()
	if err != nil {
		return nil, err
	}
	return safemath.MulDiv256(baseAmount, scale, rate)
}

// ToBaseAsset converts claim tokens to a base amount at the current rate,
// rounding down.
func (a *Accountant) ToBaseAsset(claimAmount *uint256.Int) (*uint256.Int, error) {
	rate, err := a.Rate()
	if err != nil {
		return nil, err
	}
	return safemath.MulDiv256(claimAmount, rate, scale)
}

// SplitFee splits yield into the protocol fee, rounded down, and the
// remainder owed to claim token holders.
func SplitFee(yield *uint256.Int, feeBps uint32) (fee, userYield *uint256.Int, err error) {
	fee, err = safemath.MulDiv256(yield, uint256.NewInt(uint64(feeBps)), bpsDenominator)
	if err != nil {
		return nil, nil, err
	}
	userYield, err = safemath.Sub256(yield, fee)
	if err != nil {
		return nil, nil, err
	}
	return fee, userYield, nil
}

// Compound records yield earned by the custody. The protocol fee is split
// off, the remainder is added to backing and, if any claim tokens exist, the
// rate is recomputed as backing / supply. Compounding never lowers the rate.
//
// backing is the base asset owed to claim token holders: custody less the
// payouts already frozen into withdrawal requests.
func (a *Accountant) Compound(yield *uint256.Int, feeBps uint32, backing, supply *uint256.Int) (*Compounding, error) {
	if yield.IsZero() {
		return nil, ErrZeroYield
	}
	fee, userYield, err := SplitFee(yield, feeBps)
	if err != nil {
		return nil, err
	}
	newBacking, err := safemath.Add256(backing, userYield)
	if err != nil {
		return nil, fmt.Errorf("backing after yield: %w", err)
	}
	oldRate, err := a.Rate()
	if err != nil {
		return nil, err
	}

	c := &Compounding{
		Yield:     yield,
		Fee:       fee,
		UserYield: userYield,
		Backing:   newBacking,
		OldRate:   oldRate,
		NewRate:   oldRate,
	}
	if supply.IsZero() {
		return c, nil
	}

	newRate, err := safemath.MulDiv256(newBacking, scale, supply)
	if err != nil {
		return nil, fmt.Errorf("rate after yield: %w", err)
	}
	if newRate.Lt(oldRate) {
		newRate = oldRate
	}
	b := newRate.Bytes32()
	if err := a.db.Put(rateKey, b[:]); err != nil {
		return nil, err
	}
	c.NewRate = newRate
	c.RateUpdated = true

	err = a.emitter.Emit(events.NewEvent(
		events.TypeRateUpdate,
		events.Amount(events.AttributeKeyOldRate, oldRate),
		events.Amount(events.AttributeKeyNewRate, newRate),
		events.Amount(events.AttributeKeyBacking, newBacking),
		events.Amount(events.AttributeKeySupply, supply),
	))
	if err != nil {
		return nil, err
	}
	return c, nil
}
