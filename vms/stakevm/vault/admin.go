// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"fmt"
	"strconv"

	"github.com/holiman/uint256"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/stakevm/vms/stakevm/config"
	"github.com/luxfi/stakevm/vms/stakevm/events"
	"github.com/luxfi/stakevm/vms/stakevm/ledger"
	"github.com/luxfi/stakevm/vms/stakevm/state"
	"github.com/luxfi/stakevm/vms/stakevm/validators"
	"github.com/luxfi/stakevm/vms/stakevm/withdrawal"

	safemath "github.com/luxfi/stakevm/utils/math"
)

func (v *Vault) SetPerformanceFee(caller ids.ShortID, feeBps uint32) error {
	if err := v.authorize(caller); err != nil {
		return err
	}
	if feeBps > config.MaxPerformanceFeeBps {
		return fmt.Errorf("%w: %d > %d", ErrFeeTooHigh, feeBps, config.MaxPerformanceFeeBps)
	}
	old, err := v.PerformanceFee()
	if err != nil {
		return err
	}
	if err := database.PutUInt64(v.db, feeKey, uint64(feeBps)); err != nil {
		return err
	}
	err = v.events.Emit(events.NewEvent(
		events.TypeFeeUpdated,
		events.NewAttribute(events.AttributeKeyFeeBps, strconv.FormatUint(uint64(feeBps), 10)),
	))
	if err != nil {
		return err
	}

	v.log.Info("performance fee updated",
		log.Uint32("oldFeeBps", old),
		log.Uint32("newFeeBps", feeBps),
	)
	return nil
}

func (v *Vault) SetTreasury(caller, treasury ids.ShortID) error {
	if err := v.authorize(caller); err != nil {
		return err
	}
	if treasury == ids.ShortEmpty {
		return ErrInvalidTreasury
	}
	if err := state.PutShortID(v.db, treasuryKey, treasury); err != nil {
		return err
	}
	err := v.events.Emit(events.NewEvent(
		events.TypeTreasuryUpdated,
		events.Address(events.AttributeKeyTreasury, treasury),
	))
	if err != nil {
		return err
	}

	v.log.Info("treasury updated",
		log.Stringer("treasury", treasury),
	)
	return nil
}

// Pause stops deposits and withdrawal requests. Pausing a paused vault is a
// no-op.
func (v *Vault) Pause(caller ids.ShortID) error {
	return v.setPaused(caller, true)
}

func (v *Vault) Unpause(caller ids.ShortID) error {
	return v.setPaused(caller, false)
}

func (v *Vault) setPaused(caller ids.ShortID, paused bool) error {
	if err := v.authorize(caller); err != nil {
		return err
	}
	current, err := v.IsPaused()
	if err != nil {
		return err
	}
	if current == paused {
		return nil
	}
	if err := state.PutBool(v.db, pausedKey, paused); err != nil {
		return err
	}

	typ := events.TypeUnpaused
	if paused {
		typ = events.TypePaused
	}
	if err := v.events.Emit(events.NewEvent(typ)); err != nil {
		return err
	}

	v.log.Info("vault activity changed",
		log.Bool("paused", paused),
	)
	return nil
}

// Stake moves amount of liquid custody to the best validators.
func (v *Vault) Stake(caller ids.ShortID, amount *uint256.Int) ([]*validators.Validator, error) {
	if err := v.authorize(caller); err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, ledger.ErrInvalidAmount
	}
	available, err := v.AvailableLiquidity()
	if err != nil {
		return nil, err
	}
	if amount.Gt(available) {
		return nil, fmt.Errorf("%w: staking %s, available %s", withdrawal.ErrInsufficientLiquidity, amount.Dec(), available.Dec())
	}

	delegated, err := v.validators.Delegate(amount, v.config.MaxValidatorsPerStake)
	if err != nil {
		return nil, err
	}
	staked, err := v.TotalStaked()
	if err != nil {
		return nil, err
	}
	newStaked, err := safemath.Add256(staked, amount)
	if err != nil {
		return nil, fmt.Errorf("staked after stake: %w", err)
	}
	if err := state.PutAmount(v.db, stakedKey, newStaked); err != nil {
		return nil, err
	}
	err = v.events.Emit(events.NewEvent(
		events.TypeStaked,
		events.Amount(events.AttributeKeyAmount, amount),
		events.NewAttribute(events.AttributeKeyValidators, strconv.Itoa(len(delegated))),
	))
	if err != nil {
		return nil, err
	}

	v.log.Info("custody staked",
		log.String("amount", amount.Dec()),
		log.Int("validators", len(delegated)),
	)
	return delegated, nil
}

// Unstake returns amount of staked custody to liquidity.
func (v *Vault) Unstake(caller ids.ShortID, amount *uint256.Int) error {
	if err := v.authorize(caller); err != nil {
		return err
	}
	if amount.IsZero() {
		return ledger.ErrInvalidAmount
	}
	staked, err := v.TotalStaked()
	if err != nil {
		return err
	}
	if amount.Gt(staked) {
		return fmt.Errorf("%w: unstaking %s, staked %s", ErrInsufficientStaked, amount.Dec(), staked.Dec())
	}

	if err := v.validators.Undelegate(amount); err != nil {
		return err
	}
	if err := state.PutAmount(v.db, stakedKey, new(uint256.Int).Sub(staked, amount)); err != nil {
		return err
	}
	err = v.events.Emit(events.NewEvent(
		events.TypeUnstaked,
		events.Amount(events.AttributeKeyAmount, amount),
	))
	if err != nil {
		return err
	}

	v.log.Info("custody unstaked",
		log.String("amount", amount.Dec()),
	)
	return nil
}

func (v *Vault) AddValidator(caller, addr ids.ShortID, score uint32) (*validators.Validator, error) {
	if err := v.authorize(caller); err != nil {
		return nil, err
	}
	val, err := v.validators.Add(addr, score, v.clock.Unix())
	if err != nil {
		return nil, err
	}

	v.log.Info("validator added",
		log.Stringer("validator", addr),
		log.Uint32("score", score),
	)
	return val, nil
}

func (v *Vault) UpdateValidator(caller, addr ids.ShortID, score, uptime uint32) (*validators.Validator, error) {
	if err := v.authorize(caller); err != nil {
		return nil, err
	}
	val, err := v.validators.Update(addr, score, uptime, v.clock.Unix())
	if err != nil {
		return nil, err
	}

	v.log.Info("validator updated",
		log.Stringer("validator", addr),
		log.Uint32("score", score),
		log.Uint32("uptime", uptime),
	)
	return val, nil
}
