// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/luxfi/ids"

	"github.com/luxfi/stakevm/vms/stakevm/config"
	"github.com/luxfi/stakevm/vms/stakevm/events"
	"github.com/luxfi/stakevm/vms/stakevm/rate"
	"github.com/luxfi/stakevm/vms/stakevm/state"
	"github.com/luxfi/stakevm/vms/stakevm/validators"
	"github.com/luxfi/stakevm/vms/stakevm/withdrawal"
)

// FeeConfig is the owner-controlled fee policy.
type FeeConfig struct {
	PerformanceFeeBps uint32      `json:"performanceFeeBps"`
	Treasury          ids.ShortID `json:"treasury"`
}

// TokenInfo describes the claim token.
type TokenInfo struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

func (v *Vault) TokenInfo() TokenInfo {
	return TokenInfo{
		Name:     v.config.TokenName,
		Symbol:   v.config.TokenSymbol,
		Decimals: config.Decimals,
	}
}

func (v *Vault) BalanceOf(addr ids.ShortID) (*uint256.Int, error) {
	return v.ledger.BalanceOf(addr)
}

func (v *Vault) Allowance(owner, spender ids.ShortID) (*uint256.Int, error) {
	return v.ledger.Allowance(owner, spender)
}

func (v *Vault) TotalSupply() (*uint256.Int, error) {
	return v.ledger.TotalSupply()
}

// ExchangeRate returns base units per claim token, scaled by rate.Scale.
func (v *Vault) ExchangeRate() (*uint256.Int, error) {
	return v.rate.Rate()
}

// TVL returns the base asset in custody, staked or not.
func (v *Vault) TVL() (*uint256.Int, error) {
	return state.GetAmount(v.db, custodyKey)
}

func (v *Vault) TotalStaked() (*uint256.Int, error) {
	return state.GetAmount(v.db, stakedKey)
}

// AvailableLiquidity returns the part of the custody that is not staked.
func (v *Vault) AvailableLiquidity() (*uint256.Int, error) {
	custodyAmount, err := v.TVL()
	if err != nil {
		return nil, err
	}
	staked, err := v.TotalStaked()
	if err != nil {
		return nil, err
	}
	if custodyAmount.Lt(staked) {
		return nil, fmt.Errorf("%w: staked %s exceeds custody %s", state.ErrCorrupted, staked.Dec(), custodyAmount.Dec())
	}
	return new(uint256.Int).Sub(custodyAmount, staked), nil
}

// PendingWithdrawals returns the base asset owed to unclaimed requests.
func (v *Vault) PendingWithdrawals() (*uint256.Int, error) {
	return v.queue.Pending()
}

func (v *Vault) ToClaimTokens(baseAmount *uint256.Int) (*uint256.Int, error) {
	return v.rate.ToClaimTokens(baseAmount)
}

func (v *Vault) ToBaseAsset(claimAmount *uint256.Int) (*uint256.Int, error) {
	return v.rate.ToBaseAsset(claimAmount)
}

// UserValue returns the base asset value of addr's claim tokens.
func (v *Vault) UserValue(addr ids.ShortID) (*uint256.Int, error) {
	balance, err := v.ledger.BalanceOf(addr)
	if err != nil {
		return nil, err
	}
	return v.rate.ToBaseAsset(balance)
}

// APY returns the yield holders earn after the performance fee, in basis
// points.
func (v *Vault) APY() (uint32, error) {
	feeBps, err := v.PerformanceFee()
	if err != nil {
		return 0, err
	}
	gross := uint64(v.config.BaseAPYBps)
	return uint32(gross * (rate.BpsDenominator - uint64(feeBps)) / rate.BpsDenominator), nil
}

func (v *Vault) WithdrawalRequest(id uint64) (*withdrawal.Request, error) {
	return v.queue.Get(id)
}

// UserWithdrawals returns the request ids of addr, oldest first.
func (v *Vault) UserWithdrawals(addr ids.ShortID) ([]uint64, error) {
	return v.queue.UserRequests(addr)
}

// ClaimableWithdrawals returns the requests addr could claim now, liquidity
// permitting.
func (v *Vault) ClaimableWithdrawals(addr ids.ShortID) ([]*withdrawal.Request, error) {
	return v.queue.Claimable(addr, v.clock.Unix())
}

func (v *Vault) PerformanceFee() (uint32, error) {
	fee, err := state.GetUInt64(v.db, feeKey)
	return uint32(fee), err
}

func (v *Vault) Treasury() (ids.ShortID, error) {
	return state.GetShortID(v.db, treasuryKey)
}

func (v *Vault) FeeConfig() (*FeeConfig, error) {
	feeBps, err := v.PerformanceFee()
	if err != nil {
		return nil, err
	}
	treasury, err := v.Treasury()
	if err != nil {
		return nil, err
	}
	return &FeeConfig{
		PerformanceFeeBps: feeBps,
		Treasury:          treasury,
	}, nil
}

func (v *Vault) IsPaused() (bool, error) {
	return state.GetBool(v.db, pausedKey)
}

func (v *Vault) IsInitialized() (bool, error) {
	return state.GetBool(v.db, initializedKey)
}

func (v *Vault) Owner() (ids.ShortID, error) {
	return state.GetShortID(v.db, ownerKey)
}

// Events returns up to limit change records starting at sequence number from.
func (v *Vault) Events(from uint64, limit int) ([]events.Event, error) {
	return v.events.Range(from, limit)
}

// Validators returns every registered validator, best first.
func (v *Vault) Validators() ([]*validators.Validator, error) {
	return v.validators.List()
}

// CheckInvariants verifies the accounting invariants that must hold between
// calls.
func (v *Vault) CheckInvariants() error {
	if err := v.ledger.Invariant(); err != nil {
		return err
	}
	if _, err := v.AvailableLiquidity(); err != nil {
		return err
	}
	staked, err := v.TotalStaked()
	if err != nil {
		return err
	}
	delegated, err := v.validators.TotalStake()
	if err != nil {
		return err
	}
	if !staked.Eq(delegated) {
		return fmt.Errorf("%w: staked %s, delegated %s", state.ErrCorrupted, staked.Dec(), delegated.Dec())
	}
	custodyAmount, err := v.TVL()
	if err != nil {
		return err
	}
	pending, err := v.queue.Pending()
	if err != nil {
		return err
	}
	if custodyAmount.Lt(pending) {
		return fmt.Errorf("%w: pending %s exceeds custody %s", state.ErrCorrupted, pending.Dec(), custodyAmount.Dec())
	}

	// Outstanding claim tokens must be fully backed by the custody that is
	// not already owed to withdrawal requests.
	supply, err := v.ledger.TotalSupply()
	if err != nil {
		return err
	}
	owed, err := v.rate.ToBaseAsset(supply)
	if err != nil {
		return err
	}
	backing := new(uint256.Int).Sub(custodyAmount, pending)
	if backing.Lt(owed) {
		return fmt.Errorf("%w: claim tokens worth %s backed by %s", state.ErrCorrupted, owed.Dec(), backing.Dec())
	}
	return nil
}
