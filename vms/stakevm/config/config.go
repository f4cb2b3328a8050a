// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config defines configuration types for the staking VM.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/stakevm/utils/units"
)

const (
	// Decimals is the precision of both the base asset and the claim token.
	Decimals = 9

	// MaxPerformanceFeeBps is the highest protocol fee that can be charged
	// on yield (10%).
	MaxPerformanceFeeBps = 1_000
)

var (
	ErrEmptyTokenName         = errors.New("token name is empty")
	ErrEmptyTokenSymbol       = errors.New("token symbol is empty")
	ErrZeroMinDeposit         = errors.New("minimum deposit must be positive")
	ErrNegativeUnbonding      = errors.New("unbonding period is negative")
	ErrPerformanceFeeTooHigh  = errors.New("performance fee exceeds maximum")
	ErrZeroValidatorsPerStake = errors.New("max validators per stake must be positive")
)

// Default is used for every value not set in the config bytes.
var Default = Config{
	TokenName:             "Staked CSPR",
	TokenSymbol:           "stCSPR",
	MinDeposit:            10 * units.CSPR,
	UnbondingPeriod:       7 * 24 * time.Hour,
	PerformanceFeeBps:     500, // 5%
	BaseAPYBps:            950, // 9.5%
	MaxValidatorsPerStake: 5,
}

// Config contains the parameters fixed when the vault is initialized.
type Config struct {
	TokenName   string `json:"tokenName"`
	TokenSymbol string `json:"tokenSymbol"`

	// MinDeposit is the smallest deposit accepted, in base units
	MinDeposit uint64 `json:"minDeposit"`
	// UnbondingPeriod is the delay between a withdrawal request and its claim
	UnbondingPeriod time.Duration `json:"unbondingPeriod"`
	// PerformanceFeeBps is the initial protocol fee on yield in basis points
	PerformanceFeeBps uint32 `json:"performanceFeeBps"`
	// BaseAPYBps is the gross staking yield reported before fees
	BaseAPYBps uint32 `json:"baseAPYBps"`

	MaxValidatorsPerStake int `json:"maxValidatorsPerStake"`
}

// GetConfig returns a Config from the provided json encoded bytes. If a
// configuration is not provided in the bytes, the default value is set. If
// empty bytes are provided, the default config is returned.
func GetConfig(b []byte) (*Config, error) {
	c := Default

	// An empty slice is invalid json, so handle that as a special case.
	if len(b) == 0 {
		return &c, nil
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, c.Verify()
}

func (c *Config) Verify() error {
	switch {
	case c.TokenName == "":
		return ErrEmptyTokenName
	case c.TokenSymbol == "":
		return ErrEmptyTokenSymbol
	case c.MinDeposit == 0:
		return ErrZeroMinDeposit
	case c.UnbondingPeriod < 0:
		return fmt.Errorf("%w: %s", ErrNegativeUnbonding, c.UnbondingPeriod)
	case c.PerformanceFeeBps > MaxPerformanceFeeBps:
		return fmt.Errorf("%w: %d > %d", ErrPerformanceFeeTooHigh, c.PerformanceFeeBps, MaxPerformanceFeeBps)
	case c.MaxValidatorsPerStake <= 0:
		return ErrZeroValidatorsPerStake
	default:
		return nil
	}
}
