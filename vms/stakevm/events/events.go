// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events is the engine's append-only change log.
package events

import (
	"github.com/holiman/uint256"

	"github.com/luxfi/ids"
)

// Change record types
const (
	TypeInitialized         = "initialized"
	TypeTransfer            = "transfer"
	TypeApproval            = "approval"
	TypeDeposit             = "deposit"
	TypeRateUpdate          = "rate_update"
	TypeRewardsCompounded   = "rewards_compounded"
	TypeWithdrawalRequested = "withdrawal_requested"
	TypeWithdrawalClaimed   = "withdrawal_claimed"
	TypeFeeUpdated          = "fee_updated"
	TypeTreasuryUpdated     = "treasury_updated"
	TypePaused              = "paused"
	TypeUnpaused            = "unpaused"
	TypeStaked              = "staked"
	TypeUnstaked            = "unstaked"
	TypeValidatorAdded      = "validator_added"
	TypeValidatorUpdated    = "validator_updated"
)

// Attribute keys
const (
	AttributeKeyFrom        = "from"
	AttributeKeyTo          = "to"
	AttributeKeyOwner       = "owner"
	AttributeKeySpender     = "spender"
	AttributeKeyUser        = "user"
	AttributeKeyTreasury    = "treasury"
	AttributeKeyValidator   = "validator"
	AttributeKeyValidators  = "validator_count"
	AttributeKeyAmount      = "amount"
	AttributeKeyBaseAmount  = "base_amount"
	AttributeKeyClaimAmount = "claim_amount"
	AttributeKeyRate        = "rate"
	AttributeKeyOldRate     = "old_rate"
	AttributeKeyNewRate     = "new_rate"
	AttributeKeyCustody     = "total_custody"
	AttributeKeyBacking     = "backing"
	AttributeKeySupply      = "total_supply"
	AttributeKeyYield       = "total_yield"
	AttributeKeyFee         = "protocol_fee"
	AttributeKeyUserYield   = "user_yield"
	AttributeKeyRequestID   = "request_id"
	AttributeKeyUnlockTime  = "unlock_time"
	AttributeKeyFeeBps      = "fee_bps"
	AttributeKeyUnbonding   = "unbonding_period"
	AttributeKeyScore       = "score"
	AttributeKeyUptime      = "uptime"
)

// Attribute is a single key/value pair of a change record.
type Attribute struct {
	Key   string `serialize:"true" json:"key"`
	Value string `serialize:"true" json:"value"`
}

// Event is a structured change record. Seq and Timestamp are assigned when
// the record is appended to the log.
type Event struct {
	Seq        uint64      `serialize:"true" json:"seq"`
	Type       string      `serialize:"true" json:"type"`
	Timestamp  uint64      `serialize:"true" json:"timestamp"`
	Attributes []Attribute `serialize:"true" json:"attributes"`
}

func NewEvent(typ string, attrs ...Attribute) Event {
	return Event{
		Type:       typ,
		Attributes: attrs,
	}
}

func NewAttribute(key, value string) Attribute {
	return Attribute{
		Key:   key,
		Value: value,
	}
}

// Address renders an identity. The empty identity renders as "" so that
// mints and burns carry no counterparty.
func Address(key string, addr ids.ShortID) Attribute {
	if addr == ids.ShortEmpty {
		return NewAttribute(key, "")
	}
	return NewAttribute(key, addr.String())
}

func Amount(key string, amount *uint256.Int) Attribute {
	return NewAttribute(key, amount.Dec())
}

// Get returns the value of the first attribute with the given key.
func (e Event) Get(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Emitter receives the change records produced while a call executes.
type Emitter interface {
	Emit(Event) error
}
