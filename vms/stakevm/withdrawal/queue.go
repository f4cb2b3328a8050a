// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package withdrawal escrows redemption requests behind the unbonding period.
//
// A request moves from requested to claimed exactly once. Requests are never
// cancelled or deleted; the table is an append-only log keyed by a
// monotonically increasing id.
package withdrawal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/holiman/uint256"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/stakevm/vms/stakevm/events"
	"github.com/luxfi/stakevm/vms/stakevm/state"
	"github.com/luxfi/stakevm/vms/stakevm/vmerrs"

	safemath "github.com/luxfi/stakevm/utils/math"
)

var (
	ErrNotFound              = vmerrs.New(vmerrs.Validation, "NotFound", "withdrawal request not found")
	ErrNotOwner              = vmerrs.New(vmerrs.Authorization, "NotOwner", "not the requester of this withdrawal")
	ErrAlreadyClaimed        = vmerrs.New(vmerrs.State, "AlreadyClaimed", "withdrawal already claimed")
	ErrStillLocked           = vmerrs.New(vmerrs.State, "StillLocked", "unbonding period not complete")
	ErrInsufficientLiquidity = vmerrs.New(vmerrs.Resource, "InsufficientLiquidity", "insufficient liquidity")

	nextIDKey  = []byte("next id")
	pendingKey = []byte("pending")
	empty      = []byte{}
)

// Tables are the parts of the state owned by the queue.
type Tables struct {
	Requests     database.Database
	UserRequests database.Database
	Meta         database.Database
}

type Queue struct {
	requests     database.Database
	userRequests database.Database
	meta         database.Database

	unbonding uint64
	emitter   events.Emitter
}

func New(tables Tables, unbondingPeriod time.Duration, emitter events.Emitter) *Queue {
	return &Queue{
		requests:     tables.Requests,
		userRequests: tables.UserRequests,
		meta:         tables.Meta,
		unbonding:    uint64(unbondingPeriod / time.Second),
		emitter:      emitter,
	}
}

// UnbondingPeriod is the delay between a request and its unlock time.
func (q *Queue) UnbondingPeriod() time.Duration {
	return time.Duration(q.unbonding) * time.Second
}

// Request escrows a payout of baseAmount for claimAmount already burned from
// requester. The payout unlocks one unbonding period after now.
func (q *Queue) Request(requester ids.ShortID, claimAmount, baseAmount *uint256.Int, now uint64) (*Request, error) {
	unlock, err := safemath.Add(now, q.unbonding)
	if err != nil {
		return nil, fmt.Errorf("unlock time: %w", err)
	}
	id, err := state.GetUInt64(q.meta, nextIDKey)
	if err != nil {
		return nil, err
	}
	pending, err := q.Pending()
	if err != nil {
		return nil, err
	}
	newPending, err := safemath.Add256(pending, baseAmount)
	if err != nil {
		return nil, fmt.Errorf("pending withdrawals: %w", err)
	}

	r := &Request{
		ID:          id,
		Requester:   requester,
		ClaimAmount: claimAmount,
		BaseAmount:  baseAmount,
		RequestTime: now,
		UnlockTime:  unlock,
	}
	if err := q.put(r); err != nil {
		return nil, err
	}
	if err := q.userRequests.Put(userRequestKey(requester, id), empty); err != nil {
		return nil, err
	}
	if err := database.PutUInt64(q.meta, nextIDKey, id+1); err != nil {
		return nil, err
	}
	if err := state.PutAmount(q.meta, pendingKey, newPending); err != nil {
		return nil, err
	}

	err = q.emitter.Emit(events.NewEvent(
		events.TypeWithdrawalRequested,
		events.NewAttribute(events.AttributeKeyRequestID, strconv.FormatUint(id, 10)),
		events.Address(events.AttributeKeyUser, requester),
		events.Amount(events.AttributeKeyClaimAmount, claimAmount),
		events.Amount(events.AttributeKeyBaseAmount, baseAmount),
		events.NewAttribute(events.AttributeKeyUnlockTime, strconv.FormatUint(unlock, 10)),
	))
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Claim marks request id as claimed by caller. available is the base asset
// that can be paid out right now. The returned request carries the payout.
func (q *Queue) Claim(id uint64, caller ids.ShortID, now uint64, available *uint256.Int) (*Request, error) {
	r, err := q.Get(id)
	if err != nil {
		return nil, err
	}
	if r.Requester != caller {
		return nil, ErrNotOwner
	}
	if r.Claimed {
		return nil, ErrAlreadyClaimed
	}
	if !r.Unlocked(now) {
		return nil, fmt.Errorf("%w: unlocks at %d, now %d", ErrStillLocked, r.UnlockTime, now)
	}
	if r.BaseAmount.Gt(available) {
		return nil, fmt.Errorf("%w: owed %s, available %s", ErrInsufficientLiquidity, r.BaseAmount.Dec(), available.Dec())
	}
	pending, err := q.Pending()
	if err != nil {
		return nil, err
	}
	newPending, err := safemath.Sub256(pending, r.BaseAmount)
	if err != nil {
		return nil, fmt.Errorf("pending withdrawals: %w", err)
	}

	r.Claimed = true
	if err := q.put(r); err != nil {
		return nil, err
	}
	if err := state.PutAmount(q.meta, pendingKey, newPending); err != nil {
		return nil, err
	}

	err = q.emitter.Emit(events.NewEvent(
		events.TypeWithdrawalClaimed,
		events.NewAttribute(events.AttributeKeyRequestID, strconv.FormatUint(id, 10)),
		events.Address(events.AttributeKeyUser, caller),
		events.Amount(events.AttributeKeyBaseAmount, r.BaseAmount),
	))
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns request id.
func (q *Queue) Get(id uint64) (*Request, error) {
	b, err := q.requests.Get(database.PackUInt64(id))
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var rec record
	if _, err := state.Codec.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal withdrawal %d: %w", id, err)
	}
	return rec.request(id), nil
}

// UserRequests returns the ids of every request made by addr, oldest first.
func (q *Queue) UserRequests(addr ids.ShortID) ([]uint64, error) {
	it := q.userRequests.NewIteratorWithPrefix(addr[:])
	defer it.Release()

	var out []uint64
	for it.Next() {
		key := it.Key()
		if len(key) != ids.ShortIDLen+database.Uint64Size {
			return nil, fmt.Errorf("%w: user request key %x", state.ErrCorrupted, key)
		}
		out = append(out, binary.BigEndian.Uint64(key[ids.ShortIDLen:]))
	}
	return out, it.Error()
}

// Claimable returns the unclaimed requests of addr that are unlocked at now.
func (q *Queue) Claimable(addr ids.ShortID, now uint64) ([]*Request, error) {
	requestIDs, err := q.UserRequests(addr)
	if err != nil {
		return nil, err
	}
	var out []*Request
	for _, id := range requestIDs {
		r, err := q.Get(id)
		if err != nil {
			return nil, err
		}
		if !r.Claimed && r.Unlocked(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Pending returns the base asset owed to unclaimed requests.
func (q *Queue) Pending() (*uint256.Int, error) {
	return state.GetAmount(q.meta, pendingKey)
}

// Len returns the number of requests ever made.
func (q *Queue) Len() (uint64, error) {
	return state.GetUInt64(q.meta, nextIDKey)
}

func (q *Queue) put(r *Request) error {
	b, err := state.Codec.Marshal(state.CodecVersion, newRecord(r))
	if err != nil {
		return fmt.Errorf("failed to marshal withdrawal %d: %w", r.ID, err)
	}
	return q.requests.Put(database.PackUInt64(r.ID), b)
}

func userRequestKey(addr ids.ShortID, id uint64) []byte {
	key := make([]byte, 0, ids.ShortIDLen+database.Uint64Size)
	key = append(key, addr[:]...)
	return append(key, database.PackUInt64(id)...)
}
