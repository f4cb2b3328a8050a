// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validators keeps the set of validators the vault delegates to and
// how much of the custody is attributed to each of them.
package validators

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/btree"
	"github.com/holiman/uint256"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/stakevm/vms/stakevm/events"
	"github.com/luxfi/stakevm/vms/stakevm/state"
	"github.com/luxfi/stakevm/vms/stakevm/vmerrs"

	safemath "github.com/luxfi/stakevm/utils/math"
)

const (
	MaxUptime = 100

	defaultTreeDegree = 2
)

var (
	ErrValidatorExists   = vmerrs.New(vmerrs.State, "ValidatorExists", "validator already registered")
	ErrValidatorNotFound = vmerrs.New(vmerrs.Validation, "ValidatorNotFound", "validator not registered")
	ErrInvalidUptime     = vmerrs.New(vmerrs.Validation, "InvalidUptime", "uptime must be a percentage")
	ErrInvalidAddress    = vmerrs.New(vmerrs.Validation, "InvalidAddress", "empty validator address")
	ErrNoValidators      = vmerrs.New(vmerrs.State, "NoValidators", "no validators available")
)

// Registry stores one record per validator, keyed by address.
type Registry struct {
	db      database.Database
	emitter events.Emitter
}

func New(db database.Database, emitter events.Emitter) *Registry {
	return &Registry{
		db:      db,
		emitter: emitter,
	}
}

// Add registers addr with the initial score. New validators start with full
// uptime and no stake.
func (r *Registry) Add(addr ids.ShortID, score uint32, now uint64) (*Validator, error) {
	if addr == ids.ShortEmpty {
		return nil, ErrInvalidAddress
	}
	has, err := r.db.Has(addr[:])
	if err != nil {
		return nil, err
	}
	if has {
		return nil, fmt.Errorf("%w: %s", ErrValidatorExists, addr)
	}

	v := &Validator{
		Address: addr,
		Score:   score,
		Uptime:  MaxUptime,
		Stake:   new(uint256.Int),
		Updated: now,
	}
	if err := r.put(v); err != nil {
		return nil, err
	}
	err = r.emitter.Emit(events.NewEvent(
		events.TypeValidatorAdded,
		events.Address(events.AttributeKeyValidator, addr),
		events.NewAttribute(events.AttributeKeyScore, strconv.FormatUint(uint64(score), 10)),
	))
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Update replaces the score and uptime of a registered validator.
func (r *Registry) Update(addr ids.ShortID, score, uptime uint32, now uint64) (*Validator, error) {
	if uptime > MaxUptime {
		return nil, fmt.Errorf("%w: %d", ErrInvalidUptime, uptime)
	}
	v, err := r.Get(addr)
	if err != nil {
		return nil, err
	}

	v.Score = score
	v.Uptime = uptime
	v.Updated = now
	if err := r.put(v); err != nil {
		return nil, err
	}
	err = r.emitter.Emit(events.NewEvent(
		events.TypeValidatorUpdated,
		events.Address(events.AttributeKeyValidator, addr),
		events.NewAttribute(events.AttributeKeyScore, strconv.FormatUint(uint64(score), 10)),
		events.NewAttribute(events.AttributeKeyUptime, strconv.FormatUint(uint64(uptime), 10)),
	))
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Get returns the validator registered at addr.
func (r *Registry) Get(addr ids.ShortID) (*Validator, error) {
	b, err := r.db.Get(addr[:])
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrValidatorNotFound, addr)
	}
	if err != nil {
		return nil, err
	}
	return parse(addr, b)
}

// List returns every registered validator, best first.
func (r *Registry) List() ([]*Validator, error) {
	return r.Top(-1)
}

// Top returns the n best validators. A negative n returns all of them.
func (r *Registry) Top(n int) ([]*Validator, error) {
	tree, err := r.load()
	if err != nil {
		return nil, err
	}
	if n < 0 || n > tree.Len() {
		n = tree.Len()
	}
	out := make([]*Validator, 0, n)
	tree.Ascend(func(v *Validator) bool {
		if len(out) == n {
			return false
		}
		out = append(out, v)
		return true
	})
	return out, nil
}

// Delegate splits amount evenly across the best max validators. Any
// remainder of the split goes to the best one. The validators that received
// stake are returned.
func (r *Registry) Delegate(amount *uint256.Int, max int) ([]*Validator, error) {
	top, err := r.Top(max)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return nil, ErrNoValidators
	}

	count := uint256.NewInt(uint64(len(top)))
	share, remainder := new(uint256.Int).DivMod(amount, count, new(uint256.Int))
	for i, v := range top {
		add := share
		if i == 0 {
			add = new(uint256.Int).Add(share, remainder)
		}
		v.Stake, err = safemath.Add256(v.Stake, add)
		if err != nil {
			return nil, fmt.Errorf("stake of %s: %w", v.Address, err)
		}
		if err := r.put(v); err != nil {
			return nil, err
		}
	}
	return top, nil
}

// Undelegate removes amount of stake, draining the worst validators first.
func (r *Registry) Undelegate(amount *uint256.Int) error {
	all, err := r.List()
	if err != nil {
		return err
	}

	left := new(uint256.Int).Set(amount)
	for i := len(all) - 1; i >= 0 && !left.IsZero(); i-- {
		v := all[i]
		if v.Stake.IsZero() {
			continue
		}
		take := left
		if v.Stake.Lt(left) {
			take = v.Stake
		}
		left = new(uint256.Int).Sub(left, take)
		v.Stake = new(uint256.Int).Sub(v.Stake, take)
		if err := r.put(v); err != nil {
			return err
		}
	}
	if !left.IsZero() {
		return fmt.Errorf("undelegate %s: %w", amount.Dec(), safemath.ErrUnderflow)
	}
	return nil
}

// TotalStake returns the sum of the stake attributed to every validator.
func (r *Registry) TotalStake() (*uint256.Int, error) {
	all, err := r.List()
	if err != nil {
		return nil, err
	}
	total := new(uint256.Int)
	for _, v := range all {
		total, err = safemath.Add256(total, v.Stake)
		if err != nil {
			return nil, err
		}
	}
	return total, nil
}

func (r *Registry) load() (*btree.BTreeG[*Validator], error) {
	it := r.db.NewIterator()
	defer it.Release()

	tree := btree.NewG(defaultTreeDegree, (*Validator).Less)
	for it.Next() {
		addr, err := ids.ToShortID(it.Key())
		if err != nil {
			return nil, fmt.Errorf("%w: validator key %x", state.ErrCorrupted, it.Key())
		}
		v, err := parse(addr, it.Value())
		if err != nil {
			return nil, err
		}
		tree.ReplaceOrInsert(v)
	}
	return tree, it.Error()
}

func (r *Registry) put(v *Validator) error {
	b, err := state.Codec.Marshal(state.CodecVersion, &record{
		Score:   v.Score,
		Uptime:  v.Uptime,
		Stake:   v.Stake.Bytes(),
		Updated: v.Updated,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal validator %s: %w", v.Address, err)
	}
	return r.db.Put(v.Address[:], b)
}

func parse(addr ids.ShortID, b []byte) (*Validator, error) {
	var rec record
	if _, err := state.Codec.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal validator %s: %w", addr, err)
	}
	return &Validator{
		Address: addr,
		Score:   rec.Score,
		Uptime:  rec.Uptime,
		Stake:   new(uint256.Int).SetBytes(rec.Stake),
		Updated: rec.Updated,
	}, nil
}
