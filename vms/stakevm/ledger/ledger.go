// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger keeps the claim token's balances, allowances and total
// supply.
package ledger

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/stakevm/vms/stakevm/events"
	"github.com/luxfi/stakevm/vms/stakevm/state"
	"github.com/luxfi/stakevm/vms/stakevm/vmerrs"

	safemath "github.com/luxfi/stakevm/utils/math"
)

var (
	ErrInvalidAmount         = vmerrs.New(vmerrs.Validation, "InvalidAmount", "amount must be greater than zero")
	ErrSelfTransfer          = vmerrs.New(vmerrs.Validation, "SelfTransfer", "cannot transfer to self")
	ErrSelfApprove           = vmerrs.New(vmerrs.Validation, "SelfApprove", "cannot approve self")
	ErrInsufficientBalance   = vmerrs.New(vmerrs.Resource, "InsufficientBalance", "insufficient balance")
	ErrInsufficientAllowance = vmerrs.New(vmerrs.Resource, "InsufficientAllowance", "insufficient allowance")

	ErrSupplyMismatch = errors.New("total supply does not match the sum of balances")

	supplyKey = []byte("supply")
)

// Tables are the parts of the state owned by the ledger.
type Tables struct {
	Balances   database.Database
	Allowances database.Database
	Meta       database.Database
}

// Ledger is the public face of the claim token: transfers, approvals and
// reads. Supply changes go through the Minter returned alongside it.
type Ledger struct {
	balances   database.Database
	allowances database.Database
	meta       database.Database
	emitter    events.Emitter
}

// Minter holds the privileged supply operations. Only the holder of the
// Minter returned by New can change the total supply.
type Minter struct {
	l *Ledger
}

func New(tables Tables, emitter events.Emitter) (*Ledger, *Minter) {
	l := &Ledger{
		balances:   tables.Balances,
		allowances: tables.Allowances,
		meta:       tables.Meta,
		emitter:    emitter,
	}
	return l, &Minter{l: l}
}

// BalanceOf returns the claim token balance of addr.
func (l *Ledger) BalanceOf(addr ids.ShortID) (*uint256.Int, error) {
	return state.GetAmount(l.balances, addr[:])
}

// Allowance returns the amount spender may still move out of owner's balance.
func (l *Ledger) Allowance(owner, spender ids.ShortID) (*uint256.Int, error) {
	return state.GetAmount(l.allowances, allowanceKey(owner, spender))
}

// TotalSupply returns the number of claim tokens in existence.
func (l *Ledger) TotalSupply() (*uint256.Int, error) {
	return state.GetAmount(l.meta, supplyKey)
}

// Transfer moves amount from from to to.
func (l *Ledger) Transfer(from, to ids.ShortID, amount *uint256.Int) error {
	if amount.IsZero() {
		return ErrInvalidAmount
	}
	if from == to {
		return ErrSelfTransfer
	}
	return l.move(from, to, amount)
}

// Approve sets the allowance of spender over owner's balance. A zero amount
// clears it.
func (l *Ledger) Approve(owner, spender ids.ShortID, amount *uint256.Int) error {
	if owner == spender {
		return ErrSelfApprove
	}
	if err := state.PutAmount(l.allowances, allowanceKey(owner, spender), amount); err != nil {
		return err
	}
	return l.emitter.Emit(events.NewEvent(
		events.TypeApproval,
		events.Address(events.AttributeKeyOwner, owner),
		events.Address(events.AttributeKeySpender, spender),
		events.Amount(events.AttributeKeyAmount, amount),
	))
}

// TransferFrom moves amount from owner to to on behalf of caller, consuming
// caller's allowance.
func (l *Ledger) TransferFrom(caller, owner, to ids.ShortID, amount *uint256.Int) error {
	if amount.IsZero() {
		return ErrInvalidAmount
	}
	if owner == to {
		return ErrSelfTransfer
	}

	key := allowanceKey(owner, caller)
	allowance, err := state.GetAmount(l.allowances, key)
	if err != nil {
		return err
	}
	if allowance.Lt(amount) {
		return fmt.Errorf("%w: approved %s, requested %s", ErrInsufficientAllowance, allowance.Dec(), amount.Dec())
	}
	balance, err := l.BalanceOf(owner)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance.Dec(), amount.Dec())
	}

	remaining := new(uint256.Int).Sub(allowance, amount)
	if err := state.PutAmount(l.allowances, key, remaining); err != nil {
		return err
	}
	return l.move(owner, to, amount)
}

func (l *Ledger) move(from, to ids.ShortID, amount *uint256.Int) error {
	fromBalance, err := l.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBalance.Dec(), amount.Dec())
	}
	toBalance, err := l.BalanceOf(to)
	if err != nil {
		return err
	}
	newToBalance, err := safemath.Add256(toBalance, amount)
	if err != nil {
		return err
	}

	if err := state.PutAmount(l.balances, from[:], new(uint256.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	if err := state.PutAmount(l.balances, to[:], newToBalance); err != nil {
		return err
	}
	return l.emitTransfer(from, to, amount)
}

func (l *Ledger) emitTransfer(from, to ids.ShortID, amount *uint256.Int) error {
	return l.emitter.Emit(events.NewEvent(
		events.TypeTransfer,
		events.Address(events.AttributeKeyFrom, from),
		events.Address(events.AttributeKeyTo, to),
		events.Amount(events.AttributeKeyAmount, amount),
	))
}

// Mint creates amount new claim tokens owned by to.
func (m *Minter) Mint(to ids.ShortID, amount *uint256.Int) error {
	if amount.IsZero() {
		return ErrInvalidAmount
	}
	l := m.l
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	newSupply, err := safemath.Add256(supply, amount)
	if err != nil {
		return err
	}
	balance, err := l.BalanceOf(to)
	if err != nil {
		return err
	}
	// balance <= supply, so this cannot overflow once the supply did not
	newBalance := new(uint256.Int).Add(balance, amount)

	if err := state.PutAmount(l.meta, supplyKey, newSupply); err != nil {
		return err
	}
	if err := state.PutAmount(l.balances, to[:], newBalance); err != nil {
		return err
	}
	return l.emitTransfer(ids.ShortEmpty, to, amount)
}

// Burn destroys amount claim tokens owned by from.
func (m *Minter) Burn(from ids.ShortID, amount *uint256.Int) error {
	if amount.IsZero() {
		return ErrInvalidAmount
	}
	l := m.l
	balance, err := l.BalanceOf(from)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance.Dec(), amount.Dec())
	}
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	newSupply, err := safemath.Sub256(supply, amount)
	if err != nil {
		return err
	}

	if err := state.PutAmount(l.meta, supplyKey, newSupply); err != nil {
		return err
	}
	if err := state.PutAmount(l.balances, from[:], new(uint256.Int).Sub(balance, amount)); err != nil {
		return err
	}
	return l.emitTransfer(from, ids.ShortEmpty, amount)
}

// Invariant checks that the total supply equals the sum of all balances.
func (l *Ledger) Invariant() error {
	sum := new(uint256.Int)
	it := l.balances.NewIterator()
	defer it.Release()

	for it.Next() {
		if len(it.Value()) != state.AmountLen {
			return fmt.Errorf("%w: balance at %x has %d bytes", state.ErrCorrupted, it.Key(), len(it.Value()))
		}
		balance := new(uint256.Int).SetBytes(it.Value())
		var overflow bool
		sum, overflow = sum.AddOverflow(sum, balance)
		if overflow {
			return fmt.Errorf("%w: sum of balances", safemath.ErrOverflow)
		}
	}
	if err := it.Error(); err != nil {
		return err
	}

	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	if !sum.Eq(supply) {
		return fmt.Errorf("%w: sum of balances %s, total supply %s", ErrSupplyMismatch, sum.Dec(), supply.Dec())
	}
	return nil
}

func allowanceKey(owner, spender ids.ShortID) []byte {
	key := make([]byte, 0, 2*ids.ShortIDLen)
	key = append(key, owner[:]...)
	return append(key, spender[:]...)
}
