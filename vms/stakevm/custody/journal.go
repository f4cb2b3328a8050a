// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package custody

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/stakevm/utils/timer/mockable"
	"github.com/luxfi/stakevm/vms/stakevm/state"

	safemath "github.com/luxfi/stakevm/utils/math"
)

var (
	_ Custody = (*Journal)(nil)

	ErrInvalidAccount   = errors.New("custody account is empty")
	ErrInvalidAmount    = errors.New("custody amount is zero")
	ErrEntryNotFound    = errors.New("custody entry not found")
	ErrUnknownDirection = errors.New("unknown custody direction")

	nextEntryKey = []byte("next entry")
)

// Direction is the way base asset moved across the custody boundary.
type Direction uint8

const (
	// Inflow is base asset collected from a depositor.
	Inflow Direction = iota
	// Outflow is base asset released to a recipient.
	Outflow
)

func (d Direction) String() string {
	switch d {
	case Inflow:
		return "inflow"
	case Outflow:
		return "outflow"
	default:
		return "unknown"
	}
}

// Entry is a movement of base asset recorded by the Journal.
type Entry struct {
	Seq       uint64       `json:"seq"`
	Direction Direction    `json:"direction"`
	Account   ids.ShortID  `json:"account"`
	Amount    *uint256.Int `json:"amount"`
	Timestamp uint64       `json:"timestamp"`
}

type entryRecord struct {
	Direction uint8       `serialize:"true"`
	Account   ids.ShortID `serialize:"true"`
	Amount    []byte      `serialize:"true"`
	Timestamp uint64      `serialize:"true"`
}

// Journal records collections and releases in its own table. It shares the
// call's database, so an entry is only durable if the call that made it
// commits.
type Journal struct {
	db    database.Database
	clock *mockable.Clock
}

func NewJournal(db database.Database, clock *mockable.Clock) *Journal {
	return &Journal{
		db:    db,
		clock: clock,
	}
}

func (j *Journal) Collect(from ids.ShortID, amount *uint256.Int) error {
	return j.record(Inflow, from, amount)
}

func (j *Journal) Release(to ids.ShortID, amount *uint256.Int) error {
	return j.record(Outflow, to, amount)
}

func (j *Journal) record(direction Direction, account ids.ShortID, amount *uint256.Int) error {
	if account == ids.ShortEmpty {
		return ErrInvalidAccount
	}
	if amount.IsZero() {
		return ErrInvalidAmount
	}
	seq, err := state.GetUInt64(j.db, nextEntryKey)
	if err != nil {
		return err
	}
	b, err := state.Codec.Marshal(state.CodecVersion, &entryRecord{
		Direction: uint8(direction),
		Account:   account,
		Amount:    amount.Bytes(),
		Timestamp: j.clock.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s entry: %w", direction, err)
	}
	if err := j.db.Put(database.PackUInt64(seq), b); err != nil {
		return err
	}
	return database.PutUInt64(j.db, nextEntryKey, seq+1)
}

// Len returns the number of entries recorded.
func (j *Journal) Len() (uint64, error) {
	return state.GetUInt64(j.db, nextEntryKey)
}

// Get returns entry seq.
func (j *Journal) Get(seq uint64) (*Entry, error) {
	b, err := j.db.Get(database.PackUInt64(seq))
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrEntryNotFound, seq)
	}
	if err != nil {
		return nil, err
	}
	var rec entryRecord
	if _, err := state.Codec.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry %d: %w", seq, err)
	}
	direction := Direction(rec.Direction)
	if direction != Inflow && direction != Outflow {
		return nil, fmt.Errorf("%w: %d in entry %d", ErrUnknownDirection, rec.Direction, seq)
	}
	return &Entry{
		Seq:       seq,
		Direction: direction,
		Account:   rec.Account,
		Amount:    new(uint256.Int).SetBytes(rec.Amount),
		Timestamp: rec.Timestamp,
	}, nil
}

// Balance returns the base asset collected less the base asset released.
func (j *Journal) Balance() (*uint256.Int, error) {
	n, err := j.Len()
	if err != nil {
		return nil, err
	}
	in := new(uint256.Int)
	out := new(uint256.Int)
	for seq := uint64(0); seq < n; seq++ {
		e, err := j.Get(seq)
		if err != nil {
			return nil, err
		}
		if e.Direction == Inflow {
			in, err = safemath.Add256(in, e.Amount)
		} else {
			out, err = safemath.Add256(out, e.Amount)
		}
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", seq, err)
		}
	}
	balance, err := safemath.Sub256(in, out)
	if err != nil {
		return nil, fmt.Errorf("%w: released %s of %s collected", state.ErrCorrupted, out.Dec(), in.Dec())
	}
	return balance, nil
}
