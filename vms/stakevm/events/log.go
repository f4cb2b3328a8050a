// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"errors"
	"fmt"

	"github.com/luxfi/database"

	"github.com/luxfi/stakevm/utils/timer/mockable"
	"github.com/luxfi/stakevm/vms/stakevm/state"
)

var (
	_ Emitter = (*Log)(nil)

	nextSeqKey = []byte("next sequence")
)

// Log appends change records to its table. Records are never rewritten.
type Log struct {
	db    database.Database
	clock *mockable.Clock
}

func NewLog(db database.Database, clock *mockable.Clock) *Log {
	return &Log{
		db:    db,
		clock: clock,
	}
}

// Emit stamps the record with the next sequence number and the current time
// and appends it.
func (l *Log) Emit(e Event) error {
	seq, err := state.GetUInt64(l.db, nextSeqKey)
	if err != nil {
		return fmt.Errorf("failed to read event sequence: %w", err)
	}
	e.Seq = seq
	e.Timestamp = l.clock.Unix()

	b, err := state.Codec.Marshal(state.CodecVersion, &e)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", e.Type, err)
	}
	if err := l.db.Put(database.PackUInt64(seq), b); err != nil {
		return err
	}
	return database.PutUInt64(l.db, nextSeqKey, seq+1)
}

// Len returns the number of records in the log.
func (l *Log) Len() (uint64, error) {
	return state.GetUInt64(l.db, nextSeqKey)
}

// Range returns up to limit records starting at sequence number from.
func (l *Log) Range(from uint64, limit int) ([]Event, error) {
	next, err := l.Len()
	if err != nil {
		return nil, err
	}

	var out []Event
	for seq := from; seq < next && len(out) < limit; seq++ {
		b, err := l.db.Get(database.PackUInt64(seq))
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: missing event %d", state.ErrCorrupted, seq)
		}
		if err != nil {
			return nil, err
		}
		var e Event
		if _, err := state.Codec.Unmarshal(b, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event %d: %w", seq, err)
		}
		out = append(out, e)
	}
	return out, nil
}
