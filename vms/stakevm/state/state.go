// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state lays out the engine's tables over a single versioned
// database so that every call commits or aborts as a unit.
package state

import (
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
)

var (
	BalancePrefix      = []byte("balance")
	AllowancePrefix    = []byte("allowance")
	LedgerPrefix       = []byte("ledger")
	RatePrefix         = []byte("rate")
	VaultPrefix        = []byte("vault")
	RequestPrefix      = []byte("request")
	UserRequestsPrefix = []byte("userRequests")
	QueuePrefix        = []byte("queue")
	ValidatorPrefix    = []byte("validator")
	EventPrefix        = []byte("event")
	CustodyPrefix      = []byte("custody")
)

// State owns the versioned view of the base database and hands each
// component only the tables it owns.
type State struct {
	baseDB *versiondb.Database

	Balances     database.Database
	Allowances   database.Database
	Ledger       database.Database
	Rate         database.Database
	Vault        database.Database
	Requests     database.Database
	UserRequests database.Database
	Queue        database.Database
	Validators   database.Database
	Events       database.Database
	Custody      database.Database
}

func New(db database.Database) *State {
	baseDB := versiondb.New(db)
	return &State{
		baseDB:       baseDB,
		Balances:     prefixdb.New(BalancePrefix, baseDB),
		Allowances:   prefixdb.New(AllowancePrefix, baseDB),
		Ledger:       prefixdb.New(LedgerPrefix, baseDB),
		Rate:         prefixdb.New(RatePrefix, baseDB),
		Vault:        prefixdb.New(VaultPrefix, baseDB),
		Requests:     prefixdb.New(RequestPrefix, baseDB),
		UserRequests: prefixdb.New(UserRequestsPrefix, baseDB),
		Queue:        prefixdb.New(QueuePrefix, baseDB),
		Validators:   prefixdb.New(ValidatorPrefix, baseDB),
		Events:       prefixdb.New(EventPrefix, baseDB),
		Custody:      prefixdb.New(CustodyPrefix, baseDB),
	}
}

// Commit writes every pending change to the base database.
func (s *State) Commit() error {
	defer s.Abort()
	return s.baseDB.Commit()
}

// Abort discards every change made since the last commit.
func (s *State) Abort() {
	s.baseDB.Abort()
}
