// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stakevm

import (
	"encoding/json"
	"errors"

	"github.com/luxfi/ids"
)

var (
	errNoOwner    = errors.New("genesis has no owner")
	errNoTreasury = errors.New("genesis has no treasury")
)

// Genesis names the identities the vault is initialized with.
type Genesis struct {
	Owner    ids.ShortID `json:"owner"`
	Treasury ids.ShortID `json:"treasury"`
}

func ParseGenesis(b []byte) (*Genesis, error) {
	g := &Genesis{}
	if err := json.Unmarshal(b, g); err != nil {
		return nil, err
	}
	return g, g.Verify()
}

func (g *Genesis) Verify() error {
	switch {
	case g.Owner == ids.ShortEmpty:
		return errNoOwner
	case g.Treasury == ids.ShortEmpty:
		return errNoTreasury
	default:
		return nil
	}
}

func (g *Genesis) Bytes() ([]byte, error) {
	return json.Marshal(g)
}
