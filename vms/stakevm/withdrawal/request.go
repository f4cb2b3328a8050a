// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package withdrawal

import (
	"github.com/holiman/uint256"

	"github.com/luxfi/ids"
)

// Request is an escrowed redemption. Everything but Claimed is fixed when the
// request is created.
type Request struct {
	ID        uint64      `json:"id"`
	Requester ids.ShortID `json:"requester"`
	// ClaimAmount is the number of claim tokens burned for this request.
	ClaimAmount *uint256.Int `json:"claimAmount"`
	// BaseAmount is the payout, frozen at the rate in effect at RequestTime.
	BaseAmount  *uint256.Int `json:"baseAmount"`
	RequestTime uint64       `json:"requestTime"`
	UnlockTime  uint64       `json:"unlockTime"`
	Claimed     bool         `json:"claimed"`
}

// Unlocked reports whether the request may be claimed at now.
func (r *Request) Unlocked(now uint64) bool {
	return now >= r.UnlockTime
}

// record is the stored form of a Request.
type record struct {
	Requester   ids.ShortID `serialize:"true"`
	ClaimAmount []byte      `serialize:"true"`
	BaseAmount  []byte      `serialize:"true"`
	RequestTime uint64      `serialize:"true"`
	UnlockTime  uint64      `serialize:"true"`
	Claimed     bool        `serialize:"true"`
}

func newRecord(r *Request) *record {
	return &record{
		Requester:   r.Requester,
		ClaimAmount: r.ClaimAmount.Bytes(),
		BaseAmount:  r.BaseAmount.Bytes(),
		RequestTime: r.RequestTime,
		UnlockTime:  r.UnlockTime,
		Claimed:     r.Claimed,
	}
}

func (rec *record) request(id uint64) *Request {
	return &Request{
		ID:          id,
		Requester:   rec.Requester,
		ClaimAmount: new(uint256.Int).SetBytes(rec.ClaimAmount),
		BaseAmount:  new(uint256.Int).SetBytes(rec.BaseAmount),
		RequestTime: rec.RequestTime,
		UnlockTime:  rec.UnlockTime,
		Claimed:     rec.Claimed,
	}
}
