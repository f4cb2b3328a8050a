// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/holiman/uint256"

	"github.com/luxfi/ids"

	"github.com/luxfi/stakevm/vms/stakevm/events"
	"github.com/luxfi/stakevm/vms/stakevm/validators"
	"github.com/luxfi/stakevm/vms/stakevm/vault"
	"github.com/luxfi/stakevm/vms/stakevm/vmerrs"
	"github.com/luxfi/stakevm/vms/stakevm/withdrawal"

	avajson "github.com/luxfi/stakevm/utils/json"
)

const maxEventsLimit = 1024

var errInvalidAddress = errors.New("invalid address")

// VM delivers calls to the vault.
type VM interface {
	// Execute runs f as one atomic call.
	Execute(method string, f func(*vault.Vault) error) error
	// View runs f against committed state.
	View(f func(*vault.Vault) error) error
}

// Service is the JSON-RPC face of the vault. Mutating methods act as the
// caller named by the request's bearer token.
type Service struct {
	vm VM
}

func NewService(vm VM) *Service {
	return &Service{vm: vm}
}

type AmountArgs struct {
	Amount avajson.Amount `json:"amount"`
}

type AmountReply struct {
	Amount avajson.Amount `json:"amount"`
}

type AddressArgs struct {
	Address string `json:"address"`
}

type RequestIDArgs struct {
	RequestID avajson.Uint64 `json:"requestID"`
}

// WithdrawalReply is a withdrawal request as seen over the API.
type WithdrawalReply struct {
	RequestID   avajson.Uint64 `json:"requestID"`
	Requester   ids.ShortID    `json:"requester"`
	ClaimAmount avajson.Amount `json:"claimAmount"`
	BaseAmount  avajson.Amount `json:"baseAmount"`
	RequestTime avajson.Uint64 `json:"requestTime"`
	UnlockTime  avajson.Uint64 `json:"unlockTime"`
	Claimed     bool           `json:"claimed"`
}

func newWithdrawalReply(r *withdrawal.Request) WithdrawalReply {
	return WithdrawalReply{
		RequestID:   avajson.Uint64(r.ID),
		Requester:   r.Requester,
		ClaimAmount: avajson.NewAmount(r.ClaimAmount),
		BaseAmount:  avajson.NewAmount(r.BaseAmount),
		RequestTime: avajson.Uint64(r.RequestTime),
		UnlockTime:  avajson.Uint64(r.UnlockTime),
		Claimed:     r.Claimed,
	}
}

type ValidatorReply struct {
	Address ids.ShortID    `json:"address"`
	Score   avajson.Uint32 `json:"score"`
	Uptime  avajson.Uint32 `json:"uptime"`
	Stake   avajson.Amount `json:"stake"`
	Updated avajson.Uint64 `json:"updated"`
}

func newValidatorReply(v *validators.Validator) ValidatorReply {
	return ValidatorReply{
		Address: v.Address,
		Score:   avajson.Uint32(v.Score),
		Uptime:  avajson.Uint32(v.Uptime),
		Stake:   avajson.NewAmount(v.Stake),
		Updated: avajson.Uint64(v.Updated),
	}
}

type ValidatorsReply struct {
	Validators []ValidatorReply `json:"validators"`
}

func newValidatorsReply(vs []*validators.Validator) ValidatorsReply {
	reply := ValidatorsReply{Validators: make([]ValidatorReply, len(vs))}
	for i, v := range vs {
		reply.Validators[i] = newValidatorReply(v)
	}
	return reply
}

// Deposit credits the caller with claim tokens for the attached amount.
func (s *Service) Deposit(r *http.Request, args *AmountArgs, reply *AmountReply) error {
	return s.execute(r, "deposit", func(caller ids.ShortID, v *vault.Vault) error {
		minted, err := v.Deposit(caller, args.Amount.Uint256())
		if err != nil {
			return err
		}
		reply.Amount = avajson.NewAmount(minted)
		return nil
	})
}

func (s *Service) RequestWithdrawal(r *http.Request, args *AmountArgs, reply *WithdrawalReply) error {
	return s.execute(r, "requestWithdrawal", func(caller ids.ShortID, v *vault.Vault) error {
		req, err := v.RequestWithdrawal(caller, args.Amount.Uint256())
		if err != nil {
			return err
		}
		*reply = newWithdrawalReply(req)
		return nil
	})
}

func (s *Service) ClaimWithdrawal(r *http.Request, args *RequestIDArgs, reply *WithdrawalReply) error {
	return s.execute(r, "claimWithdrawal", func(caller ids.ShortID, v *vault.Vault) error {
		req, err := v.ClaimWithdrawal(caller, uint64(args.RequestID))
		if err != nil {
			return err
		}
		*reply = newWithdrawalReply(req)
		return nil
	})
}

type CompoundRewardsReply struct {
	Fee         avajson.Amount `json:"fee"`
	UserYield   avajson.Amount `json:"userYield"`
	NewRate     avajson.Amount `json:"newRate"`
	RateUpdated bool           `json:"rateUpdated"`
}

func (s *Service) CompoundRewards(r *http.Request, args *AmountArgs, reply *CompoundRewardsReply) error {
	return s.execute(r, "compoundRewards", func(caller ids.ShortID, v *vault.Vault) error {
		c, err := v.CompoundRewards(caller, args.Amount.Uint256())
		if err != nil {
			return err
		}
		reply.Fee = avajson.NewAmount(c.Fee)
		reply.UserYield = avajson.NewAmount(c.UserYield)
		reply.NewRate = avajson.NewAmount(c.NewRate)
		reply.RateUpdated = c.RateUpdated
		return nil
	})
}

type SetPerformanceFeeArgs struct {
	FeeBps avajson.Uint32 `json:"feeBps"`
}

func (s *Service) SetPerformanceFee(r *http.Request, args *SetPerformanceFeeArgs, _ *struct{}) error {
	return s.execute(r, "setPerformanceFee", func(caller ids.ShortID, v *vault.Vault) error {
		return v.SetPerformanceFee(caller, uint32(args.FeeBps))
	})
}

func (s *Service) SetTreasury(r *http.Request, args *AddressArgs, _ *struct{}) error {
	treasury, err := parseAddress(args.Address)
	if err != nil {
		return err
	}
	return s.execute(r, "setTreasury", func(caller ids.ShortID, v *vault.Vault) error {
		return v.SetTreasury(caller, treasury)
	})
}

func (s *Service) Pause(r *http.Request, _ *struct{}, _ *struct{}) error {
	return s.execute(r, "pause", func(caller ids.ShortID, v *vault.Vault) error {
		return v.Pause(caller)
	})
}

func (s *Service) Unpause(r *http.Request, _ *struct{}, _ *struct{}) error {
	return s.execute(r, "unpause", func(caller ids.ShortID, v *vault.Vault) error {
		return v.Unpause(caller)
	})
}

func (s *Service) Stake(r *http.Request, args *AmountArgs, reply *ValidatorsReply) error {
	return s.execute(r, "stake", func(caller ids.ShortID, v *vault.Vault) error {
		delegated, err := v.Stake(caller, args.Amount.Uint256())
		if err != nil {
			return err
		}
		*reply = newValidatorsReply(delegated)
		return nil
	})
}

func (s *Service) Unstake(r *http.Request, args *AmountArgs, _ *struct{}) error {
	return s.execute(r, "unstake", func(caller ids.ShortID, v *vault.Vault) error {
		return v.Unstake(caller, args.Amount.Uint256())
	})
}

type ValidatorArgs struct {
	Address string         `json:"address"`
	Score   avajson.Uint32 `json:"score"`
	Uptime  avajson.Uint32 `json:"uptime"`
}

func (s *Service) AddValidator(r *http.Request, args *ValidatorArgs, reply *ValidatorReply) error {
	addr, err := parseAddress(args.Address)
	if err != nil {
		return err
	}
	return s.execute(r, "addValidator", func(caller ids.ShortID, v *vault.Vault) error {
		val, err := v.AddValidator(caller, addr, uint32(args.Score))
		if err != nil {
			return err
		}
		*reply = newValidatorReply(val)
		return nil
	})
}

func (s *Service) UpdateValidator(r *http.Request, args *ValidatorArgs, reply *ValidatorReply) error {
	addr, err := parseAddress(args.Address)
	if err != nil {
		return err
	}
	return s.execute(r, "updateValidator", func(caller ids.ShortID, v *vault.Vault) error {
		val, err := v.UpdateValidator(caller, addr, uint32(args.Score), uint32(args.Uptime))
		if err != nil {
			return err
		}
		*reply = newValidatorReply(val)
		return nil
	})
}

type TransferArgs struct {
	From   string         `json:"from"`
	To     string         `json:"to"`
	Amount avajson.Amount `json:"amount"`
}

func (s *Service) Transfer(r *http.Request, args *TransferArgs, _ *struct{}) error {
	to, err := parseAddress(args.To)
	if err != nil {
		return err
	}
	return s.execute(r, "transfer", func(caller ids.ShortID, v *vault.Vault) error {
		return v.Transfer(caller, to, args.Amount.Uint256())
	})
}

// TransferFrom moves From's tokens to To out of the caller's allowance.
func (s *Service) TransferFrom(r *http.Request, args *TransferArgs, _ *struct{}) error {
	from, err := parseAddress(args.From)
	if err != nil {
		return err
	}
	to, err := parseAddress(args.To)
	if err != nil {
		return err
	}
	return s.execute(r, "transferFrom", func(caller ids.ShortID, v *vault.Vault) error {
		return v.TransferFrom(caller, from, to, args.Amount.Uint256())
	})
}

type ApproveArgs struct {
	Spender string         `json:"spender"`
	Amount  avajson.Amount `json:"amount"`
}

func (s *Service) Approve(r *http.Request, args *ApproveArgs, _ *struct{}) error {
	spender, err := parseAddress(args.Spender)
	if err != nil {
		return err
	}
	return s.execute(r, "approve", func(caller ids.ShortID, v *vault.Vault) error {
		return v.Approve(caller, spender, args.Amount.Uint256())
	})
}

func (s *Service) BalanceOf(_ *http.Request, args *AddressArgs, reply *AmountReply) error {
	addr, err := parseAddress(args.Address)
	if err != nil {
		return err
	}
	return s.amount(reply, func(v *vault.Vault) (*uint256.Int, error) {
		return v.BalanceOf(addr)
	})
}

type AllowanceArgs struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
}

func (s *Service) Allowance(_ *http.Request, args *AllowanceArgs, reply *AmountReply) error {
	owner, err := parseAddress(args.Owner)
	if err != nil {
		return err
	}
	spender, err := parseAddress(args.Spender)
	if err != nil {
		return err
	}
	return s.amount(reply, func(v *vault.Vault) (*uint256.Int, error) {
		return v.Allowance(owner, spender)
	})
}

func (s *Service) TotalSupply(_ *http.Request, _ *struct{}, reply *AmountReply) error {
	return s.amount(reply, (*vault.Vault).TotalSupply)
}

// GetExchangeRate returns base units per claim token scaled by 1e9.
func (s *Service) GetExchangeRate(_ *http.Request, _ *struct{}, reply *AmountReply) error {
	return s.amount(reply, (*vault.Vault).ExchangeRate)
}

func (s *Service) GetTVL(_ *http.Request, _ *struct{}, reply *AmountReply) error {
	return s.amount(reply, (*vault.Vault).TVL)
}

func (s *Service) GetUserValue(_ *http.Request, args *AddressArgs, reply *AmountReply) error {
	addr, err := parseAddress(args.Address)
	if err != nil {
		return err
	}
	return s.amount(reply, func(v *vault.Vault) (*uint256.Int, error) {
		return v.UserValue(addr)
	})
}

func (s *Service) ToBaseAsset(_ *http.Request, args *AmountArgs, reply *AmountReply) error {
	return s.amount(reply, func(v *vault.Vault) (*uint256.Int, error) {
		return v.ToBaseAsset(args.Amount.Uint256())
	})
}

func (s *Service) ToClaimTokens(_ *http.Request, args *AmountArgs, reply *AmountReply) error {
	return s.amount(reply, func(v *vault.Vault) (*uint256.Int, error) {
		return v.ToClaimTokens(args.Amount.Uint256())
	})
}

func (s *Service) GetWithdrawalRequest(_ *http.Request, args *RequestIDArgs, reply *WithdrawalReply) error {
	return s.view(func(v *vault.Vault) error {
		req, err := v.WithdrawalRequest(uint64(args.RequestID))
		if err != nil {
			return err
		}
		*reply = newWithdrawalReply(req)
		return nil
	})
}

type UserWithdrawalsReply struct {
	RequestIDs []avajson.Uint64 `json:"requestIDs"`
}

func (s *Service) GetUserWithdrawals(_ *http.Request, args *AddressArgs, reply *UserWithdrawalsReply) error {
	addr, err := parseAddress(args.Address)
	if err != nil {
		return err
	}
	return s.view(func(v *vault.Vault) error {
		requestIDs, err := v.UserWithdrawals(addr)
		if err != nil {
			return err
		}
		reply.RequestIDs = make([]avajson.Uint64, len(requestIDs))
		for i, id := range requestIDs {
			reply.RequestIDs[i] = avajson.Uint64(id)
		}
		return nil
	})
}

type WithdrawalsReply struct {
	Requests []WithdrawalReply `json:"requests"`
}

func (s *Service) GetClaimableWithdrawals(_ *http.Request, args *AddressArgs, reply *WithdrawalsReply) error {
	addr, err := parseAddress(args.Address)
	if err != nil {
		return err
	}
	return s.view(func(v *vault.Vault) error {
		requests, err := v.ClaimableWithdrawals(addr)
		if err != nil {
			return err
		}
		reply.Requests = make([]WithdrawalReply, len(requests))
		for i, req := range requests {
			reply.Requests[i] = newWithdrawalReply(req)
		}
		return nil
	})
}

func (s *Service) GetValidators(_ *http.Request, _ *struct{}, reply *ValidatorsReply) error {
	return s.view(func(v *vault.Vault) error {
		vs, err := v.Validators()
		if err != nil {
			return err
		}
		*reply = newValidatorsReply(vs)
		return nil
	})
}

type GetEventsArgs struct {
	From  avajson.Uint64 `json:"from"`
	Limit avajson.Uint32 `json:"limit"`
}

type GetEventsReply struct {
	Events []events.Event `json:"events"`
}

func (s *Service) GetEvents(_ *http.Request, args *GetEventsArgs, reply *GetEventsReply) error {
	limit := int(args.Limit)
	if limit == 0 || limit > maxEventsLimit {
		limit = maxEventsLimit
	}
	return s.view(func(v *vault.Vault) error {
		evs, err := v.Events(uint64(args.From), limit)
		if err != nil {
			return err
		}
		reply.Events = evs
		return nil
	})
}

// VaultInfoReply summarizes the vault.
type VaultInfoReply struct {
	Token              vault.TokenInfo `json:"token"`
	Owner              ids.ShortID     `json:"owner"`
	Treasury           ids.ShortID     `json:"treasury"`
	PerformanceFeeBps  avajson.Uint32  `json:"performanceFeeBps"`
	APYBps             avajson.Uint32  `json:"apyBps"`
	Paused             bool            `json:"paused"`
	TotalSupply        avajson.Amount  `json:"totalSupply"`
	ExchangeRate       avajson.Amount  `json:"exchangeRate"`
	TVL                avajson.Amount  `json:"tvl"`
	TotalStaked        avajson.Amount  `json:"totalStaked"`
	AvailableLiquidity avajson.Amount  `json:"availableLiquidity"`
	PendingWithdrawals avajson.Amount  `json:"pendingWithdrawals"`
}

func (s *Service) GetVaultInfo(_ *http.Request, _ *struct{}, reply *VaultInfoReply) error {
	return s.view(func(v *vault.Vault) error {
		reply.Token = v.TokenInfo()

		owner, err := v.Owner()
		if err != nil {
			return err
		}
		fees, err := v.FeeConfig()
		if err != nil {
			return err
		}
		apy, err := v.APY()
		if err != nil {
			return err
		}
		paused, err := v.IsPaused()
		if err != nil {
			return err
		}
		reply.Owner = owner
		reply.Treasury = fees.Treasury
		reply.PerformanceFeeBps = avajson.Uint32(fees.PerformanceFeeBps)
		reply.APYBps = avajson.Uint32(apy)
		reply.Paused = paused

		amounts := []struct {
			dst *avajson.Amount
			get func() (*uint256.Int, error)
		}{
			{&reply.TotalSupply, v.TotalSupply},
			{&reply.ExchangeRate, v.ExchangeRate},
			{&reply.TVL, v.TVL},
			{&reply.TotalStaked, v.TotalStaked},
			{&reply.AvailableLiquidity, v.AvailableLiquidity},
			{&reply.PendingWithdrawals, v.PendingWithdrawals},
		}
		for _, a := range amounts {
			amount, err := a.get()
			if err != nil {
				return err
			}
			*a.dst = avajson.NewAmount(amount)
		}
		return nil
	})
}

func (s *Service) execute(r *http.Request, method string, f func(ids.ShortID, *vault.Vault) error) error {
	caller, err := Caller(r)
	if err != nil {
		return &json2.Error{
			Code:    json2.E_INVALID_REQ,
			Message: err.Error(),
		}
	}
	err = s.vm.Execute(method, func(v *vault.Vault) error {
		return f(caller, v)
	})
	return rpcError(err)
}

func (s *Service) view(f func(*vault.Vault) error) error {
	return rpcError(s.vm.View(f))
}

func (s *Service) amount(reply *AmountReply, get func(*vault.Vault) (*uint256.Int, error)) error {
	return s.view(func(v *vault.Vault) error {
		amount, err := get(v)
		if err != nil {
			return err
		}
		reply.Amount = avajson.NewAmount(amount)
		return nil
	})
}

// ErrorData is attached to every failed call so clients can branch on the
// failure without parsing the message.
type ErrorData struct {
	Code string `json:"code"`
	Kind string `json:"kind"`
}

func rpcError(err error) error {
	if err == nil {
		return nil
	}
	code := vmerrs.CodeOf(err)
	return &json2.Error{
		Code:    json2.E_SERVER,
		Message: fmt.Sprintf("%s: %s", code, err),
		Data: ErrorData{
			Code: code,
			Kind: vmerrs.KindOf(err).String(),
		},
	}
}

func parseAddress(s string) (ids.ShortID, error) {
	addr, err := ids.ShortFromString(s)
	if err != nil {
		return ids.ShortEmpty, &json2.Error{
			Code:    json2.E_BAD_PARAMS,
			Message: fmt.Sprintf("%s %q: %s", errInvalidAddress, s, err),
		}
	}
	return addr, nil
}
