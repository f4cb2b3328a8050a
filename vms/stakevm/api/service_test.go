// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/stakevm/utils/timer/mockable"
	"github.com/luxfi/stakevm/vms/stakevm/config"
	"github.com/luxfi/stakevm/vms/stakevm/custody"
	"github.com/luxfi/stakevm/vms/stakevm/custody/custodymock"
	"github.com/luxfi/stakevm/vms/stakevm/state"
	"github.com/luxfi/stakevm/vms/stakevm/vault"

	avajson "github.com/luxfi/stakevm/utils/json"
)

var (
	testOwner    = ids.ShortID{0x01}
	testTreasury = ids.ShortID{0x02}
	testUser     = ids.ShortID{0x0a}
)

// testVM commits or aborts each call the way the VM does.
type testVM struct {
	state *state.State
	vault *vault.Vault
	clock *mockable.Clock
}

func newTestVM(t *testing.T, c custody.Custody) *testVM {
	s := state.New(memdb.New())
	clock := &mockable.Clock{}
	clock.Set(time.Unix(1_000_000, 0))
	if c == nil {
		c = custody.NewJournal(s.Custody, clock)
	}

	cfg := config.Default
	cfg.MinDeposit = 10
	v := vault.New(cfg, s, c, clock, log.NoLog{})
	require.NoError(t, v.Initialize(testOwner, testTreasury))
	require.NoError(t, s.Commit())
	return &testVM{
		state: s,
		vault: v,
		clock: clock,
	}
}

func (vm *testVM) Execute(_ string, f func(*vault.Vault) error) error {
	if err := f(vm.vault); err != nil {
		vm.state.Abort()
		return err
	}
	return vm.state.Commit()
}

func (vm *testVM) View(f func(*vault.Vault) error) error {
	defer vm.state.Abort()
	return f(vm.vault)
}

func requestAs(caller ids.ShortID) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	return r.WithContext(WithCaller(context.Background(), caller))
}

func amountArgs(n uint64) *AmountArgs {
	return &AmountArgs{Amount: avajson.NewAmount(uint256.NewInt(n))}
}

func requireRPCCode(t *testing.T, err error, code string) {
	t.Helper()
	var rpcErr *json2.Error
	require.ErrorAs(t, err, &rpcErr)
	data, ok := rpcErr.Data.(ErrorData)
	require.True(t, ok)
	require.Equal(t, code, data.Code)
}

func TestServiceDepositAndWithdraw(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)
	s := NewService(vm)

	minted := AmountReply{}
	require.NoError(s.Deposit(requestAs(testUser), amountArgs(100), &minted))
	require.Equal(uint64(100), minted.Amount.Uint64())

	compounded := CompoundRewardsReply{}
	require.NoError(s.CompoundRewards(requestAs(testOwner), amountArgs(10), &compounded))
	require.True(compounded.RateUpdated)
	require.Equal(uint64(1_100_000_000), compounded.NewRate.Uint64())

	value := AmountReply{}
	require.NoError(s.GetUserValue(nil, &AddressArgs{Address: testUser.String()}, &value))
	require.Equal(uint64(110), value.Amount.Uint64())

	requested := WithdrawalReply{}
	require.NoError(s.RequestWithdrawal(requestAs(testUser), amountArgs(100), &requested))
	require.Equal(uint64(110), requested.BaseAmount.Uint64())

	err := s.ClaimWithdrawal(requestAs(testUser), &RequestIDArgs{RequestID: requested.RequestID}, &WithdrawalReply{})
	requireRPCCode(t, err, "StillLocked")

	vm.clock.Advance(config.Default.UnbondingPeriod)
	claimable := WithdrawalsReply{}
	require.NoError(s.GetClaimableWithdrawals(nil, &AddressArgs{Address: testUser.String()}, &claimable))
	require.Len(claimable.Requests, 1)

	claimed := WithdrawalReply{}
	require.NoError(s.ClaimWithdrawal(requestAs(testUser), &RequestIDArgs{RequestID: requested.RequestID}, &claimed))
	require.True(claimed.Claimed)

	info := VaultInfoReply{}
	require.NoError(s.GetVaultInfo(nil, nil, &info))
	require.Equal(testOwner, info.Owner)
	require.True(info.TVL.IsZero())
	require.True(info.TotalSupply.IsZero())
	require.Equal(avajson.Uint32(902), info.APYBps)

	evs := GetEventsReply{}
	require.NoError(s.GetEvents(nil, &GetEventsArgs{}, &evs))
	require.NotEmpty(evs.Events)
	require.Equal(uint64(0), evs.Events[0].Seq)
}

func TestServiceFailedCallIsDiscarded(t *testing.T) {
	require := require.New(t)

	ctrl := gomock.NewController(t)
	c := custodymock.NewCustody(ctrl)
	vm := newTestVM(t, c)
	s := NewService(vm)

	c.EXPECT().Collect(testUser, uint256.NewInt(100)).Return(nil)
	require.NoError(s.Deposit(requestAs(testUser), amountArgs(100), &AmountReply{}))
	requested := WithdrawalReply{}
	require.NoError(s.RequestWithdrawal(requestAs(testUser), amountArgs(100), &requested))
	vm.clock.Advance(config.Default.UnbondingPeriod)

	c.EXPECT().Release(testUser, uint256.NewInt(100)).Return(errors.New("transfer rejected"))
	err := s.ClaimWithdrawal(requestAs(testUser), &RequestIDArgs{RequestID: requested.RequestID}, &WithdrawalReply{})
	requireRPCCode(t, err, "Internal")

	stored := WithdrawalReply{}
	require.NoError(s.GetWithdrawalRequest(nil, &RequestIDArgs{RequestID: requested.RequestID}, &stored))
	require.False(stored.Claimed)

	tvl := AmountReply{}
	require.NoError(s.GetTVL(nil, nil, &tvl))
	require.Equal(uint64(100), tvl.Amount.Uint64())
}

func TestServiceErrors(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)
	s := NewService(vm)

	err := s.Deposit(httptest.NewRequest(http.MethodPost, "/", nil), amountArgs(100), &AmountReply{})
	var rpcErr *json2.Error
	require.ErrorAs(err, &rpcErr)
	require.Equal(json2.E_INVALID_REQ, rpcErr.Code)

	err = s.Deposit(requestAs(testUser), amountArgs(1), &AmountReply{})
	requireRPCCode(t, err, "BelowMinimum")
	require.ErrorAs(err, &rpcErr)
	require.Equal(ErrorData{Code: "BelowMinimum", Kind: "validation"}, rpcErr.Data)

	err = s.Pause(requestAs(testUser), nil, nil)
	requireRPCCode(t, err, "Unauthorized")

	err = s.BalanceOf(nil, &AddressArgs{Address: "not an address"}, &AmountReply{})
	require.ErrorAs(err, &rpcErr)
	require.Equal(json2.E_BAD_PARAMS, rpcErr.Code)

	err = s.GetWithdrawalRequest(nil, &RequestIDArgs{RequestID: 5}, &WithdrawalReply{})
	requireRPCCode(t, err, "NotFound")
}

func TestServiceAdmin(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)
	s := NewService(vm)
	owner := requestAs(testOwner)

	validator := ids.ShortID{0xee}
	added := ValidatorReply{}
	require.NoError(s.AddValidator(owner, &ValidatorArgs{Address: validator.String(), Score: 70}, &added))

	require.NoError(s.Deposit(requestAs(testUser), amountArgs(100), &AmountReply{}))
	staked := ValidatorsReply{}
	require.NoError(s.Stake(owner, amountArgs(60), &staked))
	require.Len(staked.Validators, 1)

	require.NoError(s.Unstake(owner, amountArgs(10), nil))
	require.NoError(s.UpdateValidator(owner, &ValidatorArgs{Address: validator.String(), Score: 80, Uptime: 97}, &added))

	all := ValidatorsReply{}
	require.NoError(s.GetValidators(nil, nil, &all))
	require.Len(all.Validators, 1)

	require.NoError(s.SetPerformanceFee(owner, &SetPerformanceFeeArgs{FeeBps: 1000}, nil))
	err := s.SetPerformanceFee(owner, &SetPerformanceFeeArgs{FeeBps: 1001}, nil)
	requireRPCCode(t, err, "FeeTooHigh")

	require.NoError(s.SetTreasury(owner, &AddressArgs{Address: testUser.String()}, nil))
	require.NoError(s.Pause(owner, nil, nil))
	err = s.Deposit(requestAs(testUser), amountArgs(100), &AmountReply{})
	requireRPCCode(t, err, "Paused")
	require.NoError(s.Unpause(owner, nil, nil))

	info := VaultInfoReply{}
	require.NoError(s.GetVaultInfo(nil, nil, &info))
	require.Equal(testUser, info.Treasury)
	require.Equal(uint64(50), info.TotalStaked.Uint64())
	require.Equal(uint64(50), info.AvailableLiquidity.Uint64())
	require.False(info.Paused)
}

func TestServiceAllowance(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)
	s := NewService(vm)
	spender := ids.ShortID{0x0b}

	require.NoError(s.Deposit(requestAs(testUser), amountArgs(100), &AmountReply{}))
	require.NoError(s.Approve(requestAs(testUser), &ApproveArgs{
		Spender: spender.String(),
		Amount:  avajson.NewAmount(uint256.NewInt(40)),
	}, nil))
	require.NoError(s.TransferFrom(requestAs(spender), &TransferArgs{
		From:   testUser.String(),
		To:     spender.String(),
		Amount: avajson.NewAmount(uint256.NewInt(15)),
	}, nil))

	allowance := AmountReply{}
	require.NoError(s.Allowance(nil, &AllowanceArgs{
		Owner:   testUser.String(),
		Spender: spender.String(),
	}, &allowance))
	require.Equal(uint64(25), allowance.Amount.Uint64())

	supply := AmountReply{}
	require.NoError(s.TotalSupply(nil, nil, &supply))
	require.Equal(uint64(100), supply.Amount.Uint64())

	converted := AmountReply{}
	require.NoError(s.ToBaseAsset(nil, amountArgs(7), &converted))
	require.Equal(uint64(7), converted.Amount.Uint64())
	require.NoError(s.ToClaimTokens(nil, amountArgs(7), &converted))
	require.Equal(uint64(7), converted.Amount.Uint64())

	withdrawals := UserWithdrawalsReply{}
	require.NoError(s.GetUserWithdrawals(nil, &AddressArgs{Address: spender.String()}, &withdrawals))
	require.Empty(withdrawals.RequestIDs)
}

func TestHandler(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)
	server := rpc.NewServer()
	server.RegisterCodec(json2.NewCodec(), "application/json")
	require.NoError(server.RegisterService(NewService(vm), "stake"))

	auth, err := NewAuth(testSecret)
	require.NoError(err)
	handler := NewHandler("stake", map[string]http.Handler{"": server}, auth, []string{"*"})

	call := func(token, method string, args, reply any) error {
		body, err := json2.EncodeClientRequest(method, args)
		require.NoError(err)
		req := httptest.NewRequest(http.MethodPost, "/ext/stake", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", bearerPrefix+token)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return json2.DecodeClientResponse(w.Body, reply)
	}

	token, err := auth.NewToken(testUser, time.Now(), time.Hour)
	require.NoError(err)

	minted := AmountReply{}
	require.NoError(call(token, "stake.Deposit", amountArgs(100), &minted))
	require.Equal(uint64(100), minted.Amount.Uint64())

	err = call("", "stake.Deposit", amountArgs(100), &AmountReply{})
	var rpcErr *json2.Error
	require.ErrorAs(err, &rpcErr)
	require.Equal(json2.E_INVALID_REQ, rpcErr.Code)

	err = call(token, "stake.Pause", struct{}{}, &struct{}{})
	require.ErrorAs(err, &rpcErr)
	data, ok := rpcErr.Data.(map[string]any)
	require.True(ok)
	require.Equal("Unauthorized", data["code"])
	require.Equal("authorization", data["kind"])

	balance := AmountReply{}
	require.NoError(call("", "stake.BalanceOf", &AddressArgs{Address: testUser.String()}, &balance))
	require.Equal(uint64(100), balance.Amount.Uint64())

	health := httptest.NewRecorder()
	handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(http.StatusOK, health.Code)
}
