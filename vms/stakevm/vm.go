// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package stakevm hosts the liquid staking vault. The VM delivers one call at
// a time to the vault and commits the call's changes only if it succeeds.
package stakevm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luxfi/database"
	"github.com/luxfi/log"

	"github.com/luxfi/stakevm/utils/timer/mockable"
	"github.com/luxfi/stakevm/vms/stakevm/api"
	"github.com/luxfi/stakevm/vms/stakevm/config"
	"github.com/luxfi/stakevm/vms/stakevm/custody"
	"github.com/luxfi/stakevm/vms/stakevm/metrics"
	"github.com/luxfi/stakevm/vms/stakevm/state"
	"github.com/luxfi/stakevm/vms/stakevm/vault"

	utilmetric "github.com/luxfi/stakevm/utils/metric"
)

const Name = "stake"

var (
	_ api.VM = (*VM)(nil)

	errNotInitialized = errors.New("VM not initialized")
	errShutdown       = errors.New("VM is shutting down")
)

// VM serializes calls to the vault. Each call runs against a versioned view
// of the database that is committed on success and aborted on failure.
type VM struct {
	Config config.Config

	log log.Logger

	// Held for the duration of every call and view
	lock sync.Mutex

	baseDB database.Database
	state  *state.State

	// Used to check local time
	clock mockable.Clock

	registry    *prometheus.Registry
	metrics     metrics.Metrics
	interceptor utilmetric.APIInterceptor

	vault    *vault.Vault
	shutdown bool
}

// Initialize opens the vault on db. On an empty database the vault is
// initialized from genesis; otherwise genesis is ignored.
//
// If c is nil, deposits and payouts are recorded in the VM's own custody
// journal.
func (vm *VM) Initialize(
	_ context.Context,
	db database.Database,
	genesisBytes []byte,
	configBytes []byte,
	c custody.Custody,
	logger log.Logger,
) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	cfg, err := config.GetConfig(configBytes)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	vm.Config = *cfg
	vm.log = logger
	vm.baseDB = db
	vm.state = state.New(db)

	vm.registry = prometheus.NewRegistry()
	vm.metrics, err = metrics.New(prometheus.WrapRegistererWithPrefix(Name+"_", vm.registry))
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	vm.interceptor, err = utilmetric.NewAPIInterceptor(prometheus.WrapRegistererWithPrefix(Name+"_api_", vm.registry), &vm.clock)
	if err != nil {
		return fmt.Errorf("failed to register API metrics: %w", err)
	}

	if c == nil {
		c = custody.NewJournal(vm.state.Custody, &vm.clock)
	}
	vm.vault = vault.New(vm.Config, vm.state, c, &vm.clock, logger)

	initialized, err := vm.vault.IsInitialized()
	if err != nil {
		return err
	}
	if !initialized {
		genesis, err := ParseGenesis(genesisBytes)
		if err != nil {
			return fmt.Errorf("failed to parse genesis: %w", err)
		}
		if err := vm.vault.Initialize(genesis.Owner, genesis.Treasury); err != nil {
			vm.state.Abort()
			return fmt.Errorf("failed to initialize vault: %w", err)
		}
		if err := vm.state.Commit(); err != nil {
			return fmt.Errorf("failed to commit genesis: %w", err)
		}
	}
	vm.updateTotals()

	vm.log.Info("stake VM initialized",
		log.String("token", vm.Config.TokenSymbol),
		log.Uint64("minDeposit", vm.Config.MinDeposit),
		log.Duration("unbondingPeriod", vm.Config.UnbondingPeriod),
	)
	return nil
}

// Execute runs f as one call. Every change f makes is committed if it
// returns nil and discarded otherwise.
func (vm *VM) Execute(method string, f func(*vault.Vault) error) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return err
	}

	err := f(vm.vault)
	if err == nil {
		err = vm.state.Commit()
	} else {
		vm.state.Abort()
	}
	vm.metrics.MarkCall(method, err)
	if err != nil {
		vm.log.Debug("call failed",
			log.String("method", method),
			log.Err(err),
		)
		return err
	}
	vm.updateTotals()
	return nil
}

// View runs f against the last committed state. f must not mutate the vault.
func (vm *VM) View(f func(*vault.Vault) error) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return err
	}
	defer vm.state.Abort()
	return f(vm.vault)
}

// Clock is the only source of time for the vault.
func (vm *VM) Clock() *mockable.Clock {
	return &vm.clock
}

func (vm *VM) CreateHandlers(context.Context) (map[string]http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(json2.NewCodec(), "application/json")
	server.RegisterCodec(json2.NewCodec(), "application/json;charset=UTF-8")
	server.RegisterInterceptFunc(vm.interceptor.InterceptRequest)
	server.RegisterAfterFunc(vm.interceptor.AfterRequest)
	if err := server.RegisterService(api.NewService(vm), Name); err != nil {
		return nil, fmt.Errorf("failed to register %s service: %w", Name, err)
	}

	return map[string]http.Handler{
		"":         server,
		"/metrics": promhttp.HandlerFor(vm.registry, promhttp.HandlerOpts{}),
	}, nil
}

func (vm *VM) Shutdown(context.Context) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.shutdown || vm.baseDB == nil {
		return nil
	}
	vm.shutdown = true
	vm.state.Abort()
	if err := vm.baseDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	vm.log.Info("stake VM shutdown complete")
	return nil
}

func (vm *VM) ready() error {
	switch {
	case vm.shutdown:
		return errShutdown
	case vm.vault == nil:
		return errNotInitialized
	default:
		return nil
	}
}

func (vm *VM) updateTotals() {
	var (
		t   metrics.Totals
		err error
	)
	if t.Supply, err = vm.vault.TotalSupply(); err != nil {
		vm.log.Warn("failed to read supply", log.Err(err))
		return
	}
	if t.Custody, err = vm.vault.TVL(); err != nil {
		vm.log.Warn("failed to read custody", log.Err(err))
		return
	}
	if t.Staked, err = vm.vault.TotalStaked(); err != nil {
		vm.log.Warn("failed to read staked", log.Err(err))
		return
	}
	if t.Pending, err = vm.vault.PendingWithdrawals(); err != nil {
		vm.log.Warn("failed to read pending withdrawals", log.Err(err))
		return
	}
	if t.Rate, err = vm.vault.ExchangeRate(); err != nil {
		vm.log.Warn("failed to read exchange rate", log.Err(err))
		return
	}
	vm.metrics.SetTotals(t)
}
