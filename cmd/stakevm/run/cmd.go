// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/log"

	"github.com/luxfi/stakevm/vms/stakevm"
	"github.com/luxfi/stakevm/vms/stakevm/api"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "run",
		Short: "Serves the vault API",
		RunE:  runFunc,
	}
	AddFlags(c.Flags())
	return c
}

func runFunc(c *cobra.Command, args []string) error {
	config, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}
	auth, err := api.NewAuth(config.AuthSecret)
	if err != nil {
		return err
	}

	logger := log.Root()
	db, err := openDB(config.DBDir)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	ctx := c.Context()
	vm := &stakevm.VM{}
	if err := vm.Initialize(ctx, db, config.GenesisBytes, config.ConfigBytes, nil, logger); err != nil {
		return errors.Join(err, db.Close())
	}
	handlers, err := vm.CreateHandlers(ctx)
	if err != nil {
		return errors.Join(err, vm.Shutdown(ctx))
	}

	address := net.JoinHostPort(config.HTTPHost, strconv.Itoa(int(config.HTTPPort)))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Join(err, vm.Shutdown(ctx))
	}
	server := api.NewServer(
		logger,
		api.NewHandler(stakevm.Name, handlers, auth, config.AllowedOrigins),
		config.HTTP,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Dispatch(gctx, listener)
	})
	err = g.Wait()
	return errors.Join(err, vm.Shutdown(context.Background()))
}

func openDB(dir string) (database.Database, error) {
	if dir == "" {
		return memdb.New(), nil
	}
	return badgerdb.New(
		dir,
		nil, // configBytes - use default
		"",  // namespace
		nil, // metrics
	)
}
