// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/luxfi/stakevm/cmd/stakevm/export"
	"github.com/luxfi/stakevm/cmd/stakevm/run"
	"github.com/luxfi/stakevm/cmd/stakevm/token"
)

func init() {
	cobra.EnablePrefixMatching = true
}

func main() {
	cmd := &cobra.Command{
		Use:   "stakevm",
		Short: "Runs and administers a liquid staking vault",
	}
	cmd.AddCommand(
		run.Command(),
		token.Command(),
		export.Command(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "command failed %v\n", err)
		os.Exit(1)
	}
}
