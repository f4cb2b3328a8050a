// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxfi/ids"

	"github.com/luxfi/stakevm/vms/stakevm/api"
)

const (
	AddressKey = "address"
	SecretKey  = "auth-secret"
	TTLKey     = "ttl"

	authSecretEnv = "STAKEVM_AUTH_SECRET"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "token",
		Short: "Issues a bearer token to act as an address",
		RunE:  tokenFunc,
	}
	flags := c.Flags()
	flags.String(AddressKey, "", "Address the token acts as (required)")
	flags.String(SecretKey, "", "Signing secret. Defaults to $"+authSecretEnv)
	flags.Duration(TTLKey, 24*time.Hour, "How long the token is valid for")
	return c
}

func tokenFunc(c *cobra.Command, _ []string) error {
	flags := c.Flags()
	addrStr, err := flags.GetString(AddressKey)
	if err != nil {
		return err
	}
	addr, err := ids.ShortFromString(addrStr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addrStr, err)
	}
	secret, err := flags.GetString(SecretKey)
	if err != nil {
		return err
	}
	if secret == "" {
		secret = os.Getenv(authSecretEnv)
	}
	ttl, err := flags.GetDuration(TTLKey)
	if err != nil {
		return err
	}

	auth, err := api.NewAuth([]byte(secret))
	if err != nil {
		return err
	}
	token, err := auth.NewToken(addr, time.Now(), ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.OutOrStdout(), token)
	return err
}
