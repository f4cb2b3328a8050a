// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/luxfi/stakevm/vms/stakevm/api"
	"github.com/luxfi/stakevm/vms/stakevm/config"
)

const (
	HTTPHostKey          = "http-host"
	HTTPPortKey          = "http-port"
	DBDirKey             = "db-dir"
	ConfigFileKey        = "config-file"
	GenesisFileKey       = "genesis-file"
	AuthSecretKey        = "auth-secret"
	AllowedOriginsKey    = "allowed-origins"
	MinDepositKey        = "min-deposit"
	UnbondingPeriodKey   = "unbonding-period"
	PerformanceFeeBpsKey = "performance-fee-bps"

	authSecretEnv = "STAKEVM_AUTH_SECRET"
)

var errNoGenesis = errors.New("genesis file is required")

func AddFlags(flags *pflag.FlagSet) {
	flags.String(HTTPHostKey, "127.0.0.1", "Address the API server listens on")
	flags.Uint16(HTTPPortKey, 9650, "Port the API server listens on")
	flags.String(DBDirKey, "", "Database directory. Empty keeps state in memory")
	flags.String(ConfigFileKey, "", "Vault config file (JSON)")
	flags.String(GenesisFileKey, "", "Genesis file naming the owner and treasury (required on first run)")
	flags.String(AuthSecretKey, "", "Bearer token signing secret. Defaults to $"+authSecretEnv)
	flags.StringSlice(AllowedOriginsKey, []string{"*"}, "Origins allowed to call the API")
	flags.Uint64(MinDepositKey, config.Default.MinDeposit, "Smallest deposit accepted, in base units")
	flags.Duration(UnbondingPeriodKey, config.Default.UnbondingPeriod, "Delay between a withdrawal request and its claim")
	flags.Uint32(PerformanceFeeBpsKey, config.Default.PerformanceFeeBps, "Initial protocol fee on yield in basis points")
}

type Config struct {
	HTTPHost       string
	HTTPPort       uint16
	DBDir          string
	AuthSecret     []byte
	AllowedOrigins []string
	HTTP           api.HTTPConfig

	GenesisBytes []byte
	ConfigBytes  []byte
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	c := &Config{HTTP: api.DefaultHTTPConfig}
	var err error
	if c.HTTPHost, err = flags.GetString(HTTPHostKey); err != nil {
		return nil, err
	}
	if c.HTTPPort, err = flags.GetUint16(HTTPPortKey); err != nil {
		return nil, err
	}
	if c.DBDir, err = flags.GetString(DBDirKey); err != nil {
		return nil, err
	}
	if c.AllowedOrigins, err = flags.GetStringSlice(AllowedOriginsKey); err != nil {
		return nil, err
	}

	secret, err := flags.GetString(AuthSecretKey)
	if err != nil {
		return nil, err
	}
	if secret == "" {
		secret = os.Getenv(authSecretEnv)
	}
	c.AuthSecret = []byte(strings.TrimSpace(secret))

	genesisFile, err := flags.GetString(GenesisFileKey)
	if err != nil {
		return nil, err
	}
	if genesisFile != "" {
		if c.GenesisBytes, err = os.ReadFile(genesisFile); err != nil {
			return nil, err
		}
	} else if c.DBDir == "" {
		return nil, errNoGenesis
	}

	c.ConfigBytes, err = parseVaultConfig(flags)
	return c, err
}

// parseVaultConfig reads the config file, if any, and applies the flags that
// were set on top of it.
func parseVaultConfig(flags *pflag.FlagSet) ([]byte, error) {
	configFile, err := flags.GetString(ConfigFileKey)
	if err != nil {
		return nil, err
	}
	var fileBytes []byte
	if configFile != "" {
		if fileBytes, err = os.ReadFile(configFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.GetConfig(fileBytes)
	if err != nil {
		return nil, err
	}

	if flags.Changed(MinDepositKey) {
		if cfg.MinDeposit, err = flags.GetUint64(MinDepositKey); err != nil {
			return nil, err
		}
	}
	if flags.Changed(UnbondingPeriodKey) {
		if cfg.UnbondingPeriod, err = flags.GetDuration(UnbondingPeriodKey); err != nil {
			return nil, err
		}
	}
	if flags.Changed(PerformanceFeeBpsKey) {
		if cfg.PerformanceFeeBps, err = flags.GetUint32(PerformanceFeeBpsKey); err != nil {
			return nil, err
		}
	}
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	return json.Marshal(cfg)
}
