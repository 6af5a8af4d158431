// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ava-labs/hypersdk-client/client"
	"github.com/ava-labs/hypersdk-client/ws"
)

const (
	envPrefix = "hyperclient"

	configFileKey     = "config"
	logLevelKey       = "log-level"
	abiKey            = "abi"
	apiHostKey        = "api-host"
	vmNameKey         = "vm-name"
	vmRPCPrefixKey    = "vm-rpc-prefix"
	requestTimeoutKey = "request-timeout"

	privateKeyKey     = "private-key"
	chainIDKey        = "chain-id"
	maxFeeKey         = "max-fee"
	timestampKey      = "timestamp"
	actionsKey        = "actions"
	waitKey           = "wait"
	timeoutKey        = "timeout"
	flushIntervalKey  = "flush-interval"
	reconnectDelayKey = "reconnect-delay"
	outputKey         = "output"
)

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.String(configFileKey, "", "Config file (json, yaml or toml) holding flag values")
	fs.String(logLevelKey, "info", "Log level: debug, info, warn or error")
	fs.String(abiKey, "", "Path of the VM ABI json. Fetched from --api-host when empty")
	fs.String(apiHostKey, "http://127.0.0.1:9650", "Base URI of the node serving the chain")
	fs.String(vmNameKey, "", "Name (or chain id) the VM is served under")
	fs.String(vmRPCPrefixKey, client.DefaultConfig().VMRPCPrefix, "Endpoint of the VM specific API")
	fs.Duration(requestTimeoutKey, client.DefaultConfig().RequestTimeout, "Timeout of each JSON-RPC request")
}

func addTxFlags(fs *pflag.FlagSet) {
	fs.String(privateKeyKey, "", "Hex ed25519 seed or expanded private key (required)")
	fs.String(chainIDKey, "", "Chain id. Fetched from --api-host when empty")
	fs.Uint64(maxFeeKey, 10_000_000, "Most the transaction may pay in fees")
	fs.String(timestampKey, "", "Expiry in unix milliseconds. Defaults to now plus 59s")
	fs.String(actionsKey, "[]", `JSON list of {"actionName": ..., "data": {...}} objects`)
}

// newViper layers, from lowest to highest priority, the config file,
// HYPERCLIENT_ environment variables and command line flags.
func newViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if path := v.GetString(configFileKey); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("couldn't read config %q: %w", path, err)
		}
	}
	return v, nil
}

func clientConfig(v *viper.Viper) client.Config {
	config := client.DefaultConfig()
	config.RequestTimeout = v.GetDuration(requestTimeoutKey)
	config.VMRPCPrefix = v.GetString(vmRPCPrefixKey)
	return config
}

func wsConfig(v *viper.Viper) ws.Config {
	config := ws.DefaultConfig()
	if v.IsSet(flushIntervalKey) {
		config.FlushInterval = v.GetDuration(flushIntervalKey)
	}
	if v.IsSet(reconnectDelayKey) {
		config.ReconnectDelay = v.GetDuration(reconnectDelayKey)
	}
	return config
}
