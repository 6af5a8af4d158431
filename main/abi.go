// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ava-labs/hypersdk-client/abi"
	"github.com/ava-labs/hypersdk-client/client"

	log "github.com/inconshreveable/log15"
)

var errMissingVMName = errors.New("--vm-name is required to reach the chain")

func newClient(v *viper.Viper) (*client.Client, error) {
	vmName := v.GetString(vmNameKey)
	if vmName == "" {
		return nil, errMissingVMName
	}
	return client.New(v.GetString(apiHostKey), vmName, clientConfig(v), nil), nil
}

// loadRegistry reads the ABI from --abi, or asks the chain for it.
func loadRegistry(ctx context.Context, v *viper.Viper) (*abi.Registry, error) {
	if path := v.GetString(abiKey); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return abi.Parse(b)
	}

	cli, err := newClient(v)
	if err != nil {
		return nil, err
	}
	log.Debug("fetching abi", "apiHost", v.GetString(apiHostKey), "vm", v.GetString(vmNameKey))
	return cli.GetABI(ctx)
}

func decodeHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return formatting.Decode(formatting.HexNC, s)
}

func encodeHex(b []byte) (string, error) {
	return formatting.Encode(formatting.HexNC, b)
}

func decodeJSON(s string, value any) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	return dec.Decode(value)
}

func printJSON(c *cobra.Command, value any) error {
	b, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.OutOrStdout(), string(b))
	return err
}

func abiHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "abi-hash",
		Short: "Prints the hash of the VM ABI",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			v, err := newViper(c.Flags())
			if err != nil {
				return err
			}
			r, err := loadRegistry(c.Context(), v)
			if err != nil {
				return err
			}
			hash, err := r.Hash()
			if err != nil {
				return err
			}
			hashHex, err := encodeHex(hash[:])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.OutOrStdout(), hashHex)
			return err
		},
	}
}

func encodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "encode <type> <json value>",
		Short: "Encodes a JSON value as an ABI type and prints it as hex",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			v, err := newViper(c.Flags())
			if err != nil {
				return err
			}
			r, err := loadRegistry(c.Context(), v)
			if err != nil {
				return err
			}

			var value any
			if err := decodeJSON(args[1], &value); err != nil {
				return fmt.Errorf("%w: %w", abi.ErrInvalidValue, err)
			}
			b, err := r.Marshal(args[0], value)
			if err != nil {
				return err
			}
			encoded, err := encodeHex(b)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.OutOrStdout(), encoded)
			return err
		},
	}
}

func decodeCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "decode <type> <hex>",
		Short: "Decodes hex bytes as an ABI type and prints them as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			v, err := newViper(c.Flags())
			if err != nil {
				return err
			}
			r, err := loadRegistry(c.Context(), v)
			if err != nil {
				return err
			}
			b, err := decodeHex(args[1])
			if err != nil {
				return err
			}

			var value any
			if v.GetBool(outputKey) {
				value, err = r.UnmarshalOutput(args[0], b)
			} else {
				value, err = r.Unmarshal(args[0], b)
			}
			if err != nil {
				return err
			}
			return printJSON(c, value)
		},
	}
	c.Flags().Bool(outputKey, false, "Treat <type> as an action name and decode its output")
	return c
}
