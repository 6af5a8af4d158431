// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	log "github.com/inconshreveable/log15"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "hyperclient failed: %s\n", err)
		cancel()
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	c := &cobra.Command{
		Use:               "hyperclient",
		Short:             "Encodes, signs and submits transactions to HyperSDK chains",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupLogging,
	}
	addGlobalFlags(c.PersistentFlags())
	c.AddCommand(
		abiHashCommand(),
		encodeCommand(),
		decodeCommand(),
		signCommand(),
		sendCommand(),
		versionCommand(),
	)
	return c
}

func setupLogging(c *cobra.Command, _ []string) error {
	v, err := newViper(c.Flags())
	if err != nil {
		return err
	}
	lvl, err := log.LvlFromString(v.GetString(logLevelKey))
	if err != nil {
		return err
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(c.ErrOrStderr(), log.TerminalFormat())))
	return nil
}
