// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/timer/mockable"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ava-labs/hypersdk-client/abi"
	"github.com/ava-labs/hypersdk-client/chain"
	"github.com/ava-labs/hypersdk-client/ws"

	log "github.com/inconshreveable/log15"
)

var (
	errMissingPrivateKey = errors.New("--private-key is required")
	errRejected          = errors.New("transaction rejected")
)

type signedTx struct {
	TxID    ids.ID `json:"txId"`
	Tx      string `json:"tx"`
	Address string `json:"address"`
}

type sendResult struct {
	signedTx
	Result *ws.TxMessage `json:"result,omitempty"`
}

// buildTx encodes and signs the transaction the flags describe.
func buildTx(ctx context.Context, v *viper.Viper) (*abi.Registry, *chain.ED25519Signer, []byte, error) {
	keyHex := v.GetString(privateKeyKey)
	if keyHex == "" {
		return nil, nil, nil, errMissingPrivateKey
	}
	key, err := decodeHex(keyHex)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", chain.ErrInvalidPrivateKey, err)
	}
	signer, err := chain.NewED25519Signer(key)
	if err != nil {
		return nil, nil, nil, err
	}

	r, err := loadRegistry(ctx, v)
	if err != nil {
		return nil, nil, nil, err
	}

	var actions []chain.Action
	if err := decodeJSON(v.GetString(actionsKey), &actions); err != nil {
		return nil, nil, nil, fmt.Errorf("couldn't parse --%s: %w", actionsKey, err)
	}

	chainID, err := resolveChainID(ctx, v)
	if err != nil {
		return nil, nil, nil, err
	}
	payload := chain.NewPayload(&mockable.Clock{}, chainID, v.GetUint64(maxFeeKey), actions)
	if timestamp := v.GetString(timestampKey); timestamp != "" {
		payload.Timestamp = timestamp
	}

	signed, err := chain.SignTransaction(r, payload, signer)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Debug("signed transaction",
		"txID", chain.TxID(signed),
		"actions", len(actions),
		"size", len(signed),
	)
	return r, signer, signed, nil
}

func resolveChainID(ctx context.Context, v *viper.Viper) (ids.ID, error) {
	if s := v.GetString(chainIDKey); s != "" {
		return ids.FromString(s)
	}
	cli, err := newClient(v)
	if err != nil {
		return ids.Empty, err
	}
	network, err := cli.Network(ctx)
	if err != nil {
		return ids.Empty, err
	}
	log.Info("fetched network", "networkID", uint32(network.NetworkID), "chainID", network.ChainID)
	return network.ChainID, nil
}

func describe(signer *chain.ED25519Signer, signed []byte) (signedTx, error) {
	txHex, err := encodeHex(signed)
	if err != nil {
		return signedTx{}, err
	}
	return signedTx{
		TxID:    chain.TxID(signed),
		Tx:      txHex,
		Address: signer.Address().String(),
	}, nil
}

func signCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "sign",
		Short: "Builds and signs a transaction without sending it",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			v, err := newViper(c.Flags())
			if err != nil {
				return err
			}
			_, signer, signed, err := buildTx(c.Context(), v)
			if err != nil {
				return err
			}
			out, err := describe(signer, signed)
			if err != nil {
				return err
			}
			return printJSON(c, out)
		},
	}
	addTxFlags(c.Flags())
	return c
}

func sendCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "send",
		Short: "Builds, signs and sends a transaction, waiting for its result",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			v, err := newViper(c.Flags())
			if err != nil {
				return err
			}
			ctx := c.Context()
			_, signer, signed, err := buildTx(ctx, v)
			if err != nil {
				return err
			}
			out, err := describe(signer, signed)
			if err != nil {
				return err
			}

			if !v.GetBool(waitKey) {
				cli, err := newClient(v)
				if err != nil {
					return err
				}
				if _, err := cli.SubmitTx(ctx, signed); err != nil {
					return err
				}
				log.Info("submitted transaction", "txID", out.TxID)
				return printJSON(c, sendResult{signedTx: out})
			}

			result, err := waitForResult(ctx, v, signed)
			if err != nil {
				return err
			}
			if err := printJSON(c, sendResult{signedTx: out, Result: result}); err != nil {
				return err
			}
			if result.Err != "" {
				return fmt.Errorf("%w: %s", errRejected, result.Err)
			}
			return nil
		},
	}
	fs := c.Flags()
	addTxFlags(fs)
	fs.Bool(waitKey, true, "Send over websocket and wait for the result. Otherwise submit over JSON-RPC")
	fs.Duration(timeoutKey, time.Minute, "How long to wait for the result")
	fs.Duration(flushIntervalKey, ws.DefaultConfig().FlushInterval, "How often queued websocket messages are sent")
	fs.Duration(reconnectDelayKey, ws.DefaultConfig().ReconnectDelay, "Delay before re-dialing a lost websocket")
	return c
}

func waitForResult(ctx context.Context, v *viper.Viper, signed []byte) (*ws.TxMessage, error) {
	if v.GetString(vmNameKey) == "" {
		return nil, errMissingVMName
	}
	uri, err := ws.URI(v.GetString(apiHostKey), v.GetString(vmNameKey))
	if err != nil {
		return nil, err
	}

	level, err := logging.ToLevel(v.GetString(logLevelKey))
	if err != nil {
		return nil, err
	}
	wsLog := logging.NewLogger(name, logging.NewWrappedCore(level, os.Stderr, logging.Plain.ConsoleEncoder()))

	wsClient, err := ws.New(uri, wsConfig(v), ws.WithLogger(wsLog))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := wsClient.Close(); err != nil {
			log.Warn("failed to close websocket client", "err", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, v.GetDuration(timeoutKey))
	defer cancel()
	log.Info("waiting for result", "uri", uri, "txID", chain.TxID(signed))
	return wsClient.RegisterTx(ctx, signed)
}
