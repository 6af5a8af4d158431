// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ws

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ava-labs/avalanchego/utils/units"
)

var errInvalidConfig = errors.New("invalid config")

type Config struct {
	// FlushInterval is how often queued messages are sent as one batch.
	FlushInterval time.Duration `json:"flushInterval"`
	// ReconnectDelay is how long to wait before re-dialing a lost socket.
	ReconnectDelay time.Duration `json:"reconnectDelay"`
	DialTimeout    time.Duration `json:"dialTimeout"`
	WriteTimeout   time.Duration `json:"writeTimeout"`
	// RecentTxIDs bounds the ledger used to reject duplicate registrations.
	RecentTxIDs   int `json:"recentTxIDs"`
	MaxPendingTxs int `json:"maxPendingTxs"`
	// MaxMessageSize bounds outbound batches.
	MaxMessageSize int `json:"maxMessageSize"`
	// MaxReadSize bounds inbound batches. Zero means no limit.
	MaxReadSize int64 `json:"maxReadSize"`
	// SubscribeBlocks asks the chain for every accepted block on each
	// connection.
	SubscribeBlocks bool `json:"subscribeBlocks"`
}

func DefaultConfig() Config {
	return Config{
		FlushInterval:  100 * time.Millisecond,
		ReconnectDelay: 5 * time.Second,
		DialTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		RecentTxIDs:    100,
		MaxPendingTxs:  4096,
		MaxMessageSize: 2 * units.MiB,
	}
}

func (c Config) verify() error {
	switch {
	case c.FlushInterval <= 0:
		return fmt.Errorf("%w: flush interval %s", errInvalidConfig, c.FlushInterval)
	case c.ReconnectDelay < 0:
		return fmt.Errorf("%w: reconnect delay %s", errInvalidConfig, c.ReconnectDelay)
	case c.RecentTxIDs <= 0:
		return fmt.Errorf("%w: recent tx ids %d", errInvalidConfig, c.RecentTxIDs)
	case c.MaxPendingTxs <= 0:
		return fmt.Errorf("%w: max pending txs %d", errInvalidConfig, c.MaxPendingTxs)
	case c.MaxMessageSize <= frameSize(nil):
		return fmt.Errorf("%w: max message size %d", errInvalidConfig, c.MaxMessageSize)
	case c.MaxReadSize < 0:
		return fmt.Errorf("%w: max read size %d", errInvalidConfig, c.MaxReadSize)
	default:
		return nil
	}
}

// URI returns the websocket endpoint of [vmName] served by [apiHost], using
// wss when the host is served over https.
func URI(apiHost, vmName string) (string, error) {
	u, err := url.Parse(apiHost)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: no host in %q", errInvalidConfig, apiHost)
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{
		Scheme: scheme,
		Host:   u.Host,
		Path:   "/ext/bc/" + vmName + "/corews",
	}).String(), nil
}
