// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ws

import (
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ws"

const (
	kindBlock   = "block"
	kindTx      = "tx"
	kindUnknown = "unknown"
)

type metrics struct {
	messagesQueued   prometheus.Counter
	batchesSent      prometheus.Counter
	bytesSent        prometheus.Counter
	messagesReceived *prometheus.CounterVec
	unmatchedResults prometheus.Counter
	decodeFailures   prometheus.Counter
	reconnects       prometheus.Counter
	pendingTxs       prometheus.Gauge
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		messagesQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_queued",
			Help:      "number of messages queued for sending",
		}),
		batchesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_sent",
			Help:      "number of batches written to the socket",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent",
			Help:      "number of batch bytes written to the socket",
		}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received",
			Help:      "number of inbound messages by kind",
		}, []string{"kind"}),
		unmatchedResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unmatched_results",
			Help:      "number of tx results nobody was waiting for",
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures",
			Help:      "number of inbound batches or messages that failed to decode",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects",
			Help:      "number of times the socket was re-dialed",
		}),
		pendingTxs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_txs",
			Help:      "number of transactions awaiting a result",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.messagesQueued),
		registerer.Register(m.batchesSent),
		registerer.Register(m.bytesSent),
		registerer.Register(m.messagesReceived),
		registerer.Register(m.unmatchedResults),
		registerer.Register(m.decodeFailures),
		registerer.Register(m.reconnects),
		registerer.Register(m.pendingTxs),
	)
	return m, errs.Err
}
