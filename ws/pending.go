// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ws

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/cache/metercacher"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrDuplicateTx    = errors.New("transaction already registered")
	ErrTooManyPending = errors.New("too many pending transactions")
)

// pendingTxs correlates tx results with the callers waiting on them.
//
// Waiters survive disconnects. A waiter leaves the table when its result
// arrives or when it is evicted.
type pendingTxs struct {
	lock    sync.Mutex
	waiters map[ids.ID]chan *TxMessage
	// recently registered ids, including ones already resolved
	recent     cache.Cacher[ids.ID, struct{}]
	maxPending int
}

func newPendingTxs(maxPending, recentSize int, registerer prometheus.Registerer) (*pendingTxs, error) {
	recent, err := metercacher.New[ids.ID, struct{}](
		"recent_tx_ids",
		registerer,
		&cache.LRU[ids.ID, struct{}]{Size: recentSize},
	)
	if err != nil {
		return nil, err
	}
	return &pendingTxs{
		waiters:    make(map[ids.ID]chan *TxMessage),
		recent:     recent,
		maxPending: maxPending,
	}, nil
}

// Insert adds a waiter for [txID]. The returned channel receives exactly one
// message unless the waiter is evicted first.
func (p *pendingTxs) Insert(txID ids.ID) (<-chan *TxMessage, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if _, ok := p.waiters[txID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTx, txID)
	}
	if _, ok := p.recent.Get(txID); ok {
		return nil, fmt.Errorf("%w: %s was registered recently", ErrDuplicateTx, txID)
	}
	if len(p.waiters) >= p.maxPending {
		return nil, fmt.Errorf("%w: %d", ErrTooManyPending, len(p.waiters))
	}

	waiter := make(chan *TxMessage, 1)
	p.waiters[txID] = waiter
	p.recent.Put(txID, struct{}{})
	return waiter, nil
}

// Resolve hands [msg] to its waiter and reports whether there was one.
func (p *pendingTxs) Resolve(msg *TxMessage) bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	waiter, ok := p.waiters[msg.TxID]
	if !ok {
		return false
	}
	delete(p.waiters, msg.TxID)
	waiter <- msg
	return true
}

// Evict drops the waiter for [txID] so the same transaction can be
// registered again.
func (p *pendingTxs) Evict(txID ids.ID) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if _, ok := p.waiters[txID]; !ok {
		return
	}
	delete(p.waiters, txID)
	p.recent.Evict(txID)
}

func (p *pendingTxs) Len() int {
	p.lock.Lock()
	defer p.lock.Unlock()

	return len(p.waiters)
}
