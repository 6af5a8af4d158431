// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/hypersdk-client/abi"
	"github.com/ava-labs/hypersdk-client/chain"
)

const closeTimeout = time.Second

var (
	ErrClosed          = errors.New("client closed")
	ErrMessageTooLarge = errors.New("message too large")
)

// BlockHandler receives the body of every block message. It runs on the
// read loop and must not block.
type BlockHandler func(block []byte)

type Option func(*Client)

func WithLogger(log logging.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = registerer
	}
}

func WithBlockHandler(handler BlockHandler) Option {
	return func(c *Client) {
		c.onBlock = handler
	}
}

// WithResultSchema overrides the schema tx results are decoded with.
func WithResultSchema(schema *abi.Registry) Option {
	return func(c *Client) {
		c.schema = schema
	}
}

// Client keeps a websocket to a chain open, batching outbound messages and
// routing tx results back to the callers registered for them.
//
// Outbound messages queue while disconnected and are flushed once a socket
// is open. Losing the socket never fails a pending registration: its result
// is delivered if the chain sends it after the reconnect.
type Client struct {
	uri        string
	config     Config
	log        logging.Logger
	registerer prometheus.Registerer
	schema     *abi.Registry
	onBlock    BlockHandler
	dialer     websocket.Dialer

	metrics *metrics
	pending *pendingTxs

	lock   sync.Mutex
	queue  [][]byte
	conn   *websocket.Conn
	closed bool

	cancel context.CancelFunc
	done   <-chan struct{}
	eg     errgroup.Group
}

// New starts a client for the websocket endpoint [uri]. See URI.
func New(uri string, config Config, options ...Option) (*Client, error) {
	if err := config.verify(); err != nil {
		return nil, err
	}
	c := &Client{
		uri:        uri,
		config:     config,
		log:        logging.NoLog{},
		registerer: prometheus.NewRegistry(),
		dialer: websocket.Dialer{
			HandshakeTimeout: config.DialTimeout,
		},
	}
	for _, option := range options {
		option(c)
	}
	if c.schema == nil {
		schema, err := chain.NewResultSchema()
		if err != nil {
			return nil, err
		}
		c.schema = schema
	}

	var err error
	c.metrics, err = newMetrics(c.registerer)
	if err != nil {
		return nil, fmt.Errorf("couldn't register metrics: %w", err)
	}
	c.pending, err = newPendingTxs(config.MaxPendingTxs, config.RecentTxIDs, c.registerer)
	if err != nil {
		return nil, fmt.Errorf("couldn't create pending table: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = ctx.Done()
	c.eg.Go(func() error {
		return c.connectLoop(ctx)
	})
	c.eg.Go(func() error {
		return c.flushLoop(ctx)
	})
	return c, nil
}

// RegisterTx sends [signed] to the chain and waits for its result. The
// returned message carries either the chain's refusal or the execution
// result.
//
// There is no timeout. If [ctx] ends first, the registration is dropped and
// the same transaction may be registered again.
func (c *Client) RegisterTx(ctx context.Context, signed []byte) (*TxMessage, error) {
	txID := chain.TxID(signed)
	if c.isClosed() {
		return nil, ErrClosed
	}
	waiter, err := c.pending.Insert(txID)
	if err != nil {
		return nil, err
	}
	c.metrics.pendingTxs.Set(float64(c.pending.Len()))
	c.log.Debug("registered tx",
		zap.Stringer("txID", txID),
	)

	if err := c.enqueue(NewTxRequest(signed)); err != nil {
		c.evict(txID)
		return nil, err
	}

	select {
	case msg := <-waiter:
		return msg, nil
	case <-ctx.Done():
		c.evict(txID)
		return nil, ctx.Err()
	case <-c.done:
		c.evict(txID)
		return nil, ErrClosed
	}
}

// Pending is the number of registrations awaiting a result.
func (c *Client) Pending() int {
	return c.pending.Len()
}

// Close stops the client. Registrations still waiting return ErrClosed.
func (c *Client) Close() error {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return ErrClosed
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.lock.Unlock()

	c.cancel()
	if conn != nil {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeTimeout),
		)
		_ = conn.Close()
	}
	return c.eg.Wait()
}

func (c *Client) isClosed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.closed
}

func (c *Client) evict(txID ids.ID) {
	c.pending.Evict(txID)
	c.metrics.pendingTxs.Set(float64(c.pending.Len()))
}

func (c *Client) enqueue(msg []byte) error {
	if size := frameSize(msg); size > c.config.MaxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, size, c.config.MaxMessageSize)
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.queue = append(c.queue, msg)
	c.metrics.messagesQueued.Inc()
	return nil
}

func (c *Client) connectLoop(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			c.metrics.reconnects.Inc()
			c.log.Info("reconnecting",
				zap.String("uri", c.uri),
				zap.Duration("delay", c.config.ReconnectDelay),
			)
			timer := time.NewTimer(c.config.ReconnectDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}

		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("failed to dial",
				zap.String("uri", c.uri),
				zap.Error(err),
			)
			continue
		}
		if !c.open(conn) {
			_ = conn.Close()
			return nil
		}
		c.readLoop(conn)
		c.drop(conn)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	if c.config.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.DialTimeout)
		defer cancel()
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.uri, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// open installs [conn] as the socket and sends everything queued so far.
func (c *Client) open(conn *websocket.Conn) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return false
	}
	if c.config.MaxReadSize > 0 {
		conn.SetReadLimit(c.config.MaxReadSize)
	}
	c.conn = conn
	if c.config.SubscribeBlocks {
		c.queue = withSubscribe(c.queue)
	}
	c.log.Info("connected",
		zap.String("uri", c.uri),
		zap.Int("queued", len(c.queue)),
		zap.Int("pending", c.pending.Len()),
	)
	c.flushLocked()
	return true
}

// withSubscribe puts a block subscription at the head of [queue] unless one
// from a failed flush is already there.
func withSubscribe(queue [][]byte) [][]byte {
	if len(queue) > 0 && isSubscribe(queue[0]) {
		return queue
	}
	return append([][]byte{{BlockMode}}, queue...)
}

func isSubscribe(msg []byte) bool {
	return len(msg) == 1 && msg[0] == BlockMode
}

func (c *Client) drop(conn *websocket.Conn) {
	c.lock.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.lock.Unlock()

	_ = conn.Close()
	c.log.Info("disconnected",
		zap.String("uri", c.uri),
		zap.Int("pending", c.pending.Len()),
	)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			c.log.Debug("read loop exiting",
				zap.Error(err),
			)
			return
		}
		c.handleBatch(b)
	}
}

func (c *Client) handleBatch(b []byte) {
	msgs, err := DecodeBatch(b)
	if err != nil {
		c.metrics.decodeFailures.Inc()
		c.log.Warn("dropping malformed batch",
			zap.Int("size", len(b)),
			zap.Error(err),
		)
		return
	}
	for _, msg := range msgs {
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg []byte) {
	if len(msg) == 0 {
		c.metrics.decodeFailures.Inc()
		c.log.Warn("dropping message",
			zap.Error(ErrEmptyMessage),
		)
		return
	}

	switch mode, body := msg[0], msg[1:]; mode {
	case BlockMode:
		c.metrics.messagesReceived.WithLabelValues(kindBlock).Inc()
		if c.onBlock != nil {
			c.onBlock(body)
		}
	case TxMode:
		c.metrics.messagesReceived.WithLabelValues(kindTx).Inc()
		txMsg, err := ParseTxMessage(c.schema, body)
		if err != nil {
			c.metrics.decodeFailures.Inc()
			c.log.Warn("dropping malformed tx message",
				zap.Error(err),
			)
			return
		}
		if !c.pending.Resolve(txMsg) {
			c.metrics.unmatchedResults.Inc()
			c.log.Debug("dropping unmatched tx result",
				zap.Stringer("txID", txMsg.TxID),
			)
			return
		}
		c.metrics.pendingTxs.Set(float64(c.pending.Len()))
	default:
		c.metrics.messagesReceived.WithLabelValues(kindUnknown).Inc()
		c.log.Warn("dropping message",
			zap.Uint8("mode", mode),
			zap.Error(ErrUnknownMode),
		)
	}
}

func (c *Client) flushLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.lock.Lock()
			c.flushLocked()
			c.lock.Unlock()
		}
	}
}

// flushLocked writes the queue as batches no larger than MaxMessageSize.
// Messages leave the queue only once written. Assumes [c.lock] is held.
func (c *Client) flushLocked() {
	if c.conn == nil {
		return
	}
	for len(c.queue) > 0 {
		n, size := 0, 0
		for n < len(c.queue) {
			next := size + frameSize(c.queue[n])
			if n > 0 && next > c.config.MaxMessageSize {
				break
			}
			size = next
			n++
		}

		batch, err := EncodeBatch(c.queue[:n])
		if err != nil {
			c.log.Error("failed to encode batch",
				zap.Int("messages", n),
				zap.Error(err),
			)
			return
		}
		if c.config.WriteTimeout > 0 {
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
		}
		if err := c.conn.WriteMessage(websocket.BinaryMessage, batch); err != nil {
			c.log.Warn("failed to send batch",
				zap.Int("messages", n),
				zap.Error(err),
			)
			// the read loop notices the closed socket and reconnects
			_ = c.conn.Close()
			c.conn = nil
			return
		}
		c.metrics.batchesSent.Inc()
		c.metrics.bytesSent.Add(float64(len(batch)))
		c.log.Debug("sent batch",
			zap.Int("messages", n),
			zap.Int("bytes", len(batch)),
		)
		c.queue = c.queue[n:]
	}
	c.queue = nil
}
