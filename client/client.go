// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/rpc"
	"go.uber.org/zap"

	"github.com/ava-labs/hypersdk-client/abi"
	"github.com/ava-labs/hypersdk-client/address"

	avajson "github.com/ava-labs/avalanchego/utils/json"
)

const (
	// Name is the service every chain serves its core API under.
	Name = "hypersdk"

	coreAPIEndpoint = "coreapi"
)

var (
	ErrRequestTimeout = errors.New("request timed out")
	ErrNoOutput       = errors.New("no output or error returned from execute")
	ErrExecution      = errors.New("execution failed")
)

type Config struct {
	RequestTimeout time.Duration `json:"requestTimeout"`
	// VMRPCPrefix is the endpoint of the VM specific API, relative to the
	// chain's base path.
	VMRPCPrefix string `json:"vmRPCPrefix"`
}

func DefaultConfig() Config {
	return Config{
		RequestTimeout: 10 * time.Second,
		VMRPCPrefix:    "vmapi",
	}
}

type NetworkReply struct {
	NetworkID avajson.Uint32 `json:"networkId"`
	SubnetID  ids.ID         `json:"subnetId"`
	ChainID   ids.ID         `json:"chainId"`
}

type GetABIArgs struct{}

type GetABIReply struct {
	ABI abi.VMABI `json:"abi"`
}

type SubmitTxArgs struct {
	Tx []byte `json:"tx"`
}

type SubmitTxReply struct {
	TxID ids.ID `json:"txId"`
}

type ExecuteArgs struct {
	Actor  address.Address `json:"actor"`
	Action []byte          `json:"action"`
}

type ExecuteReply struct {
	Output []byte `json:"output"`
	Error  string `json:"error"`
}

// Client talks to a chain's JSON-RPC endpoints.
type Client struct {
	vmName  string
	config  Config
	log     logging.Logger
	coreReq rpc.EndpointRequester
	vmReq   rpc.EndpointRequester

	networkLock sync.Mutex
	network     *NetworkReply
}

// New returns a client for the chain [vmName] served by [apiHost]. A nil
// [log] disables logging.
func New(apiHost, vmName string, config Config, log logging.Logger) *Client {
	if log == nil {
		log = logging.NoLog{}
	}
	base := strings.TrimSuffix(apiHost, "/") + "/ext/bc/" + vmName + "/"
	return &Client{
		vmName:  vmName,
		config:  config,
		log:     log,
		coreReq: rpc.NewEndpointRequester(base + coreAPIEndpoint),
		vmReq:   rpc.NewEndpointRequester(base + strings.TrimPrefix(config.VMRPCPrefix, "/")),
	}
}

// Network returns the ids of the chain. The answer is fetched once.
func (cli *Client) Network(ctx context.Context) (*NetworkReply, error) {
	cli.networkLock.Lock()
	defer cli.networkLock.Unlock()

	if cli.network != nil {
		return cli.network, nil
	}
	resp := new(NetworkReply)
	if err := cli.send(ctx, cli.coreReq, Name+".network", struct{}{}, resp); err != nil {
		return nil, err
	}
	cli.network = resp
	return resp, nil
}

// GetABI fetches the chain's ABI and builds a registry from it.
func (cli *Client) GetABI(ctx context.Context) (*abi.Registry, error) {
	resp := new(GetABIReply)
	if err := cli.send(ctx, cli.coreReq, Name+".getABI", &GetABIArgs{}, resp); err != nil {
		return nil, err
	}
	return abi.New(resp.ABI)
}

// SubmitTx sends signed transaction bytes without waiting for a result.
func (cli *Client) SubmitTx(ctx context.Context, signed []byte) (ids.ID, error) {
	resp := new(SubmitTxReply)
	if err := cli.send(ctx, cli.coreReq, Name+".submitTx", &SubmitTxArgs{Tx: signed}, resp); err != nil {
		return ids.Empty, err
	}
	return resp.TxID, nil
}

// Execute runs the encoded [action] read only, as [actor], and returns its
// encoded output.
func (cli *Client) Execute(ctx context.Context, actor address.Address, action []byte) ([]byte, error) {
	resp := new(ExecuteReply)
	if err := cli.send(ctx, cli.coreReq, Name+".execute", &ExecuteArgs{Actor: actor, Action: action}, resp); err != nil {
		return nil, err
	}
	switch {
	case resp.Error != "":
		return nil, fmt.Errorf("%w: %s", ErrExecution, resp.Error)
	case len(resp.Output) == 0:
		return nil, ErrNoOutput
	default:
		return resp.Output, nil
	}
}

// VMRequest calls [method] of the VM specific API.
func (cli *Client) VMRequest(ctx context.Context, method string, params, reply any) error {
	return cli.send(ctx, cli.vmReq, cli.vmName+"."+method, params, reply)
}

func (cli *Client) send(ctx context.Context, req rpc.EndpointRequester, method string, params, reply any) error {
	if cli.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cli.config.RequestTimeout)
		defer cancel()
	}
	start := time.Now()
	err := req.SendRequest(ctx, method, params, reply)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %s after %s", ErrRequestTimeout, method, cli.config.RequestTimeout)
	}
	cli.log.Debug("sent request",
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	return err
}
