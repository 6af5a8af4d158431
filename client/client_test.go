// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/gorilla/rpc/v2"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/hypersdk-client/abi"
	"github.com/ava-labs/hypersdk-client/address"

	avajson "github.com/ava-labs/avalanchego/utils/json"
)

const testVM = "testvm"

var (
	testNetwork = NetworkReply{
		NetworkID: 1337,
		SubnetID:  ids.ID{1},
		ChainID:   ids.ID{2},
	}
	testABI = abi.VMABI{
		Actions: []abi.Action{{ID: 0, Name: "Transfer", Output: "uint64"}},
		Types: []abi.Type{{
			Name: "Transfer",
			Fields: []abi.Field{
				{Name: "to", Type: "Address"},
				{Name: "value", Type: "uint64"},
			},
		}},
	}

	errRejected = errors.New("rejected")
)

type testService struct {
	lock         sync.Mutex
	networkCalls int
	submitted    [][]byte
	executed     []ExecuteArgs
	delay        time.Duration
}

type NetworkArgs struct{}

func (s *testService) Network(_ *http.Request, _ *NetworkArgs, reply *NetworkReply) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.networkCalls++
	*reply = testNetwork
	return nil
}

func (*testService) GetABI(_ *http.Request, _ *GetABIArgs, reply *GetABIReply) error {
	reply.ABI = testABI
	return nil
}

func (s *testService) SubmitTx(_ *http.Request, args *SubmitTxArgs, reply *SubmitTxReply) error {
	s.lock.Lock()
	delay := s.delay
	s.lock.Unlock()
	time.Sleep(delay)

	if len(args.Tx) == 0 {
		return errRejected
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.submitted = append(s.submitted, args.Tx)
	reply.TxID = hashing.ComputeHash256Array(args.Tx)
	return nil
}

func (s *testService) Execute(_ *http.Request, args *ExecuteArgs, reply *ExecuteReply) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.executed = append(s.executed, *args)
	switch len(args.Action) {
	case 0:
	case 1:
		reply.Error = "insufficient balance"
	default:
		reply.Output = args.Action[1:]
	}
	return nil
}

func (s *testService) setDelay(delay time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.delay = delay
}

func (s *testService) calls() (int, [][]byte, []ExecuteArgs) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.networkCalls, s.submitted, s.executed
}

type testVMService struct{}

type EchoArgs struct {
	Message string `json:"message"`
}

type EchoReply struct {
	Message string `json:"message"`
}

func (testVMService) Echo(_ *http.Request, args *EchoArgs, reply *EchoReply) error {
	reply.Message = args.Message
	return nil
}

func newRPCServer(t *testing.T, service any, name string) *rpc.Server {
	server := rpc.NewServer()
	codec := avajson.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	require.NoError(t, server.RegisterService(service, name))
	return server
}

func newTestClient(t *testing.T, config Config) (*Client, *testService) {
	service := &testService{}
	mux := http.NewServeMux()
	mux.Handle("/ext/bc/"+testVM+"/"+coreAPIEndpoint, newRPCServer(t, service, Name))
	mux.Handle("/ext/bc/"+testVM+"/vmapi", newRPCServer(t, testVMService{}, testVM))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return New(server.URL, testVM, config, nil), service
}

func TestNetworkCached(t *testing.T) {
	require := require.New(t)
	cli, service := newTestClient(t, DefaultConfig())

	for i := 0; i < 3; i++ {
		network, err := cli.Network(context.Background())
		require.NoError(err)
		require.Equal(testNetwork, *network)
	}
	networkCalls, _, _ := service.calls()
	require.Equal(1, networkCalls)
}

func TestGetABI(t *testing.T) {
	require := require.New(t)
	cli, _ := newTestClient(t, DefaultConfig())

	r, err := cli.GetABI(context.Background())
	require.NoError(err)
	require.Equal(testABI, r.ABI())

	action, err := r.Action("Transfer")
	require.NoError(err)
	require.Equal(abi.KindUint64, action.Output.Kind)
}

func TestSubmitTx(t *testing.T) {
	require := require.New(t)
	cli, service := newTestClient(t, DefaultConfig())

	signed := []byte{0, 1, 2, 3}
	txID, err := cli.SubmitTx(context.Background(), signed)
	require.NoError(err)
	require.Equal(ids.ID(hashing.ComputeHash256Array(signed)), txID)
	_, submitted, _ := service.calls()
	require.Equal([][]byte{signed}, submitted)

	_, err = cli.SubmitTx(context.Background(), nil)
	require.ErrorContains(err, errRejected.Error())
}

func TestExecute(t *testing.T) {
	require := require.New(t)
	cli, service := newTestClient(t, DefaultConfig())

	actor := address.Address{0, 1, 2}
	output, err := cli.Execute(context.Background(), actor, []byte{0, 7, 8})
	require.NoError(err)
	require.Equal([]byte{7, 8}, output)
	_, _, executed := service.calls()
	require.Equal(actor, executed[0].Actor)

	_, err = cli.Execute(context.Background(), actor, []byte{0})
	require.ErrorIs(err, ErrExecution)
	require.ErrorContains(err, "insufficient balance")

	_, err = cli.Execute(context.Background(), actor, nil)
	require.ErrorIs(err, ErrNoOutput)
}

func TestVMRequest(t *testing.T) {
	require := require.New(t)
	cli, _ := newTestClient(t, DefaultConfig())

	reply := new(EchoReply)
	require.NoError(cli.VMRequest(context.Background(), "echo", &EchoArgs{Message: "hi"}, reply))
	require.Equal("hi", reply.Message)
}

func TestRequestTimeout(t *testing.T) {
	require := require.New(t)

	config := DefaultConfig()
	config.RequestTimeout = 20 * time.Millisecond
	cli, service := newTestClient(t, config)
	service.setDelay(200 * time.Millisecond)

	_, err := cli.SubmitTx(context.Background(), []byte{1})
	require.ErrorIs(err, ErrRequestTimeout)
}
