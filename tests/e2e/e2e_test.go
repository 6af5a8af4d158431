// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// e2e implements the e2e tests. They run against an already running chain
// and are skipped unless -uris is set.
package e2e_test

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/timer/mockable"
	"github.com/onsi/ginkgo/v2/formatter"

	"github.com/ava-labs/hypersdk-client/abi"
	"github.com/ava-labs/hypersdk-client/chain"
	"github.com/ava-labs/hypersdk-client/client"
	"github.com/ava-labs/hypersdk-client/ws"

	ginkgo "github.com/onsi/ginkgo/v2"
	gomega "github.com/onsi/gomega"
)

func TestE2e(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "hyperclient e2e test suites")
}

var (
	requestTimeout time.Duration

	urisFlag      string
	vmName        string
	privateKeyHex string
	transferName  string
	maxFee        uint64
)

func init() {
	flag.DurationVar(
		&requestTimeout,
		"request-timeout",
		120*time.Second,
		"timeout for transaction issuance and confirmation",
	)
	flag.StringVar(
		&urisFlag,
		"uris",
		"",
		"comma separated node API URIs. Tests are skipped when empty",
	)
	flag.StringVar(
		&vmName,
		"vm-name",
		"morpheusvm",
		"name (or chain id) the VM is served under",
	)
	flag.StringVar(
		&privateKeyHex,
		"private-key",
		"323b1d8f4eed5f0da9da93071b034f2dce9d2d22692c172f3cb252a64ddfafd01b057de320297c29ad0c1f589ea216869cf1938d88c9fbd70d6748323dbf2fa7",
		"hex ed25519 key of a funded account",
	)
	flag.StringVar(
		&transferName,
		"transfer-action",
		"Transfer",
		"name of the action moving funds between accounts",
	)
	flag.Uint64Var(
		&maxFee,
		"max-fee",
		1_000_000,
		"max fee of issued transactions",
	)
}

type instance struct {
	uri string
	cli *client.Client
}

var (
	instances []instance
	registry  *abi.Registry
	chainID   ids.ID
	signer    *chain.ED25519Signer
)

var _ = ginkgo.BeforeSuite(func() {
	if urisFlag == "" {
		ginkgo.Skip("no -uris given")
	}

	key, err := hex.DecodeString(privateKeyHex)
	gomega.Expect(err).Should(gomega.BeNil())
	signer, err = chain.NewED25519Signer(key)
	gomega.Expect(err).Should(gomega.BeNil())
	outf("\n{{yellow}}$ loaded address %s{{/}}\n", signer.Address())

	for _, uri := range strings.Split(urisFlag, ",") {
		instances = append(instances, instance{
			uri: uri,
			cli: client.New(uri, vmName, client.DefaultConfig(), nil),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	registry, err = instances[0].cli.GetABI(ctx)
	gomega.Expect(err).Should(gomega.BeNil())
	network, err := instances[0].cli.Network(ctx)
	gomega.Expect(err).Should(gomega.BeNil())
	chainID = network.ChainID
	outf("{{blue}}chain %s on network %d{{/}}\n", chainID, uint32(network.NetworkID))
})

var _ = ginkgo.Describe("[Network]", func() {
	ginkgo.It("can get network", func() {
		for _, inst := range instances {
			network, err := inst.cli.Network(context.Background())
			gomega.Ω(err).Should(gomega.BeNil())
			gomega.Ω(network.ChainID).Should(gomega.Equal(chainID))
		}
	})
})

var _ = ginkgo.Describe("[ABI]", func() {
	ginkgo.It("serves the same ABI from every node", func() {
		expected, err := registry.Hash()
		gomega.Ω(err).Should(gomega.BeNil())
		for _, inst := range instances {
			r, err := inst.cli.GetABI(context.Background())
			gomega.Ω(err).Should(gomega.BeNil())
			hash, err := r.Hash()
			gomega.Ω(err).Should(gomega.BeNil())
			gomega.Ω(hash).Should(gomega.Equal(expected))
		}
	})
})

var _ = ginkgo.Describe("[TransferTx]", func() {
	ginkgo.It("transfers over websocket from every node", func() {
		if _, err := registry.Action(transferName); err != nil {
			ginkgo.Skip(fmt.Sprintf("chain has no %q action", transferName))
		}

		for _, inst := range instances {
			ginkgo.By("issuing a transfer to "+inst.uri, func() {
				other, err := chain.GenerateED25519Signer()
				gomega.Ω(err).Should(gomega.BeNil())

				payload := chain.NewPayload(&mockable.Clock{}, chainID, maxFee, []chain.Action{{
					Name: transferName,
					Data: map[string]any{
						"to":    other.Address().String(),
						"value": 10,
						"memo":  []byte{},
					},
				}})
				signed, err := chain.SignTransaction(registry, payload, signer)
				gomega.Ω(err).Should(gomega.BeNil())

				uri, err := ws.URI(inst.uri, vmName)
				gomega.Ω(err).Should(gomega.BeNil())
				wsClient, err := ws.New(uri, ws.DefaultConfig())
				gomega.Ω(err).Should(gomega.BeNil())
				defer func() {
					gomega.Ω(wsClient.Close()).Should(gomega.BeNil())
				}()

				ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
				defer cancel()
				msg, err := wsClient.RegisterTx(ctx, signed)
				gomega.Ω(err).Should(gomega.BeNil())
				gomega.Ω(msg.TxID).Should(gomega.Equal(chain.TxID(signed)))
				gomega.Ω(msg.Err).Should(gomega.BeEmpty())
				gomega.Ω(msg.Result.Success).Should(gomega.BeTrue(), msg.Result.Error)
				outf("{{green}}transfer %s paid %d{{/}}\n", msg.TxID, msg.Result.Fee)
			})
		}
	})
})

// outf prints a ginkgo formatted line, e.g. "{{green}}done{{/}}", to stdout.
func outf(format string, args ...interface{}) {
	s := formatter.F(format, args...)
	fmt.Fprint(formatter.ColorableStdOut, s)
}
