// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// load implements the load tests. They run against an already running chain
// and are skipped unless -uris is set.
package load_test

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/timer/mockable"
	"github.com/onsi/ginkgo/v2/formatter"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/hypersdk-client/abi"
	"github.com/ava-labs/hypersdk-client/chain"
	"github.com/ava-labs/hypersdk-client/client"
	"github.com/ava-labs/hypersdk-client/ws"

	log "github.com/inconshreveable/log15"
	ginkgo "github.com/onsi/ginkgo/v2"
	gomega "github.com/onsi/gomega"
)

func TestLoad(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "hyperclient load test suites")
}

var (
	requestTimeout time.Duration

	urisFlag      string
	vmName        string
	privateKeyHex string
	transferName  string
	maxFee        uint64

	workers  int
	totalTxs uint64
)

func init() {
	flag.DurationVar(
		&requestTimeout,
		"request-timeout",
		5*time.Minute,
		"timeout for the whole load run",
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
		"323b1d8f4eed5f0da9da93071b034f2dce9d2d22692c172f3cb252a64ddfafd0",
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
	flag.IntVar(
		&workers,
		"workers",
		16,
		"concurrent issuers per node",
	)
	flag.Uint64Var(
		&totalTxs,
		"txs",
		10_000,
		"transactions to confirm before stopping",
	)
}

type instance struct {
	uri      string
	wsClient *ws.Client
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

	uris := strings.Split(urisFlag, ",")
	cli := client.New(uris[0], vmName, client.DefaultConfig(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	registry, err = cli.GetABI(ctx)
	gomega.Expect(err).Should(gomega.BeNil())
	network, err := cli.Network(ctx)
	gomega.Expect(err).Should(gomega.BeNil())
	chainID = network.ChainID

	for _, uri := range uris {
		wsURI, err := ws.URI(uri, vmName)
		gomega.Expect(err).Should(gomega.BeNil())
		wsClient, err := ws.New(wsURI, ws.DefaultConfig())
		gomega.Expect(err).Should(gomega.BeNil())
		instances = append(instances, instance{
			uri:      uri,
			wsClient: wsClient,
		})
		outf("{{blue}}connected to %s{{/}}\n", wsURI)
	}
})

var _ = ginkgo.AfterSuite(func() {
	outf("{{red}}shutting down clients{{/}}\n")
	for _, inst := range instances {
		err := inst.wsClient.Close()
		gomega.Expect(err).Should(gomega.BeNil())
		log.Warn("client shutdown result", "uri", inst.uri, "err", err)
	}
})

var _ = ginkgo.Describe("[TransferTx]", func() {
	ginkgo.It("confirms transfers", func() {
		if _, err := registry.Action(transferName); err != nil {
			ginkgo.Skip(fmt.Sprintf("chain has no %q action", transferName))
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		var (
			g, gctx   = errgroup.WithContext(ctx)
			clock     = &mockable.Clock{}
			confirmed atomic.Uint64
			failed    atomic.Uint64
		)
		for _, inst := range instances {
			wsClient := inst.wsClient
			for i := 0; i < workers; i++ {
				g.Go(func() error {
					defer ginkgo.GinkgoRecover()

					for gctx.Err() == nil && confirmed.Load() < totalTxs {
						other, err := chain.GenerateED25519Signer()
						gomega.Ω(err).Should(gomega.BeNil())
						payload := chain.NewPayload(clock, chainID, maxFee, []chain.Action{{
							Name: transferName,
							Data: map[string]any{
								"to":    other.Address().String(),
								"value": 1,
								"memo":  []byte{},
							},
						}})
						signed, err := chain.SignTransaction(registry, payload, signer)
						gomega.Ω(err).Should(gomega.BeNil())

						msg, err := wsClient.RegisterTx(gctx, signed)
						if err != nil {
							return nil
						}
						if msg.Err != "" || !msg.Result.Success {
							failed.Add(1)
							continue
						}
						confirmed.Add(1)
					}
					return nil
				})
			}
		}

		start := time.Now()
		done := make(chan struct{})
		go func() {
			defer close(done)
			ticker := time.NewTicker(3 * time.Second)
			defer ticker.Stop()
			last := uint64(0)
			for {
				select {
				case <-gctx.Done():
					return
				case <-ticker.C:
				}
				n := confirmed.Load()
				log.Info("performance", "confirmed", n,
					"failed", failed.Load(),
					"avg tps", float64(n)/time.Since(start).Seconds(),
					"last tps", float64(n-last)/3.0,
				)
				last = n
			}
		}()
		err := g.Wait()
		cancel()
		<-done
		log.Warn("exiting producer loop", "err", err)
		gomega.Ω(confirmed.Load()).Should(gomega.BeNumerically(">=", totalTxs))
	})
})

// outf prints a ginkgo formatted line, e.g. "{{green}}done{{/}}", to stdout.
func outf(format string, args ...interface{}) {
	s := formatter.F(format, args...)
	fmt.Fprint(formatter.ColorableStdOut, s)
}
