// Command gateway runs the blockchain indexer gateway: it wires one chain
// adapter, height poller, subscription table and transport pair per
// configured network, then hands control to the CLI (start/watch/unwatch).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/blockwatch-gateway/gateway/internal/chainadapter"
	"github.com/blockwatch-gateway/gateway/internal/chainadapters/evm"
	"github.com/blockwatch-gateway/gateway/internal/chainadapters/solana"
	"github.com/blockwatch-gateway/gateway/internal/chainadapters/ton"
	"github.com/blockwatch-gateway/gateway/internal/chainadapters/tron"
	"github.com/blockwatch-gateway/gateway/internal/config"
	"github.com/blockwatch-gateway/gateway/internal/connlifecycle"
	"github.com/blockwatch-gateway/gateway/internal/gateway"
	"github.com/blockwatch-gateway/gateway/internal/handlers/cli"
	"github.com/blockwatch-gateway/gateway/internal/handlers/httprpc"
	"github.com/blockwatch-gateway/gateway/internal/handlers/ws"
	"github.com/blockwatch-gateway/gateway/internal/heightpoll"
	"github.com/blockwatch-gateway/gateway/internal/infra/storage/redis"
	graphqltransport "github.com/blockwatch-gateway/gateway/internal/infra/transport/graphql"
	"github.com/blockwatch-gateway/gateway/internal/interestset"
	"github.com/blockwatch-gateway/gateway/internal/normalizedtx"
	"github.com/blockwatch-gateway/gateway/internal/pkg/logger"
	"github.com/blockwatch-gateway/gateway/internal/pkg/telemetry"
	httptransport "github.com/blockwatch-gateway/gateway/internal/pkg/transport/http"
	"github.com/blockwatch-gateway/gateway/internal/pkg/transport/jsonrpc"
	"github.com/blockwatch-gateway/gateway/internal/subscription"
	"github.com/blockwatch-gateway/gateway/internal/walletregistry"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Telemetry must be initialized before the logger so its LoggerProvider
	// (if any) is registered in time for logger.Init to pick up the OTEL
	// bridge core.
	if cfg.TelemetryEnabled {
		shutdown, err := telemetry.Init(ctx, cfg.ServiceName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to init telemetry: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error(ctx, "telemetry shutdown failed", "error", err)
			}
		}()
	}

	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	networks, err := buildNetworks(cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to build chain networks", "error", err)
	}
	if len(networks) == 0 {
		logger.Fatal(ctx, "no chain networks configured; set at least one upstream RPC URL")
	}

	var dispatchGuard heightpoll.DispatchGuard
	var checkpointStore heightpoll.CheckpointStorage
	var walletStore walletregistry.WalletStorage
	if cfg.RedisAddr != "" {
		rc, err := redis.NewClient(ctx, cfg.RedisAddr, "", cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal(ctx, "failed to connect to redis", "error", err)
		}
		defer rc.Close()

		walletStore = rc
		if cfg.DistributedIdempotencyEnabled {
			dispatchGuard = rc
		}
		if cfg.CheckpointEnabled {
			checkpointStore = rc
		}
	}

	lifecycleNetworks := make(map[string]connlifecycle.Network, len(networks))
	pollers := make(map[string]heightpoll.Service, len(networks))

	for name, net := range networks {
		opts := []heightpoll.Option{}
		if checkpointStore != nil {
			opts = append(opts, heightpoll.WithCheckpointStorage(checkpointStore))
		}
		if dispatchGuard != nil {
			opts = append(opts, heightpoll.WithDispatchGuard(dispatchGuard))
		}

		pollers[name] = heightpoll.New(name, net.adapter, net.table, net.canon, opts...)
		lifecycleNetworks[name] = connlifecycle.Network{
			Adapter:   net.adapter,
			Table:     net.table,
			Interests: net.interests,
		}
	}

	registry := connlifecycle.NewRegistry(lifecycleNetworks)

	for name, net := range networks {
		if net.aggPoller != nil {
			logger.Info(ctx, "solana network is graphql-driven, launching aggregator poller", "network", name)
			go net.aggPoller.Run(ctx)
		}
	}

	mux := http.NewServeMux()
	for name, net := range networks {
		mux.Handle("/ws/"+name, ws.New(name, registry))

		var rpcOpts []httprpc.Option
		if tq, ok := net.adapter.(httprpc.TokenTransferQuerier); ok {
			rpcOpts = append(rpcOpts, httprpc.WithTokenTransferQuerier(tq))
		}
		mux.Handle("/jsonrpc/"+name, httprpc.New(net.adapter, rangeHistoryQuerier{adapter: net.adapter}, pollers[name], rpcOpts...))
	}

	gw := gateway.New(pollers)

	var wr walletregistry.Service
	if walletStore != nil {
		wr = walletregistry.New(walletStore)
	}

	go func() {
		logger.Info(ctx, "http/ws transport listening", "addr", cfg.WSAddr)
		if err := http.ListenAndServe(cfg.WSAddr, mux); err != nil {
			logger.Error(ctx, "transport server exited", "error", err)
		}
	}()

	if err := cli.Run(ctx, wr, gw); err != nil {
		logger.Fatal(ctx, "gateway exited with error", "error", err)
	}
}

type chainNetwork struct {
	adapter   chainadapter.Adapter
	table     *subscription.Table
	interests *interestset.Set
	canon     chainadapter.Canonicalizer

	// aggPoller is set only for a GraphQL-driven Solana network (see
	// config.SolanaConfig.GraphQLURL); its adapter reports
	// DisableHeightProcessing() == true, so this poller is the only thing
	// feeding the matcher for that network.
	aggPoller *solana.AggregatorPoller
}

// buildNetworks constructs one chainNetwork per configured, non-disabled
// upstream.
func buildNetworks(cfg config.Config) (map[string]chainNetwork, error) {
	networks := make(map[string]chainNetwork)

	if cfg.Ethereum.RPCURL != "" && !cfg.Ethereum.Disabled {
		networks["ethereum"] = newEVMNetwork(evm.NewHardhat(cfg.Ethereum.RPCURL, cfg.Ethereum.BlockIntervalMS))
	}
	if cfg.Ankr.APIKey != "" && !cfg.Ankr.Disabled {
		networks["ankr"] = newEVMNetwork(evm.NewAnkr("eth", cfg.Ankr.APIKey, cfg.Ankr.BlockIntervalMS))
	}
	if cfg.Tron.RPCURL != "" && !cfg.Tron.Disabled {
		adapter := tron.New(cfg.Tron.RPCURL, cfg.Tron.RPCURL, cfg.Tron.BlockIntervalMS, nil)
		networks["tron"] = chainNetwork{adapter: adapter, table: subscription.New(), interests: interestset.New()}
	}
	if cfg.TON.RPCURL != "" && !cfg.TON.Disabled {
		adapter := ton.New(cfg.TON.RPCURL, cfg.TON.BlockIntervalMS, nil)
		networks["toncenter"] = chainNetwork{adapter: adapter, table: subscription.New(), interests: interestset.New(), canon: adapter}
	}
	if cfg.Solana.RPCURL != "" && !cfg.Solana.Disabled {
		networks["solana"] = newSolanaNetwork(cfg.Solana)
	}

	return networks, nil
}

func newEVMNetwork(base *evm.Base) chainNetwork {
	return chainNetwork{adapter: base, table: subscription.New(), interests: interestset.New()}
}

// newSolanaNetwork builds a pull-mode Solana network, or a GraphQL-driven
// one (adapter height processing disabled, matches delivered off a
// timer-driven aggregator poll instead) when cfg.GraphQLURL is set.
func newSolanaNetwork(cfg config.SolanaConfig) chainNetwork {
	table := subscription.New()

	if cfg.GraphQLURL == "" {
		adapter := solana.New(newSolanaClient(cfg.RPCURL), cfg.BlockIntervalMS)
		return chainNetwork{adapter: adapter, table: table, interests: interestset.New(), canon: adapter}
	}

	adapter := solana.NewGraphQLDriven(newSolanaClient(cfg.RPCURL), cfg.BlockIntervalMS)
	client := graphqltransport.New(cfg.GraphQLURL, nil)
	agg := solana.NewAggregator(client)
	tick := time.Duration(cfg.GraphQLPollIntervalMS) * time.Millisecond
	return chainNetwork{
		adapter:   adapter,
		table:     table,
		interests: interestset.New(),
		canon:     adapter,
		aggPoller: solana.NewAggregatorPoller(agg, table, adapter, tick),
	}
}

// rangeHistoryQuerier answers getTransactionsByAddress by walking the
// adapter's own txsAt over the requested block range and filtering
// locally — it is a stateless query over the same adapter surface the
// live poller already uses, not a separate index.
type rangeHistoryQuerier struct {
	adapter chainadapter.Adapter
}

func (q rangeHistoryQuerier) TxsByAddress(ctx context.Context, address string, fromBlock, toBlock uint64, pageSize int, tokenAddress string) ([]normalizedtx.Tx, error) {
	if toBlock < fromBlock {
		return nil, fmt.Errorf("cmd/gateway: toBlock %d precedes fromBlock %d", toBlock, fromBlock)
	}

	var out []normalizedtx.Tx
	for h := fromBlock; h <= toBlock; h++ {
		txs, err := q.adapter.TxsAt(ctx, h)
		if err != nil {
			logger.Warn(ctx, "history query: txsAt failed, skipping height", "height", h, "error", err)
			continue
		}
		for _, tx := range txs {
			if tx.From != address && tx.To != address {
				continue
			}
			if tokenAddress != "" && tx.Token != tokenAddress {
				continue
			}
			out = append(out, tx)
			if pageSize > 0 && len(out) >= pageSize {
				return out, nil
			}
		}
	}
	return out, nil
}

func newSolanaClient(rpcURL string) jsonrpc.Client {
	httpClient := httptransport.NewClient(
		httptransport.WithTimeout(10 * time.Second),
	).StandardClient()
	return jsonrpc.NewClient(httpClient, rpcURL)
}
