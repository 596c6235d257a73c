package evm

import (
	"fmt"
	"time"

	httptransport "github.com/blockwatch-gateway/gateway/internal/pkg/transport/http"
	"github.com/blockwatch-gateway/gateway/internal/pkg/transport/jsonrpc"
)

// NewAnkr builds the adapter for Ankr's hosted multi-chain EVM RPC. Remote
// providers see real network latency and rate limiting, so this adapter
// retries more patiently than the local hardhat adapter.
func NewAnkr(chain, apiKey string, blockIntervalMillis int64) *Base {
	endpoint := fmt.Sprintf("https://rpc.ankr.com/%s/%s", chain, apiKey)

	retryClient := httptransport.NewClient(
		httptransport.WithTimeout(10*time.Second),
		httptransport.WithRetryWaitMin(1*time.Second),
		httptransport.WithRetryWaitMax(8*time.Second),
		httptransport.WithRetryMax(3),
	)
	httpClient := standardClientFrom(retryClient)

	return NewBase("ethereum-ankr", jsonrpc.NewClient(httpClient, endpoint), blockIntervalMillis)
}
