package evm

import (
	"net/http"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	httptransport "github.com/blockwatch-gateway/gateway/internal/pkg/transport/http"
	"github.com/blockwatch-gateway/gateway/internal/pkg/transport/jsonrpc"
)

// NewHardhat builds the adapter for a locally-run EVM node (e.g. hardhat
// node, anvil, geth --dev). These are trusted, low-latency endpoints, so
// retries are kept short.
func NewHardhat(rpcURL string, blockIntervalMillis int64) *Base {
	retryClient := httptransport.NewClient(
		httptransport.WithTimeout(3 * time.Second),
		httptransport.WithRetryMax(1),
	)
	httpClient := standardClientFrom(retryClient)

	return NewBase("ethereum-hardhat", jsonrpc.NewClient(httpClient, rpcURL), blockIntervalMillis)
}

func standardClientFrom(rc *retryablehttp.Client) *http.Client {
	return rc.StandardClient()
}
