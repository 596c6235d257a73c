// Package tron implements the chainadapter.Adapter contract over a Tron
// full node (block/transaction discovery) and solidity node (confirmed
// transaction info lookups), with a debounced cache shielding both from
// back-to-back polls.
package tron

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blockwatch-gateway/gateway/internal/normalizedtx"
	"github.com/blockwatch-gateway/gateway/internal/pkg/logger"
)

var transferEventTopic = strings.TrimPrefix(crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")).Hex(), "0x")

// transferValueOffset is the byte offset into TriggerSmartContract call data
// where the transfer amount word begins, per the upstream encoding this
// adapter was built against.
const transferValueOffset = 74

const cacheWindow = 10 * time.Second

// Adapter implements chainadapter.Adapter for the Tron network.
type Adapter struct {
	fullNodeURL     string
	solidityNodeURL string
	httpClient      *http.Client
	blockIntervalMS int64

	blockCache *debounceCache
	infoCache  *debounceCache
}

// New builds a Tron adapter against the given full node and solidity node
// base URLs.
func New(fullNodeURL, solidityNodeURL string, blockIntervalMS int64, httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Adapter{
		fullNodeURL:     fullNodeURL,
		solidityNodeURL: solidityNodeURL,
		httpClient:      httpClient,
		blockIntervalMS: blockIntervalMS,
		blockCache:      newDebounceCache(cacheWindow),
		infoCache:       newDebounceCache(cacheWindow),
	}
}

func (a *Adapter) Name() string                 { return "tron" }
func (a *Adapter) BlockIntervalMillis() int64    { return a.blockIntervalMS }
func (a *Adapter) DisableHeightProcessing() bool { return false }
func (a *Adapter) SubscribeContract(ctx context.Context, addr string) error { return nil }

// IsAccount treats any syntactically valid base58check Tron address (starts
// with "T", 34 characters) as an account; Tron has no cheap code-at-address
// check over the public HTTP API used here.
func (a *Adapter) IsAccount(ctx context.Context, addr string) (bool, error) {
	return strings.HasPrefix(addr, "T") && len(addr) == 34, nil
}

func (a *Adapter) Height(ctx context.Context) (uint64, error) {
	var resp struct {
		BlockHeader struct {
			RawData struct {
				Number uint64 `json:"number"`
			} `json:"raw_data"`
		} `json:"block_header"`
	}
	if err := a.post(ctx, a.fullNodeURL+"/wallet/getnowblock", nil, &resp); err != nil {
		return 0, fmt.Errorf("tron: getnowblock: %w", err)
	}
	return resp.BlockHeader.RawData.Number, nil
}

func (a *Adapter) TxsAt(ctx context.Context, height uint64) ([]normalizedtx.Tx, error) {
	block, err := a.blockAt(ctx, height)
	if err != nil {
		return nil, err
	}

	out := make([]normalizedtx.Tx, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		normalized, ok := a.normalize(ctx, tx, height)
		if !ok {
			continue
		}
		out = append(out, normalized)
	}
	return out, nil
}

func (a *Adapter) blockAt(ctx context.Context, height uint64) (*tronBlock, error) {
	cacheKey := fmt.Sprintf("block:%d", height)
	if cached, ok := a.blockCache.get(cacheKey); ok {
		return cached.(*tronBlock), nil
	}

	var block tronBlock
	if err := a.post(ctx, a.fullNodeURL+"/wallet/getblockbynum", map[string]any{"num": height}, &block); err != nil {
		return nil, fmt.Errorf("tron: getblockbynum(%d): %w", height, err)
	}
	a.blockCache.set(cacheKey, &block)
	return &block, nil
}

// normalize applies the native/token edge-case policy: only SUCCESS
// TransferContract/TriggerSmartContract entries are considered, and a
// smart-contract transfer is accepted only after a confirmed tx-info lookup
// with exactly one Transfer log.
func (a *Adapter) normalize(ctx context.Context, tx tronTx, height uint64) (normalizedtx.Tx, bool) {
	if len(tx.RawData.Contract) != 1 || len(tx.Ret) == 0 || tx.Ret[0].ContractRet != "SUCCESS" {
		return normalizedtx.Tx{}, false
	}
	contract := tx.RawData.Contract[0]

	switch contract.Type {
	case "TransferContract":
		var params transferContractParams
		if err := json.Unmarshal(contract.Parameter.Value, &params); err != nil {
			return normalizedtx.Tx{}, false
		}
		if params.Amount <= 0 {
			return normalizedtx.Tx{}, false
		}
		return normalizedtx.Tx{
			Hash:        tx.TxID,
			From:        params.OwnerAddress,
			To:          params.ToAddress,
			Value:       big.NewInt(params.Amount),
			BlockNumber: height,
			HashKeyName: "txid",
		}, true

	case "TriggerSmartContract":
		return a.normalizeTokenTransfer(ctx, tx, contract, height)

	default:
		return normalizedtx.Tx{}, false
	}
}

func (a *Adapter) normalizeTokenTransfer(ctx context.Context, tx tronTx, contract tronContract, height uint64) (normalizedtx.Tx, bool) {
	info, err := a.txInfo(ctx, tx.TxID)
	if err != nil {
		logger.Warn(ctx, "tron: tx info lookup failed, skipping", "txid", tx.TxID, "error", err)
		return normalizedtx.Tx{}, false
	}
	if info.Receipt.Result != "SUCCESS" || len(info.Log) != 1 {
		return normalizedtx.Tx{}, false
	}
	entry := info.Log[0]
	if len(entry.Topics) == 0 || entry.Topics[0] != transferEventTopic {
		return normalizedtx.Tx{}, false
	}

	data, err := hex.DecodeString(entry.Data)
	if err != nil || len(data) <= transferValueOffset {
		return normalizedtx.Tx{}, false
	}
	value := new(big.Int).SetBytes(bytes.TrimLeft(data[transferValueOffset:], "\x00"))
	if value.Sign() == 0 {
		return normalizedtx.Tx{}, false
	}

	var params transferContractParams
	_ = json.Unmarshal(contract.Parameter.Value, &params)

	return normalizedtx.Tx{
		Hash:        tx.TxID,
		From:        params.OwnerAddress,
		To:          params.ToAddress,
		Value:       value,
		BlockNumber: height,
		Token:       entry.Address,
		Fee:         big.NewInt(info.Fee),
		HashKeyName: "txid",
	}, true
}

func (a *Adapter) txInfo(ctx context.Context, txID string) (*tronTxInfo, error) {
	if cached, ok := a.infoCache.get(txID); ok {
		return cached.(*tronTxInfo), nil
	}

	var info tronTxInfo
	if err := a.post(ctx, a.solidityNodeURL+"/wallet/gettransactioninfobyid", map[string]any{"value": txID}, &info); err != nil {
		return nil, err
	}
	a.infoCache.set(txID, &info)
	return &info, nil
}

func (a *Adapter) post(ctx context.Context, url string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	return json.NewDecoder(res.Body).Decode(out)
}

type tronBlock struct {
	Transactions []tronTx `json:"transactions"`
}

type tronTx struct {
	TxID    string `json:"txID"`
	RawData struct {
		Contract []tronContract `json:"contract"`
	} `json:"raw_data"`
	Ret []struct {
		ContractRet string `json:"contractRet"`
	} `json:"ret"`
}

type tronContract struct {
	Type      string `json:"type"`
	Parameter struct {
		Value json.RawMessage `json:"value"`
	} `json:"parameter"`
}

type transferContractParams struct {
	OwnerAddress string `json:"owner_address"`
	ToAddress    string `json:"to_address"`
	Amount       int64  `json:"amount"`
}

type tronTxInfo struct {
	Receipt struct {
		Result string `json:"result"`
	} `json:"receipt"`
	Log []tronLogEntry `json:"log"`
	Fee int64           `json:"fee"`
}

type tronLogEntry struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}
