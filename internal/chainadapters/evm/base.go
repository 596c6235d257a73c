// Package evm implements the chainadapter.Adapter contract shared by every
// EVM-compatible chain this gateway talks to: a local node (hardhat.go) and
// a remote provider (ankr.go). Both embed Base and differ only in endpoint
// configuration and retry policy.
package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blockwatch-gateway/gateway/internal/normalizedtx"
	"github.com/blockwatch-gateway/gateway/internal/pkg/logger"
	"github.com/blockwatch-gateway/gateway/internal/pkg/transport/jsonrpc"
)

// transferEventTopic is keccak256("Transfer(address,address,uint256)"), the
// ERC-20 transfer log signature every token adapter watches for.
var transferEventTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")).Hex()

// Base implements chainadapter.Adapter against any endpoint speaking the
// standard eth_* JSON-RPC namespace. hardhat.go and ankr.go construct one
// with chain-specific naming and interval defaults.
type Base struct {
	name                string
	client              jsonrpc.Client
	blockIntervalMillis int64
}

// NewBase constructs the shared EVM adapter core.
func NewBase(name string, client jsonrpc.Client, blockIntervalMillis int64) *Base {
	return &Base{name: name, client: client, blockIntervalMillis: blockIntervalMillis}
}

func (b *Base) Name() string                       { return b.name }
func (b *Base) BlockIntervalMillis() int64          { return b.blockIntervalMillis }
func (b *Base) DisableHeightProcessing() bool       { return false }

// Height fetches eth_blockNumber.
func (b *Base) Height(ctx context.Context) (uint64, error) {
	raw, err := b.client.Fetch(ctx, "eth_blockNumber")
	if err != nil {
		return 0, fmt.Errorf("evm(%s): eth_blockNumber: %w", b.name, err)
	}
	var hexHeight string
	if err := json.Unmarshal(raw, &hexHeight); err != nil {
		return 0, fmt.Errorf("evm(%s): decode eth_blockNumber: %w", b.name, err)
	}
	return parseHexUint(hexHeight)
}

// IsAccount reports whether addr has no deployed code (eth_getCode == "0x").
func (b *Base) IsAccount(ctx context.Context, addr string) (bool, error) {
	if !ethcommon.IsHexAddress(addr) {
		return false, nil
	}
	raw, err := b.client.Fetch(ctx, "eth_getCode", addr, "latest")
	if err != nil {
		return false, fmt.Errorf("evm(%s): eth_getCode: %w", b.name, err)
	}
	var code string
	if err := json.Unmarshal(raw, &code); err != nil {
		return false, fmt.Errorf("evm(%s): decode eth_getCode: %w", b.name, err)
	}
	return code == "0x" || code == "0x0", nil
}

// SubscribeContract is a no-op: log filters are derived from the interest
// set inline during TxsAt rather than installed upstream.
func (b *Base) SubscribeContract(ctx context.Context, addr string) error {
	return nil
}

// TxsAt fetches the block at height with full transaction objects plus the
// Transfer-event logs for the block, and normalizes both native value
// transfers and ERC-20 transfers into normalizedtx.Tx. A per-item decode
// failure is logged and dropped rather than failing the whole call.
func (b *Base) TxsAt(ctx context.Context, height uint64) ([]normalizedtx.Tx, error) {
	blockParam := "0x" + strconv.FormatUint(height, 16)

	raw, err := b.client.Fetch(ctx, "eth_getBlockByNumber", blockParam, true)
	if err != nil {
		return nil, fmt.Errorf("evm(%s): eth_getBlockByNumber: %w", b.name, err)
	}

	var block rpcBlock
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, fmt.Errorf("evm(%s): decode block: %w", b.name, err)
	}

	out := make([]normalizedtx.Tx, 0, len(block.Transactions))
	for _, t := range block.Transactions {
		tx, ok := t.normalize(height)
		if !ok {
			continue
		}
		out = append(out, tx)
	}

	logs, err := b.transferLogsAt(ctx, blockParam)
	if err != nil {
		logger.Warn(ctx, "eth_getLogs failed, native transfers only", "network", b.name, "height", height, "error", err)
		return out, nil
	}
	for _, l := range logs {
		tx, ok := l.normalize(height)
		if !ok {
			continue
		}
		out = append(out, tx)
	}

	return out, nil
}

func (b *Base) transferLogsAt(ctx context.Context, blockParam string) ([]rpcLog, error) {
	filter := map[string]any{
		"fromBlock": blockParam,
		"toBlock":   blockParam,
		"topics":    []string{transferEventTopic},
	}
	raw, err := b.client.Fetch(ctx, "eth_getLogs", filter)
	if err != nil {
		return nil, err
	}
	var logs []rpcLog
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

type rpcBlock struct {
	Transactions []rpcTx `json:"transactions"`
}

type rpcTx struct {
	Hash  string `json:"hash"`
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

func (t rpcTx) normalize(height uint64) (normalizedtx.Tx, bool) {
	value, ok := new(big.Int).SetString(strings.TrimPrefix(t.Value, "0x"), 16)
	if !ok {
		return normalizedtx.Tx{}, false
	}
	if value.Sign() == 0 || t.To == "" {
		return normalizedtx.Tx{}, false
	}
	return normalizedtx.Tx{
		Hash:        t.Hash,
		From:        strings.ToLower(t.From),
		To:          strings.ToLower(t.To),
		Value:       value,
		BlockNumber: height,
	}, true
}

type rpcLog struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	TxHash      string   `json:"transactionHash"`
}

// normalize decodes an ERC-20 Transfer(address,address,uint256) log: topics
// 1 and 2 carry the indexed from/to addresses (left-padded to 32 bytes),
// Data carries the uint256 value.
func (l rpcLog) normalize(height uint64) (normalizedtx.Tx, bool) {
	if len(l.Topics) != 3 || l.Topics[0] != transferEventTopic {
		return normalizedtx.Tx{}, false
	}
	from := topicToAddress(l.Topics[1])
	to := topicToAddress(l.Topics[2])
	value, ok := new(big.Int).SetString(strings.TrimPrefix(l.Data, "0x"), 16)
	if !ok || value.Sign() == 0 || to == "" {
		return normalizedtx.Tx{}, false
	}
	return normalizedtx.Tx{
		Hash:        l.TxHash,
		From:        from,
		To:          to,
		Value:       value,
		BlockNumber: height,
		Token:       strings.ToLower(l.Address),
	}, true
}

func topicToAddress(topic string) string {
	topic = strings.TrimPrefix(topic, "0x")
	if len(topic) < 40 {
		return ""
	}
	return "0x" + strings.ToLower(topic[len(topic)-40:])
}

func parseHexUint(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex height %q: %w", s, err)
	}
	return v, nil
}
