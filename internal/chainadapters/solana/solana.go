// Package solana implements the chainadapter.Adapter contract over the
// standard Solana JSON-RPC namespace, deriving transfers from balance
// diffs rather than instruction decoding. When configured to rely on an
// external GraphQL aggregator for live updates instead, height polling is
// disabled entirely (see graphql.go).
package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/blockwatch-gateway/gateway/internal/normalizedtx"
	"github.com/blockwatch-gateway/gateway/internal/pkg/transport/jsonrpc"
)

// Adapter implements chainadapter.Adapter for Solana.
type Adapter struct {
	client              jsonrpc.Client
	blockIntervalMillis int64

	// disableHeightProcessing is true when an external GraphQL aggregator
	// (see graphql.go) supplies live events instead of this adapter's own
	// poll loop.
	disableHeightProcessing bool
}

// New builds a pull-mode Solana adapter that polls getSlot/getBlock.
func New(client jsonrpc.Client, blockIntervalMillis int64) *Adapter {
	return &Adapter{client: client, blockIntervalMillis: blockIntervalMillis}
}

// NewGraphQLDriven builds a Solana adapter whose height processing is
// disabled because live updates arrive via an external GraphQL subscription
// instead (see graphql.go's Aggregator).
func NewGraphQLDriven(client jsonrpc.Client, blockIntervalMillis int64) *Adapter {
	return &Adapter{client: client, blockIntervalMillis: blockIntervalMillis, disableHeightProcessing: true}
}

func (a *Adapter) Name() string                       { return "solana" }
func (a *Adapter) BlockIntervalMillis() int64          { return a.blockIntervalMillis }
func (a *Adapter) DisableHeightProcessing() bool       { return a.disableHeightProcessing }
func (a *Adapter) SubscribeContract(ctx context.Context, addr string) error { return nil }

// IsAccount performs a syntactic base58 length check; Solana has no
// code-at-address distinction cheap enough to check per subscribe call over
// plain JSON-RPC (getAccountInfo would be needed, and system accounts and
// PDAs both hold no executable code either way).
func (a *Adapter) IsAccount(ctx context.Context, addr string) (bool, error) {
	return len(addr) >= 32 && len(addr) <= 44, nil
}

func (a *Adapter) Height(ctx context.Context) (uint64, error) {
	raw, err := a.client.Fetch(ctx, "getSlot")
	if err != nil {
		return 0, fmt.Errorf("solana: getSlot: %w", err)
	}
	var slot uint64
	if err := json.Unmarshal(raw, &slot); err != nil {
		return 0, fmt.Errorf("solana: decode getSlot: %w", err)
	}
	return slot, nil
}

// TxsAt fetches the block at the given slot and derives transfers from
// balance diffs: native transfers from postBalances/preBalances, SPL token
// transfers from postTokenBalances/preTokenBalances paired by accountIndex.
// Transactions with meta.err set are rejected outright.
func (a *Adapter) TxsAt(ctx context.Context, height uint64) ([]normalizedtx.Tx, error) {
	raw, err := a.client.Fetch(ctx, "getBlock", height, map[string]any{
		"encoding":                       "jsonParsed",
		"transactionDetails":             "full",
		"maxSupportedTransactionVersion": 0,
	})
	if err != nil {
		return nil, fmt.Errorf("solana: getBlock(%d): %w", height, err)
	}

	var block rpcBlock
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, fmt.Errorf("solana: decode block: %w", err)
	}

	var out []normalizedtx.Tx
	for _, entry := range block.Transactions {
		if entry.Meta.Err != nil || entry.Meta.Status.failed() {
			continue
		}

		hash := ""
		if len(entry.Transaction.Signatures) > 0 {
			hash = entry.Transaction.Signatures[0]
		}

		out = append(out, nativeTransfers(entry, height, hash)...)
		out = append(out, tokenTransfers(entry, height, hash)...)
		out = append(out, transferCheckedTransfers(entry, height, hash)...)
	}

	return out, nil
}

func nativeTransfers(entry rpcTxEntry, height uint64, hash string) []normalizedtx.Tx {
	var out []normalizedtx.Tx
	accounts := entry.Transaction.Message.AccountKeys
	for i := range entry.Meta.PostBalances {
		if i >= len(entry.Meta.PreBalances) || i >= len(accounts) {
			continue
		}
		diff := entry.Meta.PostBalances[i] - entry.Meta.PreBalances[i]
		if diff <= 0 {
			continue
		}
		out = append(out, normalizedtx.Tx{
			Hash:        hash,
			To:          accounts[i],
			Value:       big.NewInt(diff),
			BlockNumber: height,
			HashKeyName: "txid",
		})
	}
	return out
}

// tokenTransfers derives SPL transfers from postTokenBalances vs
// preTokenBalances paired by accountIndex. A missing pre-balance is taken as
// zero only when the transaction also carries a createIdempotent/create
// associated-token-account instruction for that token account; otherwise the
// account's true prior balance can't be recovered from this block alone and
// the entry is skipped rather than guessed at.
func tokenTransfers(entry rpcTxEntry, height uint64, hash string) []normalizedtx.Tx {
	accounts := entry.Transaction.Message.AccountKeys
	instrs := allInstructions(entry)

	pre := make(map[int]tokenBalance, len(entry.Meta.PreTokenBalances))
	for _, b := range entry.Meta.PreTokenBalances {
		pre[b.AccountIndex] = b
	}

	var out []normalizedtx.Tx
	for _, post := range entry.Meta.PostTokenBalances {
		preBal, hadPre := pre[post.AccountIndex]

		var preAmount *big.Int
		switch {
		case hadPre:
			v, ok := new(big.Int).SetString(preBal.UITokenAmount.Amount, 10)
			if !ok {
				continue
			}
			preAmount = v
		case post.AccountIndex < len(accounts) && hasCreateATAFor(instrs, accounts[post.AccountIndex]):
			preAmount = big.NewInt(0)
		default:
			continue
		}

		postAmount, ok := new(big.Int).SetString(post.UITokenAmount.Amount, 10)
		if !ok {
			continue
		}

		diff := new(big.Int).Sub(postAmount, preAmount)
		if diff.Sign() <= 0 {
			continue
		}

		out = append(out, normalizedtx.Tx{
			Hash:        hash,
			From:        preBal.Owner,
			To:          post.Owner,
			Value:       diff,
			BlockNumber: height,
			Token:       post.Mint,
			HashKeyName: "txid",
		})
	}
	return out
}

// transferCheckedTransfers harvests transferChecked instructions directly
// from the parsed instruction list, as a detection path separate from (and
// additive to) the balance-diff derivation in tokenTransfers: some token
// programs surface a transfer only as an instruction, with no corresponding
// pre/postTokenBalances entry when the amount nets to zero change for the
// indexed account (e.g. multisig or delegate-authority transfers).
func transferCheckedTransfers(entry rpcTxEntry, height uint64, hash string) []normalizedtx.Tx {
	var out []normalizedtx.Tx
	for _, ix := range allInstructions(entry) {
		if ix.Parsed.Type != "transferChecked" {
			continue
		}
		info := ix.Parsed.Info
		value, ok := new(big.Int).SetString(info.TokenAmount.Amount, 10)
		if !ok || value.Sign() <= 0 {
			continue
		}
		out = append(out, normalizedtx.Tx{
			Hash:        hash,
			From:        info.Source,
			To:          info.Destination,
			Value:       value,
			BlockNumber: height,
			Token:       info.Mint,
			HashKeyName: "txid",
		})
	}
	return out
}

// hasCreateATAFor reports whether instrs contains a createIdempotent/create
// associated-token-account instruction targeting tokenAccount.
func hasCreateATAFor(instrs []parsedInstruction, tokenAccount string) bool {
	for _, ix := range instrs {
		switch ix.Parsed.Type {
		case "createIdempotent", "create":
			if ix.Parsed.Info.Account == tokenAccount {
				return true
			}
		}
	}
	return false
}

// allInstructions flattens a transaction's top-level parsed instructions and
// every inner-instruction group into one slice, since createATA and
// transferChecked instructions can appear in either.
func allInstructions(entry rpcTxEntry) []parsedInstruction {
	out := append([]parsedInstruction{}, entry.Transaction.Message.Instructions...)
	for _, group := range entry.Meta.InnerInstructions {
		out = append(out, group.Instructions...)
	}
	return out
}

type rpcBlock struct {
	Transactions []rpcTxEntry `json:"transactions"`
}

type rpcTxEntry struct {
	Transaction struct {
		Signatures []string `json:"signatures"`
		Message    struct {
			AccountKeys  []string            `json:"accountKeys"`
			Instructions []parsedInstruction `json:"instructions"`
		} `json:"message"`
	} `json:"transaction"`
	Meta struct {
		Err               any                     `json:"err"`
		Status            txStatus                `json:"status"`
		PreBalances       []int64                 `json:"preBalances"`
		PostBalances      []int64                 `json:"postBalances"`
		PreTokenBalances  []tokenBalance          `json:"preTokenBalances"`
		PostTokenBalances []tokenBalance          `json:"postTokenBalances"`
		InnerInstructions []innerInstructionGroup `json:"innerInstructions"`
	} `json:"meta"`
}

// txStatus mirrors Solana's legacy Result<(), TransactionError> status
// field: {"Ok":null} on success, {"Err":{...}} on failure. A present,
// non-null Err is treated the same as meta.err — both mark a failed
// transaction that must be rejected outright.
type txStatus struct {
	Ok  json.RawMessage `json:"Ok"`
	Err json.RawMessage `json:"Err"`
}

func (s txStatus) failed() bool {
	return len(s.Err) > 0 && string(s.Err) != "null"
}

type innerInstructionGroup struct {
	Instructions []parsedInstruction `json:"instructions"`
}

type parsedInstruction struct {
	Program string `json:"program"`
	Parsed  struct {
		Type string `json:"type"`
		Info struct {
			Account     string `json:"account"`
			Source      string `json:"source"`
			Destination string `json:"destination"`
			Mint        string `json:"mint"`
			TokenAmount struct {
				Amount string `json:"amount"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

type tokenBalance struct {
	AccountIndex  int    `json:"accountIndex"`
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	UITokenAmount struct {
		Amount string `json:"amount"`
	} `json:"uiTokenAmount"`
}
