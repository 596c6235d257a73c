// Package normalizedtx defines the canonical transaction shape that crosses
// the boundary between a chain adapter and the matcher. Every adapter
// (EVM, Tron, TON, Solana) produces values of this type; nothing downstream
// of the adapter ever looks at chain-specific wire formats again.
package normalizedtx

import (
	"errors"
	"math/big"
)

// ErrMissingTo is returned by Validate when To is empty.
var ErrMissingTo = errors.New("normalizedtx: to address is required")

// ErrMissingFrom is returned by Validate when From is empty on a token transfer.
var ErrMissingFrom = errors.New("normalizedtx: from address is required for token transfers")

// ErrNegativeValue is returned by Validate when Value is negative.
var ErrNegativeValue = errors.New("normalizedtx: value must be non-negative")

// Tx is the chain-agnostic transaction record produced by a ChainAdapter and
// consumed by the matcher. Field semantics are documented per spec:
//
//   - Hash is the adapter-defined canonical encoding (hex for EVM/Tron,
//     base64 for TON, signature for Solana).
//   - From/To are addresses in each chain's canonical lower-case form. From
//     may be empty when the adapter cannot recover it (e.g. a Solana
//     balance-diff derived transfer).
//   - Value is carried as an arbitrary-precision integer since EVM token
//     values routinely exceed 64 bits.
//   - BlockNumber is non-negative; for Solana this is the slot number.
//   - Timestamp is optional; adapters document whether it is seconds or ms.
//   - Token is the token contract address when this is a token transfer;
//     empty for native transfers.
//   - Symbol is informational only.
type Tx struct {
	Hash        string
	From        string
	To          string
	Value       *big.Int
	BlockNumber uint64
	Timestamp   uint64
	HasTime     bool
	Token       string
	Symbol      string
	Fee         *big.Int
	Receipt     string

	// HashKeyName is the wire field name the matcher should use for Hash in
	// its payload: "txid" for Tron and Solana-native adapters, "hash"
	// (the default, used when this is left empty) everywhere else.
	HashKeyName string
}

// HashKey returns HashKeyName, defaulting to "hash" when unset.
func (t Tx) HashKey() string {
	if t.HashKeyName == "" {
		return "hash"
	}
	return t.HashKeyName
}

// IsTokenTransfer reports whether this tx carries a token contract address.
func (t Tx) IsTokenTransfer() bool {
	return t.Token != ""
}

// Validate enforces the data-model invariants from the spec: value must be
// non-negative, To is always required, and From is required whenever the
// transfer is a token transfer (matching may fire on either side of a token
// transfer, so From must be recoverable).
func (t Tx) Validate() error {
	if t.Value != nil && t.Value.Sign() < 0 {
		return ErrNegativeValue
	}
	if t.To == "" {
		return ErrMissingTo
	}
	if t.IsTokenTransfer() && t.From == "" {
		return ErrMissingFrom
	}
	return nil
}

// IsZero reports whether the transfer carries zero value. Zero-value
// records are dropped before dispatch per the spec invariant.
func (t Tx) IsZero() bool {
	return t.Value == nil || t.Value.Sign() == 0
}
