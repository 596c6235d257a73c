// Package chainadapter defines the pluggable contract that every upstream
// chain integration (EVM node, EVM provider, Solana, Tron, TON) must
// satisfy. HeightPoller and the matcher are written once against this
// interface; each concrete chain lives in internal/chainadapters/*.
package chainadapter

import (
	"context"
	"errors"

	"github.com/blockwatch-gateway/gateway/internal/normalizedtx"
)

// ErrUpstreamUnavailable is returned by Height when the upstream transport
// fails (timeout, connection refused, 5xx). It is a soft failure: the
// caller logs it and retries on the next poll tick.
var ErrUpstreamUnavailable = errors.New("chainadapter: upstream unavailable")

// Adapter is the capability set every chain implementation must satisfy.
//
// Generic polling logic (HeightPoller) is written once against this
// interface rather than against any concrete chain client — per design,
// this is a free function, not a base class with per-chain overrides.
type Adapter interface {
	// Height returns the current best known height/slot. Fails with
	// ErrUpstreamUnavailable on transport error.
	Height(ctx context.Context) (uint64, error)

	// TxsAt returns all relevant transactions at the given height, already
	// normalized. Returns an empty slice when the block has none or cannot
	// be fetched; a partial per-item failure must never fail the whole
	// call — failed items are dropped and logged by the adapter itself.
	TxsAt(ctx context.Context, height uint64) ([]normalizedtx.Tx, error)

	// SubscribeContract installs whatever upstream log filter is needed to
	// observe token transfer events for addr. Must be idempotent. May be a
	// no-op for chains that harvest logs inline from block fetch.
	SubscribeContract(ctx context.Context, addr string) error

	// IsAccount reports whether addr is a plain externally-owned address as
	// opposed to a contract. For chains without code-at-address semantics
	// it is a pure syntactic validity check.
	IsAccount(ctx context.Context, addr string) (bool, error)

	// BlockIntervalMillis is the poll period HeightPoller should use for
	// this adapter (adapter-configurable via block_read_interval_ms).
	BlockIntervalMillis() int64

	// DisableHeightProcessing reports true for adapters that do not index
	// by block height (e.g. Solana when relying on an external push
	// subscription). HeightPoller returns immediately for such adapters.
	DisableHeightProcessing() bool

	// Name identifies the adapter for logging and metrics (e.g. "ethereum",
	// "tron", "toncenter").
	Name() string
}

// Canonicalizer is implemented by adapters whose address comparisons need a
// chain-specific normalization step beyond case-folding (e.g. Solana's
// associated-token-account derivation, TON's bounceable-flag-insensitive
// match). The matcher uses this, when present, to expand the set of forms
// an address may appear in on-chain.
type Canonicalizer interface {
	// CanonicalForms returns every chain-canonical string form that should
	// be considered equal to addr for matching purposes. Implementations
	// must include addr's own canonical form as one of the results.
	CanonicalForms(addr, token string) []string
}
