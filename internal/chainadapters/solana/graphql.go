package solana

import (
	"context"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/blockwatch-gateway/gateway/internal/chainadapter"
	"github.com/blockwatch-gateway/gateway/internal/matcher"
	"github.com/blockwatch-gateway/gateway/internal/normalizedtx"
	"github.com/blockwatch-gateway/gateway/internal/pkg/logger"
	"github.com/blockwatch-gateway/gateway/internal/subscription"
)

// GraphQLQuerier is the narrow surface this adapter needs from a GraphQL
// transport; satisfied by *graphql.Client.
type GraphQLQuerier interface {
	Query(ctx context.Context, query string, variables map[string]any, out any) error
}

// Aggregator polls a third-party GraphQL indexer for already-aggregated
// Solana transfer events, as an alternative to deriving them from raw
// getBlock balance diffs. Adapters built with NewGraphQLDriven report
// DisableHeightProcessing() == true; this type supplies the matching feed
// by a separate poll loop of its own, driven externally by gateway wiring.
type Aggregator struct {
	client GraphQLQuerier
}

// NewAggregator builds a Solana GraphQL aggregator poller.
func NewAggregator(client GraphQLQuerier) *Aggregator {
	return &Aggregator{client: client}
}

const transfersQuery = `
query Transfers($since: Int!) {
  transfers(since: $since) {
    signature
    from
    to
    amount
    slot
    mint
  }
}`

type transferRecord struct {
	Signature string `json:"signature"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Slot      uint64 `json:"slot"`
	Mint      string `json:"mint"`
}

// PollSince fetches every transfer observed since the given slot and
// normalizes it. Intended to be called on a timer by gateway wiring code
// when an Adapter was built with NewGraphQLDriven.
func (g *Aggregator) PollSince(ctx context.Context, since uint64) ([]normalizedtx.Tx, error) {
	var resp struct {
		Transfers []transferRecord `json:"transfers"`
	}
	if err := g.client.Query(ctx, transfersQuery, map[string]any{"since": since}, &resp); err != nil {
		return nil, err
	}

	out := make([]normalizedtx.Tx, 0, len(resp.Transfers))
	for _, r := range resp.Transfers {
		value, ok := new(big.Int).SetString(r.Amount, 10)
		if !ok {
			logger.Warn(ctx, "solana graphql: dropping transfer with unparsable amount", "signature", r.Signature)
			continue
		}
		out = append(out, normalizedtx.Tx{
			Hash:        r.Signature,
			From:        r.From,
			To:          r.To,
			Value:       value,
			BlockNumber: r.Slot,
			Token:       r.Mint,
			HashKeyName: "txid",
		})
	}
	return out, nil
}

// AggregatorPoller drives an Aggregator on its own timer and dispatches the
// transfers it returns through the same matcher used by heightpoll, so a
// GraphQL-driven Solana network (see NewGraphQLDriven) still delivers
// subscription events despite never running the height poll loop.
type AggregatorPoller struct {
	agg   *Aggregator
	table *subscription.Table
	canon chainadapter.Canonicalizer
	tick  time.Duration

	lastSlot atomic.Uint64
}

// NewAggregatorPoller builds a poller that dispatches agg's transfers
// against table every tick, using canon for address canonicalization.
func NewAggregatorPoller(agg *Aggregator, table *subscription.Table, canon chainadapter.Canonicalizer, tick time.Duration) *AggregatorPoller {
	return &AggregatorPoller{agg: agg, table: table, canon: canon, tick: tick}
}

// Run blocks, polling agg every tick until ctx is canceled. Intended to be
// launched in its own goroutine by gateway wiring.
func (p *AggregatorPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tickOnce(ctx)
		}
	}
}

func (p *AggregatorPoller) tickOnce(ctx context.Context) {
	since := p.lastSlot.Load()

	txs, err := p.agg.PollSince(ctx, since)
	if err != nil {
		logger.Warn(ctx, "solana graphql: poll failed, will retry next tick", "error", err)
		return
	}

	maxSlot := since
	for _, tx := range txs {
		if tx.IsZero() {
			continue
		}
		if err := tx.Validate(); err != nil {
			logger.Warn(ctx, "solana graphql: dropping invalid normalized tx", "error", err)
			continue
		}
		for _, delivery := range matcher.Match(tx, p.table, p.canon) {
			if err := delivery.Send(delivery.Payload); err != nil {
				logger.Warn(ctx, "solana graphql: delivery send failed", "cid", delivery.CID, "error", err)
				if delivery.OnError != nil {
					delivery.OnError(err)
				}
			}
		}
		if tx.BlockNumber > maxSlot {
			maxSlot = tx.BlockNumber
		}
	}
	if maxSlot > since {
		p.lastSlot.Store(maxSlot)
	}
}
