package solana

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blockwatch-gateway/gateway/internal/subscription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGraphQLQuerier struct {
	fill func(out any)
	err  error
}

func (f *fakeGraphQLQuerier) Query(ctx context.Context, query string, variables map[string]any, out any) error {
	if f.err != nil {
		return f.err
	}
	f.fill(out)
	return nil
}

func TestAggregator_PollSince(t *testing.T) {
	q := &fakeGraphQLQuerier{fill: func(out any) {
		resp := out.(*struct {
			Transfers []transferRecord `json:"transfers"`
		})
		resp.Transfers = []transferRecord{
			{Signature: "sig1", From: "a", To: "b", Amount: "500", Slot: 99, Mint: "MintXYZ"},
			{Signature: "sig2", From: "a", To: "b", Amount: "not-a-number", Slot: 100},
		}
	}}

	agg := NewAggregator(q)
	txs, err := agg.PollSince(context.Background(), 50)
	require.NoError(t, err)

	require.Len(t, txs, 1, "an unparsable amount must be dropped rather than failing the whole poll")
	tx := txs[0]
	assert.Equal(t, "sig1", tx.Hash)
	assert.Equal(t, "txid", tx.HashKey())
	assert.Equal(t, int64(500), tx.Value.Int64())
	assert.Equal(t, "MintXYZ", tx.Token)
}

func TestAggregator_PollSince_PropagatesTransportError(t *testing.T) {
	boom := errors.New("upstream unavailable")
	agg := NewAggregator(&fakeGraphQLQuerier{err: boom})

	_, err := agg.PollSince(context.Background(), 0)
	assert.ErrorIs(t, err, boom)
}

func TestCanonicalForms(t *testing.T) {
	a := New(nil, 400)

	t.Run("no token filter returns just the address", func(t *testing.T) {
		forms := a.CanonicalForms("ownerAddr", "")
		assert.Equal(t, []string{"ownerAddr"}, forms)
	})

	t.Run("a token filter adds a derived associated-token-account form", func(t *testing.T) {
		forms := a.CanonicalForms("ownerAddr", "mintAddr")
		require.Len(t, forms, 2)
		assert.Equal(t, "ownerAddr", forms[0])
		assert.NotEmpty(t, forms[1])
	})

	t.Run("derivation is deterministic for the same inputs", func(t *testing.T) {
		a1 := a.CanonicalForms("ownerAddr", "mintAddr")
		a2 := a.CanonicalForms("ownerAddr", "mintAddr")
		assert.Equal(t, a1, a2)
	})
}

func TestAggregatorPoller_DispatchesMatchedTransfers(t *testing.T) {
	table := subscription.New()
	defer table.Close()

	delivered := make(chan []byte, 1)
	err := table.AddSub(context.Background(), "conn1", subscription.EventSubscribeAccount,
		func(payload any) error {
			delivered <- []byte("sent")
			return nil
		}, nil,
		[]subscription.Interest{{Address: "b"}}, nil)
	require.NoError(t, err)

	q := &fakeGraphQLQuerier{fill: func(out any) {
		resp := out.(*struct {
			Transfers []transferRecord `json:"transfers"`
		})
		resp.Transfers = []transferRecord{
			{Signature: "sig1", From: "a", To: "b", Amount: "500", Slot: 99, Mint: "MintXYZ"},
		}
	}}
	agg := NewAggregator(q)
	adapter := New(nil, 400)
	poller := NewAggregatorPoller(agg, table, adapter, time.Hour)

	poller.tickOnce(context.Background())

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("expected a delivery from the matched transfer")
	}

	assert.Equal(t, uint64(99), poller.lastSlot.Load(), "lastSlot must advance to the highest slot seen")
}

func TestAggregatorPoller_TickOnce_PollFailureLeavesSlotUnchanged(t *testing.T) {
	table := subscription.New()
	defer table.Close()

	agg := NewAggregator(&fakeGraphQLQuerier{err: errors.New("upstream unavailable")})
	poller := NewAggregatorPoller(agg, table, New(nil, 400), time.Hour)
	poller.lastSlot.Store(42)

	poller.tickOnce(context.Background())

	assert.Equal(t, uint64(42), poller.lastSlot.Load())
}
