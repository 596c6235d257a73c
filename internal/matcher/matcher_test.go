package matcher

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockwatch-gateway/gateway/internal/normalizedtx"
	"github.com/blockwatch-gateway/gateway/internal/subscription"
)

// alwaysAccount treats every address as a plain account, never a contract;
// it satisfies subscription.Validator for tests that don't care about the
// account/contract distinction.
type alwaysAccount struct{}

func (alwaysAccount) IsAccount(ctx context.Context, addr string) (bool, error) { return true, nil }

func newTableWithSub(t *testing.T, cid subscription.ConnID, interest subscription.Interest) (*subscription.Table, []Delivery) {
	t.Helper()
	table := subscription.New()
	t.Cleanup(table.Close)

	var received []Delivery
	send := func(payload any) error {
		return nil
	}
	err := table.AddSub(context.Background(), cid, subscription.EventSubscribeAccount, send, nil, []subscription.Interest{interest}, alwaysAccount{})
	require.NoError(t, err)
	return table, received
}

func TestMatch_NativeTransferFiresOnEitherSide(t *testing.T) {
	table, _ := newTableWithSub(t, "cid-1", subscription.Interest{Address: "0xAAA"})

	tx := normalizedtx.Tx{Hash: "0xhash1", From: "0xAAA", To: "0xBBB", Value: big.NewInt(100), BlockNumber: 10}
	deliveries := Match(tx, table, nil)

	require.Len(t, deliveries, 1)
	assert.Equal(t, subscription.ConnID("cid-1"), deliveries[0].CID)
	assert.Equal(t, "0xAAA", deliveries[0].Payload.Addr)
}

func TestMatch_TokenTransferRequiresTokenInFilter(t *testing.T) {
	table, _ := newTableWithSub(t, "cid-1", subscription.Interest{Address: "0xAAA", Tokens: []string{"0xToken1"}})

	t.Run("fires when token is in filter", func(t *testing.T) {
		tx := normalizedtx.Tx{Hash: "0xhash1", From: "0xCCC", To: "0xAAA", Token: "0xToken1", Value: big.NewInt(5)}
		deliveries := Match(tx, table, nil)
		assert.Len(t, deliveries, 1)
	})

	t.Run("does not fire for an unfiltered token", func(t *testing.T) {
		tx := normalizedtx.Tx{Hash: "0xhash2", From: "0xCCC", To: "0xAAA", Token: "0xToken2", Value: big.NewInt(5)}
		deliveries := Match(tx, table, nil)
		assert.Empty(t, deliveries)
	})
}

func TestMatch_InterestIsolation(t *testing.T) {
	table := subscription.New()
	t.Cleanup(table.Close)

	require.NoError(t, table.AddSub(context.Background(), "cid-1", subscription.EventSubscribeAccount,
		func(any) error { return nil }, nil, []subscription.Interest{{Address: "0xAAA"}}, alwaysAccount{}))
	require.NoError(t, table.AddSub(context.Background(), "cid-2", subscription.EventSubscribeAccount,
		func(any) error { return nil }, nil, []subscription.Interest{{Address: "0xBBB"}}, alwaysAccount{}))

	tx := normalizedtx.Tx{Hash: "0xhash1", From: "0xAAA", To: "0xZZZ", Value: big.NewInt(1)}
	deliveries := Match(tx, table, nil)

	require.Len(t, deliveries, 1)
	assert.Equal(t, subscription.ConnID("cid-1"), deliveries[0].CID)
}

func TestMatch_DedupesByHashAddrToken(t *testing.T) {
	table := subscription.New()
	t.Cleanup(table.Close)

	// One connection subscribes to the same address twice isn't possible
	// (AddSub rejects duplicates), but two distinct interests on the same
	// connection that both match the same tx must still only deliver once
	// per (hash, addr, token).
	require.NoError(t, table.AddSub(context.Background(), "cid-1", subscription.EventSubscribeAccount,
		func(any) error { return nil }, nil, []subscription.Interest{{Address: "0xAAA"}}, alwaysAccount{}))

	tx := normalizedtx.Tx{Hash: "0xhash1", From: "0xAAA", To: "0xBBB", Value: big.NewInt(1)}

	// Matching the same tx twice against the same table must not produce
	// duplicate deliveries within a single Match call.
	deliveries := Match(tx, table, nil)
	require.Len(t, deliveries, 1)
}

type fakeCanon struct {
	forms map[string][]string
}

func (f fakeCanon) CanonicalForms(addr, token string) []string {
	if forms, ok := f.forms[addr]; ok {
		return forms
	}
	return []string{addr}
}

func TestMatch_CanonicalFormsExpandAddressMatching(t *testing.T) {
	table, _ := newTableWithSub(t, "cid-1", subscription.Interest{Address: "wallet-base58"})

	canon := fakeCanon{forms: map[string][]string{
		"wallet-base58": {"wallet-base58", "derived-ata-address"},
	}}

	tx := normalizedtx.Tx{Hash: "sig1", From: "someone-else", To: "derived-ata-address", Value: big.NewInt(1)}
	deliveries := Match(tx, table, canon)

	require.Len(t, deliveries, 1)
	assert.Equal(t, "wallet-base58", deliveries[0].Payload.Addr)
}

func TestPayload_MarshalJSON_PlacesHashUnderWireKey(t *testing.T) {
	t.Run("defaults to hash", func(t *testing.T) {
		p := buildPayload(normalizedtx.Tx{Hash: "0xdeadbeef", From: "0xA", To: "0xB", Value: big.NewInt(1)}, "0xA", "hash")
		data, err := p.MarshalJSON()
		require.NoError(t, err)
		assert.Contains(t, string(data), `"hash":"0xdeadbeef"`)
	})

	t.Run("uses txid for Tron/Solana-native adapters", func(t *testing.T) {
		tx := normalizedtx.Tx{Hash: "14f76e...dd10", HashKeyName: "txid", From: "TAddr1", To: "TAddr2", Value: big.NewInt(5000000)}
		p := buildPayload(tx, "TAddr2", tx.HashKey())
		data, err := p.MarshalJSON()
		require.NoError(t, err)
		assert.Contains(t, string(data), `"txid":"14f76e...dd10"`)
		assert.NotContains(t, string(data), `"hash"`)
	})
}
