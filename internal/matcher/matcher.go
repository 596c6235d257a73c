// Package matcher implements the pure function from a normalized transaction
// and a snapshot of live subscriptions to the set of deliveries it produces.
// The matcher performs no I/O and never suspends: every upstream call lives
// in the adapter or the poller, never here.
package matcher

import (
	"encoding/json"
	"strings"

	"github.com/blockwatch-gateway/gateway/internal/chainadapter"
	"github.com/blockwatch-gateway/gateway/internal/normalizedtx"
	"github.com/blockwatch-gateway/gateway/internal/subscription"
)

// Delivery is one payload destined for one subscriber connection.
type Delivery struct {
	CID     subscription.ConnID
	Send    subscription.SendFunc
	OnError subscription.ErrorFunc
	Payload Payload
}

// Payload is the wire shape handed to a subscription's sendFn. HashKey
// reports "txid" on chains whose native transaction identifier is named
// that way (Tron, Solana); everywhere else it is "hash".
type Payload struct {
	Event   string  `json:"event"`
	Addr    string  `json:"addr"`
	Token   string  `json:"token,omitempty"`
	HashKey string  `json:"-"`
	Tx      TxFields `json:"tx"`
}

// TxFields is the normalized-tx projection sent to subscribers. Value is
// always a decimal string to avoid precision loss in JSON number decoding.
// Hash is deliberately left untagged: Payload.MarshalJSON places it under
// the chain-specific wire key ("hash" or "txid") instead of a fixed name.
type TxFields struct {
	Height  uint64 `json:"height"`
	Hash    string `json:"-"`
	From    string `json:"from"`
	To      string `json:"to"`
	Value   string `json:"value"`
	Symbol  string `json:"symbol,omitempty"`
	Fee     string `json:"fee,omitempty"`
	Receipt string `json:"receipt,omitempty"`
}

// MarshalJSON serializes Payload with its tx hash under the wire key named
// by HashKey ("hash" everywhere except Tron/Solana-native, which use
// "txid") rather than a fixed field name.
func (p Payload) MarshalJSON() ([]byte, error) {
	txBytes, err := json.Marshal(p.Tx)
	if err != nil {
		return nil, err
	}
	var txMap map[string]json.RawMessage
	if err := json.Unmarshal(txBytes, &txMap); err != nil {
		return nil, err
	}

	hashBytes, err := json.Marshal(p.Tx.Hash)
	if err != nil {
		return nil, err
	}
	key := p.HashKey
	if key == "" {
		key = "hash"
	}
	txMap[key] = hashBytes

	return json.Marshal(struct {
		Event string                     `json:"event"`
		Addr  string                     `json:"addr"`
		Token string                     `json:"token,omitempty"`
		Tx    map[string]json.RawMessage `json:"tx"`
	}{
		Event: p.Event,
		Addr:  p.Addr,
		Token: p.Token,
		Tx:    txMap,
	})
}

// dedupeKey is the (tx.hash, subscribedAddr, tx.token) triple that bounds an
// event to at most one delivery per subscription per poller cycle.
type dedupeKey struct {
	hash  string
	addr  string
	token string
}

// Match evaluates tx against every live subscriber snapshot returned by subs
// and returns the set of deliveries to make, each subscriber firing at most
// once per (tx.hash, subscribedAddr, tx.token) triple.
//
// canon, when non-nil, expands an interest's address into every chain-
// canonical form it may appear under on-chain (e.g. Solana's derived
// associated token account) before the comparison runs.
func Match(tx normalizedtx.Tx, table *subscription.Table, canon chainadapter.Canonicalizer) []Delivery {
	hashKey := tx.HashKey()

	seen := make(map[dedupeKey]struct{})
	var deliveries []Delivery

	for _, sub := range table.GetSubsForEvent(subscription.EventSubscribeAccount) {
		interests := table.CIDInterests(sub.CID, subscription.EventSubscribeAccount)
		for _, interest := range interests {
			if !matches(tx, interest, canon) {
				continue
			}

			key := dedupeKey{hash: tx.Hash, addr: interest.Address, token: tx.Token}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			deliveries = append(deliveries, Delivery{
				CID:     sub.CID,
				Send:    sub.Send,
				OnError: sub.OnError,
				Payload: buildPayload(tx, interest.Address, hashKey),
			})
		}
	}

	return deliveries
}

// matches implements the native/token firing rule from the spec: a native
// transfer fires on either side of the subscribed address; a token transfer
// fires only when the token is in the subscriber's filter AND the address
// appears on either side. canon, when the adapter supplies one, additionally
// expands the subscribed address into its chain-canonical forms (e.g.
// Solana's associated token account) so either the raw or derived address
// may match.
func matches(tx normalizedtx.Tx, interest subscription.Interest, canon chainadapter.Canonicalizer) bool {
	addr := fold(interest.Address)

	forms := []string{addr}
	if canon != nil {
		for _, f := range canon.CanonicalForms(interest.Address, tx.Token) {
			forms = append(forms, fold(f))
		}
	}

	hits := func(side string) bool {
		side = fold(side)
		for _, f := range forms {
			if side == f {
				return true
			}
		}
		return false
	}

	if !tx.IsTokenTransfer() {
		return hits(tx.From) || hits(tx.To)
	}

	if !containsFold(interest.Tokens, tx.Token) {
		return false
	}
	return hits(tx.From) || hits(tx.To)
}

func buildPayload(tx normalizedtx.Tx, addr, hashKey string) Payload {
	p := Payload{
		Event:   string(subscription.EventSubscribeAccount),
		Addr:    addr,
		Token:   tx.Token,
		HashKey: hashKey,
		Tx: TxFields{
			Height:  tx.BlockNumber,
			Hash:    tx.Hash,
			From:    tx.From,
			To:      tx.To,
			Symbol:  tx.Symbol,
			Receipt: tx.Receipt,
		},
	}
	if tx.Value != nil {
		p.Tx.Value = tx.Value.String()
	} else {
		p.Tx.Value = "0"
	}
	if tx.Fee != nil {
		p.Tx.Fee = tx.Fee.String()
	}
	return p
}

func fold(s string) string {
	return strings.ToLower(s)
}

func containsFold(haystack []string, needle string) bool {
	needle = fold(needle)
	for _, h := range haystack {
		if fold(h) == needle {
			return true
		}
	}
	return false
}
