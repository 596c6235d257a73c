// Package connlifecycle mints connection identifiers, wires a connection's
// subscribe requests into the subscription table and contract interest set
// for its chosen network, and tears the connection's state down on close.
package connlifecycle

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/blockwatch-gateway/gateway/internal/chainadapter"
	"github.com/blockwatch-gateway/gateway/internal/interestset"
	"github.com/blockwatch-gateway/gateway/internal/pkg/logger"
	"github.com/blockwatch-gateway/gateway/internal/subscription"
)

// Network bundles the per-chain state a connection's subscribe requests are
// routed against.
type Network struct {
	Adapter   chainadapter.Adapter
	Table     *subscription.Table
	Interests *interestset.Set
}

// Registry owns one Network per chain and mints connection ids.
type Registry struct {
	networks map[string]Network
}

// NewRegistry builds a Registry over the given network name -> Network map.
func NewRegistry(networks map[string]Network) *Registry {
	return &Registry{networks: networks}
}

// NewConnID mints a random 128-bit connection identifier.
func NewConnID() subscription.ConnID {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand.Read on the standard reader does not fail in practice;
		// panicking here would be worse than a lower-quality fallback id.
		return subscription.ConnID(fmt.Sprintf("fallback-%x", b))
	}
	return subscription.ConnID(hex.EncodeToString(b[:]))
}

// Subscribe validates and installs a subscribeAccount interest for cid on
// network. It seeds the network's ContractInterestSet for each referenced
// token and calls adapter.SubscribeContract once per token newly seen by
// this process.
func (r *Registry) Subscribe(ctx context.Context, network string, cid subscription.ConnID, send subscription.SendFunc, onErr subscription.ErrorFunc, addr string, tokens []string) error {
	net, ok := r.networks[network]
	if !ok {
		return fmt.Errorf("connlifecycle: unknown network %q", network)
	}

	interest := subscription.Interest{Address: addr, Tokens: tokens}
	if err := net.Table.AddSub(ctx, cid, subscription.EventSubscribeAccount, send, onErr, []subscription.Interest{interest}, net.Adapter); err != nil {
		return err
	}

	for _, token := range tokens {
		firstSeen := net.Interests.Add(token)
		if !firstSeen {
			continue
		}
		if err := net.Adapter.SubscribeContract(ctx, token); err != nil {
			logger.Error(ctx, "subscribeContract failed", "network", network, "token", token, "error", err)
		}
	}

	return nil
}

// Close tombstones cid's entries on every network it may hold subscriptions
// on. Contract interests are retained — a reconnect does not need to
// re-arm upstream filters.
func (r *Registry) Close(cid subscription.ConnID) {
	for _, net := range r.networks {
		net.Table.CloseCID(cid)
	}
}
