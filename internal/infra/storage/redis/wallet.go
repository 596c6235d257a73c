package redis

import (
	"context"
	"fmt"

	"github.com/blockwatch-gateway/gateway/internal/walletregistry"
)

// walletStoragePrefix defines the base key prefix used for storing
// watched wallet addresses in Redis.
const walletStoragePrefix = "wallet"

// walletStorageKey returns the Redis key under which watched wallet addresses
// are stored for the specified blockchain network.
//
// Format: "wallet:storage:{network}"
func walletStorageKey(network string) string {
	return fmt.Sprintf("%s:storage:%s", walletStoragePrefix, network)
}

// RegisterWallet implements the walletregistry.WalletStorage interface using
// a Redis set. SADD is naturally idempotent, so re-registering an already
// watched wallet is a no-op.
func (c *client) RegisterWallet(ctx context.Context, id walletregistry.WalletIdentifier) error {
	return c.conn.SAdd(ctx, walletStorageKey(id.Network), id.Address).Err()
}

// UnregisterWallet implements the walletregistry.WalletStorage interface
// using a Redis set. SREM on an address that was never a member is a no-op.
func (c *client) UnregisterWallet(ctx context.Context, id walletregistry.WalletIdentifier) error {
	return c.conn.SRem(ctx, walletStorageKey(id.Network), id.Address).Err()
}

// Compile-time assertion to ensure *client satisfies the walletregistry.WalletStorage interface
var _ walletregistry.WalletStorage = new(client)
