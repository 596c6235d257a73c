// Package config loads gateway configuration from the environment using the
// GATEWAY_ prefix, with per-network overrides for poll interval and upstream
// endpoints.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config is the top-level process configuration, populated from environment
// variables prefixed GATEWAY_.
type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	WSAddr   string `envconfig:"WS_ADDR" default:":8181"`

	// ServiceName identifies this process in exported telemetry (traces,
	// metrics, logs). Only meaningful when TelemetryEnabled is set.
	ServiceName string `envconfig:"SERVICE_NAME" default:"blockwatch-gateway"`

	// TelemetryEnabled opts into OTLP export of traces/metrics/logs over
	// gRPC. Off by default: the exporters dial a collector endpoint at
	// startup, and most local/dev setups don't have one running.
	TelemetryEnabled bool `envconfig:"TELEMETRY_ENABLED" default:"false"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// CheckpointEnabled opts into durable height checkpointing via Redis.
	// The documented default is process-scoped height tracking only.
	CheckpointEnabled bool `envconfig:"CHECKPOINT_ENABLED" default:"false"`

	// DistributedIdempotencyEnabled opts into a Redis-backed claim/mark guard
	// around each (network, height) dispatch pass, for multi-instance
	// deployments. Off by default: single-instance deployments get no
	// benefit from it and it adds a Redis round trip per height.
	DistributedIdempotencyEnabled bool `envconfig:"DISTRIBUTED_IDEMPOTENCY_ENABLED" default:"false"`

	Ethereum EVMConfig    `envconfig:"ETHEREUM"`
	Ankr     EVMConfig    `envconfig:"ANKR"`
	Solana   SolanaConfig `envconfig:"SOLANA"`
	Tron     RPCConfig    `envconfig:"TRON"`
	TON      RPCConfig    `envconfig:"TON"`
}

// SolanaConfig extends RPCConfig with the optional GraphQL aggregator
// endpoint. When set, the Solana adapter is built in GraphQL-driven mode
// (see chainadapters/solana.NewGraphQLDriven): it stops polling getBlock
// for height processing and instead dispatches matches off a timer that
// polls the aggregator directly.
type SolanaConfig struct {
	RPCURL          string `envconfig:"RPC_URL"`
	APIKey          string `envconfig:"API_KEY"`
	BlockIntervalMS int64  `envconfig:"BLOCK_INTERVAL_MS" default:"3000"`
	Disabled        bool   `envconfig:"DISABLED" default:"false"`

	// GraphQLURL, when non-empty, switches the adapter to GraphQL-driven
	// mode against this aggregator endpoint.
	GraphQLURL string `envconfig:"GRAPHQL_URL"`

	// GraphQLPollIntervalMS is the aggregator poll period in GraphQL-driven
	// mode.
	GraphQLPollIntervalMS int64 `envconfig:"GRAPHQL_POLL_INTERVAL_MS" default:"3000"`
}

// EVMConfig configures a node-backed or provider-backed EVM adapter.
type EVMConfig struct {
	RPCURL          string `envconfig:"RPC_URL"`
	APIKey          string `envconfig:"API_KEY"`
	BlockIntervalMS int64  `envconfig:"BLOCK_INTERVAL_MS" default:"3000"`
	Disabled        bool   `envconfig:"DISABLED" default:"false"`
}

// RPCConfig configures any other single-endpoint chain adapter.
type RPCConfig struct {
	RPCURL          string `envconfig:"RPC_URL"`
	APIKey          string `envconfig:"API_KEY"`
	BlockIntervalMS int64  `envconfig:"BLOCK_INTERVAL_MS" default:"3000"`
	Disabled        bool   `envconfig:"DISABLED" default:"false"`
}

// Load reads configuration from the environment, applying the GATEWAY_
// prefix to every variable name.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("gateway", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
