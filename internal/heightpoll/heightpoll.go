// Package heightpoll implements the generic height-discovery loop that
// drives every chain adapter. It is deliberately a free function over the
// chainadapter.Adapter interface rather than a per-chain base type — one
// poller implementation serves EVM, Tron, TON and (when height-driven)
// Solana alike.
package heightpoll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blockwatch-gateway/gateway/internal/chainadapter"
	"github.com/blockwatch-gateway/gateway/internal/matcher"
	"github.com/blockwatch-gateway/gateway/internal/normalizedtx"
	"github.com/blockwatch-gateway/gateway/internal/pkg/logger"
	"github.com/blockwatch-gateway/gateway/internal/pkg/resilience/retry"
	"github.com/blockwatch-gateway/gateway/internal/subscription"
)

// ErrServiceAlreadyStarted is returned if Start is called more than once.
var ErrServiceAlreadyStarted = errors.New("heightpoll: service already started")

// CheckpointStorage persists the last processed height across restarts. It
// is optional: the default process-scoped behavior keeps lastProcessedHeight
// purely in memory, starting from the adapter's current height on boot.
type CheckpointStorage interface {
	SaveCheckpoint(ctx context.Context, network string, height uint64) error
	LoadLatestCheckpoint(ctx context.Context, network string) (uint64, error)
}

// ErrNoCheckpointFound is returned by CheckpointStorage.LoadLatestCheckpoint
// when nothing has been saved yet for the network.
var ErrNoCheckpointFound = errors.New("heightpoll: no checkpoint found for network")

// DispatchGuard gives multi-instance deployments a distributed claim around
// one (network, height) dispatch pass, so two processes racing the same
// upstream don't both deliver the same height. Optional: single-instance
// deployments rely on the in-memory lastProcessedHeight alone.
type DispatchGuard interface {
	ClaimHeightForDispatch(ctx context.Context, network string, height uint64, ttl time.Duration) error
	MarkHeightDispatched(ctx context.Context, network string, height uint64) error
}

const dispatchClaimTTL = 30 * time.Second

// Service is the lifecycle contract for one chain adapter's poll loop.
type Service interface {
	Start(ctx context.Context) error
	Close()

	// LastProcessedHeight reports the most recent height this poller has
	// fully dispatched, and whether any height has been processed yet.
	// Backs the status JSON-RPC method.
	LastProcessedHeight() (uint64, bool)
}

type closeFunc func()

type service struct {
	mu        sync.Mutex
	isStarted bool
	closeFunc closeFunc

	network string
	adapter chainadapter.Adapter
	table   *subscription.Table
	canon   chainadapter.Canonicalizer

	checkpoint CheckpointStorage
	guard      DispatchGuard
	retrier    retry.Retry
	tick       time.Duration

	lastHeight    atomic.Uint64
	everProcessed atomic.Bool
}

var _ Service = (*service)(nil)

// Option configures a Service at construction time.
type Option func(*service)

// WithCheckpointStorage enables durable checkpoint persistence. Without this
// option the poller starts from the adapter's current height on every boot,
// which is the documented default.
func WithCheckpointStorage(cs CheckpointStorage) Option {
	return func(s *service) { s.checkpoint = cs }
}

// WithDispatchGuard enables the distributed dispatch-idempotency guard for
// multi-instance deployments. Off by default.
func WithDispatchGuard(g DispatchGuard) Option {
	return func(s *service) { s.guard = g }
}

// WithPollInterval overrides the adapter-reported poll period. Mainly useful
// in tests; production code should rely on adapter.BlockIntervalMillis().
func WithPollInterval(d time.Duration) Option {
	return func(s *service) { s.tick = d }
}

// WithRetry overrides the retry policy wrapping adapter.Height lookups.
// adapter.TxsAt is deliberately never retried here — that's the documented
// skip-on-fail policy in tickOnce — but a height lookup is cheap and its
// failures are usually a single transient upstream blip, so a short retry
// is worth absorbing before giving up on the whole tick.
func WithRetry(r retry.Retry) Option {
	return func(s *service) { s.retrier = r }
}

// New builds a poller for one (network, adapter) pair, dispatching matches
// against table using canon for address canonicalization (nil if the chain
// needs none).
func New(network string, adapter chainadapter.Adapter, table *subscription.Table, canon chainadapter.Canonicalizer, opts ...Option) Service {
	s := &service{
		network: network,
		adapter: adapter,
		table:   table,
		canon:   canon,
		tick:    time.Duration(adapter.BlockIntervalMillis()) * time.Millisecond,
		retrier: retry.New(retry.WithAttempts(3), retry.WithDelay(100*time.Millisecond), retry.WithMaxDelay(500*time.Millisecond)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the poll loop in a background goroutine. For adapters with
// DisableHeightProcessing set, Start returns immediately without launching
// any loop — the chain is driven by an external push mechanism instead.
func (s *service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isStarted {
		return ErrServiceAlreadyStarted
	}

	if s.adapter.DisableHeightProcessing() {
		s.isStarted = true
		s.closeFunc = func() {}
		return nil
	}

	last, err := s.initialHeight(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	go s.loop(ctx, last)

	s.closeFunc = closeFunc(cancel)
	s.isStarted = true
	return nil
}

// LastProcessedHeight implements Service.
func (s *service) LastProcessedHeight() (uint64, bool) {
	return s.lastHeight.Load(), s.everProcessed.Load()
}

// Close stops the poll loop. Safe to call even if Start was never called.
func (s *service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closeFunc != nil {
		s.closeFunc()
	}
	s.closeFunc = nil
	s.isStarted = false
}

func (s *service) initialHeight(ctx context.Context) (uint64, error) {
	if s.checkpoint != nil {
		h, err := s.checkpoint.LoadLatestCheckpoint(ctx, s.network)
		switch {
		case err == nil:
			return h, nil
		case errors.Is(err, ErrNoCheckpointFound):
			// fall through to live height
		default:
			logger.Error(ctx, "failed to load checkpoint, falling back to live height",
				"network", s.network, "error", err)
		}
	}
	return s.height(ctx)
}

// height fetches the adapter's current height, retrying transient failures
// a few times before giving up.
func (s *service) height(ctx context.Context) (uint64, error) {
	var current uint64
	err := s.retrier.Execute(ctx, func() error {
		h, err := s.adapter.Height(ctx)
		if err != nil {
			return err
		}
		current = h
		return nil
	})
	return current, err
}

// loop runs the per-tick algorithm: skip the fetch entirely while nobody is
// subscribed, otherwise walk every height between the last processed one and
// the adapter's current height, invoking the matcher for each transaction.
//
// A height whose txsAt call fails is logged and skipped rather than retried
// on the next tick — this is the documented skip-on-fail policy, chosen to
// avoid head-of-line blocking a single bad height would otherwise cause.
func (s *service) loop(ctx context.Context, lastProcessedHeight uint64) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lastProcessedHeight = s.tickOnce(ctx, lastProcessedHeight)
		}
	}
}

func (s *service) tickOnce(ctx context.Context, lastProcessedHeight uint64) uint64 {
	current, err := s.height(ctx)
	if err != nil {
		logger.Warn(ctx, "height lookup failed after retries, will retry next tick", "network", s.network, "error", err)
		return lastProcessedHeight
	}

	if len(s.table.GetSubsForEvent(subscription.EventSubscribeAccount)) == 0 {
		s.recordHeight(current)
		return current
	}

	for h := lastProcessedHeight + 1; h <= current; h++ {
		if s.guard != nil {
			if err := s.guard.ClaimHeightForDispatch(ctx, s.network, h, dispatchClaimTTL); err != nil {
				logger.Debug(ctx, "skipping height claimed by another instance", "network", s.network, "height", h, "error", err)
				lastProcessedHeight = h
				continue
			}
		}

		txs, err := s.adapter.TxsAt(ctx, h)
		if err != nil {
			logger.Error(ctx, "txsAt failed, skipping height", "network", s.network, "height", h, "error", err)
			lastProcessedHeight = h
			continue
		}

		for _, tx := range txs {
			if tx.IsZero() {
				continue
			}
			if err := tx.Validate(); err != nil {
				logger.Warn(ctx, "dropping invalid normalized tx", "network", s.network, "error", err)
				continue
			}
			s.dispatch(ctx, tx)
		}

		lastProcessedHeight = h
		s.saveCheckpoint(ctx, h)
		s.markDispatched(ctx, h)
		s.recordHeight(h)
	}

	return lastProcessedHeight
}

func (s *service) dispatch(ctx context.Context, tx normalizedtx.Tx) {
	for _, delivery := range matcher.Match(tx, s.table, s.canon) {
		if err := delivery.Send(delivery.Payload); err != nil {
			logger.Warn(ctx, "delivery send failed", "network", s.network, "cid", delivery.CID, "error", err)
			if delivery.OnError != nil {
				delivery.OnError(err)
			}
		}
	}
}

func (s *service) saveCheckpoint(ctx context.Context, height uint64) {
	if s.checkpoint == nil {
		return
	}
	if err := s.checkpoint.SaveCheckpoint(ctx, s.network, height); err != nil {
		logger.Error(ctx, "failed to save checkpoint", "network", s.network, "height", height, "error", err)
	}
}

func (s *service) recordHeight(height uint64) {
	s.lastHeight.Store(height)
	s.everProcessed.Store(true)
}

func (s *service) markDispatched(ctx context.Context, height uint64) {
	if s.guard == nil {
		return
	}
	if err := s.guard.MarkHeightDispatched(ctx, s.network, height); err != nil {
		logger.Error(ctx, "failed to mark height dispatched", "network", s.network, "height", height, "error", err)
	}
}
