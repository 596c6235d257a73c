// Package subscription implements the connection-scoped interest table that
// sits between the WebSocket handler and the matcher. A connection subscribes
// to an account (optionally filtered to a set of token contracts) and gets a
// callback invoked for every matching transaction; closing the connection
// tombstones its entries until the background sweeper reclaims them.
package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/blockwatch-gateway/gateway/internal/pkg/logger"
	"github.com/blockwatch-gateway/gateway/internal/pkg/types"
)

// MaxSubs bounds the table at 10,000 live (connection, event) entries.
const MaxSubs = 10_000

// sweepInterval is how often tombstoned connections are reclaimed.
const sweepInterval = 5 * time.Second

// ConnID identifies a single WebSocket connection.
type ConnID string

// Event names the kind of subscription. subscribeAccount is currently the
// only event the gateway exposes; the type exists so a second event kind
// doesn't require reshaping the table.
type Event string

// EventSubscribeAccount is the only subscription kind the gateway exposes.
const EventSubscribeAccount Event = "subscribeAccount"

// Interest pairs a watched address with an optional token filter. An empty
// Tokens slice means "match native transfers and every token transfer
// touching this address".
type Interest struct {
	Address string
	Tokens  []string
}

// SendFunc delivers a matched event to the subscriber. Implementations must
// not block indefinitely; the matcher calls this inline on its dispatch path.
type SendFunc func(payload any) error

// ErrorFunc reports a terminal delivery failure (e.g. the socket write
// failed) so the connection can be torn down by its owner.
type ErrorFunc func(err error)

// Validator is the narrow slice of chainadapter.Adapter the table needs to
// enforce the account/contract distinction at subscribe time.
type Validator interface {
	IsAccount(ctx context.Context, addr string) (bool, error)
}

type subEntry struct {
	send      SendFunc
	onError   ErrorFunc
	interests []Interest
}

type connRow struct {
	subs       map[Event]*subEntry
	tombstoned bool
	tombAt     time.Time
}

// Table is the live set of per-connection subscriptions for one network. It
// is safe for concurrent use.
type Table struct {
	mu    sync.RWMutex
	conns map[ConnID]*connRow
	count int // live (cid, event) entries, excludes tombstoned rows

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New returns an empty Table and starts its tombstone sweeper.
func New() *Table {
	t := &Table{
		conns:  make(map[ConnID]*connRow),
		stopCh: make(chan struct{}),
	}
	go t.sweepLoop()
	return t
}

// Close stops the background sweeper. It does not touch live subscriptions.
func (t *Table) Close() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// AddSub adds interests to the (cid, event) entry, creating it if absent.
// All entries in the call are validated before any mutation happens, so a
// failing call leaves the table unchanged.
//
//   - ErrCapacityExceeded: the table already holds MaxSubs live entries and
//     this call would create a new one.
//   - ErrAlreadySubscribed: addr duplicates an address already held by this
//     (cid, event) entry.
//   - ErrNotAnAccount: the subscribed address is not a plain account.
//   - ErrNotAContract: one of the token filter addresses is not a contract.
func (t *Table) AddSub(ctx context.Context, cid ConnID, event Event, send SendFunc, onErr ErrorFunc, interests []Interest, v Validator) error {
	if err := t.validateInterests(ctx, interests, v); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	row, ok := t.conns[cid]
	if !ok || row.tombstoned {
		row = &connRow{subs: make(map[Event]*subEntry)}
		t.conns[cid] = row
	}

	entry, ok := row.subs[event]
	if !ok {
		if t.count >= MaxSubs {
			return ErrCapacityExceeded
		}
		entry = &subEntry{send: send, onError: onErr}
		row.subs[event] = entry
		t.count++
	}

	existing := types.NewSet[string]()
	for _, in := range entry.interests {
		existing.Add(in.Address)
	}
	for _, in := range interests {
		if _, dup := existing[in.Address]; dup {
			return ErrAlreadySubscribed
		}
		existing.Add(in.Address)
	}

	entry.interests = append(entry.interests, interests...)
	return nil
}

func (t *Table) validateInterests(ctx context.Context, interests []Interest, v Validator) error {
	if v == nil {
		return nil
	}
	seen := types.NewSet[string]()
	for _, in := range interests {
		if _, dup := seen[in.Address]; dup {
			return ErrAlreadySubscribed
		}
		seen.Add(in.Address)

		isAcct, err := v.IsAccount(ctx, in.Address)
		if err != nil {
			return err
		}
		if !isAcct {
			return ErrNotAnAccount
		}
		for _, tok := range in.Tokens {
			tokIsAcct, err := v.IsAccount(ctx, tok)
			if err != nil {
				return err
			}
			if tokIsAcct {
				return ErrNotAContract
			}
		}
	}
	return nil
}

// CloseCID tombstones every entry belonging to cid. The row is retained
// until the next sweep so in-flight dispatch goroutines don't race a freed
// entry; it is no longer matched against after this call returns.
func (t *Table) CloseCID(cid ConnID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	row, ok := t.conns[cid]
	if !ok || row.tombstoned {
		return
	}
	row.tombstoned = true
	row.tombAt = time.Now()
	t.count -= len(row.subs)
}

// CIDInterests returns the interests currently held by cid for event, or nil
// if the connection has no such entry (or has been tombstoned).
func (t *Table) CIDInterests(cid ConnID, event Event) []Interest {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row, ok := t.conns[cid]
	if !ok || row.tombstoned {
		return nil
	}
	entry, ok := row.subs[event]
	if !ok {
		return nil
	}
	out := make([]Interest, len(entry.interests))
	copy(out, entry.interests)
	return out
}

// matchedSub is a live subscriber entry plus the interests it matched under,
// returned by GetSubsForEvent for the matcher to dispatch against.
type matchedSub struct {
	CID     ConnID
	Send    SendFunc
	OnError ErrorFunc
}

// GetSubsForEvent returns every live (non-tombstoned) subscriber for event.
func (t *Table) GetSubsForEvent(event Event) []matchedSub {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]matchedSub, 0, len(t.conns))
	for cid, row := range t.conns {
		if row.tombstoned {
			continue
		}
		entry, ok := row.subs[event]
		if !ok {
			continue
		}
		out = append(out, matchedSub{CID: cid, Send: entry.send, OnError: entry.onError})
	}
	return out
}

// Len reports the current number of live (cid, event) entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

func (t *Table) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *Table) sweep() {
	cutoff := time.Now().Add(-sweepInterval)

	t.mu.Lock()
	defer t.mu.Unlock()

	reclaimed := 0
	for cid, row := range t.conns {
		if row.tombstoned && !row.tombAt.After(cutoff) {
			delete(t.conns, cid)
			reclaimed++
		}
	}
	if reclaimed > 0 {
		logger.Debug(context.Background(), "subscription table reclaimed tombstoned connections", "count", reclaimed)
	}
}
