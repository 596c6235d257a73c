// Package interestset tracks the union of token contract addresses any
// live subscription currently cares about, per chain. Membership controls
// which on-chain log filters the adapter installs.
package interestset

import (
	"context"
	"sync"

	"github.com/blockwatch-gateway/gateway/internal/pkg/logger"
	"github.com/blockwatch-gateway/gateway/internal/pkg/types"
)

// MaxContracts bounds a Set at 50 entries, per spec.
const MaxContracts = 50

// Set is a bounded, append-only (under normal operation) set of token
// contract addresses. It is safe for concurrent use.
//
// There is no reference counting: an entry is created on first subscribe
// referring to it and persists for process lifetime. This is a deliberate
// simplification consistent with the 50-entry cap (see Open Question (b)
// in DESIGN.md).
type Set struct {
	mu      sync.RWMutex
	members types.Set[string]
}

// New returns an empty Set.
func New() *Set {
	return &Set{members: types.NewSet[string]()}
}

// Add inserts addr into the set. If the set is already at MaxContracts and
// addr is not already a member, the insert is silently dropped (and
// logged) rather than returning an error — the spec requires the caller
// (subscribe flow) to keep working even when the cap is hit.
//
// Returns true only when this call newly inserted addr — the caller uses
// this to fire a one-time action (e.g. arming an upstream log filter) on
// first sight of a contract, not on every subscribe referencing it.
func (s *Set) Add(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[addr]; ok {
		return false
	}

	if len(s.members) >= MaxContracts {
		logger.Warn(context.Background(), "contract interest set at capacity, dropping insert",
			"contract", addr, "capacity", MaxContracts)
		return false
	}

	s.members.Add(addr)
	return true
}

// Contains reports whether addr is currently a member.
func (s *Set) Contains(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.members[addr]
	return ok
}

// Len returns the current number of members.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.members)
}

// Snapshot returns a copy of the current members, safe to range over
// without holding the set's lock.
func (s *Set) Snapshot() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.members.ToSlice()
}
