// Package gateway wires one heightpoll.Service per configured chain network
// into a single process lifecycle, mirroring the orchestration role the
// block-processing layer plays in the wider system this one was adapted
// from.
package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/blockwatch-gateway/gateway/internal/heightpoll"
)

// ErrServiceAlreadyStarted is returned if Start is called more than once.
var ErrServiceAlreadyStarted = errors.New("gateway: service already started")

// Service is the top-level lifecycle for the running gateway process.
type Service interface {
	// Start launches every configured network's height poller.
	Start(ctx context.Context) error

	// Close shuts down every poller. Safe to call even if Start was never
	// called.
	Close()
}

type closeFunc func()

type service struct {
	mu        sync.Mutex
	isStarted bool
	closeFunc closeFunc

	pollers map[string]heightpoll.Service
}

var _ Service = (*service)(nil)

// New builds a gateway Service over the given network name -> poller map.
func New(pollers map[string]heightpoll.Service) *service {
	return &service{pollers: pollers}
}

func (s *service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isStarted {
		return ErrServiceAlreadyStarted
	}

	started := make([]heightpoll.Service, 0, len(s.pollers))
	for _, p := range s.pollers {
		if err := p.Start(ctx); err != nil {
			for _, sp := range started {
				sp.Close()
			}
			return err
		}
		started = append(started, p)
	}

	s.closeFunc = func() {
		for _, p := range started {
			p.Close()
		}
	}
	s.isStarted = true
	return nil
}

func (s *service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closeFunc != nil {
		s.closeFunc()
	}
	s.closeFunc = nil
	s.isStarted = false
}
