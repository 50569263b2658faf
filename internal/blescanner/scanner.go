// Package blescanner discovers hydrometer BLE advertisements and hands raw,
// source-tagged payloads to the adapter layer. The scanner performs no
// filtering, deduplication, or persistence — it is a pure source (spec §4.2).
package blescanner

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brewsignal/brewsignal/internal/adapters"
)

// Mode selects which scanner backend is active.
type Mode string

const (
	ModeBLE   Mode = "ble"
	ModeMock  Mode = "mock"
	ModeFile  Mode = "file"
	ModeRelay Mode = "relay"
)

// Sink receives every demultiplexed payload the scanner observes,
// regardless of backend. It is the ingest manager's adapter-routing
// entrypoint.
type Sink func(p adapters.Payload)

// Backend is the interface each mode implements. Run blocks until ctx is
// canceled or a fatal error occurs; Scanner handles restart/backoff.
type Backend interface {
	Run(ctx context.Context, sink Sink) error
}

const (
	minBackoff = 1 * time.Second
	maxBackoff = 60 * time.Second
)

// Scanner owns a single active Backend and restarts it with exponential
// backoff on failure, per spec §4.2's failure semantics. start()/stop() are
// idempotent.
type Scanner struct {
	backend Backend
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a Scanner over the given backend (selected by configuration).
func New(backend Backend) *Scanner {
	return &Scanner{backend: backend}
}

// Start begins scanning in a background goroutine. Calling Start twice
// without an intervening Stop is a no-op.
func (s *Scanner) Start(ctx context.Context, sink Sink) {
	if s.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.runWithBackoff(runCtx, sink)
	}()
}

// Stop cancels the active scan and waits for the backend goroutine to exit.
// Calling Stop without a prior Start is a no-op.
func (s *Scanner) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
}

func (s *Scanner) runWithBackoff(ctx context.Context, sink Sink) {
	backoff := minBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := s.backend.Run(ctx, sink)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			// A backend returning nil without ctx cancellation means it
			// exited cleanly; still restart under backoff rather than
			// busy-looping.
			backoff = minBackoff
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			continue
		}

		log.Warn().Err(err).Dur("backoff", backoff).Msg("ble scanner backend failed, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
