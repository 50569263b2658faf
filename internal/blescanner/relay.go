package blescanner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brewsignal/brewsignal/internal/adapters"
)

// RelayBackend HTTP-polls a remote host's snapshot endpoint, the same
// snapshot shape as FileBackend reads locally (spec §4.2 "relay" mode).
type RelayBackend struct {
	Host         string
	PollInterval time.Duration
	client       *http.Client
}

func NewRelayBackend(host string, pollInterval time.Duration) *RelayBackend {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &RelayBackend{
		Host:         host,
		PollInterval: pollInterval,
		client:       &http.Client{Timeout: 5 * time.Second},
	}
}

func (r *RelayBackend) Run(ctx context.Context, sink Sink) error {
	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.pollOnce(ctx, sink); err != nil {
				log.Warn().Err(err).Str("host", r.Host).Msg("relay scanner poll failed")
			}
		}
	}
}

func (r *RelayBackend) pollOnce(ctx context.Context, sink Sink) error {
	url := fmt.Sprintf("http://%s/snapshots", r.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build relay request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch relay snapshots: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay host returned status %d", resp.StatusCode)
	}

	var entries []snapshotEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return fmt.Errorf("decode relay snapshots: %w", err)
	}
	for _, e := range entries {
		rssi := e.RSSI
		sink(adapters.Payload{
			SourceProtocol:   string(ModeRelay),
			ObservedAt:       time.Now().UTC(),
			Address:          e.Address,
			RSSI:             &rssi,
			ManufacturerID:   e.ManufacturerID,
			ManufacturerData: e.ManufacturerData,
		})
	}
	return nil
}
