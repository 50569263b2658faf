package blescanner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brewsignal/brewsignal/internal/adapters"
)

// snapshotEntry is the JSON shape written by the legacy daemon's file-mode
// snapshots: one manufacturer-data frame per observed device.
type snapshotEntry struct {
	Address          string `json:"address"`
	RSSI             int    `json:"rssi"`
	ManufacturerID   uint16 `json:"manufacturer_id"`
	ManufacturerData []byte `json:"manufacturer_data"`
}

// FileBackend polls a directory of JSON snapshot files written by a legacy
// daemon, emitting one payload per entry on every poll (spec §4.2 "file"
// mode).
type FileBackend struct {
	Dir          string
	PollInterval time.Duration
}

func NewFileBackend(dir string, pollInterval time.Duration) *FileBackend {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &FileBackend{Dir: dir, PollInterval: pollInterval}
}

func (f *FileBackend) Run(ctx context.Context, sink Sink) error {
	ticker := time.NewTicker(f.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := f.pollOnce(sink); err != nil {
				log.Warn().Err(err).Str("dir", f.Dir).Msg("file scanner poll failed")
			}
		}
	}
}

func (f *FileBackend) pollOnce(sink Sink) error {
	matches, err := filepath.Glob(filepath.Join(f.Dir, "*.json"))
	if err != nil {
		return fmt.Errorf("glob snapshot dir: %w", err)
	}
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to read snapshot file")
			continue
		}
		var entries []snapshotEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to parse snapshot file")
			continue
		}
		for _, e := range entries {
			rssi := e.RSSI
			sink(adapters.Payload{
				SourceProtocol:   string(ModeFile),
				ObservedAt:       time.Now().UTC(),
				Address:          e.Address,
				RSSI:             &rssi,
				ManufacturerID:   e.ManufacturerID,
				ManufacturerData: e.ManufacturerData,
			})
		}
	}
	return nil
}
