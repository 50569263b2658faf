// Package configstore is the process-wide live configuration store (spec
// §4.8): get/update/subscribe semantics over options persisted in SQLite,
// broadcasting change notifications the way the broadcast hub fans out
// readings.
package configstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Snapshot is the full set of recognized live options (spec §4.8 table).
type Snapshot struct {
	ScannerMode         string `json:"scanner_mode"`
	ScannerFilesPath    string `json:"scanner_files_path"`
	ScannerRelayHost    string `json:"scanner_relay_host"`
	MinRSSI             int    `json:"min_rssi"`
	SmoothingEnabled    bool   `json:"smoothing_enabled"`
	SmoothingSamples    int    `json:"smoothing_samples"`
	TempUnits           string `json:"temp_units"`
	GravityUnits        string `json:"gravity_units"`
	HAEnabled           bool   `json:"ha_enabled"`
	HAURL               string `json:"ha_url"`
	HAToken             string `json:"ha_token"`
	HAAmbientEntityID   string `json:"ha_ambient_entity_id"`
	PairingRequired     bool   `json:"pairing_required"`
	CleanupRetentionDays int   `json:"cleanup_retention_days"`
}

func defaultSnapshot() Snapshot {
	return Snapshot{
		ScannerMode:          "mock",
		MinRSSI:              -100,
		SmoothingEnabled:     true,
		SmoothingSamples:     5,
		TempUnits:            "F",
		GravityUnits:         "SG",
		PairingRequired:      true,
		CleanupRetentionDays: 180,
	}
}

const configRowKey = "snapshot"

// Store owns the live Snapshot, persists it to the config table on update,
// and fans it out to subscribers exactly like the broadcast hub: a
// non-blocking send per subscriber (spec §4.8, §4.6).
type Store struct {
	conn *sql.DB

	mu          sync.RWMutex
	current     Snapshot
	subscribers []chan Snapshot
}

// Load reads the persisted snapshot from the config table, seeding defaults
// on first run.
func Load(conn *sql.DB) (*Store, error) {
	s := &Store{conn: conn, current: defaultSnapshot()}

	var raw string
	err := conn.QueryRow(`SELECT value FROM config WHERE key = ?`, configRowKey).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		if err := s.persist(); err != nil {
			return nil, fmt.Errorf("seed default config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load config snapshot: %w", err)
	default:
		if err := json.Unmarshal([]byte(raw), &s.current); err != nil {
			return nil, fmt.Errorf("decode config snapshot: %w", err)
		}
	}
	return s, nil
}

// Get returns the current snapshot.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update applies patch (via a caller-supplied mutator), persists it, and
// broadcasts the new snapshot to every subscriber.
func (s *Store) Update(mutate func(*Snapshot)) (Snapshot, error) {
	s.mu.Lock()
	mutate(&s.current)
	snapshot := s.current
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		return snapshot, fmt.Errorf("persist updated config: %w", err)
	}
	s.broadcast(snapshot)
	return snapshot, nil
}

// Subscribe registers a channel that receives every future snapshot,
// non-blocking: a slow subscriber misses intermediate snapshots rather than
// stalling Update (mirrors the broadcast hub's drop-oldest discipline, but
// since only the latest snapshot matters, a full buffer simply skips the
// send).
func (s *Store) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) broadcast(snapshot Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
			log.Debug().Msg("config subscriber buffer full, snapshot dropped")
		}
	}
}

func (s *Store) persist() error {
	raw, err := json.Marshal(s.current)
	if err != nil {
		return fmt.Errorf("marshal config snapshot: %w", err)
	}
	_, err = s.conn.Exec(`INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, configRowKey, string(raw))
	if err != nil {
		return fmt.Errorf("write config snapshot: %w", err)
	}
	return nil
}
