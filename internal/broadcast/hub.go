// Package broadcast multiplexes processed-reading snapshots to connected
// WebSocket subscribers (spec §4.6).
package broadcast

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Snapshot is the stable external payload shape named in spec §4.6.
type Snapshot struct {
	DeviceID              string   `json:"device_id"`
	Timestamp             string   `json:"timestamp"`
	GravityRaw            float64  `json:"gravity_raw"`
	GravityCalibrated     float64  `json:"gravity_calibrated"`
	GravityFiltered       float64  `json:"gravity_filtered"`
	TemperatureRaw        float64  `json:"temperature_raw"`
	TemperatureCalibrated float64  `json:"temperature_calibrated"`
	TemperatureFiltered   float64  `json:"temperature_filtered"`
	RSSI                  *int     `json:"rssi,omitempty"`
	Confidence            float64  `json:"confidence"`
	IsAnomaly             bool     `json:"is_anomaly"`
	AnomalyReasons        []string `json:"anomaly_reasons,omitempty"`
}

const subscriberBuffer = 32

// Hub owns the set of connected subscribers and the latest snapshot per
// device. Publish never blocks the producer: a full subscriber buffer
// drops its oldest pending message (spec §4.6).
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan Snapshot
	latest      map[string]Snapshot
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]chan Snapshot),
		latest:      make(map[string]Snapshot),
	}
}

// Subscribe registers a new subscriber and immediately delivers a
// consolidated snapshot of the latest reading per device, so new clients
// sync immediately (spec §4.6). The returned id is used with Unsubscribe.
func (h *Hub) Subscribe() (id string, ch <-chan Snapshot) {
	subID := uuid.NewString()
	buffered := make(chan Snapshot, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[subID] = buffered
	snapshots := make([]Snapshot, 0, len(h.latest))
	for _, s := range h.latest {
		snapshots = append(snapshots, s)
	}
	h.mu.Unlock()

	for _, s := range snapshots {
		buffered <- s
	}
	return subID, buffered
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// Publish records the latest snapshot for a device and fans it out to
// every subscriber without blocking, dropping the oldest queued message
// for any subscriber whose buffer is full (spec §4.6).
func (h *Hub) Publish(snapshot Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest[snapshot.DeviceID] = snapshot

	for id, ch := range h.subscribers {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
				log.Debug().Str("subscriber", id).Msg("broadcast subscriber buffer still full after drop, skipping")
			}
		}
	}
}

// SubscriberCount reports the number of connected subscribers, for
// diagnostics and metrics.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
