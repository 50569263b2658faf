// Package ingest implements the single funnel every reading passes through:
// device upsert, pairing gate, throttle, validity check, calibration, the
// per-device pipeline, batch linkage, persistence, and broadcast (spec §4.3).
package ingest

import (
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brewsignal/brewsignal/db"
	"github.com/brewsignal/brewsignal/internal/broadcast"
	"github.com/brewsignal/brewsignal/internal/configstore"
	"github.com/brewsignal/brewsignal/internal/datadog"
	"github.com/brewsignal/brewsignal/internal/model"
	"github.com/brewsignal/brewsignal/internal/pipeline"
)

const defaultThrottleInterval = 10 * time.Second

const (
	gravityMin = 0.5
	gravityMax = 1.2
	tempMin    = 0.0
	tempMax    = 100.0
)

// Publisher is the broadcast hub's publish-only contract, named here so
// tests can substitute a fake (teacher's Notifier/Shutdowner pattern).
type Publisher interface {
	Publish(snapshot broadcast.Snapshot)
}

// ConfigProvider is the configstore's read-only contract the manager needs.
type ConfigProvider interface {
	Get() configstore.Snapshot
}

// Manager is the ingest funnel. Per-device_id calls are serialized by a
// per-device lock (spec §4.3 concurrency, §5); cross-device calls proceed
// in parallel.
type Manager struct {
	conn      *sql.DB
	pipeline  *pipeline.Pipeline
	publisher Publisher
	config    ConfigProvider

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	throttleMu sync.Mutex
	lastAccepted map[string]time.Time
}

func NewManager(conn *sql.DB, pl *pipeline.Pipeline, publisher Publisher, config ConfigProvider) *Manager {
	return &Manager{
		conn:         conn,
		pipeline:     pl,
		publisher:    publisher,
		config:       config,
		locks:        make(map[string]*sync.Mutex),
		lastAccepted: make(map[string]time.Time),
	}
}

func (m *Manager) lockFor(deviceID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[deviceID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[deviceID] = l
	}
	return l
}

// Ingest runs one normalized reading through the full pipeline (spec §4.3
// steps 1-10).
func (m *Manager) Ingest(n model.NormalizedReading) model.IngestOutcome {
	lock := m.lockFor(n.DeviceID)
	lock.Lock()
	defer lock.Unlock()

	cfg := m.config.Get()

	// 1. Device upsert.
	if err := db.UpsertDevice(m.conn, n.DeviceID, n.Kind, model.GravitySG, model.TempCelsius, n.ObservedAt); err != nil {
		log.Error().Err(err).Str("device_id", n.DeviceID).Msg("failed to upsert device")
		return model.IngestOutcome{Kind: model.OutcomeRejected, Reason: model.ReasonMalformed}
	}
	device, err := db.GetDevice(m.conn, n.DeviceID)
	if err != nil {
		log.Error().Err(err).Str("device_id", n.DeviceID).Msg("failed to reload device after upsert")
		return model.IngestOutcome{Kind: model.OutcomeRejected, Reason: model.ReasonMalformed}
	}

	// 2. Pairing gate.
	if cfg.PairingRequired && !device.Paired {
		return model.IngestOutcome{Kind: model.OutcomeDeviceUnpaired}
	}

	// 3. Throttle.
	if m.isThrottled(n.DeviceID, n.ObservedAt) {
		return model.IngestOutcome{Kind: model.OutcomeThrottled}
	}

	// 4. RSSI floor.
	if n.RSSI != nil && *n.RSSI < cfg.MinRSSI {
		return model.IngestOutcome{Kind: model.OutcomeRejected, Reason: model.ReasonWeakSignal}
	}

	gravityRaw := valueOrZero(n.GravitySG)
	temperatureRaw := valueOrZero(n.TemperatureC)

	status := model.StatusValid
	// 5. Validity check.
	if gravityRaw < gravityMin || gravityRaw > gravityMax || temperatureRaw < tempMin || temperatureRaw > tempMax {
		status = model.StatusInvalid
	}

	// 6. Calibration.
	gravityCal, temperatureCal := gravityRaw, temperatureRaw
	if status != model.StatusInvalid {
		gravityCurve, gErr := db.GetCalibrationCurve(m.conn, n.DeviceID, model.CalibrateGravity)
		tempCurve, tErr := db.GetCalibrationCurve(m.conn, n.DeviceID, model.CalibrateTemperature)
		if gErr == sql.ErrNoRows && tErr == sql.ErrNoRows {
			status = model.StatusUncalibrated
		} else {
			if gErr == nil {
				gravityCal = applyCalibration(gravityCurve, gravityRaw)
			}
			if tErr == nil {
				temperatureCal = applyCalibration(tempCurve, temperatureRaw)
			}
		}
	}

	// 7. Per-device pipeline, with graceful degradation on panic. An
	// out-of-range reading is excluded so it can't corrupt the per-device
	// Kalman/anomaly state for subsequent readings.
	var processed model.ProcessedReading
	if status != model.StatusInvalid {
		processed = m.runPipeline(n.DeviceID, gravityCal, temperatureCal, n.ObservedAt)
	}

	// 8. Batch linkage.
	var batchID *int64
	if batch, err := db.ActiveBatchForDevice(m.conn, n.DeviceID); err == nil {
		id := batch.ID
		batchID = &id
	} else if err != sql.ErrNoRows {
		log.Warn().Err(err).Str("device_id", n.DeviceID).Msg("failed to look up active batch")
	}

	reading := model.Reading{
		DeviceID:              n.DeviceID,
		Timestamp:             n.ObservedAt,
		GravityRaw:            gravityRaw,
		GravityCalibrated:     gravityCal,
		GravityFiltered:       processed.GravityFiltered,
		TemperatureRaw:        temperatureRaw,
		TemperatureCalibrated: temperatureCal,
		TemperatureFiltered:   processed.TemperatureFiltered,
		RSSI:                  n.RSSI,
		BatteryPercent:        n.BatteryPercent,
		Confidence:            processed.Confidence,
		GravityRate:           processed.GravityRate,
		TemperatureRate:       processed.TemperatureRate,
		IsAnomaly:             processed.IsAnomaly,
		AnomalyScore:          processed.AnomalyScore,
		AnomalyReasons:        processed.AnomalyReasons,
		BatchID:               batchID,
		Status:                status,
	}

	// 9. Persist.
	id, err := db.InsertReading(m.conn, reading)
	if err != nil {
		log.Error().Err(err).Str("device_id", n.DeviceID).Msg("failed to persist reading")
		return model.IngestOutcome{Kind: model.OutcomeRejected, Reason: model.ReasonMalformed}
	}

	if status != model.StatusInvalid {
		m.markAccepted(n.DeviceID, n.ObservedAt)
	}

	datadog.Gauge("reading.anomaly_score", processed.AnomalyScore, "device_id:"+n.DeviceID)

	// 10. Broadcast.
	m.publisher.Publish(broadcast.Snapshot{
		DeviceID:              n.DeviceID,
		Timestamp:             n.ObservedAt.UTC().Format(time.RFC3339),
		GravityRaw:            gravityRaw,
		GravityCalibrated:     gravityCal,
		GravityFiltered:       processed.GravityFiltered,
		TemperatureRaw:        temperatureRaw,
		TemperatureCalibrated: temperatureCal,
		TemperatureFiltered:   processed.TemperatureFiltered,
		RSSI:                  n.RSSI,
		Confidence:            processed.Confidence,
		IsAnomaly:             processed.IsAnomaly,
		AnomalyReasons:        processed.AnomalyReasons,
	})

	return model.IngestOutcome{Kind: model.OutcomeAccepted, ReadingID: id}
}

func (m *Manager) isThrottled(deviceID string, observedAt time.Time) bool {
	m.throttleMu.Lock()
	defer m.throttleMu.Unlock()
	last, ok := m.lastAccepted[deviceID]
	if !ok {
		return false
	}
	return observedAt.Sub(last) < defaultThrottleInterval
}

func (m *Manager) markAccepted(deviceID string, observedAt time.Time) {
	m.throttleMu.Lock()
	defer m.throttleMu.Unlock()
	m.lastAccepted[deviceID] = observedAt
}

// runPipeline recovers from a panic inside the processing stage and falls
// back to calibrated values with zero rates and zero confidence, per spec
// §4.3 step 7 and §7's pipeline_error policy.
func (m *Manager) runPipeline(deviceID string, gravityCal, temperatureCal float64, observedAt time.Time) (result model.ProcessedReading) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Str("device_id", deviceID).Msg("pipeline panicked, falling back to calibrated values")
			result = model.ProcessedReading{
				GravityFiltered:     gravityCal,
				TemperatureFiltered: temperatureCal,
			}
		}
	}()
	return m.pipeline.Process(deviceID, gravityCal, temperatureCal, observedAt)
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
