package ingest

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewsignal/brewsignal/db"
	"github.com/brewsignal/brewsignal/internal/broadcast"
	"github.com/brewsignal/brewsignal/internal/configstore"
	"github.com/brewsignal/brewsignal/internal/model"
	"github.com/brewsignal/brewsignal/internal/pipeline"
)

type fakePublisher struct {
	published []broadcast.Snapshot
}

func (f *fakePublisher) Publish(s broadcast.Snapshot) {
	f.published = append(f.published, s)
}

type fakeConfig struct {
	snapshot configstore.Snapshot
}

func (f *fakeConfig) Get() configstore.Snapshot { return f.snapshot }

func newTestManager(t *testing.T, cfg configstore.Snapshot) (*Manager, *fakePublisher, *sql.DB) {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.InitializeSchema(conn))
	require.NoError(t, db.ApplyMigrations(conn))
	t.Cleanup(func() { conn.Close() })

	pub := &fakePublisher{}
	m := NewManager(conn, pipeline.New(), pub, &fakeConfig{snapshot: cfg})
	return m, pub, conn
}

func reading(deviceID string, gravity, temp float64, at time.Time) model.NormalizedReading {
	return model.NormalizedReading{
		DeviceID:     deviceID,
		Kind:         model.KindTilt,
		GravitySG:    &gravity,
		TemperatureC: &temp,
		ObservedAt:   at,
	}
}

func TestUnpairedDevice_CreatedButNoReading(t *testing.T) {
	m, _, conn := newTestManager(t, configstore.Snapshot{PairingRequired: true, MinRSSI: -100})

	out := m.Ingest(reading("dev-x", 1.050, 20.0, time.Now()))
	assert.Equal(t, model.OutcomeDeviceUnpaired, out.Kind)

	device, err := db.GetDevice(conn, "dev-x")
	require.NoError(t, err)
	assert.False(t, device.Paired)

	readings, err := db.ReadingsInRange(conn, "dev-x", time.Now().Add(-time.Hour), time.Now().Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, readings)
}

func TestPairedDevice_ProducesReading(t *testing.T) {
	m, pub, conn := newTestManager(t, configstore.Snapshot{PairingRequired: true, MinRSSI: -100})

	m.Ingest(reading("dev-x", 1.050, 20.0, time.Now()))
	require.NoError(t, db.UpdateDeviceAdmin(conn, "dev-x", true, "", model.GravitySG, model.TempCelsius))

	out := m.Ingest(reading("dev-x", 1.050, 20.0, time.Now().Add(time.Hour)))
	assert.Equal(t, model.OutcomeAccepted, out.Kind)
	assert.Len(t, pub.published, 1)
}

func TestThrottle_RejectsWithinInterval(t *testing.T) {
	m, _, conn := newTestManager(t, configstore.Snapshot{PairingRequired: false, MinRSSI: -100})
	require.NoError(t, db.UpsertDevice(conn, "dev-x", model.KindTilt, model.GravitySG, model.TempCelsius, time.Now()))

	base := time.Now()
	out1 := m.Ingest(reading("dev-x", 1.050, 20.0, base))
	assert.Equal(t, model.OutcomeAccepted, out1.Kind)

	out2 := m.Ingest(reading("dev-x", 1.050, 20.0, base.Add(3*time.Second)))
	assert.Equal(t, model.OutcomeThrottled, out2.Kind)
}

func TestWeakSignal_Rejected(t *testing.T) {
	m, _, conn := newTestManager(t, configstore.Snapshot{PairingRequired: false, MinRSSI: -70})
	require.NoError(t, db.UpsertDevice(conn, "dev-x", model.KindTilt, model.GravitySG, model.TempCelsius, time.Now()))

	rssi := -90
	n := reading("dev-x", 1.050, 20.0, time.Now())
	n.RSSI = &rssi
	out := m.Ingest(n)
	assert.Equal(t, model.OutcomeRejected, out.Kind)
	assert.Equal(t, model.ReasonWeakSignal, out.Reason)
}

func TestInvalidRange_PersistedButExcludedFromPipeline(t *testing.T) {
	m, _, conn := newTestManager(t, configstore.Snapshot{PairingRequired: false, MinRSSI: -100})
	require.NoError(t, db.UpsertDevice(conn, "dev-x", model.KindTilt, model.GravitySG, model.TempCelsius, time.Now()))

	base := time.Now()
	seed := m.Ingest(reading("dev-x", 1.050, 20.0, base)) // seeds the per-device Kalman state
	require.Equal(t, model.OutcomeAccepted, seed.Kind)
	seeded, err := db.LatestReading(conn, "dev-x")
	require.NoError(t, err)

	out := m.Ingest(reading("dev-x", 2.5, 20.0, base.Add(time.Minute))) // out of [0.5, 1.2]
	require.Equal(t, model.OutcomeAccepted, out.Kind)

	r, err := db.LatestReading(conn, "dev-x")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInvalid, r.Status)
	// Excluded from the pipeline: no filtered/confidence output, and the
	// per-device filter state is untouched for the next valid reading.
	assert.Zero(t, r.GravityFiltered)
	assert.Zero(t, r.TemperatureFiltered)
	assert.Zero(t, r.Confidence)

	next := m.Ingest(reading("dev-x", 1.051, 20.1, base.Add(2*time.Minute)))
	require.Equal(t, model.OutcomeAccepted, next.Kind)
	afterward, err := db.LatestReading(conn, "dev-x")
	require.NoError(t, err)
	assert.InDelta(t, seeded.GravityFiltered, afterward.GravityFiltered, 0.01,
		"filter state should continue from the last valid reading, unaffected by the invalid one in between")
}

func TestBatchLinkage_SetOnFermentingBatch(t *testing.T) {
	m, _, conn := newTestManager(t, configstore.Snapshot{PairingRequired: false, MinRSSI: -100})
	require.NoError(t, db.UpsertDevice(conn, "dev-x", model.KindTilt, model.GravitySG, model.TempCelsius, time.Now()))
	deviceID := "dev-x"
	batchID, err := db.CreateBatch(conn, model.Batch{DeviceID: &deviceID, BatchNumber: 1, Status: model.BatchFermenting})
	require.NoError(t, err)

	out := m.Ingest(reading("dev-x", 1.050, 20.0, time.Now()))
	require.Equal(t, model.OutcomeAccepted, out.Kind)

	r, err := db.LatestReading(conn, "dev-x")
	require.NoError(t, err)
	require.NotNil(t, r.BatchID)
	assert.Equal(t, batchID, *r.BatchID)
}
