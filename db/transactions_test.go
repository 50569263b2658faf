package db

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewsignal/brewsignal/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, InitializeSchema(conn))
	require.NoError(t, ApplyMigrations(conn))
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBatteryPercentMigration(t *testing.T) {
	// Simulate an old database created before the battery_percent column
	// existed, then verify the migration adds it idempotently.
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec(`CREATE TABLE readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		gravity_raw REAL NOT NULL,
		gravity_calibrated REAL NOT NULL,
		gravity_filtered REAL NOT NULL,
		temperature_raw REAL NOT NULL,
		temperature_calibrated REAL NOT NULL,
		temperature_filtered REAL NOT NULL,
		rssi INTEGER,
		confidence REAL NOT NULL DEFAULT 0,
		gravity_rate REAL NOT NULL DEFAULT 0,
		temperature_rate REAL NOT NULL DEFAULT 0,
		is_anomaly BOOLEAN NOT NULL DEFAULT 0,
		anomaly_score REAL NOT NULL DEFAULT 0,
		anomaly_reasons TEXT NOT NULL DEFAULT '[]',
		batch_id INTEGER,
		status TEXT NOT NULL
	)`)
	require.NoError(t, err)

	present, err := hasColumn(conn, "readings", "battery_percent")
	require.NoError(t, err)
	assert.False(t, present)

	require.NoError(t, migrateReadingsBatteryPercent(conn))

	present, err = hasColumn(conn, "readings", "battery_percent")
	require.NoError(t, err)
	assert.True(t, present)

	// Re-running is a no-op, not an error (idempotent-checked per spec §4.7).
	require.NoError(t, migrateReadingsBatteryPercent(conn))
}

func TestInsertReading_MonotonicIDOrder(t *testing.T) {
	conn := openTestDB(t)
	require.NoError(t, UpsertDevice(conn, "dev-1", model.KindTilt, model.GravitySG, model.TempCelsius, time.Now()))

	base := time.Now()
	var lastID int64
	for i := 0; i < 5; i++ {
		id, err := InsertReading(conn, model.Reading{
			DeviceID:  "dev-1",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Status:    model.StatusValid,
		})
		require.NoError(t, err)
		assert.Greater(t, id, lastID)
		lastID = id
	}
}

func TestActiveBatchForDevice_AtMostOneFermenting(t *testing.T) {
	conn := openTestDB(t)
	require.NoError(t, UpsertDevice(conn, "dev-1", model.KindTilt, model.GravitySG, model.TempCelsius, time.Now()))
	deviceID := "dev-1"

	id, err := CreateBatch(conn, model.Batch{DeviceID: &deviceID, BatchNumber: 1, Status: model.BatchFermenting})
	require.NoError(t, err)

	count, err := CountFermentingForDevice(conn, deviceID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	active, err := ActiveBatchForDevice(conn, deviceID)
	require.NoError(t, err)
	assert.Equal(t, id, active.ID)
}

func TestDeleteReadingsOlderThan(t *testing.T) {
	conn := openTestDB(t)
	require.NoError(t, UpsertDevice(conn, "dev-1", model.KindTilt, model.GravitySG, model.TempCelsius, time.Now()))

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()
	_, err := InsertReading(conn, model.Reading{DeviceID: "dev-1", Timestamp: old, Status: model.StatusValid})
	require.NoError(t, err)
	_, err = InsertReading(conn, model.Reading{DeviceID: "dev-1", Timestamp: recent, Status: model.StatusValid})
	require.NoError(t, err)

	deleted, err := DeleteReadingsOlderThan(conn, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := ReadingsInRange(conn, "dev-1", time.Now().Add(-time.Hour), time.Now().Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}
