package db

import (
	"database/sql"
	"fmt"
)

// InitializeSchema creates every table BrewSignal needs if it does not
// already exist. Schema evolution past this baseline happens exclusively
// through ApplyMigrations, per spec §4.7's additive-only migration policy.
func InitializeSchema(conn *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS devices (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			native_gravity_unit TEXT NOT NULL DEFAULT 'SG',
			native_temperature_unit TEXT NOT NULL DEFAULT 'C',
			paired BOOLEAN NOT NULL DEFAULT 0,
			last_seen TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS calibration_curves (
			device_id TEXT NOT NULL,
			quantity TEXT NOT NULL,
			points TEXT NOT NULL DEFAULT '[]',
			coefficients TEXT NOT NULL DEFAULT '[]',
			PRIMARY KEY (device_id, quantity),
			FOREIGN KEY (device_id) REFERENCES devices(id)
		)`,
		`CREATE TABLE IF NOT EXISTS batches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT,
			recipe_id INTEGER,
			batch_number INTEGER NOT NULL,
			status TEXT NOT NULL,
			start_time TIMESTAMP,
			end_time TIMESTAMP,
			measured_og REAL,
			measured_fg REAL,
			heater_entity TEXT,
			cooler_entity TEXT,
			temp_target REAL,
			temp_hysteresis REAL,
			deleted_at TIMESTAMP,
			FOREIGN KEY (device_id) REFERENCES devices(id)
		)`,
		`CREATE TABLE IF NOT EXISTS readings (
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
			status TEXT NOT NULL,
			FOREIGN KEY (device_id) REFERENCES devices(id),
			FOREIGN KEY (batch_id) REFERENCES batches(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_device_ts ON readings(device_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_batch_ts ON readings(batch_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}
