package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/brewsignal/brewsignal/internal/model"
)

const maxReadingsRange = 5000 // spec §4.7: readings_in_range is bounded by limit ≤ 5000

// InsertReading persists one immutable reading row and returns its
// assigned id (spec §4.7 insert_reading, invariant 3: monotonic id order).
func InsertReading(conn *sql.DB, r model.Reading) (int64, error) {
	reasons, err := marshalJSON(r.AnomalyReasons)
	if err != nil {
		return 0, fmt.Errorf("marshal anomaly reasons: %w", err)
	}
	res, err := conn.Exec(`
		INSERT INTO readings (
			device_id, timestamp, gravity_raw, gravity_calibrated, gravity_filtered,
			temperature_raw, temperature_calibrated, temperature_filtered,
			rssi, battery_percent, confidence, gravity_rate, temperature_rate,
			is_anomaly, anomaly_score, anomaly_reasons, batch_id, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.DeviceID, r.Timestamp.UTC(), r.GravityRaw, r.GravityCalibrated, r.GravityFiltered,
		r.TemperatureRaw, r.TemperatureCalibrated, r.TemperatureFiltered,
		nullableInt(r.RSSI), nullableInt(r.BatteryPercent), r.Confidence, r.GravityRate, r.TemperatureRate,
		r.IsAnomaly, r.AnomalyScore, reasons, nullableInt64(r.BatchID), string(r.Status))
	if err != nil {
		return 0, fmt.Errorf("insert reading for device %s: %w", r.DeviceID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read last insert id: %w", err)
	}
	return id, nil
}

// LatestReading returns the most recently observed reading for a device, or
// sql.ErrNoRows if none exists.
func LatestReading(conn *sql.DB, deviceID string) (*model.Reading, error) {
	row := conn.QueryRow(readingSelectColumns+` FROM readings WHERE device_id = ? ORDER BY timestamp DESC, id DESC LIMIT 1`, deviceID)
	return scanReading(row)
}

// LatestNonAnomalousReading returns the most recent reading not flagged
// anomalous, used by the pipeline's warm-start protocol (spec §4.4, §9).
func LatestNonAnomalousReading(conn *sql.DB, deviceID string) (*model.Reading, error) {
	row := conn.QueryRow(readingSelectColumns+` FROM readings WHERE device_id = ? AND is_anomaly = 0 ORDER BY timestamp DESC, id DESC LIMIT 1`, deviceID)
	return scanReading(row)
}

// ReadingsInRange returns readings for a device between since and until,
// chronological, bounded to maxReadingsRange (spec §4.7).
func ReadingsInRange(conn *sql.DB, deviceID string, since, until time.Time, limit int) ([]model.Reading, error) {
	if limit <= 0 || limit > maxReadingsRange {
		limit = maxReadingsRange
	}
	rows, err := conn.Query(readingSelectColumns+` FROM readings WHERE device_id = ? AND timestamp >= ? AND timestamp <= ? ORDER BY timestamp ASC LIMIT ?`,
		deviceID, since.UTC(), until.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query readings in range for %s: %w", deviceID, err)
	}
	defer rows.Close()

	var out []model.Reading
	for rows.Next() {
		r, err := scanReadingRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// AllReadingsChronological streams every reading across all devices, for
// the CSV export endpoint (spec §6 GET /log.csv).
func AllReadingsChronological(conn *sql.DB) ([]model.Reading, error) {
	rows, err := conn.Query(readingSelectColumns + ` FROM readings ORDER BY timestamp ASC`)
	if err != nil {
		return nil, fmt.Errorf("query all readings: %w", err)
	}
	defer rows.Close()

	var out []model.Reading
	for rows.Next() {
		r, err := scanReadingRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// DeleteReadingsOlderThan removes readings observed before cutoff and
// returns the count deleted (spec §4.7 periodic cleanup).
func DeleteReadingsOlderThan(conn *sql.DB, cutoff time.Time) (int64, error) {
	res, err := conn.Exec(`DELETE FROM readings WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete readings older than %s: %w", cutoff, err)
	}
	return res.RowsAffected()
}

// OrphanedReadings returns reading ids still linked to one of the given
// (now-deleted) batch ids (spec §4.7 maintenance).
func OrphanedReadings(conn *sql.DB, deletedBatchIDs []int64) ([]int64, error) {
	if len(deletedBatchIDs) == 0 {
		return nil, nil
	}
	placeholders, args := intPlaceholders(deletedBatchIDs)
	rows, err := conn.Query(`SELECT id FROM readings WHERE batch_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query orphaned readings: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan orphaned reading id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteReadingsByBatch removes the given reading ids and returns the count
// deleted (spec §4.7 maintenance).
func DeleteReadingsByBatch(conn *sql.DB, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders, args := intPlaceholders(ids)
	res, err := conn.Exec(`DELETE FROM readings WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete readings by id: %w", err)
	}
	return res.RowsAffected()
}

const readingSelectColumns = `SELECT id, device_id, timestamp, gravity_raw, gravity_calibrated, gravity_filtered,
	temperature_raw, temperature_calibrated, temperature_filtered, rssi, battery_percent,
	confidence, gravity_rate, temperature_rate, is_anomaly, anomaly_score, anomaly_reasons,
	batch_id, status`

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanReading(row scannable) (*model.Reading, error) {
	return scanReadingRows(row)
}

func scanReadingRows(row scannable) (*model.Reading, error) {
	var r model.Reading
	var rssi, battery sql.NullInt64
	var batchID sql.NullInt64
	var status string
	var reasonsJSON string
	err := row.Scan(&r.ID, &r.DeviceID, &r.Timestamp, &r.GravityRaw, &r.GravityCalibrated, &r.GravityFiltered,
		&r.TemperatureRaw, &r.TemperatureCalibrated, &r.TemperatureFiltered, &rssi, &battery,
		&r.Confidence, &r.GravityRate, &r.TemperatureRate, &r.IsAnomaly, &r.AnomalyScore, &reasonsJSON,
		&batchID, &status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan reading: %w", err)
	}
	if rssi.Valid {
		v := int(rssi.Int64)
		r.RSSI = &v
	}
	if battery.Valid {
		v := int(battery.Int64)
		r.BatteryPercent = &v
	}
	if batchID.Valid {
		v := batchID.Int64
		r.BatchID = &v
	}
	r.Status = model.ReadingStatus(status)
	if err := unmarshalJSON(reasonsJSON, &r.AnomalyReasons); err != nil {
		return nil, fmt.Errorf("decode anomaly reasons: %w", err)
	}
	return &r, nil
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func intPlaceholders(ids []int64) (string, []interface{}) {
	placeholders := ""
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = id
	}
	return placeholders, args
}
