package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/brewsignal/brewsignal/internal/model"
)

// UpsertDevice creates a device row on first sight (paired=false) or
// refreshes last_seen on an existing one (spec §4.3 step 1).
func UpsertDevice(conn *sql.DB, deviceID string, kind model.DeviceKind, nativeGravity model.GravityUnit, nativeTemp model.TemperatureUnit, lastSeen time.Time) error {
	_, err := conn.Exec(`
		INSERT INTO devices (id, kind, native_gravity_unit, native_temperature_unit, paired, last_seen)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET last_seen = excluded.last_seen`,
		deviceID, string(kind), string(nativeGravity), string(nativeTemp), lastSeen.UTC())
	if err != nil {
		return fmt.Errorf("upsert device %s: %w", deviceID, err)
	}
	return nil
}

// GetDevice retrieves a device by id. It returns sql.ErrNoRows, unwrapped,
// when absent so callers can use errors.Is.
func GetDevice(conn *sql.DB, deviceID string) (*model.Device, error) {
	var d model.Device
	var kind, gravityUnit, tempUnit string
	var lastSeen time.Time
	err := conn.QueryRow(`
		SELECT id, kind, display_name, native_gravity_unit, native_temperature_unit, paired, last_seen
		FROM devices WHERE id = ?`, deviceID).
		Scan(&d.ID, &kind, &d.DisplayName, &gravityUnit, &tempUnit, &d.Paired, &lastSeen)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get device %s: %w", deviceID, err)
	}
	d.Kind = model.DeviceKind(kind)
	d.NativeGravityUnit = model.GravityUnit(gravityUnit)
	d.NativeTemperatureUnit = model.TemperatureUnit(tempUnit)
	d.LastSeen = lastSeen
	return &d, nil
}

// ListDevices returns every known device, paired or not.
func ListDevices(conn *sql.DB) ([]model.Device, error) {
	rows, err := conn.Query(`SELECT id, kind, display_name, native_gravity_unit, native_temperature_unit, paired, last_seen FROM devices`)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	var devices []model.Device
	for rows.Next() {
		var d model.Device
		var kind, gravityUnit, tempUnit string
		var lastSeen time.Time
		if err := rows.Scan(&d.ID, &kind, &d.DisplayName, &gravityUnit, &tempUnit, &d.Paired, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		d.Kind = model.DeviceKind(kind)
		d.NativeGravityUnit = model.GravityUnit(gravityUnit)
		d.NativeTemperatureUnit = model.TemperatureUnit(tempUnit)
		d.LastSeen = lastSeen
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// UpdateDeviceAdmin applies the device-admin PATCH fields: pairing state,
// display name, and native units.
func UpdateDeviceAdmin(conn *sql.DB, deviceID string, paired bool, displayName string, nativeGravity model.GravityUnit, nativeTemp model.TemperatureUnit) error {
	_, err := conn.Exec(`
		UPDATE devices SET paired = ?, display_name = ?, native_gravity_unit = ?, native_temperature_unit = ?
		WHERE id = ?`,
		paired, displayName, string(nativeGravity), string(nativeTemp), deviceID)
	if err != nil {
		return fmt.Errorf("update device %s: %w", deviceID, err)
	}
	return nil
}

// GetCalibrationCurve returns the stored curve for a device/quantity pair,
// or sql.ErrNoRows if none exists (spec §4.3 step 6: "if no curve exists").
func GetCalibrationCurve(conn *sql.DB, deviceID string, quantity model.CalibrationQuantity) (*model.CalibrationCurve, error) {
	var pointsJSON, coefficientsJSON string
	curve := &model.CalibrationCurve{DeviceID: deviceID, Quantity: quantity}
	err := conn.QueryRow(`SELECT points, coefficients FROM calibration_curves WHERE device_id = ? AND quantity = ?`,
		deviceID, string(quantity)).Scan(&pointsJSON, &coefficientsJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get calibration curve for %s/%s: %w", deviceID, quantity, err)
	}
	if err := unmarshalJSON(pointsJSON, &curve.Points); err != nil {
		return nil, fmt.Errorf("decode calibration points: %w", err)
	}
	if err := unmarshalJSON(coefficientsJSON, &curve.Coefficients); err != nil {
		return nil, fmt.Errorf("decode calibration coefficients: %w", err)
	}
	return curve, nil
}

// UpsertCalibrationCurve stores (or replaces) a device's calibration curve
// for one quantity.
func UpsertCalibrationCurve(conn *sql.DB, curve model.CalibrationCurve) error {
	points, err := marshalJSON(curve.Points)
	if err != nil {
		return fmt.Errorf("marshal calibration points: %w", err)
	}
	coefficients, err := marshalJSON(curve.Coefficients)
	if err != nil {
		return fmt.Errorf("marshal calibration coefficients: %w", err)
	}
	_, err = conn.Exec(`
		INSERT INTO calibration_curves (device_id, quantity, points, coefficients)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_id, quantity) DO UPDATE SET points = excluded.points, coefficients = excluded.coefficients`,
		curve.DeviceID, string(curve.Quantity), points, coefficients)
	if err != nil {
		return fmt.Errorf("upsert calibration curve for %s/%s: %w", curve.DeviceID, curve.Quantity, err)
	}
	return nil
}
