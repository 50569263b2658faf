package db

import (
	"database/sql"
	"fmt"

	"github.com/brewsignal/brewsignal/internal/model"
)

const batchSelectColumns = `SELECT id, device_id, recipe_id, batch_number, status, start_time, end_time,
	measured_og, measured_fg, heater_entity, cooler_entity, temp_target, temp_hysteresis, deleted_at
	FROM batches`

// ActiveBatchForDevice returns the single non-deleted fermenting batch for a
// device, or sql.ErrNoRows if none (spec §3 invariant 6, §4.7).
func ActiveBatchForDevice(conn *sql.DB, deviceID string) (*model.Batch, error) {
	row := conn.QueryRow(batchSelectColumns+` WHERE device_id = ? AND status = ? AND deleted_at IS NULL`,
		deviceID, string(model.BatchFermenting))
	return scanBatch(row)
}

// GetBatch retrieves a batch by id.
func GetBatch(conn *sql.DB, id int64) (*model.Batch, error) {
	row := conn.QueryRow(batchSelectColumns+` WHERE id = ?`, id)
	return scanBatch(row)
}

// ListControllerEligibleBatches returns every batch the temperature
// controller should consider on a tick: fermenting, not deleted, linked to
// a device, with at least one actuator and a target (spec §4.5 set A).
func ListControllerEligibleBatches(conn *sql.DB) ([]model.Batch, error) {
	rows, err := conn.Query(batchSelectColumns + ` WHERE status = ? AND deleted_at IS NULL
		AND device_id IS NOT NULL AND temp_target IS NOT NULL
		AND (heater_entity IS NOT NULL OR cooler_entity IS NOT NULL)`, string(model.BatchFermenting))
	if err != nil {
		return nil, fmt.Errorf("query controller-eligible batches: %w", err)
	}
	defer rows.Close()

	var out []model.Batch
	for rows.Next() {
		b, err := scanBatchRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// CreateBatch inserts a new batch in the planning state and returns its id.
func CreateBatch(conn *sql.DB, b model.Batch) (int64, error) {
	res, err := conn.Exec(`
		INSERT INTO batches (device_id, recipe_id, batch_number, status, start_time, end_time,
			measured_og, measured_fg, heater_entity, cooler_entity, temp_target, temp_hysteresis)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.DeviceID, b.RecipeID, b.BatchNumber, string(b.Status), b.StartTime, b.EndTime,
		b.MeasuredOG, b.MeasuredFG, b.HeaterEntity, b.CoolerEntity, b.TempTarget, b.TempHysteresis)
	if err != nil {
		return 0, fmt.Errorf("create batch: %w", err)
	}
	return res.LastInsertId()
}

// UpdateBatch applies the device-admin PATCH fields for a batch: target,
// hysteresis, actuator entities, and status transitions. The at-most-one-
// fermenting invariant is enforced by the caller before calling this with
// status=fermenting.
func UpdateBatch(conn *sql.DB, b model.Batch) error {
	_, err := conn.Exec(`
		UPDATE batches SET device_id = ?, status = ?, start_time = ?, end_time = ?,
			measured_og = ?, measured_fg = ?, heater_entity = ?, cooler_entity = ?,
			temp_target = ?, temp_hysteresis = ?, deleted_at = ?
		WHERE id = ?`,
		b.DeviceID, string(b.Status), b.StartTime, b.EndTime, b.MeasuredOG, b.MeasuredFG,
		b.HeaterEntity, b.CoolerEntity, b.TempTarget, b.TempHysteresis, b.DeletedAt, b.ID)
	if err != nil {
		return fmt.Errorf("update batch %d: %w", b.ID, err)
	}
	return nil
}

// CountFermentingForDevice supports the at-most-one-fermenting invariant
// check performed before a status transition to fermenting.
func CountFermentingForDevice(conn *sql.DB, deviceID string, excludingBatchID int64) (int, error) {
	var count int
	err := conn.QueryRow(`SELECT COUNT(*) FROM batches WHERE device_id = ? AND status = ? AND deleted_at IS NULL AND id != ?`,
		deviceID, string(model.BatchFermenting), excludingBatchID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count fermenting batches for %s: %w", deviceID, err)
	}
	return count, nil
}

func scanBatch(row scannable) (*model.Batch, error) {
	return scanBatchRows(row)
}

func scanBatchRows(row scannable) (*model.Batch, error) {
	var b model.Batch
	var deviceID, heaterEntity, coolerEntity sql.NullString
	var recipeID sql.NullInt64
	var status string
	var startTime, endTime, deletedAt sql.NullTime
	var measuredOG, measuredFG, tempTarget, tempHysteresis sql.NullFloat64

	err := row.Scan(&b.ID, &deviceID, &recipeID, &b.BatchNumber, &status, &startTime, &endTime,
		&measuredOG, &measuredFG, &heaterEntity, &coolerEntity, &tempTarget, &tempHysteresis, &deletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan batch: %w", err)
	}
	b.Status = model.BatchStatus(status)
	if deviceID.Valid {
		v := deviceID.String
		b.DeviceID = &v
	}
	if recipeID.Valid {
		v := recipeID.Int64
		b.RecipeID = &v
	}
	if heaterEntity.Valid {
		v := heaterEntity.String
		b.HeaterEntity = &v
	}
	if coolerEntity.Valid {
		v := coolerEntity.String
		b.CoolerEntity = &v
	}
	if startTime.Valid {
		v := startTime.Time
		b.StartTime = &v
	}
	if endTime.Valid {
		v := endTime.Time
		b.EndTime = &v
	}
	if deletedAt.Valid {
		v := deletedAt.Time
		b.DeletedAt = &v
	}
	if measuredOG.Valid {
		v := measuredOG.Float64
		b.MeasuredOG = &v
	}
	if measuredFG.Valid {
		v := measuredFG.Float64
		b.MeasuredFG = &v
	}
	if tempTarget.Valid {
		v := tempTarget.Float64
		b.TempTarget = &v
	}
	if tempHysteresis.Valid {
		v := tempHysteresis.Float64
		b.TempHysteresis = &v
	}
	return &b, nil
}
