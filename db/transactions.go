package db

import (
	"database/sql"
	"fmt"

	"github.com/brewsignal/brewsignal/internal/model"
)

// StartTransaction starts a new database transaction.
func StartTransaction(conn *sql.DB) (*sql.Tx, error) {
	tx, err := conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("start transaction: %w", err)
	}
	return tx, nil
}

// CommitTransaction commits the given transaction.
func CommitTransaction(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RollbackTransaction rolls back the given transaction, discarding any
// error (the transaction is already being abandoned).
func RollbackTransaction(tx *sql.Tx) {
	tx.Rollback()
}

// UpdateBatchWithTx mirrors UpdateBatch but writes through an in-flight
// transaction, used by the batch-admin handler so the fermenting-invariant
// check and the write happen atomically (spec §3).
func UpdateBatchWithTx(tx *sql.Tx, b model.Batch) error {
	_, err := tx.Exec(`
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

// CountFermentingForDeviceWithTx mirrors CountFermentingForDevice but reads
// through an in-flight transaction so the check-then-set is atomic.
func CountFermentingForDeviceWithTx(tx *sql.Tx, deviceID string, excludingBatchID int64) (int, error) {
	var count int
	err := tx.QueryRow(`SELECT COUNT(*) FROM batches WHERE device_id = ? AND status = 'fermenting' AND deleted_at IS NULL AND id != ?`,
		deviceID, excludingBatchID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count fermenting batches for %s: %w", deviceID, err)
	}
	return count, nil
}
