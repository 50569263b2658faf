package db

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ApplyMigrations brings an existing database up to date with additive
// column changes, idempotent-checked on every startup (spec §4.7). Each
// migration is a named function guarded by hasColumn so re-running it is a
// no-op.
func ApplyMigrations(conn *sql.DB) error {
	migrations := []struct {
		name string
		fn   func(*sql.DB) error
	}{
		{"readings_battery_percent", migrateReadingsBatteryPercent},
	}

	for _, m := range migrations {
		if err := m.fn(conn); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	return nil
}

// migrateReadingsBatteryPercent adds the battery_percent column carried by
// NormalizedReading but absent from the original baseline schema.
func migrateReadingsBatteryPercent(conn *sql.DB) error {
	present, err := hasColumn(conn, "readings", "battery_percent")
	if err != nil {
		return err
	}
	if present {
		return nil
	}
	if _, err := conn.Exec(`ALTER TABLE readings ADD COLUMN battery_percent INTEGER`); err != nil {
		return err
	}
	log.Info().Msg("migrated readings table: added battery_percent")
	return nil
}

func hasColumn(conn *sql.DB, table, column string) (bool, error) {
	rows, err := conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("introspect table %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull bool
		var defaultValue *string
		var pk int
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return false, fmt.Errorf("scan table_info row: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
