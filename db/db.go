// Package db is BrewSignal's single writer to the relational store: schema
// creation, additive migrations, and the bounded queries the ingest
// manager, temperature controller, and HTTP API need (spec §4.7).
package db

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Open opens (creating if necessary) the SQLite database at path, applies
// the schema, and runs any pending additive migrations.
func Open(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create database file: %w", err)
		}
		f.Close()
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection is acceptable given the modest write rate
	// (spec §5's shared-resource policy); this also sidesteps
	// SQLite's single-writer limitation without a busy-retry layer.
	conn.SetMaxOpenConns(1)

	if err := InitializeSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	if err := ApplyMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	log.Info().Str("path", path).Msg("database ready")
	return conn, nil
}
