// Package db provides SQL-backed reading sources. PostgreSQL access goes
// through the DBTX interface, satisfied by both *pgxpool.Pool and pgx.Tx;
// SQLite access uses database/sql with the go-sqlite3 driver.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Schema creates the sensor_readings table. The same DDL is valid for
// PostgreSQL and SQLite.
const Schema = `
CREATE TABLE IF NOT EXISTS sensor_readings (
  latitude     DOUBLE PRECISION NOT NULL,
  longitude    DOUBLE PRECISION NOT NULL,
  location     TEXT             NOT NULL,
  observed_at  TIMESTAMP        NOT NULL,
  temperature  DOUBLE PRECISION,
  aqi          DOUBLE PRECISION,
  rainfall     DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_sensor_readings_observed_at ON sensor_readings(observed_at);
`

// NewPool opens a pgx pool and verifies connectivity.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
