package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"fieldmap/internal/readings"
	"fieldmap/internal/types"
)

// OpenSQLite opens a SQLite database file and makes sure the schema exists.
func OpenSQLite(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := conn.Exec(Schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return conn, nil
}

// SQLiteReadingSource reads sensor readings from a SQLite database.
// observed_at is stored as text and parsed with the same layouts as the
// CSV source.
type SQLiteReadingSource struct {
	db *sql.DB
}

// NewSQLiteReadingSource creates a source on db.
func NewSQLiteReadingSource(db *sql.DB) *SQLiteReadingSource {
	return &SQLiteReadingSource{db: db}
}

// Name implements types.ReadingSource.
func (s *SQLiteReadingSource) Name() string { return "sqlite" }

// Ping checks that the database answers.
func (s *SQLiteReadingSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Load implements types.ReadingSource.
func (s *SQLiteReadingSource) Load(ctx context.Context) ([]types.SensorReading, error) {
	rows, err := s.db.QueryContext(ctx, selectReadings+` ORDER BY observed_at`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeDataUnavailableSource, "failed to query sensor readings", err)
	}
	defer rows.Close()

	var out []types.SensorReading
	for rows.Next() {
		var (
			rec                 types.SensorReading
			observed            string
			temp, aqi, rainfall sql.NullFloat64
		)
		if err := rows.Scan(&rec.Lat, &rec.Lon, &rec.Location, &observed, &temp, &aqi, &rainfall); err != nil {
			return nil, types.NewAppError(types.ErrCodeDataUnavailableSource, "failed to scan sensor reading", err)
		}
		if rec.Time, err = readings.ParseTime(observed); err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeDataUnavailableSource,
				"invalid observed_at in sensor_readings", err, map[string]any{"value": observed})
		}
		rec.Values = nullableValues(nullable(temp), nullable(aqi), nullable(rainfall))
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeDataUnavailableSource, "failed to read sensor readings", err)
	}
	return out, nil
}

// Insert stores readings in one transaction. Used by tooling to seed a
// local database from a CSV export.
func (s *SQLiteReadingSource) Insert(ctx context.Context, recs []types.SensorReading) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sensor_readings
(latitude, longitude, location, observed_at, temperature, aqi, rainfall)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx,
			r.Lat, r.Lon, r.Location, r.Time.UTC().Format(time.RFC3339),
			optional(r, types.FieldTemperature), optional(r, types.FieldAQI), optional(r, types.FieldRainfall),
		); err != nil {
			return fmt.Errorf("insert reading: %w", err)
		}
	}
	return tx.Commit()
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func optional(r types.SensorReading, f types.Field) sql.NullFloat64 {
	v, ok := r.Value(f)
	return sql.NullFloat64{Float64: v, Valid: ok}
}
