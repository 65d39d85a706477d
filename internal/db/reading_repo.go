package db

import (
	"context"
	"fmt"
	"time"

	"fieldmap/internal/types"
)

const selectReadings = `SELECT latitude, longitude, location, observed_at, temperature, aqi, rainfall
FROM sensor_readings`

// ReadingRepository reads sensor readings from PostgreSQL.
type ReadingRepository struct {
	db DBTX
}

// NewReadingRepository creates a ReadingRepository on db.
func NewReadingRepository(db DBTX) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// Name implements types.ReadingSource.
func (r *ReadingRepository) Name() string { return "postgres" }

// Load implements types.ReadingSource.
func (r *ReadingRepository) Load(ctx context.Context) ([]types.SensorReading, error) {
	return r.query(ctx, selectReadings+` ORDER BY observed_at`)
}

// LoadRange returns readings observed in [from, to).
func (r *ReadingRepository) LoadRange(ctx context.Context, from, to time.Time) ([]types.SensorReading, error) {
	return r.query(ctx,
		selectReadings+` WHERE observed_at >= $1 AND observed_at < $2 ORDER BY observed_at`,
		from, to,
	)
}

// Ping checks that the database answers.
func (r *ReadingRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

func (r *ReadingRepository) query(ctx context.Context, sql string, args ...any) ([]types.SensorReading, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeDataUnavailableSource, "failed to query sensor readings", err)
	}
	defer rows.Close()

	var out []types.SensorReading
	for rows.Next() {
		var (
			rec                 types.SensorReading
			temp, aqi, rainfall *float64
		)
		if err := rows.Scan(&rec.Lat, &rec.Lon, &rec.Location, &rec.Time, &temp, &aqi, &rainfall); err != nil {
			return nil, types.NewAppError(types.ErrCodeDataUnavailableSource, "failed to scan sensor reading", err)
		}
		rec.Time = rec.Time.UTC()
		rec.Values = nullableValues(temp, aqi, rainfall)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeDataUnavailableSource, "failed to read sensor readings", err)
	}
	return out, nil
}

func nullableValues(temp, aqi, rainfall *float64) map[types.Field]float64 {
	values := make(map[types.Field]float64, 3)
	for f, v := range map[types.Field]*float64{
		types.FieldTemperature: temp,
		types.FieldAQI:         aqi,
		types.FieldRainfall:    rainfall,
	} {
		if v != nil {
			values[f] = *v
		}
	}
	return values
}
