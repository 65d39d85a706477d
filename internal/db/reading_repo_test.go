package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fieldmap/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

type mockRow struct {
	scanErr error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	if p, ok := dest[0].(*int); ok {
		*p = 1
	}
	return nil
}

// --- Mock Rows ---

// mockRows implements pgx.Rows over reading tuples.
type mockRows struct {
	data    [][]any
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

func newMockRows(data [][]any) *mockRows {
	return &mockRows{data: data, idx: -1}
}

func (r *mockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *mockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.idx]
	for i, d := range dest {
		switch v := d.(type) {
		case *float64:
			*v = row[i].(float64)
		case *string:
			*v = row[i].(string)
		case *time.Time:
			*v = row[i].(time.Time)
		case **float64:
			if row[i] == nil {
				*v = nil
			} else {
				f := row[i].(float64)
				*v = &f
			}
		}
	}
	return nil
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.errVal }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

func TestReadingRepository_Load(t *testing.T) {
	db := new(mockDBTX)
	repo := NewReadingRepository(db)

	ist := time.FixedZone("IST", 5*3600+1800)
	rows := newMockRows([][]any{
		{26.79, 82.19, "Ram Path", time.Date(2024, 1, 8, 11, 30, 0, 0, ist), 14.0, 180.0, nil},
		{26.80, 82.20, "Naya Ghat", time.Date(2024, 1, 9, 6, 0, 0, 0, time.UTC), nil, 160.0, 2.5},
	})
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Ram Path", got[0].Location)
	assert.Equal(t, time.Date(2024, 1, 8, 6, 0, 0, 0, time.UTC), got[0].Time)
	assert.Equal(t, 14.0, got[0].Values[types.FieldTemperature])
	_, hasRain := got[0].Value(types.FieldRainfall)
	assert.False(t, hasRain)

	_, hasTemp := got[1].Value(types.FieldTemperature)
	assert.False(t, hasTemp)
	assert.Equal(t, 2.5, got[1].Values[types.FieldRainfall])
	assert.True(t, rows.closed)
	db.AssertExpectations(t)
}

func TestReadingRepository_LoadRange(t *testing.T) {
	db := new(mockDBTX)
	repo := NewReadingRepository(db)

	from := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), []any{from, to}).
		Return(newMockRows(nil), nil)

	got, err := repo.LoadRange(context.Background(), from, to)
	require.NoError(t, err)
	assert.Empty(t, got)
	db.AssertExpectations(t)
}

func TestReadingRepository_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(db *mockDBTX)
	}{
		{"query fails", func(db *mockDBTX) {
			db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
		}},
		{"scan fails", func(db *mockDBTX) {
			rows := newMockRows([][]any{{1.0}})
			rows.scanErr = errors.New("bad type")
			db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(rows, nil)
		}},
		{"rows error", func(db *mockDBTX) {
			rows := newMockRows(nil)
			rows.errVal = errors.New("conn reset")
			db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(rows, nil)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(mockDBTX)
			tt.setup(db)

			_, err := NewReadingRepository(db).Load(context.Background())
			var appErr *types.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, types.ErrCodeDataUnavailableSource, appErr.Code)
		})
	}
}

func TestReadingRepository_Ping(t *testing.T) {
	db := new(mockDBTX)
	db.On("QueryRow", mock.Anything, `SELECT 1`, mock.Anything).Return(&mockRow{})
	assert.NoError(t, NewReadingRepository(db).Ping(context.Background()))

	failing := new(mockDBTX)
	failing.On("QueryRow", mock.Anything, `SELECT 1`, mock.Anything).Return(&mockRow{scanErr: errors.New("down")})
	assert.Error(t, NewReadingRepository(failing).Ping(context.Background()))
}
