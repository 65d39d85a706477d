package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGeometry = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"dname":"A"},"geometry":{"type":"Polygon","coordinates":[[[-1,-1],[1,-1],[1,1],[-1,1],[-1,-1]]]}},
{"type":"Feature","properties":{"dname":"B"},"geometry":{"type":"Polygon","coordinates":[[[9,-1],[11,-1],[11,1],[9,1],[9,-1]]]}}
]}`

const testReadings = `Latitude,Longitude,Location,time,Temperature,AQI
0,0,A,2024-01-10 06:00:00,10,40
0,0,A,2024-01-11 06:00:00,12,44
0,10,B,2024-01-10 06:00:00,20,80
`

func writeFixtures(t *testing.T) (geometry, csv string) {
	t.Helper()
	dir := t.TempDir()
	geometry = filepath.Join(dir, "units.geojson")
	csv = filepath.Join(dir, "readings.csv")
	require.NoError(t, os.WriteFile(geometry, []byte(testGeometry), 0o600))
	require.NoError(t, os.WriteFile(csv, []byte(testReadings), 0o600))
	return geometry, csv
}

type featureCollection struct {
	Features []struct {
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

func TestRun_BuildsMapToStdout(t *testing.T) {
	geometry, csv := writeFixtures(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{
		"--geometry", geometry, "--readings", csv,
		"--param", "temp", "--start", "2024-01-01", "--end", "2024-01-31",
	}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	var fc featureCollection
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &fc))
	require.Len(t, fc.Features, 2)
	assert.Equal(t, 11.0, fc.Features[0].Properties["Temperature"])
	assert.Equal(t, 20.0, fc.Features[1].Properties["Temperature"])
}

func TestRun_WritesOutFile(t *testing.T) {
	geometry, csv := writeFixtures(t)
	out := filepath.Join(t.TempDir(), "aqi.geojson")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{
		"--geometry", geometry, "--readings", csv,
		"--param", "aqi", "--start", "2024-01-01", "--end", "2024-01-31", "--out", out,
	}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Empty(t, stdout.String())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var fc featureCollection
	require.NoError(t, json.Unmarshal(data, &fc))
	require.Len(t, fc.Features, 2)
	assert.Equal(t, 42.0, fc.Features[0].Properties["AQI"])
}

func TestRun_ExitCodes(t *testing.T) {
	geometry, csv := writeFixtures(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"help", []string{"--help"}, exitOK},
		{"unknown flag", []string{"--nope"}, exitUsage},
		{"stray argument", []string{"--geometry", geometry, "--readings", csv, "extra"}, exitUsage},
		{"import without sqlite", []string{"--import", csv}, exitUsage},
		{"rainfall", []string{"--geometry", geometry, "--readings", csv, "--param", "rainfall"}, exitNotReady},
		{"bad param", []string{"--geometry", geometry, "--readings", csv, "--param", "humidity"}, exitFailure},
		{"bad power", []string{"--geometry", geometry, "--readings", csv, "--power", "abc", "--start", "2024-01-01", "--end", "2024-01-31"}, exitFailure},
		{"empty window", []string{"--geometry", geometry, "--readings", csv, "--start", "2023-01-01", "--end", "2023-01-31"}, exitFailure},
		{"missing readings file", []string{"--geometry", geometry, "--readings", csv + ".absent"}, exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if got := run(context.Background(), tt.args, &stdout, &stderr); got != tt.want {
				t.Errorf("run() = %d, want %d (stderr: %s)", got, tt.want, stderr.String())
			}
		})
	}
}

func TestRun_MissingGeometry(t *testing.T) {
	t.Setenv("GEOMETRY_PATH", "")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--readings", "x.csv"}, &stdout, &stderr)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), "--geometry")
}

func TestRun_Fields(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--fields"}, &stdout, &stderr)
	require.Equal(t, exitOK, code)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "temp")
	assert.Contains(t, lines[2], "not implemented")
}

func TestRun_ImportThenBuildFromSQLite(t *testing.T) {
	geometry, csv := writeFixtures(t)
	dbPath := filepath.Join(t.TempDir(), "readings.db")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--sqlite", dbPath, "--import", csv}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	stdout.Reset()
	code = run(context.Background(), []string{
		"--geometry", geometry, "--sqlite", dbPath,
		"--param", "temp", "--start", "2024-01-01", "--end", "2024-01-31",
	}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	var fc featureCollection
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &fc))
	require.Len(t, fc.Features, 2)
	assert.Equal(t, 11.0, fc.Features[0].Properties["Temperature"])
}
