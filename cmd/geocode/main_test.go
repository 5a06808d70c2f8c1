package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fcc-block-geocoder/internal/adapter/csvfile"
	"github.com/couchcryptid/fcc-block-geocoder/internal/adapter/sqlite"
	"github.com/couchcryptid/fcc-block-geocoder/internal/config"
	"github.com/couchcryptid/fcc-block-geocoder/internal/domain"
)

// fccServer answers every lookup with block "F<latitude>", except the
// preflight point, which gets preflightFIPS.
func fccServer(t *testing.T, preflightFIPS string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lat := r.URL.Query().Get("latitude")
		fips := "F" + lat
		if lat == "40.752726" {
			fips = preflightFIPS
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"OK","Block":{"FIPS":%q}}`, fips)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "points.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,lat,lng\na,1,-1\nb,2,-2\nc,3,-3\n"), 0o644))
	return path
}

func TestAppLoad_InstallsDefaultLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "text")

	a := &app{}
	require.NoError(t, a.load())

	assert.Same(t, a.logger, slog.Default())
	assert.False(t, a.logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, a.logger.Enabled(context.Background(), slog.LevelWarn))
}

func TestAppLoad_InvalidConfig(t *testing.T) {
	t.Setenv("BACKOFF_MINUTES", "never")
	require.Error(t, (&app{}).load())
}

func TestApplyRunFlags_OverridesEnv(t *testing.T) {
	cfg := &config.Config{
		InputPath:      "env.csv",
		OutputPath:     "env-out.csv",
		LatitudeColumn: "Latitude",
		Backoff:        30 * time.Minute,
	}
	cmd := newRunCmd(&app{})
	require.NoError(t, cmd.Flags().Parse([]string{
		"--input", "flag.csv",
		"--backoff-minutes", "5",
		"--max-backoff-retries", "3",
		"--format", "sqlite",
		"--full-response",
	}))

	require.NoError(t, applyRunFlags(cmd, cfg))
	assert.Equal(t, "flag.csv", cfg.InputPath)
	assert.Equal(t, "env-out.csv", cfg.OutputPath)
	assert.Equal(t, "Latitude", cfg.LatitudeColumn)
	assert.Equal(t, 5*time.Minute, cfg.Backoff)
	assert.Equal(t, 3, cfg.MaxBackoffRetries)
	assert.Equal(t, config.FormatSQLite, cfg.OutputFormat)
	assert.True(t, cfg.IncludeFullResponse)
}

func TestApplyRunFlags_Invalid(t *testing.T) {
	tests := [][]string{
		{"--backoff-minutes", "0"},
		{"--max-backoff-retries", "-1"},
		{"--format", "parquet"},
	}
	for _, args := range tests {
		cmd := newRunCmd(&app{})
		require.NoError(t, cmd.Flags().Parse(args))
		assert.Error(t, applyRunFlags(cmd, &config.Config{}), args[0])
	}
}

func TestNewSink_SelectsFormat(t *testing.T) {
	assert.IsType(t, &csvfile.Sink{}, newSink(&config.Config{OutputPath: "blocks.csv"}))
	assert.IsType(t, &sqlite.Sink{}, newSink(&config.Config{OutputPath: "blocks.db"}))
	assert.IsType(t, &sqlite.Sink{}, newSink(&config.Config{OutputPath: "blocks.csv", OutputFormat: config.FormatSQLite}))
}

func TestRunCommand_CSV(t *testing.T) {
	srv := fccServer(t, "360610092001007")
	t.Setenv("FCC_BASE_URL", srv.URL)
	in := writeInput(t)
	outPath := filepath.Join(t.TempDir(), "blocks.csv")

	stdout, err := execute(t, "run", "--input", in, "--output", outPath, "--lat-column", "lat", "--lon-column", "lng")
	require.NoError(t, err)
	assert.Contains(t, stdout, "3 rows")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "fips,latitude,longitude,status\n"+
		"F1,1,-1,OK\n"+
		"F2,2,-2,OK\n"+
		"F3,3,-3,OK\n", string(data))
}

func TestRunCommand_SQLite(t *testing.T) {
	srv := fccServer(t, "360610092001007")
	t.Setenv("FCC_BASE_URL", srv.URL)
	t.Setenv("LAT_COLUMN", "lat")
	t.Setenv("LON_COLUMN", "lng")
	in := writeInput(t)
	outPath := filepath.Join(t.TempDir(), "blocks.db")

	_, err := execute(t, "run", "--input", in, "--output", outPath)
	require.NoError(t, err)

	db, err := sql.Open("sqlite", outPath)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM outcomes WHERE status = 'OK'").Scan(&n))
	assert.Equal(t, 3, n)
}

func TestRunCommand_MissingColumn(t *testing.T) {
	srv := fccServer(t, "360610092001007")
	t.Setenv("FCC_BASE_URL", srv.URL)
	in := writeInput(t)
	outPath := filepath.Join(t.TempDir(), "blocks.csv")

	_, err := execute(t, "run", "--input", in, "--output", outPath)
	require.ErrorIs(t, err, domain.ErrMissingColumn)
	assert.NoFileExists(t, outPath)
}

func TestRunCommand_RequiresPaths(t *testing.T) {
	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEOCODE_INPUT")
}

func TestCheckCommand(t *testing.T) {
	srv := fccServer(t, "360610092001007")
	t.Setenv("FCC_BASE_URL", srv.URL)

	stdout, err := execute(t, "check")
	require.NoError(t, err)
	assert.Contains(t, stdout, "preflight passed")
}

func TestCheckCommand_WrongBlock(t *testing.T) {
	srv := fccServer(t, "000000000000000")
	t.Setenv("FCC_BASE_URL", srv.URL)

	_, err := execute(t, "check")
	require.ErrorIs(t, err, domain.ErrPreflight)
}

func TestRunCommand_PreflightFailureWritesNothing(t *testing.T) {
	srv := fccServer(t, "000000000000000")
	t.Setenv("FCC_BASE_URL", srv.URL)
	in := writeInput(t)
	dir := t.TempDir()
	outPath := filepath.Join(dir, "blocks.csv")

	_, err := execute(t, "run", "--input", in, "--output", outPath, "--lat-column", "lat", "--lon-column", "lng")
	require.ErrorIs(t, err, domain.ErrPreflight)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
