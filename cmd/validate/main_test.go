package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fcc-block-geocoder/internal/adapter/csvfile"
	"github.com/couchcryptid/fcc-block-geocoder/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const input = "Latitude,Longitude\n40.752726,-73.977229\n30.0,-45.0\n1,2\n"

func TestRun_ValidOutputFromSink(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "points.csv", input)
	out := filepath.Join(dir, "blocks.csv")

	fips := "360610092001007"
	outcomes := []domain.Outcome{
		{FIPS: &fips, Latitude: "40.752726", Longitude: "-73.977229", Status: domain.StatusOK},
		{Latitude: "30.0", Longitude: "-45.0", Status: domain.StatusOK},
		domain.ExceptionOutcome(domain.Coordinate{Latitude: "1", Longitude: "2"}),
	}
	require.NoError(t, csvfile.NewSink(false).Write(context.Background(), out, outcomes))

	var buf bytes.Buffer
	code := run(in, out, "Latitude", "Longitude", &buf)
	assert.Equal(t, 0, code, buf.String())
	assert.Contains(t, buf.String(), "All validations passed.")
	assert.Contains(t, buf.String(), "OK (no block)")
	assert.Contains(t, buf.String(), "EXCEPTION")
}

func TestRun_DetectsProblems(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "points.csv", input)
	out := writeFile(t, dir, "blocks.csv", "fips,latitude,longitude,status\n"+
		"3606100920,40.752726,-73.977229,OK\n"+
		",1,2,OK\n")

	var buf bytes.Buffer
	code := run(in, out, "Latitude", "Longitude", &buf)
	assert.Equal(t, 1, code)

	report := buf.String()
	assert.Contains(t, report, "output has 2 rows, input has 3 pairs")
	assert.Contains(t, report, "input row 2 is (30.0, -45.0)")
	assert.Contains(t, report, "not a 15-digit block code")
	assert.Contains(t, report, "Validation FAILED.")
}

func TestLoadOutput_MissingColumn(t *testing.T) {
	path := writeFile(t, t.TempDir(), "blocks.csv", "fips,latitude,longitude\n1,2,3\n")
	_, err := loadOutput(path)
	require.ErrorIs(t, err, domain.ErrMissingColumn)
}

func TestValidateFields_Response(t *testing.T) {
	p := validateFields([]outputRow{
		{line: 2, status: "OK", hasResp: true, response: `{"status":"OK"}`},
		{line: 3, status: "OK", hasResp: true, response: `{broken`},
		{line: 4, status: "EXCEPTION", fips: "360610092001007"},
	})
	require.Len(t, p.errors, 2)
	assert.Contains(t, p.errors[0], "line 3")
	assert.Contains(t, p.errors[1], "EXCEPTION row")
}
