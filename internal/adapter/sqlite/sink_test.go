package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fcc-block-geocoder/internal/domain"
)

type row struct {
	Row       int
	FIPS      sql.NullString
	Latitude  string
	Longitude string
	Status    string
	Response  sql.NullString
}

func readRows(t *testing.T, path string) []row {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query("SELECT row, fips, latitude, longitude, status, response FROM outcomes ORDER BY row")
	require.NoError(t, err)
	defer rows.Close()

	var out []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.Row, &r.FIPS, &r.Latitude, &r.Longitude, &r.Status, &r.Response))
		out = append(out, r)
	}
	require.NoError(t, rows.Err())
	return out
}

func outcomes() []domain.Outcome {
	fips := "360610092001007"
	return []domain.Outcome{
		{FIPS: &fips, Latitude: "40.752726", Longitude: "-73.977229", Status: domain.StatusOK,
			RawResponse: json.RawMessage(`{"status":"OK"}`)},
		domain.ExceptionOutcome(domain.Coordinate{Latitude: "1", Longitude: "2"}),
	}
}

func TestSink_Write(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "blocks.db")

	require.NoError(t, NewSink(false).Write(context.Background(), dest, outcomes()))

	want := []row{
		{Row: 1, FIPS: sql.NullString{String: "360610092001007", Valid: true}, Latitude: "40.752726", Longitude: "-73.977229", Status: "OK"},
		{Row: 2, Latitude: "1", Longitude: "2", Status: "EXCEPTION"},
	}
	if diff := cmp.Diff(want, readRows(t, dest)); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestSink_Write_IncludeResponse(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "blocks.db")

	require.NoError(t, NewSink(true).Write(context.Background(), dest, outcomes()))

	got := readRows(t, dest)
	require.Len(t, got, 2)
	assert.Equal(t, sql.NullString{String: `{"status":"OK"}`, Valid: true}, got[0].Response)
	assert.False(t, got[1].Response.Valid)
}

func TestSink_Write_ReplacesPreviousContents(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "blocks.db_bak")
	sink := NewSink(false)

	require.NoError(t, sink.Write(context.Background(), dest, outcomes()))
	require.NoError(t, sink.Write(context.Background(), dest, outcomes()[:1]))

	got := readRows(t, dest)
	require.Len(t, got, 1)
	assert.Equal(t, "OK", got[0].Status)
}
