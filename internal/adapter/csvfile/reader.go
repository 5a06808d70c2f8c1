// Package csvfile reads coordinate pairs from CSV input and writes outcomes as CSV.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/fcc-block-geocoder/internal/domain"
)

// ReadCoordinatesFile opens path and reads it with ReadCoordinates.
func ReadCoordinatesFile(path, latColumn, lonColumn string) ([]domain.Coordinate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	coords, err := ReadCoordinates(f, latColumn, lonColumn)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return coords, nil
}

// ReadCoordinates reads the named latitude and longitude columns from a CSV
// with a header row. Values are trimmed but otherwise passed through as-is.
// Other columns are ignored.
func ReadCoordinates(r io.Reader, latColumn, lonColumn string) ([]domain.Coordinate, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow ragged rows; the two columns are checked per row
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: input has no header row", domain.ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	latIdx, err := columnIndex(header, latColumn)
	if err != nil {
		return nil, err
	}
	lonIdx, err := columnIndex(header, lonColumn)
	if err != nil {
		return nil, err
	}

	var coords []domain.Coordinate
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if latIdx >= len(rec) || lonIdx >= len(rec) {
			return nil, fmt.Errorf("line %d: expected at least %d fields, got %d", line, max(latIdx, lonIdx)+1, len(rec))
		}
		coords = append(coords, domain.Coordinate{
			Latitude:  strings.TrimSpace(rec[latIdx]),
			Longitude: strings.TrimSpace(rec[lonIdx]),
		})
	}
	return coords, nil
}

func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		// Spreadsheet exports often prefix the first header with a UTF-8 BOM.
		h = strings.TrimPrefix(h, "\ufeff")
		if strings.TrimSpace(h) == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", domain.ErrMissingColumn, name)
}
