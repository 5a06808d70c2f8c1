package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/couchcryptid/fcc-block-geocoder/internal/domain"
)

// Header columns, in output order.
var (
	baseHeader    = []string{"fips", "latitude", "longitude", "status"}
	verboseHeader = append(append([]string{}, baseHeader...), "response")
)

// Sink writes outcomes as CSV files. It implements domain.Sink.
type Sink struct {
	includeResponse bool
}

// NewSink creates a CSV sink. includeResponse adds a "response" column with
// the raw provider body.
func NewSink(includeResponse bool) *Sink {
	return &Sink{includeResponse: includeResponse}
}

// Write replaces dest with the given outcomes. The file is written next to
// dest and renamed into place, so readers never see a partial file.
func (s *Sink) Write(ctx context.Context, dest string, outcomes []domain.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if err := s.encode(tmp, outcomes); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("replace %s: %w", dest, err)
	}
	return nil
}

func (s *Sink) encode(w io.Writer, outcomes []domain.Outcome) error {
	cw := csv.NewWriter(w)

	header := baseHeader
	if s.includeResponse {
		header = verboseHeader
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(header))
	for i := range outcomes {
		o := &outcomes[i]
		row[0] = o.FIPSOrEmpty()
		row[1] = o.Latitude
		row[2] = o.Longitude
		row[3] = string(o.Status)
		if s.includeResponse {
			row[4] = string(o.RawResponse)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
