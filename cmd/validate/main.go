// Command validate checks a block-geocode output CSV against the input it was
// produced from: one row per input pair, in order, echoing the coordinates,
// with well-formed block codes and statuses.
//
// Usage:
//
//	go run ./cmd/validate -input data/mock/points.csv -output data/mock/blocks.csv
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/couchcryptid/fcc-block-geocoder/internal/adapter/csvfile"
	"github.com/couchcryptid/fcc-block-geocoder/internal/domain"
)

// maxErrorsShown caps the detail printed per failing phase.
const maxErrorsShown = 20

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	input := flag.String("input", "", "input CSV given to block-geocode")
	output := flag.String("output", "", "output CSV written by block-geocode")
	latCol := flag.String("lat-column", "Latitude", "latitude column name in the input")
	lonCol := flag.String("lon-column", "Longitude", "longitude column name in the input")
	flag.Parse()

	if *input == "" || *output == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*input, *output, *latCol, *lonCol, os.Stdout))
}

func run(inputPath, outputPath, latCol, lonCol string, w io.Writer) int {
	fmt.Fprintln(w, "=== Block Geocode Output Validation ===")

	coords, err := csvfile.ReadCoordinatesFile(inputPath, latCol, lonCol)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load input: %v\n", err)
		return 1
	}

	rows, err := loadOutput(outputPath)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load output: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateRowCount(coords, rows),
		validateCoordinateEcho(coords, rows),
		validateFields(rows),
	}

	fmt.Fprintln(w)
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-32s %s\n", p.name, status)
	}

	fmt.Fprintf(w, "\nRows: %d input, %d output\n", len(coords), len(rows))
	printStatusCounts(w, rows)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxErrorsShown {
				fmt.Fprintf(w, "  ... %d more\n", len(p.errors)-maxErrorsShown)
				break
			}
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

// ── Data loading ──

type outputRow struct {
	line      int
	fips      string
	latitude  string
	longitude string
	status    string
	response  string
	hasResp   bool
}

func loadOutput(path string) ([]outputRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	idx := make(map[string]int, len(all[0]))
	for i, h := range all[0] {
		idx[h] = i
	}
	for _, col := range []string{"fips", "latitude", "longitude", "status"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrMissingColumn, col)
		}
	}
	respIdx, hasResp := idx["response"]

	rows := make([]outputRow, 0, len(all)-1)
	for i, rec := range all[1:] {
		r := outputRow{
			line:      i + 2,
			fips:      rec[idx["fips"]],
			latitude:  rec[idx["latitude"]],
			longitude: rec[idx["longitude"]],
			status:    rec[idx["status"]],
			hasResp:   hasResp,
		}
		if hasResp {
			r.response = rec[respIdx]
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// ── Phases ──

func validateRowCount(coords []domain.Coordinate, rows []outputRow) *phase {
	p := &phase{name: "Row count"}
	if len(rows) != len(coords) {
		p.errorf("output has %d rows, input has %d pairs", len(rows), len(coords))
	}
	return p
}

func validateCoordinateEcho(coords []domain.Coordinate, rows []outputRow) *phase {
	p := &phase{name: "Coordinates echoed in order"}
	for i := range min(len(coords), len(rows)) {
		c, r := coords[i], rows[i]
		if r.latitude != c.Latitude || r.longitude != c.Longitude {
			p.errorf("line %d: got (%s, %s), input row %d is (%s, %s)",
				r.line, r.latitude, r.longitude, i+1, c.Latitude, c.Longitude)
		}
	}
	return p
}

func validateFields(rows []outputRow) *phase {
	p := &phase{name: "Field shape"}
	for _, r := range rows {
		if r.status == "" {
			p.errorf("line %d: empty status", r.line)
		}
		if r.fips != "" && !isBlockFIPS(r.fips) {
			p.errorf("line %d: fips %q is not a 15-digit block code", r.line, r.fips)
		}
		if r.status == string(domain.StatusException) && r.fips != "" {
			p.errorf("line %d: EXCEPTION row carries fips %q", r.line, r.fips)
		}
		if r.hasResp && r.response != "" && !json.Valid([]byte(r.response)) {
			p.errorf("line %d: response is not valid JSON", r.line)
		}
	}
	return p
}

func isBlockFIPS(s string) bool {
	if len(s) != 15 {
		return false
	}
	return strings.Trim(s, "0123456789") == ""
}

func printStatusCounts(w io.Writer, rows []outputRow) {
	counts := map[string]int{}
	for _, r := range rows {
		switch {
		case r.status == string(domain.StatusOK) && r.fips == "":
			counts["OK (no block)"]++
		default:
			counts[r.status]++
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w, "Statuses:")
	for _, k := range keys {
		fmt.Fprintf(w, "  %-24s %d\n", k, counts[k])
	}
}
