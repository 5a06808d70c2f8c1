// Command genmock writes a synthetic input CSV of coordinate pairs for
// exercising block-geocode. Points fall inside the continental US bounding
// box, with an optional share placed offshore where no census block exists.
//
// Usage:
//
//	go run ./cmd/genmock -n 1000 -out data/mock/points.csv -seed 42
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/fcc-block-geocoder/internal/domain"
	"github.com/couchcryptid/fcc-block-geocoder/internal/pipeline"
)

// Continental US bounding box.
const (
	minLat, maxLat = 24.5, 49.0
	minLon, maxLon = -124.8, -66.9
)

// Open Atlantic, east of the seaboard.
var offshore = struct{ minLat, maxLat, minLon, maxLon float64 }{30.0, 40.0, -65.0, -50.0}

type options struct {
	n        int
	seed     uint64
	offshore float64
	known    bool
	latCol   string
	lonCol   string
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var opts options
	out := flag.String("out", "", "output path for the input CSV")
	flag.IntVar(&opts.n, "n", 1000, "number of coordinate pairs")
	flag.Uint64Var(&opts.seed, "seed", 1, "random seed")
	flag.Float64Var(&opts.offshore, "offshore", 0.05, "fraction of pairs placed offshore (no block)")
	flag.BoolVar(&opts.known, "known", true, "start with the preflight point")
	flag.StringVar(&opts.latCol, "lat-column", "Latitude", "latitude column name")
	flag.StringVar(&opts.lonCol, "lon-column", "Longitude", "longitude column name")
	flag.Parse()

	if *out == "" || opts.n < 0 || opts.offshore < 0 || opts.offshore > 1 {
		flag.Usage()
		return fmt.Errorf("missing or invalid flags: -out is required, -n >= 0, 0 <= -offshore <= 1")
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	defer f.Close()

	coords := generate(opts)
	if err := writeCSV(f, opts, coords); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	log.Printf("wrote %d pairs to %s", len(coords), *out)
	return nil
}

// generate returns opts.n pairs, deterministic for a given seed.
func generate(opts options) []domain.Coordinate {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	coords := make([]domain.Coordinate, 0, opts.n)

	if opts.known && opts.n > 0 {
		coords = append(coords, pipeline.DefaultPreflight.Coordinate)
	}
	for len(coords) < opts.n {
		var lat, lon float64
		if rng.Float64() < opts.offshore {
			lat = between(rng, offshore.minLat, offshore.maxLat)
			lon = between(rng, offshore.minLon, offshore.maxLon)
		} else {
			lat = between(rng, minLat, maxLat)
			lon = between(rng, minLon, maxLon)
		}
		coords = append(coords, domain.Coordinate{
			Latitude:  strconv.FormatFloat(lat, 'f', 6, 64),
			Longitude: strconv.FormatFloat(lon, 'f', 6, 64),
		})
	}
	return coords
}

func between(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func writeCSV(w io.Writer, opts options, coords []domain.Coordinate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", opts.latCol, opts.lonCol}); err != nil {
		return err
	}
	for i, c := range coords {
		if err := cw.Write([]string{strconv.Itoa(i + 1), c.Latitude, c.Longitude}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
