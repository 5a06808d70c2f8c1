package domain

import "context"

// Geocoder resolves a single coordinate to an Outcome. Implementations do not
// retry; a returned error means the lookup could not be completed.
type Geocoder interface {
	Lookup(ctx context.Context, c Coordinate, verbose bool) (Outcome, error)
}

// Sink persists a full set of outcomes to dest, replacing anything already there.
type Sink interface {
	Write(ctx context.Context, dest string, outcomes []Outcome) error
}

// Publisher streams completed outcomes to a downstream consumer.
type Publisher interface {
	Publish(ctx context.Context, outcomes []Outcome) error
}
