package domain

import "encoding/json"

// Status is the provider's status string for a lookup, copied verbatim.
type Status string

const (
	StatusOK        Status = "OK"
	StatusOverLimit Status = "OVER_QUERY_LIMIT"

	// StatusException is never sent by the provider. It marks a pair whose
	// lookup failed in transport or parsing.
	StatusException Status = "EXCEPTION"
)

// Class buckets an outcome for logging and metric labels.
type Class string

const (
	ClassOK        Class = "ok"
	ClassEmpty     Class = "empty"
	ClassOverLimit Class = "over_limit"
	ClassException Class = "exception"
	ClassError     Class = "error"
)

// Coordinate is one input pair. Values are kept as the tokens read from the
// input so they can be echoed back unchanged.
type Coordinate struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// Outcome is the result of geocoding one Coordinate.
type Outcome struct {
	FIPS      *string `json:"fips"`
	Latitude  string  `json:"latitude"`
	Longitude string  `json:"longitude"`
	Status    Status  `json:"status"`

	// RawResponse is the full provider body, set only in verbose mode.
	RawResponse json.RawMessage `json:"response,omitempty"`
}

// ExceptionOutcome is the placeholder recorded for a pair whose lookup failed.
func ExceptionOutcome(c Coordinate) Outcome {
	return Outcome{
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		Status:    StatusException,
	}
}

// Coordinate returns the input pair this outcome was produced for.
func (o Outcome) Coordinate() Coordinate {
	return Coordinate{Latitude: o.Latitude, Longitude: o.Longitude}
}

// FIPSOrEmpty returns the block code, or "" when there was no match.
func (o Outcome) FIPSOrEmpty() string {
	if o.FIPS == nil {
		return ""
	}
	return *o.FIPS
}

// Class reports which bucket the outcome falls into.
func (o Outcome) Class() Class {
	switch o.Status {
	case StatusOK:
		if o.FIPS == nil || *o.FIPS == "" {
			return ClassEmpty
		}
		return ClassOK
	case StatusOverLimit:
		return ClassOverLimit
	case StatusException:
		return ClassException
	default:
		return ClassError
	}
}
