// Package domain models census block lookups for latitude/longitude pairs.
//
// # Data Source
//
// Lookups go to the FCC Census Block API (https://geo.fcc.gov/api/census/).
// A request carries the pair as query parameters:
//
//	GET /api/census/block/find?format=json&latitude=40.752726&longitude=-73.977229
//
// and the provider answers with a JSON body whose relevant fields are:
//
//	{"status": "OK", "Block": {"FIPS": "360610092001007"}, ...}
//
// # Block Identifiers
//
// FIPS block codes are 15 digits: 2 state, 3 county, 6 tract, 4 block.
// "360610092001007" is state 36 (New York), county 061 (New York County),
// tract 009200, block 1007.
//
// A point with no block (open water, outside the US) comes back with
// status "OK" and a null FIPS, or with an empty Block. Both are recorded as an
// outcome with a nil [Outcome.FIPS] and classified as [ClassEmpty].
//
// # Status Values
//
// The provider's status string is copied into [Outcome.Status] verbatim.
// [StatusOverLimit] is the rate-limit signal; the runner backs off and retries
// the same pair. [StatusException] is synthesized locally for pairs whose
// request or response could not be completed, so every input pair yields
// exactly one outcome and output row i always corresponds to input row i.
package domain
