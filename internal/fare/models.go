// Package fare defines the round-trip fare domain: travel windows, candidate
// date pairs and the priced itineraries returned by external fare providers.
package fare

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for fare operations.
var (
	// ErrInvalidWindow indicates the travel window is malformed (bounds or night counts).
	ErrInvalidWindow = errors.New("invalid travel window")
	// ErrWindowTooLarge indicates the window expands to more date pairs than allowed.
	ErrWindowTooLarge = errors.New("travel window expands to too many date pairs")
	// ErrProviderUnavailable indicates the fare provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("fare provider unavailable")
	// ErrRateLimitExceeded indicates the provider API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidAirport indicates an airport code is not a valid IATA code.
	ErrInvalidAirport = errors.New("invalid airport code")
)

// Provider defines the interface for external fare data sources.
//
// A provider is expected to be slow (seconds per call) and unreliable per
// individual date pair. An empty result is not an error: it means no
// itineraries exist for that pair.
type Provider interface {
	// Lookup returns priced round-trip itineraries for one date pair.
	Lookup(ctx context.Context, origin, destination string, pair DatePair) ([]Quote, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// DatePair is a candidate (depart, return) date combination. Dates are civil
// dates normalized to midnight UTC. Immutable once created.
type DatePair struct {
	Depart time.Time
	Return time.Time
}

// Nights returns the number of nights between depart and return.
func (p DatePair) Nights() int {
	return int(p.Return.Sub(p.Depart) / (24 * time.Hour))
}

// String renders the pair as "2026-03-05..2026-03-08".
func (p DatePair) String() string {
	return p.Depart.Format(time.DateOnly) + ".." + p.Return.Format(time.DateOnly)
}

// TravelWindow bounds the search space for one request.
type TravelWindow struct {
	// EarliestDepart is the first allowed departure date.
	EarliestDepart time.Time

	// LatestReturn is the last allowed return date.
	LatestReturn time.Time

	// MinNights and MaxNights bound the trip length.
	MinNights int
	MaxNights int

	// AllowedDepartWeekdays restricts departure days. Empty means any weekday.
	AllowedDepartWeekdays []time.Weekday
}

// PreferredNights returns the midpoint of the night-count bounds, the length
// the scorer rewards when no explicit preference is configured.
func (w TravelWindow) PreferredNights() float64 {
	return float64(w.MinNights+w.MaxNights) / 2
}

// Leg is one direction of a round trip.
type Leg struct {
	Carrier      string
	CarrierCode  string
	FlightNumber string
	DepartAt     time.Time
	ArriveAt     time.Time
	Duration     time.Duration
	Stops        int
}

// Quote is a priced round-trip itinerary for a specific date pair.
// Quotes are never mutated after creation.
type Quote struct {
	Pair       DatePair
	Outbound   Leg
	Return     Leg
	PriceCents int64
	Currency   string
	Provider   string
}

// TotalStops returns the number of connections across both legs.
func (q Quote) TotalStops() int {
	return q.Outbound.Stops + q.Return.Stops
}

// TotalTravelTime returns the combined in-transit duration of both legs.
func (q Quote) TotalTravelTime() time.Duration {
	return q.Outbound.Duration + q.Return.Duration
}

// TimeAtDestination returns the time between outbound arrival and return
// departure. Zero when leg times are unknown.
func (q Quote) TimeAtDestination() time.Duration {
	if q.Outbound.ArriveAt.IsZero() || q.Return.DepartAt.IsZero() {
		return 0
	}
	d := q.Return.DepartAt.Sub(q.Outbound.ArriveAt)
	if d < 0 {
		return 0
	}
	return d
}

// Error provides detailed error information from a fare provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the lookup can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
