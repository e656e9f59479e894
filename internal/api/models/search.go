package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/weekendfare/weekendfare/internal/fare"
	"github.com/weekendfare/weekendfare/internal/scoring"
	"github.com/weekendfare/weekendfare/internal/search"
)

// SearchRequest is the body of POST /v1/searches.
type SearchRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`

	// EarliestDepart and LatestReturn bound the travel window (YYYY-MM-DD).
	EarliestDepart Date `json:"earliestDepart"`
	LatestReturn   Date `json:"latestReturn"`

	// MinNights and MaxNights bound the trip length.
	MinNights int `json:"minNights"`
	MaxNights int `json:"maxNights"`

	// DepartWeekdays optionally restricts departure days ("thursday", ...).
	DepartWeekdays []string `json:"departWeekdays,omitempty"`

	// Limit optionally caps the ranked result list.
	Limit int `json:"limit,omitempty"`

	// Weights optionally overrides the scoring weights.
	Weights *ScoringWeights `json:"weights,omitempty"`
}

// ScoringWeights overrides the default scoring configuration per search.
type ScoringWeights struct {
	Price           float64 `json:"price"`
	LengthFit       float64 `json:"lengthFit"`
	Weekend         float64 `json:"weekend"`
	StopsPenalty    float64 `json:"stopsPenalty"`
	PreferredNights int     `json:"preferredNights,omitempty"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Validate checks the request and returns field errors for anything invalid.
func (r SearchRequest) Validate() []FieldError {
	var errs []FieldError

	if r.Origin == "" {
		errs = append(errs, FieldError{Field: "origin", Message: "required", Code: "required"})
	}
	if r.Destination == "" {
		errs = append(errs, FieldError{Field: "destination", Message: "required", Code: "required"})
	}
	if strings.EqualFold(r.Origin, r.Destination) && r.Origin != "" {
		errs = append(errs, FieldError{Field: "destination", Message: "must differ from origin", Code: "invalid"})
	}
	if r.EarliestDepart.Time().IsZero() {
		errs = append(errs, FieldError{Field: "earliestDepart", Message: "required", Code: "required"})
	}
	if r.LatestReturn.Time().IsZero() {
		errs = append(errs, FieldError{Field: "latestReturn", Message: "required", Code: "required"})
	}
	if r.MinNights < 1 {
		errs = append(errs, FieldError{Field: "minNights", Message: "must be at least 1", Code: "invalid"})
	}
	if r.MaxNights < r.MinNights {
		errs = append(errs, FieldError{Field: "maxNights", Message: "must be at least minNights", Code: "invalid"})
	}
	for _, day := range r.DepartWeekdays {
		if _, ok := weekdayNames[strings.ToLower(day)]; !ok {
			errs = append(errs, FieldError{
				Field:   "departWeekdays",
				Message: fmt.Sprintf("unknown weekday %q", day),
				Code:    "invalid",
			})
		}
	}
	if r.Limit < 0 {
		errs = append(errs, FieldError{Field: "limit", Message: "must not be negative", Code: "invalid"})
	}
	return errs
}

// ToSearchRequest converts the validated API request into a service request.
func (r SearchRequest) ToSearchRequest() search.Request {
	window := fare.TravelWindow{
		EarliestDepart: r.EarliestDepart.Time(),
		LatestReturn:   r.LatestReturn.Time(),
		MinNights:      r.MinNights,
		MaxNights:      r.MaxNights,
	}
	for _, day := range r.DepartWeekdays {
		if wd, ok := weekdayNames[strings.ToLower(day)]; ok {
			window.AllowedDepartWeekdays = append(window.AllowedDepartWeekdays, wd)
		}
	}

	req := search.Request{
		Origin:      strings.ToUpper(r.Origin),
		Destination: strings.ToUpper(r.Destination),
		Window:      window,
		Limit:       r.Limit,
	}
	if r.Weights != nil {
		req.Scoring = &scoring.Config{
			PriceWeight:     r.Weights.Price,
			LengthWeight:    r.Weights.LengthFit,
			WeekendWeight:   r.Weights.Weekend,
			StopsWeight:     r.Weights.StopsPenalty,
			PreferredNights: r.Weights.PreferredNights,
		}
	}
	return req
}

// SearchResponse is the representation of a completed search.
type SearchResponse struct {
	ID          string    `json:"id"`
	CreatedAt   Timestamp `json:"createdAt"`
	ExpiresAt   Timestamp `json:"expiresAt"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`

	PairsSearched int   `json:"pairsSearched"`
	QuotesFound   int   `json:"quotesFound"`
	DurationMs    int64 `json:"durationMs"`

	Results  []RankedResult `json:"results"`
	Pareto   []RankedResult `json:"paretoFrontier,omitempty"`
	Failures []FailureEntry `json:"failures,omitempty"`
}

// RankedResult is one entry in the ranked result list.
type RankedResult struct {
	Rank      int                `json:"rank"`
	Score     float64            `json:"score"`
	Breakdown map[string]float64 `json:"breakdown"`

	Depart Date `json:"depart"`
	Return Date `json:"return"`
	Nights int  `json:"nights"`

	Price    Money  `json:"price"`
	Provider string `json:"provider"`

	Outbound   FlightLeg `json:"outbound"`
	Inbound    FlightLeg `json:"inbound"`
	TotalStops int       `json:"totalStops"`

	TravelTimeMinutes        int64 `json:"travelTimeMinutes"`
	TimeAtDestinationMinutes int64 `json:"timeAtDestinationMinutes"`
}

// Money is an amount in minor units with its currency.
type Money struct {
	AmountCents int64  `json:"amountCents"`
	Display     string `json:"display"`
	Currency    string `json:"currency"`
}

// FlightLeg is one direction of a round trip.
type FlightLeg struct {
	Carrier      string    `json:"carrier"`
	FlightNumber string    `json:"flightNumber,omitempty"`
	DepartAt     Timestamp `json:"departAt"`
	ArriveAt     Timestamp `json:"arriveAt"`
	DurationMin  int64     `json:"durationMinutes"`
	Stops        int       `json:"stops"`
}

// FailureEntry reports a date pair whose lookup did not produce quotes.
type FailureEntry struct {
	Depart Date   `json:"depart"`
	Return Date   `json:"return"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// NewSearchResponse builds the API representation of a stored search.
func NewSearchResponse(id string, createdAt, expiresAt time.Time, result *search.Result) SearchResponse {
	resp := SearchResponse{
		ID:            id,
		CreatedAt:     Timestamp(createdAt),
		ExpiresAt:     Timestamp(expiresAt),
		Origin:        result.Origin,
		Destination:   result.Destination,
		PairsSearched: result.PairsSearched,
		QuotesFound:   result.QuotesFound,
		DurationMs:    result.Duration.Milliseconds(),
		Results:       make([]RankedResult, 0, len(result.Ranked)),
	}
	for i, s := range result.Ranked {
		resp.Results = append(resp.Results, newRankedResult(i+1, s))
	}
	for _, s := range result.Pareto {
		resp.Pareto = append(resp.Pareto, newRankedResult(0, s))
	}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, FailureEntry{
			Depart: Date(f.Pair.Depart),
			Return: Date(f.Pair.Return),
			Reason: f.Reason,
			Detail: f.Message,
		})
	}
	return resp
}

// NewRankedResultAt builds the API representation of one scored itinerary at
// the given 1-based rank.
func NewRankedResultAt(rank int, s scoring.ScoredItinerary) RankedResult {
	return newRankedResult(rank, s)
}

func newRankedResult(rank int, s scoring.ScoredItinerary) RankedResult {
	q := s.Quote
	return RankedResult{
		Rank:      rank,
		Score:     s.Score,
		Breakdown: s.Breakdown,
		Depart:    Date(q.Pair.Depart),
		Return:    Date(q.Pair.Return),
		Nights:    q.Pair.Nights(),
		Price: Money{
			AmountCents: q.PriceCents,
			Display:     fmt.Sprintf("%d.%02d", q.PriceCents/100, q.PriceCents%100),
			Currency:    q.Currency,
		},
		Provider:                 q.Provider,
		Outbound:                 newFlightLeg(q.Outbound),
		Inbound:                  newFlightLeg(q.Return),
		TotalStops:               q.TotalStops(),
		TravelTimeMinutes:        int64(q.TotalTravelTime().Minutes()),
		TimeAtDestinationMinutes: int64(q.TimeAtDestination().Minutes()),
	}
}

func newFlightLeg(l fare.Leg) FlightLeg {
	return FlightLeg{
		Carrier:      l.Carrier,
		FlightNumber: l.FlightNumber,
		DepartAt:     Timestamp(l.DepartAt),
		ArriveAt:     Timestamp(l.ArriveAt),
		DurationMin:  int64(l.Duration.Minutes()),
		Stops:        l.Stops,
	}
}
