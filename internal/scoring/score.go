// Package scoring ranks priced itineraries by a weighted optimality score
// balancing price, trip-length fit, long-weekend alignment and stop count.
package scoring

import (
	"time"

	"github.com/weekendfare/weekendfare/internal/fare"
)

// Default scoring weights. All weights are overridable via Config.
const (
	// DefaultPriceWeight weighs the inverse-normalized batch price.
	DefaultPriceWeight = 0.45
	// DefaultLengthWeight weighs how close the trip length is to the preferred length.
	DefaultLengthWeight = 0.20
	// DefaultWeekendWeight weighs long-weekend alignment of depart/return days.
	DefaultWeekendWeight = 0.25
	// DefaultStopsWeight is the penalty applied per connection on either leg.
	DefaultStopsWeight = 0.10

	// neutralPriceFactor is used when the batch has no price spread to
	// normalize against (single quote, or all quotes at the same price).
	neutralPriceFactor = 0.5
)

// Breakdown factor names.
const (
	FactorPrice     = "price"
	FactorLengthFit = "lengthFit"
	FactorWeekend   = "weekend"
	FactorStops     = "stops"
)

// Config holds the scoring weights and weekday preferences.
type Config struct {
	// PriceWeight scales the inverse-normalized price factor.
	PriceWeight float64

	// LengthWeight scales the trip-length fit factor.
	LengthWeight float64

	// WeekendWeight scales the long-weekend alignment factor.
	WeekendWeight float64

	// StopsWeight is subtracted once per connection on either leg.
	StopsWeight float64

	// PreferredNights overrides the window midpoint as the ideal trip length.
	// Zero means use the midpoint of the window's night bounds.
	PreferredNights int

	// DepartWeekdays are the depart days rewarded by the weekend factor.
	// Empty means Thursday and Friday.
	DepartWeekdays []time.Weekday

	// ReturnWeekdays are the return days rewarded by the weekend factor.
	// Empty means Sunday and Monday.
	ReturnWeekdays []time.Weekday
}

// DefaultConfig returns the documented default scoring configuration.
func DefaultConfig() Config {
	return Config{
		PriceWeight:    DefaultPriceWeight,
		LengthWeight:   DefaultLengthWeight,
		WeekendWeight:  DefaultWeekendWeight,
		StopsWeight:    DefaultStopsWeight,
		DepartWeekdays: []time.Weekday{time.Thursday, time.Friday},
		ReturnWeekdays: []time.Weekday{time.Sunday, time.Monday},
	}
}

// withDefaults fills zero-value weights and weekday sets.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PriceWeight == 0 {
		c.PriceWeight = def.PriceWeight
	}
	if c.LengthWeight == 0 {
		c.LengthWeight = def.LengthWeight
	}
	if c.WeekendWeight == 0 {
		c.WeekendWeight = def.WeekendWeight
	}
	if c.StopsWeight == 0 {
		c.StopsWeight = def.StopsWeight
	}
	if len(c.DepartWeekdays) == 0 {
		c.DepartWeekdays = def.DepartWeekdays
	}
	if len(c.ReturnWeekdays) == 0 {
		c.ReturnWeekdays = def.ReturnWeekdays
	}
	return c
}

// ScoredItinerary is a quote together with its optimality score and the
// per-factor contributions that produced it. Immutable.
type ScoredItinerary struct {
	Quote     fare.Quote
	Score     float64
	Breakdown map[string]float64
}

// BatchStats holds the per-batch aggregates required to normalize individual
// scores. It is produced by a first reduction pass over the whole batch so
// the second pass stays purely functional.
type BatchStats struct {
	MinPriceCents int64
	MaxPriceCents int64
	Count         int
}

// CollectBatchStats performs the first scoring pass over a batch of quotes.
func CollectBatchStats(quotes []fare.Quote) BatchStats {
	stats := BatchStats{Count: len(quotes)}
	for i, q := range quotes {
		if i == 0 || q.PriceCents < stats.MinPriceCents {
			stats.MinPriceCents = q.PriceCents
		}
		if i == 0 || q.PriceCents > stats.MaxPriceCents {
			stats.MaxPriceCents = q.PriceCents
		}
	}
	return stats
}

// ScoreQuote computes the optimality score for a single quote. It is a pure
// function of the quote, the window, the batch stats and the config:
//
//	score = W_price*priceFactor + W_length*lengthFit + W_weekend*weekend - W_stops*stops
func ScoreQuote(q fare.Quote, w fare.TravelWindow, stats BatchStats, cfg Config) ScoredItinerary {
	cfg = cfg.withDefaults()

	price := priceFactor(q.PriceCents, stats)
	length := lengthFitFactor(q.Pair, w, cfg)
	weekend := weekendFactor(q.Pair, cfg)
	stops := float64(q.TotalStops())

	breakdown := map[string]float64{
		FactorPrice:     cfg.PriceWeight * price,
		FactorLengthFit: cfg.LengthWeight * length,
		FactorWeekend:   cfg.WeekendWeight * weekend,
		FactorStops:     -cfg.StopsWeight * stops,
	}

	score := breakdown[FactorPrice] + breakdown[FactorLengthFit] +
		breakdown[FactorWeekend] + breakdown[FactorStops]

	return ScoredItinerary{Quote: q, Score: score, Breakdown: breakdown}
}

// ScoreBatch runs both scoring passes over a batch: first collecting batch
// stats, then scoring each quote. The result order mirrors the input order;
// scores are independent of that order.
func ScoreBatch(quotes []fare.Quote, w fare.TravelWindow, cfg Config) []ScoredItinerary {
	stats := CollectBatchStats(quotes)
	scored := make([]ScoredItinerary, 0, len(quotes))
	for _, q := range quotes {
		scored = append(scored, ScoreQuote(q, w, stats, cfg))
	}
	return scored
}

// priceFactor inverse-normalizes the price against the batch spread: the
// cheapest quote gets 1, the most expensive 0. A batch without spread gets
// the neutral factor.
func priceFactor(priceCents int64, stats BatchStats) float64 {
	spread := stats.MaxPriceCents - stats.MinPriceCents
	if stats.Count <= 1 || spread == 0 {
		return neutralPriceFactor
	}
	return float64(stats.MaxPriceCents-priceCents) / float64(spread)
}

// lengthFitFactor rewards trip lengths close to the preferred length,
// decaying linearly over the window's night span.
func lengthFitFactor(p fare.DatePair, w fare.TravelWindow, cfg Config) float64 {
	preferred := w.PreferredNights()
	if cfg.PreferredNights > 0 {
		preferred = float64(cfg.PreferredNights)
	}

	span := float64(w.MaxNights - w.MinNights)
	if span < 1 {
		span = 1
	}

	deviation := float64(p.Nights()) - preferred
	if deviation < 0 {
		deviation = -deviation
	}

	fit := 1 - deviation/span
	if fit < 0 {
		return 0
	}
	return fit
}

// weekendFactor gives half credit for departing on a preferred weekday and
// half for returning on one, modeling "long weekend" alignment.
func weekendFactor(p fare.DatePair, cfg Config) float64 {
	factor := 0.0
	if containsWeekday(cfg.DepartWeekdays, p.Depart.Weekday()) {
		factor += 0.5
	}
	if containsWeekday(cfg.ReturnWeekdays, p.Return.Weekday()) {
		factor += 0.5
	}
	return factor
}

func containsWeekday(days []time.Weekday, day time.Weekday) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
