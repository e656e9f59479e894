package scoring

import (
	"sort"
	"strconv"
)

// DefaultResultLimit is the default size of the ranked result set.
const DefaultResultLimit = 25

// Aggregate deduplicates, sorts and truncates scored itineraries into the
// final ranking.
//
// Duplicates (same date pair, carriers and leg departure times) keep only the
// lowest-priced entry. Ordering is score descending, ties broken by price
// ascending then total travel time ascending; the comparison falls through to
// the itinerary key so identical input sets always produce identical output,
// regardless of input order. Aggregating an already aggregated set with the
// same limit returns the identical set.
func Aggregate(scored []ScoredItinerary, limit int) []ScoredItinerary {
	if limit <= 0 {
		limit = DefaultResultLimit
	}

	// Dedup, keeping the cheapest entry per itinerary key.
	best := make(map[string]ScoredItinerary, len(scored))
	for _, s := range scored {
		key := itineraryKey(s)
		if prev, ok := best[key]; !ok || s.Quote.PriceCents < prev.Quote.PriceCents {
			best[key] = s
		}
	}

	result := make([]ScoredItinerary, 0, len(best))
	for _, s := range best {
		result = append(result, s)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Quote.PriceCents != b.Quote.PriceCents {
			return a.Quote.PriceCents < b.Quote.PriceCents
		}
		if a.Quote.TotalTravelTime() != b.Quote.TotalTravelTime() {
			return a.Quote.TotalTravelTime() < b.Quote.TotalTravelTime()
		}
		return itineraryKey(a) < itineraryKey(b)
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

// ParetoFrontier returns the itineraries not dominated on (price, time at
// destination): an entry is kept when no cheaper entry offers at least as
// much time at the destination. The frontier is ordered by ascending price.
func ParetoFrontier(ranked []ScoredItinerary) []ScoredItinerary {
	if len(ranked) == 0 {
		return nil
	}

	byPrice := make([]ScoredItinerary, len(ranked))
	copy(byPrice, ranked)
	sort.Slice(byPrice, func(i, j int) bool {
		a, b := byPrice[i], byPrice[j]
		if a.Quote.PriceCents != b.Quote.PriceCents {
			return a.Quote.PriceCents < b.Quote.PriceCents
		}
		return a.Quote.TimeAtDestination() > b.Quote.TimeAtDestination()
	})

	var frontier []ScoredItinerary
	bestTime := int64(-1)
	for _, s := range byPrice {
		at := int64(s.Quote.TimeAtDestination())
		if at > bestTime {
			frontier = append(frontier, s)
			bestTime = at
		}
	}
	return frontier
}

// itineraryKey identifies an itinerary for deduplication: same date pair,
// same carriers, same leg departure times.
func itineraryKey(s ScoredItinerary) string {
	q := s.Quote
	return q.Pair.String() + "|" +
		q.Outbound.CarrierCode + "@" + strconv.FormatInt(q.Outbound.DepartAt.Unix(), 10) + "|" +
		q.Return.CarrierCode + "@" + strconv.FormatInt(q.Return.DepartAt.Unix(), 10)
}
