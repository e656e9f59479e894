package scoring

import (
	"testing"
	"time"

	"github.com/weekendfare/weekendfare/internal/fare"
)

func TestAggregate_DedupKeepsCheapest(t *testing.T) {
	w := longWeekendWindow()
	cheap := quote(date(2026, time.March, 5), date(2026, time.March, 8), 20000, 0, 0)
	dupe := quote(date(2026, time.March, 5), date(2026, time.March, 8), 25000, 0, 0)

	scored := ScoreBatch([]fare.Quote{dupe, cheap}, w, Config{})
	ranked := Aggregate(scored, 10)

	if len(ranked) != 1 {
		t.Fatalf("expected 1 result after dedup, got %d", len(ranked))
	}
	if ranked[0].Quote.PriceCents != 20000 {
		t.Errorf("expected the $200 quote to survive, got %d cents", ranked[0].Quote.PriceCents)
	}
}

func TestAggregate_OrderAndTieBreaks(t *testing.T) {
	w := longWeekendWindow()

	q1 := quote(date(2026, time.March, 5), date(2026, time.March, 8), 20000, 0, 0)
	q2 := quote(date(2026, time.March, 6), date(2026, time.March, 9), 40000, 2, 2)

	// Same pair and price as q1 but a different carrier and longer legs:
	// distinct itinerary with a worse travel-time tie-break.
	q3 := q1
	q3.Outbound.CarrierCode = "DL"
	q3.Outbound.Carrier = "Delta"
	q3.Outbound.Duration = 9 * time.Hour
	q3.Return.Duration = 9 * time.Hour

	scored := ScoreBatch([]fare.Quote{q2, q3, q1}, w, Config{})
	ranked := Aggregate(scored, 10)

	if len(ranked) != 3 {
		t.Fatalf("expected 3 results, got %d", len(ranked))
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Score > ranked[i-1].Score {
			t.Errorf("ranking not descending by score at %d", i)
		}
	}
	// q1 and q3 share score inputs except stops; both nonstop at same price,
	// so the shorter total travel time wins the tie.
	if ranked[0].Quote.Outbound.CarrierCode != "UA" {
		t.Errorf("expected shorter itinerary first on travel-time tie, got %s",
			ranked[0].Quote.Outbound.CarrierCode)
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	w := longWeekendWindow()
	quotes := []fare.Quote{
		quote(date(2026, time.March, 5), date(2026, time.March, 8), 20000, 0, 0),
		quote(date(2026, time.March, 6), date(2026, time.March, 9), 25000, 1, 0),
		quote(date(2026, time.March, 4), date(2026, time.March, 7), 18000, 0, 1),
	}

	once := Aggregate(ScoreBatch(quotes, w, Config{}), 10)
	twice := Aggregate(once, 10)

	if len(once) != len(twice) {
		t.Fatalf("idempotence violated: %d vs %d results", len(once), len(twice))
	}
	for i := range once {
		if once[i].Quote != twice[i].Quote || once[i].Score != twice[i].Score {
			t.Errorf("result %d changed on re-aggregation", i)
		}
	}
}

func TestAggregate_Truncates(t *testing.T) {
	w := fare.TravelWindow{
		EarliestDepart: date(2026, time.March, 2),
		LatestReturn:   date(2026, time.March, 31),
		MinNights:      1,
		MaxNights:      7,
	}

	var quotes []fare.Quote
	for d := 2; d < 20; d++ {
		quotes = append(quotes, quote(date(2026, time.March, d), date(2026, time.March, d+3), int64(15000+d*500), 0, 0))
	}

	ranked := Aggregate(ScoreBatch(quotes, w, Config{}), 5)
	if len(ranked) != 5 {
		t.Errorf("expected 5 results after truncation, got %d", len(ranked))
	}
}

func TestAggregate_DeterministicAcrossInputOrder(t *testing.T) {
	w := longWeekendWindow()
	quotes := []fare.Quote{
		quote(date(2026, time.March, 5), date(2026, time.March, 8), 20000, 0, 0),
		quote(date(2026, time.March, 6), date(2026, time.March, 9), 20000, 0, 0),
		quote(date(2026, time.March, 4), date(2026, time.March, 7), 20000, 0, 0),
	}
	reversed := []fare.Quote{quotes[2], quotes[1], quotes[0]}

	a := Aggregate(ScoreBatch(quotes, w, Config{}), 10)
	b := Aggregate(ScoreBatch(reversed, w, Config{}), 10)

	if len(a) != len(b) {
		t.Fatalf("result count differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Quote != b[i].Quote {
			t.Errorf("position %d differs across input orders: %s vs %s",
				i, a[i].Quote.Pair, b[i].Quote.Pair)
		}
	}
}

func TestParetoFrontier(t *testing.T) {
	w := longWeekendWindow()

	// Cheap but short stay, mid-price longer stay, expensive dominated entry.
	short := quote(date(2026, time.March, 5), date(2026, time.March, 7), 15000, 0, 0)
	long := quote(date(2026, time.March, 5), date(2026, time.March, 9), 25000, 0, 0)
	dominated := quote(date(2026, time.March, 6), date(2026, time.March, 8), 30000, 1, 1)

	ranked := Aggregate(ScoreBatch([]fare.Quote{short, long, dominated}, w, Config{}), 10)
	frontier := ParetoFrontier(ranked)

	if len(frontier) != 2 {
		t.Fatalf("expected 2 frontier entries, got %d", len(frontier))
	}
	if frontier[0].Quote.PriceCents != 15000 || frontier[1].Quote.PriceCents != 25000 {
		t.Errorf("frontier should hold the cheap and the long-stay quote, got %d and %d",
			frontier[0].Quote.PriceCents, frontier[1].Quote.PriceCents)
	}
}

func TestParetoFrontier_Empty(t *testing.T) {
	if f := ParetoFrontier(nil); f != nil {
		t.Errorf("expected nil frontier for empty input, got %v", f)
	}
}
