package fare

import (
	"fmt"
	"time"
)

// DefaultMaxDatePairs caps how many date pairs a single window may expand to.
// It bounds the fan-out against the external fare provider.
const DefaultMaxDatePairs = 64

// Validate checks the structural invariants of the window.
func (w TravelWindow) Validate() error {
	if w.EarliestDepart.IsZero() || w.LatestReturn.IsZero() {
		return fmt.Errorf("%w: both earliest depart and latest return are required", ErrInvalidWindow)
	}
	if w.EarliestDepart.After(w.LatestReturn) {
		return fmt.Errorf("%w: earliest depart %s is after latest return %s",
			ErrInvalidWindow, w.EarliestDepart.Format(time.DateOnly), w.LatestReturn.Format(time.DateOnly))
	}
	if w.MinNights < 0 {
		return fmt.Errorf("%w: min nights must not be negative", ErrInvalidWindow)
	}
	if w.MinNights > w.MaxNights {
		return fmt.Errorf("%w: min nights %d exceeds max nights %d", ErrInvalidWindow, w.MinNights, w.MaxNights)
	}
	return nil
}

// ExpandWindow produces every DatePair allowed by the window, in ascending
// depart order and then ascending return order. Pairs are unique and all
// satisfy MinNights <= nights <= MaxNights within the window bounds.
//
// maxPairs caps the expansion (0 means DefaultMaxDatePairs); a window that
// would exceed the cap fails with ErrWindowTooLarge rather than being
// silently truncated.
func ExpandWindow(w TravelWindow, maxPairs int) ([]DatePair, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if maxPairs <= 0 {
		maxPairs = DefaultMaxDatePairs
	}

	first := midnightUTC(w.EarliestDepart)
	last := midnightUTC(w.LatestReturn)

	var pairs []DatePair
	for depart := first; !depart.After(last); depart = depart.AddDate(0, 0, 1) {
		if !w.departWeekdayAllowed(depart.Weekday()) {
			continue
		}
		for nights := w.MinNights; nights <= w.MaxNights; nights++ {
			if nights == 0 {
				// A round trip needs at least one night away.
				continue
			}
			ret := depart.AddDate(0, 0, nights)
			if ret.After(last) {
				break
			}
			pairs = append(pairs, DatePair{Depart: depart, Return: ret})
			if len(pairs) > maxPairs {
				return nil, fmt.Errorf("%w: more than %d pairs, narrow the window", ErrWindowTooLarge, maxPairs)
			}
		}
	}
	return pairs, nil
}

func (w TravelWindow) departWeekdayAllowed(day time.Weekday) bool {
	if len(w.AllowedDepartWeekdays) == 0 {
		return true
	}
	for _, allowed := range w.AllowedDepartWeekdays {
		if day == allowed {
			return true
		}
	}
	return false
}

func midnightUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
