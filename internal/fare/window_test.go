package fare

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpandWindow_LongWeekend(t *testing.T) {
	// Thu 2026-03-05 through Mon 2026-03-09, 2-4 nights.
	w := TravelWindow{
		EarliestDepart: date(2026, time.March, 5),
		LatestReturn:   date(2026, time.March, 9),
		MinNights:      2,
		MaxNights:      4,
	}

	pairs, err := ExpandWindow(w, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []DatePair{
		{Depart: date(2026, time.March, 5), Return: date(2026, time.March, 7)},
		{Depart: date(2026, time.March, 5), Return: date(2026, time.March, 8)},
		{Depart: date(2026, time.March, 5), Return: date(2026, time.March, 9)},
		{Depart: date(2026, time.March, 6), Return: date(2026, time.March, 8)},
		{Depart: date(2026, time.March, 6), Return: date(2026, time.March, 9)},
		{Depart: date(2026, time.March, 7), Return: date(2026, time.March, 9)},
	}

	if len(pairs) != len(want) {
		t.Fatalf("expected %d pairs, got %d: %v", len(want), len(pairs), pairs)
	}
	for i, p := range pairs {
		if !p.Depart.Equal(want[i].Depart) || !p.Return.Equal(want[i].Return) {
			t.Errorf("pair %d: expected %s, got %s", i, want[i], p)
		}
	}
}

func TestExpandWindow_InvariantsHold(t *testing.T) {
	w := TravelWindow{
		EarliestDepart: date(2026, time.June, 1),
		LatestReturn:   date(2026, time.June, 14),
		MinNights:      1,
		MaxNights:      5,
	}

	pairs, err := ExpandWindow(w, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[string]bool)
	for _, p := range pairs {
		if !p.Depart.Before(p.Return) {
			t.Errorf("pair %s: depart not before return", p)
		}
		nights := p.Nights()
		if nights < w.MinNights || nights > w.MaxNights {
			t.Errorf("pair %s: %d nights outside [%d, %d]", p, nights, w.MinNights, w.MaxNights)
		}
		if p.Depart.Before(w.EarliestDepart) || p.Return.After(w.LatestReturn) {
			t.Errorf("pair %s: outside window bounds", p)
		}
		if seen[p.String()] {
			t.Errorf("pair %s produced twice", p)
		}
		seen[p.String()] = true
	}
}

func TestExpandWindow_WeekdayFilter(t *testing.T) {
	w := TravelWindow{
		EarliestDepart:        date(2026, time.March, 2), // Monday
		LatestReturn:          date(2026, time.March, 15),
		MinNights:             2,
		MaxNights:             3,
		AllowedDepartWeekdays: []time.Weekday{time.Thursday, time.Friday},
	}

	pairs, err := ExpandWindow(w, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) == 0 {
		t.Fatal("expected pairs, got none")
	}
	for _, p := range pairs {
		if day := p.Depart.Weekday(); day != time.Thursday && day != time.Friday {
			t.Errorf("pair %s departs on %s", p, day)
		}
	}
}

func TestExpandWindow_InvalidWindow(t *testing.T) {
	tests := []struct {
		name   string
		window TravelWindow
	}{
		{
			name: "depart after return",
			window: TravelWindow{
				EarliestDepart: date(2026, time.March, 10),
				LatestReturn:   date(2026, time.March, 5),
				MinNights:      1,
				MaxNights:      3,
			},
		},
		{
			name: "min nights above max",
			window: TravelWindow{
				EarliestDepart: date(2026, time.March, 5),
				LatestReturn:   date(2026, time.March, 10),
				MinNights:      4,
				MaxNights:      2,
			},
		},
		{
			name: "negative min nights",
			window: TravelWindow{
				EarliestDepart: date(2026, time.March, 5),
				LatestReturn:   date(2026, time.March, 10),
				MinNights:      -1,
				MaxNights:      2,
			},
		},
		{
			name:   "zero dates",
			window: TravelWindow{MinNights: 1, MaxNights: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExpandWindow(tt.window, 0)
			if !errors.Is(err, ErrInvalidWindow) {
				t.Errorf("expected ErrInvalidWindow, got %v", err)
			}
		})
	}
}

func TestExpandWindow_TooLarge(t *testing.T) {
	w := TravelWindow{
		EarliestDepart: date(2026, time.January, 1),
		LatestReturn:   date(2026, time.December, 31),
		MinNights:      1,
		MaxNights:      7,
	}

	_, err := ExpandWindow(w, 100)
	if !errors.Is(err, ErrWindowTooLarge) {
		t.Errorf("expected ErrWindowTooLarge, got %v", err)
	}
}

func TestDatePair_Nights(t *testing.T) {
	p := DatePair{Depart: date(2026, time.March, 5), Return: date(2026, time.March, 8)}
	if n := p.Nights(); n != 3 {
		t.Errorf("expected 3 nights, got %d", n)
	}
}
