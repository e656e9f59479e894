// Package airports provides lookups against an embedded directory of major
// commercial airports.
package airports

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

//go:embed data/airports.csv
var dataFS embed.FS

// Airport describes one entry in the directory.
type Airport struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	City     string `json:"city"`
	Country  string `json:"country"`
	Timezone string `json:"timezone"`
}

var (
	loadOnce sync.Once
	loadErr  error
	byCode   map[string]Airport
)

func load() {
	f, err := dataFS.Open("data/airports.csv")
	if err != nil {
		loadErr = fmt.Errorf("opening embedded airport data: %w", err)
		return
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 5

	// Skip the header row.
	if _, err := r.Read(); err != nil {
		loadErr = fmt.Errorf("reading airport data header: %w", err)
		return
	}

	byCode = make(map[string]Airport)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			loadErr = fmt.Errorf("reading airport data: %w", err)
			return
		}
		a := Airport{
			Code:     record[0],
			Name:     record[1],
			City:     record[2],
			Country:  record[3],
			Timezone: record[4],
		}
		byCode[a.Code] = a
	}
}

// Lookup returns the airport for an IATA code. The code is matched
// case-insensitively. The second return value reports whether the code is
// known.
func Lookup(code string) (Airport, bool) {
	loadOnce.Do(load)
	if loadErr != nil {
		return Airport{}, false
	}
	a, ok := byCode[strings.ToUpper(code)]
	return a, ok
}

// All returns every airport in the directory, ordered by code.
func All() []Airport {
	loadOnce.Do(load)
	if loadErr != nil {
		return nil
	}
	out := make([]Airport, 0, len(byCode))
	for _, a := range byCode {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
