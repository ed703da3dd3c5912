// Package airports holds the embedded IATA airport table used to resolve
// free-text airport names to codes and to position airports on the globe.
package airports

import (
	_ "embed"
	"encoding/csv"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"travelfolio/internal/types"
)

//go:embed data/airports.csv
var rawTable []byte

// Airport is one row of the embedded table.
type Airport struct {
	Code    string
	Name    string
	City    string
	Country string
	Lat     float64
	Lon     float64
}

// DB is the loaded airport table. Construct once at startup and inject.
type DB struct {
	byCode map[string]Airport
	all    []Airport
}

// Load parses the embedded table.
func Load() (*DB, error) {
	r := csv.NewReader(strings.NewReader(string(rawTable)))
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "could not parse airport table")
	}
	if len(records) < 2 {
		return nil, errors.New("airport table is empty")
	}

	db := &DB{byCode: make(map[string]Airport, len(records)-1)}
	for _, rec := range records[1:] {
		if len(rec) != 6 {
			continue
		}
		lat, latErr := strconv.ParseFloat(rec[4], 64)
		lon, lonErr := strconv.ParseFloat(rec[5], 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		a := Airport{
			Code:    strings.ToUpper(rec[0]),
			Name:    rec[1],
			City:    rec[2],
			Country: rec[3],
			Lat:     lat,
			Lon:     lon,
		}
		db.byCode[a.Code] = a
		db.all = append(db.all, a)
	}
	sort.Slice(db.all, func(i, j int) bool { return db.all[i].Code < db.all[j].Code })
	return db, nil
}

// Len reports how many airports are loaded.
func (db *DB) Len() int {
	return len(db.all)
}

// Get returns the airport for a 3-letter code.
func (db *DB) Get(code string) (Airport, bool) {
	a, ok := db.byCode[strings.ToUpper(code)]
	return a, ok
}

// Coord returns the position of a coded airport for the frontend globe.
func (db *DB) Coord(code string) (types.Coord, bool) {
	a, ok := db.Get(code)
	if !ok {
		return types.Coord{}, false
	}
	return types.Coord{Lat: a.Lat, Lon: a.Lon}, true
}

// Lookup returns candidate codes for a free-text airport or city name,
// best match first. Exact city matches win over prefixes, prefixes over
// substrings; ties break on code so results are deterministic.
func (db *DB) Lookup(name string) []string {
	q := strings.ToLower(strings.TrimSpace(name))
	if q == "" {
		return nil
	}

	type candidate struct {
		code string
		rank int
	}
	var matches []candidate
	for _, a := range db.all {
		city := strings.ToLower(a.City)
		full := strings.ToLower(a.Name)
		switch {
		case city == q:
			matches = append(matches, candidate{a.Code, 0})
		case strings.HasPrefix(city, q) || strings.HasPrefix(full, q):
			matches = append(matches, candidate{a.Code, 1})
		case strings.Contains(city, q) || strings.Contains(full, q):
			matches = append(matches, candidate{a.Code, 2})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].rank != matches[j].rank {
			return matches[i].rank < matches[j].rank
		}
		return matches[i].code < matches[j].code
	})

	codes := make([]string, 0, len(matches))
	for _, m := range matches {
		codes = append(codes, m.code)
	}
	return codes
}

// Resolve maps an airport identifier to a 3-letter code. Inputs that are
// already 3 characters pass through untouched (never looked up); for longer
// names the first lookup candidate wins. Unresolvable names come back raw:
// resolution is best effort, the search backend gets the original string.
func (db *DB) Resolve(identifier string) string {
	id := strings.TrimSpace(identifier)
	if len(id) == 3 {
		return strings.ToUpper(id)
	}
	if codes := db.Lookup(id); len(codes) > 0 {
		return codes[0]
	}
	return id
}
