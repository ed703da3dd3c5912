package alert

import (
	"context"

	"github.com/pkg/errors"

	"travelfolio/internal/airports"
	"travelfolio/internal/flights"
	"travelfolio/internal/price"
	"travelfolio/internal/types"
)

// ErrNoFares is returned when the search succeeded but no fare on the page
// normalized to a usable number.
var ErrNoFares = errors.New("no parseable fares returned")

// Resolver turns an alert's route into a single current price: resolve
// airport identifiers, run a one-way search for one adult, and take the
// cheapest normalized fare.
type Resolver struct {
	airports *airports.DB
	searcher flights.Searcher
}

func NewResolver(db *airports.DB, s flights.Searcher) *Resolver {
	return &Resolver{airports: db, searcher: s}
}

// Resolve returns the cheapest current fare for the route, in the search
// backend's currency. A failed backend call and an all-unparseable fare list
// are both reported as errors; the caller skips the alert for this cycle.
func (r *Resolver) Resolve(ctx context.Context, origin, dest, date string) (float64, error) {
	q := types.SearchQuery{
		Origin:     r.airports.Resolve(origin),
		Dest:       r.airports.Resolve(dest),
		Date:       date,
		Passengers: types.Passengers{Adults: 1},
	}

	result, err := r.searcher.Search(ctx, q)
	if err != nil {
		return 0, errors.Wrapf(err, "search %s → %s", q.Origin, q.Dest)
	}

	fares := make([]string, 0, len(result.Flights))
	for _, f := range result.Flights {
		fares = append(fares, f.Price)
	}

	cheapest, ok := price.Cheapest(fares)
	if !ok {
		return 0, errors.Wrapf(ErrNoFares, "%s → %s on %s", q.Origin, q.Dest, date)
	}
	return cheapest, nil
}
