package flights

import (
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"travelfolio/internal/types"
)

// Selectors for the itinerary list on the results page. These track the
// markup the page currently ships; a layout change shows up as an empty
// result, not a parse error.
const (
	selRow      = "li.pIav2d"
	selAirline  = "div.sSHqwe.tPgKwe.ogfYpf"
	selTimes    = "span.mv1WYe div > span"
	selDuration = "div.Ak5kof div.gvkrdb"
	selStops    = "span.VG3hNb"
	selPrice    = "div.YMlIz.FpEdX span"
)

func parseFlights(page io.Reader) ([]types.Flight, error) {
	doc, err := goquery.NewDocumentFromReader(page)
	if err != nil {
		return nil, errors.Wrap(err, "invalid results document")
	}

	var flights []types.Flight
	doc.Find(selRow).Each(func(_ int, row *goquery.Selection) {
		f := types.Flight{
			Airline:  clean(row.Find(selAirline).First().Text()),
			Duration: clean(row.Find(selDuration).First().Text()),
			Price:    clean(row.Find(selPrice).First().Text()),
			Stops:    parseStops(row.Find(selStops).First().Text()),
		}

		times := row.Find(selTimes)
		if times.Length() >= 2 {
			f.Departure = clean(times.Eq(0).Text())
			f.Arrival = clean(times.Eq(1).Text())
		}

		// rows without an airline or price are ads/filler
		if f.Airline == "" && f.Price == "" {
			return
		}
		flights = append(flights, f)
	})

	return flights, nil
}

func parseStops(text string) int {
	text = strings.ToLower(clean(text))
	if text == "" || strings.HasPrefix(text, "nonstop") || strings.HasPrefix(text, "direct") {
		return 0
	}
	fields := strings.Fields(text)
	if len(fields) > 0 {
		if n, err := strconv.Atoi(fields[0]); err == nil {
			return n
		}
	}
	return 0
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
