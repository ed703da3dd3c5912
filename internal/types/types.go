package types

import (
	"time"

	"github.com/pkg/errors"

	"travelfolio/internal/price"
)

// Passengers is the passenger breakdown of a search. Automated alert checks
// always use one adult.
type Passengers struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

// SearchQuery describes a one-way economy itinerary.
type SearchQuery struct {
	Origin     string     `json:"origin"`
	Dest       string     `json:"destination"`
	Date       string     `json:"date"`
	Passengers Passengers `json:"passengers"`
}

// Flight is a single fare row as returned by the search backend. Price stays
// a raw string until normalized; the backend formats it with currency marks.
type Flight struct {
	Airline   string `json:"airline"`
	Price     string `json:"price"`
	Departure string `json:"departure"`
	Arrival   string `json:"arrival"`
	Duration  string `json:"duration"`
	Stops     int    `json:"stops"`
}

// Coord is an airport position, used by the frontend globe.
type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SearchResult is the payload of a completed flight search.
type SearchResult struct {
	Origin  string           `json:"origin"`
	Dest    string           `json:"destination"`
	Flights []Flight         `json:"flights"`
	Coords  map[string]Coord `json:"coords"`
}

// Alert is a persisted request to be notified when a route's fare falls to
// or below a target. The sweep loop only ever mutates LastSeenPrice,
// NotifiedAt and TriggeredPrice.
type Alert struct {
	ID             string      `json:"id"`
	Origin         string      `json:"origin,omitempty"`
	Dest           string      `json:"dest,omitempty"`
	Date           string      `json:"date,omitempty"`
	TargetPrice    price.Value `json:"targetPrice,omitempty"`
	LastSeenPrice  *float64    `json:"lastSeenPrice,omitempty"`
	NotifiedAt     *time.Time  `json:"notifiedAt,omitempty"`
	TriggeredPrice *float64    `json:"triggeredPrice,omitempty"`
	CreatedAt      *time.Time  `json:"createdAt,omitempty"`
}

// Validate is the store-boundary check for alert documents. Alerts with a
// missing dest or an unparseable target are stored anyway (the sweep skips
// them); only structurally broken documents are rejected.
func (a Alert) Validate() error {
	if a.ID == "" {
		return errors.New("alert id is required")
	}
	if a.Date != "" {
		if _, err := time.Parse("2006-01-02", a.Date); err != nil {
			return errors.Wrapf(err, "alert %s: invalid date %q", a.ID, a.Date)
		}
	}
	return nil
}

// ItineraryItem is one step of a trip plan.
type ItineraryItem struct {
	Title string `json:"title"`
	Desc  string `json:"desc"`
}

// Trip is a saved travel plan shown on the globe.
type Trip struct {
	Title     string          `json:"title"`
	Origin    string          `json:"origin,omitempty"`
	Date      string          `json:"date,omitempty"`
	Lat       float64         `json:"lat,omitempty"`
	Lon       float64         `json:"lon,omitempty"`
	Image     string          `json:"img,omitempty"`
	Itinerary []ItineraryItem `json:"itinerary,omitempty"`
}

func (t Trip) Validate() error {
	if t.Title == "" {
		return errors.New("trip title is required")
	}
	return nil
}

// AlertEvent is what the UI bridge receives whenever the reconciliation
// loop or a manual check has looked at an alert. Triggered is true only for
// a notify-worthy crossing, not for routine price refreshes.
type AlertEvent struct {
	ID           string  `json:"id"`
	Dest         string  `json:"dest"`
	Origin       string  `json:"origin,omitempty"`
	Date         string  `json:"date,omitempty"`
	CurrentPrice float64 `json:"currentPrice"`
	TargetPrice  float64 `json:"targetPrice"`
	Triggered    bool    `json:"triggered"`
}
