// Package flights wraps the Google Flights results page behind a Searcher
// interface. One-way economy itineraries only; that is all the tracker needs.
package flights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"travelfolio/internal/types"
)

const defaultBaseURL = "https://www.google.com/travel/flights"

// Searcher is the flight-search backend contract consumed by the price
// resolver and the API server.
type Searcher interface {
	Search(ctx context.Context, q types.SearchQuery) (*types.SearchResult, error)
}

// Client fetches and parses the results page.
type Client struct {
	http  *resty.Client
	cache *resultCache
}

// ClientConfig configuration of the search client.
type ClientConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// NewClient creates a search client.
func NewClient(c ClientConfig) *Client {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(c.BaseURL).
		SetTimeout(c.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(2*time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36").
		SetHeader("Accept-Language", "en-US,en;q=0.9")

	return &Client{
		http:  httpClient,
		cache: newResultCache(c.CacheTTL),
	}
}

// Search runs a one-way economy search for the given query. Origin and dest
// are expected to be resolved identifiers (3-letter codes where possible);
// unresolved free-text names are passed through as-is.
func (c *Client) Search(ctx context.Context, q types.SearchQuery) (*types.SearchResult, error) {
	if q.Passengers.Adults <= 0 {
		q.Passengers.Adults = 1
	}

	key := cacheKey(q)
	if cached, found := c.cache.get(key); found {
		log.Debugf("returning cached search result for %s", key)
		return cached, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("q", queryText(q)).
		SetQueryParam("hl", "en").
		SetQueryParam("curr", "EUR").
		Get("")
	if err != nil {
		return nil, errors.Wrapf(err, "flight search %s -> %s failed", q.Origin, q.Dest)
	}
	if resp.StatusCode() >= 400 {
		return nil, errors.Errorf("flight search %s -> %s: unexpected status %d", q.Origin, q.Dest, resp.StatusCode())
	}

	found, err := parseFlights(strings.NewReader(resp.String()))
	if err != nil {
		return nil, errors.Wrap(err, "could not parse flight results")
	}

	result := &types.SearchResult{
		Origin:  q.Origin,
		Dest:    q.Dest,
		Flights: found,
	}
	c.cache.set(key, result)
	return result, nil
}

func queryText(q types.SearchQuery) string {
	text := fmt.Sprintf("Flights to %s from %s on %s one-way", q.Dest, q.Origin, q.Date)
	if q.Passengers.Adults > 1 {
		text += fmt.Sprintf(" for %d adults", q.Passengers.Adults)
	}
	return text
}

func cacheKey(q types.SearchQuery) string {
	return fmt.Sprintf("%s|%s|%s|%d-%d-%d",
		strings.ToUpper(q.Origin), strings.ToUpper(q.Dest), q.Date,
		q.Passengers.Adults, q.Passengers.Children, q.Passengers.Infants)
}
