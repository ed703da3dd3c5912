package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"travelfolio/internal/airports"
	"travelfolio/internal/alert"
	"travelfolio/internal/database"
	"travelfolio/internal/price"
	"travelfolio/internal/session"
	"travelfolio/internal/store"
	"travelfolio/internal/types"
)

// stubSearcher serves one fixed fare for every route.
type stubSearcher struct {
	fare string
	err  error
}

func (s *stubSearcher) Search(_ context.Context, q types.SearchQuery) (*types.SearchResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &types.SearchResult{
		Origin: q.Origin,
		Dest:   q.Dest,
		Flights: []types.Flight{
			{Airline: "Test Air", Price: s.fare, Departure: "08:00", Arrival: "10:00", Duration: "2h", Stops: 0},
		},
	}, nil
}

// fakeAuth accepts ID tokens of the form "token-<uid>" and mints cookies
// of the form "cookie-<uid>". Anything else is rejected, so a client-forged
// cookie carrying a bare uid never verifies.
type fakeAuth struct{}

func (fakeAuth) SessionCookie(_ context.Context, idToken string, _ time.Duration) (string, error) {
	uid, ok := strings.CutPrefix(idToken, "token-")
	if !ok || uid == "" {
		return "", errors.New("invalid id token")
	}
	return "cookie-" + uid, nil
}

func (fakeAuth) VerifySessionCookie(_ context.Context, cookie string) (string, error) {
	uid, ok := strings.CutPrefix(cookie, "cookie-")
	if !ok || uid == "" {
		return "", errors.New("invalid session cookie")
	}
	return uid, nil
}

type testEnv struct {
	srv   *Server
	ts    *httptest.Server
	store store.Store
	db    *database.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	adb, err := airports.Load()
	require.NoError(t, err)

	dir := t.TempDir()
	st, err := store.NewLocal(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	db, err := database.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	searcher := &stubSearcher{fare: "€450"}
	checker := alert.NewChecker(st, alert.NewResolver(adb, searcher), db, nil, alert.Config{Interval: time.Hour})
	sessions := session.NewManager(dir, time.Hour)

	srv := NewServer(st, searcher, adb, checker, db, fakeAuth{}, sessions, Config{DefaultOrigin: "FRA"})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, ts: ts, store: st, db: db}
}

func postJSON(t *testing.T, client *http.Client, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func cookieClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func TestLoginLogout(t *testing.T) {
	env := newTestEnv(t)
	client := cookieClient(t)

	resp := postJSON(t, client, env.ts.URL+"/api/login", map[string]string{"idToken": "token-user-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var data struct {
		IsAuthenticated bool `json:"isAuthenticated"`
	}
	resp, err := client.Get(env.ts.URL + "/api/data")
	require.NoError(t, err)
	decodeBody(t, resp, &data)
	require.True(t, data.IsAuthenticated)

	resp = postJSON(t, client, env.ts.URL+"/api/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = client.Get(env.ts.URL + "/api/data")
	require.NoError(t, err)
	decodeBody(t, resp, &data)
	require.False(t, data.IsAuthenticated)
}

func TestLoginRequiresIDToken(t *testing.T) {
	env := newTestEnv(t)
	resp := postJSON(t, http.DefaultClient, env.ts.URL+"/api/login", map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestLoginRejectsBadToken(t *testing.T) {
	env := newTestEnv(t)
	resp := postJSON(t, http.DefaultClient, env.ts.URL+"/api/login", map[string]string{"idToken": "garbage"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestForgedSessionCookieIsIgnored(t *testing.T) {
	env := newTestEnv(t)

	// seed a trip under a real account
	owner := cookieClient(t)
	require.NoError(t, postLogin(owner, env.ts.URL, "user-1"))
	trip := types.Trip{Title: "Valencia in May"}
	resp := postJSON(t, owner, env.ts.URL+"/api/trips", map[string]any{"id": "t1", "data": trip})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// a handcrafted cookie naming the victim's uid must not verify: the
	// caller is treated as anonymous and sees an empty scope
	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/data", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "user-1"})
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)

	var data struct {
		Trips           map[string]types.Trip `json:"trips"`
		IsAuthenticated bool                  `json:"isAuthenticated"`
	}
	decodeBody(t, resp, &data)
	require.False(t, data.IsAuthenticated)
	require.Empty(t, data.Trips)
}

func TestLoginUnavailableWithoutAuthenticator(t *testing.T) {
	env := newTestEnv(t)
	adb := env.srv.airports
	srv := NewServer(env.store, env.srv.searcher, adb, env.srv.checker, env.db, nil, nil, Config{DefaultOrigin: "FRA"})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	resp := postJSON(t, http.DefaultClient, ts.URL+"/api/login", map[string]string{"idToken": "token-user-1"})
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestAnonymousIdentityCookie(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/api/data")
	require.NoError(t, err)
	defer resp.Body.Close()

	var anon string
	for _, c := range resp.Cookies() {
		if c.Name == anonCookie {
			anon = c.Value
		}
	}
	require.Regexp(t, `^anon_[0-9a-f]{16}$`, anon)
}

func TestTripLifecycle(t *testing.T) {
	env := newTestEnv(t)
	client := cookieClient(t)

	trip := types.Trip{Title: "Valencia in May", Origin: "FRA", Date: "2026-05-10"}
	resp := postJSON(t, client, env.ts.URL+"/api/trips", map[string]any{"id": "t1", "data": trip})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var data struct {
		Trips map[string]types.Trip `json:"trips"`
	}
	resp, err := client.Get(env.ts.URL + "/api/data")
	require.NoError(t, err)
	decodeBody(t, resp, &data)
	require.Equal(t, "Valencia in May", data.Trips["t1"].Title)

	req, err := http.NewRequest(http.MethodDelete, env.ts.URL+"/api/trips/t1", nil)
	require.NoError(t, err)
	resp, err = client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestSaveAlertGeneratesID(t *testing.T) {
	env := newTestEnv(t)
	client := cookieClient(t)

	resp := postJSON(t, client, env.ts.URL+"/api/alerts", map[string]any{
		"data": map[string]any{"dest": "VLC", "targetPrice": 500},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var saved struct {
		Status string `json:"status"`
		ID     string `json:"id"`
	}
	decodeBody(t, resp, &saved)
	require.Equal(t, "success", saved.Status)
	require.NotEmpty(t, saved.ID)

	var data struct {
		Alerts []types.Alert `json:"alerts"`
	}
	resp, err := client.Get(env.ts.URL + "/api/data")
	require.NoError(t, err)
	decodeBody(t, resp, &data)
	require.Len(t, data.Alerts, 1)
	require.Equal(t, saved.ID, data.Alerts[0].ID)
	require.NotNil(t, data.Alerts[0].CreatedAt)
}

func TestCheckAlertsPreview(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, http.DefaultClient, env.ts.URL+"/api/check_alerts", map[string]any{
		"alerts": []map[string]any{
			{"id": "a1", "dest": "VLC", "targetPrice": "€500"},
			{"id": "broken", "targetPrice": 500}, // no dest, silently skipped
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Success bool               `json:"success"`
		Results []types.AlertEvent `json:"results"`
	}
	decodeBody(t, resp, &out)
	require.True(t, out.Success)
	require.Len(t, out.Results, 1)
	require.Equal(t, "a1", out.Results[0].ID)
	require.Equal(t, 450.0, out.Results[0].CurrentPrice)
	require.True(t, out.Results[0].Triggered)
	// default origin applied
	require.Equal(t, "FRA", out.Results[0].Origin)
}

func TestSearchEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, http.DefaultClient, env.ts.URL+"/api/search", map[string]any{
		"origin": "Frankfurt", "destination": "Valencia", "date": "2026-09-15",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Success     bool                   `json:"success"`
		Origin      string                 `json:"origin"`
		Destination string                 `json:"destination"`
		Flights     []types.Flight         `json:"flights"`
		Coords      map[string]types.Coord `json:"coords"`
	}
	decodeBody(t, resp, &out)
	require.True(t, out.Success)
	require.Equal(t, "FRA", out.Origin)
	require.Equal(t, "VLC", out.Destination)
	require.Len(t, out.Flights, 1)
	require.Contains(t, out.Coords, "FRA")
	require.Contains(t, out.Coords, "VLC")
}

func TestSearchRejectsMissingParameters(t *testing.T) {
	env := newTestEnv(t)
	resp := postJSON(t, http.DefaultClient, env.ts.URL+"/api/search", map[string]any{"origin": "FRA"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestHistoryEndpoint(t *testing.T) {
	env := newTestEnv(t)
	client := cookieClient(t)
	require.NoError(t, postLogin(client, env.ts.URL, "user-1"))

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, p := range []float64{520, 480} {
		require.NoError(t, env.db.RecordPrice("user-1", "a1", "FRA", "VLC", p, base.Add(time.Duration(i)*time.Hour)))
	}

	resp, err := client.Get(env.ts.URL + "/api/alerts/a1/history")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Success bool                   `json:"success"`
		History []database.Observation `json:"history"`
	}
	decodeBody(t, resp, &out)
	require.True(t, out.Success)
	require.Len(t, out.History, 2)
	require.Equal(t, 520.0, out.History[0].Price)
}

func TestChartEndpoint(t *testing.T) {
	env := newTestEnv(t)
	client := cookieClient(t)
	require.NoError(t, postLogin(client, env.ts.URL, "user-1"))

	al := types.Alert{ID: "a1", Origin: "FRA", Dest: "VLC", TargetPrice: price.FromFloat(500)}
	require.NoError(t, env.store.SaveAlert(context.Background(), "user-1", al))

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, p := range []float64{520, 480, 450} {
		require.NoError(t, env.db.RecordPrice("user-1", "a1", "FRA", "VLC", p, base.Add(time.Duration(i)*time.Hour)))
	}

	resp, err := client.Get(env.ts.URL + "/api/alerts/a1/chart")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp, err = client.Get(env.ts.URL + "/api/alerts/missing/chart")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func postLogin(client *http.Client, baseURL, uid string) error {
	body, _ := json.Marshal(map[string]string{"idToken": "token-" + uid})
	resp, err := client.Post(baseURL+"/api/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("login failed with status %d", resp.StatusCode)
	}
	return nil
}
