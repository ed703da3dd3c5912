// Package server exposes the tracker over HTTP: a JSON API for the globe
// frontend plus a websocket bridge mirroring the desktop UI signals.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"travelfolio/internal/airports"
	"travelfolio/internal/alert"
	"travelfolio/internal/chart"
	"travelfolio/internal/database"
	"travelfolio/internal/flights"
	"travelfolio/internal/session"
	"travelfolio/internal/store"
	"travelfolio/internal/types"
)

const (
	sessionCookie = "session"
	anonCookie    = "anon_id"
)

// Authenticator mints and validates login session cookies, backed by
// Firebase in production. A nil Authenticator disables login entirely;
// every client then acts under an anonymous identity.
type Authenticator interface {
	SessionCookie(ctx context.Context, idToken string, ttl time.Duration) (string, error)
	VerifySessionCookie(ctx context.Context, cookie string) (uid string, err error)
}

// Config tunes the HTTP layer.
type Config struct {
	Addr          string
	DefaultOrigin string
	// SessionTTL is the lifetime of the login cookie. Defaults to the
	// session file TTL.
	SessionTTL time.Duration
}

// Server wires the API handlers to their collaborators. Construct with
// NewServer and serve via Run, or mount Router in a test server.
type Server struct {
	router   *mux.Router
	store    store.Store
	searcher flights.Searcher
	airports *airports.DB
	checker  *alert.Checker
	history  *database.DB  // optional
	auth     Authenticator // optional
	sessions *session.Manager
	hub      *Hub
	cfg      Config

	httpServer *http.Server
}

func NewServer(st store.Store, searcher flights.Searcher, adb *airports.DB, checker *alert.Checker, hist *database.DB, authn Authenticator, sessions *session.Manager, cfg Config) *Server {
	if cfg.DefaultOrigin == "" {
		cfg.DefaultOrigin = "FRA"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = session.DefaultTTL
	}
	s := &Server{
		router:   mux.NewRouter(),
		store:    st,
		searcher: searcher,
		airports: adb,
		checker:  checker,
		history:  hist,
		auth:     authn,
		sessions: sessions,
		hub:      NewHub(),
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/login", s.handleLogin).Methods("POST")
	api.HandleFunc("/logout", s.handleLogout).Methods("POST")
	api.HandleFunc("/data", s.handleData).Methods("GET")

	api.HandleFunc("/trips", s.handleSaveTrip).Methods("POST")
	api.HandleFunc("/trips/{id}", s.handleDeleteTrip).Methods("DELETE")

	api.HandleFunc("/alerts", s.handleSaveAlert).Methods("POST")
	api.HandleFunc("/alerts/{id}", s.handleDeleteAlert).Methods("DELETE")
	api.HandleFunc("/alerts/{id}/history", s.handleHistory).Methods("GET")
	api.HandleFunc("/alerts/{id}/chart", s.handleChart).Methods("GET")

	api.HandleFunc("/check_alerts", s.handleCheckAlerts).Methods("POST")
	api.HandleFunc("/search", s.handleSearch).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWS)
}

// Router returns the HTTP handler, for tests and custom servers.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the websocket hub so the sweep loop's events can be
// broadcast to connected UIs.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	log.Infof("🚀 API server listening on %s", s.cfg.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// identity returns the acting user id. A verified login cookie wins;
// anybody else gets a sticky anonymous id so their data still lands in a
// stable scope. The cookie value is an opaque Firebase session cookie,
// never a raw uid, so the uid only ever comes out of verification.
func (s *Server) identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" && s.auth != nil {
		uid, err := s.auth.VerifySessionCookie(r.Context(), c.Value)
		if err == nil {
			return uid, true
		}
		log.Debugf("⚠️ Rejected session cookie: %v", err)
	}
	if c, err := r.Cookie(anonCookie); err == nil && c.Value != "" {
		return c.Value, false
	}

	anon := "anon_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	http.SetCookie(w, &http.Cookie{
		Name:     anonCookie,
		Value:    anon,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	log.Debugf("📝 New anonymous session: %s", anon)
	return anon, false
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeError(w, http.StatusServiceUnavailable, "login is not configured")
		return
	}

	var req struct {
		IDToken string `json:"idToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
		writeError(w, http.StatusBadRequest, "idToken is required")
		return
	}

	cookie, err := s.auth.SessionCookie(r.Context(), req.IDToken, s.cfg.SessionTTL)
	if err != nil {
		log.Warnf("⚠️ Login rejected: %v", err)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	uid, err := s.auth.VerifySessionCookie(r.Context(), cookie)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    cookie,
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if s.sessions != nil {
		if err := s.sessions.Save(uid); err != nil {
			log.Warnf("⚠️ Could not persist session: %v", err)
		}
	}
	log.Debugf("🔓 Login for %s", uid)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	if s.sessions != nil {
		_ = s.sessions.Clear()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	user, authenticated := s.identity(w, r)

	trips, err := s.store.Trips(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	alerts, err := s.store.Alerts(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if trips == nil {
		trips = map[string]types.Trip{}
	}
	if alerts == nil {
		alerts = []types.Alert{}
	}

	log.Debugf("📊 Loaded %d trips and %d alerts for %s", len(trips), len(alerts), user)
	writeJSON(w, http.StatusOK, map[string]any{
		"trips":           trips,
		"alerts":          alerts,
		"isAuthenticated": authenticated,
	})
}

func (s *Server) handleSaveTrip(w http.ResponseWriter, r *http.Request) {
	user, authenticated := s.identity(w, r)

	var req struct {
		ID   string     `json:"id"`
		Data types.Trip `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "trip id and data are required")
		return
	}

	if err := s.store.SaveTrip(r.Context(), user, req.ID, req.Data); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Debugf("💾 Trip %s saved for %s", req.ID, user)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "isAuthenticated": authenticated})
}

func (s *Server) handleDeleteTrip(w http.ResponseWriter, r *http.Request) {
	user, _ := s.identity(w, r)
	id := mux.Vars(r)["id"]

	if err := s.store.DeleteTrip(r.Context(), user, id); err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "trip not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Debugf("🗑️ Trip %s deleted for %s", id, user)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

func (s *Server) handleSaveAlert(w http.ResponseWriter, r *http.Request) {
	user, _ := s.identity(w, r)

	var req struct {
		ID   string      `json:"id"`
		Data types.Alert `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert payload")
		return
	}
	req.ID = normalizeAlert(req.ID, &req.Data)

	if err := s.store.SaveAlert(r.Context(), user, req.Data); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Debugf("🔔 Alert %s saved for %s", req.ID, user)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "id": req.ID})
}

func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	user, _ := s.identity(w, r)
	id := mux.Vars(r)["id"]

	if err := s.store.DeleteAlert(r.Context(), user, id); err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Debugf("🗑️ Alert %s deleted for %s", id, user)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

// normalizeAlert fills the server-generated fields before a save: a fresh
// id when the client sent none, and the creation timestamp. Shared by the
// HTTP handler and the websocket saveAlert op.
func normalizeAlert(id string, al *types.Alert) string {
	if id == "" {
		id = uuid.NewString()
	}
	al.ID = id
	if al.CreatedAt == nil {
		now := time.Now().UTC()
		al.CreatedAt = &now
	}
	return id
}

// handleCheckAlerts previews the alerts supplied in the request body.
// Unusable and unpriceable alerts are skipped, never reported as errors;
// stored notification state is not touched.
func (s *Server) handleCheckAlerts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Alerts []types.Alert `json:"alerts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	results := []types.AlertEvent{}
	for _, al := range req.Alerts {
		if al.Origin == "" {
			al.Origin = s.cfg.DefaultOrigin
		}
		ev, err := s.checker.PreviewAlert(r.Context(), al)
		if err != nil {
			log.Debugf("⚠️ Skipping alert preview for %q: %v", al.Dest, err)
			continue
		}
		results = append(results, ev)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "results": results})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var q types.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if q.Origin == "" || q.Dest == "" || q.Date == "" {
		writeError(w, http.StatusBadRequest, "missing parameters")
		return
	}

	result, err := s.search(r.Context(), q)
	if err != nil {
		log.Errorf("❌ Search %s → %s failed: %v", q.Origin, q.Dest, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"origin":      result.Origin,
		"destination": result.Dest,
		"flights":     result.Flights,
		"coords":      result.Coords,
	})
}

// search resolves airport identifiers, queries the backend and attaches
// globe coordinates for both endpoints. Shared by the HTTP handler and the
// websocket search op.
func (s *Server) search(ctx context.Context, q types.SearchQuery) (*types.SearchResult, error) {
	q.Origin = s.airports.Resolve(q.Origin)
	q.Dest = s.airports.Resolve(q.Dest)
	if q.Passengers.Adults <= 0 {
		q.Passengers.Adults = 1
	}

	result, err := s.searcher.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if result.Flights == nil {
		result.Flights = []types.Flight{}
	}

	result.Coords = map[string]types.Coord{}
	for _, code := range []string{q.Origin, q.Dest} {
		if coord, ok := s.airports.Coord(code); ok {
			result.Coords[code] = coord
		}
	}
	return result, nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "price history is not enabled")
		return
	}
	user, _ := s.identity(w, r)
	id := mux.Vars(r)["id"]

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	obs, err := s.history.History(user, id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if obs == nil {
		obs = []database.Observation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "history": obs})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "price history is not enabled")
		return
	}
	user, _ := s.identity(w, r)
	id := mux.Vars(r)["id"]

	alerts, err := s.store.Alerts(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var target float64
	var route string
	found := false
	for _, al := range alerts {
		if al.ID != id {
			continue
		}
		target, _ = al.TargetPrice.Float()
		route = al.Dest
		if al.Origin != "" {
			route = al.Origin + " → " + al.Dest
		}
		found = true
		break
	}
	if !found {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}

	obs, err := s.history.History(user, id, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	png, err := chart.Render(route, obs, target, chart.Options{})
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Errorf("❌ Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
