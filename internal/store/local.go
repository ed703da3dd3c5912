package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"travelfolio/internal/types"
)

// LocalUser is the single scope of the file-backed store. The local files
// are not user-partitioned, matching the no-login fallback behavior.
const LocalUser = "local"

const (
	tripsFile  = "trips.json"
	alertsFile = "alerts.json"
)

// localStore keeps trips in a single JSON object keyed by id and alerts in
// a JSON array where each element carries its own id.
type localStore struct {
	mu  sync.Mutex
	dir string
}

// NewLocal opens (creating if needed) the file-backed store in dir.
func NewLocal(dir string) (Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "could not determine home directory")
		}
		dir = filepath.Join(home, ".travelfolio")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "could not create data directory %s", dir)
	}
	return &localStore{dir: dir}, nil
}

func (s *localStore) Users(context.Context) ([]string, error) {
	return []string{LocalUser}, nil
}

func (s *localStore) Trips(context.Context, string) (map[string]types.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trips := map[string]types.Trip{}
	if err := s.readJSON(tripsFile, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}

func (s *localStore) SaveTrip(_ context.Context, _ string, id string, trip types.Trip) error {
	if err := trip.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trips := map[string]types.Trip{}
	if err := s.readJSON(tripsFile, &trips); err != nil {
		return err
	}
	trips[id] = trip
	return s.writeJSON(tripsFile, trips)
}

func (s *localStore) DeleteTrip(_ context.Context, _ string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trips := map[string]types.Trip{}
	if err := s.readJSON(tripsFile, &trips); err != nil {
		return err
	}
	if _, ok := trips[id]; !ok {
		return ErrNotFound
	}
	delete(trips, id)
	return s.writeJSON(tripsFile, trips)
}

func (s *localStore) Alerts(context.Context, string) ([]types.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readAlerts()
}

func (s *localStore) SaveAlert(_ context.Context, _ string, alert types.Alert) error {
	if err := alert.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.readAlerts()
	if err != nil {
		return err
	}

	replaced := false
	for i := range alerts {
		if alerts[i].ID == alert.ID {
			alerts[i] = alert
			replaced = true
			break
		}
	}
	if !replaced {
		alerts = append(alerts, alert)
	}
	return s.writeJSON(alertsFile, alerts)
}

func (s *localStore) PatchAlert(_ context.Context, _ string, id string, patch AlertPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.readAlerts()
	if err != nil {
		return err
	}

	for i := range alerts {
		if alerts[i].ID != id {
			continue
		}
		if patch.LastSeenPrice != nil {
			alerts[i].LastSeenPrice = patch.LastSeenPrice
		}
		if patch.TriggeredPrice != nil {
			alerts[i].TriggeredPrice = patch.TriggeredPrice
		}
		if patch.NotifiedAt != nil {
			alerts[i].NotifiedAt = patch.NotifiedAt
		}
		if patch.ClearNotifiedAt {
			alerts[i].NotifiedAt = nil
		}
		return s.writeJSON(alertsFile, alerts)
	}
	return ErrNotFound
}

func (s *localStore) DeleteAlert(_ context.Context, _ string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.readAlerts()
	if err != nil {
		return err
	}

	kept := alerts[:0]
	for _, a := range alerts {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(alerts) {
		return ErrNotFound
	}
	return s.writeJSON(alertsFile, kept)
}

func (s *localStore) Close() error {
	return nil
}

func (s *localStore) readAlerts() ([]types.Alert, error) {
	var alerts []types.Alert
	if err := s.readJSON(alertsFile, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (s *localStore) readJSON(name string, out any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "could not read %s", name)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "corrupt %s", name)
	}
	return nil
}

func (s *localStore) writeJSON(name string, in any) error {
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "could not encode %s", name)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return errors.Wrapf(err, "could not write %s", name)
	}
	return nil
}
