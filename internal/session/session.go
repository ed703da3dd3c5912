// Package session persists the signed-in user id between restarts. One
// JSON file, one user, a fixed expiry; an expired or unreadable file is
// discarded on load.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const fileName = "session.json"

// DefaultTTL is how long a saved session stays valid.
const DefaultTTL = 5 * 24 * time.Hour

type record struct {
	UID     string    `json:"uid"`
	Expires time.Time `json:"expires"`
}

// Manager reads and writes the session file in a data directory.
type Manager struct {
	path string
	ttl  time.Duration

	now func() time.Time
}

func NewManager(dataDir string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{path: filepath.Join(dataDir, fileName), ttl: ttl, now: time.Now}
}

// Load returns the saved user id, or "" when no valid session exists.
// Expired and corrupt files are deleted so they are not retried.
func (m *Manager) Load() string {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return ""
	}
	if err != nil {
		log.Warnf("⚠️ Could not read session file: %v", err)
		return ""
	}

	var r record
	if err := json.Unmarshal(data, &r); err != nil || r.UID == "" {
		log.Warn("⚠️ Discarding corrupt session file")
		_ = os.Remove(m.path)
		return ""
	}
	if !r.Expires.After(m.now()) {
		log.Debugf("Session for %s expired %s", r.UID, r.Expires.Format(time.RFC3339))
		_ = os.Remove(m.path)
		return ""
	}
	return r.UID
}

// Save stores uid with a fresh expiry.
func (m *Manager) Save(uid string) error {
	r := record{UID: uid, Expires: m.now().Add(m.ttl)}
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "could not encode session")
	}
	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return errors.Wrap(err, "could not write session file")
	}
	log.Infof("✅ Session saved until %s", r.Expires.Format("02.01.2006 15:04"))
	return nil
}

// Clear removes the session file. Clearing a missing session is not an
// error.
func (m *Manager) Clear() error {
	err := os.Remove(m.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "could not remove session file")
	}
	return nil
}
