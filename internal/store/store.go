// Package store persists trips and price alerts. Two backends share one
// contract: a Firestore document store scoped per user, and a local
// JSON-file fallback used when no credentials are configured. Switching
// backends does not migrate data; the store is last-write-wins.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"travelfolio/internal/types"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// AlertPatch is a partial alert update written by the reconciliation loop.
// Only price/notification fields can be patched; origin, dest, date and
// targetPrice belong to the user.
type AlertPatch struct {
	LastSeenPrice   *float64
	TriggeredPrice  *float64
	NotifiedAt      *time.Time
	ClearNotifiedAt bool
}

// Store is the persistence contract shared by both backends.
type Store interface {
	// Users lists the user scopes that own any data. The local backend
	// has a single scope.
	Users(ctx context.Context) ([]string, error)

	Trips(ctx context.Context, user string) (map[string]types.Trip, error)
	SaveTrip(ctx context.Context, user, id string, trip types.Trip) error
	DeleteTrip(ctx context.Context, user, id string) error

	Alerts(ctx context.Context, user string) ([]types.Alert, error)
	SaveAlert(ctx context.Context, user string, alert types.Alert) error
	PatchAlert(ctx context.Context, user, id string, patch AlertPatch) error
	DeleteAlert(ctx context.Context, user, id string) error

	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend         string // "firestore" or "local"
	CredentialsFile string
	AppID           string
	DataDir         string
}

// New opens the configured backend.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "firestore":
		return NewFirestore(ctx, cfg.CredentialsFile, cfg.AppID)
	case "local", "":
		return NewLocal(cfg.DataDir)
	default:
		return nil, errors.Errorf("unsupported store backend %q", cfg.Backend)
	}
}
