package database

import (
	"time"

	"github.com/pkg/errors"
)

// Observation is one recorded fare for an alert's route.
type Observation struct {
	Origin    string    `json:"origin"`
	Dest      string    `json:"dest"`
	Price     float64   `json:"price"`
	CheckedAt time.Time `json:"checkedAt"`
}

// RecordPrice appends a fare observation for an alert.
func (d *DB) RecordPrice(user, alertID, origin, dest string, price float64, checkedAt time.Time) error {
	query := `
	INSERT INTO price_history (user, alert_id, origin, dest, price, checked_at)
	VALUES (?, ?, ?, ?, ?, ?);`

	_, err := d.db.Exec(query, user, alertID, origin, dest, price, checkedAt.UTC())
	return errors.Wrapf(err, "failed to record price for alert %s", alertID)
}

// History returns an alert's observations, oldest first, capped at limit
// (0 means no cap).
func (d *DB) History(user, alertID string, limit int) ([]Observation, error) {
	query := `
	SELECT origin, dest, price, checked_at FROM price_history
	WHERE user = ? AND alert_id = ?
	ORDER BY checked_at ASC;`

	rows, err := d.db.Query(query, user, alertID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query history for alert %s", alertID)
	}
	defer rows.Close()

	var observations []Observation
	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.Origin, &o.Dest, &o.Price, &o.CheckedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		observations = append(observations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read history rows")
	}

	if limit > 0 && len(observations) > limit {
		observations = observations[len(observations)-limit:]
	}
	return observations, nil
}

// PruneHistory drops observations older than the cutoff.
func (d *DB) PruneHistory(cutoff time.Time) (int64, error) {
	res, err := d.db.Exec(`DELETE FROM price_history WHERE checked_at < ?;`, cutoff.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "failed to prune price history")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
