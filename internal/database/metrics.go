package database

import (
	"database/sql"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SaveMetric persists a metric snapshot so counters survive restarts.
func (d *DB) SaveMetric(metricName string, value float64) error {
	query := `
	INSERT OR REPLACE INTO metrics (metric_name, metric_value)
	VALUES (?, ?);`
	if _, err := d.db.Exec(query, metricName, value); err != nil {
		return errors.Wrap(err, "failed to save metric")
	}
	log.Debugf("metric saved: %s = %f", metricName, value)
	return nil
}

// GetMetric loads a persisted metric snapshot, defaulting to 0.
func (d *DB) GetMetric(metricName string) (float64, error) {
	var value float64
	query := `SELECT metric_value FROM metrics WHERE metric_name = ?;`
	err := d.db.QueryRow(query, metricName).Scan(&value)
	if err == sql.ErrNoRows {
		log.Debugf("metric %s not found in the database, defaulting to 0", metricName)
		return 0, nil
	} else if err != nil {
		return 0, errors.Wrapf(err, "failed to get metric %s", metricName)
	}
	return value, nil
}
