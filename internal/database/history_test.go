package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestHistoryRoundTrip(t *testing.T) {
	d := openTestDB(t)
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	for i, p := range []float64{520, 480, 450} {
		require.NoError(t, d.RecordPrice("user", "a1", "FRA", "VLC", p, base.Add(time.Duration(i)*time.Hour)))
	}
	require.NoError(t, d.RecordPrice("user", "other", "FRA", "LIS", 300, base))

	obs, err := d.History("user", "a1", 0)
	require.NoError(t, err)
	require.Len(t, obs, 3)
	require.Equal(t, 520.0, obs[0].Price)
	require.Equal(t, 450.0, obs[2].Price)
	require.Equal(t, "VLC", obs[0].Dest)

	// limit keeps the newest observations
	obs, err = d.History("user", "a1", 2)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	require.Equal(t, 480.0, obs[0].Price)

	obs, err = d.History("user", "unknown", 0)
	require.NoError(t, err)
	require.Empty(t, obs)
}

func TestPruneHistory(t *testing.T) {
	d := openTestDB(t)
	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC()

	require.NoError(t, d.RecordPrice("user", "a1", "FRA", "VLC", 500, old))
	require.NoError(t, d.RecordPrice("user", "a1", "FRA", "VLC", 490, recent))

	n, err := d.PruneHistory(time.Now().UTC().Add(-24 * time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	obs, err := d.History("user", "a1", 0)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	require.Equal(t, 490.0, obs[0].Price)
}

func TestMetricsRoundTrip(t *testing.T) {
	d := openTestDB(t)

	v, err := d.GetMetric("sweeps_total")
	require.NoError(t, err)
	require.Zero(t, v)

	require.NoError(t, d.SaveMetric("sweeps_total", 12))
	require.NoError(t, d.SaveMetric("sweeps_total", 13))

	v, err = d.GetMetric("sweeps_total")
	require.NoError(t, err)
	require.Equal(t, 13.0, v)
}
