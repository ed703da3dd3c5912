package airports

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	db, err := Load()
	require.NoError(t, err)
	require.Greater(t, db.Len(), 50)

	fra, ok := db.Get("fra")
	require.True(t, ok)
	require.Equal(t, "Frankfurt", fra.City)

	c, ok := db.Coord("VLC")
	require.True(t, ok)
	require.InDelta(t, 39.49, c.Lat, 0.01)
}

func TestLookup(t *testing.T) {
	db, err := Load()
	require.NoError(t, err)

	codes := db.Lookup("Valencia")
	require.NotEmpty(t, codes)
	require.Equal(t, "VLC", codes[0])

	// exact city match outranks substring matches, and repeated calls
	// return the same ordering
	codes = db.Lookup("london")
	require.GreaterOrEqual(t, len(codes), 2)
	require.Equal(t, codes, db.Lookup("London"))
	require.Equal(t, "LGW", codes[0])

	require.Empty(t, db.Lookup("Atlantis"))
	require.Empty(t, db.Lookup("  "))
}

func TestResolve(t *testing.T) {
	db, err := Load()
	require.NoError(t, err)

	// 3-character identifiers pass through without lookup, even unknown ones
	require.Equal(t, "FRA", db.Resolve("fra"))
	require.Equal(t, "XXX", db.Resolve("xxx"))

	require.Equal(t, "VLC", db.Resolve("Valencia"))

	// unresolved names fall back to the raw identifier
	require.Equal(t, "Atlantis", db.Resolve("Atlantis"))
}
