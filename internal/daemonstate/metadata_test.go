package daemonstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBeamAppendsAndUpdates(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, RecordBeam(dir, "proj-1", "rift-1", "/a", time.Unix(1000, 0).UTC()))
	require.NoError(t, RecordBeam(dir, "proj-2", "rift-2", "/b", time.Unix(2000, 0).UTC()))

	md, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, md.Tracked, 2)

	// Re-beaming proj-1 updates in place rather than appending a duplicate.
	require.NoError(t, RecordBeam(dir, "proj-1", "rift-1", "/a-moved", time.Unix(3000, 0).UTC()))
	md, err = Load(dir)
	require.NoError(t, err)
	require.Len(t, md.Tracked, 2)

	var found bool
	for _, e := range md.Tracked {
		if e.ProjectID == "proj-1" {
			found = true
			assert.Equal(t, "/a-moved", e.LocalRoot)
		}
	}
	assert.True(t, found)
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	md, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, md.Tracked)
}
