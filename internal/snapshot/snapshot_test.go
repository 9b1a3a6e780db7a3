package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/basinwatch/watertrend/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func sampleTable() *table.Table {
	return table.New([]table.Observation{
		{
			SiteID:        "01518000",
			Parameter:     "sulfate",
			Basin:         "tioga",
			Date:          time.Date(2010, 6, 1, 0, 0, 0, 0, time.UTC),
			Concentration: 12.5,
		},
		{
			SiteID:        "01518000",
			Parameter:     "sulfate",
			Basin:         "tioga",
			Date:          time.Date(2010, 7, 1, 0, 0, 0, 0, time.UTC),
			Concentration: 11.25,
			Discharge:     340,
			HasDischarge:  true,
		},
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observations.snapshot")

	original := sampleTable()
	require.NoError(t, Save(path, original))
	require.True(t, Exists(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, original.Len(), loaded.Len())
	for i, obs := range original.Rows() {
		got := loaded.Rows()[i]
		assert.Equal(t, obs.SiteID, got.SiteID)
		assert.Equal(t, obs.Parameter, got.Parameter)
		assert.Equal(t, obs.Basin, got.Basin)
		assert.True(t, obs.Date.Equal(got.Date), "date mismatch at row %d", i)
		assert.Equal(t, obs.Concentration, got.Concentration)
		assert.Equal(t, obs.HasDischarge, got.HasDischarge)
		assert.Equal(t, obs.Discharge, got.Discharge)
	}
}

func TestLoadVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observations.snapshot")

	stale := snapshotFile{Version: formatVersion + 1, SavedAt: time.Now()}
	encoded, err := msgpack.Marshal(&stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, encoded, 0o644))

	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.snapshot"))
	require.Error(t, err)
	assert.False(t, Exists(filepath.Join(t.TempDir(), "nope.snapshot")))
}

func TestLoadCorruptPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observations.snapshot")
	require.NoError(t, os.WriteFile(path, []byte("not msgpack at all"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestSaveDoesNotLeaveTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "observations.snapshot")
	require.NoError(t, Save(path, sampleTable()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "observations.snapshot", entries[0].Name())
}
