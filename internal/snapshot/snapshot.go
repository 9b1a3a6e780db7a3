// Package snapshot caches a tidy table to disk so repeat analyses do not
// re-download the source records. The format is opaque to the rest of the
// system: msgpack with a version header.
package snapshot

import (
	"fmt"
	"os"
	"time"

	"github.com/basinwatch/watertrend/internal/table"
	"github.com/vmihailenco/msgpack/v5"
)

// formatVersion is bumped whenever the encoded shape changes. A mismatch on
// load is an error, never a silent misparse.
const formatVersion = 1

type snapshotFile struct {
	Version int
	SavedAt time.Time
	Rows    []table.Observation
}

// Save writes the table to path, replacing any existing snapshot. The write
// goes through a temp file and rename so a crash cannot leave a truncated
// snapshot behind.
func Save(path string, t *table.Table) error {
	payload := snapshotFile{
		Version: formatVersion,
		SavedAt: time.Now().UTC(),
		Rows:    t.Rows(),
	}

	encoded, err := msgpack.Marshal(&payload)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot back into a table.
func Load(path string) (*table.Table, error) {
	encoded, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var payload snapshotFile
	if err := msgpack.Unmarshal(encoded, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if payload.Version != formatVersion {
		return nil, fmt.Errorf("snapshot format version %d not supported (want %d)", payload.Version, formatVersion)
	}

	return table.New(payload.Rows), nil
}

// Exists reports whether a snapshot is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
