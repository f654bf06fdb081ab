// Package manifest records which build produced the shard directory.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
)

const FileName = "manifest.json"

type Manifest struct {
	BuildID     string    `json:"build_id"`
	Documents   int       `json:"documents"`
	Shards      []string  `json:"shards"`
	CreatedAt   time.Time `json:"created_at"`
	FinalizedAt time.Time `json:"finalized_at"`
}

func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

func Write(dir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return apperrors.Storage("manifest", "encoding manifest", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Storage("manifest", "creating shard directory", err)
	}
	tmp := Path(dir) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperrors.Storage("manifest", "writing manifest", err)
	}
	if err := os.Rename(tmp, Path(dir)); err != nil {
		return apperrors.Storage("manifest", "renaming manifest", err)
	}
	return nil
}

// Read loads the manifest of the shard directory. A missing manifest means
// no finished build exists.
func Read(dir string) (*Manifest, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		return nil, apperrors.Storage("manifest", "reading manifest (has the index been built?)", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperrors.Storage("manifest", "decoding manifest", err)
	}
	return &m, nil
}

// Remove deletes the manifest so a half-finished rebuild is never served.
func Remove(dir string) error {
	if err := os.Remove(Path(dir)); err != nil && !os.IsNotExist(err) {
		return apperrors.Storage("manifest", "removing manifest", err)
	}
	return nil
}
