package feed

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Index is the manifest of an activity log directory. Shards are append-only
// and ordered oldest to newest, so readers tailing the log start at the end.
type Index struct {
	Version           int       `json:"version"`
	UpdatedAt         time.Time `json:"updated_at"`
	MaxEventsPerShard int       `json:"max_events_per_shard,omitempty"`
	Shards            []Shard   `json:"shards"`
	TotalEvents       int       `json:"total_events,omitempty"`
}

type Shard struct {
	Seq    int    `json:"seq"`
	File   string `json:"file"`   // relative to the log directory, e.g. "activity-000001.jsonl"
	Events int    `json:"events"` // best-effort line count
}

func (idx *Index) recount() {
	sum := 0
	for _, s := range idx.Shards {
		sum += s.Events
	}
	idx.TotalEvents = sum
}

func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	idx := &Index{}
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, err
	}
	if idx.Version == 0 {
		idx.Version = 1
	}
	return idx, nil
}

// SaveIndexAtomic writes idx through a temp file and a rename, so a crash
// never leaves a truncated manifest behind.
func SaveIndexAtomic(path string, idx *Index) error {
	if idx == nil {
		return nil
	}
	if idx.Version <= 0 {
		idx.Version = 1
	}
	idx.UpdatedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
