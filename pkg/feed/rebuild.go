package feed

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
)

func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return scanner
}

// RebuildIndex scans dir for shard files and derives a fresh index from them.
func RebuildIndex(dir string, maxEventsPerShard int) *Index {
	idx := &Index{Version: 1, MaxEventsPerShard: maxEventsPerShard}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return idx
	}
	for _, e := range entries {
		seq := parseShardSeq(e.Name())
		if e.IsDir() || seq <= 0 {
			continue
		}
		idx.Shards = append(idx.Shards, Shard{
			Seq:    seq,
			File:   e.Name(),
			Events: countLines(filepath.Join(dir, e.Name())),
		})
	}
	sort.Slice(idx.Shards, func(i, j int) bool { return idx.Shards[i].Seq < idx.Shards[j].Seq })
	idx.recount()
	return idx
}

// ReadRecent returns up to n of the newest events in dir, oldest first.
// Lines that do not decode are skipped.
func ReadRecent(dir string, n int) ([]Event, error) {
	idx, err := LoadIndex(filepath.Join(dir, indexFile))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		idx = RebuildIndex(dir, 0)
	}

	var out []Event
	for i := len(idx.Shards) - 1; i >= 0 && (n <= 0 || len(out) < n); i-- {
		events, err := readShard(filepath.Join(dir, idx.Shards[i].File))
		if err != nil {
			return nil, err
		}
		out = append(events, out...)
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func readShard(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var events []Event
	scanner := newLineScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, scanner.Err()
}
