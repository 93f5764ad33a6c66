package feed

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const indexFile = "index.json"

// Writer appends events to the newest shard, rotating once it is full.
type Writer struct {
	mu sync.Mutex

	dir               string
	indexPath         string
	maxEventsPerShard int

	idx *Index

	curFile   *os.File
	curWriter *bufio.Writer
	curSeq    int
	curEvents int
}

type WriterConfig struct {
	Dir               string
	MaxEventsPerShard int
	// Append resumes an existing log instead of starting a fresh index.
	Append bool
}

func OpenWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.Dir == "" {
		return nil, errors.New("activity log dir is required")
	}
	if cfg.MaxEventsPerShard <= 0 {
		cfg.MaxEventsPerShard = 500
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, err
	}

	w := &Writer{
		dir:               cfg.Dir,
		indexPath:         filepath.Join(cfg.Dir, indexFile),
		maxEventsPerShard: cfg.MaxEventsPerShard,
		idx:               &Index{Version: 1, MaxEventsPerShard: cfg.MaxEventsPerShard},
	}

	if cfg.Append {
		if idx, err := LoadIndex(w.indexPath); err == nil {
			if idx.MaxEventsPerShard == 0 {
				idx.MaxEventsPerShard = cfg.MaxEventsPerShard
			}
			w.idx = idx
		} else if maxShardSeq(cfg.Dir) > 0 {
			// Index lost but shards survived.
			w.idx = RebuildIndex(cfg.Dir, cfg.MaxEventsPerShard)
		}
	}

	if err := w.resume(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) resume() error {
	if len(w.idx.Shards) == 0 {
		return w.rotateTo(1)
	}

	last := &w.idx.Shards[len(w.idx.Shards)-1]
	path := filepath.Join(w.dir, last.File)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	w.curFile = f
	w.curWriter = bufio.NewWriter(f)
	w.curSeq = last.Seq
	w.curEvents = last.Events
	if w.curEvents <= 0 {
		w.curEvents = countLines(path)
		last.Events = w.curEvents
	}
	w.idx.recount()
	return SaveIndexAtomic(w.indexPath, w.idx)
}

func (w *Writer) rotateTo(seq int) error {
	if w.curWriter != nil {
		_ = w.curWriter.Flush()
	}
	if w.curFile != nil {
		_ = w.curFile.Close()
	}

	file := shardFileName(seq)
	f, err := os.OpenFile(filepath.Join(w.dir, file), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	w.curFile = f
	w.curWriter = bufio.NewWriter(f)
	w.curSeq = seq
	w.curEvents = 0

	w.idx.Shards = append(w.idx.Shards, Shard{Seq: seq, File: file})
	sort.Slice(w.idx.Shards, func(i, j int) bool { return w.idx.Shards[i].Seq < w.idx.Shards[j].Seq })
	return SaveIndexAtomic(w.indexPath, w.idx)
}

// Append writes ev as one JSON line. A zero Time is stamped with now.
func (w *Writer) Append(ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal activity event: %w", err)
	}
	return w.AppendJSONLine(line)
}

// AppendJSONLine writes a pre-encoded line. Blank lines are dropped.
func (w *Writer) AppendJSONLine(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.curWriter == nil {
		return errors.New("writer closed")
	}

	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil
	}

	// Rotate lazily so an empty next shard is never registered.
	if w.curEvents >= w.maxEventsPerShard {
		if err := w.rotateTo(w.curSeq + 1); err != nil {
			return err
		}
	}

	if _, err := w.curWriter.Write(append(trimmed, '\n')); err != nil {
		return err
	}
	if err := w.curWriter.Flush(); err != nil {
		return err
	}

	w.curEvents++
	w.idx.Shards[len(w.idx.Shards)-1].Events = w.curEvents
	w.idx.TotalEvents++
	return SaveIndexAtomic(w.indexPath, w.idx)
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if w.curWriter != nil {
		err = w.curWriter.Flush()
		w.curWriter = nil
	}
	if w.curFile != nil {
		if closeErr := w.curFile.Close(); err == nil {
			err = closeErr
		}
		w.curFile = nil
	}
	_ = SaveIndexAtomic(w.indexPath, w.idx)
	return err
}

func countLines(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := newLineScanner(f)
	n := 0
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) > 0 {
			n++
		}
	}
	return n
}

func parseShardSeq(name string) int {
	// activity-000123.jsonl
	if !strings.HasPrefix(name, "activity-") || !strings.HasSuffix(name, ".jsonl") {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "activity-"), ".jsonl"))
	if err != nil {
		return 0
	}
	return n
}

func shardFileName(seq int) string {
	return fmt.Sprintf("activity-%06d.jsonl", seq)
}

func maxShardSeq(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	maxSeq := 0
	for _, e := range entries {
		if seq := parseShardSeq(e.Name()); !e.IsDir() && seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq
}
