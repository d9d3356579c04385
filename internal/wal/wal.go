package wal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vitalhub/vitals/internal/api"
)

// Journal write-ahead-logs ingested records before they reach the store, so
// a crash between accept and persist loses nothing. One file per calendar
// day, JSON lines, fsync on every append.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	path string
	dir  string
}

// Entry is a single journaled ingest.
type Entry struct {
	Timestamp time.Time         `json:"ts"`
	Record    api.UnifiedRecord `json:"record"`
}

// NewJournal creates or opens today's journal file under dirPath.
func NewJournal(dirPath string) (*Journal, error) {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	path := filepath.Join(dirPath, fmt.Sprintf("ingest-%s.wal", time.Now().Format("20060102")))

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}

	return &Journal{
		file: file,
		path: path,
		dir:  dirPath,
	}, nil
}

// Append writes one record to the journal with fsync.
func (j *Journal) Append(rec api.UnifiedRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	line, err := json.Marshal(Entry{Timestamp: time.Now().UTC(), Record: rec})
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	if _, err := j.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write journal entry: %w", err)
	}

	// Critical: fsync to ensure durability
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal: %w", err)
	}

	return nil
}

// Close flushes and closes the journal.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.file.Sync(); err != nil {
		return err
	}
	return j.file.Close()
}

// Replay reads every journal file under dirPath in name order and returns
// all entries. Malformed lines are skipped.
func Replay(dirPath string) ([]Entry, error) {
	paths, err := filepath.Glob(filepath.Join(dirPath, "ingest-*.wal"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var entries []Entry
	for _, path := range paths {
		fileEntries, err := replayFile(path)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fileEntries...)
	}
	return entries, nil
}

func replayFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue // skip malformed lines
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// Rotate closes the current journal and opens a new daily file, returning
// the new journal and the path of the closed one.
func Rotate(current *Journal) (*Journal, string, error) {
	current.mu.Lock()
	oldPath := current.path
	dir := current.dir
	current.mu.Unlock()

	if err := current.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close current journal: %w", err)
	}

	next, err := NewJournal(dir)
	if err != nil {
		return nil, "", err
	}
	return next, oldPath, nil
}
