package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vitalhub/vitals/internal/api"
)

// ErrDuplicateDate is returned when a record already exists for a date.
// Records are immutable once stored; the ingestion collaborator is expected
// to de-duplicate, so a duplicate is surfaced rather than overwritten.
var ErrDuplicateDate = errors.New("record already exists for date")

// Store holds the chronological sequence of daily records. It is read-only
// to all analytical components; only ingestion appends.
type Store interface {
	// Append stores a new daily record. Returns ErrDuplicateDate if a
	// record for the same date exists.
	Append(ctx context.Context, rec api.UnifiedRecord) error

	// List returns all records ordered by date ascending.
	List(ctx context.Context) ([]api.UnifiedRecord, error)

	// Close releases resources.
	Close() error
}

func validateRecord(rec *api.UnifiedRecord) error {
	if _, err := time.Parse(api.DateLayout, rec.Date); err != nil {
		return fmt.Errorf("invalid record date %q: %w", rec.Date, err)
	}
	return nil
}

func sortByDate(recs []api.UnifiedRecord) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Date < recs[j].Date })
}

// MemoryStore is an in-memory record store with optional file snapshot.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]api.UnifiedRecord
	snapshot string // optional file path for persistence
}

type snapshotFile struct {
	Records []api.UnifiedRecord `json:"records"`
}

// NewMemoryStore creates an in-memory store. If snapshotPath is non-empty,
// existing records are loaded from it and appends are persisted back.
func NewMemoryStore(snapshotPath string) *MemoryStore {
	ms := &MemoryStore{
		records:  make(map[string]api.UnifiedRecord),
		snapshot: snapshotPath,
	}

	if snapshotPath != "" {
		if err := ms.loadSnapshot(); err != nil {
			fmt.Printf("Failed to load record snapshot: %v\n", err)
		}
	}

	return ms
}

func (m *MemoryStore) Append(ctx context.Context, rec api.UnifiedRecord) error {
	if err := validateRecord(&rec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[rec.Date]; exists {
		return ErrDuplicateDate
	}
	m.records[rec.Date] = rec

	if m.snapshot != "" {
		return m.saveSnapshotLocked()
	}
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]api.UnifiedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := make([]api.UnifiedRecord, 0, len(m.records))
	for _, r := range m.records {
		recs = append(recs, r)
	}
	sortByDate(recs)
	return recs, nil
}

func (m *MemoryStore) Close() error {
	if m.snapshot == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveSnapshotLocked()
}

func (m *MemoryStore) loadSnapshot() error {
	data, err := os.ReadFile(m.snapshot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no snapshot yet
		}
		return err
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to unmarshal record snapshot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range snap.Records {
		if validateRecord(&r) == nil {
			m.records[r.Date] = r
		}
	}
	return nil
}

func (m *MemoryStore) saveSnapshotLocked() error {
	recs := make([]api.UnifiedRecord, 0, len(m.records))
	for _, r := range m.records {
		recs = append(recs, r)
	}
	sortByDate(recs)

	data, err := json.MarshalIndent(snapshotFile{Records: recs}, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(m.snapshot); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(m.snapshot, data, 0600)
}
