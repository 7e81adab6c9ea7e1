package store

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ahrav/go-verity/internal/domain"
	"github.com/ahrav/go-verity/internal/ports"
)

const memoryBackend = "memory"

// MemoryStore keeps reports in process memory. Reports expire after the
// configured TTL; a zero TTL keeps them until deleted.
type MemoryStore struct {
	reports *cache.Cache
	// mu serializes flag appends, which are read-modify-write.
	mu sync.Mutex
}

var _ ports.ReportStore = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl
	}
	return &MemoryStore{reports: cache.New(expiration, cleanup)}
}

type memoryEntry struct {
	report []byte
	flags  []domain.Flag
}

// Save stores the report, replacing any report with the same id. Flags
// of a replaced report are kept.
func (s *MemoryStore) Save(_ context.Context, r *domain.Report) error {
	b, err := encodeReport(r)
	if err != nil {
		return ports.NewStoreError(memoryBackend, "save", reportID(r), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := &memoryEntry{report: b}
	if prev, ok := s.entry(r.ID); ok {
		entry.flags = prev.flags
	}
	s.reports.SetDefault(r.ID, entry)
	return nil
}

// Get returns a copy of the stored report.
func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Report, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	r, err := decodeReport(e.report)
	if err != nil {
		return nil, ports.NewStoreError(memoryBackend, "get", id, err)
	}
	return r, nil
}

// Delete removes the report and its flags.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports.Get(id); !ok {
		return domain.ErrNotFound
	}
	s.reports.Delete(id)
	return nil
}

// AddFlag appends a flag to an existing report.
func (s *MemoryStore) AddFlag(_ context.Context, f domain.Flag) error {
	if err := validateFlag(f); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entry(f.ReportID)
	if !ok {
		return domain.ErrNotFound
	}
	e.flags = append(e.flags, f)
	return nil
}

// ListFlags returns the report's flags, oldest first.
func (s *MemoryStore) ListFlags(_ context.Context, reportID string) ([]domain.Flag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entry(reportID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]domain.Flag(nil), e.flags...), nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close drops every report.
func (s *MemoryStore) Close() error {
	s.reports.Flush()
	return nil
}

// Len returns the number of stored reports. Expired reports count until
// the janitor removes them.
func (s *MemoryStore) Len() int { return s.reports.ItemCount() }

func (s *MemoryStore) entry(id string) (*memoryEntry, bool) {
	v, ok := s.reports.Get(id)
	if !ok {
		return nil, false
	}
	e, ok := v.(*memoryEntry)
	return e, ok
}

func reportID(r *domain.Report) string {
	if r == nil {
		return ""
	}
	return r.ID
}
