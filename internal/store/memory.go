package store

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/veracity-sec/correlator/api/schemas"
)

// MemoryStore provides a fast, ephemeral, in-memory implementation of the
// FindingStore interface. It's great for testing, short lived ingestion runs,
// or situations where persistence isn't required.
type MemoryStore struct {
	mu       sync.RWMutex
	raw      map[string]schemas.RawFinding
	findings map[string]schemas.Finding
	log      *zap.Logger
}

// Ensures MemoryStore correctly implements the FindingStore interface at compile time.
var _ schemas.FindingStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new, empty in-memory finding store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		raw:      make(map[string]schemas.RawFinding),
		findings: make(map[string]schemas.Finding),
		log:      logger.Named("memory_store"),
	}
}

// GetRawFinding retrieves a raw finding by its ID.
func (s *MemoryStore) GetRawFinding(ctx context.Context, id string) (schemas.RawFinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.raw[id]
	if !ok {
		return schemas.RawFinding{}, fmt.Errorf("raw finding %q: %w", id, schemas.ErrNotFound)
	}
	return f, nil
}

// GetFinding retrieves a curated finding by its ID.
func (s *MemoryStore) GetFinding(ctx context.Context, id string) (schemas.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.findings[id]
	if !ok {
		return schemas.Finding{}, fmt.Errorf("finding %q: %w", id, schemas.ErrNotFound)
	}
	return f, nil
}

// FilterRawFindings returns every raw finding matching all predicate clauses.
func (s *MemoryStore) FilterRawFindings(ctx context.Context, pred schemas.Predicate) ([]schemas.RawFinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []schemas.RawFinding
	for _, f := range s.raw {
		f := f
		if pred.Matches(f.FieldValue) {
			out = append(out, f)
		}
	}
	return out, nil
}

// FilterFindings returns every curated finding matching all predicate clauses.
func (s *MemoryStore) FilterFindings(ctx context.Context, pred schemas.Predicate) ([]schemas.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []schemas.Finding
	for _, f := range s.findings {
		f := f
		if pred.Matches(f.FieldValue) {
			out = append(out, f)
		}
	}
	return out, nil
}

// CreateRawFinding stores a new raw finding. The ID must not already exist.
func (s *MemoryStore) CreateRawFinding(ctx context.Context, f *schemas.RawFinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.raw[f.ID]; exists {
		return fmt.Errorf("raw finding %q already exists", f.ID)
	}
	s.raw[f.ID] = *f
	s.log.Debug("Raw finding created", zap.String("id", f.ID), zap.String("hash", f.Hash))
	return nil
}

// SaveRawFinding overwrites an existing raw finding.
func (s *MemoryStore) SaveRawFinding(ctx context.Context, f *schemas.RawFinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.raw[f.ID]; !exists {
		return fmt.Errorf("raw finding %q: %w", f.ID, schemas.ErrNotFound)
	}
	s.raw[f.ID] = *f
	return nil
}

// DeleteRawFinding removes a raw finding by ID and detaches any curated
// findings that referenced it.
func (s *MemoryStore) DeleteRawFinding(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.raw[id]; !exists {
		return fmt.Errorf("raw finding %q: %w", id, schemas.ErrNotFound)
	}
	delete(s.raw, id)
	for fid, f := range s.findings {
		if f.RawFindingID != nil && *f.RawFindingID == id {
			f.RawFindingID = nil
			s.findings[fid] = f
		}
	}
	return nil
}

// CreateFinding stores a new curated finding. The ID must not already exist.
func (s *MemoryStore) CreateFinding(ctx context.Context, f *schemas.Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.findings[f.ID]; exists {
		return fmt.Errorf("finding %q already exists", f.ID)
	}
	s.findings[f.ID] = *f
	s.log.Debug("Finding created", zap.String("id", f.ID), zap.String("hash", f.Hash))
	return nil
}

// SaveFinding overwrites an existing curated finding.
func (s *MemoryStore) SaveFinding(ctx context.Context, f *schemas.Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.findings[f.ID]; !exists {
		return fmt.Errorf("finding %q: %w", f.ID, schemas.ErrNotFound)
	}
	s.findings[f.ID] = *f
	return nil
}

// DeleteFinding removes a curated finding by ID. Curated findings derived
// from the deleted raw findings keep their detached RawFindingID; resolving
// that is the caller's concern.
func (s *MemoryStore) DeleteFinding(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.findings[id]; !exists {
		return fmt.Errorf("finding %q: %w", id, schemas.ErrNotFound)
	}
	delete(s.findings, id)
	return nil
}
