// Package memory is a non-persistent core.Store. It enforces the same
// uniqueness rules as the SQL stores and counts queries, which makes it the
// store of choice for tests and demos.
package memory

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

// Store keeps everything in maps guarded by one mutex.
type Store struct {
	mu       sync.RWMutex
	records  map[string][]core.EntityRecord // tenant -> records in insert order
	sections map[string][]core.ClassSection // tenant -> sections
	runs     []core.ImportRun

	queries atomic.Int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		records:  make(map[string][]core.EntityRecord),
		sections: make(map[string][]core.ClassSection),
	}
}

// Migrate is a no-op.
func (s *Store) Migrate(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Queries returns how many read queries have been served.
func (s *Store) Queries() int { return int(s.queries.Load()) }

// ResetQueries sets the query counter back to zero.
func (s *Store) ResetQueries() { s.queries.Store(0) }

func (s *Store) FindExisting(ctx context.Context, tenantID string, kind core.Kind, keys []string) ([]core.EntityRecord, error) {
	s.queries.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[strings.ToUpper(k)] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.EntityRecord
	for _, r := range s.records[tenantID] {
		if r.Kind == kind && want[strings.ToUpper(r.BusinessKey)] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) FindByEmails(ctx context.Context, tenantID string, emails []string) ([]core.EntityRecord, error) {
	s.queries.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(emails))
	for _, e := range emails {
		want[strings.ToLower(e)] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.EntityRecord
	for _, r := range s.records[tenantID] {
		if r.Email != "" && want[strings.ToLower(r.Email)] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) ListClassSections(ctx context.Context, tenantID string) ([]core.ClassSection, error) {
	s.queries.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.ClassSection, len(s.sections[tenantID]))
	copy(out, s.sections[tenantID])
	return out, nil
}

func (s *Store) Create(ctx context.Context, rec core.EntityRecord) (core.EntityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records[rec.TenantID] {
		if r.Kind == rec.Kind && strings.EqualFold(r.BusinessKey, rec.BusinessKey) {
			return core.EntityRecord{}, &core.DuplicateKeyError{Constraint: core.ConstraintBusinessKey, Value: rec.BusinessKey}
		}
		if rec.Email != "" && strings.EqualFold(r.Email, rec.Email) {
			return core.EntityRecord{}, &core.DuplicateKeyError{Constraint: core.ConstraintEmail, Value: rec.Email}
		}
	}

	attrs := make(map[string]string, len(rec.Attributes))
	for k, v := range rec.Attributes {
		attrs[k] = v
	}
	rec.Attributes = attrs
	s.records[rec.TenantID] = append(s.records[rec.TenantID], rec)
	return rec, nil
}

func (s *Store) CreateClassSection(ctx context.Context, cs core.ClassSection) (core.ClassSection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sections[cs.TenantID] {
		if strings.EqualFold(existing.Class, cs.Class) && strings.EqualFold(existing.Section, cs.Section) {
			return core.ClassSection{}, &core.DuplicateKeyError{Constraint: core.ConstraintClass, Value: cs.Class + "/" + cs.Section}
		}
	}
	s.sections[cs.TenantID] = append(s.sections[cs.TenantID], cs)
	return cs, nil
}

func (s *Store) RecordImportRun(ctx context.Context, run core.ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

// Records returns a copy of the tenant's records in insert order.
func (s *Store) Records(tenantID string) []core.EntityRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.EntityRecord, len(s.records[tenantID]))
	copy(out, s.records[tenantID])
	return out
}

func (s *Store) ListImportRuns(ctx context.Context, tenantID string, limit int) ([]core.ImportRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.ImportRun
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.runs[i].TenantID == tenantID {
			out = append(out, s.runs[i])
		}
	}
	return out, nil
}
