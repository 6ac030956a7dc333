package core

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ============================================================================
// Test Fixtures
// ============================================================================

var testNow = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

const kindMember Kind = "member"

var memberSchema = NewSchema(
	FieldSpec{Name: "code", Label: "Member code", Type: FieldText, Required: true, Normalize: NormalizeUpper,
		MaxLen: 20, Pattern: regexp.MustCompile(`^[A-Z0-9-]+$`), Example: "M001"},
	FieldSpec{Name: "name", Label: "Name", Type: FieldText, Required: true, Example: "Asha Rao"},
	FieldSpec{Name: "email", Label: "Email", Type: FieldEmail, Example: "asha@example.com"},
	FieldSpec{Name: "phone", Label: "Phone", Type: FieldPhone, Example: "9876543210"},
	FieldSpec{Name: "joined", Label: "Joined", Type: FieldDate, NotFuture: true, Example: "2024-04-01"},
	FieldSpec{Name: "fee", Label: "Fee", Type: FieldNumeric, NonNegative: true, Example: "1500.00"},
	FieldSpec{Name: "level", Label: "Level", Type: FieldEnum, EnumValues: []string{"Junior", "Senior"}, Example: "Junior"},
)

// memberProfile is a minimal profile exercising every field type.
type memberProfile struct{}

func (memberProfile) Kind() Kind             { return kindMember }
func (memberProfile) Label() string          { return "Member" }
func (memberProfile) Schema() Schema         { return memberSchema }
func (memberProfile) UniqueKeyField() string { return "code" }

func (p memberProfile) CheckBusinessRules(ctx context.Context, store Store, tenantID string, rows []ImportRow) ([]ValidationError, error) {
	return CheckStoreConflicts(ctx, store, tenantID, p, rows)
}

func (memberProfile) NewRecordBuilder(ctx context.Context, store Store, tenantID string) (RecordBuilder, error) {
	return RecordBuilderFunc(func(row ImportRow) (EntityRecord, error) {
		return EntityRecord{
			DisplayName: DisplayName(row.Get("name")),
			Email:       row.Get("email"),
			Phone:       row.Get("phone"),
			Attributes:  Attributes(row, "code", "name", "email", "phone"),
		}, nil
	}), nil
}

func (memberProfile) DefaultCredential(row ImportRow) string {
	return DefaultCredential(row.Get("code"))
}

func memberRow(code, name string) map[string]string {
	return map[string]string{"code": code, "name": name}
}

// plainHasher skips bcrypt so tests stay fast.
type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

// fakeStore is an in-memory Store that counts queries and can be told to
// fail specific creates.
type fakeStore struct {
	mu       sync.Mutex
	records  []EntityRecord
	sections []ClassSection
	runs     []ImportRun
	queries  int
	creates  []string
	failOn   map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{failOn: make(map[string]error)}
}

func (s *fakeStore) FindExisting(ctx context.Context, tenantID string, kind Kind, keys []string) ([]EntityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++

	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var out []EntityRecord
	for _, r := range s.records {
		if r.TenantID == tenantID && r.Kind == kind && want[r.BusinessKey] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) FindByEmails(ctx context.Context, tenantID string, emails []string) ([]EntityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++

	want := make(map[string]bool, len(emails))
	for _, e := range emails {
		want[strings.ToLower(e)] = true
	}
	var out []EntityRecord
	for _, r := range s.records {
		if r.TenantID == tenantID && r.Email != "" && want[strings.ToLower(r.Email)] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) ListClassSections(ctx context.Context, tenantID string) ([]ClassSection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++

	var out []ClassSection
	for _, cs := range s.sections {
		if cs.TenantID == tenantID {
			out = append(out, cs)
		}
	}
	return out, nil
}

func (s *fakeStore) Create(ctx context.Context, rec EntityRecord) (EntityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates = append(s.creates, rec.BusinessKey)

	if err, ok := s.failOn[rec.BusinessKey]; ok {
		return EntityRecord{}, err
	}
	for _, r := range s.records {
		if r.TenantID != rec.TenantID {
			continue
		}
		if r.Kind == rec.Kind && r.BusinessKey == rec.BusinessKey {
			return EntityRecord{}, &DuplicateKeyError{Constraint: ConstraintBusinessKey, Value: rec.BusinessKey}
		}
		if rec.Email != "" && strings.EqualFold(r.Email, rec.Email) {
			return EntityRecord{}, &DuplicateKeyError{Constraint: ConstraintEmail, Value: rec.Email}
		}
	}
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *fakeStore) CreateClassSection(ctx context.Context, cs ClassSection) (ClassSection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sections {
		if existing.TenantID == cs.TenantID && strings.EqualFold(existing.Class, cs.Class) && strings.EqualFold(existing.Section, cs.Section) {
			return ClassSection{}, &DuplicateKeyError{Constraint: ConstraintClass, Value: cs.Class + "/" + cs.Section}
		}
	}
	s.sections = append(s.sections, cs)
	return cs, nil
}

func (s *fakeStore) RecordImportRun(ctx context.Context, run ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *fakeStore) ListImportRuns(ctx context.Context, tenantID string, limit int) ([]ImportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ImportRun
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.runs[i].TenantID == tenantID {
			out = append(out, s.runs[i])
		}
	}
	return out, nil
}

func (s *fakeStore) seed(tenantID string, kind Kind, key, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, EntityRecord{
		ID: key, TenantID: tenantID, Kind: kind, BusinessKey: key, Email: email,
	})
}

func (s *fakeStore) queryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}
