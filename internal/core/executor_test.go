package core

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// ============================================================================
// Executor Tests
// ============================================================================

func newTestExecutor(store Store) Executor {
	return Executor{
		Store:     store,
		Hasher:    plainHasher{},
		Validator: SchemaValidator{Now: fixedNow},
		Now:       fixedNow,
	}
}

func previewRows(t *testing.T, store Store, raw ...map[string]string) []ImportRow {
	t.Helper()
	res, err := newTestPreviewer(store).Preview(context.Background(), memberProfile{}, "t1", NewImportRows(raw))
	if err != nil {
		t.Fatalf("Preview() error: %v", err)
	}
	return res.ValidData
}

func TestExecute_CreatesEveryRow(t *testing.T) {
	store := newFakeStore()
	rows := previewRows(t, store,
		map[string]string{"code": "m1", "name": " Asha  Rao ", "email": "asha@example.com", "level": "junior"},
		memberRow("M2", "Ravi"),
	)

	res, err := newTestExecutor(store).Execute(context.Background(), memberProfile{}, "t1", rows, CommitOptions{})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if res.Created != 2 || res.Failed != 0 || res.Updated != 0 {
		t.Errorf("result = %+v, want 2 created", res)
	}
	if res.Status != StatusCommitted {
		t.Errorf("Status = %q, want %q", res.Status, StatusCommitted)
	}
	if res.Errors == nil {
		t.Error("Errors should be an empty slice, not nil")
	}

	rec := store.records[0]
	if rec.BusinessKey != "M1" || rec.TenantID != "t1" || rec.Kind != kindMember {
		t.Errorf("record identity = %+v", rec)
	}
	if rec.DisplayName != "Asha Rao" {
		t.Errorf("DisplayName = %q", rec.DisplayName)
	}
	if rec.PasswordHash != "hashed:M1@123" {
		t.Errorf("PasswordHash = %q, want hashed default credential", rec.PasswordHash)
	}
	if !rec.MustChangePassword {
		t.Error("MustChangePassword should be set")
	}
	if rec.Attributes["level"] != "Junior" {
		t.Errorf("attributes = %v", rec.Attributes)
	}
	if !rec.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, testNow)
	}

	if len(store.runs) != 1 || store.runs[0].Phase != PhaseCommitted || store.runs[0].Created != 2 {
		t.Errorf("import runs = %+v", store.runs)
	}
}

func TestExecute_ContinuesPastFailures(t *testing.T) {
	store := newFakeStore()
	rows := previewRows(t, store,
		memberRow("A1", "One"),
		memberRow("A2", "Two"),
		memberRow("A3", "Three"),
	)
	store.failOn["A2"] = errors.New("connection reset by peer")

	res, err := newTestExecutor(store).Execute(context.Background(), memberProfile{}, "t1", rows, CommitOptions{})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if res.Created != 2 || res.Failed != 1 {
		t.Errorf("created/failed = %d/%d, want 2/1", res.Created, res.Failed)
	}
	if res.Status != StatusPartial {
		t.Errorf("Status = %q, want %q", res.Status, StatusPartial)
	}
	if len(res.Errors) != 1 || res.Errors[0].NaturalKey != "A2" || res.Errors[0].Row != 2 {
		t.Errorf("Errors = %+v", res.Errors)
	}
	if store.runs[0].Phase != PhaseCommitPartial {
		t.Errorf("run phase = %q, want %q", store.runs[0].Phase, PhaseCommitPartial)
	}
}

func TestExecute_StopOnErrorHaltsWithoutRollback(t *testing.T) {
	store := newFakeStore()
	rows := previewRows(t, store,
		memberRow("R1", "One"),
		memberRow("R2", "Two"),
		memberRow("R3", "Three"),
		memberRow("R4", "Four"),
		memberRow("R5", "Five"),
	)
	store.seed("t1", kindMember, "R2", "")

	res, err := newTestExecutor(store).Execute(context.Background(), memberProfile{}, "t1", rows, CommitOptions{StopOnError: true})

	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *PersistenceError", err)
	}
	if perr.NaturalKey != "R2" || perr.Row != 2 {
		t.Errorf("halted at %s row %d, want R2 row 2", perr.NaturalKey, perr.Row)
	}
	if !errors.Is(err, ErrDuplicateKey) {
		t.Error("halt error should wrap the duplicate key error")
	}

	if res.Created != 1 || res.Failed != 1 {
		t.Errorf("created/failed = %d/%d, want 1/1", res.Created, res.Failed)
	}
	if res.Errors[0].Error != "Member code already exists: R2" {
		t.Errorf("failure message = %q", res.Errors[0].Error)
	}
	if !reflect.DeepEqual(store.creates, []string{"R1", "R2"}) {
		t.Errorf("attempted creates = %v, want [R1 R2]", store.creates)
	}
	if len(store.records) != 2 {
		t.Errorf("stored records = %d, want seed plus R1", len(store.records))
	}
}

func TestExecute_DoubleCommitCreatesNothingNew(t *testing.T) {
	store := newFakeStore()
	rows := previewRows(t, store,
		map[string]string{"code": "D1", "name": "One", "email": "d1@example.com"},
		memberRow("D2", "Two"),
	)
	exec := newTestExecutor(store)

	first, err := exec.Execute(context.Background(), memberProfile{}, "t1", rows, CommitOptions{})
	if err != nil || first.Created != 2 {
		t.Fatalf("first commit = %+v, %v", first, err)
	}

	second, err := exec.Execute(context.Background(), memberProfile{}, "t1", rows, CommitOptions{})
	if err != nil {
		t.Fatalf("second commit error: %v", err)
	}
	if second.Created != 0 || second.Failed != 2 {
		t.Errorf("second commit = %+v, want 0 created 2 failed", second)
	}
	if len(store.records) != 2 {
		t.Errorf("stored records = %d, want 2", len(store.records))
	}
	for _, f := range second.Errors {
		if f.Error != "Member code already exists: "+f.NaturalKey {
			t.Errorf("failure = %+v", f)
		}
	}
}

func TestExecute_RevalidatesTamperedRows(t *testing.T) {
	store := newFakeStore()
	rows := []ImportRow{
		{Values: map[string]string{"code": "OK1", "name": "Fine"}},
		{Values: map[string]string{"code": "BAD", "name": "Bad", "email": "nope"}},
		{Values: map[string]string{"code": "OK2", "name": "Fine", "admin": "true"}},
	}

	res, err := newTestExecutor(store).Execute(context.Background(), memberProfile{}, "t1", rows, CommitOptions{})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if res.Created != 1 || res.Failed != 2 {
		t.Errorf("created/failed = %d/%d, want 1/2", res.Created, res.Failed)
	}
	if res.Errors[0].Error != "invalid row: Invalid email" {
		t.Errorf("first failure = %q", res.Errors[0].Error)
	}
	if res.Errors[1].Row != 3 {
		t.Errorf("rows without a line should be numbered by position, got %d", res.Errors[1].Row)
	}
}

func TestExecute_EmailConflictMessage(t *testing.T) {
	store := newFakeStore()
	rows := previewRows(t, store, map[string]string{"code": "E1", "name": "One", "email": "dup@example.com"})
	store.seed("t1", "other", "X9", "dup@example.com")

	res, _ := newTestExecutor(store).Execute(context.Background(), memberProfile{}, "t1", rows, CommitOptions{})
	if res.Failed != 1 || res.Errors[0].Error != "Email already exists: dup@example.com" {
		t.Errorf("result = %+v", res)
	}
}

func TestNaturalKey(t *testing.T) {
	if got := naturalKey(ImportRow{Line: 7, Values: map[string]string{"code": " ab1 "}}, "code"); got != "AB1" {
		t.Errorf("naturalKey() = %q, want AB1", got)
	}
	if got := naturalKey(ImportRow{Line: 7}, "code"); got != "row 7" {
		t.Errorf("naturalKey() without key = %q, want row 7", got)
	}
}
