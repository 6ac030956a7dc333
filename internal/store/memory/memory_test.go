package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

func TestStore_CreateEnforcesUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Create(ctx, core.EntityRecord{ID: "1", TenantID: "t1", Kind: "student", BusinessKey: "S1", Email: "a@example.com"})
	require.NoError(t, err)

	_, err = s.Create(ctx, core.EntityRecord{ID: "2", TenantID: "t1", Kind: "student", BusinessKey: "s1"})
	var dup *core.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, core.ConstraintBusinessKey, dup.Constraint)

	_, err = s.Create(ctx, core.EntityRecord{ID: "3", TenantID: "t1", Kind: "employee", BusinessKey: "E1", Email: "A@example.com"})
	require.ErrorIs(t, err, core.ErrDuplicateKey)
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, core.ConstraintEmail, dup.Constraint)

	// Same key under another kind or tenant is fine.
	_, err = s.Create(ctx, core.EntityRecord{ID: "4", TenantID: "t1", Kind: "employee", BusinessKey: "S1"})
	require.NoError(t, err)
	_, err = s.Create(ctx, core.EntityRecord{ID: "5", TenantID: "t2", Kind: "student", BusinessKey: "S1", Email: "a@example.com"})
	require.NoError(t, err)

	assert.Len(t, s.Records("t1"), 2)
	assert.Len(t, s.Records("t2"), 1)
}

func TestStore_FindersCountQueries(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Create(ctx, core.EntityRecord{ID: "1", TenantID: "t1", Kind: "student", BusinessKey: "S1", Email: "a@example.com"})
	require.NoError(t, err)

	found, err := s.FindExisting(ctx, "t1", "student", []string{"S1", "S2"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = s.FindByEmails(ctx, "t1", []string{"A@EXAMPLE.COM"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = s.FindExisting(ctx, "t2", "student", []string{"S1"})
	require.NoError(t, err)
	assert.Empty(t, found)

	assert.Equal(t, 3, s.Queries())
	s.ResetQueries()
	assert.Zero(t, s.Queries())
}

func TestStore_ClassSections(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.CreateClassSection(ctx, core.ClassSection{ID: "c1", TenantID: "t1", Class: "10", Section: "A", Active: true})
	require.NoError(t, err)

	_, err = s.CreateClassSection(ctx, core.ClassSection{ID: "c2", TenantID: "t1", Class: "10", Section: "a"})
	require.ErrorIs(t, err, core.ErrDuplicateKey)

	list, err := s.ListClassSections(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c1", list[0].ID)
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().FindExisting(ctx, "t1", "student", []string{"S1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_ListImportRuns(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, s.RecordImportRun(ctx, core.ImportRun{ID: id, TenantID: "t1"}))
	}
	require.NoError(t, s.RecordImportRun(ctx, core.ImportRun{ID: "other", TenantID: "t2"}))

	runs, err := s.ListImportRuns(ctx, "t1", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].ID)
	assert.Equal(t, "r2", runs[1].ID)
}
