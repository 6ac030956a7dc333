package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

// connectTestStore uses DATABASE_URL and gives each test its own tenant.
func connectTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Connect(ctx, dsn, PoolConfig{MaxConns: 4})
	if err != nil {
		t.Skipf("postgres is not reachable; skipping integration test: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s, "test-" + uuid.NewString()
}

func TestStore_CreateAndFind(t *testing.T) {
	s, tenant := connectTestStore(t)
	ctx := context.Background()

	cs, err := s.CreateClassSection(ctx, core.ClassSection{ID: uuid.NewString(), TenantID: tenant, Class: "10", Section: "A", Active: true, CreatedAt: time.Now()})
	require.NoError(t, err)

	rec := core.EntityRecord{
		ID:             uuid.NewString(),
		TenantID:       tenant,
		Kind:           "student",
		BusinessKey:    "ADM001",
		DisplayName:    "Asha Rao",
		Email:          "asha@example.com",
		ClassSectionID: cs.ID,
		Attributes:     map[string]string{"gender": "Female"},
		PasswordHash:   "hash",
		CreatedAt:      time.Now().UTC(),
	}
	_, err = s.Create(ctx, rec)
	require.NoError(t, err)

	found, err := s.FindExisting(ctx, tenant, "student", []string{"ADM001"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, rec.ID, found[0].ID)
	assert.Equal(t, cs.ID, found[0].ClassSectionID)
	assert.Equal(t, "Female", found[0].Attributes["gender"])

	found, err = s.FindByEmails(ctx, tenant, []string{"ASHA@EXAMPLE.COM"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	dup := rec
	dup.ID = uuid.NewString()
	dup.Email = ""
	_, err = s.Create(ctx, dup)
	var dupErr *core.DuplicateKeyError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, core.ConstraintBusinessKey, dupErr.Constraint)

	dup.BusinessKey = "ADM002"
	dup.Email = "Asha@Example.com"
	_, err = s.Create(ctx, dup)
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, core.ConstraintEmail, dupErr.Constraint)
}

func TestStore_BusinessKeyIgnoresCase(t *testing.T) {
	s, tenant := connectTestStore(t)
	ctx := context.Background()

	rec := core.EntityRecord{
		ID: uuid.NewString(), TenantID: tenant, Kind: "employee", BusinessKey: "emp-7",
		DisplayName: "Meera", PasswordHash: "hash", CreatedAt: time.Now().UTC(),
	}
	_, err := s.Create(ctx, rec)
	require.NoError(t, err)

	found, err := s.FindExisting(ctx, tenant, "employee", []string{"EMP-7"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	rec.ID = uuid.NewString()
	rec.BusinessKey = "EMP-7"
	_, err = s.Create(ctx, rec)
	var dupErr *core.DuplicateKeyError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, core.ConstraintBusinessKey, dupErr.Constraint)
}

func TestDuplicateKeyError(t *testing.T) {
	rec := core.EntityRecord{BusinessKey: "EMP001", Email: "a@example.com"}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"email index", &pgconn.PgError{Code: uniqueViolation, ConstraintName: constraintEmail}, core.ConstraintEmail},
		{"business key", &pgconn.PgError{Code: uniqueViolation, ConstraintName: constraintBusinessKey}, core.ConstraintBusinessKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := duplicateKeyError(tt.err, rec)
			var dup *core.DuplicateKeyError
			require.ErrorAs(t, err, &dup)
			assert.Equal(t, tt.want, dup.Constraint)
		})
	}

	assert.Nil(t, duplicateKeyError(&pgconn.PgError{Code: "23503"}, rec))
}

func TestUUIDConversion(t *testing.T) {
	id := uuid.NewString()
	u, err := toPgUUID(id)
	require.NoError(t, err)
	assert.Equal(t, id, fromPgUUID(u))

	u, err = toPgUUID("")
	require.NoError(t, err)
	assert.False(t, u.Valid)
	assert.Empty(t, fromPgUUID(u))

	_, err = toPgUUID("not-a-uuid")
	assert.Error(t, err)
}

func TestDatabaseName(t *testing.T) {
	assert.Equal(t, "roster", DatabaseName("postgres://u:p@localhost:5432/roster?sslmode=disable"))
}
