// Package postgres implements core.Store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"embed"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Constraint and index names from migrations/00001_init.sql.
const (
	constraintBusinessKey = "entity_records_tenant_kind_key"
	constraintEmail       = "entity_records_tenant_email_key"
	constraintClass       = "class_sections_tenant_class_key"
)

const uniqueViolation = "23505"

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store is a core.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool to databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string, cfg PoolConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database URL")
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return New(pool), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// DatabaseName returns the database path component of databaseURL, for logs.
func DatabaseName(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

// Migrate applies the embedded goose migrations.
func (s *Store) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "set goose dialect")
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const recordColumns = `id, tenant_id, kind, business_key, display_name, email, phone,
	class_section_id, attributes, password_hash, must_change_password, created_at`

func (s *Store) FindExisting(ctx context.Context, tenantID string, kind core.Kind, keys []string) ([]core.EntityRecord, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	upper := make([]string, len(keys))
	for i, k := range keys {
		upper[i] = strings.ToUpper(k)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+`
		   FROM entity_records
		  WHERE tenant_id = $1 AND kind = $2 AND upper(business_key) = ANY($3)`,
		tenantID, string(kind), upper)
	if err != nil {
		return nil, errors.Wrap(err, "query existing keys")
	}
	return collectRecords(rows)
}

func (s *Store) FindByEmails(ctx context.Context, tenantID string, emails []string) ([]core.EntityRecord, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(emails))
	for i, e := range emails {
		lowered[i] = strings.ToLower(e)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+`
		   FROM entity_records
		  WHERE tenant_id = $1 AND lower(email) = ANY($2)`,
		tenantID, lowered)
	if err != nil {
		return nil, errors.Wrap(err, "query existing emails")
	}
	return collectRecords(rows)
}

func (s *Store) ListClassSections(ctx context.Context, tenantID string) ([]core.ClassSection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, class, section, active, created_at
		   FROM class_sections
		  WHERE tenant_id = $1
		  ORDER BY class, section`,
		tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "query class sections")
	}
	defer rows.Close()

	var out []core.ClassSection
	for rows.Next() {
		var (
			cs core.ClassSection
			id pgtype.UUID
		)
		if err := rows.Scan(&id, &cs.TenantID, &cs.Class, &cs.Section, &cs.Active, &cs.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan class section")
		}
		cs.ID = fromPgUUID(id)
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate class sections")
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, rec core.EntityRecord) (core.EntityRecord, error) {
	id, err := toPgUUID(rec.ID)
	if err != nil {
		return core.EntityRecord{}, err
	}
	classID, err := toPgUUID(rec.ClassSectionID)
	if err != nil {
		return core.EntityRecord{}, err
	}
	attrs := rec.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO entity_records (`+recordColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, rec.TenantID, string(rec.Kind), rec.BusinessKey, rec.DisplayName,
		toPgText(rec.Email), toPgText(rec.Phone), classID, attrs,
		rec.PasswordHash, rec.MustChangePassword, rec.CreatedAt)
	if err != nil {
		if dup := duplicateKeyError(err, rec); dup != nil {
			return core.EntityRecord{}, dup
		}
		return core.EntityRecord{}, errors.Wrap(err, "insert entity record")
	}
	return rec, nil
}

func (s *Store) CreateClassSection(ctx context.Context, cs core.ClassSection) (core.ClassSection, error) {
	id, err := toPgUUID(cs.ID)
	if err != nil {
		return core.ClassSection{}, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO class_sections (id, tenant_id, class, section, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, cs.TenantID, cs.Class, cs.Section, cs.Active, cs.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraintClass {
			return core.ClassSection{}, &core.DuplicateKeyError{
				Constraint: core.ConstraintClass,
				Value:      cs.Class + "/" + cs.Section,
				Err:        err,
			}
		}
		return core.ClassSection{}, errors.Wrap(err, "insert class section")
	}
	return cs, nil
}

func (s *Store) RecordImportRun(ctx context.Context, run core.ImportRun) error {
	id, err := toPgUUID(run.ID)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO import_runs
		   (id, tenant_id, kind, phase, total_rows, created, failed, source_ip, user_agent, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, run.TenantID, string(run.Kind), string(run.Phase), run.TotalRows, run.Created, run.Failed,
		toPgText(run.SourceIP), toPgText(run.UserAgent), run.StartedAt, run.FinishedAt)
	if err != nil {
		return errors.Wrap(err, "insert import run")
	}
	return nil
}

func (s *Store) ListImportRuns(ctx context.Context, tenantID string, limit int) ([]core.ImportRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, kind, phase, total_rows, created, failed, source_ip, user_agent, started_at, finished_at
		   FROM import_runs
		  WHERE tenant_id = $1
		  ORDER BY started_at DESC
		  LIMIT $2`,
		tenantID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query import runs")
	}
	defer rows.Close()

	var out []core.ImportRun
	for rows.Next() {
		var (
			run                 core.ImportRun
			id                  pgtype.UUID
			kind, phase         string
			sourceIP, userAgent pgtype.Text
		)
		if err := rows.Scan(&id, &run.TenantID, &kind, &phase, &run.TotalRows, &run.Created, &run.Failed,
			&sourceIP, &userAgent, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, errors.Wrap(err, "scan import run")
		}
		run.ID = fromPgUUID(id)
		run.Kind = core.Kind(kind)
		run.Phase = core.Phase(phase)
		run.SourceIP = sourceIP.String
		run.UserAgent = userAgent.String
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate import runs")
	}
	return out, nil
}

// collectRecords scans and closes rows.
func collectRecords(rows pgx.Rows) ([]core.EntityRecord, error) {
	defer rows.Close()

	var out []core.EntityRecord
	for rows.Next() {
		var (
			rec          core.EntityRecord
			id, classID  pgtype.UUID
			email, phone pgtype.Text
			kind         string
		)
		if err := rows.Scan(&id, &rec.TenantID, &kind, &rec.BusinessKey, &rec.DisplayName,
			&email, &phone, &classID, &rec.Attributes, &rec.PasswordHash,
			&rec.MustChangePassword, &rec.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan entity record")
		}
		rec.ID = fromPgUUID(id)
		rec.Kind = core.Kind(kind)
		rec.Email = email.String
		rec.Phone = phone.String
		rec.ClassSectionID = fromPgUUID(classID)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate entity records")
	}
	return out, nil
}

// duplicateKeyError maps a unique violation on entity_records to a
// *core.DuplicateKeyError, or returns nil.
func duplicateKeyError(err error, rec core.EntityRecord) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case constraintEmail:
		return &core.DuplicateKeyError{Constraint: core.ConstraintEmail, Value: rec.Email, Err: err}
	case constraintBusinessKey:
		return &core.DuplicateKeyError{Constraint: core.ConstraintBusinessKey, Value: rec.BusinessKey, Err: err}
	default:
		return &core.DuplicateKeyError{Constraint: core.ConstraintBusinessKey, Value: rec.BusinessKey, Err: err}
	}
}

func toPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// toPgUUID converts a textual UUID. The empty string is SQL NULL.
func toPgUUID(s string) (pgtype.UUID, error) {
	if s == "" {
		return pgtype.UUID{}, nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, errors.Wrapf(err, "invalid id %q", s)
	}
	return pgtype.UUID{Bytes: u, Valid: true}, nil
}

func fromPgUUID(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
