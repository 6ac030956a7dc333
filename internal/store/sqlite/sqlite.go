// Package sqlite implements core.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/pressly/goose/v3"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store persists entities in SQLite.
type Store struct {
	db *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path. Call Migrate before first use.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite db")
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite db")
	}
	return &Store{db: db}, nil
}

// Migrate applies the embedded goose migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite"); err != nil {
		return errors.Wrap(err, "set goose dialect")
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const recordColumns = `id, tenant_id, kind, business_key, display_name, email, phone,
	class_section_id, attributes, password_hash, must_change_password, created_at`

func (s *Store) FindExisting(ctx context.Context, tenantID string, kind core.Kind, keys []string) ([]core.EntityRecord, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	args := []any{tenantID, string(kind)}
	for _, k := range keys {
		args = append(args, k)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+`
		   FROM entity_records
		  WHERE tenant_id = ? AND kind = ? AND business_key IN (`+placeholders(len(keys))+`)`,
		args...)
	if err != nil {
		return nil, errors.Wrap(err, "query existing keys")
	}
	return collectRecords(rows)
}

func (s *Store) FindByEmails(ctx context.Context, tenantID string, emails []string) ([]core.EntityRecord, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	args := []any{tenantID}
	for _, e := range emails {
		args = append(args, e)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+`
		   FROM entity_records
		  WHERE tenant_id = ? AND email IN (`+placeholders(len(emails))+`)`,
		args...)
	if err != nil {
		return nil, errors.Wrap(err, "query existing emails")
	}
	return collectRecords(rows)
}

func (s *Store) ListClassSections(ctx context.Context, tenantID string) ([]core.ClassSection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, class, section, active, created_at
		   FROM class_sections
		  WHERE tenant_id = ?
		  ORDER BY class, section`,
		tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "query class sections")
	}
	defer rows.Close()

	var out []core.ClassSection
	for rows.Next() {
		var (
			cs      core.ClassSection
			created int64
		)
		if err := rows.Scan(&cs.ID, &cs.TenantID, &cs.Class, &cs.Section, &cs.Active, &created); err != nil {
			return nil, errors.Wrap(err, "scan class section")
		}
		cs.CreatedAt = fromMillis(created)
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate class sections")
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, rec core.EntityRecord) (core.EntityRecord, error) {
	if err := ctx.Err(); err != nil {
		return core.EntityRecord{}, err
	}
	attrs := rec.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return core.EntityRecord{}, errors.Wrap(err, "encode attributes")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entity_records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TenantID, string(rec.Kind), rec.BusinessKey, rec.DisplayName,
		nullable(rec.Email), nullable(rec.Phone), nullable(rec.ClassSectionID), string(encoded),
		rec.PasswordHash, rec.MustChangePassword, toMillis(rec.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(strings.ToLower(err.Error()), "entity_records.email") {
				return core.EntityRecord{}, &core.DuplicateKeyError{Constraint: core.ConstraintEmail, Value: rec.Email, Err: err}
			}
			return core.EntityRecord{}, &core.DuplicateKeyError{Constraint: core.ConstraintBusinessKey, Value: rec.BusinessKey, Err: err}
		}
		return core.EntityRecord{}, errors.Wrap(err, "insert entity record")
	}
	return rec, nil
}

func (s *Store) CreateClassSection(ctx context.Context, cs core.ClassSection) (core.ClassSection, error) {
	if err := ctx.Err(); err != nil {
		return core.ClassSection{}, err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO class_sections (id, tenant_id, class, section, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cs.ID, cs.TenantID, cs.Class, cs.Section, cs.Active, toMillis(cs.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs
		   (id, tenant_id, kind, phase, total_rows, created, failed, source_ip, user_agent, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.TenantID, string(run.Kind), string(run.Phase), run.TotalRows, run.Created, run.Failed,
		nullable(run.SourceIP), nullable(run.UserAgent), toMillis(run.StartedAt), toMillis(run.FinishedAt))
	if err != nil {
		return errors.Wrap(err, "insert import run")
	}
	return nil
}

func (s *Store) ListImportRuns(ctx context.Context, tenantID string, limit int) ([]core.ImportRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, kind, phase, total_rows, created, failed, source_ip, user_agent, started_at, finished_at
		   FROM import_runs
		  WHERE tenant_id = ?
		  ORDER BY started_at DESC
		  LIMIT ?`,
		tenantID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query import runs")
	}
	defer rows.Close()

	var out []core.ImportRun
	for rows.Next() {
		var (
			run                 core.ImportRun
			kind, phase         string
			sourceIP, userAgent sql.NullString
			started, finished   int64
		)
		if err := rows.Scan(&run.ID, &run.TenantID, &kind, &phase, &run.TotalRows, &run.Created, &run.Failed,
			&sourceIP, &userAgent, &started, &finished); err != nil {
			return nil, errors.Wrap(err, "scan import run")
		}
		run.Kind = core.Kind(kind)
		run.Phase = core.Phase(phase)
		run.SourceIP = sourceIP.String
		run.UserAgent = userAgent.String
		run.StartedAt = fromMillis(started)
		run.FinishedAt = fromMillis(finished)
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate import runs")
	}
	return out, nil
}

func collectRecords(rows *sql.Rows) ([]core.EntityRecord, error) {
	defer rows.Close()

	var out []core.EntityRecord
	for rows.Next() {
		var (
			rec                   core.EntityRecord
			kind, attrs           string
			email, phone, classID sql.NullString
			created               int64
		)
		if err := rows.Scan(&rec.ID, &rec.TenantID, &kind, &rec.BusinessKey, &rec.DisplayName,
			&email, &phone, &classID, &attrs, &rec.PasswordHash,
			&rec.MustChangePassword, &created); err != nil {
			return nil, errors.Wrap(err, "scan entity record")
		}
		if err := json.Unmarshal([]byte(attrs), &rec.Attributes); err != nil {
			return nil, errors.Wrapf(err, "decode attributes of %s", rec.ID)
		}
		rec.Kind = core.Kind(kind)
		rec.Email = email.String
		rec.Phone = phone.String
		rec.ClassSectionID = classID.String
		rec.CreatedAt = fromMillis(created)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate entity records")
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// nullable maps the empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
