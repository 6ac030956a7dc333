package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PersistenceError is a row that could not be created during commit. It is
// returned as the error of a commit halted by CommitOptions.StopOnError.
type PersistenceError struct {
	NaturalKey string
	Row        int
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("import halted at %s (row %d): %v", e.NaturalKey, e.Row, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Executor runs the commit phase: one independent create per row, in order.
type Executor struct {
	Store     Store
	Hasher    CredentialHasher
	Validator SchemaValidator
	Now       func() time.Time
}

func (e Executor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Execute creates a record for each row of validData.
//
// Rows are validated again first, since the payload comes back from the
// client. There is no transaction across rows: with the default options a
// failing row is recorded and the loop moves on; with StopOnError the first
// failure is returned as a *PersistenceError together with the partial
// result, and rows created before it stay created.
func (e Executor) Execute(ctx context.Context, profile EntityImportProfile, tenantID string, validData []ImportRow, opts CommitOptions) (ImportResult, error) {
	started := e.now()
	logger := importLogger(ctx, tenantID, profile.Kind())
	logger.Debug("import phase", "phase", PhaseCommitting, "rows", len(validData))

	result := ImportResult{Errors: []ImportFailure{}}
	rows := ensureRowIdentity(validData)
	schema := profile.Schema()
	keyField := profile.UniqueKeyField()
	keyLabel := schema.Label(keyField)

	checked := e.Validator.Validate(rows, schema)
	rejected := make(map[string][]string, len(checked.Invalid))
	for _, ve := range checked.Errors {
		rejected[ve.RowID] = append(rejected[ve.RowID], ve.Message)
	}
	normalized := make(map[string]ImportRow, len(checked.Valid))
	for _, row := range checked.Valid {
		normalized[row.ID] = row
	}

	builder, err := profile.NewRecordBuilder(ctx, e.Store, tenantID)
	if err != nil {
		return result, fmt.Errorf("prepare %s records: %w", profile.Kind(), err)
	}

	var halt error
	for _, raw := range rows {
		key := naturalKey(raw, keyField)

		var rowErr error
		if msgs, bad := rejected[raw.ID]; bad {
			rowErr = fmt.Errorf("invalid row: %s", strings.Join(msgs, "; "))
		} else {
			rowErr = e.createOne(ctx, profile, builder, tenantID, normalized[raw.ID])
		}

		if rowErr == nil {
			result.Created++
			recordsCommitted.WithLabelValues(string(profile.Kind()), "created").Inc()
			continue
		}

		result.Failed++
		result.Errors = append(result.Errors, ImportFailure{
			NaturalKey: key,
			Row:        raw.Line,
			Error:      failureMessage(rowErr, keyLabel, key),
		})
		recordsCommitted.WithLabelValues(string(profile.Kind()), "failed").Inc()
		logger.Debug("row not created", "key", key, "row", raw.Line, "error", rowErr)

		if opts.StopOnError {
			halt = &PersistenceError{NaturalKey: key, Row: raw.Line, Err: rowErr}
			break
		}
	}

	phase := PhaseCommitted
	result.Status = StatusCommitted
	if result.Failed > 0 {
		phase = PhaseCommitPartial
		result.Status = StatusPartial
	}
	logger.Debug("import phase", "phase", phase, "created", result.Created, "failed", result.Failed)

	run := ImportRun{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Kind:       profile.Kind(),
		Phase:      phase,
		TotalRows:  len(rows),
		Created:    result.Created,
		Failed:     result.Failed,
		SourceIP:   IPAddressFromContext(ctx),
		UserAgent:  UserAgentFromContext(ctx),
		StartedAt:  started,
		FinishedAt: e.now(),
	}
	if err := e.Store.RecordImportRun(ctx, run); err != nil {
		logger.Warn("failed to record import run", "error", err)
	}

	return result, halt
}

// createOne builds, credentials and persists a single normalized row.
func (e Executor) createOne(ctx context.Context, profile EntityImportProfile, builder RecordBuilder, tenantID string, row ImportRow) error {
	rec, err := builder.Build(row)
	if err != nil {
		return err
	}

	hash, err := e.Hasher.Hash(profile.DefaultCredential(row))
	if err != nil {
		return fmt.Errorf("hash initial credential: %w", err)
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.TenantID = tenantID
	rec.Kind = profile.Kind()
	rec.BusinessKey = row.Get(profile.UniqueKeyField())
	rec.PasswordHash = hash
	rec.MustChangePassword = true
	rec.CreatedAt = e.now().UTC()

	if _, err := e.Store.Create(ctx, rec); err != nil {
		return fmt.Errorf("create %s %s: %w", profile.Kind(), rec.BusinessKey, err)
	}
	return nil
}

// naturalKey reports the row's business key as the administrator typed it,
// upper-cased like the stored key.
func naturalKey(row ImportRow, keyField string) string {
	if key := strings.ToUpper(CleanCell(row.Get(keyField))); key != "" {
		return key
	}
	return fmt.Sprintf("row %d", row.Line)
}

// failureMessage turns a row error into the text shown next to its key.
func failureMessage(err error, keyLabel, key string) string {
	var dup *DuplicateKeyError
	if errors.As(err, &dup) {
		switch dup.Constraint {
		case ConstraintBusinessKey:
			return fmt.Sprintf("%s already exists: %s", keyLabel, key)
		case ConstraintEmail:
			return fmt.Sprintf("Email already exists: %s", dup.Value)
		}
	}
	return err.Error()
}
