package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// EntityImportProfile adapts the generic pipeline to one entity kind.
// Implementations are immutable and safe for concurrent use.
type EntityImportProfile interface {
	Kind() Kind

	// Label is the human name of the kind ("Student").
	Label() string

	Schema() Schema

	// UniqueKeyField names the business key field ("admissionNumber").
	UniqueKeyField() string

	// CheckBusinessRules checks schema-valid rows against the store. It must
	// issue at most three store queries regardless of len(rows). Returned
	// ValidationErrors exclude their rows from the committable set; a Go
	// error means the store could not be queried.
	CheckBusinessRules(ctx context.Context, store Store, tenantID string, rows []ImportRow) ([]ValidationError, error)

	// NewRecordBuilder loads whatever reference data record building needs,
	// once per commit.
	NewRecordBuilder(ctx context.Context, store Store, tenantID string) (RecordBuilder, error)

	// DefaultCredential returns the initial plaintext credential for row.
	DefaultCredential(row ImportRow) string
}

// RecordBuilder turns a normalized row into a record ready to persist.
// Tenant, kind, business key, ID, credential and timestamps are filled in by
// the executor.
type RecordBuilder interface {
	Build(row ImportRow) (EntityRecord, error)
}

// RecordBuilderFunc adapts a function to RecordBuilder.
type RecordBuilderFunc func(row ImportRow) (EntityRecord, error)

func (f RecordBuilderFunc) Build(row ImportRow) (EntityRecord, error) {
	return f(row)
}

// EmailField is the conventional name of the email field in every schema.
const EmailField = "email"

// CheckStoreConflicts runs the uniqueness checks shared by every kind: one
// FindExisting query for business keys and, when any row has an email, one
// FindByEmails query.
func CheckStoreConflicts(ctx context.Context, store Store, tenantID string, profile EntityImportProfile, rows []ImportRow) ([]ValidationError, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	keyField := profile.UniqueKeyField()
	keyLabel := profile.Schema().Label(keyField)

	keys := distinctValues(rows, keyField)
	existing, err := store.FindExisting(ctx, tenantID, profile.Kind(), keys)
	if err != nil {
		return nil, fmt.Errorf("find existing %s keys: %w", profile.Kind(), err)
	}
	takenKeys := make(map[string]bool, len(existing))
	for _, rec := range existing {
		takenKeys[rec.BusinessKey] = true
	}

	takenEmails := make(map[string]bool)
	if _, hasEmail := profile.Schema().Field(EmailField); hasEmail {
		if emails := distinctValues(rows, EmailField); len(emails) > 0 {
			owners, err := store.FindByEmails(ctx, tenantID, emails)
			if err != nil {
				return nil, fmt.Errorf("find existing emails: %w", err)
			}
			for _, rec := range owners {
				takenEmails[strings.ToLower(rec.Email)] = true
			}
		}
	}

	var errs []ValidationError
	for _, row := range rows {
		key := row.Get(keyField)
		if takenKeys[key] {
			errs = append(errs, RowError(row, ErrorBusinessConflict, keyField,
				fmt.Sprintf("%s already exists: %s", keyLabel, key), key))
		}
		if email := row.Get(EmailField); email != "" && takenEmails[strings.ToLower(email)] {
			errs = append(errs, RowError(row, ErrorBusinessConflict, EmailField,
				fmt.Sprintf("Email already exists: %s", email), email))
		}
	}
	return errs, nil
}

// Attributes copies the row values not listed in exclude, skipping empties.
func Attributes(row ImportRow, exclude ...string) map[string]string {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}
	attrs := make(map[string]string)
	for k, v := range row.Values {
		if !skip[k] && v != "" {
			attrs[k] = v
		}
	}
	return attrs
}

// DefaultCredential is the deterministic initial credential for a business
// key. Records created with it are always flagged MustChangePassword.
func DefaultCredential(businessKey string) string {
	return businessKey + "@123"
}

func distinctValues(rows []ImportRow, field string) []string {
	seen := make(map[string]bool, len(rows))
	var out []string
	for _, row := range rows {
		v := row.Get(field)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
