package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrDuplicateKey is matched by every store error caused by a uniqueness
// constraint. Use errors.Is.
var ErrDuplicateKey = errors.New("duplicate key")

// Constraint names reported in DuplicateKeyError.
const (
	ConstraintBusinessKey = "business_key"
	ConstraintEmail       = "email"
	ConstraintClass       = "class_section"
)

// DuplicateKeyError reports which uniqueness constraint rejected a write.
type DuplicateKeyError struct {
	Constraint string
	Value      string
	Err        error // driver error, may be nil
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key: %s %q already exists", e.Constraint, e.Value)
}

// Is makes errors.Is(err, ErrDuplicateKey) true.
func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

func (e *DuplicateKeyError) Unwrap() error {
	return e.Err
}

// Store is the entity store the pipeline reads from and writes to.
// Every method is scoped to one tenant.
type Store interface {
	// FindExisting returns records of kind whose business key is in keys.
	FindExisting(ctx context.Context, tenantID string, kind Kind, keys []string) ([]EntityRecord, error)

	// FindByEmails returns records of any kind whose email is in emails.
	FindByEmails(ctx context.Context, tenantID string, emails []string) ([]EntityRecord, error)

	// ListClassSections returns all class sections, active or not.
	ListClassSections(ctx context.Context, tenantID string) ([]ClassSection, error)

	// Create persists rec. Uniqueness violations return a *DuplicateKeyError.
	Create(ctx context.Context, rec EntityRecord) (EntityRecord, error)

	// CreateClassSection persists cs. A duplicate class/section returns a *DuplicateKeyError.
	CreateClassSection(ctx context.Context, cs ClassSection) (ClassSection, error)

	// RecordImportRun appends an audit row for a finished commit.
	RecordImportRun(ctx context.Context, run ImportRun) error

	// ListImportRuns returns up to limit runs, newest first.
	ListImportRuns(ctx context.Context, tenantID string, limit int) ([]ImportRun, error)
}
