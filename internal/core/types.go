package core

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies an entity kind handled by the pipeline ("student", "employee").
type Kind string

// ImportRow is one raw spreadsheet row. Values are untyped strings keyed by
// field name; typing happens during schema validation.
type ImportRow struct {
	ID     string            `json:"id"`
	Line   int               `json:"row"`
	Values map[string]string `json:"values"`
}

// NewImportRows attaches a stable ID and a 1-based display line to each raw row.
func NewImportRows(raw []map[string]string) []ImportRow {
	rows := make([]ImportRow, len(raw))
	for i, values := range raw {
		copied := make(map[string]string, len(values))
		for k, v := range values {
			copied[k] = v
		}
		rows[i] = ImportRow{
			ID:     uuid.NewString(),
			Line:   i + 1,
			Values: copied,
		}
	}
	return rows
}

// Get returns the value of field, or "" when absent.
func (r ImportRow) Get(field string) string {
	return r.Values[field]
}

// ensureRowIdentity fills in IDs and lines for rows that arrive without them,
// as happens when a client builds a commit payload by hand.
func ensureRowIdentity(rows []ImportRow) []ImportRow {
	out := make([]ImportRow, len(rows))
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		if row.ID == "" || seen[row.ID] {
			row.ID = uuid.NewString()
		}
		if row.Line <= 0 {
			row.Line = i + 1
		}
		seen[row.ID] = true
		out[i] = row
	}
	return out
}

// ErrorKind classifies a row or file problem.
type ErrorKind string

const (
	ErrorStructural       ErrorKind = "structural"
	ErrorDuplicateInBatch ErrorKind = "duplicate_in_batch"
	ErrorBusinessConflict ErrorKind = "business_conflict"
	ErrorPersistence      ErrorKind = "persistence"
)

// PreviewSummary holds the preview counts.
// ValidRows + InvalidRows always equals TotalRows.
type PreviewSummary struct {
	TotalRows        int `json:"totalRows"`
	ValidRows        int `json:"validRows"`
	InvalidRows      int `json:"invalidRows"`
	DuplicatesInFile int `json:"duplicatesInFile"`
}

// PreviewResult is the outcome of a preview. ValidData is the complete set the
// caller sends back to commit; Preview is a short sample of it.
type PreviewResult struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message,omitempty"`
	Summary   PreviewSummary    `json:"summary"`
	Errors    []ValidationError `json:"errors"`
	Preview   []ImportRow       `json:"preview"`
	ValidData []ImportRow       `json:"validData"`
}

// CommitOptions controls the commit failure policy. The zero value continues
// past failing rows.
type CommitOptions struct {
	// StopOnError halts at the first failing row and returns its error along
	// with the partial result. Rows created before it are kept.
	StopOnError bool
}

// ImportStatus is the terminal state of a commit.
type ImportStatus string

const (
	StatusCommitted ImportStatus = "committed"
	StatusPartial   ImportStatus = "partial"
)

// ImportFailure describes one row that was not created.
type ImportFailure struct {
	NaturalKey string `json:"naturalKey"`
	Row        int    `json:"row,omitempty"`
	Error      string `json:"error"`
}

// ImportResult is the outcome of a commit. Updated is always zero: imports
// only create records.
type ImportResult struct {
	Created int             `json:"created"`
	Updated int             `json:"updated"`
	Failed  int             `json:"failed"`
	Errors  []ImportFailure `json:"errors"`
	Status  ImportStatus    `json:"status"`
}

// EntityRecord is a persisted entity. BusinessKey is unique per tenant and kind.
type EntityRecord struct {
	ID                 string            `json:"id"`
	TenantID           string            `json:"tenantId"`
	Kind               Kind              `json:"kind"`
	BusinessKey        string            `json:"businessKey"`
	DisplayName        string            `json:"displayName"`
	Email              string            `json:"email,omitempty"`
	Phone              string            `json:"phone,omitempty"`
	ClassSectionID     string            `json:"classSectionId,omitempty"`
	Attributes         map[string]string `json:"attributes,omitempty"`
	PasswordHash       string            `json:"-"`
	MustChangePassword bool              `json:"mustChangePassword"`
	CreatedAt          time.Time         `json:"createdAt"`
}

// ClassSection is a class/section pair students are enrolled into.
type ClassSection struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Class     string    `json:"class"`
	Section   string    `json:"section"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// Template is the reference layout for an entity kind.
type Template struct {
	Kind    Kind              `json:"kind"`
	Headers []string          `json:"headers"`
	Sample  map[string]string `json:"sample"`
}

// KindInfo describes a registered entity kind.
type KindInfo struct {
	Kind     Kind     `json:"kind"`
	Label    string   `json:"label"`
	KeyField string   `json:"keyField"`
	Required []string `json:"required"`
	Headers  []string `json:"headers"`
}

// Phase is a step of the per-invocation import state machine.
type Phase string

const (
	PhaseEmpty             Phase = "EMPTY"
	PhaseParsed            Phase = "PARSED"
	PhaseSchemaValidated   Phase = "SCHEMA_VALIDATED"
	PhaseBusinessValidated Phase = "BUSINESS_VALIDATED"
	PhasePreviewed         Phase = "PREVIEWED"
	PhaseCommitting        Phase = "COMMITTING"
	PhaseCommitted         Phase = "COMMITTED"
	PhaseCommitPartial     Phase = "COMMIT_PARTIAL"
)

// ImportRun is the audit row written after each commit.
type ImportRun struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	Kind       Kind      `json:"kind"`
	Phase      Phase     `json:"phase"`
	TotalRows  int       `json:"totalRows"`
	Created    int       `json:"created"`
	Failed     int       `json:"failed"`
	SourceIP   string    `json:"sourceIp,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}
