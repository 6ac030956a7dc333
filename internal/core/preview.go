package core

import (
	"context"
	"fmt"
	"strings"
)

// DefaultPreviewSampleSize is how many valid rows a preview echoes back.
const DefaultPreviewSampleSize = 10

// MessageEmptyFile is returned in an unsuccessful preview of zero rows.
const MessageEmptyFile = "File is empty"

// AssembleInput gathers the outputs of the preview stages.
type AssembleInput struct {
	Schema          SchemaResult
	KeyField        string
	KeyLabel        string
	Duplicates      []string
	DuplicateEmails []string
	Business        []ValidationError
	SampleSize      int
}

// Assemble merges the preview stages into one PreviewResult.
//
// The committable set is the schema-valid rows minus rows with a business
// error minus every copy of a key or email repeated in the file. Errors are
// schema errors, then business errors, then one file-level error per
// duplicated key and per duplicated email.
func Assemble(in AssembleInput) PreviewResult {
	flagged := make(map[string]bool, len(in.Business))
	for _, e := range in.Business {
		if e.RowID != "" {
			flagged[e.RowID] = true
		}
	}
	duplicated := make(map[string]bool, len(in.Duplicates))
	for _, v := range in.Duplicates {
		duplicated[v] = true
	}
	sharedEmail := make(map[string]bool, len(in.DuplicateEmails))
	for _, v := range in.DuplicateEmails {
		sharedEmail[v] = true
	}

	valid := make([]ImportRow, 0, len(in.Schema.Valid))
	for _, row := range in.Schema.Valid {
		if flagged[row.ID] || duplicated[row.Get(in.KeyField)] || sharedEmail[row.Get(EmailField)] {
			continue
		}
		valid = append(valid, row)
	}

	dupCount := len(in.Duplicates) + len(in.DuplicateEmails)
	errs := make([]ValidationError, 0, len(in.Schema.Errors)+len(in.Business)+dupCount)
	errs = append(errs, in.Schema.Errors...)
	errs = append(errs, in.Business...)
	label := in.KeyLabel
	if label == "" {
		label = in.KeyField
	}
	for _, v := range in.Duplicates {
		errs = append(errs, FileError(ErrorDuplicateInBatch, in.KeyField,
			fmt.Sprintf("Duplicate %s in file: %s", lowerFirst(label), v), v))
	}
	for _, v := range in.DuplicateEmails {
		errs = append(errs, FileError(ErrorDuplicateInBatch, EmailField,
			fmt.Sprintf("Duplicate email in file: %s", v), v))
	}

	sampleSize := in.SampleSize
	if sampleSize <= 0 {
		sampleSize = DefaultPreviewSampleSize
	}
	sample := valid
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}

	total := in.Schema.Total()
	return PreviewResult{
		Success: true,
		Message: fmt.Sprintf("%d of %d rows are ready to import", len(valid), total),
		Summary: PreviewSummary{
			TotalRows:        total,
			ValidRows:        len(valid),
			InvalidRows:      total - len(valid),
			DuplicatesInFile: dupCount,
		},
		Errors:    errs,
		Preview:   sample,
		ValidData: valid,
	}
}

// lowerFirst lowercases a label for use mid-sentence, leaving acronyms alone
// ("Admission number" -> "admission number", "Employee ID" -> "employee ID").
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	first, rest, _ := strings.Cut(s, " ")
	if strings.ToUpper(first) == first && len(first) > 1 {
		return s
	}
	first = strings.ToLower(first)
	if rest == "" {
		return first
	}
	return first + " " + rest
}

// Previewer runs the read-only preview phase.
type Previewer struct {
	Store      Store
	Validator  SchemaValidator
	SampleSize int
}

// Preview validates rows for profile and tenant without writing anything.
// An empty batch yields an unsuccessful result, not an error.
func (p Previewer) Preview(ctx context.Context, profile EntityImportProfile, tenantID string, rows []ImportRow) (PreviewResult, error) {
	logger := importLogger(ctx, tenantID, profile.Kind())

	if len(rows) == 0 {
		logger.Debug("import phase", "phase", PhaseEmpty)
		return PreviewResult{
			Success:   false,
			Message:   MessageEmptyFile,
			Errors:    []ValidationError{},
			Preview:   []ImportRow{},
			ValidData: []ImportRow{},
		}, nil
	}
	logger.Debug("import phase", "phase", PhaseParsed, "rows", len(rows))

	schema := profile.Schema()
	checked := p.Validator.Validate(rows, schema)
	logger.Debug("import phase", "phase", PhaseSchemaValidated,
		"valid", len(checked.Valid), "invalid", len(checked.Invalid))

	keyField := profile.UniqueKeyField()
	duplicates := FindDuplicates(checked.Valid, keyField)
	var duplicateEmails []string
	if _, ok := schema.Field(EmailField); ok && keyField != EmailField {
		// Emails are lower-cased by schema validation.
		duplicateEmails = FindDuplicates(checked.Valid, EmailField)
	}

	business, err := profile.CheckBusinessRules(ctx, p.Store, tenantID, checked.Valid)
	if err != nil {
		return PreviewResult{}, fmt.Errorf("check %s business rules: %w", profile.Kind(), err)
	}
	logger.Debug("import phase", "phase", PhaseBusinessValidated,
		"conflicts", len(business), "duplicates", len(duplicates)+len(duplicateEmails))

	result := Assemble(AssembleInput{
		Schema:          checked,
		KeyField:        keyField,
		KeyLabel:        schema.Label(keyField),
		Duplicates:      duplicates,
		DuplicateEmails: duplicateEmails,
		Business:        business,
		SampleSize:      p.SampleSize,
	})
	logger.Debug("import phase", "phase", PhasePreviewed,
		"total", result.Summary.TotalRows, "valid", result.Summary.ValidRows)

	return result, nil
}
