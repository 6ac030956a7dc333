package profiles

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

// KindStudent is the entity kind of student imports.
const KindStudent core.Kind = "student"

// Student field names.
const (
	FieldAdmissionNumber = "admissionNumber"
	FieldClass           = "class"
	FieldSection         = "section"
)

// ClassSectionField is the error field for rows whose class/section pair is
// unknown to the tenant.
const ClassSectionField = "class/section"

// Student imports students into existing class sections.
type Student struct {
	schema core.Schema
}

// NewStudent builds the student profile.
func NewStudent() *Student {
	return &Student{schema: core.NewSchema(
		identifierField(FieldAdmissionNumber, "Admission number", "S100"),
		nameField("firstName", "First name", true, "Asha"),
		nameField("lastName", "Last name", false, "Rao"),
		core.FieldSpec{Name: FieldClass, Label: "Class", Type: core.FieldText, Required: true, MaxLen: 10, Example: "10"},
		core.FieldSpec{Name: FieldSection, Label: "Section", Type: core.FieldText, Required: true, MaxLen: 5, Normalize: core.NormalizeUpper, Example: "A"},
		pastDateField("dateOfBirth", "Date of birth", "2010-05-14"),
		enumField("gender", "Gender", false, genders, "Female"),
		emailField("asha.rao@example.com"),
		phoneField("phone", "Phone", "9876543210"),
		nameField("parentName", "Parent name", false, "Ravi Rao"),
		phoneField("parentPhone", "Parent phone", "9876501234"),
		textField("address", "Address", 250, "12 MG Road, Bengaluru"),
		pincodeField(),
		enumField("bloodGroup", "Blood group", false, bloodGroups, "O+"),
		textField("rollNumber", "Roll number", 10, "12"),
		pastDateField("admissionDate", "Admission date", "2024-06-01"),
	)}
}

func (p *Student) Kind() core.Kind        { return KindStudent }
func (p *Student) Label() string          { return "Student" }
func (p *Student) Schema() core.Schema    { return p.schema }
func (p *Student) UniqueKeyField() string { return FieldAdmissionNumber }
func (p *Student) DefaultCredential(row core.ImportRow) string {
	return core.DefaultCredential(row.Get(FieldAdmissionNumber))
}

// CheckBusinessRules resolves each row's class/section and checks admission
// numbers and emails for conflicts. It issues at most three store queries.
func (p *Student) CheckBusinessRules(ctx context.Context, store core.Store, tenantID string, rows []core.ImportRow) ([]core.ValidationError, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	sections, err := loadClassSections(ctx, store, tenantID)
	if err != nil {
		return nil, err
	}

	var errs []core.ValidationError
	for _, row := range rows {
		class, section := row.Get(FieldClass), row.Get(FieldSection)
		if _, ok := sections[classSectionKey(class, section)]; !ok {
			errs = append(errs, core.RowError(row, core.ErrorBusinessConflict, ClassSectionField,
				fmt.Sprintf("Class %s / section %s does not exist", class, section),
				class+"/"+section))
		}
	}

	conflicts, err := core.CheckStoreConflicts(ctx, store, tenantID, p, rows)
	if err != nil {
		return nil, err
	}
	return append(errs, conflicts...), nil
}

// NewRecordBuilder loads the tenant's class sections once for the commit.
func (p *Student) NewRecordBuilder(ctx context.Context, store core.Store, tenantID string) (core.RecordBuilder, error) {
	sections, err := loadClassSections(ctx, store, tenantID)
	if err != nil {
		return nil, err
	}

	return core.RecordBuilderFunc(func(row core.ImportRow) (core.EntityRecord, error) {
		class, section := row.Get(FieldClass), row.Get(FieldSection)
		cs, ok := sections[classSectionKey(class, section)]
		if !ok {
			return core.EntityRecord{}, fmt.Errorf("class %s / section %s does not exist", class, section)
		}
		return core.EntityRecord{
			DisplayName:    core.DisplayName(row.Get("firstName"), row.Get("lastName")),
			Email:          row.Get(core.EmailField),
			Phone:          row.Get("phone"),
			ClassSectionID: cs.ID,
			Attributes: core.Attributes(row,
				FieldAdmissionNumber, "firstName", "lastName", core.EmailField, "phone", FieldClass, FieldSection),
		}, nil
	}), nil
}

// loadClassSections returns the tenant's active class sections keyed by
// classSectionKey.
func loadClassSections(ctx context.Context, store core.Store, tenantID string) (map[string]core.ClassSection, error) {
	list, err := store.ListClassSections(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list class sections: %w", err)
	}
	out := make(map[string]core.ClassSection, len(list))
	for _, cs := range list {
		if cs.Active {
			out[classSectionKey(cs.Class, cs.Section)] = cs
		}
	}
	return out, nil
}

func classSectionKey(class, section string) string {
	return strings.ToLower(strings.TrimSpace(class)) + "/" + strings.ToLower(strings.TrimSpace(section))
}
