package profiles

import (
	"context"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

// KindEmployee is the entity kind of staff imports.
const KindEmployee core.Kind = "employee"

// FieldEmployeeID is the business key of employees.
const FieldEmployeeID = "employeeId"

var roles = []string{"Teacher", "Admin", "Accountant", "Librarian", "Driver", "Staff"}

// Employee imports teaching and non-teaching staff.
type Employee struct {
	schema core.Schema
}

// NewEmployee builds the employee profile.
func NewEmployee() *Employee {
	return &Employee{schema: core.NewSchema(
		identifierField(FieldEmployeeID, "Employee ID", "EMP001"),
		nameField("firstName", "First name", true, "Meera"),
		nameField("lastName", "Last name", false, "Iyer"),
		emailField("meera.iyer@example.com"),
		phoneField("phone", "Phone", "9876512345"),
		enumField("role", "Role", true, roles, "Teacher"),
		textField("department", "Department", 50, "Science"),
		textField("designation", "Designation", 50, "Senior Teacher"),
		pastDateField("dateOfJoining", "Date of joining", "2019-06-03"),
		pastDateField("dateOfBirth", "Date of birth", "1988-11-23"),
		enumField("gender", "Gender", false, genders, "Female"),
		enumField("bloodGroup", "Blood group", false, bloodGroups, "B+"),
		core.FieldSpec{Name: "salary", Label: "Salary", Type: core.FieldNumeric, NonNegative: true, Example: "45000.00"},
		textField("address", "Address", 250, "4 Residency Road, Bengaluru"),
		pincodeField(),
	)}
}

func (p *Employee) Kind() core.Kind        { return KindEmployee }
func (p *Employee) Label() string          { return "Employee" }
func (p *Employee) Schema() core.Schema    { return p.schema }
func (p *Employee) UniqueKeyField() string { return FieldEmployeeID }
func (p *Employee) DefaultCredential(row core.ImportRow) string {
	return core.DefaultCredential(row.Get(FieldEmployeeID))
}

// CheckBusinessRules checks employee IDs and emails for conflicts with
// existing records, in at most two store queries.
func (p *Employee) CheckBusinessRules(ctx context.Context, store core.Store, tenantID string, rows []core.ImportRow) ([]core.ValidationError, error) {
	return core.CheckStoreConflicts(ctx, store, tenantID, p, rows)
}

// NewRecordBuilder needs no reference data for employees.
func (p *Employee) NewRecordBuilder(ctx context.Context, store core.Store, tenantID string) (core.RecordBuilder, error) {
	return core.RecordBuilderFunc(func(row core.ImportRow) (core.EntityRecord, error) {
		attrs := core.Attributes(row, FieldEmployeeID, "firstName", "lastName", core.EmailField, "phone")
		if salary, ok := core.ParseDecimal(row.Get("salary")); ok {
			attrs["salary"] = salary.StringFixed(2)
		}
		return core.EntityRecord{
			DisplayName: core.DisplayName(row.Get("firstName"), row.Get("lastName")),
			Email:       row.Get(core.EmailField),
			Phone:       row.Get("phone"),
			Attributes:  attrs,
		}, nil
	}), nil
}
