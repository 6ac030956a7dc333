package profiles

import (
	"regexp"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

// identifierPattern accepts the codes schools print on ID cards: letters,
// digits, slash and dash, after upper-casing.
var identifierPattern = regexp.MustCompile(`^[A-Z0-9/-]+$`)

var (
	genders     = []string{"Male", "Female", "Other"}
	bloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
)

func identifierField(name, label, example string) core.FieldSpec {
	return core.FieldSpec{
		Name:      name,
		Label:     label,
		Type:      core.FieldText,
		Required:  true,
		Normalize: core.NormalizeUpper,
		MaxLen:    20,
		Pattern:   identifierPattern,
		Message:   label + " may only contain letters, digits, '/' and '-'",
		Example:   example,
	}
}

func nameField(name, label string, required bool, example string) core.FieldSpec {
	return core.FieldSpec{Name: name, Label: label, Type: core.FieldText, Required: required, MaxLen: 50, Example: example}
}

func textField(name, label string, maxLen int, example string) core.FieldSpec {
	return core.FieldSpec{Name: name, Label: label, Type: core.FieldText, MaxLen: maxLen, Example: example}
}

func emailField(example string) core.FieldSpec {
	return core.FieldSpec{Name: core.EmailField, Label: "Email", Type: core.FieldEmail, MaxLen: 254, Example: example}
}

func phoneField(name, label, example string) core.FieldSpec {
	return core.FieldSpec{Name: name, Label: label, Type: core.FieldPhone, Example: example}
}

func pincodeField() core.FieldSpec {
	return core.FieldSpec{
		Name:    "pincode",
		Label:   "Pincode",
		Type:    core.FieldText,
		Pattern: core.PincodePattern,
		Message: "Pincode must be a 6-digit number",
		Example: "560001",
	}
}

// pastDateField is a date that cannot be in the future, like a birth date.
func pastDateField(name, label, example string) core.FieldSpec {
	return core.FieldSpec{Name: name, Label: label, Type: core.FieldDate, NotFuture: true, Example: example}
}

func enumField(name, label string, required bool, values []string, example string) core.FieldSpec {
	return core.FieldSpec{Name: name, Label: label, Type: core.FieldEnum, Required: required, EnumValues: values, Example: example}
}
