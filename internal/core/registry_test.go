package core

import (
	"reflect"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// ============================================================================
// Registry Tests
// ============================================================================

type otherProfile struct{ memberProfile }

func (otherProfile) Kind() Kind { return "alumni" }

func TestRegistry(t *testing.T) {
	r := NewRegistry(memberProfile{}, otherProfile{})

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	if _, ok := r.Get(kindMember); !ok {
		t.Error("Get(member) not found")
	}
	if _, ok := r.Get("nobody"); ok {
		t.Error("Get(nobody) should not be found")
	}

	all := r.All()
	if all[0].Kind() != "alumni" || all[1].Kind() != kindMember {
		t.Errorf("All() not sorted by kind: %s, %s", all[0].Kind(), all[1].Kind())
	}
}

func TestRegistry_PanicsOnDuplicateKind(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for duplicate registration")
		}
	}()
	NewRegistry(memberProfile{}, memberProfile{})
}

// ============================================================================
// Template Tests
// ============================================================================

func TestGenerateTemplate(t *testing.T) {
	tmpl := GenerateTemplate(memberProfile{})

	if tmpl.Kind != kindMember {
		t.Errorf("Kind = %q", tmpl.Kind)
	}
	wantHeaders := []string{"code", "name", "email", "phone", "joined", "fee", "level"}
	if !reflect.DeepEqual(tmpl.Headers, wantHeaders) {
		t.Errorf("Headers = %v, want %v", tmpl.Headers, wantHeaders)
	}
	if tmpl.Sample["code"] != "M001" {
		t.Errorf("Sample[code] = %q", tmpl.Sample["code"])
	}
	if got := tmpl.SampleRow(); got[0] != "M001" || got[1] != "Asha Rao" || len(got) != len(wantHeaders) {
		t.Errorf("SampleRow() = %v", got)
	}

	if !reflect.DeepEqual(tmpl, GenerateTemplate(memberProfile{})) {
		t.Error("template is not stable across calls")
	}
}

func TestGenerateTemplate_SampleRowValidates(t *testing.T) {
	tmpl := GenerateTemplate(memberProfile{})
	res := SchemaValidator{Now: fixedNow}.Validate(NewImportRows([]map[string]string{tmpl.Sample}), memberSchema)
	if len(res.Errors) != 0 {
		t.Errorf("template sample does not validate: %v", res.Errors)
	}
}

// ============================================================================
// Credential Tests
// ============================================================================

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}

	hash, err := h.Hash(DefaultCredential("S100"))
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	if hash == "S100@123" {
		t.Fatal("credential stored in plain text")
	}
	if !VerifyCredential(hash, "S100@123") {
		t.Error("VerifyCredential() rejected the right credential")
	}
	if VerifyCredential(hash, "S100@124") {
		t.Error("VerifyCredential() accepted the wrong credential")
	}
}

func TestBcryptHasher_InvalidCost(t *testing.T) {
	if _, err := (BcryptHasher{Cost: 99}).Hash("x"); err == nil {
		t.Error("expected error for cost above bcrypt.MaxCost")
	}
}
