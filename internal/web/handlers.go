package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// classSectionRequest seeds a class/section students can be enrolled into.
type classSectionRequest struct {
	Class   string `json:"class" validate:"required,max=20"`
	Section string `json:"section" validate:"required,max=10"`
}

// healthResponse reports liveness and commit slot usage.
type healthResponse struct {
	Status  string                   `json:"status"`
	Imports core.ImportLimiterStatus `json:"imports"`
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, healthResponse{Status: "ok", Imports: s.service.LimiterStatus()})
}

// handleListClassSections lists the tenant's class sections.
func (s *Server) handleListClassSections(w http.ResponseWriter, r *http.Request) {
	sections, err := s.service.ClassSections(r.Context(), core.TenantFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if sections == nil {
		sections = []core.ClassSection{}
	}
	writeJSON(w, map[string]any{"classSections": sections})
}

// handleCreateClassSection adds a class section for the tenant.
func (s *Server) handleCreateClassSection(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req classSectionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		respondError(w, r, err)
		return
	}
	req.Class = strings.TrimSpace(req.Class)
	req.Section = strings.TrimSpace(req.Section)
	if err := validate.Struct(req); err != nil {
		respondError(w, r, fmt.Errorf("%w: %s", errBadRequest, describeValidation(err)))
		return
	}

	cs, err := s.service.CreateClassSection(r.Context(), core.TenantFromContext(r.Context()), req.Class, req.Section)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, cs)
}

// describeValidation flattens validator errors into "field: rule" pairs.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		parts[i] = strings.ToLower(fe.Field()) + ": " + fe.Tag()
	}
	return strings.Join(parts, ", ")
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
