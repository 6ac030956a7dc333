package web

// handlers_import.go serves the preview/commit protocol and templates.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/rosterimport/internal/core"
	"github.com/JonMunkholm/rosterimport/internal/ingest"
	"github.com/JonMunkholm/rosterimport/internal/logging"
)

// multipartMemory is how much of a multipart upload is held in memory
// before spilling to temporary files.
const multipartMemory = 8 << 20

// previewRequest is the JSON form of a preview: rows already parsed by the
// client.
type previewRequest struct {
	Rows []map[string]string `json:"rows"`
}

// commitRequest carries validData from a preview back unchanged.
// SkipErrors defaults to true when absent.
type commitRequest struct {
	ValidData  []core.ImportRow `json:"validData"`
	SkipErrors *bool            `json:"skipErrors"`
}

// commitHaltedResponse is returned with 422 when a commit with
// skipErrors=false stops at a failing row.
type commitHaltedResponse struct {
	Result     core.ImportResult `json:"result"`
	Error      string            `json:"error"`
	NaturalKey string            `json:"naturalKey"`
	Row        int               `json:"row,omitempty"`
}

// handleKinds lists the importable entity kinds.
func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"kinds": s.service.Kinds()})
}

// handleTemplate serves the import template of a kind as JSON, CSV or XLSX.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	kind := core.Kind(chi.URLParam(r, "kind"))
	tmpl, err := s.service.Template(kind)
	if err != nil {
		respondError(w, r, err)
		return
	}

	format := ingest.Format(strings.ToLower(r.URL.Query().Get("format")))
	if format == "" {
		format = ingest.FormatJSON
	}

	var buf bytes.Buffer
	switch format {
	case ingest.FormatJSON:
		writeJSON(w, tmpl)
		return
	case ingest.FormatCSV:
		err = ingest.WriteTemplateCSV(&buf, tmpl)
	case ingest.FormatXLSX:
		err = ingest.WriteTemplateXLSX(&buf, tmpl)
	default:
		respondError(w, r, fmt.Errorf("%w: %q", ingest.ErrUnsupportedFormat, format))
		return
	}
	if err != nil {
		respondError(w, r, fmt.Errorf("render %s template: %w", format, err))
		return
	}

	w.Header().Set("Content-Type", ingest.ContentType(format))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": ingest.TemplateFilename(kind, format),
	}))
	_, _ = w.Write(buf.Bytes())
}

// handlePreview validates an uploaded file or a JSON row array without
// writing anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	kind := core.Kind(chi.URLParam(r, "kind"))
	tenantID := core.TenantFromContext(r.Context())

	rows, err := s.readPreviewRows(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.service.Preview(r.Context(), tenantID, kind, rows)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// readPreviewRows accepts multipart/form-data with a "file" part, or JSON.
func (s *Server) readPreviewRows(w http.ResponseWriter, r *http.Request) ([]map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req previewRequest
		if err := decodeJSON(r.Body, &req); err != nil {
			return nil, err
		}
		return req.Rows, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, bodyError(err)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, errNoFile
	}
	if err != nil {
		return nil, bodyError(err)
	}
	defer file.Close()

	logging.FromContext(r.Context()).Debug("preview upload",
		"filename", header.Filename,
		"size", header.Size)

	return ingest.Read(header.Filename, file)
}

// handleCommit creates records from a preview's validData.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	kind := core.Kind(chi.URLParam(r, "kind"))
	tenantID := core.TenantFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	var req commitRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		respondError(w, r, err)
		return
	}
	opts := core.CommitOptions{StopOnError: req.SkipErrors != nil && !*req.SkipErrors}

	result, err := s.service.Commit(r.Context(), tenantID, kind, req.ValidData, opts)
	var halted *core.PersistenceError
	switch {
	case errors.As(err, &halted):
		writeJSONStatus(w, http.StatusUnprocessableEntity, commitHaltedResponse{
			Result:     result,
			Error:      halted.Error(),
			NaturalKey: halted.NaturalKey,
			Row:        halted.Row,
		})
	case err != nil:
		respondError(w, r, err)
	default:
		writeJSON(w, result)
	}
}

// handleHistory lists the tenant's most recent commits.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", core.DefaultHistoryLimit)
	if limit > 100 {
		limit = 100
	}
	runs, err := s.service.History(r.Context(), core.TenantFromContext(r.Context()), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []core.ImportRun{}
	}
	writeJSON(w, map[string]any{"runs": runs})
}

// decodeJSON decodes one JSON value from body.
func decodeJSON(body io.Reader, v any) error {
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return bodyError(err)
	}
	return nil
}

// bodyError classifies a failure to read the request body.
func bodyError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large") {
		return fmt.Errorf("%w: %w", errFileTooBig, err)
	}
	return fmt.Errorf("%w: %w", errBadRequest, err)
}
