package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/rosterimport/internal/config"
)

// DefaultImportTimeout bounds a single preview or commit.
var DefaultImportTimeout = 5 * time.Minute

// DefaultMaxRows is the largest batch accepted by Preview.
const DefaultMaxRows = 5000

var (
	ErrUnknownKind    = errors.New("unknown entity kind")
	ErrTenantRequired = errors.New("tenant is required")
	ErrTooManyRows    = errors.New("too many rows")
)

// Options configures a Service. Zero fields take the package defaults.
type Options struct {
	MaxRows       int
	SampleSize    int
	MaxConcurrent int
	MaxWait       time.Duration
	Timeout       time.Duration
	Hasher        CredentialHasher
	Now           func() time.Time
}

// OptionsFromConfig maps the import settings onto service options.
func OptionsFromConfig(cfg config.ImportConfig) Options {
	return Options{
		MaxRows:       cfg.MaxRows,
		SampleSize:    cfg.PreviewSampleSize,
		MaxConcurrent: cfg.MaxConcurrent,
		MaxWait:       cfg.MaxWaitTime,
		Timeout:       cfg.Timeout,
		Hasher:        BcryptHasher{Cost: cfg.CredentialCost},
	}
}

// Service runs previews and commits for every registered entity kind.
// It is safe for concurrent use and keeps no state between calls besides
// the commit limiter.
type Service struct {
	store    Store
	registry *Registry
	limiter  *ImportLimiter

	previewer Previewer
	executor  Executor
	maxRows   int
	timeout   time.Duration
	now       func() time.Time
}

// NewService creates a Service over store for the kinds in registry.
func NewService(store Store, registry *Registry, opts Options) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if registry == nil || registry.Len() == 0 {
		return nil, errors.New("at least one import profile is required")
	}

	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultImportTimeout
	}
	if opts.Hasher == nil {
		opts.Hasher = BcryptHasher{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	validator := SchemaValidator{Now: opts.Now}
	return &Service{
		store:    store,
		registry: registry,
		limiter:  NewImportLimiter(opts.MaxConcurrent, opts.MaxWait),
		previewer: Previewer{
			Store:      store,
			Validator:  validator,
			SampleSize: opts.SampleSize,
		},
		executor: Executor{
			Store:     store,
			Hasher:    opts.Hasher,
			Validator: validator,
			Now:       opts.Now,
		},
		maxRows: opts.MaxRows,
		timeout: opts.Timeout,
		now:     opts.Now,
	}, nil
}

// Kinds describes every registered kind.
func (s *Service) Kinds() []KindInfo {
	profiles := s.registry.All()
	infos := make([]KindInfo, len(profiles))
	for i, p := range profiles {
		schema := p.Schema()
		infos[i] = KindInfo{
			Kind:     p.Kind(),
			Label:    p.Label(),
			KeyField: p.UniqueKeyField(),
			Required: schema.Required(),
			Headers:  schema.Headers(),
		}
	}
	return infos
}

// Profile returns the import profile of kind.
func (s *Service) Profile(kind Kind) (EntityImportProfile, error) {
	p, ok := s.registry.Get(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return p, nil
}

// Template returns the reference layout of kind.
func (s *Service) Template(kind Kind) (Template, error) {
	p, err := s.Profile(kind)
	if err != nil {
		return Template{}, err
	}
	return GenerateTemplate(p), nil
}

// Preview validates raw spreadsheet rows for kind without writing anything.
// Header keys are matched to schema fields loosely ("Admission Number" is
// admissionNumber) before validation.
func (s *Service) Preview(ctx context.Context, tenantID string, kind Kind, raw []map[string]string) (PreviewResult, error) {
	profile, err := s.resolve(tenantID, kind)
	if err != nil {
		return PreviewResult{}, err
	}
	if len(raw) > s.maxRows {
		return PreviewResult{}, fmt.Errorf("%w: %d exceeds the limit of %d", ErrTooManyRows, len(raw), s.maxRows)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	schema := profile.Schema()
	canonical := make([]map[string]string, len(raw))
	for i, values := range raw {
		canonical[i] = schema.Canonicalize(values)
	}

	result, err := s.previewer.Preview(ctx, profile, tenantID, NewImportRows(canonical))
	phaseDuration.WithLabelValues(string(kind), "preview").Observe(time.Since(start).Seconds())
	if err != nil {
		return PreviewResult{}, err
	}

	rowsValidated.WithLabelValues(string(kind), "valid").Add(float64(result.Summary.ValidRows))
	rowsValidated.WithLabelValues(string(kind), "invalid").Add(float64(result.Summary.InvalidRows))

	importLogger(ctx, tenantID, kind).Info("preview complete",
		"total", result.Summary.TotalRows,
		"valid", result.Summary.ValidRows,
		"duplicates", result.Summary.DuplicatesInFile,
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

// Commit creates records for rows, normally the ValidData of a preview.
//
// Once a commit slot is acquired the loop runs to completion even if ctx is
// cancelled, bounded by the import timeout, so a dropped connection never
// leaves an import half-way through a row.
func (s *Service) Commit(ctx context.Context, tenantID string, kind Kind, rows []ImportRow, opts CommitOptions) (ImportResult, error) {
	profile, err := s.resolve(tenantID, kind)
	if err != nil {
		return ImportResult{}, err
	}
	if len(rows) > s.maxRows {
		return ImportResult{}, fmt.Errorf("%w: %d exceeds the limit of %d", ErrTooManyRows, len(rows), s.maxRows)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return ImportResult{}, err
	}
	defer s.limiter.Release()

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	start := time.Now()
	logger := importLogger(ctx, tenantID, kind)
	logger.Info("commit started", "rows", len(rows), "stop_on_error", opts.StopOnError)

	result, err := s.executor.Execute(commitCtx, profile, tenantID, rows, opts)
	phaseDuration.WithLabelValues(string(kind), "commit").Observe(time.Since(start).Seconds())

	logger.Info("commit finished",
		"status", result.Status,
		"created", result.Created,
		"failed", result.Failed,
		"duration_ms", time.Since(start).Milliseconds())

	return result, err
}

// CreateClassSection adds a class/section pair for tenantID. Section is stored
// upper-cased; a pair that already exists returns a *DuplicateKeyError.
func (s *Service) CreateClassSection(ctx context.Context, tenantID, class, section string) (ClassSection, error) {
	if strings.TrimSpace(tenantID) == "" {
		return ClassSection{}, ErrTenantRequired
	}
	class = CleanCell(class)
	section = strings.ToUpper(CleanCell(section))
	if class == "" || section == "" {
		return ClassSection{}, errors.New("class and section are required")
	}

	cs, err := s.store.CreateClassSection(ctx, ClassSection{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Class:     class,
		Section:   section,
		Active:    true,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return ClassSection{}, fmt.Errorf("create class section %s/%s: %w", class, section, err)
	}
	return cs, nil
}

// ClassSections lists the class sections of tenantID.
func (s *Service) ClassSections(ctx context.Context, tenantID string) ([]ClassSection, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrTenantRequired
	}
	return s.store.ListClassSections(ctx, tenantID)
}

// DefaultHistoryLimit is how many runs History returns when asked for none.
const DefaultHistoryLimit = 20

// History lists the most recent commits of tenantID, newest first.
func (s *Service) History(ctx context.Context, tenantID string, limit int) ([]ImportRun, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrTenantRequired
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.store.ListImportRuns(ctx, tenantID, limit)
}

// LimiterStatus reports commit slot usage.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running commits finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) resolve(tenantID string, kind Kind) (EntityImportProfile, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrTenantRequired
	}
	return s.Profile(kind)
}
