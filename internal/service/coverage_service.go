package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-coverage-api/internal/coverage"
	"github.com/noah-isme/sma-coverage-api/internal/dto"
	"github.com/noah-isme/sma-coverage-api/internal/models"
	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
	"github.com/noah-isme/sma-coverage-api/pkg/jobs"
	"github.com/noah-isme/sma-coverage-api/pkg/storage"
)

const (
	coverageModePreview = "preview"
	coverageModeCommit  = "commit"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type coverageAssignmentStore interface {
	ListByDate(ctx context.Context, date time.Time) ([]models.CoverageAssignment, error)
	ReplaceForDate(ctx context.Context, exec sqlx.ExtContext, date time.Time, assignments []models.CoverageAssignment) error
}

type coverageRunStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, run *models.CoverageRun) error
	LatestByDate(ctx context.Context, date time.Time) (*models.CoverageRun, error)
}

type absenceStore interface {
	absenceReader
	UpdateStatuses(ctx context.Context, exec sqlx.ExtContext, updates []models.AbsenceStatusUpdate) error
}

type planCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

type coverageMetrics interface {
	queryObserver
	ObserveCoverageRun(mode string, metrics coverage.RunMetrics)
	ObserveCoverageFailure(mode string)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type coverageExporter interface {
	Generate(ctx context.Context, date time.Time, format ExportFormat) (*ExportResult, error)
	ParseToken(token string, allowExpired bool) (exportID, relPath string, expiresAt time.Time, err error)
	Open(relPath string) (*os.File, error)
}

type coverageRunner interface {
	Run(ctx context.Context, in coverage.RunInput) (*coverage.Plan, error)
}

// CoverageStores groups the repositories the coverage service reads and writes.
type CoverageStores struct {
	Absences    absenceStore
	Schedules   scheduleReader
	Substitutes substituteReader
	Teachers    coverPoolReader
	Preferences preferenceReader
	Assignments coverageAssignmentStore
	Runs        coverageRunStore
}

// CoverageServiceConfig tunes the coverage service.
type CoverageServiceConfig struct {
	SchoolDays        []string
	CacheTTL          time.Duration
	Workers           int
	EmergencyOverride bool
}

// CoverageService plans, commits and publishes a day's substitute coverage.
type CoverageService struct {
	stores    CoverageStores
	snapshots *snapshotLoader
	tx        txProvider
	cache     planCache
	metrics   coverageMetrics
	notifier  jobEnqueuer
	exporter  coverageExporter
	standard  coverageRunner
	emergency coverageRunner
	validator *validator.Validate
	logger    *zap.Logger
	cfg       CoverageServiceConfig
	schoolDay map[string]struct{}
}

// NewCoverageService wires the coverage service. cache, metrics, notifier and
// exporter are optional.
func NewCoverageService(
	stores CoverageStores,
	tx txProvider,
	cache planCache,
	metrics coverageMetrics,
	notifier jobEnqueuer,
	exporter coverageExporter,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg CoverageServiceConfig,
) *CoverageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if len(cfg.SchoolDays) == 0 {
		cfg.SchoolDays = []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY"}
	}
	schoolDay := make(map[string]struct{}, len(cfg.SchoolDays))
	for _, day := range cfg.SchoolDays {
		schoolDay[strings.ToUpper(strings.TrimSpace(day))] = struct{}{}
	}
	engineLogger := logger.Named("coverage")
	return &CoverageService{
		stores: stores,
		snapshots: &snapshotLoader{
			absences:    stores.Absences,
			schedules:   stores.Schedules,
			substitutes: stores.Substitutes,
			teachers:    stores.Teachers,
			prefs:       stores.Preferences,
			queries:     metrics,
			logger:      logger,
		},
		tx:        tx,
		cache:     cache,
		metrics:   metrics,
		notifier:  notifier,
		exporter:  exporter,
		standard:  coverage.NewEngine(coverage.Options{Logger: engineLogger, Workers: cfg.Workers}),
		emergency: coverage.NewEngine(coverage.Options{Logger: engineLogger, Workers: cfg.Workers, OverridePolicy: coverage.EmergencyFlagPolicy}),
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		schoolDay: schoolDay,
	}
}

// Preview computes the plan for a day without persisting it.
func (s *CoverageService) Preview(ctx context.Context, req dto.CoverageRunRequest) (*dto.CoveragePlanResponse, error) {
	date, dayType, err := s.parseRunRequest(req)
	if err != nil {
		return nil, err
	}
	emergency := s.emergencyEnabled(req)
	key := planCacheKey(date, dayType, emergency)

	if !req.Refresh && s.cache != nil {
		var cached dto.CoveragePlanResponse
		hit, cacheErr := s.cache.Get(ctx, key, &cached)
		if cacheErr == nil && hit && cached.Plan != nil {
			cached.Cached = true
			return &cached, nil
		}
	}

	plan, skipped, err := s.run(ctx, coverageModePreview, date, dayType, emergency)
	if err != nil {
		return nil, err
	}
	resp := &dto.CoveragePlanResponse{Emergency: emergency, Skipped: skipped, Plan: plan}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, resp, s.cfg.CacheTTL)
	}
	return resp, nil
}

// Commit recomputes the plan for a day and replaces the stored assignments,
// absence statuses and run record in one transaction.
func (s *CoverageService) Commit(ctx context.Context, req dto.CoverageRunRequest, actorID string) (*dto.CoveragePlanResponse, error) {
	date, dayType, err := s.parseRunRequest(req)
	if err != nil {
		return nil, err
	}
	emergency := s.emergencyEnabled(req)

	plan, skipped, err := s.run(ctx, coverageModeCommit, date, dayType, emergency)
	if err != nil {
		return nil, err
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	runID := uuid.NewString()
	if err := s.persist(ctx, runID, date, dayType, emergency, plan, skipped, actorID); err != nil {
		if s.metrics != nil {
			s.metrics.ObserveCoverageFailure(coverageModeCommit)
		}
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, planCachePattern(date))
	}
	s.publish(runID, date, dayType, plan)

	s.logger.Info("coverage committed",
		zap.String("run_id", runID),
		zap.String("date", formatDate(date)),
		zap.String("day_type", string(dayType)),
		zap.Bool("emergency", emergency),
		zap.Int("periods_covered", plan.Metrics.TotalPeriodsCovered),
		zap.Int("periods_needed", plan.Metrics.TotalPeriodsNeeded),
	)
	return &dto.CoveragePlanResponse{RunID: runID, Committed: true, Emergency: emergency, Skipped: skipped, Plan: plan}, nil
}

// ListAssignments returns the committed assignments for a date.
func (s *CoverageService) ListAssignments(ctx context.Context, rawDate string) ([]models.CoverageAssignment, error) {
	date, err := parseCoverageDate(rawDate)
	if err != nil {
		return nil, err
	}
	assignments, err := s.stores.Assignments.ListByDate(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list coverage assignments")
	}
	if assignments == nil {
		assignments = []models.CoverageAssignment{}
	}
	return assignments, nil
}

// LatestRun returns the most recent committed run for a date.
func (s *CoverageService) LatestRun(ctx context.Context, rawDate string) (*models.CoverageRun, error) {
	date, err := parseCoverageDate(rawDate)
	if err != nil {
		return nil, err
	}
	run, err := s.stores.Runs.LatestByDate(ctx, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no committed coverage run for date")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load coverage run")
	}
	return run, nil
}

// Export renders the committed coverage sheet and returns a signed download link.
func (s *CoverageService) Export(ctx context.Context, req dto.CoverageExportRequest) (*dto.CoverageExportResponse, error) {
	if s.exporter == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "coverage export is not configured")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	date, err := parseCoverageDate(req.Date)
	if err != nil {
		return nil, err
	}
	result, err := s.exporter.Generate(ctx, date, ExportFormat(strings.ToLower(req.Format)))
	if err != nil {
		return nil, err
	}
	return &dto.CoverageExportResponse{
		Format:    string(result.Format),
		URL:       result.URL,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	}, nil
}

// ResolveExport validates a download token and opens the referenced sheet.
// The caller closes the file.
func (s *CoverageService) ResolveExport(_ context.Context, token string) (*os.File, string, error) {
	if s.exporter == nil {
		return nil, "", appErrors.Clone(appErrors.ErrPreconditionFailed, "coverage export is not configured")
	}
	_, relPath, _, err := s.exporter.ParseToken(token, false)
	if errors.Is(err, storage.ErrTokenExpired) {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "export link expired")
	}
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid export link")
	}
	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file not found")
	}
	return file, baseName(relPath), nil
}

func (s *CoverageService) run(ctx context.Context, mode string, date time.Time, dayType coverage.DayType, emergency bool) (*coverage.Plan, []string, error) {
	snapshot, err := s.snapshots.load(ctx, date, dayType)
	if err != nil {
		s.observeFailure(mode)
		return nil, nil, err
	}
	runner := s.standard
	if emergency {
		runner = s.emergency
	}
	plan, err := runner.Run(ctx, snapshot.input)
	if err != nil {
		s.observeFailure(mode)
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, nil, appErr
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "coverage run failed")
	}
	if s.metrics != nil {
		s.metrics.ObserveCoverageRun(mode, plan.Metrics)
	}
	return plan, snapshot.skipped, nil
}

func (s *CoverageService) persist(ctx context.Context, runID string, date time.Time, dayType coverage.DayType, emergency bool, plan *coverage.Plan, skipped []string, actorID string) (err error) {
	summary, marshalErr := json.Marshal(map[string]any{
		"emergency":  emergency,
		"absences":   plan.Absences,
		"unresolved": plan.Unresolved,
		"loads":      plan.Loads,
		"skipped":    skipped,
	})
	if marshalErr != nil {
		return appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode coverage summary")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.stores.Assignments.ReplaceForDate(ctx, tx, date, assignmentsFromPlan(runID, date, dayType, plan)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store coverage assignments")
	}
	if err = s.stores.Absences.UpdateStatuses(ctx, tx, statusUpdates(plan, skipped)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update absence statuses")
	}

	run := &models.CoverageRun{
		ID:                  runID,
		CoverageDate:        date,
		DayType:             string(dayType),
		PeriodsNeeded:       plan.Metrics.TotalPeriodsNeeded,
		PeriodsCovered:      plan.Metrics.TotalPeriodsCovered,
		CandidatesEvaluated: plan.Metrics.TotalCandidatesEvaluated,
		PoolSize:            plan.Metrics.PoolSize,
		CoverageRate:        plan.Metrics.CoverageRate,
		ProcessingMs:        plan.Metrics.ProcessingTimeMs,
		Summary:             summary,
	}
	if actorID != "" {
		run.CreatedBy = &actorID
	}
	if err = s.stores.Runs.Create(ctx, tx, run); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store coverage run")
	}

	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit coverage")
	}
	return nil
}

// publish queues notices for the committed plan. Failures are logged only.
func (s *CoverageService) publish(runID string, date time.Time, dayType coverage.DayType, plan *coverage.Plan) {
	if s.notifier == nil {
		return
	}
	day := formatDate(date)
	enqueue := func(jobType string, payload interface{}) {
		job := jobs.Job{ID: uuid.NewString(), Type: jobType, Payload: payload}
		if err := s.notifier.Enqueue(job); err != nil {
			s.logger.Warn("coverage notification not queued", zap.String("type", jobType), zap.String("run_id", runID), zap.Error(err))
		}
	}

	for _, d := range plan.Decisions {
		if !d.Covered() {
			continue
		}
		enqueue(JobCoverageAssignment, dto.CoverageAssignmentNotice{
			Date:          day,
			AbsenceID:     d.AbsenceID,
			TeacherID:     d.TeacherID,
			CandidateID:   d.CandidateID,
			CandidateName: d.CandidateName,
			CandidateKind: string(d.CandidateKind),
			Period:        d.Period.Name(),
			Subject:       d.Subject,
			Room:          d.Room,
			MatchQuality:  string(d.MatchQuality),
		})
	}
	for _, u := range plan.Unresolved {
		enqueue(JobCoverageEscalation, dto.CoverageEscalationNotice{
			Date:      day,
			AbsenceID: u.AbsenceID,
			TeacherID: u.TeacherID,
			Period:    u.Period.Name(),
			Subject:   u.Subject,
		})
	}
	enqueue(JobCoverageSummary, dto.CoverageSummaryNotice{
		Date:    day,
		DayType: string(dayType),
		RunID:   runID,
		Metrics: plan.Metrics,
	})
}

func (s *CoverageService) parseRunRequest(req dto.CoverageRunRequest) (time.Time, coverage.DayType, error) {
	if err := s.validator.Struct(req); err != nil {
		return time.Time{}, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid coverage payload")
	}
	date, err := parseCoverageDate(req.Date)
	if err != nil {
		return time.Time{}, "", err
	}
	weekday := strings.ToUpper(date.Weekday().String())
	if _, ok := s.schoolDay[weekday]; !ok {
		return time.Time{}, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is a %s, not a school day", req.Date, strings.ToLower(weekday)))
	}
	dayType, ok := coverage.ParseDayType(req.DayType)
	if !ok {
		return time.Time{}, "", appErrors.Clone(appErrors.ErrValidation, "day type must be A or B")
	}
	return date, dayType, nil
}

func (s *CoverageService) emergencyEnabled(req dto.CoverageRunRequest) bool {
	if !s.cfg.EmergencyOverride {
		return false
	}
	return req.Emergency == nil || *req.Emergency
}

func (s *CoverageService) observeFailure(mode string) {
	if s.metrics != nil {
		s.metrics.ObserveCoverageFailure(mode)
	}
}

func assignmentsFromPlan(runID string, date time.Time, dayType coverage.DayType, plan *coverage.Plan) []models.CoverageAssignment {
	out := make([]models.CoverageAssignment, 0, len(plan.Decisions))
	for _, d := range plan.Decisions {
		a := models.CoverageAssignment{
			RunID:        runID,
			AbsenceID:    d.AbsenceID,
			TeacherID:    d.TeacherID,
			CoverageDate: date,
			DayType:      string(dayType),
			Period:       d.Period.Ordinal,
			PeriodLabel:  d.Period.Label,
			Subject:      d.Subject,
			Room:         d.Room,
			MatchQuality: string(d.MatchQuality),
			DecidedAt:    d.Timestamp,
		}
		if d.Covered() {
			id, name, kind := d.CandidateID, d.CandidateName, string(d.CandidateKind)
			a.CandidateID = &id
			a.CandidateName = &name
			a.CandidateKind = &kind
		}
		out = append(out, a)
	}
	return out
}

func statusUpdates(plan *coverage.Plan, skipped []string) []models.AbsenceStatusUpdate {
	out := make([]models.AbsenceStatusUpdate, 0, len(plan.Absences)+len(skipped))
	for _, outcome := range plan.Absences {
		out = append(out, models.AbsenceStatusUpdate{ID: outcome.AbsenceID, Status: absenceStatusFromOutcome(outcome.Status)})
	}
	for _, id := range skipped {
		out = append(out, models.AbsenceStatusUpdate{ID: id, Status: models.AbsenceStatusResolved})
	}
	return out
}

func absenceStatusFromOutcome(status coverage.AbsenceStatus) models.AbsenceStatus {
	switch status {
	case coverage.AbsenceStatusResolved:
		return models.AbsenceStatusResolved
	case coverage.AbsenceStatusPartiallyResolved:
		return models.AbsenceStatusPartiallyResolved
	case coverage.AbsenceStatusUnresolved:
		return models.AbsenceStatusUnresolved
	default:
		return models.AbsenceStatusPending
	}
}

func parseCoverageDate(raw string) (time.Time, error) {
	date, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}
	return date, nil
}

func formatDate(date time.Time) string {
	return date.Format("2006-01-02")
}

func baseName(relPath string) string {
	if idx := strings.LastIndexAny(relPath, `/\`); idx >= 0 {
		return relPath[idx+1:]
	}
	return relPath
}
