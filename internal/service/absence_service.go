package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-coverage-api/internal/models"
	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
)

type absenceRepository interface {
	ListByDate(ctx context.Context, date time.Time) ([]models.Absence, error)
	Create(ctx context.Context, absence *models.Absence) error
}

// ReportAbsenceRequest records a teacher away for a school day. Empty periods
// means the whole day.
type ReportAbsenceRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	DayType   string `json:"day_type" validate:"omitempty,oneof=A B a b"`
	Periods   []int  `json:"periods" validate:"omitempty,dive,min=1,max=20"`
	Reason    string `json:"reason" validate:"omitempty,max=500"`
}

// AbsenceService records absences that coverage runs resolve.
type AbsenceService struct {
	repo      absenceRepository
	teachers  teacherLookup
	cache     planCache
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAbsenceService constructs the service. cache may be nil.
func NewAbsenceService(repo absenceRepository, teachers teacherLookup, cache planCache, validate *validator.Validate, logger *zap.Logger) *AbsenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AbsenceService{repo: repo, teachers: teachers, cache: cache, validator: validate, logger: logger}
}

// Report stores a PENDING absence and drops cached previews for its date.
func (s *AbsenceService) Report(ctx context.Context, req ReportAbsenceRequest) (*models.Absence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence payload")
	}
	date, err := parseCoverageDate(req.Date)
	if err != nil {
		return nil, err
	}
	teacher, err := s.teachers.FindByID(ctx, req.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if !teacher.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher is inactive")
	}

	absence := &models.Absence{
		TeacherID:     teacher.ID,
		AbsenceDate:   date,
		DayType:       strings.ToUpper(strings.TrimSpace(req.DayType)),
		PeriodsNeeded: uniquePeriods(req.Periods),
		Status:        models.AbsenceStatusPending,
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		absence.Reason = &reason
	}
	if err := s.repo.Create(ctx, absence); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record absence")
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, planCachePattern(date))
	}
	s.logger.Info("absence reported",
		zap.String("absence_id", absence.ID),
		zap.String("teacher_id", absence.TeacherID),
		zap.String("date", req.Date),
		zap.Int("periods", len(absence.PeriodsNeeded)),
	)
	return absence, nil
}

// ListByDate returns every absence recorded for the date.
func (s *AbsenceService) ListByDate(ctx context.Context, rawDate string) ([]models.Absence, error) {
	date, err := parseCoverageDate(rawDate)
	if err != nil {
		return nil, err
	}
	absences, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list absences")
	}
	if absences == nil {
		absences = []models.Absence{}
	}
	return absences, nil
}

func uniquePeriods(periods []int) pq.Int64Array {
	if len(periods) == 0 {
		return nil
	}
	sorted := append([]int(nil), periods...)
	sort.Ints(sorted)
	out := make(pq.Int64Array, 0, len(sorted))
	for i, p := range sorted {
		if i > 0 && sorted[i-1] == p {
			continue
		}
		out = append(out, int64(p))
	}
	return out
}
