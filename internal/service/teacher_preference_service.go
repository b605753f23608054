package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-coverage-api/internal/models"
	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
)

type teacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type teacherPreferenceRepo interface {
	GetByTeacher(ctx context.Context, teacherID string) (*models.TeacherPreference, error)
	Upsert(ctx context.Context, pref *models.TeacherPreference) error
}

// UpsertTeacherPreferenceRequest captures a teacher's cover limits. Zero loads
// mean no limit.
type UpsertTeacherPreferenceRequest struct {
	MaxLoadPerDay  int                             `json:"max_load_per_day" validate:"min=0,max=20"`
	MaxLoadPerWeek int                             `json:"max_load_per_week" validate:"min=0,max=100"`
	Unavailable    []models.TeacherUnavailableSlot `json:"unavailable" validate:"omitempty,dive"`
}

// TeacherPreferenceService stores the limits applied when a teacher covers.
type TeacherPreferenceService struct {
	teachers  teacherLookup
	repo      teacherPreferenceRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherPreferenceService builds the service.
func NewTeacherPreferenceService(teachers teacherLookup, repo teacherPreferenceRepo, validate *validator.Validate, logger *zap.Logger) *TeacherPreferenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherPreferenceService{
		teachers:  teachers,
		repo:      repo,
		validator: validate,
		logger:    logger,
	}
}

// Get returns stored preferences or unlimited defaults.
func (s *TeacherPreferenceService) Get(ctx context.Context, teacherID string) (*models.TeacherPreference, error) {
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	pref, err := s.repo.GetByTeacher(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.TeacherPreference{TeacherID: teacherID, Unavailable: types.JSONText("[]")}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher preferences")
	}
	return pref, nil
}

// Upsert stores preferences for a teacher.
func (s *TeacherPreferenceService) Upsert(ctx context.Context, teacherID string, req UpsertTeacherPreferenceRequest) (*models.TeacherPreference, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preference payload")
	}
	if req.MaxLoadPerWeek > 0 && req.MaxLoadPerDay > req.MaxLoadPerWeek {
		return nil, appErrors.Clone(appErrors.ErrValidation, "max_load_per_day cannot exceed max_load_per_week")
	}
	windows, err := normalizeUnavailable(req.Unavailable)
	if err != nil {
		return nil, err
	}
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(windows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid unavailable payload")
	}
	pref := &models.TeacherPreference{
		TeacherID:      teacherID,
		MaxLoadPerDay:  req.MaxLoadPerDay,
		MaxLoadPerWeek: req.MaxLoadPerWeek,
		Unavailable:    types.JSONText(raw),
	}
	if err := s.repo.Upsert(ctx, pref); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert teacher preferences")
	}
	s.logger.Info("teacher cover limits updated",
		zap.String("teacher_id", teacherID),
		zap.Int("max_load_per_day", pref.MaxLoadPerDay),
		zap.Int("max_load_per_week", pref.MaxLoadPerWeek),
		zap.Int("unavailable_windows", len(windows)),
	)
	return pref, nil
}

func (s *TeacherPreferenceService) ensureTeacher(ctx context.Context, teacherID string) error {
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return nil
}

// normalizeUnavailable upper-cases weekdays and rejects windows the coverage
// loader would not be able to expand.
func normalizeUnavailable(windows []models.TeacherUnavailableSlot) ([]models.TeacherUnavailableSlot, error) {
	out := make([]models.TeacherUnavailableSlot, 0, len(windows))
	for i, window := range windows {
		day := strings.ToUpper(strings.TrimSpace(window.DayOfWeek))
		if _, ok := validWeekdays[day]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unavailable[%d]: unknown day_of_week %q", i, window.DayOfWeek))
		}
		span := strings.TrimSpace(window.TimeRange)
		if _, err := models.ParseTimeRange(span); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("unavailable[%d]: time_range must be a period or range like 2-4", i))
		}
		out = append(out, models.TeacherUnavailableSlot{DayOfWeek: day, TimeRange: span})
	}
	return out, nil
}
