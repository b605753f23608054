package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-coverage-api/internal/models"
	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	BulkCreate(ctx context.Context, schedules []models.Schedule) error
	Delete(ctx context.Context, id string) error
}

var validWeekdays = map[string]struct{}{
	"MONDAY": {}, "TUESDAY": {}, "WEDNESDAY": {}, "THURSDAY": {}, "FRIDAY": {}, "SATURDAY": {}, "SUNDAY": {},
}

// CreateScheduleRequest describes one timetable row. An empty day_type applies
// the row on both A and B days; is_teaching false marks a duty or prep period.
type CreateScheduleRequest struct {
	ClassID     string `json:"class_id" validate:"required"`
	SubjectID   string `json:"subject_id" validate:"required"`
	TeacherID   string `json:"teacher_id" validate:"required"`
	DayOfWeek   string `json:"day_of_week" validate:"required"`
	DayType     string `json:"day_type" validate:"omitempty,oneof=A B a b"`
	Period      int    `json:"period" validate:"required,min=1,max=20"`
	PeriodLabel string `json:"period_label" validate:"omitempty,max=50"`
	Room        string `json:"room" validate:"required"`
	IsTeaching  *bool  `json:"is_teaching"`
}

// BulkCreateSchedulesRequest holds multiple schedules for creation.
type BulkCreateSchedulesRequest struct {
	Items          []CreateScheduleRequest `json:"items" validate:"required,min=1,dive"`
	PartialOnError bool                    `json:"partial_on_error"`
}

// ScheduleConflict reports a row that would double-book a teacher.
type ScheduleConflict struct {
	Index      int    `json:"index"`
	TeacherID  string `json:"teacher_id"`
	DayOfWeek  string `json:"day_of_week"`
	Period     int    `json:"period"`
	ExistingID string `json:"existing_id,omitempty"`
	Message    string `json:"message"`
}

// ScheduleConflictError carries the rows that were rejected.
type ScheduleConflictError struct {
	Conflicts []ScheduleConflict
}

func (e *ScheduleConflictError) Error() string {
	if len(e.Conflicts) == 1 {
		c := e.Conflicts[0]
		return fmt.Sprintf("teacher %s already scheduled %s period %d", c.TeacherID, c.DayOfWeek, c.Period)
	}
	return fmt.Sprintf("%d conflicting schedule rows", len(e.Conflicts))
}

// BulkCreateSchedulesResult summarises bulk creation results.
type BulkCreateSchedulesResult struct {
	Created   []models.Schedule  `json:"created"`
	Conflicts []ScheduleConflict `json:"conflicts,omitempty"`
}

// ScheduleService maintains the weekly timetable the coverage engine reads.
type ScheduleService struct {
	repo      scheduleRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService instantiates ScheduleService.
func NewScheduleService(repo scheduleRepository, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, validator: validate, logger: logger}
}

// List returns timetable rows matching the filter.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, error) {
	schedules, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	if schedules == nil {
		schedules = []models.Schedule{}
	}
	return schedules, nil
}

// Create stores one row after checking the teacher is free in that slot.
func (s *ScheduleService) Create(ctx context.Context, req CreateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	schedule, err := scheduleFromRequest(req)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.List(ctx, models.ScheduleFilter{TeacherID: schedule.TeacherID, DayOfWeek: schedule.DayOfWeek})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule conflicts")
	}
	if clash := findClash(schedule, existing); clash != nil {
		return nil, s.wrapConflict(schedule, clash.ID)
	}
	if err := s.repo.Create(ctx, &schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}
	return &schedule, nil
}

// BulkCreate stores many rows. Conflicting rows either abort the batch or,
// with PartialOnError, are reported while the rest are stored.
func (s *ScheduleService) BulkCreate(ctx context.Context, req BulkCreateSchedulesRequest) (*BulkCreateSchedulesResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk schedule payload")
	}

	existingByKey := map[string][]models.Schedule{}
	accepted := make([]models.Schedule, 0, len(req.Items))
	result := &BulkCreateSchedulesResult{}

	for i, item := range req.Items {
		schedule, err := scheduleFromRequest(item)
		if err != nil {
			return nil, err
		}
		key := schedule.TeacherID + "|" + schedule.DayOfWeek
		existing, loaded := existingByKey[key]
		if !loaded {
			existing, err = s.repo.List(ctx, models.ScheduleFilter{TeacherID: schedule.TeacherID, DayOfWeek: schedule.DayOfWeek})
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule conflicts")
			}
		}
		if clash := findClash(schedule, existing); clash != nil {
			result.Conflicts = append(result.Conflicts, ScheduleConflict{
				Index:      i,
				TeacherID:  schedule.TeacherID,
				DayOfWeek:  schedule.DayOfWeek,
				Period:     schedule.Period,
				ExistingID: clash.ID,
				Message:    "teacher already scheduled in this period",
			})
			existingByKey[key] = existing
			continue
		}
		existingByKey[key] = append(existing, schedule)
		accepted = append(accepted, schedule)
	}

	if len(result.Conflicts) > 0 && !req.PartialOnError {
		return nil, appErrors.Wrap(&ScheduleConflictError{Conflicts: result.Conflicts}, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, fmt.Sprintf("schedule conflict: %d rows double-book a teacher", len(result.Conflicts)))
	}
	if len(accepted) > 0 {
		if err := s.repo.BulkCreate(ctx, accepted); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedules")
		}
	}
	result.Created = accepted
	s.logger.Info("schedules imported", zap.Int("created", len(accepted)), zap.Int("conflicts", len(result.Conflicts)))
	return result, nil
}

// Delete removes a timetable row.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "schedule id is required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	return nil
}

func (s *ScheduleService) wrapConflict(schedule models.Schedule, existingID string) error {
	conflict := ScheduleConflict{
		TeacherID:  schedule.TeacherID,
		DayOfWeek:  schedule.DayOfWeek,
		Period:     schedule.Period,
		ExistingID: existingID,
		Message:    "teacher already scheduled in this period",
	}
	return appErrors.Wrap(&ScheduleConflictError{Conflicts: []ScheduleConflict{conflict}}, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "schedule conflict: "+conflict.Message)
}

func scheduleFromRequest(req CreateScheduleRequest) (models.Schedule, error) {
	weekday := strings.ToUpper(strings.TrimSpace(req.DayOfWeek))
	if _, ok := validWeekdays[weekday]; !ok {
		return models.Schedule{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day_of_week %q", req.DayOfWeek))
	}
	teaching := true
	if req.IsTeaching != nil {
		teaching = *req.IsTeaching
	}
	return models.Schedule{
		ClassID:     strings.TrimSpace(req.ClassID),
		SubjectID:   strings.TrimSpace(req.SubjectID),
		TeacherID:   strings.TrimSpace(req.TeacherID),
		DayOfWeek:   weekday,
		DayType:     strings.ToUpper(strings.TrimSpace(req.DayType)),
		Period:      req.Period,
		PeriodLabel: strings.TrimSpace(req.PeriodLabel),
		Room:        strings.TrimSpace(req.Room),
		IsTeaching:  teaching,
	}, nil
}

// findClash returns the first existing row holding the same period on an
// overlapping day type.
func findClash(candidate models.Schedule, existing []models.Schedule) *models.Schedule {
	for i := range existing {
		row := existing[i]
		if row.Period != candidate.Period || !strings.EqualFold(row.DayOfWeek, candidate.DayOfWeek) {
			continue
		}
		if row.DayType == "" || candidate.DayType == "" || strings.EqualFold(row.DayType, candidate.DayType) {
			return &row
		}
	}
	return nil
}
