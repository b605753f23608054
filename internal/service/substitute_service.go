package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-coverage-api/internal/models"
	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
)

type substituteRepository interface {
	ListActive(ctx context.Context) ([]models.Substitute, error)
	FindByID(ctx context.Context, id string) (*models.Substitute, error)
	Create(ctx context.Context, sub *models.Substitute) error
}

// CreateSubstituteRequest registers an external cover teacher. Availability
// maps weekday names to the periods the substitute can take.
type CreateSubstituteRequest struct {
	FullName      string           `json:"full_name" validate:"required,max=200"`
	Email         string           `json:"email" validate:"required,email"`
	Phone         *string          `json:"phone" validate:"omitempty,max=50"`
	Specialties   []string         `json:"specialties" validate:"omitempty,dive,required,max=100"`
	Availability  map[string][]int `json:"availability" validate:"required,min=1"`
	MaxDailyLoad  int              `json:"max_daily_load" validate:"min=0,max=20"`
	MaxWeeklyLoad int              `json:"max_weekly_load" validate:"min=0,max=100"`
	SpecialtyOnly bool             `json:"specialty_only"`
	EmergencyOnly bool             `json:"emergency_only"`
}

// SubstituteService manages the external substitute roster.
type SubstituteService struct {
	repo      substituteRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubstituteService constructs the service.
func NewSubstituteService(repo substituteRepository, validate *validator.Validate, logger *zap.Logger) *SubstituteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubstituteService{repo: repo, validator: validate, logger: logger}
}

// ListActive returns the substitutes eligible for cover.
func (s *SubstituteService) ListActive(ctx context.Context) ([]models.Substitute, error) {
	subs, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list substitutes")
	}
	if subs == nil {
		subs = []models.Substitute{}
	}
	return subs, nil
}

// Get loads one substitute.
func (s *SubstituteService) Get(ctx context.Context, id string) (*models.Substitute, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "substitute not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitute")
	}
	return sub, nil
}

// Create validates and stores a substitute.
func (s *SubstituteService) Create(ctx context.Context, req CreateSubstituteRequest) (*models.Substitute, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid substitute payload")
	}
	if req.MaxWeeklyLoad > 0 && req.MaxDailyLoad > req.MaxWeeklyLoad {
		return nil, appErrors.Clone(appErrors.ErrValidation, "max_daily_load cannot exceed max_weekly_load")
	}
	availability, err := normalizeAvailability(req.Availability)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(availability)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability")
	}

	sub := &models.Substitute{
		FullName:      strings.TrimSpace(req.FullName),
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:         normalizeOptional(req.Phone),
		Specialties:   normalizeSpecialties(req.Specialties),
		Availability:  types.JSONText(raw),
		MaxDailyLoad:  req.MaxDailyLoad,
		MaxWeeklyLoad: req.MaxWeeklyLoad,
		SpecialtyOnly: req.SpecialtyOnly,
		EmergencyOnly: req.EmergencyOnly,
		Active:        true,
	}
	if sub.SpecialtyOnly && len(sub.Specialties) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "specialty_only substitutes need at least one specialty")
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "substitute email already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create substitute")
	}
	s.logger.Info("substitute registered", zap.String("substitute_id", sub.ID), zap.Int("available_days", len(availability)))
	return sub, nil
}

// normalizeAvailability upper-cases weekday keys and sorts and dedupes periods.
func normalizeAvailability(in map[string][]int) (map[string][]int, error) {
	out := make(map[string][]int, len(in))
	for day, periods := range in {
		key := strings.ToUpper(strings.TrimSpace(day))
		if _, ok := validWeekdays[key]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("availability: unknown weekday %q", day))
		}
		merged := append(out[key], periods...)
		sort.Ints(merged)
		deduped := merged[:0]
		for i, p := range merged {
			if p < 1 {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("availability: %s period %d must be positive", key, p))
			}
			if i > 0 && merged[i-1] == p {
				continue
			}
			deduped = append(deduped, p)
		}
		out[key] = deduped
	}
	return out, nil
}
