package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-center-api/internal/dto"
	"github.com/noah-isme/tutor-center-api/internal/models"
	"github.com/noah-isme/tutor-center-api/internal/repository"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
)

type holidayRepository interface {
	ListDates(ctx context.Context) ([]time.Time, error)
	List(ctx context.Context) ([]models.Holiday, error)
	Create(ctx context.Context, holiday *models.Holiday) error
}

// HolidayService maintains the non-teaching calendar and hands immutable
// snapshots to the scheduling components.
type HolidayService struct {
	holidays  holidayRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewHolidayService wires the holiday service.
func NewHolidayService(holidays holidayRepository, validate *validator.Validate, logger *zap.Logger) *HolidayService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HolidayService{holidays: holidays, validator: validate, logger: logger}
}

// Snapshot loads the full calendar as of now. Every scheduling calculation
// works against one snapshot so mid-flight calendar edits cannot skew it.
func (s *HolidayService) Snapshot(ctx context.Context) (HolidayCalendar, error) {
	dates, err := s.holidays.ListDates(ctx)
	if err != nil {
		return HolidayCalendar{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holiday calendar")
	}
	return NewHolidayCalendar(dates), nil
}

// List returns all registered holidays.
func (s *HolidayService) List(ctx context.Context) ([]models.Holiday, error) {
	holidays, err := s.holidays.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list holidays")
	}
	return holidays, nil
}

// Create registers a single non-teaching date.
func (s *HolidayService) Create(ctx context.Context, req dto.CreateHolidayRequest) (*models.Holiday, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid holiday payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD format")
	}

	holiday := &models.Holiday{
		ID:    uuid.NewString(),
		Date:  DateOnly(date),
		Label: req.Label,
	}
	if err := s.holidays.Create(ctx, holiday); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "holiday already registered for "+req.Date)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create holiday")
	}
	return holiday, nil
}

// Import registers a batch of dates, typically a whole term calendar.
// Already-registered dates are reported as skipped, not errors.
func (s *HolidayService) Import(ctx context.Context, req dto.ImportHolidaysRequest) (*dto.ImportHolidaysResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid holiday import payload")
	}

	result := &dto.ImportHolidaysResult{}
	for _, item := range req.Items {
		if _, err := s.Create(ctx, item); err != nil {
			if appErrors.FromError(err).Code == appErrors.ErrConflict.Code {
				result.Skipped = append(result.Skipped, item.Date)
				continue
			}
			return nil, err
		}
		result.Imported++
	}
	s.logger.Info("holiday calendar imported",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}
