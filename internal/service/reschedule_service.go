package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-center-api/internal/dto"
	"github.com/noah-isme/tutor-center-api/internal/models"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
)

type rescheduleStore interface {
	Create(ctx context.Context, reschedule *models.PlannedReschedule) error
	FindByID(ctx context.Context, id string) (*models.PlannedReschedule, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.PlannedReschedule, error)
	Cancel(ctx context.Context, id string) error
}

type rescheduleEnrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// RescheduleService maintains planned leave declarations. Declarations are
// consumed by the generator; a declaration can be withdrawn only while it is
// still pending.
type RescheduleService struct {
	reschedules rescheduleStore
	enrollments rescheduleEnrollmentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRescheduleService wires the planned-reschedule registry.
func NewRescheduleService(
	reschedules rescheduleStore,
	enrollments rescheduleEnrollmentReader,
	validate *validator.Validate,
	logger *zap.Logger,
) *RescheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RescheduleService{
		reschedules: reschedules,
		enrollments: enrollments,
		validator:   validate,
		logger:      logger,
	}
}

// Create declares a future absence for an enrollment, before the generator
// runs for that date.
func (s *RescheduleService) Create(ctx context.Context, req dto.CreatePlannedRescheduleRequest, createdBy string) (*models.PlannedReschedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid planned reschedule payload")
	}
	plannedDate, err := time.Parse("2006-01-02", req.PlannedDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "plannedDate must use YYYY-MM-DD format")
	}
	var preferred *time.Time
	if req.PreferredMakeupDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.PreferredMakeupDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "preferredMakeupDate must use YYYY-MM-DD format")
		}
		if !parsed.After(plannedDate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "preferredMakeupDate must fall after plannedDate")
		}
		day := DateOnly(parsed)
		preferred = &day
	}

	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if !enrollment.PaymentStatus.Active() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "cancelled enrollment cannot declare a reschedule")
	}
	if DateOnly(plannedDate).Weekday() != enrollment.DayOfWeek.Time() {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("plannedDate %s does not fall on the enrollment's %s cadence", req.PlannedDate, enrollment.DayOfWeek))
	}

	now := time.Now().UTC()
	reschedule := &models.PlannedReschedule{
		ID:                  uuid.NewString(),
		EnrollmentID:        enrollment.ID,
		PlannedDate:         DateOnly(plannedDate),
		PreferredMakeupDate: preferred,
		Reason:              req.Reason,
		Status:              models.PlannedRescheduleStatusPending,
		CreatedBy:           createdBy,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.reschedules.Create(ctx, reschedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create planned reschedule")
	}
	return reschedule, nil
}

// ListByEnrollment returns all declarations for one enrollment.
func (s *RescheduleService) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.PlannedReschedule, error) {
	reschedules, err := s.reschedules.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list planned reschedules")
	}
	return reschedules, nil
}

// Cancel withdraws a declaration that has not been consumed yet.
func (s *RescheduleService) Cancel(ctx context.Context, id string) (*models.PlannedReschedule, error) {
	reschedule, err := s.reschedules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "planned reschedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load planned reschedule")
	}
	if reschedule.Status != models.PlannedRescheduleStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition,
			fmt.Sprintf("planned reschedule already %s", reschedule.Status))
	}
	if err := s.reschedules.Cancel(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition, "planned reschedule was consumed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel planned reschedule")
	}
	reschedule.Status = models.PlannedRescheduleStatusCancelled
	return reschedule, nil
}
