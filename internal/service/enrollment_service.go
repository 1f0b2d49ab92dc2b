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
	"github.com/noah-isme/tutor-center-api/internal/repository"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
)

type enrollmentStore interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ExistsActiveSlot(ctx context.Context, studentID, tutorID string, day models.Weekday, timeSlot, location string) (bool, error)
	UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
}

type sessionGenerator interface {
	GenerateSessions(ctx context.Context, enrollmentID string) (*dto.GenerationResult, error)
}

// paymentTransitions is the closed table for the enrollment contract.
// Cancellation releases the slot but never deletes the row.
var paymentTransitions = map[models.PaymentStatus]map[models.PaymentStatus]struct{}{
	models.PaymentStatusPending: {
		models.PaymentStatusPaid:      {},
		models.PaymentStatusCancelled: {},
	},
	models.PaymentStatusPaid: {
		models.PaymentStatusCancelled: {},
	},
}

// EnrollmentService manages student-tutor contracts and triggers session
// generation when an enrollment becomes payment-eligible.
type EnrollmentService struct {
	enrollments enrollmentStore
	calendars   calendarProvider
	generator   sessionGenerator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService wires the enrollment dependencies.
func NewEnrollmentService(
	enrollments enrollmentStore,
	calendars calendarProvider,
	generator sessionGenerator,
	validate *validator.Validate,
	logger *zap.Logger,
) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		calendars:   calendars,
		generator:   generator,
		validator:   validate,
		logger:      logger,
	}
}

// Create registers an enrollment in PENDING_PAYMENT and generates its trial
// session. The active-slot guard rejects a second live contract on the same
// weekly slot.
func (s *EnrollmentService) Create(ctx context.Context, req dto.CreateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	day := models.Weekday(req.DayOfWeek)
	if !day.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dayOfWeek must be an uppercase English weekday name")
	}
	firstLesson, err := time.Parse("2006-01-02", req.FirstLessonDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "firstLessonDate must use YYYY-MM-DD format")
	}
	if firstLesson.Weekday() != day.Time() {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("firstLessonDate %s does not fall on %s", req.FirstLessonDate, day))
	}

	taken, err := s.enrollments.ExistsActiveSlot(ctx, req.StudentID, req.TutorID, day, req.TimeSlot, req.Location)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot availability")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an active enrollment already occupies this weekly slot")
	}

	now := time.Now().UTC()
	enrollment := &models.Enrollment{
		ID:              uuid.NewString(),
		StudentID:       req.StudentID,
		TutorID:         req.TutorID,
		DayOfWeek:       day,
		TimeSlot:        req.TimeSlot,
		Location:        req.Location,
		LessonsPaid:     req.LessonsPaid,
		FirstLessonDate: DateOnly(firstLesson),
		PaymentStatus:   models.PaymentStatusPending,
		DiscountID:      req.DiscountID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an active enrollment already occupies this weekly slot")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.triggerGeneration(ctx, enrollment.ID)
	return enrollment, nil
}

// Get returns the enrollment with its derived effective end date.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*dto.EnrollmentDetail, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	calendar, err := s.calendars.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	endDate, err := EffectiveEndDate(enrollment.FirstLessonDate, enrollment.LessonsPaid, enrollment.ExtensionWeeks, calendar)
	if err != nil {
		return nil, err
	}
	return &dto.EnrollmentDetail{
		Enrollment:       *enrollment,
		EffectiveEndDate: endDate.Format("2006-01-02"),
	}, nil
}

// List returns enrollments matching the query with pagination.
func (s *EnrollmentService) List(ctx context.Context, query dto.EnrollmentQuery) ([]models.Enrollment, *models.Pagination, error) {
	filter := models.EnrollmentFilter{
		StudentID:     query.StudentID,
		TutorID:       query.TutorID,
		PaymentStatus: query.PaymentStatus,
		Page:          query.Page,
		PageSize:      query.PageSize,
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// UpdatePaymentStatus moves the contract between payment states. Confirming
// payment makes the enrollment generation-eligible, so the full session set
// is materialised immediately; a generation failure is logged and left to
// the batch driver, since generation is idempotent.
func (s *EnrollmentService) UpdatePaymentStatus(ctx context.Context, id string, req dto.UpdatePaymentStatusRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment status payload")
	}

	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if _, ok := paymentTransitions[enrollment.PaymentStatus][req.PaymentStatus]; !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition,
			fmt.Sprintf("cannot move %s enrollment to %s", enrollment.PaymentStatus, req.PaymentStatus))
	}

	if err := s.enrollments.UpdatePaymentStatus(ctx, id, req.PaymentStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment status")
	}
	enrollment.PaymentStatus = req.PaymentStatus

	if req.PaymentStatus == models.PaymentStatusPaid {
		s.triggerGeneration(ctx, enrollment.ID)
	}
	return enrollment, nil
}

// Generate exposes on-demand generation for one enrollment.
func (s *EnrollmentService) Generate(ctx context.Context, id string) (*dto.GenerationResult, error) {
	return s.generator.GenerateSessions(ctx, id)
}

func (s *EnrollmentService) triggerGeneration(ctx context.Context, enrollmentID string) {
	if s.generator == nil {
		return
	}
	if _, err := s.generator.GenerateSessions(ctx, enrollmentID); err != nil {
		s.logger.Warn("session generation deferred to batch driver",
			zap.String("enrollmentId", enrollmentID),
			zap.Error(err))
	}
}
