package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-center-api/internal/dto"
	"github.com/noah-isme/tutor-center-api/internal/models"
	"github.com/noah-isme/tutor-center-api/internal/repository"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
)

type extensionRequestStore interface {
	Create(ctx context.Context, request *models.ExtensionRequest) error
	FindByID(ctx context.Context, id string) (*models.ExtensionRequest, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.ExtensionRequest, error)
	SetReview(ctx context.Context, exec sqlx.ExtContext, id string, status models.ExtensionRequestStatus, reviewer string, notes *string, reviewedAt time.Time) error
	ListByStatus(ctx context.Context, status models.ExtensionRequestStatus) ([]models.ExtensionRequest, error)
}

type extensionEnrollmentStore interface {
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Enrollment, error)
	AddExtensionWeeks(ctx context.Context, tx *sqlx.Tx, id string, weeks int) error
}

type extensionSessionStore interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Session, error)
	Reschedule(ctx context.Context, tx *sqlx.Tx, id string, date time.Time, timeSlot string) error
}

// ExtensionService coordinates deadline-extension requests: a tutor files
// one when a reschedule is blocked by the enrollment deadline, and approval
// extends the enrollment and moves the session as one transaction.
type ExtensionService struct {
	requests    extensionRequestStore
	enrollments extensionEnrollmentStore
	sessions    extensionSessionStore
	calendars   calendarProvider
	events      eventSink
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService
}

// NewExtensionService wires the extension workflow dependencies.
func NewExtensionService(
	requests extensionRequestStore,
	enrollments extensionEnrollmentStore,
	sessions extensionSessionStore,
	calendars calendarProvider,
	events eventSink,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
) *ExtensionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtensionService{
		requests:    requests,
		enrollments: enrollments,
		sessions:    sessions,
		calendars:   calendars,
		events:      events,
		tx:          tx,
		validator:   validate,
		logger:      logger,
		metrics:     metrics,
	}
}

// Request files a deadline-extension ask for one blocked session.
func (s *ExtensionService) Request(ctx context.Context, req dto.CreateExtensionRequest, requestedBy string) (*models.ExtensionRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid extension request payload")
	}
	proposedDate, err := time.Parse("2006-01-02", req.ProposedDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "proposedDate must use YYYY-MM-DD format")
	}

	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition,
			fmt.Sprintf("%s session cannot be rescheduled", session.Status))
	}
	if session.EnrollmentID == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "ad-hoc session has no enrollment deadline to extend")
	}

	now := time.Now().UTC()
	request := &models.ExtensionRequest{
		ID:               uuid.NewString(),
		SessionID:        session.ID,
		EnrollmentID:     *session.EnrollmentID,
		RequestedWeeks:   req.RequestedWeeks,
		Reason:           req.Reason,
		ProposedDate:     DateOnly(proposedDate),
		ProposedTimeSlot: req.ProposedTimeSlot,
		Status:           models.ExtensionRequestStatusPending,
		RequestedBy:      requestedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create extension request")
	}
	return request, nil
}

// Get returns one extension request.
func (s *ExtensionService) Get(ctx context.Context, id string) (*models.ExtensionRequest, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "extension request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load extension request")
	}
	return request, nil
}

// ListByStatus returns requests in the given review state, oldest first.
func (s *ExtensionService) ListByStatus(ctx context.Context, status models.ExtensionRequestStatus) ([]models.ExtensionRequest, error) {
	requests, err := s.requests.ListByStatus(ctx, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list extension requests")
	}
	return requests, nil
}

// Approve grants the extension. Three writes commit together or not at all:
// the enrollment gains the requested weeks, the blocked session moves to
// the proposed date and slot, and the request is marked approved. The new
// effective end date must cover the proposed date, otherwise the grant
// would not actually unblock the session.
func (s *ExtensionService) Approve(ctx context.Context, requestID string, reviewer string, notes string) (*dto.ExtensionApproval, error) {
	calendar, err := s.calendars.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin approval transaction")
	}
	defer func() { _ = tx.Rollback() }()

	request, err := s.requests.FindByIDForUpdate(ctx, tx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "extension request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load extension request")
	}
	if request.Status != models.ExtensionRequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition,
			fmt.Sprintf("extension request already %s", request.Status))
	}

	enrollment, err := s.enrollments.FindByIDForUpdate(ctx, tx, request.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	session, err := s.sessions.FindByIDForUpdate(ctx, tx, request.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition,
			fmt.Sprintf("%s session cannot be rescheduled", session.Status))
	}

	newEndDate, err := EffectiveEndDate(enrollment.FirstLessonDate, enrollment.LessonsPaid, enrollment.ExtensionWeeks+request.RequestedWeeks, calendar)
	if err != nil {
		return nil, err
	}
	if request.ProposedDate.After(newEndDate) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("proposed date %s still exceeds the extended deadline %s",
				request.ProposedDate.Format("2006-01-02"), newEndDate.Format("2006-01-02")))
	}

	if err := s.enrollments.AddExtensionWeeks(ctx, tx, enrollment.ID, request.RequestedWeeks); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to extend enrollment")
	}
	if err := s.sessions.Reschedule(ctx, tx, session.ID, request.ProposedDate, request.ProposedTimeSlot); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateSession,
				fmt.Sprintf("slot %s %s already holds a live session",
					request.ProposedDate.Format("2006-01-02"), request.ProposedTimeSlot))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule session")
	}
	now := time.Now().UTC()
	var reviewNotes *string
	if notes != "" {
		reviewNotes = &notes
	}
	if err := s.requests.SetReview(ctx, tx, request.ID, models.ExtensionRequestStatusApproved, reviewer, reviewNotes, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition, "extension request already reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark request approved")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit approval")
	}

	request.Status = models.ExtensionRequestStatusApproved
	request.ReviewedBy = &reviewer
	request.ReviewNotes = reviewNotes
	request.ReviewedAt = &now
	session.SessionDate = request.ProposedDate
	session.TimeSlot = request.ProposedTimeSlot

	if s.events != nil {
		s.events.Publish(ctx, sessionEventFrom(EventExtensionApproved,
			session.ID, enrollment.ID, enrollment.StudentID, enrollment.TutorID, string(session.Status), session.SessionDate))
	}
	s.metrics.ObserveExtensionReview("approved")
	s.logger.Info("extension request approved",
		zap.String("requestId", request.ID),
		zap.String("enrollmentId", enrollment.ID),
		zap.Int("requestedWeeks", request.RequestedWeeks),
		zap.String("newEffectiveEndDate", newEndDate.Format("2006-01-02")))

	return &dto.ExtensionApproval{
		Request:          *request,
		EffectiveEndDate: newEndDate.Format("2006-01-02"),
		Session:          session,
	}, nil
}

// Reject closes the request without touching the enrollment or session.
func (s *ExtensionService) Reject(ctx context.Context, requestID string, reviewer string, notes string) (*models.ExtensionRequest, error) {
	request, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.ExtensionRequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition,
			fmt.Sprintf("extension request already %s", request.Status))
	}

	now := time.Now().UTC()
	var reviewNotes *string
	if notes != "" {
		reviewNotes = &notes
	}
	// The guarded UPDATE is the arbiter: if an approval slipped in between
	// the read above and this write, zero rows come back and the rejection
	// must not overwrite the committed review.
	if err := s.requests.SetReview(ctx, nil, request.ID, models.ExtensionRequestStatusRejected, reviewer, reviewNotes, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition, "extension request already reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark request rejected")
	}
	request.Status = models.ExtensionRequestStatusRejected
	request.ReviewedBy = &reviewer
	request.ReviewNotes = reviewNotes
	request.ReviewedAt = &now
	s.metrics.ObserveExtensionReview("rejected")
	return request, nil
}
