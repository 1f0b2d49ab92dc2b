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

type generatorEnrollmentStore interface {
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Enrollment, error)
}

type generatorSessionStore interface {
	Insert(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error
	ExistingDates(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) (map[string]struct{}, error)
	LinkReplacement(ctx context.Context, tx *sqlx.Tx, originID, replacementID string, status models.SessionStatus) error
}

type generatorRescheduleStore interface {
	ListPendingByEnrollment(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) ([]models.PlannedReschedule, error)
	MarkApplied(ctx context.Context, tx *sqlx.Tx, id string) error
}

type calendarProvider interface {
	Snapshot(ctx context.Context) (HolidayCalendar, error)
}

type eventSink interface {
	Publish(ctx context.Context, event SessionEvent)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// GeneratorService materialises an enrollment's weekly entitlement into
// session rows: one per paid lesson, holidays skipped, pending planned
// reschedules threaded in, everything inside one transaction so a duplicate
// conflict aborts the whole batch.
type GeneratorService struct {
	enrollments generatorEnrollmentStore
	sessions    generatorSessionStore
	reschedules generatorRescheduleStore
	calendars   calendarProvider
	events      eventSink
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService
}

// NewGeneratorService wires the generator dependencies.
func NewGeneratorService(
	enrollments generatorEnrollmentStore,
	sessions generatorSessionStore,
	reschedules generatorRescheduleStore,
	calendars calendarProvider,
	events eventSink,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
) *GeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeneratorService{
		enrollments: enrollments,
		sessions:    sessions,
		reschedules: reschedules,
		calendars:   calendars,
		events:      events,
		tx:          tx,
		validator:   validate,
		logger:      logger,
		metrics:     metrics,
	}
}

// GenerateSessions creates the missing sessions for one enrollment. The
// enrollment row is locked for the duration so concurrent generation, manual
// rescheduling and extension approval serialize per enrollment. Re-running
// on a fully generated enrollment creates nothing: dates already holding a
// live session are skipped. A collision with a session this enrollment does
// not own rolls everything back and surfaces the conflicting date.
func (s *GeneratorService) GenerateSessions(ctx context.Context, enrollmentID string) (*dto.GenerationResult, error) {
	if enrollmentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment id is required")
	}

	calendar, err := s.calendars.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin generation transaction")
	}
	defer func() { _ = tx.Rollback() }()

	enrollment, err := s.enrollments.FindByIDForUpdate(ctx, tx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if !enrollment.PaymentStatus.Active() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "cancelled enrollment cannot generate sessions")
	}

	// A trial enrollment gets its first lesson only; the rest materialise
	// once payment is confirmed.
	lessonCount := enrollment.LessonsPaid
	if enrollment.PaymentStatus == models.PaymentStatusPending {
		lessonCount = 1
	}

	dates, err := WeeklyLessonDates(enrollment.FirstLessonDate, lessonCount, calendar)
	if err != nil {
		return nil, err
	}

	existing, err := s.sessions.ExistingDates(ctx, tx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing sessions")
	}

	pending, err := s.reschedules.ListPendingByEnrollment(ctx, tx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load planned reschedules")
	}
	rescheduleByDate := make(map[string]models.PlannedReschedule, len(pending))
	for _, item := range pending {
		key := item.PlannedDate.Format("2006-01-02")
		if _, taken := rescheduleByDate[key]; !taken {
			rescheduleByDate[key] = item
		}
	}

	result := &dto.GenerationResult{EnrollmentID: enrollment.ID}
	var emitted []SessionEvent
	for _, date := range dates {
		key := date.Format("2006-01-02")
		if _, ok := existing[key]; ok {
			result.Skipped++
			continue
		}

		reschedule, planned := rescheduleByDate[key]
		status := models.SessionStatusScheduled
		if planned {
			status = models.SessionStatusPendingMakeup
		}

		session := s.newSession(enrollment, date, status)
		if err := s.insertSession(ctx, tx, session); err != nil {
			return nil, err
		}
		result.Created++
		result.Sessions = append(result.Sessions, *session)
		emitted = append(emitted, sessionEventFrom(EventSessionGenerated,
			session.ID, enrollment.ID, enrollment.StudentID, enrollment.TutorID, string(session.Status), session.SessionDate))

		if planned {
			if reschedule.PreferredMakeupDate != nil {
				makeup := s.newSession(enrollment, DateOnly(*reschedule.PreferredMakeupDate), models.SessionStatusMakeupClass)
				makeup.MakeupForID = &session.ID
				if err := s.insertSession(ctx, tx, makeup); err != nil {
					return nil, err
				}
				if err := s.sessions.LinkReplacement(ctx, tx, session.ID, makeup.ID, session.Status); err != nil {
					return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link makeup session")
				}
				session.RescheduledToID = &makeup.ID
				result.Created++
				result.Sessions = append(result.Sessions, *makeup)
				emitted = append(emitted, sessionEventFrom(EventSessionGenerated,
					makeup.ID, enrollment.ID, enrollment.StudentID, enrollment.TutorID, string(makeup.Status), makeup.SessionDate))
			}
			if err := s.reschedules.MarkApplied(ctx, tx, reschedule.ID); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply planned reschedule")
			}
		}
	}

	endDate, err := EffectiveEndDate(enrollment.FirstLessonDate, enrollment.LessonsPaid, enrollment.ExtensionWeeks, calendar)
	if err != nil {
		return nil, err
	}
	result.EffectiveEndDate = endDate.Format("2006-01-02")

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit generation")
	}

	// Events only after commit: subscribers must never see a session state
	// that can still roll back.
	if s.events != nil {
		for _, event := range emitted {
			s.events.Publish(ctx, event)
		}
	}
	s.metrics.ObserveGeneration(result.Created, result.Skipped)
	s.logger.Info("sessions generated",
		zap.String("enrollmentId", enrollment.ID),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.String("effectiveEndDate", result.EffectiveEndDate))
	return result, nil
}

func (s *GeneratorService) newSession(enrollment *models.Enrollment, date time.Time, status models.SessionStatus) *models.Session {
	now := time.Now().UTC()
	enrollmentID := enrollment.ID
	finance := models.FinanceStatusPaid
	if enrollment.PaymentStatus == models.PaymentStatusPending {
		finance = models.FinanceStatusUnpaid
	}
	return &models.Session{
		ID:            uuid.NewString(),
		EnrollmentID:  &enrollmentID,
		StudentID:     enrollment.StudentID,
		TutorID:       enrollment.TutorID,
		SessionDate:   date,
		TimeSlot:      enrollment.TimeSlot,
		Location:      enrollment.Location,
		Status:        status,
		FinanceStatus: finance,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *GeneratorService) insertSession(ctx context.Context, tx *sqlx.Tx, session *models.Session) error {
	if err := s.sessions.Insert(ctx, tx, session); err != nil {
		if repository.IsUniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrDuplicateSession,
				fmt.Sprintf("session conflict on %s %s at %s", session.SessionDate.Format("2006-01-02"), session.TimeSlot, session.Location))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert session")
	}
	return nil
}
