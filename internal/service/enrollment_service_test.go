package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-center-api/internal/dto"
	"github.com/noah-isme/tutor-center-api/internal/models"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
)

type mockEnrollmentStore struct {
	enrollments map[string]models.Enrollment
	slotTaken   bool
	created     *models.Enrollment
	statuses    map[string]models.PaymentStatus
}

func (m *mockEnrollmentStore) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	m.enrollments[enrollment.ID] = *enrollment
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentStore) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentStore) ExistsActiveSlot(ctx context.Context, studentID, tutorID string, day models.Weekday, timeSlot, location string) (bool, error) {
	return m.slotTaken, nil
}

func (m *mockEnrollmentStore) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	e, ok := m.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.PaymentStatus = status
	m.enrollments[id] = e
	if m.statuses == nil {
		m.statuses = make(map[string]models.PaymentStatus)
	}
	m.statuses[id] = status
	return nil
}

func (m *mockEnrollmentStore) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		out = append(out, e)
	}
	return out, len(out), nil
}

type mockGenerator struct {
	generated []string
	err       error
}

func (m *mockGenerator) GenerateSessions(ctx context.Context, enrollmentID string) (*dto.GenerationResult, error) {
	m.generated = append(m.generated, enrollmentID)
	if m.err != nil {
		return nil, m.err
	}
	return &dto.GenerationResult{EnrollmentID: enrollmentID, Created: 1}, nil
}

func newEnrollmentFixture(store *mockEnrollmentStore, generator *mockGenerator, cal HolidayCalendar) *EnrollmentService {
	return NewEnrollmentService(store, stubCalendars{cal: cal}, generator, nil, zap.NewNop())
}

func validCreateEnrollmentRequest() dto.CreateEnrollmentRequest {
	return dto.CreateEnrollmentRequest{
		StudentID:       "stu-1",
		TutorID:         "tut-1",
		DayOfWeek:       "MONDAY",
		TimeSlot:        "16:00-17:30",
		Location:        "Room A",
		LessonsPaid:     6,
		FirstLessonDate: "2025-09-01",
	}
}

func TestEnrollmentCreateStartsPendingWithTrialSession(t *testing.T) {
	store := &mockEnrollmentStore{}
	generator := &mockGenerator{}
	svc := newEnrollmentFixture(store, generator, NewHolidayCalendar(nil))

	enrollment, err := svc.Create(context.Background(), validCreateEnrollmentRequest())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, enrollment.PaymentStatus)
	assert.Equal(t, "2025-09-01", enrollment.FirstLessonDate.Format("2006-01-02"))
	require.NotNil(t, store.created)
	assert.Equal(t, []string{enrollment.ID}, generator.generated)
}

func TestEnrollmentCreateRejectsWeekdayMismatch(t *testing.T) {
	svc := newEnrollmentFixture(&mockEnrollmentStore{}, &mockGenerator{}, NewHolidayCalendar(nil))

	req := validCreateEnrollmentRequest()
	req.FirstLessonDate = "2025-09-02" // a Tuesday
	_, err := svc.Create(context.Background(), req)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentCreateRejectsOccupiedSlot(t *testing.T) {
	svc := newEnrollmentFixture(&mockEnrollmentStore{slotTaken: true}, &mockGenerator{}, NewHolidayCalendar(nil))

	_, err := svc.Create(context.Background(), validCreateEnrollmentRequest())
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentCreateSurvivesGenerationFailure(t *testing.T) {
	store := &mockEnrollmentStore{}
	generator := &mockGenerator{err: appErrors.Clone(appErrors.ErrInternal, "storage down")}
	svc := newEnrollmentFixture(store, generator, NewHolidayCalendar(nil))

	// The contract is created even if the trial session cannot be
	// materialised; the batch driver retries later.
	enrollment, err := svc.Create(context.Background(), validCreateEnrollmentRequest())
	require.NoError(t, err)
	assert.NotNil(t, enrollment)
	assert.Len(t, generator.generated, 1)
}

func TestEnrollmentGetDerivesEffectiveEndDate(t *testing.T) {
	store := &mockEnrollmentStore{enrollments: map[string]models.Enrollment{"enr-1": paidEnrollment()}}
	svc := newEnrollmentFixture(store, &mockGenerator{}, NewHolidayCalendar(days("2025-09-22")))

	detail, err := svc.Get(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, "2025-10-20", detail.EffectiveEndDate)
}

func TestEnrollmentConfirmPaymentGeneratesFullSchedule(t *testing.T) {
	pending := paidEnrollment()
	pending.PaymentStatus = models.PaymentStatusPending
	store := &mockEnrollmentStore{enrollments: map[string]models.Enrollment{"enr-1": pending}}
	generator := &mockGenerator{}
	svc := newEnrollmentFixture(store, generator, NewHolidayCalendar(nil))

	updated, err := svc.UpdatePaymentStatus(context.Background(), "enr-1", dto.UpdatePaymentStatusRequest{PaymentStatus: models.PaymentStatusPaid})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, []string{"enr-1"}, generator.generated)
}

func TestEnrollmentCancelDoesNotGenerate(t *testing.T) {
	store := &mockEnrollmentStore{enrollments: map[string]models.Enrollment{"enr-1": paidEnrollment()}}
	generator := &mockGenerator{}
	svc := newEnrollmentFixture(store, generator, NewHolidayCalendar(nil))

	updated, err := svc.UpdatePaymentStatus(context.Background(), "enr-1", dto.UpdatePaymentStatusRequest{PaymentStatus: models.PaymentStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCancelled, updated.PaymentStatus)
	assert.Empty(t, generator.generated)
}

func TestEnrollmentPaymentTransitionsAreClosed(t *testing.T) {
	cancelled := paidEnrollment()
	cancelled.PaymentStatus = models.PaymentStatusCancelled
	store := &mockEnrollmentStore{enrollments: map[string]models.Enrollment{"enr-1": cancelled}}
	svc := newEnrollmentFixture(store, &mockGenerator{}, NewHolidayCalendar(nil))

	_, err := svc.UpdatePaymentStatus(context.Background(), "enr-1", dto.UpdatePaymentStatusRequest{PaymentStatus: models.PaymentStatusPaid})
	assert.Equal(t, appErrors.ErrInvalidStateTransition.Code, appErrors.FromError(err).Code)

	paid := paidEnrollment()
	store.enrollments["enr-2"] = paid
	_, err = svc.UpdatePaymentStatus(context.Background(), "enr-2", dto.UpdatePaymentStatusRequest{PaymentStatus: models.PaymentStatusPending})
	assert.Equal(t, appErrors.ErrInvalidStateTransition.Code, appErrors.FromError(err).Code)
}
