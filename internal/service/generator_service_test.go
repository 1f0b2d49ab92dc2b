package service

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-center-api/internal/models"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) *txProviderMock {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock"), mock: mock}
}

func (p *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return p.db.BeginTxx(ctx, opts)
}

func (p *txProviderMock) expectCommit() {
	p.mock.ExpectBegin()
	p.mock.ExpectCommit()
}

func (p *txProviderMock) expectRollback() {
	p.mock.ExpectBegin()
	p.mock.ExpectRollback()
}

type mockGenEnrollments struct {
	enrollments map[string]models.Enrollment
}

func (m *mockGenEnrollments) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

type mockGenSessions struct {
	existing     map[string]struct{}
	inserted     []models.Session
	failOnDate   string
	linkedOrigin []string
	linkedStatus []models.SessionStatus
}

func (m *mockGenSessions) Insert(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	if m.failOnDate != "" && session.SessionDate.Format("2006-01-02") == m.failOnDate {
		return &pq.Error{Code: "23505"}
	}
	m.inserted = append(m.inserted, *session)
	return nil
}

func (m *mockGenSessions) ExistingDates(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) (map[string]struct{}, error) {
	if m.existing == nil {
		return map[string]struct{}{}, nil
	}
	return m.existing, nil
}

func (m *mockGenSessions) LinkReplacement(ctx context.Context, tx *sqlx.Tx, originID, replacementID string, status models.SessionStatus) error {
	m.linkedOrigin = append(m.linkedOrigin, originID)
	m.linkedStatus = append(m.linkedStatus, status)
	return nil
}

type mockGenReschedules struct {
	pending []models.PlannedReschedule
	applied []string
}

func (m *mockGenReschedules) ListPendingByEnrollment(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) ([]models.PlannedReschedule, error) {
	return m.pending, nil
}

func (m *mockGenReschedules) MarkApplied(ctx context.Context, tx *sqlx.Tx, id string) error {
	m.applied = append(m.applied, id)
	return nil
}

type stubCalendars struct {
	cal HolidayCalendar
}

func (s stubCalendars) Snapshot(ctx context.Context) (HolidayCalendar, error) {
	return s.cal, nil
}

type mockEvents struct {
	published []SessionEvent
}

func (m *mockEvents) Publish(ctx context.Context, event SessionEvent) {
	m.published = append(m.published, event)
}

func paidEnrollment() models.Enrollment {
	return models.Enrollment{
		ID:              "enr-1",
		StudentID:       "stu-1",
		TutorID:         "tut-1",
		DayOfWeek:       models.WeekdayMonday,
		TimeSlot:        "16:00-17:30",
		Location:        "Room A",
		LessonsPaid:     6,
		FirstLessonDate: day("2025-09-01"),
		PaymentStatus:   models.PaymentStatusPaid,
	}
}

func newGeneratorFixture(t *testing.T, enrollment models.Enrollment, sessions *mockGenSessions, reschedules *mockGenReschedules, cal HolidayCalendar) (*GeneratorService, *txProviderMock, *mockEvents) {
	tx := newTxProviderMock(t)
	events := &mockEvents{}
	svc := NewGeneratorService(
		&mockGenEnrollments{enrollments: map[string]models.Enrollment{enrollment.ID: enrollment}},
		sessions, reschedules, stubCalendars{cal: cal}, events, tx,
		nil, zap.NewNop(), nil)
	return svc, tx, events
}

func TestGeneratorCreatesFullPaidSchedule(t *testing.T) {
	sessions := &mockGenSessions{}
	svc, tx, events := newGeneratorFixture(t, paidEnrollment(), sessions, &mockGenReschedules{}, NewHolidayCalendar(days("2025-09-22")))
	tx.expectCommit()

	result, err := svc.GenerateSessions(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 6, result.Created)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, "2025-10-20", result.EffectiveEndDate)
	require.Len(t, sessions.inserted, 6)
	assert.Equal(t, "2025-09-01", sessions.inserted[0].SessionDate.Format("2006-01-02"))
	assert.Equal(t, "2025-09-29", sessions.inserted[3].SessionDate.Format("2006-01-02"))
	for _, s := range sessions.inserted {
		assert.Equal(t, models.SessionStatusScheduled, s.Status)
		assert.Equal(t, models.FinanceStatusPaid, s.FinanceStatus)
	}
	assert.Len(t, events.published, 6)
	require.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestGeneratorRerunIsIdempotent(t *testing.T) {
	sessions := &mockGenSessions{existing: map[string]struct{}{
		"2025-09-01": {}, "2025-09-08": {}, "2025-09-15": {},
		"2025-09-29": {}, "2025-10-06": {}, "2025-10-13": {},
	}}
	svc, tx, events := newGeneratorFixture(t, paidEnrollment(), sessions, &mockGenReschedules{}, NewHolidayCalendar(days("2025-09-22")))
	tx.expectCommit()

	result, err := svc.GenerateSessions(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 6, result.Skipped)
	assert.Empty(t, sessions.inserted)
	assert.Empty(t, events.published)
}

func TestGeneratorBackfillsPartialSchedule(t *testing.T) {
	sessions := &mockGenSessions{existing: map[string]struct{}{"2025-09-01": {}, "2025-09-08": {}}}
	svc, tx, _ := newGeneratorFixture(t, paidEnrollment(), sessions, &mockGenReschedules{}, NewHolidayCalendar(days("2025-09-22")))
	tx.expectCommit()

	result, err := svc.GenerateSessions(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 4, result.Created)
	assert.Equal(t, 2, result.Skipped)
}

func TestGeneratorTrialSessionForPendingPayment(t *testing.T) {
	enrollment := paidEnrollment()
	enrollment.PaymentStatus = models.PaymentStatusPending
	sessions := &mockGenSessions{}
	svc, tx, _ := newGeneratorFixture(t, enrollment, sessions, &mockGenReschedules{}, NewHolidayCalendar(nil))
	tx.expectCommit()

	result, err := svc.GenerateSessions(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	require.Len(t, sessions.inserted, 1)
	assert.Equal(t, models.FinanceStatusUnpaid, sessions.inserted[0].FinanceStatus)
	// The deadline still covers the whole paid entitlement.
	assert.Equal(t, "2025-10-13", result.EffectiveEndDate)
}

func TestGeneratorThreadsPlannedReschedule(t *testing.T) {
	preferred := day("2025-09-10")
	reschedules := &mockGenReschedules{pending: []models.PlannedReschedule{{
		ID:                  "pr-1",
		EnrollmentID:        "enr-1",
		PlannedDate:         day("2025-09-08"),
		PreferredMakeupDate: &preferred,
		Status:              models.PlannedRescheduleStatusPending,
	}}}
	sessions := &mockGenSessions{}
	svc, tx, _ := newGeneratorFixture(t, paidEnrollment(), sessions, reschedules, NewHolidayCalendar(nil))
	tx.expectCommit()

	result, err := svc.GenerateSessions(context.Background(), "enr-1")
	require.NoError(t, err)
	// Six regular dates plus one makeup replacement.
	assert.Equal(t, 7, result.Created)

	var origin, makeup *models.Session
	for i := range sessions.inserted {
		s := &sessions.inserted[i]
		switch {
		case s.SessionDate.Format("2006-01-02") == "2025-09-08":
			origin = s
		case s.Status == models.SessionStatusMakeupClass:
			makeup = s
		}
	}
	require.NotNil(t, origin)
	require.NotNil(t, makeup)
	assert.Equal(t, models.SessionStatusPendingMakeup, origin.Status)
	assert.Equal(t, "2025-09-10", makeup.SessionDate.Format("2006-01-02"))
	require.NotNil(t, makeup.MakeupForID)
	assert.Equal(t, origin.ID, *makeup.MakeupForID)
	assert.Equal(t, []string{origin.ID}, sessions.linkedOrigin)
	// The linked origin keeps its pending-makeup status; the declaration
	// already named the replacement.
	assert.Equal(t, []models.SessionStatus{models.SessionStatusPendingMakeup}, sessions.linkedStatus)
	assert.Equal(t, []string{"pr-1"}, reschedules.applied)
}

func TestGeneratorRescheduleWithoutPreferredDateLeavesMakeupOpen(t *testing.T) {
	reschedules := &mockGenReschedules{pending: []models.PlannedReschedule{{
		ID:           "pr-1",
		EnrollmentID: "enr-1",
		PlannedDate:  day("2025-09-08"),
		Status:       models.PlannedRescheduleStatusPending,
	}}}
	sessions := &mockGenSessions{}
	svc, tx, _ := newGeneratorFixture(t, paidEnrollment(), sessions, reschedules, NewHolidayCalendar(nil))
	tx.expectCommit()

	result, err := svc.GenerateSessions(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 6, result.Created)
	assert.Empty(t, sessions.linkedOrigin)
	assert.Equal(t, []string{"pr-1"}, reschedules.applied)
	for _, s := range sessions.inserted {
		if s.SessionDate.Format("2006-01-02") == "2025-09-08" {
			assert.Equal(t, models.SessionStatusPendingMakeup, s.Status)
		}
	}
}

func TestGeneratorAbortsOnForeignCollision(t *testing.T) {
	sessions := &mockGenSessions{failOnDate: "2025-09-15"}
	svc, tx, events := newGeneratorFixture(t, paidEnrollment(), sessions, &mockGenReschedules{}, NewHolidayCalendar(nil))
	tx.expectRollback()

	_, err := svc.GenerateSessions(context.Background(), "enr-1")
	assert.Equal(t, appErrors.ErrDuplicateSession.Code, appErrors.FromError(err).Code)
	assert.Contains(t, appErrors.FromError(err).Message, "2025-09-15")
	assert.Empty(t, events.published)
	require.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestGeneratorRejectsCancelledEnrollment(t *testing.T) {
	enrollment := paidEnrollment()
	enrollment.PaymentStatus = models.PaymentStatusCancelled
	svc, tx, _ := newGeneratorFixture(t, enrollment, &mockGenSessions{}, &mockGenReschedules{}, NewHolidayCalendar(nil))
	tx.expectRollback()

	_, err := svc.GenerateSessions(context.Background(), "enr-1")
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestGeneratorUnknownEnrollment(t *testing.T) {
	svc, tx, _ := newGeneratorFixture(t, paidEnrollment(), &mockGenSessions{}, &mockGenReschedules{}, NewHolidayCalendar(nil))
	tx.expectRollback()

	_, err := svc.GenerateSessions(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGeneratorRequiresEnrollmentID(t *testing.T) {
	svc, _, _ := newGeneratorFixture(t, paidEnrollment(), &mockGenSessions{}, &mockGenReschedules{}, NewHolidayCalendar(nil))

	_, err := svc.GenerateSessions(context.Background(), "")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
