package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-center-api/internal/dto"
	"github.com/noah-isme/tutor-center-api/internal/models"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
)

type mockMakeupSessions struct {
	sessions  map[string]models.Session
	collision bool
	pending   []models.PendingMakeupSession
	inserted  []models.Session

	// staleReads makes FindByID report an outdated status for a session
	// while the store keeps the current one, reproducing a reader that
	// validated a transition just before a concurrent writer committed.
	staleReads map[string]models.SessionStatus
}

func (m *mockMakeupSessions) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if s, ok := m.sessions[id]; ok {
		if stale, ok := m.staleReads[id]; ok {
			s.Status = stale
		}
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMakeupSessions) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Session, error) {
	return m.FindByID(ctx, id)
}

func (m *mockMakeupSessions) Insert(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	m.inserted = append(m.inserted, *session)
	m.sessions[session.ID] = *session
	return nil
}

func (m *mockMakeupSessions) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status, expected models.SessionStatus) error {
	s, ok := m.sessions[id]
	if !ok || s.Status != expected {
		return sql.ErrNoRows
	}
	s.Status = status
	m.sessions[id] = s
	return nil
}

func (m *mockMakeupSessions) MarkAttendance(ctx context.Context, id string, status, expected models.SessionStatus, markedBy string, markedAt time.Time) error {
	s, ok := m.sessions[id]
	if !ok || s.Status != expected {
		return sql.ErrNoRows
	}
	s.Status = status
	s.AttendanceMarkedBy = &markedBy
	s.AttendanceMarkedAt = &markedAt
	m.sessions[id] = s
	return nil
}

func (m *mockMakeupSessions) LinkReplacement(ctx context.Context, tx *sqlx.Tx, originID, replacementID string, status models.SessionStatus) error {
	s, ok := m.sessions[originID]
	if !ok {
		return sql.ErrNoRows
	}
	s.RescheduledToID = &replacementID
	s.Status = status
	m.sessions[originID] = s
	return nil
}

func (m *mockMakeupSessions) HasCollision(ctx context.Context, studentID, tutorID string, date time.Time, timeSlot, location string) (bool, error) {
	return m.collision, nil
}

func (m *mockMakeupSessions) ListPendingMakeup(ctx context.Context) ([]models.PendingMakeupSession, error) {
	return m.pending, nil
}

func (m *mockMakeupSessions) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	var out []models.Session
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, len(out), nil
}

type mockMakeupProposals struct {
	proposals map[string]models.MakeupProposal
	resolved  []string
}

func (m *mockMakeupProposals) Create(ctx context.Context, proposal *models.MakeupProposal) error {
	if m.proposals == nil {
		m.proposals = make(map[string]models.MakeupProposal)
	}
	m.proposals[proposal.ID] = *proposal
	return nil
}

func (m *mockMakeupProposals) FindByID(ctx context.Context, id string) (*models.MakeupProposal, error) {
	if p, ok := m.proposals[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMakeupProposals) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.MakeupProposal, error) {
	return m.FindByID(ctx, id)
}

func (m *mockMakeupProposals) SetResolution(ctx context.Context, tx *sqlx.Tx, id string, status models.MakeupProposalStatus, resolvedBy string, resolvedAt time.Time) error {
	p, ok := m.proposals[id]
	if !ok || p.Status != models.MakeupProposalStatusPending {
		return sql.ErrNoRows
	}
	p.Status = status
	p.ResolvedBy = &resolvedBy
	p.ResolvedAt = &resolvedAt
	m.proposals[id] = p
	m.resolved = append(m.resolved, id)
	return nil
}

func (m *mockMakeupProposals) ListByOrigin(ctx context.Context, originSessionID string) ([]models.MakeupProposal, error) {
	var out []models.MakeupProposal
	for _, p := range m.proposals {
		if p.OriginSessionID == originSessionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func enrollmentIDRef() *string {
	id := "enr-1"
	return &id
}

func scheduledSession(id string, status models.SessionStatus) models.Session {
	return models.Session{
		ID:            id,
		EnrollmentID:  enrollmentIDRef(),
		StudentID:     "stu-1",
		TutorID:       "tut-1",
		SessionDate:   day("2025-09-08"),
		TimeSlot:      "16:00-17:30",
		Location:      "Room A",
		Status:        status,
		FinanceStatus: models.FinanceStatusPaid,
	}
}

func newMakeupFixture(t *testing.T, sessions *mockMakeupSessions, proposals *mockMakeupProposals) (*MakeupService, *txProviderMock, *mockEvents) {
	tx := newTxProviderMock(t)
	events := &mockEvents{}
	svc := NewMakeupService(sessions, proposals, events, tx, nil, zap.NewNop(), nil, MakeupServiceConfig{WindowDays: 60})
	return svc, tx, events
}

func TestMarkAttendanceOnScheduledSession(t *testing.T) {
	sessions := &mockMakeupSessions{sessions: map[string]models.Session{"sess-1": scheduledSession("sess-1", models.SessionStatusScheduled)}}
	svc, _, events := newMakeupFixture(t, sessions, &mockMakeupProposals{})

	updated, err := svc.MarkAttendance(context.Background(), "sess-1", dto.MarkAttendanceRequest{Status: models.SessionStatusAttended}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusAttended, updated.Status)
	require.NotNil(t, updated.AttendanceMarkedBy)
	assert.Equal(t, "admin-1", *updated.AttendanceMarkedBy)
	assert.Len(t, events.published, 1)
}

func TestMarkAttendanceRejectsPendingMakeup(t *testing.T) {
	sessions := &mockMakeupSessions{sessions: map[string]models.Session{"sess-1": scheduledSession("sess-1", models.SessionStatusPendingMakeup)}}
	svc, _, _ := newMakeupFixture(t, sessions, &mockMakeupProposals{})

	_, err := svc.MarkAttendance(context.Background(), "sess-1", dto.MarkAttendanceRequest{Status: models.SessionStatusAttended}, "admin-1")
	assert.Equal(t, appErrors.ErrInvalidStateTransition.Code, appErrors.FromError(err).Code)
}

func TestDisruptOpensMakeupWindow(t *testing.T) {
	sessions := &mockMakeupSessions{sessions: map[string]models.Session{"sess-1": scheduledSession("sess-1", models.SessionStatusScheduled)}}
	svc, _, _ := newMakeupFixture(t, sessions, &mockMakeupProposals{})

	updated, err := svc.Disrupt(context.Background(), "sess-1", dto.DisruptSessionRequest{Reason: "student sick"}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusPendingMakeup, updated.Status)
	assert.Equal(t, models.SessionStatusPendingMakeup, sessions.sessions["sess-1"].Status)
}

func TestDisruptRejectsMakeupClass(t *testing.T) {
	// A makeup class can never be rescheduled into another makeup.
	sessions := &mockMakeupSessions{sessions: map[string]models.Session{"sess-1": scheduledSession("sess-1", models.SessionStatusMakeupClass)}}
	svc, _, _ := newMakeupFixture(t, sessions, &mockMakeupProposals{})

	_, err := svc.Disrupt(context.Background(), "sess-1", dto.DisruptSessionRequest{Reason: "tutor sick"}, "admin-1")
	assert.Equal(t, appErrors.ErrInvalidStateTransition.Code, appErrors.FromError(err).Code)
}

func TestCancelRejectsTerminalSession(t *testing.T) {
	sessions := &mockMakeupSessions{sessions: map[string]models.Session{"sess-1": scheduledSession("sess-1", models.SessionStatusAttended)}}
	svc, _, _ := newMakeupFixture(t, sessions, &mockMakeupProposals{})

	_, err := svc.Cancel(context.Background(), "sess-1", dto.CancelSessionRequest{Reason: "closed"}, "admin-1")
	assert.Equal(t, appErrors.ErrInvalidStateTransition.Code, appErrors.FromError(err).Code)
}

func TestGetChainResolvesReplacementToOrigin(t *testing.T) {
	origin := scheduledSession("origin-1", models.SessionStatusMakeupBooked)
	replacementID := "makeup-1"
	origin.RescheduledToID = &replacementID
	replacement := scheduledSession("makeup-1", models.SessionStatusMakeupClass)
	originID := "origin-1"
	replacement.MakeupForID = &originID
	sessions := &mockMakeupSessions{sessions: map[string]models.Session{"origin-1": origin, "makeup-1": replacement}}
	svc, _, _ := newMakeupFixture(t, sessions, &mockMakeupProposals{})

	chain, err := svc.GetChain(context.Background(), "makeup-1")
	require.NoError(t, err)
	assert.Equal(t, "origin-1", chain.Origin.ID)
	require.NotNil(t, chain.Replacement)
	assert.Equal(t, "makeup-1", chain.Replacement.ID)
}

func TestListPendingMakeupAddsRemainingWindow(t *testing.T) {
	sessions := &mockMakeupSessions{pending: []models.PendingMakeupSession{
		{Session: scheduledSession("sess-1", models.SessionStatusPendingMakeup), DaysOutstanding: 10},
		{Session: scheduledSession("sess-2", models.SessionStatusPendingMakeup), DaysOutstanding: 65},
	}}
	svc, _, _ := newMakeupFixture(t, sessions, &mockMakeupProposals{})

	items, err := svc.ListPendingMakeup(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 50, items[0].DaysLeftInWindow)
	assert.Equal(t, -5, items[1].DaysLeftInWindow)
}

func TestProposeMakeupWithinWindow(t *testing.T) {
	sessions := &mockMakeupSessions{sessions: map[string]models.Session{"sess-1": scheduledSession("sess-1", models.SessionStatusPendingMakeup)}}
	proposals := &mockMakeupProposals{}
	svc, _, _ := newMakeupFixture(t, sessions, proposals)

	proposal, err := svc.ProposeMakeup(context.Background(), "sess-1", dto.ProposeMakeupRequest{
		ProposedDate:     "2025-09-20",
		ProposedTimeSlot: "10:00-11:30",
		ProposedLocation: "Room B",
	}, "tutor-1")
	require.NoError(t, err)
	assert.Equal(t, models.MakeupProposalStatusPending, proposal.Status)
	assert.Equal(t, "sess-1", proposal.OriginSessionID)
	assert.Len(t, proposals.proposals, 1)
}

func TestProposeMakeupBeyondWindow(t *testing.T) {
	sessions := &mockMakeupSessions{sessions: map[string]models.Session{"sess-1": scheduledSession("sess-1", models.SessionStatusPendingMakeup)}}
	svc, _, _ := newMakeupFixture(t, sessions, &mockMakeupProposals{})

	// Origin is 2025-09-08; 60 days later is 2025-11-07.
	_, err := svc.ProposeMakeup(context.Background(), "sess-1", dto.ProposeMakeupRequest{
		ProposedDate:     "2025-11-08",
		ProposedTimeSlot: "10:00-11:30",
		ProposedLocation: "Room B",
	}, "tutor-1")
	assert.Equal(t, appErrors.ErrMakeupWindowExceeded.Code, appErrors.FromError(err).Code)
}

func TestProposeMakeupOnLastWindowDay(t *testing.T) {
	sessions := &mockMakeupSessions{sessions: map[string]models.Session{"sess-1": scheduledSession("sess-1", models.SessionStatusPendingMakeup)}}
	svc, _, _ := newMakeupFixture(t, sessions, &mockMakeupProposals{})

	_, err := svc.ProposeMakeup(context.Background(), "sess-1", dto.ProposeMakeupRequest{
		ProposedDate:     "2025-11-07",
		ProposedTimeSlot: "10:00-11:30",
		ProposedLocation: "Room B",
	}, "tutor-1")
	require.NoError(t, err)
}

func TestProposeMakeupRequiresPendingOrigin(t *testing.T) {
	sessions := &mockMakeupSessions{sessions: map[string]models.Session{"sess-1": scheduledSession("sess-1", models.SessionStatusScheduled)}}
	svc, _, _ := newMakeupFixture(t, sessions, &mockMakeupProposals{})

	_, err := svc.ProposeMakeup(context.Background(), "sess-1", dto.ProposeMakeupRequest{
		ProposedDate:     "2025-09-20",
		ProposedTimeSlot: "10:00-11:30",
		ProposedLocation: "Room B",
	}, "tutor-1")
	assert.Equal(t, appErrors.ErrInvalidStateTransition.Code, appErrors.FromError(err).Code)
}

func TestProposeMakeupRejectsOccupiedSlot(t *testing.T) {
	sessions := &mockMakeupSessions{
		sessions:  map[string]models.Session{"sess-1": scheduledSession("sess-1", models.SessionStatusPendingMakeup)},
		collision: true,
	}
	svc, _, _ := newMakeupFixture(t, sessions, &mockMakeupProposals{})

	_, err := svc.ProposeMakeup(context.Background(), "sess-1", dto.ProposeMakeupRequest{
		ProposedDate:     "2025-09-20",
		ProposedTimeSlot: "10:00-11:30",
		ProposedLocation: "Room B",
	}, "tutor-1")
	assert.Equal(t, appErrors.ErrDuplicateSession.Code, appErrors.FromError(err).Code)
}

func pendingProposal(id, originID string) models.MakeupProposal {
	return models.MakeupProposal{
		ID:               id,
		OriginSessionID:  originID,
		ProposedDate:     day("2025-09-20"),
		ProposedTimeSlot: "10:00-11:30",
		ProposedLocation: "Room B",
		Status:           models.MakeupProposalStatusPending,
		ProposedBy:       "tutor-1",
	}
}

func TestResolveProposalAcceptBooksMakeup(t *testing.T) {
	sessions := &mockMakeupSessions{sessions: map[string]models.Session{"origin-1": scheduledSession("origin-1", models.SessionStatusPendingMakeup)}}
	proposals := &mockMakeupProposals{proposals: map[string]models.MakeupProposal{"prop-1": pendingProposal("prop-1", "origin-1")}}
	svc, tx, events := newMakeupFixture(t, sessions, proposals)
	tx.expectCommit()

	result, err := svc.ResolveProposal(context.Background(), "prop-1", dto.ResolveMakeupProposalRequest{Status: models.MakeupProposalStatusAccepted}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.MakeupProposalStatusAccepted, result.Proposal.Status)
	require.NotNil(t, result.Origin)
	require.NotNil(t, result.Replacement)
	assert.Equal(t, models.SessionStatusMakeupBooked, result.Origin.Status)
	assert.Equal(t, models.SessionStatusMakeupClass, result.Replacement.Status)
	require.NotNil(t, result.Replacement.MakeupForID)
	assert.Equal(t, "origin-1", *result.Replacement.MakeupForID)
	assert.Equal(t, "2025-09-20", result.Replacement.SessionDate.Format("2006-01-02"))
	assert.Len(t, events.published, 2)
	require.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestResolveProposalReject(t *testing.T) {
	sessions := &mockMakeupSessions{sessions: map[string]models.Session{"origin-1": scheduledSession("origin-1", models.SessionStatusPendingMakeup)}}
	proposals := &mockMakeupProposals{proposals: map[string]models.MakeupProposal{"prop-1": pendingProposal("prop-1", "origin-1")}}
	svc, tx, _ := newMakeupFixture(t, sessions, proposals)
	tx.expectCommit()

	result, err := svc.ResolveProposal(context.Background(), "prop-1", dto.ResolveMakeupProposalRequest{Status: models.MakeupProposalStatusRejected}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.MakeupProposalStatusRejected, result.Proposal.Status)
	assert.Nil(t, result.Origin)
	// The origin keeps waiting for another proposal.
	assert.Equal(t, models.SessionStatusPendingMakeup, sessions.sessions["origin-1"].Status)
	assert.Empty(t, sessions.inserted)
}

func TestResolveProposalAlreadyResolved(t *testing.T) {
	resolved := pendingProposal("prop-1", "origin-1")
	resolved.Status = models.MakeupProposalStatusAccepted
	proposals := &mockMakeupProposals{proposals: map[string]models.MakeupProposal{"prop-1": resolved}}
	svc, tx, _ := newMakeupFixture(t, &mockMakeupSessions{sessions: map[string]models.Session{}}, proposals)
	tx.expectRollback()

	_, err := svc.ResolveProposal(context.Background(), "prop-1", dto.ResolveMakeupProposalRequest{Status: models.MakeupProposalStatusAccepted}, "admin-1")
	assert.Equal(t, appErrors.ErrProposalAlreadyResolved.Code, appErrors.FromError(err).Code)
}

func TestResolveProposalLosesRaceOnOrigin(t *testing.T) {
	// A competing proposal already booked the makeup: the origin carries a
	// forward link even though this proposal is still pending.
	origin := scheduledSession("origin-1", models.SessionStatusMakeupBooked)
	winner := "makeup-9"
	origin.RescheduledToID = &winner
	sessions := &mockMakeupSessions{sessions: map[string]models.Session{"origin-1": origin}}
	proposals := &mockMakeupProposals{proposals: map[string]models.MakeupProposal{"prop-2": pendingProposal("prop-2", "origin-1")}}
	svc, tx, _ := newMakeupFixture(t, sessions, proposals)
	tx.expectRollback()

	_, err := svc.ResolveProposal(context.Background(), "prop-2", dto.ResolveMakeupProposalRequest{Status: models.MakeupProposalStatusAccepted}, "admin-2")
	assert.Equal(t, appErrors.ErrProposalAlreadyResolved.Code, appErrors.FromError(err).Code)
	assert.Empty(t, sessions.inserted)
}

func TestCancelLosesRaceToBookedMakeup(t *testing.T) {
	booked := scheduledSession("sess-1", models.SessionStatusMakeupBooked)
	replacementID := "sess-2"
	booked.RescheduledToID = &replacementID
	sessions := &mockMakeupSessions{
		sessions:   map[string]models.Session{"sess-1": booked},
		staleReads: map[string]models.SessionStatus{"sess-1": models.SessionStatusPendingMakeup},
	}
	svc, _, events := newMakeupFixture(t, sessions, &mockMakeupProposals{})

	_, err := svc.Cancel(context.Background(), "sess-1", dto.CancelSessionRequest{Reason: "student withdrew"}, "admin-1")
	assert.Equal(t, appErrors.ErrInvalidStateTransition.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.SessionStatusMakeupBooked, sessions.sessions["sess-1"].Status)
	assert.Empty(t, events.published)
}

func TestMarkAttendanceLosesRaceToDisruption(t *testing.T) {
	sessions := &mockMakeupSessions{
		sessions:   map[string]models.Session{"sess-1": scheduledSession("sess-1", models.SessionStatusPendingMakeup)},
		staleReads: map[string]models.SessionStatus{"sess-1": models.SessionStatusScheduled},
	}
	svc, _, _ := newMakeupFixture(t, sessions, &mockMakeupProposals{})

	_, err := svc.MarkAttendance(context.Background(), "sess-1", dto.MarkAttendanceRequest{Status: models.SessionStatusAttended}, "tutor-1")
	assert.Equal(t, appErrors.ErrInvalidStateTransition.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.SessionStatusPendingMakeup, sessions.sessions["sess-1"].Status)
	assert.Nil(t, sessions.sessions["sess-1"].AttendanceMarkedBy)
}
