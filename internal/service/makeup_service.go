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

type makeupSessionStore interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Session, error)
	Insert(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status, expected models.SessionStatus) error
	MarkAttendance(ctx context.Context, id string, status, expected models.SessionStatus, markedBy string, markedAt time.Time) error
	LinkReplacement(ctx context.Context, tx *sqlx.Tx, originID, replacementID string, status models.SessionStatus) error
	HasCollision(ctx context.Context, studentID, tutorID string, date time.Time, timeSlot, location string) (bool, error)
	ListPendingMakeup(ctx context.Context) ([]models.PendingMakeupSession, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error)
}

type makeupProposalStore interface {
	Create(ctx context.Context, proposal *models.MakeupProposal) error
	FindByID(ctx context.Context, id string) (*models.MakeupProposal, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.MakeupProposal, error)
	SetResolution(ctx context.Context, tx *sqlx.Tx, id string, status models.MakeupProposalStatus, resolvedBy string, resolvedAt time.Time) error
	ListByOrigin(ctx context.Context, originSessionID string) ([]models.MakeupProposal, error)
}

// MakeupServiceConfig governs the makeup chain rules.
type MakeupServiceConfig struct {
	WindowDays int
}

// MakeupService drives individual sessions through the makeup chain:
// attendance, disruption, proposals and their serialized resolution.
type MakeupService struct {
	sessions   makeupSessionStore
	proposals  makeupProposalStore
	events     eventSink
	tx         txProvider
	validator  *validator.Validate
	logger     *zap.Logger
	metrics    *MetricsService
	windowDays int
}

// NewMakeupService wires the makeup chain dependencies.
func NewMakeupService(
	sessions makeupSessionStore,
	proposals makeupProposalStore,
	events eventSink,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
	cfg MakeupServiceConfig,
) *MakeupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 60
	}
	return &MakeupService{
		sessions:   sessions,
		proposals:  proposals,
		events:     events,
		tx:         tx,
		validator:  validate,
		logger:     logger,
		metrics:    metrics,
		windowDays: cfg.WindowDays,
	}
}

// GetSession returns one session by id.
func (s *MakeupService) GetSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// ListSessions returns sessions matching the query with pagination.
func (s *MakeupService) ListSessions(ctx context.Context, query dto.SessionQuery) ([]models.Session, *models.Pagination, error) {
	filter := models.SessionFilter{
		EnrollmentID: query.EnrollmentID,
		StudentID:    query.StudentID,
		TutorID:      query.TutorID,
		Status:       query.Status,
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	if query.DateFrom != "" {
		from, err := time.Parse("2006-01-02", query.DateFrom)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "dateFrom must use YYYY-MM-DD format")
		}
		filter.DateFrom = &from
	}
	if query.DateTo != "" {
		to, err := time.Parse("2006-01-02", query.DateTo)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "dateTo must use YYYY-MM-DD format")
		}
		filter.DateTo = &to
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// GetChain returns a session together with its replacement when one exists.
// Replacement sessions are resolved back to their origin first.
func (s *MakeupService) GetChain(ctx context.Context, sessionID string) (*dto.MakeupChain, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.MakeupForID != nil {
		origin, err := s.GetSession(ctx, *session.MakeupForID)
		if err != nil {
			return nil, err
		}
		return &dto.MakeupChain{Origin: *origin, Replacement: session}, nil
	}
	chain := &dto.MakeupChain{Origin: *session}
	if session.RescheduledToID != nil {
		replacement, err := s.GetSession(ctx, *session.RescheduledToID)
		if err != nil {
			return nil, err
		}
		chain.Replacement = replacement
	}
	return chain, nil
}

// MarkAttendance records the outcome of a held session. Only live teaching
// states accept an outcome; sinks and pending-makeup states reject it.
func (s *MakeupService) MarkAttendance(ctx context.Context, sessionID string, req dto.MarkAttendanceRequest, markedBy string) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Status.CanTransition(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition,
			fmt.Sprintf("cannot mark %s session as %s", session.Status, req.Status))
	}

	now := time.Now().UTC()
	if err := s.sessions.MarkAttendance(ctx, sessionID, req.Status, session.Status, markedBy, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition,
				fmt.Sprintf("session is no longer %s", session.Status))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}
	session.Status = req.Status
	session.AttendanceMarkedBy = &markedBy
	session.AttendanceMarkedAt = &now

	s.publishStatus(ctx, session, EventSessionStatusChanged)
	return session, nil
}

// Disrupt moves a scheduled session into the pending-makeup state,
// opening the makeup window.
func (s *MakeupService) Disrupt(ctx context.Context, sessionID string, req dto.DisruptSessionRequest, actor string) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid disruption payload")
	}
	return s.transition(ctx, sessionID, models.SessionStatusPendingMakeup, actor, req.Reason)
}

// Cancel voids a session, releasing its slot for rebooking. The row stays
// for the audit trail.
func (s *MakeupService) Cancel(ctx context.Context, sessionID string, req dto.CancelSessionRequest, actor string) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancellation payload")
	}
	return s.transition(ctx, sessionID, models.SessionStatusCancelled, actor, req.Reason)
}

func (s *MakeupService) transition(ctx context.Context, sessionID string, next models.SessionStatus, actor, reason string) (*models.Session, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Status.CanTransition(next) {
		return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition,
			fmt.Sprintf("cannot move %s session to %s", session.Status, next))
	}
	// The status predicate on the UPDATE re-checks the transition at write
	// time: a session that moved concurrently (say a resolution booked the
	// makeup while this cancel waited) leaves zero rows, never an edge
	// outside the table.
	if err := s.sessions.UpdateStatus(ctx, nil, sessionID, next, session.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition,
				fmt.Sprintf("session is no longer %s", session.Status))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session status")
	}
	session.Status = next

	s.logger.Info("session status changed",
		zap.String("sessionId", sessionID),
		zap.String("status", string(next)),
		zap.String("actor", actor),
		zap.String("reason", reason))
	s.publishStatus(ctx, session, EventSessionStatusChanged)
	return session, nil
}

// ListPendingMakeup is the aging view: disrupted sessions still waiting for
// a booked makeup, oldest first, with remaining window days attached.
func (s *MakeupService) ListPendingMakeup(ctx context.Context) ([]models.PendingMakeupSession, error) {
	items, err := s.sessions.ListPendingMakeup(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending makeups")
	}
	for i := range items {
		items[i].DaysLeftInWindow = s.windowDays - items[i].DaysOutstanding
	}
	return items, nil
}

// ProposeMakeup offers a replacement slot for a disrupted session. The
// proposed date must fall inside the makeup window, and the slot must be
// free of any live session for the same student or tutor. The same
// predicate backs the storage-level guard, so a slot occupied only by
// cancelled sessions is bookable.
func (s *MakeupService) ProposeMakeup(ctx context.Context, originSessionID string, req dto.ProposeMakeupRequest, proposedBy string) (*models.MakeupProposal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid makeup proposal payload")
	}
	proposedDate, err := time.Parse("2006-01-02", req.ProposedDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "proposedDate must use YYYY-MM-DD format")
	}

	origin, err := s.GetSession(ctx, originSessionID)
	if err != nil {
		return nil, err
	}
	if origin.Status != models.SessionStatusPendingMakeup || origin.RescheduledToID != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition, "session is not awaiting a makeup")
	}

	windowEnd := DateOnly(origin.SessionDate).AddDate(0, 0, s.windowDays)
	if DateOnly(proposedDate).After(windowEnd) {
		return nil, appErrors.Clone(appErrors.ErrMakeupWindowExceeded,
			fmt.Sprintf("makeup date %s is beyond the %d-day window ending %s",
				req.ProposedDate, s.windowDays, windowEnd.Format("2006-01-02")))
	}

	collides, err := s.sessions.HasCollision(ctx, origin.StudentID, origin.TutorID, DateOnly(proposedDate), req.ProposedTimeSlot, req.ProposedLocation)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot availability")
	}
	if collides {
		return nil, appErrors.Clone(appErrors.ErrDuplicateSession,
			fmt.Sprintf("slot %s %s at %s already holds a live session", req.ProposedDate, req.ProposedTimeSlot, req.ProposedLocation))
	}

	now := time.Now().UTC()
	proposal := &models.MakeupProposal{
		ID:               uuid.NewString(),
		OriginSessionID:  origin.ID,
		ProposedDate:     DateOnly(proposedDate),
		ProposedTimeSlot: req.ProposedTimeSlot,
		ProposedLocation: req.ProposedLocation,
		Note:             req.Note,
		Status:           models.MakeupProposalStatusPending,
		ProposedBy:       proposedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.proposals.Create(ctx, proposal); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create makeup proposal")
	}
	return proposal, nil
}

// ListProposals returns all proposals filed against one origin session.
func (s *MakeupService) ListProposals(ctx context.Context, originSessionID string) ([]models.MakeupProposal, error) {
	proposals, err := s.proposals.ListByOrigin(ctx, originSessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list makeup proposals")
	}
	return proposals, nil
}

// ResolveProposal accepts or rejects a makeup proposal. The proposal and
// the origin session are locked for the duration of the read-verify-write,
// so of two admins racing on the same origin exactly one acceptance wins
// and the loser gets ProposalAlreadyResolved. Acceptance books the makeup:
// a linked replacement session is created and the origin flips to
// MAKEUP_BOOKED in the same transaction.
func (s *MakeupService) ResolveProposal(ctx context.Context, proposalID string, req dto.ResolveMakeupProposalRequest, resolvedBy string) (*dto.MakeupResolution, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resolution payload")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin resolution transaction")
	}
	defer func() { _ = tx.Rollback() }()

	proposal, err := s.proposals.FindByIDForUpdate(ctx, tx, proposalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "makeup proposal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load makeup proposal")
	}
	if proposal.Status != models.MakeupProposalStatusPending {
		return nil, appErrors.Clone(appErrors.ErrProposalAlreadyResolved,
			fmt.Sprintf("proposal already %s", proposal.Status))
	}

	now := time.Now().UTC()
	result := &dto.MakeupResolution{}

	if req.Status == models.MakeupProposalStatusRejected {
		if err := s.proposals.SetResolution(ctx, tx, proposal.ID, models.MakeupProposalStatusRejected, resolvedBy, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrProposalAlreadyResolved, "")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject makeup proposal")
		}
		if err := tx.Commit(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit resolution")
		}
		proposal.Status = models.MakeupProposalStatusRejected
		proposal.ResolvedBy = &resolvedBy
		proposal.ResolvedAt = &now
		result.Proposal = *proposal
		s.metrics.ObserveMakeupResolution("rejected")
		return result, nil
	}

	// Acceptance path: re-verify the origin under its row lock. Another
	// proposal may have won between this proposal's creation and now.
	origin, err := s.sessions.FindByIDForUpdate(ctx, tx, proposal.OriginSessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "origin session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load origin session")
	}
	if origin.RescheduledToID != nil {
		return nil, appErrors.Clone(appErrors.ErrProposalAlreadyResolved, "origin session already has a booked makeup")
	}
	if origin.Status != models.SessionStatusPendingMakeup {
		return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition,
			fmt.Sprintf("origin session is %s, not awaiting a makeup", origin.Status))
	}

	enrollmentID := origin.EnrollmentID
	replacement := &models.Session{
		ID:            uuid.NewString(),
		EnrollmentID:  enrollmentID,
		StudentID:     origin.StudentID,
		TutorID:       origin.TutorID,
		SessionDate:   proposal.ProposedDate,
		TimeSlot:      proposal.ProposedTimeSlot,
		Location:      proposal.ProposedLocation,
		Status:        models.SessionStatusMakeupClass,
		FinanceStatus: origin.FinanceStatus,
		MakeupForID:   &origin.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.sessions.Insert(ctx, tx, replacement); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateSession,
				fmt.Sprintf("slot %s %s at %s was booked concurrently",
					replacement.SessionDate.Format("2006-01-02"), replacement.TimeSlot, replacement.Location))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create makeup session")
	}
	if err := s.sessions.LinkReplacement(ctx, tx, origin.ID, replacement.ID, models.SessionStatusMakeupBooked); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link makeup session")
	}
	if err := s.proposals.SetResolution(ctx, tx, proposal.ID, models.MakeupProposalStatusAccepted, resolvedBy, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrProposalAlreadyResolved, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept makeup proposal")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit resolution")
	}

	origin.Status = models.SessionStatusMakeupBooked
	origin.RescheduledToID = &replacement.ID
	proposal.Status = models.MakeupProposalStatusAccepted
	proposal.ResolvedBy = &resolvedBy
	proposal.ResolvedAt = &now
	result.Proposal = *proposal
	result.Origin = origin
	result.Replacement = replacement

	s.publishStatus(ctx, origin, EventSessionStatusChanged)
	s.publishStatus(ctx, replacement, EventMakeupBooked)
	s.metrics.ObserveMakeupResolution("accepted")
	s.logger.Info("makeup proposal accepted",
		zap.String("proposalId", proposal.ID),
		zap.String("originSessionId", origin.ID),
		zap.String("replacementSessionId", replacement.ID))
	return result, nil
}

func (s *MakeupService) publishStatus(ctx context.Context, session *models.Session, eventType string) {
	if s.events == nil {
		return
	}
	enrollmentID := ""
	if session.EnrollmentID != nil {
		enrollmentID = *session.EnrollmentID
	}
	s.events.Publish(ctx, sessionEventFrom(eventType,
		session.ID, enrollmentID, session.StudentID, session.TutorID, string(session.Status), session.SessionDate))
}
