package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-center-api/internal/models"
)

const sessionColumns = `id, enrollment_id, student_id, tutor_id, session_date, time_slot, location,
        status, finance_status, makeup_for_id, rescheduled_to_id, attendance_marked_by, attendance_marked_at,
        created_at, updated_at`

// SessionRepository handles persistence of the session log. Sessions are
// never deleted; cancellation is a status transition.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// execer resolves the executor: a caller-supplied tx, or the pool.
func (r *SessionRepository) execer(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec == nil {
		return r.db
	}
	return exec
}

// Insert writes one session row through exec (a tx during generation, the
// pool for ad-hoc bookings). A unique violation from the live-slot index
// surfaces unwrapped so callers can detect it with IsUniqueViolation.
func (r *SessionRepository) Insert(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	const query = `INSERT INTO session_log (id, enrollment_id, student_id, tutor_id, session_date, time_slot, location,
        status, finance_status, makeup_for_id, rescheduled_to_id, attendance_marked_by, attendance_marked_at, created_at, updated_at)
        VALUES (:id, :enrollment_id, :student_id, :tutor_id, :session_date, :time_slot, :location,
        :status, :finance_status, :makeup_for_id, :rescheduled_to_id, :attendance_marked_by, :attendance_marked_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.execer(exec), query, session); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FindByID returns a session by its ID.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_log WHERE id = $1`, sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByIDForUpdate loads a session inside tx holding a row lock for the
// read-verify-write of makeup resolution and extension approval.
func (r *SessionRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_log WHERE id = $1 FOR UPDATE`, sessionColumns)
	var session models.Session
	if err := tx.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByEnrollment returns the enrollment's sessions in chronological order.
func (r *SessionRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_log WHERE enrollment_id = $1 ORDER BY session_date ASC, created_at ASC`, sessionColumns)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list sessions by enrollment: %w", err)
	}
	return sessions, nil
}

// ExistingDates returns the set of dates the enrollment already has
// non-cancelled, non-makeup sessions for. Generation consults it so re-runs
// are no-ops for already-generated dates.
func (r *SessionRepository) ExistingDates(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) (map[string]struct{}, error) {
	const query = `SELECT session_date FROM session_log
        WHERE enrollment_id = $1 AND status <> $2 AND makeup_for_id IS NULL`
	rows, err := r.execer(exec).QueryxContext(ctx, query, enrollmentID, models.SessionStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("load generated dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[string]struct{})
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan generated date: %w", err)
		}
		dates[d.Format("2006-01-02")] = struct{}{}
	}
	return dates, rows.Err()
}

// HasCollision applies the duplicate-guard predicate in SQL: a non-cancelled
// session for the same student or tutor occupying the date/slot/location.
// It must stay equivalent to the uniq_session_live_slot index.
func (r *SessionRepository) HasCollision(ctx context.Context, studentID, tutorID string, date time.Time, timeSlot, location string) (bool, error) {
	const query = `SELECT 1 FROM session_log
        WHERE student_id = $1 AND tutor_id = $2 AND session_date = $3 AND time_slot = $4 AND location = $5
        AND status <> $6 LIMIT 1`
	var exists int
	err := r.db.GetContext(ctx, &exists, query, studentID, tutorID, date, timeSlot, location, models.SessionStatusCancelled)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check session collision: %w", err)
	}
	return true, nil
}

// UpdateStatus transitions a session's status through exec. The write only
// lands when the row still carries expected, so a transition validated
// against a stale read cannot step outside the closed table; a zero row
// count means the session moved concurrently.
func (r *SessionRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status, expected models.SessionStatus) error {
	const query = `UPDATE session_log SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`
	res, err := r.execer(exec).ExecContext(ctx, query, id, status, expected)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkAttendance records the terminal attendance outcome with audit fields,
// guarded by the same expected-status predicate as UpdateStatus.
func (r *SessionRepository) MarkAttendance(ctx context.Context, id string, status, expected models.SessionStatus, markedBy string, markedAt time.Time) error {
	const query = `UPDATE session_log
        SET status = $2, attendance_marked_by = $3, attendance_marked_at = $4, updated_at = now()
        WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, id, status, markedBy, markedAt, expected)
	if err != nil {
		return fmt.Errorf("mark attendance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// LinkReplacement sets the origin's forward link and its new status in one
// statement, inside the resolution transaction.
func (r *SessionRepository) LinkReplacement(ctx context.Context, tx *sqlx.Tx, originID, replacementID string, status models.SessionStatus) error {
	const query = `UPDATE session_log SET rescheduled_to_id = $2, status = $3, updated_at = now() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, originID, replacementID, status); err != nil {
		return fmt.Errorf("link replacement session: %w", err)
	}
	return nil
}

// Reschedule rewrites a session's date and time slot inside tx. Used by
// extension approval; the live-slot index guards the target.
func (r *SessionRepository) Reschedule(ctx context.Context, tx *sqlx.Tx, id string, date time.Time, timeSlot string) error {
	const query = `UPDATE session_log SET session_date = $2, time_slot = $3, updated_at = now() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, date, timeSlot); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("reschedule session: %w", err)
	}
	return nil
}

// ListPendingMakeup feeds the aging view: disrupted sessions still waiting
// for a booked makeup, oldest first.
func (r *SessionRepository) ListPendingMakeup(ctx context.Context) ([]models.PendingMakeupSession, error) {
	query := fmt.Sprintf(`SELECT %s,
        GREATEST(0, (CURRENT_DATE - session_date))::int AS days_outstanding
        FROM session_log
        WHERE status = $1 AND rescheduled_to_id IS NULL
        ORDER BY session_date ASC`, sessionColumns)
	var sessions []models.PendingMakeupSession
	if err := r.db.SelectContext(ctx, &sessions, query, models.SessionStatusPendingMakeup); err != nil {
		return nil, fmt.Errorf("list pending makeup sessions: %w", err)
	}
	return sessions, nil
}

// List returns sessions matching the filter.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	var conditions []string
	var args []interface{}

	appendCond := func(expr string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(expr, len(args)+1))
		args = append(args, value)
	}

	if filter.EnrollmentID != "" {
		appendCond("enrollment_id = $%d", filter.EnrollmentID)
	}
	if filter.StudentID != "" {
		appendCond("student_id = $%d", filter.StudentID)
	}
	if filter.TutorID != "" {
		appendCond("tutor_id = $%d", filter.TutorID)
	}
	if filter.Status != "" {
		appendCond("status = $%d", filter.Status)
	}
	if filter.DateFrom != nil {
		appendCond("session_date >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		appendCond("session_date <= $%d", *filter.DateTo)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM session_log%s ORDER BY session_date ASC LIMIT %d OFFSET %d`,
		sessionColumns, clause, size, offset)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM session_log" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}
