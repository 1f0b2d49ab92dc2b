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

const enrollmentColumns = `id, student_id, tutor_id, day_of_week, time_slot, location,
        lessons_paid, first_lesson_date, payment_status, extension_weeks, discount_id, created_at, updated_at`

// EnrollmentRepository handles persistence of enrollment contracts.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create persists a new enrollment. The partial unique index on the active
// slot tuple backs the duplicate guard; callers map the violation.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, student_id, tutor_id, day_of_week, time_slot, location,
        lessons_paid, first_lesson_date, payment_status, extension_weeks, discount_id, created_at, updated_at)
        VALUES (:id, :student_id, :tutor_id, :day_of_week, :time_slot, :location,
        :lessons_paid, :first_lesson_date, :payment_status, :extension_weeks, :discount_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByIDForUpdate loads an enrollment inside tx holding a row lock. Writers
// touching the same enrollment's session set serialize on this lock.
func (r *EnrollmentRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1 FOR UPDATE`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := tx.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsActiveSlot checks the at-most-one-live-enrollment-per-slot invariant.
func (r *EnrollmentRepository) ExistsActiveSlot(ctx context.Context, studentID, tutorID string, day models.Weekday, timeSlot, location string) (bool, error) {
	const query = `SELECT 1 FROM enrollments
        WHERE student_id = $1 AND tutor_id = $2 AND day_of_week = $3 AND time_slot = $4 AND location = $5
        AND payment_status IN ($6, $7) LIMIT 1`
	var exists int
	err := r.db.GetContext(ctx, &exists, query, studentID, tutorID, day, timeSlot, location,
		models.PaymentStatusPending, models.PaymentStatusPaid)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment slot: %w", err)
	}
	return true, nil
}

// UpdatePaymentStatus flips payment status. Cancellation keeps the row.
func (r *EnrollmentRepository) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	const query = `UPDATE enrollments SET payment_status = $2, updated_at = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update enrollment payment status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddExtensionWeeks increments extension_weeks inside tx. Part of the
// extension-approval transaction, never called standalone.
func (r *EnrollmentRepository) AddExtensionWeeks(ctx context.Context, tx *sqlx.Tx, id string, weeks int) error {
	const query = `UPDATE enrollments SET extension_weeks = extension_weeks + $2, updated_at = now() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, weeks); err != nil {
		return fmt.Errorf("add extension weeks: %w", err)
	}
	return nil
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TutorID != "" {
		conditions = append(conditions, fmt.Sprintf("tutor_id = $%d", len(args)+1))
		args = append(args, filter.TutorID)
	}
	if filter.PaymentStatus != "" {
		conditions = append(conditions, fmt.Sprintf("payment_status = $%d", len(args)+1))
		args = append(args, filter.PaymentStatus)
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

	query := fmt.Sprintf(`SELECT %s FROM enrollments%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		enrollmentColumns, clause, size, offset)

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM enrollments" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListNeedingGeneration returns paid enrollments whose non-cancelled session
// count lags behind the entitled lesson count, skipping enrollments whose
// most recent attendance was marked within the grace period.
func (r *EnrollmentRepository) ListNeedingGeneration(ctx context.Context, gracePeriodDays int) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments e
        WHERE e.payment_status = $1
        AND (SELECT COUNT(*) FROM session_log s
             WHERE s.enrollment_id = e.id AND s.status <> $2 AND s.makeup_for_id IS NULL) < e.lessons_paid
        AND NOT EXISTS (SELECT 1 FROM session_log s
             WHERE s.enrollment_id = e.id
             AND s.attendance_marked_at > now() - make_interval(days => $3))`,
		enrollmentColumns)
	var enrollments []models.Enrollment
	err := r.db.SelectContext(ctx, &enrollments, query,
		models.PaymentStatusPaid, models.SessionStatusCancelled, gracePeriodDays)
	if err != nil {
		return nil, fmt.Errorf("list enrollments needing generation: %w", err)
	}
	return enrollments, nil
}
