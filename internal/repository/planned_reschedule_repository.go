package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-center-api/internal/models"
)

const plannedRescheduleColumns = `id, enrollment_id, planned_date, preferred_makeup_date, reason, status,
        created_by, created_at, updated_at`

// PlannedRescheduleRepository persists pre-registered leave declarations.
type PlannedRescheduleRepository struct {
	db *sqlx.DB
}

// NewPlannedRescheduleRepository constructs the repository.
func NewPlannedRescheduleRepository(db *sqlx.DB) *PlannedRescheduleRepository {
	return &PlannedRescheduleRepository{db: db}
}

// Create persists a new PENDING declaration.
func (r *PlannedRescheduleRepository) Create(ctx context.Context, reschedule *models.PlannedReschedule) error {
	if reschedule.ID == "" {
		reschedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	reschedule.CreatedAt = now
	reschedule.UpdatedAt = now
	const query = `INSERT INTO planned_reschedules (id, enrollment_id, planned_date, preferred_makeup_date, reason, status, created_by, created_at, updated_at)
        VALUES (:id, :enrollment_id, :planned_date, :preferred_makeup_date, :reason, :status, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reschedule); err != nil {
		return fmt.Errorf("create planned reschedule: %w", err)
	}
	return nil
}

// FindByID returns a declaration by its ID.
func (r *PlannedRescheduleRepository) FindByID(ctx context.Context, id string) (*models.PlannedReschedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM planned_reschedules WHERE id = $1`, plannedRescheduleColumns)
	var reschedule models.PlannedReschedule
	if err := r.db.GetContext(ctx, &reschedule, query, id); err != nil {
		return nil, err
	}
	return &reschedule, nil
}

// ListByEnrollment returns the enrollment's declarations, newest first.
func (r *PlannedRescheduleRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.PlannedReschedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM planned_reschedules WHERE enrollment_id = $1 ORDER BY planned_date DESC`, plannedRescheduleColumns)
	var reschedules []models.PlannedReschedule
	if err := r.db.SelectContext(ctx, &reschedules, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list planned reschedules: %w", err)
	}
	return reschedules, nil
}

// ListPendingByEnrollment loads PENDING declarations through exec so the
// generator reads them inside its transaction.
func (r *PlannedRescheduleRepository) ListPendingByEnrollment(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) ([]models.PlannedReschedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM planned_reschedules WHERE enrollment_id = $1 AND status = $2 ORDER BY planned_date ASC`, plannedRescheduleColumns)
	var reschedules []models.PlannedReschedule
	if err := sqlx.SelectContext(ctx, exec, &reschedules, query, enrollmentID, models.PlannedRescheduleStatusPending); err != nil {
		return nil, fmt.Errorf("list pending planned reschedules: %w", err)
	}
	return reschedules, nil
}

// MarkApplied flips a PENDING declaration to APPLIED inside tx, atomically
// with the sessions it produced. A zero row count means another writer got
// there first.
func (r *PlannedRescheduleRepository) MarkApplied(ctx context.Context, tx *sqlx.Tx, id string) error {
	const query = `UPDATE planned_reschedules SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`
	res, err := tx.ExecContext(ctx, query, id, models.PlannedRescheduleStatusApplied, models.PlannedRescheduleStatusPending)
	if err != nil {
		return fmt.Errorf("mark planned reschedule applied: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Cancel withdraws a declaration that has not been applied yet.
func (r *PlannedRescheduleRepository) Cancel(ctx context.Context, id string) error {
	const query = `UPDATE planned_reschedules SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, id, models.PlannedRescheduleStatusCancelled, models.PlannedRescheduleStatusPending)
	if err != nil {
		return fmt.Errorf("cancel planned reschedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
