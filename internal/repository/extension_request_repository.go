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

const extensionRequestColumns = `id, session_id, enrollment_id, requested_weeks, reason, proposed_date,
        proposed_time_slot, status, requested_by, reviewed_by, review_notes, reviewed_at, created_at, updated_at`

// ExtensionRequestRepository persists deadline-extension requests.
type ExtensionRequestRepository struct {
	db *sqlx.DB
}

// NewExtensionRequestRepository constructs the repository.
func NewExtensionRequestRepository(db *sqlx.DB) *ExtensionRequestRepository {
	return &ExtensionRequestRepository{db: db}
}

// Create persists a new PENDING request.
func (r *ExtensionRequestRepository) Create(ctx context.Context, request *models.ExtensionRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	request.CreatedAt = now
	request.UpdatedAt = now
	const query = `INSERT INTO extension_requests (id, session_id, enrollment_id, requested_weeks, reason, proposed_date,
        proposed_time_slot, status, requested_by, reviewed_by, review_notes, reviewed_at, created_at, updated_at)
        VALUES (:id, :session_id, :enrollment_id, :requested_weeks, :reason, :proposed_date,
        :proposed_time_slot, :status, :requested_by, :reviewed_by, :review_notes, :reviewed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create extension request: %w", err)
	}
	return nil
}

// FindByID returns a request by its ID.
func (r *ExtensionRequestRepository) FindByID(ctx context.Context, id string) (*models.ExtensionRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM extension_requests WHERE id = $1`, extensionRequestColumns)
	var request models.ExtensionRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// FindByIDForUpdate loads a request inside tx holding a row lock so two
// reviewers cannot resolve it twice.
func (r *ExtensionRequestRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.ExtensionRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM extension_requests WHERE id = $1 FOR UPDATE`, extensionRequestColumns)
	var request models.ExtensionRequest
	if err := tx.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// SetReview records the review outcome through exec (tx on approval, pool on
// rejection). Only a PENDING row is written; a zero row count means a
// concurrent reviewer got there first.
func (r *ExtensionRequestRepository) SetReview(ctx context.Context, exec sqlx.ExtContext, id string, status models.ExtensionRequestStatus, reviewer string, notes *string, reviewedAt time.Time) error {
	const query = `UPDATE extension_requests
        SET status = $2, reviewed_by = $3, review_notes = $4, reviewed_at = $5, updated_at = now()
        WHERE id = $1 AND status = $6`
	if exec == nil {
		exec = r.db
	}
	res, err := exec.ExecContext(ctx, query, id, status, reviewer, notes, reviewedAt, models.ExtensionRequestStatusPending)
	if err != nil {
		return fmt.Errorf("set extension request review: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByStatus returns requests carrying the given status, oldest first.
func (r *ExtensionRequestRepository) ListByStatus(ctx context.Context, status models.ExtensionRequestStatus) ([]models.ExtensionRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM extension_requests WHERE status = $1 ORDER BY created_at ASC`, extensionRequestColumns)
	var requests []models.ExtensionRequest
	if err := r.db.SelectContext(ctx, &requests, query, status); err != nil {
		return nil, fmt.Errorf("list extension requests: %w", err)
	}
	return requests, nil
}
