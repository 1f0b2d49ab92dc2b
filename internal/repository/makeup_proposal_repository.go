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

const makeupProposalColumns = `id, origin_session_id, proposed_date, proposed_time_slot, proposed_location,
        note, status, proposed_by, resolved_by, resolved_at, created_at, updated_at`

// MakeupProposalRepository persists makeup proposals.
type MakeupProposalRepository struct {
	db *sqlx.DB
}

// NewMakeupProposalRepository constructs the repository.
func NewMakeupProposalRepository(db *sqlx.DB) *MakeupProposalRepository {
	return &MakeupProposalRepository{db: db}
}

// Create persists a new PENDING proposal.
func (r *MakeupProposalRepository) Create(ctx context.Context, proposal *models.MakeupProposal) error {
	if proposal.ID == "" {
		proposal.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	proposal.CreatedAt = now
	proposal.UpdatedAt = now
	const query = `INSERT INTO makeup_proposals (id, origin_session_id, proposed_date, proposed_time_slot, proposed_location,
        note, status, proposed_by, resolved_by, resolved_at, created_at, updated_at)
        VALUES (:id, :origin_session_id, :proposed_date, :proposed_time_slot, :proposed_location,
        :note, :status, :proposed_by, :resolved_by, :resolved_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, proposal); err != nil {
		return fmt.Errorf("create makeup proposal: %w", err)
	}
	return nil
}

// FindByID returns a proposal by its ID.
func (r *MakeupProposalRepository) FindByID(ctx context.Context, id string) (*models.MakeupProposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM makeup_proposals WHERE id = $1`, makeupProposalColumns)
	var proposal models.MakeupProposal
	if err := r.db.GetContext(ctx, &proposal, query, id); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// FindByIDForUpdate loads a proposal inside tx holding a row lock.
func (r *MakeupProposalRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.MakeupProposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM makeup_proposals WHERE id = $1 FOR UPDATE`, makeupProposalColumns)
	var proposal models.MakeupProposal
	if err := tx.GetContext(ctx, &proposal, query, id); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// SetResolution flips a PENDING proposal inside tx. A zero row count means
// a concurrent reviewer resolved it first.
func (r *MakeupProposalRepository) SetResolution(ctx context.Context, tx *sqlx.Tx, id string, status models.MakeupProposalStatus, resolvedBy string, resolvedAt time.Time) error {
	const query = `UPDATE makeup_proposals
        SET status = $2, resolved_by = $3, resolved_at = $4, updated_at = now()
        WHERE id = $1 AND status = $5`
	res, err := tx.ExecContext(ctx, query, id, status, resolvedBy, resolvedAt, models.MakeupProposalStatusPending)
	if err != nil {
		return fmt.Errorf("set makeup proposal resolution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByOrigin returns every proposal targeting the origin session.
func (r *MakeupProposalRepository) ListByOrigin(ctx context.Context, originSessionID string) ([]models.MakeupProposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM makeup_proposals WHERE origin_session_id = $1 ORDER BY created_at ASC`, makeupProposalColumns)
	var proposals []models.MakeupProposal
	if err := r.db.SelectContext(ctx, &proposals, query, originSessionID); err != nil {
		return nil, fmt.Errorf("list makeup proposals: %w", err)
	}
	return proposals, nil
}
