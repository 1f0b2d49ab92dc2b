package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-center-api/internal/models"
)

// HolidayRepository reads the non-teaching date calendar. The calendar is
// owned by the import collaborator; the engine only adds dates through the
// admin import endpoint.
type HolidayRepository struct {
	db *sqlx.DB
}

// NewHolidayRepository constructs the repository.
func NewHolidayRepository(db *sqlx.DB) *HolidayRepository {
	return &HolidayRepository{db: db}
}

// ListDates returns every holiday date, ascending.
func (r *HolidayRepository) ListDates(ctx context.Context) ([]time.Time, error) {
	const query = `SELECT holiday_date FROM holidays ORDER BY holiday_date ASC`
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query); err != nil {
		return nil, fmt.Errorf("list holiday dates: %w", err)
	}
	return dates, nil
}

// List returns full holiday rows.
func (r *HolidayRepository) List(ctx context.Context) ([]models.Holiday, error) {
	const query = `SELECT id, holiday_date, label, created_at FROM holidays ORDER BY holiday_date ASC`
	var holidays []models.Holiday
	if err := r.db.SelectContext(ctx, &holidays, query); err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return holidays, nil
}

// Create inserts one holiday. Duplicate dates violate the unique index and
// surface unwrapped for IsUniqueViolation.
func (r *HolidayRepository) Create(ctx context.Context, holiday *models.Holiday) error {
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}
	holiday.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO holidays (id, holiday_date, label, created_at)
        VALUES (:id, :holiday_date, :label, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, holiday); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create holiday: %w", err)
	}
	return nil
}
