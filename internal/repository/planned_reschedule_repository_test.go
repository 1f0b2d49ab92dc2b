package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-center-api/internal/models"
)

func TestPlannedRescheduleRepositoryListPendingByEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlannedRescheduleRepository(db)

	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "planned_date", "reason", "status", "created_by"}).
		AddRow("pr-1", "enr-1", time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC), "family trip", models.PlannedRescheduleStatusPending, "admin-1")
	mock.ExpectQuery("FROM planned_reschedules WHERE enrollment_id = \\$1 AND status = \\$2").
		WithArgs("enr-1", models.PlannedRescheduleStatusPending).
		WillReturnRows(rows)

	reschedules, err := repo.ListPendingByEnrollment(context.Background(), db, "enr-1")
	require.NoError(t, err)
	require.Len(t, reschedules, 1)
	assert.Equal(t, "pr-1", reschedules[0].ID)
}

func TestPlannedRescheduleRepositoryMarkAppliedOnce(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlannedRescheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE planned_reschedules").
		WithArgs("pr-1", models.PlannedRescheduleStatusApplied, models.PlannedRescheduleStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.MarkApplied(context.Background(), tx, "pr-1"))
	require.NoError(t, tx.Commit())
}

func TestPlannedRescheduleRepositoryMarkAppliedConsumed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlannedRescheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE planned_reschedules").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.MarkApplied(context.Background(), tx, "pr-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, tx.Rollback())
}

func TestPlannedRescheduleRepositoryCancelOnlyPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlannedRescheduleRepository(db)

	mock.ExpectExec("UPDATE planned_reschedules").
		WithArgs("pr-1", models.PlannedRescheduleStatusCancelled, models.PlannedRescheduleStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Cancel(context.Background(), "pr-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
