package models

import "time"

// PlannedRescheduleStatus tracks whether a leave declaration has been
// consumed by generation.
type PlannedRescheduleStatus string

// Planned reschedule statuses. APPLIED is set exactly once, atomically with
// the sessions generation derived from the declaration.
const (
	PlannedRescheduleStatusPending   PlannedRescheduleStatus = "PENDING"
	PlannedRescheduleStatusApplied   PlannedRescheduleStatus = "APPLIED"
	PlannedRescheduleStatusCancelled PlannedRescheduleStatus = "CANCELLED"
)

// PlannedReschedule is an admin-declared future absence tied to an
// enrollment, optionally paired with a preferred makeup date.
type PlannedReschedule struct {
	ID                  string                  `db:"id" json:"id"`
	EnrollmentID        string                  `db:"enrollment_id" json:"enrollment_id"`
	PlannedDate         time.Time               `db:"planned_date" json:"planned_date"`
	PreferredMakeupDate *time.Time              `db:"preferred_makeup_date" json:"preferred_makeup_date,omitempty"`
	Reason              string                  `db:"reason" json:"reason"`
	Status              PlannedRescheduleStatus `db:"status" json:"status"`
	CreatedBy           string                  `db:"created_by" json:"created_by"`
	CreatedAt           time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time               `db:"updated_at" json:"updated_at"`
}
