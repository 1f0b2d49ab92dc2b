package models

import "time"

// ExtensionRequestStatus tracks review state of a deadline extension ask.
type ExtensionRequestStatus string

// Extension request statuses.
const (
	ExtensionRequestStatusPending  ExtensionRequestStatus = "PENDING"
	ExtensionRequestStatusApproved ExtensionRequestStatus = "APPROVED"
	ExtensionRequestStatusRejected ExtensionRequestStatus = "REJECTED"
)

// ExtensionRequest is a tutor-initiated ask to push an enrollment's deadline
// so one blocked session can be rescheduled past it.
type ExtensionRequest struct {
	ID               string                 `db:"id" json:"id"`
	SessionID        string                 `db:"session_id" json:"session_id"`
	EnrollmentID     string                 `db:"enrollment_id" json:"enrollment_id"`
	RequestedWeeks   int                    `db:"requested_weeks" json:"requested_weeks"`
	Reason           string                 `db:"reason" json:"reason"`
	ProposedDate     time.Time              `db:"proposed_date" json:"proposed_date"`
	ProposedTimeSlot string                 `db:"proposed_time_slot" json:"proposed_time_slot"`
	Status           ExtensionRequestStatus `db:"status" json:"status"`
	RequestedBy      string                 `db:"requested_by" json:"requested_by"`
	ReviewedBy       *string                `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewNotes      *string                `db:"review_notes" json:"review_notes,omitempty"`
	ReviewedAt       *time.Time             `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt        time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time              `db:"updated_at" json:"updated_at"`
}
