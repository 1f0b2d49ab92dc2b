package dto

import "github.com/noah-isme/tutor-center-api/internal/models"

// MarkAttendanceRequest records the outcome of a held session.
type MarkAttendanceRequest struct {
	Status models.SessionStatus `json:"status" validate:"required,oneof=ATTENDED NO_SHOW"`
}

// DisruptSessionRequest flags a scheduled session as needing a makeup.
type DisruptSessionRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// CancelSessionRequest voids a session outright, releasing its slot.
type CancelSessionRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// SessionQuery mirrors supported listing filters.
type SessionQuery struct {
	EnrollmentID string
	StudentID    string
	TutorID      string
	Status       models.SessionStatus
	DateFrom     string
	DateTo       string
	Page         int
	PageSize     int
}

// MakeupChain pairs an origin session with its replacement, if booked.
type MakeupChain struct {
	Origin      models.Session  `json:"origin"`
	Replacement *models.Session `json:"replacement,omitempty"`
}
