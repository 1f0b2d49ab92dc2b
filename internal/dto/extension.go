package dto

import "github.com/noah-isme/tutor-center-api/internal/models"

// CreateExtensionRequest asks for extra weeks so one blocked session can be
// rescheduled past the enrollment deadline.
type CreateExtensionRequest struct {
	SessionID        string `json:"sessionId" validate:"required"`
	RequestedWeeks   int    `json:"requestedWeeks" validate:"required,min=1,max=12"`
	Reason           string `json:"reason" validate:"required"`
	ProposedDate     string `json:"proposedDate" validate:"required"`
	ProposedTimeSlot string `json:"proposedTimeSlot" validate:"required"`
}

// ReviewExtensionRequest captures the admin decision on an extension ask.
type ReviewExtensionRequest struct {
	Status models.ExtensionRequestStatus `json:"status" validate:"required,oneof=APPROVED REJECTED"`
	Notes  string                        `json:"notes"`
}

// ExtensionApproval reports what an approval changed: the request itself,
// the enrollment's new deadline and the rescheduled session.
type ExtensionApproval struct {
	Request          models.ExtensionRequest `json:"request"`
	EffectiveEndDate string                  `json:"effective_end_date,omitempty"`
	Session          *models.Session         `json:"session,omitempty"`
}
