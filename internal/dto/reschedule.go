package dto

// CreatePlannedRescheduleRequest declares a future absence before sessions
// for the enrollment are generated.
type CreatePlannedRescheduleRequest struct {
	EnrollmentID        string  `json:"enrollmentId" validate:"required"`
	PlannedDate         string  `json:"plannedDate" validate:"required"`
	PreferredMakeupDate *string `json:"preferredMakeupDate,omitempty"`
	Reason              string  `json:"reason" validate:"required"`
}
