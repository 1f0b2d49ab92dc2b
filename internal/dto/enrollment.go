package dto

import "github.com/noah-isme/tutor-center-api/internal/models"

// CreateEnrollmentRequest payload for registering a student-tutor contract.
type CreateEnrollmentRequest struct {
	StudentID       string  `json:"studentId" validate:"required"`
	TutorID         string  `json:"tutorId" validate:"required"`
	DayOfWeek       string  `json:"dayOfWeek" validate:"required"`
	TimeSlot        string  `json:"timeSlot" validate:"required"`
	Location        string  `json:"location" validate:"required"`
	LessonsPaid     int     `json:"lessonsPaid" validate:"required,min=1"`
	FirstLessonDate string  `json:"firstLessonDate" validate:"required"`
	DiscountID      *string `json:"discountId,omitempty"`
}

// UpdatePaymentStatusRequest moves an enrollment between payment states.
type UpdatePaymentStatusRequest struct {
	PaymentStatus models.PaymentStatus `json:"paymentStatus" validate:"required"`
}

// EnrollmentDetail augments the stored row with the derived deadline.
type EnrollmentDetail struct {
	models.Enrollment
	EffectiveEndDate string `json:"effective_end_date"`
}

// EnrollmentQuery mirrors supported listing filters.
type EnrollmentQuery struct {
	StudentID     string
	TutorID       string
	PaymentStatus models.PaymentStatus
	Page          int
	PageSize      int
}
