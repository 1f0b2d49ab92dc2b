package models

import "time"

// PaymentStatus represents the lifecycle of an enrollment contract.
type PaymentStatus string

// Possible enrollment payment statuses.
const (
	PaymentStatusPending   PaymentStatus = "PENDING_PAYMENT"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// Active reports whether the enrollment occupies its weekly slot. Cancelled
// enrollments release the slot but keep their row for the audit trail.
func (s PaymentStatus) Active() bool {
	return s == PaymentStatusPending || s == PaymentStatusPaid
}

// Weekday names a weekly cadence day, stored uppercase.
type Weekday string

// Weekly cadence days.
const (
	WeekdayMonday    Weekday = "MONDAY"
	WeekdayTuesday   Weekday = "TUESDAY"
	WeekdayWednesday Weekday = "WEDNESDAY"
	WeekdayThursday  Weekday = "THURSDAY"
	WeekdayFriday    Weekday = "FRIDAY"
	WeekdaySaturday  Weekday = "SATURDAY"
	WeekdaySunday    Weekday = "SUNDAY"
)

var weekdayValues = map[Weekday]time.Weekday{
	WeekdayMonday:    time.Monday,
	WeekdayTuesday:   time.Tuesday,
	WeekdayWednesday: time.Wednesday,
	WeekdayThursday:  time.Thursday,
	WeekdayFriday:    time.Friday,
	WeekdaySaturday:  time.Saturday,
	WeekdaySunday:    time.Sunday,
}

// Valid reports whether the weekday is one of the seven known names.
func (w Weekday) Valid() bool {
	_, ok := weekdayValues[w]
	return ok
}

// Time maps the weekday onto the stdlib representation.
func (w Weekday) Time() time.Weekday {
	return weekdayValues[w]
}

// Enrollment is a student-tutor-slot contract entitling a number of lessons.
type Enrollment struct {
	ID              string        `db:"id" json:"id"`
	StudentID       string        `db:"student_id" json:"student_id"`
	TutorID         string        `db:"tutor_id" json:"tutor_id"`
	DayOfWeek       Weekday       `db:"day_of_week" json:"day_of_week"`
	TimeSlot        string        `db:"time_slot" json:"time_slot"`
	Location        string        `db:"location" json:"location"`
	LessonsPaid     int           `db:"lessons_paid" json:"lessons_paid"`
	FirstLessonDate time.Time     `db:"first_lesson_date" json:"first_lesson_date"`
	PaymentStatus   PaymentStatus `db:"payment_status" json:"payment_status"`
	ExtensionWeeks  int           `db:"extension_weeks" json:"extension_weeks"`
	DiscountID      *string       `db:"discount_id" json:"discount_id,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID     string
	TutorID       string
	PaymentStatus PaymentStatus
	Page          int
	PageSize      int
}
