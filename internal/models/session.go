package models

import "time"

// SessionStatus represents a session's position in the makeup chain.
type SessionStatus string

// Session statuses. ATTENDED, NO_SHOW and CANCELLED are sinks.
const (
	SessionStatusScheduled     SessionStatus = "SCHEDULED"
	SessionStatusAttended      SessionStatus = "ATTENDED"
	SessionStatusNoShow        SessionStatus = "NO_SHOW"
	SessionStatusCancelled     SessionStatus = "CANCELLED"
	SessionStatusPendingMakeup SessionStatus = "RESCHEDULED_PENDING_MAKEUP"
	SessionStatusMakeupBooked  SessionStatus = "MAKEUP_BOOKED"
	SessionStatusMakeupClass   SessionStatus = "MAKEUP_CLASS"
)

// sessionTransitions is the closed transition table for the makeup chain.
// A transition absent from the table is invalid, full stop.
var sessionTransitions = map[SessionStatus]map[SessionStatus]struct{}{
	SessionStatusScheduled: {
		SessionStatusAttended:      {},
		SessionStatusNoShow:        {},
		SessionStatusCancelled:     {},
		SessionStatusPendingMakeup: {},
	},
	SessionStatusPendingMakeup: {
		SessionStatusMakeupBooked: {},
		SessionStatusCancelled:    {},
	},
	// A makeup class behaves like a scheduled lesson for attendance purposes
	// but can never itself be rescheduled into another makeup.
	SessionStatusMakeupClass: {
		SessionStatusAttended:  {},
		SessionStatusNoShow:    {},
		SessionStatusCancelled: {},
	},
}

// CanTransition reports whether moving from s to next is allowed.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	allowed, ok := sessionTransitions[s]
	if !ok {
		return false
	}
	_, ok = allowed[next]
	return ok
}

// Terminal reports whether the status is a sink.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionStatusAttended, SessionStatusNoShow, SessionStatusCancelled:
		return true
	}
	return false
}

// Countable reports whether the session blocks its slot for duplicate
// checks. Cancelled sessions never do; this predicate must stay in lockstep
// with the partial unique index on session_log.
func (s SessionStatus) Countable() bool {
	return s != SessionStatusCancelled
}

// FinanceStatus tracks a session's billing state.
type FinanceStatus string

// Finance statuses.
const (
	FinanceStatusUnpaid FinanceStatus = "UNPAID"
	FinanceStatusPaid   FinanceStatus = "PAID"
	FinanceStatusWaived FinanceStatus = "WAIVED"
)

// Session is one concrete scheduled lesson instance. The MakeupForID /
// RescheduledToID pair forms a depth-1 chain: a session is the origin of at
// most one replacement and the replacement of at most one origin, never both
// transitively.
type Session struct {
	ID                 string        `db:"id" json:"id"`
	EnrollmentID       *string       `db:"enrollment_id" json:"enrollment_id,omitempty"`
	StudentID          string        `db:"student_id" json:"student_id"`
	TutorID            string        `db:"tutor_id" json:"tutor_id"`
	SessionDate        time.Time     `db:"session_date" json:"session_date"`
	TimeSlot           string        `db:"time_slot" json:"time_slot"`
	Location           string        `db:"location" json:"location"`
	Status             SessionStatus `db:"status" json:"status"`
	FinanceStatus      FinanceStatus `db:"finance_status" json:"finance_status"`
	MakeupForID        *string       `db:"makeup_for_id" json:"makeup_for_id,omitempty"`
	RescheduledToID    *string       `db:"rescheduled_to_id" json:"rescheduled_to_id,omitempty"`
	AttendanceMarkedBy *string       `db:"attendance_marked_by" json:"attendance_marked_by,omitempty"`
	AttendanceMarkedAt *time.Time    `db:"attendance_marked_at" json:"attendance_marked_at,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// ChainRole classifies a session's place in a makeup chain.
type ChainRole string

// Chain roles derived from the link fields.
const (
	ChainRoleNone        ChainRole = "NONE"
	ChainRoleOrigin      ChainRole = "ORIGIN"
	ChainRoleReplacement ChainRole = "REPLACEMENT"
)

// ChainRole derives the tagged variant from the link fields. A row carrying
// both links would be corrupt; it is reported as ORIGIN so audits surface it.
func (s *Session) ChainRole() ChainRole {
	switch {
	case s.RescheduledToID != nil:
		return ChainRoleOrigin
	case s.MakeupForID != nil:
		return ChainRoleReplacement
	default:
		return ChainRoleNone
	}
}

// PendingMakeupSession is the aging view over disrupted sessions that still
// await a booked makeup.
type PendingMakeupSession struct {
	Session
	DaysOutstanding  int `db:"days_outstanding" json:"days_outstanding"`
	DaysLeftInWindow int `json:"days_left_in_window"`
}

// SessionFilter narrows session listings.
type SessionFilter struct {
	EnrollmentID string
	StudentID    string
	TutorID      string
	Status       SessionStatus
	DateFrom     *time.Time
	DateTo       *time.Time
	Page         int
	PageSize     int
}
