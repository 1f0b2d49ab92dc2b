package models

import "time"

// MakeupProposalStatus tracks a proposal through resolution.
type MakeupProposalStatus string

// Makeup proposal statuses.
const (
	MakeupProposalStatusPending  MakeupProposalStatus = "PENDING"
	MakeupProposalStatusAccepted MakeupProposalStatus = "ACCEPTED"
	MakeupProposalStatusRejected MakeupProposalStatus = "REJECTED"
)

// MakeupProposal is a dated offer to replace a disrupted session. Competing
// proposals for one origin are serialized at resolution time: exactly one
// can be accepted.
type MakeupProposal struct {
	ID               string               `db:"id" json:"id"`
	OriginSessionID  string               `db:"origin_session_id" json:"origin_session_id"`
	ProposedDate     time.Time            `db:"proposed_date" json:"proposed_date"`
	ProposedTimeSlot string               `db:"proposed_time_slot" json:"proposed_time_slot"`
	ProposedLocation string               `db:"proposed_location" json:"proposed_location"`
	Note             string               `db:"note" json:"note,omitempty"`
	Status           MakeupProposalStatus `db:"status" json:"status"`
	ProposedBy       string               `db:"proposed_by" json:"proposed_by"`
	ResolvedBy       *string              `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time           `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt        time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time            `db:"updated_at" json:"updated_at"`
}
