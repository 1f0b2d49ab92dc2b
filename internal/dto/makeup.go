package dto

import "github.com/noah-isme/tutor-center-api/internal/models"

// ProposeMakeupRequest offers a replacement slot for a disrupted session.
type ProposeMakeupRequest struct {
	ProposedDate     string `json:"proposedDate" validate:"required"`
	ProposedTimeSlot string `json:"proposedTimeSlot" validate:"required"`
	ProposedLocation string `json:"proposedLocation" validate:"required"`
	Note             string `json:"note"`
}

// ResolveMakeupProposalRequest captures the reviewer decision on a proposal.
type ResolveMakeupProposalRequest struct {
	Status models.MakeupProposalStatus `json:"status" validate:"required,oneof=ACCEPTED REJECTED"`
	Note   string                      `json:"note"`
}

// MakeupResolution reports the outcome of accepting a proposal: the updated
// origin and the freshly created makeup class.
type MakeupResolution struct {
	Proposal    models.MakeupProposal `json:"proposal"`
	Origin      *models.Session       `json:"origin,omitempty"`
	Replacement *models.Session       `json:"replacement,omitempty"`
}
