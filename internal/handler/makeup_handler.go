package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-center-api/internal/dto"
	"github.com/noah-isme/tutor-center-api/internal/models"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
	"github.com/noah-isme/tutor-center-api/pkg/response"
)

type makeupProposalService interface {
	ProposeMakeup(ctx context.Context, originSessionID string, req dto.ProposeMakeupRequest, proposedBy string) (*models.MakeupProposal, error)
	ListProposals(ctx context.Context, originSessionID string) ([]models.MakeupProposal, error)
	ResolveProposal(ctx context.Context, proposalID string, req dto.ResolveMakeupProposalRequest, resolvedBy string) (*dto.MakeupResolution, error)
	ListPendingMakeup(ctx context.Context) ([]models.PendingMakeupSession, error)
}

// MakeupHandler exposes REST endpoints for the makeup proposal workflow.
type MakeupHandler struct {
	service makeupProposalService
}

// NewMakeupHandler constructs the handler.
func NewMakeupHandler(service makeupProposalService) *MakeupHandler {
	return &MakeupHandler{service: service}
}

// Propose godoc
// @Summary Propose a makeup slot for a disrupted session
// @Tags Makeups
// @Accept json
// @Produce json
// @Param id path string true "Origin session ID"
// @Param payload body dto.ProposeMakeupRequest true "Proposal payload"
// @Success 201 {object} response.Envelope
// @Router /sessions/{id}/makeup-proposals [post]
func (h *MakeupHandler) Propose(c *gin.Context) {
	var req dto.ProposeMakeupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid makeup proposal payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	proposal, err := h.service.ProposeMakeup(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, proposal, nil)
}

// ListForSession godoc
// @Summary List makeup proposals filed against a session
// @Tags Makeups
// @Produce json
// @Param id path string true "Origin session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/makeup-proposals [get]
func (h *MakeupHandler) ListForSession(c *gin.Context) {
	proposals, err := h.service.ListProposals(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposals, nil)
}

// Resolve godoc
// @Summary Accept or reject a makeup proposal
// @Tags Makeups
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body dto.ResolveMakeupProposalRequest true "Resolution payload"
// @Success 200 {object} response.Envelope
// @Router /makeup-proposals/{id}/resolve [post]
func (h *MakeupHandler) Resolve(c *gin.Context) {
	var req dto.ResolveMakeupProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid resolution payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.ResolveProposal(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Pending godoc
// @Summary List disrupted sessions still awaiting a makeup
// @Tags Makeups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /makeup/pending [get]
func (h *MakeupHandler) Pending(c *gin.Context) {
	items, err := h.service.ListPendingMakeup(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
