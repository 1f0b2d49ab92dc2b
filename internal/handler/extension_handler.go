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

type extensionService interface {
	Request(ctx context.Context, req dto.CreateExtensionRequest, requestedBy string) (*models.ExtensionRequest, error)
	Get(ctx context.Context, id string) (*models.ExtensionRequest, error)
	ListByStatus(ctx context.Context, status models.ExtensionRequestStatus) ([]models.ExtensionRequest, error)
	Approve(ctx context.Context, requestID string, reviewer string, notes string) (*dto.ExtensionApproval, error)
	Reject(ctx context.Context, requestID string, reviewer string, notes string) (*models.ExtensionRequest, error)
}

// ExtensionHandler exposes REST endpoints for deadline extensions.
type ExtensionHandler struct {
	service extensionService
}

// NewExtensionHandler constructs the handler.
func NewExtensionHandler(service extensionService) *ExtensionHandler {
	return &ExtensionHandler{service: service}
}

// Create godoc
// @Summary File a deadline-extension request for a blocked session
// @Tags Extensions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.CreateExtensionRequest true "Extension payload"
// @Success 201 {object} response.Envelope
// @Router /sessions/{id}/extension-requests [post]
func (h *ExtensionHandler) Create(c *gin.Context) {
	var req dto.CreateExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid extension request payload"))
		return
	}
	req.SessionID = c.Param("id")
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Request(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, request, nil)
}

// Get godoc
// @Summary Get an extension request
// @Tags Extensions
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /extension-requests/{id} [get]
func (h *ExtensionHandler) Get(c *gin.Context) {
	request, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// List godoc
// @Summary List extension requests by review state
// @Tags Extensions
// @Produce json
// @Param status query string false "Review status (default PENDING)"
// @Success 200 {object} response.Envelope
// @Router /extension-requests [get]
func (h *ExtensionHandler) List(c *gin.Context) {
	status := models.ExtensionRequestStatus(c.DefaultQuery("status", string(models.ExtensionRequestStatusPending)))
	requests, err := h.service.ListByStatus(c.Request.Context(), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

type reviewExtensionBody struct {
	Notes string `json:"notes"`
}

// Approve godoc
// @Summary Approve an extension: extend the enrollment and move the session atomically
// @Tags Extensions
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body reviewExtensionBody false "Review notes"
// @Success 200 {object} response.Envelope
// @Router /extension-requests/{id}/approve [post]
func (h *ExtensionHandler) Approve(c *gin.Context) {
	var body reviewExtensionBody
	_ = c.ShouldBindJSON(&body)
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	approval, err := h.service.Approve(c.Request.Context(), c.Param("id"), claims.UserID, body.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approval, nil)
}

// Reject godoc
// @Summary Reject an extension request
// @Tags Extensions
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body reviewExtensionBody false "Review notes"
// @Success 200 {object} response.Envelope
// @Router /extension-requests/{id}/reject [post]
func (h *ExtensionHandler) Reject(c *gin.Context) {
	var body reviewExtensionBody
	_ = c.ShouldBindJSON(&body)
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Reject(c.Request.Context(), c.Param("id"), claims.UserID, body.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}
