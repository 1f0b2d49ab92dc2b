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

type rescheduleService interface {
	Create(ctx context.Context, req dto.CreatePlannedRescheduleRequest, createdBy string) (*models.PlannedReschedule, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.PlannedReschedule, error)
	Cancel(ctx context.Context, id string) (*models.PlannedReschedule, error)
}

// RescheduleHandler exposes REST endpoints for planned leave declarations.
type RescheduleHandler struct {
	service rescheduleService
}

// NewRescheduleHandler constructs the handler.
func NewRescheduleHandler(service rescheduleService) *RescheduleHandler {
	return &RescheduleHandler{service: service}
}

// Create godoc
// @Summary Declare a future absence for an enrollment
// @Tags PlannedReschedules
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.CreatePlannedRescheduleRequest true "Declaration payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments/{id}/planned-reschedules [post]
func (h *RescheduleHandler) Create(c *gin.Context) {
	var req dto.CreatePlannedRescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid planned reschedule payload"))
		return
	}
	req.EnrollmentID = c.Param("id")
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	reschedule, err := h.service.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, reschedule, nil)
}

// List godoc
// @Summary List an enrollment's planned reschedules
// @Tags PlannedReschedules
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/planned-reschedules [get]
func (h *RescheduleHandler) List(c *gin.Context) {
	reschedules, err := h.service.ListByEnrollment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reschedules, nil)
}

// Cancel godoc
// @Summary Withdraw a pending declaration
// @Tags PlannedReschedules
// @Produce json
// @Param id path string true "Planned reschedule ID"
// @Success 200 {object} response.Envelope
// @Router /planned-reschedules/{id}/cancel [post]
func (h *RescheduleHandler) Cancel(c *gin.Context) {
	reschedule, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reschedule, nil)
}
