package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-center-api/internal/dto"
	"github.com/noah-isme/tutor-center-api/internal/models"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
	"github.com/noah-isme/tutor-center-api/pkg/response"
)

type enrollmentService interface {
	Create(ctx context.Context, req dto.CreateEnrollmentRequest) (*models.Enrollment, error)
	Get(ctx context.Context, id string) (*dto.EnrollmentDetail, error)
	List(ctx context.Context, query dto.EnrollmentQuery) ([]models.Enrollment, *models.Pagination, error)
	UpdatePaymentStatus(ctx context.Context, id string, req dto.UpdatePaymentStatusRequest) (*models.Enrollment, error)
	Generate(ctx context.Context, id string) (*dto.GenerationResult, error)
}

type enrollmentSessionLister interface {
	ListSessions(ctx context.Context, query dto.SessionQuery) ([]models.Session, *models.Pagination, error)
}

// EnrollmentHandler exposes REST endpoints for enrollment contracts.
type EnrollmentHandler struct {
	service  enrollmentService
	sessions enrollmentSessionLister
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(service enrollmentService, sessions enrollmentSessionLister) *EnrollmentHandler {
	return &EnrollmentHandler{service: service, sessions: sessions}
}

// Create godoc
// @Summary Register a student-tutor enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.CreateEnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req dto.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid enrollment payload"))
		return
	}
	enrollment, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, enrollment, nil)
}

// Get godoc
// @Summary Get an enrollment with its effective end date
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param studentId query string false "Student ID"
// @Param tutorId query string false "Tutor ID"
// @Param paymentStatus query string false "Payment status"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	query := dto.EnrollmentQuery{
		StudentID:     c.Query("studentId"),
		TutorID:       c.Query("tutorId"),
		PaymentStatus: models.PaymentStatus(c.Query("paymentStatus")),
	}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	enrollments, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// ConfirmPayment godoc
// @Summary Confirm payment, making the enrollment generation-eligible
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/confirm-payment [post]
func (h *EnrollmentHandler) ConfirmPayment(c *gin.Context) {
	enrollment, err := h.service.UpdatePaymentStatus(c.Request.Context(), c.Param("id"),
		dto.UpdatePaymentStatusRequest{PaymentStatus: models.PaymentStatusPaid})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Cancel godoc
// @Summary Cancel an enrollment, releasing its weekly slot
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/cancel [post]
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	enrollment, err := h.service.UpdatePaymentStatus(c.Request.Context(), c.Param("id"),
		dto.UpdatePaymentStatusRequest{PaymentStatus: models.PaymentStatusCancelled})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Generate godoc
// @Summary Generate the enrollment's sessions
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/generate [post]
func (h *EnrollmentHandler) Generate(c *gin.Context) {
	result, err := h.service.Generate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListSessions godoc
// @Summary List an enrollment's sessions in chronological order
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/sessions [get]
func (h *EnrollmentHandler) ListSessions(c *gin.Context) {
	query := dto.SessionQuery{EnrollmentID: c.Param("id")}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "50"))

	sessions, pagination, err := h.sessions.ListSessions(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination)
}
