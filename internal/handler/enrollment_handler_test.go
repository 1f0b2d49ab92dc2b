package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-center-api/internal/dto"
	"github.com/noah-isme/tutor-center-api/internal/middleware"
	"github.com/noah-isme/tutor-center-api/internal/models"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
)

type enrollmentServiceMock struct {
	createResp *models.Enrollment
	createErr  error
	getResp    *dto.EnrollmentDetail
	getErr     error
	updateResp *models.Enrollment
	updateErr  error
	genResp    *dto.GenerationResult
	genErr     error

	lastPaymentStatus models.PaymentStatus
}

func (m *enrollmentServiceMock) Create(ctx context.Context, req dto.CreateEnrollmentRequest) (*models.Enrollment, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.createResp, nil
}

func (m *enrollmentServiceMock) Get(ctx context.Context, id string) (*dto.EnrollmentDetail, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.getResp, nil
}

func (m *enrollmentServiceMock) List(ctx context.Context, query dto.EnrollmentQuery) ([]models.Enrollment, *models.Pagination, error) {
	return []models.Enrollment{}, &models.Pagination{Page: query.Page, PageSize: query.PageSize}, nil
}

func (m *enrollmentServiceMock) UpdatePaymentStatus(ctx context.Context, id string, req dto.UpdatePaymentStatusRequest) (*models.Enrollment, error) {
	m.lastPaymentStatus = req.PaymentStatus
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return m.updateResp, nil
}

func (m *enrollmentServiceMock) Generate(ctx context.Context, id string) (*dto.GenerationResult, error) {
	if m.genErr != nil {
		return nil, m.genErr
	}
	return m.genResp, nil
}

type sessionListerMock struct {
	lastQuery dto.SessionQuery
	sessions  []models.Session
}

func (m *sessionListerMock) ListSessions(ctx context.Context, query dto.SessionQuery) ([]models.Session, *models.Pagination, error) {
	m.lastQuery = query
	return m.sessions, &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: len(m.sessions)}, nil
}

func validEnrollmentBody() dto.CreateEnrollmentRequest {
	return dto.CreateEnrollmentRequest{
		StudentID:       "stu-1",
		TutorID:         "tut-1",
		DayOfWeek:       "MONDAY",
		TimeSlot:        "16:00-17:30",
		Location:        "Room A",
		LessonsPaid:     6,
		FirstLessonDate: "2025-09-01",
	}
}

func TestEnrollmentHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &enrollmentServiceMock{createResp: &models.Enrollment{ID: "enr-1", PaymentStatus: models.PaymentStatusPending}}
	handler := NewEnrollmentHandler(svc, &sessionListerMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(validEnrollmentBody())
	req, _ := http.NewRequest(http.MethodPost, "/enrollments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "enr-1")
}

func TestEnrollmentHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEnrollmentHandler(&enrollmentServiceMock{}, &sessionListerMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/enrollments", bytes.NewReader([]byte(`{not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &enrollmentServiceMock{getResp: &dto.EnrollmentDetail{
		Enrollment:       models.Enrollment{ID: "enr-1", PaymentStatus: models.PaymentStatusPaid},
		EffectiveEndDate: "2025-10-20",
	}}
	handler := NewEnrollmentHandler(svc, &sessionListerMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/enrollments/enr-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2025-10-20")
}

func TestEnrollmentHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &enrollmentServiceMock{getErr: appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")}
	handler := NewEnrollmentHandler(svc, &sessionListerMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/enrollments/missing", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestEnrollmentHandlerConfirmPayment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &enrollmentServiceMock{updateResp: &models.Enrollment{ID: "enr-1", PaymentStatus: models.PaymentStatusPaid}}
	handler := NewEnrollmentHandler(svc, &sessionListerMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/enrollments/enr-1/confirm-payment", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.ConfirmPayment(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.PaymentStatusPaid, svc.lastPaymentStatus)
}

func TestEnrollmentHandlerListSessionsScopedToEnrollment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lister := &sessionListerMock{sessions: []models.Session{{
		ID:          "ses-1",
		SessionDate: time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC),
		Status:      models.SessionStatusScheduled,
	}}}
	handler := NewEnrollmentHandler(&enrollmentServiceMock{}, lister)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/enrollments/enr-1/sessions", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}

	handler.ListSessions(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "enr-1", lister.lastQuery.EnrollmentID)
	assert.Equal(t, 1, lister.lastQuery.Page)
	assert.Equal(t, 50, lister.lastQuery.PageSize)
}
