package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-center-api/internal/dto"
	"github.com/noah-isme/tutor-center-api/pkg/response"
)

type batchRunner interface {
	Run(ctx context.Context) (*dto.BatchGenerationResult, error)
}

// GenerationHandler exposes the batch generation driver.
type GenerationHandler struct {
	batch batchRunner
}

// NewGenerationHandler constructs the handler.
func NewGenerationHandler(batch batchRunner) *GenerationHandler {
	return &GenerationHandler{batch: batch}
}

// Run godoc
// @Summary Run one batch generation sweep over eligible enrollments
// @Tags Generation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/generation/run [post]
func (h *GenerationHandler) Run(c *gin.Context) {
	result, err := h.batch.Run(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
