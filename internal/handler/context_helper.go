package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-center-api/internal/middleware"
	"github.com/noah-isme/tutor-center-api/internal/models"
)

// claimsFromContext returns the authenticated caller, or nil when the route
// was mounted without the JWT middleware. Mutating endpoints treat nil as
// unauthorized; the caller's UserID becomes the audit actor on attendance
// marks, proposals and reviews.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}
