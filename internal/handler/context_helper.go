package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-coverage-api/internal/middleware"
)

// actorID is the authenticated user id, or "" on unauthenticated routes.
func actorID(c *gin.Context) string {
	if claims, ok := middleware.CurrentUser(c); ok {
		return claims.UserID
	}
	return ""
}
