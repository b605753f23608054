package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-coverage-api/internal/models"
	"github.com/noah-isme/sma-coverage-api/pkg/middleware/requestid"
)

// AuditResourceKey lets handlers name the resource a request touched.
const AuditResourceKey = "auditResourceID"

const auditWriteTimeout = 3 * time.Second

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type auditDetail struct {
	Route     string `json:"route"`
	Method    string `json:"method"`
	Status    int    `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	RequestID string `json:"request_id,omitempty"`
}

// Audit records action on resource once the handler succeeds. The write
// outlives a disconnected client but is bounded by auditWriteTimeout.
func Audit(repo auditRecorder, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if repo == nil || status >= 400 || len(c.Errors) > 0 {
			return
		}

		entry := &models.AuditLog{
			Action:     action,
			Resource:   resource,
			ResourceID: auditResource(c),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		}
		if claims, ok := CurrentUser(c); ok {
			id := claims.UserID
			entry.UserID = &id
		}
		entry.NewValues, _ = json.Marshal(auditDetail{
			Route:     c.FullPath(),
			Method:    c.Request.Method,
			Status:    status,
			LatencyMs: time.Since(start).Milliseconds(),
			RequestID: requestid.Value(c),
		})

		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), auditWriteTimeout)
		defer cancel()
		if err := repo.CreateAuditLog(ctx, entry); err != nil {
			logger.Warn("audit log write failed",
				zap.String("action", action),
				zap.String("request_id", requestid.Value(c)),
				zap.Error(err),
			)
		}
	}
}

// auditResource prefers the id a handler set, then a date query or path
// parameter, then an :id path parameter.
func auditResource(c *gin.Context) *string {
	for _, candidate := range []string{c.GetString(AuditResourceKey), c.Query("date"), c.Param("date"), c.Param("id")} {
		if candidate != "" {
			value := candidate
			return &value
		}
	}
	return nil
}
