package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nekogravitycat/table-booking-backend/internal/account"
	"github.com/nekogravitycat/table-booking-backend/internal/auth"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an id and logs it once it completes.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if accountID := auth.GetAccountID(c); accountID != 0 {
			fields = append(fields, zap.Int64("account_id", accountID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// RequireAdmin ensures the authenticated account is an admin.
// It MUST be used after auth.AuthRequired middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth.GetAccountID(c) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if auth.GetRole(c) != auth.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden: admin access required"})
			return
		}
		c.Next()
	}
}

// accountResolver looks the account up on every request so that role
// changes and deactivation apply to tokens already issued.
func accountResolver(svc account.Service) auth.Resolver {
	return func(ctx context.Context, accountID int64) (string, error) {
		a, err := svc.GetByID(ctx, accountID)
		if errors.Is(err, account.ErrNotFound) {
			return "", fmt.Errorf("account %d: %w", accountID, auth.ErrAccountRevoked)
		}
		if err != nil {
			return "", fmt.Errorf("resolve account %d: %w", accountID, err)
		}
		if !a.IsActive {
			return "", fmt.Errorf("account %d is inactive: %w", accountID, auth.ErrAccountRevoked)
		}
		return a.Role, nil
	}
}
