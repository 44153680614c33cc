package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/table-booking-backend/internal/pkg/response"
)

// ErrAccountRevoked is returned by a Resolver when the token's account was
// deleted or deactivated.
var ErrAccountRevoked = errors.New("account is no longer active")

// Resolver reloads the current role of a token's account. ErrAccountRevoked
// rejects the request with 401; any other error is a server failure.
type Resolver func(ctx context.Context, accountID int64) (role string, err error)

// AuthRequired is a Gin middleware that validates JWT from Authorization: Bearer <token>
// When resolve is nil the role claim is trusted as issued.
func AuthRequired(jwtManager *JWTManager, resolve Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing Authorization header",
			})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid Authorization header format",
			})
			return
		}

		claims, err := jwtManager.ParseAndValidate(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		// ParseAndValidate already rejected malformed subjects.
		id, _ := claims.AccountID()
		role := claims.Role
		if resolve != nil {
			if role, err = resolve(c.Request.Context(), id); err != nil {
				if errors.Is(err, ErrAccountRevoked) {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
						"error": ErrAccountRevoked.Error(),
					})
					return
				}
				response.Error(c, err)
				c.Abort()
				return
			}
		}
		SetIdentity(c, id, role)

		c.Next()
	}
}
