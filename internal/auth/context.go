package auth

import "github.com/gin-gonic/gin"

const (
	accountIDKey = "accountID"
	roleKey      = "accountRole"
)

// RoleAdmin is the role claim value that grants administrative access.
const RoleAdmin = "admin"

// GetAccountID returns the authenticated account's ID or 0.
func GetAccountID(c *gin.Context) int64 {
	if v, ok := c.Get(accountIDKey); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// GetRole returns the role from the access token or empty string.
func GetRole(c *gin.Context) string {
	return c.GetString(roleKey)
}

// SetIdentity stores the authenticated account in the gin context.
func SetIdentity(c *gin.Context, accountID int64, role string) {
	c.Set(accountIDKey, accountID)
	c.Set(roleKey, role)
}
