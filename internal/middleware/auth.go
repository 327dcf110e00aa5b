package middleware

import (
	"errors"
	"net/http"
	"strings"

	"backend/internal/models"
	"backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Meta declares the authorization requirements of one route. Routes that
// require permissions must also require login; the permission guard is a
// no-op when no identity was attached.
type Meta struct {
	RequiresLogin       bool
	RequiredPermissions []string
}

// Routes maps an operation identifier ("METHOD /full/path") to its
// authorization metadata. Routes absent from the table are open.
type Routes map[string]Meta

func (r Routes) lookup(c *gin.Context) Meta {
	return r[c.Request.Method+" "+c.FullPath()]
}

// identityKey is where the login guard stores the verified claim set.
const identityKey = "identity"

// Identity returns the claim set attached by the login guard, if any.
func Identity(c *gin.Context) (*models.Claims, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*models.Claims)
	return claims, ok
}

// LoginGuard enforces the RequiresLogin metadata. On a protected route it
// requires a valid "Authorization: Bearer <token>" header and attaches the
// decoded claim set to the request context before any handler logic runs.
func LoginGuard(tokens *service.TokenManager, routes Routes, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := routes.lookup(c)
		if !meta.RequiresLogin {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthenticated(c, "Authorization header required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthenticated(c, "Authorization header format must be Bearer <token>")
			return
		}

		claims, err := tokens.Verify(parts[1])
		if err != nil {
			// Expired and invalid are the same outcome to the caller,
			// they only differ in the log line.
			if errors.Is(err, service.ErrTokenExpired) {
				logger.Debug("Expired token rejected", zap.String("path", c.FullPath()))
			} else {
				logger.Warn("Invalid token rejected", zap.String("path", c.FullPath()), zap.Error(err))
			}
			abortUnauthenticated(c, "Invalid or expired token")
			return
		}

		c.Set(identityKey, claims)
		c.Next()
	}
}

// PermissionGuard enforces the RequiredPermissions metadata. All listed
// codes are required (AND). If no identity is present the check passes:
// routes needing permissions must also declare RequiresLogin.
func PermissionGuard(routes Routes, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := routes.lookup(c)
		if len(meta.RequiredPermissions) == 0 {
			c.Next()
			return
		}

		claims, ok := Identity(c)
		if !ok {
			c.Next()
			return
		}

		for _, code := range meta.RequiredPermissions {
			if !claims.HasPermission(code) {
				logger.Info("Permission denied",
					zap.String("path", c.FullPath()),
					zap.String("username", claims.Username),
					zap.String("missing", code))
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"code":    http.StatusForbidden,
					"message": "fail",
					"data":    "You do not have permission to access this resource",
				})
				return
			}
		}

		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    http.StatusUnauthorized,
		"message": "fail",
		"data":    detail,
	})
}
