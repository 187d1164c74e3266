// Package middleware provides HTTP middleware components for the application.
// It verifies bearer tokens and system keys and puts the resulting actor on
// the request context for the services to check.
package middleware

import (
	"strings"

	"parkpay/internal/actor"
	"parkpay/internal/models"
	"parkpay/internal/utils"
	"parkpay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SystemKeyHeader carries the shared key of gate controllers and internal jobs.
const SystemKeyHeader = "X-System-Key"

// AuthMiddleware handles JWT token validation. Tokens are issued by the
// external auth service and signed with the shared secret.
type AuthMiddleware struct {
	secret string
	logger *zap.Logger
}

func NewAuthMiddleware(secret string, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{secret: secret, logger: logger}
}

// Handler validates the bearer token, stores the claims in locals and the
// matching actor in the request context.
func (m *AuthMiddleware) Handler(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return response.Unauthorized(c, "missing authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return response.Unauthorized(c, "invalid authorization format")
	}

	claims, err := utils.ParseToken(strings.TrimPrefix(authHeader, "Bearer "), m.secret)
	if err != nil {
		m.logger.Debug("token rejected", zap.String("path", c.Path()), zap.Error(err))
		return response.Unauthorized(c, "invalid token")
	}
	// System access only comes through the system key.
	if claims.Role == models.RoleSystem {
		return response.Unauthorized(c, "invalid token")
	}

	c.Locals(utils.ClaimsKey, claims)
	c.SetUserContext(actor.WithActor(c.UserContext(), actor.FromClaims(claims)))
	return c.Next()
}

// HasPermission returns a middleware that checks for a specific permission.
func HasPermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := utils.GetUserClaims(c)
		if err != nil {
			return response.Unauthorized(c, "unauthorized")
		}

		// If user is admin, allow all permissions
		if claims.Role == models.RoleAdmin || claims.HasPermission(permission) {
			return c.Next()
		}
		return response.Forbidden(c, "insufficient permissions")
	}
}

// AdminOnly rejects every role but admin.
func AdminOnly(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}
	if claims.Role != models.RoleAdmin {
		return response.Forbidden(c, "insufficient permissions")
	}
	return c.Next()
}

// SystemKey authenticates gate controllers by comparing X-System-Key with a
// bcrypt hash. An empty hash disables the system routes.
func SystemKey(hash string, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		key := c.Get(SystemKeyHeader)
		if hash == "" || key == "" {
			return response.Unauthorized(c, "missing system key")
		}
		if !utils.CompareSecret(hash, key) {
			logger.Warn("system key rejected", zap.String("ip", c.IP()), zap.String("path", c.Path()))
			return response.Unauthorized(c, "invalid system key")
		}
		c.SetUserContext(actor.WithActor(c.UserContext(), actor.System()))
		return c.Next()
	}
}
