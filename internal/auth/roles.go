package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// RequireRole ensures the caller has one of the allowed roles.
func RequireRole(allowed ...domain.UserRole) fiber.Handler {
	allowedSet := make(map[domain.UserRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[identity.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// StatusUpdateGuards returns the handlers that protect ticket status changes
// under the configured policy.
func (a *Authenticator) StatusUpdateGuards(policy config.StatusUpdatePolicy) []fiber.Handler {
	switch policy {
	case config.StatusPolicyAuthenticated:
		return []fiber.Handler{a.Handle}
	case config.StatusPolicyAdmin:
		return []fiber.Handler{a.Handle, RequireRole(domain.UserRoleAdmin)}
	default:
		return nil
	}
}
