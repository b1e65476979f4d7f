package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const identityKey = "auth_identity"

// Authenticator verifies bearer tokens and confirms the account is still active.
type Authenticator struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewAuthenticator constructs the oracle.
func NewAuthenticator(tokens *TokenManager, users repository.UserRepository) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate resolves a raw token into an identity.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, apperrors.NewUnauthorized("missing token")
	}
	claims, err := a.tokens.ParseToken(token)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}

	user, err := a.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if apperrors.IsNotFound(apperrors.FromStore(err, "user")) {
			return nil, apperrors.NewUnauthorized("user not found")
		}
		return nil, apperrors.FromStore(err, "user")
	}
	if user.Status != domain.UserStatusActive {
		return nil, apperrors.NewUnauthorized("user inactive")
	}
	return &domain.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// Handle enforces authentication for protected routes.
func (a *Authenticator) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}
	token, ok := BearerToken(authHeader)
	if !ok {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	identity, err := a.Authenticate(c.UserContext(), token)
	if err != nil {
		return err
	}

	c.Locals(identityKey, identity)
	return c.Next()
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (*domain.Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*domain.Identity)
	return identity, ok
}

// SetIdentity stores an identity on the request.
func SetIdentity(c *fiber.Ctx, identity *domain.Identity) {
	c.Locals(identityKey, identity)
}
