package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func newTokens(t *testing.T, secret string) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(secret, 60)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	return tm
}

func seedUser(t *testing.T, store *repository.MemoryStore, username string, role domain.UserRole) *domain.User {
	t.Helper()
	user := &domain.User{Username: username, Name: username, PasswordHash: "x", Role: role}
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestNewTokenManager_RequiresSecret(t *testing.T) {
	if _, err := NewTokenManager("", 60); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tm := newTokens(t, "secret")
	user := &domain.User{ID: 7, Username: "alice", Role: domain.UserRoleAdmin}

	token, exp, err := tm.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expiry should be in the future: %v", exp)
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != 7 || claims.Username != "alice" || claims.Role != domain.UserRoleAdmin {
		t.Fatalf("claims: %+v", claims)
	}
	if claims.Subject != "7" {
		t.Errorf("subject: got %q", claims.Subject)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	tm := newTokens(t, "secret")
	other := newTokens(t, "other")
	user := &domain.User{ID: 1, Username: "alice", Role: domain.UserRoleCustomer}

	foreign, _, err := other.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := tm.ParseToken(foreign); err == nil {
		t.Error("token signed with another secret should fail")
	}

	expired := newTokens(t, "secret")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := tm.ParseToken(old); err == nil {
		t.Error("expired token should fail")
	}

	if _, err := tm.ParseToken("not-a-token"); err == nil {
		t.Error("garbage should fail")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("pw123", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := ComparePassword(hash, "pw123"); err != nil {
		t.Errorf("matching password rejected: %v", err)
	}
	if err := ComparePassword(hash, "nope"); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"abc", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	store := repository.NewMemoryStore()
	tm := newTokens(t, "secret")
	authn := NewAuthenticator(tm, store.Users())
	alice := seedUser(t, store, "alice", domain.UserRoleCustomer)

	token, _, err := tm.GenerateToken(alice)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	identity, err := authn.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if identity.UserID != alice.ID || identity.Role != domain.UserRoleCustomer {
		t.Fatalf("identity: %+v", identity)
	}

	ghost, _, err := tm.GenerateToken(&domain.User{ID: 99, Username: "ghost", Role: domain.UserRoleCustomer})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	_, err = authn.Authenticate(context.Background(), ghost)
	var de *apperrors.DomainError
	if !errors.As(err, &de) || de.HTTPStatus != http.StatusUnauthorized {
		t.Fatalf("unknown user: got %v, want 401", err)
	}
}

func newGuardedApp(authn *Authenticator, policy config.StatusUpdatePolicy) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	handlers := append(authn.StatusUpdateGuards(policy), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	app.Patch("/tickets/:id", handlers...)
	return app
}

func TestStatusUpdateGuards(t *testing.T) {
	store := repository.NewMemoryStore()
	tm := newTokens(t, "secret")
	authn := NewAuthenticator(tm, store.Users())
	customer := seedUser(t, store, "alice", domain.UserRoleCustomer)
	admin := seedUser(t, store, "root", domain.UserRoleAdmin)
	customerToken, _, _ := tm.GenerateToken(customer)
	adminToken, _, _ := tm.GenerateToken(admin)

	tests := []struct {
		name   string
		policy config.StatusUpdatePolicy
		token  string
		want   int
	}{
		{"open without token", config.StatusPolicyOpen, "", http.StatusOK},
		{"authenticated without token", config.StatusPolicyAuthenticated, "", http.StatusUnauthorized},
		{"authenticated customer", config.StatusPolicyAuthenticated, customerToken, http.StatusOK},
		{"admin policy customer", config.StatusPolicyAdmin, customerToken, http.StatusForbidden},
		{"admin policy admin", config.StatusPolicyAdmin, adminToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newGuardedApp(authn, tt.policy)
			req := httptest.NewRequest(http.MethodPatch, "/tickets/1", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}
