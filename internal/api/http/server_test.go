package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/realtime"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/service"
)

type testServer struct {
	app     *fiber.App
	store   *repository.MemoryStore
	hub     *realtime.Hub
	auth    *service.AuthService
	metrics *observability.Metrics
}

type serverOptions struct {
	policy        config.StatusUpdatePolicy
	requireAuth   bool
	validateRooms bool
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	metrics := observability.NewMetrics()
	hub := realtime.NewHub(logger, metrics, 16)
	seq := realtime.NewSequencer()
	dispatcher := events.NewInMemoryDispatcher(logger)

	tokens, err := auth.NewTokenManager("test-secret", 30)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	authenticator := auth.NewAuthenticator(tokens, store.Users())
	authService := service.NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, store.Users(), tokens, logger)
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  store.Tickets(),
		MessageRepo: store.Messages(),
		UserRepo:    store.Users(),
		Broadcaster: hub,
		Dispatcher:  dispatcher,
		Sequencer:   seq,
		MapsBaseURL: "https://www.google.com/maps/search/?api=1&query=",
	})
	chat := service.NewChatService(service.ChatDependencies{
		TicketRepo:  store.Tickets(),
		MessageRepo: store.Messages(),
		Broadcaster: hub,
		Dispatcher:  dispatcher,
		Sequencer:   seq,
	})

	policy := opts.policy
	if policy == "" {
		policy = config.StatusPolicyOpen
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:  handlers.NewHealthHandler("support-desk", "test", nil),
		Users:   handlers.NewUsersHandler(authService),
		Tickets: handlers.NewTicketsHandler(tickets, chat),
		Realtime: handlers.NewRealtimeHandler(handlers.RealtimeDependencies{
			Hub:           hub,
			Tickets:       tickets,
			Chat:          chat,
			Authenticator: authenticator,
			Config: config.RealtimeConfig{
				SendBufferSize:      16,
				MaxMessageBytes:     16 * 1024,
				PingIntervalSeconds: 25,
				RequireAuth:         opts.requireAuth,
				ValidateRooms:       opts.validateRooms,
				OrderedDelivery:     true,
			},
			RequestTimeout: 5 * time.Second,
			Logger:         logger,
		}),
		Metrics:       handlers.NewMetricsHandler(metrics, hub),
		Authenticator: authenticator,
		StatusPolicy:  policy,
	})

	return &testServer{app: app, store: store, hub: hub, auth: authService, metrics: metrics}
}

// do sends a JSON request and decodes the JSON response into out when non-nil.
func (s *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode
}

// registerAndLogin creates a customer account and returns its bearer token.
func (s *testServer) registerAndLogin(t *testing.T, username string, address *string) string {
	t.Helper()
	body := map[string]any{"username": username, "name": "User " + username, "password": "pa55word"}
	if address != nil {
		body["address"] = *address
	}
	if code := s.do(t, fiber.MethodPost, "/api/auth/register", "", body, nil); code != fiber.StatusCreated {
		t.Fatalf("register %s: status %d", username, code)
	}
	var login struct {
		Token string `json:"token"`
	}
	if code := s.do(t, fiber.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": "pa55word"}, &login); code != fiber.StatusOK {
		t.Fatalf("login %s: status %d", username, code)
	}
	return login.Token
}

// adminToken bootstraps an admin account and logs it in.
func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	if err := s.auth.EnsureAdmin(ctx, "root", "rootpass"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	result, err := s.auth.LoginUser(ctx, "root", "rootpass")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if result.User.Role != domain.UserRoleAdmin {
		t.Fatalf("role: %s", result.User.Role)
	}
	return result.Token
}

type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
}
