package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/realtime"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const (
	wsIdentityKey = "ws_identity"
	writeWait     = 10 * time.Second
)

// RealtimeHandler serves the websocket event channel.
type RealtimeHandler struct {
	hub            *realtime.Hub
	tickets        *service.TicketService
	chat           *service.ChatService
	authenticator  *auth.Authenticator
	cfg            config.RealtimeConfig
	requestTimeout time.Duration
	logger         *zap.Logger
}

// RealtimeDependencies bundles collaborators for the event channel.
type RealtimeDependencies struct {
	Hub            *realtime.Hub
	Tickets        *service.TicketService
	Chat           *service.ChatService
	Authenticator  *auth.Authenticator
	Config         config.RealtimeConfig
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// NewRealtimeHandler constructs handler.
func NewRealtimeHandler(deps RealtimeDependencies) *RealtimeHandler {
	return &RealtimeHandler{
		hub:            deps.Hub,
		tickets:        deps.Tickets,
		chat:           deps.Chat,
		authenticator:  deps.Authenticator,
		cfg:            deps.Config,
		requestTimeout: deps.RequestTimeout,
		logger:         deps.Logger.With(zap.String("component", "realtime_handler")),
	}
}

// Upgrade rejects non-websocket requests and resolves the optional bearer
// token, read from the "token" query parameter or the Authorization header.
func (h *RealtimeHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := c.Query("token")
	if token == "" {
		token, _ = auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	}
	if token == "" {
		if h.cfg.RequireAuth {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}

	identity, err := h.authenticator.Authenticate(c.UserContext(), token)
	if err != nil {
		return err
	}
	c.Locals(wsIdentityKey, identity)
	return c.Next()
}

// Serve returns the websocket session handler.
func (h *RealtimeHandler) Serve() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *RealtimeHandler) serve(conn *websocket.Conn) {
	identity, _ := conn.Locals(wsIdentityKey).(*domain.Identity)
	client := h.hub.Register(identity)
	logger := h.logger.With(zap.String("handle", client.ID()))
	if identity != nil {
		logger = logger.With(zap.Int64("user_id", identity.UserID))
	}
	logger.Info("event channel opened")

	done := make(chan struct{})
	go h.writeLoop(conn, client, logger, done)

	pongWait := 2 * h.cfg.PingInterval()
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("event channel read failed", zap.Error(err))
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if msgType != websocket.TextMessage {
			continue
		}
		h.dispatch(client, raw, logger)
	}

	h.hub.Unregister(client.ID())
	<-done
	logger.Info("event channel closed")
}

// writeLoop is the only writer of data frames on conn. It exits when the
// client's outbound queue is closed or a write fails.
func (h *RealtimeHandler) writeLoop(conn *websocket.Conn, client *realtime.Client, logger *zap.Logger, done chan<- struct{}) {
	ticker := time.NewTicker(h.cfg.PingInterval())
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		close(done)
	}()

	outbound := client.Outbound()
	for {
		select {
		case msg, ok := <-outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("event channel write failed", zap.Error(err))
				h.hub.Unregister(client.ID())
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("event channel ping failed", zap.Error(err))
				h.hub.Unregister(client.ID())
				return
			}
		}
	}
}

// dispatch handles one inbound frame. Rejected events are answered with an
// error event to the sender only.
func (h *RealtimeHandler) dispatch(client *realtime.Client, raw []byte, logger *zap.Logger) {
	env, err := realtime.Decode(raw)
	if err != nil {
		h.reject(client, "", apperrors.NewValidationError("malformed frame", nil), logger)
		return
	}

	switch env.Event {
	case realtime.EventJoinTicketRoom:
		var ticketID realtime.TicketID
		if err := json.Unmarshal(env.Data, &ticketID); err != nil {
			h.reject(client, env.Event, apperrors.NewValidationError("invalid ticket id", nil), logger)
			return
		}
		if h.cfg.ValidateRooms {
			ctx, cancel := h.persistContext()
			exists, err := h.tickets.TicketExists(ctx, int64(ticketID))
			cancel()
			if err != nil {
				h.reject(client, env.Event, err, logger)
				return
			}
			if !exists {
				h.reject(client, env.Event, apperrors.NewNotFound("ticket", map[string]any{"ticketId": int64(ticketID)}), logger)
				return
			}
		}
		if err := h.hub.Join(client.ID(), int64(ticketID)); err != nil {
			logger.Debug("join after disconnect", zap.Error(err))
		}

	case realtime.EventLeaveTicketRoom:
		var ticketID realtime.TicketID
		if err := json.Unmarshal(env.Data, &ticketID); err != nil {
			h.reject(client, env.Event, apperrors.NewValidationError("invalid ticket id", nil), logger)
			return
		}
		_ = h.hub.LeaveRoom(client.ID(), int64(ticketID))

	case realtime.EventSendMessage:
		var payload realtime.SendMessagePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			h.reject(client, env.Event, apperrors.NewValidationError("invalid sendMessage payload", nil), logger)
			return
		}
		sender := payload.Sender
		if sender == "" && client.Identity() != nil {
			sender = string(senderFor(client.Identity()))
		}
		// persistence outlives the connection; only the timeout bounds it
		ctx, cancel := h.persistContext()
		_, err := h.chat.SendMessage(ctx, int64(payload.TicketID), sender, payload.Message, client.Identity())
		cancel()
		if err != nil {
			h.reject(client, env.Event, err, logger)
		}

	default:
		h.reject(client, env.Event, apperrors.NewValidationError("unknown event", map[string]any{"event": env.Event}), logger)
	}
}

func (h *RealtimeHandler) reject(client *realtime.Client, event string, err error, logger *zap.Logger) {
	de := apperrors.ToDomainError(err)
	if de.HTTPStatus >= fiber.StatusInternalServerError {
		logger.Error("event failed", zap.String("event", event), zap.Error(err))
	} else {
		logger.Debug("event rejected", zap.String("event", event), zap.String("code", de.Code))
	}
	_ = h.hub.Send(client.ID(), realtime.EventError, realtime.ErrorPayload{
		Event: event,
		Error: de.Message,
		Code:  de.Code,
	})
}

func (h *RealtimeHandler) persistContext() (context.Context, context.CancelFunc) {
	if h.requestTimeout > 0 {
		return context.WithTimeout(context.Background(), h.requestTimeout)
	}
	return context.WithCancel(context.Background())
}

func senderFor(identity *domain.Identity) domain.MessageSender {
	if identity == nil {
		return domain.SenderCustomer
	}
	return domain.SenderForRole(identity.Role)
}
