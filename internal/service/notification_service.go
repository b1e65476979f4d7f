package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/events"
)

// EventMirror publishes serialized domain events to an external channel.
type EventMirror interface {
	Enabled() bool
	Publish(ctx context.Context, channel string, payload []byte) error
}

// NotificationService forwards domain events to the configured mirror so other
// processes can react to ticket activity.
type NotificationService struct {
	dispatcher events.Dispatcher
	mirror     EventMirror
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, mirror EventMirror, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		mirror:     mirror,
		logger:     logger.With(zap.String("component", "notification_service")),
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventChatMessageAdded, n.handleChatMessageAdded)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.Int64("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.mirrorEvent(ctx, event)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.Int64("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.mirrorEvent(ctx, event)
}

func (n *NotificationService) handleChatMessageAdded(ctx context.Context, event events.Event) error {
	n.logger.Debug("ChatMessageAdded", zap.Int64("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.mirrorEvent(ctx, event)
}

func (n *NotificationService) mirrorEvent(ctx context.Context, event events.Event) error {
	if !n.cfg.Enabled || n.mirror == nil || !n.mirror.Enabled() {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := n.mirror.Publish(ctx, n.cfg.RedisChannel, payload); err != nil {
		return err
	}
	n.logger.Debug("event mirrored",
		zap.String("channel", n.cfg.RedisChannel),
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID))
	return nil
}
