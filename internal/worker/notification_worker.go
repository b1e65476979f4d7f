package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/service"
)

// StartNotificationWorker subscribes the event mirror to domain events. It is a
// no-op when notifications are disabled.
func StartNotificationWorker(notificationService *service.NotificationService, cfg config.NotificationConfig, logger *zap.Logger) {
	if notificationService == nil || !cfg.Enabled {
		logger.Info("notification mirror disabled")
		return
	}
	notificationService.RegisterHandlers()
	logger.Info("notification mirror started", zap.String("channel", cfg.RedisChannel))
}
