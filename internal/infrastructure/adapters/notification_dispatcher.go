package adapters

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
)

// NotificationDispatcher forwards notifications to the delivery pipeline.
// Delivery transports live in a separate service; this implementation
// emits a structured event for the log shipper to pick up. Failures are
// informational, never money-path errors.
type NotificationDispatcher struct {
	logger *zap.Logger
}

// NewNotificationDispatcher creates a new notification dispatcher
func NewNotificationDispatcher(logger *zap.Logger) *NotificationDispatcher {
	return &NotificationDispatcher{logger: logger}
}

// Notify emits one notification event
func (d *NotificationDispatcher) Notify(ctx context.Context, ownerID uuid.UUID, n entities.Notification) error {
	d.logger.Info("notification dispatched",
		zap.String("owner_id", ownerID.String()),
		zap.String("type", n.Type),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
	)
	return nil
}
