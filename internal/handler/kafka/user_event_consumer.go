package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"payments/internal/app/idempotency"
	"payments/internal/domain"
	kafka_infra "payments/internal/infrastructure/kafka"
)

// UserRegisteredMessageHandler consumes user.registered events, guarded
// against duplicate deliveries by the idempotency guard. The side effect
// (queueing the welcome bonus offer) runs at most once per event.
func UserRegisteredMessageHandler(guard idempotency.Guard, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event domain.UserRegisteredEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("Failed to unmarshal user.registered event, dropping",
				zap.Error(err),
				zap.ByteString("value", msg.Value))
			return nil
		}
		if event.EventID == "" {
			logger.Warn("user.registered event without event_id, dropping",
				zap.String("user_id", event.UserID))
			return nil
		}

		processed, err := guard.IsProcessed(ctx, event.EventID, domain.TopicUserRegistered)
		if err != nil {
			return fmt.Errorf("failed to check idempotency for event %s: %w", event.EventID, err)
		}
		if processed {
			return nil
		}

		logger.Info("Queueing welcome bonus offer",
			zap.String("event_id", event.EventID),
			zap.String("user_id", event.UserID),
			zap.String("email", event.Email))

		if err := guard.MarkSuccess(ctx, event.EventID, domain.TopicUserRegistered, domain.SourceServiceUser, msg.Value); err != nil {
			return fmt.Errorf("failed to mark event %s as processed: %w", event.EventID, err)
		}
		return nil
	}
}
