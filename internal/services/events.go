package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fastcrud/apiserver/types"
	"github.com/google/uuid"
)

const (
	EventUserRegistered = "users.registered"
	EventUserDeleted    = "users.deleted"
)

// EventPublisher sends identity events to a broker channel.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// UserEvent is the payload published for identity lifecycle changes.
type UserEvent struct {
	Type       string    `json:"type"`
	UserID     uuid.UUID `json:"user_id"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

// publishUserEvent is best effort: the write it reports on has already
// committed, so failures are logged rather than returned.
func publishUserEvent(ctx context.Context, pub EventPublisher, logger *slog.Logger, eventType string, user types.User, at time.Time) {
	if pub == nil {
		return
	}

	data, err := json.Marshal(UserEvent{
		Type:       eventType,
		UserID:     user.ID,
		Email:      user.Email,
		OccurredAt: at.UTC(),
	})
	if err != nil {
		logger.ErrorContext(ctx, "encode user event", "event", eventType, "user_id", user.ID, "error", err)
		return
	}

	id, err := pub.Publish(ctx, eventType, data, map[string]string{"event": eventType})
	if err != nil {
		logger.ErrorContext(ctx, "publish user event", "event", eventType, "user_id", user.ID, "error", err)
		return
	}
	logger.DebugContext(ctx, "published user event", "event", eventType, "user_id", user.ID, "message_id", id)
}
