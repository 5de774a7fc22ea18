package domain

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/zhirschtritt/userposts/internal/events"
)

const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
	EventPostCreated = "post.created"
	EventPostUpdated = "post.updated"
	EventPostDeleted = "post.deleted"
)

func newEvent(eventType, aggregateType string, aggregateID int64, at time.Time, data map[string]any) events.Event {
	return events.Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   strconv.FormatInt(aggregateID, 10),
		Version:       1,
		Timestamp:     at,
		Data:          data,
	}
}

func userEvent(eventType string, u *User, at time.Time) events.Event {
	return newEvent(eventType, "user", u.ID, at, map[string]any{
		"user_id": u.ID,
		"name":    u.Name,
		"email":   u.Email,
	})
}

func postEvent(eventType string, p *Post, at time.Time) events.Event {
	return newEvent(eventType, "post", p.ID, at, map[string]any{
		"post_id": p.ID,
		"user_id": p.UserID,
		"title":   p.Title,
	})
}

// recordEvent hands the event to the audit consumer. The mutation it describes is
// already committed, so a rejected event is logged and otherwise ignored.
func recordEvent(ctx context.Context, consumer events.EventConsumer, logger *slog.Logger, event events.Event) {
	if err := consumer.Consume(ctx, event); err != nil {
		level := slog.LevelError
		if errors.Is(err, events.ErrConsumerFull) {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "failed to record audit event",
			"error", err, "type", event.Type, "aggregate_id", event.AggregateID)
	}
}
