package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/healthscore/internal/events"
)

// AuditHandler records every consumed sync event in sync_event_log. Redelivered
// records are ignored by their (topic, partition, offset) key.
type AuditHandler struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewAuditHandler constructs a handler backed by the provided pool.
func NewAuditHandler(pool *pgxpool.Pool) *AuditHandler {
	return &AuditHandler{pool: pool, now: time.Now}
}

// Handle stores the event payload.
func (h *AuditHandler) Handle(ctx context.Context, msg Message) error {
	userID, err := resolveUserID(msg)
	if err != nil {
		return err
	}
	producedAt := msg.Timestamp
	if producedAt.IsZero() {
		producedAt = h.now().UTC()
	}

	_, err = h.pool.Exec(ctx,
		`INSERT INTO sync_event_log (topic, partition, kafka_offset, event_type, user_id, schema_subject, schema_id, payload, produced_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT (topic, partition, kafka_offset) DO NOTHING`,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.EventType,
		userID,
		msg.SchemaSubject,
		msg.SchemaID,
		msg.Payload,
		producedAt,
	)
	return err
}

// resolveUserID prefers the user_id header and falls back to the payload of
// known event types.
func resolveUserID(msg Message) (string, error) {
	if msg.UserID != "" {
		return msg.UserID, nil
	}

	var payload struct {
		UserID string `json:"user_id"`
	}
	switch msg.EventType {
	case events.TypeSyncCompleted, events.TypeDailyMetricScored:
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return "", fmt.Errorf("decode %s payload: %w", msg.EventType, err)
		}
	}
	if payload.UserID == "" {
		return "", fmt.Errorf("event %s at %s/%d/%d has no user_id", msg.EventType, msg.Topic, msg.Partition, msg.Offset)
	}
	return payload.UserID, nil
}
