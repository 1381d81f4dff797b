package outbox

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// writeDLQ records a failed outbox message alongside the supplied reason.
// The entry is due for replay immediately.
func writeDLQ(ctx context.Context, tx pgx.Tx, msg Message, reason string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, reason, next_retry_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, NOW())`,
		msg.EventID, msg.UserID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Topic, msg.SchemaSubject, msg.PartitionKey, msg.Payload, reason,
	)
	return err
}
