package outbox

import "example.com/healthscore/internal/events"

const syncCompletedSchema = `{
  "type": "object",
  "title": "SyncCompleted",
  "properties": {
    "sync_id": {"type": "string"},
    "user_id": {"type": "string"},
    "outcome": {"type": "string", "enum": ["success", "partial", "failure"]},
    "error_kind": {"type": "string"},
    "records_written": {"type": "integer", "minimum": 0},
    "metrics_written": {"type": "integer", "minimum": 0},
    "activities_written": {"type": "integer", "minimum": 0},
    "window_start": {"type": "string", "format": "date"},
    "window_end": {"type": "string", "format": "date"},
    "started_at": {"type": "string", "format": "date-time"},
    "finished_at": {"type": "string", "format": "date-time"}
  },
  "required": ["sync_id", "user_id", "outcome", "records_written", "metrics_written", "activities_written", "window_start", "window_end", "started_at", "finished_at"],
  "additionalProperties": false
}`

const dailyMetricScoredSchema = `{
  "type": "object",
  "title": "DailyMetricScored",
  "properties": {
    "sync_id": {"type": "string"},
    "user_id": {"type": "string"},
    "date": {"type": "string", "format": "date"},
    "recovery": {"type": "number", "minimum": 0, "maximum": 100},
    "strain": {"type": "number", "minimum": 0, "maximum": 21},
    "sleep_performance": {"type": "number", "minimum": 0, "maximum": 100},
    "scored_at": {"type": "string", "format": "date-time"}
  },
  "required": ["sync_id", "user_id", "date", "recovery", "strain", "sleep_performance", "scored_at"],
  "additionalProperties": false
}`

// schemaCatalog maps event type to the JSON schema registered for it.
var schemaCatalog = map[string]string{
	events.TypeSyncCompleted:     syncCompletedSchema,
	events.TypeDailyMetricScored: dailyMetricScoredSchema,
}
