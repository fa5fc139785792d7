package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeItemIngested is emitted after an item's embedding is stored
	// and its vectors are indexed.
	EventTypeItemIngested = "tonearm.item.ingested"
)

// ItemIngestedEvent is a transport-neutral event payload for one ingested
// item.
type ItemIngestedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	// Provider and Metric identify the scheme the item was indexed under.
	Provider string `json:"provider"`
	Metric   string `json:"metric"`

	ItemID   int64  `json:"item_id"`
	Source   string `json:"source,omitempty"`
	Segments int    `json:"segments"`
	Forced   bool   `json:"forced"`
}
