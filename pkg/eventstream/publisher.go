// Package eventstream publishes ingest events to an event stream backend.
//
// The store fires one event per successfully indexed item so external
// managers (the library plugin, playlist builders) can react without
// polling. Publishing is best-effort: a failed publish is logged by the
// caller, never rolled into the ingestion result.
package eventstream

import "context"

// Publisher publishes item events to an event stream backend.
type Publisher interface {
	PublishItemIngested(ctx context.Context, event *ItemIngestedEvent) error
	Close() error
}
