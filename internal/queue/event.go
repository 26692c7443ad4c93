// Package queue defines message payloads exchanged over the message broker
// and the publisher and consumer that carry them.
package queue

// BulkImportQueue is the durable queue bulk-import events are routed to.
const BulkImportQueue = "invoice.bulk_imported"

// BulkImportedEvent is published after a bulk invoice upload has been
// processed.  It carries the outcome counts so consumers can audit imports
// without querying the primary database.
type BulkImportedEvent struct {
	ImportedBy   string `json:"imported_by"`
	Source       string `json:"source"` // csv, json or inline
	Rows         int    `json:"rows"`
	Created      int    `json:"created"`
	UsersCreated int    `json:"users_created"`
	Skipped      int    `json:"skipped"`
	Errors       int    `json:"errors"`
	ImportedAt   string `json:"imported_at"`
}
