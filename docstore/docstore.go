// Package docstore is the document store the dispatch board runs against:
// create, update, delete and list per collection, plus live queries that
// deliver a snapshot followed by incremental deltas.
package docstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/linesmerrill/dispatch-board/models"
)

// Document is one stored record
type Document struct {
	ID     string
	Fields json.RawMessage
}

// Query selects records of a collection whose Field is at or after Since,
// ordered ascending by Field. An empty Field selects every record in
// insertion order.
type Query struct {
	Collection string
	Field      string
	Since      time.Time
}

// Store is the backing-store contract consumed by the board
type Store interface {
	// Create inserts doc and returns its id. The store stamps createdAt.
	Create(ctx context.Context, collection string, doc interface{}) (string, error)
	// Update overwrites the given top-level fields of a record.
	Update(ctx context.Context, collection, id string, fields interface{}) error
	Delete(ctx context.Context, collection, id string) error
	// ListAll returns every record of a collection, unfiltered.
	ListAll(ctx context.Context, collection string) ([]Document, error)
	// Subscribe streams the matching snapshot as added events, one synced
	// event, then deltas until ctx is done, when the channel is closed.
	Subscribe(ctx context.Context, q Query) (<-chan models.ChangeEvent, error)
}
