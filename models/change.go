package models

import (
	"encoding/json"
	"time"
)

// ChangeType is the kind of delta carried by a live query event
type ChangeType string

// Predefined ChangeType values
const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
	// ChangeSynced follows the last added event of the initial snapshot.
	ChangeSynced ChangeType = "synced"
	// ChangeBoundary announces that a shift boundary has just passed.
	ChangeBoundary ChangeType = "boundary"
)

// ChangeEvent is a single delta of a live, filtered, ordered query
type ChangeEvent struct {
	Type     ChangeType      `json:"type"`
	ID       string          `json:"id,omitempty"`
	Fields   json.RawMessage `json:"fields,omitempty"`
	Boundary *time.Time      `json:"boundary,omitempty"`
}
