package models

// Status is the lifecycle state of an incident card
type Status string

// Predefined Status values
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ValidStatuses returns all valid Status values
func ValidStatuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted}
}

// IsValid checks if the Status value is one of the predefined constants
func (s Status) IsValid() bool {
	for _, validStatus := range ValidStatuses() {
		if s == validStatus {
			return true
		}
	}
	return false
}

// Normalize reads an empty or unknown status as pending
func (s Status) Normalize() Status {
	if s.IsValid() {
		return s
	}
	return StatusPending
}

// String returns the string representation of the Status
func (s Status) String() string {
	return string(s)
}
