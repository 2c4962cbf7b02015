package models

// Zone is the north/south partition applied to incidents, chat attribution and identities
type Zone string

// Predefined Zone values
const (
	ZoneNorth Zone = "north"
	ZoneSouth Zone = "south"
)

// ValidZones returns all valid Zone values
func ValidZones() []Zone {
	return []Zone{ZoneNorth, ZoneSouth}
}

// IsValid checks if the Zone value is one of the predefined constants
func (z Zone) IsValid() bool {
	for _, validZone := range ValidZones() {
		if z == validZone {
			return true
		}
	}
	return false
}

// String returns the string representation of the Zone
func (z Zone) String() string {
	return string(z)
}
