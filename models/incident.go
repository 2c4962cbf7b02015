package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IncidentCollection is the mongo collection holding robbery incidents
const IncidentCollection = "incidents"

// IncidentFields holds the operator-editable fields of an incident. An edit
// overwrites exactly these fields and nothing else.
type IncidentFields struct {
	Zone        Zone   `json:"zone" bson:"zone" validate:"required,oneof=north south"`
	PlayerID    string `json:"playerId" bson:"playerId"`
	Band        string `json:"band" bson:"band"`
	Color       string `json:"color" bson:"color" validate:"required,len=7,hexcolor"`
	RobberyType string `json:"robberyType" bson:"robberyType" validate:"required"`
}

// IncidentDraft is the body sent when an incident is reported. The store
// assigns the id and createdAt.
type IncidentDraft struct {
	IncidentFields `bson:",inline"`
	Status         Status    `json:"status" bson:"status" validate:"required,oneof=pending in_progress completed"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp" validate:"required"`
}

// Incident holds the structure for the incidents collection in mongo
type Incident struct {
	ID             primitive.ObjectID `json:"_id" bson:"_id"`
	IncidentFields `bson:",inline"`
	Status         Status     `json:"status" bson:"status"`
	CreatedAt      *time.Time `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	Timestamp      time.Time  `json:"timestamp" bson:"timestamp"`
}
