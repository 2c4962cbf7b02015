package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConfigCollection is the mongo collection holding the robbery type catalog
const ConfigCollection = "config"

// ConfigEntryDraft is the body sent when an admin adds a robbery type
type ConfigEntryDraft struct {
	Name  string `json:"name" bson:"name" validate:"required"`
	Color string `json:"color" bson:"color" validate:"required,len=7,hexcolor"`
}

// ConfigEntry holds the structure for the config collection in mongo
type ConfigEntry struct {
	ID               primitive.ObjectID `json:"_id" bson:"_id"`
	ConfigEntryDraft `bson:",inline"`
	CreatedAt        *time.Time `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
}
