package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatCollection is the mongo collection holding the internal chat
const ChatCollection = "chat"

// ChatDraft is the body sent when an operator posts a message
type ChatDraft struct {
	Text    string `json:"text" bson:"text" validate:"required"`
	User    string `json:"user" bson:"user" validate:"required"`
	Faction Zone   `json:"faction" bson:"faction" validate:"omitempty,oneof=north south"`
	LocalID string `json:"localId" bson:"localId"`
}

// ChatMessage holds the structure for the chat collection in mongo. Messages
// are never edited once written.
type ChatMessage struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id"`
	ChatDraft `bson:",inline"`
	CreatedAt *time.Time `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
}
