package handlers

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/dispatch-board/api"
	"github.com/linesmerrill/dispatch-board/config"
	"github.com/linesmerrill/dispatch-board/databases"
	"github.com/linesmerrill/dispatch-board/models"
)

// Chat exported for testing purposes
type Chat struct {
	DB databases.ChatDatabase
}

// ChatHandler returns every chat message ordered by createdAt
func (c Chat) ChatHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	start := timeNow()
	dbResp, err := c.DB.Find(ctx, bson.M{}, sortBy("createdAt"))
	api.ObserveQuery(models.ChatCollection, "find", start, err)
	if err != nil {
		config.ErrorStatus("failed to get chat messages", http.StatusInternalServerError, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, dbResp)
}

// CreateChatHandler stores a chat message and stamps createdAt
func (c Chat) CreateChatHandler(w http.ResponseWriter, r *http.Request) {
	var draft models.ChatDraft
	if err := decodeBody(r, &draft); err != nil {
		config.ErrorStatus("invalid chat message", http.StatusBadRequest, w, err)
		return
	}

	now := timeNow().UTC()
	msg := models.ChatMessage{
		ID:        primitive.NewObjectID(),
		ChatDraft: draft,
		CreatedAt: &now,
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	start := timeNow()
	_, err := c.DB.InsertOne(ctx, msg)
	api.ObserveQuery(models.ChatCollection, "insert", start, err)
	if err != nil {
		config.ErrorStatus("failed to send chat message", http.StatusInternalServerError, w, err)
		return
	}
	created(w, msg.ID)
}

// DeleteChatHandler removes a chat message. Only the admin purge uses it.
func (c Chat) DeleteChatHandler(w http.ResponseWriter, r *http.Request) {
	deleteByID(w, r, models.ChatCollection, c.DB.DeleteOne)
}
