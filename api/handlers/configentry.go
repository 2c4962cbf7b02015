package handlers

import (
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/dispatch-board/api"
	"github.com/linesmerrill/dispatch-board/config"
	"github.com/linesmerrill/dispatch-board/databases"
	"github.com/linesmerrill/dispatch-board/models"
)

// ConfigEntry exported for testing purposes
type ConfigEntry struct {
	DB databases.ConfigEntryDatabase
}

// ConfigEntriesHandler returns the robbery type catalog ordered by name
func (ce ConfigEntry) ConfigEntriesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	start := timeNow()
	dbResp, err := ce.DB.Find(ctx, bson.M{}, sortBy("name"))
	api.ObserveQuery(models.ConfigCollection, "find", start, err)
	if err != nil {
		config.ErrorStatus("failed to get robbery types", http.StatusInternalServerError, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.ConfigEntry{}
	}
	writeJSON(w, http.StatusOK, dbResp)
}

// CreateConfigEntryHandler adds a robbery type. Names are not deduplicated.
func (ce ConfigEntry) CreateConfigEntryHandler(w http.ResponseWriter, r *http.Request) {
	var draft models.ConfigEntryDraft
	if err := decodeBody(r, &draft); err != nil {
		config.ErrorStatus("invalid robbery type", http.StatusBadRequest, w, err)
		return
	}
	draft.Name = strings.TrimSpace(draft.Name)

	now := timeNow().UTC()
	entry := models.ConfigEntry{
		ID:               primitive.NewObjectID(),
		ConfigEntryDraft: draft,
		CreatedAt:        &now,
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	start := timeNow()
	_, err := ce.DB.InsertOne(ctx, entry)
	api.ObserveQuery(models.ConfigCollection, "insert", start, err)
	if err != nil {
		config.ErrorStatus("failed to create robbery type", http.StatusInternalServerError, w, err)
		return
	}
	created(w, entry.ID)
}

// DeleteConfigEntryHandler removes a robbery type
func (ce ConfigEntry) DeleteConfigEntryHandler(w http.ResponseWriter, r *http.Request) {
	deleteByID(w, r, models.ConfigCollection, ce.DB.DeleteOne)
}
