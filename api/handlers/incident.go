package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/dispatch-board/api"
	"github.com/linesmerrill/dispatch-board/config"
	"github.com/linesmerrill/dispatch-board/databases"
	"github.com/linesmerrill/dispatch-board/models"
)

// patchRules lists the incident fields a PATCH may set, with their validation
var patchRules = map[string]string{
	"zone":        "oneof=north south",
	"playerId":    "max=64",
	"band":        "max=64",
	"color":       "len=7,hexcolor",
	"robberyType": "required",
	"status":      "oneof=pending in_progress completed",
}

// Incident exported for testing purposes
type Incident struct {
	DB databases.IncidentDatabase
}

// IncidentsHandler returns every incident ordered by client timestamp
func (i Incident) IncidentsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	start := timeNow()
	dbResp, err := i.DB.Find(ctx, bson.M{}, sortBy("timestamp"))
	api.ObserveQuery(models.IncidentCollection, "find", start, err)
	if err != nil {
		config.ErrorStatus("failed to get incidents", http.StatusInternalServerError, w, err)
		return
	}
	// Because clients expect an array, if len == 0 then we will just return an empty one
	if len(dbResp) == 0 {
		dbResp = []models.Incident{}
	}
	writeJSON(w, http.StatusOK, dbResp)
}

// CreateIncidentHandler stores a reported incident and stamps createdAt
func (i Incident) CreateIncidentHandler(w http.ResponseWriter, r *http.Request) {
	var draft models.IncidentDraft
	if err := decodeStrict(r, &draft); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	now := timeNow().UTC()
	if draft.Status == "" {
		draft.Status = models.StatusPending
	}
	if draft.Timestamp.IsZero() {
		draft.Timestamp = now
	}
	if err := validate.Struct(draft); err != nil {
		config.ErrorStatus("invalid incident", http.StatusBadRequest, w, err)
		return
	}

	incident := models.Incident{
		ID:             primitive.NewObjectID(),
		IncidentFields: draft.IncidentFields,
		Status:         draft.Status,
		CreatedAt:      &now,
		Timestamp:      draft.Timestamp,
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	start := timeNow()
	_, err := i.DB.InsertOne(ctx, incident)
	api.ObserveQuery(models.IncidentCollection, "insert", start, err)
	if err != nil {
		config.ErrorStatus("failed to create incident", http.StatusInternalServerError, w, err)
		return
	}
	created(w, incident.ID)
}

// UpdateIncidentHandler overwrites the given editable fields of an incident.
// There is no version check; the last write wins.
func (i Incident) UpdateIncidentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var patch map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	set, err := incidentPatch(patch)
	if err != nil {
		config.ErrorStatus("invalid incident update", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	start := timeNow()
	err = i.DB.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	api.ObserveQuery(models.IncidentCollection, "update", start, err)
	if errors.Is(err, mongo.ErrNoDocuments) {
		config.ErrorStatus("incident not found", http.StatusNotFound, w, err)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to update incident", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func incidentPatch(patch map[string]json.RawMessage) (bson.M, error) {
	if len(patch) == 0 {
		return nil, errors.New("no fields to update")
	}
	set := bson.M{}
	for field, raw := range patch {
		rule, ok := patchRules[field]
		if !ok {
			return nil, fmt.Errorf("field %q cannot be updated", field)
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("field %q must be a string", field)
		}
		if value != "" || rule == "required" {
			if err := validate.Var(value, rule); err != nil {
				return nil, fmt.Errorf("field %q: %w", field, err)
			}
		}
		set[field] = value
	}
	return set, nil
}

// DeleteIncidentHandler permanently removes an incident
func (i Incident) DeleteIncidentHandler(w http.ResponseWriter, r *http.Request) {
	deleteByID(w, r, models.IncidentCollection, i.DB.DeleteOne)
}
