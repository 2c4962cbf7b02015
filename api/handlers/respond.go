package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/dispatch-board/api"
	"github.com/linesmerrill/dispatch-board/config"
)

var validate = validator.New()

// writeJSON marshals v and writes it with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// created answers a successful insert with the new id
func created(w http.ResponseWriter, id primitive.ObjectID) {
	writeJSON(w, http.StatusCreated, map[string]string{"id": id.Hex()})
}

// decodeStrict decodes the JSON body into v, rejecting unknown fields
func decodeStrict(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}
	return nil
}

// decodeBody decodes the JSON body into v and validates it
func decodeBody(r *http.Request, v interface{}) error {
	if err := decodeStrict(r, v); err != nil {
		return err
	}
	return validate.Struct(v)
}

// pathID reads the {id} route variable as an ObjectID
func pathID(r *http.Request) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(mux.Vars(r)["id"])
}

// sortBy orders a listing ascending by field, then by insertion
func sortBy(field string) *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: field, Value: 1}, {Key: "_id", Value: 1}})
}

// deleteByID handles DELETE /{collection}/{id} for any collection
func deleteByID(w http.ResponseWriter, r *http.Request, collection string, del func(context.Context, interface{}, ...*options.DeleteOptions) error) {
	id, err := pathID(r)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	start := timeNow()
	err = del(ctx, bson.M{"_id": id})
	api.ObserveQuery(collection, "delete", start, err)
	if errors.Is(err, mongo.ErrNoDocuments) {
		config.ErrorStatus("record not found", http.StatusNotFound, w, err)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to delete record", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
