package databases

// go generate: mockery --name LiveDatabase

import (
	"context"
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/dispatch-board/models"
)

// Change stream operation types
const (
	OperationInsert  = "insert"
	OperationUpdate  = "update"
	OperationReplace = "replace"
	OperationDelete  = "delete"
)

// LiveDatabase reads one collection as raw documents for live queries
type LiveDatabase interface {
	Collection() string
	Find(context.Context, interface{}, ...*options.FindOptions) ([]bson.M, error)
	Watch(context.Context, interface{}, ...*options.ChangeStreamOptions) (ChangeStreamHelper, error)
}

type liveDatabase struct {
	db   DatabaseHelper
	name string
}

// NewLiveDatabase initializes a live query source over the named collection
func NewLiveDatabase(db DatabaseHelper, collection string) LiveDatabase {
	return &liveDatabase{
		db:   db,
		name: collection,
	}
}

func (l *liveDatabase) Collection() string {
	return l.name
}

func (l *liveDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]bson.M, error) {
	var docs []bson.M
	cr, err := l.db.Collection(l.name).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&docs)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (l *liveDatabase) Watch(ctx context.Context, pipeline interface{}, opts ...*options.ChangeStreamOptions) (ChangeStreamHelper, error) {
	return l.db.Collection(l.name).Watch(ctx, pipeline, opts...)
}

// LiveFilter selects documents whose field is at or after since. An empty
// field selects everything.
func LiveFilter(field string, since time.Time) bson.M {
	if field == "" {
		return bson.M{}
	}
	return bson.M{field: bson.M{"$gte": primitive.NewDateTimeFromTime(since)}}
}

// LiveSort orders a live query ascending by field, then by insertion
func LiveSort(field string) *options.FindOptions {
	sort := bson.D{}
	if field != "" {
		sort = append(sort, bson.E{Key: field, Value: 1})
	}
	sort = append(sort, bson.E{Key: "_id", Value: 1})
	return options.Find().SetSort(sort)
}

// WatchPipeline limits a change stream to document level operations
func WatchPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"operationType": bson.M{"$in": bson.A{
			OperationInsert, OperationUpdate, OperationReplace, OperationDelete,
		}}}}},
	}
}

// ChangeDocument is the subset of a change stream event the feeds use
type ChangeDocument struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID primitive.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument bson.M `bson:"fullDocument,omitempty"`
}

// Event converts a change into a feed event for a query on field since the
// given time. ok is false when the change is irrelevant to the query. An
// update that moves a document out of the window is reported as removed.
func (c ChangeDocument) Event(field string, since time.Time) (ev models.ChangeEvent, ok bool, err error) {
	id := c.DocumentKey.ID.Hex()
	switch c.OperationType {
	case OperationDelete:
		return models.ChangeEvent{Type: models.ChangeRemoved, ID: id}, true, nil
	case OperationInsert, OperationUpdate, OperationReplace:
	default:
		return ev, false, nil
	}
	if c.FullDocument == nil {
		// updated then deleted before the lookup ran
		return ev, false, nil
	}
	if !InWindow(c.FullDocument, field, since) {
		if c.OperationType == OperationInsert {
			return ev, false, nil
		}
		return models.ChangeEvent{Type: models.ChangeRemoved, ID: id}, true, nil
	}

	fields, err := DocumentJSON(c.FullDocument)
	if err != nil {
		return ev, false, err
	}
	typ := models.ChangeModified
	if c.OperationType == OperationInsert {
		typ = models.ChangeAdded
	}
	return models.ChangeEvent{Type: typ, ID: id, Fields: fields}, true, nil
}

// InWindow reports whether doc[field] is at or after since
func InWindow(doc bson.M, field string, since time.Time) bool {
	if field == "" {
		return true
	}
	switch v := doc[field].(type) {
	case primitive.DateTime:
		return !v.Time().Before(since)
	case time.Time:
		return !v.Before(since)
	default:
		return false
	}
}

// DocumentJSON renders a raw mongo document the way the REST handlers render
// typed models: ids as hex strings and dates as RFC 3339.
func DocumentJSON(doc bson.M) (json.RawMessage, error) {
	return json.Marshal(jsonValue(doc))
}

// DocumentID returns the hex id of a raw document
func DocumentID(doc bson.M) string {
	if oid, ok := doc["_id"].(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return ""
}

func jsonValue(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.M:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = jsonValue(val)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = jsonValue(val)
		}
		return out
	case primitive.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = jsonValue(e.Value)
		}
		return out
	case primitive.A:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = jsonValue(val)
		}
		return out
	default:
		return v
	}
}
