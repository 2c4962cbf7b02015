package databases

// go generate: mockery --name IncidentDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/dispatch-board/models"
)

const incidentName = models.IncidentCollection

// IncidentDatabase contains the methods to use with the incident database
type IncidentDatabase interface {
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Incident, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) error
	DeleteOne(context.Context, interface{}, ...*options.DeleteOptions) error
}

type incidentDatabase struct {
	db DatabaseHelper
}

// NewIncidentDatabase initializes a new instance of incident database with the provided db connection
func NewIncidentDatabase(db DatabaseHelper) IncidentDatabase {
	return &incidentDatabase{
		db: db,
	}
}

func (i *incidentDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Incident, error) {
	var incidents []models.Incident
	cr, err := i.db.Collection(incidentName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&incidents)
	if err != nil {
		return nil, err
	}
	return incidents, nil
}

func (i *incidentDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return i.db.Collection(incidentName).InsertOne(ctx, document, opts...)
}

// UpdateOne returns mongo.ErrNoDocuments when nothing matched filter
func (i *incidentDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error {
	res, err := i.db.Collection(incidentName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return err
	}
	if res.MatchedCount() == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (i *incidentDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error {
	return deleteOne(ctx, i.db.Collection(incidentName), filter, opts...)
}

// deleteOne returns mongo.ErrNoDocuments when nothing was deleted
func deleteOne(ctx context.Context, coll CollectionHelper, filter interface{}, opts ...*options.DeleteOptions) error {
	n, err := coll.DeleteOne(ctx, filter, opts...)
	if err != nil {
		return err
	}
	if n == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
