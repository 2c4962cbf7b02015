package databases

// go generate: mockery --name ConfigEntryDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/dispatch-board/models"
)

const configEntryName = models.ConfigCollection

// ConfigEntryDatabase contains the methods to use with the robbery type catalog
type ConfigEntryDatabase interface {
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.ConfigEntry, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	DeleteOne(context.Context, interface{}, ...*options.DeleteOptions) error
}

type configEntryDatabase struct {
	db DatabaseHelper
}

// NewConfigEntryDatabase initializes a new instance of config database with the provided db connection
func NewConfigEntryDatabase(db DatabaseHelper) ConfigEntryDatabase {
	return &configEntryDatabase{
		db: db,
	}
}

func (c *configEntryDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ConfigEntry, error) {
	var entries []models.ConfigEntry
	cr, err := c.db.Collection(configEntryName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&entries)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *configEntryDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return c.db.Collection(configEntryName).InsertOne(ctx, document, opts...)
}

func (c *configEntryDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error {
	return deleteOne(ctx, c.db.Collection(configEntryName), filter, opts...)
}
