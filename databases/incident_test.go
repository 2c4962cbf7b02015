package databases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/dispatch-board/config"
	"github.com/linesmerrill/dispatch-board/databases"
	"github.com/linesmerrill/dispatch-board/databases/mocks"
	"github.com/linesmerrill/dispatch-board/models"
)

func TestNewIncidentDatabase(t *testing.T) {
	t.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	t.Setenv("DB_NAME", "test")
	conf := config.New()

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	assert.NotEmpty(t, databases.NewIncidentDatabase(db))
	assert.NotEmpty(t, databases.NewChatDatabase(db))
	assert.NotEmpty(t, databases.NewConfigEntryDatabase(db))
	assert.Equal(t, models.ChatCollection, databases.NewLiveDatabase(db, models.ChatCollection).Collection())
}

func TestIncidentDatabase_Find(t *testing.T) {
	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var cursorHelper databases.CursorHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	cursorHelper = &mocks.CursorHelper{}

	cursorHelper.(*mocks.CursorHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.Incident)
		*arg = append(*arg, models.Incident{IncidentFields: models.IncidentFields{Band: "Ballas"}})
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("Find", context.Background(), bson.M{"error": true}).
		Return(nil, errors.New("mocked-error"))
	collectionHelper.(*mocks.CollectionHelper).
		On("Find", context.Background(), bson.M{}).
		Return(cursorHelper, nil)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "incidents").Return(collectionHelper)

	incidentDB := databases.NewIncidentDatabase(dbHelper)

	incidents, err := incidentDB.Find(context.Background(), bson.M{"error": true})
	assert.Empty(t, incidents)
	assert.EqualError(t, err, "mocked-error")

	incidents, err = incidentDB.Find(context.Background(), bson.M{})
	assert.NoError(t, err)
	assert.Len(t, incidents, 1)
	assert.Equal(t, "Ballas", incidents[0].Band)
}

func TestIncidentDatabase_UpdateOne(t *testing.T) {
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var matched, unmatched databases.UpdateResultHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	matched = &mocks.UpdateResultHelper{}
	unmatched = &mocks.UpdateResultHelper{}

	matched.(*mocks.UpdateResultHelper).On("MatchedCount").Return(int64(1))
	unmatched.(*mocks.UpdateResultHelper).On("MatchedCount").Return(int64(0))

	collectionHelper.(*mocks.CollectionHelper).
		On("UpdateOne", context.Background(), bson.M{"_id": "found"}, mock.Anything).
		Return(matched, nil)
	collectionHelper.(*mocks.CollectionHelper).
		On("UpdateOne", context.Background(), bson.M{"_id": "missing"}, mock.Anything).
		Return(unmatched, nil)
	collectionHelper.(*mocks.CollectionHelper).
		On("UpdateOne", context.Background(), bson.M{"_id": "broken"}, mock.Anything).
		Return(nil, errors.New("mocked-error"))

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "incidents").Return(collectionHelper)

	incidentDB := databases.NewIncidentDatabase(dbHelper)
	update := bson.M{"$set": bson.M{"status": "completed"}}

	assert.NoError(t, incidentDB.UpdateOne(context.Background(), bson.M{"_id": "found"}, update))
	assert.ErrorIs(t, incidentDB.UpdateOne(context.Background(), bson.M{"_id": "missing"}, update), mongo.ErrNoDocuments)
	assert.EqualError(t, incidentDB.UpdateOne(context.Background(), bson.M{"_id": "broken"}, update), "mocked-error")
}

func TestChatDatabase_DeleteOne(t *testing.T) {
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}

	collectionHelper.(*mocks.CollectionHelper).
		On("DeleteOne", context.Background(), bson.M{"_id": "found"}).
		Return(int64(1), nil)
	collectionHelper.(*mocks.CollectionHelper).
		On("DeleteOne", context.Background(), bson.M{"_id": "missing"}).
		Return(int64(0), nil)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "chat").Return(collectionHelper)

	chatDB := databases.NewChatDatabase(dbHelper)

	assert.NoError(t, chatDB.DeleteOne(context.Background(), bson.M{"_id": "found"}))
	assert.ErrorIs(t, chatDB.DeleteOne(context.Background(), bson.M{"_id": "missing"}), mongo.ErrNoDocuments)
}

func TestConfigEntryDatabase_InsertOne(t *testing.T) {
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var insertResult databases.InsertOneResultHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	insertResult = &mocks.InsertOneResultHelper{}

	insertResult.(*mocks.InsertOneResultHelper).On("Decode").Return("new-id")
	collectionHelper.(*mocks.CollectionHelper).
		On("InsertOne", context.Background(), mock.Anything).
		Return(insertResult, nil)
	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "config").Return(collectionHelper)

	configDB := databases.NewConfigEntryDatabase(dbHelper)
	res, err := configDB.InsertOne(context.Background(), models.ConfigEntryDraft{Name: "Yacht", Color: "#000000"})
	assert.NoError(t, err)
	assert.Equal(t, "new-id", res.Decode())
}
