package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/dispatch-board/api"
	"github.com/linesmerrill/dispatch-board/api/handlers"
	"github.com/linesmerrill/dispatch-board/databases"
	"github.com/linesmerrill/dispatch-board/databases/mocks"
	"github.com/linesmerrill/dispatch-board/models"
)

// changeStream returns a mocked change stream fed from changes, and a flag
// set once the handler closes it
func changeStream(changes <-chan databases.ChangeDocument) (*mocks.ChangeStreamHelper, *atomic.Bool) {
	var current databases.ChangeDocument
	closed := &atomic.Bool{}
	stream := &mocks.ChangeStreamHelper{}
	stream.On("Next", mock.Anything).Return(func(ctx context.Context) bool {
		select {
		case current = <-changes:
			return true
		case <-ctx.Done():
			return false
		}
	})
	stream.On("Decode", mock.Anything).Return(func(v interface{}) error {
		*v.(*databases.ChangeDocument) = current
		return nil
	})
	stream.On("Err").Return(nil)
	stream.On("Close", mock.Anything).Return(func(ctx context.Context) error {
		closed.Store(true)
		return nil
	})
	return stream, closed
}

func feedServer(f handlers.Feed) *httptest.Server {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/feeds/{collection}", f.FeedHandler)
	return httptest.NewServer(r)
}

func readEvent(t *testing.T, conn *websocket.Conn) models.ChangeEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev models.ChangeEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestFeed_FeedHandler(t *testing.T) {
	since := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	snapshotID := primitive.NewObjectID()
	snapshot := bson.M{
		"_id":       snapshotID,
		"zone":      "north",
		"timestamp": primitive.NewDateTimeFromTime(since.Add(time.Hour)),
	}

	changes := make(chan databases.ChangeDocument)
	stream, closed := changeStream(changes)
	src := &mocks.LiveDatabase{}
	src.On("Watch", mock.Anything, mock.Anything, mock.Anything).Return(stream, nil)
	src.On("Find", mock.Anything, databases.LiveFilter("timestamp", since), mock.Anything).Return([]bson.M{snapshot}, nil)

	hub := api.NewHub()
	server := feedServer(handlers.Feed{
		Sources: map[string]databases.LiveDatabase{models.IncidentCollection: src},
		Hub:     hub,
	})
	defer server.Close()

	params := url.Values{"field": {"timestamp"}, "since": {since.Format(time.RFC3339Nano)}}
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/feeds/incidents?" + params.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	ev := readEvent(t, conn)
	assert.Equal(t, models.ChangeAdded, ev.Type)
	assert.Equal(t, snapshotID.Hex(), ev.ID)
	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(ev.Fields, &fields))
	assert.Equal(t, "north", fields["zone"])
	assert.Equal(t, "2026-03-01T09:00:00Z", fields["timestamp"])

	assert.Equal(t, models.ChangeSynced, readEvent(t, conn).Type)

	insertedID := primitive.NewObjectID()
	inserted := databases.ChangeDocument{
		OperationType: databases.OperationInsert,
		FullDocument:  bson.M{"_id": insertedID, "zone": "south", "timestamp": primitive.NewDateTimeFromTime(since.Add(2 * time.Hour))},
	}
	inserted.DocumentKey.ID = insertedID
	changes <- inserted
	ev = readEvent(t, conn)
	assert.Equal(t, models.ChangeAdded, ev.Type)
	assert.Equal(t, insertedID.Hex(), ev.ID)

	// an update that moves the record before the window removes it
	moved := databases.ChangeDocument{
		OperationType: databases.OperationUpdate,
		FullDocument:  bson.M{"_id": snapshotID, "zone": "north", "timestamp": primitive.NewDateTimeFromTime(since.Add(-time.Hour))},
	}
	moved.DocumentKey.ID = snapshotID
	changes <- moved
	ev = readEvent(t, conn)
	assert.Equal(t, models.ChangeRemoved, ev.Type)
	assert.Equal(t, snapshotID.Hex(), ev.ID)

	boundary := since.Add(12 * time.Hour)
	assert.Equal(t, 1, hub.Broadcast(models.ChangeEvent{Type: models.ChangeBoundary, Boundary: &boundary}))
	ev = readEvent(t, conn)
	assert.Equal(t, models.ChangeBoundary, ev.Type)
	require.NotNil(t, ev.Boundary)
	assert.True(t, boundary.Equal(*ev.Boundary))

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Len() == 0 && closed.Load() }, 5*time.Second, 10*time.Millisecond)
}

func TestFeed_FeedHandlerRejectsBadQueries(t *testing.T) {
	f := handlers.Feed{
		Sources: map[string]databases.LiveDatabase{models.ChatCollection: &mocks.LiveDatabase{}},
		Hub:     api.NewHub(),
	}
	tests := []struct {
		name       string
		collection string
		query      string
		status     int
	}{
		{"unknown collection", "users", "", http.StatusNotFound},
		{"unknown field", models.ChatCollection, "field=text", http.StatusBadRequest},
		{"bad since", models.ChatCollection, "field=createdAt&since=yesterday", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", "/api/v1/feeds/"+tt.collection+"?"+tt.query, nil)
			req = mux.SetURLVars(req, map[string]string{"collection": tt.collection})
			rr := httptest.NewRecorder()
			http.HandlerFunc(f.FeedHandler).ServeHTTP(rr, req)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestFeed_FeedHandlerFailedToWatch(t *testing.T) {
	src := &mocks.LiveDatabase{}
	src.On("Watch", mock.Anything, mock.Anything, mock.Anything).Return(nil, assert.AnError)
	f := handlers.Feed{
		Sources: map[string]databases.LiveDatabase{models.ConfigCollection: src},
		Hub:     api.NewHub(),
	}

	req, _ := http.NewRequest("GET", "/api/v1/feeds/config", nil)
	req = mux.SetURLVars(req, map[string]string{"collection": models.ConfigCollection})
	rr := httptest.NewRecorder()
	http.HandlerFunc(f.FeedHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, errorBody("failed to open change stream", assert.AnError.Error()), rr.Body.String())
	src.AssertNotCalled(t, "Find", mock.Anything, mock.Anything, mock.Anything)
}
