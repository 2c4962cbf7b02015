package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/dispatch-board/api"
	"github.com/linesmerrill/dispatch-board/config"
	"github.com/linesmerrill/dispatch-board/databases"
	"github.com/linesmerrill/dispatch-board/models"
)

const feedWriteTimeout = 10 * time.Second

// fields a live query may filter and order on
var feedFields = map[string]bool{"": true, "timestamp": true, "createdAt": true}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // boards run from the CLI, not from a browser origin
	},
}

// Feed serves live queries over websockets
type Feed struct {
	Sources map[string]databases.LiveDatabase
	Hub     *api.Hub
}

// FeedHandler streams a live query: every matching record as an added event
// in ascending field order, one synced event, then deltas until either side
// hangs up. The change stream is opened before the snapshot is read, so a
// record written in between can be delivered twice as added.
func (f Feed) FeedHandler(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]
	src, ok := f.Sources[collection]
	if !ok {
		config.ErrorStatus("unknown feed", http.StatusNotFound, w, errors.New(collection))
		return
	}

	field := r.URL.Query().Get("field")
	if !feedFields[field] {
		config.ErrorStatus("invalid feed field", http.StatusBadRequest, w, errors.New(field))
		return
	}
	var since time.Time
	if s := r.URL.Query().Get("since"); s != "" && field != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			config.ErrorStatus("invalid since timestamp", http.StatusBadRequest, w, err)
			return
		}
		since = t
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	stream, err := src.Watch(ctx, databases.WatchPipeline(), options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		config.ErrorStatus("failed to open change stream", http.StatusInternalServerError, w, err)
		return
	}
	pumpDone := make(chan struct{})
	pumping := false
	defer func() {
		// the stream is not safe for concurrent use, so Next must return first
		cancel()
		if pumping {
			<-pumpDone
		}
		stream.Close(context.Background())
	}()

	qctx, qcancel := api.WithQueryTimeout(ctx)
	start := timeNow()
	docs, err := src.Find(qctx, databases.LiveFilter(field, since), databases.LiveSort(field))
	qcancel()
	api.ObserveQuery(collection, "find", start, err)
	if err != nil {
		config.ErrorStatus("failed to read snapshot", http.StatusInternalServerError, w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade failed", "collection", collection, "error", err)
		return
	}
	defer conn.Close()

	sub := f.Hub.Join(collection)
	defer f.Hub.Leave(sub)
	defer api.FeedOpened(collection)()
	zap.S().Infow("feed opened", "collection", collection, "field", field, "since", since, "snapshot", len(docs))

	// the client never sends anything; reading only notices it hanging up
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	deltas := make(chan models.ChangeEvent)
	pumping = true
	go func() {
		defer close(pumpDone)
		defer cancel()
		for stream.Next(ctx) {
			var change databases.ChangeDocument
			if err := stream.Decode(&change); err != nil {
				zap.S().Errorw("failed to decode change", "collection", collection, "error", err)
				continue
			}
			ev, ok, err := change.Event(field, since)
			if err != nil {
				zap.S().Errorw("failed to convert change", "collection", collection, "error", err)
				continue
			}
			if !ok {
				continue
			}
			select {
			case deltas <- ev:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			zap.S().Errorw("change stream failed", "collection", collection, "error", err)
		}
	}()

	send := func(ev models.ChangeEvent) bool {
		conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			zap.S().Warnw("failed to write feed event", "collection", collection, "error", err)
			return false
		}
		api.FeedEventSent(collection, string(ev.Type))
		return true
	}

	for _, doc := range docs {
		fields, err := databases.DocumentJSON(doc)
		if err != nil {
			zap.S().Errorw("failed to encode snapshot record", "collection", collection, "error", err)
			continue
		}
		if !send(models.ChangeEvent{Type: models.ChangeAdded, ID: databases.DocumentID(doc), Fields: fields}) {
			return
		}
	}
	if !send(models.ChangeEvent{Type: models.ChangeSynced}) {
		return
	}

	for {
		select {
		case ev := <-deltas:
			if !send(ev) {
				return
			}
		case ev := <-sub.C:
			if !send(ev) {
				return
			}
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "feed closed"),
				time.Now().Add(time.Second))
			zap.S().Infow("feed closed", "collection", collection)
			return
		}
	}
}
