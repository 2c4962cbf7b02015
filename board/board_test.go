package board

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/dispatch-board/docstore"
	"github.com/linesmerrill/dispatch-board/identity"
	"github.com/linesmerrill/dispatch-board/models"
	"github.com/linesmerrill/dispatch-board/notice"
	"github.com/linesmerrill/dispatch-board/shift"
)

type brokenFeed struct {
	*docstore.Memory
	collection string
}

func (b brokenFeed) Subscribe(ctx context.Context, q docstore.Query) (<-chan models.ChangeEvent, error) {
	if q.Collection == b.collection {
		return nil, errors.New("permission denied")
	}
	return b.Memory.Subscribe(ctx, q)
}

func incident(zone models.Zone, band string, ts time.Time) models.IncidentDraft {
	return models.IncidentDraft{
		IncidentFields: models.IncidentFields{Zone: zone, Band: band, Color: "#00ff00", RobberyType: "Fleeca Bank"},
		Status:         models.StatusPending,
		Timestamp:      ts,
	}
}

func TestApp_StartScopesFeedsToShift(t *testing.T) {
	store := docstore.NewMemory(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	now := time.Now()
	boundary := shift.LastBoundary(now)
	_, err := store.Create(ctx, models.IncidentCollection, incident(models.ZoneNorth, "stale", boundary.Add(-time.Minute)))
	require.NoError(t, err)
	fresh, err := store.Create(ctx, models.IncidentCollection, incident(models.ZoneNorth, "fresh", boundary.Add(time.Second)))
	require.NoError(t, err)

	recorder := notice.NewRecorder()
	app := New(Options{
		Store:     store,
		Identity:  identity.NewStore(identity.NewMemoryStorage()),
		Notifier:  recorder,
		Confirmer: recorder,
		Clock:     func() time.Time { return now },
	})
	require.NoError(t, app.Start(ctx))
	require.NoError(t, app.Ready(ctx))
	assert.Equal(t, boundary, app.Boundary())

	north, ok := app.Feeds.View(string(models.ZoneNorth))
	require.True(t, ok)
	assert.Equal(t, []string{fresh}, north.IDs())
	south, _ := app.Feeds.View(string(models.ZoneSouth))
	assert.Equal(t, "No activity in the South", south.Placeholder)

	require.Eventually(t, func() bool { return len(app.Catalog.Options()) > 0 }, time.Second, 10*time.Millisecond)
}

func TestApp_FailedSubscriptionIsIsolated(t *testing.T) {
	store := brokenFeed{Memory: docstore.NewMemory(nil), collection: models.ChatCollection}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	recorder := notice.NewRecorder()
	app := New(Options{
		Store:     store,
		Identity:  identity.NewStore(identity.NewMemoryStorage()),
		Notifier:  recorder,
		Confirmer: recorder,
	})
	require.NoError(t, app.Start(ctx))
	require.NoError(t, app.Ready(ctx))

	id, err := store.Create(ctx, models.IncidentCollection, incident(models.ZoneSouth, "late", time.Now()))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := app.Feeds.Lookup(id)
		return ok
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, app.Chat.Lines())
}

func TestApp_BoundaryNotice(t *testing.T) {
	recorder := notice.NewRecorder()
	app := New(Options{
		Store:     docstore.NewMemory(nil),
		Identity:  identity.NewStore(identity.NewMemoryStorage()),
		Notifier:  recorder,
		Confirmer: recorder,
	})
	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.Local)
	app.Feeds.Apply(models.ChangeEvent{Type: models.ChangeBoundary, Boundary: &at})

	msgs := recorder.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, notice.Info, msgs[0].Level)
	assert.Contains(t, msgs[0].Text, "20:00")
}

func TestApp_StartWithCanceledContext(t *testing.T) {
	recorder := notice.NewRecorder()
	app := New(Options{
		Store:     docstore.NewMemory(nil),
		Identity:  identity.NewStore(identity.NewMemoryStorage()),
		Notifier:  recorder,
		Confirmer: recorder,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, app.Start(ctx), context.Canceled)
}
