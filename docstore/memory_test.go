package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/dispatch-board/models"
)

type stamped struct {
	Label     string    `json:"label"`
	Timestamp time.Time `json:"timestamp"`
}

func next(t *testing.T, ch <-chan models.ChangeEvent) models.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return models.ChangeEvent{}
	}
}

func label(t *testing.T, ev models.ChangeEvent) string {
	t.Helper()
	var s stamped
	require.NoError(t, json.Unmarshal(ev.Fields, &s))
	return s.Label
}

func TestMemory_SubscribeSnapshotThenDeltas(t *testing.T) {
	base := time.Date(2024, time.March, 15, 8, 0, 0, 0, time.UTC)
	m := NewMemory(func() time.Time { return base.Add(time.Hour) })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// inserted out of timestamp order; the snapshot must come back sorted
	_, err := m.Create(ctx, "incidents", stamped{Label: "late", Timestamp: base.Add(2 * time.Minute)})
	require.NoError(t, err)
	_, err = m.Create(ctx, "incidents", stamped{Label: "early", Timestamp: base.Add(time.Minute)})
	require.NoError(t, err)
	_, err = m.Create(ctx, "incidents", stamped{Label: "stale", Timestamp: base.Add(-time.Minute)})
	require.NoError(t, err)

	events, err := m.Subscribe(ctx, Query{Collection: "incidents", Field: "timestamp", Since: base})
	require.NoError(t, err)

	assert.Equal(t, "early", label(t, next(t, events)))
	assert.Equal(t, "late", label(t, next(t, events)))
	assert.Equal(t, models.ChangeSynced, next(t, events).Type)

	id, err := m.Create(ctx, "incidents", stamped{Label: "fresh", Timestamp: base.Add(3 * time.Minute)})
	require.NoError(t, err)
	ev := next(t, events)
	assert.Equal(t, models.ChangeAdded, ev.Type)
	assert.Equal(t, id, ev.ID)

	require.NoError(t, m.Update(ctx, "incidents", id, map[string]string{"label": "edited"}))
	ev = next(t, events)
	assert.Equal(t, models.ChangeModified, ev.Type)
	assert.Equal(t, "edited", label(t, ev))

	require.NoError(t, m.Delete(ctx, "incidents", id))
	ev = next(t, events)
	assert.Equal(t, models.ChangeRemoved, ev.Type)
	assert.Equal(t, id, ev.ID)

	assert.Equal(t, 5, m.Writes())
}

func TestMemory_CreateStampsServerFields(t *testing.T) {
	at := time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)
	m := NewMemory(func() time.Time { return at })

	id, err := m.Create(context.Background(), "chat", map[string]string{"text": "hi", "createdAt": "forged"})
	require.NoError(t, err)

	raw, ok := m.Get("chat", id)
	require.True(t, ok)
	var got struct {
		ID        string    `json:"_id"`
		CreatedAt time.Time `json:"createdAt"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, id, got.ID)
	assert.True(t, at.Equal(got.CreatedAt))

	require.NoError(t, m.Update(context.Background(), "chat", id, map[string]string{"createdAt": "forged"}))
	raw, _ = m.Get("chat", id)
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.True(t, at.Equal(got.CreatedAt))
}

func TestMemory_FaultsAndMissingRecords(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()
	boom := errors.New("boom")
	m.Fault = func(op Op, collection, id string) error {
		if op == OpCreate {
			return boom
		}
		return nil
	}

	_, err := m.Create(ctx, "incidents", stamped{Label: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.Writes())

	assert.ErrorIs(t, m.Update(ctx, "incidents", "nope", map[string]string{}), ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "incidents", "nope"), ErrNotFound)
}

func TestMemory_ListAllIgnoresWindow(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()
	old := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	a, err := m.Create(ctx, "incidents", stamped{Label: "a", Timestamp: old})
	require.NoError(t, err)
	b, err := m.Create(ctx, "incidents", stamped{Label: "b", Timestamp: time.Now()})
	require.NoError(t, err)

	docs, err := m.ListAll(ctx, "incidents")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, a, docs[0].ID)
	assert.Equal(t, b, docs[1].ID)
}

func TestMemory_SubscriptionClosesWithContext(t *testing.T) {
	m := NewMemory(nil)
	ctx, cancel := context.WithCancel(context.Background())
	events, err := m.Subscribe(ctx, Query{Collection: "config"})
	require.NoError(t, err)
	assert.Equal(t, models.ChangeSynced, next(t, events).Type)

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription did not close")
	}
}
