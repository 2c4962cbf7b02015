package incidents

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/dispatch-board/docstore"
	"github.com/linesmerrill/dispatch-board/identity"
	"github.com/linesmerrill/dispatch-board/models"
	"github.com/linesmerrill/dispatch-board/notice"
)

type fixture struct {
	store    *docstore.Memory
	ids      *identity.Store
	recorder *notice.Recorder
	life     *Lifecycle
}

func newFixture(t *testing.T, identified bool, answers ...bool) *fixture {
	t.Helper()
	f := &fixture{
		store:    docstore.NewMemory(nil),
		ids:      identity.NewStore(identity.NewMemoryStorage()),
		recorder: notice.NewRecorder(answers...),
	}
	if identified {
		_, err := f.ids.Save("Ramirez", models.ZoneNorth)
		require.NoError(t, err)
	}
	f.life = NewLifecycle(f.store, f.ids, f.recorder, f.recorder, nil)
	f.life.clock = func() time.Time { return time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) incident(t *testing.T, id string) models.Incident {
	t.Helper()
	raw, ok := f.store.Get(models.IncidentCollection, id)
	require.True(t, ok)
	var inc models.Incident
	require.NoError(t, json.Unmarshal(raw, &inc))
	return inc
}

func (f *fixture) onlyID(t *testing.T) string {
	t.Helper()
	docs, err := f.store.ListAll(context.Background(), models.IncidentCollection)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	return docs[0].ID
}

func TestNextStatus(t *testing.T) {
	assert.Equal(t, models.StatusInProgress, NextStatus(models.StatusPending))
	assert.Equal(t, models.StatusCompleted, NextStatus(models.StatusInProgress))
	assert.Equal(t, models.StatusPending, NextStatus(models.StatusCompleted))

	for _, s := range models.ValidStatuses() {
		assert.Equal(t, s, NextStatus(NextStatus(NextStatus(s))))
	}
	assert.Equal(t, models.StatusPending, NextStatus("progress"))
}

func TestLifecycle_CreateRequiresZoneAndType(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.life.OpenForm()
	f.life.SetForm(Form{RobberyType: "Fleeca Bank", Band: "Ballas"})
	assert.ErrorIs(t, f.life.Submit(ctx), ErrZoneRequired)
	assert.True(t, f.life.Form().Open)
	assert.Equal(t, "Ballas", f.life.Form().Band)

	f.life.SetForm(Form{Zone: models.ZoneSouth})
	assert.ErrorIs(t, f.life.Submit(ctx), ErrTypeRequired)
	assert.True(t, f.life.Form().Open)

	f.life.SetForm(Form{Zone: models.ZoneSouth, RobberyType: "Fleeca Bank", Color: "red"})
	assert.ErrorIs(t, f.life.Submit(ctx), ErrInvalidColor)

	assert.Equal(t, 0, f.store.Writes())
	require.Len(t, f.recorder.Messages(), 3)
	assert.Equal(t, "Select a jurisdiction", f.recorder.Messages()[0].Text)
}

func TestLifecycle_CreateRequiresIdentity(t *testing.T) {
	f := newFixture(t, false)
	f.life.OpenForm()
	f.life.SetForm(Form{Zone: models.ZoneNorth, RobberyType: "Fleeca Bank"})

	assert.ErrorIs(t, f.life.Submit(context.Background()), identity.ErrNoIdentity)
	assert.Equal(t, 0, f.store.Writes())
	assert.True(t, f.life.Form().Open)
}

func TestLifecycle_CreateStampsPendingAndResetsForm(t *testing.T) {
	f := newFixture(t, true)
	f.life.OpenForm()
	f.life.SetForm(Form{Zone: models.ZoneNorth, RobberyType: " Fleeca Bank ", Band: "Vagos", Color: "#00FF00", PlayerID: "42"})
	assert.Equal(t, "Publish", f.life.SubmitLabel())

	require.NoError(t, f.life.Submit(context.Background()))

	inc := f.incident(t, f.onlyID(t))
	assert.Equal(t, models.ZoneNorth, inc.Zone)
	assert.Equal(t, "Fleeca Bank", inc.RobberyType)
	assert.Equal(t, "#00ff00", inc.Color)
	assert.Equal(t, "42", inc.PlayerID)
	assert.Equal(t, models.StatusPending, inc.Status)
	assert.NotNil(t, inc.CreatedAt)
	assert.True(t, time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC).Equal(inc.Timestamp))

	form := f.life.Form()
	assert.False(t, form.Open)
	assert.Equal(t, DefaultColor, form.Color)
	assert.Empty(t, form.RobberyType)
}

func TestLifecycle_EditOverwritesOnlyEditableFields(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.life.OpenForm()
	f.life.SetForm(Form{Zone: models.ZoneNorth, RobberyType: "Fleeca Bank", Band: "Vagos"})
	require.NoError(t, f.life.Submit(ctx))
	id := f.onlyID(t)
	f.life.CycleStatus(ctx, id, models.StatusPending)
	before := f.incident(t, id)

	f.life.StartEdit(id, before)
	form := f.life.Form()
	assert.True(t, form.Open)
	assert.Equal(t, models.ZoneNorth, form.Zone)
	assert.Equal(t, "Fleeca Bank", form.RobberyType)
	assert.Equal(t, "Vagos", form.Band)
	assert.Equal(t, DefaultColor, form.Color)
	assert.Equal(t, "Update", f.life.SubmitLabel())

	form.Zone = models.ZoneSouth
	form.Band = "Ballas"
	f.life.SetForm(form)
	require.NoError(t, f.life.Submit(ctx))

	after := f.incident(t, id)
	assert.Equal(t, models.ZoneSouth, after.Zone)
	assert.Equal(t, "Ballas", after.Band)
	assert.Equal(t, models.StatusInProgress, after.Status)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.True(t, before.Timestamp.Equal(after.Timestamp))

	_, editing := f.life.Editing()
	assert.False(t, editing)
	assert.False(t, f.life.Form().Open)

	docs, err := f.store.ListAll(ctx, models.IncidentCollection)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestLifecycle_EditKeepsStoredColor(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	id, err := f.store.Create(ctx, models.IncidentCollection, map[string]interface{}{
		"zone": "north", "robberyType": "Fleeca Bank", "color": "red", "status": "pending",
	})
	require.NoError(t, err)
	writes := f.store.Writes()

	f.life.StartEdit(id, f.incident(t, id))
	form := f.life.Form()
	assert.Equal(t, "red", form.Color)

	form.Band = "Families"
	f.life.SetForm(form)
	assert.ErrorIs(t, f.life.Submit(ctx), ErrInvalidColor)
	assert.Equal(t, writes, f.store.Writes())
	assert.True(t, f.life.Form().Open)

	form.Color = "#123abc"
	f.life.SetForm(form)
	require.NoError(t, f.life.Submit(ctx))
	after := f.incident(t, id)
	assert.Equal(t, "Families", after.Band)
	assert.Equal(t, "#123abc", after.Color)
}

func TestLifecycle_CloseWithoutSubmitLeavesRecord(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.life.OpenForm()
	f.life.SetForm(Form{Zone: models.ZoneNorth, RobberyType: "Fleeca Bank"})
	require.NoError(t, f.life.Submit(ctx))
	id := f.onlyID(t)
	writes := f.store.Writes()

	f.life.StartEdit(id, f.incident(t, id))
	f.life.SetForm(Form{Zone: models.ZoneSouth, RobberyType: "Paleto Bank"})
	f.life.CloseForm()

	assert.Equal(t, writes, f.store.Writes())
	assert.Equal(t, models.ZoneNorth, f.incident(t, id).Zone)
	_, editing := f.life.Editing()
	assert.False(t, editing)
	assert.Equal(t, "Publish", f.life.SubmitLabel())
}

func TestLifecycle_RemoteFailureKeepsForm(t *testing.T) {
	f := newFixture(t, true)
	f.store.Fault = func(op docstore.Op, collection, id string) error { return errors.New("unavailable") }
	f.life.OpenForm()
	f.life.SetForm(Form{Zone: models.ZoneNorth, RobberyType: "Fleeca Bank"})

	assert.Error(t, f.life.Submit(context.Background()))
	assert.True(t, f.life.Form().Open)
	msgs := f.recorder.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, notice.Error, msgs[0].Level)
}

func TestLifecycle_CycleStatusIsSilentOnFailure(t *testing.T) {
	f := newFixture(t, true)
	f.store.Fault = func(op docstore.Op, collection, id string) error { return errors.New("unavailable") }

	next := f.life.CycleStatus(context.Background(), "missing", models.StatusCompleted)
	assert.Equal(t, models.StatusPending, next)
	assert.Empty(t, f.recorder.Messages())
}

func TestLifecycle_ResolveNeedsConfirmation(t *testing.T) {
	f := newFixture(t, true, false, true)
	ctx := context.Background()
	f.life.OpenForm()
	f.life.SetForm(Form{Zone: models.ZoneNorth, RobberyType: "Fleeca Bank"})
	require.NoError(t, f.life.Submit(ctx))
	id := f.onlyID(t)

	attempted, err := f.life.Resolve(ctx, id)
	require.NoError(t, err)
	assert.False(t, attempted)
	_, ok := f.store.Get(models.IncidentCollection, id)
	assert.True(t, ok)

	attempted, err = f.life.Resolve(ctx, id)
	require.NoError(t, err)
	assert.True(t, attempted)
	_, ok = f.store.Get(models.IncidentCollection, id)
	assert.False(t, ok)
	assert.Equal(t, []string{"Close this notice?", "Close this notice?"}, f.recorder.Questions())
}
