package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/dispatch-board/admin"
	"github.com/linesmerrill/dispatch-board/docstore"
	"github.com/linesmerrill/dispatch-board/models"
)

type harness struct {
	t     *testing.T
	store *docstore.Memory
	state string
}

func newHarness(t *testing.T) *harness {
	t.Setenv(envAdminPassword, "s3cret")
	t.Setenv(envAdminHash, "")
	return &harness{
		t:     t,
		store: docstore.NewMemory(nil),
		state: filepath.Join(t.TempDir(), "state.yaml"),
	}
}

// run executes dispatchctl against the shared in-memory store, feeding input
// to any prompt
func (h *harness) run(input string, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd(&options{in: strings.NewReader(input), store: h.store})
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--state", h.state, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(input string, args ...string) string {
	h.t.Helper()
	out, err := h.run(input, args...)
	require.NoError(h.t, err, out)
	return out
}

func (h *harness) ids(collection string) []string {
	h.t.Helper()
	docs, err := h.store.ListAll(context.Background(), collection)
	require.NoError(h.t, err)
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}

func TestIdentifyAndTheme(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("", "identify", "Ramirez", "--faction", "south")
	assert.Contains(t, out, "Identified as Ramirez (south)")

	_, err := h.run("", "identify", "R")
	assert.Error(t, err)

	assert.Equal(t, "dark\n", h.mustRun("", "theme"))
	assert.Equal(t, "light\n", h.mustRun("", "theme", "light"))
	_, err = h.run("", "theme", "sepia")
	assert.Error(t, err)
}

func TestReportRequiresIdentity(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "report", "--zone", "north", "--type", "Fleeca Bank")
	assert.Error(t, err)
	assert.Contains(t, out, "Identify yourself first")
	assert.Empty(t, h.ids(models.IncidentCollection))
}

func TestIncidentLifecycle(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "identify", "Ramirez", "--faction", "north")

	out := h.mustRun("", "report", "--zone", "north", "--type", "Fleeca Bank", "--band", "Ballas", "--player", "77")
	assert.Contains(t, out, "Published Fleeca Bank in the north")

	ids := h.ids(models.IncidentCollection)
	require.Len(t, ids, 1)
	id := ids[0]

	out = h.mustRun("", "board")
	assert.Contains(t, out, "Fleeca Bank")
	assert.Contains(t, out, "Ballas")
	assert.Contains(t, out, "PENDING")
	assert.Contains(t, out, "No activity in the South")

	out = h.mustRun("", "cycle", id)
	assert.Contains(t, out, "pending -> in_progress")

	out = h.mustRun("", "edit", id, "--zone", "south", "--band", "Vagos")
	assert.Contains(t, out, "Updated "+id)
	out = h.mustRun("", "board")
	assert.Contains(t, out, "Vagos")
	assert.Contains(t, out, "IN PROGRESS")
	assert.Contains(t, out, "No activity in the North")

	out = h.mustRun("n\n", "resolve", id)
	assert.Contains(t, out, "Kept")
	assert.Len(t, h.ids(models.IncidentCollection), 1)

	out = h.mustRun("y\n", "resolve", id)
	assert.Contains(t, out, "Closed "+id)
	assert.Empty(t, h.ids(models.IncidentCollection))
}

func TestEditUnknownIncident(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "identify", "Ramirez")

	_, err := h.run("", "edit", "missing", "--band", "Vagos")
	assert.ErrorContains(t, err, "not on the board")
}

func TestChat(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "identify", "Ramirez")

	h.mustRun("", "chat", "10-4", "on", "the", "bank")
	out := h.mustRun("", "chat")
	assert.Contains(t, out, "Ramirez (north): 10-4 on the bank")
}

func TestAdmin(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "identify", "Ramirez")
	h.mustRun("", "report", "--zone", "north", "--type", "Paleto Bank")
	h.mustRun("", "chat", "hello")

	_, err := h.run("", "admin", "purge", "--password", "wrong")
	assert.ErrorIs(t, err, admin.ErrWrongPassword)

	out := h.mustRun("s3cret\n", "admin", "types", "add", "Casino", "Heist", "#123abc")
	assert.Contains(t, out, "Added Casino Heist")

	out = h.mustRun("", "admin", "types", "--password", "s3cret")
	assert.Contains(t, out, "Casino Heist")

	out = h.mustRun("y\nn\n", "admin", "purge", "--password", "s3cret")
	assert.Contains(t, out, "Purge canceled")
	assert.Len(t, h.ids(models.IncidentCollection), 1)

	out = h.mustRun("", "--yes", "admin", "purge", "--password", "s3cret")
	assert.Contains(t, out, "Purged 2 records")
	assert.Empty(t, h.ids(models.IncidentCollection))
	assert.Empty(t, h.ids(models.ChatCollection))
	assert.NotEmpty(t, h.ids(models.ConfigCollection))
}

func TestAdminHashPassword(t *testing.T) {
	h := newHarness(t)

	hash := strings.TrimSpace(h.mustRun("", "admin", "hash-password", "hunter2"))
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")))

	t.Setenv(envAdminPassword, "")
	t.Setenv(envAdminHash, hash)
	out := h.mustRun("", "admin", "types", "--password", "hunter2")
	assert.NotContains(t, out, "Incorrect password")

	_, err := h.run("", "admin", "types", "--password", "hunter3")
	assert.ErrorIs(t, err, admin.ErrWrongPassword)
}
