// Package catalog keeps the live list of robbery types and seeds it with a
// default set the first time it is observed empty.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/linesmerrill/dispatch-board/docstore"
	"github.com/linesmerrill/dispatch-board/models"
)

// Defaults is created, one entry at a time, whenever the catalog snapshot is
// empty. Concurrent clients observing the same empty snapshot each seed it.
var Defaults = []models.ConfigEntryDraft{
	{Name: "Convenience Store", Color: "#f1c40f"},
	{Name: "Fleeca Bank", Color: "#2ecc71"},
	{Name: "Jewelry Store", Color: "#9b59b6"},
	{Name: "Pacific Bank", Color: "#e74c3c"},
	{Name: "Paleto Bank", Color: "#e67e22"},
	{Name: "House Robbery", Color: "#3498db"},
}

// ErrInvalidEntry is returned by Add for a blank name or a malformed color
var ErrInvalidEntry = errors.New("robbery type needs a name and a #RRGGBB color")

// seedTimeout bounds a seed, which outlives the subscription that started it
const seedTimeout = 30 * time.Second

var validate = validator.New()

// Entry is one robbery type as listed in the admin panel
type Entry struct {
	ID    string
	Name  string
	Color string
}

// Catalog mirrors the config collection
type Catalog struct {
	store docstore.Store
	log   *zap.SugaredLogger

	mu        sync.Mutex
	entries   map[string]Entry
	synced    bool
	ready     chan struct{}
	seeding   chan struct{}
	seeds     int
	listeners []func()
}

// New returns an empty Catalog writing through store
func New(store docstore.Store, log *zap.SugaredLogger) *Catalog {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Catalog{store: store, log: log, entries: map[string]Entry{}, ready: make(chan struct{})}
}

// OnChange registers fn to be called whenever a non-empty snapshot is published
func (c *Catalog) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Run applies events until the channel closes or ctx is done
func (c *Catalog) Run(ctx context.Context, events <-chan models.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.Apply(ctx, ev)
		}
	}
}

// Apply folds one event into the snapshot. Once the initial snapshot is
// complete every event is treated as a fresh observation: an empty catalog
// gets seeded, anything else is published to listeners.
func (c *Catalog) Apply(ctx context.Context, ev models.ChangeEvent) {
	c.mu.Lock()
	switch ev.Type {
	case models.ChangeAdded, models.ChangeModified:
		var entry models.ConfigEntry
		if err := json.Unmarshal(ev.Fields, &entry); err != nil {
			c.mu.Unlock()
			c.log.Errorw("failed to decode robbery type", "id", ev.ID, "error", err)
			return
		}
		c.entries[ev.ID] = Entry{ID: ev.ID, Name: entry.Name, Color: entry.Color}
	case models.ChangeRemoved:
		delete(c.entries, ev.ID)
	case models.ChangeSynced:
		if !c.synced {
			close(c.ready)
		}
		c.synced = true
	default:
		c.mu.Unlock()
		return
	}
	if !c.synced {
		c.mu.Unlock()
		return
	}
	empty := len(c.entries) == 0 && c.seeding == nil
	var done chan struct{}
	if empty {
		c.seeds++
		done = make(chan struct{})
		c.seeding = done
	}
	listeners := c.listeners
	c.mu.Unlock()

	if empty {
		c.seed(ctx)
		c.mu.Lock()
		c.seeding = nil
		c.mu.Unlock()
		close(done)
		return
	}
	for _, fn := range listeners {
		fn()
	}
}

// WaitSynced blocks until the initial snapshot has been applied and any seed
// it started has finished writing
func (c *Catalog) WaitSynced(ctx context.Context) error {
	select {
	case <-c.ready:
	case <-ctx.Done():
		return fmt.Errorf("waiting for robbery types: %w", ctx.Err())
	}
	c.mu.Lock()
	seeding := c.seeding
	c.mu.Unlock()
	if seeding == nil {
		return nil
	}
	select {
	case <-seeding:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for robbery types to be seeded: %w", ctx.Err())
	}
}

// seed writes every default. A canceled subscription does not stop it
// halfway: a partial catalog is never empty again and would not be reseeded.
func (c *Catalog) seed(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), seedTimeout)
	defer cancel()

	c.log.Infow("robbery type catalog is empty, seeding defaults", "count", len(Defaults), "seeds", c.seedCount())
	created := 0
	for _, d := range Defaults {
		if _, err := c.store.Create(ctx, models.ConfigCollection, d); err != nil {
			c.log.Errorw("failed to seed robbery type", "name", d.Name, "error", err)
			continue
		}
		created++
	}
	c.log.Infow("robbery type catalog seeded", "created", created, "total", len(Defaults))
}

func (c *Catalog) seedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seeds
}

// Entries returns the admin list sorted by name
func (c *Catalog) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Options returns the selectable robbery type names sorted ascending
func (c *Catalog) Options() []string {
	entries := c.Entries()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// Color returns the color of the first entry named name
func (c *Catalog) Color(name string) (string, bool) {
	for _, e := range c.Entries() {
		if e.Name == name {
			return e.Color, true
		}
	}
	return "", false
}

// Add creates a robbery type
func (c *Catalog) Add(ctx context.Context, name, color string) (string, error) {
	draft := models.ConfigEntryDraft{Name: strings.TrimSpace(name), Color: strings.TrimSpace(color)}
	if err := validate.Struct(draft); err != nil {
		return "", ErrInvalidEntry
	}
	id, err := c.store.Create(ctx, models.ConfigCollection, draft)
	if err != nil {
		return "", fmt.Errorf("failed to add robbery type %q: %w", draft.Name, err)
	}
	return id, nil
}

// Remove deletes a robbery type
func (c *Catalog) Remove(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, models.ConfigCollection, id); err != nil {
		return fmt.Errorf("failed to remove robbery type %s: %w", id, err)
	}
	return nil
}
