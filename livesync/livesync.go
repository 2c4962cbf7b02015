// Package livesync reconciles a live, filtered, ascending-ordered stream of
// change events into ordered local views.
//
// The stream is trusted to be ordered: the snapshot arrives as a burst of added
// events in query order and later additions arrive in insertion order, so the
// reconciler only ever appends, replaces in place, or removes. It never sorts.
package livesync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/dispatch-board/models"
)

// Config wires a Sync to one record type and one rendering
type Config[T any, V any] struct {
	// Decode turns event fields into a record. Defaults to json.Unmarshal.
	Decode func(fields json.RawMessage) (T, error)
	// Route names the container a record belongs to.
	Route func(rec T) string
	// Render builds the displayed representation of a record.
	Render func(id string, rec T) V
	// Containers maps each container key to its empty-state copy.
	Containers map[string]string
	// AddedOnly ignores modified and removed events (append-only feeds).
	AddedOnly bool
	// Clock stamps node updates. Defaults to time.Now.
	Clock func() time.Time
}

// Change describes one event after it was applied
type Change struct {
	Type      models.ChangeType
	ID        string
	Container string
	Boundary  *time.Time
}

// Sync owns a set of containers and applies change events to them. All
// mutation happens under one lock, so events from any goroutine are applied
// one at a time in the order Apply is called.
type Sync[T any, V any] struct {
	cfg Config[T, V]
	log *zap.SugaredLogger

	mu         sync.Mutex
	containers map[string]*container[V]
	records    map[string]T
	location   map[string]string
	listeners  []func(Change)

	syncedOnce sync.Once
	synced     chan struct{}
}

// New returns a Sync with every configured container showing its placeholder
func New[T any, V any](cfg Config[T, V], log *zap.SugaredLogger) *Sync[T, V] {
	if cfg.Decode == nil {
		cfg.Decode = func(fields json.RawMessage) (T, error) {
			var rec T
			err := json.Unmarshal(fields, &rec)
			return rec, err
		}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Sync[T, V]{
		cfg:        cfg,
		log:        log,
		containers: make(map[string]*container[V], len(cfg.Containers)),
		records:    map[string]T{},
		location:   map[string]string{},
		synced:     make(chan struct{}),
	}
	for key, placeholder := range cfg.Containers {
		s.containers[key] = &container[V]{key: key, placeholder: placeholder}
	}
	return s
}

// OnChange registers fn to be called after every applied event. Listeners run
// outside the lock and may read views.
func (s *Sync[T, V]) OnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Run applies events until the channel closes or ctx is done
func (s *Sync[T, V]) Run(ctx context.Context, events <-chan models.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.Apply(ev)
		}
	}
}

// Apply reconciles a single event into the containers
func (s *Sync[T, V]) Apply(ev models.ChangeEvent) {
	s.mu.Lock()
	changes := s.apply(ev)
	listeners := s.listeners
	s.mu.Unlock()

	for _, c := range changes {
		for _, fn := range listeners {
			fn(c)
		}
	}
}

func (s *Sync[T, V]) apply(ev models.ChangeEvent) []Change {
	switch ev.Type {
	case models.ChangeSynced:
		s.syncedOnce.Do(func() { close(s.synced) })
		return []Change{{Type: ev.Type}}
	case models.ChangeBoundary:
		return []Change{{Type: ev.Type, Boundary: ev.Boundary}}
	case models.ChangeAdded:
		return s.upsert(ev, false)
	case models.ChangeModified:
		if s.cfg.AddedOnly {
			return nil
		}
		return s.upsert(ev, true)
	case models.ChangeRemoved:
		if s.cfg.AddedOnly {
			return nil
		}
		return s.remove(ev.ID)
	default:
		s.log.Warnw("ignoring unknown change type", "type", ev.Type, "id", ev.ID)
		return nil
	}
}

// upsert renders the record and places it. A record already shown in the
// target container is swapped in place; anything else is appended. A record
// routed to a different container than before leaves the old one.
func (s *Sync[T, V]) upsert(ev models.ChangeEvent, modified bool) []Change {
	rec, err := s.cfg.Decode(ev.Fields)
	if err != nil {
		s.log.Errorw("failed to decode change", "type", ev.Type, "id", ev.ID, "error", err)
		return nil
	}
	key := s.cfg.Route(rec)
	target, ok := s.containers[key]
	if !ok {
		s.log.Warnw("no container for record", "container", key, "id", ev.ID)
		return nil
	}

	node := Node[V]{ID: ev.ID, View: s.cfg.Render(ev.ID, rec), UpdatedAt: s.cfg.Clock()}
	s.records[ev.ID] = rec

	if current, shown := s.location[ev.ID]; shown {
		if current == key {
			idx := target.indexOf(ev.ID)
			node.Pulses = target.nodes[idx].Pulses
			if modified {
				node.Pulses++
			}
			target.nodes[idx] = node
			return []Change{{Type: ev.Type, ID: ev.ID, Container: key}}
		}
		s.containers[current].removeID(ev.ID)
	}

	if modified {
		node.Pulses = 1
	}
	target.nodes = append(target.nodes, node)
	s.location[ev.ID] = key
	return []Change{{Type: ev.Type, ID: ev.ID, Container: key}}
}

func (s *Sync[T, V]) remove(id string) []Change {
	key, ok := s.location[id]
	if !ok {
		return nil
	}
	s.containers[key].removeID(id)
	delete(s.location, id)
	delete(s.records, id)
	return []Change{{Type: models.ChangeRemoved, ID: id, Container: key}}
}

// WaitSynced blocks until the initial snapshot has been applied
func (s *Sync[T, V]) WaitSynced(ctx context.Context) error {
	select {
	case <-s.synced:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for initial snapshot: %w", ctx.Err())
	}
}

// Lookup returns the last applied record for id
func (s *Sync[T, V]) Lookup(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok
}

// View returns a copy of the named container
func (s *Sync[T, V]) View(key string) (View[V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.containers[key]
	if !ok {
		return View[V]{}, false
	}
	return c.view(), true
}
