package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/dispatch-board/models"
)

// Op names a store operation for fault injection
type Op string

// Store operations
const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpList   Op = "list"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("document not found")

// Memory is an in-process Store with server-side timestamps and live queries
type Memory struct {
	// Fault, when set, is consulted before every operation; a non-nil error
	// fails the operation without side effects.
	Fault func(op Op, collection, id string) error

	clock func() time.Time

	mu          sync.Mutex
	seq         int64
	writes      int
	collections map[string]map[string]*memDoc
	subs        map[*memSub]struct{}
}

type memDoc struct {
	seq    int64
	fields map[string]interface{}
}

// NewMemory returns an empty Memory store. clock stamps createdAt and
// defaults to time.Now.
func NewMemory(clock func() time.Time) *Memory {
	if clock == nil {
		clock = time.Now
	}
	return &Memory{
		clock:       clock,
		collections: map[string]map[string]*memDoc{},
		subs:        map[*memSub]struct{}{},
	}
}

// Writes returns the number of successful create, update and delete calls
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Get returns the current fields of a record
func (m *Memory) Get(collection, id string) (json.RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.collections[collection][id]
	if !ok {
		return nil, false
	}
	b, _ := json.Marshal(d.fields)
	return b, true
}

func (m *Memory) fault(op Op, collection, id string) error {
	if m.Fault == nil {
		return nil
	}
	return m.Fault(op, collection, id)
}

// Create implements Store
func (m *Memory) Create(ctx context.Context, collection string, doc interface{}) (string, error) {
	if err := m.fault(OpCreate, collection, ""); err != nil {
		return "", err
	}
	fields, err := toFields(doc)
	if err != nil {
		return "", err
	}
	id := primitive.NewObjectID().Hex()
	fields["_id"] = id
	fields["createdAt"] = m.clock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// round-trip so stored values look exactly like decoded JSON
	fields, err = toFields(fields)
	if err != nil {
		return "", err
	}
	m.seq++
	d := &memDoc{seq: m.seq, fields: fields}
	if m.collections[collection] == nil {
		m.collections[collection] = map[string]*memDoc{}
	}
	m.collections[collection][id] = d
	m.writes++

	for sub := range m.subs {
		if sub.q.Collection == collection && sub.matches(d) {
			sub.push(d.event(models.ChangeAdded, id))
		}
	}
	return id, nil
}

// Update implements Store
func (m *Memory) Update(ctx context.Context, collection, id string, fields interface{}) error {
	if err := m.fault(OpUpdate, collection, id); err != nil {
		return err
	}
	set, err := toFields(fields)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	before := map[*memSub]bool{}
	for sub := range m.subs {
		before[sub] = sub.matches(d)
	}
	for k, v := range set {
		if k == "_id" || k == "createdAt" {
			continue
		}
		d.fields[k] = v
	}
	m.writes++

	for sub := range m.subs {
		if sub.q.Collection != collection {
			continue
		}
		was, now := before[sub], sub.matches(d)
		switch {
		case was && now:
			sub.push(d.event(models.ChangeModified, id))
		case !was && now:
			sub.push(d.event(models.ChangeAdded, id))
		case was && !now:
			sub.push(models.ChangeEvent{Type: models.ChangeRemoved, ID: id})
		}
	}
	return nil
}

// Delete implements Store
func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := m.fault(OpDelete, collection, id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	delete(m.collections[collection], id)
	m.writes++

	for sub := range m.subs {
		if sub.q.Collection == collection && sub.matches(d) {
			sub.push(models.ChangeEvent{Type: models.ChangeRemoved, ID: id})
		}
	}
	return nil
}

// ListAll implements Store
func (m *Memory) ListAll(ctx context.Context, collection string) ([]Document, error) {
	if err := m.fault(OpList, collection, ""); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.sorted(Query{Collection: collection})
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		b, err := json.Marshal(d.fields)
		if err != nil {
			return nil, err
		}
		out = append(out, Document{ID: d.id(), Fields: b})
	}
	return out, nil
}

// Subscribe implements Store
func (m *Memory) Subscribe(ctx context.Context, q Query) (<-chan models.ChangeEvent, error) {
	sub := &memSub{
		q:    q,
		wake: make(chan struct{}, 1),
		out:  make(chan models.ChangeEvent),
	}

	m.mu.Lock()
	for _, d := range m.sorted(q) {
		sub.push(d.event(models.ChangeAdded, d.id()))
	}
	sub.push(models.ChangeEvent{Type: models.ChangeSynced})
	m.subs[sub] = struct{}{}
	m.mu.Unlock()

	go sub.pump(ctx)
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, sub)
		m.mu.Unlock()
	}()
	return sub.out, nil
}

// sorted returns the records matching q in query order. Callers hold m.mu.
func (m *Memory) sorted(q Query) []*memDoc {
	probe := &memSub{q: q}
	var docs []*memDoc
	for _, d := range m.collections[q.Collection] {
		if probe.matches(d) {
			docs = append(docs, d)
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if q.Field != "" {
			ti, tj := d2t(docs[i], q.Field), d2t(docs[j], q.Field)
			if !ti.Equal(tj) {
				return ti.Before(tj)
			}
		}
		return docs[i].seq < docs[j].seq
	})
	return docs
}

func (d *memDoc) id() string {
	id, _ := d.fields["_id"].(string)
	return id
}

func (d *memDoc) event(typ models.ChangeType, id string) models.ChangeEvent {
	b, _ := json.Marshal(d.fields)
	return models.ChangeEvent{Type: typ, ID: id, Fields: b}
}

func d2t(d *memDoc, field string) time.Time {
	s, _ := d.fields[field].(string)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func toFields(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("document must be an object: %w", err)
	}
	return fields, nil
}

// memSub queues events without blocking writers and delivers them in order
type memSub struct {
	q Query

	mu    sync.Mutex
	queue []models.ChangeEvent
	wake  chan struct{}
	out   chan models.ChangeEvent
}

func (s *memSub) matches(d *memDoc) bool {
	if s.q.Field == "" {
		return true
	}
	if _, ok := d.fields[s.q.Field]; !ok {
		return false
	}
	return !d2t(d, s.q.Field).Before(s.q.Since)
}

func (s *memSub) push(ev models.ChangeEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *memSub) pump(ctx context.Context) {
	defer close(s.out)
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, ev := range batch {
			select {
			case s.out <- ev:
			case <-ctx.Done():
				return
			}
		}
		select {
		case <-s.wake:
		case <-ctx.Done():
			return
		}
	}
}
