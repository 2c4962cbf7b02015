// Package board wires the dispatch board together: it owns the collaborators
// and starts the live feeds in a fixed order.
package board

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/dispatch-board/admin"
	"github.com/linesmerrill/dispatch-board/catalog"
	"github.com/linesmerrill/dispatch-board/chat"
	"github.com/linesmerrill/dispatch-board/docstore"
	"github.com/linesmerrill/dispatch-board/identity"
	"github.com/linesmerrill/dispatch-board/incidents"
	"github.com/linesmerrill/dispatch-board/livesync"
	"github.com/linesmerrill/dispatch-board/models"
	"github.com/linesmerrill/dispatch-board/notice"
	"github.com/linesmerrill/dispatch-board/shift"
)

// Options configures an App
type Options struct {
	Store     docstore.Store
	Identity  *identity.Store
	Notifier  notice.Notifier
	Confirmer notice.Confirmer
	Admin     admin.Credentials
	// Clock defaults to time.Now.
	Clock func() time.Time
	Log   *zap.SugaredLogger
}

// App is the application context shared by every board action
type App struct {
	Store     docstore.Store
	Identity  *identity.Store
	Feeds     *incidents.Feeds
	Lifecycle *incidents.Lifecycle
	Chat      *chat.Stream
	Catalog   *catalog.Catalog
	Admin     *admin.Gate

	notifier notice.Notifier
	log      *zap.SugaredLogger
	clock    func() time.Time

	mu       sync.Mutex
	boundary time.Time
	waiters  []func(context.Context) error
}

// New builds an App. Nothing is subscribed until Start.
func New(opts Options) *App {
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	cat := catalog.New(opts.Store, log.Named("catalog"))
	a := &App{
		Store:     opts.Store,
		Identity:  opts.Identity,
		Feeds:     incidents.NewFeeds(log.Named("incidents")),
		Lifecycle: incidents.NewLifecycle(opts.Store, opts.Identity, opts.Notifier, opts.Confirmer, log.Named("lifecycle")),
		Chat:      chat.New(opts.Store, opts.Identity, opts.Notifier, log.Named("chat")),
		Catalog:   cat,
		Admin:     admin.NewGate(opts.Admin, opts.Store, cat, opts.Notifier, opts.Confirmer, log.Named("admin")),
		notifier:  opts.Notifier,
		log:       log,
		clock:     clock,
	}
	a.Feeds.OnChange(a.onBoundary)
	return a
}

// Start resolves the identity, computes the shift boundary and starts the
// incident, chat and catalog subscriptions. A subscription that cannot be
// opened is logged and its feature stays empty; Start only fails when ctx is
// already done.
func (a *App) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	who, err := a.Identity.Current()
	switch {
	case errors.Is(err, identity.ErrNoIdentity):
		a.log.Warnw("no operator identity saved, reporting and chat are disabled until one is")
	case err != nil:
		a.log.Errorw("failed to read operator identity", "error", err)
	default:
		a.log.Infow("operator identified", "name", who.Name, "faction", who.Faction)
	}

	boundary := shift.LastBoundary(a.clock())
	a.mu.Lock()
	a.boundary = boundary
	a.mu.Unlock()
	a.log.Infow("shift window", "since", boundary)

	a.subscribe(ctx, "incidents",
		docstore.Query{Collection: models.IncidentCollection, Field: "timestamp", Since: boundary},
		a.Feeds.Run, a.Feeds.WaitSynced)
	a.subscribe(ctx, "chat",
		docstore.Query{Collection: models.ChatCollection, Field: "createdAt", Since: boundary},
		a.Chat.Feed().Run, a.Chat.Feed().WaitSynced)
	a.subscribe(ctx, "catalog",
		docstore.Query{Collection: models.ConfigCollection},
		a.Catalog.Run, a.Catalog.WaitSynced)
	return nil
}

func (a *App) subscribe(ctx context.Context, name string, q docstore.Query, run func(context.Context, <-chan models.ChangeEvent), wait func(context.Context) error) {
	events, err := a.Store.Subscribe(ctx, q)
	if err != nil {
		a.log.Errorw("failed to start subscription", "feed", name, "collection", q.Collection, "error", err)
		return
	}
	if wait != nil {
		a.mu.Lock()
		a.waiters = append(a.waiters, wait)
		a.mu.Unlock()
	}
	go run(ctx, events)
}

// Ready blocks until every started feed has applied its initial snapshot
func (a *App) Ready(ctx context.Context) error {
	a.mu.Lock()
	waiters := append([]func(context.Context) error(nil), a.waiters...)
	a.mu.Unlock()
	for _, wait := range waiters {
		if err := wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Boundary returns the shift boundary computed by Start
func (a *App) Boundary() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.boundary
}

// the feeds keep showing the previous shift until the board is restarted
func (a *App) onBoundary(c livesync.Change) {
	if c.Type != models.ChangeBoundary || c.Boundary == nil {
		return
	}
	a.log.Infow("shift boundary passed", "boundary", *c.Boundary)
	a.notifier.Notify(notice.Info, "A new shift started at "+c.Boundary.Local().Format("15:04")+", restart the board to clear the previous one")
}
