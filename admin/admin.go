// Package admin gates catalog maintenance and the bulk purge behind a shared
// password. The gate is a deterrent for a private board, not an access control.
package admin

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/linesmerrill/dispatch-board/catalog"
	"github.com/linesmerrill/dispatch-board/docstore"
	"github.com/linesmerrill/dispatch-board/models"
	"github.com/linesmerrill/dispatch-board/notice"
)

const (
	firstPurgeWarning  = "Delete EVERY incident and chat message? This cannot be undone."
	secondPurgeWarning = "Last chance: the board will be wiped for all operators. Continue?"

	purgeConcurrency = 16
)

var (
	// ErrWrongPassword is returned by Unlock on a mismatch
	ErrWrongPassword = errors.New("incorrect admin password")
	// ErrNoPassword is returned by Unlock when no password is configured
	ErrNoPassword = errors.New("admin password is not configured")
	// ErrLocked is returned by gated actions before Unlock succeeds
	ErrLocked = errors.New("admin panel is locked")
	// ErrPurgeCanceled is returned when either purge confirmation is declined
	ErrPurgeCanceled = errors.New("purge canceled")
)

// PurgeCollections are wiped by Purge, whatever their timestamps
var PurgeCollections = []string{models.IncidentCollection, models.ChatCollection}

// Credentials holds the shared admin secret. Hash, a bcrypt hash, takes
// precedence over Password when set.
type Credentials struct {
	Password string
	Hash     string
}

// PurgeError reports a purge where some deletes failed
type PurgeError struct {
	Failed int
	Total  int
	Err    error
}

func (e *PurgeError) Error() string {
	return fmt.Sprintf("purge failed for %d of %d records: %v", e.Failed, e.Total, e.Err)
}

func (e *PurgeError) Unwrap() error {
	return e.Err
}

// Gate holds the unlocked state of the admin panel
type Gate struct {
	creds    Credentials
	store    docstore.Store
	catalog  *catalog.Catalog
	notifier notice.Notifier
	confirm  notice.Confirmer
	log      *zap.SugaredLogger

	mu       sync.Mutex
	unlocked bool
}

// NewGate returns a locked Gate
func NewGate(creds Credentials, store docstore.Store, cat *catalog.Catalog, notifier notice.Notifier, confirm notice.Confirmer, log *zap.SugaredLogger) *Gate {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Gate{
		creds:    creds,
		store:    store,
		catalog:  cat,
		notifier: notifier,
		confirm:  confirm,
		log:      log,
	}
}

// Unlock opens the panel when password matches. There is no lockout.
func (g *Gate) Unlock(password string) error {
	if err := g.check(password); err != nil {
		g.notifier.Notify(notice.Warning, "Incorrect password")
		return err
	}
	g.mu.Lock()
	g.unlocked = true
	g.mu.Unlock()
	return nil
}

func (g *Gate) check(password string) error {
	if g.creds.Hash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(g.creds.Hash), []byte(password)); err != nil {
			return ErrWrongPassword
		}
		return nil
	}
	if g.creds.Password == "" {
		return ErrNoPassword
	}
	want := sha256.Sum256([]byte(g.creds.Password))
	got := sha256.Sum256([]byte(password))
	if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
		return ErrWrongPassword
	}
	return nil
}

// HashPassword returns the bcrypt hash to configure as Credentials.Hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// Lock closes the panel
func (g *Gate) Lock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unlocked = false
}

// Unlocked reports whether gated actions are allowed
func (g *Gate) Unlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlocked
}

func (g *Gate) guard() error {
	if !g.Unlocked() {
		g.notifier.Notify(notice.Warning, "Unlock the admin panel first")
		return ErrLocked
	}
	return nil
}

// AddEntry adds a robbery type to the catalog
func (g *Gate) AddEntry(ctx context.Context, name, color string) (string, error) {
	if err := g.guard(); err != nil {
		return "", err
	}
	id, err := g.catalog.Add(ctx, name, color)
	if err != nil {
		g.log.Errorw("failed to add robbery type", "name", name, "error", err)
		g.notifier.Notify(notice.Error, "Could not add robbery type")
		return "", err
	}
	return id, nil
}

// RemoveEntry deletes a robbery type from the catalog
func (g *Gate) RemoveEntry(ctx context.Context, id string) error {
	if err := g.guard(); err != nil {
		return err
	}
	if err := g.catalog.Remove(ctx, id); err != nil {
		g.log.Errorw("failed to remove robbery type", "id", id, "error", err)
		g.notifier.Notify(notice.Error, "Could not remove robbery type")
		return err
	}
	return nil
}

// Purge deletes every incident and chat message after two confirmations. All
// records present when it starts are deleted concurrently and every delete is
// allowed to settle; failures are reported together.
func (g *Gate) Purge(ctx context.Context) (int, error) {
	if err := g.guard(); err != nil {
		return 0, err
	}
	for _, question := range []string{firstPurgeWarning, secondPurgeWarning} {
		ok, err := g.confirm.Confirm(ctx, question)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, ErrPurgeCanceled
		}
	}

	type target struct{ collection, id string }
	var targets []target
	for _, coll := range PurgeCollections {
		docs, err := g.store.ListAll(ctx, coll)
		if err != nil {
			g.log.Errorw("failed to list records for purge", "collection", coll, "error", err)
			g.notifier.Alert("Purge aborted: could not list " + coll)
			return 0, fmt.Errorf("failed to list %s: %w", coll, err)
		}
		for _, d := range docs {
			targets = append(targets, target{collection: coll, id: d.ID})
		}
	}

	var (
		eg     errgroup.Group
		mu     sync.Mutex
		errs   error
		failed int
	)
	eg.SetLimit(purgeConcurrency)
	for _, t := range targets {
		eg.Go(func() error {
			if err := g.store.Delete(ctx, t.collection, t.id); err != nil {
				mu.Lock()
				failed++
				errs = multierr.Append(errs, fmt.Errorf("%s/%s: %w", t.collection, t.id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()

	deleted := len(targets) - failed
	if errs != nil {
		perr := &PurgeError{Failed: failed, Total: len(targets), Err: errs}
		g.log.Errorw("purge partially failed", "failed", failed, "total", len(targets), "error", errs)
		g.notifier.Alert(fmt.Sprintf("Purge incomplete: %d of %d records could not be deleted", failed, len(targets)))
		return deleted, perr
	}
	g.log.Infow("board purged", "deleted", deleted)
	g.notifier.Notify(notice.Info, fmt.Sprintf("Board wiped: %d records deleted", deleted))
	return deleted, nil
}
