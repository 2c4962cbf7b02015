// Package incidents holds the incident card lifecycle: the shared create/edit
// form, the single-slot editing session, status cycling and resolution.
package incidents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/linesmerrill/dispatch-board/docstore"
	"github.com/linesmerrill/dispatch-board/identity"
	"github.com/linesmerrill/dispatch-board/models"
	"github.com/linesmerrill/dispatch-board/notice"
)

var (
	// ErrZoneRequired is returned when the form has no jurisdiction selected
	ErrZoneRequired = errors.New("select a jurisdiction")
	// ErrTypeRequired is returned when the form has no robbery type selected
	ErrTypeRequired = errors.New("select a robbery type")
	// ErrInvalidColor is returned for a color that is not #RRGGBB
	ErrInvalidColor = errors.New("color must be #RRGGBB")
)

// NextStatus returns the status following s in the cycle
// pending -> in_progress -> completed -> pending.
func NextStatus(s models.Status) models.Status {
	switch s {
	case models.StatusPending:
		return models.StatusInProgress
	case models.StatusInProgress:
		return models.StatusCompleted
	default:
		return models.StatusPending
	}
}

// Form is the shared create/edit form
type Form struct {
	Open        bool
	Zone        models.Zone
	PlayerID    string
	Band        string
	Color       string
	RobberyType string
}

func defaultForm() Form {
	return Form{Color: DefaultColor}
}

func (f Form) fields() models.IncidentFields {
	return models.IncidentFields{
		Zone:        f.Zone,
		PlayerID:    strings.TrimSpace(f.PlayerID),
		Band:        strings.TrimSpace(f.Band),
		Color:       strings.ToLower(strings.TrimSpace(f.Color)),
		RobberyType: strings.TrimSpace(f.RobberyType),
	}
}

// validateFields reports the first problem in form order: zone, type, color
func validateFields(fields models.IncidentFields) error {
	err := validate.Struct(fields)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	failed := map[string]bool{}
	for _, fe := range verrs {
		failed[fe.StructField()] = true
	}
	switch {
	case failed["Zone"]:
		return ErrZoneRequired
	case failed["RobberyType"]:
		return ErrTypeRequired
	case failed["Color"]:
		return ErrInvalidColor
	default:
		return err
	}
}

// Lifecycle performs incident mutations against the store
type Lifecycle struct {
	store    docstore.Store
	identity *identity.Store
	notifier notice.Notifier
	confirm  notice.Confirmer
	log      *zap.SugaredLogger
	clock    func() time.Time

	mu        sync.Mutex
	form      Form
	editingID string
}

// NewLifecycle returns a Lifecycle with a closed, create-mode form
func NewLifecycle(store docstore.Store, ids *identity.Store, notifier notice.Notifier, confirm notice.Confirmer, log *zap.SugaredLogger) *Lifecycle {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Lifecycle{
		store:    store,
		identity: ids,
		notifier: notifier,
		confirm:  confirm,
		log:      log,
		clock:    time.Now,
		form:     defaultForm(),
	}
}

// OpenForm opens the form. With no editing session it is in create mode.
func (l *Lifecycle) OpenForm() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.form.Open = true
}

// StartEdit binds the editing session to id and pre-fills the form from
// current. The stored color is kept as is, so a malformed one fails
// validation instead of being replaced.
func (l *Lifecycle) StartEdit(id string, current models.Incident) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.editingID = id
	l.form = Form{
		Open:        true,
		Zone:        current.Zone,
		PlayerID:    current.PlayerID,
		Band:        current.Band,
		Color:       current.Color,
		RobberyType: current.RobberyType,
	}
}

// Form returns the current form state
func (l *Lifecycle) Form() Form {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.form
}

// SetForm replaces the form's field values; the form stays open
func (l *Lifecycle) SetForm(f Form) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f.Open = l.form.Open
	l.form = f
}

// Editing returns the id bound to the editing session, if any
func (l *Lifecycle) Editing() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.editingID, l.editingID != ""
}

// SubmitLabel names what submitting the form will do
func (l *Lifecycle) SubmitLabel() string {
	if _, editing := l.Editing(); editing {
		return "Update"
	}
	return "Publish"
}

// CloseForm clears the editing session and resets the form to create-mode defaults
func (l *Lifecycle) CloseForm() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.editingID = ""
	l.form = defaultForm()
}

// Submit creates a new incident, or updates the one bound to the editing
// session. Validation happens before any write; on any failure the form is
// left open and untouched so the operator can correct it.
func (l *Lifecycle) Submit(ctx context.Context) error {
	l.mu.Lock()
	form, editingID := l.form, l.editingID
	l.mu.Unlock()

	fields := form.fields()
	if fields.Color == "" {
		fields.Color = DefaultColor
	}
	if err := validateFields(fields); err != nil {
		l.notifier.Notify(notice.Warning, capitalize(err.Error()))
		return err
	}

	if editingID != "" {
		if err := l.store.Update(ctx, models.IncidentCollection, editingID, fields); err != nil {
			l.log.Errorw("failed to update incident", "id", editingID, "error", err)
			l.notifier.Notify(notice.Error, "Failed to update notice")
			return err
		}
		l.log.Infow("incident updated", "id", editingID)
		l.CloseForm()
		return nil
	}

	if _, err := l.identity.Current(); err != nil {
		l.notifier.Notify(notice.Warning, "Identify yourself first")
		return err
	}
	draft := models.IncidentDraft{
		IncidentFields: fields,
		Status:         models.StatusPending,
		Timestamp:      l.clock(),
	}
	id, err := l.store.Create(ctx, models.IncidentCollection, draft)
	if err != nil {
		l.log.Errorw("failed to create incident", "error", err)
		l.notifier.Notify(notice.Error, "Failed to publish notice")
		return err
	}
	l.log.Infow("incident created", "id", id, "zone", fields.Zone)
	l.CloseForm()
	return nil
}

// CycleStatus advances the incident's status with a single write. Failures are
// logged and otherwise ignored. It returns the status that was written.
func (l *Lifecycle) CycleStatus(ctx context.Context, id string, current models.Status) models.Status {
	next := NextStatus(current)
	err := l.store.Update(ctx, models.IncidentCollection, id, map[string]models.Status{"status": next})
	if err != nil {
		l.log.Errorw("failed to update status", "id", id, "status", next, "error", err)
	}
	return next
}

// Resolve asks for confirmation and then permanently deletes the incident.
// It reports whether a delete was attempted.
func (l *Lifecycle) Resolve(ctx context.Context, id string) (bool, error) {
	ok, err := l.confirm.Confirm(ctx, "Close this notice?")
	if err != nil || !ok {
		return false, err
	}
	if err := l.store.Delete(ctx, models.IncidentCollection, id); err != nil {
		l.log.Errorw("failed to delete incident", "id", id, "error", err)
		l.notifier.Notify(notice.Error, "Failed to close notice")
		return true, err
	}
	l.log.Infow("incident resolved", "id", id)
	return true, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
