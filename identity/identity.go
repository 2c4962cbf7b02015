// Package identity manages the local operator: a display name, a faction and a
// device-scoped local id that is minted once and never changes.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/linesmerrill/dispatch-board/models"
)

// Storage keys
const (
	keyIdentity = "dispatch_identity"
	keyLocalID  = "dispatch_local_id"
	keyTheme    = "dispatch_theme"
)

// Theme values
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

const minNameLength = 2

var (
	// ErrNoIdentity is returned when an action needs an operator that has not identified yet
	ErrNoIdentity = errors.New("identify yourself first")
	// ErrNameTooShort is returned when the display name is shorter than two characters
	ErrNameTooShort = errors.New("please enter a valid agent name")
	// ErrInvalidFaction is returned for a faction other than north or south
	ErrInvalidFaction = errors.New("faction must be north or south")
	// ErrInvalidTheme is returned for a theme other than dark or light
	ErrInvalidTheme = errors.New("theme must be dark or light")
)

// Identity is the persisted operator
type Identity struct {
	Name    string      `json:"name"`
	Faction models.Zone `json:"faction"`
	LocalID string      `json:"localId"`
}

// Store resolves and persists the operator identity
type Store struct {
	storage Storage
	mu      sync.Mutex
}

// NewStore returns a Store backed by storage
func NewStore(storage Storage) *Store {
	return &Store{storage: storage}
}

// LocalID returns the device's local id, minting and persisting it on first use
func (s *Store) LocalID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localID()
}

func (s *Store) localID() (string, error) {
	id, ok, err := s.storage.Get(keyLocalID)
	if err != nil {
		return "", fmt.Errorf("failed to read local id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}
	id = newLocalID()
	if err := s.storage.Set(keyLocalID, id); err != nil {
		return "", fmt.Errorf("failed to persist local id: %w", err)
	}
	return id, nil
}

// Current returns the saved identity, or ErrNoIdentity when the operator has
// not identified on this device.
func (s *Store) Current() (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.storage.Get(keyIdentity)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to read identity: %w", err)
	}
	if !ok || raw == "" {
		return Identity{}, ErrNoIdentity
	}
	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return Identity{}, fmt.Errorf("%w: stored identity is unreadable: %v", ErrNoIdentity, err)
	}
	return id, nil
}

// Save validates and persists the operator's name and faction. The local id
// is reused; it is minted only if this device never had one.
func (s *Store) Save(name string, faction models.Zone) (Identity, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < minNameLength {
		return Identity{}, ErrNameTooShort
	}
	if !faction.IsValid() {
		return Identity{}, ErrInvalidFaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	localID, err := s.localID()
	if err != nil {
		return Identity{}, err
	}
	id := Identity{Name: name, Faction: faction, LocalID: localID}
	b, err := json.Marshal(id)
	if err != nil {
		return Identity{}, err
	}
	if err := s.storage.Set(keyIdentity, string(b)); err != nil {
		return Identity{}, fmt.Errorf("failed to persist identity: %w", err)
	}
	return id, nil
}

// Theme returns the saved theme preference, dark by default
func (s *Store) Theme() string {
	v, ok, err := s.storage.Get(keyTheme)
	if err != nil || !ok || v != ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

// SetTheme persists the theme preference
func (s *Store) SetTheme(theme string) error {
	if theme != ThemeDark && theme != ThemeLight {
		return ErrInvalidTheme
	}
	return s.storage.Set(keyTheme, theme)
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// newLocalID returns user_ followed by 9 base36 characters drawn from a v4 uuid
func newLocalID() string {
	u := uuid.New()
	b := make([]byte, 9)
	for i := range b {
		b[i] = base36[int(u[i])%len(base36)]
	}
	return "user_" + string(b)
}
