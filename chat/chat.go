// Package chat renders the internal chat as an append-only stream and posts
// messages on behalf of the identified operator.
package chat

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/linesmerrill/dispatch-board/docstore"
	"github.com/linesmerrill/dispatch-board/identity"
	"github.com/linesmerrill/dispatch-board/livesync"
	"github.com/linesmerrill/dispatch-board/models"
	"github.com/linesmerrill/dispatch-board/notice"
)

// Container is the key of the single chat container
const Container = "chat"

const defaultAuthor = "Agent"

// ErrEmptyMessage is returned when the message is blank
var ErrEmptyMessage = errors.New("message is empty")

// Line is one rendered chat message. Own is a display classification only.
type Line struct {
	ID      string
	Author  string
	Faction models.Zone
	Text    string
	Time    string
	Own     bool
}

// Stream is the chat feed plus its send action
type Stream struct {
	feed     *livesync.Sync[models.ChatMessage, Line]
	store    docstore.Store
	ids      *identity.Store
	notifier notice.Notifier
	log      *zap.SugaredLogger
}

// New returns a Stream whose feed renders added messages only
func New(store docstore.Store, ids *identity.Store, notifier notice.Notifier, log *zap.SugaredLogger) *Stream {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Stream{store: store, ids: ids, notifier: notifier, log: log}
	s.feed = livesync.New(livesync.Config[models.ChatMessage, Line]{
		Route:      func(models.ChatMessage) string { return Container },
		Render:     s.render,
		Containers: map[string]string{Container: ""},
		AddedOnly:  true,
	}, log)
	return s
}

// Feed returns the reconciler fed by the chat subscription
func (s *Stream) Feed() *livesync.Sync[models.ChatMessage, Line] {
	return s.feed
}

// Lines returns the rendered messages in stream order
func (s *Stream) Lines() []Line {
	v, _ := s.feed.View(Container)
	lines := make([]Line, len(v.Nodes))
	for i, n := range v.Nodes {
		lines[i] = n.View
	}
	return lines
}

func (s *Stream) render(id string, msg models.ChatMessage) Line {
	line := Line{
		ID:      id,
		Author:  msg.User,
		Faction: msg.Faction,
		Text:    msg.Text,
	}
	if line.Author == "" {
		line.Author = defaultAuthor
	}
	if msg.CreatedAt != nil {
		line.Time = msg.CreatedAt.Local().Format("15:04")
	}
	if localID, err := s.ids.LocalID(); err == nil && msg.LocalID != "" {
		line.Own = msg.LocalID == localID
	}
	return line
}

// Send posts text as the current operator. Nothing is written when the text
// is blank or no identity has been saved.
func (s *Stream) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		s.notifier.Notify(notice.Warning, "Write a message first")
		return ErrEmptyMessage
	}
	who, err := s.ids.Current()
	if err != nil {
		s.notifier.Notify(notice.Warning, "You must identify yourself first")
		return err
	}

	draft := models.ChatDraft{
		Text:    text,
		User:    who.Name,
		Faction: who.Faction,
		LocalID: who.LocalID,
	}
	if _, err := s.store.Create(ctx, models.ChatCollection, draft); err != nil {
		s.log.Errorw("failed to send chat message", "error", err)
		s.notifier.Notify(notice.Error, "Failed to send message")
		return err
	}
	return nil
}
