// Package notice defines the presentation collaborators the board talks to:
// transient notifications, blocking alerts and yes/no confirmations.
package notice

import (
	"context"
	"sync"
)

// Level is the severity of a transient notification
type Level string

// Notification levels
const (
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notifier shows messages to the operator
type Notifier interface {
	// Notify shows a transient message.
	Notify(level Level, message string)
	// Alert shows a message the operator must acknowledge.
	Alert(message string)
}

// Confirmer asks the operator a yes/no question
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Message is one recorded notification
type Message struct {
	Level    Level
	Text     string
	Blocking bool
}

// Recorder is a Notifier and Confirmer that keeps what it was asked and
// answers confirmations from a script. Unscripted questions are answered no.
type Recorder struct {
	mu        sync.Mutex
	messages  []Message
	questions []string
	answers   []bool
}

// NewRecorder returns a Recorder answering confirmations in order
func NewRecorder(answers ...bool) *Recorder {
	return &Recorder{answers: answers}
}

// Notify implements Notifier
func (r *Recorder) Notify(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: level, Text: message})
}

// Alert implements Notifier
func (r *Recorder) Alert(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: Error, Text: message, Blocking: true})
}

// Confirm implements Confirmer
func (r *Recorder) Confirm(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions = append(r.questions, question)
	if len(r.answers) == 0 {
		return false, nil
	}
	answer := r.answers[0]
	r.answers = r.answers[1:]
	return answer, nil
}

// Messages returns every notification so far
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Questions returns every confirmation asked so far
func (r *Recorder) Questions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.questions...)
}
