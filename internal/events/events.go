// Package events delivers fire-and-forget notifications about builder
// activity. Notifiers never report failures back to the caller.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	StateSaved        = "state.saved"
	StateAutoSaved    = "state.autosaved"
	StateUndone       = "state.undone"
	StateRedone       = "state.redone"
	StatePromoted     = "state.promoted"
	SectionAdded      = "section.added"
	SectionUpdated    = "section.updated"
	SectionDeleted    = "section.deleted"
	SectionsReordered = "sections.reordered"
	ComponentAdded    = "component.added"
	ComponentUpdated  = "component.updated"
	ExportQueued      = "export.queued"
	ExportCompleted   = "export.completed"
	ExportFailed      = "export.failed"
	ShareCreated      = "share.created"
	ShareViewed       = "share.viewed"
	ShareRevoked      = "share.revoked"
)

// Event is a notification about one context. Attributes carry identifiers
// and codes only, never document content.
type Event struct {
	Type       string            `json:"type"`
	Context    string            `json:"context"`
	Attributes map[string]string `json:"attributes,omitempty"`
	At         time.Time         `json:"at"`
}

// New creates an event stamped with the current time.
func New(eventType, context string, attrs map[string]string) Event {
	return Event{
		Type:       eventType,
		Context:    context,
		Attributes: attrs,
		At:         time.Now().UTC(),
	}
}

func (e Event) encode() []byte {
	data, _ := json.Marshal(e)
	return data
}

// Notifier receives events.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// Log writes events to the logger.
type Log struct{}

func (Log) Notify(_ context.Context, e Event) {
	logrus.WithFields(logrus.Fields{
		"event":   e.Type,
		"context": e.Context,
	}).Infof("event %s", e.Type)
}

// Multi fans an event out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, e)
		}
	}
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns the recorded events in order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}
