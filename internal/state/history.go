package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/emrgen/mediakit/internal/document"
	"github.com/emrgen/mediakit/internal/identity"
	"github.com/emrgen/mediakit/internal/kv"
	"github.com/sirupsen/logrus"
)

// DefaultHistoryDepth is the default bound of each history stack.
const DefaultHistoryDepth = 50

type stack int

const (
	undoStack stack = iota
	redoStack
)

func (s stack) key(ref identity.ContextRef) string {
	if s == undoStack {
		return "history:undo:" + ref.String()
	}
	return "history:redo:" + ref.String()
}

// HistoryEntry is one snapshot on an undo or redo stack.
type HistoryEntry struct {
	StateData *document.Document `json:"state_data"`
	Timestamp time.Time          `json:"timestamp"`
	Checksum  string             `json:"checksum"`
}

// HistoryStatus reports the depth of both stacks.
type HistoryStatus struct {
	Undo int `json:"undo"`
	Redo int `json:"redo"`
}

// History keeps bounded undo and redo stacks per context on top of the
// state store. Stacks are trimmed from the oldest end.
//
// Pushing an undo point does not clear the redo stack.
//
// History does not lock; callers serialize operations per context.
type History struct {
	store *Store
	depth int
}

// NewHistory creates a history manager. A non-positive depth uses
// DefaultHistoryDepth.
func NewHistory(store *Store, depth int) *History {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}

	return &History{store: store, depth: depth}
}

// Depth returns the maximum number of entries per stack.
func (h *History) Depth() int {
	return h.depth
}

// PushUndoPoint snapshots the context's current persisted document onto its
// undo stack. It does nothing when there is no current document or when the
// top of the stack already holds the same snapshot.
func (h *History) PushUndoPoint(ctx context.Context, ref identity.ContextRef) error {
	current, err := h.store.Load(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	return h.Push(ctx, ref, current)
}

// Push records doc as the newest undo point of the context.
func (h *History) Push(ctx context.Context, ref identity.ContextRef, doc *document.Document) error {
	entries, err := h.read(ctx, ref, undoStack)
	if err != nil {
		return err
	}

	entries, changed, err := pushEntry(entries, doc)
	if err != nil || !changed {
		return err
	}

	return h.write(ctx, ref, undoStack, entries)
}

// pushEntry appends a snapshot of doc unless the top entry already holds it.
func pushEntry(entries []HistoryEntry, doc *document.Document) ([]HistoryEntry, bool, error) {
	entry, err := newEntry(doc)
	if err != nil {
		return nil, false, err
	}

	if n := len(entries); n > 0 && entries[n-1].Checksum == entry.Checksum {
		return entries, false, nil
	}

	return append(entries, entry), true, nil
}

// Undo restores the most recent undo point and returns it. The document it
// replaces is pushed onto the redo stack.
func (h *History) Undo(ctx context.Context, ref identity.ContextRef) (*document.Document, error) {
	return h.step(ctx, ref, undoStack, redoStack)
}

// Redo restores the most recent redo point and returns it. The document it
// replaces is pushed onto the undo stack so a following Undo returns to it.
func (h *History) Redo(ctx context.Context, ref identity.ContextRef) (*document.Document, error) {
	return h.step(ctx, ref, redoStack, undoStack)
}

// step saves the restored document before either stack changes. A failed
// stack write puts back the previous document and stacks.
func (h *History) step(ctx context.Context, ref identity.ContextRef, from, to stack) (*document.Document, error) {
	source, err := h.read(ctx, ref, from)
	if err != nil {
		return nil, err
	}
	if len(source) == 0 || source[len(source)-1].StateData == nil {
		return nil, ErrHistoryEmpty
	}
	last := source[len(source)-1]

	current, err := h.store.Load(ctx, ref)
	switch {
	case errors.Is(err, ErrNotFound):
		current = nil
	case err != nil:
		return nil, err
	}

	target, err := h.read(ctx, ref, to)
	if err != nil {
		return nil, err
	}

	if err = h.store.Save(ctx, ref, last.StateData); err != nil {
		return nil, err
	}

	if current != nil {
		pushed, changed, err := pushEntry(target, current)
		if err != nil {
			h.rollback(ctx, ref, current, nil)
			return nil, err
		}
		if changed {
			if err = h.write(ctx, ref, to, pushed); err != nil {
				h.rollback(ctx, ref, current, map[stack][]HistoryEntry{to: target})
				return nil, err
			}
		}
	}

	if err = h.write(ctx, ref, from, source[:len(source)-1]); err != nil {
		h.rollback(ctx, ref, current, map[stack][]HistoryEntry{to: target, from: source})
		return nil, err
	}

	return last.StateData, nil
}

// rollback restores the document and stacks a failed step replaced.
// A nil document removes the current state.
func (h *History) rollback(ctx context.Context, ref identity.ContextRef, doc *document.Document, stacks map[stack][]HistoryEntry) {
	ctx = context.WithoutCancel(ctx)

	var err error
	if doc != nil {
		err = h.store.Save(ctx, ref, doc)
	} else {
		err = h.store.Delete(ctx, ref)
	}
	if err != nil {
		logrus.Errorf("rollback state %s: %v", ref, err)
	}

	for s, entries := range stacks {
		if err := h.write(ctx, ref, s, entries); err != nil {
			logrus.Errorf("rollback %v", err)
		}
	}
}

// Status returns the depth of the context's stacks.
func (h *History) Status(ctx context.Context, ref identity.ContextRef) (HistoryStatus, error) {
	undo, err := h.read(ctx, ref, undoStack)
	if err != nil {
		return HistoryStatus{}, err
	}

	redo, err := h.read(ctx, ref, redoStack)
	if err != nil {
		return HistoryStatus{}, err
	}

	return HistoryStatus{Undo: len(undo), Redo: len(redo)}, nil
}

// Entries returns a copy of the context's undo stack, oldest first.
func (h *History) Entries(ctx context.Context, ref identity.ContextRef) ([]HistoryEntry, error) {
	return h.read(ctx, ref, undoStack)
}

// Clear removes both stacks of a context.
func (h *History) Clear(ctx context.Context, ref identity.ContextRef) error {
	for _, s := range []stack{undoStack, redoStack} {
		if err := h.store.delete(ctx, ref, s.key(ref)); err != nil {
			return fmt.Errorf("clear history %s: %w", ref, err)
		}
	}

	return nil
}

// Move transfers both stacks from one context to another, replacing any
// history the target had.
func (h *History) Move(ctx context.Context, from, to identity.ContextRef) error {
	for _, s := range []stack{undoStack, redoStack} {
		entries, err := h.read(ctx, from, s)
		if err != nil {
			return err
		}
		if err = h.write(ctx, to, s, entries); err != nil {
			return err
		}
	}

	return h.Clear(ctx, from)
}

// Snapshot is a copy of both history stacks of one context.
type Snapshot struct {
	undo []HistoryEntry
	redo []HistoryEntry
}

// Snapshot reads both stacks of a context.
func (h *History) Snapshot(ctx context.Context, ref identity.ContextRef) (Snapshot, error) {
	undo, err := h.read(ctx, ref, undoStack)
	if err != nil {
		return Snapshot{}, err
	}

	redo, err := h.read(ctx, ref, redoStack)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{undo: undo, redo: redo}, nil
}

// Restore writes both stacks of a snapshot back to a context.
func (h *History) Restore(ctx context.Context, ref identity.ContextRef, snap Snapshot) error {
	return errors.Join(
		h.write(ctx, ref, undoStack, snap.undo),
		h.write(ctx, ref, redoStack, snap.redo),
	)
}

func (h *History) read(ctx context.Context, ref identity.ContextRef, s stack) ([]HistoryEntry, error) {
	data, err := h.store.get(ctx, ref, s.key(ref))
	if errors.Is(err, kv.ErrNotFound) {
		return []HistoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", ref, err)
	}

	var entries []HistoryEntry
	if err = json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("read history %s: %w", ref, err)
	}

	return entries, nil
}

func (h *History) write(ctx context.Context, ref identity.ContextRef, s stack, entries []HistoryEntry) error {
	if len(entries) > h.depth {
		entries = entries[len(entries)-h.depth:]
	}

	if len(entries) == 0 {
		if err := h.store.delete(ctx, ref, s.key(ref)); err != nil {
			return fmt.Errorf("write history %s: %w", ref, err)
		}
		return nil
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	if err = h.store.put(ctx, ref, s.key(ref), data); err != nil {
		return fmt.Errorf("write history %s: %w", ref, err)
	}

	return nil
}

func newEntry(doc *document.Document) (HistoryEntry, error) {
	sum, err := document.Checksum(doc)
	if err != nil {
		return HistoryEntry{}, err
	}

	return HistoryEntry{
		StateData: doc,
		Timestamp: time.Now().UTC(),
		Checksum:  sum,
	}, nil
}
