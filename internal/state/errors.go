package state

import "errors"

var (
	// ErrNotFound is returned when a context has no stored document.
	ErrNotFound = errors.New("document not found")
	// ErrHistoryEmpty is returned by Undo and Redo when there is nothing to restore.
	ErrHistoryEmpty = errors.New("history is empty")
	// ErrContextBusy is returned when a context lock could not be acquired.
	ErrContextBusy = errors.New("context is busy")
)
