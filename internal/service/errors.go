package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/emrgen/mediakit/internal/document"
	"github.com/emrgen/mediakit/internal/state"
)

var (
	// ErrNotFound is returned when a context, job, share link or template does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied is returned when the caller's tier does not allow an operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStorage is returned when a storage collaborator fails.
	ErrStorage = errors.New("storage failure")
	// ErrRender is returned when rendering an export fails.
	ErrRender = errors.New("render failure")
	// ErrUnsupportedFormat is returned for unknown export formats.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrAlreadyExists is returned when a promotion target already has a document.
	ErrAlreadyExists = errors.New("document already exists")

	ErrSectionNotFound   = fmt.Errorf("section %w", ErrNotFound)
	ErrComponentNotFound = fmt.Errorf("component %w", ErrNotFound)
	ErrTemplateNotFound  = fmt.Errorf("template %w", ErrNotFound)
	ErrJobNotFound       = fmt.Errorf("export job %w", ErrNotFound)
	ErrShareNotFound     = fmt.Errorf("share link %w", ErrNotFound)
	ErrShareExpired      = fmt.Errorf("share link expired: %w", ErrNotFound)

	ErrPasswordRequired = fmt.Errorf("password required: %w", ErrPermissionDenied)
	ErrInvalidPassword  = fmt.Errorf("invalid password: %w", ErrPermissionDenied)

	ErrHistoryEmpty = state.ErrHistoryEmpty
	ErrContextBusy  = state.ErrContextBusy
)

// ValidationError carries every violation of a rejected document.
type ValidationError struct {
	Violations []document.Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}

	return fmt.Sprintf("document has %d violation(s): %s", len(e.Violations), strings.Join(parts, "; "))
}

// Codes returns the violation codes in order.
func (e *ValidationError) Codes() []string {
	codes := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		codes = append(codes, v.Code)
	}

	return codes
}

func invalid(path, code, message string) *ValidationError {
	return &ValidationError{Violations: []document.Violation{{Path: path, Code: code, Message: message}}}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

func denied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, fmt.Sprintf(format, args...))
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
