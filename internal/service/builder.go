package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emrgen/mediakit/internal/access"
	"github.com/emrgen/mediakit/internal/document"
	"github.com/emrgen/mediakit/internal/events"
	"github.com/emrgen/mediakit/internal/identity"
	"github.com/emrgen/mediakit/internal/metrics"
	"github.com/emrgen/mediakit/internal/registry"
	"github.com/emrgen/mediakit/internal/state"
	"github.com/emrgen/mediakit/internal/validator"
	"github.com/sirupsen/logrus"
)

// Save kinds recorded on the state saved event.
const (
	SaveManual         = "manual"
	SaveAuto           = "autosave"
	SaveSectionAdd     = "section_add"
	SaveSectionUpdate  = "section_update"
	SaveSectionDelete  = "section_delete"
	SaveSectionReorder = "section_reorder"
	SaveComponentAdd   = "component_add"
	SaveComponentEdit  = "component_update"
	SavePrune          = "prune"
	SaveTemplate       = "template"
	SaveImport         = "import"
)

// SaveOptions controls a save. An empty Tier skips tier gating.
type SaveOptions struct {
	Kind           string
	SkipValidation bool
	SkipUndo       bool
	Tier           access.Tier
}

// SaveResult describes a completed save. Changed is false when the stored
// document already had the same checksum and nothing was written.
type SaveResult struct {
	Checksum string
	Changed  bool
	SavedAt  time.Time
}

// BuilderDeps are the collaborators of a BuilderService. Nil registries,
// policy and notifier fall back to the built-in defaults.
type BuilderDeps struct {
	Store      *state.Store
	History    *state.History
	Locker     *state.Locker
	Validator  *validator.Validator
	Policy     *access.Policy
	Sections   *registry.SectionRegistry
	Components *registry.ComponentRegistry
	Templates  *registry.TemplateRegistry
	Notifier   events.Notifier
	Metrics    *metrics.Metrics
}

// BuilderService is the editing API of a media kit. Every operation holds
// the lock of its context for its whole read-modify-write cycle.
type BuilderService struct {
	store      *state.Store
	history    *state.History
	locker     *state.Locker
	validator  *validator.Validator
	policy     *access.Policy
	sections   *registry.SectionRegistry
	components *registry.ComponentRegistry
	templates  *registry.TemplateRegistry
	notifier   events.Notifier
	metrics    *metrics.Metrics
}

// NewBuilderService creates a builder service.
func NewBuilderService(deps BuilderDeps) *BuilderService {
	s := &BuilderService{
		store:      deps.Store,
		history:    deps.History,
		locker:     deps.Locker,
		validator:  deps.Validator,
		policy:     deps.Policy,
		sections:   deps.Sections,
		components: deps.Components,
		templates:  deps.Templates,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
	}

	if s.history == nil {
		s.history = state.NewHistory(s.store, state.DefaultHistoryDepth)
	}
	if s.locker == nil {
		s.locker = state.NewLocker()
	}
	if s.sections == nil {
		s.sections = registry.DefaultSectionRegistry()
	}
	if s.components == nil {
		s.components = registry.DefaultComponentRegistry()
	}
	if s.templates == nil {
		s.templates = registry.DefaultTemplateRegistry()
	}
	if s.validator == nil {
		s.validator = validator.New(s.sections, s.components)
	}
	if s.policy == nil {
		s.policy = access.DefaultPolicy()
	}
	if s.notifier == nil {
		s.notifier = events.Nop{}
	}

	return s
}

// Locker returns the per-context locker shared with other services.
func (s *BuilderService) Locker() *state.Locker {
	return s.locker
}

// Save migrates, validates and persists a document, recording the previous
// state as an undo point unless opts.SkipUndo is set.
func (s *BuilderService) Save(ctx context.Context, ref identity.ContextRef, doc *document.Document, opts SaveOptions) (res *SaveResult, err error) {
	defer s.observe("save", time.Now(), &err)

	unlock, err := s.locker.Lock(ref)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.save(ctx, ref, doc, opts)
}

// AutoSave persists a document without validation and without an undo point.
func (s *BuilderService) AutoSave(ctx context.Context, ref identity.ContextRef, doc *document.Document) (*SaveResult, error) {
	return s.Save(ctx, ref, doc, SaveOptions{Kind: SaveAuto, SkipValidation: true, SkipUndo: true})
}

func (s *BuilderService) save(ctx context.Context, ref identity.ContextRef, doc *document.Document, opts SaveOptions) (*SaveResult, error) {
	if opts.Kind == "" {
		opts.Kind = SaveManual
	}

	migrated, err := document.Migrate(doc)
	if err != nil {
		return nil, invalid("", document.CodeMissingField, "document is required")
	}
	migrated.Renormalize()

	if !opts.SkipValidation {
		if violations := s.validator.Validate(migrated); len(violations) > 0 {
			s.metrics.ValidationFailed()
			return nil, &ValidationError{Violations: violations}
		}
	}

	if opts.Tier != "" {
		if err := s.checkTier(migrated, opts.Tier); err != nil {
			return nil, err
		}
	}

	sum, err := document.Checksum(migrated)
	if err != nil {
		return nil, err
	}

	current, err := s.store.Load(ctx, ref)
	switch {
	case errors.Is(err, state.ErrNotFound), errors.Is(err, document.ErrMalformed):
		current = nil
	case err != nil:
		return nil, storageErr("load current state", err)
	}

	if current != nil {
		if prev, err := document.Checksum(current); err == nil && prev == sum {
			s.metrics.NoopSave()
			return &SaveResult{Checksum: sum, Changed: false}, nil
		}
	}

	if err := s.store.Save(ctx, ref, migrated); err != nil {
		return nil, storageErr("save state", err)
	}

	// a missing or unreadable current document leaves no undo point
	if !opts.SkipUndo && current != nil {
		if err := s.history.Push(ctx, ref, current); err != nil {
			if rerr := s.store.Save(context.WithoutCancel(ctx), ref, current); rerr != nil {
				logrus.Errorf("restore state of %s: %v", ref, rerr)
			}
			return nil, storageErr("push undo point", err)
		}
	}

	eventType := events.StateSaved
	if opts.Kind == SaveAuto {
		eventType = events.StateAutoSaved
	}
	s.notifier.Notify(ctx, events.New(eventType, ref.String(), map[string]string{
		"kind":     opts.Kind,
		"checksum": sum,
	}))

	return &SaveResult{Checksum: sum, Changed: true, SavedAt: time.Now().UTC()}, nil
}

func (s *BuilderService) checkTier(doc *document.Document, tier access.Tier) error {
	caps := s.policy.CapabilitiesFor(tier)
	if n := doc.ReferencedCount(); !access.WithinLimit(n, caps.MaxComponents) {
		return denied("tier %s allows %d components, document has %d", tier, caps.MaxComponents, n)
	}

	if !s.policy.CanAccessFeature(tier, access.FeaturePremiumSections) {
		for _, section := range doc.Sections {
			if st, ok := s.sections.Lookup(section.Type); ok && st.Premium() {
				return denied("section type %q requires %s", section.Type, access.FeaturePremiumSections)
			}
		}
	}

	if !s.policy.CanAccessFeature(tier, access.FeaturePremiumComponents) {
		for _, id := range doc.ReferencedIDs() {
			c := doc.Components[id]
			if c == nil {
				continue
			}
			if ct, ok := s.components.Lookup(c.Type); ok && ct.Premium {
				return denied("component type %q requires %s", c.Type, access.FeaturePremiumComponents)
			}
		}
	}

	return nil
}

// Load returns the current document of a context in the current schema.
// A stored legacy document is migrated and written back once so that the
// generated section ids stay stable.
func (s *BuilderService) Load(ctx context.Context, ref identity.ContextRef) (doc *document.Document, err error) {
	defer s.observe("load", time.Now(), &err)

	unlock, err := s.locker.Lock(ref)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.load(ctx, ref)
}

func (s *BuilderService) load(ctx context.Context, ref identity.ContextRef) (*document.Document, error) {
	doc, err := s.store.Load(ctx, ref)
	switch {
	case errors.Is(err, state.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, document.ErrMalformed):
		logrus.Warnf("stored document of %s is malformed", ref)
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	case err != nil:
		return nil, storageErr("load state", err)
	}

	if !doc.IsLegacy() {
		return doc, nil
	}

	migrated, err := document.Migrate(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	migrated.Renormalize()

	if err := s.store.Save(ctx, ref, migrated); err != nil {
		return nil, storageErr("save migrated state", err)
	}
	logrus.Infof("migrated document of %s to version %s", ref, migrated.Version)

	return migrated, nil
}

// Undo restores the most recent undo point.
func (s *BuilderService) Undo(ctx context.Context, ref identity.ContextRef) (doc *document.Document, err error) {
	defer s.observe("undo", time.Now(), &err)

	unlock, err := s.locker.Lock(ref)
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc, err = s.history.Undo(ctx, ref)
	if err != nil {
		return nil, historyErr(err)
	}
	s.notifier.Notify(ctx, events.New(events.StateUndone, ref.String(), nil))

	return doc, nil
}

// Redo re-applies the most recently undone state.
func (s *BuilderService) Redo(ctx context.Context, ref identity.ContextRef) (doc *document.Document, err error) {
	defer s.observe("redo", time.Now(), &err)

	unlock, err := s.locker.Lock(ref)
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc, err = s.history.Redo(ctx, ref)
	if err != nil {
		return nil, historyErr(err)
	}
	s.notifier.Notify(ctx, events.New(events.StateRedone, ref.String(), nil))

	return doc, nil
}

// HistoryStatus returns the depth of both history stacks.
func (s *BuilderService) HistoryStatus(ctx context.Context, ref identity.ContextRef) (state.HistoryStatus, error) {
	unlock, err := s.locker.Lock(ref)
	if err != nil {
		return state.HistoryStatus{}, err
	}
	defer unlock()

	status, err := s.history.Status(ctx, ref)
	if err != nil {
		return state.HistoryStatus{}, storageErr("read history", err)
	}

	return status, nil
}

// ClearHistory drops both history stacks of a context.
func (s *BuilderService) ClearHistory(ctx context.Context, ref identity.ContextRef) error {
	unlock, err := s.locker.Lock(ref)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.history.Clear(ctx, ref); err != nil {
		return storageErr("clear history", err)
	}

	return nil
}

func historyErr(err error) error {
	switch {
	case errors.Is(err, state.ErrHistoryEmpty):
		return err
	case errors.Is(err, document.ErrMalformed):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return storageErr("history", err)
	}
}

// mutate loads the document, applies fn and saves the result as one locked
// operation.
func (s *BuilderService) mutate(ctx context.Context, ref identity.ContextRef, opts SaveOptions, fn func(doc *document.Document) error) (*document.Document, error) {
	unlock, err := s.locker.Lock(ref)
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}

	if err := fn(doc); err != nil {
		return nil, err
	}
	doc.Renormalize()

	if _, err := s.save(ctx, ref, doc, opts); err != nil {
		return nil, err
	}

	return doc, nil
}

func (s *BuilderService) observe(op string, start time.Time, err *error) {
	s.metrics.ObserveOperation(op, start, *err)
}
