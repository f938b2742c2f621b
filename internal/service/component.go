package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/emrgen/mediakit/internal/access"
	"github.com/emrgen/mediakit/internal/document"
	"github.com/emrgen/mediakit/internal/events"
	"github.com/emrgen/mediakit/internal/identity"
	"github.com/emrgen/mediakit/internal/state"
	"github.com/sirupsen/logrus"
)

// ComponentUpdate replaces the data or styles of a component. Nil fields
// are left untouched.
type ComponentUpdate struct {
	Data   map[string]any
	Styles map[string]any
}

// AddComponent creates a component and references it from a section. For
// columned layouts an empty column means the first column of the layout.
func (s *BuilderService) AddComponent(ctx context.Context, ref identity.ContextRef, sectionID, column string, data document.Component, tier access.Tier) (component *document.Component, err error) {
	defer s.observe("add_component", time.Now(), &err)

	ct, ok := s.components.Lookup(data.Type)
	if !ok {
		return nil, invalid("type", document.CodeUnknownComponentType, fmt.Sprintf("unknown component type %q", data.Type))
	}
	if tier != "" && ct.Premium && !s.policy.CanAccessFeature(tier, access.FeaturePremiumComponents) {
		return nil, denied("component type %q requires %s", data.Type, access.FeaturePremiumComponents)
	}

	now := time.Now().UTC()
	component = &document.Component{
		Type:   data.Type,
		Data:   copyMap(data.Data),
		Styles: data.Styles,
		Metadata: &document.ComponentMetadata{
			CreatedAt:     now,
			UpdatedAt:     now,
			SchemaVersion: document.CurrentVersion,
		},
	}

	_, err = s.mutate(ctx, ref, SaveOptions{Kind: SaveComponentAdd, Tier: tier}, func(doc *document.Document) error {
		section, ok := doc.Section(sectionID)
		if !ok {
			return ErrSectionNotFound
		}

		col := column
		if cols := section.Layout.Columns(); len(cols) > 0 {
			if col == "" {
				col = cols[0]
			}
			if !slices.Contains(cols, col) {
				return invalid("column", document.CodeInvalidField, fmt.Sprintf("layout %q has no column %q", section.Layout, col))
			}
			if !section.Components.IsColumns() {
				section.Reshape(section.Layout)
			}
		}

		component.ID = data.ID
		if _, taken := doc.Components[component.ID]; component.ID == "" || taken {
			component.ID = document.NewComponentID()
		}

		doc.Components[component.ID] = component
		section.Components = section.Components.Append(col, component.ID)

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, events.New(events.ComponentAdded, ref.String(), map[string]string{
		"section_id":   sectionID,
		"component_id": component.ID,
		"type":         component.Type,
	}))

	return component, nil
}

// UpdateComponent changes a component in place. Its type cannot change.
func (s *BuilderService) UpdateComponent(ctx context.Context, ref identity.ContextRef, componentID string, update ComponentUpdate) (component *document.Component, err error) {
	defer s.observe("update_component", time.Now(), &err)

	_, err = s.mutate(ctx, ref, SaveOptions{Kind: SaveComponentEdit}, func(doc *document.Document) error {
		c, ok := doc.Components[componentID]
		if !ok || c == nil {
			return ErrComponentNotFound
		}

		if update.Data != nil {
			c.Data = copyMap(update.Data)
		}
		if update.Styles != nil {
			c.Styles = copyMap(update.Styles)
		}

		now := time.Now().UTC()
		if c.Metadata == nil {
			c.Metadata = &document.ComponentMetadata{CreatedAt: now, SchemaVersion: document.CurrentVersion}
		}
		c.Metadata.UpdatedAt = now
		component = c

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, events.New(events.ComponentUpdated, ref.String(), map[string]string{"component_id": componentID}))

	return component, nil
}

// PruneOrphans deletes components no section references and returns their
// ids. Nothing is saved when there are none.
func (s *BuilderService) PruneOrphans(ctx context.Context, ref identity.ContextRef) (pruned []string, err error) {
	defer s.observe("prune_orphans", time.Now(), &err)

	unlock, err := s.locker.Lock(ref)
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}

	pruned = doc.PruneOrphans()
	if len(pruned) == 0 {
		return pruned, nil
	}

	if _, err := s.save(ctx, ref, doc, SaveOptions{Kind: SavePrune, SkipValidation: true}); err != nil {
		return nil, err
	}

	return pruned, nil
}

// CreateFromTemplate replaces the document of a context with a fresh one
// built from a template. The previous document, if any, becomes an undo
// point.
func (s *BuilderService) CreateFromTemplate(ctx context.Context, ref identity.ContextRef, name string, tier access.Tier) (doc *document.Document, err error) {
	defer s.observe("create_from_template", time.Now(), &err)

	tpl, ok := s.templates.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	if !s.policy.CanAccessTemplate(tier, name) {
		return nil, denied("template %q is not available to tier %s", name, tier)
	}

	unlock, err := s.locker.Lock(ref)
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc = tpl.Build()
	if _, err := s.save(ctx, ref, doc, SaveOptions{Kind: SaveTemplate, Tier: tier}); err != nil {
		return nil, err
	}

	return doc, nil
}

// Promote moves the document and history of a guest session to a user.
// It fails with ErrAlreadyExists when the user has a document, unless
// overwrite is set.
func (s *BuilderService) Promote(ctx context.Context, guest, user identity.ContextRef, overwrite bool) (err error) {
	defer s.observe("promote", time.Now(), &err)

	unlock, err := s.locker.LockPair(guest, user)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := s.load(ctx, guest)
	if err != nil {
		return err
	}

	if !overwrite {
		if _, err := s.load(ctx, user); err == nil {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, user)
		} else if !isNotFound(err) {
			return err
		}
	}

	previous, err := s.store.Load(ctx, user)
	switch {
	case errors.Is(err, state.ErrNotFound), errors.Is(err, document.ErrMalformed):
		previous = nil
	case err != nil:
		return storageErr("load user state", err)
	}
	userHistory, err := s.history.Snapshot(ctx, user)
	if err != nil {
		return storageErr("read history", err)
	}
	guestHistory, err := s.history.Snapshot(ctx, guest)
	if err != nil {
		return storageErr("read history", err)
	}

	rollback := func() {
		ctx := context.WithoutCancel(ctx)
		var rerr error
		if previous != nil {
			rerr = s.store.Save(ctx, user, previous)
		} else {
			rerr = s.store.Delete(ctx, user)
		}
		rerr = errors.Join(rerr,
			s.history.Restore(ctx, user, userHistory),
			s.history.Restore(ctx, guest, guestHistory),
		)
		if rerr != nil {
			logrus.Errorf("rollback promotion of %s: %v", guest, rerr)
		}
	}

	if err := s.store.Save(ctx, user, doc); err != nil {
		rollback()
		return storageErr("save promoted state", err)
	}
	if err := s.history.Move(ctx, guest, user); err != nil {
		rollback()
		return storageErr("move history", err)
	}
	if err := s.store.Delete(ctx, guest); err != nil {
		rollback()
		return storageErr("delete guest state", err)
	}

	s.notifier.Notify(ctx, events.New(events.StatePromoted, user.String(), map[string]string{"from": guest.String()}))

	return nil
}
