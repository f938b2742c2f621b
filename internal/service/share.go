package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/emrgen/mediakit/internal/document"
	"github.com/emrgen/mediakit/internal/events"
	"github.com/emrgen/mediakit/internal/identity"
	"github.com/emrgen/mediakit/internal/metrics"
	"github.com/emrgen/mediakit/internal/model"
	"github.com/emrgen/mediakit/internal/state"
	"github.com/emrgen/mediakit/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	shareIDLength   = 10
	shareIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	shareIDAttempts = 8
)

// ShareOptions configure GenerateLink.
type ShareOptions struct {
	AccessType model.ShareAccess
	Password   string
	ExpiresAt  *time.Time
	Regenerate bool
}

// SharedDocument is the result of resolving a share link.
type SharedDocument struct {
	Link     *model.ShareLink
	Document *document.Document
}

// ShareDeps are the collaborators of a ShareService.
type ShareDeps struct {
	Builder  *BuilderService
	Store    store.Store
	Locker   *state.Locker
	Notifier events.Notifier
	Metrics  *metrics.Metrics
}

// ShareService issues and resolves share links. A context has at most one
// link.
type ShareService struct {
	builder  *BuilderService
	store    store.Store
	locker   *state.Locker
	notifier events.Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewShareService creates a share service.
func NewShareService(deps ShareDeps) *ShareService {
	s := &ShareService{
		builder:  deps.Builder,
		store:    deps.Store,
		locker:   deps.Locker,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}

	if s.locker == nil {
		s.locker = deps.Builder.Locker()
	}
	if s.notifier == nil {
		s.notifier = events.Nop{}
	}

	return s
}

// GenerateLink returns the share link of a context, creating one when none
// exists or when opts.Regenerate is set.
func (s *ShareService) GenerateLink(ctx context.Context, ref identity.ContextRef, opts ShareOptions) (*model.ShareLink, error) {
	access := opts.AccessType
	if access == "" {
		access = model.ShareAccessPublic
	}

	switch access {
	case model.ShareAccessPublic, model.ShareAccessPrivate:
	case model.ShareAccessPassword:
		if opts.Password == "" {
			return nil, invalid("password", document.CodeMissingField, "password is required for password protected links")
		}
	default:
		return nil, invalid("access_type", document.CodeInvalidField, fmt.Sprintf("unknown access type %q", access))
	}

	unlock, err := s.locker.Lock(ref)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.store.GetShareLinkByContext(ctx, ref.String())
	switch {
	case err == nil && !opts.Regenerate:
		return existing, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, storageErr("get share link", err)
	}

	link := &model.ShareLink{
		ContextID:  ref.String(),
		AccessType: access,
		ExpiresAt:  opts.ExpiresAt,
		CreatedAt:  s.now(),
	}
	if access == model.ShareAccessPassword {
		hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		link.PasswordHash = string(hash)
	}

	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.DeleteShareLinkByContext(ctx, link.ContextID); err != nil {
			return err
		}

		for i := 0; i < shareIDAttempts; i++ {
			id, err := newShareID()
			if err != nil {
				return err
			}

			_, err = tx.GetShareLink(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				link.ShareID = id
				return tx.CreateShareLink(ctx, link)
			}
			if err != nil {
				return err
			}
		}

		return fmt.Errorf("no free share id after %d attempts", shareIDAttempts)
	})
	if err != nil {
		return nil, storageErr("create share link", err)
	}

	logrus.Infof("created %s share link %s for %s", link.AccessType, link.ShareID, link.ContextID)
	s.notifier.Notify(ctx, events.New(events.ShareCreated, link.ContextID, map[string]string{
		"share_id":    link.ShareID,
		"access_type": string(link.AccessType),
	}))

	return link, nil
}

// Resolve returns the document behind a share link. Expiry is checked
// before the password; the view count only grows on success.
func (s *ShareService) Resolve(ctx context.Context, shareID, password string) (shared *SharedDocument, err error) {
	defer func() {
		s.metrics.ShareResolved(resolution(err))
	}()

	link, err := s.store.GetShareLink(ctx, shareID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrShareNotFound
	}
	if err != nil {
		return nil, storageErr("get share link", err)
	}

	if link.Expired(s.now()) {
		return nil, ErrShareExpired
	}

	switch link.AccessType {
	case model.ShareAccessPrivate:
		return nil, denied("share link %s is private", shareID)
	case model.ShareAccessPassword:
		if password == "" {
			return nil, ErrPasswordRequired
		}
		if bcrypt.CompareHashAndPassword([]byte(link.PasswordHash), []byte(password)) != nil {
			return nil, ErrInvalidPassword
		}
	}

	ref, err := identity.Parse(link.ContextID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShareNotFound, err)
	}

	doc, err := s.builder.Load(ctx, ref)
	if err != nil {
		return nil, err
	}

	if err := s.store.IncrementShareViews(ctx, shareID); err != nil {
		return nil, storageErr("count share view", err)
	}
	link.ViewCount++

	s.notifier.Notify(ctx, events.New(events.ShareViewed, link.ContextID, map[string]string{"share_id": shareID}))

	return &SharedDocument{Link: link, Document: doc}, nil
}

// Revoke deletes the share link of a context.
func (s *ShareService) Revoke(ctx context.Context, ref identity.ContextRef) error {
	if err := s.store.DeleteShareLinkByContext(ctx, ref.String()); err != nil {
		return storageErr("delete share link", err)
	}
	s.notifier.Notify(ctx, events.New(events.ShareRevoked, ref.String(), nil))

	return nil
}

// Move hands the share link of one context to another, replacing any link
// the target had.
func (s *ShareService) Move(ctx context.Context, from, to identity.ContextRef) error {
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.GetShareLinkByContext(ctx, from.String()); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		if err := tx.DeleteShareLinkByContext(ctx, to.String()); err != nil {
			return err
		}

		return tx.MoveShareLink(ctx, from.String(), to.String())
	})
	if err != nil {
		return storageErr("move share link", err)
	}

	return nil
}

// SweepExpired deletes expired links.
func (s *ShareService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpiredShareLinks(ctx, s.now())
	if err != nil {
		return 0, storageErr("delete expired share links", err)
	}
	if n > 0 {
		logrus.Infof("removed %d expired share links", n)
	}

	return n, nil
}

func newShareID() (string, error) {
	max := big.NewInt(int64(len(shareIDAlphabet)))
	id := make([]byte, shareIDLength)
	for i := range id {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		id[i] = shareIDAlphabet[n.Int64()]
	}

	return string(id), nil
}

func resolution(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrShareExpired):
		return "expired"
	case errors.Is(err, ErrPasswordRequired):
		return "password_required"
	case errors.Is(err, ErrInvalidPassword):
		return "invalid_password"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermissionDenied):
		return "denied"
	default:
		return "error"
	}
}
