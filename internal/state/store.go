// Package state persists the current document of each context together
// with its undo and redo history.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emrgen/mediakit/internal/document"
	"github.com/emrgen/mediakit/internal/identity"
	"github.com/emrgen/mediakit/internal/kv"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheSize = 1024
	DefaultTimeout   = 5 * time.Second
)

func stateKey(ref identity.ContextRef) string {
	return "state:" + ref.String()
}

// Store routes documents to the user or guest backend and keeps a
// read-through cache of decoded documents. The cache entry for a context is
// replaced on every save.
type Store struct {
	users   kv.Store
	guests  kv.Store
	cache   *lru.Cache[string, *document.Document]
	loads   singleflight.Group
	timeout time.Duration
}

// Option configures a Store.
type Option func(*Store) error

// WithCacheSize sets the number of cached documents.
func WithCacheSize(size int) Option {
	return func(s *Store) error {
		cache, err := lru.New[string, *document.Document](size)
		if err != nil {
			return err
		}
		s.cache = cache
		return nil
	}
}

// WithTimeout bounds backend calls made with a context that has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) error {
		s.timeout = d
		return nil
	}
}

// NewStore creates a store persisting user documents to users and guest
// documents to guests.
func NewStore(users, guests kv.Store, opts ...Option) (*Store, error) {
	s := &Store{
		users:   users,
		guests:  guests,
		timeout: DefaultTimeout,
	}

	opts = append([]Option{WithCacheSize(DefaultCacheSize)}, opts...)
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Backend returns the store that holds the context's data.
func (s *Store) Backend(ref identity.ContextRef) kv.Store {
	if ref.IsGuest() {
		return s.guests
	}

	return s.users
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.timeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, s.timeout)
}

// Save persists the document as the context's current state.
func (s *Store) Save(ctx context.Context, ref identity.ContextRef, doc *document.Document) error {
	data, err := document.Encode(doc)
	if err != nil {
		return err
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err = s.Backend(ref).Put(ctx, stateKey(ref), data); err != nil {
		s.cache.Remove(ref.String())
		return fmt.Errorf("save %s: %w", ref, err)
	}

	cached, err := document.Decode(data)
	if err != nil {
		s.cache.Remove(ref.String())
		return nil
	}
	s.cache.Add(ref.String(), cached)

	return nil
}

// Load returns the context's current document or ErrNotFound. Stored bytes
// that do not decode as a document return an error wrapping
// document.ErrMalformed.
func (s *Store) Load(ctx context.Context, ref identity.ContextRef) (*document.Document, error) {
	key := ref.String()
	if doc, ok := s.cache.Get(key); ok {
		return doc.Clone()
	}

	v, err, _ := s.loads.Do(key, func() (interface{}, error) {
		ctx, cancel := s.bound(ctx)
		defer cancel()

		data, err := s.Backend(ref).Get(ctx, stateKey(ref))
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", ref, err)
		}

		doc, err := document.Decode(data)
		if err != nil {
			logrus.Warnf("stored document for %s is malformed", ref)
			return nil, err
		}
		s.cache.Add(key, doc)

		return doc, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*document.Document).Clone()
}

// Delete removes the context's current document.
func (s *Store) Delete(ctx context.Context, ref identity.ContextRef) error {
	s.cache.Remove(ref.String())

	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.Backend(ref).Delete(ctx, stateKey(ref)); err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}

	return nil
}

// Invalidate drops the cached document of a context.
func (s *Store) Invalidate(ref identity.ContextRef) {
	s.cache.Remove(ref.String())
}

// get and put give the history manager bounded access to the context's backend.
func (s *Store) get(ctx context.Context, ref identity.ContextRef, key string) ([]byte, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	return s.Backend(ref).Get(ctx, key)
}

func (s *Store) put(ctx context.Context, ref identity.ContextRef, key string, value []byte) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	return s.Backend(ref).Put(ctx, key, value)
}

func (s *Store) delete(ctx context.Context, ref identity.ContextRef, key string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	return s.Backend(ref).Delete(ctx, key)
}
