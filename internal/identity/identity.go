package identity

import (
	"errors"
	"strings"

	"github.com/emrgen/mediakit/internal/access"
)

var (
	ErrInvalidRef = errors.New("invalid context reference")
	ErrNoSession  = errors.New("anonymous caller without a session id")
	ErrNoUser     = errors.New("logged in caller without a user id")
)

// Kind distinguishes registered users from guest sessions.
type Kind int

const (
	KindUser Kind = iota + 1
	KindGuest
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindGuest:
		return "guest"
	default:
		return "unknown"
	}
}

// ContextRef identifies the owner of a document: a user or a guest session.
// It is built once at the boundary and passed around explicitly.
type ContextRef struct {
	kind Kind
	id   string
}

// User references a registered user's document.
func User(id string) ContextRef {
	return ContextRef{kind: KindUser, id: id}
}

// Guest references a guest session's document.
func Guest(sessionID string) ContextRef {
	return ContextRef{kind: KindGuest, id: sessionID}
}

// Parse reads the String form of a reference.
func Parse(s string) (ContextRef, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return ContextRef{}, ErrInvalidRef
	}

	switch kind {
	case "user":
		return User(id), nil
	case "guest":
		return Guest(id), nil
	default:
		return ContextRef{}, ErrInvalidRef
	}
}

func (r ContextRef) Kind() Kind { return r.kind }
func (r ContextRef) ID() string { return r.id }
func (r ContextRef) IsGuest() bool { return r.kind == KindGuest }
func (r ContextRef) IsUser() bool { return r.kind == KindUser }
func (r ContextRef) IsZero() bool { return r.kind == 0 || r.id == "" }

// String renders the reference as "user:<id>" or "guest:<session>".
func (r ContextRef) String() string {
	return r.kind.String() + ":" + r.id
}

// Caller is what the identity collaborator knows about a request.
type Caller struct {
	LoggedIn  bool
	UserID    string
	SessionID string
	Tags      []string
}

// Ref resolves the caller's document context.
func (c Caller) Ref() (ContextRef, error) {
	if c.LoggedIn {
		if c.UserID == "" {
			return ContextRef{}, ErrNoUser
		}
		return User(c.UserID), nil
	}

	if c.SessionID == "" {
		return ContextRef{}, ErrNoSession
	}

	return Guest(c.SessionID), nil
}

// Tier resolves the caller's access tier from their tags.
func (c Caller) Tier() access.Tier {
	return access.ResolveTier(c.Tags, c.LoggedIn)
}
