package service

import (
	"context"
	"testing"
	"time"

	"github.com/emrgen/mediakit/internal/document"
	"github.com/emrgen/mediakit/internal/identity"
	"github.com/emrgen/mediakit/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareService_GenerateLinkIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := identity.User("42")

	first, err := f.shares.GenerateLink(ctx, ref, ShareOptions{})
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Za-z0-9]{10}$`, first.ShareID)
	assert.Equal(t, model.ShareAccessPublic, first.AccessType)

	second, err := f.shares.GenerateLink(ctx, ref, ShareOptions{})
	require.NoError(t, err)
	assert.Equal(t, first.ShareID, second.ShareID)

	regenerated, err := f.shares.GenerateLink(ctx, ref, ShareOptions{Regenerate: true})
	require.NoError(t, err)
	assert.NotEqual(t, first.ShareID, regenerated.ShareID)

	_, err = f.shares.Resolve(ctx, first.ShareID, "")
	assert.ErrorIs(t, err, ErrShareNotFound)

	other, err := f.shares.GenerateLink(ctx, identity.Guest("sess"), ShareOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, regenerated.ShareID, other.ShareID)
}

func TestShareService_Resolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := identity.User("42")

	link, err := f.shares.GenerateLink(ctx, ref, ShareOptions{})
	require.NoError(t, err)

	// the link exists before the document does
	_, err = f.shares.Resolve(ctx, link.ShareID, "")
	assert.ErrorIs(t, err, ErrNotFound)

	doc := kit("Ada")
	_, err = f.builder.Save(ctx, ref, doc, SaveOptions{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		shared, err := f.shares.Resolve(ctx, link.ShareID, "")
		require.NoError(t, err)
		assert.Equal(t, checksum(t, doc), checksum(t, shared.Document))
		assert.Equal(t, int64(i+1), shared.Link.ViewCount)
	}

	stored, err := f.store.GetShareLink(ctx, link.ShareID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.ViewCount)

	_, err = f.shares.Resolve(ctx, "nope", "")
	assert.ErrorIs(t, err, ErrShareNotFound)
}

func TestShareService_Password(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := identity.User("42")

	_, err := f.builder.Save(ctx, ref, kit("Ada"), SaveOptions{})
	require.NoError(t, err)

	_, err = f.shares.GenerateLink(ctx, ref, ShareOptions{AccessType: model.ShareAccessPassword})
	assert.Equal(t, []string{document.CodeMissingField}, violationCodes(t, err))

	link, err := f.shares.GenerateLink(ctx, ref, ShareOptions{AccessType: model.ShareAccessPassword, Password: "s3cret"})
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", link.PasswordHash)
	assert.NotContains(t, link.PasswordHash, "s3cret")

	tests := []struct {
		name     string
		password string
		err      error
	}{
		{name: "missing", password: "", err: ErrPasswordRequired},
		{name: "wrong", password: "guess", err: ErrInvalidPassword},
		{name: "right", password: "s3cret", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.shares.Resolve(ctx, link.ShareID, tt.password)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
			assert.ErrorIs(t, err, ErrPermissionDenied)
		})
	}

	stored, err := f.store.GetShareLink(ctx, link.ShareID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ViewCount)
}

func TestShareService_Expiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := identity.User("42")

	_, err := f.builder.Save(ctx, ref, kit("Ada"), SaveOptions{})
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Hour)
	link, err := f.shares.GenerateLink(ctx, ref, ShareOptions{
		AccessType: model.ShareAccessPassword,
		Password:   "s3cret",
		ExpiresAt:  &past,
	})
	require.NoError(t, err)

	// expiry is checked before the password
	_, err = f.shares.Resolve(ctx, link.ShareID, "wrong")
	assert.ErrorIs(t, err, ErrShareExpired)
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := f.store.GetShareLink(ctx, link.ShareID)
	require.NoError(t, err)
	assert.Zero(t, stored.ViewCount)

	future := time.Now().UTC().Add(time.Hour)
	_, err = f.shares.GenerateLink(ctx, identity.User("7"), ShareOptions{ExpiresAt: &future})
	require.NoError(t, err)

	n, err := f.shares.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.store.GetShareLink(ctx, link.ShareID)
	assert.Error(t, err)
}

func TestShareService_PrivateAndRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := identity.User("42")

	_, err := f.builder.Save(ctx, ref, kit("Ada"), SaveOptions{})
	require.NoError(t, err)

	link, err := f.shares.GenerateLink(ctx, ref, ShareOptions{AccessType: model.ShareAccessPrivate})
	require.NoError(t, err)
	_, err = f.shares.Resolve(ctx, link.ShareID, "")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.shares.GenerateLink(ctx, ref, ShareOptions{AccessType: "secret", Regenerate: true})
	assert.Equal(t, []string{document.CodeInvalidField}, violationCodes(t, err))

	require.NoError(t, f.shares.Revoke(ctx, ref))
	_, err = f.shares.Resolve(ctx, link.ShareID, "")
	assert.ErrorIs(t, err, ErrShareNotFound)
}

func TestShareService_Move(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guest, user := identity.Guest("sess"), identity.User("42")

	require.NoError(t, f.shares.Move(ctx, guest, user))

	link, err := f.shares.GenerateLink(ctx, guest, ShareOptions{})
	require.NoError(t, err)
	_, err = f.shares.GenerateLink(ctx, user, ShareOptions{})
	require.NoError(t, err)

	require.NoError(t, f.shares.Move(ctx, guest, user))

	moved, err := f.store.GetShareLinkByContext(ctx, user.String())
	require.NoError(t, err)
	assert.Equal(t, link.ShareID, moved.ShareID)

	_, err = f.store.GetShareLinkByContext(ctx, guest.String())
	assert.Error(t, err)
}
