package identity

import (
	"testing"

	"github.com/emrgen/mediakit/internal/access"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    ContextRef
		wantErr bool
	}{
		{in: "user:42", want: User("42")},
		{in: "guest:abc:def", want: Guest("abc:def")},
		{in: "42", wantErr: true},
		{in: "user:", wantErr: true},
		{in: "admin:1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRef)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestCaller_Ref(t *testing.T) {
	ref, err := Caller{LoggedIn: true, UserID: "7", SessionID: "s"}.Ref()
	require.NoError(t, err)
	assert.True(t, ref.IsUser())

	ref, err = Caller{SessionID: "s"}.Ref()
	require.NoError(t, err)
	assert.True(t, ref.IsGuest())

	_, err = Caller{}.Ref()
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = Caller{LoggedIn: true}.Ref()
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestCaller_Tier(t *testing.T) {
	assert.Equal(t, access.TierGuest, Caller{Tags: []string{"pro_user"}}.Tier())
	assert.Equal(t, access.TierPro, Caller{LoggedIn: true, UserID: "1", Tags: []string{"pro_user"}}.Tier())
}
