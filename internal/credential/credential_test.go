package credential

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredential_NeedsRefresh(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	margin := 30 * time.Second

	cases := []struct {
		name string
		cred Credential
		want bool
	}{
		{
			name: "no access token",
			cred: Credential{},
			want: true,
		},
		{
			name: "zero expiry",
			cred: Credential{AccessToken: "tok"},
			want: true,
		},
		{
			name: "expired",
			cred: Credential{AccessToken: "tok", AccessTokenExpiresAt: now.Add(-time.Minute)},
			want: true,
		},
		{
			name: "inside safety margin",
			cred: Credential{AccessToken: "tok", AccessTokenExpiresAt: now.Add(10 * time.Second)},
			want: true,
		},
		{
			name: "comfortably valid",
			cred: Credential{AccessToken: "tok", AccessTokenExpiresAt: now.Add(time.Hour)},
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cred.NeedsRefresh(now, margin))
		})
	}
}

func TestCredential_Clone_IsIndependent(t *testing.T) {
	original := &Credential{
		Provider:       ProviderGeminiCLI,
		Identity:       "alice",
		RefreshToken:   "rt",
		ProviderExtras: []byte(`{"project_id":"p1"}`),
	}

	clone := original.Clone()
	require.NotSame(t, original, clone)

	clone.Identity = "bob"
	clone.ProviderExtras[2] = 'X'

	assert.Equal(t, "alice", original.Identity)
	assert.Equal(t, `{"project_id":"p1"}`, string(original.ProviderExtras))
}

func TestCredential_Clone_Nil(t *testing.T) {
	var c *Credential
	assert.Nil(t, c.Clone())
}

func TestCredential_Key(t *testing.T) {
	c := &Credential{Provider: ProviderCodex, Identity: "carol"}
	assert.Equal(t, Key{Provider: ProviderCodex, Identity: "carol"}, c.Key())
}
