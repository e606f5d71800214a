package credstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yeshanjun/pollux/internal/credential"
)

func TestFileStore_UpsertAndLoadAllEnabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	enabled := &credential.Credential{
		Provider:     credential.ProviderGeminiCLI,
		Identity:     "proj-enabled",
		RefreshToken: "rt-enabled",
		Status:       credential.StatusEnabled,
	}
	disabled := &credential.Credential{
		Provider:     credential.ProviderCodex,
		Identity:     "acct-disabled",
		RefreshToken: "rt-disabled",
		Status:       credential.StatusDisabled,
	}

	require.NoError(t, store.Upsert(ctx, enabled))
	require.NoError(t, store.Upsert(ctx, disabled))

	got, err := store.LoadAllEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, enabled.Identity, got[0].Identity)
}

func TestFileStore_SetStatusAndSetToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cred := &credential.Credential{
		Provider:     credential.ProviderGeminiCLI,
		Identity:     "proj-1",
		RefreshToken: "rt-1",
		Status:       credential.StatusEnabled,
	}
	require.NoError(t, store.Upsert(ctx, cred))

	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, store.SetToken(ctx, cred.Key(), "new-access-token", expiresAt))
	require.NoError(t, store.SetStatus(ctx, cred.Key(), credential.StatusDisabled, "invalid_grant"))

	all, err := store.LoadAllEnabled(ctx)
	require.NoError(t, err)
	require.Empty(t, all)

	require.NoError(t, store.SetStatus(ctx, cred.Key(), credential.StatusEnabled, ""))
	all, err = store.LoadAllEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "new-access-token", all[0].AccessToken)
	require.True(t, expiresAt.Equal(all[0].AccessTokenExpiresAt))
}

func TestFileStore_SetStatusMissingCredential(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	err = store.SetStatus(ctx, credential.Key{Provider: credential.ProviderCodex, Identity: "missing"}, credential.StatusDisabled, "boom")
	require.Error(t, err)
}

func TestFileStore_UpsertNilCredential(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.Error(t, store.Upsert(context.Background(), nil))
}
