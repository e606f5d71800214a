package credstore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/yeshanjun/pollux/internal/credential"
)

func newMiniredisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStoreWithClient(client)
}

func TestRedisStore_UpsertAndLoadAllEnabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newMiniredisStore(t)
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

func TestRedisStore_SetStatusAndSetToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newMiniredisStore(t)
	t.Cleanup(func() { _ = store.Close() })

	cred := &credential.Credential{
		Provider:     credential.ProviderCodex,
		Identity:     "acct-1",
		RefreshToken: "rt-1",
		Status:       credential.StatusEnabled,
	}
	require.NoError(t, store.Upsert(ctx, cred))

	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, store.SetToken(ctx, cred.Key(), "fresh-token", expiresAt))

	got, err := store.LoadAllEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "fresh-token", got[0].AccessToken)

	require.NoError(t, store.SetStatus(ctx, cred.Key(), credential.StatusDisabled, "rate_limited"))
	got, err = store.LoadAllEnabled(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRedisStore_MutateMissingCredential(t *testing.T) {
	t.Parallel()
	store := newMiniredisStore(t)
	t.Cleanup(func() { _ = store.Close() })

	err := store.SetStatus(context.Background(), credential.Key{Provider: credential.ProviderGeminiCLI, Identity: "missing"}, credential.StatusDisabled, "boom")
	require.Error(t, err)
}
