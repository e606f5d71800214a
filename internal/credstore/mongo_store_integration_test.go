package credstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/yeshanjun/pollux/internal/credential"
)

// TestMongoStore_Integration mirrors the teacher's
// mongodb_backend_integration_test.go: a disposable mongo container,
// skipped in short mode or when Docker is unavailable.
func TestMongoStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("mongodb integration test skipped in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7.0",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("mongodb container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017/tcp")
	require.NoError(t, err)

	uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	store, err := NewMongoStore(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cred := &credential.Credential{
		Provider:     credential.ProviderCodex,
		Identity:     "acct-mongo",
		RefreshToken: "rt-mongo",
		Status:       credential.StatusEnabled,
	}
	require.NoError(t, store.Upsert(ctx, cred))

	got, err := store.LoadAllEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "acct-mongo", got[0].Identity)

	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, store.SetToken(ctx, cred.Key(), "mongo-access-token", expiresAt))
	require.NoError(t, store.SetStatus(ctx, cred.Key(), credential.StatusDisabled, "invalid_grant"))

	got, err = store.LoadAllEnabled(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}
