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

// TestPostgresStore_Integration mirrors the teacher's
// postgres_backend_integration_test.go: a disposable postgres container,
// skipped in short mode or when Docker is unavailable.
func TestPostgresStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("postgres integration test skipped in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "pollux",
				"POSTGRES_USER":     "pollux",
				"POSTGRES_PASSWORD": "pollux",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://pollux:pollux@%s:%s/pollux?sslmode=disable", host, port.Port())
	store, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cred := &credential.Credential{
		Provider:     credential.ProviderGeminiCLI,
		Identity:     "proj-pg",
		RefreshToken: "rt-pg",
		Status:       credential.StatusEnabled,
	}
	require.NoError(t, store.Upsert(ctx, cred))

	got, err := store.LoadAllEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "proj-pg", got[0].Identity)

	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, store.SetToken(ctx, cred.Key(), "pg-access-token", expiresAt))
	require.NoError(t, store.SetStatus(ctx, cred.Key(), credential.StatusDisabled, "invalid_grant"))

	got, err = store.LoadAllEnabled(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}
