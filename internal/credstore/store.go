// Package credstore implements the Credential Store (spec §4.1): durable
// upsert/load of credentials keyed by (provider, identity), the single
// source of truth across restarts. In-memory queues are rebuilt from
// LoadAllEnabled at boot; the Scheduler Actor never talks to a backend
// directly, only through this interface.
package credstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/yeshanjun/pollux/internal/credential"
)

// Store is the durable key-value mapping from (provider, identity) to
// Credential rows, plus the bulk "load all enabled" operation used once at
// startup.
type Store interface {
	// Upsert replaces a credential by (provider, identity), atomically.
	Upsert(ctx context.Context, cred *credential.Credential) error
	// LoadAllEnabled returns an unordered list of every Enabled credential.
	LoadAllEnabled(ctx context.Context) ([]*credential.Credential, error)
	// SetStatus transitions a credential's lifecycle status.
	SetStatus(ctx context.Context, key credential.Key, status credential.Status, lastErr string) error
	// SetToken persists a refreshed access token and its expiry.
	SetToken(ctx context.Context, key credential.Key, accessToken string, expiresAt time.Time) error
	// Close releases backend resources (connections, file handles).
	Close() error
}

// Open selects a Store implementation from a database_url scheme, mirroring
// the teacher's storage-backend switch in cmd/server/main.go.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("credstore: database_url is required")
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("credstore: invalid database_url: %w", err)
	}
	switch u.Scheme {
	case "file", "":
		dir := u.Path
		if dir == "" {
			dir = u.Opaque
		}
		return NewFileStore(dir)
	case "redis", "rediss":
		return NewRedisStore(ctx, databaseURL)
	case "postgres", "postgresql":
		return NewPostgresStore(ctx, databaseURL)
	case "mongodb", "mongodb+srv":
		return NewMongoStore(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("credstore: unsupported database_url scheme %q", u.Scheme)
	}
}
