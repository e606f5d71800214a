package credstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/yeshanjun/pollux/internal/credential"
	"github.com/yeshanjun/pollux/internal/migrations"
)

// PostgresStore stores one row per credential, grounded in the teacher's
// internal/storage/postgres/postgres_storage.go (connection pool sizing,
// migration bootstrap via golang-migrate).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("credstore: open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("credstore: connect postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := migrations.PostgresUp(db); err != nil {
		return nil, fmt.Errorf("credstore: apply migrations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Upsert(ctx context.Context, cred *credential.Credential) error {
	if cred == nil {
		return fmt.Errorf("credstore: credential is nil")
	}
	var extras []byte
	if cred.ProviderExtras != nil {
		extras = cred.ProviderExtras
	}
	var expiresAt *time.Time
	if !cred.AccessTokenExpiresAt.IsZero() {
		expiresAt = &cred.AccessTokenExpiresAt
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO credentials (provider, identity, client_id, client_secret, refresh_token, access_token, access_token_expires_at, status, last_error, provider_extras)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (provider, identity) DO UPDATE SET
			client_id = EXCLUDED.client_id,
			client_secret = EXCLUDED.client_secret,
			refresh_token = EXCLUDED.refresh_token,
			access_token = EXCLUDED.access_token,
			access_token_expires_at = EXCLUDED.access_token_expires_at,
			status = EXCLUDED.status,
			last_error = EXCLUDED.last_error,
			provider_extras = EXCLUDED.provider_extras
	`, cred.Provider, cred.Identity, cred.ClientID, cred.ClientSecret, cred.RefreshToken,
		cred.AccessToken, expiresAt, cred.Status, cred.LastError, nullableJSON(extras))
	if err != nil {
		return fmt.Errorf("credstore: upsert credential: %w", err)
	}
	return nil
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

func (p *PostgresStore) LoadAllEnabled(ctx context.Context) ([]*credential.Credential, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT provider, identity, client_id, client_secret, refresh_token, access_token, access_token_expires_at, status, last_error, provider_extras
		FROM credentials WHERE status = $1
	`, credential.StatusEnabled)
	if err != nil {
		return nil, fmt.Errorf("credstore: load enabled credentials: %w", err)
	}
	defer rows.Close()

	var out []*credential.Credential
	for rows.Next() {
		var c credential.Credential
		var expiresAt sql.NullTime
		var extras []byte
		if err := rows.Scan(&c.Provider, &c.Identity, &c.ClientID, &c.ClientSecret, &c.RefreshToken,
			&c.AccessToken, &expiresAt, &c.Status, &c.LastError, &extras); err != nil {
			return nil, fmt.Errorf("credstore: scan credential: %w", err)
		}
		if expiresAt.Valid {
			c.AccessTokenExpiresAt = expiresAt.Time
		}
		if len(extras) > 0 {
			c.ProviderExtras = json.RawMessage(extras)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SetStatus(ctx context.Context, key credential.Key, status credential.Status, lastErr string) error {
	_, err := p.db.ExecContext(ctx, `UPDATE credentials SET status = $1, last_error = $2 WHERE provider = $3 AND identity = $4`,
		status, lastErr, key.Provider, key.Identity)
	if err != nil {
		return fmt.Errorf("credstore: set status: %w", err)
	}
	return nil
}

func (p *PostgresStore) SetToken(ctx context.Context, key credential.Key, accessToken string, expiresAt time.Time) error {
	_, err := p.db.ExecContext(ctx, `UPDATE credentials SET access_token = $1, access_token_expires_at = $2 WHERE provider = $3 AND identity = $4`,
		accessToken, expiresAt, key.Provider, key.Identity)
	if err != nil {
		return fmt.Errorf("credstore: set token: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
