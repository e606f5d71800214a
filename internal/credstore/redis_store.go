package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yeshanjun/pollux/internal/credential"
)

// RedisStore persists each credential as a JSON-encoded string value, with a set
// tracking the universe of known keys. Grounded in the teacher's
// internal/credential/adapter/redis_repo_cred.go, trimmed of the health-score
// fields the new scheduler does not need.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(ctx context.Context, databaseURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("credstore: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("credstore: connect redis: %w", err)
	}
	return &RedisStore{client: client, prefix: "pollux:cred:"}, nil
}

// NewRedisStoreWithClient wires an already-constructed client (used by
// tests against miniredis).
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "pollux:cred:"}
}

func (s *RedisStore) key(k credential.Key) string {
	return fmt.Sprintf("%s%s:%s", s.prefix, k.Provider, k.Identity)
}

func (s *RedisStore) setKey() string {
	return s.prefix + "index"
}

func (s *RedisStore) Upsert(ctx context.Context, cred *credential.Credential) error {
	if cred == nil {
		return fmt.Errorf("credstore: credential is nil")
	}
	data, err := json.Marshal(toRecord(cred))
	if err != nil {
		return fmt.Errorf("credstore: marshal credential: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(cred.Key()), data, 0)
	pipe.SAdd(ctx, s.setKey(), s.key(cred.Key()))
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("credstore: upsert credential: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadAllEnabled(ctx context.Context) ([]*credential.Credential, error) {
	keys, err := s.client.SMembers(ctx, s.setKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("credstore: list credential keys: %w", err)
	}
	out := make([]*credential.Credential, 0, len(keys))
	for _, k := range keys {
		data, err := s.client.Get(ctx, k).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("credstore: load credential %s: %w", k, err)
		}
		var rec fileRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if rec.Status != credential.StatusEnabled {
			continue
		}
		out = append(out, rec.toCredential())
	}
	return out, nil
}

func (s *RedisStore) mutate(ctx context.Context, key credential.Key, fn func(*fileRecord)) error {
	k := s.key(key)
	data, err := s.client.Get(ctx, k).Bytes()
	if err != nil {
		return fmt.Errorf("credstore: load credential %s/%s: %w", key.Provider, key.Identity, err)
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("credstore: parse credential: %w", err)
	}
	fn(&rec)
	out, err := json.Marshal(&rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, k, out, 0).Err()
}

func (s *RedisStore) SetStatus(ctx context.Context, key credential.Key, status credential.Status, lastErr string) error {
	return s.mutate(ctx, key, func(r *fileRecord) {
		r.Status = status
		r.LastError = lastErr
	})
}

func (s *RedisStore) SetToken(ctx context.Context, key credential.Key, accessToken string, expiresAt time.Time) error {
	return s.mutate(ctx, key, func(r *fileRecord) {
		r.AccessToken = accessToken
		r.AccessTokenExpiresAt = expiresAt
	})
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
