package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/yeshanjun/pollux/internal/credential"
)

// FileStore is a directory of one JSON file per credential, keyed by
// "<provider>_<identity>.json". Grounded in the teacher's
// internal/credential/source_file.go; adapted to the (provider, identity)
// key and the Store interface instead of the ID-keyed CredentialSource.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	clean := filepath.Clean(dir)
	if err := os.MkdirAll(clean, 0o700); err != nil {
		return nil, fmt.Errorf("credstore: prepare directory: %w", err)
	}
	return &FileStore{dir: clean}, nil
}

type fileRecord struct {
	Provider             credential.Provider `json:"provider"`
	Identity             string              `json:"identity"`
	ClientID             string              `json:"client_id,omitempty"`
	ClientSecret         string              `json:"client_secret,omitempty"`
	RefreshToken         string              `json:"refresh_token"`
	AccessToken          string              `json:"access_token,omitempty"`
	AccessTokenExpiresAt time.Time           `json:"access_token_expires_at,omitempty"`
	Status               credential.Status   `json:"status"`
	LastError            string              `json:"last_error,omitempty"`
	ProviderExtras       json.RawMessage     `json:"provider_extras,omitempty"`
}

func toRecord(c *credential.Credential) *fileRecord {
	return &fileRecord{
		Provider:             c.Provider,
		Identity:             c.Identity,
		ClientID:             c.ClientID,
		ClientSecret:         c.ClientSecret,
		RefreshToken:         c.RefreshToken,
		AccessToken:          c.AccessToken,
		AccessTokenExpiresAt: c.AccessTokenExpiresAt,
		Status:               c.Status,
		LastError:            c.LastError,
		ProviderExtras:       c.ProviderExtras,
	}
}

func (r *fileRecord) toCredential() *credential.Credential {
	return &credential.Credential{
		Provider:             r.Provider,
		Identity:             r.Identity,
		ClientID:             r.ClientID,
		ClientSecret:         r.ClientSecret,
		RefreshToken:         r.RefreshToken,
		AccessToken:          r.AccessToken,
		AccessTokenExpiresAt: r.AccessTokenExpiresAt,
		Status:               r.Status,
		LastError:            r.LastError,
		ProviderExtras:       r.ProviderExtras,
	}
}

func fileName(key credential.Key) string {
	id := strings.ReplaceAll(key.Identity, string(filepath.Separator), "_")
	return fmt.Sprintf("%s_%s.json", key.Provider, id)
}

func (s *FileStore) path(key credential.Key) string {
	return filepath.Join(s.dir, fileName(key))
}

// Upsert replaces a credential file atomically via write-then-rename, the
// same pattern as the teacher's FileStateStore.Persist.
func (s *FileStore) Upsert(_ context.Context, cred *credential.Credential) error {
	if cred == nil {
		return fmt.Errorf("credstore: credential is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(toRecord(cred), "", "  ")
	if err != nil {
		return fmt.Errorf("credstore: marshal credential: %w", err)
	}
	p := s.path(cred.Key())
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("credstore: write credential: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("credstore: rename credential: %w", err)
	}
	return nil
}

// LoadAllEnabled scans the directory for every Enabled credential file.
func (s *FileStore) LoadAllEnabled(_ context.Context) ([]*credential.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("credstore: read directory: %w", err)
	}
	var out []*credential.Credential
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
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

func (s *FileStore) mutate(key credential.Key, fn func(*fileRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.path(key)
	data, err := os.ReadFile(p)
	if err != nil {
		return fmt.Errorf("credstore: read credential %s/%s: %w", key.Provider, key.Identity, err)
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("credstore: parse credential: %w", err)
	}
	fn(&rec)
	out, err := json.MarshalIndent(&rec, "", "  ")
	if err != nil {
		return fmt.Errorf("credstore: marshal credential: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (s *FileStore) SetStatus(_ context.Context, key credential.Key, status credential.Status, lastErr string) error {
	return s.mutate(key, func(r *fileRecord) {
		r.Status = status
		r.LastError = lastErr
	})
}

func (s *FileStore) SetToken(_ context.Context, key credential.Key, accessToken string, expiresAt time.Time) error {
	return s.mutate(key, func(r *fileRecord) {
		r.AccessToken = accessToken
		r.AccessTokenExpiresAt = expiresAt
	})
}

func (s *FileStore) Close() error { return nil }
