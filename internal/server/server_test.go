package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeshanjun/pollux/internal/caller"
	"github.com/yeshanjun/pollux/internal/config"
	"github.com/yeshanjun/pollux/internal/credstore"
	"github.com/yeshanjun/pollux/internal/refresher"
	"github.com/yeshanjun/pollux/internal/scheduler"
	codexup "github.com/yeshanjun/pollux/internal/upstream/codex"
	geminiup "github.com/yeshanjun/pollux/internal/upstream/gemini"
)

func newTestDeps(t *testing.T) *Deps {
	t.Helper()
	cfg := &config.Config{
		PolluxKey: "",
		Providers: config.ProvidersConfig{
			GeminiCLI: config.ProviderConfig{ModelList: []string{"gemini-2.5-pro"}},
			Codex:     config.ProviderConfig{ModelList: []string{"gpt-5-codex"}},
		},
	}

	store, err := credstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	sched := newTestScheduler(t, store)

	return &Deps{
		Config:    cfg,
		Scheduler: sched,
		Caller:    caller.New(sched, 0, http.StatusServiceUnavailable),
		Store:     store,
		Gemini:    geminiup.New(http.DefaultClient, "https://cloudcode-pa.googleapis.com"),
		Codex:     codexup.New(http.DefaultClient, "https://chatgpt.com/backend-api/codex"),
	}
}

func TestGeminiModels_ListsConfiguredAllowlist(t *testing.T) {
	d := newTestDeps(t)
	r := New(d)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/geminicli/v1beta/models", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	models := body["models"].([]any)
	require.Len(t, models, 1)
}

func TestGeminiModelsOpenAIShape_ListsSameCatalog(t *testing.T) {
	d := newTestDeps(t)
	r := New(d)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/geminicli/v1beta/openai/models", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "list", body["object"])
}

func TestResourceAdd_Returns202OnAccept(t *testing.T) {
	d := newTestDeps(t)
	r := New(d)

	payload := map[string]any{
		"credentials": []map[string]string{
			{"identity": "proj-1", "refresh_token": "rt-1"},
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/geminicli/resource:add", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestCodexModels_ListsConfiguredAllowlist(t *testing.T) {
	d := newTestDeps(t)
	r := New(d)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/codex/v1/models", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthGate_RejectsWrongKey(t *testing.T) {
	d := newTestDeps(t)
	d.Config.PolluxKey = "correct-key"
	r := New(d)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/geminicli/v1beta/models", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetrics_ServedWithoutAuthGate(t *testing.T) {
	d := newTestDeps(t)
	d.Config.PolluxKey = "correct-key"
	r := New(d)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

// newTestScheduler starts a real Scheduler Actor against a fake OAuth
// token endpoint, mirroring the scheduler package's own test harness;
// server tests only need a running Actor, not scheduling behavior itself.
func newTestScheduler(t *testing.T, store credstore.Store) *scheduler.Actor {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(struct {
			AccessToken string `json:"access_token"`
			ExpiresIn   int64  `json:"expires_in"`
		}{AccessToken: "fresh-token", ExpiresIn: 3600})
	}))
	t.Cleanup(srv.Close)

	r := refresher.New(refresher.Config{
		RatePerSecond: 1000,
		Burst:         1000,
		Endpoint:      func(string) string { return srv.URL },
	})

	sched := scheduler.New(store, r, time.Minute)
	require.NoError(t, sched.Start(context.Background()))
	t.Cleanup(sched.Stop)
	return sched
}
