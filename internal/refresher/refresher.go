// Package refresher implements the Token Refresher: a bounded-concurrency
// worker that exchanges a credential's refresh token for a new access
// token, de-duplicating concurrent requests for the same credential.
// Grounded in the teacher's internal/oauth/manager.go RefreshToken (the
// form-encoded refresh_token grant call) and its deleted
// internal/credential/refresh_coordinator.go (singleflight-style
// in-flight de-duplication), generalized so the OAuth client_id/secret
// travel with the Credential instead of living on a single shared
// Manager.
package refresher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Outcome classifies how a refresh attempt concluded.
type Outcome int

const (
	// OutcomeSuccess carries a new access token and expiry.
	OutcomeSuccess Outcome = iota
	// OutcomeAuthFailure means the OAuth endpoint rejected the refresh
	// token itself (invalid_grant or equivalent) — the credential should
	// be disabled.
	OutcomeAuthFailure
	// OutcomeTransientFailure means the attempt failed after exhausting
	// retries for network/5xx reasons — the credential is still good,
	// just not refreshed this time.
	OutcomeTransientFailure
)

// Result is what a refresh attempt resolves to.
type Result struct {
	Outcome     Outcome
	AccessToken string
	ExpiresAt   time.Time
	Err         error
}

// TokenEndpoint returns the OAuth token endpoint URL for a provider's
// refresh grant. Providers are configured with their own endpoint since
// Gemini (Google) and Codex (OpenAI-compatible) OAuth issuers differ.
type TokenEndpoint func(provider string) string

// Refresher bounds concurrent refresh calls via a token bucket
// (default ~5-10/s, burst 2x, per spec.md §4.2) and collapses concurrent
// requests for the same credential into one in-flight call.
type Refresher struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	endpoint   TokenEndpoint
	retryMax   int

	mu       sync.Mutex
	inflight map[string]*call
}

type call struct {
	done chan struct{}
	res  Result
}

// Config configures refresh rate limiting and retry budget.
type Config struct {
	RatePerSecond float64 // default 8
	Burst         int     // default 16
	RetryMax      int     // default 3 (REFRESH_RETRY_MAX)
	HTTPClient    *http.Client
	Endpoint      TokenEndpoint
}

func New(cfg Config) *Refresher {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 8
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 16
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Refresher{
		httpClient: cfg.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		endpoint:   cfg.Endpoint,
		retryMax:   cfg.RetryMax,
		inflight:   make(map[string]*call),
	}
}

// Refresh exchanges refreshToken for a new access token at provider's
// token endpoint. Concurrent calls sharing dedupKey (normally the
// credential's provider+identity) attach to the same outcome instead of
// issuing a second HTTP request.
func (r *Refresher) Refresh(ctx context.Context, dedupKey, provider, clientID, clientSecret, refreshToken string) Result {
	r.mu.Lock()
	if c, ok := r.inflight[dedupKey]; ok {
		r.mu.Unlock()
		<-c.done
		return c.res
	}
	c := &call{done: make(chan struct{})}
	r.inflight[dedupKey] = c
	r.mu.Unlock()

	c.res = r.doRefresh(ctx, provider, clientID, clientSecret, refreshToken)

	r.mu.Lock()
	delete(r.inflight, dedupKey)
	r.mu.Unlock()
	close(c.done)
	return c.res
}

func (r *Refresher) doRefresh(ctx context.Context, provider, clientID, clientSecret, refreshToken string) Result {
	if refreshToken == "" {
		return Result{Outcome: OutcomeAuthFailure, Err: fmt.Errorf("refresher: no refresh token available")}
	}

	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt <= r.retryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Result{Outcome: OutcomeTransientFailure, Err: ctx.Err()}
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return Result{Outcome: OutcomeTransientFailure, Err: err}
		}

		res, classified, err := r.exchange(ctx, provider, clientID, clientSecret, refreshToken)
		if err == nil {
			return res
		}
		if classified == OutcomeAuthFailure {
			return Result{Outcome: OutcomeAuthFailure, Err: err}
		}
		lastErr = err
		log.WithFields(log.Fields{"provider": provider, "attempt": attempt}).WithError(err).
			Warn("refresher: transient refresh failure, retrying")
	}
	return Result{Outcome: OutcomeTransientFailure, Err: fmt.Errorf("refresher: exhausted retries: %w", lastErr)}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type,omitempty"`
}

type oauthErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// exchange performs one HTTP refresh_token grant call and returns the
// outcome classification alongside any error (nil error means success).
func (r *Refresher) exchange(ctx context.Context, provider, clientID, clientSecret, refreshToken string) (Result, Outcome, error) {
	data := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}

	endpointURL := r.endpoint(provider)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, strings.NewReader(data.Encode()))
	if err != nil {
		return Result{}, OutcomeTransientFailure, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Result{}, OutcomeTransientFailure, fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var oe oauthErrorBody
		_ = json.Unmarshal(body, &oe)
		if isAuthFailure(resp.StatusCode, oe.Error) {
			return Result{}, OutcomeAuthFailure, fmt.Errorf("oauth refresh rejected: %s: %s", oe.Error, oe.ErrorDescription)
		}
		return Result{}, OutcomeTransientFailure, fmt.Errorf("refresh endpoint status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Result{}, OutcomeTransientFailure, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return Result{}, OutcomeTransientFailure, fmt.Errorf("refresh response missing access_token")
	}

	expiresAt := time.Now()
	if tr.ExpiresIn > 0 {
		expiresAt = expiresAt.Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return Result{Outcome: OutcomeSuccess, AccessToken: tr.AccessToken, ExpiresAt: expiresAt}, OutcomeSuccess, nil
}

func isAuthFailure(status int, errCode string) bool {
	if status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden {
		switch errCode {
		case "invalid_grant", "invalid_client", "unauthorized_client":
			return true
		}
		if errCode == "" {
			return true
		}
	}
	return false
}
