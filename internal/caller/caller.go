// Package caller implements the Upstream Caller (spec.md §4.6): it
// leases a credential from the Scheduler Actor, issues the upstream
// call, classifies the response, reports the outcome back, and retries
// on a fresh lease when the outcome table calls for it. It is grounded
// in the teacher's internal/upstream/gemini/client.go request/response
// cycle and internal/upstream/gemini/executor.go's credential-bound
// invocation, but the retry/rotation loop itself is new: the teacher
// retried within a single credential's fallback list, where Pollux
// retries across leased credentials via the Scheduler.
package caller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/yeshanjun/pollux/internal/apierr"
	"github.com/yeshanjun/pollux/internal/credential"
	"github.com/yeshanjun/pollux/internal/middleware"
	"github.com/yeshanjun/pollux/internal/normalizer"
	"github.com/yeshanjun/pollux/internal/scheduler"
)

// HardTimeout is the per-request upstream deadline (spec.md §4.6 step 4).
const HardTimeout = 10 * time.Minute

// Target describes one upstream invocation: which provider/queue to lease
// from, how to build the HTTP request against a leased credential's
// access token, and how to normalize the response for the client.
type Target struct {
	Provider credential.Provider
	QueueTag credential.QueueTag
	Stream   bool

	BuildRequest func(ctx context.Context, accessToken string) (*http.Request, error)
	Do           func(req *http.Request) (*http.Response, error)

	// NormalizeJSON transforms a non-streaming 2xx body for the client.
	NormalizeJSON func(body []byte) ([]byte, error)
	// StreamSSE copies an SSE body from src to dst, normalizing per-event.
	StreamSSE func(dst io.Writer, flusher normalizer.Flusher, src io.Reader) error
	// ParseRetryAfter extracts a provider-specific retry_after from a 429 body.
	ParseRetryAfter func(resp *http.Response, body []byte) time.Duration
}

// Caller owns the Scheduler Actor handle used to lease and report on
// credentials for every invocation.
type Caller struct {
	scheduler          *scheduler.Actor
	maxRetries         int
	noCredentialStatus int
}

// New constructs a Caller. noCredentialStatus is the HTTP status written
// when no credential is available (spec.md §12 Open Question: 503 by
// default, overridable to 409).
func New(sched *scheduler.Actor, maxRetries, noCredentialStatus int) *Caller {
	if noCredentialStatus == 0 {
		noCredentialStatus = http.StatusServiceUnavailable
	}
	return &Caller{scheduler: sched, maxRetries: maxRetries, noCredentialStatus: noCredentialStatus}
}

// Invoke runs the full Upstream Caller cycle for one client request and
// writes the normalized result to w. It returns the *apierr.Error that
// was already written to w (for logging), or nil if the response
// completed successfully (including a clean stream close).
func (c *Caller) Invoke(ctx context.Context, t Target, w http.ResponseWriter, flusher normalizer.Flusher) *apierr.Error {
	ctx, cancel := context.WithTimeout(ctx, HardTimeout)
	defer cancel()

	attempts := 0
	for {
		lease, err := c.scheduler.Acquire(ctx, t.Provider, t.QueueTag)
		if err != nil {
			apiErr := apierr.NoCredential(c.noCredentialStatus)
			writeNoCredential(w, apiErr)
			return apiErr
		}

		lease, err = c.scheduler.EnsureFresh(ctx, lease)
		if err != nil {
			c.scheduler.ReportInvalid(lease)
			apiErr := apierr.New(apierr.KindRefreshFailed, "credential refresh failed: "+err.Error())
			writeJSONError(w, apiErr)
			return apiErr
		}

		outcome, apiErr := c.attempt(ctx, t, lease, w, flusher)
		switch outcome {
		case outcomeDone:
			return apiErr
		case outcomeRetry:
			attempts++
			if attempts > c.maxRetries {
				if apiErr == nil {
					apiErr = apierr.New(apierr.KindUpstreamTransport, "upstream retries exhausted")
				}
				writeJSONError(w, apiErr)
				return apiErr
			}
			continue
		}
	}
}

type outcome int

const (
	outcomeDone outcome = iota
	outcomeRetry
)

func (c *Caller) attempt(ctx context.Context, t Target, lease *credential.Lease, w http.ResponseWriter, flusher normalizer.Flusher) (outcome, *apierr.Error) {
	req, err := t.BuildRequest(ctx, lease.Credential.AccessToken)
	if err != nil {
		c.scheduler.ReportTransportFailure(lease)
		apiErr := apierr.New(apierr.KindUpstreamTransport, "failed to build upstream request: "+err.Error())
		return outcomeRetry, apiErr
	}

	start := time.Now()
	resp, err := t.Do(req)
	if err != nil {
		c.scheduler.ReportTransportFailure(lease)
		middleware.RecordUpstream(string(t.Provider), "transport_error", time.Since(start))
		return outcomeRetry, apierr.ClassifyNetworkError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		retryAfter := time.Duration(0)
		if t.ParseRetryAfter != nil {
			retryAfter = t.ParseRetryAfter(resp, body)
		}
		c.scheduler.ReportRateLimited(lease, retryAfter)
		middleware.RecordUpstream(string(t.Provider), "rate_limited", time.Since(start))
		return outcomeRetry, apierr.New(apierr.KindUpstreamRateLimited, "upstream rate limited")

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.scheduler.ReportInvalid(lease)
		middleware.RecordUpstream(string(t.Provider), "auth_rejected", time.Since(start))
		return outcomeRetry, apierr.New(apierr.KindUpstreamAuth, "upstream rejected credential")

	case resp.StatusCode >= 500:
		c.scheduler.ReportTransportFailure(lease)
		middleware.RecordUpstream(string(t.Provider), "server_error", time.Since(start))
		return outcomeRetry, apierr.New(apierr.KindUpstreamTransport, fmt.Sprintf("upstream status %d", resp.StatusCode))

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		middleware.RecordUpstream(string(t.Provider), "success", time.Since(start))
		return outcomeDone, c.deliver(t, lease, resp, w, flusher)

	default:
		c.scheduler.ReportSuccess(lease)
		middleware.RecordUpstream(string(t.Provider), "client_error", time.Since(start))
		apiErr := apierr.New(apierr.KindUpstreamTransport, fmt.Sprintf("upstream status %d", resp.StatusCode)).WithStatus(resp.StatusCode)
		writeJSONError(w, apiErr)
		return outcomeDone, apiErr
	}
}

func (c *Caller) deliver(t Target, lease *credential.Lease, resp *http.Response, w http.ResponseWriter, flusher normalizer.Flusher) *apierr.Error {
	if t.Stream {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		if err := t.StreamSSE(w, flusher, resp.Body); err != nil {
			c.scheduler.ReportTransportFailure(lease)
			log.WithError(err).WithField("provider", t.Provider).Warn("upstream stream closed with error")
			return apierr.ClassifyNetworkError(err)
		}
		c.scheduler.ReportSuccess(lease)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.scheduler.ReportTransportFailure(lease)
		apiErr := apierr.ClassifyNetworkError(err)
		writeJSONError(w, apiErr)
		return apiErr
	}

	normalized, err := t.NormalizeJSON(body)
	if err != nil {
		// Upstream body unparsable: credential itself is fine (spec.md §4.6).
		c.scheduler.ReportSuccess(lease)
		apiErr := apierr.New(apierr.KindUpstreamParse, "upstream response could not be parsed: "+err.Error())
		writeJSONError(w, apiErr)
		return apiErr
	}

	c.scheduler.ReportSuccess(lease)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(normalized)
	return nil
}

func writeJSONError(w http.ResponseWriter, apiErr *apierr.Error) {
	body, err := apiErr.ToJSON(apierr.FormatOpenAI)
	if err != nil {
		http.Error(w, apiErr.Message, apiErr.HTTPStatus)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus)
	_, _ = w.Write(body)
}

func writeNoCredential(w http.ResponseWriter, apiErr *apierr.Error) {
	body, err := apiErr.NoCredentialJSON()
	if err != nil {
		http.Error(w, apiErr.Message, apiErr.HTTPStatus)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus)
	_, _ = w.Write(body)
}

// ParseRetryAfterHeader reads the standard Retry-After header as seconds.
func ParseRetryAfterHeader(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// ParseGeminiRetryAfter extracts retry_after from Retry-After header or
// the body's quotaResetTimeStamp field (spec.md §4.6 outcome table).
func ParseGeminiRetryAfter(resp *http.Response, body []byte) time.Duration {
	if d := ParseRetryAfterHeader(resp); d > 0 {
		return d
	}
	var parsed struct {
		Error struct {
			QuotaResetTimeStamp string `json:"quotaResetTimeStamp"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil || parsed.Error.QuotaResetTimeStamp == "" {
		return 0
	}
	resetAt, err := time.Parse(time.RFC3339, parsed.Error.QuotaResetTimeStamp)
	if err != nil {
		return 0
	}
	if d := time.Until(resetAt); d > 0 {
		return d
	}
	return 0
}
