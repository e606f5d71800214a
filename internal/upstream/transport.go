// Package upstream builds the shared HTTP transport used by the
// per-provider clients (internal/upstream/gemini, internal/upstream/codex),
// grounded in the teacher's internal/upstream/gemini/client.go transport
// construction (proxy/dial/TLS/header timeouts from internal/constants)
// but stripped of its internal retry and model-fallback loop: rotation
// across credentials is now the Scheduler Actor's job, not the client's.
package upstream

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"

	"github.com/yeshanjun/pollux/internal/constants"
)

// NewHTTPClient builds the connection-pooled client used for every
// upstream call. proxy, if non-empty, is used as the transport's proxy
// for all outbound requests (matching the teacher's single shared-proxy
// configuration). multiplexing controls whether concurrent requests to
// the same upstream host share one HTTP/2 connection (enable_multiplexing
// in config, off by default per spec.md §5/§6 since per-credential
// request isolation is easier to reason about with one connection per
// in-flight request).
func NewHTTPClient(proxy string, timeout time.Duration, multiplexing bool) (*http.Client, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.DefaultDialTimeout,
			KeepAlive: constants.DefaultKeepAlive,
		}).DialContext,
		TLSHandshakeTimeout:   constants.DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: constants.DefaultResponseHeaderTimeout,
		ExpectContinueTimeout: constants.DefaultExpectContinueTimeout,
		MaxIdleConns:          constants.BaseMaxIdleConns,
		MaxIdleConnsPerHost:   constants.BaseMaxIdleConnsPerHost,
		IdleConnTimeout:       constants.BaseIdleConnTimeout,
	}

	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if multiplexing {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, err
		}
	} else {
		// Disabling ALPN's h2 entry forces every request onto its own
		// HTTP/1.1 connection from the pool above instead of sharing one
		// multiplexed HTTP/2 connection per host.
		transport.TLSNextProto = make(map[string]func(string, *tls.Conn) http.RoundTripper)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}

// ContextWithHardDeadline bounds ctx by timeout, the request's hard
// deadline (spec.md §4.6 step 4), returning the derived context and its
// cancel func which the caller must invoke once the request completes.
func ContextWithHardDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}
