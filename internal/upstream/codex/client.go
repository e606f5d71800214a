// Package codex builds outbound requests against the OpenAI-Responses-
// compatible Codex backend, grounded in the same client-construction
// shape as internal/upstream/gemini/client.go (pooled transport, bearer
// auth) but targeting the /v1/responses endpoint instead of Cloud Code's
// v1internal actions.
package codex

import (
	"context"
	"io"
	"net/http"
)

// Client issues calls against the Codex Responses API.
type Client struct {
	httpClient *http.Client
	apiBase    string
}

func New(httpClient *http.Client, apiBase string) *Client {
	return &Client{httpClient: httpClient, apiBase: apiBase}
}

// BuildRequest constructs POST $apiBase/v1/responses. stream requests
// SSE via Accept: text/event-stream; the request body itself carries
// "stream": true per the OpenAI Responses schema.
func (c *Client) BuildRequest(ctx context.Context, accessToken string, body io.Reader, stream bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/v1/responses", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	return req, nil
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// ModelsRequest builds the GET models-listing request.
func (c *Client) ModelsRequest(ctx context.Context, accessToken string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/v1/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return req, nil
}
