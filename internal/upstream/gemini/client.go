// Package gemini builds outbound requests against the Gemini Cloud Code
// backend, grounded in the teacher's internal/upstream/gemini/client.go
// endpoint construction (here "$apiBase/v1internal/models/$model:$action") but
// without that file's internal retry-on-404/model-fallback loop, since
// retry and credential rotation are now the Scheduler Actor's job (see
// internal/caller).
package gemini

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

const (
	ActionGenerateContent       = "generateContent"
	ActionStreamGenerateContent = "streamGenerateContent"
	ActionCountTokens           = "countTokens"
)

// Client issues v1internal Cloud Code Assist calls.
type Client struct {
	httpClient *http.Client
	apiBase    string
}

func New(httpClient *http.Client, apiBase string) *Client {
	return &Client{httpClient: httpClient, apiBase: apiBase}
}

// BuildRequest constructs the HTTP request for a model action, e.g.
// POST $apiBase/v1internal/models/$model:generateContent.
func (c *Client) BuildRequest(ctx context.Context, accessToken, model, action string, body io.Reader) (*http.Request, error) {
	url := fmt.Sprintf("%s/v1internal/models/%s:%s", c.apiBase, model, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if action == ActionStreamGenerateContent {
		req.Header.Set("Accept", "text/event-stream")
	}
	return req, nil
}

// Do issues req using the client's pooled transport.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// ModelsRequest builds the GET models-listing request.
func (c *Client) ModelsRequest(ctx context.Context, accessToken string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/v1beta/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return req, nil
}
