package gemini

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest_GenerateContent(t *testing.T) {
	c := New(http.DefaultClient, "https://cloudcode-pa.googleapis.com")
	req, err := c.BuildRequest(context.Background(), "tok-123", "gemini-2.5-pro", ActionGenerateContent, strings.NewReader(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "https://cloudcode-pa.googleapis.com/v1internal/models/gemini-2.5-pro:generateContent", req.URL.String())
	assert.Equal(t, "Bearer tok-123", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Empty(t, req.Header.Get("Accept"))
}

func TestBuildRequest_StreamSetsSSEAccept(t *testing.T) {
	c := New(http.DefaultClient, "https://cloudcode-pa.googleapis.com")
	req, err := c.BuildRequest(context.Background(), "tok-123", "gemini-2.5-pro", ActionStreamGenerateContent, strings.NewReader(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "text/event-stream", req.Header.Get("Accept"))
}

func TestModelsRequest(t *testing.T) {
	c := New(http.DefaultClient, "https://cloudcode-pa.googleapis.com")
	req, err := c.ModelsRequest(context.Background(), "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "https://cloudcode-pa.googleapis.com/v1beta/models", req.URL.String())
	assert.Equal(t, "Bearer tok-123", req.Header.Get("Authorization"))
}
