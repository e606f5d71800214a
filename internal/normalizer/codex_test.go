package normalizer

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCodexShape_Valid(t *testing.T) {
	body := []byte(`{"id":"resp_1","object":"response","created":123,"model":"codex-1","output":[{"type":"message"}]}`)
	require.NoError(t, ValidateCodexShape(body))
}

func TestValidateCodexShape_MissingFields(t *testing.T) {
	body := []byte(`{"id":"resp_1","object":"response"}`)
	assert.Error(t, ValidateCodexShape(body))
}

func TestValidateCodexShape_Unparsable(t *testing.T) {
	assert.Error(t, ValidateCodexShape([]byte(`not json`)))
}

func TestStreamCodexSSE_PassesThroughUnchanged(t *testing.T) {
	src := strings.NewReader("data: {\"type\":\"response.output_text.delta\"}\n\ndata: [DONE]\n\n")
	var dst bytes.Buffer
	require.NoError(t, StreamCodexSSE(&dst, nopFlusher{}, src, 0))
	assert.Contains(t, dst.String(), "response.output_text.delta")
	assert.Contains(t, dst.String(), "[DONE]")
}

func TestStreamCodexSSE_IdleTimeout(t *testing.T) {
	r, w := io.Pipe()
	t.Cleanup(func() { _ = w.Close() })
	var dst bytes.Buffer
	err := StreamCodexSSE(&dst, nopFlusher{}, r, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrStreamIdleTimeout)
}
