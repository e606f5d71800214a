// Package normalizer translates upstream JSON/SSE envelopes into the
// public schema for each provider (spec.md §4.7). The Gemini path is
// grounded in the teacher's internal/handlers/gemini/stream_session_sse.go
// (envelope unwrap of the "response" field, [DONE] handling, keep-alive
// injection) adapted from that file's gin-streaming loop to a plain
// io.Reader/io.Writer shape so it can run under the new Upstream Caller.
package normalizer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yeshanjun/pollux/internal/constants"
)

const sseKeepAliveInterval = 15 * time.Second

// ErrStreamIdleTimeout is returned when no upstream frame arrives within
// the configured idle window (spec.md §4.6, cfg.StreamIdleTimeout).
var ErrStreamIdleTimeout = errors.New("normalizer: upstream sse stream idle timeout")

// UnwrapGeminiJSON lifts the Cloud Code "response" envelope so that
// candidates/usageMetadata/modelVersion appear at the top level, as
// spec.md §4.7 requires for the non-streaming path.
func UnwrapGeminiJSON(body []byte) ([]byte, error) {
	var envelope struct {
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unparsable gemini response: %w", err)
	}
	if len(envelope.Response) == 0 {
		// Some actions (e.g. countTokens) have no "response" wrapper at all.
		return body, nil
	}
	return envelope.Response, nil
}

// Flusher is satisfied by gin/http ResponseWriters that support chunked
// flushing; it lets the normalizer emit SSE frames incrementally instead
// of buffering the whole stream.
type Flusher interface {
	Flush()
}

// StreamGeminiSSE reads upstream SSE frames from src and re-emits them to
// dst, unwrapping each frame's "response" envelope and preserving "data:"
// boundaries and the terminating "[DONE]" line. It injects a ": keep-alive"
// comment every 15s of upstream idle so intermediaries do not close the
// connection, and gives up with ErrStreamIdleTimeout if idleTimeout passes
// with no upstream frame at all (spec.md §4.6's SSE idle cutoff, a stuck
// upstream must not hold the connection open forever). idleTimeout <= 0
// disables the cutoff.
func StreamGeminiSSE(dst io.Writer, flusher Flusher, src io.Reader, idleTimeout time.Duration) error {
	lines := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(src)
		scanner.Buffer(make([]byte, 0, constants.SSEScannerInitialBufferSize), constants.SSEScannerMaxBufferSize)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		errCh <- scanner.Err()
	}()

	ticker := time.NewTicker(sseKeepAliveInterval)
	defer ticker.Stop()

	var idleC <-chan time.Time
	if idleTimeout > 0 {
		idleTimer := time.NewTimer(idleTimeout)
		defer idleTimer.Stop()
		idleC = idleTimer.C
	}

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return <-errCh
			}
			if err := writeGeminiLine(dst, line); err != nil {
				return err
			}
			flusher.Flush()
			ticker.Reset(sseKeepAliveInterval)
			if idleTimeout > 0 {
				idleC = time.NewTimer(idleTimeout).C
			}
		case <-ticker.C:
			if _, err := io.WriteString(dst, ": keep-alive\n\n"); err != nil {
				return err
			}
			flusher.Flush()
		case <-idleC:
			return ErrStreamIdleTimeout
		}
	}
}

func writeGeminiLine(dst io.Writer, line string) error {
	if !strings.HasPrefix(line, "data:") {
		_, err := fmt.Fprintf(dst, "%s\n", line)
		return err
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == "[DONE]" {
		_, err := io.WriteString(dst, "data: [DONE]\n\n")
		return err
	}

	unwrapped, err := UnwrapGeminiJSON([]byte(payload))
	if err != nil {
		// Forward the frame verbatim rather than drop it; the client sees
		// the upstream's own shape instead of a normalizer-induced gap.
		unwrapped = []byte(payload)
	}
	var buf bytes.Buffer
	buf.WriteString("data: ")
	buf.Write(unwrapped)
	buf.WriteString("\n\n")
	_, err = dst.Write(buf.Bytes())
	return err
}
