package normalizer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/yeshanjun/pollux/internal/constants"
)

// ValidateCodexShape checks that body has the top-level fields the
// OpenAI Responses schema requires (spec.md §4.7): id, object, created,
// model, and either response or output. It does not transform the body —
// the Codex path is "largely passthrough".
func ValidateCodexShape(body []byte) error {
	var shape struct {
		ID       string          `json:"id"`
		Object   string          `json:"object"`
		Created  json.Number     `json:"created"`
		Model    string          `json:"model"`
		Response json.RawMessage `json:"response"`
		Output   json.RawMessage `json:"output"`
	}
	if err := json.Unmarshal(body, &shape); err != nil {
		return fmt.Errorf("unparsable codex response: %w", err)
	}
	if shape.ID == "" || shape.Object == "" || shape.Created == "" || shape.Model == "" {
		return fmt.Errorf("codex response missing required fields (id/object/created/model)")
	}
	if len(shape.Response) == 0 && len(shape.Output) == 0 {
		return fmt.Errorf("codex response missing both response and output")
	}
	return nil
}

// StreamCodexSSE forwards upstream SSE frames to dst unchanged, flushing
// after every event boundary so the stream remains incremental. It gives
// up with ErrStreamIdleTimeout if idleTimeout passes with no upstream
// frame (spec.md §4.6's SSE idle cutoff). idleTimeout <= 0 disables it.
func StreamCodexSSE(dst io.Writer, flusher Flusher, src io.Reader, idleTimeout time.Duration) error {
	if idleTimeout <= 0 {
		scanner := bufio.NewScanner(src)
		scanner.Buffer(make([]byte, 0, constants.SSEScannerInitialBufferSize), constants.SSEScannerMaxBufferSize)
		for scanner.Scan() {
			if _, err := fmt.Fprintf(dst, "%s\n", scanner.Text()); err != nil {
				return err
			}
			flusher.Flush()
		}
		return scanner.Err()
	}

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

	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return <-errCh
			}
			if _, err := fmt.Fprintf(dst, "%s\n", line); err != nil {
				return err
			}
			flusher.Flush()
			if !idleTimer.Stop() {
				<-idleTimer.C
			}
			idleTimer.Reset(idleTimeout)
		case <-idleTimer.C:
			return ErrStreamIdleTimeout
		}
	}
}
