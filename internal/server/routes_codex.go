package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeshanjun/pollux/internal/apierr"
	"github.com/yeshanjun/pollux/internal/caller"
	"github.com/yeshanjun/pollux/internal/credential"
	"github.com/yeshanjun/pollux/internal/normalizer"
)

func registerCodexRoutes(g *gin.RouterGroup, d *Deps) {
	g.GET("/v1/models", handleCodexModels(d))
	g.POST("/v1/responses", handleCodexResponses(d))
	g.POST("/resource:add", handleResourceAdd(d, credential.ProviderCodex))
}

func handleCodexModels(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		models := d.Config.Providers.Codex.ModelList
		data := make([]gin.H, 0, len(models))
		for _, m := range models {
			data = append(data, gin.H{"id": m, "object": "model"})
		}
		c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
	}
}

func handleCodexResponses(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}

		var probe struct {
			Model  string `json:"model"`
			Stream bool   `json:"stream"`
		}
		if err := json.Unmarshal(body, &probe); err != nil {
			apiErr := apierr.New(apierr.KindConfigInvalid, "malformed request body")
			c.JSON(apiErr.HTTPStatus, gin.H{"error": apiErr.Message})
			return
		}

		tag := credential.QueueTiny
		if d.Config.IsBigModel(probe.Model) {
			tag = credential.QueueBig
		}

		target := caller.Target{
			Provider: credential.ProviderCodex,
			QueueTag: tag,
			Stream:   probe.Stream,
			BuildRequest: func(ctx context.Context, accessToken string) (*http.Request, error) {
				return d.Codex.BuildRequest(ctx, accessToken, bytes.NewReader(body), probe.Stream)
			},
			Do: d.Codex.Do,
			NormalizeJSON: func(b []byte) ([]byte, error) {
				if err := normalizer.ValidateCodexShape(b); err != nil {
					return nil, err
				}
				return b, nil
			},
			StreamSSE: func(dst io.Writer, flusher normalizer.Flusher, src io.Reader) error {
				return normalizer.StreamCodexSSE(dst, flusher, src, d.Config.StreamIdleTimeout)
			},
			ParseRetryAfter: func(resp *http.Response, _ []byte) time.Duration {
				return caller.ParseRetryAfterHeader(resp)
			},
		}

		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			flusher = noopFlusher{}
		}
		d.Caller.Invoke(c.Request.Context(), target, c.Writer, flusher)
	}
}
