package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeshanjun/pollux/internal/apierr"
	"github.com/yeshanjun/pollux/internal/caller"
	"github.com/yeshanjun/pollux/internal/credential"
	"github.com/yeshanjun/pollux/internal/normalizer"
	geminiup "github.com/yeshanjun/pollux/internal/upstream/gemini"
)

func registerGeminiRoutes(g *gin.RouterGroup, d *Deps) {
	g.GET("/v1beta/models", handleGeminiModels(d))
	g.GET("/v1beta/openai/models", handleGeminiModelsOpenAIShape(d))
	g.POST("/v1beta/models/:modelAction", handleGeminiModelAction(d))
	g.POST("/resource:add", handleResourceAdd(d, credential.ProviderGeminiCLI))
}

// splitModelAction turns "gemini-2.0-flash:generateContent" into its
// model and action parts, matching the Gemini wire convention of a
// colon-joined resource name and verb.
func splitModelAction(raw string) (model, action string) {
	idx := strings.LastIndex(raw, ":")
	if idx < 0 {
		return raw, ""
	}
	return raw[:idx], raw[idx+1:]
}

func handleGeminiModelAction(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		model, action := splitModelAction(c.Param("modelAction"))
		if model == "" || action == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed model action"})
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}

		stream := action == geminiup.ActionStreamGenerateContent
		tag := credential.QueueTiny
		if d.Config.IsBigModel(model) {
			tag = credential.QueueBig
		}

		target := caller.Target{
			Provider: credential.ProviderGeminiCLI,
			QueueTag: tag,
			Stream:   stream,
			BuildRequest: func(ctx context.Context, accessToken string) (*http.Request, error) {
				return d.Gemini.BuildRequest(ctx, accessToken, model, action, bytes.NewReader(body))
			},
			Do:            d.Gemini.Do,
			NormalizeJSON: normalizer.UnwrapGeminiJSON,
			StreamSSE: func(dst io.Writer, flusher normalizer.Flusher, src io.Reader) error {
				return normalizer.StreamGeminiSSE(dst, flusher, src, d.Config.StreamIdleTimeout)
			},
			ParseRetryAfter: caller.ParseGeminiRetryAfter,
		}

		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			flusher = noopFlusher{}
		}
		d.Caller.Invoke(c.Request.Context(), target, c.Writer, flusher)
	}
}

func handleGeminiModels(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		// The models listing is a static allowlist drawn from configuration
		// rather than a leased upstream call: it carries no credential state.
		models := d.Config.Providers.GeminiCLI.ModelList
		resp := make([]gin.H, 0, len(models))
		for _, m := range models {
			resp = append(resp, gin.H{"name": "models/" + m})
		}
		c.JSON(http.StatusOK, gin.H{"models": resp})
	}
}

// handleGeminiModelsOpenAIShape renders the same catalog under the
// OpenAI "models" list shape (spec.md §6's /v1beta/openai/models route).
func handleGeminiModelsOpenAIShape(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		models := d.Config.Providers.GeminiCLI.ModelList
		data := make([]gin.H, 0, len(models))
		for _, m := range models {
			data = append(data, gin.H{"id": m, "object": "model"})
		}
		c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
	}
}

func handleResourceAdd(d *Deps, provider credential.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Credentials []struct {
				Identity     string `json:"identity"`
				ClientID     string `json:"client_id"`
				ClientSecret string `json:"client_secret"`
				RefreshToken string `json:"refresh_token"`
			} `json:"credentials"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			apiErr := apierr.New(apierr.KindConfigInvalid, "malformed resource:add body")
			c.JSON(apiErr.HTTPStatus, gin.H{"error": apiErr.Message})
			return
		}

		results := make([]gin.H, 0, len(req.Credentials))
		for _, item := range req.Credentials {
			if item.Identity == "" || item.RefreshToken == "" {
				results = append(results, gin.H{"identity": item.Identity, "accepted": false, "reason": "missing identity or refresh_token"})
				continue
			}
			cred := &credential.Credential{
				Provider:     provider,
				Identity:     item.Identity,
				ClientID:     item.ClientID,
				ClientSecret: item.ClientSecret,
				RefreshToken: item.RefreshToken,
				Status:       credential.StatusEnabled,
			}
			if err := d.Store.Upsert(c.Request.Context(), cred); err != nil {
				results = append(results, gin.H{"identity": item.Identity, "accepted": false, "reason": err.Error()})
				continue
			}
			d.Scheduler.Ingest(c.Request.Context(), cred)
			results = append(results, gin.H{"identity": item.Identity, "accepted": true})
		}
		c.JSON(http.StatusAccepted, gin.H{"results": results})
	}
}
