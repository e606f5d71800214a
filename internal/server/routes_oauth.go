package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeshanjun/pollux/internal/credential"
	"github.com/yeshanjun/pollux/internal/oauth"
)

// registerOAuthRoutes wires the browser-facing PKCE handshake for both
// providers. These routes sit outside the Auth Gate (spec.md §4.8): the
// Google/OpenAI login redirect carries its own state token, not the
// pollux key.
func registerOAuthRoutes(r *gin.Engine, d *Deps) {
	r.GET("/geminicli/auth", handleAuthStart(d.OAuth, credential.ProviderGeminiCLI))
	r.GET("/oauth2callback", handleAuthCallback(d, d.OAuth, credential.ProviderGeminiCLI))

	r.GET("/codex/auth", handleAuthStart(d.CodexOAuth, credential.ProviderCodex))
	r.GET("/auth/callback", handleAuthCallback(d, d.CodexOAuth, credential.ProviderCodex))
	r.GET("/codex/auth/callback", handleAuthCallback(d, d.CodexOAuth, credential.ProviderCodex))
}

func handleAuthStart(mgr *oauth.Manager, provider credential.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Query("project_id")
		authURL, state, err := mgr.StartAuthFlow(projectID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"provider": provider, "auth_url": authURL, "state": state})
	}
}

func handleAuthCallback(d *Deps, mgr *oauth.Manager, provider credential.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Query("code")
		state := c.Query("state")
		if code == "" || state == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing code or state"})
			return
		}

		oauthCreds, err := mgr.HandleCallback(c.Request.Context(), code, state)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		identity := oauthCreds.ProjectID
		if identity == "" {
			identity = state
		}

		cred := &credential.Credential{
			Provider:             provider,
			Identity:             identity,
			ClientID:             oauthCreds.ClientID,
			ClientSecret:         oauthCreds.ClientSecret,
			RefreshToken:         oauthCreds.RefreshToken,
			AccessToken:          oauthCreds.AccessToken,
			AccessTokenExpiresAt: oauthCreds.ExpiresAt,
			Status:               credential.StatusEnabled,
		}
		if err := d.Store.Upsert(c.Request.Context(), cred); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		d.Scheduler.Ingest(c.Request.Context(), cred)

		c.JSON(http.StatusOK, gin.H{"provider": provider, "identity": identity, "accepted": true})
	}
}
