// Package server assembles the gin engine and route table for Pollux,
// grounded in the teacher's internal/server route-registration pattern
// (one routes_*.go per API surface) but scoped to the much smaller route
// set SPEC_FULL.md §9 names: GeminiCLI and Codex passthrough endpoints,
// their resource:add ingestion and OAuth handshake routes, and /metrics.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeshanjun/pollux/internal/authgate"
	"github.com/yeshanjun/pollux/internal/caller"
	"github.com/yeshanjun/pollux/internal/config"
	"github.com/yeshanjun/pollux/internal/credstore"
	"github.com/yeshanjun/pollux/internal/middleware"
	"github.com/yeshanjun/pollux/internal/oauth"
	"github.com/yeshanjun/pollux/internal/scheduler"
	codexup "github.com/yeshanjun/pollux/internal/upstream/codex"
	geminiup "github.com/yeshanjun/pollux/internal/upstream/gemini"
)

// Deps bundles everything a route handler needs to serve a request.
type Deps struct {
	Config     *config.Config
	Scheduler  *scheduler.Actor
	Caller     *caller.Caller
	Store      credstore.Store
	Gemini     *geminiup.Client
	Codex      *codexup.Client
	OAuth      *oauth.Manager
	CodexOAuth *oauth.Manager
}

// New builds the gin engine with every SPEC_FULL.md §9 route registered.
func New(d *Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.RequestID(), middleware.RequestLogger(), middleware.CORS(), middleware.Metrics())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	gate := authgate.Middleware(d.Config.PolluxKey)

	// OAuth browser entry/callback URLs are explicitly excluded from the
	// Auth Gate per spec.md §4.8.
	registerOAuthRoutes(r, d)

	geminiGroup := r.Group("/geminicli", gate)
	registerGeminiRoutes(geminiGroup, d)

	codexGroup := r.Group("/codex", gate)
	registerCodexRoutes(codexGroup, d)

	return r
}
