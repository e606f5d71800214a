// Command server runs the Pollux gateway: it loads configuration, opens
// the Credential Store, starts the Scheduler Actor, and serves the
// GeminiCLI/Codex passthrough routes until an interrupt or terminate
// signal arrives, grounded in the teacher's cmd/server/main.go lifecycle
// (config → logging → store → HTTP listener → graceful shutdown) but
// rebuilt around the Scheduler Actor's Start/Stop instead of the
// teacher's credential Manager.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/yeshanjun/pollux/internal/caller"
	"github.com/yeshanjun/pollux/internal/config"
	"github.com/yeshanjun/pollux/internal/constants"
	"github.com/yeshanjun/pollux/internal/credstore"
	"github.com/yeshanjun/pollux/internal/credwatch"
	"github.com/yeshanjun/pollux/internal/logging"
	"github.com/yeshanjun/pollux/internal/monitoring/tracing"
	"github.com/yeshanjun/pollux/internal/oauth"
	"github.com/yeshanjun/pollux/internal/refresher"
	"github.com/yeshanjun/pollux/internal/runtime"
	"github.com/yeshanjun/pollux/internal/scheduler"
	"github.com/yeshanjun/pollux/internal/server"
	"github.com/yeshanjun/pollux/internal/upstream"
	codexup "github.com/yeshanjun/pollux/internal/upstream/codex"
	geminiup "github.com/yeshanjun/pollux/internal/upstream/gemini"
)

func main() {
	configPath := flag.String("config", os.Getenv("POLLUX_CONFIG"), "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	if err := logging.Setup(cfg); err != nil {
		log.WithError(err).Fatal("failed to configure logging")
	}

	watcher, err := config.WatchFile(*configPath)
	if err != nil {
		log.WithError(err).Warn("config hot-reload disabled")
	} else {
		defer watcher.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx)
	if err != nil {
		log.WithError(err).Warn("tracing disabled")
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutCtx); err != nil {
			log.WithError(err).Warn("tracing shutdown failed")
		}
	}()

	store, err := credstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to open credential store")
	}

	tasks := runtime.NewTaskManager(ctx)
	defer tasks.StopAll()

	refresh := refresher.New(refresher.Config{
		RatePerSecond: cfg.OAuthTPS,
		Burst:         int(2 * cfg.OAuthTPS),
		RetryMax:      cfg.RefreshRetryMax,
		Endpoint: func(provider string) string {
			switch provider {
			case "codex":
				return cfg.Providers.Codex.TokenURL
			default:
				return cfg.Providers.GeminiCLI.TokenURL
			}
		},
	})

	sched := scheduler.New(store, refresh, cfg.RefreshSafetyMargin)
	if err := sched.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start scheduler")
	}
	defer sched.Stop()

	credDir := credwatch.New(cfg.CredPath, store, sched)
	if err := credDir.ScanOnce(ctx); err != nil {
		log.WithError(err).WithField("cred_path", cfg.CredPath).Warn("failed to scan credential directory")
	}
	credDir.Watch(ctx)
	defer credDir.Stop()

	geminiHTTP, err := upstream.NewHTTPClient(cfg.Proxy, cfg.UpstreamRequestTimeout, cfg.EnableMultiplexing)
	if err != nil {
		log.WithError(err).Fatal("failed to build gemini http client")
	}
	codexHTTP, err := upstream.NewHTTPClient(cfg.Proxy, cfg.UpstreamRequestTimeout, cfg.EnableMultiplexing)
	if err != nil {
		log.WithError(err).Fatal("failed to build codex http client")
	}

	geminiClient := geminiup.New(geminiHTTP, cfg.Providers.GeminiCLI.APIBase)
	codexClient := codexup.New(codexHTTP, cfg.Providers.Codex.APIBase)

	invoker := caller.New(sched, cfg.GeminiRetryMaxTimes, cfg.NoCredentialStatus)

	geminiOAuth := oauth.NewManager(cfg.Providers.GeminiCLI.ClientID, cfg.Providers.GeminiCLI.ClientSecret, "",
		oauth.WithTokenURL(cfg.Providers.GeminiCLI.TokenURL))
	codexOAuth := oauth.NewManager(cfg.Providers.Codex.ClientID, cfg.Providers.Codex.ClientSecret, "",
		oauth.WithTokenURL(cfg.Providers.Codex.TokenURL))

	err = tasks.StartPeriodic("oauth-session-gc", "expire stale PKCE auth sessions", 5*time.Minute, func(context.Context) error {
		geminiOAuth.CleanupExpiredSessions()
		codexOAuth.CleanupExpiredSessions()
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("failed to start oauth session gc task")
	}

	engine := server.New(&server.Deps{
		Config:     cfg,
		Scheduler:  sched,
		Caller:     invoker,
		Store:      store,
		Gemini:     geminiClient,
		Codex:      codexClient,
		OAuth:      geminiOAuth,
		CodexOAuth: codexOAuth,
	})

	addr := cfg.ListenAddr + ":" + strconv.Itoa(cfg.ListenPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.UpstreamRequestTimeout + 30*time.Second,
	}

	go func() {
		log.WithField("addr", addr).Info("pollux listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
	time.Sleep(constants.ServerGracefulWait)
}
