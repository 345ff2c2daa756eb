package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/clara/internal/api"
	"github.com/yegors/clara/internal/backend"
	"github.com/yegors/clara/internal/config"
	"github.com/yegors/clara/internal/service"
	"github.com/yegors/clara/internal/session"
	"github.com/yegors/clara/internal/templating"
	"github.com/yegors/clara/internal/upload"
	"github.com/yegors/clara/internal/websocket"
	"github.com/yegors/clara/pkg/logger"
	"github.com/yegors/clara/web"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting CLARA front-end",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Backend client; a relative base resolves against our own address
	origin := cfg.Backend.PublicOrigin
	if origin == "" {
		origin = "http://" + cfg.ListenAddr()
	}
	backendClient, err := backend.NewClient(backend.Options{
		BaseURL: cfg.APIBase(),
		Origin:  origin,
		Timeout: time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
	}, log)
	if err != nil {
		log.Error("Failed to create backend client", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Using backend", logger.String("base_url", backendClient.BaseURL()))

	// Optional in-process backend under /api
	var backendRoutes http.Handler
	if cfg.Server.ProxyBackend {
		svc, err := service.FromConfig(ctx, cfg, log)
		if err != nil {
			log.Error("Failed to create in-process backend", logger.Error(err))
			os.Exit(1)
		}
		backendRoutes = svc.Routes()
		log.Info("Serving backend under /api", logger.String("provider", cfg.Service.Provider))
	}

	// Create WebSocket server
	wsServer := websocket.NewServer(log)
	go wsServer.Run(ctx)

	// Session manager with idle eviction
	sessions := session.NewManager(backendClient, time.Duration(cfg.Session.IdleTimeoutMinutes)*time.Minute, log)
	sessions.SetWatched(func(id string) bool { return wsServer.ClientCount(id) > 0 })
	go sessions.Run(ctx, time.Duration(cfg.Session.SweepIntervalSeconds)*time.Second)

	templateService := templating.NewService(web.Templates(), cfg.UI, log)
	uploads := upload.NewReader(int64(cfg.Upload.MaxSizeMB) << 20)

	handler := api.NewHandler(sessions, templateService, wsServer, uploads, backendClient.BaseURL(), log)
	static := api.NewStaticFileHandler(cfg.Server.StaticFilesDir, web.Static(), log)
	router := api.NewRouter(handler, static, backendRoutes, log)

	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", logger.String("addr", server.Addr), logger.Error(err))
			os.Exit(1)
		}
	}()

	// SIGHUP reloads templates; SIGINT/SIGTERM shut down
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigCh {
		if sig != syscall.SIGHUP {
			break
		}
		if err := templateService.ReloadAllTemplates(); err != nil {
			log.Error("Failed to reload templates", logger.Error(err))
		} else {
			log.Info("Templates reloaded")
		}
	}

	log.Info("Shutting down server...")

	// Stop the janitor and close websocket clients
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	} else {
		log.Info("HTTP server shutdown complete")
	}

	log.Info("Server fully stopped")
}
