package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/knowledge-chat/backend/internal/api"
	"github.com/knowledge-chat/backend/internal/config"
	"github.com/knowledge-chat/backend/internal/delivery"
	"github.com/knowledge-chat/backend/internal/guide"
	"github.com/knowledge-chat/backend/internal/session"
	"github.com/knowledge-chat/backend/internal/upload"
	"github.com/knowledge-chat/backend/internal/web"
	"github.com/knowledge-chat/backend/internal/webhook"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("Fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; real environment variables still apply
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Warning: failed to load .env: %v\n", err)
	}

	configPath, err := resolveConfigPath()
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Delivery log
	var deliveries api.DeliveryLog
	var recorder webhook.Recorder
	if cfg.Advanced.EnableDeliveryLog {
		store, err := delivery.NewStore(cfg.Advanced.DuckDBThreads)
		if err != nil {
			return fmt.Errorf("failed to open delivery log: %w", err)
		}
		defer store.Close()
		deliveries = store
		recorder = store
	}

	opts := []webhook.Option{webhook.WithTimeout(cfg.WebhookTimeout())}
	if recorder != nil {
		opts = append(opts, webhook.WithRecorder(recorder))
	}
	hooks := webhook.NewClient(webhook.Endpoints{
		File:     cfg.Webhooks.FileURL,
		Text:     cfg.Webhooks.TextURL,
		Question: cfg.Webhooks.QuestionURL,
	}, opts...)

	sessionMgr := session.NewManager(session.Deps{
		Ingestor: hooks,
		Answerer: hooks,
		Timing:   uploadTiming(cfg),
	}, cfg.Processing.MaxSessions)

	g, err := guide.Default()
	if err != nil {
		return fmt.Errorf("failed to load guide: %w", err)
	}

	embeddedMode := web.HasEmbeddedFiles()

	e := echo.New()
	e.HideBanner = true
	api.SetExposeErrorDetails(Version == "dev")
	api.SetupMiddleware(e, cfg)

	handlers := api.NewHandlers(&api.Dependencies{
		Sessions:   sessionMgr,
		Deliveries: deliveries,
		Guide:      g,
		Client: api.ClientConfig{
			AcceptedFileTypes: cfg.GetAllowedFileTypes(),
			MinUploadMs:       int64(cfg.Upload.MinDurationMs),
			CompleteDelayMs:   int64(cfg.Upload.CompleteDelayMs),
			Version:           Version,
		},
		BaseContext:          ctx,
		Version:              Version,
		AllowSessionDeletion: cfg.Security.AllowSessionDeletion,
		WSMaxMessageSize:     int64(cfg.Advanced.WebSocketMaxMessageSize) * 1024,
	})
	api.RegisterRoutes(e, handlers)

	// Register embedded frontend if available
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			fmt.Printf("Warning: failed to register static routes: %v\n", err)
		}
	}

	// Configure server with settings from config
	s := &http.Server{
		Addr:        cfg.GetServerAddr(),
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		// WriteTimeout would cut SSE and websocket streams; the timeout middleware covers handlers
		IdleTimeout: time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, configPath, embeddedMode)

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Background session cleanup
	group.Go(func() error {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				sessionMgr.CleanupOldSessions(cfg.SessionTimeout())
			}
		}
	})

	group.Go(func() error {
		<-gctx.Done()
		fmt.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// resolveConfigPath returns KC_CONFIG_PATH or config.yaml next to the executable
func resolveConfigPath() (string, error) {
	if p := os.Getenv("KC_CONFIG_PATH"); p != "" {
		return p, nil
	}
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exePath), "config.yaml"), nil
}

func uploadTiming(cfg *config.AppConfig) upload.Timing {
	t := upload.DefaultTiming()
	t.MinDuration = time.Duration(cfg.Upload.MinDurationMs) * time.Millisecond
	t.TickInterval = time.Duration(cfg.Upload.TickIntervalMs) * time.Millisecond
	t.MaxIncrement = cfg.Upload.MaxIncrement
	t.Cap = cfg.Upload.ProgressCap
	t.CompleteDelay = time.Duration(cfg.Upload.CompleteDelayMs) * time.Millisecond
	return t
}

func printBanner(cfg *config.AppConfig, configPath string, embeddedMode bool) {
	mode := "API only"
	if embeddedMode {
		mode = "Embedded page"
	}
	deliveryLog := "disabled"
	if cfg.Advanced.EnableDeliveryLog {
		deliveryLog = "in-memory (DuckDB)"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Knowledge Chat Server                           ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Deliveries: %-45s║\n", deliveryLog)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}
}
