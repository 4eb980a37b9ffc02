// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/knowledge-chat/backend/internal/config"
	"github.com/knowledge-chat/backend/internal/guide"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Sessions    SessionStore
	Deliveries  DeliveryLog // nil when the delivery log is disabled
	Guide       *guide.Guide
	Client      ClientConfig
	BaseContext context.Context
	Version     string

	AllowSessionDeletion bool
	Heartbeat            time.Duration
	WSMaxMessageSize     int64
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Session   SessionHandler
	Upload    UploadHandler
	Chat      ChatHandler
	Stream    StreamHandler
	Info      InfoHandler
	Delivery  DeliveryHandler
	WebSocket *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.Sessions),
		Session:   NewSessionHandler(deps.Sessions, deps.AllowSessionDeletion),
		Upload:    NewUploadHandler(deps.Sessions, deps.BaseContext),
		Chat:      NewChatHandler(deps.Sessions),
		Stream:    NewStreamHandler(deps.Sessions, deps.Heartbeat),
		Info:      NewInfoHandler(deps.Guide, deps.Client),
		Delivery:  NewDeliveryHandler(deps.Deliveries),
		WebSocket: NewWebSocketHandler(deps.Sessions, deps.BaseContext, deps.WSMaxMessageSize),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Page content
	apiGroup.GET("/client-config", handlers.Info.HandleClientConfig)
	apiGroup.GET("/guide", handlers.Info.HandleGuide)

	// Sessions
	apiGroup.POST("/sessions", handlers.Session.HandleCreateSession)
	sessionGroup := apiGroup.Group("/sessions/:id")
	sessionGroup.GET("", handlers.Session.HandleGetSession)
	sessionGroup.DELETE("", handlers.Session.HandleDeleteSession)
	sessionGroup.POST("/keepalive", handlers.Session.HandleSessionKeepAlive)
	sessionGroup.GET("/notifications", handlers.Session.HandleGetNotifications)

	// Upload view
	sessionGroup.GET("/upload", handlers.Upload.HandleGetUpload)
	sessionGroup.POST("/upload/drag", handlers.Upload.HandleDrag)
	sessionGroup.POST("/upload/file", handlers.Upload.HandleUploadFile)
	sessionGroup.POST("/upload/drop", handlers.Upload.HandleDropFile)
	sessionGroup.PUT("/upload/text", handlers.Upload.HandleSetText)
	sessionGroup.POST("/upload/text", handlers.Upload.HandleSubmitText)
	sessionGroup.POST("/upload/reset", handlers.Upload.HandleReset)

	// Chat
	sessionGroup.POST("/chat/ask", handlers.Chat.HandleAsk)
	sessionGroup.PUT("/chat/draft", handlers.Chat.HandleSetDraft)
	sessionGroup.POST("/chat/key", handlers.Chat.HandleKeyPress)
	sessionGroup.GET("/chat/transcript", handlers.Chat.HandleTranscript)
	sessionGroup.GET("/chat/transcript/msgpack", handlers.Chat.HandleTranscriptMsgpack)

	// Push
	sessionGroup.GET("/events", handlers.Stream.HandleEvents)
	sessionGroup.GET("/ws", handlers.WebSocket.HandleWebSocket)

	// Delivery log
	apiGroup.GET("/deliveries/stats", handlers.Delivery.HandleStats)
	apiGroup.GET("/deliveries/recent", handlers.Delivery.HandleRecent)
}

// isStreamPath reports paths that hold the connection open
func isStreamPath(c echo.Context) bool {
	path := c.Request().URL.Path
	return strings.HasSuffix(path, "/events") ||
		strings.HasSuffix(path, "/ws") ||
		c.Request().Header.Get("Accept") == "text/event-stream"
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg *config.AppConfig) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return isStreamPath(c) ||
				strings.HasSuffix(path, "/keepalive") ||
				strings.HasSuffix(path, "/upload/drag") ||
				path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if cfg.Server.ReadTimeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				// Uploads and questions wait on the webhooks
				return isStreamPath(c) ||
					strings.Contains(path, "/upload/") ||
					strings.Contains(path, "/chat/")
			},
			ErrorMessage: "Request timeout",
		}))
	}

	// Compression middleware
	if cfg.Processing.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level:   cfg.Processing.CompressionLevel,
			Skipper: isStreamPath,
		}))
	}

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.GetAllowedOrigins(),
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	// Per-client rate limiting on the API
	if cfg.Server.RateLimitPerSecond > 0 {
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return !strings.HasPrefix(path, "/api/") ||
					strings.HasSuffix(path, "/upload/drag") ||
					isStreamPath(c)
			},
			Store: middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimitPerSecond)),
			DenyHandler: func(c echo.Context, identifier string, err error) error {
				return NewRateLimitedError()
			},
		}))
	}
}
