// ABOUTME: HTTP routing for the gateway: middleware chain, MCP transports, OAuth and service endpoints
// ABOUTME: Request logging keeps the flusher intact so SSE responses stream through it

package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/workspace-gateway/internal/assets"
	"github.com/2389/workspace-gateway/internal/auth"
)

// Route paths served by the gateway.
const (
	PathMCP       = "/mcp"
	PathMessage   = "/message"
	PathSSE       = "/sse"
	PathConnect   = "/connect"
	PathConfigure = "/configure"
	PathManifest  = "/.well-known/anthropic-connector-manifest"
	PathHealth    = "/health"
	PathReady     = "/health/ready"
)

func (g *Gateway) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(g.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: g.config.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Session-Id"},
		MaxAge:         300,
	}))
	r.Use(auth.OptionalAuthMiddleware(g.issuer, g.clients, g.logger))

	r.Get("/", g.handleRoot)
	r.Get(PathHealth, g.handleHealth)
	r.Get(PathReady, g.handleReady)
	r.Get(PathManifest, g.handleManifest)
	r.Get(PathConnect, g.handleConnect)
	r.Get(PathConfigure, g.handleConfigure)
	r.Handle("/static/*", http.StripPrefix("/static/", assets.FileServer()))

	// Request-style transport: respond inline and publish to streams.
	r.Post(PathMCP, g.mcpHandler.ServeHTTP)
	r.Post(PathMessage, g.mcpHandler.ServeHTTP)

	// Streaming transport.
	r.Get(PathMCP, g.streams.ServeHTTP)
	r.Get(PathSSE, g.streams.ServeHTTP)

	g.oauth.RegisterRoutes(r)

	if g.config.Metrics.IsEnabled() {
		r.Handle(g.config.Metrics.Path, promhttp.HandlerFor(g.metricsRegistry, promhttp.HandlerOpts{}))
	}

	return r
}

// requestLogger logs every request at debug level once it completes.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
