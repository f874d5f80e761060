// ABOUTME: Gateway orchestrator that wires the MCP, streaming and OAuth surfaces onto one HTTP server
// ABOUTME: Owns the bridge, client registry and token issuer lifecycles; listens on TCP or a tailnet

package gateway

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/workspace-gateway/internal/assets"
	"github.com/2389/workspace-gateway/internal/auth"
	"github.com/2389/workspace-gateway/internal/bridge"
	"github.com/2389/workspace-gateway/internal/builtins"
	"github.com/2389/workspace-gateway/internal/config"
	"github.com/2389/workspace-gateway/internal/mcp"
	"github.com/2389/workspace-gateway/internal/metrics"
	"github.com/2389/workspace-gateway/internal/oauth"
	"github.com/2389/workspace-gateway/internal/packs"
	"github.com/2389/workspace-gateway/internal/stream"
)

// ServiceName identifies the gateway in service info and MCP serverInfo.
const ServiceName = "workspace-gateway"

// serverInstructions is returned from initialize.
const serverInstructions = "Tools for Gmail, Google Calendar, Drive, Docs, Sheets and Tasks. " +
	"Each tool needs the client to be authorized against a Google Workspace account first."

// Gateway orchestrates the workspace-gateway server components.
type Gateway struct {
	config *config.Config
	logger *slog.Logger

	clients *auth.ClientRegistry
	guard   *auth.ReplayGuard
	issuer  *auth.Issuer

	tools   *packs.Registry
	bridge  *bridge.Bridge
	streams *stream.Manager

	mcpHandler *mcp.Handler
	oauth      *oauth.Handler

	metricsRegistry *prometheus.Registry
	landingHTML     []byte

	handler     http.Handler
	httpServer  *http.Server
	tsnetServer *tsnet.Server
}

// resolveJWTSecret returns the configured secret or a random one for this process.
func resolveJWTSecret(configured string, logger *slog.Logger) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating JWT secret: %w", err)
	}
	logger.Warn("auth.jwt_secret not configured - using a random secret, tokens will not survive restarts")
	return secret, nil
}

// registerWorkspacePacks registers every Google Workspace pack with the registry.
func registerWorkspacePacks(registry *packs.Registry, authorizeURL string) error {
	for _, pack := range builtins.WorkspacePacks(authorizeURL) {
		if err := registry.RegisterPack(pack); err != nil {
			return fmt.Errorf("registering %s pack: %w", pack.ID, err)
		}
	}
	return nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	baseURL := strings.TrimRight(cfg.Server.BaseURL, "/")

	secret, err := resolveJWTSecret(cfg.Auth.JWTSecret, logger)
	if err != nil {
		return nil, err
	}

	clients := auth.NewClientRegistry(auth.RegistryConfig{
		IDPrefix:            cfg.Auth.ClientIDPrefix,
		DefaultRedirectURIs: cfg.Auth.DefaultRedirectURIs,
		DefaultScope:        cfg.Auth.DefaultScope,
		MaxClients:          cfg.Auth.MaxClients,
		Logger:              logger,
	})
	guard := auth.NewReplayGuard(auth.DefaultReplayGuardSize)
	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		Secret:   secret,
		Issuer:   baseURL,
		TokenTTL: cfg.Auth.TokenTTL,
		CodeTTL:  cfg.Auth.CodeTTL,
		Guard:    guard,
		Logger:   logger,
	})
	if err != nil {
		guard.Close()
		return nil, fmt.Errorf("creating token issuer: %w", err)
	}

	tools := packs.NewRegistry(logger)
	if err := registerWorkspacePacks(tools, baseURL+"/authorize"); err != nil {
		guard.Close()
		return nil, err
	}

	dispatcher, err := mcp.NewDispatcher(mcp.DispatcherConfig{
		Tools:         tools,
		ServerName:    ServiceName,
		ServerVersion: cfg.Manifest.Version,
		Instructions:  serverInstructions,
		Logger:        logger,
	})
	if err != nil {
		guard.Close()
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	oauthHandler, err := oauth.NewHandler(oauth.Config{
		Clients: clients,
		Issuer:  issuer,
		BaseURL: baseURL,
		Scopes:  strings.Fields(cfg.Auth.DefaultScope),
		Logger:  logger,

		RegisterLimiter: rate.NewLimiter(rate.Limit(cfg.Auth.RegisterRate), cfg.Auth.RegisterBurst),
	})
	if err != nil {
		guard.Close()
		return nil, fmt.Errorf("creating oauth handler: %w", err)
	}

	landing, err := assets.LandingHTML(cfg.Manifest.Name, baseURL)
	if err != nil {
		guard.Close()
		return nil, err
	}

	b := bridge.New(cfg.Streaming.SubscriberBuffer, logger)

	gw := &Gateway{
		config:  cfg,
		logger:  logger.With("component", "gateway"),
		clients: clients,
		guard:   guard,
		issuer:  issuer,
		tools:   tools,
		bridge:  b,
		streams: stream.NewManager(stream.Config{
			Bridge:            b,
			KeepaliveInterval: cfg.Streaming.KeepaliveInterval,
			MaxDuration:       cfg.Streaming.MaxDuration,
			Logger:            logger,
		}),
		mcpHandler: mcp.NewHandler(mcp.HandlerConfig{
			Dispatcher:   dispatcher,
			Publisher:    b,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
			Logger:       logger,
		}),
		oauth:           oauthHandler,
		metricsRegistry: prometheus.NewRegistry(),
		landingHTML:     landing,
	}
	metrics.Register(gw.metricsRegistry)

	gw.handler = gw.routes()
	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown waits for open streams, which only end once the bridge closes.
	gw.httpServer.RegisterOnShutdown(b.Close)

	return gw, nil
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// BaseURL returns the externally visible origin.
func (g *Gateway) BaseURL() string {
	return strings.TrimRight(g.config.Server.BaseURL, "/")
}

// setupTCPListener creates a standard TCP listener for HTTP.
func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr, "base_url", g.BaseURL())

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	eg, egCtx := errgroup.WithContext(runCtx)
	eg.Go(func() error {
		defer stop()
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("server error", "error", err)
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		if ctx.Err() != nil {
			g.logger.Info("context canceled, initiating shutdown")
		}
		return g.gracefulShutdown()
	})
	return eg.Wait()
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "workspace-gateway", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet and returns the HTTP listener.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	return g.createTailscaleHTTPListener(tsCfg)
}

// logTailscaleStatus logs the node's address and warns when the configured
// base URL does not use the node's DNS name.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = strings.TrimSuffix(status.Self.DNSName, ".")
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)

	if dnsName != "" && !strings.Contains(g.BaseURL(), dnsName) {
		g.logger.Warn("base URL does not match the tailnet DNS name; set "+config.EnvBaseURL+" so OAuth discovery advertises reachable URLs",
			"base_url", g.BaseURL(),
			"dns_name", dnsName,
		)
	}
}

// createTailscaleHTTPListener creates the appropriate HTTP listener based on config.
func (g *Gateway) createTailscaleHTTPListener(tsCfg config.TailscaleConfig) (net.Listener, error) {
	switch {
	case tsCfg.Funnel:
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel port: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return g.createTailscaleTLSListener()
	default:
		ln, err := g.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// createTailscaleTLSListener creates a TLS listener using Tailscale's auto-provisioned certs.
func (g *Gateway) createTailscaleTLSListener() (net.Listener, error) {
	g.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := g.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := g.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server, then closes the bridge and releases the
// remaining resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway", "active_sessions", g.streams.Active())

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	g.bridge.Close()
	g.guard.Close()

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}

	return errors.Join(errs...)
}
