// ABOUTME: HTTP endpoints for OAuth Dynamic Client Registration, authorization, and token issuance.
// ABOUTME: Errors use the {error, error_description} shape, never JSON-RPC envelopes.

package oauth

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/2389/workspace-gateway/internal/auth"
	"github.com/2389/workspace-gateway/internal/metrics"
)

// maxRegistrationBytes bounds a registration request body.
const maxRegistrationBytes = 64 << 10

// OAuth error codes (RFC 6749 section 5.2, RFC 7591 section 3.2.2)
const (
	errInvalidRequest          = "invalid_request"
	errInvalidClient           = "invalid_client"
	errInvalidGrant            = "invalid_grant"
	errUnauthorizedClient      = "unauthorized_client"
	errUnsupportedGrantType    = "unsupported_grant_type"
	errUnsupportedResponseType = "unsupported_response_type"
	errInvalidClientMetadata   = "invalid_client_metadata"
	errTemporarilyUnavailable  = "temporarily_unavailable"
	errServerError             = "server_error"
)

// Config holds configuration for the OAuth endpoints.
type Config struct {
	Clients *auth.ClientRegistry
	Issuer  *auth.Issuer

	// BaseURL is the externally visible origin, used in discovery documents.
	BaseURL string

	// Scopes are advertised as scopes_supported.
	Scopes []string

	// RegisterLimiter throttles /register. Nil means unlimited.
	RegisterLimiter *rate.Limiter

	Logger *slog.Logger
}

// Handler serves the OAuth surface.
type Handler struct {
	clients *auth.ClientRegistry
	issuer  *auth.Issuer
	baseURL string
	scopes  []string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewHandler creates the OAuth handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Clients == nil {
		return nil, errors.New("client registry is required")
	}
	if cfg.Issuer == nil {
		return nil, errors.New("token issuer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		clients: cfg.Clients,
		issuer:  cfg.Issuer,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		scopes:  cfg.Scopes,
		limiter: cfg.RegisterLimiter,
		logger:  logger.With("component", "oauth"),
	}, nil
}

// RegisterRoutes mounts every OAuth endpoint on r, each also under /oauth2.
func (h *Handler) RegisterRoutes(r chi.Router) {
	for _, prefix := range []string{"", "/oauth2"} {
		r.Post(prefix+"/register", h.handleRegister)
		r.Get(prefix+"/authorize", h.handleAuthorize)
		r.Post(prefix+"/token", h.handleToken)
		r.Post(prefix+"/introspect", h.handleIntrospect)
	}
	r.Get("/.well-known/oauth-authorization-server", h.handleAuthorizationServerMetadata)
	r.Get("/.well-known/oauth-protected-resource", h.handleProtectedResourceMetadata)
}

// handleRegister implements Dynamic Client Registration (RFC 7591).
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow() {
		h.logger.Warn("client registration throttled", "remote_addr", r.RemoteAddr)
		w.Header().Set("Retry-After", "1")
		h.fail(w, "register", http.StatusTooManyRequests, errTemporarilyUnavailable, "too many registration requests")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRegistrationBytes+1))
	if err != nil || len(body) > maxRegistrationBytes {
		h.fail(w, "register", http.StatusBadRequest, errInvalidClientMetadata, "unreadable or oversized request body")
		return
	}

	var meta auth.ClientMetadata
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &meta); err != nil {
			h.fail(w, "register", http.StatusBadRequest, errInvalidClientMetadata, "malformed client metadata: "+err.Error())
			return
		}
	}

	client, err := h.clients.Register(meta)
	switch {
	case errors.Is(err, auth.ErrInvalidClientMetadata):
		h.fail(w, "register", http.StatusBadRequest, errInvalidClientMetadata, err.Error())
		return
	case errors.Is(err, auth.ErrRegistryFull):
		h.fail(w, "register", http.StatusServiceUnavailable, errTemporarilyUnavailable, "client registry is full")
		return
	case err != nil:
		h.logger.Error("client registration failed", "error", err)
		h.fail(w, "register", http.StatusInternalServerError, errServerError, "registration failed")
		return
	}

	metrics.RecordOAuth("register", true)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusCreated, client)
}

// authorizeResponse tells the caller where to send the user agent next.
type authorizeResponse struct {
	RedirectURI string `json:"redirect_uri"`
	Code        string `json:"code"`
	State       string `json:"state,omitempty"`
}

// handleAuthorize validates the client and returns the redirect the user
// agent should follow. Consent with the upstream identity provider happens
// outside the gateway.
func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID := q.Get("client_id")
	state := q.Get("state")

	if !h.clients.Authorize(clientID) {
		h.logger.Debug("authorize for unknown client", "client_id", clientID)
		h.fail(w, "authorize", http.StatusBadRequest, errInvalidClient, "unknown client_id")
		return
	}

	if rt := q.Get("response_type"); rt != "" && rt != auth.ResponseTypeCode {
		h.fail(w, "authorize", http.StatusBadRequest, errUnsupportedResponseType, "only response_type=code is supported")
		return
	}

	redirectURI, err := h.clients.ValidateRedirectURI(clientID, q.Get("redirect_uri"))
	if err != nil {
		h.fail(w, "authorize", http.StatusBadRequest, errInvalidRequest, "redirect_uri is not registered for this client")
		return
	}

	code, err := h.issuer.IssueCode(clientID, redirectURI)
	if err != nil {
		h.logger.Error("failed to issue authorization code", "client_id", clientID, "error", err)
		h.fail(w, "authorize", http.StatusInternalServerError, errServerError, "could not issue code")
		return
	}

	target, err := url.Parse(redirectURI)
	if err != nil {
		h.fail(w, "authorize", http.StatusBadRequest, errInvalidRequest, "redirect_uri is malformed")
		return
	}
	params := target.Query()
	params.Set("code", code)
	if state != "" {
		params.Set("state", state)
	}
	target.RawQuery = params.Encode()

	metrics.RecordOAuth("authorize", true)
	h.logger.Info("authorization granted", "client_id", clientID)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, authorizeResponse{
		RedirectURI: target.String(),
		Code:        code,
		State:       state,
	})
}

// handleToken issues tokens (RFC 6749 section 3.2). A request without a
// grant_type is treated as a direct exchange for a known client.
func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.fail(w, "token", http.StatusBadRequest, errInvalidRequest, "malformed form body")
		return
	}

	client, authenticated, reason := h.authenticateClient(r)
	if client == nil {
		h.fail(w, "token", http.StatusBadRequest, errInvalidClient, reason)
		return
	}
	clientID := client.ClientID

	grantType := r.PostForm.Get("grant_type")
	if grantType != "" && !client.AllowsGrant(grantType) {
		switch grantType {
		case auth.GrantAuthorizationCode, auth.GrantRefreshToken, auth.GrantClientCredentials:
			h.fail(w, "token", http.StatusBadRequest, errUnauthorizedClient, "grant_type not registered for this client")
		default:
			h.fail(w, "token", http.StatusBadRequest, errUnsupportedGrantType, "unsupported grant_type")
		}
		return
	}

	switch grantType {
	case "":
	case auth.GrantAuthorizationCode:
		code := r.PostForm.Get("code")
		if code == "" {
			h.fail(w, "token", http.StatusBadRequest, errInvalidRequest, "code is required")
			return
		}
		err := h.issuer.RedeemCode(code, clientID, r.PostForm.Get("redirect_uri"))
		if errors.Is(err, auth.ErrReplayGuardFull) {
			w.Header().Set("Retry-After", "60")
			h.fail(w, "token", http.StatusServiceUnavailable, errTemporarilyUnavailable, "too many outstanding authorization codes")
			return
		}
		if err != nil {
			h.logger.Debug("authorization code rejected", "client_id", clientID, "error", err)
			h.fail(w, "token", http.StatusBadRequest, errInvalidGrant, "authorization code is invalid, expired, or already used")
			return
		}
	case auth.GrantRefreshToken:
		token := r.PostForm.Get("refresh_token")
		if token == "" {
			h.fail(w, "token", http.StatusBadRequest, errInvalidRequest, "refresh_token is required")
			return
		}
		if err := h.issuer.RedeemRefreshToken(token, clientID); err != nil {
			h.fail(w, "token", http.StatusBadRequest, errInvalidGrant, "refresh token is invalid or expired")
			return
		}
	case auth.GrantClientCredentials:
		if !authenticated {
			h.fail(w, "token", http.StatusBadRequest, errInvalidClient, "client_credentials requires client authentication")
			return
		}
	}

	grant, err := h.issuer.IssueToken(client)
	if err != nil {
		h.logger.Error("failed to issue token", "client_id", clientID, "error", err)
		h.fail(w, "token", http.StatusInternalServerError, errServerError, "could not issue token")
		return
	}

	metrics.RecordOAuth("token", true)
	h.logger.Info("token issued", "client_id", clientID, "grant_type", grantType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, grant)
}

type introspectionResponse struct {
	Active    bool   `json:"active"`
	ClientID  string `json:"client_id,omitempty"`
	Scope     string `json:"scope,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
}

// authenticateClient resolves the calling client from HTTP Basic or form
// credentials. A presented secret must verify, and clients registered with a
// secret-based auth method must present one. authenticated reports whether a
// secret was verified. On failure client is nil and reason describes why.
func (h *Handler) authenticateClient(r *http.Request) (client *auth.RegisteredClient, authenticated bool, reason string) {
	clientID, secret, hasBasic := r.BasicAuth()
	if !hasBasic {
		clientID = r.PostForm.Get("client_id")
		secret = r.PostForm.Get("client_secret")
	}

	client, err := h.clients.Validate(clientID)
	if err != nil {
		h.logger.Debug("request from unknown client", "client_id", clientID, "path", r.URL.Path)
		return nil, false, "unknown client_id"
	}
	if secret != "" {
		if err := h.clients.VerifySecret(clientID, secret); err != nil {
			return nil, false, "client authentication failed"
		}
		return client, true, ""
	}
	if client.RequiresSecret() {
		return nil, false, "client_secret is required"
	}
	return client, false, ""
}

// handleIntrospect reports whether an access token is live (RFC 7662). The
// caller must identify itself as a registered client and may only learn
// about its own tokens.
func (h *Handler) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.fail(w, "introspect", http.StatusBadRequest, errInvalidRequest, "malformed form body")
		return
	}

	caller, _, reason := h.authenticateClient(r)
	if caller == nil {
		w.Header().Set("WWW-Authenticate", `Basic realm="introspect"`)
		h.fail(w, "introspect", http.StatusUnauthorized, errInvalidClient, reason)
		return
	}

	token := r.PostForm.Get("token")
	if token == "" {
		h.fail(w, "introspect", http.StatusBadRequest, errInvalidRequest, "token is required")
		return
	}

	metrics.RecordOAuth("introspect", true)
	info, err := h.issuer.VerifyAccessToken(token)
	if err != nil || info.ClientID != caller.ClientID || !h.clients.Authorize(info.ClientID) {
		writeJSON(w, http.StatusOK, introspectionResponse{Active: false})
		return
	}
	writeJSON(w, http.StatusOK, introspectionResponse{
		Active:    true,
		ClientID:  info.ClientID,
		Scope:     info.Scope,
		TokenType: "Bearer",
		Exp:       info.ExpiresAt.Unix(),
	})
}

// fail writes an OAuth error body and counts the failure.
func (h *Handler) fail(w http.ResponseWriter, endpoint string, status int, code, description string) {
	metrics.RecordOAuth(endpoint, false)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
