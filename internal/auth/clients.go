// ABOUTME: In-memory registry of dynamically registered OAuth clients.
// ABOUTME: Generates client ids and secrets, applies metadata defaults, and validates lookups.

package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/workspace-gateway/internal/metrics"
)

// Registry errors
var (
	ErrInvalidClient         = errors.New("invalid client")
	ErrInvalidClientMetadata = errors.New("invalid client metadata")
	ErrInvalidRedirectURI    = errors.New("invalid redirect uri")
	ErrRegistryFull          = errors.New("client registry is full")
)

// Grant, response and authentication method values the registry accepts.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"

	ResponseTypeCode = "code"

	AuthMethodNone              = "none"
	AuthMethodClientSecretPost  = "client_secret_post"
	AuthMethodClientSecretBasic = "client_secret_basic"
)

// Registry defaults
const (
	DefaultClientIDPrefix = "mcp_"
	DefaultScope          = "email calendar drive docs"
	DefaultMaxClients     = 10000
)

// DefaultRedirectURIs is used when neither the caller nor the config names any.
var DefaultRedirectURIs = []string{"https://claude.ai/api/mcp/auth_callback"}

var (
	defaultGrantTypes    = []string{GrantAuthorizationCode, GrantRefreshToken}
	defaultResponseTypes = []string{ResponseTypeCode}
	allowedGrantTypes    = []string{GrantAuthorizationCode, GrantRefreshToken, GrantClientCredentials}
	allowedAuthMethods   = []string{"", AuthMethodNone, AuthMethodClientSecretPost, AuthMethodClientSecretBasic}
)

const secretBytes = 32

// ClientMetadata is the body of a registration request. Every field is optional.
type ClientMetadata struct {
	RedirectURIs            []string `json:"redirect_uris,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
}

// RegisteredClient is a client record. ClientSecret is only populated on the
// value returned by Register; stored records keep a bcrypt hash instead.
type RegisteredClient struct {
	ClientID                string    `json:"client_id"`
	ClientSecret            string    `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64     `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64     `json:"client_secret_expires_at"`
	RedirectURIs            []string  `json:"redirect_uris"`
	Scope                   string    `json:"scope"`
	GrantTypes              []string  `json:"grant_types"`
	ResponseTypes           []string  `json:"response_types"`
	ClientName              string    `json:"client_name"`
	TokenEndpointAuthMethod string    `json:"token_endpoint_auth_method"`
	CreatedAt               time.Time `json:"-"`

	secretHash []byte
}

// AllowsGrant reports whether the client registered the given grant type.
func (c *RegisteredClient) AllowsGrant(grantType string) bool {
	return slices.Contains(c.GrantTypes, grantType)
}

// RequiresSecret reports whether the client must authenticate at /token.
func (c *RegisteredClient) RequiresSecret() bool {
	return c.TokenEndpointAuthMethod == AuthMethodClientSecretPost ||
		c.TokenEndpointAuthMethod == AuthMethodClientSecretBasic
}

func (c *RegisteredClient) clone() *RegisteredClient {
	out := *c
	out.RedirectURIs = slices.Clone(c.RedirectURIs)
	out.GrantTypes = slices.Clone(c.GrantTypes)
	out.ResponseTypes = slices.Clone(c.ResponseTypes)
	out.secretHash = nil
	return &out
}

// RegistryConfig holds configuration for the client registry.
type RegistryConfig struct {
	IDPrefix            string
	DefaultRedirectURIs []string
	DefaultScope        string
	MaxClients          int

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int

	Logger *slog.Logger
}

// ClientRegistry stores registered clients for the life of the process.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*RegisteredClient

	prefix       string
	redirectURIs []string
	scope        string
	maxClients   int
	bcryptCost   int
	logger       *slog.Logger
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry(cfg RegistryConfig) *ClientRegistry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := cfg.IDPrefix
	if prefix == "" {
		prefix = DefaultClientIDPrefix
	}
	redirectURIs := cfg.DefaultRedirectURIs
	if len(redirectURIs) == 0 {
		redirectURIs = DefaultRedirectURIs
	}
	scope := cfg.DefaultScope
	if scope == "" {
		scope = DefaultScope
	}
	maxClients := cfg.MaxClients
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &ClientRegistry{
		clients:      make(map[string]*RegisteredClient),
		prefix:       prefix,
		redirectURIs: slices.Clone(redirectURIs),
		scope:        scope,
		maxClients:   maxClients,
		bcryptCost:   cost,
		logger:       logger.With("component", "client_registry"),
	}
}

// Register validates metadata, fills in defaults, and stores a new client.
// The returned record is the only place the plaintext secret ever appears.
func (r *ClientRegistry) Register(meta ClientMetadata) (*RegisteredClient, error) {
	if err := validateMetadata(meta); err != nil {
		return nil, err
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generating client secret: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), r.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing client secret: %w", err)
	}

	now := time.Now()
	client := &RegisteredClient{
		ClientID:                r.prefix + strings.ReplaceAll(uuid.NewString(), "-", ""),
		ClientIDIssuedAt:        now.Unix(),
		RedirectURIs:            orDefault(meta.RedirectURIs, r.redirectURIs),
		Scope:                   meta.Scope,
		GrantTypes:              orDefault(meta.GrantTypes, defaultGrantTypes),
		ResponseTypes:           orDefault(meta.ResponseTypes, defaultResponseTypes),
		ClientName:              meta.ClientName,
		TokenEndpointAuthMethod: meta.TokenEndpointAuthMethod,
		CreatedAt:               now,
		secretHash:              hash,
	}
	if client.Scope == "" {
		client.Scope = r.scope
	}
	if client.TokenEndpointAuthMethod == "" {
		client.TokenEndpointAuthMethod = AuthMethodNone
	}

	r.mu.Lock()
	if len(r.clients) >= r.maxClients {
		r.mu.Unlock()
		return nil, ErrRegistryFull
	}
	if _, exists := r.clients[client.ClientID]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("client id collision: %s", client.ClientID)
	}
	r.clients[client.ClientID] = client
	count := len(r.clients)
	r.mu.Unlock()

	metrics.SetRegisteredClients(count)
	r.logger.Info("client registered",
		"client_id", client.ClientID,
		"client_name", client.ClientName,
		"redirect_uris", len(client.RedirectURIs),
	)

	out := client.clone()
	out.ClientSecret = secret
	return out, nil
}

// Authorize reports whether clientID was produced by a prior Register call.
func (r *ClientRegistry) Authorize(clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[clientID]
	return ok
}

// Validate returns a copy of the client record, without its secret.
func (r *ClientRegistry) Validate(clientID string) (*RegisteredClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[clientID]
	if !ok {
		return nil, ErrInvalidClient
	}
	return client.clone(), nil
}

// VerifySecret checks secret against the stored hash for clientID.
func (r *ClientRegistry) VerifySecret(clientID, secret string) error {
	r.mu.RLock()
	client, ok := r.clients[clientID]
	var hash []byte
	if ok {
		hash = client.secretHash
	}
	r.mu.RUnlock()

	if !ok {
		return ErrInvalidClient
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(secret)); err != nil {
		return fmt.Errorf("%w: secret mismatch", ErrInvalidClient)
	}
	return nil
}

// ValidateRedirectURI returns the redirect URI to use for clientID. An empty
// uri selects the client's first registered URI; anything else must match a
// registered URI exactly.
func (r *ClientRegistry) ValidateRedirectURI(clientID, uri string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[clientID]
	if !ok {
		return "", ErrInvalidClient
	}
	if uri == "" {
		return client.RedirectURIs[0], nil
	}
	if !slices.Contains(client.RedirectURIs, uri) {
		return "", fmt.Errorf("%w: %s is not registered", ErrInvalidRedirectURI, uri)
	}
	return uri, nil
}

// Count returns the number of registered clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func validateMetadata(meta ClientMetadata) error {
	for _, uri := range meta.RedirectURIs {
		if err := validateRedirectURI(uri); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidClientMetadata, err)
		}
	}
	for _, gt := range meta.GrantTypes {
		if !slices.Contains(allowedGrantTypes, gt) {
			return fmt.Errorf("%w: unsupported grant type %q", ErrInvalidClientMetadata, gt)
		}
	}
	for _, rt := range meta.ResponseTypes {
		if rt != ResponseTypeCode {
			return fmt.Errorf("%w: unsupported response type %q", ErrInvalidClientMetadata, rt)
		}
	}
	if !slices.Contains(allowedAuthMethods, meta.TokenEndpointAuthMethod) {
		return fmt.Errorf("%w: unsupported token endpoint auth method %q",
			ErrInvalidClientMetadata, meta.TokenEndpointAuthMethod)
	}
	return nil
}

// validateRedirectURI accepts https URIs, http on loopback hosts, and
// private-use schemes for native apps.
func validateRedirectURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("redirect uri %q: %w", raw, err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("redirect uri %q is not absolute", raw)
	}
	if u.Fragment != "" {
		return fmt.Errorf("redirect uri %q must not contain a fragment", raw)
	}

	switch strings.ToLower(u.Scheme) {
	case "https":
		if u.Host == "" {
			return fmt.Errorf("redirect uri %q has no host", raw)
		}
	case "http":
		if !isLoopback(u.Hostname()) {
			return fmt.Errorf("redirect uri %q uses http on a non-loopback host", raw)
		}
	case "javascript", "data", "file", "vbscript":
		return fmt.Errorf("redirect uri %q uses a forbidden scheme", raw)
	}
	return nil
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func generateSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func orDefault(values, fallback []string) []string {
	if len(values) == 0 {
		return slices.Clone(fallback)
	}
	return slices.Clone(values)
}
