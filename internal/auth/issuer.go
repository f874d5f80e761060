// ABOUTME: Issues and verifies HS256 JWTs for access tokens, refresh tokens and authorization codes.
// ABOUTME: Authorization codes are single use, enforced with a ReplayGuard.

package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token errors
var (
	ErrInvalidGrant = errors.New("invalid grant")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Issuer defaults
const (
	DefaultTokenTTL   = time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
	DefaultCodeTTL    = 5 * time.Minute
)

// Values of the "use" claim.
const (
	useAccess  = "access"
	useRefresh = "refresh"
	useCode    = "code"
)

// TokenGrant is the body of a successful token response.
type TokenGrant struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope"`
	ClientID     string `json:"client_id"`
}

// AccessTokenInfo describes a verified access token.
type AccessTokenInfo struct {
	ClientID  string
	Scope     string
	ExpiresAt time.Time
}

type gatewayClaims struct {
	jwt.RegisteredClaims
	Use         string `json:"use"`
	Scope       string `json:"scope,omitempty"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// IssuerConfig holds configuration for the token issuer.
type IssuerConfig struct {
	Secret     []byte
	Issuer     string
	TokenTTL   time.Duration
	RefreshTTL time.Duration
	CodeTTL    time.Duration
	Guard      *ReplayGuard
	Logger     *slog.Logger
}

// Issuer signs and verifies the gateway's tokens with a shared secret.
type Issuer struct {
	secret     []byte
	issuer     string
	tokenTTL   time.Duration
	refreshTTL time.Duration
	codeTTL    time.Duration
	guard      *ReplayGuard
	logger     *slog.Logger
}

// NewIssuer creates an issuer. The secret must not be empty.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("issuer secret is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	guard := cfg.Guard
	if guard == nil {
		guard = NewReplayGuard(DefaultReplayGuardSize)
	}
	return &Issuer{
		secret:     cfg.Secret,
		issuer:     cfg.Issuer,
		tokenTTL:   durationOr(cfg.TokenTTL, DefaultTokenTTL),
		refreshTTL: durationOr(cfg.RefreshTTL, DefaultRefreshTTL),
		codeTTL:    durationOr(cfg.CodeTTL, DefaultCodeTTL),
		guard:      guard,
		logger:     logger.With("component", "issuer"),
	}, nil
}

// IssueToken issues an access token for client, plus a refresh token when
// the client registered the refresh_token grant.
func (i *Issuer) IssueToken(client *RegisteredClient) (*TokenGrant, error) {
	access, err := i.sign(client.ClientID, useAccess, client.Scope, "", i.tokenTTL)
	if err != nil {
		return nil, err
	}

	grant := &TokenGrant{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(i.tokenTTL / time.Second),
		Scope:       client.Scope,
		ClientID:    client.ClientID,
	}
	if client.AllowsGrant(GrantRefreshToken) {
		grant.RefreshToken, err = i.sign(client.ClientID, useRefresh, client.Scope, "", i.refreshTTL)
		if err != nil {
			return nil, err
		}
	}

	i.logger.Debug("token issued", "client_id", client.ClientID, "refresh", grant.RefreshToken != "")
	return grant, nil
}

// IssueCode issues a short-lived authorization code bound to clientID and
// redirectURI.
func (i *Issuer) IssueCode(clientID, redirectURI string) (string, error) {
	return i.sign(clientID, useCode, "", redirectURI, i.codeTTL)
}

// RedeemCode checks that code was issued to clientID, has not expired, and
// has not been redeemed before. A non-empty redirectURI must match the one
// the code was issued for. ErrReplayGuardFull is returned, and the code is
// not accepted, when the guard has no room to remember it.
func (i *Issuer) RedeemCode(code, clientID, redirectURI string) error {
	claims, err := i.parse(code, clientID, useCode)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGrant, err)
	}
	if redirectURI != "" && redirectURI != claims.RedirectURI {
		return fmt.Errorf("%w: redirect_uri mismatch", ErrInvalidGrant)
	}
	switch err := i.guard.Consume(claims.ID, claims.ExpiresAt.Time); {
	case errors.Is(err, ErrAlreadyConsumed):
		i.logger.Warn("authorization code replayed", "client_id", clientID, "jti", claims.ID)
		return fmt.Errorf("%w: code already used", ErrInvalidGrant)
	case err != nil:
		i.logger.Error("cannot record authorization code", "client_id", clientID, "error", err)
		return err
	}
	return nil
}

// RedeemRefreshToken checks that token is a live refresh token for clientID.
func (i *Issuer) RedeemRefreshToken(token, clientID string) error {
	if _, err := i.parse(token, clientID, useRefresh); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGrant, err)
	}
	return nil
}

// VerifyAccessToken validates an access token and returns what it grants.
func (i *Issuer) VerifyAccessToken(token string) (*AccessTokenInfo, error) {
	claims, err := i.parse(token, "", useAccess)
	if err != nil {
		return nil, err
	}
	return &AccessTokenInfo{
		ClientID:  claims.Subject,
		Scope:     claims.Scope,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (i *Issuer) sign(clientID, use, scope, redirectURI string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := gatewayClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Subject:   clientID,
			Audience:  jwt.ClaimStrings{clientID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Use:         use,
		Scope:       scope,
		RedirectURI: redirectURI,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", use, err)
	}
	return signed, nil
}

// parse verifies signature, issuer, expiry and use. A non-empty clientID
// must match the token's audience.
func (i *Issuer) parse(token, clientID, use string) (*gatewayClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	if clientID != "" {
		opts = append(opts, jwt.WithAudience(clientID))
	}

	var claims gatewayClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Use != use {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, use, claims.Use)
	}
	return &claims, nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
