// ABOUTME: Tests for JWT issuing and verification.
// ABOUTME: Covers access and refresh tokens, authorization code redemption, and tampering.

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("test-secret-key-for-jwt-signing")

func newTestIssuer(t *testing.T, cfg IssuerConfig) *Issuer {
	t.Helper()
	if cfg.Secret == nil {
		cfg.Secret = testSecret
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "https://gateway.example.com"
	}
	if cfg.Guard == nil {
		cfg.Guard = NewReplayGuard(100)
		t.Cleanup(cfg.Guard.Close)
	}
	issuer, err := NewIssuer(cfg)
	require.NoError(t, err)
	return issuer
}

func registerTestClient(t *testing.T, meta ClientMetadata) *RegisteredClient {
	t.Helper()
	r := NewClientRegistry(RegistryConfig{BcryptCost: bcrypt.MinCost})
	client, err := r.Register(meta)
	require.NoError(t, err)
	return client
}

func TestNewIssuer_RequiresSecret(t *testing.T) {
	_, err := NewIssuer(IssuerConfig{})
	assert.Error(t, err)
}

func TestIssueToken_AccessTokenVerifies(t *testing.T) {
	issuer := newTestIssuer(t, IssuerConfig{TokenTTL: 10 * time.Minute})
	client := registerTestClient(t, ClientMetadata{Scope: "email drive"})

	grant, err := issuer.IssueToken(client)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", grant.TokenType)
	assert.Equal(t, int64(600), grant.ExpiresIn)
	assert.Equal(t, "email drive", grant.Scope)
	assert.Equal(t, client.ClientID, grant.ClientID)
	assert.NotEmpty(t, grant.RefreshToken)

	info, err := issuer.VerifyAccessToken(grant.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, client.ClientID, info.ClientID)
	assert.Equal(t, "email drive", info.Scope)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), info.ExpiresAt, 5*time.Second)
}

func TestIssueToken_NoRefreshWithoutGrant(t *testing.T) {
	issuer := newTestIssuer(t, IssuerConfig{})
	client := registerTestClient(t, ClientMetadata{GrantTypes: []string{GrantClientCredentials}})

	grant, err := issuer.IssueToken(client)
	require.NoError(t, err)
	assert.Empty(t, grant.RefreshToken)
}

func TestVerifyAccessToken_Rejects(t *testing.T) {
	issuer := newTestIssuer(t, IssuerConfig{})
	client := registerTestClient(t, ClientMetadata{})

	grant, err := issuer.IssueToken(client)
	require.NoError(t, err)
	code, err := issuer.IssueCode(client.ClientID, client.RedirectURIs[0])
	require.NoError(t, err)

	other := newTestIssuer(t, IssuerConfig{Secret: []byte("different-secret")})
	foreign, err := other.IssueToken(client)
	require.NoError(t, err)

	otherIssuer := newTestIssuer(t, IssuerConfig{Issuer: "https://elsewhere.example.com"})
	wrongIss, err := otherIssuer.IssueToken(client)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt-token"},
		{"malformed", "header.payload.signature"},
		{"wrong secret", foreign.AccessToken},
		{"wrong issuer", wrongIss.AccessToken},
		{"refresh token", grant.RefreshToken},
		{"authorization code", code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.VerifyAccessToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifyAccessToken_Expired(t *testing.T) {
	issuer := newTestIssuer(t, IssuerConfig{})
	client := registerTestClient(t, ClientMetadata{})

	token, err := issuer.sign(client.ClientID, useAccess, "", "", -time.Hour)
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRedeemCode(t *testing.T) {
	issuer := newTestIssuer(t, IssuerConfig{})
	client := registerTestClient(t, ClientMetadata{})
	redirect := client.RedirectURIs[0]

	t.Run("single use", func(t *testing.T) {
		code, err := issuer.IssueCode(client.ClientID, redirect)
		require.NoError(t, err)

		require.NoError(t, issuer.RedeemCode(code, client.ClientID, redirect))
		assert.ErrorIs(t, issuer.RedeemCode(code, client.ClientID, redirect), ErrInvalidGrant)
	})

	t.Run("redirect uri may be omitted", func(t *testing.T) {
		code, err := issuer.IssueCode(client.ClientID, redirect)
		require.NoError(t, err)
		assert.NoError(t, issuer.RedeemCode(code, client.ClientID, ""))
	})

	t.Run("redirect uri mismatch", func(t *testing.T) {
		code, err := issuer.IssueCode(client.ClientID, redirect)
		require.NoError(t, err)
		assert.ErrorIs(t, issuer.RedeemCode(code, client.ClientID, "https://other.example.com/cb"), ErrInvalidGrant)
	})

	t.Run("other client", func(t *testing.T) {
		code, err := issuer.IssueCode(client.ClientID, redirect)
		require.NoError(t, err)
		assert.ErrorIs(t, issuer.RedeemCode(code, "mcp_someone_else", redirect), ErrInvalidGrant)
	})

	t.Run("access token is not a code", func(t *testing.T) {
		grant, err := issuer.IssueToken(client)
		require.NoError(t, err)
		assert.ErrorIs(t, issuer.RedeemCode(grant.AccessToken, client.ClientID, ""), ErrInvalidGrant)
	})

	t.Run("expired", func(t *testing.T) {
		code, err := issuer.sign(client.ClientID, useCode, "", redirect, -time.Minute)
		require.NoError(t, err)
		assert.ErrorIs(t, issuer.RedeemCode(code, client.ClientID, redirect), ErrInvalidGrant)
	})
}

func TestRedeemCode_StaysSingleUseWhenGuardFills(t *testing.T) {
	guard := NewReplayGuard(2)
	t.Cleanup(guard.Close)
	issuer := newTestIssuer(t, IssuerConfig{Guard: guard})
	client := registerTestClient(t, ClientMetadata{})
	redirect := client.RedirectURIs[0]

	issue := func() string {
		code, err := issuer.IssueCode(client.ClientID, redirect)
		require.NoError(t, err)
		return code
	}

	used := issue()
	require.NoError(t, issuer.RedeemCode(used, client.ClientID, redirect))
	assert.ErrorIs(t, issuer.RedeemCode(used, client.ClientID, redirect), ErrInvalidGrant)

	require.NoError(t, issuer.RedeemCode(issue(), client.ClientID, redirect))
	assert.ErrorIs(t, issuer.RedeemCode(issue(), client.ClientID, redirect), ErrReplayGuardFull)

	assert.ErrorIs(t, issuer.RedeemCode(used, client.ClientID, redirect), ErrInvalidGrant)
	assert.Equal(t, 2, guard.Len())
}

func TestRedeemRefreshToken(t *testing.T) {
	issuer := newTestIssuer(t, IssuerConfig{})
	client := registerTestClient(t, ClientMetadata{})

	grant, err := issuer.IssueToken(client)
	require.NoError(t, err)

	assert.NoError(t, issuer.RedeemRefreshToken(grant.RefreshToken, client.ClientID))
	assert.NoError(t, issuer.RedeemRefreshToken(grant.RefreshToken, client.ClientID))
	assert.ErrorIs(t, issuer.RedeemRefreshToken(grant.AccessToken, client.ClientID), ErrInvalidGrant)
	assert.ErrorIs(t, issuer.RedeemRefreshToken(grant.RefreshToken, "mcp_other"), ErrInvalidGrant)
}
