// ABOUTME: OAuth discovery documents for authorization server and protected resource metadata.
// ABOUTME: Both documents are computed from the configured base URL and never change at runtime.

package oauth

import (
	"net/http"

	"github.com/2389/workspace-gateway/internal/auth"
)

// AuthorizationServerMetadata is the RFC 8414 document.
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
}

// ProtectedResourceMetadata is the RFC 9728 document.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
}

// AuthorizationServerMetadata builds the authorization server document.
func (h *Handler) AuthorizationServerMetadata() AuthorizationServerMetadata {
	return AuthorizationServerMetadata{
		Issuer:                h.baseURL,
		AuthorizationEndpoint: h.baseURL + "/authorize",
		TokenEndpoint:         h.baseURL + "/token",
		RegistrationEndpoint:  h.baseURL + "/register",
		IntrospectionEndpoint: h.baseURL + "/introspect",
		ScopesSupported:       h.scopes,
		ResponseTypesSupported: []string{
			auth.ResponseTypeCode,
		},
		GrantTypesSupported: []string{
			auth.GrantAuthorizationCode,
			auth.GrantRefreshToken,
			auth.GrantClientCredentials,
		},
		TokenEndpointAuthMethodsSupported: []string{
			auth.AuthMethodNone,
			auth.AuthMethodClientSecretPost,
			auth.AuthMethodClientSecretBasic,
		},
	}
}

// ProtectedResourceMetadata builds the protected resource document for the
// MCP endpoint.
func (h *Handler) ProtectedResourceMetadata() ProtectedResourceMetadata {
	return ProtectedResourceMetadata{
		Resource:               h.baseURL + "/mcp",
		AuthorizationServers:   []string{h.baseURL},
		ScopesSupported:        h.scopes,
		BearerMethodsSupported: []string{"header"},
	}
}

func (h *Handler) handleAuthorizationServerMetadata(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.AuthorizationServerMetadata())
}

func (h *Handler) handleProtectedResourceMetadata(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ProtectedResourceMetadata())
}
