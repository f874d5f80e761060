// ABOUTME: Service endpoints: info/landing page, health, readiness, connector manifest and connect
// ABOUTME: Responses are computed from configuration and live component counts

package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/2389/workspace-gateway/internal/assets"
)

// ServiceInfo is the JSON body of GET /.
type ServiceInfo struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}

// Readiness is the JSON body of GET /health/ready.
type Readiness struct {
	Status      string `json:"status"`
	Clients     int    `json:"clients"`
	Sessions    int    `json:"sessions"`
	Subscribers int    `json:"subscribers"`
	Tools       int    `json:"tools"`
}

// Manifest is the connector manifest served for client discovery.
type Manifest struct {
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	Version          string            `json:"version"`
	Endpoints        ManifestEndpoints `json:"endpoints"`
	Transport        []string          `json:"transport"`
	OAuth            bool              `json:"oauth"`
	SSE              bool              `json:"sse"`
	IconURL          string            `json:"icon_url,omitempty"`
	DocumentationURL string            `json:"documentation_url,omitempty"`
	Scopes           []string          `json:"scopes"`
	Features         []string          `json:"features,omitempty"`
}

// ManifestEndpoints lists the connector's entry points.
type ManifestEndpoints struct {
	Connect   string `json:"connect"`
	Configure string `json:"configure"`
}

// ConnectInfo is the JSON body of GET /connect.
type ConnectInfo struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	MCPEndpoint string `json:"mcp_endpoint"`
	SSEEndpoint string `json:"sse_endpoint"`
}

// handleRoot serves the landing page to browsers and service info to everything else.
func (g *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(g.landingHTML)
		return
	}

	base := g.BaseURL()
	writeJSON(w, http.StatusOK, ServiceInfo{
		Service: g.config.Manifest.Name,
		Version: g.config.Manifest.Version,
		Status:  "running",
		Endpoints: map[string]string{
			"mcp":       base + PathMCP,
			"sse":       base + PathSSE,
			"message":   base + PathMessage,
			"register":  base + "/register",
			"authorize": base + "/authorize",
			"token":     base + "/token",
			"manifest":  base + PathManifest,
			"health":    base + PathHealth,
		},
	})
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady reports component counts. The gateway is ready once its tool
// catalog is loaded.
func (g *Gateway) handleReady(w http.ResponseWriter, _ *http.Request) {
	ready := Readiness{
		Status:      "ready",
		Clients:     g.clients.Count(),
		Sessions:    g.streams.Active(),
		Subscribers: g.bridge.Subscribers(),
		Tools:       g.tools.Count(),
	}
	status := http.StatusOK
	if ready.Tools == 0 {
		ready.Status = "no tools registered"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, ready)
}

// Manifest builds the connector manifest.
func (g *Gateway) Manifest() Manifest {
	base := g.BaseURL()
	m := g.config.Manifest

	iconURL := m.IconURL
	if iconURL == "" {
		iconURL = base + "/static/" + assets.IconPath
	}

	return Manifest{
		Name:        m.Name,
		Description: m.Description,
		Version:     m.Version,
		Endpoints: ManifestEndpoints{
			Connect:   base + PathConnect,
			Configure: base + PathConfigure,
		},
		Transport:        []string{"sse", "http"},
		OAuth:            true,
		SSE:              true,
		IconURL:          iconURL,
		DocumentationURL: m.DocumentationURL,
		Scopes:           m.Scopes,
		Features:         m.Features,
	}
}

func (g *Gateway) handleManifest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.Manifest())
}

func (g *Gateway) handleConnect(w http.ResponseWriter, _ *http.Request) {
	base := g.BaseURL()
	writeJSON(w, http.StatusOK, ConnectInfo{
		Status:      "ready",
		Service:     g.config.Manifest.Name,
		MCPEndpoint: base + PathMCP,
		SSEEndpoint: base + PathSSE,
	})
}

// ConfigureInfo is the JSON body of GET /configure.
type ConfigureInfo struct {
	AuthorizationServer string   `json:"authorization_server"`
	RegistrationURL     string   `json:"registration_endpoint"`
	AuthorizationURL    string   `json:"authorization_endpoint"`
	TokenURL            string   `json:"token_endpoint"`
	Scopes              []string `json:"scopes"`
}

// handleConfigure tells a connector how to obtain credentials.
func (g *Gateway) handleConfigure(w http.ResponseWriter, _ *http.Request) {
	base := g.BaseURL()
	writeJSON(w, http.StatusOK, ConfigureInfo{
		AuthorizationServer: base + "/.well-known/oauth-authorization-server",
		RegistrationURL:     base + "/register",
		AuthorizationURL:    base + "/authorize",
		TokenURL:            base + "/token",
		Scopes:              g.config.Manifest.Scopes,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
