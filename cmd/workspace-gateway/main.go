// ABOUTME: Entry point for workspace-gateway, the Google Workspace MCP server
// ABOUTME: Provides serve, init, health and version subcommands

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/workspace-gateway/internal/config"
	"github.com/2389/workspace-gateway/internal/gateway"
	"github.com/2389/workspace-gateway/internal/metrics"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                    _                                     _
__      _____  _ __| | _____ _ __   __ _  ___ ___    __ _| |_ ___
\ \ /\ / / _ \| '__| |/ / __| '_ \ / _' |/ __/ _ \  / _' | __/ _ \
 \ V  V / (_) | |  |   <\__ \ |_) | (_| | (_|  __/ | (_| | ||  __/
  \_/\_/ \___/|_|  |_|\_\___/ .__/ \__,_|\___\___|  \__, |\__\___|
                            |_|                     |___/
`

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: workspace-gateway <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve     Start the gateway server")
	fmt.Fprintln(w, "  init      Write a default config file")
	fmt.Fprintln(w, "  health    Check gateway health")
	fmt.Fprintln(w, "  version   Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stdout)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(config.ResolvePath())
	case "health":
		err = runHealth(ctx)
	case "version", "--version", "-v":
		fmt.Println(version)
	case "help", "--help", "-h":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.ResolvePath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	metrics.SetBuildInfo(version)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	if _, statErr := os.Stat(configPath); statErr == nil {
		fmt.Printf("Config:    %s\n", configPath)
	} else {
		fmt.Printf("Config:    %s ", configPath)
		yellow.Println("(not found, using defaults)")
	}
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Base URL:  %s\n", cfg.Server.BaseURL)

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	fmt.Println()

	logger.Info("starting workspace-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"base_url", cfg.Server.BaseURL,
		"version", version,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// runInit writes a starter config with a fresh JWT secret. It never
// overwrites an existing file.
func runInit(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking config path: %w", err)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(config.DefaultYAML(jwtSecret)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created config: %s\n", configPath)
	fmt.Println("\nTo start the server:")
	fmt.Println("  workspace-gateway serve")
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.LoadOrDefault(config.ResolvePath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return checkHealth(ctx, http.DefaultClient, cfg.Server.BaseURL)
}

// checkHealth calls <baseURL>/health and reports anything but 200 as unhealthy.
func checkHealth(ctx context.Context, client *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+gateway.PathHealth, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
