package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tendant/signed-upload/internal/mcp"
	"github.com/tendant/signed-upload/pkg/signedurl/config"
	"github.com/tendant/signed-upload/pkg/signedurl/uploads"
)

// Config holds settings of the MCP transport itself; signing settings come
// from pkg/signedurl/config.
type Config struct {
	Host    string `env:"MCP_HOST" env-default:"localhost"`
	Port    uint16 `env:"MCP_PORT" env-default:"8000"`
	BaseUrl string `env:"MCP_BASE_URL" env-default:"http://localhost:8000"`
}

func main() {
	// Server mode flags
	var mode = flag.String("mode", "stdio", "Server mode: 'stdio', 'sse', or 'http'")
	flag.Parse()

	// Load environment variables from .env file
	if err := godotenv.Load(".env"); err != nil {
		// It's okay if .env doesn't exist, we'll use default values
		slog.Info("No .env file found or error loading it, using default values", "err", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read MCP configuration", "err", err)
		os.Exit(1)
	}

	serverCfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load signing configuration", "err", err)
		os.Exit(1)
	}

	// stdout carries the stdio protocol, so logs go to stderr
	logger := serverCfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	assembler, err := serverCfg.BuildAssembler(context.Background(), logger)
	if err != nil {
		slog.Error("Failed to build signer", "err", err)
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"Signed Upload MCP",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	handler := mcp.NewHandler(uploads.NewIssuer(assembler, serverCfg))
	handler.RegisterTools(s)

	switch *mode {
	case "sse":
		sseServer := server.NewSSEServer(s, server.WithBaseURL(cfg.BaseUrl))
		slog.Info("Starting SSE server", "base url", cfg.BaseUrl)
		if err := sseServer.Start(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)); err != nil {
			slog.Error("Failed to start SSE server", "err", err)
			os.Exit(-1)
		}
	case "http":
		httpServer := server.NewStreamableHTTPServer(s)
		slog.Info("HTTP server listening", "port", cfg.Port)
		if err := httpServer.Start(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)); err != nil {
			slog.Error("Server error", "err", err)
			os.Exit(-1)
		}
	default:
		slog.Info("Starting in stdio mode")
		if err := server.ServeStdio(s); err != nil {
			slog.Error("Failed to start stdio server", "err", err)
			os.Exit(-1)
		}
	}
}
