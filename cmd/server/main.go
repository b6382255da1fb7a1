package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tendant/signed-upload/pkg/signedurl/api"
	"github.com/tendant/signed-upload/pkg/signedurl/config"
	"github.com/tendant/signed-upload/pkg/signedurl/uploads"
)

func main() {
	configFile := flag.String("config", "", "optional config file (yaml, json, toml or env)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		config.Usage(flag.CommandLine.Output())
	}
	flag.Parse()

	// Load environment variables from .env file
	if err := godotenv.Load(".env"); err != nil {
		// It's okay if .env doesn't exist, we'll use default values
		slog.Info("No .env file found or error loading it, using default values", "err", err)
	}

	if err := run(*configFile); err != nil {
		slog.Error("Server failed", "err", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	opt := config.WithEnv()
	if configFile != "" {
		opt = config.WithFile(configFile)
	}
	cfg, err := config.Load(opt)
	if err != nil {
		return fmt.Errorf("failed to load server configuration: %w", err)
	}

	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx := context.Background()
	assembler, err := cfg.BuildAssembler(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to build signer: %w", err)
	}

	handler := api.NewHandler(uploads.NewIssuer(assembler, cfg), cfg, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Signed upload server starting",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"bucket", cfg.Bucket,
			"identity", cfg.ServiceAccountEmail,
			"signer", cfg.Signer.Kind,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exiting")
	return nil
}
