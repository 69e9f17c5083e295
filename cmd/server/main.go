package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/cookiefetch/internal/infrastructure/config"
	"github.com/GriffinCanCode/cookiefetch/internal/infrastructure/logging"
	"github.com/GriffinCanCode/cookiefetch/internal/infrastructure/server"
)

func main() {
	cfg := config.LoadOrDefault()

	port := flag.String("port", cfg.Server.Port, "Server port")
	host := flag.String("host", cfg.Server.Host, "Server host")
	allow := flag.String("allow", strings.Join(cfg.Scope.Allowlist, ","), "Comma separated URL glob patterns that may be fetched")
	scopeSource := flag.String("scope", cfg.Scope.Source, "File or http(s) URL holding more allowed patterns")
	capacity := flag.Int("pool", cfg.Pool.Capacity, "Maximum number of pooled clients")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development mode (colored logs, debug level)")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Server.Host = *host
	cfg.Scope.Allowlist = splitPatterns(*allow)
	cfg.Scope.Source = *scopeSource
	cfg.Pool.Capacity = *capacity
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	logger := logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
	srv, err := server.NewServer(loadCtx, cfg, logger)
	cancelLoad()
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-sigChan:
		logger.Info("Shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
	case err := <-errChan:
		srv.Close()
		if err != nil {
			logger.Fatal("Server error", zap.Error(err))
		}
	}
}

func splitPatterns(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
