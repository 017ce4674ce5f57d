package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/entraops/guestgate/internal/api"
	"github.com/entraops/guestgate/internal/app"
	"github.com/entraops/guestgate/internal/graph"
	"github.com/entraops/guestgate/internal/services"
	"github.com/entraops/guestgate/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("guestgate-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	if cfg.Auth.ManagedEnvironment && cfg.Auth.EnforceGroups && len(cfg.Auth.AuthzServiceConfig().AllowedGroupIDs) == 0 {
		// Startup still succeeds; every invite request will be denied with a
		// policy misconfiguration until the allow-list is set.
		log.Warn("group enforcement is enabled but no allowed groups are configured")
	}

	graphClient, err := graph.New(cfg.Graph.ClientConfig())
	if err != nil {
		return fmt.Errorf("initialise graph client: %w", err)
	}

	authzSvc := services.NewAuthzService(graphClient, cfg.Auth.AuthzServiceConfig())
	bulkSvc := services.NewBulkService(cfg.Invite.BulkServiceConfig())

	inviteSvc, err := services.NewInviteService(graphClient, services.WithInviteTimeout(cfg.Invite.Timeout))
	if err != nil {
		return fmt.Errorf("initialise invite service: %w", err)
	}

	router, err := api.NewRouter(authzSvc, bulkSvc, inviteSvc, cfg)
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", server.Addr),
			zap.Bool("managed_environment", cfg.Auth.ManagedEnvironment),
			zap.Bool("local_bypass", cfg.Auth.LocalBypass),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}
