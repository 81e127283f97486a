// Package app wires configuration, storage, the backend client, and the
// auth services into the shared core used by cmd/closetd.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/closetapp/closetd/internal/auth"
	"github.com/closetapp/closetd/internal/clients/closetapi"
	"github.com/closetapp/closetd/internal/common"
	"github.com/closetapp/closetd/internal/interfaces"
	"github.com/closetapp/closetd/internal/state"
	"github.com/closetapp/closetd/internal/storage"
	"github.com/closetapp/closetd/internal/telemetry"
)

// App holds all initialized services and shared infrastructure.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Storage     interfaces.StorageManager
	Gateway     interfaces.AuthGateway
	Telemetry   interfaces.TelemetrySink
	State       *state.Container
	Sessions    *auth.SessionStore
	Coordinator *auth.Coordinator
	Reset       *auth.ResetService
	StartupTime time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, the backend client, and all
// auth services. configPath may be empty, in which case the default
// resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()

	// Config resolution: provided path, CLOSETD_CONFIG, binary dir, then
	// the development fallback.
	if configPath == "" {
		configPath = os.Getenv("CLOSETD_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "closetd.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/closetd.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage paths to the binary directory
	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(binDir, config.Storage.Path)
	}
	if config.Storage.KeyFile != "" && !filepath.IsAbs(config.Storage.KeyFile) {
		config.Storage.KeyFile = filepath.Join(binDir, config.Storage.KeyFile)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	gateway := closetapi.NewClient(
		closetapi.WithBaseURL(config.API.BaseURL),
		closetapi.WithLogger(logger),
		closetapi.WithTimeout(config.API.GetTimeout()),
		closetapi.WithRateLimit(config.API.RateLimit),
	)

	sink := telemetry.NewSink(logger)
	container := state.NewContainer()

	sessions := auth.NewSessionStore(storageManager.SecureStore(), sink, logger)
	coordinator := auth.NewCoordinator(sessions, auth.NewCalculator(), gateway, container, sink, logger,
		auth.WithRefreshTimeout(config.API.GetRefreshTimeout()),
		auth.WithTrustWindow(config.Auth.GetTrustWindow()),
	)
	reset := auth.NewResetService(gateway, storageManager.LocalStore(), &config.Auth, sink, logger)

	a := &App{
		Config:      config,
		Logger:      logger,
		Storage:     storageManager,
		Gateway:     gateway,
		Telemetry:   sink,
		State:       container,
		Sessions:    sessions,
		Coordinator: coordinator,
		Reset:       reset,
		StartupTime: startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// RunStartupRestore executes the cold-start session restore in the
// background so the HTTP API comes up immediately; callers polling the
// session endpoint see the hydrating flag until the restore settles.
func (a *App) RunStartupRestore() {
	go func() {
		snap := a.Coordinator.Restore(context.Background())
		a.Logger.Info().
			Bool("authenticated", snap.IsAuthenticated).
			Bool("needs_refresh", snap.NeedsRefresh).
			Str("reason", string(snap.LogoutReason)).
			Msg("Startup session restore settled")
	}()
}

// Close releases all resources held by the App.
func (a *App) Close() {
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
