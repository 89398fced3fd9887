package app

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"regent-connect/internal/data/store"
	"regent-connect/internal/infra/config"
	"regent-connect/internal/infra/logger"
	"regent-connect/internal/service/assistant"
	"regent-connect/internal/service/auth"
	"regent-connect/internal/service/call"
	"regent-connect/internal/service/chat"
	"regent-connect/internal/service/group"
	"regent-connect/internal/service/presence"
	"regent-connect/internal/service/social"
	"regent-connect/internal/service/status"
	"regent-connect/internal/upload"
)

// App wires configuration, the store, and every service together.
type App struct {
	Config *config.Config
	Log    *zap.Logger
	Store  *store.KV

	Auth      *auth.Service
	Chat      *chat.Service
	Groups    *group.Service
	Social    *social.Service
	Status    *status.Service
	Calls     *call.Service
	Presence  *presence.Service
	Assistant *assistant.Service
	Upload    *upload.Server
}

// New builds the application from configuration. The store is opened,
// seeded with the demo accounts on first run, and every service is wired.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if err := cfg.EnsureStorePath(); err != nil {
		return nil, fmt.Errorf("ensure store path: %w", err)
	}

	dbPath := filepath.Join(cfg.StorePath, "regent.db")
	kv, err := store.New(dbPath, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	kv.Seed()

	chatSvc := chat.NewService(kv, log)

	a := &App{
		Config:    cfg,
		Log:       log,
		Store:     kv,
		Auth:      auth.NewService(kv, log),
		Chat:      chatSvc,
		Groups:    group.NewService(kv, chatSvc, log),
		Social:    social.NewService(kv, log),
		Status:    status.NewService(kv, log),
		Calls:     call.NewService(kv, log),
		Presence:  presence.NewService(kv, log),
		Assistant: assistant.NewService(kv, chatSvc, &cfg.AI, log),
		Upload:    upload.NewServer(kv, cfg.UploadDir, log),
	}
	return a, nil
}

// Run starts the background workers and the upload server, then blocks
// until SIGINT or SIGTERM.
func (a *App) Run() error {
	a.Log.Info("starting regent-connect",
		zap.String("store", a.Config.StorePath),
		zap.String("listen", a.Config.ListenAddr))

	a.Status.StartSweeper(a.Config.SweepInterval)
	if user, ok := a.Auth.CurrentUser(); ok {
		a.Presence.StartHeartbeat(user.ID, a.Config.Heartbeat)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Upload.Listen(a.Config.ListenAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.Log.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			a.Log.Error("upload server failed", zap.Error(err))
			a.Shutdown()
			return err
		}
	}
	return a.Shutdown()
}

// Shutdown stops the workers and closes the store.
func (a *App) Shutdown() error {
	a.Presence.StopHeartbeat()
	a.Status.StopSweeper()
	if err := a.Upload.Shutdown(); err != nil {
		a.Log.Warn("upload server shutdown", zap.Error(err))
	}
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	a.Log.Info("shutdown complete")
	return nil
}
