// Package app wires the store, realtime broker, services and HTTP server
// into a single lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"introchat/pkg/config"
	"introchat/pkg/credit"
	"introchat/pkg/delivery"
	"introchat/pkg/logger"
	"introchat/pkg/realtime"
	"introchat/pkg/send"
	"introchat/pkg/state"
	"introchat/pkg/store"
	"introchat/pkg/thread"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	broker   realtime.Broker
	rdb      *redis.Client
	threads  *thread.Service
	tracker  *delivery.Tracker
	pipeline *send.Pipeline

	srv *http.Server
}

// New initializes resources that do not require a running context (DB,
// runtime keys, broker, services). It does not start the HTTP server or
// the expiry scheduler; call Run to start those and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	logger.InitWithLevel(eff.Config.Logging.Level)

	// runtime keys
	runtimeCfg := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}, SigningKeys: map[string]struct{}{}}
	for _, k := range eff.Config.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	if err := state.EnsureStateDirs(eff.DBPath); err != nil {
		return nil, fmt.Errorf("state dirs under %s: %w", eff.DBPath, err)
	}
	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	a := &App{eff: eff, version: version, commit: commit, buildDate: buildDate}
	a.setupBroker()
	a.setupServices()
	return a, nil
}

// setupBroker selects the fan-out broker from config. Default is the
// in-process hub; redis is for multi-instance deployments.
func (a *App) setupBroker() {
	if a.eff.Config.Realtime.Broker == "redis" {
		rc := a.eff.Config.Realtime.Redis
		a.rdb = redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		a.broker = realtime.NewRedisBroker(context.Background(), a.rdb)
		logger.Info("realtime_broker", "kind", "redis", "addr", rc.Addr)
		return
	}
	a.broker = realtime.NewHub()
	logger.Info("realtime_broker", "kind", "memory")
}

func (a *App) setupServices() {
	a.threads = thread.NewService(a.broker)
	a.tracker = delivery.NewTracker(a.broker)
	a.pipeline = send.NewPipeline(credit.NewGate(credit.StoreBilling{}), a.broker)
}

// validateConfig rejects configs the server cannot run with.
func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.DBPath == "" {
		return fmt.Errorf("db path required (use --db, INTROCHAT_DB_PATH or server.db_path)")
	}
	switch eff.Config.Realtime.Broker {
	case "", "memory":
	case "redis":
		if eff.Config.Realtime.Redis.Addr == "" {
			return fmt.Errorf("realtime.redis.addr required when realtime.broker is redis")
		}
	default:
		return fmt.Errorf("unknown realtime broker: %s", eff.Config.Realtime.Broker)
	}
	return nil
}

// Run starts the expiry scheduler and the HTTP server, and blocks until
// ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	cancelExpiry, err := a.startExpiry(ctx)
	if err != nil {
		return err
	}
	defer cancelExpiry()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.close()
		return nil
	case err := <-errCh:
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		_ = a.srv.Shutdown(shutdownCtx)
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	logger.Sync()
}
