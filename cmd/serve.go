package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/carelink/internal/bus"
	"github.com/nextlevelbuilder/carelink/internal/config"
	"github.com/nextlevelbuilder/carelink/internal/directory"
	"github.com/nextlevelbuilder/carelink/internal/httpapi"
	"github.com/nextlevelbuilder/carelink/internal/hub"
	"github.com/nextlevelbuilder/carelink/internal/store"
	storefile "github.com/nextlevelbuilder/carelink/internal/store/file"
	storepg "github.com/nextlevelbuilder/carelink/internal/store/pg"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the connection directory and notification hub",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runServe(); err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
		},
	}
}

func runServe() error {
	cfg := loadConfig()

	stores, err := openStores(cfg.Store)
	if err != nil {
		return err
	}

	eventBus := bus.New()
	hubServer := hub.NewServer(eventBus)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// With Redis configured, events go out through Redis and come back into
	// the local bus, so every instance delivers exactly once to its own
	// clients. Without it, the bus is the publisher directly.
	var publisher directory.Publisher = eventBus
	if cfg.Redis.Addr != "" {
		bridge := hub.NewBridge(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, eventBus)
		defer bridge.Close()
		publisher = bridge
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("redis bridge stopped", "error", err)
			}
		}()
	}

	dir := directory.NewService(stores, publisher)

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.NewHandler(dir, cfg.Server.AuthToken).Router())
	mux.HandleFunc("/ws", hubServer.HandleWS)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Hot-reload: only the log level is safe to change on a running server.
	watcher, err := config.NewWatcher(resolveConfigPath(), cfg)
	if err == nil {
		watcher.OnReload(func(prev, next *config.Config) {
			if prev.Log.Level == next.Log.Level {
				return
			}
			SetLogLevel(next.Log.Level)
			slog.Info("log level updated", "from", prev.Log.Level, "to", next.Log.Level)
		})
		if err := watcher.Start(); err != nil {
			slog.Warn("config watcher not started", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("carelink server listening", "addr", addr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	hubServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStores builds the persistence layer named by the config, wrapping the
// user store in an LRU cache when enabled.
func openStores(cfg config.StoreConfig) (*store.Stores, error) {
	var stores *store.Stores

	switch cfg.Driver {
	case "memory":
		stores = store.NewMemoryStores()
	case "file", "":
		stores = storefile.NewFileStores(cfg.FilePath)
	case "postgres":
		db, err := storepg.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		stores = storepg.NewPGStores(db)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	if cfg.UserCacheSize > 0 {
		cached, err := store.NewCachedUserStore(stores.Users, cfg.UserCacheSize)
		if err != nil {
			return nil, err
		}
		stores.Users = cached
	}
	return stores, nil
}
