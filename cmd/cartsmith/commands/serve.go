package commands

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

	"github.com/maltedev/cartsmith/internal/api"
	"github.com/maltedev/cartsmith/internal/config"
	"github.com/maltedev/cartsmith/internal/database"
	"github.com/maltedev/cartsmith/internal/ratelimit"
	"github.com/maltedev/cartsmith/internal/storage"
	"github.com/maltedev/cartsmith/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--config <path>]",
	Short: "Runs the HTTP API.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
		slog.SetDefault(log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, log)
	},
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	store, db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	service := newService(ctx, cfg, log)
	extractor, closeCache, err := newExtractor(ctx, cfg, service, log)
	if err != nil {
		return err
	}
	defer closeCache()

	var outbox api.OutboxStats
	if cfg.Outbox.Enabled {
		relay, closeRedis, err := startRelay(ctx, cfg, db, log)
		if err != nil {
			return err
		}
		defer closeRedis()
		outbox = relay
	}

	limiter := ratelimit.New(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, 10*time.Minute)
	go limiter.Run(ctx, time.Minute)

	handlers := api.NewHandlers(extractor, store, outbox, log)
	router := api.NewRouter(handlers, api.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		ExtractLimiter: limiter,
		AccessLog:      true,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Server.Port, "storage", cfg.Storage.Type)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// openStore returns the configured store. db is nil for the memory store.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Store, *database.DB, error) {
	if cfg.Storage.Type == "memory" {
		store, err := storage.NewMemoryStore(cfg.Storage.SnapshotFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open memory store: %w", err)
		}
		return store, nil, nil
	}

	dbCfg := database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
	}

	var (
		db  *database.DB
		err error
	)
	if cfg.Database.DSN != "" {
		db, err = database.Open(ctx, cfg.Database.DSN, dbCfg)
	} else {
		db, err = database.New(ctx, dbCfg)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return database.NewCartStore(db, cfg.Outbox.Enabled, log), db, nil
}

func startRelay(ctx context.Context, cfg *config.Config, db *database.DB, log *slog.Logger) (*database.Relay, func(), error) {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	relay := database.NewRelay(db, client, log, database.RelayConfig{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		StreamMaxLen: cfg.Outbox.StreamMaxLen,
		Retention:    cfg.Outbox.Retention,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("relay stopped with error", "error", err)
		}
	}()

	return relay, func() { client.Close() }, nil
}
