package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/safar/catalog-store/internal/api"
	"github.com/safar/catalog-store/internal/cart"
	"github.com/safar/catalog-store/internal/catalog"
	"github.com/safar/catalog-store/internal/config"
	"github.com/safar/catalog-store/internal/database"
	"github.com/safar/catalog-store/internal/logger"
	"github.com/safar/catalog-store/internal/review"
	"github.com/safar/catalog-store/internal/telemetry"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info("connected to database")

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, "up"); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "catalog"),
	)
	metrics := telemetry.NewMetrics(reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	carts, mongoClient, err := newCartStore(ctx, cfg, db, metrics)
	if err != nil {
		return err
	}
	if mongoClient != nil {
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongoClient.Disconnect(dctx); err != nil {
				log.Warn("disconnect mongo", slog.Any("error", err))
			}
		}()
	}
	log.Info("cart store ready", slog.String("backend", cfg.Cart.Backend))

	catalogSvc := catalog.NewService(db)
	engine := cart.NewEngine(carts, catalogSvc, metrics, log)
	reviews := review.NewService(db, metrics, log)

	handler := api.NewHandler(engine, reviews, catalogSvc, db, log)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.Router(reg, reg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", slog.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newCartStore selects the cart persistence backend. The returned client is
// non-nil only for the mongo backend and must be disconnected by the caller.
func newCartStore(ctx context.Context, cfg *config.Config, db *sql.DB, metrics *telemetry.Metrics) (cart.Store, *mongo.Client, error) {
	switch cfg.Cart.Backend {
	case config.CartBackendMongo:
		client, err := database.NewMongoClient(ctx, &cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		return cart.NewMongoStore(client.Database(cfg.Mongo.Database), cfg.Cart.MaxRetries, metrics), client, nil
	case config.CartBackendMemory:
		return cart.NewMemoryStore(metrics), nil, nil
	default:
		return cart.NewPostgresStore(db, cfg.Cart, metrics), nil, nil
	}
}
