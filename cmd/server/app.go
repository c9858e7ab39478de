package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/tessellate/items-api/internal/api"
	"github.com/tessellate/items-api/internal/config"
	"github.com/tessellate/items-api/internal/idempotency"
	"github.com/tessellate/items-api/internal/platform/logger"
	"github.com/tessellate/items-api/internal/platform/metrics"
	"github.com/tessellate/items-api/internal/platform/sqlstore"
	"github.com/tessellate/items-api/internal/service"
	"github.com/tessellate/items-api/internal/service/auth"
)

// application holds the wired dependencies of the running server.
type application struct {
	config      *config.Config
	logger      *slog.Logger
	db          *sql.DB
	metrics     *metrics.Recorder
	verifier    auth.TokenVerifier
	itemHandler *api.ItemHandler
}

// newApplication loads configuration and wires every component: logging,
// database (schema included), stores, the idempotency ledger, the item
// service, token verification, and metrics.
func newApplication(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Server)
	log.Info("configuration loaded",
		"app", cfg.Server.AppName,
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"request_timeout_ms", cfg.Server.RequestTimeoutMs,
		"db_driver", cfg.Database.Driver,
	)

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	itemStore := sqlstore.NewItemStore(db, log)
	idemStore := sqlstore.NewIdempotencyStore(db, log)
	ledger := idempotency.NewLedger(idemStore, log)
	itemService := service.NewItemService(db, itemStore, ledger, log)

	verifier, err := auth.NewTokenVerifier(cfg.Auth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure token verification: %w", err)
	}

	return &application{
		config:      cfg,
		logger:      log,
		db:          db,
		metrics:     metrics.New(),
		verifier:    verifier,
		itemHandler: api.NewItemHandler(itemService, log),
	}, nil
}

// openDatabase opens the configured database, verifies connectivity, and
// ensures the schema exists. Schema setup is in-process DDL; there is no
// separate migration step to run.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	dialect, err := sqlstore.DialectForDriver(cfg.Driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := sqlstore.InitSchema(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// cleanup releases resources held by the application.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", "error", err)
		}
	}
}
