package main

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tessellate/items-api/internal/api"
	"github.com/tessellate/items-api/internal/config"
	"github.com/tessellate/items-api/internal/idempotency"
	"github.com/tessellate/items-api/internal/platform/logger"
	"github.com/tessellate/items-api/internal/platform/metrics"
	"github.com/tessellate/items-api/internal/platform/sqlstore"
	"github.com/tessellate/items-api/internal/service"
	"github.com/tessellate/items-api/internal/service/auth"
)

const testJWTSecret = "test-secret-test-secret-test-secret!"

// testAuthConfig is the auth configuration shared by the server under
// test and the token-minting helpers.
func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret: testJWTSecret,
		Issuer:    "items-api",
		Audience:  "items-api",
	}
}

// newTestApplication wires a complete application over an in-memory
// database, bypassing config.Load so tests control every knob.
func newTestApplication(t *testing.T, timeoutMs int) (*application, http.Handler) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlstore.InitSchema(context.Background(), db, sqlstore.DialectSQLite))

	log, _ := logger.NewTestLogger()

	verifier, err := auth.NewTokenVerifier(testAuthConfig())
	require.NoError(t, err)

	itemStore := sqlstore.NewItemStore(db, log)
	ledger := idempotency.NewLedger(sqlstore.NewIdempotencyStore(db, log), log)
	itemService := service.NewItemService(db, itemStore, ledger, log)

	app := &application{
		config: &config.Config{
			Server: config.ServerConfig{
				AppName:          "items-api",
				Env:              "dev",
				Port:             8080,
				LogLevel:         "debug",
				RequestTimeoutMs: timeoutMs,
			},
			Database: config.DatabaseConfig{Driver: "sqlite", URL: ":memory:"},
			Auth:     testAuthConfig(),
		},
		logger:      log,
		db:          db,
		metrics:     metrics.New(),
		verifier:    verifier,
		itemHandler: api.NewItemHandler(itemService, log),
	}

	return app, app.setupRouter()
}

// mintToken signs a token for the given subject and scopes, valid for an
// hour.
func mintToken(t *testing.T, subject string, scopes ...string) string {
	t.Helper()
	token, err := auth.SignToken(testAuthConfig(), subject, scopes, time.Hour)
	require.NoError(t, err)
	return token
}
