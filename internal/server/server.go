// Package server wires the HTTP API: document upload and management,
// chat over the indexed corpus, health and metrics.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/golang-migrate/migrate/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docuery/docuery/config"
	"github.com/docuery/docuery/internal/chunker"
	"github.com/docuery/docuery/internal/ingest"
	"github.com/docuery/docuery/internal/pdfload"
	"github.com/docuery/docuery/internal/rag"
	"github.com/docuery/docuery/internal/registry"
	"github.com/docuery/docuery/internal/session"
	"github.com/docuery/docuery/internal/vectorstore"
	"github.com/docuery/docuery/provider"
	openai_provider "github.com/docuery/docuery/provider/openai"
)

// Run loads configuration, builds the dependency graph and serves the
// API until the listener fails.
func Run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	if err := Migrate("file://migrations", dsn, "up", 0); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		baseLogger.Printf("migrations: %v", err)
	}

	client := openai_provider.New(cfg.OpenAI)
	store := vectorstore.New(db, client)
	reg := registry.New(cfg.Storage.RegistryPath())
	splitter := chunker.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	pipeline := ingest.New(reg, store, splitter, pdfload.FileLoader{}, cfg.Storage.UploadsDir(), cfg.OpenAI.APIKey, nil)
	engine := rag.NewEngine(store, client, cfg.OpenAI.APIKey, cfg.Ingest.TopK, nil)

	var sessions session.Store
	if addr := cfg.Storage.Redis.Addr(); addr != "" {
		rs, err := session.NewRedisStore(context.Background(), addr, cfg.Storage.Redis.Password, cfg.Storage.Redis.DB, 0)
		if err != nil {
			baseLogger.Printf("redis unavailable, using in-memory sessions: %v", err)
		} else {
			sessions = rs
		}
	}
	if sessions == nil {
		sessions = session.NewInMemoryStore(0)
	}

	e := newEcho(cfg, baseLogger)

	api := e.Group("/api")
	(&DocumentsHandler{Pipeline: pipeline, Registry: reg}).Register(api.Group("/documents"))
	(&ChatHandler{Engine: engine, Sessions: sessions}).Register(api.Group("/chat"))

	return e.Start(cfg.Server.Address)
}

// newEcho builds the router with the unified JSON error handler, CORS
// and the operational endpoints.
func newEcho(cfg *config.Config, baseLogger *log.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if cfg.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}
	return e
}

// httpError maps pipeline and engine sentinels onto HTTP statuses so
// the unified error handler renders them with the right code.
func httpError(err error) error {
	switch {
	case errors.Is(err, ingest.ErrMisconfigured), errors.Is(err, rag.ErrMisconfigured):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ingest.ErrUnsupportedFormat), errors.Is(err, chunker.ErrEmptyDocument), errors.Is(err, rag.ErrEmptyMessage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, provider.ErrRateLimited):
		providerRateLimitedTotal.Inc()
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	default:
		return err
	}
}
