// Package runtime assembles the full server process: configuration, storage,
// services, middleware, and the HTTP listener.
package runtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	app "github.com/myrc-project/myrc/internal/app"
	"github.com/myrc-project/myrc/internal/app/httpapi"
	"github.com/myrc-project/myrc/internal/app/metrics"
	"github.com/myrc-project/myrc/internal/app/storage/postgres"
	"github.com/myrc-project/myrc/internal/app/storage/rediscache"
	"github.com/myrc-project/myrc/internal/config"
	"github.com/myrc-project/myrc/internal/middleware"
	"github.com/myrc-project/myrc/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	limiter    *middleware.RateLimiter
	db         *sql.DB
	cache      *rediscache.PermissionCache
}

// NewApplication constructs the server process with default wiring. Without
// a database DSN the process runs on the in-memory store, which is only
// useful for local experiments.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	var (
		stores app.Stores
		db     *sql.DB
	)
	if cfg.Database.DSN != "" {
		db, err = openDatabase(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if cfg.Database.MigrateOnStart {
			if err := postgres.RunMigrations(db); err != nil {
				db.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		pg := postgres.New(db)
		stores = app.Stores{Users: pg, RCs: pg, FiscalYears: pg, Budget: pg, Procurement: pg, Audit: pg}
	} else {
		log.Warn("no database configured, using the in-memory store")
	}

	application, err := app.New(cfg, stores, log)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("build application: %w", err)
	}

	cache := rediscache.Dial(cfg.Redis, log)
	if cache != nil {
		application.RCs.AttachCache(cache)
	}

	limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitPerSecond, cfg.HTTP.RateLimitBurst, log)

	rt := &Application{
		cfg:     cfg,
		log:     log,
		app:     application,
		limiter: limiter,
		db:      db,
		cache:   cache,
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", httpapi.NewHandler(application, cfg.HTTP.MaxUploadBytes))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", rt.health)

	skipAuth := []string{"/api/auth/login", "/health", "/metrics"}
	handler := metrics.InstrumentHandler(mux)
	handler = limiter.Handler(handler)
	handler = middleware.NewAuthMiddleware([]byte(cfg.Auth.JWTSecret), log, skipAuth).Handler(handler)
	handler = middleware.NewTracingMiddleware(log).Handler(handler)
	handler = middleware.NewCORSMiddleware(cfg.HTTP.AllowedOrigins).Handler(handler)

	rt.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	return rt, nil
}

// Run seeds bootstrap data, starts background services and the HTTP
// listener, and blocks until the context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}
	a.limiter.StartCleanup(0)

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server, the background services, and the storage
// connections, in that order.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping services")
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	return nil
}

// health reports process status, database reachability, and a host snapshot.
func (a *Application) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	status := http.StatusOK
	report := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}

	if a.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.db.PingContext(ctx); err != nil {
			report["status"] = "degraded"
			report["database"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			report["database"] = "ok"
		}
	} else {
		report["database"] = "memory"
	}

	if info, err := host.Info(); err == nil {
		report["host"] = map[string]interface{}{
			"hostname": info.Hostname,
			"os":       info.OS,
			"platform": info.Platform,
			"uptime":   info.Uptime,
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		report["memory"] = map[string]interface{}{
			"total":        vm.Total,
			"used_percent": vm.UsedPercent,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
