package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	pgadapter "github.com/ericfisherdev/gatecheck/internal/adapter/driven/postgres"
	qradapter "github.com/ericfisherdev/gatecheck/internal/adapter/driven/qrcode"
	redisadapter "github.com/ericfisherdev/gatecheck/internal/adapter/driven/redis"
	sqliteadapter "github.com/ericfisherdev/gatecheck/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/gatecheck/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/gatecheck/internal/adapter/driving/web"
	"github.com/ericfisherdev/gatecheck/internal/application"
	"github.com/ericfisherdev/gatecheck/internal/config"
	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
	"github.com/ericfisherdev/gatecheck/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// storage bundles the stores of the selected backend.
type storage struct {
	backend   string
	attendees driven.AttendeeStore
	events    driven.ScanEventStore
	sessions  driven.SessionStore
	pinger    driven.Pinger
	closers   []func() error
}

func (s *storage) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Error("error closing storage", "error", err)
		}
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(cfg))
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"event_label", cfg.EventLabel,
		"postgres", cfg.UsesPostgres(),
		"redis_sessions", cfg.UsesRedisSessions(),
		"session_ttl", cfg.SessionTTL,
		"storage_timeout", cfg.StorageTimeout,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open storage and run migrations.
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	// 4. Credential rendering: local encoder, or a remote service backed by it.
	local := qradapter.NewLocalRenderer(cfg.QRSize)
	var renderer driven.CredentialRenderer = local
	if cfg.QRRenderURL != "" {
		renderer = qradapter.NewRemoteRenderer(cfg.QRRenderURL, cfg.QRSize, local, slog.Default())
		slog.Info("remote credential renderer enabled")
	}

	// 5. Create services.
	m := metrics.New()
	policy := application.StoragePolicy{Timeout: cfg.StorageTimeout, RetryDelay: cfg.RetryDelay}
	issuer := application.NewIssuer(rand.Reader, cfg.EventLabel)

	svc := httphandler.Services{
		CheckIn:  application.NewCheckInService(store.attendees, store.events, m, policy, slog.Default()),
		Import:   application.NewImportService(store.attendees, issuer, m, policy, slog.Default()),
		Registry: application.NewRegistryService(store.attendees, issuer, renderer, m, policy, slog.Default()),
		Auth:     application.NewAuthService(store.sessions, cfg.AdminPasswordHash, cfg.SessionTTL),
		Health:   application.NewHealthService(store.pinger, store.attendees, store.backend, cfg.EventLabel, policy, slog.Default()),
	}

	sweeper := application.NewSessionSweeper(store.sessions, cfg.SessionSweepPeriod)
	go sweeper.Start(ctx)

	// 6. Register API and GUI routes.
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, httphandler.NewHandler(svc, m, cfg.CookieSecure, slog.Default()))
	webhandler.RegisterRoutes(mux, webhandler.NewHandler(svc, cfg.EventLabel, cfg.EventNotes, cfg.CookieSecure, slog.Default()))

	handler := httphandler.ApplyMiddleware(mux, slog.Default(), m)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	slog.Info("gatecheck started",
		"listen_addr", cfg.ListenAddr,
		"backend", store.backend,
	)

	// 7. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openStorage selects Postgres when a database URL is configured and the
// embedded SQLite file otherwise. Sessions move to Redis when a Redis URL
// is configured.
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	s := &storage{}

	if cfg.UsesPostgres() {
		db, err := pgadapter.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		if err := pgadapter.RunMigrations(db); err != nil {
			s.close()
			return nil, err
		}
		slog.Info("postgres opened, migrations complete")

		s.backend = "postgres"
		s.attendees = pgadapter.NewAttendeeRepo(db)
		s.events = pgadapter.NewScanEventRepo(db)
		s.sessions = pgadapter.NewSessionRepo(db)
		s.pinger = db
	} else {
		db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
			s.close()
			return nil, err
		}
		slog.Info("database opened, migrations complete", "path", cfg.DBPath)

		s.backend = "sqlite"
		s.attendees = sqliteadapter.NewAttendeeRepo(db)
		s.events = sqliteadapter.NewScanEventRepo(db)
		s.sessions = sqliteadapter.NewSessionRepo(db)
		s.pinger = db
	}

	if cfg.UsesRedisSessions() {
		rs, err := redisadapter.NewSessionStore(ctx, cfg.RedisURL)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("open redis session store: %w", err)
		}
		s.closers = append(s.closers, rs.Close)
		s.sessions = rs
		slog.Info("redis session store enabled")
	}

	return s, nil
}
