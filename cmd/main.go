package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/logger/pkg/logger"
	"github.com/cwrk-planet/presence-service/config"
	"github.com/cwrk-planet/presence-service/internal/fanout"
	"github.com/cwrk-planet/presence-service/internal/outbox"
	"github.com/cwrk-planet/presence-service/internal/postgres"
	"github.com/cwrk-planet/presence-service/internal/presence"
	"github.com/cwrk-planet/presence-service/internal/security"
	"github.com/cwrk-planet/presence-service/internal/service"
	httpx "github.com/cwrk-planet/presence-service/internal/transport/http"
	"github.com/cwrk-planet/presence-service/internal/transport/ws"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting presence-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- postgres ---
	db, err := postgres.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	// --- outbox (badger) ---
	badgerDB, err := outbox.Open(cfg.Outbox.Dir)
	if err != nil {
		log.Fatalf("outbox open: %v", err)
	}
	defer badgerDB.Close()
	box := outbox.New(badgerDB)

	// --- repos & services ---
	notifRepo := postgres.NewNotificationRepository(db.Pool)
	notifSvc := service.NewNotificationService(notifRepo, box)

	worker := outbox.NewWorker(box, notifRepo, cfg.RetryInterval(), cfg.MaxBackoff())
	go worker.Run(ctx)

	// --- registries ---
	sessions := presence.NewSessionRegistry()
	rooms := presence.NewRoomRegistry()
	typing := presence.NewTypingTracker(rooms, cfg.TypingTTL())
	go typing.Run(ctx)

	// --- fan-out ---
	engine := fanout.NewEngine(sessions, rooms, notifSvc)

	// --- auth ---
	pub, err := security.LoadRSAPublicKeyFromPEM(cfg.Auth.PublicKeyPath)
	if err != nil {
		log.Fatalf("load jwt public key: %v", err)
	}
	verifier := security.NewJWTVerifier(pub, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.ClockSkew())

	// --- WS & HTTP ---
	wsServer := ws.NewServer(verifier, sessions, rooms, typing, cfg.PingEvery(), cfg.WS.SendBuffer)

	handler := httpx.NewHandler(notifSvc)
	eventsHandler := httpx.NewEventsHandler(engine)
	router := httpx.NewRouter(handler, eventsHandler, wsServer, verifier, cfg.Events.InternalToken)

	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal")
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
