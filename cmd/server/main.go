package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	anchorhandler "docanchor/internal/anchor/handler"
	anchorservice "docanchor/internal/anchor/service"
	"docanchor/internal/identity"
	"docanchor/internal/ledger"
	"docanchor/internal/orgs"
	"docanchor/internal/platform/config"
	"docanchor/internal/platform/httpserver"
	"docanchor/internal/platform/logger"
	"docanchor/internal/platform/metrics"
	"docanchor/internal/platform/middleware"
	"docanchor/internal/platform/postgres"
	platformredis "docanchor/internal/platform/redis"
	"docanchor/internal/proofindex/store"
	"docanchor/internal/transport/http/health"
	"docanchor/internal/trustregistry"
)

// main wires dependencies once at process start and keeps the server
// lifecycle small. Every network client is an explicit object passed by
// reference; nothing is built lazily behind a global.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres connect failed", "error", err.Error())
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	logClient, err := ledger.NewClient(cfg.Ledger.Brokers)
	if err != nil {
		log.Error("consensus log client failed", "error", err.Error())
		os.Exit(1)
	}
	defer logClient.Close()

	if err := ledger.EnsureTopic(ctx, logClient, cfg.Ledger.Topic); err != nil {
		log.Error("topic provisioning failed", "topic", cfg.Ledger.Topic, "error", err.Error())
		os.Exit(1)
	}

	resolver := identity.NewHTTPResolver(cfg.Resolver.BaseURL, cfg.Resolver.Timeout)
	verifier := identity.NewVerifier(resolver,
		identity.WithVerifierLogger(log),
		identity.WithVerifierMetrics(m),
	)
	submitter := ledger.NewLogSubmitter(logClient, cfg.Ledger.SubmitTimeout,
		ledger.WithSubmitterLogger(log),
		ledger.WithSubmitterMetrics(m),
	)
	mirror := ledger.NewMirrorClient(cfg.Mirror.BaseURL, cfg.Mirror.ScanLimit, cfg.Mirror.MaxPages, cfg.Mirror.Timeout,
		ledger.WithMirrorLogger(log),
		ledger.WithMirrorMetrics(m),
	)
	registryOpts := []trustregistry.Option{
		trustregistry.WithLogger(log),
		trustregistry.WithMetrics(m),
	}
	if redisClient != nil {
		registryOpts = append(registryOpts, trustregistry.WithCache(redisClient, cfg.Registry.CacheTTL))
	}
	registry := trustregistry.New(cfg.Registry.BaseURL, cfg.Registry.Timeout, registryOpts...)

	svc, err := anchorservice.New(
		store.NewPostgres(pool),
		orgs.NewPostgres(pool),
		verifier,
		submitter,
		mirror,
		registry,
		cfg.Ledger.Topic,
		anchorservice.WithLogger(log),
		anchorservice.WithMetrics(m),
	)
	if err != nil {
		log.Error("service wiring failed", "error", err.Error())
		os.Exit(1)
	}

	tokenValidator := middleware.NewHMACValidator(cfg.Server.JWTSigningKey)

	router := chi.NewRouter()
	anchorhandler.New(svc, log, m, tokenValidator, cfg.Server.RequestTimeout).Register(router)

	healthChecks := []health.Check{
		{Name: "postgres", Probe: pool.Ping},
		{Name: "consensus_log", Probe: logClient.Ping},
	}
	if redisClient != nil {
		healthChecks = append(healthChecks, health.Check{Name: "redis", Probe: redisClient.Health})
	}
	health.New(healthChecks...).Register(router)
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Server.Addr, router)

	log.Info("starting docanchor", "addr", cfg.Server.Addr, "topic", cfg.Ledger.Topic)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err.Error())
		os.Exit(1)
	}
}
