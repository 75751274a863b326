package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	jwttoken "sphere/internal/jwt_token"
	"sphere/internal/platform/config"
	"sphere/internal/platform/httpserver"
	"sphere/internal/platform/logger"
	"sphere/internal/platform/metrics"
	"sphere/internal/platform/otel"
	"sphere/internal/publication/adapters/verifier"
	pubhandler "sphere/internal/publication/handler"
	pubmetrics "sphere/internal/publication/metrics"
	pubservice "sphere/internal/publication/service"
	"sphere/internal/publication/worker"
	ratelimitmetrics "sphere/internal/ratelimit/metrics"
	ratelimit "sphere/internal/ratelimit/middleware"
	ratelimitmodels "sphere/internal/ratelimit/models"
	"sphere/internal/restriction"
	rewardhandler "sphere/internal/reward/handler"
	rewardmetrics "sphere/internal/reward/metrics"
	rewardservice "sphere/internal/reward/service"
	userhandler "sphere/internal/users/handler"
	userservice "sphere/internal/users/service"
	"sphere/pkg/platform/audit/publisher"
	authmw "sphere/pkg/platform/middleware/auth"
	"sphere/pkg/platform/middleware/metadata"
	"sphere/pkg/platform/middleware/requesttime"
)

const (
	shutdownTimeout = 10 * time.Second
	auditBuffer     = 256
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		slog.Error("sphere exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	if cfg.Verifier.URL == "" {
		return errors.New("VERIFIER_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, "sphere", cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	auditPublisher := publisher.NewPublisher(infra.auditStore(),
		publisher.WithAsyncBuffer(auditBuffer),
		publisher.WithLogger(log),
	)
	defer auditPublisher.Close()

	rewardOpts := []rewardservice.Option{
		rewardservice.WithLogger(log),
		rewardservice.WithAuditPublisher(auditPublisher),
		rewardservice.WithMetrics(rewardmetrics.New()),
	}
	if infra.producer != nil {
		rewardOpts = append(rewardOpts, rewardservice.WithEventPublisher(infra.producer))
	}
	rewards := rewardservice.New(infra.rewardStore(), rewardOpts...)

	policy := restriction.MissingClaimDeny
	if cfg.Publication.FailOpen {
		policy = restriction.MissingClaimAllow
	}
	posts, comments := infra.publicationStores()
	publication := pubservice.New(
		posts, comments,
		infra.sessionStore(),
		verifier.New(cfg.Verifier.URL, cfg.Verifier.Timeout, cfg.Verifier.TokenSignalIndex, verifier.WithLogger(log)),
		infra.txRunner(),
		pubservice.Config{
			PostScope:      cfg.Verifier.PostScope,
			CommentScope:   cfg.Verifier.CommentScope,
			PublicEndpoint: cfg.Verifier.PublicEndpoint,
			PendingTTL:     cfg.Publication.PendingTTL,
		},
		pubservice.WithLogger(log),
		pubservice.WithAuditPublisher(auditPublisher),
		pubservice.WithMetrics(pubmetrics.New()),
		pubservice.WithRewardNotifier(rewards),
		pubservice.WithMissingClaimPolicy(policy),
	)

	users := userservice.New(infra.userStore(),
		userservice.WithLogger(log),
		userservice.WithAuditPublisher(auditPublisher),
	)

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)
	requireAuth := authmw.RequireAuth(jwttoken.NewMiddlewareAdapter(jwtService), log)

	limiter := ratelimit.New(infra.rateLimitStore(),
		ratelimit.Limits{
			ratelimitmodels.ClassRead:  cfg.RateLimit.ReadsPerMinute,
			ratelimitmodels.ClassWrite: cfg.RateLimit.WritesPerMinute,
		},
		log,
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
		ratelimit.WithMetrics(ratelimitmetrics.New()),
	)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requesttime.Middleware)
	r.Use(metadata.NewClientMetadata(cfg.TrustedProxies))
	r.Use(metrics.New().Middleware)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", infra.HandleHealth)

	r.Group(func(r chi.Router) {
		r.Use(limiter.RateLimit)
		pubhandler.New(publication, log).Register(r, requireAuth)
		rewardhandler.New(rewards, log).Register(r, requireAuth)
		userhandler.New(users, log).Register(r, requireAuth)
	})

	srv := httpserver.New(cfg.Addr, r)
	sweeper := worker.NewExpirySweeper(publication, cfg.Publication.SweepInterval, worker.WithLogger(log))

	log.Info("starting sphere",
		"addr", cfg.Addr,
		"postgres", infra.db != nil,
		"redis", infra.redis != nil,
		"kafka", infra.producer != nil,
		"trusted_proxies", len(cfg.TrustedProxies),
		"missing_claim_policy", policy.String(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, shutdownTimeout)
	})
	g.Go(func() error {
		if err := sweeper.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	err = g.Wait()
	publication.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("sphere stopped")
	return nil
}
