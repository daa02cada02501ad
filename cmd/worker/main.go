package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/db"
	"github.com/noah-isme/toko-cart/internal/health"
	"github.com/noah-isme/toko-cart/internal/jobs"
	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/reservation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.Component(obs.NewLogger(cfg.LogFormat, cfg.LogLevel), "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
		Enabled:       cfg.TracingEnabled,
		ServiceName:   "toko-cart-worker",
		Endpoint:      cfg.OTLPEndpoint,
		SamplingRatio: 1,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init tracer")
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)

	if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	probes := &health.Handler{Probes: map[string]health.Probe{"db": health.PoolProbe(pool)}}
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient = mustInitRedis(ctx, cfg, logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		probes.Probes["redis"] = health.RedisProbe(redisClient)
	}
	if cfg.MetricsAddr != "" {
		go serveOps(ctx, cfg.MetricsAddr, probes, logger)
	}

	// surfaces a misconfigured backend at startup rather than on the first cart
	opts := reservation.Options{
		Backend:          cfg.ReservationBackend,
		Pool:             pool,
		Prefix:           cfg.ReservationRedisPrefix,
		LockTTL:          cfg.LockTTL,
		LockRetryBackoff: cfg.LockRetryBackoff,
	}
	if redisClient != nil {
		opts.Redis = redisClient
	}
	if _, err := reservation.New(opts); err != nil {
		logger.Fatal().Err(err).Msg("reservation store")
	}

	purge := jobs.PurgeHandler{
		Store:  reservation.NewPostgresStore(pool),
		Logger: obs.Component(logger, "purge"),
	}

	if redisClient == nil {
		logger.Info().Dur("interval", cfg.PurgeInterval).Msg("worker starting without redis, purging on a ticker")
		runTicker(ctx, purge, cfg.PurgeInterval, logger)
		probes.Drain()
		logger.Info().Msg("worker shutdown complete")
		return
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for tasks")
	}
	srv := asynq.NewServer(redisOpt, asynq.Config{Concurrency: 1})
	if err := srv.Start(jobs.NewMux(purge)); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})
	if err := jobs.Schedule(scheduler, cfg.PurgeInterval); err != nil {
		logger.Fatal().Err(err).Msg("register schedule")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}

	logger.Info().Dur("purge_interval", cfg.PurgeInterval).Msg("worker starting")
	<-ctx.Done()
	probes.Drain()
	scheduler.Shutdown()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func runTicker(ctx context.Context, purge jobs.PurgeHandler, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := purge.ProcessTask(ctx, jobs.NewPurgeTask(0)); err != nil {
				logger.Error().Err(err).Msg("purge failed")
			}
		}
	}
}

func serveOps(ctx context.Context, addr string, probes *health.Handler, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	probes.Register(mux)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}
