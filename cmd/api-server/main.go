package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/provider-booking/internal/api"
	"github.com/hackgods/provider-booking/internal/appointment"
	"github.com/hackgods/provider-booking/internal/avatar"
	"github.com/hackgods/provider-booking/internal/config"
	"github.com/hackgods/provider-booking/internal/logging"
	"github.com/hackgods/provider-booking/internal/notify"
	redisclient "github.com/hackgods/provider-booking/internal/redis"
	"github.com/hackgods/provider-booking/internal/store"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logging.New("dev", "info", "api-server")
		l.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel, "api-server")
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreDriver).
		Str("timezone", cfg.Location.String()).
		Msg("api-server starting up")

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("api-server stopped with error")
		os.Exit(1)
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(rootCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, 0)
	if err != nil {
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	notifications := redisclient.NewNotificationStore(rdb)
	dispatcher := notify.NewDispatcher(
		notifications,
		redisclient.NewMailQueue(rdb),
		cfg.Location,
		cfg.NotifyTimeout,
		logger.With().Str("component", "notify").Logger(),
	)

	avatars, err := newAvatarResolver(rootCtx, cfg)
	if err != nil {
		return err
	}

	svc := appointment.NewService(
		st,
		st,
		redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, cfg.LockWait),
		dispatcher,
		cfg,
		logger.With().Str("component", "appointment").Logger(),
		appointment.WithAvatars(avatars),
	)

	limiter := api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Close()

	router := api.NewRouter(api.RouterConfig{
		Service:       svc,
		Notifications: notifications,
		Checks: []api.Check{
			{Name: st.Driver, Ping: st.Ping, Critical: true},
			{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }, Critical: true},
		},
		JWTSecret:  cfg.JWTSecret,
		Limiter:    limiter,
		TrustProxy: cfg.TrustProxy,
		Logger:     logger.With().Str("component", "http").Logger(),
		Env:        cfg.Env,
		Version:    version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-rootCtx.Done():
	}

	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("notifications still in flight at shutdown")
	}

	return nil
}

func newAvatarResolver(ctx context.Context, cfg config.Config) (appointment.AvatarResolver, error) {
	if cfg.AvatarBucket == "" {
		return avatar.NewStaticResolver(cfg.AvatarBaseURL), nil
	}
	return avatar.NewS3Resolver(ctx, avatar.S3Options{
		Region:          cfg.AWSRegion,
		Bucket:          cfg.AvatarBucket,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		TTL:             cfg.AvatarURLTTL,
	})
}
