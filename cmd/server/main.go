package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"accountgate/internal/auth"
	"accountgate/internal/config"
	"accountgate/internal/database"
	"accountgate/internal/email"
	"accountgate/internal/logging"
	"accountgate/internal/metrics"
	redisx "accountgate/internal/redis"
	"accountgate/internal/server"
	"accountgate/migrations"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		logging.LogError(context.Background(), slog.Default(), "server exited", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logOutput := io.Writer(os.Stdout)
	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
			return err
		}
		rf, err := logging.OpenRotatingFile(cfg.Log.File, int64(cfg.Log.MaxSizeMB)<<20, cfg.Log.MaxBackups)
		if err != nil {
			return err
		}
		defer rf.Close()
		logOutput = io.MultiWriter(os.Stdout, rf)
	}
	logger := logging.New(logging.Options{
		Format:  logging.Format(cfg.Log.Format),
		Level:   cfg.Log.Level,
		Service: "accountgate",
		Env:     cfg.Env,
		Output:  logOutput,
	})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := database.NewMigrator(pool, migrations.FS, logger).Up(ctx); err != nil {
			return err
		}
	}

	checks := []server.HealthCheck{{Name: "postgres", Ping: pool.Ping}}

	audit := auth.NopAudit()
	if cfg.RedisURL != "" {
		rdb, err := redisx.New(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		audit = auth.NewRedisAuditLog(rdb, cfg.AuditMaxLen)
		checks = append(checks, server.HealthCheck{Name: "redis", Ping: redisPing(rdb)})
	} else {
		logger.Warn("REDIS_URL not set, audit trail disabled")
	}

	ctrl, err := newController(cfg, pool, audit, logger)
	if err != nil {
		return err
	}

	api := server.NewServer(ctrl, server.Options{
		BasePath:       cfg.APIBasePath,
		StrictStatus:   cfg.StrictStatusCodes,
		Production:     cfg.IsProduction(),
		CookieDomain:   cfg.CookieDomain,
		TrustedProxies: cfg.TrustedProxies,
		AllowedOrigins: cfg.AllowedOrigins,
	}, logger, metrics.New(), checks...)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func newController(cfg config.Config, pool *pgxpool.Pool, audit auth.AuditSink, logger *slog.Logger) (*auth.Controller, error) {
	users := auth.NewUserRepository(pool)

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL, auth.WithIssuer(cfg.TokenIssuer))
	if err != nil {
		return nil, err
	}
	otp, err := auth.NewOTPService(users,
		auth.WithCodeLength(cfg.OTPLength),
		auth.WithCodeTTL(auth.PurposeVerify, cfg.VerifyOTPTTL),
		auth.WithCodeTTL(auth.PurposeReset, cfg.ResetOTPTTL),
	)
	if err != nil {
		return nil, err
	}

	sender, err := email.New(cfg.Email, logger)
	if err != nil {
		return nil, err
	}

	return auth.NewController(users, auth.NewBcryptHasher(cfg.BcryptCost), tokens, otp,
		auth.WithNotifier(email.NewNotifier(sender)),
		auth.WithAudit(audit),
		auth.WithPasswordPolicy(auth.PasswordPolicy{MinLength: cfg.PasswordMinLength}),
		auth.WithLogger(logger),
		auth.WithSignInAlerts(cfg.SignInAlerts),
	)
}

func redisPing(rdb *goredis.Client) func(context.Context) error {
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}
