package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/cardioai-backend/internal/config"
	"github.com/iliyamo/cardioai-backend/internal/database"
	"github.com/iliyamo/cardioai-backend/internal/handler"
	"github.com/iliyamo/cardioai-backend/internal/logging"
	"github.com/iliyamo/cardioai-backend/internal/middleware"
	"github.com/iliyamo/cardioai-backend/internal/notify"
	"github.com/iliyamo/cardioai-backend/internal/repository"
	"github.com/iliyamo/cardioai-backend/internal/router"
	"github.com/iliyamo/cardioai-backend/internal/service"
	"github.com/iliyamo/cardioai-backend/internal/utils"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg := config.Load()
	logger := logging.New(logging.Config{
		Service: "cardioai-api",
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	}, nil)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		MaxOpenConns: cfg.DBMaxOpenConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to mysql", "host", cfg.DBHost, "db", cfg.DBName, "max_open_conns", cfg.DBMaxOpenConns)

	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
		logger.Info("rate limiter using redis")
	} else {
		logger.Info("rate limiter using in-process buckets")
	}

	mailer, err := notify.New(cfg.Mail, logger)
	if err != nil {
		return err
	}

	users := repository.NewUserRepo(db)
	auth := service.NewAuthService(users, utils.Hasher{Cost: cfg.BcryptCost}, mailer, service.Options{
		JWTSecret:    cfg.JWTSecret,
		AccessTTL:    cfg.AccessTTL,
		ResetCodeTTL: cfg.ResetCodeTTL,
		MailTimeout:  cfg.Mail.Timeout,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = router.ClientIP(cfg.TrustedProxies)
	e.Use(echomw.Recover())
	e.Use(logging.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	e.Use(echomw.BodyLimit(cfg.BodyLimit))
	if cfg.StaticDir != "" {
		e.Use(echomw.Static(cfg.StaticDir))
	}

	checks := map[string]handler.Check{"mysql": users.Ping}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	router.RegisterRoutes(e, checks)
	router.RegisterAuth(e,
		handler.NewAuthHandler(auth, cfg.DBQueryTimeout),
		auth,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	)

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", "addr", addr, "env", cfg.Env, "mail_driver", cfg.Mail.Driver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "grace", cfg.ShutdownGrace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
