package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/hospital-guest-access/internal/access"
	"github.com/iliyamo/hospital-guest-access/internal/config"
	"github.com/iliyamo/hospital-guest-access/internal/database"
	"github.com/iliyamo/hospital-guest-access/internal/handler"
	"github.com/iliyamo/hospital-guest-access/internal/logger"
	"github.com/iliyamo/hospital-guest-access/internal/queue"
	"github.com/iliyamo/hospital-guest-access/internal/repository"
	"github.com/iliyamo/hospital-guest-access/internal/router"
	"github.com/iliyamo/hospital-guest-access/internal/service"
	"github.com/iliyamo/hospital-guest-access/internal/validation"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := database.Migrate(mctx, db)
		cancel()
		if err != nil {
			log.WithError(err).Fatal("schema migration failed")
		}
	}

	users := repository.NewUserRepo(db)
	if cfg.SuperAdminEmail != "" && cfg.SuperAdminPass != "" {
		created, err := users.EnsureSuperAdmin(ctx, cfg.SuperAdminEmail, cfg.SuperAdminPass, cfg.BcryptCost)
		if err != nil {
			log.WithError(err).Fatal("super admin bootstrap failed")
		}
		if created {
			log.WithField("email", cfg.SuperAdminEmail).Info("super admin created")
		}
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unavailable: rate limiting, response cache and OTP login are disabled")
	} else {
		defer rdb.Close()
	}

	// Events are best effort: without a broker the service still decides
	// and records access, it just publishes nothing.
	qcfg := config.LoadQueueConfig()
	var events service.EventPublisher
	if qcfg.PublishEnabled {
		pub := service.NewRabbitPublisher(qcfg.URL, log)
		defer pub.Close()
		events = pub
	}
	if qcfg.ConsumerEnabled {
		consumer := &queue.Consumer{URL: qcfg.URL, LogDir: qcfg.LogDir, Logger: log, Prefetch: 20}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("access consumer stopped")
			}
		}()
	}

	store := service.NewSQLStore(db)
	policy := access.PassPolicy{
		Location:     cfg.Location(),
		FrequentDays: cfg.PassFrequentDays,
		SessionCap:   cfg.PassSessionCap,
		AutoApprove:  cfg.PassAutoApprove,
	}
	accessSvc := service.NewAccessService(store.Access(), events, log, cfg.AccessTimeout)
	passSvc := service.NewPassService(store.Passes(), policy, log)

	hospitals := repository.NewHospitalRepo(db)
	sessions := repository.NewSessionRepo(db)
	guests := repository.NewGuestRepo(db)
	tokens := repository.NewTokenRepo(db)

	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.New()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(logger.RequestLog(log))

	router.Register(e, router.Handlers{
		Health:   handler.NewHealthHandler(db, rdb),
		Auth:     handler.NewAuthHandler(cfg, users, tokens, repository.NewOTPStore(rdb, "otp", cfg.OTPTTL)),
		Admin:    handler.NewAdminHandler(cfg, hospitals, users),
		Hospital: handler.NewHospitalHandler(cfg, hospitals, users),
		Sessions: handler.NewSessionHandler(sessions),
		Guests:   handler.NewGuestPassHandler(passSvc, sessions, guests),
		Access:   handler.NewAccessHandler(accessSvc),
		Audit:    handler.NewAuditHandler(repository.NewGuestLogRepo(db), repository.NewQrScanRepo(db), cfg.Location()),
		Devices:  handler.NewDeviceHandler(tokens),
	}, router.Deps{
		JWTSecret:     cfg.JWTSecret,
		Users:         users,
		Redis:         rdb,
		RateLimit:     config.LoadRateLimitConfig(),
		AuthRateLimit: config.LoadAuthRateLimitConfig(),
		Cache:         config.LoadCacheConfig(),
	})

	addr := ":" + cfg.Port
	go func() {
		log.WithField("env", cfg.Env).Infof("listening on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}
