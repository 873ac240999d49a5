package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bible-memorize/server/blob"
	"github.com/bible-memorize/server/config"
	"github.com/bible-memorize/server/controllers"
	"github.com/bible-memorize/server/models"
	"github.com/bible-memorize/server/observability"
	"github.com/bible-memorize/server/routes"
	"github.com/bible-memorize/server/services"
	"github.com/bible-memorize/server/store"
	"github.com/bible-memorize/server/utils"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logOpts := utils.LogOptions{
		Level:      cfg.LogLevel,
		Path:       cfg.LogPath,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	}
	logger, err := utils.InitLogger(logOpts)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	flushSentry, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, version)
	if err != nil {
		logger.Warn("sentry disabled", zap.Error(err))
	}

	ctx := context.Background()
	loc := cfg.Location()

	db, err := config.OpenDatabase(cfg, models.All()...)
	if err != nil {
		return err
	}
	st := store.New(db)

	blobs, err := blob.Open(ctx, blob.Options{
		Backend:  cfg.StorageBackend,
		Dir:      cfg.StorageDir,
		Bucket:   cfg.StorageBucket,
		Region:   cfg.StorageRegion,
		Endpoint: cfg.StorageEndpoint,
		Prefix:   cfg.StoragePrefix,
	})
	if err != nil {
		return err
	}

	rc, err := utils.NewRedis(ctx, utils.RedisOptions{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		DB:       cfg.RedisDB,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		// redis is optional; everything it backs has an in-process fallback
		logger.Warn("redis unavailable, using in-process state", zap.Error(err))
		rc = nil
	}

	var locker services.Locker = services.NewKeyedMutex()
	if rc != nil {
		locker = services.NewRedisLocker(rc)
	}

	metrics := observability.NewMetrics()
	clock := services.SystemClock{Location: loc}
	ledger := services.NewLedger(st, clock, loc)
	retention := services.NewRetention(st, blobs, loc, logger)
	checkins := services.NewCheckinService(services.CheckinDeps{
		Store:     st,
		Blobs:     blobs,
		Ledger:    ledger,
		Retention: retention,
		Locker:    locker,
		Clock:     clock,
		Location:  loc,
		Logger:    logger,
		Observer:  metrics,
		Options: services.Options{
			SelfCheckinRequiresRecording: cfg.SelfCheckinRequiresRecording,
			AllowStudentSelfCheckin:      cfg.AllowStudentSelfCheckin,
		},
	})
	accounts := services.NewAccountService(st, blobs, retention, logger)
	plans := services.NewPlanService(st, clock, loc)

	if created, err := accounts.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminPassword); err != nil {
		logger.Warn("bootstrap admin not created", zap.Error(err))
	} else if created {
		logger.Info("bootstrap admin created", zap.String("name", cfg.AdminName))
	}

	issuer, err := utils.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL())
	if err != nil {
		return err
	}

	r := routes.SetupRouter(routes.Deps{
		GinMode:        cfg.GinMode,
		AccessLog:      utils.NewRollingFileLogger(cfg.GinPath, logOpts),
		AllowedOrigins: cfg.AllowedOrigins,
		RatePerMinute:  cfg.RateLimitPerMinute,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		StaticDir:      cfg.StaticDir,
		Store:          st,
		Checkins:       checkins,
		Ledger:         ledger,
		Accounts:       accounts,
		Plans:          plans,
		Issuer:         issuer,
		Blacklist:      utils.NewTokenBlacklist(rc),
		Cache:          utils.NewCache(rc),
		Guard:          utils.NewRegistrationGuard(rc, time.Duration(cfg.RegisterCooldownSec)*time.Second, cfg.RegisterMaxPerDay),
		Metrics:        metrics,
		Settings: controllers.ClientSettings{
			TimeZone:                     loc.String(),
			SelfCheckinRequiresRecording: cfg.SelfCheckinRequiresRecording,
			AllowStudentSelfCheckin:      cfg.AllowStudentSelfCheckin,
			MaxUploadMB:                  cfg.MaxUploadMB,
		},
	})

	logger.Info("starting server (graceful)",
		zap.String("port", cfg.AppPort),
		zap.String("db", cfg.DBDriver),
		zap.String("storage", cfg.StorageBackend),
		zap.String("tz", loc.String()),
		zap.Bool("redis", rc != nil))

	return utils.GraceServer(":"+cfg.AppPort, r,
		func(context.Context) { closeRedis(rc) },
		func(context.Context) {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
		func(context.Context) {
			if c, ok := blobs.(interface{ Close() error }); ok {
				_ = c.Close()
			}
		},
		func(context.Context) { flushSentry() },
	)
}

func closeRedis(rc *redis.Client) {
	if rc != nil {
		_ = rc.Close()
	}
}
