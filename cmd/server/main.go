package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fliq/internal/client/coingecko"
	"fliq/internal/config"
	cronrunner "fliq/internal/cron"
	"fliq/internal/db"
	"fliq/internal/handler"
	"fliq/internal/logger"
	gormrepository "fliq/internal/repository/gorm"
	"fliq/internal/service"
)

func main() {
	cfgPath := os.Getenv("FQ_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("FQ_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	oracleHTTP := &http.Client{Timeout: cfg.Oracle.Timeout}
	oracle := coingecko.New(oracleHTTP, cfg.Oracle, logger)
	store := gormrepository.New(dbConn.Gorm)

	userSvc := &service.UserService{Repo: store, Config: cfg.Wager, Logger: logger}
	wagerSvc := &service.WagerService{Repo: store, Config: cfg.Wager, Logger: logger}
	settlementSvc := &service.SettlementService{Repo: store, Logger: logger}
	resolutionSvc := &service.ResolutionService{
		Repo:       store,
		Oracle:     oracle,
		Settlement: settlementSvc,
		Logger:     logger,
	}
	supplySvc := &service.SupplyService{
		Repo:   store,
		Oracle: oracle,
		Config: cfg.Supply,
		Logger: logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(handler.CORSMiddleware())
	engine.Use(handler.RequireBearerMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	handler.RegisterDocs(engine)

	marketHandler := &handler.MarketHandler{
		Repo:       store,
		Resolution: resolutionSvc,
		Supply:     supplySvc,
		Logger:     logger,
	}
	marketHandler.Register(engine)
	wagerHandler := &handler.WagerHandler{Users: userSvc, Wagers: wagerSvc, Logger: logger}
	wagerHandler.Register(engine)
	userHandler := &handler.UserHandler{
		Repo:       store,
		Users:      userSvc,
		Settlement: settlementSvc,
		Logger:     logger,
	}
	userHandler.Register(engine)
	adminHandler := &handler.AdminHandler{
		Resolution: resolutionSvc,
		Supply:     supplySvc,
		Logger:     logger,
	}
	adminHandler.Register(engine)
	priceHandler := &handler.PriceHandler{Oracle: oracle}
	priceHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add(cfg.Cron.Resolution, func(ctx context.Context) {
			n, err := resolutionSvc.ResolveExpired(ctx)
			if err != nil {
				logger.Warn("cron resolution failed", zap.Error(err))
				return
			}
			if n > 0 {
				logger.Info("cron resolution ok", zap.Int("resolved", n))
			}
		})
		if err != nil {
			logger.Warn("cron register resolution failed", zap.Error(err))
		}

		_, err = cronRunner.Add(cfg.Cron.Rotation, func(ctx context.Context) {
			// Rotation resolves first so expired slots free up before
			// the supply count is taken.
			if _, err := resolutionSvc.ResolveExpired(ctx); err != nil {
				logger.Warn("cron rotation resolution failed", zap.Error(err))
			}
			created, err := supplySvc.EnsureSupply(ctx)
			if err != nil {
				logger.Warn("cron rotation supply failed", zap.Error(err))
				return
			}
			if created > 0 {
				logger.Info("cron rotation ok", zap.Int("created", created))
			}
		})
		if err != nil {
			logger.Warn("cron register rotation failed", zap.Error(err))
		}

		cronRunner.Start()
		defer cronRunner.Stop()
	}

	go func() {
		if err := oracle.RunRecoveryProbe(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("oracle recovery probe stopped", zap.Error(err))
		}
	}()

	// Seed the deck before accepting traffic; a cold start otherwise
	// serves an empty feed until the first rotation tick.
	if _, err := supplySvc.EnsureSupply(ctx); err != nil {
		logger.Warn("initial supply failed", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
