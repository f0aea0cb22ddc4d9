package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/quantfold/driftlab/internal/api"
	"github.com/quantfold/driftlab/internal/config"
	"github.com/quantfold/driftlab/internal/database"
	"github.com/quantfold/driftlab/internal/forecast"
	"github.com/quantfold/driftlab/internal/logging"
	"github.com/quantfold/driftlab/internal/marketdata"
	"github.com/quantfold/driftlab/internal/middleware"
	"github.com/quantfold/driftlab/internal/pipeline"
	"github.com/quantfold/driftlab/internal/stationarity"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)

	var db *database.PostgresDB
	var repo *database.ReportRepository
	if cfg.Database.Enabled {
		db, err = database.NewPostgresConnection(cfg.Database, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		repo = database.NewReportRepository(db.Pool)
	}

	var redisClient *database.RedisClient
	if cfg.Redis.Enabled {
		redisClient, err = database.NewRedisConnection(cfg.Redis, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
	}

	var source marketdata.Source = marketdata.NewHTTPSource(
		cfg.Source.BaseURL, config.Duration(cfg.Source.Timeout, 30*time.Second), logger)
	if redisClient != nil {
		source = marketdata.NewCachedSource(source, redisClient.Client,
			config.Duration(cfg.Source.CacheTTL, time.Hour), logger)
	}

	arimaModel, err := forecast.NewArima(forecast.ArimaOrder{
		P: cfg.Analysis.ArimaP, D: cfg.Analysis.ArimaD, Q: cfg.Analysis.ArimaQ,
	})
	if err != nil {
		logger.Fatalf("Invalid ARIMA order: %v", err)
	}
	garchModel, err := forecast.NewGarch(forecast.GarchOrder{
		P: cfg.Analysis.GarchP, Q: cfg.Analysis.GarchQ,
	})
	if err != nil {
		logger.Fatalf("Invalid GARCH order: %v", err)
	}

	runner, err := pipeline.NewRunner(
		source,
		stationarity.NewOracle(cfg.Analysis.MinObservations),
		arimaModel,
		garchModel,
		pipeline.Params{
			TestFraction:  cfg.Analysis.TestFraction,
			Alpha:         cfg.Analysis.Alpha,
			DetrendWindow: cfg.Analysis.DetrendWindow,
			DiffOrder:     cfg.Analysis.DiffOrder,
			ArimaOrder:    arimaModel.Order,
			GarchOrder:    garchModel.Order,
			Workers:       cfg.Analysis.Workers,
			StepTimeout:   config.Duration(cfg.Analysis.StepTimeout, time.Minute),
			ACFLags:       cfg.Analysis.ACFLags,
		},
		logger,
	)
	if err != nil {
		logger.Fatalf("Invalid analysis configuration: %v", err)
	}

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger))
	api.SetupRoutes(router, runner, repo, db, redisClient)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Infof("Server starting on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
