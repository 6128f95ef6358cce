// Package main is the entry point for the polygon manager service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/polygon-manager/backend/internal/cache"
	"github.com/polygon-manager/backend/internal/config"
	"github.com/polygon-manager/backend/internal/database"
	"github.com/polygon-manager/backend/internal/gateway"
	"github.com/polygon-manager/backend/internal/handler"
	"github.com/polygon-manager/backend/internal/service"
	"github.com/polygon-manager/backend/internal/telemetry"
)

func main() {
	// Parse command line flags
	role := flag.String("role", "", "Service role: gateway or handler (overrides SERVICE_ROLE env var)")
	port := flag.String("port", "", "Server port (overrides SERVER_PORT env var)")
	flag.Parse()

	// Override environment variables if flags are provided
	if *role != "" {
		os.Setenv("SERVICE_ROLE", *role)
	}
	if *port != "" {
		os.Setenv("SERVER_PORT", *port)
	}

	app := fx.New(
		fx.Provide(
			config.New,
			newLogger,
			newTelemetry,
			newGinEngine,
		),
		fx.Invoke(startServer),
	)

	app.Run()
}

// newLogger creates a new zap logger based on the environment.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newTelemetry sets up tracing and flushes it on shutdown.
func newTelemetry(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	tp, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return tp, nil
}

// newGinEngine creates and configures a new Gin engine.
func newGinEngine(cfg *config.Config, logger *zap.Logger) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(handler.RequestID())
	engine.Use(handler.AccessLog(logger))
	engine.Use(handler.CORS())

	return engine
}

// startServer starts the HTTP server based on the configured role.
func startServer(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger, engine *gin.Engine, tp *telemetry.Provider) error {
	logger.Info("Starting service",
		zap.String("role", cfg.Role),
		zap.String("port", cfg.ServerPort),
	)

	api := engine.Group("/api")

	var repo database.Repository
	var cacheClient cache.Cache

	if cfg.IsHandler() {
		// Handler mode: open storage and cache, register handlers
		var err error
		repo, err = database.NewRepository(cfg, logger)
		if err != nil {
			logger.Error("Failed to open database", zap.Error(err))
			return err
		}

		cacheClient, err = cache.New(cfg, logger)
		if err != nil {
			repo.Close()
			logger.Error("Failed to connect to Redis", zap.Error(err))
			return err
		}

		svc := service.NewFromConfig(cfg, repo, cacheClient, tp, logger)
		engine.GET("/health", handler.Health(cfg.Role, svc))

		h := handler.NewHandler(svc, logger)
		h.RegisterRoutes(api)

		logger.Info("Handler routes registered",
			zap.Duration("operation_delay", cfg.OperationDelay),
			zap.Bool("delay_list", cfg.DelayList),
		)
	} else {
		// Gateway mode: setup proxy to handler
		engine.GET("/health", handler.Health(cfg.Role, nil))

		gw := gateway.NewGateway(cfg, logger)
		gw.RegisterRoutes(api)

		logger.Info("Gateway routes registered",
			zap.String("handler_url", cfg.HandlerURL),
		)
	}

	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
			engine.NoRoute(gin.WrapH(http.FileServer(http.Dir(cfg.StaticDir))))
			logger.Info("Serving static files", zap.String("dir", cfg.StaticDir))
		} else {
			logger.Warn("Static directory not found", zap.String("dir", cfg.StaticDir))
		}
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info("Server starting", zap.String("addr", server.Addr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal("Server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Server shutting down")

			err := server.Shutdown(ctx)

			if repo != nil {
				repo.Close()
			}
			if cacheClient != nil {
				_ = cacheClient.Close()
			}
			_ = logger.Sync()

			return err
		},
	})

	return nil
}
