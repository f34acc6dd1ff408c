package main

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/star/skyplot/internal/api"
	"github.com/star/skyplot/internal/cache"
	"github.com/star/skyplot/internal/health"
	"github.com/star/skyplot/internal/observability"
	"github.com/star/skyplot/internal/rasterstore"
	"github.com/star/skyplot/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// A missing .env is normal in production.
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded environment from .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(logger), logger)
	if err != nil {
		logger.Error("invalid tracing configuration", "error", err)
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	apiCfg := loadAPIConfig(logger)
	cacheCfg := loadCacheConfig(logger)

	checks := map[string]health.Check{}
	var store cache.Store
	storeCfg := loadStoreConfig(logger)
	if storeCfg.Addr != "" {
		rs, err := rasterstore.New(ctx, storeCfg.Addr, storeCfg.TTL)
		if err != nil {
			logger.Error("raster store unavailable", "addr", storeCfg.Addr, "error", err)
			os.Exit(1)
		}
		defer rs.Close()
		store = rs
		checks["redis"] = rs.Ping
	}

	plots := cache.New(cacheCfg, store, logger)
	srv := api.NewServer(apiCfg, logger, plots, checks, web.Content)

	go func() {
		logger.Info("starting server", "addr", apiCfg.Addr, "raster_store", storeCfg.Addr != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func loadAPIConfig(logger *slog.Logger) api.Config {
	cfg := api.DefaultConfig()

	if v := os.Getenv("SKYPLOT_HTTP_ADDR"); v != "" {
		cfg.Addr = v
	}

	if v := os.Getenv("SKYPLOT_TRUST_PROXY"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SKYPLOT_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = enabled
		}
	}

	if v := os.Getenv("SKYPLOT_DSO_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < -90 || f > 90 {
			logger.Warn("invalid SKYPLOT_DSO_THRESHOLD value, using default", "value", v, "default", cfg.DSOThreshold)
		} else {
			cfg.DSOThreshold = f
		}
	}

	if v := os.Getenv("SKYPLOT_MAX_OBJECTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SKYPLOT_MAX_OBJECTS value, using default", "value", v, "default", cfg.MaxObjects)
		} else {
			cfg.MaxObjects = n
		}
	}

	logger.Info("api config",
		"addr", cfg.Addr,
		"trust_proxy", cfg.TrustProxy,
		"dso_threshold", cfg.DSOThreshold,
		"max_objects", cfg.MaxObjects,
	)

	return cfg
}

func loadCacheConfig(logger *slog.Logger) cache.Config {
	cfg := cache.DefaultConfig()

	width, height := cfg.Size.X, cfg.Size.Y
	if v := os.Getenv("SKYPLOT_CANVAS_WIDTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 8192 {
			logger.Warn("invalid SKYPLOT_CANVAS_WIDTH value, using default", "value", v, "default", width)
		} else {
			width = n
		}
	}

	if v := os.Getenv("SKYPLOT_CANVAS_HEIGHT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 8192 {
			logger.Warn("invalid SKYPLOT_CANVAS_HEIGHT value, using default", "value", v, "default", height)
		} else {
			height = n
		}
	}
	cfg.Size = image.Pt(width, height)

	if v := os.Getenv("SKYPLOT_SUN_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < -90 || f > 90 {
			logger.Warn("invalid SKYPLOT_SUN_THRESHOLD value, using default", "value", v, "default", cfg.SunThreshold)
		} else {
			cfg.SunThreshold = f
		}
	}

	logger.Info("plot config",
		"width", cfg.Size.X,
		"height", cfg.Size.Y,
		"sun_threshold", cfg.SunThreshold,
	)

	return cfg
}

type storeConfig struct {
	Addr string
	TTL  time.Duration
}

func loadStoreConfig(logger *slog.Logger) storeConfig {
	cfg := storeConfig{
		Addr: os.Getenv("SKYPLOT_REDIS_ADDR"),
		TTL:  rasterstore.DefaultTTL,
	}

	if v := os.Getenv("SKYPLOT_REDIS_TTL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SKYPLOT_REDIS_TTL value, using default", "value", v, "default_seconds", cfg.TTL.Seconds())
		} else {
			cfg.TTL = time.Duration(n) * time.Second
		}
	}

	if cfg.Addr != "" {
		logger.Info("raster store config", "addr", cfg.Addr, "ttl_seconds", cfg.TTL.Seconds())
	}

	return cfg
}
