package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/autocura/governance-core/internal/domain/autonomy"
	"github.com/autocura/governance-core/internal/infrastructure/cache"
	"github.com/autocura/governance-core/internal/infrastructure/config"
	"github.com/autocura/governance-core/internal/infrastructure/notify"
	"github.com/autocura/governance-core/internal/infrastructure/repository"
	"github.com/autocura/governance-core/internal/infrastructure/telemetry"
	"github.com/autocura/governance-core/internal/metrics"
	autonomysvc "github.com/autocura/governance-core/internal/service/autonomy"
	ethicssvc "github.com/autocura/governance-core/internal/service/ethics"
)

func main() {
	var configPath = flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("governd failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// exports every otel instrument through the promhttp handler below
	meterProvider, err := telemetry.NewMeterProvider(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("initializing meter provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("meter provider shutdown failed", zap.Error(err))
		}
	}()

	registry, err := metrics.NewRegistry("governance-core")
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	notifier := notify.NewAuditNotifier(
		logger.Named("audit"),
		cfg.Notifications.EventsPerSecond,
		cfg.Notifications.BurstSize,
		registry,
	)

	rules, err := cfg.RuleTable()
	if err != nil {
		return err
	}
	policies, err := cfg.PolicySet()
	if err != nil {
		return err
	}

	gateOpts := []ethicssvc.Option{
		ethicssvc.WithRecorder(registry),
		ethicssvc.WithNotifier(notifier),
	}

	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(&cfg.Redis, logger.Named("redis"))
		if err != nil {
			return fmt.Errorf("initializing redis: %w", err)
		}
		defer redisCache.Close()
		gateOpts = append(gateOpts,
			ethicssvc.WithCache(cache.NewVerificationCache(redisCache, logger.Named("vcache"), cfg.Gate.CacheTTL)))
	}

	gate, err := ethicssvc.NewGate(logger.Named("gate"), rules, ethicssvc.Config{
		MaxDirectHumanImpact: cfg.Gate.MaxDirectHumanImpact,
		MinRedesignLevel:     cfg.Gate.MinRedesignLevel,
		MaxGiniDelta:         cfg.Gate.MaxGiniDelta,
		MaxCarbonTonnes:      cfg.Gate.MaxCarbonTonnes,
		HistoryLimit:         cfg.Gate.HistoryLimit,
	}, gateOpts...)
	if err != nil {
		return fmt.Errorf("initializing ethical gate: %w", err)
	}

	flowOpts := []autonomysvc.Option{
		autonomysvc.WithNotifier(notifier),
	}

	if cfg.Database.Enabled {
		pool, err := repository.NewPool(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		defer pool.Close()
		flowOpts = append(flowOpts,
			autonomysvc.WithStore(repository.NewTransitionRepository(pool)))
	}

	initialLevel, err := autonomy.LevelFromInt(cfg.Flow.InitialLevel)
	if err != nil {
		return err
	}

	// governd has no live operations feed of its own; a real deployment
	// injects the production metrics provider here.
	provider := autonomysvc.StaticProvider{}

	flow, err := autonomysvc.NewFlow(logger.Named("flow"), policies, provider, autonomysvc.Config{
		InitialLevel:         initialLevel,
		DegradationTolerance: cfg.Flow.DegradationTolerance,
	}, flowOpts...)
	if err != nil {
		return fmt.Errorf("initializing autonomy flow: %w", err)
	}
	registry.SetCurrentLevel(int64(flow.CurrentLevel()))

	logger.Info("governance core started",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Environment),
		zap.String("autonomy_level", flow.CurrentLevel().String()),
		zap.Int("history_limit", cfg.Gate.HistoryLimit),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("database", cfg.Database.Enabled),
	)

	// keep the observable gauges fresh
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				registry.SetHistorySize(int64(gate.HistorySize()))
				if flow.ActiveAdvancement() != nil {
					registry.SetActiveAdvancements(1)
				} else {
					registry.SetActiveAdvancements(0)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort),
		Handler: observabilityMux(cfg.Version),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
