package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/gogo/deskrunner/internal/adapter/executor"
	"github.com/xiaot623/gogo/deskrunner/internal/config"
	"github.com/xiaot623/gogo/deskrunner/internal/hub"
	"github.com/xiaot623/gogo/deskrunner/internal/policy"
	"github.com/xiaot623/gogo/deskrunner/internal/recorder"
	"github.com/xiaot623/gogo/deskrunner/internal/repository"
	"github.com/xiaot623/gogo/deskrunner/internal/risk"
	"github.com/xiaot623/gogo/deskrunner/internal/safety"
	"github.com/xiaot623/gogo/deskrunner/internal/service"
	"github.com/xiaot623/gogo/deskrunner/internal/telemetry"
	transporthttp "github.com/xiaot623/gogo/deskrunner/internal/transport/http"
	"github.com/xiaot623/gogo/deskrunner/internal/transport/mcp"
	"github.com/xiaot623/gogo/deskrunner/internal/trust"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting deskrunner",
		"version", version,
		"port", cfg.HTTPPort,
		"database", cfg.DatabaseURL,
		"data_dir", cfg.DataDir,
	)

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	db, err := repository.NewSQLiteStore(cfg.DatabaseURL, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer db.Close()

	var trustStore trust.Store = trust.NewMemoryStore()
	if cfg.TrustDBPath != "" {
		bolt, err := trust.NewBoltStore(cfg.TrustDBPath)
		if err != nil {
			return fmt.Errorf("failed to open trust store: %w", err)
		}
		defer bolt.Close()
		trustStore = bolt
	}

	engine, err := policy.NewEngineFromFile(ctx, cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	actions := executor.NewLocalExecutor(
		executor.NewProcessExecutor(executor.ParseCommand(cfg.ActionCommand, cfg.ActionArgs), logger),
	)
	if err := actions.Ready(); err != nil {
		// runs are refused until the action program shows up
		logger.Warn("desktop executor not ready", "error", err)
	}

	var ocr service.OCR
	if cfg.OCRCommand != "" {
		ocr = executor.NewProcessOCR(executor.ParseCommand(cfg.OCRCommand, cfg.OCRArgs))
	}
	var rec service.Recorder
	if cfg.RecordCommand != "" {
		rec = recorder.NewProcessRecorder(executor.ParseCommand(cfg.RecordCommand, cfg.RecordArgs))
	}

	streams := hub.NewHub(logger)

	svc := service.New(service.Deps{
		Config:     cfg,
		Store:      db,
		Assessor:   risk.NewAssessor(trustStore, engine, cfg.MaxActions),
		Trust:      trustStore,
		Executor:   actions,
		OCR:        ocr,
		Recorder:   rec,
		KillSwitch: safety.NewKillSwitch(db, logger),
		Events:     streams,
		Logger:     logger,
	})

	mcpHandler := mcp.New(svc, logger, version).Handler()
	e := transporthttp.NewServer(svc, streams, mcpHandler)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		logger.Info("http api listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return streams.Run(gctx)
	})

	g.Go(func() error {
		svc.RunApprovalMaintenance(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down deskrunner")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shutdown server gracefully", "error", err)
		}
		if err := svc.Wait(shutdownCtx); err != nil {
			logger.Warn("runs still in flight at shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("deskrunner stopped")
	return nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
