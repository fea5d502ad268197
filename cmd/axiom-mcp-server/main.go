package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/FallSoftCo/axiom-mcp-server/internal/backend"
	"github.com/FallSoftCo/axiom-mcp-server/internal/config"
	"github.com/FallSoftCo/axiom-mcp-server/internal/dispatch"
	"github.com/FallSoftCo/axiom-mcp-server/internal/environment"
	"github.com/FallSoftCo/axiom-mcp-server/internal/query"
	"github.com/FallSoftCo/axiom-mcp-server/internal/registry"
	"github.com/FallSoftCo/axiom-mcp-server/internal/server"
	"github.com/FallSoftCo/axiom-mcp-server/internal/shape"
	"github.com/FallSoftCo/axiom-mcp-server/internal/storage"
)

const version = "1.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// On stdio the protocol owns stdout, so logs go to stderr.
	logOut := "stdout"
	if cfg.Transport == "stdio" {
		logOut = "stderr"
	}
	logger := mustBuildLogger(cfg.LogLevel, logOut)
	defer logger.Sync() //nolint:errcheck // best-effort flush

	envs := []environment.Environment{
		{ID: "dev", Prefix: "", Dataset: cfg.AxiomDataset, DatabaseURL: cfg.DatabaseURL},
	}
	if cfg.ProdEnabled() {
		envs = append(envs, environment.Environment{
			ID: "prod", Prefix: "prod_", Dataset: cfg.ProdAxiomDataset, DatabaseURL: cfg.ProdDatabaseURL,
		})
	}

	logger.Info("starting axiom mcp server",
		zap.String("version", version),
		zap.String("transport", cfg.Transport),
		zap.Int("environments", len(envs)),
		zap.Int("max_result_bytes", cfg.MaxResultBytes),
	)

	reg, err := registry.New(envs)
	if err != nil {
		logger.Fatal("failed to build tool registry", zap.Error(err))
	}

	axiom := backend.NewAxiomClient(cfg.AxiomURL, cfg.AxiomToken, logger)

	postgres, err := backend.NewPostgresRouter(envs, cfg.DBMaxConns, logger)
	if err != nil {
		logger.Fatal("failed to open database pools", zap.Error(err))
	}
	defer postgres.Close()

	// Audit trail — ClickHouse or LogWriter fallback
	var writer storage.EventWriter
	if cfg.ClickHouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(cfg.ClickHouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()

	dispatcher := dispatch.New(
		reg,
		environment.NewResolver(envs),
		query.NewSynthesizer(cfg.ErrorPatterns),
		axiom,
		postgres,
		shape.NewShaper(cfg.MaxResultBytes),
		writer,
		logger,
	)

	srv := server.New(reg, dispatcher, version, logger)

	switch cfg.Transport {
	case "sse":
		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigCh
			logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("shutdown incomplete", zap.Error(err))
			}
		}()
		if err := srv.ServeSSE(":"+cfg.Port, cfg.BaseURL); err != nil {
			logger.Fatal("sse server failed", zap.Error(err))
		}
	default:
		if err := srv.ServeStdio(); err != nil {
			logger.Fatal("stdio server failed", zap.Error(err))
		}
	}
}

func mustBuildLogger(level, output string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}
