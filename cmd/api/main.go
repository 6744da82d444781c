package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ulut0002/base-backend/internal/core/issue"
	"github.com/ulut0002/base-backend/internal/infra/app"
	"github.com/ulut0002/base-backend/internal/infra/config"
	"github.com/ulut0002/base-backend/internal/infra/logger"
)

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "credential api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	reportConfigIssues(log, cfg.Validate())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("init app", zap.Error(err))
		return err
	}
	return application.Run(ctx)
}

// reportConfigIssues logs what Validate found. The service still starts: operations
// that depend on a broken setting answer with the same issue per request.
func reportConfigIssues(log *zap.Logger, issues *issue.Collector) {
	for _, i := range issues.Issues() {
		level := zapcore.WarnLevel
		if i.Severity == issue.SeverityError {
			level = zapcore.ErrorLevel
		}
		log.Log(level, "configuration issue",
			zap.String("field", i.Field),
			zap.String("code", string(i.Code)),
		)
	}
}
