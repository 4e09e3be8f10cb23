package app

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	shutdownTimeout = time.Second * 5
	// RetryDelay is the base delay between retries of outbound calls.
	RetryDelay = 200 * time.Millisecond
)

func Logger(level string) *zap.Logger {

	cfg := zap.NewProductionConfig()

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		panic(err)
	}
	cfg.Level.SetLevel(lvl)

	lg, err := cfg.Build()
	if err != nil {
		panic(err)
	}

	return lg
}

type runner interface {
	Run() error
	Shutdown(ctx context.Context) error
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Run serves main until ctx is done or main fails, then shuts down main and
// every companion within shutdownTimeout.
func Run(ctx context.Context, logger *zap.Logger, main runner, companions ...shutdowner) {
	errCh := make(chan error, 1)
	go func() {
		errCh <- main.Run()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, s := range append([]shutdowner{main}, companions...) {
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}
}
