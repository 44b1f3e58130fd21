package main

import (
	"context"
	"fmt"
	"time"

	"github.com/vitos/loop_scanner/internal/config"
	"github.com/vitos/loop_scanner/internal/domain"
	"github.com/vitos/loop_scanner/internal/infrastructure/logger"
	"github.com/vitos/loop_scanner/internal/infrastructure/notifier"
	"github.com/vitos/loop_scanner/internal/infrastructure/ratesource"
	"github.com/vitos/loop_scanner/internal/infrastructure/storage"
	"github.com/vitos/loop_scanner/internal/usecase"
	"go.uber.org/zap"
)

type app struct {
	logger  *zap.Logger
	service *usecase.ScanService
	closers []func() error
}

type appOptions struct {
	persist bool
	notify  bool
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Logging.File != "" {
		return logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	}
	return logger.NewLogger(cfg.Logging.Level)
}

func buildApp(cfg *config.Config, opts appOptions) (*app, error) {
	log, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	a := &app{logger: log}

	sources, closers := buildSources(cfg, log)
	a.closers = append(a.closers, closers...)

	var repo domain.ScanRepository
	if opts.persist {
		store, err := storage.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to init sqlite: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		repo = store
	}

	var n domain.Notifier
	if opts.notify && cfg.Telegram.Enabled() {
		tg, err := notifier.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.Telegram.TopN, cfg.Telegram.MinNetAPY, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		n = tg
	}

	a.service = usecase.NewScanService(sources, repo, n, usecase.ScanConfig{
		Policy:    cfg.Policy,
		Fallbacks: cfg.Fallbacks,
		Aliases:   cfg.Platforms.Aliases,
	}, log)
	return a, nil
}

func buildSources(cfg *config.Config, log *zap.Logger) ([]domain.RateSource, []func() error) {
	var (
		sources []domain.RateSource
		closers []func() error
	)
	for _, sc := range cfg.Sources {
		switch sc.Type {
		case config.SourceFile:
			sources = append(sources, ratesource.NewFileSource(sc.Name, sc.Path))
		case config.SourceHTTP:
			sources = append(sources, ratesource.NewHTTPSource(sc.Name, sc.URL, sc.Timeout, sc.CacheTTL, log))
		case config.SourceStream:
			var sub []byte
			if sc.Subscribe != "" {
				sub = []byte(sc.Subscribe)
			}
			s := ratesource.NewStreamSource(sc.Name, sc.URL, sub, log)
			sources = append(sources, s)
			closers = append(closers, s.Close)
		}
	}
	return sources, closers
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Close failed", zap.Error(err))
		}
	}
	a.logger.Sync()
}

// scanContext bounds one scan; a zero timeout means no deadline.
func scanContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
