package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/vitos/loop_scanner/internal/web"
	"go.uber.org/zap"
)

var serveFlags struct {
	port        int
	scanOnStart bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Scan on a schedule and serve results over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfg, appOptions{persist: true, notify: true})
		if err != nil {
			return err
		}
		defer a.Close()
		log := a.logger

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runScan := func() {
			scanCtx, cancel := scanContext(ctx, cfg.Scan.Timeout)
			defer cancel()
			if _, err := a.service.Scan(scanCtx); err != nil {
				log.Error("Scheduled scan failed", zap.Error(err))
			}
		}

		c := newScheduler(log)
		if _, err := c.AddFunc(cfg.Scan.Schedule, runScan); err != nil {
			return fmt.Errorf("invalid scan schedule %q: %w", cfg.Scan.Schedule, err)
		}
		c.Start()
		log.Info("Scan scheduler started", zap.String("schedule", cfg.Scan.Schedule), zap.Int("sources", len(cfg.Sources)))

		if serveFlags.scanOnStart {
			go runScan()
		}

		port := cfg.Server.Port
		if serveFlags.port != 0 {
			port = serveFlags.port
		}
		srv := web.NewServer(port, a.service, log)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case <-ctx.Done():
			log.Info("Shutting down")
		case err := <-errCh:
			if err != nil {
				c.Stop()
				return fmt.Errorf("web server failed: %w", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Web server shutdown failed", zap.Error(err))
		}
		select {
		case <-c.Stop().Done():
		case <-shutdownCtx.Done():
			log.Warn("Running scan did not finish before shutdown")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&serveFlags.port, "port", 0, "override server.port")
	serveCmd.Flags().BoolVar(&serveFlags.scanOnStart, "scan-on-start", true, "run a scan immediately instead of waiting for the schedule")
}

// newScheduler skips a tick while the previous scan is still running.
func newScheduler(log *zap.Logger) *cron.Cron {
	cl := cronLogger{log.Sugar().Named("cron")}
	return cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
