package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nearmiss-bot/internal/bootstrap"
	"nearmiss-bot/internal/config"
	"nearmiss-bot/internal/controller"
	"nearmiss-bot/internal/pkg/logger"
	"nearmiss-bot/internal/server"
	"nearmiss-bot/internal/tracer"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot against Telegram and Google Sheets",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	// 1. Load Configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Tracing
	shutdownTracer := tracer.InitTracer(ctx, cfg.App.OtelEnabled, cfg.App.OtelEndpoint, log)
	defer func() { _ = shutdownTracer(context.Background()) }()

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = container.Close() }()

	// 4. Start Background Services
	if err := container.ConsumerService.Consume(ctx); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	errCh := make(chan error, 2)

	switch cfg.Telegram.Mode {
	case config.BotModeWebhook:
		url := strings.TrimRight(cfg.Telegram.WebhookURL, "/") + controller.WebhookPath
		if err := container.Telegram.SetWebhook(url, cfg.Telegram.WebhookSecret); err != nil {
			return err
		}
	default:
		if err := container.Telegram.DeleteWebhook(); err != nil {
			log.Warn("BOT", "Failed to clear webhook before polling", map[string]interface{}{"error": err.Error()})
		}
		go func() {
			errCh <- container.Telegram.Poll(ctx, container.EventPublisher.Publish)
		}()
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)
	go func() {
		errCh <- srv.Run()
	}()

	log.Info("BOT", "Bot started", map[string]interface{}{"mode": cfg.Telegram.Mode})

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil {
			log.Error("BOT", "Component stopped", map[string]interface{}{"error": err.Error()})
		}
	}

	log.Info("BOT", "Shutting down", nil)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warn("BOT", "Server shutdown failed", map[string]interface{}{"error": serr.Error()})
	}
	container.ConsumerService.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
