package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/busly/routafare/core/config"
	"github.com/busly/routafare/core/logger"
	coretelegram "github.com/busly/routafare/core/telegram"

	"log/slog"
)

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	// ConfigEnvVar names the environment variable holding the config file
	// path. Defaults to CONFIG_PATH. An unset variable with an empty
	// DefaultConfigPath means env-only configuration.
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (*coreconfig.Config, error)
	Bootstrap  func(ctx context.Context, cfg *coreconfig.Config) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// Run loads configuration, initializes logging, bootstraps the Telegram app,
// and starts the bot runtime. It blocks until the context is cancelled by an
// interrupt or the runtime stops on its own.
func Run(opts Options) error {
	if opts.Bootstrap == nil {
		return errors.New("cmd: Bootstrap is required")
	}

	path := configPath(opts)
	loadConfig := opts.LoadConfig
	if loadConfig == nil {
		loadConfig = coreconfig.Load
	}
	if path != "" {
		log.Printf("loading config: %s", path)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: load config: %w", err)
	}

	if err := logger.InitLogger(cfg); err != nil {
		return fmt.Errorf("cmd: init logger: %w", err)
	}
	flushLogs := opts.ShutdownLogger
	if flushLogs == nil {
		flushLogs = logger.Shutdown
	}
	defer func() {
		if err := flushLogs(); err != nil {
			log.Printf("flush logs: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap: %w", err)
	}
	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options: %w", err)
	}
	instrumentLifecycle(&runOpts)

	launch := opts.RunTelegram
	if launch == nil {
		launch = coretelegram.RunTelegram
	}
	return launch(ctx, runOpts)
}

// configPath resolves the config file location: env var first, then the
// static default. Empty means env-only configuration.
func configPath(opts Options) string {
	envName := opts.ConfigEnvVar
	if envName == "" {
		envName = "CONFIG_PATH"
	}
	if path := os.Getenv(envName); path != "" {
		return path
	}
	return opts.DefaultConfigPath
}

// instrumentLifecycle wraps the app's OnStart/OnStop hooks with the ready and
// shutdown receipt lines.
func instrumentLifecycle(runOpts *coretelegram.RunOptions) {
	booted := time.Now()

	appStart := runOpts.OnStart
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if appStart != nil {
			if err := appStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "ready",
			slog.Duration("startup_duration", logger.RoundMS(time.Since(booted))),
		)
		return nil
	}

	appStop := runOpts.OnStop
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "shutdown")
		if appStop != nil {
			return appStop(ctx, rt)
		}
		return nil
	}
}
