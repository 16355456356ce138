package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	coreconfig "github.com/busly/routafare/core/config"
	"github.com/busly/routafare/core/logger"
	tghelpers "github.com/busly/routafare/core/telegram/helpers"
	tgsender "github.com/busly/routafare/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a named global middleware registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds one handler to a telebot endpoint. The Endpoint value goes to
// tele.Bot.Handle as-is.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	// LivenessBody overrides the GET / response of the wire server.
	LivenessBody string

	DisableWebhookCleanup   bool
	DisableHelperDispatcher bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram composes and runs the bot until the provided context is done.
// In webhook mode it registers the webhook with Telegram and serves updates
// through the wire server; in long-polling mode it removes any stale webhook
// and polls.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return errors.New("telegram: nil config")
	}

	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	webhookMode := strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeWebhook)

	var poller tele.Poller
	if !webhookMode {
		poller = BuildLongPoller(cfg.Telegram.LongPollTimeoutSeconds)
	}

	started := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(),
	})
	if err != nil {
		return fmt.Errorf("telegram: build bot: %w", err)
	}
	boot := time.Since(started)

	disp := opts.Dispatcher
	if disp == nil {
		disp = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	shareDisp := !opts.DisableHelperDispatcher
	if shareDisp {
		tghelpers.SetDispatcher(disp)
	}
	release := func() {
		disp.Close()
		if shareDisp {
			tghelpers.SetDispatcher(nil)
		}
	}

	rt := Runtime{
		Bot:        bot,
		Dispatcher: disp,
		Registry:   reg,
	}

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, route := range opts.Routes {
		if route.Endpoint != nil && route.Handler != nil {
			bot.Handle(route.Endpoint, route.Handler)
		}
	}

	InitBotCommands(bot, reg)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			release()
			return err
		}
	}

	var runErr error
	if webhookMode {
		runErr = runWebhook(ctx, cfg, bot, opts.LivenessBody, boot)
	} else {
		runErr = runLongpoll(ctx, cfg, bot, opts.DisableWebhookCleanup, boot)
	}

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(ctx, rt)
	}

	release()

	if stopErr != nil {
		return stopErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func runWebhook(ctx context.Context, cfg *coreconfig.Config, bot *tele.Bot, liveness string, boot time.Duration) error {
	publicURL := cfg.Webhook.PublicURL()

	if err := RegisterWebhook(cfg.Telegram.Token, publicURL, false); err != nil {
		return fmt.Errorf("telegram: webhook registration failed: %w", err)
	}

	srv := NewWireServer(WireServerOptions{
		Addr:         cfg.Webhook.Addr(),
		Path:         cfg.Webhook.Path,
		LivenessBody: liveness,
		Sink:         bot.ProcessUpdate,
	})

	logger.Info(ctx, "tg", "mode",
		slog.String("mode", "webhook"),
		slog.String("listen", srv.Addr),
		slog.String("public_url", publicURL),
		slog.Duration("duration", logger.RoundMS(boot)),
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn(ctx, "tg", "wire.shutdown",
				slog.String("err", err.Error()),
			)
		}
		<-serveErr
		return ctx.Err()
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("telegram: wire server failed: %w", err)
		}
		return nil
	}
}

func runLongpoll(ctx context.Context, cfg *coreconfig.Config, bot *tele.Bot, disableCleanup bool, boot time.Duration) error {
	timeoutSec := 10
	if s := cfg.Telegram.LongPollTimeoutSeconds; s > 0 {
		timeoutSec = s
	}
	logger.Info(ctx, "tg", "mode",
		slog.String("mode", "polling"),
		slog.Int("timeout_seconds", timeoutSec),
		slog.Duration("duration", logger.RoundMS(boot)),
	)

	if !disableCleanup {
		if err := deleteWebhook(cfg.Telegram.Token, false); err != nil {
			logger.Warn(ctx, "tg", "webhook.delete",
				slog.String("mode", "polling"),
				slog.String("err", err.Error()),
			)
		} else {
			logger.Info(ctx, "tg", "webhook.delete",
				slog.String("mode", "polling"),
			)
		}
	}

	polled := make(chan struct{})
	go func() {
		bot.Start()
		close(polled)
	}()

	select {
	case <-ctx.Done():
		bot.Stop()
		<-polled
		return ctx.Err()
	case <-polled:
		return nil
	}
}

