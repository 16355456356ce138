// Package app assembles the booking bot: schedule catalog, durable stores,
// fare predictor, dialogue flow and the Telegram transport.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/busly/routafare/core/config"
	"github.com/busly/routafare/core/logger"
	tg "github.com/busly/routafare/core/telegram"
	"github.com/busly/routafare/core/telegram/router"
	"github.com/busly/routafare/core/telegram/sender"
	"github.com/busly/routafare/internal/dialog"
	"github.com/busly/routafare/internal/predict"
	"github.com/busly/routafare/internal/schedule"
	"github.com/busly/routafare/internal/store"
)

const adminBookingFmt = "🔔 **New booking**\nBus: %s (%s)\nDate: %s at %s\nFare: Rs. %.2f\nChat: %s"

// App wires the booking bot together.
type App struct {
	cfg *config.Config

	sched       *schedule.Schedule
	sessions    *store.SessionStore
	bookings    *store.BookingStore
	subscribers *store.SubscriberStore

	predictor      predict.Predictor
	predictorClose func() error

	dispatcher *sender.Dispatcher
	messenger  *botMessenger
	flow       *dialog.Flow
}

// New loads the schedule, opens the stores and prepares the fare predictor.
// Schedule problems are fatal: the bot refuses to start without bookable
// services. A missing predictor configuration is not fatal; searches will
// abort with a prediction error instead.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}

	sched, err := schedule.Load(cfg.Schedule.CSVPath, cfg.Schedule.SlotInterval())
	if err != nil {
		return nil, fmt.Errorf("app: load schedule: %w", err)
	}
	logger.Info(ctx, "app", "schedule.loaded",
		slog.String("file", cfg.Schedule.CSVPath),
		slog.Int("services", sched.Len()),
		slog.Int("routes", len(sched.RouteNames())),
	)

	a := &App{
		cfg:         cfg,
		sched:       sched,
		sessions:    store.OpenSessions(cfg.Storage.SessionsPath()),
		bookings:    store.OpenBookings(cfg.Storage.BookingsPath()),
		subscribers: store.OpenSubscribers(cfg.Storage.SubscribersPath()),
		predictor:   predict.Unconfigured{},
	}

	if cfg.Predictor.Configured() {
		vp, err := predict.NewVertexPredictor(ctx, predict.VertexOptions{
			EndpointID: cfg.Predictor.EndpointID,
			Project:    cfg.Predictor.Project,
			Location:   cfg.Predictor.Location,
		})
		if err != nil {
			return nil, fmt.Errorf("app: init predictor: %w", err)
		}
		a.predictor = vp
		a.predictorClose = vp.Close
		logger.Info(ctx, "app", "predictor.ready",
			slog.String("project", cfg.Predictor.Project),
			slog.String("location", cfg.Predictor.Location),
		)
	} else {
		logger.Warn(ctx, "app", "predictor.unconfigured")
	}

	a.dispatcher = sender.NewDispatcher(sender.Options{})
	a.messenger = newBotMessenger(a.dispatcher)
	a.flow = dialog.New(dialog.Deps{
		Schedule:       a.sched,
		Sessions:       a.sessions,
		Bookings:       a.bookings,
		Predictor:      a.predictor,
		Messenger:      a.messenger,
		PredictTimeout: cfg.Predictor.Timeout(),
		OnBooking:      a.notifyAdmin,
	})

	return a, nil
}

// TelegramRunOptions assembles the transport wiring for the bot runtime.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := a.buildRegistry()

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: a.cfg.Telegram.AdminChatID})
	routes = append(routes, router.TextRoutes(fsmAdapter{flow: a.flow}, reg, router.TextOptions{})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))

	middlewares := append(tg.DefaultMiddlewares(a.cfg, nil), a.subscriberRecorder())

	return tg.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Dispatcher:  a.dispatcher,
		Middlewares: middlewares,
		Routes:      routes,
		OnStart: func(_ context.Context, rt tg.Runtime) error {
			a.messenger.Bind(rt.Bot)
			return nil
		},
		OnStop: func(context.Context, tg.Runtime) error {
			return a.Close()
		},
	}, nil
}

// Close releases external clients.
func (a *App) Close() error {
	if a.predictorClose != nil {
		closeFn := a.predictorClose
		a.predictorClose = nil
		return closeFn()
	}
	return nil
}

// notifyAdmin forwards every confirmed booking to the admin chat.
func (a *App) notifyAdmin(b store.Booking) {
	adminID := a.cfg.Telegram.AdminChatID
	if adminID == 0 {
		return
	}
	ctx := logger.Background()
	text := fmt.Sprintf(adminBookingFmt, b.BusID, b.RouteName, b.Date, b.Time, b.PredictedFare, b.ChatID)
	if err := a.messenger.SendMarkdown(ctx, adminID, text); err != nil {
		logger.Warn(ctx, "app", "admin.notify_failed",
			slog.String("bus_id", b.BusID),
			slog.String("err", err.Error()),
		)
	}
}
