package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/busly/routafare/core/logger"
	"github.com/busly/routafare/core/telegram/format"
	"github.com/busly/routafare/internal/predict"
	"github.com/busly/routafare/internal/schedule"
	"github.com/busly/routafare/internal/store"
)

const defaultPredictTimeout = 15 * time.Second

// Deps carries everything the conversation needs.
type Deps struct {
	Schedule  *schedule.Schedule
	Sessions  *store.SessionStore
	Bookings  *store.BookingStore
	Predictor predict.Predictor
	Messenger Messenger

	// PredictTimeout bounds each fare estimate. Zero means the default.
	PredictTimeout time.Duration

	// OnBooking, when set, observes every confirmed booking.
	OnBooking func(store.Booking)
}

// Flow is the booking conversation engine. Safe for concurrent use; all
// mutable state lives in the session store.
type Flow struct {
	sched          *schedule.Schedule
	sessions       *store.SessionStore
	bookings       *store.BookingStore
	pred           predict.Predictor
	msg            Messenger
	predictTimeout time.Duration
	onBooking      func(store.Booking)
}

func New(d Deps) *Flow {
	timeout := d.PredictTimeout
	if timeout <= 0 {
		timeout = defaultPredictTimeout
	}
	return &Flow{
		sched:          d.Schedule,
		sessions:       d.Sessions,
		bookings:       d.Bookings,
		pred:           d.Predictor,
		msg:            d.Messenger,
		predictTimeout: timeout,
		onBooking:      d.OnBooking,
	}
}

// InProgress reports whether the chat has an active booking conversation.
func (f *Flow) InProgress(chatID int64) bool {
	return f.sessions.InProgress(store.ChatKey(chatID))
}

// HandleText advances the conversation on a plain-text update. "cancel"
// aborts from any step before anything else is considered.
func (f *Flow) HandleText(ctx context.Context, msg TextMessage) error {
	text := strings.TrimSpace(msg.Text)
	if strings.EqualFold(text, "cancel") {
		return f.CancelFlow(ctx, msg.ChatID)
	}

	key := store.ChatKey(msg.ChatID)
	sess, ok := f.sessions.Get(key)
	if !ok {
		sess = store.Session{User: store.UserMeta{Username: msg.Username, FirstName: msg.FirstName}}
	}

	switch sess.Step {
	case "":
		if isSearchTrigger(text) {
			return f.StartSearch(ctx, msg)
		}
		return f.msg.SendMarkdown(ctx, msg.ChatID, textIdleHelp)

	case store.StepAwaitRouteName:
		name, known := f.sched.CanonicalRoute(text)
		if !known {
			return f.msg.SendMarkdown(ctx, msg.ChatID, textRouteUnknown)
		}
		return f.routeChosen(ctx, msg.ChatID, sess, name)

	case store.StepAwaitDate:
		return f.dateEntered(ctx, msg.ChatID, sess, text)

	case store.StepAwaitTime:
		return f.timeEntered(ctx, msg.ChatID, sess, text)

	case store.StepAwaitBusSelection:
		return f.msg.SendText(ctx, msg.ChatID, textBusUnknown)

	case store.StepAwaitConfirmation:
		if strings.EqualFold(text, "confirm") {
			return f.confirm(ctx, msg.ChatID, sess)
		}
		return f.msg.SendText(ctx, msg.ChatID, textConfirmNag)

	default:
		// Unknown step in a hand-edited or stale file. Reset the chat.
		f.sessions.Clear(key)
		return f.msg.SendMarkdown(ctx, msg.ChatID, textIdleHelp)
	}
}

// StartSearch opens a fresh session (discarding any previous draft) and
// offers the route list.
func (f *Flow) StartSearch(ctx context.Context, msg TextMessage) error {
	key := store.ChatKey(msg.ChatID)
	f.sessions.Upsert(key, store.Session{
		Step: store.StepAwaitRouteName,
		User: store.UserMeta{Username: msg.Username, FirstName: msg.FirstName},
	})
	logger.Info(ctx, "dialog", "search.started", slog.String("chat", key))
	return f.msg.SendChoices(ctx, msg.ChatID, textRoutePrompt, routeRows(f.sched.RouteNames()))
}

// CancelFlow aborts any active conversation for the chat. It answers even
// when nothing was in progress.
func (f *Flow) CancelFlow(ctx context.Context, chatID int64) error {
	f.sessions.Clear(store.ChatKey(chatID))
	return f.msg.SendMarkdown(ctx, chatID, textCancelled)
}

// HandleSelection advances the conversation on an inline-keyboard tap.
// Taps that do not fit the current step get a stale-choice reply instead of
// mutating state.
func (f *Flow) HandleSelection(ctx context.Context, sel Selection) error {
	if sel.Key == KeyCancel {
		return f.CancelFlow(ctx, sel.ChatID)
	}

	key := store.ChatKey(sel.ChatID)
	sess, ok := f.sessions.Get(key)
	if !ok {
		return f.msg.SendMarkdown(ctx, sel.ChatID, textStaleChoice)
	}

	switch sel.Key {
	case KeySelectRoute:
		if sess.Step != store.StepAwaitRouteName {
			return f.msg.SendMarkdown(ctx, sel.ChatID, textStaleChoice)
		}
		name, known := f.sched.CanonicalRoute(sel.Payload)
		if !known {
			return f.msg.SendMarkdown(ctx, sel.ChatID, textRouteUnknown)
		}
		return f.routeChosen(ctx, sel.ChatID, sess, name)

	case KeySelectAge:
		idx, err := strconv.Atoi(sel.Payload)
		label, known := AgeGroupLabel(idx)
		if err != nil || !known {
			return f.msg.SendMarkdown(ctx, sel.ChatID, textStaleChoice)
		}
		sess.Data.AgeGroupIndex = &idx
		f.sessions.Upsert(key, sess)
		return f.msg.SendMarkdown(ctx, sel.ChatID, fmt.Sprintf(textAgeSetFmt, label))

	case KeySelectTraffic:
		idx, err := strconv.Atoi(sel.Payload)
		label, known := TrafficLevelLabel(idx)
		if err != nil || !known {
			return f.msg.SendMarkdown(ctx, sel.ChatID, textStaleChoice)
		}
		sess.Data.TrafficLevelIndex = &idx
		f.sessions.Upsert(key, sess)
		return f.msg.SendMarkdown(ctx, sel.ChatID, fmt.Sprintf(textTrafficSetFmt, label))

	case KeySelectBus:
		if sess.Step != store.StepAwaitBusSelection {
			return f.msg.SendMarkdown(ctx, sel.ChatID, textStaleChoice)
		}
		svc, found := f.matchedService(sess.Data, sel.Payload)
		if !found {
			return f.msg.SendText(ctx, sel.ChatID, textBusUnknown)
		}
		sess.Data.SelectedBusID = svc.ID
		sess.Step = store.StepAwaitConfirmation
		f.sessions.Upsert(key, sess)
		return f.msg.SendChoices(ctx, sel.ChatID, f.summary(sess.Data, svc), confirmRows())

	case KeyConfirm:
		if sess.Step != store.StepAwaitConfirmation {
			return f.msg.SendMarkdown(ctx, sel.ChatID, textStaleChoice)
		}
		return f.confirm(ctx, sel.ChatID, sess)
	}

	return f.msg.SendMarkdown(ctx, sel.ChatID, textStaleChoice)
}

func isSearchTrigger(text string) bool {
	lc := strings.ToLower(text)
	return lc == "ser" || lc == "search"
}

func (f *Flow) routeChosen(ctx context.Context, chatID int64, sess store.Session, name string) error {
	sess.Data.RouteName = name
	sess.Step = store.StepAwaitDate
	f.sessions.Upsert(store.ChatKey(chatID), sess)
	return f.msg.SendMarkdown(ctx, chatID, fmt.Sprintf(textDatePromptFmt, mdSafe(name)))
}

func (f *Flow) dateEntered(ctx context.Context, chatID int64, sess store.Session, text string) error {
	date, ok := ParseTravelDate(text)
	if !ok {
		return f.msg.SendMarkdown(ctx, chatID, textDateInvalid)
	}
	sess.Data.Date = date
	sess.Step = store.StepAwaitTime
	f.sessions.Upsert(store.ChatKey(chatID), sess)

	if err := f.msg.SendChoices(ctx, chatID, textAttributesPrompt, attributeRows()); err != nil {
		return err
	}
	return f.msg.SendMarkdown(ctx, chatID, textTimePrompt)
}

func (f *Flow) timeEntered(ctx context.Context, chatID int64, sess store.Session, text string) error {
	dep, ok := schedule.ParseClock(text)
	if !ok {
		return f.msg.SendMarkdown(ctx, chatID, textTimeInvalid)
	}
	key := store.ChatKey(chatID)
	sess.Data.Time = dep
	f.sessions.Upsert(key, sess)

	if err := f.msg.SendText(ctx, chatID, textCalculating); err != nil {
		return err
	}

	fare, err := f.predictFare(ctx, sess.Data)
	if err != nil {
		f.sessions.Clear(key)
		logger.Warn(ctx, "dialog", "predict.failed",
			slog.String("chat", key),
			slog.String("err", err.Error()),
		)
		return f.msg.SendMarkdown(ctx, chatID, fmt.Sprintf(textPredictionErrorFmt, err))
	}
	sess.Data.PredictedFare = &fare

	matches := f.sched.Match(sess.Data.RouteName, dep)
	if len(matches) == 0 {
		f.sessions.Clear(key)
		logger.Info(ctx, "dialog", "search.no_matches",
			slog.String("route", sess.Data.RouteName),
			slog.String("time", dep),
		)
		return f.msg.SendMarkdown(ctx, chatID, fmt.Sprintf(textNoMatchesFmt, mdSafe(sess.Data.RouteName), dep))
	}

	sess.Step = store.StepAwaitBusSelection
	f.sessions.Upsert(key, sess)
	logger.Info(ctx, "dialog", "search.matched",
		slog.String("route", sess.Data.RouteName),
		slog.String("time", dep),
		slog.Int("matches", len(matches)),
		slog.Float64("fare", fare),
	)
	return f.msg.SendChoices(ctx, chatID, fmt.Sprintf(textBusPromptFmt, fare), busRows(matches))
}

// predictFare builds the feature row from the draft, applying the model's
// training defaults for anything the rider never picked.
func (f *Flow) predictFare(ctx context.Context, draft store.BookingDraft) (float64, error) {
	feats := predict.Features{
		DistanceKm:        format.DerefFloat64(draft.DistanceKm, predict.DefaultDistanceKm),
		BusTypeNumber:     format.DerefInt(draft.BusTypeNumber, predict.DefaultBusType),
		AgeGroupIndex:     format.DerefInt(draft.AgeGroupIndex, predict.DefaultAgeGroup),
		TrafficLevelIndex: format.DerefInt(draft.TrafficLevelIndex, predict.DefaultTrafficLevel),
	}
	pctx, cancel := context.WithTimeout(ctx, f.predictTimeout)
	defer cancel()

	raw, err := f.pred.Predict(pctx, feats)
	if err != nil {
		return 0, err
	}
	return predict.ClampFare(raw), nil
}

// matchedService resolves a bus id against the services offered for the
// current draft, so a stale or forged payload cannot book another route.
func (f *Flow) matchedService(draft store.BookingDraft, busID string) (schedule.BusService, bool) {
	for _, svc := range f.sched.Match(draft.RouteName, draft.Time) {
		if svc.ID == busID {
			return svc, true
		}
	}
	return schedule.BusService{}, false
}

func (f *Flow) summary(draft store.BookingDraft, svc schedule.BusService) string {
	ageLabel, _ := AgeGroupLabel(format.DerefInt(draft.AgeGroupIndex, predict.DefaultAgeGroup))
	trafficLabel, _ := TrafficLevelLabel(format.DerefInt(draft.TrafficLevelIndex, predict.DefaultTrafficLevel))
	return fmt.Sprintf(textSummaryFmt,
		mdSafe(svc.ID), mdSafe(svc.RouteName), draft.Date, draft.Time,
		ageLabel, trafficLabel,
		format.DerefFloat64(draft.PredictedFare, 0),
	)
}

// mdSafe escapes schedule-sourced names so they cannot break the Markdown
// messages they are interpolated into.
func mdSafe(s string) string {
	esc, err := format.EscapeMarkdown(s, format.MarkdownV1)
	if err != nil {
		return s
	}
	return esc
}

func (f *Flow) confirm(ctx context.Context, chatID int64, sess store.Session) error {
	key := store.ChatKey(chatID)
	svc, found := f.matchedService(sess.Data, sess.Data.SelectedBusID)
	if !found {
		f.sessions.Clear(key)
		return f.msg.SendMarkdown(ctx, chatID, textStaleChoice)
	}

	ageLabel, _ := AgeGroupLabel(format.DerefInt(sess.Data.AgeGroupIndex, predict.DefaultAgeGroup))
	trafficLabel, _ := TrafficLevelLabel(format.DerefInt(sess.Data.TrafficLevelIndex, predict.DefaultTrafficLevel))
	booking := store.Booking{
		ChatID:        key,
		BusID:         svc.ID,
		RouteName:     svc.RouteName,
		Date:          sess.Data.Date,
		Time:          sess.Data.Time,
		AgeGroup:      ageLabel,
		TrafficLevel:  trafficLabel,
		DistanceKm:    format.DerefFloat64(sess.Data.DistanceKm, predict.DefaultDistanceKm),
		PredictedFare: format.DerefFloat64(sess.Data.PredictedFare, 0),
		CreatedAt:     time.Now().UTC(),
	}
	f.bookings.Append(booking)
	f.sessions.Clear(key)

	logger.Info(ctx, "dialog", "booking.created",
		slog.String("chat", key),
		slog.String("bus_id", booking.BusID),
		slog.String("route", booking.RouteName),
		slog.String("date", booking.Date),
		slog.String("time", booking.Time),
		slog.Float64("fare", booking.PredictedFare),
	)
	if f.onBooking != nil {
		f.onBooking(booking)
	}
	return f.msg.SendMarkdown(ctx, chatID,
		fmt.Sprintf(textReceiptFmt, mdSafe(booking.BusID), booking.Date, booking.Time, booking.PredictedFare))
}
