package dialog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/busly/routafare/internal/predict"
	"github.com/busly/routafare/internal/schedule"
	"github.com/busly/routafare/internal/store"
)

const chatID = int64(100)

type sentMessage struct {
	chatID int64
	kind   string
	text   string
	rows   [][]Choice
}

type recorder struct {
	sent []sentMessage
}

func (r *recorder) SendText(_ context.Context, chatID int64, text string) error {
	r.sent = append(r.sent, sentMessage{chatID: chatID, kind: "text", text: text})
	return nil
}

func (r *recorder) SendMarkdown(_ context.Context, chatID int64, text string) error {
	r.sent = append(r.sent, sentMessage{chatID: chatID, kind: "md", text: text})
	return nil
}

func (r *recorder) SendChoices(_ context.Context, chatID int64, text string, rows [][]Choice) error {
	r.sent = append(r.sent, sentMessage{chatID: chatID, kind: "choices", text: text, rows: rows})
	return nil
}

type fakePredictor struct {
	fare  float64
	err   error
	feats []predict.Features
}

func (p *fakePredictor) Predict(_ context.Context, f predict.Features) (float64, error) {
	p.feats = append(p.feats, f)
	if p.err != nil {
		return 0, p.err
	}
	return p.fare, nil
}

type fixture struct {
	flow     *Flow
	sched    *schedule.Schedule
	sessions *store.SessionStore
	bookings *store.BookingStore
	msg      *recorder
	pred     *fakePredictor
	notified []store.Booking
}

func testSchedule(t *testing.T) *schedule.Schedule {
	t.Helper()
	services := schedule.Build([]schedule.RawRecord{
		{RouteID: "R1", RouteName: "Colombo - Kandy", BusTypeNumber: 1, Direction: "up", TimeSlot: "08:00-09:59"},
		{RouteID: "R2", RouteName: "Colombo - Kandy", BusTypeNumber: 2, Direction: "up", TimeSlot: "08:00-08:00"},
		{RouteID: "R3", RouteName: "Galle - Matara", BusTypeNumber: 1, Direction: "down", TimeSlot: "10:00-11:00"},
	}, time.Hour)
	sched, err := schedule.New(services)
	require.NoError(t, err)
	return sched
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	fx := &fixture{
		sched:    testSchedule(t),
		sessions: store.OpenSessions(filepath.Join(dir, "sessions.json")),
		bookings: store.OpenBookings(filepath.Join(dir, "bookings.json")),
		msg:      &recorder{},
		pred:     &fakePredictor{fare: 42.0},
	}
	fx.flow = New(Deps{
		Schedule:  fx.sched,
		Sessions:  fx.sessions,
		Bookings:  fx.bookings,
		Predictor: fx.pred,
		Messenger: fx.msg,
		OnBooking: func(b store.Booking) { fx.notified = append(fx.notified, b) },
	})
	return fx
}

func (fx *fixture) text(t *testing.T, text string) {
	t.Helper()
	err := fx.flow.HandleText(context.Background(), TextMessage{
		ChatID: chatID, Text: text, Username: "rider", FirstName: "Ada",
	})
	require.NoError(t, err)
}

func (fx *fixture) tap(t *testing.T, key, payload string) {
	t.Helper()
	err := fx.flow.HandleSelection(context.Background(), Selection{
		ChatID: chatID, Key: key, Payload: payload,
	})
	require.NoError(t, err)
}

func (fx *fixture) session(t *testing.T) store.Session {
	t.Helper()
	sess, ok := fx.sessions.Get(store.ChatKey(chatID))
	require.True(t, ok)
	return sess
}

func (fx *fixture) step() store.Step {
	sess, _ := fx.sessions.Get(store.ChatKey(chatID))
	return sess.Step
}

func (fx *fixture) lastMsg(t *testing.T) sentMessage {
	t.Helper()
	require.NotEmpty(t, fx.msg.sent)
	return fx.msg.sent[len(fx.msg.sent)-1]
}

func (fx *fixture) toAwaitDate(t *testing.T) {
	t.Helper()
	fx.text(t, "ser")
	fx.text(t, "Colombo - Kandy")
}

func (fx *fixture) toAwaitTime(t *testing.T) {
	t.Helper()
	fx.toAwaitDate(t)
	fx.text(t, "2026-09-01")
}

func (fx *fixture) toBusSelection(t *testing.T) {
	t.Helper()
	fx.toAwaitTime(t)
	fx.text(t, "08:00")
}

func (fx *fixture) toConfirmation(t *testing.T) {
	t.Helper()
	fx.toBusSelection(t)
	fx.tap(t, KeySelectBus, "BUS-1")
}

func TestSearchTriggerStartsFlow(t *testing.T) {
	fx := newFixture(t)
	fx.text(t, "ser")

	assert.Equal(t, store.StepAwaitRouteName, fx.step())
	assert.Equal(t, "rider", fx.session(t).User.Username)

	last := fx.lastMsg(t)
	assert.Equal(t, "choices", last.kind)
	require.Len(t, last.rows, 3)
	assert.Equal(t, KeySelectRoute, last.rows[0][0].Key)
	assert.Equal(t, "Colombo - Kandy", last.rows[0][0].Payload)
	assert.Equal(t, "Galle - Matara", last.rows[1][0].Payload)
	assert.Equal(t, KeyCancel, last.rows[2][0].Key)
}

func TestSearchTriggerIsCaseInsensitive(t *testing.T) {
	fx := newFixture(t)
	fx.text(t, "SEARCH")
	assert.Equal(t, store.StepAwaitRouteName, fx.step())
}

func TestIdleTextGetsHelp(t *testing.T) {
	fx := newFixture(t)
	fx.text(t, "hello there")
	assert.False(t, fx.flow.InProgress(chatID))
	assert.Equal(t, textIdleHelp, fx.lastMsg(t).text)
}

func TestTypedRouteNameIsCaseInsensitive(t *testing.T) {
	fx := newFixture(t)
	fx.text(t, "ser")
	fx.text(t, "  colombo - kandy  ")

	assert.Equal(t, store.StepAwaitDate, fx.step())
	assert.Equal(t, "Colombo - Kandy", fx.session(t).Data.RouteName)
	assert.Contains(t, fx.lastMsg(t).text, "Colombo - Kandy")
}

func TestUnknownRouteReprompts(t *testing.T) {
	fx := newFixture(t)
	fx.text(t, "ser")
	fx.text(t, "Mars Express")

	assert.Equal(t, store.StepAwaitRouteName, fx.step())
	assert.Empty(t, fx.session(t).Data.RouteName)
	assert.Equal(t, textRouteUnknown, fx.lastMsg(t).text)
}

func TestRouteSelectedByCallback(t *testing.T) {
	fx := newFixture(t)
	fx.text(t, "ser")
	fx.tap(t, KeySelectRoute, "Galle - Matara")

	assert.Equal(t, store.StepAwaitDate, fx.step())
	assert.Equal(t, "Galle - Matara", fx.session(t).Data.RouteName)
}

func TestDateIsNormalized(t *testing.T) {
	fx := newFixture(t)
	fx.toAwaitDate(t)
	fx.text(t, "01.09.2026")

	assert.Equal(t, store.StepAwaitTime, fx.step())
	assert.Equal(t, "2026-09-01", fx.session(t).Data.Date)

	// Attribute keyboard first, then the time prompt.
	require.GreaterOrEqual(t, len(fx.msg.sent), 2)
	choices := fx.msg.sent[len(fx.msg.sent)-2]
	assert.Equal(t, "choices", choices.kind)
	require.Len(t, choices.rows, 3)
	assert.Equal(t, KeySelectAge, choices.rows[0][0].Key)
	assert.Equal(t, "0", choices.rows[0][0].Payload)
	assert.Equal(t, KeySelectTraffic, choices.rows[2][0].Key)
	assert.Equal(t, textTimePrompt, fx.lastMsg(t).text)
}

func TestInvalidDateReprompts(t *testing.T) {
	fx := newFixture(t)
	fx.toAwaitDate(t)
	fx.text(t, "someday soon")

	assert.Equal(t, store.StepAwaitDate, fx.step())
	assert.Empty(t, fx.session(t).Data.Date)
	assert.Equal(t, textDateInvalid, fx.lastMsg(t).text)
}

func TestAttributeTapsUpdateDraftWithoutStepChange(t *testing.T) {
	fx := newFixture(t)
	fx.toAwaitTime(t)

	fx.tap(t, KeySelectAge, "0")
	sess := fx.session(t)
	assert.Equal(t, store.StepAwaitTime, sess.Step)
	require.NotNil(t, sess.Data.AgeGroupIndex)
	assert.Equal(t, 0, *sess.Data.AgeGroupIndex)
	assert.Contains(t, fx.lastMsg(t).text, "Child (0-12)")

	fx.tap(t, KeySelectTraffic, "2")
	sess = fx.session(t)
	assert.Equal(t, store.StepAwaitTime, sess.Step)
	require.NotNil(t, sess.Data.TrafficLevelIndex)
	assert.Equal(t, 2, *sess.Data.TrafficLevelIndex)
	assert.Contains(t, fx.lastMsg(t).text, "Medium (2)")

	// An index outside the catalog changes nothing.
	fx.tap(t, KeySelectAge, "9")
	sess = fx.session(t)
	assert.Equal(t, 0, *sess.Data.AgeGroupIndex)
	assert.Equal(t, textStaleChoice, fx.lastMsg(t).text)
}

func TestInvalidTimeReprompts(t *testing.T) {
	fx := newFixture(t)
	fx.toAwaitTime(t)

	for _, bad := range []string{"25:00", "8 am", "0800", "8:5"} {
		fx.text(t, bad)
		assert.Equal(t, store.StepAwaitTime, fx.step(), "input %q", bad)
		assert.Equal(t, textTimeInvalid, fx.lastMsg(t).text, "input %q", bad)
	}
	assert.Empty(t, fx.pred.feats)
}

func TestSearchPredictsAndListsMatches(t *testing.T) {
	fx := newFixture(t)
	fx.pred.fare = 12.3456
	fx.toAwaitTime(t)
	fx.tap(t, KeySelectAge, "0")
	fx.tap(t, KeySelectTraffic, "2")
	fx.text(t, "08:00")

	assert.Equal(t, store.StepAwaitBusSelection, fx.step())

	require.Len(t, fx.pred.feats, 1)
	feats := fx.pred.feats[0]
	assert.Equal(t, 1.0, feats.DistanceKm)
	assert.Equal(t, 1, feats.BusTypeNumber)
	assert.Equal(t, 0, feats.AgeGroupIndex)
	assert.Equal(t, 2, feats.TrafficLevelIndex)

	sess := fx.session(t)
	require.NotNil(t, sess.Data.PredictedFare)
	assert.InDelta(t, 12.35, *sess.Data.PredictedFare, 1e-9)

	last := fx.lastMsg(t)
	assert.Equal(t, "choices", last.kind)
	assert.Contains(t, last.text, "Rs. 12.35")
	require.Len(t, last.rows, 3)
	assert.Equal(t, "BUS-1", last.rows[0][0].Payload)
	assert.Equal(t, "BUS-2", last.rows[1][0].Payload)
	assert.Equal(t, KeyCancel, last.rows[2][0].Key)
}

func TestPredictionUsesDefaultsWhenNothingPicked(t *testing.T) {
	fx := newFixture(t)
	fx.toBusSelection(t)

	require.Len(t, fx.pred.feats, 1)
	feats := fx.pred.feats[0]
	assert.Equal(t, predict.DefaultDistanceKm, feats.DistanceKm)
	assert.Equal(t, predict.DefaultBusType, feats.BusTypeNumber)
	assert.Equal(t, predict.DefaultAgeGroup, feats.AgeGroupIndex)
	assert.Equal(t, predict.DefaultTrafficLevel, feats.TrafficLevelIndex)
}

func TestLowEstimateIsClampedToMinimumFare(t *testing.T) {
	fx := newFixture(t)
	fx.pred.fare = 1.2
	fx.toBusSelection(t)
	assert.Contains(t, fx.lastMsg(t).text, "Rs. 5.00")
}

func TestPredictionFailureAbortsFlow(t *testing.T) {
	fx := newFixture(t)
	fx.pred.err = errors.New("endpoint exploded")
	fx.toAwaitTime(t)
	fx.text(t, "08:00")

	assert.False(t, fx.flow.InProgress(chatID))
	_, ok := fx.sessions.Get(store.ChatKey(chatID))
	assert.False(t, ok)

	last := fx.lastMsg(t)
	assert.Contains(t, last.text, "Prediction Error")
	assert.Contains(t, last.text, "endpoint exploded")
	assert.Equal(t, 0, fx.bookings.Count())
}

func TestUnconfiguredPredictorAbortsFlow(t *testing.T) {
	fx := newFixture(t)
	fx.flow = New(Deps{
		Schedule:  fx.sched,
		Sessions:  fx.sessions,
		Bookings:  fx.bookings,
		Predictor: predict.Unconfigured{},
		Messenger: fx.msg,
	})
	fx.toAwaitTime(t)
	fx.text(t, "08:00")

	assert.False(t, fx.flow.InProgress(chatID))
	assert.Contains(t, fx.lastMsg(t).text, "Prediction Error")
}

func TestNoMatchingBusesEndsFlow(t *testing.T) {
	fx := newFixture(t)
	fx.toAwaitTime(t)
	fx.text(t, "06:00")

	assert.False(t, fx.flow.InProgress(chatID))
	last := fx.lastMsg(t)
	assert.Contains(t, last.text, "No buses found")
	assert.Contains(t, last.text, "Colombo - Kandy")
	assert.Contains(t, last.text, "06:00")
}

func TestBusSelectionShowsSummary(t *testing.T) {
	fx := newFixture(t)
	fx.toBusSelection(t)
	fx.tap(t, KeySelectBus, "BUS-1")

	assert.Equal(t, store.StepAwaitConfirmation, fx.step())
	assert.Equal(t, "BUS-1", fx.session(t).Data.SelectedBusID)

	last := fx.lastMsg(t)
	assert.Equal(t, "choices", last.kind)
	assert.Contains(t, last.text, "Booking summary")
	assert.Contains(t, last.text, "BUS-1")
	assert.Contains(t, last.text, "2026-09-01")
	assert.Contains(t, last.text, "08:00")
	assert.Contains(t, last.text, "Adult (20-59)")
	assert.Contains(t, last.text, "Low (1)")
	assert.Contains(t, last.text, "Rs. 42.00")
	require.Len(t, last.rows, 1)
	require.Len(t, last.rows[0], 2)
	assert.Equal(t, KeyConfirm, last.rows[0][0].Key)
	assert.Equal(t, KeyCancel, last.rows[0][1].Key)
}

func TestBusOutsideMatchSetIsRejected(t *testing.T) {
	fx := newFixture(t)
	fx.toBusSelection(t)

	// BUS-3 exists but serves another route; BUS-99 does not exist.
	for _, id := range []string{"BUS-3", "BUS-99"} {
		fx.tap(t, KeySelectBus, id)
		assert.Equal(t, store.StepAwaitBusSelection, fx.step(), "bus %s", id)
		assert.Equal(t, textBusUnknown, fx.lastMsg(t).text, "bus %s", id)
	}
}

func TestTextDuringBusSelectionReprompts(t *testing.T) {
	fx := newFixture(t)
	fx.toBusSelection(t)
	fx.text(t, "BUS-1")
	assert.Equal(t, store.StepAwaitBusSelection, fx.step())
	assert.Equal(t, textBusUnknown, fx.lastMsg(t).text)
}

func TestConfirmCreatesBooking(t *testing.T) {
	fx := newFixture(t)
	fx.toConfirmation(t)
	fx.tap(t, KeyConfirm, "")

	require.Equal(t, 1, fx.bookings.Count())
	b := fx.bookings.All()[0]
	assert.Equal(t, store.ChatKey(chatID), b.ChatID)
	assert.Equal(t, "BUS-1", b.BusID)
	assert.Equal(t, "Colombo - Kandy", b.RouteName)
	assert.Equal(t, "2026-09-01", b.Date)
	assert.Equal(t, "08:00", b.Time)
	assert.Equal(t, "Adult (20-59)", b.AgeGroup)
	assert.Equal(t, "Low (1)", b.TrafficLevel)
	assert.Equal(t, 42.0, b.PredictedFare)
	assert.False(t, b.CreatedAt.IsZero())

	assert.False(t, fx.flow.InProgress(chatID))
	assert.Contains(t, fx.lastMsg(t).text, "Booking confirmed")

	require.Len(t, fx.notified, 1)
	assert.Equal(t, "BUS-1", fx.notified[0].BusID)
}

func TestConfirmByTextWorks(t *testing.T) {
	fx := newFixture(t)
	fx.toConfirmation(t)
	fx.text(t, "Confirm")

	assert.Equal(t, 1, fx.bookings.Count())
	assert.False(t, fx.flow.InProgress(chatID))
}

func TestUnexpectedTextDuringConfirmationNags(t *testing.T) {
	fx := newFixture(t)
	fx.toConfirmation(t)
	fx.text(t, "maybe later")

	assert.Equal(t, store.StepAwaitConfirmation, fx.step())
	assert.Equal(t, 0, fx.bookings.Count())
	assert.Equal(t, textConfirmNag, fx.lastMsg(t).text)
}

func TestCancelWorksFromEveryStep(t *testing.T) {
	cases := []struct {
		name  string
		setup func(*testing.T, *fixture)
	}{
		{"idle", func(*testing.T, *fixture) {}},
		{"await_route_name", func(t *testing.T, fx *fixture) { fx.text(t, "ser") }},
		{"await_date", func(t *testing.T, fx *fixture) { fx.toAwaitDate(t) }},
		{"await_time", func(t *testing.T, fx *fixture) { fx.toAwaitTime(t) }},
		{"await_bus_selection", func(t *testing.T, fx *fixture) { fx.toBusSelection(t) }},
		{"await_confirmation", func(t *testing.T, fx *fixture) { fx.toConfirmation(t) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture(t)
			tc.setup(t, fx)
			fx.text(t, "CANCEL")

			assert.False(t, fx.flow.InProgress(chatID))
			_, ok := fx.sessions.Get(store.ChatKey(chatID))
			assert.False(t, ok)
			assert.Equal(t, textCancelled, fx.lastMsg(t).text)
			assert.Equal(t, 0, fx.bookings.Count())
		})
	}
}

func TestCancelCallbackAborts(t *testing.T) {
	fx := newFixture(t)
	fx.toBusSelection(t)
	fx.tap(t, KeyCancel, "")

	assert.False(t, fx.flow.InProgress(chatID))
	assert.Equal(t, textCancelled, fx.lastMsg(t).text)
}

func TestStaleSelectionsDoNotMutateState(t *testing.T) {
	fx := newFixture(t)

	// No session at all.
	fx.tap(t, KeySelectBus, "BUS-1")
	assert.Equal(t, textStaleChoice, fx.lastMsg(t).text)

	// Confirm long before the confirmation step.
	fx.text(t, "ser")
	fx.tap(t, KeyConfirm, "")
	assert.Equal(t, store.StepAwaitRouteName, fx.step())
	assert.Equal(t, 0, fx.bookings.Count())

	// Route pick after the route step is done.
	fx.text(t, "Colombo - Kandy")
	fx.tap(t, KeySelectRoute, "Galle - Matara")
	assert.Equal(t, "Colombo - Kandy", fx.session(t).Data.RouteName)

	// A key nothing ever registers.
	fx.tap(t, "select_color", "blue")
	assert.Equal(t, textStaleChoice, fx.lastMsg(t).text)
}

func TestStartSearchRestartsFlow(t *testing.T) {
	fx := newFixture(t)
	fx.toBusSelection(t)

	err := fx.flow.StartSearch(context.Background(), TextMessage{ChatID: chatID, Username: "rider"})
	require.NoError(t, err)

	sess := fx.session(t)
	assert.Equal(t, store.StepAwaitRouteName, sess.Step)
	assert.Empty(t, sess.Data.RouteName)
	assert.Nil(t, sess.Data.PredictedFare)
}

func TestChatsAreIsolated(t *testing.T) {
	fx := newFixture(t)
	fx.toAwaitDate(t)

	err := fx.flow.HandleText(context.Background(), TextMessage{ChatID: 200, Text: "ser"})
	require.NoError(t, err)

	assert.Equal(t, store.StepAwaitDate, fx.step())
	other, ok := fx.sessions.Get(store.ChatKey(200))
	require.True(t, ok)
	assert.Equal(t, store.StepAwaitRouteName, other.Step)
}

func TestCatalogLabels(t *testing.T) {
	label, ok := AgeGroupLabel(0)
	require.True(t, ok)
	assert.Equal(t, "Child (0-12)", label)

	label, ok = TrafficLevelLabel(3)
	require.True(t, ok)
	assert.Equal(t, "High (3)", label)

	_, ok = AgeGroupLabel(4)
	assert.False(t, ok)
	_, ok = TrafficLevelLabel(0)
	assert.False(t, ok)
}
