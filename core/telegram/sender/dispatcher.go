package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/busly/routafare/core/logger"
	"github.com/busly/routafare/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrQueueClosed rejects enqueues that arrive after Close.
	ErrQueueClosed = errors.New("sender: queue closed")
	// ErrQueueFull rejects enqueues while the queue is saturated.
	ErrQueueFull = errors.New("sender: queue full")

	botTokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single task.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type task struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// attrs carries the task identity into every log line about it. Correlation
// identifiers ride along separately via the context.
func (t task) attrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("action", t.action)}
	if t.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", t.endpoint))
	}
	return attrs
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
// Enqueue never blocks the handler goroutine; a saturated queue surfaces as
// ErrQueueFull so the caller can decide to deliver inline.
type Dispatcher struct {
	opts  Options
	tasks chan task
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts:  opts,
		tasks: make(chan task, opts.QueueSize),
		stop:  make(chan struct{}),
	}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go d.worker()
	}
	return d
}

// Enqueue schedules the provided function for asynchronous execution.
// The run closure must be idempotent if retries are desired.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("sender: enqueue of nil func")
	}
	select {
	case <-d.stop:
		return ErrQueueClosed
	default:
	}
	select {
	case d.tasks <- task{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting tasks and waits for the queue to drain.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.stop)
		close(d.tasks)
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.tasks {
		d.process(t)
	}
}

func (d *Dispatcher) process(t task) {
	ctx := t.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	deadline, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	logger.Debug(ctx, "tg.sender", "send.start", t.attrs()...)

	total := d.opts.MaxRetries + 1
	for attempt := 1; attempt <= total; attempt++ {
		if err := deadline.Err(); err != nil {
			t.logFailure(ctx, err, total, time.Since(start))
			return
		}

		err := t.run()
		if err == nil {
			t.logSuccess(ctx, attempt, time.Since(start))
			return
		}
		if !netutil.ShouldRetry(err) || attempt == total {
			t.logFailure(ctx, err, total, time.Since(start))
			return
		}

		delay := time.Duration(attempt) * d.opts.RetryBackoff
		if !waitBackoff(deadline, delay) {
			t.logFailure(ctx, deadline.Err(), total, time.Since(start))
			return
		}
		logger.Debug(ctx, "tg.sender", "send.retry.backoff",
			append(t.attrs(), slog.Int("attempt", attempt), slog.Duration("delay", delay))...)
	}
}

// waitBackoff sleeps for delay or until ctx expires, reporting which.
func waitBackoff(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (t task) logSuccess(ctx context.Context, attempt int, elapsed time.Duration) {
	attrs := append(t.attrs(), slog.Duration("elapsed", elapsed))
	if attempt > 1 {
		attrs = append(attrs, slog.Int("attempt", attempt))
		// A send that needed retries is worth a visible line.
		logger.Info(ctx, "tg.sender", "send.success", attrs...)
		return
	}
	logger.Debug(ctx, "tg.sender", "send.success", attrs...)
}

func (t task) logFailure(ctx context.Context, err error, attempts int, elapsed time.Duration) {
	attrs := append(t.attrs(),
		slog.String("err", redactTokens(err)),
		slog.String("reason", errKind(err)),
		slog.Bool("retryable", netutil.ShouldRetry(err)),
		slog.Duration("elapsed", elapsed),
	)
	if attempts > 0 {
		attrs = append(attrs, slog.Int("attempts", attempts))
	}
	logger.Error(ctx, "tg.sender", "send.fail", attrs...)
}

// errKind buckets a delivery error for the reason log field.
func errKind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case opErr.Timeout():
			return "timeout"
		case opErr.Op == "dial":
			return "dial"
		case opErr.Op == "read" || opErr.Op == "write":
			if kind := errKind(opErr.Err); kind != "" && kind != "unknown" {
				return kind
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return "timeout"
		}
		if inner := urlErr.Err; inner != nil && !errors.Is(inner, err) {
			if kind := errKind(inner); kind != "" && kind != "unknown" {
				return kind
			}
		}
	}

	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return "tls"
	}

	switch code := statusFromErr(err); {
	case code >= 500:
		return "http_5xx"
	case code >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// redactTokens prevents accidental leakage of bot tokens in logs.
func redactTokens(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if msg == "" {
		return ""
	}
	return botTokenRe.ReplaceAllString(msg, "bot<redacted>")
}

func statusFromErr(err error) int {
	if err == nil {
		return 0
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return http.StatusTooManyRequests
	}
	var group tele.GroupError
	if errors.As(err, &group) {
		return http.StatusBadRequest
	}

	// telebot renders unknown API errors with the code in a trailing "(404)".
	msg := err.Error()
	open := strings.LastIndex(msg, "(")
	end := strings.LastIndex(msg, ")")
	if open >= 0 && end > open+1 {
		if code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : end])); convErr == nil {
			return code
		}
	}
	return 0
}
