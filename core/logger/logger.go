package logger

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/busly/routafare/core/buildinfo"
	coreconfig "github.com/busly/routafare/core/config"
)

var (
	setupOnce sync.Once
	closeMu   sync.Mutex
	closed    bool

	logOut      *lineSink
	fileClosers []io.Closer

	levelVar slog.LevelVar

	debugSampler  = newRatioSampler(1, 50)
	traceOverride bool

	// L is the base logger exposed for call sites that have no context yet.
	L *slog.Logger
)

// InitLogger configures the global structured logger. It may be called only once.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	setupOnce.Do(func() {
		levelVar.Set(parseLevel(cfg))
		debugSampler.Set(debugSampleRatio(cfg))
		traceOverride = traceFlagSet()

		sinks, toClose, err := openSinks(cfg)
		if err != nil {
			initErr = err
			return
		}
		fileClosers = toClose
		logOut = newLineSink(sinks, 64*1024)

		base := slog.New(newLineHandler(handlerOptions{
			level:    &levelVar,
			writer:   logOut,
			format:   parseFormat(cfg),
			keyOrder: parseKeyOrder(cfg),
		}))
		L = base
		slog.SetDefault(base)

		announceStartup(cfg)
	})
	return initErr
}

func announceStartup(cfg *coreconfig.Config) {
	attrs := []slog.Attr{
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
	}
	if cfg != nil {
		attrs = append(attrs, slog.String("cfg_profile", profileName(cfg)))
	}
	Info(context.Background(), "app", "startup", attrs...)
}

// Shutdown flushes buffered log output and closes opened sinks.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var problems []error
	if logOut != nil {
		problems = append(problems, logOut.Flush(), logOut.Close())
	}
	for _, c := range fileClosers {
		problems = append(problems, c.Close())
	}
	return errors.Join(problems...)
}

func parseFormat(cfg *coreconfig.Config) logFormat {
	if cfg == nil {
		return formatJSON
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	// Unset format defers to the profile: dev profiles read better as KV.
	switch profileName(cfg) {
	case "debug", "dev":
		return formatKV
	}
	return formatJSON
}

func parseKeyOrder(cfg *coreconfig.Config) []string {
	fallback := func() []string { return append([]string(nil), defaultKeyOrder...) }
	if cfg == nil {
		return fallback()
	}
	spec := strings.TrimSpace(cfg.Logging.KeysOrder)
	if spec == "" || spec == "default" {
		return fallback()
	}
	var keys []string
	for _, part := range strings.Split(spec, ",") {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return fallback()
	}
	return keys
}

func parseLevel(cfg *coreconfig.Config) slog.Level {
	if cfg == nil {
		return slog.LevelInfo
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openSinks always includes stdout; a file sink joins it when the config
// names one. File problems degrade to stdout-only rather than failing boot.
func openSinks(cfg *coreconfig.Config) ([]io.Writer, []io.Closer, error) {
	sinks := []io.Writer{os.Stdout}
	if cfg == nil {
		return sinks, nil, nil
	}
	dir, name := strings.TrimSpace(cfg.Logging.Dir), strings.TrimSpace(cfg.Logging.BotFile)
	if dir == "" || name == "" {
		return sinks, nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("logger: create log dir %s: %v", dir, err)
		return sinks, nil, nil
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: open log file %s: %v", path, err)
		return sinks, nil, nil
	}
	return append(sinks, f), []io.Closer{f}, nil
}

func profileName(cfg *coreconfig.Config) string {
	if cfg == nil {
		return ""
	}
	if p := strings.TrimSpace(cfg.Logging.Profile); p != "" {
		return strings.ToLower(p)
	}
	return "prod"
}

// Background returns a fresh root context for call sites that run outside
// any update.
func Background() context.Context {
	return context.Background()
}

// LogEvent emits one structured line through lg, falling back to the context
// logger and then the base logger. Safe to call before InitLogger. The event
// travels as the record message and lands in the line's event field.
func LogEvent(ctx context.Context, lg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if lg == nil {
		lg = FromContext(ctx)
	}
	if lg == nil {
		return
	}
	lg.LogAttrs(ctx, level, event, attrs...)
}

// Component returns the base logger scoped to a component name, or nil
// before InitLogger runs.
func Component(name string) *slog.Logger {
	if L == nil {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return L
	}
	return L.With("component", name)
}

// Event logs one event for a component at the given level.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	lg := Component(component)
	if lg == nil {
		if lg = FromContext(ctx); lg != nil {
			if name := strings.TrimSpace(component); name != "" {
				lg = lg.With("component", name)
			}
		}
	}
	LogEvent(ctx, lg, level, event, attrs...)
}

// Debug emits event under component at debug level.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info emits event under component at info level.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn emits event under component at warn level.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error emits event under component at error level.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

func debugSampleRatio(cfg *coreconfig.Config) (int, int) {
	if cfg == nil {
		return 1, 50
	}
	ratio := strings.TrimSpace(cfg.Logging.DebugSample)
	if ratio == "" {
		return 1, 50
	}
	num, den := parseRatioSpec(ratio)
	switch {
	case num == 0 && den == 0:
		return 0, 0
	case num <= 0 || den <= 0:
		return 1, 50
	}
	return num, den
}

func traceFlagSet() bool {
	for _, key := range []string{"TRACE", "LOG_TRACE"} {
		if isTruthy(os.Getenv(key)) {
			return true
		}
	}
	return false
}

func isTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether this occurrence of a high-volume debug
// event should be written. TRACE=1 in the environment forces every one on.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}
