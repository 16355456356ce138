package logger

import "strings"

// Canonical level names as they appear on the wire.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

var levelNames = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
	"fatal":   LevelFatal,
}

var statusNames = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"skip":         {},
	"retry":        {},
	"rate_limited": {},
	"cancelled":    {},
}

var outcomeNames = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"cancelled":    {},
	"rate_limited": {},
}

// canonLevel maps any spelling of a level onto its canonical upper-case
// name. Unknown levels pass through upper-cased rather than vanish.
func canonLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if name, ok := levelNames[strings.ToLower(level)]; ok {
		return name
	}
	return strings.ToUpper(level)
}

// canonStatus lower-cases a status label. Unknown labels are kept so a new
// call site cannot silently lose its status field.
func canonStatus(status string) (string, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return "", false
	}
	_, known := statusNames[status]
	return status, known
}

// canonOutcome admits only the known outcome labels.
func canonOutcome(outcome string) (string, bool) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	if outcome == "" {
		return "", false
	}
	if _, known := outcomeNames[outcome]; !known {
		return "", false
	}
	return outcome, true
}

// defaultKeyOrder pins the well-known keys of the booking bot's log lines.
// Correlation first, then routing, then domain detail, errors last.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "handler", "cb_key",
	"outcome", "duration_ms", "messages", "kb", "count",
	"payload", "lang", "username",
	"mode", "listen", "public_url", "http_code", "path", "file", "step",
	"route", "route_id", "bus_id", "date", "time", "fare",
	"matches", "services", "routes", "bookings", "subscribers",
	"action", "endpoint", "attempt", "attempts", "delay_ms",
	"err", "err_code", "cause", "reason", "retryable",
	"backoff_ms", "rate_limited", "collapsed", "repeats", "pending_count",
}
