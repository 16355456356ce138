package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	tsLayout = "2006-01-02T15:04:05.000Z07:00"
)

type handlerOptions struct {
	level    slog.Leveler
	writer   *lineSink
	format   logFormat
	keyOrder []string
}

// lineHandler renders every record as a single ordered line, JSON or
// key=value. Well-known keys come first in the configured order, the rest
// follow alphabetically.
type lineHandler struct {
	opts   handlerOptions
	attrs  []slog.Attr
	groups []string
}

func newLineHandler(opts handlerOptions) *lineHandler {
	if opts.level == nil {
		opts.level = slog.LevelInfo
	}
	if opts.keyOrder == nil {
		opts.keyOrder = slices.Clone(defaultKeyOrder)
	}
	return &lineHandler{opts: opts}
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	floor := slog.LevelInfo
	if h.opts.level != nil {
		floor = h.opts.level.Level()
	}
	return level >= floor
}

func (h *lineHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.opts.writer == nil {
		return fmt.Errorf("logger: no output writer configured")
	}

	isJSON := h.opts.format == formatJSON
	row := make(map[string]any, 24)

	when := r.Time.UTC()
	row["ts"] = when.Truncate(time.Millisecond).Format(tsLayout)
	row["level"] = canonLevel(r.Level.String())
	if isJSON {
		row["ts_unix_nano"] = when.UnixNano()
	}

	for _, a := range h.attrs {
		h.collect(row, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.collect(row, a)
		return true
	})
	mergeContext(ctx, row)
	compactRIDField(row, isJSON)
	fillDefaults(row, r.Message)
	canonEnums(row)
	dropEmpty(row)

	line, err := h.render(row)
	if err != nil {
		return err
	}
	if !bytes.HasSuffix(line, []byte{'\n'}) {
		line = append(line, '\n')
	}
	return h.opts.writer.Write(line)
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(slices.Clone(h.attrs), attrs...)
	return &clone
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(slices.Clone(h.groups), name)
	return &clone
}

func (h *lineHandler) collect(row map[string]any, attr slog.Attr) {
	flatten(strings.Join(h.groups, "."), attr, func(k string, v slog.Value) {
		if name, val, ok := fieldValue(k, v); ok {
			row[name] = val
		}
	})
}

func (h *lineHandler) render(row map[string]any) ([]byte, error) {
	if h.opts.format == formatJSON {
		return renderJSON(row, h.opts.keyOrder)
	}
	return renderKV(row, h.opts.keyOrder), nil
}

// flatten turns nested groups into dotted keys and feeds each leaf to fn.
func flatten(prefix string, attr slog.Attr, fn func(string, slog.Value)) {
	name := attr.Key
	switch {
	case name == "":
		name = prefix
	case prefix != "":
		name = prefix + "." + name
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, child := range attr.Value.Group() {
			flatten(name, child, fn)
		}
		return
	}
	if name == "" {
		return
	}
	fn(name, attr.Value)
}

// msKey renames a duration-valued key so the unit is always visible.
func msKey(name string) string {
	if name == "duration" {
		return "duration_ms"
	}
	if strings.HasSuffix(name, "_ms") {
		return name
	}
	return name + "_ms"
}

func fieldValue(name string, v slog.Value) (string, any, bool) {
	if name == "" {
		return "", nil, false
	}
	switch v.Kind() {
	case slog.KindString:
		return name, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return name, v.Bool(), true
	case slog.KindInt64:
		return name, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u > math.MaxInt64 {
			return name, u, true
		}
		return name, int64(v.Uint64()), true
	case slog.KindFloat64:
		return name, v.Float64(), true
	case slog.KindDuration:
		return msKey(name), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return name, v.Time().UTC().Format(time.RFC3339Nano), true
	case slog.KindAny:
		return anyField(name, v.Any())
	default:
		return name, v.Any(), true
	}
}

func anyField(name string, raw any) (string, any, bool) {
	switch x := raw.(type) {
	case nil:
		return name, nil, false
	case error:
		return name, x.Error(), true
	case string:
		return name, strings.TrimSpace(x), true
	case time.Duration:
		return msKey(name), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return name, x.String(), true
	default:
		return name, fmt.Sprint(x), true
	}
}

// mergeContext copies correlation identifiers from ctx into the row unless
// the caller already set them explicitly.
func mergeContext(ctx context.Context, row map[string]any) {
	if ctx == nil {
		return
	}
	set := func(name string, v any) {
		if _, taken := row[name]; !taken {
			row[name] = v
		}
	}
	if rid := RIDFrom(ctx); rid != "" {
		set("rid", rid)
	}
	if id := UpdateIDFrom(ctx); id != 0 {
		set("update_id", id)
	}
	if id := UserIDFrom(ctx); id != 0 {
		set("user_id", id)
	}
	if id := ChatIDFrom(ctx); id != 0 {
		set("chat_id", id)
	}
	if name := HandlerFrom(ctx); name != "" {
		set("handler", name)
	}
}

// compactRIDField shortens the rid for humans; JSON keeps the full form too.
func compactRIDField(row map[string]any, keepFull bool) {
	rid, ok := textField(row, "rid")
	if !ok || rid == "" {
		return
	}
	compact := CompactRID(rid)
	if compact == "" || compact == rid {
		return
	}
	if keepFull {
		if _, has := row["rid_full"]; !has {
			row["rid_full"] = rid
		}
	}
	row["rid"] = compact
}

func fillDefaults(row map[string]any, msg string) {
	if event, ok := textField(row, "event"); !ok || event == "" {
		if msg == "" {
			msg = "unknown"
		}
		row["event"] = msg
	}
	if component, ok := textField(row, "component"); !ok || component == "" {
		row["component"] = "app"
	}
}

func canonEnums(row map[string]any) {
	if lvl, ok := textField(row, "level"); ok {
		row["level"] = canonLevel(lvl)
	}
	if st, ok := textField(row, "status"); ok && st != "" {
		val, _ := canonStatus(st)
		row["status"] = val
	}
	if oc, ok := textField(row, "outcome"); ok && oc != "" {
		if val, known := canonOutcome(oc); known {
			row["outcome"] = val
		} else {
			delete(row, "outcome")
		}
	}
}

func dropEmpty(row map[string]any) {
	for name, v := range row {
		switch x := v.(type) {
		case nil:
			delete(row, name)
		case string:
			if x == "" {
				delete(row, name)
			}
		case fmt.Stringer:
			if x.String() == "" {
				delete(row, name)
			}
		}
	}
}

func renderJSON(row map[string]any, order []string) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, name := range rankKeys(row, order) {
		val, err := json.Marshal(row[name])
		if err != nil {
			return nil, err
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(name))
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func renderKV(row map[string]any, order []string) []byte {
	var b bytes.Buffer
	for i, name := range rankKeys(row, order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(kvText(row[name]))
	}
	return b.Bytes()
}

// rankKeys lists the well-known keys first, the rest alphabetically.
func rankKeys(row map[string]any, order []string) []string {
	ranked := make([]string, 0, len(row))
	used := make(map[string]bool, len(row))
	for _, name := range order {
		if _, ok := row[name]; ok {
			ranked = append(ranked, name)
			used[name] = true
		}
	}
	head := len(ranked)
	for name := range row {
		if !used[name] {
			ranked = append(ranked, name)
		}
	}
	sort.Strings(ranked[head:])
	return ranked
}

func kvText(v any) string {
	switch x := v.(type) {
	case string:
		return kvQuote(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return kvQuote(fmt.Sprint(x))
	}
}

func kvQuote(s string) string {
	if strings.IndexFunc(s, breaksKV) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func breaksKV(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

func textField(row map[string]any, name string) (string, bool) {
	v, ok := row[name]
	if !ok {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case fmt.Stringer:
		return x.String(), true
	default:
		return fmt.Sprint(x), true
	}
}
