package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

var errNoWriter = errors.New("logger: writer not initialized")

type handlerConfig struct {
	level  slog.Leveler
	writer *asyncWriter
	// errWriter, when set, additionally receives WARN and above.
	errWriter *asyncWriter
	format    logFormat
	keyOrder  []string
}

type field struct {
	key string
	val any
}

// record keeps fields in first-write order; later writes replace the value in place.
type record struct {
	fields []field
	pos    map[string]int
}

func newRecord(capacity int) *record {
	return &record{fields: make([]field, 0, capacity), pos: make(map[string]int, capacity)}
}

func (r *record) set(key string, val any) {
	if i, ok := r.pos[key]; ok {
		r.fields[i].val = val
		return
	}
	r.pos[key] = len(r.fields)
	r.fields = append(r.fields, field{key: key, val: val})
}

func (r *record) setIfAbsent(key string, val any) {
	if _, ok := r.pos[key]; !ok {
		r.set(key, val)
	}
}

func (r *record) get(key string) (any, bool) {
	i, ok := r.pos[key]
	if !ok || r.fields[i].key == "" {
		return nil, false
	}
	return r.fields[i].val, true
}

func (r *record) text(key string) string {
	v, ok := r.get(key)
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// drop blanks the slot; blanked fields are skipped on output.
func (r *record) drop(key string) {
	if i, ok := r.pos[key]; ok {
		r.fields[i].key = ""
		delete(r.pos, key)
	}
}

type structuredHandler struct {
	cfg    handlerConfig
	rank   map[string]int
	bound  []field
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	rank := make(map[string]int, len(cfg.keyOrder))
	for i, k := range cfg.keyOrder {
		if _, dup := rank[k]; !dup {
			rank[k] = i
		}
	}
	return &structuredHandler{cfg: cfg, rank: rank}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

// Handle renders r as one line and fans it out to the main sink and, for
// WARN and above, to the errors sink.
func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errNoWriter
	}
	asJSON := h.cfg.format == formatJSON

	rec := newRecord(len(h.bound) + r.NumAttrs() + 10)
	ts := r.Time.UTC()
	rec.set("ts", ts.Truncate(time.Millisecond).Format(timeFormatMillis))
	rec.set("level", normalizeLevel(r.Level.String()))
	if asJSON {
		rec.set("ts_unix_nano", ts.UnixNano())
	}
	for _, f := range h.bound {
		rec.set(f.key, f.val)
	}
	r.Attrs(func(a slog.Attr) bool {
		walkAttr(h.prefix, a, rec.set)
		return true
	})
	addContextFields(ctx, rec)
	h.finish(rec, r.Message, asJSON)

	line, err := h.render(rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if h.cfg.errWriter != nil && r.Level >= slog.LevelWarn {
		if err := h.cfg.errWriter.Write(line); err != nil {
			return err
		}
	}
	return h.cfg.writer.Write(line)
}

// finish fills mandatory keys and normalizes enumerated values.
func (h *structuredHandler) finish(rec *record, msg string, asJSON bool) {
	if rid := rec.text("rid"); rid != "" {
		if short := CompactRID(rid); short != rid {
			if asJSON {
				rec.setIfAbsent("rid_full", rid)
			}
			rec.set("rid", short)
		}
	}
	if rec.text("event") == "" {
		if msg == "" {
			msg = "unknown"
		}
		rec.set("event", msg)
	}
	if rec.text("component") == "" {
		rec.set("component", CompApp)
	}
	if v := rec.text("status"); v != "" {
		status, _ := normalizeEnum(allowedStatus, v)
		rec.set("status", status)
	}
	for key, table := range map[string]map[string]string{"cache": allowedCache, "outcome": allowedOutcome} {
		v := rec.text(key)
		if v == "" {
			continue
		}
		if norm, ok := normalizeEnum(table, v); ok {
			rec.set(key, norm)
		} else {
			rec.drop(key)
		}
	}
	for _, f := range rec.fields {
		if f.key == "" {
			continue
		}
		switch v := f.val.(type) {
		case nil:
			rec.drop(f.key)
		case string:
			if v == "" {
				rec.drop(f.key)
			}
		}
	}
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.bound = slices.Clone(h.bound)
	for _, a := range attrs {
		walkAttr(h.prefix, a, func(k string, v any) {
			clone.bound = append(clone.bound, field{key: k, val: v})
		})
	}
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

// ordered returns live fields: configured keys first, the rest as written.
func (h *structuredHandler) ordered(rec *record) []field {
	out := make([]field, 0, len(rec.fields))
	for _, f := range rec.fields {
		if f.key != "" {
			out = append(out, f)
		}
	}
	tail := len(h.rank)
	slices.SortStableFunc(out, func(a, b field) int {
		ra, ok := h.rank[a.key]
		if !ok {
			ra = tail
		}
		rb, ok := h.rank[b.key]
		if !ok {
			rb = tail
		}
		return ra - rb
	})
	return out
}

func (h *structuredHandler) render(rec *record) ([]byte, error) {
	fields := h.ordered(rec)
	var buf bytes.Buffer
	if h.cfg.format == formatJSON {
		buf.WriteByte('{')
		for i, f := range fields {
			data, err := json.Marshal(f.val)
			if err != nil {
				return nil, fmt.Errorf("logger: encode %s: %w", f.key, err)
			}
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Quote(f.key))
			buf.WriteByte(':')
			buf.Write(data)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(f.key)
		buf.WriteByte('=')
		buf.WriteString(kvValue(f.val))
	}
	return buf.Bytes(), nil
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// walkAttr flattens groups into dotted keys and hands each leaf to emit.
func walkAttr(prefix string, a slog.Attr, emit func(string, any)) {
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			walkAttr(key, child, emit)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := leafValue(key, v); ok {
		emit(k, val)
	}
}

func leafValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return "", nil, false
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// durationKey renames duration attributes so the unit is part of the key.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

func kvValue(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		s = fmt.Sprint(x)
	}
	if strings.ContainsFunc(s, needsQuote) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

// addContextFields copies request metadata from ctx without overriding
// attributes set explicitly on the record.
func addContextFields(ctx context.Context, rec *record) {
	m := metaFrom(ctx)
	if m.rid != "" {
		rec.setIfAbsent("rid", m.rid)
	}
	if m.updateID != 0 {
		rec.setIfAbsent("update_id", int64(m.updateID))
	}
	if m.userID != 0 {
		rec.setIfAbsent("user_id", m.userID)
	}
	if m.chatID != 0 {
		rec.setIfAbsent("chat_id", m.chatID)
	}
	if m.handler != "" {
		rec.setIfAbsent("handler", m.handler)
	}
}
