package logger

import "strings"

const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

var allowedLevels = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

var allowedStatus = map[string]string{
	"ok":           "ok",
	"fail":         "fail",
	"skip":         "skip",
	"retry":        "retry",
	"rate_limited": "rate_limited",
	"cancelled":    "cancelled",
}

var allowedCache = map[string]string{
	"hit":  "hit",
	"miss": "miss",
}

// outcome mirrors menu outcome kinds plus transport failures.
var allowedOutcome = map[string]string{
	"render": "render",
	"notice": "notice",
	"ack":    "ack",
	"fail":   "fail",
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeEnum(table map[string]string, v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "", false
	}
	mapped, ok := table[v]
	if !ok {
		return v, false
	}
	return mapped, true
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"action",
	"token",
	"outcome",
	"view",
	"chunks",
	"messages",
	"kb",
	"answered",
	"duration_ms",
	"cache",
	"origin",
	"backend",
	"source",
	"path",
	"count",
	"topics",
	"subtopics",
	"payload",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"cause",
	"reason",
	"retryable",
	"attempts",
	"backoff_ms",
	"rate_limited",
}
