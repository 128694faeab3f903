// Package callbacks decodes inline button payloads.
//
// Two encodings reach the bot: telebot's "\f<unique>|<data>" form and raw
// "<key>:<data>" strings. Data without a colon is a key on its own.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Parse splits a callback into its routing key and payload.
func Parse(cb *tele.Callback) (key, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	return ParseData(cb.Data)
}

// ParseData splits raw callback data.
func ParseData(data string) (key, payload string) {
	if rest, ok := strings.CutPrefix(data, "\f"); ok {
		key, payload, _ = strings.Cut(rest, "|")
		return strings.TrimSpace(key), payload
	}
	if k, p, ok := strings.Cut(data, ":"); ok {
		return k, p
	}
	return data, ""
}

// Key returns the routing key of the current callback.
func Key(c tele.Context) string {
	k, _ := Parse(c.Callback())
	return k
}

// Data returns the full raw data of the current callback.
func Data(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		if cb.Data == "" {
			return cb.Unique
		}
		return cb.Unique + ":" + cb.Data
	}
	return cb.Data
}
