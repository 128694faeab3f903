// Package format renders text for Telegram parse modes.
package format

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	MarkdownV1 = 1
	MarkdownV2 = 2
)

var (
	mdV1Specials = regexp.MustCompile("([_*`\\[])")
	mdV2Specials = regexp.MustCompile(`([_*\[\]()~` + "`" + `>#+\-=|{}.!\\])`)
)

// EscapeMarkdown escapes text for the given Markdown version.
func EscapeMarkdown(text string, version int) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Specials.ReplaceAllString(text, `\$1`), nil
	case MarkdownV2:
		return mdV2Specials.ReplaceAllString(text, `\$1`), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// Bold wraps escaped MarkdownV2 text in bold markers.
func Bold(text string) string {
	esc, _ := EscapeMarkdown(text, MarkdownV2)
	return "*" + esc + "*"
}

// KeyValues renders "key: value" lines for MarkdownV2 with bold keys.
func KeyValues(pairs ...[2]string) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('\n')
		}
		val, _ := EscapeMarkdown(p[1], MarkdownV2)
		b.WriteString(Bold(p[0] + ":"))
		b.WriteByte(' ')
		b.WriteString(val)
	}
	return b.String()
}
