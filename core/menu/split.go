package menu

import "unicode/utf8"

const (
	// ChunkSize is the maximum number of characters per delivered message.
	ChunkSize       = 4000
	// MaxMessageUnits is Telegram's message limit, counted in UTF-16 code
	// units. Characters outside the BMP take two units each.
	MaxMessageUnits = 4096
)

// Split cuts text into consecutive pieces of at most size characters and
// never more than MaxMessageUnits UTF-16 units, so text heavy in emoji
// yields shorter pieces. Cuts ignore word boundaries; joining the pieces
// yields text exactly. Empty text yields no pieces.
func Split(text string, size int) []string {
	if size <= 0 {
		size = ChunkSize
	}
	if text == "" {
		return nil
	}
	n := utf8.RuneCountInString(text)
	out := make([]string, 0, (n+size-1)/size)
	for text != "" {
		cut, count, units := 0, 0, 0
		for cut < len(text) && count < size {
			r, w := utf8.DecodeRuneInString(text[cut:])
			u := 1
			if r > 0xFFFF {
				u = 2
			}
			if units+u > MaxMessageUnits {
				break
			}
			cut += w
			count++
			units += u
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	return out
}
