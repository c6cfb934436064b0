package bot

import (
	"strings"
	"unicode/utf16"

	"github.com/mymmrac/telego"
)

const (
	entityMention     = "mention"
	entityTextMention = "text_mention"

	// zeroWidthSpace after the "@" keeps a recalled @username from resolving.
	zeroWidthSpace = "\u200b"
)

// sanitize renders a message as the plain text to archive so a recalled shout
// never pings anyone. Text mentions become the mentioned user's first name and
// @username mentions get a zero-width space after the "@".
// Entity offsets are in UTF-16 code units.
func sanitize(text string, entities []telego.MessageEntity) string {
	units := utf16.Encode([]rune(text))

	var b strings.Builder
	pos := 0
	for _, e := range entities {
		if e.Offset < pos || e.Length <= 0 || e.Offset+e.Length > len(units) {
			continue
		}

		var replacement string
		switch {
		case e.Type == entityTextMention && e.User != nil:
			replacement = e.User.FirstName
		case e.Type == entityMention && units[e.Offset] == '@':
			replacement = "@" + zeroWidthSpace + string(utf16.Decode(units[e.Offset+1:e.Offset+e.Length]))
		default:
			continue
		}

		b.WriteString(string(utf16.Decode(units[pos:e.Offset])))
		b.WriteString(replacement)
		pos = e.Offset + e.Length
	}
	b.WriteString(string(utf16.Decode(units[pos:])))

	return strings.TrimSpace(b.String())
}
