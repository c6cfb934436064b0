// Package shout decides whether a chat message is a shout.
package shout

import (
	"regexp"
	"strings"
	"unicode"
)

// MinLetters is the number of cased letters a message needs before it can count as a shout.
const MinLetters = 5

var (
	// usernames go before the broadcast keywords so "@herefordfan" is taken whole
	mentionRe = regexp.MustCompile(`<(?:@[!&]?|#)\d+>|@[A-Za-z][A-Za-z0-9_]{4,31}|@everyone|@here`)
	urlRe     = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
)

// IsShout reports whether text is a shout once code blocks and then mentions are removed.
// The order matters: a mention inside a code block must go away with the block.
func IsShout(text string) bool {
	return IsShoutText(StripMentions(StripCodeBlocks(text)))
}

// StripCodeBlocks removes spans delimited by matching runs of one to three backticks.
// Spans are matched lazily and may cross newlines. Go's regexp has no backreferences,
// so the scan is done by hand.
func StripCodeBlocks(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); {
		if text[i] != '`' {
			b.WriteByte(text[i])
			i++
			continue
		}

		end := codeBlockEnd(text, i)
		if end < 0 {
			b.WriteByte(text[i])
			i++
			continue
		}
		i = end
	}

	return b.String()
}

// codeBlockEnd returns the index just past the span opening at start, or -1.
// Longer fences are tried first, falling back to shorter ones.
func codeBlockEnd(text string, start int) int {
	run := 0
	for start+run < len(text) && text[start+run] == '`' && run < 3 {
		run++
	}

	for n := run; n > 0; n-- {
		fence := text[start : start+n]
		// the body must hold at least one character
		from := start + n + 1
		if from > len(text) {
			continue
		}
		if j := strings.Index(text[from:], fence); j >= 0 {
			return from + j + n
		}
	}

	return -1
}

// StripMentions removes user, role, and channel mentions and broadcast keywords.
func StripMentions(text string) string {
	return mentionRe.ReplaceAllString(text, "")
}

// IsShoutText is the bare pattern test: enough cased letters, none of them lowercase.
// Links are ignored since they are usually lowercase.
func IsShoutText(text string) bool {
	text = urlRe.ReplaceAllString(text, "")

	upper := 0
	for _, r := range text {
		switch {
		case unicode.IsLower(r):
			return false
		case unicode.IsUpper(r):
			upper++
		}
	}

	return upper >= MinLetters
}
