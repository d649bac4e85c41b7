package bot

import (
	"strings"
	"unicode/utf8"
)

// maxMessageRunes is Telegram's limit on the text of a single message.
const maxMessageRunes = 4096

const (
	preJSONOpen  = `<pre><code class="language-json">`
	preJSONClose = "</code></pre>"
)

// escapeHTML escapes the characters Telegram's HTML parse mode treats as
// markup.
func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

func escapeRune(r rune) string {
	switch r {
	case '&':
		return "&amp;"
	case '<':
		return "&lt;"
	case '>':
		return "&gt;"
	}
	return string(r)
}

// escapeHTMLLimit escapes text and cuts the result to at most maxRunes runes,
// marking a cut with "…". Entities are never split.
func escapeHTMLLimit(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	escaped := escapeHTML(text)
	if utf8.RuneCountInString(escaped) <= maxRunes {
		return escaped
	}

	var b strings.Builder
	n := 0
	for _, r := range text {
		piece := escapeRune(r)
		size := utf8.RuneCountInString(piece)
		if n+size > maxRunes-1 {
			break
		}
		b.WriteString(piece)
		n += size
	}
	b.WriteString("…")
	return b.String()
}

// preJSON wraps body in an escaped JSON code block no longer than maxRunes.
func preJSON(body string, maxRunes int) string {
	budget := maxRunes - utf8.RuneCountInString(preJSONOpen) - utf8.RuneCountInString(preJSONClose)
	return preJSONOpen + escapeHTMLLimit(body, budget) + preJSONClose
}

// truncate keeps at most maxLen runes of s, the trailing "…" included.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen-1]) + "…"
}
