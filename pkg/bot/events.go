package bot

import (
	"strings"
	"unicode"
)

// Origin identifies who sent an event and where replies go.
type Origin struct {
	ChatID    int64
	UserID    int64
	UserName  string
	MessageID int
}

func (o Origin) origin() Origin { return o }

// Event is one classified inbound update. The concrete types are Command,
// CallbackQuery, FreeText and WebAppData.
type Event interface {
	origin() Origin
}

// OriginOf returns the sender information shared by all events.
func OriginOf(ev Event) Origin {
	if ev == nil {
		return Origin{}
	}
	return ev.origin()
}

type Command struct {
	Origin
	Name string
	Args string
	// Raw is the message text as typed, e.g. "/start@MyBot ref42".
	Raw string
}

// Text returns the command as the user typed it.
func (c Command) Text() string {
	if c.Raw != "" {
		return c.Raw
	}
	if c.Args == "" {
		return "/" + c.Name
	}
	return "/" + c.Name + " " + c.Args
}

// MessageRef points at the message an inline button was attached to.
// Messages sent in inline mode only carry InlineMessageID.
type MessageRef struct {
	ChatID          int64
	MessageID       int
	InlineMessageID string
}

type CallbackQuery struct {
	Origin
	ID      string
	Data    string
	Message MessageRef
}

type FreeText struct {
	Origin
	Text string
}

type WebAppData struct {
	Origin
	Raw string
}

// ParseCommand splits "/name@bot args" into a normalized name and argument
// text. ok is false when text is not a command.
func ParseCommand(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) < 2 {
		return "", "", false
	}

	head, rest := text[1:], ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, rest = head[:i], head[i:]
	}
	name = normalizeCommand(head)
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(rest), true
}

func eventKind(ev Event) string {
	switch ev.(type) {
	case Command:
		return "command"
	case CallbackQuery:
		return "callback_query"
	case FreeText:
		return "free_text"
	case WebAppData:
		return "web_app_data"
	default:
		return "unknown"
	}
}
