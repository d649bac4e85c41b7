package bot

import (
	"context"

	"miniappbot/pkg/keyboard"
)

type ParseMode string

const (
	ParsePlain ParseMode = ""
	ParseHTML  ParseMode = "HTML"
)

// Action is one outbound call produced by a handler: SendText, EditText or
// AnswerCallback.
type Action interface {
	actionName() string
}

type SendText struct {
	ChatID    int64
	Text      string
	Markup    *keyboard.InlineKeyboard
	ParseMode ParseMode
}

type EditText struct {
	Message MessageRef
	Text    string
	Markup  *keyboard.InlineKeyboard
}

type AnswerCallback struct {
	CallbackID string
}

func (SendText) actionName() string       { return "send_text" }
func (EditText) actionName() string       { return "edit_text" }
func (AnswerCallback) actionName() string { return "answer_callback" }

// Transport delivers actions to the messaging platform.
type Transport interface {
	SendText(ctx context.Context, msg SendText) error
	EditText(ctx context.Context, msg EditText) error
	AnswerCallback(ctx context.Context, msg AnswerCallback) error
}

func deliver(ctx context.Context, t Transport, a Action) error {
	switch act := a.(type) {
	case SendText:
		return t.SendText(ctx, act)
	case EditText:
		return t.EditText(ctx, act)
	case AnswerCallback:
		return t.AnswerCallback(ctx, act)
	default:
		return errUnknownAction
	}
}
