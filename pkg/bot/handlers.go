package bot

import (
	"fmt"
	"unicode/utf8"

	"miniappbot/pkg/keyboard"
	"miniappbot/pkg/payload"
)

// maxNameRunes bounds the name echoed in the web app data header.
const maxNameRunes = 64

func (r *Router) launchKeyboard(label string) (*keyboard.InlineKeyboard, error) {
	return keyboard.Single(label, r.settings.WebAppURL)
}

func (r *Router) handleStart(ev Event) ([]Action, error) {
	o := OriginOf(ev)
	kb, err := r.launchKeyboard(welcomeLabel)
	if err != nil {
		return nil, err
	}

	text := welcomeTitle + "\n\n" + welcomeBody
	if o.UserName != "" {
		text = fmt.Sprintf("👋 Hi, <b>%s</b>!\n\n%s", escapeHTML(o.UserName), text)
	}
	return []Action{SendText{ChatID: o.ChatID, Text: text, Markup: kb, ParseMode: ParseHTML}}, nil
}

func (r *Router) handleMenu(ev Event) ([]Action, error) {
	kb, err := r.launchKeyboard(menuLabel)
	if err != nil {
		return nil, err
	}
	return []Action{SendText{ChatID: OriginOf(ev).ChatID, Text: menuText, Markup: kb}}, nil
}

func (r *Router) handleApp(ev Event) ([]Action, error) {
	settingsURL, err := keyboard.JoinURL(r.settings.WebAppURL, r.settings.SettingsPath)
	if err != nil {
		return nil, err
	}
	play, err := keyboard.LaunchButton(appPlayLabel, r.settings.WebAppURL)
	if err != nil {
		return nil, err
	}
	settings, err := keyboard.LaunchButton(appSettingsLabel, settingsURL)
	if err != nil {
		return nil, err
	}
	kb, err := keyboard.Build([]keyboard.Button{play, settings})
	if err != nil {
		return nil, err
	}
	return []Action{SendText{ChatID: OriginOf(ev).ChatID, Text: appText, Markup: kb}}, nil
}

func (r *Router) handleHelp(ev Event) ([]Action, error) {
	return []Action{SendText{ChatID: OriginOf(ev).ChatID, Text: helpText, ParseMode: ParseHTML}}, nil
}

func (r *Router) handleCallback(ev Event) ([]Action, error) {
	q, ok := ev.(CallbackQuery)
	if !ok {
		return nil, fmt.Errorf("%w: callback handler got %T", ErrNoHandler, ev)
	}

	actions := []Action{AnswerCallback{CallbackID: q.ID}}
	if q.Data != CallbackOpenApp {
		return actions, nil
	}

	kb, err := r.launchKeyboard(openAppLabel)
	if err != nil {
		return nil, err
	}
	return append(actions, EditText{Message: q.Message, Text: openAppText, Markup: kb}), nil
}

func (r *Router) handleEcho(ev Event) ([]Action, error) {
	var text string
	switch e := ev.(type) {
	case FreeText:
		text = e.Text
	case Command:
		text = e.Text()
	default:
		return nil, fmt.Errorf("%w: echo handler got %T", ErrNoHandler, ev)
	}

	kb, err := r.launchKeyboard(echoLabel)
	if err != nil {
		return nil, err
	}
	// "%s" is two of echoFormat's runes
	budget := maxMessageRunes - (utf8.RuneCountInString(echoFormat) - 2)
	return []Action{SendText{
		ChatID: OriginOf(ev).ChatID,
		Text:   fmt.Sprintf(echoFormat, truncate(text, budget)),
		Markup: kb,
	}}, nil
}

func (r *Router) handleWebAppData(ev Event) ([]Action, error) {
	d, ok := ev.(WebAppData)
	if !ok {
		return nil, fmt.Errorf("%w: web app handler got %T", ErrNoHandler, ev)
	}

	p, err := payload.Parse(d.Raw)
	if err != nil {
		return nil, err
	}

	header := dataReceived
	if name, ok := p.Field("name"); ok {
		header = fmt.Sprintf(dataThanksFormat, escapeHTMLLimit(payload.Text(name), maxNameRunes))
	}
	header += "\n"

	body := preJSON(p.Indent(), maxMessageRunes-utf8.RuneCountInString(header))
	return []Action{SendText{
		ChatID:    d.ChatID,
		Text:      header + body,
		ParseMode: ParseHTML,
	}}, nil
}
