package bot

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoHandler     = errors.New("no handler for event")
	errUnknownAction = errors.New("unknown action type")
)

// Handler turns one event into the actions that answer it.
type Handler func(ev Event) ([]Action, error)

// Settings is the configuration the router needs. The base URL is used as an
// opaque launch target; sub-paths are appended to it.
type Settings struct {
	WebAppURL    string
	SettingsPath string
}

type Router struct {
	settings Settings
}

func NewRouter(settings Settings) *Router {
	if settings.SettingsPath == "" {
		settings.SettingsPath = "/settings"
	}
	return &Router{settings: settings}
}

// Route picks the handler for ev. The order is fixed: mini app data, the known
// commands, callback queries, then everything else is echoed back, including
// commands the bot does not know.
func (r *Router) Route(ev Event) (Handler, error) {
	switch e := ev.(type) {
	case WebAppData:
		return r.handleWebAppData, nil
	case Command:
		switch normalizeCommand(e.Name) {
		case "start":
			return r.handleStart, nil
		case "menu":
			return r.handleMenu, nil
		case "app":
			return r.handleApp, nil
		case "help":
			return r.handleHelp, nil
		default:
			return r.handleEcho, nil
		}
	case CallbackQuery:
		return r.handleCallback, nil
	case FreeText:
		return r.handleEcho, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrNoHandler, ev)
	}
}

func normalizeCommand(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}
