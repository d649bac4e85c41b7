// Package keyboard builds inline keyboard layouts for bot replies.
package keyboard

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Telegram rejects callback_data longer than 64 bytes.
const maxCallbackDataBytes = 64

var (
	ErrInvalidLayout       = errors.New("invalid keyboard layout")
	ErrInvalidURL          = errors.New("invalid launch url")
	ErrEmptyLabel          = errors.New("button label is empty")
	ErrInvalidCallbackData = errors.New("invalid callback data")
)

// Button is either a launch button (opens the Mini App at LaunchURL) or a
// callback button (sends CallbackData back to the bot). Exactly one of the two
// is set.
type Button struct {
	Label        string `json:"label"`
	LaunchURL    string `json:"launch_url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

func (b Button) IsLaunch() bool {
	return b.LaunchURL != ""
}

// InlineKeyboard is an ordered grid of buttons. Values produced by Build
// always have at least one row and no empty rows.
type InlineKeyboard struct {
	Rows [][]Button `json:"rows"`
}

func LaunchButton(label, rawURL string) (Button, error) {
	if strings.TrimSpace(label) == "" {
		return Button{}, ErrEmptyLabel
	}
	if err := validateLaunchURL(rawURL); err != nil {
		return Button{}, err
	}
	return Button{Label: label, LaunchURL: rawURL}, nil
}

func CallbackButton(label, data string) (Button, error) {
	if strings.TrimSpace(label) == "" {
		return Button{}, ErrEmptyLabel
	}
	if data == "" || len(data) > maxCallbackDataBytes {
		return Button{}, fmt.Errorf("%w: length %d", ErrInvalidCallbackData, len(data))
	}
	return Button{Label: label, CallbackData: data}, nil
}

// Build assembles rows into a keyboard. The input slices are copied.
func Build(rows ...[]Button) (*InlineKeyboard, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidLayout)
	}

	out := make([][]Button, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			return nil, fmt.Errorf("%w: row %d is empty", ErrInvalidLayout, i)
		}
		out = append(out, append([]Button(nil), row...))
	}
	return &InlineKeyboard{Rows: out}, nil
}

// Single is a shortcut for a keyboard with one launch button.
func Single(label, rawURL string) (*InlineKeyboard, error) {
	btn, err := LaunchButton(label, rawURL)
	if err != nil {
		return nil, err
	}
	return Build([]Button{btn})
}

// JoinURL appends subPath to the path of base, keeping its query and fragment.
// The base is otherwise left as written, so hosts and escapes survive as-is.
func JoinURL(base, subPath string) (string, error) {
	if err := validateLaunchURL(base); err != nil {
		return "", err
	}
	base = strings.TrimSpace(base)
	if subPath == "" {
		return base, nil
	}

	head, tail := base, ""
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		head, tail = base[:i], base[i:]
	}
	return strings.TrimRight(head, "/") + "/" + strings.TrimLeft(subPath, "/") + tail, nil
}

func validateLaunchURL(rawURL string) error {
	_, err := parseLaunchURL(rawURL)
	return err
}

func parseLaunchURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, rawURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	return u, nil
}
