package channels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"

	"miniappbot/pkg/bot"
	"miniappbot/pkg/bus"
	"miniappbot/pkg/keyboard"
	"miniappbot/pkg/logger"
)

// Console input prefixes for events that have no text form in a terminal.
const (
	ConsoleDataPrefix     = "!data "
	ConsoleCallbackPrefix = "?cb "
)

const (
	consoleChatID = 1
	consoleUserID = 1
)

var (
	consoleBotStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	consoleButtonStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	consoleMutedStyle  = lipgloss.NewStyle().Faint(true)
)

type lineReader interface {
	Readline() (string, error)
	Close() error
}

// ConsoleChannel simulates a private chat in the terminal. Lines typed by the
// user become events; actions are rendered back to the terminal.
type ConsoleChannel struct {
	*BaseChannel
	userName string
	prompt   string
	onExit   func()

	mu          sync.Mutex
	out         io.Writer
	reader      lineReader
	nextMsgID   int
	lastBotMsg  int
	callbackSeq int
}

func NewConsoleChannel(eventBus *bus.EventBus, userName string, out io.Writer, onExit func()) *ConsoleChannel {
	return &ConsoleChannel{
		BaseChannel: NewBaseChannel("console", eventBus, nil),
		userName:    userName,
		prompt:      "you> ",
		onExit:      onExit,
		out:         out,
	}
}

func (c *ConsoleChannel) Start(ctx context.Context) error {
	if c.IsRunning() {
		return nil
	}
	if c.reader == nil {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          c.prompt,
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err != nil {
			return fmt.Errorf("init readline: %w", err)
		}
		c.reader = rl
		if c.out == nil {
			c.out = rl.Stdout()
		}
	}
	c.setRunning(true)

	runChannelTask("console", "Console input loop", func() error {
		return c.readLoop(ctx)
	}, nil)
	return nil
}

func (c *ConsoleChannel) readLoop(ctx context.Context) error {
	defer func() {
		c.setRunning(false)
		if c.onExit != nil {
			c.onExit()
		}
	}()

	for ctx.Err() == nil {
		line, err := c.reader.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		input := strings.TrimSpace(line)
		if input == "exit" || input == "quit" {
			return nil
		}
		ev, ok := c.parse(input)
		if !ok {
			continue
		}
		c.HandleEvent(ev, c.userName)
	}
	return ctx.Err()
}

func (c *ConsoleChannel) parse(line string) (bot.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextMsgID++
	origin := bot.Origin{
		ChatID:    consoleChatID,
		UserID:    consoleUserID,
		UserName:  c.userName,
		MessageID: c.nextMsgID,
	}
	if strings.HasPrefix(line, ConsoleCallbackPrefix) {
		c.callbackSeq++
	}
	return ParseConsoleLine(line, origin, c.callbackSeq, c.lastBotMsg)
}

// ParseConsoleLine maps one line of console input to an event. Commands start
// with "/", mini app payloads with ConsoleDataPrefix and button presses with
// ConsoleCallbackPrefix; anything else is free text. Blank lines yield no
// event. Callbacks refer to lastBotMsg.
func ParseConsoleLine(line string, origin bot.Origin, callbackSeq, lastBotMsg int) (bot.Event, bool) {
	if strings.TrimSpace(line) == "" {
		return nil, false
	}
	switch {
	case strings.HasPrefix(line, ConsoleDataPrefix):
		return bot.WebAppData{Origin: origin, Raw: strings.TrimPrefix(line, ConsoleDataPrefix)}, true
	case strings.HasPrefix(line, ConsoleCallbackPrefix):
		return bot.CallbackQuery{
			Origin:  origin,
			ID:      fmt.Sprintf("console-%d", callbackSeq),
			Data:    strings.TrimSpace(strings.TrimPrefix(line, ConsoleCallbackPrefix)),
			Message: bot.MessageRef{ChatID: origin.ChatID, MessageID: lastBotMsg},
		}, true
	}
	if name, args, ok := bot.ParseCommand(line); ok {
		return bot.Command{Origin: origin, Name: name, Args: args, Raw: line}, true
	}
	return bot.FreeText{Origin: origin, Text: line}, true
}

func (c *ConsoleChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()
	if reader != nil {
		return reader.Close()
	}
	return nil
}

func (c *ConsoleChannel) HealthCheck(ctx context.Context) error {
	if !c.IsRunning() {
		return errors.New("console input closed")
	}
	return nil
}

func (c *ConsoleChannel) SendText(ctx context.Context, msg bot.SendText) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextMsgID++
	c.lastBotMsg = c.nextMsgID
	header := fmt.Sprintf("bot #%d", c.lastBotMsg)
	if msg.ParseMode == bot.ParseHTML {
		header += " (html)"
	}
	return c.write(header, msg.Text, msg.Markup)
}

func (c *ConsoleChannel) EditText(ctx context.Context, msg bot.EditText) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(fmt.Sprintf("bot edited #%d", msg.Message.MessageID), msg.Text, msg.Markup)
}

func (c *ConsoleChannel) AnswerCallback(ctx context.Context, msg bot.AnswerCallback) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out == nil {
		return nil
	}
	_, err := fmt.Fprintln(c.out, consoleMutedStyle.Render("(callback "+msg.CallbackID+" answered)"))
	return err
}

func (c *ConsoleChannel) write(header, text string, kb *keyboard.InlineKeyboard) error {
	if c.out == nil {
		logger.DebugCF("console", "Dropping output, no writer", map[string]interface{}{
			logger.FieldPreview: truncateString(text, 50),
		})
		return nil
	}
	var b strings.Builder
	b.WriteString(consoleBotStyle.Render(header))
	b.WriteString("\n")
	b.WriteString(text)
	b.WriteString("\n")
	b.WriteString(renderKeyboard(kb))
	_, err := io.WriteString(c.out, b.String())
	return err
}

func renderKeyboard(kb *keyboard.InlineKeyboard) string {
	if kb == nil {
		return ""
	}
	var b strings.Builder
	for _, row := range kb.Rows {
		cells := make([]string, 0, len(row))
		for _, btn := range row {
			target := ConsoleCallbackPrefix + btn.CallbackData
			if btn.IsLaunch() {
				target = btn.LaunchURL
			}
			cells = append(cells, consoleButtonStyle.Render("[ "+btn.Label+" ]")+" "+consoleMutedStyle.Render(target))
		}
		b.WriteString(strings.Join(cells, "  "))
		b.WriteString("\n")
	}
	return b.String()
}
