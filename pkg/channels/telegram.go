package channels

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"golang.org/x/time/rate"

	"miniappbot/pkg/bot"
	"miniappbot/pkg/bus"
	"miniappbot/pkg/config"
	"miniappbot/pkg/keyboard"
	"miniappbot/pkg/logger"
)

const (
	telegramAPICallTimeout       = 15 * time.Second
	telegramPollRestartDelay     = 5 * time.Second
	telegramStopWaitPollerPeriod = 5 * time.Second
)

var htmlTagRe = regexp.MustCompile(`(?is)<[^>]+>`)

// TelegramChannel receives updates by long polling and implements
// bot.Transport on top of the Bot API.
type TelegramChannel struct {
	*BaseChannel
	bot       *telego.Bot
	config    config.BotConfig
	limiter   *rate.Limiter
	runCancel cancelGuard
	pollWG    sync.WaitGroup
}

func NewTelegramChannel(cfg config.BotConfig, eventBus *bus.EventBus) (*TelegramChannel, error) {
	opts := []telego.BotOption{telego.WithDefaultLogger(false, false)}

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, err)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}))
	} else if os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" {
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		}))
	}

	tgBot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", eventBus, cfg.AllowFrom),
		bot:         tgBot,
		config:      cfg,
		limiter:     newSendLimiter(cfg.SendRatePerSec, cfg.SendBurst),
	}, nil
}

func newSendLimiter(perSec float64, burst int) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

func (c *TelegramChannel) Start(ctx context.Context) error {
	if c.IsRunning() {
		return nil
	}
	logger.InfoC("telegram", "Starting Telegram bot (polling mode)")

	meCtx, cancelMe := context.WithTimeout(ctx, telegramAPICallTimeout)
	me, err := c.bot.GetMe(meCtx)
	cancelMe()
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	c.configureClient(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	updates, err := c.bot.UpdatesViaLongPolling(runCtx, c.pollParams())
	if err != nil {
		cancel()
		return fmt.Errorf("failed to start updates polling: %w", err)
	}
	c.runCancel.set(cancel)
	c.setRunning(true)

	logger.InfoCF("telegram", "Telegram bot connected", map[string]interface{}{
		"username": me.Username,
	})

	c.pollWG.Add(1)
	go func() {
		defer c.pollWG.Done()
		c.pollLoop(runCtx, updates)
	}()
	return nil
}

func (c *TelegramChannel) pollParams() *telego.GetUpdatesParams {
	return &telego.GetUpdatesParams{
		Timeout:        c.config.PollTimeoutSec,
		AllowedUpdates: []string{"message", "callback_query"},
	}
}

func (c *TelegramChannel) pollLoop(runCtx context.Context, updates <-chan telego.Update) {
	for {
		select {
		case <-runCtx.Done():
			return
		case update, ok := <-updates:
			if ok {
				c.handleUpdate(update)
				continue
			}
			if runCtx.Err() != nil {
				return
			}
			logger.WarnC("telegram", "Updates channel closed unexpectedly, attempting to restart polling")
			c.setRunning(false)

			select {
			case <-runCtx.Done():
				return
			case <-time.After(telegramPollRestartDelay):
			}

			newUpdates, err := c.bot.UpdatesViaLongPolling(runCtx, c.pollParams())
			if err != nil {
				logger.ErrorCF("telegram", "Failed to restart updates polling", map[string]interface{}{
					logger.FieldError: err.Error(),
				})
				continue
			}
			updates = newUpdates
			c.setRunning(true)
			logger.InfoC("telegram", "Updates polling restarted successfully")
		}
	}
}

func (c *TelegramChannel) handleUpdate(update telego.Update) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("telegram", "Recovered panic in telegram update handler", map[string]interface{}{
				"update_id": update.UpdateID,
				"panic":     fmt.Sprintf("%v", r),
			})
		}
	}()

	ev, ok := ClassifyUpdate(update)
	if !ok {
		logger.DebugCF("telegram", "Ignoring unsupported update", map[string]interface{}{
			"update_id": update.UpdateID,
		})
		return
	}

	o := bot.OriginOf(ev)
	logger.InfoCF("telegram", "Telegram event received", map[string]interface{}{
		logger.FieldEventKind: fmt.Sprintf("%T", ev),
		logger.FieldChatID:    o.ChatID,
		logger.FieldUserID:    o.UserID,
		logger.FieldPreview:   truncateString(eventPreview(ev), 50),
	})

	c.HandleEvent(ev, senderUsername(update))
}

// Stop cancels polling and waits for the poller to exit.
func (c *TelegramChannel) Stop(ctx context.Context) error {
	if !c.IsRunning() {
		c.runCancel.cancelAndClear()
		return nil
	}
	logger.InfoC("telegram", "Stopping Telegram bot")
	c.setRunning(false)
	c.runCancel.cancelAndClear()

	done := make(chan struct{})
	go func() {
		c.pollWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(telegramStopWaitPollerPeriod):
		logger.WarnC("telegram", "Timeout waiting for telegram poller to stop")
	}
	return nil
}

func (c *TelegramChannel) HealthCheck(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, telegramAPICallTimeout)
	defer cancel()
	if _, err := c.bot.GetMe(callCtx); err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	return nil
}

// configureClient registers the command list and the Mini App menu button.
// Failures are logged; the bot works without them.
func (c *TelegramChannel) configureClient(ctx context.Context) {
	if c.config.RegisterCommands {
		commands := make([]telego.BotCommand, 0, len(bot.CommandDescriptions))
		for _, cmd := range bot.CommandDescriptions {
			commands = append(commands, telego.BotCommand{Command: cmd.Name, Description: cmd.Description})
		}
		err := c.call(ctx, "setMyCommands", func(callCtx context.Context) error {
			return c.bot.SetMyCommands(callCtx, &telego.SetMyCommandsParams{Commands: commands})
		})
		if err == nil {
			logger.InfoCF("telegram", "Bot commands registered", map[string]interface{}{
				"count": len(commands),
			})
		}
	}

	if strings.TrimSpace(c.config.MenuButtonText) != "" && c.config.WebAppURL != "" {
		_ = c.call(ctx, "setChatMenuButton", func(callCtx context.Context) error {
			return c.bot.SetChatMenuButton(callCtx, &telego.SetChatMenuButtonParams{
				MenuButton: &telego.MenuButtonWebApp{
					Type:   telego.ButtonTypeWebApp,
					Text:   c.config.MenuButtonText,
					WebApp: telego.WebAppInfo{URL: c.config.WebAppURL},
				},
			})
		})
	}
}

func (c *TelegramChannel) SendText(ctx context.Context, msg bot.SendText) error {
	mode := telegoParseMode(msg.ParseMode)
	err := c.sendMessage(ctx, msg.ChatID, msg.Text, mode, msg.Markup)
	if err == nil || mode == "" || ctx.Err() != nil {
		return err
	}

	logger.WarnCF("telegram", "HTML parse failed, fallback to plain text", map[string]interface{}{
		logger.FieldChatID: msg.ChatID,
		logger.FieldError:  err.Error(),
	})
	if err := c.sendMessage(ctx, msg.ChatID, plainTextFromTelegramHTML(msg.Text), "", msg.Markup); err != nil {
		logger.ErrorCF("telegram", "Telegram plain-text fallback send failed", map[string]interface{}{
			logger.FieldChatID: msg.ChatID,
			logger.FieldError:  err.Error(),
		})
		return err
	}
	return nil
}

func (c *TelegramChannel) sendMessage(ctx context.Context, chatID int64, text, mode string, kb *keyboard.InlineKeyboard) error {
	params := tu.Message(tu.ID(chatID), text)
	if mode != "" {
		params = params.WithParseMode(mode)
	}
	if markup := inlineMarkup(kb); markup != nil {
		params = params.WithReplyMarkup(markup)
	}
	return c.call(ctx, "sendMessage", func(callCtx context.Context) error {
		_, err := c.bot.SendMessage(callCtx, params)
		return err
	})
}

func (c *TelegramChannel) EditText(ctx context.Context, msg bot.EditText) error {
	params := &telego.EditMessageTextParams{
		Text:        msg.Text,
		ReplyMarkup: inlineMarkup(msg.Markup),
	}
	if msg.Message.InlineMessageID != "" {
		params.InlineMessageID = msg.Message.InlineMessageID
	} else {
		params.ChatID = tu.ID(msg.Message.ChatID)
		params.MessageID = msg.Message.MessageID
	}
	return c.call(ctx, "editMessageText", func(callCtx context.Context) error {
		_, err := c.bot.EditMessageText(callCtx, params)
		return err
	})
}

func (c *TelegramChannel) AnswerCallback(ctx context.Context, msg bot.AnswerCallback) error {
	return c.call(ctx, "answerCallbackQuery", func(callCtx context.Context) error {
		return c.bot.AnswerCallbackQuery(callCtx, &telego.AnswerCallbackQueryParams{
			CallbackQueryID: msg.CallbackID,
		})
	})
}

// call waits for the send limiter and runs fn with the API call timeout.
func (c *TelegramChannel) call(ctx context.Context, method string, fn func(context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limit wait: %w", method, err)
	}
	callCtx, cancel := context.WithTimeout(ctx, telegramAPICallTimeout)
	defer cancel()

	if err := fn(callCtx); err != nil {
		logger.WarnCF("telegram", "Telegram API call failed", map[string]interface{}{
			"method":          method,
			logger.FieldError: err.Error(),
		})
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// ClassifyUpdate turns a raw update into a bot event. ok is false for
// updates the bot does not handle (edits, channel posts, stickers and
// messages without a sender).
func ClassifyUpdate(update telego.Update) (bot.Event, bool) {
	if update.Message != nil {
		return classifyMessage(update.Message)
	}
	if q := update.CallbackQuery; q != nil {
		cb := bot.CallbackQuery{
			Origin: bot.Origin{
				UserID:   q.From.ID,
				UserName: q.From.FirstName,
			},
			ID:      q.ID,
			Data:    q.Data,
			Message: bot.MessageRef{InlineMessageID: q.InlineMessageID},
		}
		if q.Message != nil {
			chatID := q.Message.GetChat().ID
			cb.ChatID = chatID
			cb.MessageID = q.Message.GetMessageID()
			cb.Message.ChatID = chatID
			cb.Message.MessageID = q.Message.GetMessageID()
		}
		return cb, true
	}
	return nil, false
}

func classifyMessage(msg *telego.Message) (bot.Event, bool) {
	if msg.From == nil {
		return nil, false
	}
	origin := bot.Origin{
		ChatID:    msg.Chat.ID,
		UserID:    msg.From.ID,
		UserName:  msg.From.FirstName,
		MessageID: msg.MessageID,
	}

	if msg.WebAppData != nil {
		return bot.WebAppData{Origin: origin, Raw: msg.WebAppData.Data}, true
	}
	if msg.Text == "" {
		return nil, false
	}
	if startsWithCommand(msg) {
		if name, args, ok := bot.ParseCommand(msg.Text); ok {
			return bot.Command{Origin: origin, Name: name, Args: args, Raw: msg.Text}, true
		}
	}
	return bot.FreeText{Origin: origin, Text: msg.Text}, true
}

func startsWithCommand(msg *telego.Message) bool {
	if len(msg.Entities) == 0 {
		return false
	}
	first := msg.Entities[0]
	return first.Type == telego.EntityTypeBotCommand && first.Offset == 0
}

func senderUsername(update telego.Update) string {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.Username
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.Username
	default:
		return ""
	}
}

func eventPreview(ev bot.Event) string {
	switch e := ev.(type) {
	case bot.Command:
		return e.Text()
	case bot.FreeText:
		return e.Text
	case bot.CallbackQuery:
		return e.Data
	case bot.WebAppData:
		return e.Raw
	default:
		return ""
	}
}

// inlineMarkup converts a keyboard to the Bot API representation. Launch
// buttons open the Mini App as a web_app button.
func inlineMarkup(kb *keyboard.InlineKeyboard) *telego.InlineKeyboardMarkup {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}
	rows := make([][]telego.InlineKeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]telego.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btn := telego.InlineKeyboardButton{Text: b.Label}
			if b.IsLaunch() {
				btn.WebApp = &telego.WebAppInfo{URL: b.LaunchURL}
			} else {
				btn.CallbackData = b.CallbackData
			}
			buttons = append(buttons, btn)
		}
		rows = append(rows, buttons)
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func telegoParseMode(mode bot.ParseMode) string {
	if mode == bot.ParseHTML {
		return telego.ModeHTML
	}
	return ""
}

// plainTextFromTelegramHTML drops tags and decodes the entities escapeHTML
// produces.
func plainTextFromTelegramHTML(text string) string {
	plain := htmlTagRe.ReplaceAllString(text, "")
	plain = strings.ReplaceAll(plain, "&lt;", "<")
	plain = strings.ReplaceAll(plain, "&gt;", ">")
	plain = strings.ReplaceAll(plain, "&quot;", "\"")
	plain = strings.ReplaceAll(plain, "&amp;", "&")
	return plain
}
