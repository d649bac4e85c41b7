package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniappbot/pkg/bot"
	"miniappbot/pkg/bus"
	"miniappbot/pkg/config"
	"miniappbot/pkg/keyboard"
)

func textMessage(text string, entities ...telego.MessageEntity) *telego.Message {
	return &telego.Message{
		MessageID: 10,
		From:      &telego.User{ID: 42, FirstName: "Ana", Username: "ana_dev"},
		Chat:      telego.Chat{ID: 1001, Type: "private"},
		Text:      text,
		Entities:  entities,
	}
}

func TestClassifyUpdate(t *testing.T) {
	commandEntity := telego.MessageEntity{Type: telego.EntityTypeBotCommand, Offset: 0, Length: 6}

	t.Run("command", func(t *testing.T) {
		ev, ok := ClassifyUpdate(telego.Update{Message: textMessage("/start ref42", commandEntity)})
		require.True(t, ok)
		cmd, isCmd := ev.(bot.Command)
		require.True(t, isCmd)
		assert.Equal(t, "start", cmd.Name)
		assert.Equal(t, "ref42", cmd.Args)
		assert.Equal(t, int64(1001), cmd.ChatID)
		assert.Equal(t, int64(42), cmd.UserID)
		assert.Equal(t, "Ana", cmd.UserName)
		assert.Equal(t, 10, cmd.MessageID)
	})

	t.Run("command with bot suffix", func(t *testing.T) {
		ev, ok := ClassifyUpdate(telego.Update{Message: textMessage("/Help@MyBot", commandEntity)})
		require.True(t, ok)
		assert.Equal(t, "help", ev.(bot.Command).Name)
	})

	t.Run("slash without entity is free text", func(t *testing.T) {
		ev, ok := ClassifyUpdate(telego.Update{Message: textMessage("/not a command")})
		require.True(t, ok)
		assert.Equal(t, bot.FreeText{Origin: bot.OriginOf(ev), Text: "/not a command"}, ev)
	})

	t.Run("command entity not at start", func(t *testing.T) {
		entity := telego.MessageEntity{Type: telego.EntityTypeBotCommand, Offset: 4, Length: 5}
		ev, ok := ClassifyUpdate(telego.Update{Message: textMessage("try /help", entity)})
		require.True(t, ok)
		_, isText := ev.(bot.FreeText)
		assert.True(t, isText)
	})

	t.Run("web app data wins over text", func(t *testing.T) {
		msg := textMessage("")
		msg.WebAppData = &telego.WebAppData{Data: `{"name":"Ana"}`, ButtonText: "Send"}
		ev, ok := ClassifyUpdate(telego.Update{Message: msg})
		require.True(t, ok)
		data, isData := ev.(bot.WebAppData)
		require.True(t, isData)
		assert.Equal(t, `{"name":"Ana"}`, data.Raw)
		assert.Equal(t, int64(1001), data.ChatID)
	})

	t.Run("callback query", func(t *testing.T) {
		ev, ok := ClassifyUpdate(telego.Update{CallbackQuery: &telego.CallbackQuery{
			ID:      "cb-1",
			From:    telego.User{ID: 42, FirstName: "Ana"},
			Data:    bot.CallbackOpenApp,
			Message: &telego.Message{MessageID: 7, Chat: telego.Chat{ID: 1001}},
		}})
		require.True(t, ok)
		cb, isCB := ev.(bot.CallbackQuery)
		require.True(t, isCB)
		assert.Equal(t, "cb-1", cb.ID)
		assert.Equal(t, bot.CallbackOpenApp, cb.Data)
		assert.Equal(t, bot.MessageRef{ChatID: 1001, MessageID: 7}, cb.Message)
		assert.Equal(t, int64(1001), cb.ChatID)
	})

	t.Run("inline callback query", func(t *testing.T) {
		ev, ok := ClassifyUpdate(telego.Update{CallbackQuery: &telego.CallbackQuery{
			ID:              "cb-2",
			From:            telego.User{ID: 42},
			InlineMessageID: "inline-1",
		}})
		require.True(t, ok)
		assert.Equal(t, bot.MessageRef{InlineMessageID: "inline-1"}, ev.(bot.CallbackQuery).Message)
	})

	t.Run("ignored updates", func(t *testing.T) {
		noSender := textMessage("hello")
		noSender.From = nil
		sticker := textMessage("")

		for name, update := range map[string]telego.Update{
			"edited message": {EditedMessage: textMessage("edited")},
			"channel post":   {ChannelPost: noSender},
			"no sender":      {Message: noSender},
			"no text":        {Message: sticker},
			"empty":          {},
		} {
			_, ok := ClassifyUpdate(update)
			assert.False(t, ok, name)
		}
	})
}

func TestInlineMarkup(t *testing.T) {
	launch, err := keyboard.LaunchButton("Play", "https://app.example.com")
	require.NoError(t, err)
	cb, err := keyboard.CallbackButton("Open", bot.CallbackOpenApp)
	require.NoError(t, err)
	kb, err := keyboard.Build([]keyboard.Button{launch, cb})
	require.NoError(t, err)

	markup := inlineMarkup(kb)
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 1)
	row := markup.InlineKeyboard[0]
	require.Len(t, row, 2)
	require.NotNil(t, row[0].WebApp)
	assert.Equal(t, "https://app.example.com", row[0].WebApp.URL)
	assert.Equal(t, "Play", row[0].Text)
	assert.Nil(t, row[1].WebApp)
	assert.Equal(t, bot.CallbackOpenApp, row[1].CallbackData)

	assert.Nil(t, inlineMarkup(nil))
}

func TestBaseChannelAllowList(t *testing.T) {
	open := NewBaseChannel("test", bus.NewEventBus(1), nil)
	assert.True(t, open.IsAllowed(1, ""))

	c := NewBaseChannel("test", bus.NewEventBus(1), []string{"42", "@Ana_Dev", " "})
	assert.True(t, c.IsAllowed(42, ""))
	assert.True(t, c.IsAllowed(7, "ana_dev"))
	assert.False(t, c.IsAllowed(7, "mallory"))
	assert.False(t, c.IsAllowed(7, ""))
}

func TestBaseChannelHandleEventPublishes(t *testing.T) {
	eventBus := bus.NewEventBus(2)
	c := NewBaseChannel("telegram", eventBus, []string{"42"})

	allowed := bot.FreeText{Origin: bot.Origin{ChatID: 1, UserID: 42}, Text: "hi"}
	denied := bot.FreeText{Origin: bot.Origin{ChatID: 1, UserID: 7}, Text: "hi"}

	assert.True(t, c.HandleEvent(allowed, ""))
	assert.False(t, c.HandleEvent(denied, ""))
	require.Equal(t, 1, eventBus.Len())

	env, ok := eventBus.Consume(context.Background())
	require.True(t, ok)
	assert.Equal(t, "telegram", env.Channel)
	assert.Equal(t, allowed, env.Event)
}

func TestNewTelegramChannelRejectsBadProxy(t *testing.T) {
	cfg := config.DefaultConfig().Bot
	cfg.Token = "123:abc"
	cfg.Proxy = "://bad"

	_, err := NewTelegramChannel(cfg, bus.NewEventBus(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid proxy URL")
}

func TestSendLimiterDefaults(t *testing.T) {
	assert.Equal(t, 1, newSendLimiter(5, 0).Burst())
	assert.NoError(t, newSendLimiter(0, 0).Wait(context.Background()))
}

// fakeBotAPI answers sendMessage and rejects HTML parse mode like Telegram
// does for broken entities.
type fakeBotAPI struct {
	mu        sync.Mutex
	requests  []map[string]interface{}
	rejectAll bool
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var params map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&params)
	f.mu.Lock()
	f.requests = append(f.requests, params)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.rejectAll || params["parse_mode"] == telego.ModeHTML {
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`))
		return
	}
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":100,"type":"private"}}}`))
}

func newFakeTelegramChannel(t *testing.T, api *fakeBotAPI) *TelegramChannel {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	tgBot, err := telego.NewBot("123456:"+strings.Repeat("a", 35),
		telego.WithAPIServer(srv.URL),
		telego.WithDefaultLogger(false, false),
	)
	require.NoError(t, err)
	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", bus.NewEventBus(1), nil),
		bot:         tgBot,
		limiter:     newSendLimiter(0, 0),
	}
}

func TestSendTextFallsBackToPlainTextWhenHTMLIsRejected(t *testing.T) {
	api := &fakeBotAPI{}
	c := newFakeTelegramChannel(t, api)

	err := c.SendText(context.Background(), bot.SendText{
		ChatID:    100,
		Text:      "<b>Hi</b> &lt;Ana&gt;",
		ParseMode: bot.ParseHTML,
	})
	require.NoError(t, err)

	require.Len(t, api.requests, 2)
	assert.Equal(t, "HTML", api.requests[0]["parse_mode"])
	assert.NotContains(t, api.requests[1], "parse_mode")
	assert.Equal(t, "Hi <Ana>", api.requests[1]["text"])
}

func TestSendTextPlainIsSentOnce(t *testing.T) {
	api := &fakeBotAPI{}
	c := newFakeTelegramChannel(t, api)

	require.NoError(t, c.SendText(context.Background(), bot.SendText{ChatID: 100, Text: "hello"}))
	require.Len(t, api.requests, 1)
	assert.Equal(t, "hello", api.requests[0]["text"])
}

func TestSendTextReportsFailedFallback(t *testing.T) {
	api := &fakeBotAPI{rejectAll: true}
	c := newFakeTelegramChannel(t, api)

	err := c.SendText(context.Background(), bot.SendText{ChatID: 100, Text: "<b>x</b>", ParseMode: bot.ParseHTML})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sendMessage")
	assert.Len(t, api.requests, 2)
}

func TestPlainTextFromTelegramHTML(t *testing.T) {
	in := "✅ Thanks, A&amp;B!\n<pre><code class=\"language-json\">{\"a\": \"&lt;b&gt;\"}</code></pre>"
	assert.Equal(t, "✅ Thanks, A&B!\n{\"a\": \"<b>\"}", plainTextFromTelegramHTML(in))
}

func TestTelegoParseMode(t *testing.T) {
	assert.Equal(t, telego.ModeHTML, telegoParseMode(bot.ParseHTML))
	assert.Equal(t, "", telegoParseMode(bot.ParsePlain))
}
