// Package telegram drives quiz controllers from a Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	appI18n "github.com/skulanov/OP-test/internal/i18n"
	"github.com/skulanov/OP-test/internal/model"
	"github.com/skulanov/OP-test/internal/quiz"
	"github.com/skulanov/OP-test/internal/session"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Config holds bot settings.
type Config struct {
	Lang     string
	Seed     uint64        // 0 means a random seed per chat
	ChatTTL  time.Duration // idle chats are dropped after this (0 = never)
	MaxChats int           // chats kept at most (0 = no cap)
}

// chat is the quiz state of one Telegram chat.
type chat struct {
	ctrl *quiz.Controller
	// live is the message that shows the current screen. Buttons on any
	// other message are stale.
	live int
}

// Bot serves one quiz controller per chat.
type Bot struct {
	api     API
	bank    model.Bank
	loadErr error
	config  Config
	tr      quiz.Translator

	chats *session.Registry[int64, *chat]
	seq   atomic.Uint64
}

// Connect authorizes against the Bot API with token.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	slog.Info("authorized on telegram", "account", api.Self.UserName)
	return api, nil
}

// New creates a bot serving bank. A non-nil loadErr puts every chat into
// the load failure state.
func New(api API, bank model.Bank, loadErr error, cfg Config) *Bot {
	ctx := appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer(cfg.Lang))
	b := &Bot{
		api:     api,
		bank:    bank,
		loadErr: loadErr,
		config:  cfg,
		tr:      appI18n.Translator(ctx),
	}
	b.chats = session.NewRegistry[int64](b.newChat, cfg.ChatTTL, cfg.MaxChats)
	return b
}

// Run handles updates until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()
	go b.chats.Run(ctx, time.Minute)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(update)
		}
	}
}

// HandleUpdate processes one update.
func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		b.handleMessage(update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	}
}

func (b *Bot) newChat() *chat {
	var rng quiz.Rand
	if b.config.Seed != 0 {
		rng = rand.New(rand.NewPCG(b.config.Seed, b.seq.Add(1)))
	}
	ctrl := quiz.NewController(nil, rng)
	if b.loadErr != nil {
		ctrl.Load("", b.loadErr)
	} else {
		ctrl.LoadBank(b.bank)
	}
	return &chat{ctrl: ctrl}
}

// chat returns the locked state of chat id; call release when done.
func (b *Bot) chat(id int64) (*chat, func()) {
	return b.chats.Acquire(id)
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	c, release := b.chat(chatID)
	defer release()

	switch msg.Command() {
	case "start":
		b.sendText(chatID, b.tr("BotWelcome", nil))
		b.send(c, chatID, c.ctrl.View(), false)
	case "chapters":
		b.send(c, chatID, c.ctrl.View(), true)
	case "next":
		v := c.ctrl.View()
		if v.State == quiz.StateAnswered {
			v = c.ctrl.SubmitOrNext()
		}
		b.send(c, chatID, v, false)
	case "progress":
		mastered, total := c.ctrl.Progress()
		b.sendText(chatID, b.tr("BotProgress", map[string]any{"Mastered": mastered, "Total": total}))
	default:
		b.sendText(chatID, b.tr("BotUnknownCommand", nil))
	}
}

func (b *Bot) handleCallback(cq *tgbotapi.CallbackQuery) {
	var notice string
	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, notice)); err != nil {
			slog.Warn("answer callback", "error", err)
		}
	}()
	if cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	chatID := cq.Message.Chat.ID
	msgID := cq.Message.MessageID

	cb, ok := parseCallback(cq.Data)
	if !ok {
		slog.Warn("unknown callback data", "chat", chatID, "data", cq.Data)
		return
	}

	c, release := b.chat(chatID)
	defer release()

	if msgID != c.live {
		slog.Debug("stale callback", "chat", chatID, "message", msgID, "live", c.live)
		notice = b.tr("BotStale", nil)
		return
	}

	before := c.ctrl.View()
	switch cb.action {
	case cbPick:
		if q := before.Question; q != nil && cb.index < len(q.Options) {
			b.edit(chatID, msgID, c.ctrl.PickOption(q.Options[cb.index].Letter), false)
		}
	case cbSubmit:
		v := c.ctrl.SubmitOrNext()
		if before.State == quiz.StateAnswered {
			// Keep the graded question in the history and ask the next one below.
			b.send(c, chatID, v, false)
		} else {
			b.edit(chatID, msgID, v, false)
		}
	case cbMenu:
		b.edit(chatID, msgID, before, true)
	case cbToggle:
		if cb.index < len(before.Chapters) {
			b.edit(chatID, msgID, c.ctrl.ToggleChapter(before.Chapters[cb.index].Name), true)
		}
	case cbSelectAll:
		b.edit(chatID, msgID, c.ctrl.SelectAllChapters(), true)
	case cbDeselectAll:
		b.edit(chatID, msgID, c.ctrl.DeselectAllChapters(), true)
	case cbApply:
		b.edit(chatID, msgID, c.ctrl.ApplyFilter(), false)
	}
}

func (b *Bot) render(v quiz.View, chapterMenu bool) (string, [][]tgbotapi.InlineKeyboardButton) {
	r := newChatRenderer(b.tr, v, chapterMenu)
	quiz.Present(v, r, b.tr)
	return r.content()
}

// send posts v as a new message, which becomes the chat's live message.
func (b *Bot) send(c *chat, chatID int64, v quiz.View, chapterMenu bool) {
	text, rows := b.render(v, chapterMenu)
	msg := tgbotapi.NewMessage(chatID, text)
	if len(rows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		slog.Error("send message", "chat", chatID, "error", err)
		return
	}
	c.live = sent.MessageID
}

func (b *Bot) edit(chatID int64, msgID int, v quiz.View, chapterMenu bool) {
	text, rows := b.render(v, chapterMenu)
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	if len(rows) > 0 {
		markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
		edit.ReplyMarkup = &markup
	}
	if _, err := b.api.Send(edit); err != nil {
		slog.Warn("edit message", "chat", chatID, "message", msgID, "error", err)
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		slog.Error("send message", "chat", chatID, "error", err)
	}
}
