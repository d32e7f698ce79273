package telegram

import (
	"context"
	"log/slog"
	"runtime/debug"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/pintegram/toolbot/internal/wizard"
)

const startReply = "Bot is running! Use /savetool to save a new tool."

// Bot runs the long-polling update loop and routes updates into the
// wizard controller.
type Bot struct {
	api        *tgbotapi.BotAPI
	controller *wizard.Controller
	logger     *slog.Logger
}

// NewBot creates the update loop around a bot API client and controller.
func NewBot(api *tgbotapi.BotAPI, controller *wizard.Controller, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{api: api, controller: controller, logger: logger}
}

// RegisterCommands publishes the bot's command menu. Best-effort.
func (b *Bot) RegisterCommands() {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Start the bot"},
		tgbotapi.BotCommand{Command: "savetool", Description: "Save a new AI tool to the database"},
	)
	if _, err := b.api.Request(cmds); err != nil {
		b.logger.Warn("Failed to register bot commands", "error", err)
	}
}

// Run long-polls Telegram for updates until ctx is cancelled. Each update
// is handled behind a recover boundary: a panicking handler produces a
// generic failure notice instead of taking the process down.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Bot update loop started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("Bot update loop stopped", "reason", ctx.Err())
			return
		case update, ok := <-updates:
			if !ok {
				b.logger.Info("Bot update channel closed")
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	chatID := updateChatID(update)
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Panic while handling update",
				"update_id", update.UpdateID, "panic", r, "stack", string(debug.Stack()))
			if chatID != 0 {
				msg := tgbotapi.NewMessage(chatID, "⚠️ Something went wrong. Please try again.")
				if _, err := b.api.Send(msg); err != nil {
					b.logger.Error("Failed to send failure notice", "chat_id", chatID, "error", err)
				}
			}
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		reply := tgbotapi.NewMessage(msg.Chat.ID, startReply)
		if _, err := b.api.Send(reply); err != nil {
			b.logger.Error("Failed to send start reply", "chat_id", msg.Chat.ID, "error", err)
		}
	case "savetool":
		b.controller.HandleCommand(ctx, wizard.Command{
			ChatID: msg.Chat.ID,
			UserID: msg.From.ID,
			Text:   msg.Text,
		})
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Data == "" {
		b.logger.Debug("Callback without message or data", "callback_id", cb.ID)
		return
	}

	// Acknowledge the button press promptly; stale-query rejections are
	// expected for old keyboards and not worth propagating.
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil && !isStaleQueryErr(err) {
		b.logger.Warn("Failed to answer callback query", "callback_id", cb.ID, "error", err)
	}

	b.controller.HandleSelection(ctx, wizard.Selection{
		ChatID:     cb.Message.Chat.ID,
		UserID:     cb.From.ID,
		MessageID:  cb.Message.MessageID,
		CallbackID: cb.ID,
		Data:       cb.Data,
	})
}

func updateChatID(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		return update.CallbackQuery.Message.Chat.ID
	default:
		return 0
	}
}
