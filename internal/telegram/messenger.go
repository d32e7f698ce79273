// Package telegram adapts the Telegram Bot API to the wizard's transport
// ports: outbound messaging and the inbound update loop.
package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/pintegram/toolbot/internal/markup"
	"github.com/pintegram/toolbot/internal/wizard"
)

// Messenger implements wizard.Messenger over the Telegram Bot API.
// Prompts are sent with HTML parse mode. Telegram's "message is not
// modified" rejection is treated as success; rate limiting is converted
// into wizard.RateLimitedError for the controller to surface.
type Messenger struct {
	api    *tgbotapi.BotAPI
	logger *slog.Logger
}

// NewMessenger wraps a bot API client.
func NewMessenger(api *tgbotapi.BotAPI, logger *slog.Logger) *Messenger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Messenger{api: api, logger: logger}
}

// Send delivers a message, optionally with an inline keyboard, and
// returns the new message ID.
func (m *Messenger) Send(_ context.Context, chatID int64, text string, kb markup.Rows) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if len(kb) > 0 {
		msg.ReplyMarkup = inlineKeyboard(kb)
	}

	sent, err := m.api.Send(msg)
	if err != nil {
		return 0, translateErr(err)
	}
	return sent.MessageID, nil
}

// Edit replaces a message's text and keyboard in place.
func (m *Messenger) Edit(_ context.Context, chatID int64, messageID int, text string, kb markup.Rows) error {
	var edit tgbotapi.EditMessageTextConfig
	if len(kb) > 0 {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, inlineKeyboard(kb))
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	edit.ParseMode = tgbotapi.ModeHTML

	if _, err := m.api.Send(edit); err != nil {
		return translateErr(err)
	}
	return nil
}

// EditKeyboard replaces only a message's inline keyboard.
func (m *Messenger) EditKeyboard(_ context.Context, chatID int64, messageID int, kb markup.Rows) error {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, inlineKeyboard(kb))
	if _, err := m.api.Send(edit); err != nil {
		return translateErr(err)
	}
	return nil
}

// Delete removes a message.
func (m *Messenger) Delete(_ context.Context, chatID int64, messageID int) error {
	if _, err := m.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return translateErr(err)
	}
	return nil
}

// AnswerEphemeral answers a callback query with a notice visible only to
// the acting user. Stale-query rejections are swallowed: by the time
// Telegram reports them the notice is pointless anyway.
func (m *Messenger) AnswerEphemeral(_ context.Context, callbackID, text string, alert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert

	if _, err := m.api.Request(cb); err != nil {
		if isStaleQueryErr(err) {
			return nil
		}
		return translateErr(err)
	}
	return nil
}

func inlineKeyboard(kb markup.Rows) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// translateErr maps Telegram API failures onto the wizard's transport
// error contract.
func translateErr(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.RetryAfter > 0 {
			retry := time.Duration(apiErr.RetryAfter) * time.Second
			if retry <= 0 {
				retry = 2 * time.Second
			}
			return &wizard.RateLimitedError{RetryAfter: retry}
		}
		if strings.Contains(apiErr.Message, "message is not modified") {
			return nil
		}
	}
	return err
}

func isStaleQueryErr(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.Contains(apiErr.Message, "query is too old") ||
		strings.Contains(apiErr.Message, "query ID is invalid")
}
