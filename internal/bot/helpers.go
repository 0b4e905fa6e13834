package bot

import (
	"gymbot/internal/logger"
	"gymbot/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sendError sends error message to user and logs it
func (b *Bot) sendError(log *logger.Logger, chatID int64, userMessage string, err error) {
	if err != nil {
		log.Error(userMessage, "error", err)
	}
	msg := tgbotapi.NewMessage(chatID, userMessage)
	if _, sendErr := b.api.Send(msg); sendErr != nil {
		log.Warn("failed to send error message", "error", sendErr)
	}
}

// sendMessage sends message to user with error logging
func (b *Bot) sendMessage(log *logger.Logger, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	if err != nil {
		log.Warn("failed to send message", "error", err)
	}
	return err
}

// renderPrompt builds the reply: one button per row, hidden after a tap.
// A finished conversation without suggestions removes the keyboard.
func renderPrompt(chatID int64, p session.Prompt) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, p.Text)
	switch {
	case len(p.Replies) > 0:
		msg.ReplyMarkup = replyKeyboard(p.Replies)
	case p.Done:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}
	return msg
}

func replyKeyboard(replies []string) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(replies))
	for _, r := range replies {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(r)))
	}
	keyboard := tgbotapi.NewOneTimeReplyKeyboard(rows...)
	keyboard.ResizeKeyboard = true
	return keyboard
}
