package bot

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gymbot/internal/excel"
	"gymbot/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

const (
	commandShowData = "show_data"
	commandExport   = "export"
)

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	log := b.log.With("chat_id", chatID, "trace_id", uuid.NewString())

	if message.IsCommand() {
		switch message.Command() {
		case commandShowData:
			b.handleShowData(ctx, log, chatID)
			return
		case commandExport:
			b.handleExport(ctx, log, message)
			return
		}
	}

	prompt, err := b.conv.HandleInput(ctx, sessionID(chatID), message.Text)
	if err != nil {
		log.Error("session store failed", "error", err)
	}
	if _, err := b.api.Send(renderPrompt(chatID, prompt)); err != nil {
		log.Warn("failed to send prompt", "error", err)
	}
}

func (b *Bot) handleShowData(ctx context.Context, log *logger.Logger, chatID int64) {
	summary, err := b.conv.Summary(ctx, sessionID(chatID))
	if err != nil {
		b.sendError(log, chatID, "Could not load your session, please try again.", err)
		return
	}
	b.sendMessage(log, chatID, formatSummary(summary))
}

// handleExport sends the whole training log as xlsx, admins only
func (b *Bot) handleExport(ctx context.Context, log *logger.Logger, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	userID := chatID
	if message.From != nil {
		userID = message.From.ID
	}
	if !b.config.IsAdmin(userID) {
		log.Warn("export denied", "user_id", userID)
		b.sendMessage(log, chatID, "This command is only available to administrators.")
		return
	}

	rows, err := b.logs.List(ctx, time.Time{})
	if err != nil {
		b.sendError(log, chatID, "Could not read the training log, please try again.", err)
		return
	}

	var buf bytes.Buffer
	if err := excel.WriteLog(&buf, rows, b.config.Categories); err != nil {
		b.sendError(log, chatID, "Could not build the export file.", err)
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("gym_log_%s.xlsx", time.Now().Format("2006-01-02")),
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("Training log: %d entries", len(rows))
	if _, err := b.api.Send(doc); err != nil {
		log.Error("failed to send export", "error", err)
		return
	}
	log.Info("log exported", "entries", len(rows))
}

func sessionID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// formatSummary renders the session summary one "key: value" per line, keys sorted
func formatSummary(summary map[string]string) string {
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("Your session:")
	for _, k := range keys {
		fmt.Fprintf(&sb, "\n%s: %s", k, summary[k])
	}
	return sb.String()
}
